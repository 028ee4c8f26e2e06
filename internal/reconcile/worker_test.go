package reconcile_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ferrobank/ferro/internal/reconcile"
	"github.com/ferrobank/ferro/pkg/logger"
	"github.com/ferrobank/ferro/pkg/money"
)

func TestWorker_RepairsOnFirstPassAndStopsOnCancel(t *testing.T) {
	db, _, aliceAccID := seedWorld(t, "900.00", "40.00")
	worker := reconcile.NewWorker(newReconciler(db), 50*time.Millisecond, logger.NewDefault("test"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		worker.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		acc, err := db.Accounts().GetByID(context.Background(), aliceAccID)
		return err == nil && acc.Balance.Equal(money.MustParse("100.00"))
	}, 2*time.Second, 10*time.Millisecond, "first pass should repair the drifted cache")

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker kept running after context cancellation")
	}
}
