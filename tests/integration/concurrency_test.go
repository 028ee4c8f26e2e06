//go:build integration

package integration

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferrobank/ferro/internal/apperr"
	"github.com/ferrobank/ferro/pkg/money"
)

// ============================================================================
// Concurrency properties
// ============================================================================

// Two simultaneous withdrawals race for a balance that covers only one of
// them. Row locks serialize the drain, so exactly one side wins and the
// account never goes negative.
func TestConcurrentWithdrawals_NeverOverdraw(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	aliceID, aliceAcc := w.registerCustomer("alice@ferro.test", true)
	_, err := w.fundSvc.Deposit(ctx, aliceID, aliceAcc, money.MustParse("100.00"))
	require.NoError(t, err)

	const racers = 2
	errs := make([]error, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = w.fundSvc.Withdraw(ctx, aliceID, aliceAcc, money.MustParse("80.00"))
		}(i)
	}
	wg.Wait()

	var won, refused int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case apperr.Is(err, apperr.CodeInsufficientFunds):
			refused++
		default:
			t.Fatalf("unexpected withdrawal error: %v", err)
		}
	}
	assert.Equal(t, 1, won, "exactly one withdrawal may drain the balance")
	assert.Equal(t, 1, refused)
	assert.True(t, w.available(aliceID).Equal(money.MustParse("20.00")))

	w.requireBalancedLedger()
}

func TestConcurrentDeposits_AllPost(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	aliceID, aliceAcc := w.registerCustomer("alice@ferro.test", true)

	const depositors = 10
	errs := make([]error, depositors)
	var wg sync.WaitGroup
	for i := 0; i < depositors; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = w.fundSvc.Deposit(ctx, aliceID, aliceAcc, money.MustParse("10.00"))
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "deposit %d", i)
	}
	assert.True(t, w.available(aliceID).Equal(money.MustParse("100.00")))

	w.requireBalancedLedger()
}

// Five transfers of 30 race for a balance of 100. Serialization admits
// exactly three; money is conserved across both parties either way.
func TestConcurrentTransfers_ConserveMoney(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	aliceID, aliceAcc := w.registerCustomer("alice@ferro.test", true)
	bobID, _ := w.registerCustomer("bob@ferro.test", true)

	_, err := w.fundSvc.Deposit(ctx, aliceID, aliceAcc, money.MustParse("100.00"))
	require.NoError(t, err)

	const racers = 5
	errs := make([]error, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = w.fundSvc.Transfer(ctx, aliceID, bobID, money.MustParse("30.00"))
		}(i)
	}
	wg.Wait()

	var won, refused int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case apperr.Is(err, apperr.CodeInsufficientFunds):
			refused++
		default:
			t.Fatalf("unexpected transfer error: %v", err)
		}
	}
	assert.Equal(t, 3, won)
	assert.Equal(t, 2, refused)

	aliceBal := w.available(aliceID)
	bobBal := w.available(bobID)
	assert.True(t, aliceBal.Equal(money.MustParse("10.00")))
	assert.True(t, bobBal.Equal(money.MustParse("90.00")))
	assert.True(t, aliceBal.Add(bobBal).Equal(money.MustParse("100.00")),
		"transfers move money, never create or destroy it")

	w.requireBalancedLedger()
}
