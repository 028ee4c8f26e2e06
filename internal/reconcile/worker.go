package reconcile

import (
	"context"
	"time"

	"github.com/ferrobank/ferro/pkg/logger"
)

// Worker runs reconciliation passes on a fixed interval.
type Worker struct {
	reconciler *Reconciler
	interval   time.Duration
	logger     *logger.Logger
}

// NewWorker creates a new reconciliation worker
func NewWorker(reconciler *Reconciler, interval time.Duration, log *logger.Logger) *Worker {
	return &Worker{
		reconciler: reconciler,
		interval:   interval,
		logger:     log.WithField("component", "reconcile_worker"),
	}
}

// Run starts the worker and runs until the context is cancelled
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("reconciliation worker started", "interval", w.interval)

	// Run immediately on start
	w.pass(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("reconciliation worker stopped")
			return
		case <-ticker.C:
			w.pass(ctx)
		}
	}
}

func (w *Worker) pass(ctx context.Context) {
	start := time.Now()
	summary, err := w.reconciler.ReconcileAll(ctx)
	if err != nil {
		w.logger.WithError(err).Error("reconciliation pass failed")
		return
	}
	w.logger.WithDuration(time.Since(start)).Info("reconciliation pass finished",
		"checked", summary.Checked, "repaired", summary.Repaired)
}
