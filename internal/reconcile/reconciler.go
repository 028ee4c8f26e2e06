// Package reconcile compares every account's cached balance against the
// balance derived from posted ledger entries and repairs drift. The ledger
// is the source of truth; the cache only exists for cheap reads, so repair
// always writes the derived value.
package reconcile

import (
	"context"
	"errors"

	"github.com/ferrobank/ferro/internal/apperr"
	"github.com/ferrobank/ferro/internal/audit"
	"github.com/ferrobank/ferro/internal/balance"
	"github.com/ferrobank/ferro/internal/platform/account"
	"github.com/ferrobank/ferro/internal/platform/user"
	"github.com/ferrobank/ferro/pkg/logger"
	"github.com/ferrobank/ferro/pkg/money"
)

// TxManager controls the database transaction a repair and its audit record
// share.
type TxManager interface {
	BeginTx(ctx context.Context) (context.Context, error)
	CommitTx(ctx context.Context) error
	RollbackTx(ctx context.Context) error
}

// Reconciler runs balance reconciliation passes.
type Reconciler struct {
	accounts account.Repository
	balances *balance.Service
	audits   *audit.Service
	txm      TxManager
	logger   *logger.Logger
}

// NewReconciler creates a new reconciler
func NewReconciler(
	accounts account.Repository,
	balances *balance.Service,
	audits *audit.Service,
	txm TxManager,
	log *logger.Logger,
) *Reconciler {
	return &Reconciler{
		accounts: accounts,
		balances: balances,
		audits:   audits,
		txm:      txm,
		logger:   log.WithField("component", "reconcile"),
	}
}

// ReconcileAll checks every account. Accounts that cannot be checked are
// logged and skipped so one broken account does not stall the pass.
func (r *Reconciler) ReconcileAll(ctx context.Context) (*Summary, error) {
	ids, err := r.accounts.ListIDs(ctx)
	if err != nil {
		return nil, apperr.DB("failed to list accounts", err)
	}

	summary := &Summary{}
	for _, id := range ids {
		result, err := r.ReconcileAccount(ctx, id)
		if err != nil {
			r.logger.WithContext(ctx).WithError(err).Error("account reconciliation failed", "account_id", id)
			continue
		}
		summary.Checked++
		if result.Repaired {
			summary.Repaired++
			summary.Results = append(summary.Results, *result)
		}
	}

	if summary.Repaired > 0 {
		r.logger.WithContext(ctx).Warn("reconciliation repaired drifted balances",
			"checked", summary.Checked, "repaired", summary.Repaired)
	} else {
		r.logger.WithContext(ctx).Debug("reconciliation pass clean", "checked", summary.Checked)
	}
	return summary, nil
}

// ReconcileAccount derives the account's balance from the ledger and, when
// the cached column drifted beyond tolerance, overwrites the cache and
// records the repair in the audit trail.
func (r *Reconciler) ReconcileAccount(ctx context.Context, accountID int64) (*Result, error) {
	acc, err := r.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, account.ErrAccountNotFound) {
			return nil, apperr.AccountNotFound()
		}
		return nil, apperr.DB("failed to load account", err)
	}

	derived, err := r.balances.UserBalance(ctx, acc.OwnerID)
	if err != nil {
		return nil, err
	}

	result := &Result{
		AccountID:     acc.ID,
		AccountNumber: acc.AccountNumber,
		Cached:        acc.Balance,
		Derived:       derived,
		Drift:         derived.Sub(acc.Balance),
	}

	if money.WithinTolerance(derived, acc.Balance) {
		return result, nil
	}

	r.logger.WithContext(ctx).Warn("balance drift detected",
		"account_id", acc.ID,
		"account_number", acc.AccountNumber,
		"cached", money.Format(acc.Balance),
		"derived", money.Format(derived),
		"drift", money.Format(result.Drift),
	)

	err = r.inTx(ctx, func(txCtx context.Context) error {
		if err := r.accounts.UpdateCachedBalance(txCtx, acc.ID, derived); err != nil {
			return apperr.DB("failed to repair cached balance", err)
		}
		if _, err := r.audits.Record(txCtx, &audit.Entry{
			AdminID:    user.SystemUserID,
			UserID:     acc.OwnerID,
			AccountID:  &acc.ID,
			ActionType: audit.ActionReconcileBalance,
			Reason:     "cached balance drifted from the ledger",
			Details: map[string]interface{}{
				"cached":  money.Format(acc.Balance),
				"derived": money.Format(derived),
				"drift":   money.Format(result.Drift),
			},
		}); err != nil {
			return apperr.DB("failed to record audit entry", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Repaired = true
	return result, nil
}

func (r *Reconciler) inTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	txCtx, err := r.txm.BeginTx(ctx)
	if err != nil {
		return apperr.DB("failed to begin transaction", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = r.txm.RollbackTx(txCtx)
		}
	}()

	if err := fn(txCtx); err != nil {
		return err
	}

	if err := r.txm.CommitTx(txCtx); err != nil {
		return apperr.DB("failed to commit transaction", err)
	}
	committed = true
	return nil
}
