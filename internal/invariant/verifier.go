// Package invariant sweeps the database for violations of the platform's
// structural rules and repairs the ones that have a safe mechanical fix.
// Broken bookkeeping is reported, never patched: money discrepancies need a
// human decision.
package invariant

import (
	"context"
	"time"

	"github.com/ferrobank/ferro/internal/apperr"
	"github.com/ferrobank/ferro/internal/audit"
	"github.com/ferrobank/ferro/internal/ledger"
	"github.com/ferrobank/ferro/internal/platform/account"
	"github.com/ferrobank/ferro/internal/platform/user"
	"github.com/ferrobank/ferro/pkg/logger"
)

// Verifier runs the integrity sweep.
type Verifier struct {
	users       user.Repository
	scanner     UserScanner
	accounts    account.Repository
	accountScan AccountScanner
	txScan      TransactionScanner
	ledgerSvc   *ledger.Service
	audits      *audit.Service
	txm         TxManager
	logger      *logger.Logger
}

// NewVerifier creates a new invariant verifier
func NewVerifier(
	users user.Repository,
	scanner UserScanner,
	accounts account.Repository,
	accountScan AccountScanner,
	txScan TransactionScanner,
	ledgerSvc *ledger.Service,
	audits *audit.Service,
	txm TxManager,
	log *logger.Logger,
) *Verifier {
	return &Verifier{
		users:       users,
		scanner:     scanner,
		accounts:    accounts,
		accountScan: accountScan,
		txScan:      txScan,
		ledgerSvc:   ledgerSvc,
		audits:      audits,
		txm:         txm,
		logger:      log.WithField("component", "invariant"),
	}
}

// Run scans without modifying anything except the audit trail: every
// finding category is recorded there as a critical event.
func (v *Verifier) Run(ctx context.Context) (*Report, error) {
	report := &Report{}

	orphans, err := v.scanner.FindWithoutAccounts(ctx)
	if err != nil {
		return nil, apperr.DB("failed to scan for users without accounts", err)
	}
	for _, u := range orphans {
		report.OrphanedUsers = append(report.OrphanedUsers, u.ID)
	}

	report.OwnerlessAccounts, err = v.accountScan.FindOwnerless(ctx)
	if err != nil {
		return nil, apperr.DB("failed to scan for ownerless accounts", err)
	}

	report.UnboundTransactions, err = v.txScan.FindUnbound(ctx)
	if err != nil {
		return nil, apperr.DB("failed to scan for unbound transactions", err)
	}

	invalidKYC, err := v.scanner.FindWithInvalidKYC(ctx)
	if err != nil {
		return nil, apperr.DB("failed to scan for invalid KYC statuses", err)
	}
	for _, u := range invalidKYC {
		report.InvalidKYCUsers = append(report.InvalidKYCUsers, u.ID)
	}

	imbalances, unpaired, nonPositive, err := v.ledgerSvc.VerifyBalanced(ctx)
	if err != nil {
		return nil, apperr.DB("failed to verify ledger", err)
	}
	report.Imbalances = imbalances
	report.UnpairedEntries = unpaired
	report.NonPositiveEntries = nonPositive

	v.logFindings(ctx, report)
	v.recordFindings(ctx, report)
	return report, nil
}

// Repair runs the sweep and fixes the mechanically repairable findings:
// users without an account get a primary account, users with an invalid KYC
// status are reset to not started. Every repair is audited as the system
// user. Ledger findings are only reported.
func (v *Verifier) Repair(ctx context.Context) (*Report, error) {
	report, err := v.Run(ctx)
	if err != nil {
		return nil, err
	}

	for _, userID := range report.OrphanedUsers {
		if err := v.repairMissingAccount(ctx, userID); err != nil {
			v.logger.WithContext(ctx).WithError(err).Error("failed to repair missing account", "user_id", userID)
			continue
		}
		report.RepairedAccounts++
	}

	for _, userID := range report.InvalidKYCUsers {
		if err := v.repairKYCStatus(ctx, userID); err != nil {
			v.logger.WithContext(ctx).WithError(err).Error("failed to repair KYC status", "user_id", userID)
			continue
		}
		report.RepairedKYC++
	}

	return report, nil
}

func (v *Verifier) repairMissingAccount(ctx context.Context, userID int64) error {
	return v.inTx(ctx, func(txCtx context.Context) error {
		acc := account.NewPrimary(userID, time.Now().UTC())
		if err := v.accounts.Create(txCtx, acc); err != nil {
			return apperr.DB("failed to create primary account", err)
		}
		if _, err := v.audits.Record(txCtx, &audit.Entry{
			AdminID:    user.SystemUserID,
			UserID:     userID,
			AccountID:  &acc.ID,
			ActionType: audit.ActionInvariantRepair,
			Reason:     "user had no account",
			Details: map[string]interface{}{
				"repair":         "created_primary_account",
				"account_number": acc.AccountNumber,
			},
		}); err != nil {
			return apperr.DB("failed to record audit entry", err)
		}
		return nil
	})
}

func (v *Verifier) repairKYCStatus(ctx context.Context, userID int64) error {
	return v.inTx(ctx, func(txCtx context.Context) error {
		if err := v.users.UpdateKYCStatus(txCtx, userID, user.KYCNotStarted); err != nil {
			return apperr.DB("failed to reset KYC status", err)
		}
		if _, err := v.audits.Record(txCtx, &audit.Entry{
			AdminID:    user.SystemUserID,
			UserID:     userID,
			ActionType: audit.ActionInvariantRepair,
			Reason:     "KYC status outside the enum",
			Details: map[string]interface{}{
				"repair":    "reset_kyc_status",
				"to_status": string(user.KYCNotStarted),
			},
		}); err != nil {
			return apperr.DB("failed to record audit entry", err)
		}
		return nil
	})
}

func (v *Verifier) logFindings(ctx context.Context, report *Report) {
	log := v.logger.WithContext(ctx)

	for _, imb := range report.Imbalances {
		log.Error("ledger imbalance detected",
			"transaction_id", imb.TransactionID,
			"debit_total", imb.DebitTotal,
			"credit_total", imb.CreditTotal,
		)
	}
	if len(report.UnpairedEntries) > 0 {
		log.Error("unpaired ledger entries detected", "entry_ids", report.UnpairedEntries)
	}
	if len(report.NonPositiveEntries) > 0 {
		log.Error("non-positive ledger entries detected", "entry_ids", report.NonPositiveEntries)
	}
	if len(report.OrphanedUsers) > 0 {
		log.Warn("users without accounts detected", "user_ids", report.OrphanedUsers)
	}
	if len(report.OwnerlessAccounts) > 0 {
		log.Error("accounts without an owner detected", "account_ids", report.OwnerlessAccounts)
	}
	if len(report.UnboundTransactions) > 0 {
		log.Error("transactions with missing bindings detected", "transaction_ids", report.UnboundTransactions)
	}
	if len(report.InvalidKYCUsers) > 0 {
		log.Warn("users with invalid KYC status detected", "user_ids", report.InvalidKYCUsers)
	}
}

// recordFindings writes one audit entry per finding category so violations
// survive in the trail even when nobody is watching the logs. Recording is
// best effort: a failed write is logged and the sweep result still stands.
func (v *Verifier) recordFindings(ctx context.Context, report *Report) {
	type finding struct {
		name   string
		reason string
		ids    []int64
	}

	findings := []finding{
		{"users_without_accounts", "users with no account", report.OrphanedUsers},
		{"ownerless_accounts", "accounts with no owning user", report.OwnerlessAccounts},
		{"unbound_transactions", "transactions missing user or account binding", report.UnboundTransactions},
		{"invalid_kyc_users", "users with KYC status outside the enum", report.InvalidKYCUsers},
		{"unpaired_entries", "ledger entries without a balancing counterpart", report.UnpairedEntries},
		{"non_positive_entries", "ledger entries with non-positive amounts", report.NonPositiveEntries},
	}
	if len(report.Imbalances) > 0 {
		ids := make([]int64, 0, len(report.Imbalances))
		for _, imb := range report.Imbalances {
			ids = append(ids, imb.TransactionID)
		}
		findings = append(findings, finding{"ledger_imbalances", "transactions whose debit and credit totals diverge", ids})
	}

	for _, f := range findings {
		if len(f.ids) == 0 {
			continue
		}
		if _, err := v.audits.Record(ctx, &audit.Entry{
			AdminID:    user.SystemUserID,
			UserID:     user.SystemUserID,
			ActionType: audit.ActionInvariantViolation,
			Status:     audit.StatusFailed,
			Reason:     f.reason,
			Details: map[string]interface{}{
				"finding": f.name,
				"ids":     f.ids,
			},
		}); err != nil {
			v.logger.WithContext(ctx).WithError(err).Error("failed to record invariant violation", "finding", f.name)
		}
	}
}

func (v *Verifier) inTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	txCtx, err := v.txm.BeginTx(ctx)
	if err != nil {
		return apperr.DB("failed to begin transaction", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = v.txm.RollbackTx(txCtx)
		}
	}()

	if err := fn(txCtx); err != nil {
		return err
	}

	if err := v.txm.CommitTx(txCtx); err != nil {
		return apperr.DB("failed to commit transaction", err)
	}
	committed = true
	return nil
}
