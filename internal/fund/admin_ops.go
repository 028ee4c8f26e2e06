package fund

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ferrobank/ferro/internal/apperr"
	"github.com/ferrobank/ferro/internal/audit"
	"github.com/ferrobank/ferro/internal/gate"
	"github.com/ferrobank/ferro/internal/ledger"
	"github.com/ferrobank/ferro/internal/platform/account"
	"github.com/ferrobank/ferro/internal/platform/user"
	"github.com/ferrobank/ferro/pkg/money"
	"github.com/google/uuid"
)

// AdminFundFromReserve moves money from the treasury reserve into the target
// user's account. targetAccountID selects the receiving account; zero means
// the user's primary account. Only admins may call it, the amount is bounded
// by the funding ceiling, and the audit record commits in the same database
// transaction as the movement. Returns the transaction and the audit entry ID.
func (s *Service) AdminFundFromReserve(ctx context.Context, adminID, targetUserID, targetAccountID int64, amount decimal.Decimal, reason string) (*ledger.Transaction, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, 0, err
	}
	if adminID == targetUserID {
		return nil, 0, apperr.Validation("target_user_id", "admins cannot fund their own account")
	}

	// Ownership of an explicitly named account is enforced by the gate
	// inside the transaction; here we only resolve the row.
	var targetAcc *account.Account
	var err error
	if targetAccountID > 0 {
		targetAcc, err = s.accounts.GetByID(ctx, targetAccountID)
	} else {
		targetAcc, err = s.accounts.GetPrimaryByOwner(ctx, targetUserID)
	}
	if err != nil {
		return nil, 0, s.fail(ctx, "admin_fund", mapAccountErr(err))
	}

	var tx *ledger.Transaction
	var auditID int64
	err = s.inTx(ctx, func(txCtx context.Context) error {
		if err := s.lockAccounts(txCtx, targetAcc.ID, s.reserve.AccountID); err != nil {
			return err
		}

		verdict, err := s.gate.Check(txCtx, gate.Request{
			ActorUserID:     adminID,
			SourceAccountID: &s.reserve.AccountID,
			TargetAccountID: &targetAcc.ID,
			TargetUserID:    &targetUserID,
			Amount:          amount,
			Operation:       gate.OpAdminFund,
		})
		if err != nil {
			return err
		}

		tx = &ledger.Transaction{
			Reference:       uuid.New(),
			UserID:          targetUserID,
			AccountID:       targetAcc.ID,
			Amount:          amount,
			Type:            ledger.TransactionTypeFundTransfer,
			Direction:       ledger.DirectionCredit,
			Status:          verdict.InitialStatus,
			Description:     fmt.Sprintf("treasury funding: %s", reason),
			KYCStatusAtTime: string(verdict.KYCByUser[targetUserID]),
		}
		if err := s.ledgerRepo.CreateTransaction(txCtx, tx); err != nil {
			return apperr.DB("failed to record funding transaction", err)
		}

		details := map[string]interface{}{
			"transaction_id": tx.ID,
			"source_account": s.reserve.AccountID,
			"target_account": targetAcc.ID,
			"amount":         money.Format(amount),
		}
		auditStatus := audit.StatusSuccess
		if verdict.InitialStatus == ledger.TransactionStatusCompleted {
			debitID, creditID, err := s.ledgerSvc.AppendPair(txCtx, tx.ID, s.reserve.UserID, targetUserID, amount, tx.Description)
			if err != nil {
				return err
			}
			details["debit_entry_id"] = debitID
			details["credit_entry_id"] = creditID
		} else {
			auditStatus = audit.StatusPending
			details["held_reason"] = verdict.Reason
		}

		auditID, err = s.audits.Record(txCtx, &audit.Entry{
			AdminID:    adminID,
			UserID:     targetUserID,
			AccountID:  &targetAcc.ID,
			ActionType: audit.ActionFund,
			Reason:     reason,
			Details:    details,
			Status:     auditStatus,
		})
		if err != nil {
			return apperr.DB("failed to record audit entry", err)
		}
		return nil
	})
	if err != nil {
		return nil, 0, s.fail(ctx, "admin_fund", err)
	}

	s.afterCommit(ctx, tx, targetUserID)
	return tx, auditID, nil
}

// AdminReverse undoes a transaction. A held transaction is cancelled with no
// ledger effect; a completed one gets a compensating entry pair and its
// original entries are marked reversed. Failed and cancelled transactions
// cannot be reversed again. Returns the resulting transaction and the audit
// entry ID.
func (s *Service) AdminReverse(ctx context.Context, adminID, transactionID int64, reason string) (*ledger.Transaction, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, 0, err
	}

	var result *ledger.Transaction
	var affected []int64
	var auditID int64
	err := s.inTx(ctx, func(txCtx context.Context) error {
		original, err := s.ledgerRepo.GetTransaction(txCtx, transactionID)
		if err != nil {
			if errors.Is(err, ledger.ErrTransactionNotFound) {
				return apperr.TransactionNotFound()
			}
			return apperr.DB("failed to load transaction", err)
		}

		if original.IsFinal() {
			return apperr.AlreadyReversed()
		}

		siblings, err := s.ledgerRepo.GetTransactionsByReference(txCtx, original.Reference)
		if err != nil {
			return apperr.DB("failed to load movement rows", err)
		}

		accountIDs := []int64{s.reserve.AccountID}
		for _, row := range siblings {
			accountIDs = append(accountIDs, row.AccountID)
			affected = append(affected, row.UserID)
		}
		if err := s.lockAccounts(txCtx, accountIDs...); err != nil {
			return err
		}

		details := map[string]interface{}{
			"transaction_id": transactionID,
			"amount":         money.Format(original.Amount),
		}

		if original.IsHeld() {
			// Held movements never posted entries, so cancelling every
			// row sharing the reference is the whole reversal.
			for _, row := range siblings {
				if err := s.ledgerRepo.UpdateTransactionStatus(txCtx, row.ID, ledger.TransactionStatusCancelled); err != nil {
					return apperr.DB("failed to cancel held transaction", err)
				}
			}
			original.Status = ledger.TransactionStatusCancelled
			result = original
			details["outcome"] = "cancelled"
		} else {
			reversal, err := s.ledgerSvc.Reverse(txCtx, transactionID, reason)
			if err != nil {
				return mapReverseErr(err)
			}
			result = reversal
			details["outcome"] = "reversed"
			details["reversal_id"] = reversal.ID
		}

		auditID, err = s.audits.Record(txCtx, &audit.Entry{
			AdminID:    adminID,
			UserID:     original.UserID,
			AccountID:  &original.AccountID,
			ActionType: audit.ActionReverseTransaction,
			Reason:     reason,
			Details:    details,
		})
		if err != nil {
			return apperr.DB("failed to record audit entry", err)
		}
		return nil
	})
	if err != nil {
		return nil, 0, s.fail(ctx, "admin_reverse", err)
	}

	s.afterCommit(ctx, result, affected...)
	return result, auditID, nil
}

// requireAdmin loads the actor and refuses non-admins.
func (s *Service) requireAdmin(ctx context.Context, actorID int64) error {
	actor, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return apperr.NotAdmin()
		}
		return apperr.DB("failed to load acting user", err)
	}
	if !actor.IsAdmin {
		return apperr.NotAdmin()
	}
	if !actor.IsActive {
		return apperr.ActorInactive("acting admin is deactivated")
	}
	return nil
}

func mapReverseErr(err error) error {
	switch {
	case errors.Is(err, ledger.ErrAlreadyReversed):
		return apperr.AlreadyReversed()
	case errors.Is(err, ledger.ErrTransactionNotFound):
		return apperr.TransactionNotFound()
	case errors.Is(err, ledger.ErrEntryPairNotFound):
		return apperr.Validation("transaction_id", "transaction carries no entry pair; reverse the debit-side row of the movement")
	case errors.Is(err, ledger.ErrPairNotPosted):
		return apperr.Validation("transaction_id", "entries are not in posted state")
	default:
		return err
	}
}
