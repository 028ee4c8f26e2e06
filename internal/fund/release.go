package fund

import (
	"context"

	"github.com/google/uuid"

	"github.com/ferrobank/ferro/internal/apperr"
	"github.com/ferrobank/ferro/internal/ledger"
	"github.com/ferrobank/ferro/internal/platform/user"
)

type releaseOutcome int

const (
	releaseSkipped releaseOutcome = iota
	releaseCompleted
	releaseFailed
)

// ReleaseHeld re-evaluates every pending movement involving the user, posting
// the ones whose parties are now verified and funded, and failing the ones
// that can no longer proceed. Each movement releases in its own database
// transaction so one bad movement cannot hold the rest hostage.
func (s *Service) ReleaseHeld(ctx context.Context, userID int64) (released, failed int, err error) {
	rows, err := s.ledgerRepo.ListPendingByUser(ctx, userID)
	if err != nil {
		return 0, 0, apperr.DB("failed to list held transactions", err)
	}

	seen := make(map[uuid.UUID]struct{}, len(rows))
	for _, row := range rows {
		if _, ok := seen[row.Reference]; ok {
			continue
		}
		seen[row.Reference] = struct{}{}

		outcome, relErr := s.releaseReference(ctx, row.Reference)
		if relErr != nil {
			s.logger.WithContext(ctx).WithError(relErr).Error("held movement release failed",
				"reference", row.Reference.String(), "transaction_id", row.ID)
			continue
		}
		switch outcome {
		case releaseCompleted:
			released++
		case releaseFailed:
			failed++
		}
	}
	return released, failed, nil
}

// releaseReference settles all rows sharing one movement reference. The rows
// are re-read and the parties re-checked under account locks, so the decision
// reflects the committed state and not the state at hold time.
func (s *Service) releaseReference(ctx context.Context, ref uuid.UUID) (releaseOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var outcome releaseOutcome
	var rows []*ledger.Transaction
	err := s.inTx(ctx, func(txCtx context.Context) error {
		var err error
		rows, err = s.ledgerRepo.GetTransactionsByReference(txCtx, ref)
		if err != nil {
			return apperr.DB("failed to load movement rows", err)
		}
		if len(rows) == 0 {
			outcome = releaseSkipped
			return nil
		}
		for _, row := range rows {
			if row.Status != ledger.TransactionStatusPending {
				// A concurrent release or an admin cancel got here first.
				outcome = releaseSkipped
				return nil
			}
		}

		accountIDs := make([]int64, 0, len(rows)+1)
		for _, row := range rows {
			accountIDs = append(accountIDs, row.AccountID)
		}
		if rows[0].Type != ledger.TransactionTypeTransfer {
			accountIDs = append(accountIDs, s.reserve.AccountID)
		}
		if err := s.lockAccounts(txCtx, accountIDs...); err != nil {
			return err
		}

		kycNow := make(map[int64]user.KYCStatus, len(rows))
		for _, row := range rows {
			party, err := s.users.GetByID(txCtx, row.UserID)
			if err != nil {
				return apperr.DB("failed to load movement party", err)
			}
			kycNow[party.ID] = party.KYCStatus
			if party.IsAdmin {
				continue
			}
			if party.KYCStatus == user.KYCRejected {
				outcome = releaseFailed
				return s.failRows(txCtx, rows)
			}
			if party.KYCStatus != user.KYCApproved {
				outcome = releaseSkipped
				return nil
			}
		}

		if debit := debitSide(rows); debit != nil {
			available, err := s.balances.UserBalance(txCtx, debit.UserID)
			if err != nil {
				return apperr.DB("failed to compute balance", err)
			}
			if available.LessThan(debit.Amount) {
				outcome = releaseFailed
				return s.failRows(txCtx, rows)
			}
		}

		if err := s.postReleased(txCtx, rows, kycNow); err != nil {
			return err
		}
		outcome = releaseCompleted
		return nil
	})
	if err != nil {
		return outcome, err
	}

	if outcome == releaseCompleted || outcome == releaseFailed {
		userIDs := make([]int64, 0, len(rows)+1)
		for _, row := range rows {
			userIDs = append(userIDs, row.UserID)
			s.notifier.TransactionCommitted(ctx, row)
		}
		s.balances.InvalidateUsers(ctx, append(userIDs, s.reserve.UserID)...)
	}
	return outcome, nil
}

// postReleased writes the entry pair for the movement and completes every
// row, refreshing each row's KYC snapshot to the status that justified the
// release.
func (s *Service) postReleased(ctx context.Context, rows []*ledger.Transaction, kycNow map[int64]user.KYCStatus) error {
	var pairTx *ledger.Transaction
	var debitUserID, creditUserID int64

	switch rows[0].Type {
	case ledger.TransactionTypeTransfer:
		debit := debitSide(rows)
		credit := creditSide(rows)
		if debit == nil || credit == nil {
			return apperr.LedgerImbalance("transfer reference is missing a side", ledger.ErrEntryPairNotFound)
		}
		pairTx, debitUserID, creditUserID = debit, debit.UserID, credit.UserID
	case ledger.TransactionTypeWithdrawal:
		pairTx, debitUserID, creditUserID = rows[0], rows[0].UserID, s.reserve.UserID
	default:
		// Deposits and treasury fundings credit the user from the system.
		pairTx, debitUserID, creditUserID = rows[0], s.reserve.UserID, rows[0].UserID
	}

	if _, _, err := s.ledgerSvc.AppendPair(ctx, pairTx.ID, debitUserID, creditUserID, pairTx.Amount, pairTx.Description); err != nil {
		return err
	}

	for _, row := range rows {
		if err := s.ledgerRepo.UpdateTransactionStatus(ctx, row.ID, ledger.TransactionStatusCompleted); err != nil {
			return apperr.DB("failed to complete held transaction", err)
		}
		if err := s.ledgerRepo.SetKYCStatusAtTime(ctx, row.ID, string(kycNow[row.UserID])); err != nil {
			return apperr.DB("failed to refresh KYC snapshot", err)
		}
		row.Status = ledger.TransactionStatusCompleted
		row.KYCStatusAtTime = string(kycNow[row.UserID])
	}
	return nil
}

func (s *Service) failRows(ctx context.Context, rows []*ledger.Transaction) error {
	for _, row := range rows {
		if err := s.ledgerRepo.UpdateTransactionStatus(ctx, row.ID, ledger.TransactionStatusFailed); err != nil {
			return apperr.DB("failed to mark held transaction failed", err)
		}
		row.Status = ledger.TransactionStatusFailed
	}
	return nil
}

func debitSide(rows []*ledger.Transaction) *ledger.Transaction {
	for _, row := range rows {
		if row.Direction == ledger.DirectionDebit {
			return row
		}
	}
	return nil
}

func creditSide(rows []*ledger.Transaction) *ledger.Transaction {
	for _, row := range rows {
		if row.Direction == ledger.DirectionCredit {
			return row
		}
	}
	return nil
}
