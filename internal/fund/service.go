// Package fund composes the gate, the ledger, and the audit log into the
// atomic money operations the platform exposes: deposit, withdrawal,
// user-to-user transfer, admin funding from the treasury, and reversal.
// Every operation runs inside one database transaction and either commits
// all of its effects or none of them.
package fund

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ferrobank/ferro/internal/apperr"
	"github.com/ferrobank/ferro/internal/audit"
	"github.com/ferrobank/ferro/internal/balance"
	"github.com/ferrobank/ferro/internal/gate"
	"github.com/ferrobank/ferro/internal/ledger"
	"github.com/ferrobank/ferro/internal/platform/account"
	"github.com/ferrobank/ferro/internal/platform/user"
	"github.com/ferrobank/ferro/internal/system"
	"github.com/ferrobank/ferro/pkg/logger"
)

// Service is the fund engine.
type Service struct {
	txm        TxManager
	gate       *gate.Service
	ledgerSvc  *ledger.Service
	ledgerRepo ledger.Repository
	audits     *audit.Service
	users      user.Repository
	accounts   account.Repository
	balances   *balance.Service
	reserve    *system.Reserve
	notifier   Notifier
	timeout    time.Duration
	logger     *logger.Logger
}

// NewService creates the fund engine. timeout bounds each operation's
// wall-clock time; reserve identifies the treasury counterparty.
func NewService(
	txm TxManager,
	g *gate.Service,
	ledgerSvc *ledger.Service,
	ledgerRepo ledger.Repository,
	audits *audit.Service,
	users user.Repository,
	accounts account.Repository,
	balances *balance.Service,
	reserve *system.Reserve,
	notifier Notifier,
	timeout time.Duration,
	log *logger.Logger,
) *Service {
	return &Service{
		txm:        txm,
		gate:       g,
		ledgerSvc:  ledgerSvc,
		ledgerRepo: ledgerRepo,
		audits:     audits,
		users:      users,
		accounts:   accounts,
		balances:   balances,
		reserve:    reserve,
		notifier:   notifier,
		timeout:    timeout,
		logger:     log.WithField("component", "fund"),
	}
}

// Deposit records external money arriving into the user's account. The
// counterparty is the system user, so the ledger stays balanced.
func (s *Service) Deposit(ctx context.Context, userID, accountID int64, amount decimal.Decimal) (*ledger.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var tx *ledger.Transaction
	err := s.inTx(ctx, func(txCtx context.Context) error {
		if err := s.lockAccounts(txCtx, accountID, s.reserve.AccountID); err != nil {
			return err
		}

		verdict, err := s.gate.Check(txCtx, gate.Request{
			ActorUserID:     userID,
			TargetAccountID: &accountID,
			Amount:          amount,
			Operation:       gate.OpDeposit,
		})
		if err != nil {
			return err
		}

		tx = &ledger.Transaction{
			Reference:       uuid.New(),
			UserID:          userID,
			AccountID:       accountID,
			Amount:          amount,
			Type:            ledger.TransactionTypeDeposit,
			Direction:       ledger.DirectionCredit,
			Status:          verdict.InitialStatus,
			Description:     "deposit",
			KYCStatusAtTime: string(verdict.KYCByUser[userID]),
		}
		if err := s.ledgerRepo.CreateTransaction(txCtx, tx); err != nil {
			return apperr.DB("failed to record deposit", err)
		}

		if verdict.InitialStatus == ledger.TransactionStatusCompleted {
			if _, _, err := s.ledgerSvc.AppendPair(txCtx, tx.ID, s.reserve.UserID, userID, amount, tx.Description); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, "deposit", err)
	}

	s.afterCommit(ctx, tx, userID)
	return tx, nil
}

// Withdraw records money leaving the user's account toward the outside
// world. The user is debited and the system user credited.
func (s *Service) Withdraw(ctx context.Context, userID, accountID int64, amount decimal.Decimal) (*ledger.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var tx *ledger.Transaction
	err := s.inTx(ctx, func(txCtx context.Context) error {
		if err := s.lockAccounts(txCtx, accountID, s.reserve.AccountID); err != nil {
			return err
		}

		verdict, err := s.gate.Check(txCtx, gate.Request{
			ActorUserID:     userID,
			SourceAccountID: &accountID,
			Amount:          amount,
			Operation:       gate.OpWithdrawal,
		})
		if err != nil {
			return err
		}

		tx = &ledger.Transaction{
			Reference:       uuid.New(),
			UserID:          userID,
			AccountID:       accountID,
			Amount:          amount,
			Type:            ledger.TransactionTypeWithdrawal,
			Direction:       ledger.DirectionDebit,
			Status:          verdict.InitialStatus,
			Description:     "withdrawal",
			KYCStatusAtTime: string(verdict.KYCByUser[userID]),
		}
		if err := s.ledgerRepo.CreateTransaction(txCtx, tx); err != nil {
			return apperr.DB("failed to record withdrawal", err)
		}

		if verdict.InitialStatus == ledger.TransactionStatusCompleted {
			if _, _, err := s.ledgerSvc.AppendPair(txCtx, tx.ID, userID, s.reserve.UserID, amount, tx.Description); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, "withdraw", err)
	}

	s.afterCommit(ctx, tx, userID)
	return tx, nil
}

// Transfer moves money between two users' primary accounts. It records one
// transaction row per side sharing a reference; the posted entry pair lives
// on the debit-side row.
func (s *Service) Transfer(ctx context.Context, senderID, recipientID int64, amount decimal.Decimal) (*ledger.Transaction, *ledger.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if senderID == recipientID {
		return nil, nil, apperr.Validation("recipient_id", "sender and recipient must differ")
	}

	senderAcc, err := s.accounts.GetPrimaryByOwner(ctx, senderID)
	if err != nil {
		return nil, nil, s.fail(ctx, "transfer", mapAccountErr(err))
	}
	recipientAcc, err := s.accounts.GetPrimaryByOwner(ctx, recipientID)
	if err != nil {
		return nil, nil, s.fail(ctx, "transfer", mapAccountErr(err))
	}

	var debitTx, creditTx *ledger.Transaction
	err = s.inTx(ctx, func(txCtx context.Context) error {
		if err := s.lockAccounts(txCtx, senderAcc.ID, recipientAcc.ID); err != nil {
			return err
		}

		verdict, err := s.gate.Check(txCtx, gate.Request{
			ActorUserID:     senderID,
			SourceAccountID: &senderAcc.ID,
			TargetAccountID: &recipientAcc.ID,
			TargetUserID:    &recipientID,
			Amount:          amount,
			Operation:       gate.OpTransfer,
		})
		if err != nil {
			return err
		}

		ref := uuid.New()
		debitTx = &ledger.Transaction{
			Reference:       ref,
			UserID:          senderID,
			AccountID:       senderAcc.ID,
			Amount:          amount,
			Type:            ledger.TransactionTypeTransfer,
			Direction:       ledger.DirectionDebit,
			Status:          verdict.InitialStatus,
			Description:     fmt.Sprintf("transfer to user %d", recipientID),
			KYCStatusAtTime: string(verdict.KYCByUser[senderID]),
		}
		creditTx = &ledger.Transaction{
			Reference:       ref,
			UserID:          recipientID,
			AccountID:       recipientAcc.ID,
			Amount:          amount,
			Type:            ledger.TransactionTypeTransfer,
			Direction:       ledger.DirectionCredit,
			Status:          verdict.InitialStatus,
			Description:     fmt.Sprintf("transfer from user %d", senderID),
			KYCStatusAtTime: string(verdict.KYCByUser[recipientID]),
		}
		if err := s.ledgerRepo.CreateTransaction(txCtx, debitTx); err != nil {
			return apperr.DB("failed to record transfer debit side", err)
		}
		if err := s.ledgerRepo.CreateTransaction(txCtx, creditTx); err != nil {
			return apperr.DB("failed to record transfer credit side", err)
		}

		if verdict.InitialStatus == ledger.TransactionStatusCompleted {
			if _, _, err := s.ledgerSvc.AppendPair(txCtx, debitTx.ID, senderID, recipientID, amount, debitTx.Description); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, s.fail(ctx, "transfer", err)
	}

	s.afterCommit(ctx, debitTx, senderID, recipientID)
	s.notifier.TransactionCommitted(ctx, creditTx)
	return debitTx, creditTx, nil
}

// GetTransaction returns one transaction row.
func (s *Service) GetTransaction(ctx context.Context, id int64) (*ledger.Transaction, error) {
	tx, err := s.ledgerRepo.GetTransaction(ctx, id)
	if err != nil {
		if errors.Is(err, ledger.ErrTransactionNotFound) {
			return nil, apperr.TransactionNotFound()
		}
		return nil, apperr.DB("failed to load transaction", err)
	}
	return tx, nil
}

// ListTransactions returns transaction rows matching the filters.
func (s *Service) ListTransactions(ctx context.Context, filters ledger.TransactionFilters) ([]*ledger.Transaction, error) {
	return s.ledgerRepo.ListTransactions(ctx, filters)
}

// inTx runs fn inside one database transaction.
func (s *Service) inTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	txCtx, err := s.txm.BeginTx(ctx)
	if err != nil {
		return apperr.DB("failed to begin transaction", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = s.txm.RollbackTx(txCtx)
		}
	}()

	if err := fn(txCtx); err != nil {
		return err
	}

	if err := s.txm.CommitTx(txCtx); err != nil {
		return apperr.DB("failed to commit transaction", err)
	}
	committed = true
	return nil
}

// lockAccounts takes row locks on the given accounts in ascending id order
// so concurrent operations on overlapping accounts cannot deadlock.
func (s *Service) lockAccounts(ctx context.Context, ids ...int64) error {
	unique := make(map[int64]struct{}, len(ids))
	ordered := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := unique[id]; ok {
			continue
		}
		unique[id] = struct{}{}
		ordered = append(ordered, id)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	if _, err := s.accounts.LockForUpdate(ctx, ordered); err != nil {
		return apperr.DB("failed to lock accounts", err)
	}
	return nil
}

// fail normalizes an operation error: deadline hits become TIMEOUT,
// integrity violations are logged at critical detail, everything else
// passes through typed.
func (s *Service) fail(ctx context.Context, op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Timeout(err)
	}

	if apperr.IsIntegrity(err) {
		s.logger.WithContext(ctx).WithError(err).Error("integrity violation, rolled back", "operation", op)
		return err
	}

	if e := apperr.As(err); e != nil {
		return e
	}
	return apperr.DB(fmt.Sprintf("%s failed", op), err)
}

// afterCommit runs the post-commit hooks: notification and balance-cache
// invalidation for every affected user.
func (s *Service) afterCommit(ctx context.Context, tx *ledger.Transaction, userIDs ...int64) {
	s.notifier.TransactionCommitted(ctx, tx)
	s.balances.InvalidateUsers(ctx, append(userIDs, s.reserve.UserID)...)
}

func mapAccountErr(err error) error {
	if errors.Is(err, account.ErrAccountNotFound) || errors.Is(err, account.ErrNoPrimaryAccount) {
		return apperr.AccountNotFound()
	}
	return apperr.DB("failed to resolve account", err)
}
