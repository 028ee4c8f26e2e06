package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ferrobank/ferro/internal/apperr"
)

// Service records money movements as balanced entry pairs. It never opens
// its own database transaction; callers compose it inside theirs so the
// pair commits or rolls back together with the rest of the operation.
type Service struct {
	repo Repository
}

// NewService creates a new ledger service
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// AppendPair inserts one debit and one credit entry of equal amount for the
// given transaction and links them through RelatedEntryID in both directions.
// Any failure is reported as LEDGER_IMBALANCE so the enclosing database
// transaction rolls back.
func (s *Service) AppendPair(ctx context.Context, transactionID, debitUserID, creditUserID int64, amount decimal.Decimal, description string) (debitID, creditID int64, err error) {
	if !amount.IsPositive() {
		return 0, 0, apperr.LedgerImbalance("entry amount must be positive", ErrNonPositiveAmount)
	}

	now := time.Now().UTC()

	debit := &Entry{
		UserID:            debitUserID,
		EntryType:         EntryTypeDebit,
		Amount:            amount,
		TransactionID:     transactionID,
		SourceUserID:      &debitUserID,
		DestinationUserID: &creditUserID,
		Description:       description,
		Status:            EntryStatusPosted,
		PostedAt:          &now,
	}
	if err := s.repo.CreateEntry(ctx, debit); err != nil {
		return 0, 0, apperr.LedgerImbalance("failed to write debit entry", err)
	}

	credit := &Entry{
		UserID:            creditUserID,
		EntryType:         EntryTypeCredit,
		Amount:            amount,
		TransactionID:     transactionID,
		SourceUserID:      &debitUserID,
		DestinationUserID: &creditUserID,
		Description:       description,
		Status:            EntryStatusPosted,
		PostedAt:          &now,
	}
	if err := s.repo.CreateEntry(ctx, credit); err != nil {
		return 0, 0, apperr.LedgerImbalance("failed to write credit entry", err)
	}

	if err := s.repo.SetRelatedEntry(ctx, debit.ID, credit.ID); err != nil {
		return 0, 0, apperr.LedgerImbalance("failed to pair debit entry", err)
	}
	if err := s.repo.SetRelatedEntry(ctx, credit.ID, debit.ID); err != nil {
		return 0, 0, apperr.LedgerImbalance("failed to pair credit entry", err)
	}

	return debit.ID, credit.ID, nil
}

// Reverse creates a compensating transaction for a posted entry pair and
// marks the original entries reversed. The original rows are never deleted.
// Callers must run it inside a database transaction.
func (s *Service) Reverse(ctx context.Context, transactionID int64, reason string) (*Transaction, error) {
	original, err := s.repo.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	entries, err := s.repo.GetEntriesByTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if len(entries) != 2 {
		return nil, fmt.Errorf("transaction %d has %d entries: %w", transactionID, len(entries), ErrEntryPairNotFound)
	}

	var origDebit, origCredit *Entry
	for _, e := range entries {
		if e.Status == EntryStatusReversed {
			return nil, ErrAlreadyReversed
		}
		if e.Status != EntryStatusPosted {
			return nil, ErrPairNotPosted
		}
		switch e.EntryType {
		case EntryTypeDebit:
			origDebit = e
		case EntryTypeCredit:
			origCredit = e
		}
	}
	if origDebit == nil || origCredit == nil {
		return nil, ErrEntryPairNotFound
	}

	reversal := &Transaction{
		Reference:       uuid.New(),
		UserID:          original.UserID,
		AccountID:       original.AccountID,
		Amount:          original.Amount,
		Type:            TransactionTypeReversal,
		Direction:       oppositeDirection(original.Direction),
		Status:          TransactionStatusCompleted,
		Description:     fmt.Sprintf("reversal of transaction %d: %s", transactionID, reason),
		KYCStatusAtTime: original.KYCStatusAtTime,
	}
	if err := s.repo.CreateTransaction(ctx, reversal); err != nil {
		return nil, err
	}

	// Opposite direction: debit the original credit party, credit the
	// original debit party.
	if _, _, err := s.AppendPair(ctx, reversal.ID, origCredit.UserID, origDebit.UserID, original.Amount, reversal.Description); err != nil {
		return nil, err
	}

	if err := s.repo.MarkEntriesReversed(ctx, transactionID, time.Now().UTC()); err != nil {
		return nil, err
	}

	return reversal, nil
}

// GetTransaction retrieves a transaction by ID
func (s *Service) GetTransaction(ctx context.Context, id int64) (*Transaction, error) {
	return s.repo.GetTransaction(ctx, id)
}

// GetTransactionsByReference returns all rows sharing one movement reference
func (s *Service) GetTransactionsByReference(ctx context.Context, ref uuid.UUID) ([]*Transaction, error) {
	return s.repo.GetTransactionsByReference(ctx, ref)
}

// ListTransactions lists transactions with filters
func (s *Service) ListTransactions(ctx context.Context, filters TransactionFilters) ([]*Transaction, error) {
	return s.repo.ListTransactions(ctx, filters)
}

// VerifyBalanced scans the whole ledger for broken bookkeeping: transactions
// whose sides do not sum equal, entries that never got a pair, and amounts
// that should have been rejected at the gate.
func (s *Service) VerifyBalanced(ctx context.Context) ([]Imbalance, []int64, []int64, error) {
	imbalances, err := s.repo.FindUnbalancedTransactions(ctx)
	if err != nil {
		return nil, nil, nil, err
	}

	unpaired, err := s.repo.FindUnpairedEntries(ctx)
	if err != nil {
		return nil, nil, nil, err
	}

	nonPositive, err := s.repo.FindNonPositiveEntries(ctx)
	if err != nil {
		return nil, nil, nil, err
	}

	return imbalances, unpaired, nonPositive, nil
}

func oppositeDirection(d Direction) Direction {
	if d == DirectionCredit {
		return DirectionDebit
	}
	return DirectionCredit
}
