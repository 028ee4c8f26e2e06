package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ferrobank/ferro/internal/ledger"
	"github.com/ferrobank/ferro/pkg/money"
)

// LedgerRepo implements ledger.Repository and the balance aggregation
// queries against the in-memory DB
type LedgerRepo struct {
	db *DB
}

// CreateTransaction inserts a transaction row and fills in the generated ID
func (r *LedgerRepo) CreateTransaction(ctx context.Context, tx *ledger.Transaction) error {
	if err := tx.Validate(); err != nil {
		return fmt.Errorf("invalid transaction: %w", err)
	}

	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	now := time.Now().UTC()
	tx.ID = r.db.nextTxID
	tx.CreatedAt = now
	tx.UpdatedAt = now
	r.db.nextTxID++

	r.db.transactions[tx.ID] = copyTransaction(tx)
	return nil
}

// GetTransaction retrieves a transaction by ID
func (r *LedgerRepo) GetTransaction(ctx context.Context, id int64) (*ledger.Transaction, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	tx, ok := r.db.transactions[id]
	if !ok {
		return nil, ledger.ErrTransactionNotFound
	}
	return copyTransaction(tx), nil
}

// GetTransactionsByReference returns all rows sharing one movement reference
func (r *LedgerRepo) GetTransactionsByReference(ctx context.Context, ref uuid.UUID) ([]*ledger.Transaction, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var out []*ledger.Transaction
	for _, id := range sortedIDs(r.db.transactions) {
		if r.db.transactions[id].Reference == ref {
			out = append(out, copyTransaction(r.db.transactions[id]))
		}
	}
	return out, nil
}

// UpdateTransactionStatus transitions a transaction's status
func (r *LedgerRepo) UpdateTransactionStatus(ctx context.Context, id int64, status ledger.TransactionStatus) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	tx, ok := r.db.transactions[id]
	if !ok {
		return ledger.ErrTransactionNotFound
	}
	tx.Status = status
	tx.UpdatedAt = time.Now().UTC()
	return nil
}

// SetKYCStatusAtTime refreshes the per-row KYC snapshot
func (r *LedgerRepo) SetKYCStatusAtTime(ctx context.Context, id int64, kycStatus string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	tx, ok := r.db.transactions[id]
	if !ok {
		return ledger.ErrTransactionNotFound
	}
	tx.KYCStatusAtTime = kycStatus
	tx.UpdatedAt = time.Now().UTC()
	return nil
}

// ListTransactions lists transactions with filters and pagination, newest
// first
func (r *LedgerRepo) ListTransactions(ctx context.Context, filters ledger.TransactionFilters) ([]*ledger.Transaction, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var out []*ledger.Transaction
	for _, tx := range r.db.transactions {
		if filters.UserID != nil && tx.UserID != *filters.UserID {
			continue
		}
		if filters.AccountID != nil && tx.AccountID != *filters.AccountID {
			continue
		}
		if filters.Type != nil && tx.Type != *filters.Type {
			continue
		}
		if filters.Status != nil && tx.Status != *filters.Status {
			continue
		}
		out = append(out, copyTransaction(tx))
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if filters.Offset > 0 {
		if filters.Offset >= len(out) {
			return nil, nil
		}
		out = out[filters.Offset:]
	}
	if filters.Limit > 0 && filters.Limit < len(out) {
		out = out[:filters.Limit]
	}
	return out, nil
}

// ListPendingByUser returns the user's pending transactions, oldest first
func (r *LedgerRepo) ListPendingByUser(ctx context.Context, userID int64) ([]*ledger.Transaction, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var out []*ledger.Transaction
	for _, id := range sortedIDs(r.db.transactions) {
		tx := r.db.transactions[id]
		if tx.UserID == userID && tx.Status == ledger.TransactionStatusPending {
			out = append(out, copyTransaction(tx))
		}
	}
	return out, nil
}

// CreateEntry inserts a ledger entry and fills in the generated ID
func (r *LedgerRepo) CreateEntry(ctx context.Context, entry *ledger.Entry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("invalid entry: %w", err)
	}

	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.transactions[entry.TransactionID]; !ok {
		return fmt.Errorf("transaction %d does not exist", entry.TransactionID)
	}

	entry.ID = r.db.nextEntryID
	entry.CreatedAt = time.Now().UTC()
	r.db.nextEntryID++

	r.db.entries[entry.ID] = copyEntry(entry)
	return nil
}

// SetRelatedEntry pairs an entry with its counterpart
func (r *LedgerRepo) SetRelatedEntry(ctx context.Context, entryID, relatedID int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	e, ok := r.db.entries[entryID]
	if !ok {
		return fmt.Errorf("entry %d does not exist", entryID)
	}
	if _, ok := r.db.entries[relatedID]; !ok {
		return fmt.Errorf("related entry %d does not exist", relatedID)
	}
	e.RelatedEntryID = &relatedID
	return nil
}

// GetEntriesByTransaction returns a transaction's entries in insert order
func (r *LedgerRepo) GetEntriesByTransaction(ctx context.Context, transactionID int64) ([]*ledger.Entry, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var out []*ledger.Entry
	for _, id := range sortedIDs(r.db.entries) {
		if r.db.entries[id].TransactionID == transactionID {
			out = append(out, copyEntry(r.db.entries[id]))
		}
	}
	return out, nil
}

// MarkEntriesReversed flips a transaction's posted entries to reversed
func (r *LedgerRepo) MarkEntriesReversed(ctx context.Context, transactionID int64, reversedAt time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	marked := 0
	for _, e := range r.db.entries {
		if e.TransactionID == transactionID && e.Status == ledger.EntryStatusPosted {
			e.Status = ledger.EntryStatusReversed
			t := reversedAt
			e.ReversedAt = &t
			marked++
		}
	}
	if marked == 0 {
		return ledger.ErrEntryPairNotFound
	}
	return nil
}

// Balance aggregation

// SumPostedByUser returns the user's posted credit and debit totals.
// Reversed entries stay in the sum; the compensating pair cancels them.
// The treasury seed's self-debit is excluded.
func (r *LedgerRepo) SumPostedByUser(ctx context.Context, userID int64) (credits, debits decimal.Decimal, err error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	credits, debits = decimal.Zero, decimal.Zero
	for _, e := range r.db.entries {
		if e.UserID != userID || !affectsBalance(e) {
			continue
		}
		if r.isSeedDebit(e) {
			continue
		}
		if e.IsCredit() {
			credits = credits.Add(e.Amount)
		} else {
			debits = debits.Add(e.Amount)
		}
	}
	return credits, debits, nil
}

// SumHeldByUser totals the user's pending and blocked transactions by
// direction
func (r *LedgerRepo) SumHeldByUser(ctx context.Context, userID int64) (incoming, outgoing decimal.Decimal, err error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	incoming, outgoing = decimal.Zero, decimal.Zero
	for _, tx := range r.db.transactions {
		if tx.UserID != userID || !tx.IsHeld() {
			continue
		}
		if tx.Direction == ledger.DirectionCredit {
			incoming = incoming.Add(tx.Amount)
		} else {
			outgoing = outgoing.Add(tx.Amount)
		}
	}
	return incoming, outgoing, nil
}

// SystemSums returns ledger-wide posted totals and the net position across
// all users
func (r *LedgerRepo) SystemSums(ctx context.Context) (credits, debits, userNet decimal.Decimal, err error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	credits, debits, userNet = decimal.Zero, decimal.Zero, decimal.Zero
	for _, e := range r.db.entries {
		if !affectsBalance(e) {
			continue
		}
		if e.IsCredit() {
			credits = credits.Add(e.Amount)
		} else {
			debits = debits.Add(e.Amount)
		}
		if !r.isSeedDebit(e) {
			userNet = userNet.Add(e.SignedAmount())
		}
	}
	return credits, debits, userNet, nil
}

// Invariant scans

// FindUnbalancedTransactions returns transactions whose entry sides do not
// sum equal
func (r *LedgerRepo) FindUnbalancedTransactions(ctx context.Context) ([]ledger.Imbalance, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	type sums struct{ debit, credit decimal.Decimal }
	byTx := make(map[int64]*sums)
	for _, e := range r.db.entries {
		s, ok := byTx[e.TransactionID]
		if !ok {
			s = &sums{debit: decimal.Zero, credit: decimal.Zero}
			byTx[e.TransactionID] = s
		}
		if e.IsDebit() {
			s.debit = s.debit.Add(e.Amount)
		} else {
			s.credit = s.credit.Add(e.Amount)
		}
	}

	var out []ledger.Imbalance
	for _, id := range sortedIDs(byTx) {
		s := byTx[id]
		if !s.debit.Equal(s.credit) {
			out = append(out, ledger.Imbalance{
				TransactionID: id,
				DebitTotal:    money.Format(s.debit),
				CreditTotal:   money.Format(s.credit),
			})
		}
	}
	return out, nil
}

// FindUnpairedEntries returns entries that never got a related entry
func (r *LedgerRepo) FindUnpairedEntries(ctx context.Context) ([]int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var out []int64
	for _, id := range sortedIDs(r.db.entries) {
		if r.db.entries[id].RelatedEntryID == nil {
			out = append(out, id)
		}
	}
	return out, nil
}

// FindNonPositiveEntries returns entries whose amount is zero or negative
func (r *LedgerRepo) FindNonPositiveEntries(ctx context.Context) ([]int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var out []int64
	for _, id := range sortedIDs(r.db.entries) {
		if !r.db.entries[id].Amount.IsPositive() {
			out = append(out, id)
		}
	}
	return out, nil
}

// FindUnbound returns transactions missing their user or account binding.
// A zero id stands in for SQL NULL.
func (r *LedgerRepo) FindUnbound(ctx context.Context) ([]int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var out []int64
	for _, id := range sortedIDs(r.db.transactions) {
		tx := r.db.transactions[id]
		if tx.UserID == 0 || tx.AccountID == 0 {
			out = append(out, id)
		}
	}
	return out, nil
}

// isSeedDebit reports whether the entry is the treasury seed's self-debit.
// Callers must hold db.mu.
func (r *LedgerRepo) isSeedDebit(e *ledger.Entry) bool {
	if !e.IsDebit() {
		return false
	}
	tx, ok := r.db.transactions[e.TransactionID]
	return ok && tx.Type == ledger.TransactionTypeSystemSeed
}

// affectsBalance reports whether the entry counts toward balance sums.
func affectsBalance(e *ledger.Entry) bool {
	return e.Status == ledger.EntryStatusPosted || e.Status == ledger.EntryStatusReversed
}
