package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for ledger persistence operations
type Repository interface {
	// Transaction operations
	CreateTransaction(ctx context.Context, tx *Transaction) error
	GetTransaction(ctx context.Context, id int64) (*Transaction, error)
	GetTransactionsByReference(ctx context.Context, ref uuid.UUID) ([]*Transaction, error)
	UpdateTransactionStatus(ctx context.Context, id int64, status TransactionStatus) error
	SetKYCStatusAtTime(ctx context.Context, id int64, kycStatus string) error
	ListTransactions(ctx context.Context, filters TransactionFilters) ([]*Transaction, error)
	ListPendingByUser(ctx context.Context, userID int64) ([]*Transaction, error)

	// Entry operations. Entries are immutable except for pairing and reversal.
	CreateEntry(ctx context.Context, entry *Entry) error
	SetRelatedEntry(ctx context.Context, entryID, relatedID int64) error
	GetEntriesByTransaction(ctx context.Context, transactionID int64) ([]*Entry, error)
	MarkEntriesReversed(ctx context.Context, transactionID int64, reversedAt time.Time) error

	// Invariant scans
	FindUnbalancedTransactions(ctx context.Context) ([]Imbalance, error)
	FindUnpairedEntries(ctx context.Context) ([]int64, error)
	FindNonPositiveEntries(ctx context.Context) ([]int64, error)
}

// TransactionFilters defines filters for listing transactions
type TransactionFilters struct {
	UserID    *int64
	AccountID *int64
	Type      *TransactionType
	Status    *TransactionStatus
	Limit     int
	Offset    int
}

// Imbalance describes a transaction whose entry sides do not sum equal
type Imbalance struct {
	TransactionID int64
	DebitTotal    string
	CreditTotal   string
}
