package balance

import (
	"context"

	"github.com/shopspring/decimal"
)

// LedgerReader provides the aggregate queries balances are derived from.
// Implementations must honor an in-flight database transaction carried in
// the context so the gate reads balances under its row locks.
type LedgerReader interface {
	// SumPostedByUser returns the posted credit and debit totals for a
	// user. Reversed entries stay in the totals; their compensating pair
	// cancels them. The treasury seed's self-debit is excluded: it records
	// an external injection, not money the system user spent.
	SumPostedByUser(ctx context.Context, userID int64) (credits, debits decimal.Decimal, err error)

	// SumHeldByUser totals pending and blocked transactions for a user,
	// split by direction.
	SumHeldByUser(ctx context.Context, userID int64) (incoming, outgoing decimal.Decimal, err error)

	// SystemSums returns ledger-wide posted totals and the net position
	// across all users.
	SystemSums(ctx context.Context) (credits, debits, userNet decimal.Decimal, err error)
}

// Cache holds recently computed snapshots. A miss is (nil, nil).
type Cache interface {
	GetSnapshot(ctx context.Context, userID int64) (*Snapshot, error)
	SetSnapshot(ctx context.Context, snapshot *Snapshot) error
	Invalidate(ctx context.Context, userIDs ...int64) error
}
