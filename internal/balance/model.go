package balance

import (
	"time"

	"github.com/shopspring/decimal"
)

// Breakdown itemizes how a user's balance position was derived.
type Breakdown struct {
	PostedCredits decimal.Decimal
	PostedDebits  decimal.Decimal
	HeldIncoming  decimal.Decimal
	HeldOutgoing  decimal.Decimal
}

// Snapshot is a user's balance position at a point in time. Available is
// derived from ledger entries that reached the book (posted, including
// later-reversed ones); Held covers pending and blocked transactions, which
// never contribute to Available.
type Snapshot struct {
	UserID    int64
	Available decimal.Decimal
	Held      decimal.Decimal
	Breakdown Breakdown
	AsOf      time.Time
}

// SystemTotals aggregates the whole ledger. A balanced ledger keeps
// TotalCredits equal to TotalDebits; SumUserBalances equals the net of
// external injections (the treasury seed) rather than zero.
type SystemTotals struct {
	TotalCreditsPosted decimal.Decimal
	TotalDebitsPosted  decimal.Decimal
	SumUserBalances    decimal.Decimal
}
