package reconcile

import "github.com/shopspring/decimal"

// Result describes one account's reconciliation outcome.
type Result struct {
	AccountID     int64
	AccountNumber string
	Cached        decimal.Decimal
	Derived       decimal.Decimal
	Drift         decimal.Decimal
	Repaired      bool
}

// Summary aggregates one reconciliation pass. Results holds only the
// accounts whose cached balance drifted from the ledger.
type Summary struct {
	Checked  int
	Repaired int
	Results  []Result
}
