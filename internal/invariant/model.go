package invariant

import "github.com/ferrobank/ferro/internal/ledger"

// Report is the outcome of one integrity sweep. Slices hold the offenders
// found; the Repaired counters say how many of them the sweep fixed.
type Report struct {
	OrphanedUsers       []int64
	OwnerlessAccounts   []int64
	UnboundTransactions []int64
	InvalidKYCUsers     []int64
	Imbalances          []ledger.Imbalance
	UnpairedEntries     []int64
	NonPositiveEntries  []int64

	RepairedAccounts int
	RepairedKYC      int
}

// Clean reports whether the sweep found nothing wrong.
func (r *Report) Clean() bool {
	return len(r.OrphanedUsers) == 0 &&
		len(r.OwnerlessAccounts) == 0 &&
		len(r.UnboundTransactions) == 0 &&
		len(r.InvalidKYCUsers) == 0 &&
		len(r.Imbalances) == 0 &&
		len(r.UnpairedEntries) == 0 &&
		len(r.NonPositiveEntries) == 0
}
