package gate

import (
	"github.com/shopspring/decimal"

	"github.com/ferrobank/ferro/internal/ledger"
	"github.com/ferrobank/ferro/internal/platform/user"
)

// Operation names the movement being gated
type Operation string

const (
	OpDeposit    Operation = "deposit"
	OpWithdrawal Operation = "withdrawal"
	OpTransfer   Operation = "transfer"
	OpAdminFund  Operation = "admin_fund"
)

// Request describes a proposed money movement before any ledger write.
// TargetUserID names the claimed owner of the target account when that is
// not the actor, e.g. the recipient of a transfer.
type Request struct {
	ActorUserID     int64
	SourceAccountID *int64
	TargetAccountID *int64
	TargetUserID    *int64
	Amount          decimal.Decimal
	Operation       Operation
}

// Verdict is a positive admission decision. Refusals are returned as typed
// errors, never as a verdict.
type Verdict struct {
	InitialStatus ledger.TransactionStatus
	Reason        string

	// KYCByUser snapshots each party's verification state at admission
	// time for the transaction's kyc_status_at_time field.
	KYCByUser map[int64]user.KYCStatus
}
