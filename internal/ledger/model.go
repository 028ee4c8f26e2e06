package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryType represents the side of a double-entry record
type EntryType string

const (
	EntryTypeDebit  EntryType = "debit"
	EntryTypeCredit EntryType = "credit"
)

// EntryStatus represents the lifecycle state of a ledger entry
type EntryStatus string

const (
	EntryStatusPending  EntryStatus = "pending"
	EntryStatusPosted   EntryStatus = "posted"
	EntryStatusReversed EntryStatus = "reversed"
)

// Entry represents one half of a double-entry record. Entries are immutable
// except for setting RelatedEntryID inside the writing transaction and the
// posted→reversed transition performed by the reversal path.
type Entry struct {
	ID                int64
	UserID            int64
	EntryType         EntryType
	Amount            decimal.Decimal
	TransactionID     int64
	RelatedEntryID    *int64
	SourceUserID      *int64
	DestinationUserID *int64
	Description       string
	Status            EntryStatus
	CreatedAt         time.Time
	PostedAt          *time.Time
	ReversedAt        *time.Time
}

// Validate checks the entry's enum fields and amount
func (e *Entry) Validate() error {
	if e.EntryType != EntryTypeDebit && e.EntryType != EntryTypeCredit {
		return ErrInvalidEntryType
	}

	switch e.Status {
	case EntryStatusPending, EntryStatusPosted, EntryStatusReversed:
	default:
		return ErrInvalidEntryStatus
	}

	if !e.Amount.IsPositive() {
		return ErrNonPositiveAmount
	}

	return nil
}

// IsDebit returns true if this entry is a debit
func (e *Entry) IsDebit() bool {
	return e.EntryType == EntryTypeDebit
}

// IsCredit returns true if this entry is a credit
func (e *Entry) IsCredit() bool {
	return e.EntryType == EntryTypeCredit
}

// SignedAmount returns the amount signed for balance math.
// Credits are positive, debits are negative.
func (e *Entry) SignedAmount() decimal.Decimal {
	if e.IsDebit() {
		return e.Amount.Neg()
	}
	return e.Amount
}

// TransactionType classifies the business intent of a transaction
type TransactionType string

const (
	TransactionTypeDeposit      TransactionType = "deposit"
	TransactionTypeWithdrawal   TransactionType = "withdrawal"
	TransactionTypeTransfer     TransactionType = "transfer"
	TransactionTypeFundTransfer TransactionType = "fund_transfer"
	TransactionTypeInterest     TransactionType = "interest"
	TransactionTypeReversal     TransactionType = "reversal"
	TransactionTypeSystemSeed   TransactionType = "system_seed"
)

// IsValid checks if the transaction type is part of the closed enum
func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypeDeposit, TransactionTypeWithdrawal, TransactionTypeTransfer,
		TransactionTypeFundTransfer, TransactionTypeInterest, TransactionTypeReversal,
		TransactionTypeSystemSeed:
		return true
	}
	return false
}

// Direction marks which side of the movement this transaction row records
type Direction string

const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

// TransactionStatus represents the lifecycle state of a transaction
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusBlocked   TransactionStatus = "blocked"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusCancelled TransactionStatus = "cancelled"
)

// IsValid checks if the status is a known enum value
func (s TransactionStatus) IsValid() bool {
	switch s {
	case TransactionStatusPending, TransactionStatusBlocked, TransactionStatusCompleted,
		TransactionStatusFailed, TransactionStatusCancelled:
		return true
	}
	return false
}

// Transaction is the business-level record of one side of a money movement.
// A user-to-user transfer produces two rows sharing one Reference; every
// completed transaction is backed by exactly one posted entry pair.
type Transaction struct {
	ID              int64
	Reference       uuid.UUID
	UserID          int64
	AccountID       int64
	Amount          decimal.Decimal
	Type            TransactionType
	Direction       Direction
	Status          TransactionStatus
	Description     string
	KYCStatusAtTime string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Validate checks the transaction's enum fields, bindings, and amount
func (t *Transaction) Validate() error {
	if !t.Type.IsValid() {
		return ErrInvalidTransactionType
	}

	switch t.Direction {
	case DirectionCredit, DirectionDebit:
	default:
		return ErrInvalidDirection
	}

	if !t.Status.IsValid() {
		return ErrInvalidTransactionStatus
	}

	if t.UserID == 0 {
		return ErrMissingUserBinding
	}
	if t.AccountID == 0 {
		return ErrMissingAccountBinding
	}
	if !t.Amount.IsPositive() {
		return ErrNonPositiveAmount
	}

	return nil
}

// IsHeld reports whether the transaction's funds are on hold rather than
// reflected in the ledger.
func (t *Transaction) IsHeld() bool {
	return t.Status == TransactionStatusPending || t.Status == TransactionStatusBlocked
}

// IsFinal reports whether the transaction can no longer change state.
func (t *Transaction) IsFinal() bool {
	return t.Status == TransactionStatusFailed || t.Status == TransactionStatusCancelled
}
