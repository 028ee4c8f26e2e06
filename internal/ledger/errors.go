package ledger

import "errors"

var (
	// ErrInvalidEntryType is returned when an entry is neither debit nor credit
	ErrInvalidEntryType = errors.New("invalid entry type")

	// ErrInvalidEntryStatus is returned when an entry status is not a known state
	ErrInvalidEntryStatus = errors.New("invalid entry status")

	// ErrNonPositiveAmount is returned when an amount is zero or negative
	ErrNonPositiveAmount = errors.New("amount must be positive")

	// ErrInvalidTransactionType is returned for an unknown transaction type
	ErrInvalidTransactionType = errors.New("invalid transaction type")

	// ErrInvalidDirection is returned for an unknown transaction direction
	ErrInvalidDirection = errors.New("invalid transaction direction")

	// ErrInvalidTransactionStatus is returned for an unknown transaction status
	ErrInvalidTransactionStatus = errors.New("invalid transaction status")

	// ErrMissingUserBinding is returned when a transaction has no user
	ErrMissingUserBinding = errors.New("transaction must reference a user")

	// ErrMissingAccountBinding is returned when a transaction has no account
	ErrMissingAccountBinding = errors.New("transaction must reference an account")

	// ErrTransactionNotFound is returned when a transaction does not exist
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrEntryPairNotFound is returned when a transaction has no posted pair
	ErrEntryPairNotFound = errors.New("entry pair not found")

	// ErrAlreadyReversed is returned when a transaction's entries were reversed before
	ErrAlreadyReversed = errors.New("transaction already reversed")

	// ErrPairNotPosted is returned when reversal targets entries that never posted
	ErrPairNotPosted = errors.New("entry pair is not posted")
)
