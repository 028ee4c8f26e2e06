// Package apperr defines the typed error codes shared by every service.
//
// Codes fall into five classes. Validation and state errors are returned to
// the caller verbatim, with the offending field when known. Policy errors
// are admission refusals. Integrity errors signal a bug, roll the operation
// back and are logged at critical severity. Infrastructure errors may be
// retried once by the caller.
package apperr

import (
	"errors"
	"fmt"
)

// Validation codes.
const (
	CodeInvalidAmount       = "INVALID_AMOUNT"
	CodeUserNotFound        = "USER_NOT_FOUND"
	CodeAccountNotFound     = "ACCOUNT_NOT_FOUND"
	CodeTransactionNotFound = "TRANSACTION_NOT_FOUND"
	CodeOwnershipViolation  = "OWNERSHIP_VIOLATION"
	CodeEmailTaken          = "EMAIL_TAKEN"
	CodeValidation          = "VALIDATION"
)

// State codes.
const (
	CodeActorInactive   = "ACTOR_INACTIVE"
	CodeAccountFrozen   = "ACCOUNT_FROZEN"
	CodeAccountClosed   = "ACCOUNT_CLOSED"
	CodeKYCRejected     = "KYC_REJECTED"
	CodeAlreadyReversed = "ALREADY_REVERSED"
)

// Policy codes.
const (
	CodeInsufficientFunds    = "INSUFFICIENT_FUNDS"
	CodeNotAdmin             = "NOT_ADMIN"
	CodeAmountExceedsCeiling = "AMOUNT_EXCEEDS_CEILING"
	CodeUnauthorized         = "UNAUTHORIZED"
)

// Integrity codes. Never user-facing.
const (
	CodeOrphanedUser          = "ORPHANED_USER"
	CodeLedgerImbalance       = "LEDGER_IMBALANCE"
	CodeMissingAccountBinding = "MISSING_ACCOUNT_BINDING"
)

// Infrastructure codes.
const (
	CodeTimeout = "TIMEOUT"
	CodeDB      = "DB_ERROR"
)

// Kind classifies a code for propagation decisions.
type Kind int

const (
	KindValidation Kind = iota
	KindState
	KindPolicy
	KindIntegrity
	KindInfrastructure
)

var kindByCode = map[string]Kind{
	CodeInvalidAmount:       KindValidation,
	CodeUserNotFound:        KindValidation,
	CodeAccountNotFound:     KindValidation,
	CodeTransactionNotFound: KindValidation,
	CodeOwnershipViolation:  KindValidation,
	CodeEmailTaken:          KindValidation,
	CodeValidation:          KindValidation,

	CodeActorInactive:   KindState,
	CodeAccountFrozen:   KindState,
	CodeAccountClosed:   KindState,
	CodeKYCRejected:     KindState,
	CodeAlreadyReversed: KindState,

	CodeInsufficientFunds:    KindPolicy,
	CodeNotAdmin:             KindPolicy,
	CodeAmountExceedsCeiling: KindPolicy,
	CodeUnauthorized:         KindPolicy,

	CodeOrphanedUser:          KindIntegrity,
	CodeLedgerImbalance:       KindIntegrity,
	CodeMissingAccountBinding: KindIntegrity,

	CodeTimeout: KindInfrastructure,
	CodeDB:      KindInfrastructure,
}

// Error carries a stable code, a caller-safe message, and optionally the
// offending field and an underlying cause. The message never contains
// internal identifiers.
type Error struct {
	Code    string
	Message string
	Field   string
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Field != "":
		return fmt.Sprintf("%s (%s): %s: %v", e.Code, e.Field, e.Message, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	case e.Field != "":
		return fmt.Sprintf("%s (%s): %s", e.Code, e.Field, e.Message)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// Kind returns the propagation class of the error's code.
func (e *Error) Kind() Kind {
	if k, ok := kindByCode[e.Code]; ok {
		return k
	}
	return KindInfrastructure
}

// New creates an Error with the given code and message.
func New(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// WithField returns a copy of the error naming the offending field.
func (e *Error) WithField(field string) *Error {
	dup := *e
	dup.Field = field
	return &dup
}

// InvalidAmount creates an INVALID_AMOUNT error for the named field.
func InvalidAmount(field, message string) *Error {
	return &Error{Code: CodeInvalidAmount, Message: message, Field: field}
}

// UserNotFound creates a USER_NOT_FOUND error.
func UserNotFound() *Error {
	return &Error{Code: CodeUserNotFound, Message: "user not found"}
}

// AccountNotFound creates an ACCOUNT_NOT_FOUND error.
func AccountNotFound() *Error {
	return &Error{Code: CodeAccountNotFound, Message: "account not found"}
}

// TransactionNotFound creates a TRANSACTION_NOT_FOUND error.
func TransactionNotFound() *Error {
	return &Error{Code: CodeTransactionNotFound, Message: "transaction not found"}
}

// OwnershipViolation creates an OWNERSHIP_VIOLATION error.
func OwnershipViolation(message string) *Error {
	return &Error{Code: CodeOwnershipViolation, Message: message, Field: "account_id"}
}

// EmailTaken creates an EMAIL_TAKEN error.
func EmailTaken() *Error {
	return &Error{Code: CodeEmailTaken, Message: "email is already registered", Field: "email"}
}

// ActorInactive creates an ACTOR_INACTIVE error.
func ActorInactive(message string) *Error {
	return &Error{Code: CodeActorInactive, Message: message}
}

// AccountFrozen creates an ACCOUNT_FROZEN error.
func AccountFrozen() *Error {
	return &Error{Code: CodeAccountFrozen, Message: "account is frozen"}
}

// AccountClosed creates an ACCOUNT_CLOSED error.
func AccountClosed() *Error {
	return &Error{Code: CodeAccountClosed, Message: "account is closed"}
}

// KYCRejected creates a KYC_REJECTED error.
func KYCRejected() *Error {
	return &Error{Code: CodeKYCRejected, Message: "identity verification was rejected"}
}

// AlreadyReversed creates an ALREADY_REVERSED error.
func AlreadyReversed() *Error {
	return &Error{Code: CodeAlreadyReversed, Message: "transaction is already reversed"}
}

// InsufficientFunds creates an INSUFFICIENT_FUNDS error.
func InsufficientFunds() *Error {
	return &Error{Code: CodeInsufficientFunds, Message: "insufficient funds", Field: "amount"}
}

// NotAdmin creates a NOT_ADMIN error.
func NotAdmin() *Error {
	return &Error{Code: CodeNotAdmin, Message: "operation requires an admin actor"}
}

// AmountExceedsCeiling creates an AMOUNT_EXCEEDS_CEILING error.
func AmountExceedsCeiling(message string) *Error {
	return &Error{Code: CodeAmountExceedsCeiling, Message: message, Field: "amount"}
}

// Unauthorized creates an UNAUTHORIZED error.
func Unauthorized(message string) *Error {
	return &Error{Code: CodeUnauthorized, Message: message}
}

// Validation creates a VALIDATION error for the named field.
func Validation(field, message string) *Error {
	return &Error{Code: CodeValidation, Message: message, Field: field}
}

// LedgerImbalance creates a LEDGER_IMBALANCE integrity error.
func LedgerImbalance(message string, err error) *Error {
	return &Error{Code: CodeLedgerImbalance, Message: message, Err: err}
}

// OrphanedUser creates an ORPHANED_USER integrity error.
func OrphanedUser(message string) *Error {
	return &Error{Code: CodeOrphanedUser, Message: message}
}

// MissingAccountBinding creates a MISSING_ACCOUNT_BINDING integrity error.
func MissingAccountBinding(message string) *Error {
	return &Error{Code: CodeMissingAccountBinding, Message: message}
}

// Timeout creates a TIMEOUT error.
func Timeout(err error) *Error {
	return &Error{Code: CodeTimeout, Message: "operation deadline exceeded", Err: err}
}

// DB wraps a database failure.
func DB(message string, err error) *Error {
	return &Error{Code: CodeDB, Message: message, Err: err}
}

// Is reports whether err carries the given code.
func Is(err error, code string) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// As extracts an *Error from err, or nil.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}

// IsIntegrity reports whether err is an integrity violation.
func IsIntegrity(err error) bool {
	e := As(err)
	return e != nil && e.Kind() == KindIntegrity
}

// IsInfrastructure reports whether err is an infrastructure failure.
func IsInfrastructure(err error) bool {
	e := As(err)
	return e != nil && e.Kind() == KindInfrastructure
}
