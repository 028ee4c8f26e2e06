package account

import "errors"

// Account validation errors
var (
	ErrAccountNotFound        = errors.New("account not found")
	ErrMissingOwner           = errors.New("account must have an owner")
	ErrMissingAccountNumber   = errors.New("account number is required")
	ErrInvalidAccountType     = errors.New("invalid account type")
	ErrInvalidStatus          = errors.New("invalid account status")
	ErrAdminFlagOnNonTreasury = errors.New("only treasury accounts may be admin accounts")
	ErrNoPrimaryAccount       = errors.New("user has no primary account")
)
