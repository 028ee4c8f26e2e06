package user

import "errors"

// User validation errors
var (
	ErrInvalidEmail        = errors.New("invalid email address")
	ErrInvalidFullName     = errors.New("full name is required")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrInvalidPasswordHash = errors.New("invalid password hash")
	ErrInvalidKYCStatus    = errors.New("invalid kyc status")
	ErrPasswordTooShort    = errors.New("password must be at least 8 characters")
	ErrUserNotFound        = errors.New("user not found")
	ErrEmailTaken          = errors.New("user with this email already exists")
	ErrUserInactive        = errors.New("user is deactivated")
	ErrSystemUserImmutable = errors.New("system user cannot be modified")
)
