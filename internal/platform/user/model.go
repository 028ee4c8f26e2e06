package user

import (
	"fmt"
	"regexp"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// KYCStatus tracks a user's identity-verification progress
type KYCStatus string

const (
	KYCNotStarted KYCStatus = "not_started"
	KYCPending    KYCStatus = "pending"
	KYCSubmitted  KYCStatus = "submitted"
	KYCApproved   KYCStatus = "approved"
	KYCRejected   KYCStatus = "rejected"
)

// Valid reports whether the status is a known enum value
func (k KYCStatus) Valid() bool {
	switch k {
	case KYCNotStarted, KYCPending, KYCSubmitted, KYCApproved, KYCRejected:
		return true
	}
	return false
}

// InProgress reports whether the status allows transactions to be admitted
// on hold rather than refused outright.
func (k KYCStatus) InProgress() bool {
	return k == KYCNotStarted || k == KYCPending || k == KYCSubmitted
}

// SystemUserID is the reserved identity that owns the treasury and acts as
// counterparty for deposits, withdrawals, and admin funding.
const SystemUserID int64 = 1

// User represents an account holder
type User struct {
	ID           int64
	Email        string
	FullName     string
	PasswordHash string
	IsActive     bool
	IsAdmin      bool
	IsVerified   bool
	KYCStatus    KYCStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastLoginAt  *time.Time
}

// Validate validates the user
func (u *User) Validate() error {
	if err := u.ValidateEmail(); err != nil {
		return err
	}

	if u.FullName == "" {
		return ErrInvalidFullName
	}

	if u.PasswordHash == "" {
		return ErrInvalidPasswordHash
	}

	if !u.KYCStatus.Valid() {
		return ErrInvalidKYCStatus
	}

	return nil
}

// ValidateEmail validates only the email field
func (u *User) ValidateEmail() error {
	if u.Email == "" {
		return ErrInvalidEmail
	}

	if !isValidEmail(u.Email) {
		return ErrInvalidEmail
	}

	return nil
}

// IsSystem reports whether this is the reserved system user
func (u *User) IsSystem() bool {
	return u.ID == SystemUserID
}

// SetPassword hashes and sets the user's password
func (u *User) SetPassword(password string) error {
	if len(password) < 8 {
		return ErrPasswordTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	u.PasswordHash = string(hash)
	return nil
}

// CheckPassword checks if the provided password matches the stored hash
func (u *User) CheckPassword(password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	if err != nil {
		if err == bcrypt.ErrMismatchedHashAndPassword {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("failed to check password: %w", err)
	}
	return nil
}

// UpdateLastLogin updates the last login timestamp
func (u *User) UpdateLastLogin() {
	now := time.Now().UTC()
	u.LastLoginAt = &now
	u.UpdatedAt = now
}

// isValidEmail checks if the email format is valid
func isValidEmail(email string) bool {
	// RFC 5322 compliant email validation (simplified)
	emailRegex := regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	return emailRegex.MatchString(email)
}
