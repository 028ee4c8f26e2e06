package account

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Type classifies an account
type Type string

const (
	TypeChecking   Type = "checking"
	TypeSavings    Type = "savings"
	TypeBusiness   Type = "business"
	TypeInvestment Type = "investment"
	TypeTreasury   Type = "treasury"
	TypePrimary    Type = "primary"
)

// IsValid checks if the account type is a known enum value
func (t Type) IsValid() bool {
	switch t {
	case TypeChecking, TypeSavings, TypeBusiness, TypeInvestment, TypeTreasury, TypePrimary:
		return true
	}
	return false
}

// Status represents the operational state of an account
type Status string

const (
	StatusActive Status = "active"
	StatusFrozen Status = "frozen"
	StatusClosed Status = "closed"
)

// IsValid checks if the status is a known enum value
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusFrozen, StatusClosed:
		return true
	}
	return false
}

// KYCLevel is the verification tier granted to an account
type KYCLevel string

const (
	KYCLevelNone  KYCLevel = "none"
	KYCLevelBasic KYCLevel = "basic"
	KYCLevelFull  KYCLevel = "full"
)

// ReserveAccountNumber is the account number of the system treasury.
const ReserveAccountNumber = "SYS-RESERVE-0001"

// Account represents a money container owned by exactly one user. The
// Balance column is a cached projection of the ledger; admission decisions
// never read it, and reconciliation repairs any drift.
type Account struct {
	ID             int64
	AccountNumber  string
	OwnerID        int64
	AccountType    Type
	Balance        decimal.Decimal
	Currency       string
	Status         Status
	KYCLevel       KYCLevel
	IsAdminAccount bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewPrimary builds the primary account created alongside every user.
// The account number embeds the owner id and the low-order microseconds
// of the creation instant.
func NewPrimary(ownerID int64, now time.Time) *Account {
	return &Account{
		AccountNumber:  fmt.Sprintf("ACC%d_%d", ownerID, now.UnixMicro()%1_000_000),
		OwnerID:        ownerID,
		AccountType:    TypePrimary,
		Balance:        decimal.Zero,
		Currency:       "USD",
		Status:         StatusActive,
		KYCLevel:       KYCLevelBasic,
		IsAdminAccount: false,
	}
}

// NewTreasury builds the system reserve account owned by the system user.
func NewTreasury(ownerID int64) *Account {
	return &Account{
		AccountNumber:  ReserveAccountNumber,
		OwnerID:        ownerID,
		AccountType:    TypeTreasury,
		Balance:        decimal.Zero,
		Currency:       "USD",
		Status:         StatusActive,
		KYCLevel:       KYCLevelFull,
		IsAdminAccount: true,
	}
}

// Validate checks enum fields and the owner binding
func (a *Account) Validate() error {
	if a.OwnerID == 0 {
		return ErrMissingOwner
	}
	if a.AccountNumber == "" {
		return ErrMissingAccountNumber
	}
	if !a.AccountType.IsValid() {
		return ErrInvalidAccountType
	}
	if !a.Status.IsValid() {
		return ErrInvalidStatus
	}
	if a.IsAdminAccount && a.AccountType != TypeTreasury {
		return ErrAdminFlagOnNonTreasury
	}
	return nil
}

// IsActive reports whether the account accepts transactions
func (a *Account) IsActive() bool {
	return a.Status == StatusActive
}

// OwnedBy reports whether the account belongs to the given user
func (a *Account) OwnedBy(userID int64) bool {
	return a.OwnerID == userID
}
