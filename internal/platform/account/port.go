package account

import (
	"context"

	"github.com/shopspring/decimal"
)

// Repository defines the interface for account persistence operations
type Repository interface {
	// Create creates a new account
	Create(ctx context.Context, acc *Account) error

	// GetByID retrieves an account by ID
	GetByID(ctx context.Context, id int64) (*Account, error)

	// GetByNumber retrieves an account by its unique account number
	GetByNumber(ctx context.Context, accountNumber string) (*Account, error)

	// GetByOwner retrieves all accounts owned by a user, oldest first
	GetByOwner(ctx context.Context, ownerID int64) ([]*Account, error)

	// GetPrimaryByOwner retrieves the account a user transacts with by
	// default: their oldest active account.
	GetPrimaryByOwner(ctx context.Context, ownerID int64) (*Account, error)

	// UpdateStatus transitions an account between active, frozen and closed
	UpdateStatus(ctx context.Context, id int64, status Status) error

	// UpdateCachedBalance overwrites the cached balance projection.
	// Only the reconciliation path may call this.
	UpdateCachedBalance(ctx context.Context, id int64, balance decimal.Decimal) error

	// LockForUpdate takes row-level locks on the given accounts in
	// ascending id order and returns the locked rows. Must run inside a
	// database transaction.
	LockForUpdate(ctx context.Context, ids []int64) ([]*Account, error)

	// ListIDs returns every account id, used by reconciliation sweeps
	ListIDs(ctx context.Context) ([]int64, error)
}
