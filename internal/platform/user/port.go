package user

import "context"

// Repository defines the interface for user persistence operations
type Repository interface {
	// Create creates a new user
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id int64) (*User, error)

	// GetByEmail retrieves a user by email
	GetByEmail(ctx context.Context, email string) (*User, error)

	// Update updates mutable profile fields and the last-login timestamp
	Update(ctx context.Context, user *User) error

	// UpdateKYCStatus transitions the user's verification state
	UpdateKYCStatus(ctx context.Context, id int64, status KYCStatus) error

	// SetActive activates or deactivates a user
	SetActive(ctx context.Context, id int64, active bool) error

	// SetAdmin grants or revokes the admin flag
	SetAdmin(ctx context.Context, id int64, isAdmin bool) error

	// UpdatePassword replaces the stored password hash
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error

	// Exists checks if a user with the given email exists
	Exists(ctx context.Context, email string) (bool, error)
}

// TxManager begins and ends database transactions carried in the context.
type TxManager interface {
	BeginTx(ctx context.Context) (context.Context, error)
	CommitTx(ctx context.Context) error
	RollbackTx(ctx context.Context) error
}
