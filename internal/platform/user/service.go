package user

import (
	"context"
	"fmt"
	"time"

	"github.com/ferrobank/ferro/internal/platform/account"
)

// Service handles identity and account provisioning. Every non-admin user
// gets a primary account in the same database transaction that creates the
// user row, so no user can exist without an account.
type Service struct {
	repo     Repository
	accounts account.Repository
	txm      TxManager
}

// NewService creates a new user service
func NewService(repo Repository, accounts account.Repository, txm TxManager) *Service {
	return &Service{
		repo:     repo,
		accounts: accounts,
		txm:      txm,
	}
}

// Register hashes the password and provisions the user with their primary
// account. This is the entry point used by the HTTP layer.
func (s *Service) Register(ctx context.Context, email, password, fullName string) (*User, *account.Account, error) {
	u := &User{Email: email, FullName: fullName}
	if err := u.SetPassword(password); err != nil {
		return nil, nil, err
	}
	return s.CreateUser(ctx, email, u.PasswordHash, fullName)
}

// CreateUser provisions a user from an already-hashed password. The user row
// and the primary account row are inserted atomically.
func (s *Service) CreateUser(ctx context.Context, email, passwordHash, fullName string) (*User, *account.Account, error) {
	txCtx, err := s.txm.BeginTx(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = s.txm.RollbackTx(txCtx)
		}
	}()

	u, primary, err := s.Provision(txCtx, email, passwordHash, fullName)
	if err != nil {
		return nil, nil, err
	}

	if err := s.txm.CommitTx(txCtx); err != nil {
		return nil, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true

	return u, primary, nil
}

// Provision inserts the user row and the primary account row. It performs
// no transaction management; callers must run it inside one so both rows
// commit together.
func (s *Service) Provision(ctx context.Context, email, passwordHash, fullName string) (*User, *account.Account, error) {
	u := &User{
		Email:        email,
		FullName:     fullName,
		PasswordHash: passwordHash,
		IsActive:     true,
		IsAdmin:      false,
		IsVerified:   false,
		KYCStatus:    KYCNotStarted,
	}
	if err := u.Validate(); err != nil {
		return nil, nil, err
	}

	exists, err := s.repo.Exists(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check if user exists: %w", err)
	}
	if exists {
		return nil, nil, ErrEmailTaken
	}

	if err := s.repo.Create(ctx, u); err != nil {
		return nil, nil, fmt.Errorf("failed to create user: %w", err)
	}

	primary := account.NewPrimary(u.ID, time.Now().UTC())
	if err := s.accounts.Create(ctx, primary); err != nil {
		return nil, nil, fmt.Errorf("failed to create primary account: %w", err)
	}

	return u, primary, nil
}

// Authenticate verifies email and password and returns the user.
// It does not reveal whether the email exists.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if err == ErrUserNotFound {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if err := u.CheckPassword(password); err != nil {
		return nil, err
	}

	if !u.IsActive {
		return nil, ErrUserInactive
	}

	// Best effort; a failed timestamp update must not fail the login.
	u.UpdateLastLogin()
	_ = s.repo.Update(ctx, u)

	return u, nil
}

// GetByID retrieves a user by ID
func (s *Service) GetByID(ctx context.Context, id int64) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByEmail retrieves a user by email
func (s *Service) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.repo.GetByEmail(ctx, email)
}
