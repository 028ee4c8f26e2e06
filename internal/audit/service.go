package audit

import (
	"context"
	"fmt"

	"github.com/ferrobank/ferro/internal/platform/account"
	"github.com/ferrobank/ferro/internal/platform/user"
)

// DefaultListLimit bounds audit queries that do not specify a page size.
const DefaultListLimit = 50

// Service validates and appends audit entries. Record must run inside the
// same database transaction as the effect it describes so neither can
// commit without the other.
type Service struct {
	repo     Repository
	users    user.Repository
	accounts account.Repository
}

// NewService creates a new audit service
func NewService(repo Repository, users user.Repository, accounts account.Repository) *Service {
	return &Service{
		repo:     repo,
		users:    users,
		accounts: accounts,
	}
}

// Record validates the entry against live data and appends it.
func (s *Service) Record(ctx context.Context, entry *Entry) (int64, error) {
	if err := entry.Validate(); err != nil {
		return 0, err
	}

	admin, err := s.users.GetByID(ctx, entry.AdminID)
	if err != nil {
		if err == user.ErrUserNotFound {
			return 0, ErrAdminNotFound
		}
		return 0, fmt.Errorf("failed to load admin: %w", err)
	}
	if !admin.IsAdmin {
		return 0, ErrActorNotAdmin
	}

	if _, err := s.users.GetByID(ctx, entry.UserID); err != nil {
		if err == user.ErrUserNotFound {
			return 0, ErrSubjectNotFound
		}
		return 0, fmt.Errorf("failed to load subject: %w", err)
	}

	if entry.AccountID != nil {
		acc, err := s.accounts.GetByID(ctx, *entry.AccountID)
		if err != nil {
			if err == account.ErrAccountNotFound {
				return 0, ErrAccountNotFound
			}
			return 0, fmt.Errorf("failed to load account: %w", err)
		}
		if !acc.IsAdminAccount && acc.OwnerID != entry.UserID {
			return 0, ErrAccountNotOfSubject
		}
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		return 0, fmt.Errorf("failed to append audit entry: %w", err)
	}

	return entry.ID, nil
}

// List returns audit entries newest first.
func (s *Service) List(ctx context.Context, filters Filters) ([]*Entry, error) {
	if filters.Limit <= 0 {
		filters.Limit = DefaultListLimit
	}
	return s.repo.List(ctx, filters)
}
