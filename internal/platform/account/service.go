package account

import "context"

// Service exposes account reads to the transport layer. Mutations go
// through the admin service so every privileged change is audited.
type Service struct {
	repo Repository
}

// NewService creates a new account service
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// GetByID retrieves an account by ID
func (s *Service) GetByID(ctx context.Context, id int64) (*Account, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByNumber retrieves an account by account number
func (s *Service) GetByNumber(ctx context.Context, accountNumber string) (*Account, error) {
	return s.repo.GetByNumber(ctx, accountNumber)
}

// GetByOwner retrieves all accounts owned by a user
func (s *Service) GetByOwner(ctx context.Context, ownerID int64) ([]*Account, error) {
	return s.repo.GetByOwner(ctx, ownerID)
}

// GetPrimaryByOwner retrieves the user's default transacting account
func (s *Service) GetPrimaryByOwner(ctx context.Context, ownerID int64) (*Account, error) {
	return s.repo.GetPrimaryByOwner(ctx, ownerID)
}
