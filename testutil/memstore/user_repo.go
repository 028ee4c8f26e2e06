package memstore

import (
	"context"
	"fmt"
	"time"

	"github.com/ferrobank/ferro/internal/platform/user"
)

// UserRepo implements user.Repository, the bootstrap ensurer, and the
// invariant scanner against the in-memory DB
type UserRepo struct {
	db *DB
}

// Create inserts a new user and fills in the generated ID
func (r *UserRepo) Create(ctx context.Context, u *user.User) error {
	if err := u.Validate(); err != nil {
		return fmt.Errorf("invalid user: %w", err)
	}

	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, existing := range r.db.users {
		if existing.Email == u.Email {
			return user.ErrEmailTaken
		}
	}

	now := time.Now().UTC()
	u.ID = r.db.nextUserID
	u.CreatedAt = now
	u.UpdatedAt = now
	r.db.nextUserID++

	r.db.users[u.ID] = copyUser(u)
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepo) GetByID(ctx context.Context, id int64) (*user.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	u, ok := r.db.users[id]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	return copyUser(u), nil
}

// GetByEmail retrieves a user by email
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, u := range r.db.users {
		if u.Email == email {
			return copyUser(u), nil
		}
	}
	return nil, user.ErrUserNotFound
}

// Update rewrites the user's mutable profile fields
func (r *UserRepo) Update(ctx context.Context, u *user.User) error {
	if err := u.Validate(); err != nil {
		return fmt.Errorf("invalid user: %w", err)
	}

	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	stored, ok := r.db.users[u.ID]
	if !ok {
		return user.ErrUserNotFound
	}
	for id, other := range r.db.users {
		if id != u.ID && other.Email == u.Email {
			return user.ErrEmailTaken
		}
	}

	stored.Email = u.Email
	stored.FullName = u.FullName
	stored.IsVerified = u.IsVerified
	stored.UpdatedAt = time.Now().UTC()
	stored.LastLoginAt = nil
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		stored.LastLoginAt = &t
	}
	return nil
}

// UpdateKYCStatus sets the user's verification status
func (r *UserRepo) UpdateKYCStatus(ctx context.Context, id int64, status user.KYCStatus) error {
	return r.mutate(id, func(u *user.User) { u.KYCStatus = status })
}

// SetActive toggles whether the user may act on the platform
func (r *UserRepo) SetActive(ctx context.Context, id int64, active bool) error {
	return r.mutate(id, func(u *user.User) { u.IsActive = active })
}

// SetAdmin toggles the admin role
func (r *UserRepo) SetAdmin(ctx context.Context, id int64, isAdmin bool) error {
	return r.mutate(id, func(u *user.User) { u.IsAdmin = isAdmin })
}

// UpdatePassword replaces the stored password hash
func (r *UserRepo) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	return r.mutate(id, func(u *user.User) { u.PasswordHash = passwordHash })
}

// Exists checks if a user with the given email exists
func (r *UserRepo) Exists(ctx context.Context, email string) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, u := range r.db.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

// EnsureSystemUser inserts the system user under its fixed ID if absent
func (r *UserRepo) EnsureSystemUser(ctx context.Context, u *user.User) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.users[u.ID]; ok {
		return false, nil
	}

	now := time.Now().UTC()
	c := copyUser(u)
	c.CreatedAt = now
	c.UpdatedAt = now
	r.db.users[c.ID] = c

	if c.ID >= r.db.nextUserID {
		r.db.nextUserID = c.ID + 1
	}
	return true, nil
}

// FindWithoutAccounts returns non-admin users that own no account
func (r *UserRepo) FindWithoutAccounts(ctx context.Context) ([]*user.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	owned := make(map[int64]bool)
	for _, a := range r.db.accounts {
		owned[a.OwnerID] = true
	}

	var out []*user.User
	for _, id := range sortedIDs(r.db.users) {
		u := r.db.users[id]
		if !u.IsAdmin && !owned[u.ID] {
			out = append(out, copyUser(u))
		}
	}
	return out, nil
}

// FindWithInvalidKYC returns users whose KYC status is outside the enum
func (r *UserRepo) FindWithInvalidKYC(ctx context.Context) ([]*user.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var out []*user.User
	for _, id := range sortedIDs(r.db.users) {
		u := r.db.users[id]
		if !u.KYCStatus.Valid() {
			out = append(out, copyUser(u))
		}
	}
	return out, nil
}

func (r *UserRepo) mutate(id int64, fn func(*user.User)) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	u, ok := r.db.users[id]
	if !ok {
		return user.ErrUserNotFound
	}
	fn(u)
	u.UpdatedAt = time.Now().UTC()
	return nil
}
