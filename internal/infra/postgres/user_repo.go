package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ferrobank/ferro/internal/platform/user"
)

// UserRepository implements the user persistence ports using PostgreSQL
type UserRepository struct {
	store *Store
}

// NewUserRepository creates a new PostgreSQL user repository
func NewUserRepository(store *Store) *UserRepository {
	return &UserRepository{store: store}
}

const userColumns = `id, email, full_name, password_hash, is_active, is_admin, is_verified, kyc_status, created_at, updated_at, last_login_at`

// Create inserts a new user and fills in the generated ID
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	if err := u.Validate(); err != nil {
		return fmt.Errorf("invalid user: %w", err)
	}

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	query := `
		INSERT INTO users (email, full_name, password_hash, is_active, is_admin, is_verified, kyc_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	err := r.store.q(ctx).QueryRow(ctx, query,
		u.Email,
		u.FullName,
		u.PasswordHash,
		u.IsActive,
		u.IsAdmin,
		u.IsVerified,
		string(u.KYCStatus),
		u.CreatedAt,
		u.UpdatedAt,
	).Scan(&u.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return user.ErrEmailTaken
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanUser(r.store.q(ctx).QueryRow(ctx, query, id))
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.scanUser(r.store.q(ctx).QueryRow(ctx, query, email))
}

// Update rewrites the user's mutable profile fields
func (r *UserRepository) Update(ctx context.Context, u *user.User) error {
	if err := u.Validate(); err != nil {
		return fmt.Errorf("invalid user: %w", err)
	}

	u.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE users
		SET email = $2, full_name = $3, is_verified = $4, updated_at = $5, last_login_at = $6
		WHERE id = $1
	`

	result, err := r.store.q(ctx).Exec(ctx, query,
		u.ID,
		u.Email,
		u.FullName,
		u.IsVerified,
		u.UpdatedAt,
		u.LastLoginAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return user.ErrEmailTaken
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return user.ErrUserNotFound
	}

	return nil
}

// UpdateKYCStatus sets the user's verification status
func (r *UserRepository) UpdateKYCStatus(ctx context.Context, id int64, status user.KYCStatus) error {
	query := `UPDATE users SET kyc_status = $2, updated_at = $3 WHERE id = $1`

	result, err := r.store.q(ctx).Exec(ctx, query, id, string(status), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update KYC status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return user.ErrUserNotFound
	}
	return nil
}

// SetActive toggles whether the user may act on the platform
func (r *UserRepository) SetActive(ctx context.Context, id int64, active bool) error {
	query := `UPDATE users SET is_active = $2, updated_at = $3 WHERE id = $1`

	result, err := r.store.q(ctx).Exec(ctx, query, id, active, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update active flag: %w", err)
	}
	if result.RowsAffected() == 0 {
		return user.ErrUserNotFound
	}
	return nil
}

// SetAdmin toggles the admin role
func (r *UserRepository) SetAdmin(ctx context.Context, id int64, isAdmin bool) error {
	query := `UPDATE users SET is_admin = $2, updated_at = $3 WHERE id = $1`

	result, err := r.store.q(ctx).Exec(ctx, query, id, isAdmin, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update admin role: %w", err)
	}
	if result.RowsAffected() == 0 {
		return user.ErrUserNotFound
	}
	return nil
}

// UpdatePassword replaces the stored password hash
func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	query := `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`

	result, err := r.store.q(ctx).Exec(ctx, query, id, passwordHash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if result.RowsAffected() == 0 {
		return user.ErrUserNotFound
	}
	return nil
}

// Exists checks if a user with the given email exists
func (r *UserRepository) Exists(ctx context.Context, email string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`

	var exists bool
	err := r.store.q(ctx).QueryRow(ctx, query, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}

	return exists, nil
}

// EnsureSystemUser inserts the system user under its fixed ID if it does not
// exist yet and realigns the ID sequence so ordinary inserts never collide
// with it.
func (r *UserRepository) EnsureSystemUser(ctx context.Context, u *user.User) (bool, error) {
	query := `
		INSERT INTO users (id, email, full_name, password_hash, is_active, is_admin, is_verified, kyc_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		ON CONFLICT (id) DO NOTHING
	`

	q := r.store.q(ctx)
	result, err := q.Exec(ctx, query,
		u.ID,
		u.Email,
		u.FullName,
		u.PasswordHash,
		u.IsActive,
		u.IsAdmin,
		u.IsVerified,
		string(u.KYCStatus),
		time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to ensure system user: %w", err)
	}

	if _, err := q.Exec(ctx, `SELECT setval('users_id_seq', GREATEST((SELECT MAX(id) FROM users), 1))`); err != nil {
		return false, fmt.Errorf("failed to realign user ID sequence: %w", err)
	}

	return result.RowsAffected() == 1, nil
}

// FindWithoutAccounts returns non-admin users that own no account
func (r *UserRepository) FindWithoutAccounts(ctx context.Context) ([]*user.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users u
		WHERE u.is_admin = FALSE
		  AND NOT EXISTS (SELECT 1 FROM accounts a WHERE a.owner_id = u.id)
		ORDER BY u.id
	`
	return r.queryUsers(ctx, query)
}

// FindWithInvalidKYC returns users whose KYC status is outside the enum
func (r *UserRepository) FindWithInvalidKYC(ctx context.Context) ([]*user.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE kyc_status NOT IN ('not_started', 'pending', 'submitted', 'approved', 'rejected')
		ORDER BY id
	`
	return r.queryUsers(ctx, query)
}

func (r *UserRepository) queryUsers(ctx context.Context, query string, args ...any) ([]*user.User, error) {
	rows, err := r.store.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*user.User
	for rows.Next() {
		u, err := r.scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}

// scanUser scans a single user row
func (r *UserRepository) scanUser(row pgx.Row) (*user.User, error) {
	var u user.User
	var kycStatus string
	var lastLoginAt sql.NullTime

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.FullName,
		&u.PasswordHash,
		&u.IsActive,
		&u.IsAdmin,
		&u.IsVerified,
		&kycStatus,
		&u.CreatedAt,
		&u.UpdatedAt,
		&lastLoginAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, user.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	u.KYCStatus = user.KYCStatus(kycStatus)
	if lastLoginAt.Valid {
		u.LastLoginAt = &lastLoginAt.Time
	}

	return &u, nil
}

// isUniqueViolation checks if the error is a unique constraint violation
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
