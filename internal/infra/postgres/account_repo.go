package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/ferrobank/ferro/internal/platform/account"
)

// AccountRepository implements the account persistence port using PostgreSQL
type AccountRepository struct {
	store *Store
}

// NewAccountRepository creates a new PostgreSQL account repository
func NewAccountRepository(store *Store) *AccountRepository {
	return &AccountRepository{store: store}
}

const accountColumns = `id, account_number, owner_id, account_type, balance, currency, status, kyc_level, is_admin_account, created_at, updated_at`

// Create inserts a new account and fills in the generated ID
func (r *AccountRepository) Create(ctx context.Context, acc *account.Account) error {
	if err := acc.Validate(); err != nil {
		return fmt.Errorf("invalid account: %w", err)
	}

	now := time.Now().UTC()
	acc.CreatedAt = now
	acc.UpdatedAt = now

	query := `
		INSERT INTO accounts (account_number, owner_id, account_type, balance, currency, status, kyc_level, is_admin_account, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	err := r.store.q(ctx).QueryRow(ctx, query,
		acc.AccountNumber,
		acc.OwnerID,
		string(acc.AccountType),
		acc.Balance.String(),
		acc.Currency,
		string(acc.Status),
		string(acc.KYCLevel),
		acc.IsAdminAccount,
		acc.CreatedAt,
		acc.UpdatedAt,
	).Scan(&acc.ID)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

// GetByID retrieves an account by ID
func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*account.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return r.scanAccount(r.store.q(ctx).QueryRow(ctx, query, id))
}

// GetByNumber retrieves an account by its account number
func (r *AccountRepository) GetByNumber(ctx context.Context, number string) (*account.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_number = $1`
	return r.scanAccount(r.store.q(ctx).QueryRow(ctx, query, number))
}

// GetByOwner retrieves all accounts owned by the user, oldest first
func (r *AccountRepository) GetByOwner(ctx context.Context, ownerID int64) ([]*account.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE owner_id = $1 ORDER BY created_at ASC, id ASC`

	rows, err := r.store.q(ctx).Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	return r.collectAccounts(rows)
}

// GetPrimaryByOwner returns the user's oldest active account, the one money
// operations settle against.
func (r *AccountRepository) GetPrimaryByOwner(ctx context.Context, ownerID int64) (*account.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE owner_id = $1 AND status = 'active'
		ORDER BY created_at ASC, id ASC
		LIMIT 1
	`

	acc, err := r.scanAccount(r.store.q(ctx).QueryRow(ctx, query, ownerID))
	if err != nil {
		if err == account.ErrAccountNotFound {
			return nil, account.ErrNoPrimaryAccount
		}
		return nil, err
	}
	return acc, nil
}

// UpdateStatus sets the account's operational status
func (r *AccountRepository) UpdateStatus(ctx context.Context, id int64, status account.Status) error {
	query := `UPDATE accounts SET status = $2, updated_at = $3 WHERE id = $1`

	result, err := r.store.q(ctx).Exec(ctx, query, id, string(status), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update account status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return account.ErrAccountNotFound
	}
	return nil
}

// UpdateCachedBalance overwrites the cached balance projection. Only the
// reconciler calls this; the cache is never an input to admission decisions.
func (r *AccountRepository) UpdateCachedBalance(ctx context.Context, id int64, balance decimal.Decimal) error {
	query := `UPDATE accounts SET balance = $2, updated_at = $3 WHERE id = $1`

	result, err := r.store.q(ctx).Exec(ctx, query, id, balance.String(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update cached balance: %w", err)
	}
	if result.RowsAffected() == 0 {
		return account.ErrAccountNotFound
	}
	return nil
}

// LockForUpdate takes row locks on the given accounts. Rows come back in
// ascending ID order, which is also the order the locks are acquired in, so
// callers locking overlapping sets cannot deadlock. Must run inside a
// database transaction.
func (r *AccountRepository) LockForUpdate(ctx context.Context, ids []int64) ([]*account.Account, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = ANY($1) ORDER BY id FOR UPDATE`

	rows, err := r.store.q(ctx).Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to lock accounts: %w", err)
	}
	defer rows.Close()

	return r.collectAccounts(rows)
}

// ListIDs returns every account ID, ascending
func (r *AccountRepository) ListIDs(ctx context.Context) ([]int64, error) {
	query := `SELECT id FROM accounts ORDER BY id`

	rows, err := r.store.q(ctx).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan account id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}

	return ids, nil
}

// FindOwnerless returns ids of accounts whose owner binding is missing or
// points at no user row. The live schema forbids both, so hits only show up
// in databases created before the binding constraints.
func (r *AccountRepository) FindOwnerless(ctx context.Context) ([]int64, error) {
	query := `
		SELECT a.id
		FROM accounts a
		LEFT JOIN users u ON u.id = a.owner_id
		WHERE a.owner_id IS NULL OR u.id IS NULL
		ORDER BY a.id
	`

	rows, err := r.store.q(ctx).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to scan for ownerless accounts: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan account id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}

	return ids, nil
}

func (r *AccountRepository) collectAccounts(rows pgx.Rows) ([]*account.Account, error) {
	var accounts []*account.Account
	for rows.Next() {
		acc, err := r.scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}

	return accounts, nil
}

// scanAccount scans a single account row
func (r *AccountRepository) scanAccount(row pgx.Row) (*account.Account, error) {
	var acc account.Account
	var accountType, status, kycLevel, balanceStr string

	err := row.Scan(
		&acc.ID,
		&acc.AccountNumber,
		&acc.OwnerID,
		&accountType,
		&balanceStr,
		&acc.Currency,
		&status,
		&kycLevel,
		&acc.IsAdminAccount,
		&acc.CreatedAt,
		&acc.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, account.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}

	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse balance %q: %w", balanceStr, err)
	}

	acc.AccountType = account.Type(accountType)
	acc.Balance = balance
	acc.Status = account.Status(status)
	acc.KYCLevel = account.KYCLevel(kycLevel)

	return &acc, nil
}
