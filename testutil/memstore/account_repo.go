package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ferrobank/ferro/internal/platform/account"
)

// AccountRepo implements account.Repository against the in-memory DB
type AccountRepo struct {
	db *DB
}

// Create inserts a new account and fills in the generated ID
func (r *AccountRepo) Create(ctx context.Context, acc *account.Account) error {
	if err := acc.Validate(); err != nil {
		return fmt.Errorf("invalid account: %w", err)
	}

	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, existing := range r.db.accounts {
		if existing.AccountNumber == acc.AccountNumber {
			return fmt.Errorf("account number %s already exists", acc.AccountNumber)
		}
	}

	now := time.Now().UTC()
	acc.ID = r.db.nextAccountID
	acc.CreatedAt = now
	acc.UpdatedAt = now
	r.db.nextAccountID++

	r.db.accounts[acc.ID] = copyAccount(acc)
	return nil
}

// GetByID retrieves an account by ID
func (r *AccountRepo) GetByID(ctx context.Context, id int64) (*account.Account, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	acc, ok := r.db.accounts[id]
	if !ok {
		return nil, account.ErrAccountNotFound
	}
	return copyAccount(acc), nil
}

// GetByNumber retrieves an account by its account number
func (r *AccountRepo) GetByNumber(ctx context.Context, number string) (*account.Account, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, acc := range r.db.accounts {
		if acc.AccountNumber == number {
			return copyAccount(acc), nil
		}
	}
	return nil, account.ErrAccountNotFound
}

// GetByOwner retrieves all accounts owned by the user, oldest first
func (r *AccountRepo) GetByOwner(ctx context.Context, ownerID int64) ([]*account.Account, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var out []*account.Account
	for _, acc := range r.db.accounts {
		if acc.OwnerID == ownerID {
			out = append(out, copyAccount(acc))
		}
	}
	sortAccounts(out)
	return out, nil
}

// GetPrimaryByOwner returns the user's oldest active account
func (r *AccountRepo) GetPrimaryByOwner(ctx context.Context, ownerID int64) (*account.Account, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var candidates []*account.Account
	for _, acc := range r.db.accounts {
		if acc.OwnerID == ownerID && acc.Status == account.StatusActive {
			candidates = append(candidates, acc)
		}
	}
	if len(candidates) == 0 {
		return nil, account.ErrNoPrimaryAccount
	}
	sortAccounts(candidates)
	return copyAccount(candidates[0]), nil
}

// UpdateStatus sets the account's operational status
func (r *AccountRepo) UpdateStatus(ctx context.Context, id int64, status account.Status) error {
	return r.mutate(id, func(acc *account.Account) { acc.Status = status })
}

// UpdateCachedBalance overwrites the cached balance projection
func (r *AccountRepo) UpdateCachedBalance(ctx context.Context, id int64, balance decimal.Decimal) error {
	return r.mutate(id, func(acc *account.Account) { acc.Balance = balance })
}

// LockForUpdate returns the given accounts in ascending ID order. No actual
// locking happens; unit tests are single-threaded per scenario.
func (r *AccountRepo) LockForUpdate(ctx context.Context, ids []int64) ([]*account.Account, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var out []*account.Account
	for _, id := range sorted {
		if acc, ok := r.db.accounts[id]; ok {
			out = append(out, copyAccount(acc))
		}
	}
	return out, nil
}

// ListIDs returns every account ID, ascending
func (r *AccountRepo) ListIDs(ctx context.Context) ([]int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	return sortedIDs(r.db.accounts), nil
}

// FindOwnerless returns ids of accounts whose owner binding is missing or
// points at no user. A zero OwnerID stands in for SQL NULL.
func (r *AccountRepo) FindOwnerless(ctx context.Context) ([]int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var ids []int64
	for _, id := range sortedIDs(r.db.accounts) {
		acc := r.db.accounts[id]
		if _, ok := r.db.users[acc.OwnerID]; acc.OwnerID == 0 || !ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *AccountRepo) mutate(id int64, fn func(*account.Account)) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	acc, ok := r.db.accounts[id]
	if !ok {
		return account.ErrAccountNotFound
	}
	fn(acc)
	acc.UpdatedAt = time.Now().UTC()
	return nil
}

func sortAccounts(accs []*account.Account) {
	sort.Slice(accs, func(i, j int) bool {
		if accs[i].CreatedAt.Equal(accs[j].CreatedAt) {
			return accs[i].ID < accs[j].ID
		}
		return accs[i].CreatedAt.Before(accs[j].CreatedAt)
	})
}
