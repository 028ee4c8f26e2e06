// Package memstore provides in-memory implementations of the persistence
// ports for unit tests. Write validation, lookup errors, and result ordering
// mirror the PostgreSQL repositories, so services can be exercised without a
// database. The transaction manager is a no-op: rollback does not undo
// writes, which is fine for tests that assert on pre-write rejections or on
// committed state.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ferrobank/ferro/internal/audit"
	"github.com/ferrobank/ferro/internal/ledger"
	"github.com/ferrobank/ferro/internal/platform/account"
	"github.com/ferrobank/ferro/internal/platform/user"
)

// DB is an in-memory stand-in for the database. One DB backs all repository
// views so cross-repository reads observe each other's writes, like
// repositories sharing one connection pool do.
type DB struct {
	mu sync.Mutex

	users        map[int64]*user.User
	accounts     map[int64]*account.Account
	transactions map[int64]*ledger.Transaction
	entries      map[int64]*ledger.Entry
	audits       []*audit.Entry

	nextUserID    int64
	nextAccountID int64
	nextTxID      int64
	nextEntryID   int64
	nextAuditID   int64
}

// New creates an empty in-memory database
func New() *DB {
	return &DB{
		users:         make(map[int64]*user.User),
		accounts:      make(map[int64]*account.Account),
		transactions:  make(map[int64]*ledger.Transaction),
		entries:       make(map[int64]*ledger.Entry),
		nextUserID:    1,
		nextAccountID: 1,
		nextTxID:      1,
		nextEntryID:   1,
		nextAuditID:   1,
	}
}

// Users returns the user repository view
func (d *DB) Users() *UserRepo { return &UserRepo{db: d} }

// Accounts returns the account repository view
func (d *DB) Accounts() *AccountRepo { return &AccountRepo{db: d} }

// Ledger returns the ledger repository view
func (d *DB) Ledger() *LedgerRepo { return &LedgerRepo{db: d} }

// Audits returns the audit repository view
func (d *DB) Audits() *AuditRepo { return &AuditRepo{db: d} }

// BeginTx satisfies the TxManager ports. No transaction state is kept.
func (d *DB) BeginTx(ctx context.Context) (context.Context, error) { return ctx, nil }

// CommitTx satisfies the TxManager ports
func (d *DB) CommitTx(ctx context.Context) error { return nil }

// RollbackTx satisfies the TxManager ports. Writes are not undone.
func (d *DB) RollbackTx(ctx context.Context) error { return nil }

// PutTransaction inserts a transaction row without validation, for tests
// that need corrupt data the write path would reject. Returns the id.
func (d *DB) PutTransaction(tx *ledger.Transaction) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	c := copyTransaction(tx)
	if c.ID == 0 {
		c.ID = d.nextTxID
	}
	if c.ID >= d.nextTxID {
		d.nextTxID = c.ID + 1
	}
	d.transactions[c.ID] = c
	return c.ID
}

// PutEntry inserts a ledger entry without validation, for tests that need
// corrupt data the write path would reject. Returns the id.
func (d *DB) PutEntry(e *ledger.Entry) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	c := copyEntry(e)
	if c.ID == 0 {
		c.ID = d.nextEntryID
	}
	if c.ID >= d.nextEntryID {
		d.nextEntryID = c.ID + 1
	}
	d.entries[c.ID] = c
	return c.ID
}

// SetRelated links an entry to its counterpart without validation,
// complementing PutEntry when tests assemble pairs by hand.
func (d *DB) SetRelated(entryID, relatedID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if e, ok := d.entries[entryID]; ok {
		id := relatedID
		e.RelatedEntryID = &id
	}
}

// SeedUser inserts a ready-made user, bypassing Create's timestamps, and
// returns the assigned id.
func (d *DB) SeedUser(u *user.User) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	c := copyUser(u)
	if c.ID == 0 {
		c.ID = d.nextUserID
	}
	if c.ID >= d.nextUserID {
		d.nextUserID = c.ID + 1
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
		c.UpdatedAt = c.CreatedAt
	}
	d.users[c.ID] = c
	return c.ID
}

// SeedAccount inserts a ready-made account and returns the assigned id
func (d *DB) SeedAccount(a *account.Account) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	c := copyAccount(a)
	if c.ID == 0 {
		c.ID = d.nextAccountID
	}
	if c.ID >= d.nextAccountID {
		d.nextAccountID = c.ID + 1
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
		c.UpdatedAt = c.CreatedAt
	}
	d.accounts[c.ID] = c
	return c.ID
}

// sortedIDs returns map keys in ascending order
func sortedIDs[V any](m map[int64]V) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func copyUser(u *user.User) *user.User {
	c := *u
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		c.LastLoginAt = &t
	}
	return &c
}

func copyAccount(a *account.Account) *account.Account {
	c := *a
	return &c
}

func copyTransaction(tx *ledger.Transaction) *ledger.Transaction {
	c := *tx
	return &c
}

func copyEntry(e *ledger.Entry) *ledger.Entry {
	c := *e
	c.RelatedEntryID = copyInt64Ptr(e.RelatedEntryID)
	c.SourceUserID = copyInt64Ptr(e.SourceUserID)
	c.DestinationUserID = copyInt64Ptr(e.DestinationUserID)
	c.PostedAt = copyTimePtr(e.PostedAt)
	c.ReversedAt = copyTimePtr(e.ReversedAt)
	return &c
}

func copyAudit(e *audit.Entry) *audit.Entry {
	c := *e
	c.AccountID = copyInt64Ptr(e.AccountID)
	if e.StatusMessage != nil {
		s := *e.StatusMessage
		c.StatusMessage = &s
	}
	if e.Details != nil {
		details := make(map[string]interface{}, len(e.Details))
		for k, v := range e.Details {
			details[k] = v
		}
		c.Details = details
	}
	return &c
}

func copyInt64Ptr(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyTimePtr(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	t := *p
	return &t
}
