package reconcile_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferrobank/ferro/internal/apperr"
	"github.com/ferrobank/ferro/internal/audit"
	"github.com/ferrobank/ferro/internal/balance"
	"github.com/ferrobank/ferro/internal/ledger"
	"github.com/ferrobank/ferro/internal/platform/account"
	"github.com/ferrobank/ferro/internal/platform/user"
	"github.com/ferrobank/ferro/internal/reconcile"
	"github.com/ferrobank/ferro/pkg/logger"
	"github.com/ferrobank/ferro/pkg/money"
	"github.com/ferrobank/ferro/testutil/memstore"
)

func newReconciler(db *memstore.DB) *reconcile.Reconciler {
	log := logger.NewDefault("test")
	balances := balance.NewService(db.Ledger(), db.Users(), db.Accounts(), nil, log)
	audits := audit.NewService(db.Audits(), db.Users(), db.Accounts())
	return reconcile.NewReconciler(db.Accounts(), balances, audits, db, log)
}

// seedWorld books 1000.00 into the treasury and a 100.00 deposit for alice,
// with the cached columns set by the caller. Derived balances are therefore
// 900.00 for the system and 100.00 for alice.
func seedWorld(t *testing.T, treasuryCache, aliceCache string) (db *memstore.DB, treasuryAccID, aliceAccID int64) {
	t.Helper()
	db = memstore.New()

	systemID := db.SeedUser(&user.User{ID: user.SystemUserID, Email: "system@ferro.test", FullName: "System", PasswordHash: "x", IsActive: true, IsAdmin: true, KYCStatus: user.KYCApproved})
	aliceID := db.SeedUser(&user.User{Email: "alice@ferro.test", FullName: "Alice", PasswordHash: "x", IsActive: true, KYCStatus: user.KYCApproved})

	treasuryAccID = db.SeedAccount(&account.Account{
		AccountNumber: account.ReserveAccountNumber, OwnerID: systemID,
		AccountType: account.TypeTreasury, Balance: money.MustParse(treasuryCache), Currency: "USD",
		Status: account.StatusActive, KYCLevel: account.KYCLevelFull, IsAdminAccount: true,
	})
	alice := account.NewPrimary(aliceID, time.Now().UTC())
	alice.Balance = money.MustParse(aliceCache)
	aliceAccID = db.SeedAccount(alice)

	post := func(txType ledger.TransactionType, ownerID, accID, debitUser, creditUser int64, amount string) {
		amt := money.MustParse(amount)
		txID := db.PutTransaction(&ledger.Transaction{
			Reference: uuid.New(), UserID: ownerID, AccountID: accID, Amount: amt,
			Type: txType, Direction: ledger.DirectionCredit, Status: ledger.TransactionStatusCompleted,
		})
		d := db.PutEntry(&ledger.Entry{UserID: debitUser, EntryType: ledger.EntryTypeDebit, Amount: amt, TransactionID: txID, Status: ledger.EntryStatusPosted})
		c := db.PutEntry(&ledger.Entry{UserID: creditUser, EntryType: ledger.EntryTypeCredit, Amount: amt, TransactionID: txID, Status: ledger.EntryStatusPosted})
		db.SetRelated(d, c)
		db.SetRelated(c, d)
	}
	post(ledger.TransactionTypeSystemSeed, systemID, treasuryAccID, systemID, systemID, "1000.00")
	post(ledger.TransactionTypeDeposit, aliceID, aliceAccID, systemID, aliceID, "100.00")
	return db, treasuryAccID, aliceAccID
}

// =============================================================================
// Single Account Tests
// =============================================================================

func TestReconciler_ReconcileAccount_CleanCacheSkipsRepair(t *testing.T) {
	db, _, aliceAccID := seedWorld(t, "900.00", "100.00")
	ctx := context.Background()

	result, err := newReconciler(db).ReconcileAccount(ctx, aliceAccID)
	require.NoError(t, err)

	assert.False(t, result.Repaired)
	assert.True(t, result.Cached.Equal(money.MustParse("100.00")))
	assert.True(t, result.Derived.Equal(money.MustParse("100.00")))
	assert.True(t, result.Drift.IsZero())

	entries, err := db.Audits().List(ctx, audit.Filters{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReconciler_ReconcileAccount_ToleratesSmallDrift(t *testing.T) {
	// One cent off stays within tolerance and is left alone.
	db, _, aliceAccID := seedWorld(t, "900.00", "100.01")
	ctx := context.Background()

	result, err := newReconciler(db).ReconcileAccount(ctx, aliceAccID)
	require.NoError(t, err)

	assert.False(t, result.Repaired)
	acc, err := db.Accounts().GetByID(ctx, aliceAccID)
	require.NoError(t, err)
	assert.True(t, acc.Balance.Equal(money.MustParse("100.01")))
}

func TestReconciler_ReconcileAccount_RepairsDrift(t *testing.T) {
	db, _, aliceAccID := seedWorld(t, "900.00", "40.00")
	ctx := context.Background()

	result, err := newReconciler(db).ReconcileAccount(ctx, aliceAccID)
	require.NoError(t, err)

	assert.True(t, result.Repaired)
	assert.True(t, result.Cached.Equal(money.MustParse("40.00")))
	assert.True(t, result.Derived.Equal(money.MustParse("100.00")))
	assert.True(t, result.Drift.Equal(money.MustParse("60.00")))

	// The cache now carries the derived value.
	acc, err := db.Accounts().GetByID(ctx, aliceAccID)
	require.NoError(t, err)
	assert.True(t, acc.Balance.Equal(money.MustParse("100.00")))

	entries, err := db.Audits().List(ctx, audit.Filters{AccountID: &aliceAccID})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionReconcileBalance, entries[0].ActionType)
	assert.Equal(t, user.SystemUserID, entries[0].AdminID)
	assert.Equal(t, "40.00", entries[0].Details["cached"])
	assert.Equal(t, "100.00", entries[0].Details["derived"])
	assert.Equal(t, "60.00", entries[0].Details["drift"])
}

func TestReconciler_ReconcileAccount_RepairsNegativeDrift(t *testing.T) {
	db, _, aliceAccID := seedWorld(t, "900.00", "150.00")
	ctx := context.Background()

	result, err := newReconciler(db).ReconcileAccount(ctx, aliceAccID)
	require.NoError(t, err)

	assert.True(t, result.Repaired)
	assert.True(t, result.Drift.Equal(money.MustParse("-50.00")))

	entries, err := db.Audits().List(ctx, audit.Filters{AccountID: &aliceAccID})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "-50.00", entries[0].Details["drift"])
}

func TestReconciler_ReconcileAccount_NotFound(t *testing.T) {
	db, _, _ := seedWorld(t, "900.00", "100.00")

	_, err := newReconciler(db).ReconcileAccount(context.Background(), 404)
	assert.True(t, apperr.Is(err, apperr.CodeAccountNotFound), "got %v", err)
}

// =============================================================================
// Full Pass Tests
// =============================================================================

func TestReconciler_ReconcileAll(t *testing.T) {
	db, _, aliceAccID := seedWorld(t, "900.00", "0.00")
	ctx := context.Background()
	r := newReconciler(db)

	summary, err := r.ReconcileAll(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Checked)
	assert.Equal(t, 1, summary.Repaired)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, aliceAccID, summary.Results[0].AccountID)
	assert.True(t, summary.Results[0].Repaired)

	// The next pass finds nothing to repair.
	summary, err = r.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Checked)
	assert.Zero(t, summary.Repaired)
	assert.Empty(t, summary.Results)
}
