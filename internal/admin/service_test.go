package admin_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferrobank/ferro/internal/admin"
	"github.com/ferrobank/ferro/internal/apperr"
	"github.com/ferrobank/ferro/internal/audit"
	"github.com/ferrobank/ferro/internal/balance"
	"github.com/ferrobank/ferro/internal/fund"
	"github.com/ferrobank/ferro/internal/gate"
	"github.com/ferrobank/ferro/internal/ledger"
	"github.com/ferrobank/ferro/internal/platform/account"
	"github.com/ferrobank/ferro/internal/platform/user"
	"github.com/ferrobank/ferro/internal/system"
	"github.com/ferrobank/ferro/pkg/logger"
	"github.com/ferrobank/ferro/pkg/money"
	"github.com/ferrobank/ferro/testutil/memstore"
)

const (
	systemID int64 = 1
	adminID  int64 = 2
	aliceID  int64 = 3
	carolID  int64 = 4 // verification pending
)

type world struct {
	db       *memstore.DB
	svc      *admin.Service
	funds    *fund.Service
	balances *balance.Service
	audits   *audit.Service
	treasury int64
	accounts map[int64]int64
}

func newWorld(t *testing.T) *world {
	t.Helper()

	db := memstore.New()
	log := logger.NewDefault("test")

	db.SeedUser(&user.User{ID: systemID, Email: "system@ferro.test", FullName: "System", PasswordHash: "x", IsActive: true, IsAdmin: true, KYCStatus: user.KYCApproved})
	db.SeedUser(&user.User{ID: adminID, Email: "admin@ferro.test", FullName: "Admin", PasswordHash: "x", IsActive: true, IsAdmin: true, KYCStatus: user.KYCApproved})
	db.SeedUser(&user.User{ID: aliceID, Email: "alice@ferro.test", FullName: "Alice", PasswordHash: "x", IsActive: true, KYCStatus: user.KYCApproved})
	db.SeedUser(&user.User{ID: carolID, Email: "carol@ferro.test", FullName: "Carol", PasswordHash: "x", IsActive: true, KYCStatus: user.KYCPending})

	w := &world{db: db, accounts: make(map[int64]int64)}
	w.treasury = db.SeedAccount(&account.Account{
		AccountNumber: account.ReserveAccountNumber, OwnerID: systemID,
		AccountType: account.TypeTreasury, Balance: decimal.Zero, Currency: "USD",
		Status: account.StatusActive, KYCLevel: account.KYCLevelFull, IsAdminAccount: true,
	})
	for _, owner := range []int64{adminID, aliceID, carolID} {
		w.accounts[owner] = db.SeedAccount(account.NewPrimary(owner, time.Now().UTC()))
	}

	reserve := &system.Reserve{UserID: systemID, AccountID: w.treasury, AccountNumber: account.ReserveAccountNumber}
	w.balances = balance.NewService(db.Ledger(), db.Users(), db.Accounts(), nil, log)
	w.audits = audit.NewService(db.Audits(), db.Users(), db.Accounts())
	gateSvc := gate.NewService(db.Users(), db.Accounts(), w.balances, nil, money.MustParse("5000.00"))
	ledgerSvc := ledger.NewService(db.Ledger())
	userSvc := user.NewService(db.Users(), db.Accounts(), db)

	w.funds = fund.NewService(
		db, gateSvc, ledgerSvc, db.Ledger(), w.audits,
		db.Users(), db.Accounts(), w.balances, reserve,
		fund.NewLogNotifier(log), 5*time.Second, log,
	)
	w.svc = admin.NewService(db.Users(), userSvc, db.Accounts(), w.audits, w.funds, db, log)
	return w
}

func (w *world) lastAudit(t *testing.T, subject int64) *audit.Entry {
	t.Helper()
	entries, err := w.audits.List(context.Background(), audit.Filters{UserID: &subject})
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	return entries[0]
}

func (w *world) accountStatus(t *testing.T, id int64) account.Status {
	t.Helper()
	acc, err := w.db.Accounts().GetByID(context.Background(), id)
	require.NoError(t, err)
	return acc.Status
}

// =============================================================================
// Freeze Tests
// =============================================================================

func TestService_FreezeAndUnfreeze(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	accID := w.accounts[aliceID]

	require.NoError(t, w.svc.FreezeAccount(ctx, adminID, accID, "chargeback review"))
	assert.Equal(t, account.StatusFrozen, w.accountStatus(t, accID))

	entry := w.lastAudit(t, aliceID)
	assert.Equal(t, audit.ActionFreeze, entry.ActionType)
	assert.Equal(t, "active", entry.Details["from_status"])
	assert.Equal(t, "frozen", entry.Details["to_status"])

	require.NoError(t, w.svc.UnfreezeAccount(ctx, adminID, accID, "review cleared"))
	assert.Equal(t, account.StatusActive, w.accountStatus(t, accID))
	assert.Equal(t, audit.ActionUnfreeze, w.lastAudit(t, aliceID).ActionType)
}

func TestService_Freeze_Refusals(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	accID := w.accounts[aliceID]

	t.Run("non-admin actor", func(t *testing.T) {
		err := w.svc.FreezeAccount(ctx, aliceID, accID, "nope")
		assert.True(t, apperr.Is(err, apperr.CodeNotAdmin), "got %v", err)
	})

	t.Run("deactivated admin", func(t *testing.T) {
		require.NoError(t, w.db.Users().SetActive(ctx, adminID, false))
		err := w.svc.FreezeAccount(ctx, adminID, accID, "nope")
		assert.True(t, apperr.Is(err, apperr.CodeActorInactive), "got %v", err)
		require.NoError(t, w.db.Users().SetActive(ctx, adminID, true))
	})

	t.Run("unknown account", func(t *testing.T) {
		err := w.svc.FreezeAccount(ctx, adminID, 404, "nope")
		assert.True(t, apperr.Is(err, apperr.CodeAccountNotFound), "got %v", err)
	})

	t.Run("closed account", func(t *testing.T) {
		require.NoError(t, w.db.Accounts().UpdateStatus(ctx, accID, account.StatusClosed))
		err := w.svc.FreezeAccount(ctx, adminID, accID, "nope")
		assert.True(t, apperr.Is(err, apperr.CodeAccountClosed), "got %v", err)
	})
}

// =============================================================================
// KYC Decision Tests
// =============================================================================

func TestService_ApproveKYC_ReleasesHeldFunds(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	// An unrelated posted movement; the release must not touch it.
	_, err := w.funds.Deposit(ctx, aliceID, w.accounts[aliceID], money.MustParse("10.00"))
	require.NoError(t, err)
	held, err := w.funds.Deposit(ctx, carolID, w.accounts[carolID], money.MustParse("100.00"))
	require.NoError(t, err)
	require.Equal(t, ledger.TransactionStatusPending, held.Status)

	released, failed, err := w.svc.ApproveKYC(ctx, adminID, carolID, "documents verified")
	require.NoError(t, err)
	assert.Equal(t, 1, released)
	assert.Zero(t, failed)

	subject, err := w.db.Users().GetByID(ctx, carolID)
	require.NoError(t, err)
	assert.Equal(t, user.KYCApproved, subject.KYCStatus)

	got, err := w.funds.GetTransaction(ctx, held.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.TransactionStatusCompleted, got.Status)

	available, err := w.balances.UserBalance(ctx, carolID)
	require.NoError(t, err)
	assert.True(t, available.Equal(money.MustParse("100.00")))

	entry := w.lastAudit(t, carolID)
	assert.Equal(t, audit.ActionApproveKYC, entry.ActionType)
	assert.Equal(t, "pending", entry.Details["from_status"])
	assert.Equal(t, "approved", entry.Details["to_status"])
}

func TestService_RejectKYC_FailsHeldFunds(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	held, err := w.funds.Deposit(ctx, carolID, w.accounts[carolID], money.MustParse("100.00"))
	require.NoError(t, err)

	failed, err := w.svc.RejectKYC(ctx, adminID, carolID, "documents forged")
	require.NoError(t, err)
	assert.Equal(t, 1, failed)

	subject, err := w.db.Users().GetByID(ctx, carolID)
	require.NoError(t, err)
	assert.Equal(t, user.KYCRejected, subject.KYCStatus)

	got, err := w.funds.GetTransaction(ctx, held.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.TransactionStatusFailed, got.Status)

	available, err := w.balances.UserBalance(ctx, carolID)
	require.NoError(t, err)
	assert.True(t, available.IsZero())
}

func TestService_KYCDecision_Refusals(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	_, _, err := w.svc.ApproveKYC(ctx, aliceID, carolID, "not an admin")
	assert.True(t, apperr.Is(err, apperr.CodeNotAdmin), "got %v", err)

	_, _, err = w.svc.ApproveKYC(ctx, adminID, 404, "missing subject")
	assert.True(t, apperr.Is(err, apperr.CodeUserNotFound), "got %v", err)
}

// =============================================================================
// Password and Role Tests
// =============================================================================

func TestService_ResetPassword(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	seed := &user.User{}
	require.NoError(t, seed.SetPassword("old password 1"))
	require.NoError(t, w.db.Users().UpdatePassword(ctx, aliceID, seed.PasswordHash))

	require.NoError(t, w.svc.ResetPassword(ctx, adminID, aliceID, "new password 1", "support ticket"))

	stored, err := w.db.Users().GetByID(ctx, aliceID)
	require.NoError(t, err)
	assert.NoError(t, stored.CheckPassword("new password 1"))
	assert.ErrorIs(t, stored.CheckPassword("old password 1"), user.ErrInvalidCredentials)
	assert.Equal(t, audit.ActionResetPassword, w.lastAudit(t, aliceID).ActionType)

	t.Run("short password", func(t *testing.T) {
		err := w.svc.ResetPassword(ctx, adminID, aliceID, "short", "nope")
		assert.True(t, apperr.Is(err, apperr.CodeValidation), "got %v", err)
	})

	t.Run("system user is immutable", func(t *testing.T) {
		err := w.svc.ResetPassword(ctx, adminID, systemID, "whatever123", "nope")
		assert.True(t, apperr.Is(err, apperr.CodeValidation), "got %v", err)
	})
}

func TestService_SetAdmin(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	require.NoError(t, w.svc.SetAdmin(ctx, adminID, aliceID, true, "promotion"))

	stored, err := w.db.Users().GetByID(ctx, aliceID)
	require.NoError(t, err)
	assert.True(t, stored.IsAdmin)

	entry := w.lastAudit(t, aliceID)
	assert.Equal(t, audit.ActionSetAdmin, entry.ActionType)
	assert.Equal(t, true, entry.Details["is_admin"])

	require.NoError(t, w.svc.SetAdmin(ctx, adminID, aliceID, false, "demotion"))
	stored, err = w.db.Users().GetByID(ctx, aliceID)
	require.NoError(t, err)
	assert.False(t, stored.IsAdmin)

	err = w.svc.SetAdmin(ctx, adminID, systemID, false, "nope")
	assert.True(t, apperr.Is(err, apperr.CodeValidation), "got %v", err)
}

// =============================================================================
// User Lifecycle Tests
// =============================================================================

func TestService_CreateUser(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	created, acc, err := w.svc.CreateUser(ctx, adminID, "new@ferro.test", "password123", "New Customer", "onboarding")
	require.NoError(t, err)
	require.NotNil(t, created)
	require.NotNil(t, acc)

	assert.Equal(t, created.ID, acc.OwnerID)
	assert.Equal(t, account.TypePrimary, acc.AccountType)
	assert.NoError(t, created.CheckPassword("password123"))

	entry := w.lastAudit(t, created.ID)
	assert.Equal(t, audit.ActionCreateUser, entry.ActionType)
	assert.Equal(t, "new@ferro.test", entry.Details["email"])

	t.Run("duplicate email", func(t *testing.T) {
		_, _, err := w.svc.CreateUser(ctx, adminID, "new@ferro.test", "password123", "Duplicate", "nope")
		assert.True(t, apperr.Is(err, apperr.CodeEmailTaken), "got %v", err)
	})

	t.Run("short password", func(t *testing.T) {
		_, _, err := w.svc.CreateUser(ctx, adminID, "other@ferro.test", "short", "Other", "nope")
		assert.True(t, apperr.Is(err, apperr.CodeValidation), "got %v", err)
	})
}

func TestService_DeactivateUser(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	require.NoError(t, w.svc.DeactivateUser(ctx, adminID, aliceID, "account closure request"))

	// The row and its history survive; the user just cannot act.
	stored, err := w.db.Users().GetByID(ctx, aliceID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
	assert.Equal(t, audit.ActionDeleteUser, w.lastAudit(t, aliceID).ActionType)

	err = w.svc.DeactivateUser(ctx, adminID, systemID, "nope")
	assert.True(t, apperr.Is(err, apperr.CodeValidation), "got %v", err)
}

// =============================================================================
// Audit Listing Tests
// =============================================================================

func TestService_ListAuditLogs(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	require.NoError(t, w.svc.FreezeAccount(ctx, adminID, w.accounts[aliceID], "one"))
	require.NoError(t, w.svc.UnfreezeAccount(ctx, adminID, w.accounts[aliceID], "two"))

	entries, err := w.svc.ListAuditLogs(ctx, adminID, audit.Filters{})
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	_, err = w.svc.ListAuditLogs(ctx, aliceID, audit.Filters{})
	assert.True(t, apperr.Is(err, apperr.CodeNotAdmin), "got %v", err)
}
