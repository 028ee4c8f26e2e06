package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferrobank/ferro/internal/audit"
	"github.com/ferrobank/ferro/internal/platform/account"
	"github.com/ferrobank/ferro/internal/platform/user"
	"github.com/ferrobank/ferro/testutil/memstore"
)

var (
	adminID int64 = 1
	aliceID int64 = 2
	bobID   int64 = 3
)

func seedFixtures(t *testing.T) (*memstore.DB, int64) {
	t.Helper()

	db := memstore.New()
	db.SeedUser(&user.User{ID: adminID, Email: "admin@ferro.test", FullName: "Admin", PasswordHash: "x", IsActive: true, IsAdmin: true, KYCStatus: user.KYCApproved})
	db.SeedUser(&user.User{ID: aliceID, Email: "alice@ferro.test", FullName: "Alice", PasswordHash: "x", IsActive: true, KYCStatus: user.KYCApproved})
	db.SeedUser(&user.User{ID: bobID, Email: "bob@ferro.test", FullName: "Bob", PasswordHash: "x", IsActive: true, KYCStatus: user.KYCApproved})

	accID := db.SeedAccount(&account.Account{
		AccountNumber: "ACC-ALICE", OwnerID: aliceID,
		AccountType: account.TypePrimary, Balance: decimal.Zero, Currency: "USD",
		Status: account.StatusActive,
	})
	return db, accID
}

func newService(db *memstore.DB) *audit.Service {
	return audit.NewService(db.Audits(), db.Users(), db.Accounts())
}

// =============================================================================
// Record Tests
// =============================================================================

func TestService_Record(t *testing.T) {
	db, accID := seedFixtures(t)
	svc := newService(db)
	ctx := context.Background()

	id, err := svc.Record(ctx, &audit.Entry{
		AdminID:    adminID,
		UserID:     aliceID,
		AccountID:  &accID,
		ActionType: audit.ActionFreeze,
		Reason:     "chargeback review",
		Details:    map[string]interface{}{"ticket": "OPS-114"},
	})
	require.NoError(t, err)
	require.NotZero(t, id)

	entries, err := svc.List(ctx, audit.Filters{})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	got := entries[0]
	assert.Equal(t, id, got.ID)
	assert.Equal(t, audit.ActionFreeze, got.ActionType)
	assert.Equal(t, audit.StatusSuccess, got.Status, "status defaults to success")
	assert.Equal(t, "chargeback review", got.Reason)
	assert.Equal(t, "OPS-114", got.Details["ticket"])
	assert.False(t, got.CreatedAt.IsZero())
}

func TestService_Record_RejectsUnknownAction(t *testing.T) {
	db, _ := seedFixtures(t)
	svc := newService(db)

	_, err := svc.Record(context.Background(), &audit.Entry{
		AdminID:    adminID,
		UserID:     aliceID,
		ActionType: audit.ActionType("impersonate"),
		Reason:     "nope",
	})
	assert.ErrorIs(t, err, audit.ErrUnknownActionType)
}

func TestService_Record_BindingValidation(t *testing.T) {
	db, accID := seedFixtures(t)
	svc := newService(db)
	ctx := context.Background()

	tests := []struct {
		name  string
		entry audit.Entry
		want  error
	}{
		{
			name:  "missing admin binding",
			entry: audit.Entry{UserID: aliceID, ActionType: audit.ActionFreeze},
			want:  audit.ErrMissingAdmin,
		},
		{
			name:  "missing subject binding",
			entry: audit.Entry{AdminID: adminID, ActionType: audit.ActionFreeze},
			want:  audit.ErrMissingSubject,
		},
		{
			name:  "unknown admin",
			entry: audit.Entry{AdminID: 404, UserID: aliceID, ActionType: audit.ActionFreeze},
			want:  audit.ErrAdminNotFound,
		},
		{
			name:  "actor without admin rights",
			entry: audit.Entry{AdminID: bobID, UserID: aliceID, ActionType: audit.ActionFreeze},
			want:  audit.ErrActorNotAdmin,
		},
		{
			name:  "unknown subject",
			entry: audit.Entry{AdminID: adminID, UserID: 404, ActionType: audit.ActionFreeze},
			want:  audit.ErrSubjectNotFound,
		},
		{
			name:  "account of a different user",
			entry: audit.Entry{AdminID: adminID, UserID: bobID, AccountID: &accID, ActionType: audit.ActionFreeze},
			want:  audit.ErrAccountNotOfSubject,
		},
		{
			name:  "invalid status",
			entry: audit.Entry{AdminID: adminID, UserID: aliceID, ActionType: audit.ActionFreeze, Status: audit.Status("maybe")},
			want:  audit.ErrInvalidStatus,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := tt.entry
			_, err := svc.Record(ctx, &entry)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("unknown account", func(t *testing.T) {
		missing := int64(404)
		_, err := svc.Record(ctx, &audit.Entry{
			AdminID: adminID, UserID: aliceID, AccountID: &missing,
			ActionType: audit.ActionFreeze,
		})
		assert.ErrorIs(t, err, audit.ErrAccountNotFound)
	})
}

// =============================================================================
// List Tests
// =============================================================================

func TestService_List_Filters(t *testing.T) {
	db, accID := seedFixtures(t)
	svc := newService(db)
	ctx := context.Background()

	record := func(subject int64, action audit.ActionType, accountID *int64) {
		t.Helper()
		_, err := svc.Record(ctx, &audit.Entry{
			AdminID:    adminID,
			UserID:     subject,
			AccountID:  accountID,
			ActionType: action,
			Reason:     "test",
		})
		require.NoError(t, err)
	}

	record(aliceID, audit.ActionFreeze, &accID)
	record(aliceID, audit.ActionUnfreeze, &accID)
	cutoff := time.Now().UTC()
	record(bobID, audit.ActionApproveKYC, nil)
	record(bobID, audit.ActionResetPassword, nil)

	t.Run("by subject", func(t *testing.T) {
		got, err := svc.List(ctx, audit.Filters{UserID: &aliceID})
		require.NoError(t, err)
		require.Len(t, got, 2)
		for _, e := range got {
			assert.Equal(t, aliceID, e.UserID)
		}
	})

	t.Run("by action type", func(t *testing.T) {
		action := audit.ActionApproveKYC
		got, err := svc.List(ctx, audit.Filters{ActionType: &action})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, bobID, got[0].UserID)
	})

	t.Run("by account", func(t *testing.T) {
		got, err := svc.List(ctx, audit.Filters{AccountID: &accID})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("by time window", func(t *testing.T) {
		got, err := svc.List(ctx, audit.Filters{From: &cutoff})
		require.NoError(t, err)
		require.Len(t, got, 2)
		for _, e := range got {
			assert.Equal(t, bobID, e.UserID)
		}

		got, err = svc.List(ctx, audit.Filters{To: &cutoff})
		require.NoError(t, err)
		require.Len(t, got, 2)
		for _, e := range got {
			assert.Equal(t, aliceID, e.UserID)
		}
	})

	t.Run("newest first with paging", func(t *testing.T) {
		all, err := svc.List(ctx, audit.Filters{})
		require.NoError(t, err)
		require.Len(t, all, 4)
		assert.Equal(t, audit.ActionResetPassword, all[0].ActionType)

		page, err := svc.List(ctx, audit.Filters{Limit: 2, Skip: 2})
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, all[2].ID, page[0].ID)
	})
}
