package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferrobank/ferro/internal/admin"
	"github.com/ferrobank/ferro/internal/audit"
	"github.com/ferrobank/ferro/internal/balance"
	"github.com/ferrobank/ferro/internal/fund"
	"github.com/ferrobank/ferro/internal/gate"
	"github.com/ferrobank/ferro/internal/invariant"
	"github.com/ferrobank/ferro/internal/ledger"
	"github.com/ferrobank/ferro/internal/platform/account"
	"github.com/ferrobank/ferro/internal/platform/user"
	"github.com/ferrobank/ferro/internal/reconcile"
	"github.com/ferrobank/ferro/internal/system"
	"github.com/ferrobank/ferro/internal/transport/httpapi"
	"github.com/ferrobank/ferro/internal/transport/httpapi/handler"
	"github.com/ferrobank/ferro/internal/transport/httpapi/middleware"
	"github.com/ferrobank/ferro/pkg/logger"
	"github.com/ferrobank/ferro/pkg/money"
	"github.com/ferrobank/ferro/testutil/memstore"
)

// world wires the full HTTP surface over the in-memory store, so contract
// tests exercise router, middleware, and handlers together the way a real
// deployment would.
type world struct {
	t        *testing.T
	db       *memstore.DB
	router   http.Handler
	jwt      *middleware.JWTService
	balances *balance.Service
	adminID  int64
	treasury int64
}

func setup(t *testing.T) *world {
	t.Helper()

	db := memstore.New()
	log := logger.NewDefault("test")

	w := &world{t: t, db: db}

	db.SeedUser(&user.User{ID: user.SystemUserID, Email: "system@ferro.test", FullName: "System", PasswordHash: "x", IsActive: true, IsAdmin: true, KYCStatus: user.KYCApproved})
	w.treasury = db.SeedAccount(&account.Account{
		AccountNumber: account.ReserveAccountNumber, OwnerID: user.SystemUserID,
		AccountType: account.TypeTreasury, Balance: decimal.Zero, Currency: "USD",
		Status: account.StatusActive, KYCLevel: account.KYCLevelFull, IsAdminAccount: true,
	})
	w.postPair(ledger.TransactionTypeSystemSeed, user.SystemUserID, w.treasury, user.SystemUserID, user.SystemUserID, "10000.00")

	root := &user.User{Email: "root@ferro.test", FullName: "Root Admin", IsActive: true, IsAdmin: true, KYCStatus: user.KYCApproved}
	require.NoError(t, root.SetPassword("root-password-1"))
	w.adminID = db.SeedUser(root)
	db.SeedAccount(account.NewPrimary(w.adminID, time.Now().UTC()))

	reserve := &system.Reserve{UserID: user.SystemUserID, AccountID: w.treasury, AccountNumber: account.ReserveAccountNumber}
	w.balances = balance.NewService(db.Ledger(), db.Users(), db.Accounts(), nil, log)
	audits := audit.NewService(db.Audits(), db.Users(), db.Accounts())
	gateSvc := gate.NewService(db.Users(), db.Accounts(), w.balances, nil, money.MustParse("5000.00"))
	ledgerSvc := ledger.NewService(db.Ledger())
	userSvc := user.NewService(db.Users(), db.Accounts(), db)
	fundSvc := fund.NewService(
		db, gateSvc, ledgerSvc, db.Ledger(), audits,
		db.Users(), db.Accounts(), w.balances, reserve,
		fund.NewLogNotifier(log), 5*time.Second, log,
	)
	adminSvc := admin.NewService(db.Users(), userSvc, db.Accounts(), audits, fundSvc, db, log)
	verifier := invariant.NewVerifier(db.Users(), db.Users(), db.Accounts(), db.Accounts(), db.Ledger(), ledgerSvc, audits, db, log)
	reconciler := reconcile.NewReconciler(db.Accounts(), w.balances, audits, db, log)

	w.jwt = middleware.NewJWTService("contract-test-secret-0123456789abcdef", 15*time.Minute)

	w.router = httpapi.NewRouter(httpapi.Config{
		Logger:             log,
		AllowedOrigins:     []string{"*"},
		AuthHandler:        handler.NewAuthHandler(userSvc, w.jwt),
		BalanceHandler:     handler.NewBalanceHandler(w.balances),
		TransactionHandler: handler.NewTransactionHandler(fundSvc, db.Accounts(), db.Users()),
		AdminHandler:       handler.NewAdminHandler(adminSvc, fundSvc, verifier, reconciler),
		JWTMiddleware:      middleware.JWTMiddleware(w.jwt),
	})
	return w
}

// postPair injects a completed transaction with its posted entry pair,
// bypassing the engine, so fixtures start from a funded book.
func (w *world) postPair(txType ledger.TransactionType, ownerID, accID, debitUser, creditUser int64, amount string) int64 {
	amt := money.MustParse(amount)
	txID := w.db.PutTransaction(&ledger.Transaction{
		Reference: uuid.New(), UserID: ownerID, AccountID: accID, Amount: amt,
		Type: txType, Direction: ledger.DirectionCredit, Status: ledger.TransactionStatusCompleted,
	})
	d := w.db.PutEntry(&ledger.Entry{UserID: debitUser, EntryType: ledger.EntryTypeDebit, Amount: amt, TransactionID: txID, Status: ledger.EntryStatusPosted})
	c := w.db.PutEntry(&ledger.Entry{UserID: creditUser, EntryType: ledger.EntryTypeCredit, Amount: amt, TransactionID: txID, Status: ledger.EntryStatusPosted})
	w.db.SetRelated(d, c)
	w.db.SetRelated(c, d)
	return txID
}

// seedCustomer inserts a ready-made customer with a primary account and,
// when funded is non-empty, a posted deposit of that amount.
func (w *world) seedCustomer(email string, kyc user.KYCStatus, funded string) (userID, accountID int64) {
	w.t.Helper()
	userID = w.db.SeedUser(&user.User{Email: email, FullName: "Fixture Customer", PasswordHash: "x", IsActive: true, KYCStatus: kyc})
	accountID = w.db.SeedAccount(account.NewPrimary(userID, time.Now().UTC()))
	if funded != "" {
		w.postPair(ledger.TransactionTypeDeposit, userID, accountID, user.SystemUserID, userID, funded)
	}
	return userID, accountID
}

// token mints a bearer token for the stored user.
func (w *world) token(userID int64) string {
	w.t.Helper()
	u, err := w.db.Users().GetByID(context.Background(), userID)
	require.NoError(w.t, err)
	tok, err := w.jwt.GenerateToken(u.ID, u.Email, u.IsAdmin)
	require.NoError(w.t, err)
	return tok
}

func (w *world) adminToken() string { return w.token(w.adminID) }

// do executes one request against the router.
func (w *world) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	w.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(w.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	w.router.ServeHTTP(rec, req)
	return rec
}

// decode unmarshals a JSON response body.
func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), "body: %s", rec.Body.String())
	return body
}

// =============================================================================
// Health Tests
// =============================================================================

func TestRouter_Health(t *testing.T) {
	w := setup(t)

	rec := w.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])

	rec = w.do(http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alive", decode(t, rec)["status"])
}

// =============================================================================
// Authentication Enforcement Tests
// =============================================================================

func TestRouter_ProtectedRoutesRequireToken(t *testing.T) {
	w := setup(t)

	t.Run("missing header", func(t *testing.T) {
		rec := w.do(http.MethodGet, "/api/v1/balance", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "UNAUTHORIZED", decode(t, rec)["code"])
	})

	t.Run("wrong scheme", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/balance", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		rec := httptest.NewRecorder()
		w.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		rec := w.do(http.MethodGet, "/api/v1/balance", "not-a-jwt", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "UNAUTHORIZED", decode(t, rec)["code"])
	})
}

func TestRouter_AdminRoutesRequireAdminClaim(t *testing.T) {
	w := setup(t)
	aliceID, _ := w.seedCustomer("alice@ferro.test", user.KYCApproved, "")

	rec := w.do(http.MethodGet, "/api/v1/admin/audit-logs", w.token(aliceID), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "NOT_ADMIN", decode(t, rec)["code"])
}

func TestRouter_AdminClaimIsRoutingGateOnly(t *testing.T) {
	// The service re-reads the actor row, so a token minted before
	// deactivation stops working immediately.
	w := setup(t)
	ctx := context.Background()

	token := w.adminToken()
	require.NoError(t, w.db.Users().SetActive(ctx, w.adminID, false))

	rec := w.do(http.MethodGet, "/api/v1/admin/audit-logs", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "ACTOR_INACTIVE", decode(t, rec)["code"])
}
