package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/ferrobank/ferro/internal/apperr"
	"github.com/ferrobank/ferro/internal/audit"
	"github.com/ferrobank/ferro/internal/invariant"
	"github.com/ferrobank/ferro/internal/ledger"
	"github.com/ferrobank/ferro/internal/platform/account"
	"github.com/ferrobank/ferro/internal/platform/user"
	"github.com/ferrobank/ferro/internal/reconcile"
	"github.com/ferrobank/ferro/internal/transport/httpapi/middleware"
	"github.com/ferrobank/ferro/pkg/money"
)

// AdminServiceInterface defines the privileged operations needed by AdminHandler
type AdminServiceInterface interface {
	FreezeAccount(ctx context.Context, adminID, accountID int64, reason string) error
	UnfreezeAccount(ctx context.Context, adminID, accountID int64, reason string) error
	ApproveKYC(ctx context.Context, adminID, userID int64, reason string) (released, failed int, err error)
	RejectKYC(ctx context.Context, adminID, userID int64, reason string) (failed int, err error)
	ResetPassword(ctx context.Context, adminID, userID int64, newPassword, reason string) error
	SetAdmin(ctx context.Context, adminID, userID int64, isAdmin bool, reason string) error
	CreateUser(ctx context.Context, adminID int64, email, password, fullName, reason string) (*user.User, *account.Account, error)
	DeactivateUser(ctx context.Context, adminID, userID int64, reason string) error
	ListAuditLogs(ctx context.Context, adminID int64, filters audit.Filters) ([]*audit.Entry, error)
}

// TreasuryServiceInterface defines the treasury operations needed by AdminHandler
type TreasuryServiceInterface interface {
	AdminFundFromReserve(ctx context.Context, adminID, targetUserID, targetAccountID int64, amount decimal.Decimal, reason string) (*ledger.Transaction, int64, error)
	AdminReverse(ctx context.Context, adminID, transactionID int64, reason string) (*ledger.Transaction, int64, error)
}

// VerifierInterface defines the invariant sweeps needed by AdminHandler
type VerifierInterface interface {
	Run(ctx context.Context) (*invariant.Report, error)
	Repair(ctx context.Context) (*invariant.Report, error)
}

// ReconcilerInterface defines the reconciliation trigger needed by AdminHandler
type ReconcilerInterface interface {
	ReconcileAll(ctx context.Context) (*reconcile.Summary, error)
}

// AdminHandler handles privileged HTTP requests. Route-level admin checks
// happen in middleware; every service below re-verifies the actor row.
type AdminHandler struct {
	admins     AdminServiceInterface
	treasury   TreasuryServiceInterface
	verifier   VerifierInterface
	reconciler ReconcilerInterface
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(admins AdminServiceInterface, treasury TreasuryServiceInterface, verifier VerifierInterface, reconciler ReconcilerInterface) *AdminHandler {
	return &AdminHandler{
		admins:     admins,
		treasury:   treasury,
		verifier:   verifier,
		reconciler: reconciler,
	}
}

// AdminFundRequest is the body for treasury funding. TargetAccountID may be
// omitted to credit the user's primary account.
type AdminFundRequest struct {
	TargetUserID    int64  `json:"target_user_id"`
	TargetAccountID int64  `json:"target_account_id,omitempty"`
	Amount          string `json:"amount"`
	Reason          string `json:"reason"`
}

// ReasonRequest is the body for admin actions that only carry a reason
type ReasonRequest struct {
	Reason string `json:"reason"`
}

// ResetPasswordRequest is the body for password resets
type ResetPasswordRequest struct {
	NewPassword string `json:"new_password"`
	Reason      string `json:"reason"`
}

// SetRoleRequest is the body for granting or revoking the admin role
type SetRoleRequest struct {
	IsAdmin bool   `json:"is_admin"`
	Reason  string `json:"reason"`
}

// CreateUserRequest is the body for admin-driven user creation
type CreateUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Reason   string `json:"reason"`
}

// AdminActionResponse pairs a transaction with the audit entry recorded in
// the same database transaction.
type AdminActionResponse struct {
	Transaction *TransactionResponse `json:"transaction"`
	AuditID     int64                `json:"audit_id"`
}

// KYCDecisionResponse reports a KYC decision and its settlement effects
type KYCDecisionResponse struct {
	UserID    int64  `json:"user_id"`
	KYCStatus string `json:"kyc_status"`
	Released  int    `json:"released"`
	Failed    int    `json:"failed"`
}

// AccountStatusResponse reports an account status change
type AccountStatusResponse struct {
	AccountID int64  `json:"account_id"`
	Status    string `json:"status"`
}

// AuditLogResponse is one audit trail record
type AuditLogResponse struct {
	ID            int64                  `json:"id"`
	AdminID       int64                  `json:"admin_id"`
	UserID        int64                  `json:"user_id"`
	AccountID     *int64                 `json:"account_id,omitempty"`
	ActionType    string                 `json:"action_type"`
	Reason        string                 `json:"reason,omitempty"`
	Details       map[string]interface{} `json:"details,omitempty"`
	Status        string                 `json:"status"`
	StatusMessage *string                `json:"status_message,omitempty"`
	CreatedAt     string                 `json:"created_at"`
}

// AuditLogListResponse is a page of audit trail records
type AuditLogListResponse struct {
	Logs  []*AuditLogResponse `json:"logs"`
	Limit int                 `json:"limit"`
	Skip  int                 `json:"skip"`
}

// ImbalanceResponse reports one transaction whose entry sides disagree
type ImbalanceResponse struct {
	TransactionID int64  `json:"transaction_id"`
	DebitTotal    string `json:"debit_total"`
	CreditTotal   string `json:"credit_total"`
}

// InvariantReportResponse is the outcome of an invariant sweep
type InvariantReportResponse struct {
	Clean               bool                 `json:"clean"`
	OrphanedUsers       []int64              `json:"orphaned_users,omitempty"`
	OwnerlessAccounts   []int64              `json:"ownerless_accounts,omitempty"`
	UnboundTransactions []int64              `json:"unbound_transactions,omitempty"`
	InvalidKYCUsers     []int64              `json:"invalid_kyc_users,omitempty"`
	Imbalances          []*ImbalanceResponse `json:"imbalances,omitempty"`
	UnpairedEntries     []int64              `json:"unpaired_entries,omitempty"`
	NonPositiveEntries  []int64              `json:"non_positive_entries,omitempty"`
	RepairedAccounts    int                  `json:"repaired_accounts,omitempty"`
	RepairedKYC         int                  `json:"repaired_kyc,omitempty"`
}

// ReconcileResultResponse reports one drifted account
type ReconcileResultResponse struct {
	AccountID     int64  `json:"account_id"`
	AccountNumber string `json:"account_number"`
	Cached        string `json:"cached"`
	Derived       string `json:"derived"`
	Drift         string `json:"drift"`
	Repaired      bool   `json:"repaired"`
}

// ReconcileSummaryResponse reports one reconciliation pass
type ReconcileSummaryResponse struct {
	Checked  int                        `json:"checked"`
	Repaired int                        `json:"repaired"`
	Results  []*ReconcileResultResponse `json:"results,omitempty"`
}

// Fund handles POST /api/v1/admin/fund
func (h *AdminHandler) Fund(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		respondError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req AdminFundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.TargetUserID <= 0 {
		respondAppError(w, apperr.Validation("target_user_id", "target_user_id is required"))
		return
	}
	amount, err := money.Parse(req.Amount)
	if err != nil {
		respondAppError(w, apperr.InvalidAmount("amount", err.Error()))
		return
	}

	tx, auditID, err := h.treasury.AdminFundFromReserve(r.Context(), adminID, req.TargetUserID, req.TargetAccountID, amount, req.Reason)
	if err != nil {
		respondAppError(w, err)
		return
	}

	respondJSON(w, AdminActionResponse{
		Transaction: toTransactionResponse(tx),
		AuditID:     auditID,
	}, http.StatusCreated)
}

// Reverse handles POST /api/v1/admin/transactions/{id}/reverse
func (h *AdminHandler) Reverse(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		respondError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	txID, err := pathID(r, "id")
	if err != nil {
		respondAppError(w, apperr.Validation("id", "invalid transaction id"))
		return
	}

	var req ReasonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	tx, auditID, err := h.treasury.AdminReverse(r.Context(), adminID, txID, req.Reason)
	if err != nil {
		respondAppError(w, err)
		return
	}

	respondJSON(w, AdminActionResponse{
		Transaction: toTransactionResponse(tx),
		AuditID:     auditID,
	}, http.StatusOK)
}

// Freeze handles POST /api/v1/admin/accounts/{id}/freeze
func (h *AdminHandler) Freeze(w http.ResponseWriter, r *http.Request) {
	h.setAccountStatus(w, r, h.admins.FreezeAccount, account.StatusFrozen)
}

// Unfreeze handles POST /api/v1/admin/accounts/{id}/unfreeze
func (h *AdminHandler) Unfreeze(w http.ResponseWriter, r *http.Request) {
	h.setAccountStatus(w, r, h.admins.UnfreezeAccount, account.StatusActive)
}

func (h *AdminHandler) setAccountStatus(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, adminID, accountID int64, reason string) error, result account.Status) {
	adminID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		respondError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	accountID, err := pathID(r, "id")
	if err != nil {
		respondAppError(w, apperr.Validation("id", "invalid account id"))
		return
	}

	var req ReasonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := op(r.Context(), adminID, accountID, req.Reason); err != nil {
		respondAppError(w, err)
		return
	}

	respondJSON(w, AccountStatusResponse{
		AccountID: accountID,
		Status:    string(result),
	}, http.StatusOK)
}

// ApproveKYC handles POST /api/v1/admin/users/{id}/kyc/approve
func (h *AdminHandler) ApproveKYC(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		respondError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	userID, err := pathID(r, "id")
	if err != nil {
		respondAppError(w, apperr.Validation("id", "invalid user id"))
		return
	}

	var req ReasonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	released, failed, err := h.admins.ApproveKYC(r.Context(), adminID, userID, req.Reason)
	if err != nil {
		respondAppError(w, err)
		return
	}

	respondJSON(w, KYCDecisionResponse{
		UserID:    userID,
		KYCStatus: string(user.KYCApproved),
		Released:  released,
		Failed:    failed,
	}, http.StatusOK)
}

// RejectKYC handles POST /api/v1/admin/users/{id}/kyc/reject
func (h *AdminHandler) RejectKYC(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		respondError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	userID, err := pathID(r, "id")
	if err != nil {
		respondAppError(w, apperr.Validation("id", "invalid user id"))
		return
	}

	var req ReasonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	failed, err := h.admins.RejectKYC(r.Context(), adminID, userID, req.Reason)
	if err != nil {
		respondAppError(w, err)
		return
	}

	respondJSON(w, KYCDecisionResponse{
		UserID:    userID,
		KYCStatus: string(user.KYCRejected),
		Failed:    failed,
	}, http.StatusOK)
}

// ResetPassword handles POST /api/v1/admin/users/{id}/reset-password
func (h *AdminHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		respondError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	userID, err := pathID(r, "id")
	if err != nil {
		respondAppError(w, apperr.Validation("id", "invalid user id"))
		return
	}

	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.NewPassword == "" {
		respondAppError(w, apperr.Validation("new_password", "new password is required"))
		return
	}

	if err := h.admins.ResetPassword(r.Context(), adminID, userID, req.NewPassword, req.Reason); err != nil {
		respondAppError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SetRole handles PUT /api/v1/admin/users/{id}/role
func (h *AdminHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		respondError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	userID, err := pathID(r, "id")
	if err != nil {
		respondAppError(w, apperr.Validation("id", "invalid user id"))
		return
	}

	var req SetRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.admins.SetAdmin(r.Context(), adminID, userID, req.IsAdmin, req.Reason); err != nil {
		respondAppError(w, err)
		return
	}

	respondJSON(w, map[string]interface{}{
		"user_id":  userID,
		"is_admin": req.IsAdmin,
	}, http.StatusOK)
}

// CreateUser handles POST /api/v1/admin/users
func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		respondError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Email == "" {
		respondAppError(w, apperr.Validation("email", "email is required"))
		return
	}
	if req.Password == "" {
		respondAppError(w, apperr.Validation("password", "password is required"))
		return
	}
	if req.FullName == "" {
		respondAppError(w, apperr.Validation("full_name", "full name is required"))
		return
	}

	created, primary, err := h.admins.CreateUser(r.Context(), adminID, req.Email, req.Password, req.FullName, req.Reason)
	if err != nil {
		respondAppError(w, err)
		return
	}

	respondJSON(w, map[string]interface{}{
		"user":    userInfo(created),
		"account": accountInfo(primary),
	}, http.StatusCreated)
}

// DeactivateUser handles DELETE /api/v1/admin/users/{id}
func (h *AdminHandler) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		respondError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	userID, err := pathID(r, "id")
	if err != nil {
		respondAppError(w, apperr.Validation("id", "invalid user id"))
		return
	}

	// DELETE bodies are optional; a missing body means no reason given.
	var req ReasonRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	if err := h.admins.DeactivateUser(r.Context(), adminID, userID, req.Reason); err != nil {
		respondAppError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListAuditLogs handles GET /api/v1/admin/audit-logs
func (h *AdminHandler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		respondError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	query := r.URL.Query()

	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit < 1 || limit > 200 {
		limit = 50
	}
	skip, _ := strconv.Atoi(query.Get("skip"))
	if skip < 0 {
		skip = 0
	}

	filters := audit.Filters{Limit: limit, Skip: skip}

	if v := query.Get("admin_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			respondAppError(w, apperr.Validation("admin_id", "invalid admin_id"))
			return
		}
		filters.AdminID = &id
	}
	if v := query.Get("user_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			respondAppError(w, apperr.Validation("user_id", "invalid user_id"))
			return
		}
		filters.UserID = &id
	}
	if v := query.Get("action"); v != "" {
		action := audit.ActionType(v)
		if !action.IsValid() {
			respondAppError(w, apperr.Validation("action", "unknown action type"))
			return
		}
		filters.ActionType = &action
	}
	if v := query.Get("from"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondAppError(w, apperr.Validation("from", "invalid from timestamp, expected RFC3339"))
			return
		}
		filters.From = &ts
	}
	if v := query.Get("to"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondAppError(w, apperr.Validation("to", "invalid to timestamp, expected RFC3339"))
			return
		}
		filters.To = &ts
	}

	logs, err := h.admins.ListAuditLogs(r.Context(), adminID, filters)
	if err != nil {
		respondAppError(w, err)
		return
	}

	responses := make([]*AuditLogResponse, len(logs))
	for i, entry := range logs {
		responses[i] = toAuditLogResponse(entry)
	}

	respondJSON(w, AuditLogListResponse{
		Logs:  responses,
		Limit: limit,
		Skip:  skip,
	}, http.StatusOK)
}

// VerifyInvariants handles GET /api/v1/admin/invariants
func (h *AdminHandler) VerifyInvariants(w http.ResponseWriter, r *http.Request) {
	report, err := h.verifier.Run(r.Context())
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, toInvariantResponse(report), http.StatusOK)
}

// RepairInvariants handles POST /api/v1/admin/invariants/repair
func (h *AdminHandler) RepairInvariants(w http.ResponseWriter, r *http.Request) {
	report, err := h.verifier.Repair(r.Context())
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, toInvariantResponse(report), http.StatusOK)
}

// Reconcile handles POST /api/v1/admin/reconcile
func (h *AdminHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	summary, err := h.reconciler.ReconcileAll(r.Context())
	if err != nil {
		respondAppError(w, err)
		return
	}

	results := make([]*ReconcileResultResponse, len(summary.Results))
	for i, res := range summary.Results {
		results[i] = &ReconcileResultResponse{
			AccountID:     res.AccountID,
			AccountNumber: res.AccountNumber,
			Cached:        money.Format(res.Cached),
			Derived:       money.Format(res.Derived),
			Drift:         money.Format(res.Drift),
			Repaired:      res.Repaired,
		}
	}

	respondJSON(w, ReconcileSummaryResponse{
		Checked:  summary.Checked,
		Repaired: summary.Repaired,
		Results:  results,
	}, http.StatusOK)
}

func toAuditLogResponse(entry *audit.Entry) *AuditLogResponse {
	return &AuditLogResponse{
		ID:            entry.ID,
		AdminID:       entry.AdminID,
		UserID:        entry.UserID,
		AccountID:     entry.AccountID,
		ActionType:    string(entry.ActionType),
		Reason:        entry.Reason,
		Details:       entry.Details,
		Status:        string(entry.Status),
		StatusMessage: entry.StatusMessage,
		CreatedAt:     entry.CreatedAt.Format(time.RFC3339),
	}
}

func toInvariantResponse(report *invariant.Report) InvariantReportResponse {
	imbalances := make([]*ImbalanceResponse, 0, len(report.Imbalances))
	for _, im := range report.Imbalances {
		imbalances = append(imbalances, &ImbalanceResponse{
			TransactionID: im.TransactionID,
			DebitTotal:    im.DebitTotal,
			CreditTotal:   im.CreditTotal,
		})
	}

	return InvariantReportResponse{
		Clean:               report.Clean(),
		OrphanedUsers:       report.OrphanedUsers,
		OwnerlessAccounts:   report.OwnerlessAccounts,
		UnboundTransactions: report.UnboundTransactions,
		InvalidKYCUsers:     report.InvalidKYCUsers,
		Imbalances:          imbalances,
		UnpairedEntries:     report.UnpairedEntries,
		NonPositiveEntries:  report.NonPositiveEntries,
		RepairedAccounts:    report.RepairedAccounts,
		RepairedKYC:         report.RepairedKYC,
	}
}

// pathID parses a positive int64 path parameter.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation(name, "invalid identifier")
	}
	return id, nil
}
