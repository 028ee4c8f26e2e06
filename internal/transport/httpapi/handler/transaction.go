package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/ferrobank/ferro/internal/apperr"
	"github.com/ferrobank/ferro/internal/ledger"
	"github.com/ferrobank/ferro/internal/platform/account"
	"github.com/ferrobank/ferro/internal/platform/user"
	"github.com/ferrobank/ferro/internal/transport/httpapi/middleware"
	"github.com/ferrobank/ferro/pkg/money"
)

// FundServiceInterface defines the fund operations needed by TransactionHandler
type FundServiceInterface interface {
	Deposit(ctx context.Context, userID, accountID int64, amount decimal.Decimal) (*ledger.Transaction, error)
	Withdraw(ctx context.Context, userID, accountID int64, amount decimal.Decimal) (*ledger.Transaction, error)
	Transfer(ctx context.Context, senderID, recipientID int64, amount decimal.Decimal) (*ledger.Transaction, *ledger.Transaction, error)
	GetTransaction(ctx context.Context, id int64) (*ledger.Transaction, error)
	ListTransactions(ctx context.Context, filters ledger.TransactionFilters) ([]*ledger.Transaction, error)
}

// AccountServiceInterface defines the account reads needed by TransactionHandler
type AccountServiceInterface interface {
	GetPrimaryByOwner(ctx context.Context, ownerID int64) (*account.Account, error)
}

// RecipientLookupInterface resolves a transfer recipient by email
type RecipientLookupInterface interface {
	GetByEmail(ctx context.Context, email string) (*user.User, error)
}

// TransactionHandler handles fund movement HTTP requests
type TransactionHandler struct {
	funds    FundServiceInterface
	accounts AccountServiceInterface
	users    RecipientLookupInterface
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(funds FundServiceInterface, accounts AccountServiceInterface, users RecipientLookupInterface) *TransactionHandler {
	return &TransactionHandler{
		funds:    funds,
		accounts: accounts,
		users:    users,
	}
}

// MoveFundsRequest is the body for deposits and withdrawals. AccountID is
// optional; it defaults to the caller's primary account.
type MoveFundsRequest struct {
	Amount    string `json:"amount"`
	AccountID int64  `json:"account_id,omitempty"`
}

// TransferRequest is the body for transfers. The recipient may be named by
// id or by email; id wins when both are present.
type TransferRequest struct {
	RecipientID    int64  `json:"recipient_id,omitempty"`
	RecipientEmail string `json:"recipient_email,omitempty"`
	Amount         string `json:"amount"`
}

// TransactionResponse represents one transaction row
type TransactionResponse struct {
	ID              int64  `json:"id"`
	Reference       string `json:"reference"`
	UserID          int64  `json:"user_id"`
	AccountID       int64  `json:"account_id"`
	Amount          string `json:"amount"`
	Type            string `json:"type"`
	Direction       string `json:"direction"`
	Status          string `json:"status"`
	Description     string `json:"description,omitempty"`
	KYCStatusAtTime string `json:"kyc_status_at_time,omitempty"`
	CreatedAt       string `json:"created_at"`
}

// TransferResponse carries both sides of a transfer
type TransferResponse struct {
	Outgoing *TransactionResponse `json:"outgoing"`
	Incoming *TransactionResponse `json:"incoming"`
}

// TransactionListResponse represents a paginated list of transactions
type TransactionListResponse struct {
	Transactions []*TransactionResponse `json:"transactions"`
	Page         int                    `json:"page"`
	PageSize     int                    `json:"page_size"`
}

// Deposit handles POST /api/v1/transactions/deposit
func (h *TransactionHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.moveFunds(w, r, h.funds.Deposit)
}

// Withdraw handles POST /api/v1/transactions/withdraw
func (h *TransactionHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.moveFunds(w, r, h.funds.Withdraw)
}

func (h *TransactionHandler) moveFunds(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, userID, accountID int64, amount decimal.Decimal) (*ledger.Transaction, error)) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		respondError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req MoveFundsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	amount, err := money.Parse(req.Amount)
	if err != nil {
		respondAppError(w, apperr.InvalidAmount("amount", err.Error()))
		return
	}

	accountID, err := h.resolveAccount(r.Context(), userID, req.AccountID)
	if err != nil {
		respondAppError(w, err)
		return
	}

	tx, err := op(r.Context(), userID, accountID, amount)
	if err != nil {
		respondAppError(w, err)
		return
	}

	respondJSON(w, toTransactionResponse(tx), http.StatusCreated)
}

// Transfer handles POST /api/v1/transactions/transfer
func (h *TransactionHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		respondError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	amount, err := money.Parse(req.Amount)
	if err != nil {
		respondAppError(w, apperr.InvalidAmount("amount", err.Error()))
		return
	}

	recipientID := req.RecipientID
	if recipientID == 0 {
		if req.RecipientEmail == "" {
			respondAppError(w, apperr.Validation("recipient_id", "recipient_id or recipient_email is required"))
			return
		}
		recipient, err := h.users.GetByEmail(r.Context(), req.RecipientEmail)
		if err != nil {
			if errors.Is(err, user.ErrUserNotFound) {
				respondAppError(w, apperr.UserNotFound())
				return
			}
			respondAppError(w, apperr.DB("failed to resolve recipient", err))
			return
		}
		recipientID = recipient.ID
	}

	outTx, inTx, err := h.funds.Transfer(r.Context(), userID, recipientID, amount)
	if err != nil {
		respondAppError(w, err)
		return
	}

	respondJSON(w, TransferResponse{
		Outgoing: toTransactionResponse(outTx),
		Incoming: toTransactionResponse(inTx),
	}, http.StatusCreated)
}

// GetTransactions handles GET /api/v1/transactions
func (h *TransactionHandler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		respondError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	query := r.URL.Query()

	page, _ := strconv.Atoi(query.Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(query.Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	filters := ledger.TransactionFilters{
		UserID: &userID,
		Limit:  pageSize,
		Offset: (page - 1) * pageSize,
	}

	if t := query.Get("type"); t != "" {
		txType := ledger.TransactionType(t)
		if !txType.IsValid() {
			respondAppError(w, apperr.Validation("type", "unknown transaction type"))
			return
		}
		filters.Type = &txType
	}
	if s := query.Get("status"); s != "" {
		status := ledger.TransactionStatus(s)
		if !status.IsValid() {
			respondAppError(w, apperr.Validation("status", "unknown transaction status"))
			return
		}
		filters.Status = &status
	}

	txns, err := h.funds.ListTransactions(r.Context(), filters)
	if err != nil {
		respondAppError(w, err)
		return
	}

	responses := make([]*TransactionResponse, len(txns))
	for i, tx := range txns {
		responses[i] = toTransactionResponse(tx)
	}

	respondJSON(w, TransactionListResponse{
		Transactions: responses,
		Page:         page,
		PageSize:     pageSize,
	}, http.StatusOK)
}

// GetTransaction handles GET /api/v1/transactions/{id}
func (h *TransactionHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		respondError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondAppError(w, apperr.Validation("id", "invalid transaction id"))
		return
	}

	tx, err := h.funds.GetTransaction(r.Context(), id)
	if err != nil {
		respondAppError(w, err)
		return
	}

	// Non-owners get 404, not 403, to prevent ID enumeration.
	if tx.UserID != userID && !middleware.IsAdminFromContext(r.Context()) {
		respondAppError(w, apperr.TransactionNotFound())
		return
	}

	respondJSON(w, toTransactionResponse(tx), http.StatusOK)
}

// resolveAccount defaults a zero account id to the caller's primary account.
// Ownership of an explicit id is the gate's concern, not the handler's.
func (h *TransactionHandler) resolveAccount(ctx context.Context, userID, accountID int64) (int64, error) {
	if accountID != 0 {
		return accountID, nil
	}
	primary, err := h.accounts.GetPrimaryByOwner(ctx, userID)
	if err != nil {
		if errors.Is(err, account.ErrNoPrimaryAccount) || errors.Is(err, account.ErrAccountNotFound) {
			return 0, apperr.AccountNotFound()
		}
		return 0, apperr.DB("failed to resolve primary account", err)
	}
	return primary.ID, nil
}

// toTransactionResponse converts a ledger transaction to its wire form
func toTransactionResponse(tx *ledger.Transaction) *TransactionResponse {
	return &TransactionResponse{
		ID:              tx.ID,
		Reference:       tx.Reference.String(),
		UserID:          tx.UserID,
		AccountID:       tx.AccountID,
		Amount:          money.Format(tx.Amount),
		Type:            string(tx.Type),
		Direction:       string(tx.Direction),
		Status:          string(tx.Status),
		Description:     tx.Description,
		KYCStatusAtTime: tx.KYCStatusAtTime,
		CreatedAt:       tx.CreatedAt.Format(time.RFC3339),
	}
}
