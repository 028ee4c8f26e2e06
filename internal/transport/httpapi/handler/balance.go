package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/ferrobank/ferro/internal/balance"
	"github.com/ferrobank/ferro/internal/transport/httpapi/middleware"
	"github.com/ferrobank/ferro/pkg/money"
)

// BalanceServiceInterface defines the balance reads the handler needs
type BalanceServiceInterface interface {
	GetBalance(ctx context.Context, userID int64) (*balance.Snapshot, error)
	SystemTotals(ctx context.Context) (*balance.SystemTotals, error)
}

// BalanceHandler serves ledger-derived balance reads
type BalanceHandler struct {
	balances BalanceServiceInterface
}

// NewBalanceHandler creates a new balance handler
func NewBalanceHandler(balances BalanceServiceInterface) *BalanceHandler {
	return &BalanceHandler{balances: balances}
}

// BalanceResponse is a user's position. All amounts are fixed-scale strings.
type BalanceResponse struct {
	UserID    int64             `json:"user_id"`
	Available string            `json:"available"`
	Held      string            `json:"held"`
	Breakdown BreakdownResponse `json:"breakdown"`
	AsOf      time.Time         `json:"as_of"`
}

// BreakdownResponse splits the position into its ledger components
type BreakdownResponse struct {
	PostedCredits string `json:"posted_credits"`
	PostedDebits  string `json:"posted_debits"`
	HeldIncoming  string `json:"held_incoming"`
	HeldOutgoing  string `json:"held_outgoing"`
}

// SystemTotalsResponse aggregates the posted ledger across all users
type SystemTotalsResponse struct {
	TotalCreditsPosted string `json:"total_credits_posted"`
	TotalDebitsPosted  string `json:"total_debits_posted"`
	SumUserBalances    string `json:"sum_user_balances"`
}

// GetBalance returns the caller's balance (GET /api/v1/balance)
func (h *BalanceHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		respondError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	snapshot, err := h.balances.GetBalance(r.Context(), userID)
	if err != nil {
		respondAppError(w, err)
		return
	}

	respondJSON(w, BalanceResponse{
		UserID:    snapshot.UserID,
		Available: money.Format(snapshot.Available),
		Held:      money.Format(snapshot.Held),
		Breakdown: BreakdownResponse{
			PostedCredits: money.Format(snapshot.Breakdown.PostedCredits),
			PostedDebits:  money.Format(snapshot.Breakdown.PostedDebits),
			HeldIncoming:  money.Format(snapshot.Breakdown.HeldIncoming),
			HeldOutgoing:  money.Format(snapshot.Breakdown.HeldOutgoing),
		},
		AsOf: snapshot.AsOf,
	}, http.StatusOK)
}

// GetSystemTotals returns platform-wide ledger aggregates
// (GET /api/v1/admin/system/totals)
func (h *BalanceHandler) GetSystemTotals(w http.ResponseWriter, r *http.Request) {
	totals, err := h.balances.SystemTotals(r.Context())
	if err != nil {
		respondAppError(w, err)
		return
	}

	respondJSON(w, SystemTotalsResponse{
		TotalCreditsPosted: money.Format(totals.TotalCreditsPosted),
		TotalDebitsPosted:  money.Format(totals.TotalDebitsPosted),
		SumUserBalances:    money.Format(totals.SumUserBalances),
	}, http.StatusOK)
}
