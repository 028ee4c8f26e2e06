package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ferrobank/ferro/internal/transport/httpapi/handler"
	"github.com/ferrobank/ferro/internal/transport/httpapi/middleware"
	"github.com/ferrobank/ferro/pkg/logger"
)

// Config holds router configuration
type Config struct {
	Logger             *logger.Logger
	AllowedOrigins     []string
	AuthHandler        *handler.AuthHandler
	BalanceHandler     *handler.BalanceHandler
	TransactionHandler *handler.TransactionHandler
	AdminHandler       *handler.AdminHandler
	HealthHandler      *handler.HealthHandler
	JWTMiddleware      func(http.Handler) http.Handler
}

// NewRouter creates a new HTTP router
func NewRouter(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(chimiddleware.Compress(5))
	r.Use(middleware.RateLimit()) // Rate limiting: 100 req/s with burst of 20

	// Health check endpoints (no authentication required)
	r.Get("/health", handler.GetHealth)
	r.Get("/health/live", handler.GetLiveness)
	if cfg.HealthHandler != nil {
		r.Get("/health/ready", cfg.HealthHandler.GetReadiness)
		r.Get("/health/detailed", cfg.HealthHandler.GetHealthDetailed)
	}

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Auth routes (public - no authentication required)
		if cfg.AuthHandler != nil {
			r.Post("/auth/register", cfg.AuthHandler.Register)
			r.Post("/auth/login", cfg.AuthHandler.Login)
		}

		// Protected routes (require JWT authentication)
		if cfg.JWTMiddleware != nil {
			r.Group(func(r chi.Router) {
				r.Use(cfg.JWTMiddleware)

				// Balance routes
				if cfg.BalanceHandler != nil {
					r.Get("/balance", cfg.BalanceHandler.GetBalance)
				}

				// Transaction routes
				if cfg.TransactionHandler != nil {
					r.Post("/transactions/deposit", cfg.TransactionHandler.Deposit)
					r.Post("/transactions/withdraw", cfg.TransactionHandler.Withdraw)
					r.Post("/transactions/transfer", cfg.TransactionHandler.Transfer)
					r.Get("/transactions", cfg.TransactionHandler.GetTransactions)
					r.Get("/transactions/{id}", cfg.TransactionHandler.GetTransaction)
				}

				// Admin routes (require admin role on top of JWT)
				if cfg.AdminHandler != nil {
					r.Route("/admin", func(r chi.Router) {
						r.Use(middleware.RequireAdmin)

						r.Post("/fund", cfg.AdminHandler.Fund)
						r.Post("/transactions/{id}/reverse", cfg.AdminHandler.Reverse)

						r.Post("/accounts/{id}/freeze", cfg.AdminHandler.Freeze)
						r.Post("/accounts/{id}/unfreeze", cfg.AdminHandler.Unfreeze)

						r.Post("/users", cfg.AdminHandler.CreateUser)
						r.Delete("/users/{id}", cfg.AdminHandler.DeactivateUser)
						r.Post("/users/{id}/kyc/approve", cfg.AdminHandler.ApproveKYC)
						r.Post("/users/{id}/kyc/reject", cfg.AdminHandler.RejectKYC)
						r.Post("/users/{id}/reset-password", cfg.AdminHandler.ResetPassword)
						r.Put("/users/{id}/role", cfg.AdminHandler.SetRole)

						r.Get("/audit-logs", cfg.AdminHandler.ListAuditLogs)

						r.Get("/invariants", cfg.AdminHandler.VerifyInvariants)
						r.Post("/invariants/repair", cfg.AdminHandler.RepairInvariants)
						r.Post("/reconcile", cfg.AdminHandler.Reconcile)

						if cfg.BalanceHandler != nil {
							r.Get("/system/totals", cfg.BalanceHandler.GetSystemTotals)
						}
					})
				}
			})
		}
	})

	return r
}
