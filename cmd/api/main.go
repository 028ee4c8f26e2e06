package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ferrobank/ferro/internal/admin"
	"github.com/ferrobank/ferro/internal/audit"
	"github.com/ferrobank/ferro/internal/balance"
	"github.com/ferrobank/ferro/internal/fund"
	"github.com/ferrobank/ferro/internal/gate"
	"github.com/ferrobank/ferro/internal/infra/postgres"
	infraRedis "github.com/ferrobank/ferro/internal/infra/redis"
	"github.com/ferrobank/ferro/internal/invariant"
	"github.com/ferrobank/ferro/internal/ledger"
	"github.com/ferrobank/ferro/internal/platform/account"
	"github.com/ferrobank/ferro/internal/platform/user"
	"github.com/ferrobank/ferro/internal/reconcile"
	"github.com/ferrobank/ferro/internal/system"
	"github.com/ferrobank/ferro/internal/transport/httpapi"
	"github.com/ferrobank/ferro/internal/transport/httpapi/handler"
	"github.com/ferrobank/ferro/internal/transport/httpapi/middleware"
	"github.com/ferrobank/ferro/pkg/config"
	"github.com/ferrobank/ferro/pkg/logger"
)

func main() {
	// Create context that listens for termination signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewDefault(cfg.Env)
	log.Info("Starting Ferro API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	// Initialize database connection pool
	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
		URL: cfg.DatabaseURL,
	})
	if err != nil {
		log.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	log.Info("Database connection established")

	// Initialize Redis client for balance snapshot caching
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()

	// Test Redis connection
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("Redis connection established")

	// Initialize store and repositories
	store := postgres.NewStore(pool)
	userRepo := postgres.NewUserRepository(store)
	accountRepo := postgres.NewAccountRepository(store)
	ledgerRepo := postgres.NewLedgerRepository(store)
	auditRepo := postgres.NewAuditRepository(store)

	snapshotCache := infraRedis.NewCache(redisClient, log)

	// Initialize core services
	ledgerSvc := ledger.NewService(ledgerRepo)
	balanceSvc := balance.NewService(ledgerRepo, userRepo, accountRepo, snapshotCache, log)
	auditSvc := audit.NewService(auditRepo, userRepo, accountRepo)
	userSvc := user.NewService(userRepo, accountRepo, store)
	accountSvc := account.NewService(accountRepo)
	gateSvc := gate.NewService(userRepo, accountRepo, balanceSvc, gate.PassScreener{}, cfg.AdminFundingCeiling)

	// Bootstrap the system user, treasury account, and seed funding. Runs
	// on every startup; completed steps are no-ops.
	bootstrapSvc := system.NewService(
		userRepo,
		userRepo,
		accountRepo,
		ledgerRepo,
		ledgerSvc,
		store,
		cfg.ReserveInitialAmount,
		cfg.AdminEmail,
		cfg.AdminPassword,
		log,
	)
	reserve, err := bootstrapSvc.Bootstrap(ctx)
	if err != nil {
		log.Error("Bootstrap failed", "error", err)
		os.Exit(1)
	}
	log.Info("Treasury reserve ready",
		"account", reserve.AccountNumber,
		"account_id", reserve.AccountID,
	)

	// Initialize the fund engine and privileged services
	fundSvc := fund.NewService(
		store,
		gateSvc,
		ledgerSvc,
		ledgerRepo,
		auditSvc,
		userRepo,
		accountRepo,
		balanceSvc,
		reserve,
		fund.NewLogNotifier(log),
		cfg.OperationTimeout,
		log,
	)
	adminSvc := admin.NewService(userRepo, userSvc, accountRepo, auditSvc, fundSvc, store, log)
	verifier := invariant.NewVerifier(userRepo, userRepo, accountRepo, accountRepo, ledgerRepo, ledgerSvc, auditSvc, store, log)
	reconciler := reconcile.NewReconciler(accountRepo, balanceSvc, auditSvc, store, log)

	// Initialize HTTP handlers
	jwtSvc := middleware.NewJWTService(cfg.JWTSecret, time.Duration(cfg.AccessTokenExpireMinutes)*time.Minute)
	authHandler := handler.NewAuthHandler(userSvc, jwtSvc)
	balanceHandler := handler.NewBalanceHandler(balanceSvc)
	transactionHandler := handler.NewTransactionHandler(fundSvc, accountSvc, userRepo)
	adminHandler := handler.NewAdminHandler(adminSvc, fundSvc, verifier, reconciler)
	healthHandler := handler.NewHealthHandler(pool, snapshotCache)

	// Create HTTP router
	routerCfg := httpapi.Config{
		Logger:             log,
		AllowedOrigins:     cfg.AllowedOrigins,
		AuthHandler:        authHandler,
		BalanceHandler:     balanceHandler,
		TransactionHandler: transactionHandler,
		AdminHandler:       adminHandler,
		HealthHandler:      healthHandler,
		JWTMiddleware:      middleware.JWTMiddleware(jwtSvc),
	}
	r := httpapi.NewRouter(routerCfg)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start the background reconciliation worker
	reconWorker := reconcile.NewWorker(reconciler, cfg.ReconciliationInterval, log)
	go reconWorker.Run(ctx)
	log.Info("Reconciliation worker started", "interval", cfg.ReconciliationInterval)

	// Start server in a goroutine
	go func() {
		log.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for termination signal
	<-ctx.Done()
	log.Info("Shutdown signal received")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", "error", err)
		os.Exit(1)
	}

	log.Info("Server stopped gracefully")
}
