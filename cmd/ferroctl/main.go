package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/ferrobank/ferro/internal/audit"
	"github.com/ferrobank/ferro/internal/balance"
	"github.com/ferrobank/ferro/internal/infra/postgres"
	"github.com/ferrobank/ferro/internal/ledger"
	"github.com/ferrobank/ferro/pkg/config"
	"github.com/ferrobank/ferro/pkg/logger"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ferroctl",
	Short: "Ferro operations CLI",
	Long: `ferroctl runs operational tasks against a Ferro deployment: seeding the
system user and treasury reserve, verifying ledger invariants, and
reconciling cached account balances.

It reads the same environment configuration as the API server, so it can run
from the same env file or container image.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// env carries the configuration and wired services a command runs against
type env struct {
	cfg        *config.Config
	log        *logger.Logger
	pool       *pgxpool.Pool
	store      *postgres.Store
	users      *postgres.UserRepository
	accounts   *postgres.AccountRepository
	ledgerRepo *postgres.LedgerRepository
	ledgerSvc  *ledger.Service
	audits     *audit.Service
	balances   *balance.Service
}

// dial loads configuration and connects to the database. Commands run
// without Redis; balance reads recompute from the ledger.
func dial(ctx context.Context) (*env, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.NewDefault(cfg.Env)

	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{URL: cfg.DatabaseURL})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := postgres.NewStore(pool)
	userRepo := postgres.NewUserRepository(store)
	accountRepo := postgres.NewAccountRepository(store)
	ledgerRepo := postgres.NewLedgerRepository(store)
	auditRepo := postgres.NewAuditRepository(store)

	e := &env{
		cfg:        cfg,
		log:        log,
		pool:       pool,
		store:      store,
		users:      userRepo,
		accounts:   accountRepo,
		ledgerRepo: ledgerRepo,
		ledgerSvc:  ledger.NewService(ledgerRepo),
		audits:     audit.NewService(auditRepo, userRepo, accountRepo),
		balances:   balance.NewService(ledgerRepo, userRepo, accountRepo, nil, log),
	}

	return e, pool.Close, nil
}
