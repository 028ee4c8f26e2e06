// Package system owns the reserved identities the platform cannot run
// without: the system user (id 1) and the treasury account that acts as
// counterparty for deposits, withdrawals, and admin funding.
package system

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ferrobank/ferro/internal/ledger"
	"github.com/ferrobank/ferro/internal/platform/account"
	"github.com/ferrobank/ferro/internal/platform/user"
	"github.com/ferrobank/ferro/pkg/logger"
	"github.com/ferrobank/ferro/pkg/money"
)

// SystemUserEmail is the reserved login of the system identity.
const SystemUserEmail = "sysreserve@ferrobank.local"

// Reserve identifies the treasury. It is resolved once at bootstrap and
// read-only afterwards, so services may keep it without synchronization.
type Reserve struct {
	UserID        int64
	AccountID     int64
	AccountNumber string
}

// UserEnsurer inserts the fixed-id system user when absent.
type UserEnsurer interface {
	EnsureSystemUser(ctx context.Context, u *user.User) (created bool, err error)
}

// TxManager begins and ends database transactions carried in the context.
type TxManager interface {
	BeginTx(ctx context.Context) (context.Context, error)
	CommitTx(ctx context.Context) error
	RollbackTx(ctx context.Context) error
}

// Service performs the idempotent startup bootstrap.
type Service struct {
	users       user.Repository
	ensurer     UserEnsurer
	accounts    account.Repository
	ledgerRepo  ledger.Repository
	ledgerSvc   *ledger.Service
	txm         TxManager
	seedAmount  decimal.Decimal
	adminEmail  string
	adminSecret string
	logger      *logger.Logger

	reserve *Reserve
}

// NewService creates the bootstrap service. adminEmail and adminPassword may
// be empty; then no human admin is provisioned.
func NewService(
	users user.Repository,
	ensurer UserEnsurer,
	accounts account.Repository,
	ledgerRepo ledger.Repository,
	ledgerSvc *ledger.Service,
	txm TxManager,
	seedAmount decimal.Decimal,
	adminEmail, adminPassword string,
	log *logger.Logger,
) *Service {
	return &Service{
		users:       users,
		ensurer:     ensurer,
		accounts:    accounts,
		ledgerRepo:  ledgerRepo,
		ledgerSvc:   ledgerSvc,
		txm:         txm,
		seedAmount:  seedAmount,
		adminEmail:  adminEmail,
		adminSecret: adminPassword,
		logger:      log.WithField("component", "bootstrap"),
	}
}

// Bootstrap ensures the system user, the treasury account, and the seed
// funding exist. Safe to run on every startup; completed steps are skipped.
func (s *Service) Bootstrap(ctx context.Context) (*Reserve, error) {
	if err := s.ensureSystemUser(ctx); err != nil {
		return nil, err
	}

	reserveAcc, err := s.ensureTreasuryAccount(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.ensureSeed(ctx, reserveAcc); err != nil {
		return nil, err
	}

	if err := s.ensureBootstrapAdmin(ctx); err != nil {
		return nil, err
	}

	s.reserve = &Reserve{
		UserID:        user.SystemUserID,
		AccountID:     reserveAcc.ID,
		AccountNumber: reserveAcc.AccountNumber,
	}
	return s.reserve, nil
}

// Reserve returns the treasury identity resolved by Bootstrap.
func (s *Service) Reserve() *Reserve {
	return s.reserve
}

func (s *Service) ensureSystemUser(ctx context.Context) error {
	sys := &user.User{
		ID:           user.SystemUserID,
		Email:        SystemUserEmail,
		FullName:     "System Reserve",
		PasswordHash: "!locked",
		IsActive:     true,
		IsAdmin:      true,
		IsVerified:   true,
		KYCStatus:    user.KYCApproved,
	}

	created, err := s.ensurer.EnsureSystemUser(ctx, sys)
	if err != nil {
		return fmt.Errorf("failed to ensure system user: %w", err)
	}
	if created {
		s.logger.Info("system user created", "user_id", user.SystemUserID)
	}
	return nil
}

func (s *Service) ensureTreasuryAccount(ctx context.Context) (*account.Account, error) {
	acc, err := s.accounts.GetByNumber(ctx, account.ReserveAccountNumber)
	if err == nil {
		return acc, nil
	}
	if err != account.ErrAccountNotFound {
		return nil, fmt.Errorf("failed to look up treasury account: %w", err)
	}

	acc = account.NewTreasury(user.SystemUserID)
	if err := s.accounts.Create(ctx, acc); err != nil {
		return nil, fmt.Errorf("failed to create treasury account: %w", err)
	}
	s.logger.Info("treasury account created", "account_number", acc.AccountNumber)
	return acc, nil
}

// ensureSeed posts the initial treasury funding: one credit to the system
// user paired with a self-debit recording the external injection. The pair
// is written once; reruns detect the seed transaction and do nothing.
func (s *Service) ensureSeed(ctx context.Context, reserveAcc *account.Account) error {
	seedType := ledger.TransactionTypeSystemSeed
	existing, err := s.ledgerRepo.ListTransactions(ctx, ledger.TransactionFilters{Type: &seedType, Limit: 1})
	if err != nil {
		return fmt.Errorf("failed to look up seed transaction: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	txCtx, err := s.txm.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = s.txm.RollbackTx(txCtx)
		}
	}()

	seed := &ledger.Transaction{
		Reference:       uuid.New(),
		UserID:          user.SystemUserID,
		AccountID:       reserveAcc.ID,
		Amount:          s.seedAmount,
		Type:            seedType,
		Direction:       ledger.DirectionCredit,
		Status:          ledger.TransactionStatusCompleted,
		Description:     "initial treasury funding",
		KYCStatusAtTime: string(user.KYCApproved),
	}
	if err := s.ledgerRepo.CreateTransaction(txCtx, seed); err != nil {
		return fmt.Errorf("failed to create seed transaction: %w", err)
	}

	if _, _, err := s.ledgerSvc.AppendPair(txCtx, seed.ID, user.SystemUserID, user.SystemUserID, s.seedAmount, seed.Description); err != nil {
		return fmt.Errorf("failed to post seed entries: %w", err)
	}

	if err := s.txm.CommitTx(txCtx); err != nil {
		return fmt.Errorf("failed to commit seed: %w", err)
	}
	committed = true

	s.logger.Info("treasury seeded", "amount", money.Format(s.seedAmount))
	return nil
}

// ensureBootstrapAdmin provisions the operator account named in the
// environment. Unlike regular users, admins are exempt from the
// one-account rule and get none here.
func (s *Service) ensureBootstrapAdmin(ctx context.Context) error {
	if s.adminEmail == "" {
		return nil
	}

	exists, err := s.users.Exists(ctx, s.adminEmail)
	if err != nil {
		return fmt.Errorf("failed to check bootstrap admin: %w", err)
	}
	if exists {
		return nil
	}

	admin := &user.User{
		Email:      s.adminEmail,
		FullName:   "Platform Administrator",
		IsActive:   true,
		IsAdmin:    true,
		IsVerified: true,
		KYCStatus:  user.KYCApproved,
	}
	if err := admin.SetPassword(s.adminSecret); err != nil {
		return fmt.Errorf("bootstrap admin password rejected: %w", err)
	}
	if err := s.users.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create bootstrap admin: %w", err)
	}

	s.logger.Info("bootstrap admin created", "email", s.adminEmail)
	return nil
}
