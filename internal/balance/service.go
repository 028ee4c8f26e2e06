package balance

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ferrobank/ferro/internal/apperr"
	"github.com/ferrobank/ferro/internal/platform/account"
	"github.com/ferrobank/ferro/internal/platform/user"
	"github.com/ferrobank/ferro/pkg/logger"
)

// Service answers balance questions from ledger entries alone. The cached
// Account.balance column is never consulted; reconciliation keeps that
// column aligned for reporting, but admission and API reads come from here.
type Service struct {
	ledger   LedgerReader
	users    user.Repository
	accounts account.Repository
	cache    Cache
	logger   *logger.Logger
}

// NewService creates a new balance service. cache may be nil, in which case
// every read recomputes from the ledger.
func NewService(ledger LedgerReader, users user.Repository, accounts account.Repository, cache Cache, log *logger.Logger) *Service {
	return &Service{
		ledger:   ledger,
		users:    users,
		accounts: accounts,
		cache:    cache,
		logger:   log.WithField("component", "balance"),
	}
}

// UserBalance computes the user's available balance: posted credits minus
// posted debits. It never reads the cache, so callers holding row locks get
// a consistent value inside their transaction.
func (s *Service) UserBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	credits, debits, err := s.ledger.SumPostedByUser(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return credits.Sub(debits), nil
}

// AccountBalance returns the balance of the account's owner. Ledger entries
// are recorded per user, so all accounts of one owner share a position.
func (s *Service) AccountBalance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	acc, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	return s.UserBalance(ctx, acc.OwnerID)
}

// HeldFunds totals the user's pending and blocked transactions. Held amounts
// are visible but excluded from the available balance.
func (s *Service) HeldFunds(ctx context.Context, userID int64) (decimal.Decimal, error) {
	incoming, outgoing, err := s.ledger.SumHeldByUser(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return incoming.Add(outgoing), nil
}

// GetBalance returns the user's full position, served from cache when fresh.
func (s *Service) GetBalance(ctx context.Context, userID int64) (*Snapshot, error) {
	if s.cache != nil {
		snapshot, err := s.cache.GetSnapshot(ctx, userID)
		if err != nil {
			s.logger.WithError(err).Warn("balance cache read failed")
		} else if snapshot != nil {
			return snapshot, nil
		}
	}

	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if err == user.ErrUserNotFound {
			return nil, apperr.UserNotFound()
		}
		return nil, err
	}

	credits, debits, err := s.ledger.SumPostedByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	heldIn, heldOut, err := s.ledger.SumHeldByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	snapshot := &Snapshot{
		UserID:    userID,
		Available: credits.Sub(debits),
		Held:      heldIn.Add(heldOut),
		Breakdown: Breakdown{
			PostedCredits: credits,
			PostedDebits:  debits,
			HeldIncoming:  heldIn,
			HeldOutgoing:  heldOut,
		},
		AsOf: time.Now().UTC(),
	}

	if s.cache != nil {
		if err := s.cache.SetSnapshot(ctx, snapshot); err != nil {
			s.logger.WithError(err).Warn("balance cache write failed")
		}
	}

	return snapshot, nil
}

// SystemTotals aggregates the posted ledger across all users.
func (s *Service) SystemTotals(ctx context.Context) (*SystemTotals, error) {
	credits, debits, userNet, err := s.ledger.SystemSums(ctx)
	if err != nil {
		return nil, err
	}
	return &SystemTotals{
		TotalCreditsPosted: credits,
		TotalDebitsPosted:  debits,
		SumUserBalances:    userNet,
	}, nil
}

// InvalidateUsers drops cached snapshots after a committed write.
func (s *Service) InvalidateUsers(ctx context.Context, userIDs ...int64) {
	if s.cache == nil || len(userIDs) == 0 {
		return
	}
	if err := s.cache.Invalidate(ctx, userIDs...); err != nil {
		s.logger.WithError(err).Warn("balance cache invalidation failed")
	}
}
