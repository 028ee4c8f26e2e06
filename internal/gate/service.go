package gate

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ferrobank/ferro/internal/apperr"
	"github.com/ferrobank/ferro/internal/ledger"
	"github.com/ferrobank/ferro/internal/platform/account"
	"github.com/ferrobank/ferro/internal/platform/user"
	"github.com/ferrobank/ferro/pkg/money"
)

// BalanceReader supplies the available balance for the sufficient-funds
// rule. The read must happen inside the caller's database transaction so it
// observes the state protected by the caller's row locks.
type BalanceReader interface {
	UserBalance(ctx context.Context, userID int64) (decimal.Decimal, error)
}

// Service decides, before any ledger write, whether a movement is
// admissible and at what initial status. Rules run in a fixed order and the
// first failure short-circuits.
type Service struct {
	users    user.Repository
	accounts account.Repository
	balances BalanceReader
	screener Screener
	ceiling  decimal.Decimal
}

// NewService creates a new gate. ceiling caps single admin funding
// operations; screener may be nil to accept the default pass-through hook.
func NewService(users user.Repository, accounts account.Repository, balances BalanceReader, screener Screener, ceiling decimal.Decimal) *Service {
	if screener == nil {
		screener = PassScreener{}
	}
	return &Service{
		users:    users,
		accounts: accounts,
		balances: balances,
		screener: screener,
		ceiling:  ceiling,
	}
}

// Check evaluates the admission rules for the request. On refusal it
// returns a typed error carrying the rule's code; on admission it returns
// the initial transaction status and the KYC snapshots for every party.
func (s *Service) Check(ctx context.Context, req Request) (*Verdict, error) {
	// Rule 1: the amount must be positive.
	if !req.Amount.IsPositive() {
		return nil, apperr.InvalidAmount("amount", "amount must be positive")
	}

	// Rule 2: the actor must exist and be active.
	actor, err := s.users.GetByID(ctx, req.ActorUserID)
	if err != nil {
		if err == user.ErrUserNotFound {
			return nil, apperr.ActorInactive("acting user does not exist")
		}
		return nil, apperr.DB("failed to load acting user", err)
	}
	if !actor.IsActive {
		return nil, apperr.ActorInactive("acting user is deactivated")
	}

	// Rules 3-5 apply to every referenced account.
	refs, err := s.loadReferencedAccounts(ctx, req)
	if err != nil {
		return nil, err
	}

	for _, ref := range refs {
		// Rule 4: ownership binding.
		if ref.acc.IsAdminAccount {
			if !actor.IsAdmin {
				return nil, apperr.OwnershipViolation("admin account requires an admin actor")
			}
		} else if !ref.acc.OwnedBy(ref.claimedUserID) {
			return nil, apperr.OwnershipViolation(
				fmt.Sprintf("account %s is not owned by the claimed user", ref.acc.AccountNumber))
		}
	}

	for _, ref := range refs {
		// Rule 5: account status.
		switch ref.acc.Status {
		case account.StatusFrozen:
			return nil, apperr.AccountFrozen()
		case account.StatusClosed:
			return nil, apperr.AccountClosed()
		}
	}

	// Rule 6: the KYC gate. Non-admin parties must be approved for the
	// movement to post; in-progress verification holds the funds instead.
	verdict := &Verdict{
		InitialStatus: ledger.TransactionStatusCompleted,
		KYCByUser:     map[int64]user.KYCStatus{actor.ID: actor.KYCStatus},
	}

	parties := []*user.User{actor}
	if req.TargetUserID != nil && *req.TargetUserID != actor.ID {
		target, err := s.users.GetByID(ctx, *req.TargetUserID)
		if err != nil {
			if err == user.ErrUserNotFound {
				return nil, apperr.UserNotFound()
			}
			return nil, apperr.DB("failed to load target user", err)
		}
		parties = append(parties, target)
		verdict.KYCByUser[target.ID] = target.KYCStatus
	}

	for _, party := range parties {
		if party.IsAdmin {
			continue
		}
		if party.KYCStatus == user.KYCRejected {
			return nil, apperr.KYCRejected()
		}
		if party.KYCStatus.InProgress() {
			verdict.InitialStatus = ledger.TransactionStatusPending
			verdict.Reason = "identity verification incomplete; funds held"
		}
	}

	// Rule 7: sufficient funds on the debit side. The treasury is exempt
	// when an admin funds from it, bounded by the funding ceiling instead.
	switch req.Operation {
	case OpWithdrawal, OpTransfer:
		available, err := s.balances.UserBalance(ctx, actor.ID)
		if err != nil {
			return nil, apperr.DB("failed to compute balance", err)
		}
		if available.LessThan(req.Amount) {
			return nil, apperr.InsufficientFunds()
		}
	case OpAdminFund:
		if req.Amount.GreaterThan(s.ceiling) {
			return nil, apperr.AmountExceedsCeiling(
				fmt.Sprintf("funding amount exceeds the per-operation ceiling of %s", money.Format(s.ceiling)))
		}
	}

	// Rule 8: the advisory screen may hold the movement for review.
	if pass, reason := s.screener.Screen(ctx, req); !pass {
		verdict.InitialStatus = ledger.TransactionStatusBlocked
		verdict.Reason = reason
	}

	return verdict, nil
}

type accountRef struct {
	acc           *account.Account
	claimedUserID int64
}

// loadReferencedAccounts resolves the source and target accounts and the
// user each is claimed to belong to (rule 3).
func (s *Service) loadReferencedAccounts(ctx context.Context, req Request) ([]accountRef, error) {
	var refs []accountRef

	if req.SourceAccountID != nil {
		acc, err := s.getAccount(ctx, *req.SourceAccountID)
		if err != nil {
			return nil, err
		}
		refs = append(refs, accountRef{acc: acc, claimedUserID: req.ActorUserID})
	}

	if req.TargetAccountID != nil {
		acc, err := s.getAccount(ctx, *req.TargetAccountID)
		if err != nil {
			return nil, err
		}
		claimed := req.ActorUserID
		if req.TargetUserID != nil {
			claimed = *req.TargetUserID
		}
		refs = append(refs, accountRef{acc: acc, claimedUserID: claimed})
	}

	return refs, nil
}

func (s *Service) getAccount(ctx context.Context, id int64) (*account.Account, error) {
	acc, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		if err == account.ErrAccountNotFound {
			return nil, apperr.AccountNotFound()
		}
		return nil, apperr.DB("failed to load account", err)
	}
	return acc, nil
}
