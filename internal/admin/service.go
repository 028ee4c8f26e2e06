// Package admin implements the privileged operations of the platform:
// account freezes, KYC decisions, password resets, role changes, and user
// lifecycle. Every effect commits in the same database transaction as its
// audit record.
package admin

import (
	"context"
	"errors"

	"github.com/ferrobank/ferro/internal/apperr"
	"github.com/ferrobank/ferro/internal/audit"
	"github.com/ferrobank/ferro/internal/fund"
	"github.com/ferrobank/ferro/internal/platform/account"
	"github.com/ferrobank/ferro/internal/platform/user"
	"github.com/ferrobank/ferro/pkg/logger"
)

// TxManager controls the database transaction an admin operation and its
// audit record share.
type TxManager interface {
	BeginTx(ctx context.Context) (context.Context, error)
	CommitTx(ctx context.Context) error
	RollbackTx(ctx context.Context) error
}

// Service exposes the admin surface.
type Service struct {
	users    user.Repository
	userSvc  *user.Service
	accounts account.Repository
	audits   *audit.Service
	funds    *fund.Service
	txm      TxManager
	logger   *logger.Logger
}

// NewService creates a new admin service
func NewService(
	users user.Repository,
	userSvc *user.Service,
	accounts account.Repository,
	audits *audit.Service,
	funds *fund.Service,
	txm TxManager,
	log *logger.Logger,
) *Service {
	return &Service{
		users:    users,
		userSvc:  userSvc,
		accounts: accounts,
		audits:   audits,
		funds:    funds,
		txm:      txm,
		logger:   log.WithField("component", "admin"),
	}
}

// FreezeAccount blocks all movements through the account until it is
// unfrozen.
func (s *Service) FreezeAccount(ctx context.Context, adminID, accountID int64, reason string) error {
	return s.setAccountStatus(ctx, adminID, accountID, account.StatusFrozen, audit.ActionFreeze, reason)
}

// UnfreezeAccount returns a frozen account to active.
func (s *Service) UnfreezeAccount(ctx context.Context, adminID, accountID int64, reason string) error {
	return s.setAccountStatus(ctx, adminID, accountID, account.StatusActive, audit.ActionUnfreeze, reason)
}

func (s *Service) setAccountStatus(ctx context.Context, adminID, accountID int64, status account.Status, action audit.ActionType, reason string) error {
	if _, err := s.requireAdmin(ctx, adminID); err != nil {
		return err
	}

	acc, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, account.ErrAccountNotFound) {
			return apperr.AccountNotFound()
		}
		return apperr.DB("failed to load account", err)
	}
	if acc.Status == account.StatusClosed {
		return apperr.AccountClosed()
	}

	return s.inTx(ctx, func(txCtx context.Context) error {
		if err := s.accounts.UpdateStatus(txCtx, accountID, status); err != nil {
			return apperr.DB("failed to update account status", err)
		}
		if _, err := s.audits.Record(txCtx, &audit.Entry{
			AdminID:    adminID,
			UserID:     acc.OwnerID,
			AccountID:  &accountID,
			ActionType: action,
			Reason:     reason,
			Details: map[string]interface{}{
				"account_number": acc.AccountNumber,
				"from_status":    string(acc.Status),
				"to_status":      string(status),
			},
		}); err != nil {
			return apperr.DB("failed to record audit entry", err)
		}
		return nil
	})
}

// ApproveKYC marks the user's identity verified and then re-evaluates every
// movement held on them. The release runs after the approval commits, so a
// release crash cannot undo the approval.
func (s *Service) ApproveKYC(ctx context.Context, adminID, userID int64, reason string) (released, failed int, err error) {
	if err := s.decideKYC(ctx, adminID, userID, user.KYCApproved, audit.ActionApproveKYC, reason); err != nil {
		return 0, 0, err
	}

	released, failed, err = s.funds.ReleaseHeld(ctx, userID)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("held funds release incomplete after KYC approval",
			"user_id", userID)
		return released, failed, nil
	}
	return released, failed, nil
}

// RejectKYC marks the user's identity verification rejected and fails every
// movement still held on them.
func (s *Service) RejectKYC(ctx context.Context, adminID, userID int64, reason string) (failed int, err error) {
	if err := s.decideKYC(ctx, adminID, userID, user.KYCRejected, audit.ActionRejectKYC, reason); err != nil {
		return 0, err
	}

	_, failed, err = s.funds.ReleaseHeld(ctx, userID)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("held funds settlement incomplete after KYC rejection",
			"user_id", userID)
		return failed, nil
	}
	return failed, nil
}

func (s *Service) decideKYC(ctx context.Context, adminID, userID int64, status user.KYCStatus, action audit.ActionType, reason string) error {
	if _, err := s.requireAdmin(ctx, adminID); err != nil {
		return err
	}

	subject, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}

	return s.inTx(ctx, func(txCtx context.Context) error {
		if err := s.users.UpdateKYCStatus(txCtx, userID, status); err != nil {
			return apperr.DB("failed to update KYC status", err)
		}
		if _, err := s.audits.Record(txCtx, &audit.Entry{
			AdminID:    adminID,
			UserID:     userID,
			ActionType: action,
			Reason:     reason,
			Details: map[string]interface{}{
				"from_status": string(subject.KYCStatus),
				"to_status":   string(status),
			},
		}); err != nil {
			return apperr.DB("failed to record audit entry", err)
		}
		return nil
	})
}

// ResetPassword replaces the user's password with an admin-chosen one.
func (s *Service) ResetPassword(ctx context.Context, adminID, userID int64, newPassword, reason string) error {
	if _, err := s.requireAdmin(ctx, adminID); err != nil {
		return err
	}

	subject, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}
	if subject.IsSystem() {
		return apperr.Validation("user_id", "the system user cannot be modified")
	}
	if err := subject.SetPassword(newPassword); err != nil {
		return apperr.Validation("new_password", err.Error())
	}

	return s.inTx(ctx, func(txCtx context.Context) error {
		if err := s.users.UpdatePassword(txCtx, userID, subject.PasswordHash); err != nil {
			return apperr.DB("failed to update password", err)
		}
		if _, err := s.audits.Record(txCtx, &audit.Entry{
			AdminID:    adminID,
			UserID:     userID,
			ActionType: audit.ActionResetPassword,
			Reason:     reason,
		}); err != nil {
			return apperr.DB("failed to record audit entry", err)
		}
		return nil
	})
}

// SetAdmin grants or revokes the admin role.
func (s *Service) SetAdmin(ctx context.Context, adminID, userID int64, isAdmin bool, reason string) error {
	if _, err := s.requireAdmin(ctx, adminID); err != nil {
		return err
	}

	subject, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}
	if subject.IsSystem() {
		return apperr.Validation("user_id", "the system user cannot be modified")
	}

	return s.inTx(ctx, func(txCtx context.Context) error {
		if err := s.users.SetAdmin(txCtx, userID, isAdmin); err != nil {
			return apperr.DB("failed to update admin role", err)
		}
		if _, err := s.audits.Record(txCtx, &audit.Entry{
			AdminID:    adminID,
			UserID:     userID,
			ActionType: audit.ActionSetAdmin,
			Reason:     reason,
			Details:    map[string]interface{}{"is_admin": isAdmin},
		}); err != nil {
			return apperr.DB("failed to record audit entry", err)
		}
		return nil
	})
}

// CreateUser provisions a user with a primary account on their behalf. The
// account, the user row, and the audit record commit together.
func (s *Service) CreateUser(ctx context.Context, adminID int64, email, password, fullName, reason string) (*user.User, *account.Account, error) {
	if _, err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, nil, err
	}

	seed := &user.User{}
	if err := seed.SetPassword(password); err != nil {
		return nil, nil, apperr.Validation("password", err.Error())
	}

	var created *user.User
	var acc *account.Account
	err := s.inTx(ctx, func(txCtx context.Context) error {
		var err error
		created, acc, err = s.userSvc.Provision(txCtx, email, seed.PasswordHash, fullName)
		if err != nil {
			return mapUserErr(err)
		}
		if _, err := s.audits.Record(txCtx, &audit.Entry{
			AdminID:    adminID,
			UserID:     created.ID,
			AccountID:  &acc.ID,
			ActionType: audit.ActionCreateUser,
			Reason:     reason,
			Details:    map[string]interface{}{"email": email},
		}); err != nil {
			return apperr.DB("failed to record audit entry", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return created, acc, nil
}

// DeactivateUser retires a user. The row and its ledger history survive; the
// user simply cannot act or be transacted with anymore.
func (s *Service) DeactivateUser(ctx context.Context, adminID, userID int64, reason string) error {
	if _, err := s.requireAdmin(ctx, adminID); err != nil {
		return err
	}

	subject, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}
	if subject.IsSystem() {
		return apperr.Validation("user_id", "the system user cannot be modified")
	}

	return s.inTx(ctx, func(txCtx context.Context) error {
		if err := s.users.SetActive(txCtx, userID, false); err != nil {
			return apperr.DB("failed to deactivate user", err)
		}
		if _, err := s.audits.Record(txCtx, &audit.Entry{
			AdminID:    adminID,
			UserID:     userID,
			ActionType: audit.ActionDeleteUser,
			Reason:     reason,
		}); err != nil {
			return apperr.DB("failed to record audit entry", err)
		}
		return nil
	})
}

// ListAuditLogs returns audit entries for the requesting admin.
func (s *Service) ListAuditLogs(ctx context.Context, adminID int64, filters audit.Filters) ([]*audit.Entry, error) {
	if _, err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	return s.audits.List(ctx, filters)
}

func (s *Service) requireAdmin(ctx context.Context, actorID int64) (*user.User, error) {
	actor, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, apperr.NotAdmin()
		}
		return nil, apperr.DB("failed to load acting user", err)
	}
	if !actor.IsAdmin {
		return nil, apperr.NotAdmin()
	}
	if !actor.IsActive {
		return nil, apperr.ActorInactive("acting admin is deactivated")
	}
	return actor, nil
}

func (s *Service) getUser(ctx context.Context, userID int64) (*user.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, apperr.UserNotFound()
		}
		return nil, apperr.DB("failed to load user", err)
	}
	return u, nil
}

func (s *Service) inTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	txCtx, err := s.txm.BeginTx(ctx)
	if err != nil {
		return apperr.DB("failed to begin transaction", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = s.txm.RollbackTx(txCtx)
		}
	}()

	if err := fn(txCtx); err != nil {
		return err
	}

	if err := s.txm.CommitTx(txCtx); err != nil {
		return apperr.DB("failed to commit transaction", err)
	}
	committed = true
	return nil
}

func mapUserErr(err error) error {
	switch {
	case errors.Is(err, user.ErrEmailTaken):
		return apperr.EmailTaken()
	case errors.Is(err, user.ErrInvalidEmail):
		return apperr.Validation("email", "invalid email address")
	case errors.Is(err, user.ErrInvalidFullName):
		return apperr.Validation("full_name", "full name is required")
	case errors.Is(err, user.ErrPasswordTooShort):
		return apperr.Validation("password", "password must be at least 8 characters")
	default:
		return apperr.DB("failed to provision user", err)
	}
}
