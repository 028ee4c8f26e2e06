package audit

import "time"

// ActionType names a privileged action. The enum is closed: writes with an
// unrecognized value are rejected.
type ActionType string

const (
	ActionFund               ActionType = "fund"
	ActionReverseTransaction ActionType = "reverse_transaction"
	ActionFreeze             ActionType = "freeze"
	ActionUnfreeze           ActionType = "unfreeze"
	ActionApproveKYC         ActionType = "approve_kyc"
	ActionRejectKYC          ActionType = "reject_kyc"
	ActionResetPassword      ActionType = "reset_password"
	ActionCreateUser         ActionType = "create_user"
	ActionDeleteUser         ActionType = "delete_user"
	ActionSetAdmin           ActionType = "set_admin"

	// Maintenance actions recorded by automated jobs running as the
	// system user.
	ActionReconcileBalance   ActionType = "reconcile_balance"
	ActionInvariantRepair    ActionType = "invariant_repair"
	ActionInvariantViolation ActionType = "invariant_violation"
)

// IsValid checks if the action type is part of the closed enum
func (a ActionType) IsValid() bool {
	switch a {
	case ActionFund, ActionReverseTransaction, ActionFreeze, ActionUnfreeze,
		ActionApproveKYC, ActionRejectKYC, ActionResetPassword, ActionCreateUser,
		ActionDeleteUser, ActionSetAdmin, ActionReconcileBalance, ActionInvariantRepair,
		ActionInvariantViolation:
		return true
	}
	return false
}

// Status records whether the audited action succeeded
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusPending Status = "pending"
)

// IsValid checks if the status is a known enum value
func (s Status) IsValid() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusPending:
		return true
	}
	return false
}

// Entry is one immutable audit record. Corrections append a compensating
// entry; there is no update or delete path.
type Entry struct {
	ID            int64
	AdminID       int64
	UserID        int64
	AccountID     *int64
	ActionType    ActionType
	Reason        string
	Details       map[string]interface{}
	Status        Status
	StatusMessage *string
	CreatedAt     time.Time
}

// Validate checks enum fields and required bindings
func (e *Entry) Validate() error {
	if e.AdminID == 0 {
		return ErrMissingAdmin
	}
	if e.UserID == 0 {
		return ErrMissingSubject
	}
	if !e.ActionType.IsValid() {
		return ErrUnknownActionType
	}
	if e.Status == "" {
		e.Status = StatusSuccess
	}
	if !e.Status.IsValid() {
		return ErrInvalidStatus
	}
	return nil
}
