package audit

import "errors"

// Audit validation errors
var (
	ErrMissingAdmin        = errors.New("audit entry must reference an admin")
	ErrMissingSubject      = errors.New("audit entry must reference a subject user")
	ErrUnknownActionType   = errors.New("unknown audit action type")
	ErrInvalidStatus       = errors.New("invalid audit status")
	ErrAdminNotFound       = errors.New("admin user not found")
	ErrActorNotAdmin       = errors.New("acting user is not an admin")
	ErrSubjectNotFound     = errors.New("subject user not found")
	ErrAccountNotFound     = errors.New("audited account not found")
	ErrAccountNotOfSubject = errors.New("audited account does not belong to the subject")
)
