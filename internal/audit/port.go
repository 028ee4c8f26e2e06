package audit

import (
	"context"
	"time"
)

// Repository defines the interface for audit persistence. The log is
// append-only; no update or delete operations exist.
type Repository interface {
	// Create appends an audit entry
	Create(ctx context.Context, entry *Entry) error

	// List returns entries newest first, narrowed by the given filters
	List(ctx context.Context, filters Filters) ([]*Entry, error)
}

// Filters narrows audit queries. From and To bound the entry creation time;
// both ends are inclusive.
type Filters struct {
	AdminID    *int64
	UserID     *int64
	AccountID  *int64
	ActionType *ActionType
	From       *time.Time
	To         *time.Time
	Limit      int
	Skip       int
}
