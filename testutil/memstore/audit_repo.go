package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ferrobank/ferro/internal/audit"
)

// AuditRepo implements audit.Repository against the in-memory DB
type AuditRepo struct {
	db *DB
}

// Create appends an audit entry and fills in the generated ID
func (r *AuditRepo) Create(ctx context.Context, entry *audit.Entry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("invalid audit entry: %w", err)
	}

	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	entry.ID = r.db.nextAuditID
	entry.CreatedAt = time.Now().UTC()
	r.db.nextAuditID++

	r.db.audits = append(r.db.audits, copyAudit(entry))
	return nil
}

// List returns audit entries matching the filters, newest first
func (r *AuditRepo) List(ctx context.Context, filters audit.Filters) ([]*audit.Entry, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var out []*audit.Entry
	for _, e := range r.db.audits {
		if filters.AdminID != nil && e.AdminID != *filters.AdminID {
			continue
		}
		if filters.UserID != nil && e.UserID != *filters.UserID {
			continue
		}
		if filters.AccountID != nil && (e.AccountID == nil || *e.AccountID != *filters.AccountID) {
			continue
		}
		if filters.ActionType != nil && e.ActionType != *filters.ActionType {
			continue
		}
		if filters.From != nil && e.CreatedAt.Before(*filters.From) {
			continue
		}
		if filters.To != nil && e.CreatedAt.After(*filters.To) {
			continue
		}
		out = append(out, copyAudit(e))
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if filters.Skip > 0 {
		if filters.Skip >= len(out) {
			return nil, nil
		}
		out = out[filters.Skip:]
	}
	if filters.Limit > 0 && filters.Limit < len(out) {
		out = out[:filters.Limit]
	}
	return out, nil
}
