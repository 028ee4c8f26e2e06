package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ferrobank/ferro/internal/audit"
)

// AuditRepository implements the audit persistence port using PostgreSQL.
// Entries are append-only: there is no update or delete method.
type AuditRepository struct {
	store *Store
}

// NewAuditRepository creates a new PostgreSQL audit repository
func NewAuditRepository(store *Store) *AuditRepository {
	return &AuditRepository{store: store}
}

// Create appends an audit entry and fills in the generated ID
func (r *AuditRepository) Create(ctx context.Context, entry *audit.Entry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("invalid audit entry: %w", err)
	}

	detailsJSON, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal details: %w", err)
	}

	entry.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO audit_logs (admin_id, user_id, account_id, action_type, reason, details, status, status_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	err = r.store.q(ctx).QueryRow(ctx, query,
		entry.AdminID,
		entry.UserID,
		entry.AccountID,
		string(entry.ActionType),
		entry.Reason,
		detailsJSON,
		string(entry.Status),
		entry.StatusMessage,
		entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to create audit entry: %w", err)
	}

	return nil
}

// List returns audit entries matching the filters, newest first
func (r *AuditRepository) List(ctx context.Context, filters audit.Filters) ([]*audit.Entry, error) {
	query := `
		SELECT id, admin_id, user_id, account_id, action_type, reason, details, status, status_message, created_at
		FROM audit_logs
		WHERE 1=1
	`

	args := make([]interface{}, 0)
	argPos := 1

	if filters.AdminID != nil {
		query += fmt.Sprintf(" AND admin_id = $%d", argPos)
		args = append(args, *filters.AdminID)
		argPos++
	}

	if filters.UserID != nil {
		query += fmt.Sprintf(" AND user_id = $%d", argPos)
		args = append(args, *filters.UserID)
		argPos++
	}

	if filters.AccountID != nil {
		query += fmt.Sprintf(" AND account_id = $%d", argPos)
		args = append(args, *filters.AccountID)
		argPos++
	}

	if filters.ActionType != nil {
		query += fmt.Sprintf(" AND action_type = $%d", argPos)
		args = append(args, string(*filters.ActionType))
		argPos++
	}

	if filters.From != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argPos)
		args = append(args, *filters.From)
		argPos++
	}

	if filters.To != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argPos)
		args = append(args, *filters.To)
		argPos++
	}

	query += " ORDER BY created_at DESC, id DESC"

	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argPos)
		args = append(args, filters.Limit)
		argPos++
	}

	if filters.Skip > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argPos)
		args = append(args, filters.Skip)
		argPos++
	}

	rows, err := r.store.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*audit.Entry
	for rows.Next() {
		var entry audit.Entry
		var accountID sql.NullInt64
		var actionType, status string
		var statusMessage sql.NullString
		var detailsJSON []byte

		err := rows.Scan(
			&entry.ID,
			&entry.AdminID,
			&entry.UserID,
			&accountID,
			&actionType,
			&entry.Reason,
			&detailsJSON,
			&status,
			&statusMessage,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}

		entry.ActionType = audit.ActionType(actionType)
		entry.Status = audit.Status(status)

		if accountID.Valid {
			entry.AccountID = &accountID.Int64
		}
		if statusMessage.Valid {
			entry.StatusMessage = &statusMessage.String
		}
		if len(detailsJSON) > 0 {
			if err := json.Unmarshal(detailsJSON, &entry.Details); err != nil {
				return nil, fmt.Errorf("failed to unmarshal details: %w", err)
			}
		}

		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit entries: %w", err)
	}

	return entries, nil
}
