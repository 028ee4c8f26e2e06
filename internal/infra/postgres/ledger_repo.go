package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/ferrobank/ferro/internal/ledger"
)

// LedgerRepository implements the ledger persistence port and the balance
// aggregation queries using PostgreSQL. Every method goes through the store
// so it participates in whatever database transaction the caller opened.
type LedgerRepository struct {
	store *Store
}

// NewLedgerRepository creates a new PostgreSQL ledger repository
func NewLedgerRepository(store *Store) *LedgerRepository {
	return &LedgerRepository{store: store}
}

const transactionColumns = `id, reference, user_id, account_id, amount, transaction_type, direction, status, description, kyc_status_at_time, created_at, updated_at`

const entryColumns = `id, user_id, entry_type, amount, transaction_id, related_entry_id, source_user_id, destination_user_id, description, status, created_at, posted_at, reversed_at`

// Transaction operations

// CreateTransaction inserts a transaction row and fills in the generated ID
func (r *LedgerRepository) CreateTransaction(ctx context.Context, tx *ledger.Transaction) error {
	if err := tx.Validate(); err != nil {
		return fmt.Errorf("invalid transaction: %w", err)
	}

	now := time.Now().UTC()
	tx.CreatedAt = now
	tx.UpdatedAt = now

	query := `
		INSERT INTO transactions (reference, user_id, account_id, amount, transaction_type, direction, status, description, kyc_status_at_time, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`

	err := r.store.q(ctx).QueryRow(ctx, query,
		tx.Reference,
		tx.UserID,
		tx.AccountID,
		tx.Amount.String(),
		string(tx.Type),
		string(tx.Direction),
		string(tx.Status),
		tx.Description,
		tx.KYCStatusAtTime,
		tx.CreatedAt,
		tx.UpdatedAt,
	).Scan(&tx.ID)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	return nil
}

// GetTransaction retrieves a transaction by ID
func (r *LedgerRepository) GetTransaction(ctx context.Context, id int64) (*ledger.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	return r.scanTransaction(r.store.q(ctx).QueryRow(ctx, query, id))
}

// GetTransactionsByReference returns all rows sharing one movement reference
func (r *LedgerRepository) GetTransactionsByReference(ctx context.Context, ref uuid.UUID) ([]*ledger.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE reference = $1 ORDER BY id`

	rows, err := r.store.q(ctx).Query(ctx, query, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	return r.collectTransactions(rows)
}

// UpdateTransactionStatus transitions a transaction's status
func (r *LedgerRepository) UpdateTransactionStatus(ctx context.Context, id int64, status ledger.TransactionStatus) error {
	query := `UPDATE transactions SET status = $2, updated_at = $3 WHERE id = $1`

	result, err := r.store.q(ctx).Exec(ctx, query, id, string(status), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update transaction status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ledger.ErrTransactionNotFound
	}
	return nil
}

// SetKYCStatusAtTime refreshes the per-row KYC snapshot taken when the
// transaction settles
func (r *LedgerRepository) SetKYCStatusAtTime(ctx context.Context, id int64, kycStatus string) error {
	query := `UPDATE transactions SET kyc_status_at_time = $2, updated_at = $3 WHERE id = $1`

	result, err := r.store.q(ctx).Exec(ctx, query, id, kycStatus, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update KYC snapshot: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ledger.ErrTransactionNotFound
	}
	return nil
}

// ListTransactions lists transactions with filters and pagination, newest
// first
func (r *LedgerRepository) ListTransactions(ctx context.Context, filters ledger.TransactionFilters) ([]*ledger.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE 1=1`

	args := make([]interface{}, 0)
	argPos := 1

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

	if filters.Type != nil {
		query += fmt.Sprintf(" AND transaction_type = $%d", argPos)
		args = append(args, string(*filters.Type))
		argPos++
	}

	if filters.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, string(*filters.Status))
		argPos++
	}

	query += " ORDER BY created_at DESC, id DESC"

	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argPos)
		args = append(args, filters.Limit)
		argPos++
	}

	if filters.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argPos)
		args = append(args, filters.Offset)
		argPos++
	}

	rows, err := r.store.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	return r.collectTransactions(rows)
}

// ListPendingByUser returns the user's pending transactions, oldest first,
// the order the release path settles them in
func (r *LedgerRepository) ListPendingByUser(ctx context.Context, userID int64) ([]*ledger.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE user_id = $1 AND status = 'pending'
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.store.q(ctx).Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending transactions: %w", err)
	}
	defer rows.Close()

	return r.collectTransactions(rows)
}

// Entry operations

// CreateEntry inserts a ledger entry and fills in the generated ID
func (r *LedgerRepository) CreateEntry(ctx context.Context, entry *ledger.Entry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("invalid entry: %w", err)
	}

	entry.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO ledger (user_id, entry_type, amount, transaction_id, related_entry_id, source_user_id, destination_user_id, description, status, created_at, posted_at, reversed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`

	err := r.store.q(ctx).QueryRow(ctx, query,
		entry.UserID,
		string(entry.EntryType),
		entry.Amount.String(),
		entry.TransactionID,
		entry.RelatedEntryID,
		entry.SourceUserID,
		entry.DestinationUserID,
		entry.Description,
		string(entry.Status),
		entry.CreatedAt,
		entry.PostedAt,
		entry.ReversedAt,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to create entry: %w", err)
	}

	return nil
}

// SetRelatedEntry links an entry to its pair
func (r *LedgerRepository) SetRelatedEntry(ctx context.Context, entryID, relatedID int64) error {
	query := `UPDATE ledger SET related_entry_id = $2 WHERE id = $1`

	result, err := r.store.q(ctx).Exec(ctx, query, entryID, relatedID)
	if err != nil {
		return fmt.Errorf("failed to link entry pair: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ledger.ErrEntryPairNotFound
	}
	return nil
}

// GetEntriesByTransaction retrieves all entries for a transaction
func (r *LedgerRepository) GetEntriesByTransaction(ctx context.Context, transactionID int64) ([]*ledger.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger WHERE transaction_id = $1 ORDER BY id`

	rows, err := r.store.q(ctx).Query(ctx, query, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []*ledger.Entry
	for rows.Next() {
		entry, err := r.scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entries: %w", err)
	}

	return entries, nil
}

// MarkEntriesReversed transitions all of a transaction's entries from posted
// to reversed
func (r *LedgerRepository) MarkEntriesReversed(ctx context.Context, transactionID int64, reversedAt time.Time) error {
	query := `
		UPDATE ledger
		SET status = 'reversed', reversed_at = $2
		WHERE transaction_id = $1 AND status = 'posted'
	`

	result, err := r.store.q(ctx).Exec(ctx, query, transactionID, reversedAt)
	if err != nil {
		return fmt.Errorf("failed to mark entries reversed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ledger.ErrEntryPairNotFound
	}
	return nil
}

// Balance aggregation

// SumPostedByUser returns the user's posted credit and debit totals.
// Reversed entries stay in the sum: a reversal compensates with an opposite
// pair, it never un-counts the original. The treasury seed's self-debit is
// excluded: the seed injects money from outside the system, it does not
// spend the system user's funds.
func (r *LedgerRepository) SumPostedByUser(ctx context.Context, userID int64) (credits, debits decimal.Decimal, err error) {
	query := `
		SELECT
			COALESCE(SUM(CASE WHEN e.entry_type = 'credit' THEN e.amount END), 0),
			COALESCE(SUM(CASE WHEN e.entry_type = 'debit' THEN e.amount END), 0)
		FROM ledger e
		JOIN transactions t ON t.id = e.transaction_id
		WHERE e.user_id = $1
		  AND e.status IN ('posted', 'reversed')
		  AND NOT (t.transaction_type = 'system_seed' AND e.entry_type = 'debit')
	`

	var creditStr, debitStr string
	if err := r.store.q(ctx).QueryRow(ctx, query, userID).Scan(&creditStr, &debitStr); err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("failed to sum posted entries: %w", err)
	}

	return parsePair(creditStr, debitStr)
}

// SumHeldByUser totals the user's pending and blocked transactions by
// direction
func (r *LedgerRepository) SumHeldByUser(ctx context.Context, userID int64) (incoming, outgoing decimal.Decimal, err error) {
	query := `
		SELECT
			COALESCE(SUM(CASE WHEN direction = 'credit' THEN amount END), 0),
			COALESCE(SUM(CASE WHEN direction = 'debit' THEN amount END), 0)
		FROM transactions
		WHERE user_id = $1 AND status IN ('pending', 'blocked')
	`

	var inStr, outStr string
	if err := r.store.q(ctx).QueryRow(ctx, query, userID).Scan(&inStr, &outStr); err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("failed to sum held transactions: %w", err)
	}

	return parsePair(inStr, outStr)
}

// SystemSums returns platform-wide posted totals and the net position of all
// users combined
func (r *LedgerRepository) SystemSums(ctx context.Context) (credits, debits, userNet decimal.Decimal, err error) {
	query := `
		SELECT
			COALESCE(SUM(CASE WHEN entry_type = 'credit' THEN amount END), 0),
			COALESCE(SUM(CASE WHEN entry_type = 'debit' THEN amount END), 0)
		FROM ledger
		WHERE status IN ('posted', 'reversed')
	`

	var creditStr, debitStr string
	if err := r.store.q(ctx).QueryRow(ctx, query).Scan(&creditStr, &debitStr); err != nil {
		return decimal.Zero, decimal.Zero, decimal.Zero, fmt.Errorf("failed to sum posted entries: %w", err)
	}

	credits, debits, err = parsePair(creditStr, debitStr)
	if err != nil {
		return decimal.Zero, decimal.Zero, decimal.Zero, err
	}

	netQuery := `
		SELECT COALESCE(SUM(
			CASE WHEN e.entry_type = 'credit' THEN e.amount ELSE -e.amount END
		), 0)
		FROM ledger e
		JOIN transactions t ON t.id = e.transaction_id
		WHERE e.status IN ('posted', 'reversed')
		  AND NOT (t.transaction_type = 'system_seed' AND e.entry_type = 'debit')
	`

	var netStr string
	if err := r.store.q(ctx).QueryRow(ctx, netQuery).Scan(&netStr); err != nil {
		return decimal.Zero, decimal.Zero, decimal.Zero, fmt.Errorf("failed to sum net positions: %w", err)
	}

	userNet, err = decimal.NewFromString(netStr)
	if err != nil {
		return decimal.Zero, decimal.Zero, decimal.Zero, fmt.Errorf("failed to parse net position %q: %w", netStr, err)
	}

	return credits, debits, userNet, nil
}

// Invariant scans

// FindUnbalancedTransactions returns transactions whose entry sides do not
// sum equal
func (r *LedgerRepository) FindUnbalancedTransactions(ctx context.Context) ([]ledger.Imbalance, error) {
	query := `
		SELECT
			transaction_id,
			COALESCE(SUM(CASE WHEN entry_type = 'debit' THEN amount END), 0) AS debit_total,
			COALESCE(SUM(CASE WHEN entry_type = 'credit' THEN amount END), 0) AS credit_total
		FROM ledger
		GROUP BY transaction_id
		HAVING COALESCE(SUM(CASE WHEN entry_type = 'debit' THEN amount END), 0)
			<> COALESCE(SUM(CASE WHEN entry_type = 'credit' THEN amount END), 0)
		ORDER BY transaction_id
	`

	rows, err := r.store.q(ctx).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to scan for imbalances: %w", err)
	}
	defer rows.Close()

	var imbalances []ledger.Imbalance
	for rows.Next() {
		var imb ledger.Imbalance
		if err := rows.Scan(&imb.TransactionID, &imb.DebitTotal, &imb.CreditTotal); err != nil {
			return nil, fmt.Errorf("failed to scan imbalance: %w", err)
		}
		imbalances = append(imbalances, imb)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating imbalances: %w", err)
	}

	return imbalances, nil
}

// FindUnpairedEntries returns entries that never got a related entry
func (r *LedgerRepository) FindUnpairedEntries(ctx context.Context) ([]int64, error) {
	return r.scanIDs(ctx, `SELECT id FROM ledger WHERE related_entry_id IS NULL ORDER BY id`)
}

// FindNonPositiveEntries returns entries whose amount should have been
// rejected at the gate
func (r *LedgerRepository) FindNonPositiveEntries(ctx context.Context) ([]int64, error) {
	return r.scanIDs(ctx, `SELECT id FROM ledger WHERE amount <= 0 ORDER BY id`)
}

// FindUnbound returns transactions missing their user or account binding.
// The live schema forbids NULL bindings, so hits only show up in databases
// created before the constraints were added.
func (r *LedgerRepository) FindUnbound(ctx context.Context) ([]int64, error) {
	return r.scanIDs(ctx, `SELECT id FROM transactions WHERE user_id IS NULL OR account_id IS NULL ORDER BY id`)
}

func (r *LedgerRepository) scanIDs(ctx context.Context, query string) ([]int64, error) {
	rows, err := r.store.q(ctx).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query entry ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan entry id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entry ids: %w", err)
	}

	return ids, nil
}

func (r *LedgerRepository) collectTransactions(rows pgx.Rows) ([]*ledger.Transaction, error) {
	var transactions []*ledger.Transaction
	for rows.Next() {
		tx, err := r.scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return transactions, nil
}

// scanTransaction scans a single transaction row
func (r *LedgerRepository) scanTransaction(row pgx.Row) (*ledger.Transaction, error) {
	var tx ledger.Transaction
	var amountStr, txType, direction, status string

	err := row.Scan(
		&tx.ID,
		&tx.Reference,
		&tx.UserID,
		&tx.AccountID,
		&amountStr,
		&txType,
		&direction,
		&status,
		&tx.Description,
		&tx.KYCStatusAtTime,
		&tx.CreatedAt,
		&tx.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ledger.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse amount %q: %w", amountStr, err)
	}

	tx.Amount = amount
	tx.Type = ledger.TransactionType(txType)
	tx.Direction = ledger.Direction(direction)
	tx.Status = ledger.TransactionStatus(status)

	return &tx, nil
}

// scanEntry scans a single entry row
func (r *LedgerRepository) scanEntry(row pgx.Row) (*ledger.Entry, error) {
	var entry ledger.Entry
	var amountStr, entryType, status string
	var relatedID, sourceID, destID sql.NullInt64
	var postedAt, reversedAt sql.NullTime

	err := row.Scan(
		&entry.ID,
		&entry.UserID,
		&entryType,
		&amountStr,
		&entry.TransactionID,
		&relatedID,
		&sourceID,
		&destID,
		&entry.Description,
		&status,
		&entry.CreatedAt,
		&postedAt,
		&reversedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan entry: %w", err)
	}

	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse amount %q: %w", amountStr, err)
	}

	entry.Amount = amount
	entry.EntryType = ledger.EntryType(entryType)
	entry.Status = ledger.EntryStatus(status)

	if relatedID.Valid {
		entry.RelatedEntryID = &relatedID.Int64
	}
	if sourceID.Valid {
		entry.SourceUserID = &sourceID.Int64
	}
	if destID.Valid {
		entry.DestinationUserID = &destID.Int64
	}
	if postedAt.Valid {
		entry.PostedAt = &postedAt.Time
	}
	if reversedAt.Valid {
		entry.ReversedAt = &reversedAt.Time
	}

	return &entry, nil
}

func parsePair(a, b string) (decimal.Decimal, decimal.Decimal, error) {
	first, err := decimal.NewFromString(a)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("failed to parse sum %q: %w", a, err)
	}
	second, err := decimal.NewFromString(b)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("failed to parse sum %q: %w", b, err)
	}
	return first, second, nil
}
