package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrDuplicateTxn signals the insert hit the unique transaction id
	// constraint: the notification was already processed.
	ErrDuplicateTxn = errors.New("ledger: duplicate transaction")
	// ErrNotFound is returned when no record matches the lookup.
	ErrNotFound = errors.New("ledger: record not found")
)

// Execer is the subset of pgxpool.Pool and pgx.Tx needed for writes, so an
// insert can run either standalone or inside a caller-owned transaction.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository provides access to the transaction ledger.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed ledger repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const recordColumns = `id, txn_id, user_id, context_id, section_id, gross::text, currency, status, pending_reason, business, item_name, created_at, updated_at`

// Insert appends a record. The unique index on txn_id closes the race
// between two concurrent deliveries of the same notification; the loser gets
// ErrDuplicateTxn.
func (r *Repository) Insert(ctx context.Context, q Execer, params InsertParams) error {
	const insertSQL = `
		INSERT INTO payment_transactions
			(txn_id, user_id, context_id, section_id, gross, currency, status, pending_reason, business, item_name, raw)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, NULLIF($8, ''), $9, $10, $11)
	`

	_, err := q.Exec(ctx, insertSQL,
		params.TxnID,
		params.UserID,
		params.ContextID,
		params.SectionID,
		params.Gross.StringFixed(2),
		params.Currency,
		params.Status,
		params.PendingReason,
		params.Business,
		params.ItemName,
		params.Raw,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateTxn
		}
		return fmt.Errorf("ledger: insert record: %w", err)
	}

	return nil
}

// FindByTxnID fetches the processed record for a provider transaction id.
// Invalid audit rows are not processed records and never shadow a txn_id.
func (r *Repository) FindByTxnID(ctx context.Context, txnID string) (Record, error) {
	query := `SELECT ` + recordColumns + ` FROM payment_transactions WHERE txn_id = $1 AND status <> 'Invalid'`

	rec, err := scanRecord(r.pool.QueryRow(ctx, query, txnID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("ledger: find by txn id: %w", err)
	}
	return rec, nil
}

// LatestFor fetches the most recent record for (user, context, section).
func (r *Repository) LatestFor(ctx context.Context, userID, contextID, sectionID int64) (Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM payment_transactions
		WHERE user_id = $1 AND context_id = $2 AND section_id = $3
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	rec, err := scanRecord(r.pool.QueryRow(ctx, query, userID, contextID, sectionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("ledger: latest for triple: %w", err)
	}
	return rec, nil
}

// List returns records for administrative reporting, newest first.
func (r *Repository) List(ctx context.Context, f Filters) ([]Record, error) {
	query := `SELECT ` + recordColumns + ` FROM payment_transactions WHERE 1=1`
	args := make([]any, 0, 3)

	if f.UserID != 0 {
		args = append(args, f.UserID)
		query += fmt.Sprintf(" AND user_id = $%d", len(args))
	}
	if f.ContextID != 0 {
		args = append(args, f.ContextID)
		query += fmt.Sprintf(" AND context_id = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}

	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 200
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: list: %w", err)
	}
	defer rows.Close()

	out := make([]Record, 0, limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("ledger: scan record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: iterate records: %w", err)
	}
	return out, nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		rec   Record
		gross string
	)
	err := row.Scan(
		&rec.ID,
		&rec.TxnID,
		&rec.UserID,
		&rec.ContextID,
		&rec.SectionID,
		&gross,
		&rec.Currency,
		&rec.Status,
		&rec.PendingReason,
		&rec.Business,
		&rec.ItemName,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return Record{}, err
	}

	rec.Gross, err = decimal.NewFromString(gross)
	if err != nil {
		return Record{}, fmt.Errorf("parse gross %q: %w", gross, err)
	}
	return rec, nil
}
