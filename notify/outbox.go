package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"paygate/ledger"
)

// Message is one transactional outbox entry awaiting delivery to the
// platform messaging system.
type Message struct {
	ID        string
	Topic     string
	Payload   []byte
	Status    string
	Attempts  int
	CreatedAt time.Time
}

// Outbox persists notification messages in the same database as the ledger
// so an enqueue can share the reconciliation transaction.
type Outbox struct {
	pool *pgxpool.Pool
}

// NewOutbox wires a pgxpool-backed outbox.
func NewOutbox(pool *pgxpool.Pool) *Outbox {
	return &Outbox{pool: pool}
}

// Enqueue appends a message. q may be the pool or an open transaction.
func (o *Outbox) Enqueue(ctx context.Context, q ledger.Execer, topic string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notify: marshal outbox payload: %w", err)
	}

	const insertSQL = `
		INSERT INTO outbox (id, topic, payload)
		VALUES ($1, $2, $3::jsonb)
	`

	if _, err := q.Exec(ctx, insertSQL, uuid.NewString(), topic, body); err != nil {
		return fmt.Errorf("notify: enqueue outbox message: %w", err)
	}
	return nil
}

// NextBatch returns up to limit pending messages, oldest first.
func (o *Outbox) NextBatch(ctx context.Context, limit int) ([]Message, error) {
	const query = `
		SELECT id, topic, payload, status, attempts, created_at
		FROM outbox
		WHERE status = 'pending'
		ORDER BY created_at ASC
		LIMIT $1
	`

	rows, err := o.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("notify: next batch: %w", err)
	}
	defer rows.Close()

	out := make([]Message, 0, limit)
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Topic, &m.Payload, &m.Status, &m.Attempts, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("notify: scan outbox message: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("notify: iterate outbox: %w", err)
	}
	return out, nil
}

// MarkSent flips a delivered message to sent.
func (o *Outbox) MarkSent(ctx context.Context, id string) error {
	if _, err := o.pool.Exec(ctx, `UPDATE outbox SET status = 'sent' WHERE id = $1`, id); err != nil {
		return fmt.Errorf("notify: mark sent: %w", err)
	}
	return nil
}

// MarkFailed counts a delivery attempt, leaving the message pending for the
// next drain.
func (o *Outbox) MarkFailed(ctx context.Context, id string) error {
	if _, err := o.pool.Exec(ctx, `UPDATE outbox SET attempts = attempts + 1 WHERE id = $1`, id); err != nil {
		return fmt.Errorf("notify: mark failed: %w", err)
	}
	return nil
}
