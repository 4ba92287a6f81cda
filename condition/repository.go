package condition

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrContextNotFound signals the gated context does not exist.
var ErrContextNotFound = errors.New("condition: context not found")

// Repository reads payment descriptors out of the availability rules stored
// per course context.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed repository implementation.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Resolve loads the availability tree for (contextID, sectionID) and returns
// the payment descriptor embedded in it. sectionID is zero for module-level
// contexts.
func (r *Repository) Resolve(ctx context.Context, contextID, sectionID int64) (Descriptor, error) {
	const query = `
		SELECT availability
		FROM course_contexts
		WHERE id = $1 AND section_id = $2
	`

	var raw []byte
	if err := r.pool.QueryRow(ctx, query, contextID, sectionID).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Descriptor{}, ErrContextNotFound
		}
		return Descriptor{}, fmt.Errorf("condition: query availability: %w", err)
	}

	var root Node
	if err := json.Unmarshal(raw, &root); err != nil {
		return Descriptor{}, fmt.Errorf("condition: decode availability tree: %w", err)
	}

	leaf, ok := FindPayment(root)
	if !ok {
		return Descriptor{}, ErrNoCondition
	}

	return leaf.Descriptor()
}
