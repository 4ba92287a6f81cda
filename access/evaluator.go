package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"paygate/ledger"
)

// Decision is the derived access state for a (user, context, section)
// triple. It is computed, never persisted.
type Decision string

const (
	DecisionGranted  Decision = "granted"
	DecisionPending  Decision = "pending"
	DecisionRequired Decision = "required"
)

// LedgerReader is the read surface the evaluator needs.
type LedgerReader interface {
	LatestFor(ctx context.Context, userID, contextID, sectionID int64) (ledger.Record, error)
}

// Evaluator answers access queries against the ledger's latest committed
// state. Safe for concurrent use.
type Evaluator struct {
	ledger   LedgerReader
	cache    *redis.Client
	cacheTTL time.Duration
}

// NewEvaluator builds an Evaluator without caching.
func NewEvaluator(l LedgerReader) *Evaluator {
	return &Evaluator{ledger: l, cacheTTL: time.Hour}
}

// WithCache enables caching of Granted decisions. Only Granted is cached:
// Completed records are final, so a cached grant can never go stale, while
// Pending and Required must always see the latest ledger state.
func (e *Evaluator) WithCache(c *redis.Client) *Evaluator {
	e.cache = c
	return e
}

// Evaluate returns the current access decision. A Granted result is only
// ever derived from a committed Completed record.
func (e *Evaluator) Evaluate(ctx context.Context, userID, contextID, sectionID int64) (Decision, error) {
	key := cacheKey(userID, contextID, sectionID)

	if e.cache != nil {
		if v, err := e.cache.Get(ctx, key).Result(); err == nil && v == string(DecisionGranted) {
			return DecisionGranted, nil
		}
	}

	rec, err := e.ledger.LatestFor(ctx, userID, contextID, sectionID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return DecisionRequired, nil
		}
		return "", fmt.Errorf("access: evaluate: %w", err)
	}

	switch rec.Status {
	case ledger.StatusCompleted:
		if e.cache != nil {
			// Best effort; a cache failure must not block the grant.
			e.cache.Set(ctx, key, string(DecisionGranted), e.cacheTTL)
		}
		return DecisionGranted, nil
	case ledger.StatusPending:
		return DecisionPending, nil
	default:
		return DecisionRequired, nil
	}
}

func cacheKey(userID, contextID, sectionID int64) string {
	return fmt.Sprintf("paygate:access:%d:%d:%d", userID, contextID, sectionID)
}
