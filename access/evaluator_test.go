package access

import (
	"context"
	"errors"
	"testing"

	"paygate/ledger"
)

type fakeLedger struct {
	rec   ledger.Record
	err   error
	calls int
}

func (f *fakeLedger) LatestFor(ctx context.Context, userID, contextID, sectionID int64) (ledger.Record, error) {
	f.calls++
	if f.err != nil {
		return ledger.Record{}, f.err
	}
	return f.rec, nil
}

func TestEvaluate_Granted(t *testing.T) {
	e := NewEvaluator(&fakeLedger{rec: ledger.Record{Status: ledger.StatusCompleted}})

	d, err := e.Evaluate(context.Background(), 42, 7, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != DecisionGranted {
		t.Fatalf("expected granted, got %s", d)
	}
}

func TestEvaluate_Pending(t *testing.T) {
	e := NewEvaluator(&fakeLedger{rec: ledger.Record{Status: ledger.StatusPending}})

	d, err := e.Evaluate(context.Background(), 42, 7, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != DecisionPending {
		t.Fatalf("expected pending, got %s", d)
	}
}

func TestEvaluate_RequiredWhenNoRecord(t *testing.T) {
	e := NewEvaluator(&fakeLedger{err: ledger.ErrNotFound})

	d, err := e.Evaluate(context.Background(), 42, 7, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != DecisionRequired {
		t.Fatalf("expected required, got %s", d)
	}
}

func TestEvaluate_InvalidRecordNeverGrants(t *testing.T) {
	e := NewEvaluator(&fakeLedger{rec: ledger.Record{Status: ledger.StatusInvalid}})

	d, err := e.Evaluate(context.Background(), 42, 7, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != DecisionRequired {
		t.Fatalf("expected required for an invalid record, got %s", d)
	}
}

func TestEvaluate_LedgerError(t *testing.T) {
	e := NewEvaluator(&fakeLedger{err: errors.New("connection reset")})

	if _, err := e.Evaluate(context.Background(), 42, 7, 0); err == nil {
		t.Fatal("expected the infrastructure error to propagate")
	}
}
