package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"paygate/condition"
	"paygate/gateway"
	"paygate/ledger"
	"paygate/notify"
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// UserDirectory answers whether a correlated user exists.
type UserDirectory interface {
	UserExists(ctx context.Context, userID int64) (bool, error)
}

// ContextResolver resolves the payment descriptor gating a context/section.
type ContextResolver interface {
	Resolve(ctx context.Context, contextID, sectionID int64) (condition.Descriptor, error)
}

// Ledger is the transaction store surface the engine needs.
type Ledger interface {
	Insert(ctx context.Context, q ledger.Execer, params ledger.InsertParams) error
	FindByTxnID(ctx context.Context, txnID string) (ledger.Record, error)
	LatestFor(ctx context.Context, userID, contextID, sectionID int64) (ledger.Record, error)
}

// Notifier dispatches outcome messages.
type Notifier interface {
	OperatorAlert(ctx context.Context, q ledger.Execer, subject string, fields []gateway.Field) error
	PaymentPending(ctx context.Context, q ledger.Execer, userID, contextID, sectionID int64) error
	AccessGranted(ctx context.Context, q ledger.Execer, notice notify.GrantNotice) error
}

// AccessRevoker is the platform hook that withdraws previously granted
// access. The ledger itself is never rewritten; Completed rows are final.
type AccessRevoker interface {
	Revoke(ctx context.Context, userID, contextID, sectionID int64) error
}

// Deps enumerates the collaborators the engine is wired with.
type Deps struct {
	Pool     TxBeginner
	Exec     ledger.Execer
	Users    UserDirectory
	Contexts ContextResolver
	Ledger   Ledger
	Notifier Notifier
	Revoker  AccessRevoker
}

// Engine decides what a verified notification means for a user's access and
// commits that decision to the ledger.
type Engine struct {
	deps Deps
}

// NewEngine builds the reconciliation engine.
func NewEngine(deps Deps) *Engine {
	return &Engine{deps: deps}
}

// Reconcile runs the gate sequence for one notification. Each gate is a
// terminal short-circuit; the returned error is reserved for infrastructure
// faults, never for business rejections.
func (e *Engine) Reconcile(ctx context.Context, res gateway.Result, n gateway.Notification) (Outcome, error) {
	if res != gateway.ResultVerified {
		if res == gateway.ResultInvalid {
			if err := e.recordInvalid(ctx, n); err != nil {
				return Outcome{}, err
			}
		}
		return Outcome{Kind: KindRejected, Reason: ReasonNotVerified}, nil
	}

	if n.TxnID() == "" {
		return e.reject(ctx, n, ReasonMalformed)
	}

	corr, err := n.Correlation()
	if err != nil {
		return e.reject(ctx, n, ReasonBadCorrelation)
	}

	exists, err := e.deps.Users.UserExists(ctx, corr.UserID)
	if err != nil {
		return Outcome{}, fmt.Errorf("reconcile: look up user %d: %w", corr.UserID, err)
	}
	if !exists {
		return e.reject(ctx, n, ReasonUnknownEntity)
	}

	desc, err := e.deps.Contexts.Resolve(ctx, corr.ContextID, corr.SectionID)
	if err != nil {
		if errors.Is(err, condition.ErrContextNotFound) || errors.Is(err, condition.ErrNoCondition) {
			return e.reject(ctx, n, ReasonUnknownEntity)
		}
		return Outcome{}, fmt.Errorf("reconcile: resolve context %d: %w", corr.ContextID, err)
	}

	status := n.PaymentStatus()
	if status != paymentStatusCompleted && status != paymentStatusPending {
		if err := e.revokeIfGranted(ctx, corr); err != nil {
			return Outcome{}, err
		}
		return e.reject(ctx, n, ReasonBadStatus)
	}

	// Exact code match; a wrong currency is a fraud signal, not a rounding
	// problem.
	if n.Currency() != desc.Currency {
		return e.reject(ctx, n, ReasonCurrencyMismatch)
	}

	gross, err := decimal.NewFromString(n.Gross())
	if err != nil {
		return e.reject(ctx, n, ReasonAmountMismatch)
	}
	gross = gross.Round(2)
	if !gross.Equal(desc.Cost) {
		return e.reject(ctx, n, ReasonAmountMismatch)
	}

	if status == paymentStatusPending && n.PendingReason() != pendingReasonEcheck {
		return e.holdPending(ctx, n, corr, gross)
	}

	// Read-side duplicate check first; the unique index on txn_id closes the
	// race between concurrent redeliveries at insert time.
	if _, err := e.deps.Ledger.FindByTxnID(ctx, n.TxnID()); err == nil {
		if err := e.deps.Notifier.OperatorAlert(ctx, e.deps.Exec, "transaction "+n.TxnID()+" is being repeated", n.Fields()); err != nil {
			return Outcome{}, err
		}
		return Outcome{Kind: KindDuplicate}, nil
	} else if !errors.Is(err, ledger.ErrNotFound) {
		return Outcome{}, fmt.Errorf("reconcile: duplicate check: %w", err)
	}

	if !strings.EqualFold(n.Business(), desc.BusinessEmail) {
		return e.reject(ctx, n, ReasonBusinessMismatch)
	}

	return e.accept(ctx, n, corr, gross)
}

// accept commits the Completed record and its outcome messages in one
// transaction.
func (e *Engine) accept(ctx context.Context, n gateway.Notification, corr gateway.Correlation, gross decimal.Decimal) (Outcome, error) {
	tx, err := e.deps.Pool.Begin(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("reconcile: begin accept tx: %w", err)
	}
	defer tx.Rollback(ctx)

	err = e.deps.Ledger.Insert(ctx, tx, ledger.InsertParams{
		TxnID:     n.TxnID(),
		UserID:    corr.UserID,
		ContextID: corr.ContextID,
		SectionID: corr.SectionID,
		Gross:     gross,
		Currency:  n.Currency(),
		Status:    ledger.StatusCompleted,
		Business:  n.Business(),
		ItemName:  n.ItemName(),
		Raw:       rawPayload(n),
	})
	if err != nil {
		if errors.Is(err, ledger.ErrDuplicateTxn) {
			return Outcome{Kind: KindDuplicate}, nil
		}
		return Outcome{}, err
	}

	err = e.deps.Notifier.AccessGranted(ctx, tx, notify.GrantNotice{
		UserID:    corr.UserID,
		ContextID: corr.ContextID,
		SectionID: corr.SectionID,
		TxnID:     n.TxnID(),
		ItemName:  n.ItemName(),
	})
	if err != nil {
		return Outcome{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Outcome{}, fmt.Errorf("reconcile: commit accept tx: %w", err)
	}

	return Outcome{Kind: KindAccepted}, nil
}

// holdPending records the on-hold payment so the access page can answer
// Pending, and tells the user and operator. Nothing is finalized as
// Completed.
func (e *Engine) holdPending(ctx context.Context, n gateway.Notification, corr gateway.Correlation, gross decimal.Decimal) (Outcome, error) {
	tx, err := e.deps.Pool.Begin(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("reconcile: begin pending tx: %w", err)
	}
	defer tx.Rollback(ctx)

	err = e.deps.Ledger.Insert(ctx, tx, ledger.InsertParams{
		TxnID:         n.TxnID(),
		UserID:        corr.UserID,
		ContextID:     corr.ContextID,
		SectionID:     corr.SectionID,
		Gross:         gross,
		Currency:      n.Currency(),
		Status:        ledger.StatusPending,
		PendingReason: n.PendingReason(),
		Business:      n.Business(),
		ItemName:      n.ItemName(),
		Raw:           rawPayload(n),
	})
	if err != nil {
		if errors.Is(err, ledger.ErrDuplicateTxn) {
			return Outcome{Kind: KindDuplicate}, nil
		}
		return Outcome{}, err
	}

	if err := e.deps.Notifier.PaymentPending(ctx, tx, corr.UserID, corr.ContextID, corr.SectionID); err != nil {
		return Outcome{}, err
	}
	if err := e.deps.Notifier.OperatorAlert(ctx, tx, "payment pending", n.Fields()); err != nil {
		return Outcome{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Outcome{}, fmt.Errorf("reconcile: commit pending tx: %w", err)
	}

	return Outcome{Kind: KindPending, Reason: ReasonAwaitingClearance}, nil
}

// recordInvalid keeps a confirmed-invalid notification for audit and alerts
// the operator. Correlation fields are best effort here; the payload may be
// arbitrary garbage.
func (e *Engine) recordInvalid(ctx context.Context, n gateway.Notification) error {
	corr, _ := n.Correlation()
	gross, err := decimal.NewFromString(n.Gross())
	if err != nil {
		gross = decimal.Zero
	}

	// Invalid rows are exempt from the txn_id unique index, so every
	// confirmed-bad delivery lands its own audit row. Any insert failure is
	// surfaced; the provider redelivers and no evidence is lost.
	err = e.deps.Ledger.Insert(ctx, e.deps.Exec, ledger.InsertParams{
		TxnID:         n.TxnID(),
		UserID:        corr.UserID,
		ContextID:     corr.ContextID,
		SectionID:     corr.SectionID,
		Gross:         gross.Round(2),
		Currency:      n.Currency(),
		Status:        ledger.StatusInvalid,
		PendingReason: n.PendingReason(),
		Business:      n.Business(),
		ItemName:      n.ItemName(),
		Raw:           rawPayload(n),
	})
	if err != nil {
		return fmt.Errorf("reconcile: record invalid notification: %w", err)
	}

	return e.deps.Notifier.OperatorAlert(ctx, e.deps.Exec, "received an invalid payment notification", n.Fields())
}

// revokeIfGranted runs the compensating action for a bad payment status: a
// user who already holds access loses it on the platform side.
func (e *Engine) revokeIfGranted(ctx context.Context, corr gateway.Correlation) error {
	rec, err := e.deps.Ledger.LatestFor(ctx, corr.UserID, corr.ContextID, corr.SectionID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("reconcile: check granted state: %w", err)
	}
	if rec.Status != ledger.StatusCompleted {
		return nil
	}
	if err := e.deps.Revoker.Revoke(ctx, corr.UserID, corr.ContextID, corr.SectionID); err != nil {
		return fmt.Errorf("reconcile: revoke access: %w", err)
	}
	return nil
}

func (e *Engine) reject(ctx context.Context, n gateway.Notification, reason string) (Outcome, error) {
	if err := e.deps.Notifier.OperatorAlert(ctx, e.deps.Exec, reason, n.Fields()); err != nil {
		return Outcome{}, err
	}
	return Outcome{Kind: KindRejected, Reason: reason}, nil
}

func rawPayload(n gateway.Notification) []byte {
	dump := make(map[string]string, len(n.Fields()))
	for _, f := range n.Fields() {
		dump[f.Key] = f.Value
	}
	b, err := json.Marshal(dump)
	if err != nil {
		return []byte("{}")
	}
	return b
}
