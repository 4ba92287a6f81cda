package webhook

import (
	"context"
	"io"
	"log"
	"net/http"

	"paygate/gateway"
	"paygate/ledger"
	"paygate/reconcile"
)

const maxBodySize = 1 << 20

// Verifier echoes a notification back to the payment provider.
type Verifier interface {
	Verify(ctx context.Context, n gateway.Notification) (gateway.Result, error)
}

// Reconciler runs the gate sequence for a verified notification.
type Reconciler interface {
	Reconcile(ctx context.Context, res gateway.Result, n gateway.Notification) (reconcile.Outcome, error)
}

// OperatorNotifier alerts the operator channel when verification cannot
// complete.
type OperatorNotifier interface {
	OperatorAlert(ctx context.Context, q ledger.Execer, subject string, fields []gateway.Field) error
}

// NewHandler returns the IPN endpoint. Responses never carry diagnostic
// bodies: the provider does not tolerate them, and all error reporting goes
// through the operator channel instead. A non-2xx status is the only retry
// hint the provider gets.
func NewHandler(verifier Verifier, engine Reconciler, notifier OperatorNotifier, exec ledger.Execer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("webhook: panic handling notification: %v", rec)
				w.WriteHeader(http.StatusInternalServerError)
			}
		}()

		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		// Keep out casual intruders: the provider never sends query
		// parameters or an empty body.
		if r.URL.RawQuery != "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
		if err != nil {
			log.Printf("webhook: read body: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		n, err := gateway.ParseNotification(body)
		if err != nil {
			log.Printf("webhook: reject malformed request: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		ctx := r.Context()

		res, err := verifier.Verify(ctx, n)
		if res == gateway.ResultUnreachable {
			log.Printf("webhook: txn %s: provider unreachable: %v", n.TxnID(), err)
			if alertErr := notifier.OperatorAlert(ctx, exec, "could not reach payment provider to verify notification", n.Fields()); alertErr != nil {
				log.Printf("webhook: operator alert: %v", alertErr)
			}
			// No ledger mutation happened; the provider redelivers.
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		outcome, err := engine.Reconcile(ctx, res, n)
		if err != nil {
			log.Printf("webhook: txn %s: reconcile: %v", n.TxnID(), err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		if outcome.Reason != "" {
			log.Printf("webhook: txn %s: %s (%s)", n.TxnID(), outcome.Kind, outcome.Reason)
		} else {
			log.Printf("webhook: txn %s: %s", n.TxnID(), outcome.Kind)
		}
		w.WriteHeader(http.StatusOK)
	}
}
