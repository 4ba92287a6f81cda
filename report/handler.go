package report

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"paygate/access"
	"paygate/ledger"
)

const (
	codeUnauthorized   = "unauthorized"
	codeForbidden      = "forbidden"
	codeInvalidRequest = "invalid_request"
	codeInternalError  = "internal_error"
)

// LedgerLister is the ledger read surface for reporting.
type LedgerLister interface {
	List(ctx context.Context, f ledger.Filters) ([]ledger.Record, error)
}

// AccessEvaluator answers access queries for a triple.
type AccessEvaluator interface {
	Evaluate(ctx context.Context, userID, contextID, sectionID int64) (access.Decision, error)
}

type transactionResponse struct {
	TxnID         string    `json:"txn_id"`
	UserID        int64     `json:"user_id"`
	ContextID     int64     `json:"context_id"`
	SectionID     int64     `json:"section_id"`
	Gross         string    `json:"gross"`
	Currency      string    `json:"currency"`
	Status        string    `json:"status"`
	PendingReason *string   `json:"pending_reason,omitempty"`
	Business      string    `json:"business"`
	ItemName      string    `json:"item_name,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// HandleListTransactions returns an HTTP handler exposing ledger rows for
// administrative reporting.
func HandleListTransactions(svc LedgerLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeInvalidRequest, "method not allowed")
			return
		}

		q := r.URL.Query()
		f := ledger.Filters{Status: ledger.Status(q.Get("status"))}

		var err error
		if f.UserID, err = optionalID(q.Get("user_id")); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid user_id")
			return
		}
		if f.ContextID, err = optionalID(q.Get("context_id")); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid context_id")
			return
		}
		if limit := q.Get("limit"); limit != "" {
			if f.Limit, err = strconv.Atoi(limit); err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid limit")
				return
			}
		}

		records, err := svc.List(r.Context(), f)
		if err != nil {
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			return
		}

		out := make([]transactionResponse, 0, len(records))
		for _, rec := range records {
			out = append(out, transactionResponse{
				TxnID:         rec.TxnID,
				UserID:        rec.UserID,
				ContextID:     rec.ContextID,
				SectionID:     rec.SectionID,
				Gross:         rec.Gross.StringFixed(2),
				Currency:      rec.Currency,
				Status:        string(rec.Status),
				PendingReason: rec.PendingReason,
				Business:      rec.Business,
				ItemName:      rec.ItemName,
				CreatedAt:     rec.CreatedAt,
			})
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	}
}

type accessResponse struct {
	Decision string `json:"decision"`
}

// HandleAccessDecision returns an HTTP handler answering whether a user's
// access is granted, pending, or still required.
func HandleAccessDecision(svc AccessEvaluator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeInvalidRequest, "method not allowed")
			return
		}

		q := r.URL.Query()
		userID, err1 := strconv.ParseInt(q.Get("user_id"), 10, 64)
		contextID, err2 := strconv.ParseInt(q.Get("context_id"), 10, 64)
		sectionID, err3 := optionalID(q.Get("section_id"))
		if err1 != nil || err2 != nil || err3 != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequest, "user_id, context_id and section_id must be integers")
			return
		}

		decision, err := svc.Evaluate(r.Context(), userID, contextID, sectionID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(accessResponse{Decision: string(decision)})
	}
}

func optionalID(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: msg, Code: code})
}
