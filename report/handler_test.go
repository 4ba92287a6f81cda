package report

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"paygate/access"
	"paygate/auth"
	"paygate/ledger"
)

type fakeLister struct {
	records []ledger.Record
	err     error
	filters ledger.Filters
}

func (f *fakeLister) List(ctx context.Context, filters ledger.Filters) ([]ledger.Record, error) {
	f.filters = filters
	return f.records, f.err
}

type fakeEvaluator struct {
	decision access.Decision
	err      error
	triple   [3]int64
}

func (f *fakeEvaluator) Evaluate(ctx context.Context, userID, contextID, sectionID int64) (access.Decision, error) {
	f.triple = [3]int64{userID, contextID, sectionID}
	return f.decision, f.err
}

func TestHandleListTransactions(t *testing.T) {
	lister := &fakeLister{records: []ledger.Record{{
		TxnID:     "T1",
		UserID:    42,
		ContextID: 7,
		Gross:     decimal.RequireFromString("10.00"),
		Currency:  "USD",
		Status:    ledger.StatusCompleted,
		Business:  "shop@example.com",
		CreatedAt: time.Now(),
	}}}
	h := HandleListTransactions(lister)

	req := httptest.NewRequest(http.MethodGet, "/report/transactions?user_id=42&status=Completed&limit=10", nil)
	rr := httptest.NewRecorder()
	h(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if lister.filters.UserID != 42 || lister.filters.Status != ledger.StatusCompleted || lister.filters.Limit != 10 {
		t.Errorf("unexpected filters: %+v", lister.filters)
	}

	var out []transactionResponse
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(out) != 1 || out[0].TxnID != "T1" || out[0].Gross != "10.00" {
		t.Errorf("unexpected response: %+v", out)
	}
}

func TestHandleListTransactions_InvalidFilter(t *testing.T) {
	h := HandleListTransactions(&fakeLister{})

	req := httptest.NewRequest(http.MethodGet, "/report/transactions?user_id=abc", nil)
	rr := httptest.NewRecorder()
	h(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	var resp errorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if resp.Code != codeInvalidRequest {
		t.Errorf("unexpected error code %q", resp.Code)
	}
}

func TestHandleListTransactions_ListerError(t *testing.T) {
	h := HandleListTransactions(&fakeLister{err: errors.New("connection reset")})

	req := httptest.NewRequest(http.MethodGet, "/report/transactions", nil)
	rr := httptest.NewRecorder()
	h(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}

func TestHandleAccessDecision(t *testing.T) {
	ev := &fakeEvaluator{decision: access.DecisionGranted}
	h := HandleAccessDecision(ev)

	req := httptest.NewRequest(http.MethodGet, "/report/access?user_id=42&context_id=7&section_id=3", nil)
	rr := httptest.NewRecorder()
	h(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if ev.triple != [3]int64{42, 7, 3} {
		t.Errorf("unexpected triple: %v", ev.triple)
	}

	var resp accessResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Decision != string(access.DecisionGranted) {
		t.Errorf("unexpected decision %q", resp.Decision)
	}
}

func TestHandleAccessDecision_SectionDefaultsToZero(t *testing.T) {
	ev := &fakeEvaluator{decision: access.DecisionRequired}
	h := HandleAccessDecision(ev)

	req := httptest.NewRequest(http.MethodGet, "/report/access?user_id=42&context_id=7", nil)
	rr := httptest.NewRecorder()
	h(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ev.triple != [3]int64{42, 7, 0} {
		t.Errorf("expected section to default to 0, got %v", ev.triple)
	}
}

func TestHandleAccessDecision_MissingIDs(t *testing.T) {
	h := HandleAccessDecision(&fakeEvaluator{})

	req := httptest.NewRequest(http.MethodGet, "/report/access?user_id=42", nil)
	rr := httptest.NewRecorder()
	h(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

type fakeTokenVerifier struct {
	userID int64
	role   auth.Role
	err    error
}

func (f *fakeTokenVerifier) VerifyToken(token string) (int64, auth.Role, error) {
	if f.err != nil {
		return 0, "", f.err
	}
	return f.userID, f.role, nil
}

func TestRequireOperator(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name     string
		header   string
		verifier *fakeTokenVerifier
		want     int
	}{
		{"operator allowed", "Bearer tok", &fakeTokenVerifier{userID: 1, role: auth.RoleOperator}, http.StatusNoContent},
		{"admin allowed", "Bearer tok", &fakeTokenVerifier{userID: 1, role: auth.RoleAdmin}, http.StatusNoContent},
		{"learner forbidden", "Bearer tok", &fakeTokenVerifier{userID: 1, role: auth.RoleLearner}, http.StatusForbidden},
		{"missing header", "", &fakeTokenVerifier{}, http.StatusUnauthorized},
		{"not bearer", "Basic dXNlcg==", &fakeTokenVerifier{}, http.StatusUnauthorized},
		{"bad token", "Bearer tok", &fakeTokenVerifier{err: errors.New("expired")}, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/report/transactions", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			RequireOperator(tt.verifier, next).ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rr.Code)
			}
		})
	}
}
