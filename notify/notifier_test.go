package notify

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"paygate/gateway"
)

// recordingExec captures the topic of every outbox insert.
type recordingExec struct {
	topics []string
}

func (r *recordingExec) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	r.topics = append(r.topics, args[1].(string))
	return pgconn.CommandTag{}, nil
}

func TestAccessGranted_AllTogglesOn(t *testing.T) {
	exec := &recordingExec{}
	n := NewNotifier(NewOutbox(nil), true, true, true)

	err := n.AccessGranted(context.Background(), exec, GrantNotice{UserID: 42, TxnID: "T1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{TopicAccessGranted, TopicAccessGrantedTeacher, TopicAccessGrantedAdmin}
	if len(exec.topics) != len(want) {
		t.Fatalf("expected %d messages, got %v", len(want), exec.topics)
	}
	for i, topic := range want {
		if exec.topics[i] != topic {
			t.Errorf("message %d: expected %q, got %q", i, topic, exec.topics[i])
		}
	}
}

func TestAccessGranted_TogglesGateMessages(t *testing.T) {
	exec := &recordingExec{}
	n := NewNotifier(NewOutbox(nil), true, false, false)

	if err := n.AccessGranted(context.Background(), exec, GrantNotice{UserID: 42}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(exec.topics) != 1 || exec.topics[0] != TopicAccessGranted {
		t.Errorf("expected only the student message, got %v", exec.topics)
	}
}

func TestAccessGranted_AllTogglesOff(t *testing.T) {
	exec := &recordingExec{}
	n := NewNotifier(NewOutbox(nil), false, false, false)

	if err := n.AccessGranted(context.Background(), exec, GrantNotice{UserID: 42}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(exec.topics) != 0 {
		t.Errorf("expected no messages, got %v", exec.topics)
	}
}

func TestOperatorAlert_AlwaysSends(t *testing.T) {
	exec := &recordingExec{}
	n := NewNotifier(NewOutbox(nil), false, false, false)

	fields := []gateway.Field{{Key: "txn_id", Value: "T1"}, {Key: "payment_status", Value: "Denied"}}
	if err := n.OperatorAlert(context.Background(), exec, "status not completed or pending", fields); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(exec.topics) != 1 || exec.topics[0] != TopicPaymentError {
		t.Errorf("expected operator message regardless of mail toggles, got %v", exec.topics)
	}
}

func TestRevokeDispatcher(t *testing.T) {
	exec := &recordingExec{}
	d := NewRevokeDispatcher(NewOutbox(nil), exec)

	if err := d.Revoke(context.Background(), 42, 7, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(exec.topics) != 1 || exec.topics[0] != TopicAccessRevoked {
		t.Errorf("expected revocation message, got %v", exec.topics)
	}
}
