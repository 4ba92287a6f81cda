package notify

import (
	"context"

	"paygate/gateway"
	"paygate/ledger"
)

// Outbox topics. payment.error is the operator channel; everything rejected
// as a possible fraud or configuration signal lands there.
const (
	TopicPaymentPending       = "payment.pending"
	TopicPaymentError         = "payment.error"
	TopicAccessGranted        = "access.granted"
	TopicAccessGrantedTeacher = "access.granted.teacher"
	TopicAccessGrantedAdmin   = "access.granted.admin"
	TopicAccessRevoked        = "access.revoked"
)

// GrantNotice describes an accepted payment for the downstream messages.
type GrantNotice struct {
	UserID    int64
	ContextID int64
	SectionID int64
	TxnID     string
	ItemName  string
}

// Notifier composes outcome messages and hands them to the outbox. The
// platform messaging system consumes them from there.
type Notifier struct {
	outbox *Outbox

	mailStudents bool
	mailTeachers bool
	mailAdmins   bool
}

// NewNotifier builds a Notifier; the mail flags gate the messages sent on an
// accepted payment.
func NewNotifier(outbox *Outbox, mailStudents, mailTeachers, mailAdmins bool) *Notifier {
	return &Notifier{
		outbox:       outbox,
		mailStudents: mailStudents,
		mailTeachers: mailTeachers,
		mailAdmins:   mailAdmins,
	}
}

// OperatorAlert reports a failed or suspicious notification to the operator
// channel, with the full field dump for diagnosis.
func (n *Notifier) OperatorAlert(ctx context.Context, q ledger.Execer, subject string, fields []gateway.Field) error {
	dump := make(map[string]any, len(fields))
	for _, f := range fields {
		dump[f.Key] = f.Value
	}
	payload := map[string]any{
		"subject": subject,
		"fields":  dump,
	}
	return n.outbox.Enqueue(ctx, q, TopicPaymentError, payload)
}

// PaymentPending tells the user their payment is on hold.
func (n *Notifier) PaymentPending(ctx context.Context, q ledger.Execer, userID, contextID, sectionID int64) error {
	payload := map[string]any{
		"user_id":    userID,
		"context_id": contextID,
		"section_id": sectionID,
	}
	return n.outbox.Enqueue(ctx, q, TopicPaymentPending, payload)
}

// AccessGranted emits the configured set of messages for an accepted
// payment: user welcome, teacher notice, admin notice.
func (n *Notifier) AccessGranted(ctx context.Context, q ledger.Execer, notice GrantNotice) error {
	payload := map[string]any{
		"user_id":    notice.UserID,
		"context_id": notice.ContextID,
		"section_id": notice.SectionID,
		"txn_id":     notice.TxnID,
		"item_name":  notice.ItemName,
	}

	if n.mailStudents {
		if err := n.outbox.Enqueue(ctx, q, TopicAccessGranted, payload); err != nil {
			return err
		}
	}
	if n.mailTeachers {
		if err := n.outbox.Enqueue(ctx, q, TopicAccessGrantedTeacher, payload); err != nil {
			return err
		}
	}
	if n.mailAdmins {
		if err := n.outbox.Enqueue(ctx, q, TopicAccessGrantedAdmin, payload); err != nil {
			return err
		}
	}
	return nil
}

// RevokeDispatcher adapts the outbox into the engine's revocation hook. The
// enrolment platform consumes the message and withdraws the user's access.
type RevokeDispatcher struct {
	outbox *Outbox
	exec   ledger.Execer
}

// NewRevokeDispatcher builds the dispatcher.
func NewRevokeDispatcher(outbox *Outbox, exec ledger.Execer) *RevokeDispatcher {
	return &RevokeDispatcher{outbox: outbox, exec: exec}
}

// Revoke asks the platform to withdraw access for the triple.
func (d *RevokeDispatcher) Revoke(ctx context.Context, userID, contextID, sectionID int64) error {
	payload := map[string]any{
		"user_id":    userID,
		"context_id": contextID,
		"section_id": sectionID,
	}
	return d.outbox.Enqueue(ctx, d.exec, TopicAccessRevoked, payload)
}
