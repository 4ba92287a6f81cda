package reconcile

// Kind classifies the terminal outcome of reconciling one notification.
type Kind string

const (
	KindAccepted  Kind = "accepted"
	KindRejected  Kind = "rejected"
	KindDuplicate Kind = "duplicate"
	KindPending   Kind = "pending"
)

// Outcome is what the engine decided and, for rejections and holds, why.
type Outcome struct {
	Kind   Kind
	Reason string
}

// Rejection and hold reasons. Every one of them is surfaced to the operator
// channel; several indicate possible fraud or configuration drift.
const (
	ReasonNotVerified       = "not verified"
	ReasonMalformed         = "malformed notification"
	ReasonBadCorrelation    = "bad correlation"
	ReasonUnknownEntity     = "unknown entity"
	ReasonBadStatus         = "status not completed or pending"
	ReasonCurrencyMismatch  = "currency mismatch"
	ReasonAmountMismatch    = "amount mismatch"
	ReasonAwaitingClearance = "awaiting clearance"
	ReasonBusinessMismatch  = "business mismatch"
)

// Payment status values the provider reports.
const (
	paymentStatusCompleted = "Completed"
	paymentStatusPending   = "Pending"

	pendingReasonEcheck = "echeck"
)
