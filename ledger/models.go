package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a transaction record. Completed is final;
// a record never leaves it.
type Status string

const (
	StatusCompleted Status = "Completed"
	StatusPending   Status = "Pending"
	StatusInvalid   Status = "Invalid"
)

// Record mirrors the payment_transactions table. Rows are append-only and
// keyed by the provider-assigned transaction id.
type Record struct {
	ID            int64
	TxnID         string
	UserID        int64
	ContextID     int64
	SectionID     int64
	Gross         decimal.Decimal
	Currency      string
	Status        Status
	PendingReason *string
	Business      string
	ItemName      string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// InsertParams enumerates the columns written when a notification is
// recorded.
type InsertParams struct {
	TxnID         string
	UserID        int64
	ContextID     int64
	SectionID     int64
	Gross         decimal.Decimal
	Currency      string
	Status        Status
	PendingReason string
	Business      string
	ItemName      string
	// Raw keeps the full notification payload for audit.
	Raw []byte
}

// Filters narrows reporting queries.
type Filters struct {
	UserID    int64
	ContextID int64
	Status    Status
	Limit     int
}
