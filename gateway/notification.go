package gateway

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

var (
	// ErrEmptyBody signals the webhook request carried no form data.
	ErrEmptyBody = errors.New("gateway: empty notification body")
	// ErrBadCorrelation signals a missing or malformed custom token.
	ErrBadCorrelation = errors.New("gateway: bad correlation token")
)

// Field is a single received form pair. Receipt order matters: the provider
// expects the validation echo to repeat the fields exactly as delivered.
type Field struct {
	Key   string
	Value string
}

// Notification is the decoded IPN payload. It keeps the fields in receipt
// order for the verification echo and offers lookup accessors on top.
type Notification struct {
	fields []Field
	byKey  map[string]string
}

// ParseNotification decodes a form-encoded request body, preserving field
// order. Duplicate keys keep the first value for lookups but are echoed in
// full.
func ParseNotification(body []byte) (Notification, error) {
	raw := strings.TrimSpace(string(body))
	if raw == "" {
		return Notification{}, ErrEmptyBody
	}

	n := Notification{byKey: make(map[string]string)}
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		decodedKey, err := url.QueryUnescape(key)
		if err != nil {
			return Notification{}, fmt.Errorf("gateway: decode field key %q: %w", key, err)
		}
		decodedValue, err := url.QueryUnescape(value)
		if err != nil {
			return Notification{}, fmt.Errorf("gateway: decode field %q: %w", decodedKey, err)
		}
		n.fields = append(n.fields, Field{Key: decodedKey, Value: decodedValue})
		if _, seen := n.byKey[decodedKey]; !seen {
			n.byKey[decodedKey] = decodedValue
		}
	}
	if len(n.fields) == 0 {
		return Notification{}, ErrEmptyBody
	}

	return n, nil
}

// Fields returns the received pairs in receipt order.
func (n Notification) Fields() []Field {
	out := make([]Field, len(n.fields))
	copy(out, n.fields)
	return out
}

// Get returns the first value received for key.
func (n Notification) Get(key string) string {
	return n.byKey[key]
}

func (n Notification) TxnID() string         { return n.Get("txn_id") }
func (n Notification) Business() string      { return n.Get("business") }
func (n Notification) PaymentStatus() string { return n.Get("payment_status") }
func (n Notification) PendingReason() string { return n.Get("pending_reason") }
func (n Notification) ItemName() string      { return n.Get("item_name") }

// Gross returns the gross amount, preferring the mc_* field over the legacy
// payment_* alias.
func (n Notification) Gross() string {
	if v := n.Get("mc_gross"); v != "" {
		return v
	}
	return n.Get("payment_gross")
}

// Currency returns the currency code, preferring mc_currency.
func (n Notification) Currency() string {
	if v := n.Get("mc_currency"); v != "" {
		return v
	}
	return n.Get("payment_currency")
}

// Correlation is the decoded custom token threading the payment back to the
// originating user, context, and section.
type Correlation struct {
	UserID    int64
	ContextID int64
	SectionID int64
}

// Correlation parses the hyphen-joined custom field.
func (n Notification) Correlation() (Correlation, error) {
	custom := n.Get("custom")
	parts := strings.Split(custom, "-")
	if len(parts) != 3 {
		return Correlation{}, ErrBadCorrelation
	}

	ids := make([]int64, 3)
	for i, p := range parts {
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil || id < 0 {
			return Correlation{}, ErrBadCorrelation
		}
		ids[i] = id
	}

	return Correlation{UserID: ids[0], ContextID: ids[1], SectionID: ids[2]}, nil
}
