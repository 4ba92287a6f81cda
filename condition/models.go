package condition

import "github.com/shopspring/decimal"

// TypePayment tags the availability tree leaf this package cares about.
const TypePayment = "payment"

// Descriptor is the payment rule attached to a course context or section.
// It is immutable once attached; the webhook pipeline only ever reads it.
type Descriptor struct {
	Cost          decimal.Decimal
	Currency      string
	BusinessEmail string
	ItemName      string
	ItemNumber    string
}
