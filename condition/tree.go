package condition

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrNoCondition signals the availability tree holds no payment condition.
var ErrNoCondition = errors.New("condition: no payment condition in tree")

// Node is one node of the availability rule tree. A node with children is a
// composite (op "&", "|", ...); a node without children is a leaf condition
// identified by Type. Only payment leaves carry the remaining fields.
type Node struct {
	Op       string `json:"op,omitempty"`
	Children []Node `json:"c,omitempty"`

	Type          string `json:"type,omitempty"`
	Cost          string `json:"cost,omitempty"`
	Currency      string `json:"currency,omitempty"`
	BusinessEmail string `json:"businessemail,omitempty"`
	ItemName      string `json:"itemname,omitempty"`
	ItemNumber    string `json:"itemnumber,omitempty"`
}

// FindPayment walks the tree depth-first and returns the first payment leaf.
// Later payment leaves are ignored; more than one payment condition per
// context is not supported.
func FindPayment(root Node) (Node, bool) {
	if len(root.Children) == 0 {
		if root.Type == TypePayment {
			return root, true
		}
		return Node{}, false
	}
	for _, child := range root.Children {
		if leaf, ok := FindPayment(child); ok {
			return leaf, true
		}
	}
	return Node{}, false
}

// Descriptor converts a payment leaf into a validated Descriptor.
func (n Node) Descriptor() (Descriptor, error) {
	if n.Type != TypePayment {
		return Descriptor{}, fmt.Errorf("condition: node type %q is not a payment condition", n.Type)
	}

	cost, err := decimal.NewFromString(n.Cost)
	if err != nil {
		return Descriptor{}, fmt.Errorf("condition: parse cost %q: %w", n.Cost, err)
	}
	if n.Currency == "" {
		return Descriptor{}, fmt.Errorf("condition: missing currency")
	}

	return Descriptor{
		Cost:          cost.Round(2),
		Currency:      n.Currency,
		BusinessEmail: n.BusinessEmail,
		ItemName:      n.ItemName,
		ItemNumber:    n.ItemNumber,
	}, nil
}
