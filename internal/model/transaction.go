// Package model defines the core domain types shared across the engine.
package model

import (
	"strings"
	"time"
)

// Operation identifies the ledger a movement came from and which side of the
// net-purchase formula it lands on.
type Operation string

// Supported operations.
const (
	OpPurchase   Operation = "purchase"
	OpRedemption Operation = "redemption"
	OpSwitchIn   Operation = "switch_in"
	OpSwitchOut  Operation = "switch_out"
	OpCOBIn      Operation = "cob_in"
	OpCOBOut     Operation = "cob_out"
)

// Operations lists every operation in a stable order, additive legs first.
var Operations = []Operation{OpPurchase, OpSwitchIn, OpCOBIn, OpRedemption, OpSwitchOut, OpCOBOut}

// Additive reports whether the operation adds to net value.
func (o Operation) Additive() bool {
	switch o {
	case OpPurchase, OpSwitchIn, OpCOBIn:
		return true
	default:
		return false
	}
}

// Valid reports whether the operation is one of the known six.
func (o Operation) Valid() bool {
	switch o {
	case OpPurchase, OpRedemption, OpSwitchIn, OpSwitchOut, OpCOBIn, OpCOBOut:
		return true
	}
	return false
}

// Reconciliation statuses accepted into scoring. Anything else is excluded
// without error.
const (
	ReconOK      = "RECONCILED"
	ReconMinorOK = "RECONCILED_WITH_MINOR"
)

// ReconcileAccepted reports whether a reconciliation status admits a unit
// into the aggregation.
func ReconcileAccepted(status string) bool {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case ReconOK, ReconMinorOK:
		return true
	}
	return false
}

// Validation is one approval event on a raw record or fraction.
type Validation struct {
	Status      string    `json:"status"`
	ValidatedAt time.Time `json:"validated_at"`
}

// Fraction is a sub-transaction carried by a raw record. Each fraction is
// windowed and reconciliation-checked independently of its parent.
type Fraction struct {
	ID              string       `json:"id"`
	Amount          float64      `json:"amount"`
	ReconcileStatus string       `json:"reconcile_status"`
	Validations     []Validation `json:"validations,omitempty"`
}

// RawRecord is a ledger document as stored upstream, before normalization.
type RawRecord struct {
	ID              string
	Operation       Operation
	OwnerName       string // explicit RM owner field; may be empty
	Category        string
	SubCategory     string
	Amount          float64
	Date            time.Time
	ReconcileStatus string
	Validations     []Validation
	Fractions       []Fraction
}

// TransactionUnit is a normalized, already-expanded movement. A raw record
// with fractions produces one unit per qualifying fraction.
type TransactionUnit struct {
	RMID          string
	RMName        string
	Month         string // YYYY-MM
	Operation     Operation
	Category      string
	SubCategory   string
	Amount        float64
	EffectiveDate time.Time
	Blacklisted   bool
	SourceID      string // parent raw record id
	LineID        string // fraction id, or SourceID when no fractions
}

// MonthKey formats a time as the YYYY-MM key used throughout the engine.
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

// MonthIndex converts a YYYY-MM key into a linear month count for age and
// eligibility arithmetic. Returns false on a malformed key.
func MonthIndex(month string) (int, bool) {
	t, err := time.Parse("2006-01", month)
	if err != nil {
		return 0, false
	}
	return t.Year()*12 + int(t.Month()) - 1, true
}
