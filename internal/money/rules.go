package money

import (
	"github.com/shopspring/decimal"
)

// Status classifies how a received amount relates to what was expected.
type Status string

const (
	StatusPaid      Status = "paid"
	StatusUnderpaid Status = "underpaid"
	StatusOverpaid  Status = "overpaid"
)

// DefaultTolerance is the threshold below which two amounts are treated as
// equal. 0.01 of a currency unit absorbs floating-point noise from upstream
// systems that still compute money in floats. A policy constant, not a derived
// value; keep it overridable via Rules.
var DefaultTolerance = decimal.RequireFromString("0.01")

// Rules holds the comparison policy. The zero value is not usable; construct
// with NewRules.
type Rules struct {
	tolerance decimal.Decimal
}

func NewRules(tolerance decimal.Decimal) Rules {
	if tolerance.LessThanOrEqual(decimal.Zero) {
		tolerance = DefaultTolerance
	}
	return Rules{tolerance: tolerance}
}

func Default() Rules { return NewRules(DefaultTolerance) }

func (r Rules) Tolerance() decimal.Decimal { return r.tolerance }

// Classification is the outcome of comparing actual against expected.
// Remaining and Excess are never both positive.
type Classification struct {
	Status    Status
	Remaining decimal.Decimal
	Excess    decimal.Decimal
}

// Classify compares what was received against what was owed.
//
// - |actual - expected| <= tolerance: paid in full.
// - actual short of expected by more than tolerance: underpaid, Remaining is the shortfall.
// - actual over expected by more than tolerance: overpaid, Excess is the surplus.
//
// Every amount comparison in the engine must go through here; call sites must
// not re-derive these rules with raw decimal comparisons.
func (r Rules) Classify(actual, expected decimal.Decimal) Classification {
	diff := actual.Sub(expected)
	switch {
	case diff.Abs().LessThanOrEqual(r.tolerance):
		return Classification{Status: StatusPaid, Remaining: decimal.Zero, Excess: decimal.Zero}
	case diff.IsNegative():
		return Classification{Status: StatusUnderpaid, Remaining: diff.Neg(), Excess: decimal.Zero}
	default:
		return Classification{Status: StatusOverpaid, Remaining: decimal.Zero, Excess: diff}
	}
}

// IsPositive reports whether v is meaningfully greater than zero, i.e. beyond
// the tolerance. Used instead of v > 0 wherever a leftover could be rounding
// noise rather than real money.
func (r Rules) IsPositive(v decimal.Decimal) bool {
	return v.GreaterThan(r.tolerance)
}

// Satisfied reports whether paid covers owed within tolerance.
func (r Rules) Satisfied(paid, owed decimal.Decimal) bool {
	return !r.IsPositive(owed.Sub(paid))
}
