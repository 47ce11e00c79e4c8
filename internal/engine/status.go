package engine

import "fmt"

// PaymentStatus is the lifecycle state of one payment record.
type PaymentStatus string

const (
	// Pre-confirmation states. Scheduled payments were planned ahead of time;
	// pending ones are awaiting a second actor's confirmation.
	PaymentScheduled PaymentStatus = "scheduled"
	PaymentPending   PaymentStatus = "pending"

	// Confirmed terminal states, derived from the amount comparison at the
	// moment of confirmation.
	PaymentPaid      PaymentStatus = "paid"
	PaymentUnderpaid PaymentStatus = "underpaid"
	PaymentOverpaid  PaymentStatus = "overpaid"

	// Rejected is terminal and set out-of-band (manual or sweep).
	PaymentRejected PaymentStatus = "rejected"
)

func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch PaymentStatus(s) {
	case PaymentScheduled, PaymentPending, PaymentPaid, PaymentUnderpaid, PaymentOverpaid, PaymentRejected:
		return PaymentStatus(s), nil
	default:
		return "", fmt.Errorf("unknown payment status: %s", s)
	}
}

var allowedTransitions = map[PaymentStatus]map[PaymentStatus]bool{
	PaymentScheduled: {PaymentPending: true, PaymentPaid: true, PaymentUnderpaid: true, PaymentOverpaid: true, PaymentRejected: true},
	PaymentPending:   {PaymentPaid: true, PaymentUnderpaid: true, PaymentOverpaid: true, PaymentRejected: true},
	PaymentPaid:      {},
	PaymentUnderpaid: {},
	PaymentOverpaid:  {},
	PaymentRejected:  {},
}

func CanTransition(from, to PaymentStatus) bool {
	m, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	return m[to]
}

// Confirmed reports whether s is one of the confirmed terminal states.
func (s PaymentStatus) Confirmed() bool {
	return s == PaymentPaid || s == PaymentUnderpaid || s == PaymentOverpaid
}
