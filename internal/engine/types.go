package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// Currency is the settlement currency of a contract and its payments.
// The balance ledger keeps one running total per currency per manager.
type Currency string

const (
	CurrencyDollar Currency = "usd"
	CurrencySum    Currency = "sum"
)

func ParseCurrency(s string) (Currency, bool) {
	switch Currency(s) {
	case CurrencyDollar, CurrencySum:
		return Currency(s), true
	default:
		return "", false
	}
}

type PaymentType string

const (
	PaymentInitial PaymentType = "initial"
	PaymentMonthly PaymentType = "monthly"
	PaymentExtra   PaymentType = "extra"
)

type ContractStatus string

const (
	ContractActive    ContractStatus = "active"
	ContractCompleted ContractStatus = "completed"
	ContractCancelled ContractStatus = "cancelled"
)

// Contract is one installment agreement. Terms are fixed at creation and only
// change through ApplyEdit; schedule state moves with every monthly
// confirmation. Contracts are soft-deleted, never removed.
type Contract struct {
	ID         string
	CustomerID string
	ManagerID  string
	Currency   Currency

	TotalPrice     decimal.Decimal
	InitialPayment decimal.Decimal
	MonthlyPayment decimal.Decimal
	Period         int
	StartDate      time.Time

	// NextPaymentDate is when the next installment is due.
	// OriginalPaymentDay is the day-of-month anchor fixed at creation; the
	// schedule always returns to it, even after a postponement.
	NextPaymentDate    time.Time
	OriginalPaymentDay int

	// Both set only while a due date is manually deferred.
	PreviousPaymentDate *time.Time
	PostponedAt         *time.Time

	// PrepaidBalance is credit carried forward when money arrives with no
	// unpaid month left to absorb it.
	PrepaidBalance decimal.Decimal

	Status ContractStatus

	// PaymentIDs is the ordered-by-creation list of attached payments.
	// Membership is what counts toward contract totals; target month, not
	// position, identifies the installment slot.
	PaymentIDs []string

	CreatedAt time.Time
	DeletedAt *time.Time
}

func (c *Contract) HasPayment(id string) bool {
	for _, pid := range c.PaymentIDs {
		if pid == id {
			return true
		}
	}
	return false
}

func (c *Contract) AttachPayment(id string) {
	if !c.HasPayment(id) {
		c.PaymentIDs = append(c.PaymentIDs, id)
	}
}

func (c *Contract) DetachPayment(id string) {
	for i, pid := range c.PaymentIDs {
		if pid == id {
			c.PaymentIDs = append(c.PaymentIDs[:i], c.PaymentIDs[i+1:]...)
			return
		}
	}
}

// Payment is one money movement attached to one contract, filling one
// installment slot: the initial payment, one target month, or an extra
// compensating record.
type Payment struct {
	ID         string
	ContractID string
	CustomerID string
	ManagerID  string
	Currency   Currency

	// Amount is the nominal scheduled amount for the slot. ActualAmount is
	// what was really received and ExpectedAmount what the slot was expected
	// to satisfy at confirmation time; both fall back to Amount when unset.
	// Read money through EffectiveActual/EffectiveExpected only.
	Amount          decimal.Decimal
	ActualAmount    *decimal.Decimal
	ExpectedAmount  *decimal.Decimal
	RemainingAmount decimal.Decimal
	ExcessAmount    decimal.Decimal

	Type PaymentType

	// TargetMonth is 0 for initial/extra payments and 1..period for monthly
	// ones. It is the authoritative identity of "which installment".
	TargetMonth int

	IsPaid bool
	Status PaymentStatus

	Note            string
	LinkedPaymentID string

	ConfirmedAt *time.Time
	ConfirmedBy string

	CreatedAt time.Time
}

// EffectiveActual returns the received amount, falling back to the nominal
// amount when none was recorded. The single place the fallback chain lives.
func (p *Payment) EffectiveActual() decimal.Decimal {
	if p.ActualAmount != nil {
		return *p.ActualAmount
	}
	return p.Amount
}

// EffectiveExpected returns the amount this slot is expected to satisfy,
// falling back to the nominal amount.
func (p *Payment) EffectiveExpected() decimal.Decimal {
	if p.ExpectedAmount != nil {
		return *p.ExpectedAmount
	}
	return p.Amount
}

// Balance is the running cash position of one manager, one total per
// currency. It is an accumulator, never recomputed from history; every credit
// is keyed by payment id so retries cannot double-count.
type Balance struct {
	ManagerID string
	Dollar    decimal.Decimal
	Sum       decimal.Decimal
	UpdatedAt time.Time
}

// Debtor marks a contract as currently overdue. This engine only deletes the
// marker on confirmation; an external job recreates it for still-overdue
// contracts.
type Debtor struct {
	ContractID string
	CustomerID string
	Amount     decimal.Decimal
	CreatedAt  time.Time
}

// FieldDiff records one changed field for audit purposes.
type FieldDiff struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// EditRecord is one append-only entry of a contract's term-change history.
// Informational only; recomputation always derives from payment records.
type EditRecord struct {
	ContractID string               `json:"contractId"`
	Actor      string               `json:"actor"`
	Changes    map[string]FieldDiff `json:"changes"`
	Impact     EditImpact           `json:"impact"`
	CreatedAt  time.Time            `json:"createdAt"`
}
