package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// The engine never reaches into storage on its own; everything it touches
// comes in through these interfaces by construction.

type PaymentRepository interface {
	// CreatePayment persists p and fills p.ID when empty.
	CreatePayment(ctx context.Context, p *Payment) error

	GetPayment(ctx context.Context, id string) (*Payment, error)

	// GetPaymentForUpdate additionally takes a row lock when the store runs
	// inside a transaction, so two concurrent confirmations cannot both pass
	// the isPaid guard.
	GetPaymentForUpdate(ctx context.Context, id string) (*Payment, error)

	UpdatePayment(ctx context.Context, p *Payment) error

	// ListContractPayments returns all payments referencing the contract,
	// ordered by creation.
	ListContractPayments(ctx context.Context, contractID string) ([]*Payment, error)

	// ListExpiredPending returns ids of unconfirmed pending payments created
	// before the cutoff.
	ListExpiredPending(ctx context.Context, before time.Time) ([]string, error)
}

type ContractRepository interface {
	CreateContract(ctx context.Context, c *Contract) error
	GetContract(ctx context.Context, id string) (*Contract, error)
	GetContractForUpdate(ctx context.Context, id string) (*Contract, error)

	// ActiveContractForCustomer resolves the customer's single active
	// contract. Provisional payments from the cash-desk path carry only a
	// customer id, so confirmation needs this lookup.
	ActiveContractForCustomer(ctx context.Context, customerID string) (*Contract, error)

	UpdateContract(ctx context.Context, c *Contract) error

	// AppendEdit records one term-change entry. Write-only: recomputation
	// never reads this history back.
	AppendEdit(ctx context.Context, rec EditRecord) error
	ListEdits(ctx context.Context, contractID string) ([]EditRecord, error)
}

type BalanceLedger interface {
	// Credit adds amount to the manager's balance exactly once per payment
	// id. Returns false when the payment was already credited.
	Credit(ctx context.Context, managerID string, currency Currency, amount decimal.Decimal, paymentID string) (bool, error)

	// Adjust applies a signed correction not tied to a payment (e.g. an
	// initial-payment edit), recorded under the given reference.
	Adjust(ctx context.Context, managerID string, currency Currency, delta decimal.Decimal, reference string) error

	GetBalance(ctx context.Context, managerID string) (*Balance, error)
}

type DebtorRepository interface {
	// DeleteDebtor removes the overdue marker for a contract if present.
	DeleteDebtor(ctx context.Context, contractID string) error
}

// AuditLog is append-only and best-effort: failures are logged and swallowed,
// never propagated to the caller of a core operation.
type AuditLog interface {
	RecordChange(ctx context.Context, entity, entityID, actorID string, diffs map[string]FieldDiff, metadata map[string]any) error
}

// Store aggregates the persistence ports. WithinTx runs fn against a store
// whose mutations commit or roll back as a unit; implementations must make
// GetPaymentForUpdate/GetContractForUpdate serialize concurrent callers per
// row for the duration of fn.
type Store interface {
	PaymentRepository
	ContractRepository
	BalanceLedger
	DebtorRepository
	AuditLog

	WithinTx(ctx context.Context, fn func(Store) error) error
}

// Notification describes the outcome of a core operation for external
// delivery (bot messages, dashboards). Fire-and-forget.
type Notification struct {
	Type        string
	PaymentID   string
	ContractID  string
	CustomerID  string
	Amount      decimal.Decimal
	Status      PaymentStatus
	MonthNumber int
}

const (
	NotifyPaymentConfirmed = "payment_confirmed"
	NotifyPaymentRejected  = "payment_rejected"
	NotifyExcessApplied    = "excess_applied"
)

type NotificationSink interface {
	Notify(ctx context.Context, n Notification) error
}
