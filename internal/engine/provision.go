package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ContractTerms are the inputs for opening a new installment contract.
type ContractTerms struct {
	CustomerID     string
	ManagerID      string
	Currency       Currency
	TotalPrice     decimal.Decimal
	InitialPayment decimal.Decimal
	MonthlyPayment decimal.Decimal
	Period         int
	StartDate      time.Time
}

// OpenContract creates a contract with its schedule anchor and, when an
// initial amount is agreed, a provisional INITIAL payment that goes through
// the standard confirmation path like any other money-in event. The anchor
// day is the start date's day-of-month and never drifts afterwards.
func (e *Engine) OpenContract(ctx context.Context, terms ContractTerms, actor string) (*Contract, *Payment, error) {
	if actor == "" {
		return nil, nil, Validation("actor is required")
	}
	if terms.CustomerID == "" || terms.ManagerID == "" {
		return nil, nil, Validation("customer and manager are required")
	}
	if _, ok := ParseCurrency(string(terms.Currency)); !ok {
		return nil, nil, Validation("unknown currency %q", terms.Currency)
	}
	if terms.Period < 1 {
		return nil, nil, Validation("period must be at least one month")
	}
	if !terms.MonthlyPayment.IsPositive() {
		return nil, nil, Validation("monthly payment must be positive")
	}
	if terms.InitialPayment.IsNegative() {
		return nil, nil, Validation("initial payment must not be negative")
	}
	if !terms.TotalPrice.GreaterThan(terms.InitialPayment) {
		return nil, nil, Validation("total price must be greater than the initial payment")
	}
	if terms.StartDate.IsZero() {
		return nil, nil, Validation("start date is required")
	}

	var (
		contract *Contract
		initial  *Payment
	)
	err := e.store.WithinTx(ctx, func(s Store) error {
		now := e.now()
		start := terms.StartDate
		anchor := start.Day()

		c := &Contract{
			CustomerID:         terms.CustomerID,
			ManagerID:          terms.ManagerID,
			Currency:           terms.Currency,
			TotalPrice:         terms.TotalPrice,
			InitialPayment:     terms.InitialPayment,
			MonthlyPayment:     terms.MonthlyPayment,
			Period:             terms.Period,
			StartDate:          start,
			NextPaymentDate:    dueDate(start.Year(), start.Month()+1, anchor, start.Location()),
			OriginalPaymentDay: anchor,
			PrepaidBalance:     decimal.Zero,
			Status:             ContractActive,
			CreatedAt:          now,
		}
		if err := s.CreateContract(ctx, c); err != nil {
			return err
		}

		if terms.InitialPayment.IsPositive() {
			p := &Payment{
				ContractID:      c.ID,
				CustomerID:      c.CustomerID,
				ManagerID:       c.ManagerID,
				Currency:        c.Currency,
				Amount:          terms.InitialPayment,
				RemainingAmount: decimal.Zero,
				ExcessAmount:    decimal.Zero,
				Type:            PaymentInitial,
				TargetMonth:     0,
				Status:          PaymentPending,
				CreatedAt:       now,
			}
			if err := s.CreatePayment(ctx, p); err != nil {
				return err
			}
			c.AttachPayment(p.ID)
			if err := s.UpdateContract(ctx, c); err != nil {
				return err
			}
			initial = p
		}

		e.audit(ctx, s, "contract", c.ID, actor, nil, map[string]any{
			"action":     "open",
			"customerId": c.CustomerID,
			"totalPrice": c.TotalPrice.StringFixed(2),
		})

		contract = c
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return contract, initial, nil
}

// NewPayment is a provisional money-in event supplied by an entry point
// (cash-desk bot or dashboard). Entry points never classify amounts
// themselves; that happens at confirmation.
type NewPayment struct {
	// ContractID may be empty for cash-desk entries; the customer's active
	// contract is resolved at confirmation time instead.
	ContractID string
	CustomerID string
	ManagerID  string

	Amount       decimal.Decimal
	ActualAmount *decimal.Decimal

	Type        PaymentType
	TargetMonth int

	// Status must be pending or scheduled.
	Status PaymentStatus

	Note string
}

// CreatePayment records a provisional payment. Dashboard entries naming a
// contract are attached to it eagerly; cash-desk entries carrying only a
// customer stay detached until confirmation.
func (e *Engine) CreatePayment(ctx context.Context, np NewPayment, actor string) (*Payment, error) {
	if actor == "" {
		return nil, Validation("actor is required")
	}
	if np.ManagerID == "" {
		return nil, Validation("manager is required")
	}
	if np.ContractID == "" && np.CustomerID == "" {
		return nil, Validation("either contract or customer is required")
	}
	if !np.Amount.IsPositive() {
		return nil, Validation("amount must be positive")
	}
	if np.ActualAmount != nil && np.ActualAmount.IsNegative() {
		return nil, Validation("actual amount must not be negative")
	}
	switch np.Status {
	case "":
		np.Status = PaymentPending
	case PaymentPending, PaymentScheduled:
	default:
		return nil, Validation("a provisional payment must be pending or scheduled")
	}
	switch np.Type {
	case PaymentInitial, PaymentExtra:
		if np.TargetMonth != 0 {
			return nil, Validation("%s payments have no target month", np.Type)
		}
	case PaymentMonthly:
		if np.TargetMonth < 1 {
			return nil, Validation("monthly payments need a target month")
		}
	default:
		return nil, Validation("unknown payment type %q", np.Type)
	}

	var created *Payment
	err := e.store.WithinTx(ctx, func(s Store) error {
		var c *Contract
		var err error
		if np.ContractID != "" {
			c, err = s.GetContract(ctx, np.ContractID)
		} else {
			c, err = s.ActiveContractForCustomer(ctx, np.CustomerID)
		}
		if err != nil {
			return err
		}
		if c.Status == ContractCancelled {
			return Conflict(CodeAlreadyCancelled, "contract is cancelled")
		}
		if np.Type == PaymentMonthly && np.TargetMonth > c.Period {
			return Validation("target month %d exceeds the contract period of %d", np.TargetMonth, c.Period)
		}

		customer := np.CustomerID
		if customer == "" {
			customer = c.CustomerID
		}
		p := &Payment{
			ContractID:      np.ContractID,
			CustomerID:      customer,
			ManagerID:       np.ManagerID,
			Currency:        c.Currency,
			Amount:          np.Amount,
			ActualAmount:    np.ActualAmount,
			RemainingAmount: decimal.Zero,
			ExcessAmount:    decimal.Zero,
			Type:            np.Type,
			TargetMonth:     np.TargetMonth,
			Status:          np.Status,
			Note:            np.Note,
			CreatedAt:       e.now(),
		}
		if err := s.CreatePayment(ctx, p); err != nil {
			return err
		}

		if np.ContractID != "" {
			cc, err := s.GetContractForUpdate(ctx, np.ContractID)
			if err != nil {
				return err
			}
			cc.AttachPayment(p.ID)
			if err := s.UpdateContract(ctx, cc); err != nil {
				return err
			}
		}

		created = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// CancelContract soft-cancels a contract. The record and its payments are
// kept; nothing is ever physically deleted.
func (e *Engine) CancelContract(ctx context.Context, contractID, reason, actor string) error {
	if actor == "" {
		return Validation("actor is required")
	}
	return e.store.WithinTx(ctx, func(s Store) error {
		c, err := s.GetContractForUpdate(ctx, contractID)
		if err != nil {
			return err
		}
		if c.Status == ContractCancelled {
			return Conflict(CodeAlreadyCancelled, "contract is already cancelled")
		}

		prior := c.Status
		now := e.now()
		c.Status = ContractCancelled
		c.DeletedAt = &now
		if err := s.UpdateContract(ctx, c); err != nil {
			return err
		}
		if err := s.DeleteDebtor(ctx, c.ID); err != nil {
			return err
		}

		e.audit(ctx, s, "contract", c.ID, actor, map[string]FieldDiff{
			"status": {Old: string(prior), New: string(ContractCancelled)},
		}, map[string]any{"reason": reason})
		return nil
	})
}
