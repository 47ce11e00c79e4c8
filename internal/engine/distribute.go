package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// distributeExcess spreads a confirmed payment's surplus over the contract's
// subsequent unpaid months, one confirmed record per month, so "which month is
// this payment for" stays a stable concept. Whatever no month can absorb goes
// into the contract's prepaid credit; money is moved, never created or lost:
//
//	surplus == sum(created actuals) + prepaid delta
//
// Each created payment is credited to the ledger under its own id, so the
// triggering sequence credits exactly the amount originally received.
// Runs inside the caller's transaction; the caller persists the contract.
func (e *Engine) distributeExcess(ctx context.Context, s Store, c *Contract, trigger *Payment, surplus decimal.Decimal, actor string, now time.Time) ([]*Payment, error) {
	payments, err := s.ListContractPayments(ctx, c.ID)
	if err != nil {
		return nil, err
	}

	// The trigger is already confirmed and persisted, so this count includes
	// its own month.
	nextMonthIndex := 0
	for _, p := range payments {
		if p.Type == PaymentMonthly && p.IsPaid {
			nextMonthIndex++
		}
	}

	var created []*Payment
	for e.rules.IsPositive(surplus) && nextMonthIndex < c.Period {
		monthNumber := nextMonthIndex + 1
		thisMonth := decimal.Min(surplus, c.MonthlyPayment)

		// Never overpaid here: thisMonth <= monthlyPayment by construction.
		cls := e.rules.Classify(thisMonth, c.MonthlyPayment)

		amount := thisMonth
		expected := c.MonthlyPayment
		np := &Payment{
			ContractID:      c.ID,
			CustomerID:      c.CustomerID,
			ManagerID:       trigger.ManagerID,
			Currency:        c.Currency,
			Amount:          c.MonthlyPayment,
			ActualAmount:    &amount,
			ExpectedAmount:  &expected,
			RemainingAmount: cls.Remaining,
			ExcessAmount:    cls.Excess,
			Type:            PaymentMonthly,
			TargetMonth:     monthNumber,
			IsPaid:          true,
			Status:          PaymentStatus(cls.Status),
			Note:            fmt.Sprintf("excess of payment %s applied to month %d", trigger.ID, monthNumber),
			LinkedPaymentID: trigger.ID,
			ConfirmedAt:     &now,
			ConfirmedBy:     actor,
			CreatedAt:       now,
		}
		if err := s.CreatePayment(ctx, np); err != nil {
			return nil, err
		}
		c.AttachPayment(np.ID)

		if _, err := s.Credit(ctx, np.ManagerID, np.Currency, amount, np.ID); err != nil {
			return nil, err
		}

		surplus = surplus.Sub(thisMonth)
		nextMonthIndex++
		created = append(created, np)
	}

	// All months paid and money is still left: preserve it as contract credit
	// instead of dropping it. The cash was still physically received, so the
	// manager's ledger gets it as an adjustment tied to the trigger.
	if e.rules.IsPositive(surplus) {
		c.PrepaidBalance = c.PrepaidBalance.Add(surplus)
		if err := s.Adjust(ctx, trigger.ManagerID, c.Currency, surplus, "prepaid:"+trigger.ID); err != nil {
			return nil, err
		}
	}

	return created, nil
}
