package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"installments/internal/money"
)

// EditChanges carries the requested term changes; nil fields are untouched.
type EditChanges struct {
	MonthlyPayment *decimal.Decimal
	InitialPayment *decimal.Decimal
	TotalPrice     *decimal.Decimal
}

// EditImpact summarizes what applying an edit did to historical payments.
type EditImpact struct {
	Underpaid int `json:"underpaid"`
	Overpaid  int `json:"overpaid"`
	Created   int `json:"created"`

	ShortfallTotal decimal.Decimal `json:"shortfallTotal"`
	ExcessTotal    decimal.Decimal `json:"excessTotal"`
	PrepaidAdded   decimal.Decimal `json:"prepaidAdded"`

	AffectedPaymentIDs []string `json:"affectedPaymentIds"`
	CreatedPaymentIDs  []string `json:"createdPaymentIds"`
}

// ApplyEdit changes a contract's monthly amount, initial amount or total price
// and reconciles payments already recorded against the new terms. The whole
// edit is atomic-or-nothing: validation rejects it before any write, and all
// recomputation happens in one transaction.
//
// A monthly-payment change replays confirmed monthly payments in chronological
// order with a cascading carry: a month that now overshoots the lower amount
// discounts the next month's expectation, while a month that now falls short
// materializes a collectible extra payment linked back to it. This is a
// retroactive in-place recompute over history, distinct from excess
// distribution, which creates forward months for new money.
func (e *Engine) ApplyEdit(ctx context.Context, contractID string, changes EditChanges, actor string) (*EditImpact, error) {
	if actor == "" {
		return nil, Validation("actor is required")
	}
	if changes.MonthlyPayment == nil && changes.InitialPayment == nil && changes.TotalPrice == nil {
		return nil, Validation("no changes supplied")
	}

	impact := &EditImpact{
		ShortfallTotal: decimal.Zero,
		ExcessTotal:    decimal.Zero,
		PrepaidAdded:   decimal.Zero,
	}

	err := e.store.WithinTx(ctx, func(s Store) error {
		c, err := s.GetContractForUpdate(ctx, contractID)
		if err != nil {
			return err
		}
		if c.Status == ContractCancelled {
			return Conflict(CodeAlreadyCancelled, "contract is cancelled")
		}

		if err := e.validateEdit(c, changes); err != nil {
			return err
		}

		diffs := map[string]FieldDiff{}
		now := e.now()

		if changes.MonthlyPayment != nil && !changes.MonthlyPayment.Equal(c.MonthlyPayment) {
			diffs["monthlyPayment"] = FieldDiff{Old: c.MonthlyPayment.StringFixed(2), New: changes.MonthlyPayment.StringFixed(2)}
			if err := e.recomputeMonthly(ctx, s, c, *changes.MonthlyPayment, actor, impact); err != nil {
				return err
			}
			c.MonthlyPayment = *changes.MonthlyPayment
		}

		if changes.InitialPayment != nil && !changes.InitialPayment.Equal(c.InitialPayment) {
			diffs["initialPayment"] = FieldDiff{Old: c.InitialPayment.StringFixed(2), New: changes.InitialPayment.StringFixed(2)}
			if err := e.adjustInitial(ctx, s, c, *changes.InitialPayment, impact); err != nil {
				return err
			}
			c.InitialPayment = *changes.InitialPayment
		}

		if changes.TotalPrice != nil && !changes.TotalPrice.Equal(c.TotalPrice) {
			diffs["totalPrice"] = FieldDiff{Old: c.TotalPrice.StringFixed(2), New: changes.TotalPrice.StringFixed(2)}
			c.TotalPrice = *changes.TotalPrice
		}

		if len(diffs) == 0 {
			return Validation("changes match the current terms")
		}

		if err := e.recheckCompletion(ctx, s, c); err != nil {
			return err
		}
		if err := s.UpdateContract(ctx, c); err != nil {
			return err
		}

		if err := s.AppendEdit(ctx, EditRecord{
			ContractID: c.ID,
			Actor:      actor,
			Changes:    diffs,
			Impact:     *impact,
			CreatedAt:  now,
		}); err != nil {
			return err
		}

		e.audit(ctx, s, "contract", c.ID, actor, diffs, map[string]any{
			"underpaid": impact.Underpaid,
			"overpaid":  impact.Overpaid,
			"created":   impact.Created,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return impact, nil
}

// validateEdit rejects the whole edit before any mutation.
func (e *Engine) validateEdit(c *Contract, changes EditChanges) error {
	for name, v := range map[string]*decimal.Decimal{
		"monthlyPayment": changes.MonthlyPayment,
		"initialPayment": changes.InitialPayment,
		"totalPrice":     changes.TotalPrice,
	} {
		if v != nil && v.IsNegative() {
			return Validation("%s must not be negative", name)
		}
	}

	if changes.MonthlyPayment != nil && c.MonthlyPayment.IsPositive() {
		maxDelta := c.MonthlyPayment.Mul(e.monthlyChangeLimit)
		if changes.MonthlyPayment.Sub(c.MonthlyPayment).Abs().GreaterThan(maxDelta) {
			return Validation("monthly payment change exceeds %s%% of the previous value",
				e.monthlyChangeLimit.Mul(decimal.NewFromInt(100)).StringFixed(0))
		}
	}

	total := c.TotalPrice
	if changes.TotalPrice != nil {
		total = *changes.TotalPrice
	}
	initial := c.InitialPayment
	if changes.InitialPayment != nil {
		initial = *changes.InitialPayment
	}
	if !total.GreaterThan(initial) {
		return Validation("total price must be greater than the initial payment")
	}
	return nil
}

// recomputeMonthly replays confirmed monthly payments against the new monthly
// amount with a cascading carry, mutating their statuses in place and
// materializing extra payments for shortfalls.
func (e *Engine) recomputeMonthly(ctx context.Context, s Store, c *Contract, newMonthly decimal.Decimal, actor string, impact *EditImpact) error {
	payments, err := s.ListContractPayments(ctx, c.ID)
	if err != nil {
		return err
	}

	var monthly []*Payment
	for _, p := range payments {
		if p.Type == PaymentMonthly && p.IsPaid {
			monthly = append(monthly, p)
		}
	}
	sort.SliceStable(monthly, func(i, j int) bool {
		if monthly[i].TargetMonth != monthly[j].TargetMonth {
			return monthly[i].TargetMonth < monthly[j].TargetMonth
		}
		return monthly[i].CreatedAt.Before(monthly[j].CreatedAt)
	})

	now := e.now()
	carry := decimal.Zero
	for _, p := range monthly {
		// A month already covered by the previous months' excess expects less.
		effectiveExpected := newMonthly.Sub(carry)
		cls := e.rules.Classify(p.EffectiveActual(), effectiveExpected)

		expected := newMonthly
		p.ExpectedAmount = &expected
		p.Status = PaymentStatus(cls.Status)
		p.RemainingAmount = cls.Remaining
		p.ExcessAmount = cls.Excess

		switch cls.Status {
		case money.StatusPaid:
			carry = decimal.Zero
		case money.StatusUnderpaid:
			carry = decimal.Zero
			impact.Underpaid++
			impact.ShortfallTotal = impact.ShortfallTotal.Add(cls.Remaining)

			// The shortfall must stay trackable and collectible: an
			// unconfirmed extra payment linked back to the month it covers.
			shortfall := cls.Remaining
			np := &Payment{
				ContractID:      c.ID,
				CustomerID:      c.CustomerID,
				ManagerID:       c.ManagerID,
				Currency:        c.Currency,
				Amount:          shortfall,
				ExpectedAmount:  &shortfall,
				RemainingAmount: decimal.Zero,
				ExcessAmount:    decimal.Zero,
				Type:            PaymentExtra,
				TargetMonth:     0,
				Status:          PaymentPending,
				Note:            fmt.Sprintf("monthly payment increase: shortfall for month %d", p.TargetMonth),
				LinkedPaymentID: p.ID,
				CreatedAt:       now,
			}
			if err := s.CreatePayment(ctx, np); err != nil {
				return err
			}
			c.AttachPayment(np.ID)
			impact.Created++
			impact.CreatedPaymentIDs = append(impact.CreatedPaymentIDs, np.ID)
		case money.StatusOverpaid:
			// cls.Excess was computed against the carry-reduced expectation, so
			// it already contains the incoming carry.
			carry = cls.Excess
			impact.Overpaid++
			impact.ExcessTotal = impact.ExcessTotal.Add(cls.Excess)
		}

		if err := s.UpdatePayment(ctx, p); err != nil {
			return err
		}
		impact.AffectedPaymentIDs = append(impact.AffectedPaymentIDs, p.ID)
	}

	if e.rules.IsPositive(carry) {
		c.PrepaidBalance = c.PrepaidBalance.Add(carry)
		impact.PrepaidAdded = impact.PrepaidAdded.Add(carry)
	}
	return nil
}

// adjustInitial treats an initial-payment edit as an immediate cash
// correction: the INITIAL record's amount moves by the delta and the owning
// manager's balance moves with it. No cascade.
func (e *Engine) adjustInitial(ctx context.Context, s Store, c *Contract, newInitial decimal.Decimal, impact *EditImpact) error {
	delta := newInitial.Sub(c.InitialPayment)

	payments, err := s.ListContractPayments(ctx, c.ID)
	if err != nil {
		return err
	}
	for _, p := range payments {
		if p.Type != PaymentInitial {
			continue
		}
		p.Amount = p.Amount.Add(delta)
		if p.ActualAmount != nil {
			adjusted := p.ActualAmount.Add(delta)
			p.ActualAmount = &adjusted
		}
		if err := s.UpdatePayment(ctx, p); err != nil {
			return err
		}
		impact.AffectedPaymentIDs = append(impact.AffectedPaymentIDs, p.ID)
		break
	}

	return s.Adjust(ctx, c.ManagerID, c.Currency, delta, "initial-edit:"+c.ID)
}
