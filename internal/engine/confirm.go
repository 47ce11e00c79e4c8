package engine

import (
	"context"

	"github.com/shopspring/decimal"
)

// ConfirmResult reports what one confirmation did, for callers that render
// notifications or audit trails.
type ConfirmResult struct {
	Payment  *Payment
	Contract *Contract

	// Created holds payments manufactured by excess distribution, in month
	// order.
	Created []*Payment
}

// Confirm finalizes a provisional payment: classifies the received amount,
// marks the record paid, moves any surplus onto future months, credits the
// manager's balance, clears the contract's debtor marker, advances the
// schedule and rechecks completion. All of it commits or rolls back as one
// unit; the row lock on the payment makes a concurrent second confirmation
// observe AlreadyConfirmed instead of double-crediting.
func (e *Engine) Confirm(ctx context.Context, paymentID, actor string) (*ConfirmResult, error) {
	if actor == "" {
		return nil, Validation("actor is required")
	}

	res := &ConfirmResult{}
	err := e.store.WithinTx(ctx, func(s Store) error {
		p, err := s.GetPaymentForUpdate(ctx, paymentID)
		if err != nil {
			return err
		}
		if p.IsPaid {
			return Conflict(CodeAlreadyConfirmed, "payment is already confirmed")
		}
		if p.Status == PaymentRejected {
			return Conflict(CodeAlreadyRejected, "cannot confirm a rejected payment")
		}

		prior := p.Status
		actual := p.EffectiveActual()
		expected := p.EffectiveExpected()
		cls := e.rules.Classify(actual, expected)

		now := e.now()
		p.Status = PaymentStatus(cls.Status)
		p.RemainingAmount = cls.Remaining
		p.ExcessAmount = cls.Excess
		p.IsPaid = true
		p.ConfirmedAt = &now
		p.ConfirmedBy = actor

		c, err := e.contractForPayment(ctx, s, p)
		if err != nil {
			return err
		}
		// Provisional payments from the cash-desk path are not eagerly
		// attached; make sure the contract lists this one.
		c.AttachPayment(p.ID)

		surplus := actual.Sub(expected)
		overpaid := p.Status == PaymentOverpaid
		if overpaid {
			// The confirmed slot must only ever show as fully satisfying
			// itself; the surplus is moved to later months, not double-counted
			// here.
			corrected := expected
			p.ActualAmount = &corrected
			p.ExcessAmount = decimal.Zero
			p.Status = PaymentPaid
		}
		if err := s.UpdatePayment(ctx, p); err != nil {
			return err
		}
		if overpaid {
			created, err := e.distributeExcess(ctx, s, c, p, surplus, actor, now)
			if err != nil {
				return err
			}
			res.Created = created
		}

		if p.Type == PaymentMonthly {
			e.advanceNextDue(c, now)
		}

		// Confirmation is the only path that credits the ledger for this
		// payment id; the credit is keyed on it, so a retry cannot double-count.
		if _, err := s.Credit(ctx, p.ManagerID, p.Currency, p.EffectiveActual(), p.ID); err != nil {
			return err
		}

		// A confirmation means "caught up" for at least this slot; the
		// external overdue job recreates the marker if other slots still lag.
		if err := s.DeleteDebtor(ctx, c.ID); err != nil {
			return err
		}

		if err := e.recheckCompletion(ctx, s, c); err != nil {
			return err
		}
		if err := s.UpdateContract(ctx, c); err != nil {
			return err
		}

		e.audit(ctx, s, "payment", p.ID, actor, map[string]FieldDiff{
			"status": {Old: string(prior), New: string(p.Status)},
			"isPaid": {Old: "false", New: "true"},
		}, map[string]any{
			"contractId":   c.ID,
			"actualAmount": p.EffectiveActual().StringFixed(2),
			"createdCount": len(res.Created),
		})

		res.Payment = p
		res.Contract = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.notify(ctx, Notification{
		Type:        NotifyPaymentConfirmed,
		PaymentID:   res.Payment.ID,
		ContractID:  res.Contract.ID,
		CustomerID:  res.Payment.CustomerID,
		Amount:      res.Payment.EffectiveActual(),
		Status:      res.Payment.Status,
		MonthNumber: res.Payment.TargetMonth,
	})
	for _, np := range res.Created {
		e.notify(ctx, Notification{
			Type:        NotifyExcessApplied,
			PaymentID:   np.ID,
			ContractID:  res.Contract.ID,
			CustomerID:  np.CustomerID,
			Amount:      np.EffectiveActual(),
			Status:      np.Status,
			MonthNumber: np.TargetMonth,
		})
	}
	return res, nil
}

// contractForPayment locates the payment's contract. A payment usually names
// its contract, but cash-desk entries may carry only a customer id; resolve
// through the customer's active contract in that case. Failure here is a data
// integrity problem, not user error.
func (e *Engine) contractForPayment(ctx context.Context, s Store, p *Payment) (*Contract, error) {
	if p.ContractID != "" {
		c, err := s.GetContractForUpdate(ctx, p.ContractID)
		if err == nil {
			if c.Status == ContractCancelled {
				return nil, Conflict(CodeAlreadyCancelled, "contract is cancelled")
			}
			return c, nil
		}
		if !IsNotFound(err) {
			return nil, err
		}
	}

	c, err := s.ActiveContractForCustomer(ctx, p.CustomerID)
	if err != nil {
		if IsNotFound(err) {
			return nil, Integrity("no contract found for payment %s (customer %s)", p.ID, p.CustomerID)
		}
		return nil, err
	}
	p.ContractID = c.ID
	return c, nil
}
