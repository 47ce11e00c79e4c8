package engine

import (
	"context"

	"github.com/shopspring/decimal"
)

// recheckCompletion rederives the contract's lifecycle status from its
// confirmed payments and prepaid credit. Idempotent; safe to call after any
// payment mutation. Mutates c only, the caller persists.
//
// Completion law: status is completed iff confirmed money plus prepaid credit
// covers the total price within tolerance. Raising the price or reversing a
// payment can un-complete a contract. Cancelled contracts are left alone.
func (e *Engine) recheckCompletion(ctx context.Context, s Store, c *Contract) error {
	if c.Status == ContractCancelled {
		return nil
	}

	payments, err := s.ListContractPayments(ctx, c.ID)
	if err != nil {
		return err
	}

	totalPaid := decimal.Zero
	for _, p := range payments {
		if !p.IsPaid || !c.HasPayment(p.ID) {
			continue
		}
		totalPaid = totalPaid.Add(p.EffectiveActual())
	}
	totalSatisfied := totalPaid.Add(c.PrepaidBalance)

	if e.rules.Satisfied(totalSatisfied, c.TotalPrice) {
		c.Status = ContractCompleted
	} else if c.Status == ContractCompleted {
		c.Status = ContractActive
	}
	return nil
}

// RecheckCompletion re-evaluates and persists one contract's status. Exposed
// for callers that mutate payment state outside the confirm path.
func (e *Engine) RecheckCompletion(ctx context.Context, contractID string) (*Contract, error) {
	var out *Contract
	err := e.store.WithinTx(ctx, func(s Store) error {
		c, err := s.GetContractForUpdate(ctx, contractID)
		if err != nil {
			return err
		}
		if err := e.recheckCompletion(ctx, s, c); err != nil {
			return err
		}
		if err := s.UpdateContract(ctx, c); err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
