package engine

import (
	"context"
	"time"
)

// dueDate builds a due date on the anchor day of the given month, clamping to
// the last valid day when the anchor overflows (31st in a 30-day month).
// Month may be out of the 1..12 range; time.Date normalizes it.
func dueDate(year int, month time.Month, day int, loc *time.Location) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	lastDay := first.AddDate(0, 1, -1).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, loc)
}

// advanceNextDue moves the contract's due date after a confirmed monthly
// payment.
//
// Normally the schedule steps from the current due date, not from today:
// paying late must not skip or compress subsequent months. But if the
// contract is mid-postponement, the deferred installment has finally been
// paid, and the contract returns to its normal cadence anchored on the
// original day-of-month, counted from today.
func (e *Engine) advanceNextDue(c *Contract, now time.Time) {
	if c.PreviousPaymentDate != nil && c.PostponedAt != nil {
		c.NextPaymentDate = dueDate(now.Year(), now.Month()+1, c.OriginalPaymentDay, now.Location())
		c.PreviousPaymentDate = nil
		c.PostponedAt = nil
		return
	}
	cur := c.NextPaymentDate
	c.NextPaymentDate = dueDate(cur.Year(), cur.Month()+1, c.OriginalPaymentDay, cur.Location())
}

// PostponePayment manually defers the contract's next due date. The original
// day-of-month anchor is kept; confirming the deferred installment restores
// the normal cadence.
func (e *Engine) PostponePayment(ctx context.Context, contractID string, until time.Time, actor string) error {
	if actor == "" {
		return Validation("actor is required")
	}
	return e.store.WithinTx(ctx, func(s Store) error {
		c, err := s.GetContractForUpdate(ctx, contractID)
		if err != nil {
			return err
		}
		if c.Status == ContractCancelled {
			return Conflict(CodeAlreadyCancelled, "contract is cancelled")
		}
		if !until.After(c.NextPaymentDate) {
			return Validation("postponed date must be after the current due date")
		}

		prev := c.NextPaymentDate
		now := e.now()
		c.PreviousPaymentDate = &prev
		c.PostponedAt = &now
		c.NextPaymentDate = until

		if err := s.UpdateContract(ctx, c); err != nil {
			return err
		}
		e.audit(ctx, s, "contract", c.ID, actor, map[string]FieldDiff{
			"nextPaymentDate": {Old: prev.Format("2006-01-02"), New: until.Format("2006-01-02")},
		}, map[string]any{"action": "postpone"})
		return nil
	})
}
