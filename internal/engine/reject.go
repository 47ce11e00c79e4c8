package engine

import (
	"context"
)

// Reject declines a provisional payment. Nothing was ever credited for it, so
// there is no balance to unwind; the record is detached from the contract so
// it cannot count toward totals, and marked terminally rejected.
func (e *Engine) Reject(ctx context.Context, paymentID, reason, actor string) (*Payment, error) {
	if actor == "" {
		return nil, Validation("actor is required")
	}

	var rejected *Payment
	err := e.store.WithinTx(ctx, func(s Store) error {
		p, err := s.GetPaymentForUpdate(ctx, paymentID)
		if err != nil {
			return err
		}
		if p.IsPaid {
			return Conflict(CodeAlreadyConfirmed, "a confirmed payment cannot be rejected")
		}
		if p.Status == PaymentRejected {
			return Conflict(CodeAlreadyRejected, "payment is already rejected")
		}

		prior := p.Status
		p.Status = PaymentRejected
		p.Note = appendNote(p.Note, reason)
		if err := s.UpdatePayment(ctx, p); err != nil {
			return err
		}

		if p.ContractID != "" {
			c, err := s.GetContractForUpdate(ctx, p.ContractID)
			switch {
			case err == nil:
				if c.HasPayment(p.ID) {
					c.DetachPayment(p.ID)
					if err := s.UpdateContract(ctx, c); err != nil {
						return err
					}
				}
			case IsNotFound(err):
				// Orphaned reference; rejecting still succeeds.
			default:
				return err
			}
		}

		e.audit(ctx, s, "payment", p.ID, actor, map[string]FieldDiff{
			"status": {Old: string(prior), New: string(PaymentRejected)},
		}, map[string]any{"reason": reason})

		rejected = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.notify(ctx, Notification{
		Type:        NotifyPaymentRejected,
		PaymentID:   rejected.ID,
		ContractID:  rejected.ContractID,
		CustomerID:  rejected.CustomerID,
		Amount:      rejected.EffectiveActual(),
		Status:      PaymentRejected,
		MonthNumber: rejected.TargetMonth,
	})
	return rejected, nil
}

func appendNote(note, addition string) string {
	if addition == "" {
		return note
	}
	if note == "" {
		return addition
	}
	return note + "; " + addition
}
