package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"installments/internal/engine"
)

// Credit adds a confirmed payment's amount to the manager's balance. The
// ledger entry is keyed unique per payment id, so a second attempt (retry,
// concurrent confirmation) inserts nothing and the running total is left
// alone. The upsert's row lock serializes increments per manager.
func (s *Store) Credit(ctx context.Context, managerID string, currency engine.Currency, amount decimal.Decimal, paymentID string) (bool, error) {
	const qEntry = `
INSERT INTO balance_entries (manager_id, currency, amount, payment_id)
VALUES ($1, $2, $3, $4)
ON CONFLICT (payment_id) DO NOTHING
`
	tag, err := s.q.Exec(ctx, qEntry, managerID, string(currency), amount.String(), paymentID)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		// Already credited for this payment.
		return false, nil
	}

	if err := s.applyBalance(ctx, managerID, currency, amount); err != nil {
		return false, err
	}
	return true, nil
}

// Adjust applies a signed correction not tied to a payment, recorded under a
// free-form reference.
func (s *Store) Adjust(ctx context.Context, managerID string, currency engine.Currency, delta decimal.Decimal, reference string) error {
	const qEntry = `
INSERT INTO balance_entries (manager_id, currency, amount, reference)
VALUES ($1, $2, $3, $4)
`
	if _, err := s.q.Exec(ctx, qEntry, managerID, string(currency), delta.String(), reference); err != nil {
		return err
	}
	return s.applyBalance(ctx, managerID, currency, delta)
}

func (s *Store) applyBalance(ctx context.Context, managerID string, currency engine.Currency, delta decimal.Decimal) error {
	const qDollar = `
INSERT INTO balances (manager_id, dollar_amount)
VALUES ($1, $2)
ON CONFLICT (manager_id) DO UPDATE
SET dollar_amount = balances.dollar_amount + EXCLUDED.dollar_amount, updated_at = NOW()
`
	const qSum = `
INSERT INTO balances (manager_id, sum_amount)
VALUES ($1, $2)
ON CONFLICT (manager_id) DO UPDATE
SET sum_amount = balances.sum_amount + EXCLUDED.sum_amount, updated_at = NOW()
`
	q := qDollar
	if currency == engine.CurrencySum {
		q = qSum
	}
	_, err := s.q.Exec(ctx, q, managerID, delta.String())
	return err
}

func (s *Store) GetBalance(ctx context.Context, managerID string) (*engine.Balance, error) {
	const q = `
SELECT manager_id, dollar_amount::text, sum_amount::text, updated_at
FROM balances
WHERE manager_id = $1
`
	var b engine.Balance
	var dollar, sum string
	err := s.q.QueryRow(ctx, q, managerID).Scan(&b.ManagerID, &dollar, &sum, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, engine.NotFound(engine.CodeBalanceNotFound, "no balance for manager")
		}
		return nil, err
	}
	if b.Dollar, err = parseDec(dollar); err != nil {
		return nil, err
	}
	if b.Sum, err = parseDec(sum); err != nil {
		return nil, err
	}
	return &b, nil
}
