package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"installments/internal/engine"
)

const paymentColumns = `
id, contract_id, customer_id, manager_id, currency,
amount::text, actual_amount::text, expected_amount::text,
remaining_amount::text, excess_amount::text,
payment_type, target_month, is_paid, status,
note, linked_payment_id, confirmed_at, confirmed_by, created_at
`

func (s *Store) CreatePayment(ctx context.Context, p *engine.Payment) error {
	const q = `
INSERT INTO payments (
  id, contract_id, customer_id, manager_id, currency,
  amount, actual_amount, expected_amount, remaining_amount, excess_amount,
  payment_type, target_month, is_paid, status,
  note, linked_payment_id, confirmed_at, confirmed_by, created_at
)
VALUES (
  COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()),
  NULLIF($2, '')::uuid, $3, $4, $5,
  $6, $7, $8, $9, $10,
  $11, $12, $13, $14,
  $15, NULLIF($16, '')::uuid, $17, $18, $19
)
RETURNING id
`
	var actual, expected *string
	if p.ActualAmount != nil {
		v := p.ActualAmount.String()
		actual = &v
	}
	if p.ExpectedAmount != nil {
		v := p.ExpectedAmount.String()
		expected = &v
	}

	err := s.q.QueryRow(ctx, q,
		p.ID, p.ContractID, p.CustomerID, p.ManagerID, string(p.Currency),
		p.Amount.String(), actual, expected, p.RemainingAmount.String(), p.ExcessAmount.String(),
		string(p.Type), p.TargetMonth, p.IsPaid, string(p.Status),
		p.Note, p.LinkedPaymentID, p.ConfirmedAt, p.ConfirmedBy, p.CreatedAt,
	).Scan(&p.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return engine.Conflict("DUPLICATE_ID", "payment id already exists")
		}
		return err
	}
	return nil
}

func (s *Store) GetPayment(ctx context.Context, id string) (*engine.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	return scanPayment(s.q.QueryRow(ctx, q, id))
}

func (s *Store) GetPaymentForUpdate(ctx context.Context, id string) (*engine.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1 FOR UPDATE`
	return scanPayment(s.q.QueryRow(ctx, q, id))
}

func (s *Store) UpdatePayment(ctx context.Context, p *engine.Payment) error {
	const q = `
UPDATE payments
SET contract_id = NULLIF($2, '')::uuid,
    amount = $3,
    actual_amount = $4,
    expected_amount = $5,
    remaining_amount = $6,
    excess_amount = $7,
    is_paid = $8,
    status = $9,
    note = $10,
    confirmed_at = $11,
    confirmed_by = $12
WHERE id = $1
`
	var actual, expected *string
	if p.ActualAmount != nil {
		v := p.ActualAmount.String()
		actual = &v
	}
	if p.ExpectedAmount != nil {
		v := p.ExpectedAmount.String()
		expected = &v
	}

	tag, err := s.q.Exec(ctx, q,
		p.ID, p.ContractID,
		p.Amount.String(), actual, expected,
		p.RemainingAmount.String(), p.ExcessAmount.String(),
		p.IsPaid, string(p.Status), p.Note, p.ConfirmedAt, p.ConfirmedBy,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return engine.NotFound(engine.CodePaymentNotFound, "payment not found")
	}
	return nil
}

func (s *Store) ListContractPayments(ctx context.Context, contractID string) ([]*engine.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE contract_id = $1 ORDER BY created_at ASC, id ASC`
	rows, err := s.q.Query(ctx, q, contractID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*engine.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) ListExpiredPending(ctx context.Context, before time.Time) ([]string, error) {
	const q = `
SELECT id
FROM payments
WHERE status = 'pending' AND is_paid = FALSE AND created_at < $1
ORDER BY created_at ASC
`
	rows, err := s.q.Query(ctx, q, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(row rowScanner) (*engine.Payment, error) {
	var (
		p                       engine.Payment
		contractID, linkedID    *string
		currency, ptype, status string
		amount                  string
		actual, expected        *string
		remaining, excess       string
	)
	err := row.Scan(
		&p.ID, &contractID, &p.CustomerID, &p.ManagerID, &currency,
		&amount, &actual, &expected, &remaining, &excess,
		&ptype, &p.TargetMonth, &p.IsPaid, &status,
		&p.Note, &linkedID, &p.ConfirmedAt, &p.ConfirmedBy, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, engine.NotFound(engine.CodePaymentNotFound, "payment not found")
		}
		return nil, err
	}

	p.ContractID = deref(contractID)
	p.LinkedPaymentID = deref(linkedID)
	p.Currency = engine.Currency(currency)
	p.Type = engine.PaymentType(ptype)
	p.Status = engine.PaymentStatus(status)

	if p.Amount, err = parseDec(amount); err != nil {
		return nil, err
	}
	if p.ActualAmount, err = parseDecPtr(actual); err != nil {
		return nil, err
	}
	if p.ExpectedAmount, err = parseDecPtr(expected); err != nil {
		return nil, err
	}
	if p.RemainingAmount, err = parseDec(remaining); err != nil {
		return nil, err
	}
	if p.ExcessAmount, err = parseDec(excess); err != nil {
		return nil, err
	}
	return &p, nil
}
