package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"installments/internal/engine"
)

const contractColumns = `
id, customer_id, manager_id, currency,
total_price::text, initial_payment::text, monthly_payment::text, period, start_date,
next_payment_date, original_payment_day, previous_payment_date, postponed_at,
prepaid_balance::text, status, payment_ids, created_at, deleted_at
`

func (s *Store) CreateContract(ctx context.Context, c *engine.Contract) error {
	const q = `
INSERT INTO contracts (
  id, customer_id, manager_id, currency,
  total_price, initial_payment, monthly_payment, period, start_date,
  next_payment_date, original_payment_day, previous_payment_date, postponed_at,
  prepaid_balance, status, payment_ids, created_at, deleted_at
)
VALUES (
  COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()),
  $2, $3, $4,
  $5, $6, $7, $8, $9,
  $10, $11, $12, $13,
  $14, $15, $16, $17, $18
)
RETURNING id
`
	err := s.q.QueryRow(ctx, q,
		c.ID, c.CustomerID, c.ManagerID, string(c.Currency),
		c.TotalPrice.String(), c.InitialPayment.String(), c.MonthlyPayment.String(), c.Period, c.StartDate,
		c.NextPaymentDate, c.OriginalPaymentDay, c.PreviousPaymentDate, c.PostponedAt,
		c.PrepaidBalance.String(), string(c.Status), c.PaymentIDs, c.CreatedAt, c.DeletedAt,
	).Scan(&c.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return engine.Conflict("DUPLICATE_ID", "contract id already exists")
		}
		return err
	}
	return nil
}

func (s *Store) GetContract(ctx context.Context, id string) (*engine.Contract, error) {
	const q = `SELECT ` + contractColumns + ` FROM contracts WHERE id = $1`
	return scanContract(s.q.QueryRow(ctx, q, id))
}

func (s *Store) GetContractForUpdate(ctx context.Context, id string) (*engine.Contract, error) {
	const q = `SELECT ` + contractColumns + ` FROM contracts WHERE id = $1 FOR UPDATE`
	return scanContract(s.q.QueryRow(ctx, q, id))
}

func (s *Store) ActiveContractForCustomer(ctx context.Context, customerID string) (*engine.Contract, error) {
	const q = `
SELECT ` + contractColumns + `
FROM contracts
WHERE customer_id = $1 AND status = 'active' AND deleted_at IS NULL
ORDER BY created_at ASC
LIMIT 1
FOR UPDATE
`
	return scanContract(s.q.QueryRow(ctx, q, customerID))
}

func (s *Store) UpdateContract(ctx context.Context, c *engine.Contract) error {
	const q = `
UPDATE contracts
SET total_price = $2,
    initial_payment = $3,
    monthly_payment = $4,
    next_payment_date = $5,
    previous_payment_date = $6,
    postponed_at = $7,
    prepaid_balance = $8,
    status = $9,
    payment_ids = $10,
    deleted_at = $11
WHERE id = $1
`
	tag, err := s.q.Exec(ctx, q,
		c.ID,
		c.TotalPrice.String(), c.InitialPayment.String(), c.MonthlyPayment.String(),
		c.NextPaymentDate, c.PreviousPaymentDate, c.PostponedAt,
		c.PrepaidBalance.String(), string(c.Status), c.PaymentIDs, c.DeletedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return engine.NotFound(engine.CodeContractNotFound, "contract not found")
	}
	return nil
}

func (s *Store) AppendEdit(ctx context.Context, rec engine.EditRecord) error {
	changes, err := json.Marshal(rec.Changes)
	if err != nil {
		return err
	}
	impact, err := json.Marshal(rec.Impact)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO contract_edits (contract_id, actor, changes, impact, created_at)
VALUES ($1, $2, CAST($3 AS jsonb), CAST($4 AS jsonb), $5)
`
	_, err = s.q.Exec(ctx, q, rec.ContractID, rec.Actor, string(changes), string(impact), rec.CreatedAt)
	return err
}

func (s *Store) ListEdits(ctx context.Context, contractID string) ([]engine.EditRecord, error) {
	const q = `
SELECT contract_id, actor, changes, impact, created_at
FROM contract_edits
WHERE contract_id = $1
ORDER BY created_at ASC, id ASC
`
	rows, err := s.q.Query(ctx, q, contractID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.EditRecord
	for rows.Next() {
		var rec engine.EditRecord
		var changes, impact []byte
		if err := rows.Scan(&rec.ContractID, &rec.Actor, &changes, &impact, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(changes, &rec.Changes); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(impact, &rec.Impact); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanContract(row rowScanner) (*engine.Contract, error) {
	var (
		c                                engine.Contract
		currency, status                 string
		total, initial, monthly, prepaid string
	)
	err := row.Scan(
		&c.ID, &c.CustomerID, &c.ManagerID, &currency,
		&total, &initial, &monthly, &c.Period, &c.StartDate,
		&c.NextPaymentDate, &c.OriginalPaymentDay, &c.PreviousPaymentDate, &c.PostponedAt,
		&prepaid, &status, &c.PaymentIDs, &c.CreatedAt, &c.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, engine.NotFound(engine.CodeContractNotFound, "contract not found")
		}
		return nil, err
	}

	c.Currency = engine.Currency(currency)
	c.Status = engine.ContractStatus(status)
	if c.TotalPrice, err = parseDec(total); err != nil {
		return nil, err
	}
	if c.InitialPayment, err = parseDec(initial); err != nil {
		return nil, err
	}
	if c.MonthlyPayment, err = parseDec(monthly); err != nil {
		return nil, err
	}
	if c.PrepaidBalance, err = parseDec(prepaid); err != nil {
		return nil, err
	}
	return &c, nil
}
