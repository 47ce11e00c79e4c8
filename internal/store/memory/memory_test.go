package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"installments/internal/engine"
	"installments/internal/store/memory"
)

func TestWithinTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	var createdID string
	boom := errors.New("boom")
	err := store.WithinTx(ctx, func(s engine.Store) error {
		p := &engine.Payment{
			ManagerID: "mgr-1",
			Currency:  engine.CurrencyDollar,
			Amount:    decimal.RequireFromString("100"),
			Type:      engine.PaymentExtra,
			Status:    engine.PaymentPending,
			CreatedAt: time.Now(),
		}
		if err := s.CreatePayment(ctx, p); err != nil {
			return err
		}
		createdID = p.ID
		if _, err := s.Credit(ctx, "mgr-1", engine.CurrencyDollar, p.Amount, p.ID); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	// Every write inside the failed transaction is gone.
	_, err = store.GetPayment(ctx, createdID)
	assert.True(t, engine.IsNotFound(err))
	_, err = store.GetBalance(ctx, "mgr-1")
	assert.True(t, engine.IsNotFound(err))

	// The credit slot is free again: a retry in a fresh transaction counts.
	ok, err := store.Credit(ctx, "mgr-1", engine.CurrencyDollar, decimal.RequireFromString("100"), createdID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWithinTxCommitsOnSuccess(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	var id string
	err := store.WithinTx(ctx, func(s engine.Store) error {
		p := &engine.Payment{
			ManagerID: "mgr-1",
			Currency:  engine.CurrencyDollar,
			Amount:    decimal.RequireFromString("50"),
			Type:      engine.PaymentExtra,
			Status:    engine.PaymentPending,
			CreatedAt: time.Now(),
		}
		if err := s.CreatePayment(ctx, p); err != nil {
			return err
		}
		id = p.ID
		return nil
	})
	require.NoError(t, err)

	got, err := store.GetPayment(ctx, id)
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("50")))
}

func TestNestedWithinTxJoinsAndRollsBackTogether(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	var id string
	boom := errors.New("boom")
	err := store.WithinTx(ctx, func(s engine.Store) error {
		if err := s.WithinTx(ctx, func(inner engine.Store) error {
			p := &engine.Payment{
				ManagerID: "mgr-1",
				Currency:  engine.CurrencyDollar,
				Amount:    decimal.RequireFromString("25"),
				Type:      engine.PaymentExtra,
				Status:    engine.PaymentPending,
				CreatedAt: time.Now(),
			}
			if err := inner.CreatePayment(ctx, p); err != nil {
				return err
			}
			id = p.ID
			return nil
		}); err != nil {
			return err
		}
		// The inner write is visible inside the ambient transaction.
		if _, err := s.GetPayment(ctx, id); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = store.GetPayment(ctx, id)
	assert.True(t, engine.IsNotFound(err))
}
