package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"installments/internal/engine"
)

func TestSweepRejectsExpiredPending(t *testing.T) {
	f := newFixture(t)
	c := f.openContract(t, "1200", "0", "100", 12)
	stale := f.addMonthly(t, c.ID, 1, "100")

	f.advance(25 * time.Hour)
	fresh := f.addMonthly(t, c.ID, 2, "100")

	n, err := f.eng.SweepExpired(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got := f.payment(t, stale.ID)
	assert.Equal(t, engine.PaymentRejected, got.Status)
	assert.Contains(t, got.Note, "auto-rejected")

	assert.Equal(t, engine.PaymentPending, f.payment(t, fresh.ID).Status)
}

func TestSweepIsNoopWithinWindow(t *testing.T) {
	f := newFixture(t)
	c := f.openContract(t, "1200", "0", "100", 12)
	f.addMonthly(t, c.ID, 1, "100")

	f.advance(23 * time.Hour)
	n, err := f.eng.SweepExpired(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

// flakyStore fails row lookups for one payment id, simulating a storage error
// mid-sweep.
type flakyStore struct {
	engine.Store
	failID string
}

func (f *flakyStore) WithinTx(ctx context.Context, fn func(engine.Store) error) error {
	return f.Store.WithinTx(ctx, func(s engine.Store) error {
		return fn(&flakySession{Store: s, failID: f.failID})
	})
}

type flakySession struct {
	engine.Store
	failID string
}

func (f *flakySession) GetPaymentForUpdate(ctx context.Context, id string) (*engine.Payment, error) {
	if id == f.failID {
		return nil, errors.New("storage glitch")
	}
	return f.Store.GetPaymentForUpdate(ctx, id)
}

func TestSweepSurvivesPartialFailure(t *testing.T) {
	f := newFixture(t)
	c := f.openContract(t, "1200", "0", "100", 12)
	p1 := f.addMonthly(t, c.ID, 1, "100")
	p2 := f.addMonthly(t, c.ID, 2, "100")
	p3 := f.addMonthly(t, c.ID, 3, "100")
	f.advance(25 * time.Hour)

	flaky := &flakyStore{Store: f.store, failID: p2.ID}
	eng := engine.New(flaky, nil, engine.Options{Clock: f.clock})

	n, err := eng.SweepExpired(f.ctx)
	assert.Equal(t, 2, n)
	require.Error(t, err)
	assert.Contains(t, err.Error(), p2.ID)

	// The healthy payments were still swept; the failing one is untouched.
	assert.Equal(t, engine.PaymentRejected, f.payment(t, p1.ID).Status)
	assert.Equal(t, engine.PaymentPending, f.payment(t, p2.ID).Status)
	assert.Equal(t, engine.PaymentRejected, f.payment(t, p3.ID).Status)
}
