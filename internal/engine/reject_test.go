package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"installments/internal/engine"
)

func TestRejectDetachesPayment(t *testing.T) {
	f := newFixture(t)
	c := f.openContract(t, "1200", "0", "100", 12)
	p := f.addMonthly(t, c.ID, 1, "100")
	require.True(t, f.contract(t, c.ID).HasPayment(p.ID))

	rejected, err := f.eng.Reject(f.ctx, p.ID, "wrong account", testActor)
	require.NoError(t, err)

	assert.Equal(t, engine.PaymentRejected, rejected.Status)
	assert.False(t, rejected.IsPaid)
	assert.Contains(t, rejected.Note, "wrong account")
	assert.False(t, f.contract(t, c.ID).HasPayment(p.ID))

	// Nothing was ever credited for it.
	assert.True(t, f.dollarBalance(t, testManager).IsZero())
}

func TestRejectAppendsToExistingNote(t *testing.T) {
	f := newFixture(t)
	c := f.openContract(t, "1200", "0", "100", 12)
	p, err := f.eng.CreatePayment(f.ctx, engine.NewPayment{
		ContractID:  c.ID,
		ManagerID:   testManager,
		Amount:      dec("100"),
		Type:        engine.PaymentMonthly,
		TargetMonth: 1,
		Note:        "via cash desk",
	}, testActor)
	require.NoError(t, err)

	rejected, err := f.eng.Reject(f.ctx, p.ID, "duplicate entry", testActor)
	require.NoError(t, err)
	assert.Equal(t, "via cash desk; duplicate entry", rejected.Note)
}

func TestRejectTwiceConflicts(t *testing.T) {
	f := newFixture(t)
	c := f.openContract(t, "1200", "0", "100", 12)
	p := f.addMonthly(t, c.ID, 1, "100")

	_, err := f.eng.Reject(f.ctx, p.ID, "first", testActor)
	require.NoError(t, err)

	_, err = f.eng.Reject(f.ctx, p.ID, "second", testActor)
	assert.True(t, engine.IsConflict(err))
}

func TestRejectConfirmedPaymentConflicts(t *testing.T) {
	f := newFixture(t)
	c := f.openContract(t, "1200", "0", "100", 12)
	res := f.confirmMonthly(t, c.ID, 1, "100")

	_, err := f.eng.Reject(f.ctx, res.Payment.ID, "too late", testActor)
	assert.True(t, engine.IsConflict(err))
}

func TestRejectNotifies(t *testing.T) {
	f := newFixture(t)
	c := f.openContract(t, "1200", "0", "100", 12)
	p := f.addMonthly(t, c.ID, 1, "100")

	_, err := f.eng.Reject(f.ctx, p.ID, "test", testActor)
	require.NoError(t, err)

	sent := f.sink.all()
	require.Len(t, sent, 1)
	assert.Equal(t, engine.NotifyPaymentRejected, sent[0].Type)
	assert.Equal(t, p.ID, sent[0].PaymentID)
}
