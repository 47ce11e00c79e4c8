package engine_test

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"installments/internal/engine"
)

func TestConfirmExactMonthly(t *testing.T) {
	f := newFixture(t)
	c := f.openContract(t, "1200", "0", "100", 12)

	res := f.confirmMonthly(t, c.ID, 1, "100")

	p := res.Payment
	assert.Equal(t, engine.PaymentPaid, p.Status)
	assert.True(t, p.IsPaid)
	assert.Equal(t, testActor, p.ConfirmedBy)
	require.NotNil(t, p.ConfirmedAt)
	assert.True(t, p.RemainingAmount.IsZero())
	assert.True(t, p.ExcessAmount.IsZero())
	assert.Empty(t, res.Created)

	// Schedule steps from the previous due date on the anchor day.
	assert.Equal(t, time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC), res.Contract.NextPaymentDate)

	assert.True(t, f.dollarBalance(t, testManager).Equal(dec("100")))
}

func TestConfirmUnderpaid(t *testing.T) {
	f := newFixture(t)
	c := f.openContract(t, "1200", "0", "100", 12)

	res := f.confirmMonthly(t, c.ID, 1, "70")

	p := res.Payment
	assert.Equal(t, engine.PaymentUnderpaid, p.Status)
	assert.True(t, p.IsPaid)
	assert.True(t, p.RemainingAmount.Equal(dec("30")))

	// The slot's expectation is the scheduled monthly sum, not the sum that
	// happened to arrive.
	assert.True(t, p.EffectiveExpected().Equal(dec("100")))
	assert.True(t, p.EffectiveActual().Equal(dec("70")))

	// An underpaid month still advances the schedule and credits what arrived.
	assert.Equal(t, time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC), res.Contract.NextPaymentDate)
	assert.True(t, f.dollarBalance(t, testManager).Equal(dec("70")))
}

func TestConfirmWithinTolerance(t *testing.T) {
	f := newFixture(t)
	c := f.openContract(t, "1200", "0", "100", 12)

	res := f.confirmMonthly(t, c.ID, 1, "99.99")
	assert.Equal(t, engine.PaymentPaid, res.Payment.Status)
	assert.True(t, res.Payment.RemainingAmount.IsZero())
}

func TestConfirmTwiceConflicts(t *testing.T) {
	f := newFixture(t)
	c := f.openContract(t, "1200", "0", "100", 12)
	res := f.confirmMonthly(t, c.ID, 1, "100")

	_, err := f.eng.Confirm(f.ctx, res.Payment.ID, testActor)
	require.Error(t, err)
	assert.True(t, engine.IsConflict(err))

	// Nothing credited twice.
	assert.True(t, f.dollarBalance(t, testManager).Equal(dec("100")))
}

func TestConfirmRejectedPaymentConflicts(t *testing.T) {
	f := newFixture(t)
	c := f.openContract(t, "1200", "0", "100", 12)
	p := f.addMonthly(t, c.ID, 1, "100")

	_, err := f.eng.Reject(f.ctx, p.ID, "bad transfer", testActor)
	require.NoError(t, err)

	_, err = f.eng.Confirm(f.ctx, p.ID, testActor)
	assert.True(t, engine.IsConflict(err))
}

func TestConfirmRequiresActor(t *testing.T) {
	f := newFixture(t)
	_, err := f.eng.Confirm(f.ctx, "whatever", "")
	assert.True(t, engine.IsValidation(err))
}

func TestConcurrentConfirmCreditsOnce(t *testing.T) {
	f := newFixture(t)
	c := f.openContract(t, "1200", "0", "100", 12)
	p := f.addMonthly(t, c.ID, 1, "100")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.eng.Confirm(f.ctx, p.ID, testActor)
		}(i)
	}
	wg.Wait()

	var ok, conflict int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case engine.IsConflict(err):
			conflict++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflict)
	assert.True(t, f.dollarBalance(t, testManager).Equal(dec("100")))
}

func TestConfirmCashDeskPaymentResolvesContract(t *testing.T) {
	f := newFixture(t)
	c := f.openContract(t, "1200", "0", "100", 12)

	// Cash-desk entries name only the customer; attachment happens at
	// confirmation.
	p, err := f.eng.CreatePayment(f.ctx, engine.NewPayment{
		CustomerID:  testCustomer,
		ManagerID:   testManager,
		Amount:      dec("100"),
		Type:        engine.PaymentMonthly,
		TargetMonth: 1,
	}, testActor)
	require.NoError(t, err)
	assert.Empty(t, p.ContractID)

	res, err := f.eng.Confirm(f.ctx, p.ID, testActor)
	require.NoError(t, err)
	assert.Equal(t, c.ID, res.Payment.ContractID)
	assert.True(t, res.Contract.HasPayment(p.ID))
}

func TestConfirmOnCancelledContractConflicts(t *testing.T) {
	f := newFixture(t)
	c := f.openContract(t, "1200", "0", "100", 12)
	p := f.addMonthly(t, c.ID, 1, "100")
	require.NoError(t, f.eng.CancelContract(f.ctx, c.ID, "test", testActor))

	_, err := f.eng.Confirm(f.ctx, p.ID, testActor)
	assert.True(t, engine.IsConflict(err))

	// No money moved and the payment stays confirmable-looking but untouched.
	assert.True(t, f.dollarBalance(t, testManager).IsZero())
	got := f.payment(t, p.ID)
	assert.False(t, got.IsPaid)
	assert.Equal(t, engine.PaymentPending, got.Status)
}

func TestConfirmClearsDebtor(t *testing.T) {
	f := newFixture(t)
	c := f.openContract(t, "1200", "0", "100", 12)
	f.store.PutDebtor(&engine.Debtor{ContractID: c.ID, CustomerID: testCustomer, Amount: dec("100")})

	f.confirmMonthly(t, c.ID, 1, "100")
	assert.False(t, f.store.HasDebtor(c.ID))
}

func TestConfirmNotifies(t *testing.T) {
	f := newFixture(t)
	c := f.openContract(t, "1200", "0", "100", 12)
	res := f.confirmMonthly(t, c.ID, 1, "100")

	sent := f.sink.all()
	require.Len(t, sent, 1)
	assert.Equal(t, engine.NotifyPaymentConfirmed, sent[0].Type)
	assert.Equal(t, res.Payment.ID, sent[0].PaymentID)
	assert.True(t, sent[0].Amount.Equal(dec("100")))
}

func TestConfirmInitialPayment(t *testing.T) {
	f := newFixture(t)
	c, initial, err := f.eng.OpenContract(f.ctx, engine.ContractTerms{
		CustomerID:     testCustomer,
		ManagerID:      testManager,
		Currency:       engine.CurrencyDollar,
		TotalPrice:     dec("1300"),
		InitialPayment: dec("100"),
		MonthlyPayment: dec("100"),
		Period:         12,
		StartDate:      time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
	}, testActor)
	require.NoError(t, err)
	require.NotNil(t, initial)
	assert.Equal(t, engine.PaymentPending, initial.Status)
	assert.Equal(t, engine.PaymentInitial, initial.Type)

	res, err := f.eng.Confirm(f.ctx, initial.ID, testActor)
	require.NoError(t, err)
	assert.Equal(t, engine.PaymentPaid, res.Payment.Status)

	// Initial payments do not advance the monthly schedule.
	assert.Equal(t, c.NextPaymentDate, res.Contract.NextPaymentDate)
	assert.True(t, f.dollarBalance(t, testManager).Equal(dec("100")))
}

func TestConfirmUsesActualAmountWhenSet(t *testing.T) {
	f := newFixture(t)
	c := f.openContract(t, "1200", "0", "100", 12)

	actual := decimal.RequireFromString("95")
	p, err := f.eng.CreatePayment(f.ctx, engine.NewPayment{
		ContractID:   c.ID,
		ManagerID:    testManager,
		Amount:       dec("100"),
		ActualAmount: &actual,
		Type:         engine.PaymentMonthly,
		TargetMonth:  1,
	}, testActor)
	require.NoError(t, err)

	res, err := f.eng.Confirm(f.ctx, p.ID, testActor)
	require.NoError(t, err)
	assert.Equal(t, engine.PaymentUnderpaid, res.Payment.Status)
	assert.True(t, res.Payment.RemainingAmount.Equal(dec("5")))
	assert.True(t, f.dollarBalance(t, testManager).Equal(dec("95")))
}
