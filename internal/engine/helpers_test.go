package engine_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"installments/internal/engine"
	"installments/internal/store/memory"
)

const (
	testManager  = "mgr-1"
	testCustomer = "cust-1"
	testActor    = "actor-1"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// recordingSink captures notifications for assertions.
type recordingSink struct {
	mu   sync.Mutex
	sent []engine.Notification
}

func (r *recordingSink) Notify(_ context.Context, n engine.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func (r *recordingSink) all() []engine.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]engine.Notification(nil), r.sent...)
}

// fixture wires an engine over the in-memory store with a controllable clock.
type fixture struct {
	ctx   context.Context
	store *memory.Store
	sink  *recordingSink
	eng   *engine.Engine

	mu  sync.Mutex
	now time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctx:   context.Background(),
		store: memory.New(),
		sink:  &recordingSink{},
		now:   time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	f.eng = engine.New(f.store, f.sink, engine.Options{Clock: f.clock})
	return f
}

func (f *fixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fixture) setNow(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// openContract creates a contract starting 2025-03-10 with no initial payment
// unless one is given.
func (f *fixture) openContract(t *testing.T, total, initial, monthly string, period int) *engine.Contract {
	t.Helper()
	c, _, err := f.eng.OpenContract(f.ctx, engine.ContractTerms{
		CustomerID:     testCustomer,
		ManagerID:      testManager,
		Currency:       engine.CurrencyDollar,
		TotalPrice:     dec(total),
		InitialPayment: dec(initial),
		MonthlyPayment: dec(monthly),
		Period:         period,
		StartDate:      time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
	}, testActor)
	require.NoError(t, err)
	return c
}

// addMonthly records a pending monthly payment for the given target month.
// Amount is the contract's scheduled monthly sum; received is what actually
// arrived, classification compares the two at confirmation.
func (f *fixture) addMonthly(t *testing.T, contractID string, month int, received string) *engine.Payment {
	t.Helper()
	c := f.contract(t, contractID)
	actual := dec(received)
	p, err := f.eng.CreatePayment(f.ctx, engine.NewPayment{
		ContractID:   contractID,
		ManagerID:    testManager,
		Amount:       c.MonthlyPayment,
		ActualAmount: &actual,
		Type:         engine.PaymentMonthly,
		TargetMonth:  month,
	}, testActor)
	require.NoError(t, err)
	return p
}

// confirmMonthly records and confirms one monthly payment with the given
// received sum.
func (f *fixture) confirmMonthly(t *testing.T, contractID string, month int, received string) *engine.ConfirmResult {
	t.Helper()
	p := f.addMonthly(t, contractID, month, received)
	res, err := f.eng.Confirm(f.ctx, p.ID, testActor)
	require.NoError(t, err)
	return res
}

func (f *fixture) payment(t *testing.T, id string) *engine.Payment {
	t.Helper()
	p, err := f.store.GetPayment(f.ctx, id)
	require.NoError(t, err)
	return p
}

func (f *fixture) contract(t *testing.T, id string) *engine.Contract {
	t.Helper()
	c, err := f.store.GetContract(f.ctx, id)
	require.NoError(t, err)
	return c
}

func (f *fixture) dollarBalance(t *testing.T, managerID string) decimal.Decimal {
	t.Helper()
	b, err := f.store.GetBalance(f.ctx, managerID)
	if engine.IsNotFound(err) {
		return decimal.Zero
	}
	require.NoError(t, err)
	return b.Dollar
}
