package engine

import (
	"context"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"installments/internal/money"
)

// Engine is the payment reconciliation core: it decides how much of a
// contract's debt a money-in event satisfies, how surplus and shortfall
// propagate, and how contract status and due dates follow.
type Engine struct {
	store    Store
	notifier NotificationSink
	rules    money.Rules

	now func() time.Time

	// Policy constants; values are business choices, not derived invariants.
	pendingTimeout     time.Duration
	monthlyChangeLimit decimal.Decimal
}

type Options struct {
	Rules money.Rules

	// Clock overrides time.Now, mainly for tests.
	Clock func() time.Time

	// PendingTimeout is how long a pending payment may stay unconfirmed
	// before the sweep rejects it. Default 24h.
	PendingTimeout time.Duration

	// MonthlyChangeLimit caps a monthly-payment edit relative to the previous
	// value. Default 0.5 (±50%).
	MonthlyChangeLimit decimal.Decimal
}

func New(store Store, notifier NotificationSink, opts Options) *Engine {
	e := &Engine{
		store:              store,
		notifier:           notifier,
		rules:              opts.Rules,
		now:                opts.Clock,
		pendingTimeout:     opts.PendingTimeout,
		monthlyChangeLimit: opts.MonthlyChangeLimit,
	}
	if e.rules == (money.Rules{}) {
		e.rules = money.Default()
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.pendingTimeout <= 0 {
		e.pendingTimeout = 24 * time.Hour
	}
	if e.monthlyChangeLimit.LessThanOrEqual(decimal.Zero) {
		e.monthlyChangeLimit = decimal.RequireFromString("0.5")
	}
	return e
}

// Rules exposes the money comparison policy so collaborators use the same
// tolerance instead of re-deriving comparisons.
func (e *Engine) Rules() money.Rules { return e.rules }

// notify delivers best-effort; a failed notification must never affect the
// committed outcome.
func (e *Engine) notify(ctx context.Context, n Notification) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, n); err != nil {
		log.Printf("notify %s payment=%s: %v", n.Type, n.PaymentID, err)
	}
}

// audit writes best-effort inside the current transaction scope.
func (e *Engine) audit(ctx context.Context, s Store, entity, entityID, actor string, diffs map[string]FieldDiff, meta map[string]any) {
	if err := s.RecordChange(ctx, entity, entityID, actor, diffs, meta); err != nil {
		log.Printf("audit %s %s: %v", entity, entityID, err)
	}
}
