// Package notify delivers reconciliation events to managers. The engine calls
// the sink after commit, so a failed delivery never rolls back money movement.
package notify

import (
	"context"
	"log"

	"installments/internal/engine"
)

// LogSink writes notifications to the process log. It stands in for the
// messaging integration in dev and in tests.
type LogSink struct {
	Verbose bool
}

func NewLogSink(verbose bool) *LogSink {
	return &LogSink{Verbose: verbose}
}

func (s *LogSink) Notify(ctx context.Context, n engine.Notification) error {
	if !s.Verbose {
		return nil
	}
	log.Printf("notify type=%s payment=%s contract=%s customer=%s amount=%s status=%s month=%d",
		n.Type, n.PaymentID, n.ContractID, n.CustomerID, n.Amount.StringFixed(2), n.Status, n.MonthNumber)
	return nil
}

var _ engine.NotificationSink = (*LogSink)(nil)
