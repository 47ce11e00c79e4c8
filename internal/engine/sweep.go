package engine

import (
	"context"
	"errors"
	"fmt"
)

// SweepActor is recorded as the rejecting actor for timed-out payments.
const SweepActor = "system"

// SweepExpired rejects pending payments that were never confirmed within the
// timeout window. Each payment is processed in its own transaction: one
// failure must not abort the rest, so errors are collected, not propagated
// mid-sweep. Returns how many payments were rejected.
func (e *Engine) SweepExpired(ctx context.Context) (int, error) {
	cutoff := e.now().Add(-e.pendingTimeout)

	ids, err := e.store.ListExpiredPending(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	swept := 0
	var errs []error
	reason := fmt.Sprintf("auto-rejected: not confirmed within %s", e.pendingTimeout)
	for _, id := range ids {
		if _, err := e.Reject(ctx, id, reason, SweepActor); err != nil {
			// Raced with a manual confirm or reject; nothing to do for it.
			if IsConflict(err) {
				continue
			}
			errs = append(errs, fmt.Errorf("sweep payment %s: %w", id, err))
			continue
		}
		swept++
	}
	return swept, errors.Join(errs...)
}
