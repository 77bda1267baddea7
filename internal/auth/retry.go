package auth

import (
	"context"
	"fmt"
	"time"
)

// RetryPolicy bounds the wait for the transport to report connected.
type RetryPolicy struct {
	MaxAttempts int
	Interval    time.Duration
}

// DefaultRetryPolicy polls every 500ms for up to 5s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 10, Interval: 500 * time.Millisecond}
}

// Wait polls cond at a fixed interval until it returns true, the attempts run out or ctx ends.
func (p RetryPolicy) Wait(ctx context.Context, cond func() bool) error {
	attempts := max(p.MaxAttempts, 1)

	for attempt := 1; ; attempt++ {
		if cond() {
			return nil
		}
		if attempt >= attempts {
			return fmt.Errorf("not connected after %d attempts", attempts)
		}

		timer := time.NewTimer(p.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("gave up waiting after %d attempts: %w", attempt, ctx.Err())
		case <-timer.C:
		}
	}
}
