package helpers

import (
	"context"
	"time"
)

// DefaultPollInterval is used by WaitUntil when interval is zero.
const DefaultPollInterval = 250 * time.Millisecond

// WaitUntil polls cond until it returns true, the timeout elapses or ctx is
// done. It reports whether cond was satisfied. cond is always evaluated at
// least once, so a zero timeout is a single check.
func WaitUntil(ctx context.Context, timeout, interval time.Duration, cond func() bool) bool {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	deadline := time.Now().Add(timeout)

	for {
		if cond() {
			return true
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}
		wait := interval
		if remaining < wait {
			wait = remaining
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
	}
}

// Sleep pauses for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
