package dispatcher

import (
	"context"
	"time"
)

// Simulate holds the calling handler for d to emulate slow remote work. Only
// the handler's own goroutine waits; it returns early with ctx's error when
// the connection goes away.
func Simulate(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Scaled returns base + per*units, capped at limit when limit is positive
func Scaled(base, per time.Duration, units int, limit time.Duration) time.Duration {
	d := base + per*time.Duration(units)
	if limit > 0 && d > limit {
		return limit
	}
	return d
}
