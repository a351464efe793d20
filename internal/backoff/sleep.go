package backoff

import (
	"context"
	"time"
)

// Sleeper abstracts the backoff wait so tests can observe requested delays
// without waiting wall-clock time.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// RealSleeper waits on a timer, honoring context cancellation.
type RealSleeper struct{}

// Sleep waits for d or until ctx is cancelled, whichever comes first.
func (RealSleeper) Sleep(ctx context.Context, d time.Duration) error {
	return SleepContext(ctx, d)
}

// SleepContext sleeps for the specified duration, respecting context
// cancellation. Returns nil if the sleep completed, or ctx.Err() if the
// context was cancelled.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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
