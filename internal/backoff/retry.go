package backoff

import (
	"context"
	"errors"
)

// ErrAttemptsExhausted is returned when all retry attempts have failed.
var ErrAttemptsExhausted = errors.New("retry attempts exhausted")

// Retry executes fn with exponential backoff between failures, up to
// maxAttempts times. fn receives the 1-indexed attempt number. A nil
// isRetryable treats every error as retryable; returning false aborts
// immediately with that error. Context cancellation is checked before each
// attempt and during backoff sleeps.
func Retry[T any](
	ctx context.Context,
	policy Policy,
	maxAttempts int,
	isRetryable func(error) bool,
	fn func(attempt int) (T, error),
) (T, error) {
	var zero T
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		value, err := fn(attempt)
		if err == nil {
			return value, nil
		}
		lastErr = err

		if isRetryable != nil && !isRetryable(err) {
			return zero, err
		}
		if attempt < maxAttempts {
			if err := SleepContext(ctx, policy.Delay(attempt)); err != nil {
				return zero, err
			}
		}
	}

	return zero, errors.Join(ErrAttemptsExhausted, lastErr)
}
