package resilience

import (
	"context"
	"errors"
	"time"
)

// WithAttemptTimeout bounds a single attempt of op to d. A zero or negative
// d returns op unchanged. A deadline hit inside the attempt surfaces as
// ErrTimeout so Retry treats it as an ordinary failure; cancellation of the
// parent ctx passes through untouched.
func WithAttemptTimeout[T any](d time.Duration, op func(context.Context) (T, error)) func(context.Context) (T, error) {
	if d <= 0 {
		return op
	}

	return func(ctx context.Context) (T, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, d)
		defer cancel()

		v, err := runAttempt(attemptCtx, op)
		if err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			var zero T
			return zero, ErrTimeout
		}
		return v, err
	}
}
