package resilience

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Executor composes the upstream protection patterns around one call.
type Executor struct {
	retry    *Retry
	limiter  *rate.Limiter
	bulkhead *Bulkhead
	timeout  time.Duration
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// NewExecutor creates a new resilience executor. Without WithRetry the
// operation runs exactly once.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithRetry adds retry logic to the executor.
func WithRetry(r *Retry) ExecutorOption {
	return func(e *Executor) {
		e.retry = r
	}
}

// WithRateLimit gives the executor its own rate limiter. A non-positive
// limit leaves calls unlimited.
func WithRateLimit(limit rate.Limit, burst int) ExecutorOption {
	return func(e *Executor) {
		if limit > 0 {
			e.limiter = rate.NewLimiter(limit, max(burst, 1))
		}
	}
}

// WithLimiter makes every attempt wait on l. Executors given the same
// limiter share one budget. Nil leaves calls unlimited.
func WithLimiter(l *rate.Limiter) ExecutorOption {
	return func(e *Executor) {
		e.limiter = l
	}
}

// WithBulkhead adds bulkhead isolation to the executor.
func WithBulkhead(b *Bulkhead) ExecutorOption {
	return func(e *Executor) {
		e.bulkhead = b
	}
}

// WithTimeout bounds every individual attempt.
func WithTimeout(timeout time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.timeout = timeout
	}
}

// Retry returns the configured retry handler, or nil.
func (e *Executor) Retry() *Retry {
	return e.retry
}

// Bulkhead returns the configured bulkhead, or nil.
func (e *Executor) Bulkhead() *Bulkhead {
	return e.bulkhead
}

// Run executes op through every configured pattern.
//
// The execution order is:
// 1. Bulkhead (if configured) - limits concurrency for the whole sequence
// 2. Retry (if configured) - retries on failure
// 3. Rate limiter (if configured) - one token per attempt
// 4. Timeout (if configured) - bounds each attempt
//
// A full bulkhead yields an absent outcome with zero attempts. A failed
// limiter wait ends the sequence with ErrRateLimited.
func Run[T any](ctx context.Context, e *Executor, op func(context.Context) (T, error)) Outcome[T] {
	if e.bulkhead != nil {
		if err := e.bulkhead.Acquire(ctx); err != nil {
			return AbsentOutcome[T](0, err)
		}
		defer e.bulkhead.Release()
	}

	attempt := WithAttemptTimeout(e.timeout, op)
	if e.limiter != nil {
		timed := attempt
		attempt = func(ctx context.Context) (T, error) {
			if err := e.limiter.Wait(ctx); err != nil {
				var zero T
				return zero, fmt.Errorf("%w: %w", ErrRateLimited, err)
			}
			return timed(ctx)
		}
	}

	if e.retry != nil {
		return Do(ctx, e.retry, attempt)
	}

	v, err := runAttempt(ctx, attempt)
	if err != nil {
		return AbsentOutcome[T](1, err)
	}
	return OutcomeOf(v, 1)
}

// Execute is the error-only form of Run.
func (e *Executor) Execute(ctx context.Context, op func(context.Context) error) error {
	out := Run(ctx, e, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	if out.Present() {
		return nil
	}
	return out.Err
}
