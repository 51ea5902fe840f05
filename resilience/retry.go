package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Default retry parameters.
const (
	DefaultMaxAttempts  = 3
	DefaultInitialDelay = time.Second
	DefaultMultiplier   = 2.0
	DefaultMaxDelay     = time.Minute
)

// RetryConfig configures the retry behavior.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including initial).
	// Must be at least 1.
	MaxAttempts int

	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration

	// Multiplier scales the delay after every failed attempt.
	Multiplier float64

	// MaxDelay caps every delay before it is used.
	MaxDelay time.Duration

	// Jitter is the randomization factor applied to each delay, in [0, 1).
	// Zero gives a deterministic schedule.
	Jitter float64

	// RetryIf determines if an error should trigger a retry.
	// Default: all non-nil errors trigger retry.
	RetryIf func(err error) bool

	// OnRetry is called after a failed attempt, before waiting delay.
	OnRetry func(attempt int, err error, delay time.Duration)

	// OnExhausted is called once when the final attempt fails.
	OnExhausted func(attempts int, err error)

	// Sleep waits d or until ctx is done. Tests replace it to observe
	// delays without waiting.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryConfig returns 3 attempts, 1s initial delay, x2 backoff and a
// 60s cap: waits of 1s then 2s between three attempts.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  DefaultMaxAttempts,
		InitialDelay: DefaultInitialDelay,
		Multiplier:   DefaultMultiplier,
		MaxDelay:     DefaultMaxDelay,
	}
}

// Retry runs an operation with bounded exponential backoff. It holds no
// per-call state and is safe for concurrent use.
type Retry struct {
	config RetryConfig
}

// NewRetry validates config and creates a retry handler.
func NewRetry(config RetryConfig) (*Retry, error) {
	if config.MaxAttempts < 1 {
		return nil, ErrInvalidAttempts
	}
	if config.InitialDelay < 0 {
		return nil, fmt.Errorf("%w: initial delay %v is negative", ErrInvalidBackoff, config.InitialDelay)
	}
	if config.Multiplier <= 0 {
		return nil, fmt.Errorf("%w: multiplier %v must be positive", ErrInvalidBackoff, config.Multiplier)
	}
	if config.MaxDelay <= 0 {
		return nil, fmt.Errorf("%w: max delay %v must be positive", ErrInvalidBackoff, config.MaxDelay)
	}
	if config.Jitter < 0 || config.Jitter >= 1 {
		return nil, fmt.Errorf("%w: jitter %v outside [0, 1)", ErrInvalidBackoff, config.Jitter)
	}
	if config.RetryIf == nil {
		config.RetryIf = func(err error) bool { return err != nil }
	}
	if config.Sleep == nil {
		config.Sleep = sleepContext
	}

	return &Retry{config: config}, nil
}

// Config returns the retry configuration.
func (r *Retry) Config() RetryConfig {
	return r.config
}

// Schedule returns the capped waits between attempts, one fewer than
// MaxAttempts. With jitter enabled every call yields a fresh sample.
func (r *Retry) Schedule() []time.Duration {
	b := r.newBackOff()
	delays := make([]time.Duration, 0, r.config.MaxAttempts-1)
	for i := 1; i < r.config.MaxAttempts; i++ {
		delays = append(delays, r.nextDelay(b))
	}
	return delays
}

// Outcome is the result of a guarded call: a value, or absent.
type Outcome[T any] struct {
	value   T
	present bool

	// Attempts is the number of times the operation was invoked.
	Attempts int

	// Err is the last error observed when the outcome is absent. It is the
	// context error when the sequence was cancelled.
	Err error
}

// OutcomeOf returns a present outcome holding v.
func OutcomeOf[T any](v T, attempts int) Outcome[T] {
	return Outcome[T]{value: v, present: true, Attempts: attempts}
}

// AbsentOutcome returns an outcome with no value.
func AbsentOutcome[T any](attempts int, err error) Outcome[T] {
	return Outcome[T]{Attempts: attempts, Err: err}
}

// Get returns the value and whether it is present.
func (o Outcome[T]) Get() (T, bool) {
	return o.value, o.present
}

// Present reports whether the outcome holds a value.
func (o Outcome[T]) Present() bool {
	return o.present
}

// Do runs op until it succeeds, a permanent error occurs, attempts run out or
// ctx is done. Exhaustion yields an absent outcome, never a panic.
//
// Each attempt runs on its own goroutine so a cancelled ctx returns
// immediately even if op ignores it.
func Do[T any](ctx context.Context, r *Retry, op func(context.Context) (T, error)) Outcome[T] {
	b := r.newBackOff()

	var lastErr error
	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return AbsentOutcome[T](attempt-1, err)
		}

		v, err := runAttempt(ctx, op)
		if err == nil {
			return OutcomeOf(v, attempt)
		}
		lastErr = err

		if ctxErr := ctx.Err(); ctxErr != nil {
			return AbsentOutcome[T](attempt, ctxErr)
		}
		if !r.retryable(err) {
			return AbsentOutcome[T](attempt, err)
		}
		if attempt == r.config.MaxAttempts {
			break
		}

		delay := r.nextDelay(b)
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, err, delay)
		}
		if err := r.config.Sleep(ctx, delay); err != nil {
			return AbsentOutcome[T](attempt, err)
		}
	}

	if r.config.OnExhausted != nil {
		r.config.OnExhausted(r.config.MaxAttempts, lastErr)
	}
	return AbsentOutcome[T](r.config.MaxAttempts, lastErr)
}

// Execute runs an error-only operation with retry. It returns nil on
// success, ErrRetriesExhausted wrapping the last failure on exhaustion, and
// the failure itself for permanent errors or cancellation.
func (r *Retry) Execute(ctx context.Context, op func(context.Context) error) error {
	out := Do(ctx, r, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	if out.Present() {
		return nil
	}
	if out.Attempts == r.config.MaxAttempts && r.retryable(out.Err) && ctx.Err() == nil {
		return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, out.Attempts, out.Err)
	}
	return out.Err
}

func (r *Retry) retryable(err error) bool {
	return !errors.Is(err, ErrRateLimited) && r.config.RetryIf(err)
}

func (r *Retry) newBackOff() *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     r.config.InitialDelay,
		RandomizationFactor: r.config.Jitter,
		Multiplier:          r.config.Multiplier,
		MaxInterval:         r.config.MaxDelay,
	}
	b.Reset()
	return b
}

// nextDelay caps explicitly: the first interval is returned uncapped by
// ExponentialBackOff when InitialDelay exceeds MaxDelay.
func (r *Retry) nextDelay(b *backoff.ExponentialBackOff) time.Duration {
	return min(b.NextBackOff(), r.config.MaxDelay)
}

func runAttempt[T any](ctx context.Context, op func(context.Context) (T, error)) (T, error) {
	type result struct {
		value T
		err   error
	}

	done := make(chan result, 1)
	go func() {
		v, err := op(ctx)
		done <- result{value: v, err: err}
	}()

	select {
	case res := <-done:
		return res.value, res.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
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
