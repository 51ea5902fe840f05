package resilience

import "errors"

// Configuration errors. Constructors return these instead of applying defaults
// so a misconfigured component never reaches a call site.
var (
	// ErrInvalidLimit is returned when an admission limit is not positive.
	ErrInvalidLimit = errors.New("resilience: admission limit must be positive")

	// ErrInvalidWindow is returned when an admission window is not positive.
	ErrInvalidWindow = errors.New("resilience: admission window must be positive")

	// ErrInvalidAttempts is returned when MaxAttempts is less than one.
	ErrInvalidAttempts = errors.New("resilience: max attempts must be at least 1")

	// ErrInvalidBackoff is returned for a negative initial delay, a
	// non-positive multiplier or a non-positive delay cap.
	ErrInvalidBackoff = errors.New("resilience: invalid backoff parameters")
)

// Runtime errors.
var (
	// ErrRetriesExhausted is returned by Retry.Execute after the final attempt fails.
	ErrRetriesExhausted = errors.New("resilience: retries exhausted")

	// ErrBulkheadFull is returned when the bulkhead is at capacity.
	ErrBulkheadFull = errors.New("resilience: bulkhead at capacity")

	// ErrRateLimited is returned when an attempt cannot get a rate limiter
	// token before its context ends. It is never retried.
	ErrRateLimited = errors.New("resilience: rate limit wait failed")

	// ErrTimeout is returned when a single attempt exceeds its deadline.
	ErrTimeout = errors.New("resilience: operation timed out")
)
