package health

import "errors"

// Sentinels carried in Result.Error or returned by the Aggregator.
var (
	// ErrCheckFailed wraps the cause reported by an unhealthy component.
	ErrCheckFailed = errors.New("health: component check failed")

	// ErrCheckTimeout marks a check that did not answer within the
	// aggregator timeout; the component is reported unhealthy.
	ErrCheckTimeout = errors.New("health: component did not answer in time")

	// ErrCheckerNotFound is returned for /health/{name} when no component
	// is registered under name.
	ErrCheckerNotFound = errors.New("health: no component registered under that name")
)
