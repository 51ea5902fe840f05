package cache

import "errors"

// Sentinel errors for cache operations.
var (
	// ErrNotFound reports that the backing source has no value for a key.
	ErrNotFound = errors.New("cache: not found")

	// ErrInvalidCapacity is returned when a bounded cache capacity is below 1.
	ErrInvalidCapacity = errors.New("cache: capacity must be at least 1")

	// ErrNilFetch is returned when a cache is built without a source.
	ErrNilFetch = errors.New("cache: fetch function is nil")

	// ErrInvalidKey is returned for a blank lookup key or one containing a
	// line break.
	ErrInvalidKey = errors.New("cache: key is invalid")

	// ErrKeyTooLong is returned when a lookup key exceeds MaxKeyLength.
	ErrKeyTooLong = errors.New("cache: key exceeds max length")
)
