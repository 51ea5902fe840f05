package cache

import (
	"context"
	"strings"
)

// MaxKeyLength is the maximum allowed length for a lookup key.
const MaxKeyLength = 512

// FetchFunc loads a value from a slower backing source. It returns an error
// wrapping ErrNotFound when the source has no value for key.
type FetchFunc[K comparable, V any] func(ctx context.Context, key K) (V, error)

// LookupKey identifies one localized string.
type LookupKey struct {
	Key    string
	Locale string
}

// String returns key@locale.
func (k LookupKey) String() string {
	return k.Key + "@" + k.Locale
}

// ReferenceSource is the source of truth for localized strings.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: absence is reported as ErrNotFound; any other error is transient.
type ReferenceSource interface {
	Fetch(ctx context.Context, key LookupKey) (string, error)
}

// TenantSource resolves an external bot token to an internal tenant id.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: an unknown token is reported as ErrNotFound.
type TenantSource interface {
	Lookup(ctx context.Context, token string) (int64, error)
}

// ValidateKey checks if a lookup key is usable.
func ValidateKey(key LookupKey) error {
	if strings.TrimSpace(key.Key) == "" {
		return ErrInvalidKey
	}
	if len(key.Key)+len(key.Locale) > MaxKeyLength {
		return ErrKeyTooLong
	}
	if strings.ContainsAny(key.Key, "\n\r") || strings.ContainsAny(key.Locale, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}
