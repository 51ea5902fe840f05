package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// DefaultCapacity is the default size of a BoundedCache.
const DefaultCapacity = 256

// BoundedCache is a fixed-capacity read-through cache with FIFO eviction.
//
// Entries are only ever read with Peek and only new keys are added, so the
// underlying list order is insertion order and reads never promote an entry.
// Fetches run outside the lock; when two goroutines miss on the same key the
// first insert wins and keeps its position.
type BoundedCache[K comparable, V any] struct {
	fetch    FetchFunc[K, V]
	absent   func(K) V
	validate func(K) error

	reportEvery uint64
	report      func(Stats)

	mu        sync.Mutex
	entries   *simplelru.LRU[K, V]
	capacity  int
	hits      uint64
	misses    uint64
	evictions uint64
}

// BoundedOption configures a BoundedCache.
type BoundedOption[K comparable, V any] func(*BoundedCache[K, V])

// WithAbsent stores fn(key) when the source reports ErrNotFound. Without it
// absence is returned to the caller and not cached.
func WithAbsent[K comparable, V any](fn func(K) V) BoundedOption[K, V] {
	return func(c *BoundedCache[K, V]) {
		c.absent = fn
	}
}

// WithHitReport calls fn with a stats snapshot on every n-th hit.
func WithHitReport[K comparable, V any](n int, fn func(Stats)) BoundedOption[K, V] {
	return func(c *BoundedCache[K, V]) {
		if n > 0 && fn != nil {
			c.reportEvery = uint64(n)
			c.report = fn
		}
	}
}

// WithKeyValidation rejects keys before they reach the source.
func WithKeyValidation[K comparable, V any](fn func(K) error) BoundedOption[K, V] {
	return func(c *BoundedCache[K, V]) {
		c.validate = fn
	}
}

// NewBounded creates a cache holding at most capacity entries.
func NewBounded[K comparable, V any](capacity int, fetch FetchFunc[K, V], opts ...BoundedOption[K, V]) (*BoundedCache[K, V], error) {
	if capacity < 1 {
		return nil, ErrInvalidCapacity
	}
	if fetch == nil {
		return nil, ErrNilFetch
	}

	c := &BoundedCache[K, V]{
		fetch:    fetch,
		capacity: capacity,
	}
	for _, opt := range opts {
		opt(c)
	}

	entries, err := simplelru.NewLRU[K, V](capacity, func(K, V) {
		// Runs inside Add, under c.mu.
		c.evictions++
	})
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	c.entries = entries

	return c, nil
}

// Get returns the cached value for key, loading it from the source on a
// miss. Source errors other than ErrNotFound are returned and not cached.
func (c *BoundedCache[K, V]) Get(ctx context.Context, key K) (V, error) {
	var zero V
	if c.validate != nil {
		if err := c.validate(key); err != nil {
			return zero, err
		}
	}

	c.mu.Lock()
	if v, ok := c.entries.Peek(key); ok {
		c.hits++
		var snapshot *Stats
		if c.reportEvery > 0 && c.hits%c.reportEvery == 0 {
			s := c.statsLocked()
			snapshot = &s
		}
		c.mu.Unlock()

		if snapshot != nil {
			c.report(*snapshot)
		}
		return v, nil
	}
	c.misses++
	c.mu.Unlock()

	v, err := c.fetch(ctx, key)
	if err != nil {
		if c.absent == nil || !errors.Is(err, ErrNotFound) {
			return zero, err
		}
		v = c.absent(key)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries.Peek(key); ok {
		return existing, nil
	}
	c.entries.Add(key, v)
	return v, nil
}

// Contains reports whether key is cached without counting a lookup.
func (c *BoundedCache[K, V]) Contains(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Contains(key)
}

// Keys returns cached keys from oldest to newest insertion.
func (c *BoundedCache[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Keys()
}

// Len returns the number of cached entries.
func (c *BoundedCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// Purge drops every entry. Counters are kept.
func (c *BoundedCache[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Purge invokes the eviction callback; keep the eviction count honest.
	evictions := c.evictions
	c.entries.Purge()
	c.evictions = evictions
}

// Stats returns a snapshot of the cache counters.
func (c *BoundedCache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statsLocked()
}

func (c *BoundedCache[K, V]) statsLocked() Stats {
	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Size:      c.entries.Len(),
		Capacity:  c.capacity,
	}
}

// NotFoundText is the sentinel stored for a localized string the source
// does not have.
func NotFoundText(key LookupKey) string {
	return "[" + key.Key + "] (not found)"
}

// LookupCache is the localized-text cache.
type LookupCache = BoundedCache[LookupKey, string]

// NewLookupCache creates a localized-text cache over source. Missing texts
// are cached as NotFoundText.
func NewLookupCache(capacity int, source ReferenceSource, opts ...BoundedOption[LookupKey, string]) (*LookupCache, error) {
	if source == nil {
		return nil, ErrNilFetch
	}

	opts = append([]BoundedOption[LookupKey, string]{
		WithAbsent[LookupKey, string](NotFoundText),
		WithKeyValidation[LookupKey, string](ValidateKey),
	}, opts...)

	return NewBounded[LookupKey, string](capacity, source.Fetch, opts...)
}
