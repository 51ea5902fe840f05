package cache

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// MemoCache memoizes an immutable mapping. Only confirmed values are stored;
// failed lookups, including ErrNotFound, are returned and never cached.
// Concurrent misses on one key share a single source lookup.
type MemoCache[K comparable, V any] struct {
	lookup FetchFunc[K, V]
	group  singleflight.Group

	mu      sync.RWMutex
	entries map[K]V

	// flights assigns each in-flight key a unique singleflight key.
	flights map[K]string
	seq     uint64

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewMemo creates a memoization cache over lookup.
func NewMemo[K comparable, V any](lookup FetchFunc[K, V]) (*MemoCache[K, V], error) {
	if lookup == nil {
		return nil, ErrNilFetch
	}
	return &MemoCache[K, V]{
		lookup:  lookup,
		entries: make(map[K]V),
		flights: make(map[K]string),
	}, nil
}

// Resolve returns the memoized value for key, consulting the source only
// when key has never been resolved successfully.
func (m *MemoCache[K, V]) Resolve(ctx context.Context, key K) (V, error) {
	if v, ok := m.load(key); ok {
		m.hits.Add(1)
		return v, nil
	}
	m.misses.Add(1)

	// The shared lookup must not die with whichever caller started it.
	ch := m.group.DoChan(m.flightKey(key), func() (any, error) {
		if v, ok := m.load(key); ok {
			m.land(key)
			return v, nil
		}

		v, err := m.lookup(context.WithoutCancel(ctx), key)

		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.flights, key)
		if err != nil {
			return nil, err
		}
		if existing, ok := m.entries[key]; ok {
			return existing, nil
		}
		m.entries[key] = v
		return v, nil
	})

	var zero V
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(V), nil
	}
}

// flightKey returns the singleflight key for key. Distinct keys never share
// one, whatever their printed form.
func (m *MemoCache[K, V]) flightKey(key K) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.flights[key]; ok {
		return id
	}
	m.seq++
	id := strconv.FormatUint(m.seq, 10)
	m.flights[key] = id
	return id
}

func (m *MemoCache[K, V]) land(key K) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.flights, key)
}

func (m *MemoCache[K, V]) load(key K) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[key]
	return v, ok
}

// Contains reports whether key has been memoized.
func (m *MemoCache[K, V]) Contains(key K) bool {
	_, ok := m.load(key)
	return ok
}

// Len returns the number of memoized keys.
func (m *MemoCache[K, V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Stats returns a snapshot of the cache counters.
func (m *MemoCache[K, V]) Stats() Stats {
	return Stats{
		Hits:   m.hits.Load(),
		Misses: m.misses.Load(),
		Size:   m.Len(),
	}
}

// TenantCache memoizes bot token to tenant id resolution.
type TenantCache = MemoCache[string, int64]

// NewTenantCache creates a tenant resolution cache over source.
func NewTenantCache(source TenantSource) (*TenantCache, error) {
	if source == nil {
		return nil, ErrNilFetch
	}
	return NewMemo[string, int64](source.Lookup)
}
