package health

import (
	"context"
	"fmt"

	"github.com/jonwraymond/botguard/cache"
	"github.com/jonwraymond/botguard/resilience"
)

// Pinger is implemented by backing stores.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingChecker reports unhealthy when Ping fails.
type PingChecker struct {
	name   string
	pinger Pinger
}

// NewPingChecker creates a checker named name over p.
func NewPingChecker(name string, p Pinger) *PingChecker {
	return &PingChecker{name: name, pinger: p}
}

// Name returns the checker name.
func (c *PingChecker) Name() string { return c.name }

// Check pings the store.
func (c *PingChecker) Check(ctx context.Context) Result {
	if err := c.pinger.Ping(ctx); err != nil {
		return Unhealthy(c.name+" unreachable", fmt.Errorf("%w: %w", ErrCheckFailed, err))
	}
	return Healthy(c.name + " reachable")
}

// AdmissionStatser exposes admission controller state.
type AdmissionStatser interface {
	Stats() resilience.AdmissionStats
}

// AdmissionChecker reports degraded when the share of identities sitting at
// the admission limit reaches Threshold.
type AdmissionChecker struct {
	stats     AdmissionStatser
	threshold float64
}

// NewAdmissionChecker creates an admission checker. A threshold outside
// (0, 1] defaults to 0.5.
func NewAdmissionChecker(stats AdmissionStatser, threshold float64) *AdmissionChecker {
	if threshold <= 0 || threshold > 1 {
		threshold = 0.5
	}
	return &AdmissionChecker{stats: stats, threshold: threshold}
}

// Name returns "admission".
func (c *AdmissionChecker) Name() string { return "admission" }

// Check compares the saturated ratio with the threshold.
func (c *AdmissionChecker) Check(ctx context.Context) Result {
	s := c.stats.Stats()
	details := map[string]any{
		"identities": s.Identities,
		"saturated":  s.Saturated,
	}
	if s.Identities == 0 {
		return Healthy("no active identities").WithDetails(details)
	}

	ratio := float64(s.Saturated) / float64(s.Identities)
	details["saturated_ratio"] = ratio
	if ratio >= c.threshold {
		return Degraded(fmt.Sprintf("%d of %d identities throttled", s.Saturated, s.Identities)).WithDetails(details)
	}
	return Healthy("admission within limits").WithDetails(details)
}

// CacheChecker reports cache statistics. It degrades when the hit rate
// drops below MinHitRate once MinLookups lookups have been made.
type CacheChecker struct {
	name       string
	cache      cache.StatsProvider
	minHitRate float64
	minLookups uint64
}

// NewCacheChecker creates a checker named "cache.<name>". A zero minHitRate
// never degrades.
func NewCacheChecker(name string, c cache.StatsProvider, minHitRate float64, minLookups uint64) *CacheChecker {
	return &CacheChecker{
		name:       "cache." + name,
		cache:      c,
		minHitRate: minHitRate,
		minLookups: minLookups,
	}
}

// Name returns the checker name.
func (c *CacheChecker) Name() string { return c.name }

// Check reports hit rate and size.
func (c *CacheChecker) Check(ctx context.Context) Result {
	s := c.cache.Stats()
	details := map[string]any{
		"hits":      s.Hits,
		"misses":    s.Misses,
		"evictions": s.Evictions,
		"size":      s.Size,
		"hit_rate":  s.HitRate(),
	}
	if s.Capacity > 0 {
		details["capacity"] = s.Capacity
	}

	if c.minHitRate > 0 && s.Hits+s.Misses >= c.minLookups && s.HitRate() < c.minHitRate {
		return Degraded(fmt.Sprintf("hit rate %.1f%% below %.1f%%", s.HitRate()*100, c.minHitRate*100)).WithDetails(details)
	}
	return Healthy(s.String()).WithDetails(details)
}
