package cache

import (
	"context"
	"fmt"
	"time"
)

// Stats is a point-in-time snapshot of cache counters. Capacity is zero for
// unbounded caches.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Size      int
	Capacity  int
}

// HitRate returns hits / (hits + misses), or 0 before the first lookup.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// String formats the snapshot for log lines.
func (s Stats) String() string {
	if s.Hits+s.Misses == 0 {
		return "unused"
	}
	return fmt.Sprintf("hits=%d misses=%d hit_rate=%.1f%% size=%d", s.Hits, s.Misses, s.HitRate()*100, s.Size)
}

// StatsProvider is implemented by both cache types.
type StatsProvider interface {
	Stats() Stats
}

// StartReporter calls fn with p.Stats() every interval until ctx is done or
// stop is called. stop blocks until the reporter goroutine has exited.
func StartReporter(ctx context.Context, p StatsProvider, interval time.Duration, fn func(Stats)) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	if interval <= 0 || p == nil || fn == nil {
		close(done)
		return cancel
	}

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn(p.Stats())
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}
