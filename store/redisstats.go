package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DecisionEvent is one admission decision.
type DecisionEvent struct {
	Identity string
	Result   string // allowed|denied|exempt
	At       time.Time
}

// RedisRecorder keeps admission decision counters in Redis hashes:
// <prefix>:total, <prefix>:minute:<yyyymmddhhmm> and, when identity
// tracking is on, <prefix>:identity:<id>.
type RedisRecorder struct {
	rdb           redis.UniversalClient
	prefix        string
	ttl           time.Duration
	trackIdentity bool
}

// RedisOption configures a RedisRecorder.
type RedisOption func(*RedisRecorder)

// WithRedisPrefix sets the key prefix. Default: "botguard:admission".
func WithRedisPrefix(prefix string) RedisOption {
	return func(r *RedisRecorder) { r.prefix = strings.Trim(prefix, ":") }
}

// WithRedisTTL sets the expiry of per-minute and per-identity keys.
// Totals never expire. Default: 24h.
func WithRedisTTL(d time.Duration) RedisOption {
	return func(r *RedisRecorder) { r.ttl = d }
}

// WithIdentityTracking enables per-identity counters.
func WithIdentityTracking(on bool) RedisOption {
	return func(r *RedisRecorder) { r.trackIdentity = on }
}

// NewRedisRecorder creates a recorder over rdb.
func NewRedisRecorder(rdb redis.UniversalClient, opts ...RedisOption) *RedisRecorder {
	r := &RedisRecorder{
		rdb:    rdb,
		prefix: "botguard:admission",
		ttl:    24 * time.Hour,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record increments the counters for ev in one pipeline.
func (r *RedisRecorder) Record(ctx context.Context, ev DecisionEvent) error {
	if r == nil || r.rdb == nil {
		return nil
	}
	if ev.Result == "" {
		return fmt.Errorf("%w: decision result is required", ErrInvalidInput)
	}
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	pipe := r.rdb.Pipeline()
	pipe.HIncrBy(ctx, r.totalKey(), ev.Result, 1)

	minuteKey := r.minuteKey(at)
	pipe.HIncrBy(ctx, minuteKey, ev.Result, 1)
	if r.ttl > 0 {
		pipe.Expire(ctx, minuteKey, r.ttl)
	}

	if id := strings.TrimSpace(ev.Identity); r.trackIdentity && id != "" {
		idKey := r.prefix + ":identity:" + id
		pipe.HIncrBy(ctx, idKey, ev.Result, 1)
		if r.ttl > 0 {
			pipe.Expire(ctx, idKey, r.ttl)
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store: record decision: %w", err)
	}
	return nil
}

// Totals returns the cumulative count per result.
func (r *RedisRecorder) Totals(ctx context.Context) (map[string]int64, error) {
	return r.read(ctx, r.totalKey())
}

// Minute returns the counts recorded in the minute containing at.
func (r *RedisRecorder) Minute(ctx context.Context, at time.Time) (map[string]int64, error) {
	return r.read(ctx, r.minuteKey(at))
}

// Ping checks the Redis connection.
func (r *RedisRecorder) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *RedisRecorder) read(ctx context.Context, key string) (map[string]int64, error) {
	raw, err := r.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("store: read %s: %w", key, err)
	}
	out := make(map[string]int64, len(raw))
	for field, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("store: counter %s.%s: %w", key, field, err)
		}
		out[field] = n
	}
	return out, nil
}

func (r *RedisRecorder) totalKey() string {
	return r.prefix + ":total"
}

func (r *RedisRecorder) minuteKey(at time.Time) string {
	return r.prefix + ":minute:" + at.UTC().Format("200601021504")
}
