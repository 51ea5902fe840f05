package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Instrument names.
const (
	MetricAdmissionDecisions = "botguard.admission.decisions"
	MetricRetryAttempts      = "botguard.retry.attempts"
	MetricUpstreamCalls      = "botguard.upstream.calls"
	MetricUpstreamDuration   = "botguard.upstream.duration"
	MetricCacheLookups       = "botguard.cache.lookups"
	MetricCacheSize          = "botguard.cache.size"
)

// Admission decision results.
const (
	AdmissionAllowed = "allowed"
	AdmissionDenied  = "denied"
	AdmissionExempt  = "exempt"
)

// CacheSnapshot is the cache state exported on each collection.
type CacheSnapshot struct {
	Hits   uint64
	Misses uint64
	Size   int
}

// Metrics records botguard metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must return quickly.
// - Errors: Record methods must not panic.
type Metrics interface {
	// RecordAdmission counts one admission decision by result.
	RecordAdmission(ctx context.Context, result string)

	// RecordRetry counts a failed attempt of op that will be retried.
	RecordRetry(ctx context.Context, op string, attempt int)

	// RecordUpstream records one upstream call with its duration and outcome.
	RecordUpstream(ctx context.Context, meta OpMeta, duration time.Duration, err error)

	// ObserveCache exports snapshot() under the cache attribute name on every
	// collection.
	ObserveCache(name string, snapshot func() CacheSnapshot) error
}

type metricsImpl struct {
	meter        metric.Meter
	admissions   metric.Int64Counter
	retries      metric.Int64Counter
	calls        metric.Int64Counter
	durationHist metric.Float64Histogram
	lookups      metric.Int64ObservableCounter
	size         metric.Int64ObservableGauge
}

// NewMetrics creates the botguard instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	return newMetrics(meter)
}

func newMetrics(meter metric.Meter) (*metricsImpl, error) {
	admissions, err := meter.Int64Counter(
		MetricAdmissionDecisions,
		metric.WithDescription("Admission decisions by result"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, err
	}

	retries, err := meter.Int64Counter(
		MetricRetryAttempts,
		metric.WithDescription("Failed upstream attempts that were retried"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	calls, err := meter.Int64Counter(
		MetricUpstreamCalls,
		metric.WithDescription("Upstream calls by operation and status"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		MetricUpstreamDuration,
		metric.WithDescription("Upstream call duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	lookups, err := meter.Int64ObservableCounter(
		MetricCacheLookups,
		metric.WithDescription("Cache lookups by cache and result"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	size, err := meter.Int64ObservableGauge(
		MetricCacheSize,
		metric.WithDescription("Cached entries"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		meter:        meter,
		admissions:   admissions,
		retries:      retries,
		calls:        calls,
		durationHist: durationHist,
		lookups:      lookups,
		size:         size,
	}, nil
}

func (m *metricsImpl) RecordAdmission(ctx context.Context, result string) {
	m.admissions.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func (m *metricsImpl) RecordRetry(ctx context.Context, op string, attempt int) {
	m.retries.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.Int("attempt", attempt),
	))
}

func (m *metricsImpl) RecordUpstream(ctx context.Context, meta OpMeta, duration time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}

	attrs := meta.attributes()
	m.calls.Add(ctx, 1, metric.WithAttributes(append(attrs, attribute.String("status", status))...))
	m.durationHist.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}

func (m *metricsImpl) ObserveCache(name string, snapshot func() CacheSnapshot) error {
	hit := metric.WithAttributes(attribute.String("cache", name), attribute.String("result", "hit"))
	miss := metric.WithAttributes(attribute.String("cache", name), attribute.String("result", "miss"))
	cache := metric.WithAttributes(attribute.String("cache", name))

	_, err := m.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		s := snapshot()
		o.ObserveInt64(m.lookups, int64(s.Hits), hit)
		o.ObserveInt64(m.lookups, int64(s.Misses), miss)
		o.ObserveInt64(m.size, int64(s.Size), cache)
		return nil
	}, m.lookups, m.size)
	return err
}

type noopMetrics struct{}

// NopMetrics returns a Metrics that records nothing.
func NopMetrics() Metrics { return noopMetrics{} }

func (noopMetrics) RecordAdmission(context.Context, string) {}

func (noopMetrics) RecordRetry(context.Context, string, int) {}

func (noopMetrics) RecordUpstream(context.Context, OpMeta, time.Duration, error) {}

func (noopMetrics) ObserveCache(string, func() CacheSnapshot) error { return nil }
