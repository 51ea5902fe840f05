package observe

import (
	"context"
	"time"
)

// Middleware wraps an operation with tracing, metrics and logging.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Context: the span context is propagated to the wrapped function.
//   - Errors: errors from the wrapped function are recorded and returned unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a Middleware. Nil components are replaced by no-ops.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NopTracer()
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// NopMiddleware returns a Middleware that only calls through.
func NopMiddleware() *Middleware {
	return NewMiddleware(nil, nil, nil)
}

// MiddlewareFromObserver builds a Middleware over the Observer's providers.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}
	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}
	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}

// Tracer returns the middleware tracer.
func (m *Middleware) Tracer() Tracer { return m.tracer }

// Metrics returns the middleware metrics.
func (m *Middleware) Metrics() Metrics { return m.metrics }

// Logger returns the middleware logger.
func (m *Middleware) Logger() Logger { return m.logger }

// Call runs fn inside a span named meta.SpanName(), records upstream
// metrics and logs the result.
func Call[T any](ctx context.Context, m *Middleware, meta OpMeta, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, span := m.tracer.StartSpan(ctx, meta)
	start := time.Now()

	result, err := fn(ctx)

	duration := time.Since(start)
	m.tracer.EndSpan(span, err)
	m.metrics.RecordUpstream(ctx, meta, duration, err)

	fields := append(meta.fields(), Field{Key: "duration_ms", Value: duration.Milliseconds()})
	if err != nil {
		fields = append(fields, Err(err))
		m.logger.Warn(ctx, "operation failed", fields...)
	} else {
		m.logger.Debug(ctx, "operation completed", fields...)
	}

	return result, err
}
