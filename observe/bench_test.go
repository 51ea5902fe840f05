package observe

import (
	"context"
	"io"
	"testing"
	"time"
)

func BenchmarkLogger_Info(b *testing.B) {
	logger := NewLoggerWithWriter("info", "json", io.Discard)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.Info(ctx, "benchmark message", Field{Key: "iteration", Value: i})
	}
}

func BenchmarkLogger_Filtered(b *testing.B) {
	logger := NewLoggerWithWriter("error", "json", io.Discard)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.Debug(ctx, "dropped", Field{Key: "iteration", Value: i})
	}
}

func BenchmarkLogger_Redaction(b *testing.B) {
	logger := NewLoggerWithWriter("info", "json", io.Discard)
	ctx := context.Background()
	fields := []Field{
		{Key: "token", Value: "123:ABC"},
		{Key: "tenant_id", Value: 7},
		{Key: "api_key", Value: "sk"},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.Info(ctx, "benchmark message", fields...)
	}
}

func BenchmarkCall_Nop(b *testing.B) {
	mw := NopMiddleware()
	ctx := context.Background()
	meta := OpMeta{Kind: "upstream", Name: "completion"}
	fn := func(context.Context) (int, error) { return 1, nil }

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Call(ctx, mw, meta, fn)
	}
}

func BenchmarkMetrics_RecordUpstream(b *testing.B) {
	m := NopMetrics()
	ctx := context.Background()
	meta := OpMeta{Kind: "upstream", Name: "completion"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.RecordUpstream(ctx, meta, time.Millisecond, nil)
	}
}
