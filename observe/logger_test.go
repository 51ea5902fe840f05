package observe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	zapobserver "go.uber.org/zap/zaptest/observer"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("invalid JSON log line %q: %v", line, err)
		}
		out = append(out, entry)
	}
	return out
}

func TestLogger_JSONEntry(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", "json", &buf)

	logger.Info(context.Background(), "admission denied",
		F("identity", "42"),
		F("count", 15),
	)

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e["msg"] != "admission denied" || e["level"] != "info" {
		t.Errorf("entry = %v", e)
	}
	if e["identity"] != "42" || e["count"] != float64(15) {
		t.Errorf("fields missing: %v", e)
	}
	if _, ok := e["timestamp"]; !ok {
		t.Error("timestamp missing")
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		level string
		want  int
	}{
		{"debug", 4},
		{"info", 3},
		{"warn", 2},
		{"error", 1},
		{"", 3},
	}

	for _, tt := range tests {
		t.Run("level_"+tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLoggerWithWriter(tt.level, "json", &buf)
			ctx := context.Background()

			logger.Debug(ctx, "d")
			logger.Info(ctx, "i")
			logger.Warn(ctx, "w")
			logger.Error(ctx, "e")

			if got := len(decodeLines(t, &buf)); got != tt.want {
				t.Errorf("entries = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestLogger_Redaction(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", "json", &buf)

	logger.Info(context.Background(), "resolve",
		F("token", "123:ABC"),
		F("api_key", "sk-live"),
		F("authorization", "Bearer x"),
		F("tenant_id", 7),
	)

	e := decodeLines(t, &buf)[0]
	for _, key := range []string{"token", "api_key", "authorization"} {
		if e[key] != "[REDACTED]" {
			t.Errorf("%s = %v, want [REDACTED]", key, e[key])
		}
	}
	if e["tenant_id"] != float64(7) {
		t.Errorf("tenant_id = %v", e["tenant_id"])
	}
	if strings.Contains(buf.String(), "123:ABC") {
		t.Error("raw token leaked into output")
	}
}

func TestLogger_WithAddsFields(t *testing.T) {
	var buf bytes.Buffer
	base := NewLoggerWithWriter("info", "json", &buf)
	scoped := base.With(F("component", "pipeline"), F("secret", "s"))

	scoped.Warn(context.Background(), "retrying", Err(errors.New("429")), Err(nil))

	e := decodeLines(t, &buf)[0]
	if e["component"] != "pipeline" || e["secret"] != "[REDACTED]" || e["error"] != "429" {
		t.Errorf("entry = %v", e)
	}
}

func TestLogger_TraceIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", "json", &buf)

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	ctx, span := tp.Tracer("test").Start(context.Background(), "pipeline.handle")
	logger.Info(ctx, "inside span")
	span.End()

	e := decodeLines(t, &buf)[0]
	if e["trace_id"] != span.SpanContext().TraceID().String() {
		t.Errorf("trace_id = %v", e["trace_id"])
	}
	if e["span_id"] != span.SpanContext().SpanID().String() {
		t.Errorf("span_id = %v", e["span_id"])
	}
}

func TestLogger_ConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", "console", &buf)
	logger.Info(context.Background(), "hello", F("k", "v"))

	out := buf.String()
	if !strings.Contains(out, "INFO") || !strings.Contains(out, "hello") {
		t.Errorf("console output = %q", out)
	}
}

func TestNewLogger_InvalidFormat(t *testing.T) {
	if _, err := NewLogger(LoggingConfig{Format: "xml"}); !errors.Is(err, ErrInvalidLogFormat) {
		t.Errorf("NewLogger() error = %v, want ErrInvalidLogFormat", err)
	}
}

func TestFromZap(t *testing.T) {
	core, logs := zapobserver.New(zap.DebugLevel)
	logger := FromZap(zap.New(core))

	logger.Debug(context.Background(), "cache stats", F("hits", 50))

	if logs.Len() != 1 {
		t.Fatalf("logs = %d, want 1", logs.Len())
	}
	if got := logs.All()[0].ContextMap()["hits"]; got != int64(50) {
		t.Errorf("hits = %v (%T)", got, got)
	}

	if _, ok := FromZap(nil).(nopLogger); !ok {
		t.Error("FromZap(nil) should return a no-op logger")
	}
}

func TestParseLogLevel(t *testing.T) {
	for _, s := range []string{"debug", "info", "warn", "error"} {
		if got := ParseLogLevel(s).String(); got != s {
			t.Errorf("ParseLogLevel(%q).String() = %q", s, got)
		}
	}
	if ParseLogLevel("verbose") != LevelInfo {
		t.Error("unknown level should map to info")
	}
}

func TestNopLogger(t *testing.T) {
	l := NopLogger()
	l.Info(context.Background(), "x", F("token", "t"))
	if l.With(F("a", 1)) == nil || l.Sync() != nil {
		t.Error("nop logger misbehaved")
	}
}
