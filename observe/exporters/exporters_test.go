package exporters

import (
	"bytes"
	"context"
	"strings"
	"testing"

	promclient "github.com/prometheus/client_golang/prometheus"
)

func TestExporter_InvalidName(t *testing.T) {
	_, err := NewTracingExporter(context.Background(), "invalid", Options{})
	if err == nil {
		t.Fatal("expected error for invalid exporter name")
	}
	if !strings.Contains(strings.ToLower(err.Error()), "unknown exporter") {
		t.Errorf("expected error to contain 'unknown exporter', got: %v", err)
	}
}

func TestExporter_StdoutTracing(t *testing.T) {
	var buf bytes.Buffer
	exp, err := NewTracingExporter(context.Background(), "stdout", Options{Writer: &buf})
	if err != nil {
		t.Fatalf("failed to create stdout tracing exporter: %v", err)
	}
	if exp == nil {
		t.Fatal("expected non-nil exporter")
	}
	_ = exp.Shutdown(context.Background())
}

func TestExporter_StdoutMetrics(t *testing.T) {
	var buf bytes.Buffer
	reader, err := NewMetricsReader(context.Background(), "stdout", Options{Writer: &buf})
	if err != nil {
		t.Fatalf("failed to create stdout metrics reader: %v", err)
	}
	if reader == nil {
		t.Fatal("expected non-nil reader")
	}
	_ = reader.Shutdown(context.Background())
}

func TestExporter_OtlpMissingEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "")

	if _, err := NewTracingExporter(context.Background(), "otlp", Options{}); err == nil || !strings.Contains(err.Error(), "endpoint") {
		t.Errorf("tracing error = %v, want endpoint error", err)
	}
	if _, err := NewMetricsReader(context.Background(), "otlp", Options{}); err == nil || !strings.Contains(err.Error(), "endpoint") {
		t.Errorf("metrics error = %v, want endpoint error", err)
	}
}

func TestExporter_OtlpWithEndpoint(t *testing.T) {
	exp, err := NewTracingExporter(context.Background(), "otlp", Options{Endpoint: "localhost:4317", Insecure: true})
	if err != nil {
		t.Fatalf("failed to create OTLP exporter with endpoint: %v", err)
	}
	if exp == nil {
		t.Fatal("expected non-nil exporter")
	}
	_ = exp.Shutdown(context.Background())
}

func TestExporter_PrometheusUsesRegisterer(t *testing.T) {
	reg := promclient.NewRegistry()
	reader, err := NewMetricsReader(context.Background(), "prometheus", Options{Registerer: reg})
	if err != nil {
		t.Fatalf("failed to create Prometheus reader: %v", err)
	}
	if reader == nil {
		t.Fatal("expected non-nil reader")
	}
	_ = reader.Shutdown(context.Background())
}

func TestExporter_NoneReturnsNil(t *testing.T) {
	exp, err := NewTracingExporter(context.Background(), "none", Options{})
	if err != nil || exp != nil {
		t.Errorf("NewTracingExporter(none) = %v, %v, want nil, nil", exp, err)
	}
	reader, err := NewMetricsReader(context.Background(), "", Options{})
	if err != nil || reader != nil {
		t.Errorf("NewMetricsReader(\"\") = %v, %v, want nil, nil", reader, err)
	}
}

func TestExporter_MetricsInvalidName(t *testing.T) {
	_, err := NewMetricsReader(context.Background(), "badvalue", Options{})
	if err == nil {
		t.Fatal("expected error for invalid metrics exporter name")
	}
	if !strings.Contains(strings.ToLower(err.Error()), "unknown") {
		t.Errorf("expected error to contain 'unknown', got: %v", err)
	}
}
