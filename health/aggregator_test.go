package health

import (
	"context"
	"errors"
	"reflect"
	"sync/atomic"
	"testing"
	"time"
)

func staticChecker(name string, status Status) Checker {
	return NewCheckerFunc(name, func(ctx context.Context) Result {
		return Result{Status: status, Message: name}
	})
}

func TestNewAggregator_Defaults(t *testing.T) {
	agg := NewAggregator()
	if agg.config.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", agg.config.Timeout)
	}

	agg = NewAggregator(AggregatorConfig{Timeout: -1, MaxParallel: 2})
	if agg.config.Timeout != 10*time.Second || agg.config.MaxParallel != 2 {
		t.Errorf("config = %+v", agg.config)
	}
}

func TestAggregator_RegisterOrder(t *testing.T) {
	agg := NewAggregator()
	agg.Register(staticChecker("store", StatusHealthy))
	agg.Register(staticChecker("admission", StatusHealthy))
	agg.Register(staticChecker("store", StatusDegraded))

	if got, want := agg.CheckerNames(), []string{"store", "admission"}; !reflect.DeepEqual(got, want) {
		t.Errorf("CheckerNames() = %v, want %v", got, want)
	}

	r, err := agg.Check(context.Background(), "store")
	if err != nil || r.Status != StatusDegraded {
		t.Errorf("Check(store) = %v, %v; re-register should replace", r.Status, err)
	}

	agg.Unregister("store")
	if got := agg.CheckerNames(); !reflect.DeepEqual(got, []string{"admission"}) {
		t.Errorf("CheckerNames() after Unregister = %v", got)
	}
}

func TestAggregator_CheckNotFound(t *testing.T) {
	_, err := NewAggregator().Check(context.Background(), "missing")
	if !errors.Is(err, ErrCheckerNotFound) {
		t.Errorf("Check() error = %v, want ErrCheckerNotFound", err)
	}
}

func TestAggregator_CheckAll(t *testing.T) {
	agg := NewAggregator()
	agg.Register(staticChecker("a", StatusHealthy))
	agg.Register(staticChecker("b", StatusDegraded))

	results := agg.CheckAll(context.Background())
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results["b"].Status != StatusDegraded {
		t.Errorf("b = %v", results["b"].Status)
	}
	if results["a"].Timestamp.IsZero() {
		t.Error("timestamp not filled")
	}

	if got := len(NewAggregator().CheckAll(context.Background())); got != 0 {
		t.Errorf("empty aggregator results = %d", got)
	}
}

func TestAggregator_Timeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	agg := NewAggregator(AggregatorConfig{Timeout: 20 * time.Millisecond})
	agg.Register(NewCheckerFunc("slow", func(ctx context.Context) Result {
		<-release
		return Healthy("late")
	}))

	r := agg.CheckAll(context.Background())["slow"]
	if r.Status != StatusUnhealthy || !errors.Is(r.Error, ErrCheckTimeout) {
		t.Errorf("slow result = %+v, want timeout", r)
	}
}

func TestAggregator_MaxParallel(t *testing.T) {
	var running, peak atomic.Int32
	agg := NewAggregator(AggregatorConfig{MaxParallel: 1})
	for _, name := range []string{"a", "b", "c"} {
		agg.Register(NewCheckerFunc(name, func(ctx context.Context) Result {
			n := running.Add(1)
			defer running.Add(-1)
			if n > peak.Load() {
				peak.Store(n)
			}
			time.Sleep(2 * time.Millisecond)
			return Healthy(name)
		}))
	}

	if got := len(agg.CheckAll(context.Background())); got != 3 {
		t.Fatalf("results = %d", got)
	}
	if peak.Load() != 1 {
		t.Errorf("peak concurrency = %d, want 1", peak.Load())
	}
}

func TestAggregator_OverallStatus(t *testing.T) {
	agg := NewAggregator()
	tests := []struct {
		name    string
		results map[string]Result
		want    Status
	}{
		{"empty", nil, StatusHealthy},
		{"all healthy", map[string]Result{"a": {Status: StatusHealthy}}, StatusHealthy},
		{"one degraded", map[string]Result{"a": {Status: StatusHealthy}, "b": {Status: StatusDegraded}}, StatusDegraded},
		{"unhealthy wins", map[string]Result{"a": {Status: StatusDegraded}, "b": {Status: StatusUnhealthy}}, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := agg.OverallStatus(tt.results); got != tt.want {
				t.Errorf("OverallStatus() = %v, want %v", got, tt.want)
			}
		})
	}
}
