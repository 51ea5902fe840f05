package health

import (
	"context"
	"errors"
	"testing"

	"github.com/jonwraymond/botguard/cache"
	"github.com/jonwraymond/botguard/resilience"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestPingChecker(t *testing.T) {
	ok := NewPingChecker("store", pingFunc(func(context.Context) error { return nil }))
	if ok.Name() != "store" || ok.Check(context.Background()).Status != StatusHealthy {
		t.Error("reachable store should be healthy")
	}

	errLocked := errors.New("database is locked")
	down := NewPingChecker("store", pingFunc(func(context.Context) error { return errLocked }))
	r := down.Check(context.Background())
	if r.Status != StatusUnhealthy {
		t.Fatalf("Status = %v, want unhealthy", r.Status)
	}
	if !errors.Is(r.Error, ErrCheckFailed) || !errors.Is(r.Error, errLocked) {
		t.Errorf("Error = %v, want both ErrCheckFailed and cause", r.Error)
	}
}

type admissionStats resilience.AdmissionStats

func (s admissionStats) Stats() resilience.AdmissionStats { return resilience.AdmissionStats(s) }

func TestAdmissionChecker(t *testing.T) {
	tests := []struct {
		name      string
		stats     admissionStats
		threshold float64
		want      Status
	}{
		{"idle", admissionStats{}, 0.5, StatusHealthy},
		{"few throttled", admissionStats{Identities: 10, Saturated: 2}, 0.5, StatusHealthy},
		{"half throttled", admissionStats{Identities: 10, Saturated: 5}, 0.5, StatusDegraded},
		{"default threshold", admissionStats{Identities: 4, Saturated: 2}, 0, StatusDegraded},
		{"strict threshold", admissionStats{Identities: 10, Saturated: 1}, 0.1, StatusDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewAdmissionChecker(tt.stats, tt.threshold)
			if c.Name() != "admission" {
				t.Errorf("Name() = %q", c.Name())
			}
			r := c.Check(context.Background())
			if r.Status != tt.want {
				t.Errorf("Status = %v, want %v (%s)", r.Status, tt.want, r.Message)
			}
			if r.Details["identities"] != tt.stats.Identities {
				t.Errorf("details = %v", r.Details)
			}
		})
	}
}

func TestAdmissionChecker_LiveController(t *testing.T) {
	ac, err := resilience.NewAdmissionController(resilience.AdmissionConfig{Limit: 1, Window: resilience.DefaultAdmissionWindow})
	if err != nil {
		t.Fatal(err)
	}
	ac.Admit("a")

	if r := NewAdmissionChecker(ac, 0.5).Check(context.Background()); r.Status != StatusDegraded {
		t.Errorf("Status = %v, want degraded with the only identity saturated", r.Status)
	}
}

type cacheStats cache.Stats

func (s cacheStats) Stats() cache.Stats { return cache.Stats(s) }

func TestCacheChecker(t *testing.T) {
	tests := []struct {
		name  string
		stats cacheStats
		min   float64
		want  Status
	}{
		{"unused", cacheStats{}, 0.5, StatusHealthy},
		{"warming up", cacheStats{Hits: 1, Misses: 9}, 0.5, StatusHealthy},
		{"good rate", cacheStats{Hits: 90, Misses: 10, Size: 10, Capacity: 256}, 0.5, StatusHealthy},
		{"poor rate", cacheStats{Hits: 10, Misses: 90, Size: 90, Capacity: 256}, 0.5, StatusDegraded},
		{"no minimum", cacheStats{Hits: 0, Misses: 500}, 0, StatusHealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCacheChecker("texts", tt.stats, tt.min, 100)
			if c.Name() != "cache.texts" {
				t.Errorf("Name() = %q", c.Name())
			}
			if r := c.Check(context.Background()); r.Status != tt.want {
				t.Errorf("Status = %v, want %v (%s)", r.Status, tt.want, r.Message)
			}
		})
	}
}
