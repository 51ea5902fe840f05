package resilience

import (
	"context"
	"strconv"
	"testing"
	"time"
)

// BenchmarkAdmissionController_Admit measures the decision for a single hot identity.
func BenchmarkAdmissionController_Admit(b *testing.B) {
	a, _ := NewAdmissionController(AdmissionConfig{Limit: 15, Window: time.Minute})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = a.Admit("hot")
	}
}

// BenchmarkAdmissionController_ManyIdentities spreads load across identities.
func BenchmarkAdmissionController_ManyIdentities(b *testing.B) {
	a, _ := NewAdmissionController(AdmissionConfig{Limit: 15, Window: time.Minute})
	ids := make([]string, 1024)
	for i := range ids {
		ids[i] = strconv.Itoa(i)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			_ = a.Admit(ids[i%len(ids)])
			i++
		}
	})
}

// BenchmarkDo_Success measures the per-call overhead of a successful attempt.
func BenchmarkDo_Success(b *testing.B) {
	r, _ := NewRetry(DefaultRetryConfig())
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Do(ctx, r, func(ctx context.Context) (int, error) {
			return i, nil
		})
	}
}
