// Package health provides component health checks and their HTTP surface.
//
// A Checker reports Healthy, Degraded or Unhealthy. The Aggregator runs all
// registered checkers concurrently under a shared timeout:
//
//	agg := health.NewAggregator()
//	agg.Register(health.NewPingChecker("store", st))
//	agg.Register(health.NewAdmissionChecker(admission, 0.5))
//	agg.Register(health.NewCacheChecker("texts", texts, 0.5, 100))
//
//	r := chi.NewRouter()
//	health.RegisterHandlers(r, agg)
package health
