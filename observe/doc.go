// Package observe provides the logging, metrics and tracing primitives used
// across botguard.
//
// Observer owns the OpenTelemetry tracer and meter providers and a zap-backed
// Logger. Metrics records admission decisions, retry attempts and upstream
// calls; cache statistics are exported through observable instruments.
// Middleware wraps a single upstream operation with a span, metrics and a
// log line:
//
//	obs, err := observe.NewObserver(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	mw, err := observe.MiddlewareFromObserver(obs)
//	if err != nil {
//	    return err
//	}
//	text, err := observe.Call(ctx, mw, observe.OpMeta{Kind: "upstream", Name: "completion"},
//	    func(ctx context.Context) (string, error) {
//	        return completer.Complete(ctx, req)
//	    })
package observe
