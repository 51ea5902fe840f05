package observe_test

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonwraymond/botguard/observe"
)

func ExampleNewObserver() {
	cfg := observe.Config{
		ServiceName: "botguard",
		Version:     "1.0.0",
		Tracing:     observe.TracingConfig{Enabled: true, Exporter: "none"},
		Metrics:     observe.MetricsConfig{Enabled: false},
		Logging:     observe.LoggingConfig{Enabled: true, Level: "error"},
	}

	ctx := context.Background()
	obs, err := observe.NewObserver(ctx, cfg)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	defer func() {
		_ = obs.Shutdown(ctx)
	}()

	fmt.Println("Observer created successfully")
	// Output:
	// Observer created successfully
}

func ExampleNewObserver_validation() {
	_, err := observe.NewObserver(context.Background(), observe.Config{})
	if errors.Is(err, observe.ErrMissingServiceName) {
		fmt.Println("Caught: missing service name")
	}
	// Output:
	// Caught: missing service name
}

func ExampleOpMeta_SpanName() {
	meta := observe.OpMeta{Kind: "upstream", Name: "completion", Provider: "openai"}
	fmt.Println(meta.SpanName())
	// Output:
	// upstream.completion
}

func ExampleCall() {
	mw := observe.NopMiddleware()
	answer, err := observe.Call(context.Background(), mw, observe.OpMeta{Kind: "upstream", Name: "completion"},
		func(ctx context.Context) (string, error) {
			return "We ship worldwide.", nil
		})
	fmt.Println(answer, err)
	// Output:
	// We ship worldwide. <nil>
}
