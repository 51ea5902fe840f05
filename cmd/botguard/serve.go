package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/jonwraymond/botguard/auth"
	"github.com/jonwraymond/botguard/config"
	"github.com/jonwraymond/botguard/health"
	"github.com/jonwraymond/botguard/observe"
	"github.com/jonwraymond/botguard/pipeline"
	"github.com/jonwraymond/botguard/server"
	"github.com/jonwraymond/botguard/store"
	"github.com/jonwraymond/botguard/upstream"
)

// Health thresholds for the in-memory components.
const (
	saturationThreshold = 0.5
	minCacheHitRate     = 0.5
	minCacheLookups     = 100
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API with graceful shutdown on SIGINT or SIGTERM.

The admission janitor and cache stats reporters run for the lifetime of
the server and stop before it exits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, err := root.load(ctx)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			return serve(ctx, cfg, nil)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

// serve runs until ctx is done. A nil listener listens on cfg.Server.Addr.
func serve(ctx context.Context, cfg *config.Config, l net.Listener) (err error) {
	obs, err := observe.NewObserver(ctx, cfg.ObserveConfig(version))
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		err = errors.Join(err, obs.Shutdown(shutdownCtx))
	}()

	mw, err := observe.MiddlewareFromObserver(obs)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	logger := obs.Logger()

	st, err := store.Open(ctx, cfg.StoreConfig())
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()
	if err := st.Migrate(ctx); err != nil {
		return err
	}

	agg := health.NewAggregator()
	agg.Register(health.NewPingChecker("store", st))

	deps := pipeline.Deps{
		Texts:      st,
		Tenants:    st,
		Records:    st,
		Middleware: mw,
	}
	srvOpts := server.Options{
		Health:  agg,
		Metrics: obs.MetricsHandler(),
		Logger:  logger,
		Version: version,
	}

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = rdb.Close() }()

		recorder := store.NewRedisRecorder(rdb,
			store.WithRedisPrefix(cfg.Redis.Prefix),
			store.WithRedisTTL(cfg.Redis.TTL),
			store.WithIdentityTracking(cfg.Redis.TrackIdentity),
		)
		deps.Recorder = recorder
		srvOpts.Decisions = recorder
		agg.Register(health.NewPingChecker("redis", recorder))
	}

	if deps.Completer, err = upstream.NewCompleter(cfg.CompletionConfig()); err != nil {
		return fmt.Errorf("completion: %w", err)
	}
	if cfg.VoiceEnabled() {
		if deps.Transcriber, err = upstream.NewOpenAITranscriber(cfg.TranscriptionConfig()); err != nil {
			return fmt.Errorf("transcription: %w", err)
		}
	} else {
		logger.Warn(ctx, "voice messages disabled: no transcription api key")
	}

	p, err := pipeline.New(cfg.PipelineConfig(), deps)
	if err != nil {
		return err
	}
	stopBackground := p.Start(ctx)
	defer stopBackground()

	agg.Register(health.NewAdmissionChecker(p.Admission(), saturationThreshold))
	agg.Register(health.NewCacheChecker("texts", p.Texts(), minCacheHitRate, minCacheLookups))
	agg.Register(health.NewCacheChecker("tenants", p.Tenants(), minCacheHitRate, minCacheLookups))

	authn, err := buildAuthenticator(cfg)
	if err != nil {
		return err
	}
	if authn == nil {
		logger.Warn(ctx, "stats endpoint disabled: no api keys or jwt secret")
	}
	srvOpts.Pipeline = p
	srvOpts.Authenticator = authn

	srv := server.New(server.Config{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, srvOpts)

	if l == nil {
		if l, err = net.Listen("tcp", cfg.Server.Addr); err != nil {
			return err
		}
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(l) }()

	logger.Info(ctx, "botguard started",
		observe.F("addr", l.Addr().String()),
		observe.F("version", version),
		observe.F("provider", cfg.Upstream.Completion.Provider),
		observe.F("admission_limit", cfg.Admission.Limit),
		observe.F("admission_window", cfg.Admission.Window.String()),
	)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info(context.WithoutCancel(ctx), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return <-errCh
}

// buildAuthenticator combines the configured API keys and JWT secret. It
// returns nil when neither is set.
func buildAuthenticator(cfg *config.Config) (auth.Authenticator, error) {
	var auths []auth.Authenticator
	if len(cfg.Auth.APIKeys) > 0 {
		keys := auth.StaticAPIKeys(cfg.Auth.APIKeys, auth.RoleViewer)
		auths = append(auths, auth.NewAPIKeyAuthenticator(auth.DefaultAPIKeyHeader, keys))
	}
	if cfg.Auth.JWTSecret != "" {
		jwtAuth, err := auth.NewJWTAuthenticator(cfg.JWTConfig())
		if err != nil {
			return nil, err
		}
		auths = append(auths, jwtAuth)
	}
	if len(auths) == 0 {
		return nil, nil
	}
	return auth.NewCompositeAuthenticator(auths...), nil
}
