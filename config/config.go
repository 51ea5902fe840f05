package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jonwraymond/botguard/auth"
	"github.com/jonwraymond/botguard/observe"
	"github.com/jonwraymond/botguard/pipeline"
	"github.com/jonwraymond/botguard/resilience"
	"github.com/jonwraymond/botguard/secret"
	"github.com/jonwraymond/botguard/store"
	"github.com/jonwraymond/botguard/upstream"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "BOTGUARD"

// Config is the complete botguard configuration.
type Config struct {
	ServiceName string          `mapstructure:"service_name"`
	Admission   AdmissionConfig `mapstructure:"admission"`
	Retry       RetryConfig     `mapstructure:"retry"`
	Cache       CacheConfig     `mapstructure:"cache"`
	Upstream    UpstreamConfig  `mapstructure:"upstream"`
	Store       StoreConfig     `mapstructure:"store"`
	Redis       RedisConfig     `mapstructure:"redis"`
	Server      ServerConfig    `mapstructure:"server"`
	Auth        AuthConfig      `mapstructure:"auth"`
	Secrets     SecretsConfig   `mapstructure:"secrets"`
	Telemetry   TelemetryConfig `mapstructure:"telemetry"`
	Logging     LoggingConfig   `mapstructure:"logging"`
}

type AdmissionConfig struct {
	Limit           int           `mapstructure:"limit"`
	Window          time.Duration `mapstructure:"window"`
	JanitorInterval time.Duration `mapstructure:"janitor_interval"`
}

type RetryConfig struct {
	MaxAttempts  int           `mapstructure:"max_attempts"`
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	Multiplier   float64       `mapstructure:"multiplier"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
	Jitter       float64       `mapstructure:"jitter"`
}

type CacheConfig struct {
	Capacity       int           `mapstructure:"capacity"`
	ReportInterval time.Duration `mapstructure:"report_interval"`
	ReportEvery    int           `mapstructure:"report_every"`
}

type UpstreamConfig struct {
	Completion     CompletionConfig    `mapstructure:"completion"`
	Transcription  TranscriptionConfig `mapstructure:"transcription"`
	Concurrency    int                 `mapstructure:"concurrency"`
	MaxWait        time.Duration       `mapstructure:"max_wait"`
	Rate           float64             `mapstructure:"rate"`
	Burst          int                 `mapstructure:"burst"`
	AttemptTimeout time.Duration       `mapstructure:"attempt_timeout"`
}

type CompletionConfig struct {
	Provider    string        `mapstructure:"provider"`
	Model       string        `mapstructure:"model"`
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// TranscriptionConfig configures speech to text. An empty APIKey disables
// voice handling.
type TranscriptionConfig struct {
	Model   string        `mapstructure:"model"`
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type StoreConfig struct {
	DSN          string        `mapstructure:"dsn"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	BusyTimeout  time.Duration `mapstructure:"busy_timeout"`
}

// RedisConfig configures decision stats. An empty Addr disables them.
type RedisConfig struct {
	Addr          string        `mapstructure:"addr"`
	Password      string        `mapstructure:"password"`
	DB            int           `mapstructure:"db"`
	Prefix        string        `mapstructure:"prefix"`
	TTL           time.Duration `mapstructure:"ttl"`
	TrackIdentity bool          `mapstructure:"track_identity"`
	RecordTimeout time.Duration `mapstructure:"record_timeout"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// AuthConfig protects the operator endpoints. With neither API keys nor a
// JWT secret the endpoints are disabled.
type AuthConfig struct {
	APIKeys   []string      `mapstructure:"api_keys"`
	JWTSecret string        `mapstructure:"jwt_secret"`
	Issuer    string        `mapstructure:"issuer"`
	Audience  string        `mapstructure:"audience"`
	Leeway    time.Duration `mapstructure:"leeway"`
}

// SecretsConfig configures secretref resolution. Providers maps a provider
// name to its options; empty means env and file with no options.
type SecretsConfig struct {
	Strict    bool                      `mapstructure:"strict"`
	Providers map[string]map[string]any `mapstructure:"providers"`
}

type TelemetryConfig struct {
	Tracing TracingConfig `mapstructure:"tracing"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type TracingConfig struct {
	Enabled   bool    `mapstructure:"enabled"`
	Exporter  string  `mapstructure:"exporter"`
	Endpoint  string  `mapstructure:"endpoint"`
	Insecure  bool    `mapstructure:"insecure"`
	SamplePct float64 `mapstructure:"sample_pct"`
}

type MetricsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Exporter string `mapstructure:"exporter"`
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "botguard")

	v.SetDefault("admission.limit", resilience.DefaultAdmissionLimit)
	v.SetDefault("admission.window", resilience.DefaultAdmissionWindow)
	v.SetDefault("admission.janitor_interval", time.Duration(0))

	v.SetDefault("retry.max_attempts", resilience.DefaultMaxAttempts)
	v.SetDefault("retry.initial_delay", resilience.DefaultInitialDelay)
	v.SetDefault("retry.multiplier", resilience.DefaultMultiplier)
	v.SetDefault("retry.max_delay", resilience.DefaultMaxDelay)
	v.SetDefault("retry.jitter", 0.0)

	v.SetDefault("cache.capacity", 256)
	v.SetDefault("cache.report_interval", time.Hour)
	v.SetDefault("cache.report_every", 50)

	v.SetDefault("upstream.completion.provider", upstream.ProviderOpenAI)
	v.SetDefault("upstream.completion.model", "openai/gpt-oss-120b")
	v.SetDefault("upstream.completion.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("upstream.completion.api_key", "")
	v.SetDefault("upstream.completion.max_tokens", upstream.DefaultMaxTokens)
	v.SetDefault("upstream.completion.temperature", upstream.DefaultTemperature)
	v.SetDefault("upstream.completion.timeout", time.Minute)
	v.SetDefault("upstream.transcription.model", "whisper-1")
	v.SetDefault("upstream.transcription.base_url", "")
	v.SetDefault("upstream.transcription.api_key", "")
	v.SetDefault("upstream.transcription.timeout", time.Minute)
	v.SetDefault("upstream.concurrency", 16)
	v.SetDefault("upstream.max_wait", 30*time.Second)
	v.SetDefault("upstream.rate", 0.0)
	v.SetDefault("upstream.burst", 1)
	v.SetDefault("upstream.attempt_timeout", time.Minute)

	v.SetDefault("store.dsn", "botguard.db")
	v.SetDefault("store.max_open_conns", 4)
	v.SetDefault("store.busy_timeout", 5*time.Second)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "botguard:admission")
	v.SetDefault("redis.ttl", 24*time.Hour)
	v.SetDefault("redis.track_identity", false)
	v.SetDefault("redis.record_timeout", 250*time.Millisecond)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 2*time.Minute)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("auth.api_keys", []string{})
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "botguard")
	v.SetDefault("auth.audience", "")
	v.SetDefault("auth.leeway", 30*time.Second)

	v.SetDefault("secrets.strict", true)

	v.SetDefault("telemetry.tracing.enabled", false)
	v.SetDefault("telemetry.tracing.exporter", "none")
	v.SetDefault("telemetry.tracing.endpoint", "")
	v.SetDefault("telemetry.tracing.insecure", false)
	v.SetDefault("telemetry.tracing.sample_pct", 1.0)
	v.SetDefault("telemetry.metrics.enabled", true)
	v.SetDefault("telemetry.metrics.exporter", "prometheus")
	v.SetDefault("telemetry.metrics.endpoint", "")
	v.SetDefault("telemetry.metrics.insecure", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Load reads configuration from defaults, the YAML file at path (optional
// when empty) and the environment, then validates it. Secrets are not
// resolved; call ResolveSecrets.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrReadConfig, path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrReadConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Validate checks the configuration for values no component accepts.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if c.Admission.Limit <= 0 {
		add("admission.limit must be positive, got %d", c.Admission.Limit)
	}
	if c.Admission.Window <= 0 {
		add("admission.window must be positive, got %s", c.Admission.Window)
	}
	if c.Retry.MaxAttempts < 1 {
		add("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.InitialDelay < 0 || c.Retry.Multiplier <= 0 || c.Retry.MaxDelay <= 0 {
		add("retry delays must be non-negative with a positive multiplier and cap")
	}
	if c.Retry.Jitter < 0 || c.Retry.Jitter >= 1 {
		add("retry.jitter must be in [0, 1), got %v", c.Retry.Jitter)
	}
	if c.Cache.Capacity <= 0 {
		add("cache.capacity must be positive, got %d", c.Cache.Capacity)
	}
	switch strings.ToLower(c.Upstream.Completion.Provider) {
	case upstream.ProviderOpenAI, upstream.ProviderGemini:
	default:
		add("upstream.completion.provider %q is not openai or gemini", c.Upstream.Completion.Provider)
	}
	if strings.TrimSpace(c.Upstream.Completion.Model) == "" {
		add("upstream.completion.model is required")
	}
	if c.Upstream.Rate < 0 {
		add("upstream.rate must not be negative")
	}
	if strings.TrimSpace(c.Store.DSN) == "" {
		add("store.dsn is required")
	}
	if strings.TrimSpace(c.Server.Addr) == "" {
		add("server.addr is required")
	}
	if c.Server.ShutdownTimeout <= 0 {
		add("server.shutdown_timeout must be positive")
	}

	obs := c.ObserveConfig("")
	if err := obs.Validate(); err != nil {
		add("telemetry: %v", err)
	}

	return errors.Join(errs...)
}

// ResolveSecrets expands and resolves every secret-bearing value in place.
func (c *Config) ResolveSecrets(ctx context.Context) error {
	providers := c.Secrets.Providers
	if len(providers) == 0 {
		providers = map[string]map[string]any{"env": {}, "file": {}}
	}
	r, err := secret.NewDefaultRegistry().Resolver(c.Secrets.Strict, providers)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	err = r.ResolveInto(ctx, map[string]*string{
		"upstream.completion.api_key":    &c.Upstream.Completion.APIKey,
		"upstream.completion.base_url":   &c.Upstream.Completion.BaseURL,
		"upstream.transcription.api_key": &c.Upstream.Transcription.APIKey,
		"redis.password":                 &c.Redis.Password,
		"auth.jwt_secret":                &c.Auth.JWTSecret,
		"store.dsn":                      &c.Store.DSN,
	})
	if err != nil {
		return err
	}

	keys, err := r.ResolveSlice(ctx, c.Auth.APIKeys)
	if err != nil {
		return fmt.Errorf("resolve auth.api_keys: %w", err)
	}
	c.Auth.APIKeys = keys
	return nil
}

// PipelineConfig converts to a pipeline configuration.
func (c *Config) PipelineConfig() pipeline.Config {
	return pipeline.Config{
		Admission: resilience.AdmissionConfig{
			Limit:  c.Admission.Limit,
			Window: c.Admission.Window,
		},
		Retry: resilience.RetryConfig{
			MaxAttempts:  c.Retry.MaxAttempts,
			InitialDelay: c.Retry.InitialDelay,
			Multiplier:   c.Retry.Multiplier,
			MaxDelay:     c.Retry.MaxDelay,
			Jitter:       c.Retry.Jitter,
		},
		CacheCapacity:      c.Cache.Capacity,
		HitReportEvery:     c.Cache.ReportEvery,
		ReportInterval:     c.Cache.ReportInterval,
		JanitorInterval:    c.Admission.JanitorInterval,
		Concurrency:        c.Upstream.Concurrency,
		MaxWait:            c.Upstream.MaxWait,
		Rate:               c.Upstream.Rate,
		Burst:              c.Upstream.Burst,
		AttemptTimeout:     c.Upstream.AttemptTimeout,
		RecordTimeout:      c.Redis.RecordTimeout,
		Provider:           strings.ToLower(c.Upstream.Completion.Provider),
		CompletionModel:    c.Upstream.Completion.Model,
		TranscriptionModel: c.Upstream.Transcription.Model,
	}
}

// CompletionConfig converts to an upstream completion configuration.
func (c *Config) CompletionConfig() upstream.Config {
	cc := c.Upstream.Completion
	return upstream.Config{
		Provider:    cc.Provider,
		Model:       cc.Model,
		BaseURL:     cc.BaseURL,
		APIKey:      cc.APIKey,
		MaxTokens:   cc.MaxTokens,
		Temperature: cc.Temperature,
		Timeout:     cc.Timeout,
	}
}

// TranscriptionConfig converts to an upstream transcription configuration.
func (c *Config) TranscriptionConfig() upstream.Config {
	tc := c.Upstream.Transcription
	return upstream.Config{
		Provider: upstream.ProviderOpenAI,
		Model:    tc.Model,
		BaseURL:  tc.BaseURL,
		APIKey:   tc.APIKey,
		Timeout:  tc.Timeout,
	}
}

// VoiceEnabled reports whether a transcription key is configured.
func (c *Config) VoiceEnabled() bool {
	return strings.TrimSpace(c.Upstream.Transcription.APIKey) != ""
}

// StoreConfig converts to a store configuration.
func (c *Config) StoreConfig() store.Config {
	return store.Config{
		DSN:          c.Store.DSN,
		MaxOpenConns: c.Store.MaxOpenConns,
		BusyTimeout:  c.Store.BusyTimeout,
	}
}

// JWTConfig converts to a JWT authenticator configuration.
func (c *Config) JWTConfig() auth.JWTConfig {
	return auth.JWTConfig{
		Secret:   []byte(c.Auth.JWTSecret),
		Issuer:   c.Auth.Issuer,
		Audience: c.Auth.Audience,
		Leeway:   c.Auth.Leeway,
	}
}

// ObserveConfig converts to an observer configuration for version.
func (c *Config) ObserveConfig(version string) observe.Config {
	return observe.Config{
		ServiceName: c.ServiceName,
		Version:     version,
		Tracing: observe.TracingConfig{
			Enabled:   c.Telemetry.Tracing.Enabled,
			Exporter:  c.Telemetry.Tracing.Exporter,
			Endpoint:  c.Telemetry.Tracing.Endpoint,
			Insecure:  c.Telemetry.Tracing.Insecure,
			SamplePct: c.Telemetry.Tracing.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  c.Telemetry.Metrics.Enabled,
			Exporter: c.Telemetry.Metrics.Exporter,
			Endpoint: c.Telemetry.Metrics.Endpoint,
			Insecure: c.Telemetry.Metrics.Insecure,
		},
		Logging: observe.LoggingConfig{
			Enabled: true,
			Level:   c.Logging.Level,
			Format:  c.Logging.Format,
		},
	}
}
