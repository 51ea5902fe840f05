package upstream

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Providers for Config.Provider.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Completion defaults.
const (
	DefaultMaxTokens   = 500
	DefaultTemperature = 0.7
)

// CompletionRequest is one single-turn completion.
type CompletionRequest struct {
	System string
	User   string
}

// Completer produces an answer for one user message.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: one attempt, cancelled with ctx.
// - Errors: a response without text is ErrEmptyResponse.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// TranscriptionRequest is one voice message.
type TranscriptionRequest struct {
	Audio    []byte
	Filename string // e.g. "voice.ogg"; the extension selects the decoder
	Language string // ISO-639-1 hint, optional
}

// Transcriber converts speech to text.
type Transcriber interface {
	Transcribe(ctx context.Context, req TranscriptionRequest) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req CompletionRequest) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	return f(ctx, req)
}

// TranscriberFunc adapts a function to Transcriber.
type TranscriberFunc func(ctx context.Context, req TranscriptionRequest) (string, error)

func (f TranscriberFunc) Transcribe(ctx context.Context, req TranscriptionRequest) (string, error) {
	return f(ctx, req)
}

// Config configures one upstream client.
type Config struct {
	Provider    string // openai|gemini; completion only
	Model       string
	BaseURL     string
	APIKey      string
	MaxTokens   int
	Temperature float64

	// Timeout bounds the whole HTTP exchange inside the client. Zero leaves
	// it to the caller's context.
	Timeout time.Duration
}

func (c Config) normalized() (Config, error) {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	c.Model = strings.TrimSpace(c.Model)
	c.BaseURL = strings.TrimSpace(c.BaseURL)
	c.APIKey = strings.TrimSpace(c.APIKey)

	if c.APIKey == "" {
		return Config{}, ErrMissingAPIKey
	}
	if c.Model == "" {
		return Config{}, ErrMissingModel
	}
	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return Config{}, fmt.Errorf("%w: %q", ErrInvalidBaseURL, c.BaseURL)
		}
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.Temperature <= 0 {
		c.Temperature = DefaultTemperature
	}
	return c, nil
}

// NewCompleter builds the completer named by cfg.Provider. An empty
// provider means openai.
func NewCompleter(cfg Config) (Completer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderOpenAI, "":
		return NewOpenAICompleter(cfg)
	case ProviderGemini:
		return NewGeminiCompleter(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}

// SystemPrompt returns the sales consultant instruction for lang.
func SystemPrompt(lang string) string {
	return "You are a company sales consultant. Answer briefly and friendly. Always respond in " + lang + " language."
}
