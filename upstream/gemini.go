package upstream

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const geminiAPIVersion = "v1beta"

type geminiModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiCompleter calls the Gemini generateContent API.
type GeminiCompleter struct {
	models      geminiModels
	model       string
	maxTokens   int32
	temperature float32
}

// NewGeminiCompleter creates a Gemini completion client.
func NewGeminiCompleter(cfg Config) (*GeminiCompleter, error) {
	cfg, err := cfg.normalized()
	if err != nil {
		return nil, fmt.Errorf("new gemini completer: %w", err)
	}

	httpOpts := genai.HTTPOptions{
		BaseURL:    cfg.BaseURL,
		APIVersion: geminiAPIVersion,
	}
	if cfg.Timeout > 0 {
		timeout := cfg.Timeout
		httpOpts.Timeout = &timeout
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: httpOpts,
	})
	if err != nil {
		return nil, fmt.Errorf("new gemini client: %w", err)
	}
	return newGeminiCompleter(client.Models, cfg), nil
}

func newGeminiCompleter(models geminiModels, cfg Config) *GeminiCompleter {
	return &GeminiCompleter{
		models:      models,
		model:       cfg.Model,
		maxTokens:   int32(cfg.MaxTokens),
		temperature: float32(cfg.Temperature),
	}
}

// Complete sends the user message with the system prompt as the system
// instruction and returns the trimmed answer.
func (c *GeminiCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if strings.TrimSpace(req.User) == "" {
		return "", ErrEmptyPrompt
	}

	temperature := c.temperature
	config := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: c.maxTokens,
	}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}
	contents := []*genai.Content{{
		Role:  string(genai.RoleUser),
		Parts: []*genai.Part{{Text: req.User}},
	}}

	resp, err := c.models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini completion: %w", err)
	}
	if resp == nil {
		return "", ErrEmptyResponse
	}
	answer := strings.TrimSpace(resp.Text())
	if answer == "" {
		return "", ErrEmptyResponse
	}
	return answer, nil
}

var _ Completer = (*GeminiCompleter)(nil)
