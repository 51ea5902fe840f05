package upstream

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAICompleter calls an OpenAI-compatible chat completions endpoint
// (OpenAI, OpenRouter, local gateways).
type OpenAICompleter struct {
	chat        *openai.ChatCompletionService
	model       string
	maxTokens   int64
	temperature float64
}

// NewOpenAICompleter creates a chat completion client.
func NewOpenAICompleter(cfg Config) (*OpenAICompleter, error) {
	cfg, err := cfg.normalized()
	if err != nil {
		return nil, fmt.Errorf("new openai completer: %w", err)
	}
	client := openai.NewClient(clientOptions(cfg)...)
	return &OpenAICompleter{
		chat:        &client.Chat.Completions,
		model:       cfg.Model,
		maxTokens:   int64(cfg.MaxTokens),
		temperature: cfg.Temperature,
	}, nil
}

// Complete sends one system and one user message and returns the trimmed
// answer.
func (c *OpenAICompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if strings.TrimSpace(req.User) == "" {
		return "", ErrEmptyPrompt
	}
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.User))

	resp, err := c.chat.New(ctx, openai.ChatCompletionNewParams{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   openai.Int(c.maxTokens),
		Temperature: openai.Float(c.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	if answer == "" {
		return "", ErrEmptyResponse
	}
	return answer, nil
}

// OpenAITranscriber calls an OpenAI-compatible audio transcription endpoint.
type OpenAITranscriber struct {
	audio *openai.AudioTranscriptionService
	model string
}

// NewOpenAITranscriber creates a speech-to-text client. Model defaults to
// whisper-1.
func NewOpenAITranscriber(cfg Config) (*OpenAITranscriber, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = openai.AudioModelWhisper1
	}
	cfg, err := cfg.normalized()
	if err != nil {
		return nil, fmt.Errorf("new openai transcriber: %w", err)
	}
	client := openai.NewClient(clientOptions(cfg)...)
	return &OpenAITranscriber{
		audio: &client.Audio.Transcriptions,
		model: cfg.Model,
	}, nil
}

// Transcribe uploads the audio and returns the recognized text.
func (t *OpenAITranscriber) Transcribe(ctx context.Context, req TranscriptionRequest) (string, error) {
	if len(req.Audio) == 0 {
		return "", ErrEmptyAudio
	}
	name := req.Filename
	if name == "" {
		name = "voice.ogg"
	}

	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(req.Audio), name, "application/octet-stream"),
		Model: t.model,
	}
	if req.Language != "" {
		params.Language = openai.String(req.Language)
	}

	resp, err := t.audio.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai transcription: %w", err)
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func clientOptions(cfg Config) []option.RequestOption {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// resilience.Executor owns retries.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	return opts
}

var (
	_ Completer   = (*OpenAICompleter)(nil)
	_ Transcriber = (*OpenAITranscriber)(nil)
)
