package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatBody struct {
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func chatServer(t *testing.T, status int, reply string, seen *chatBody) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		if seen != nil {
			body, _ := io.ReadAll(r.Body)
			assert.NoError(t, json.Unmarshal(body, seen))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = io.WriteString(w, `{"error":{"message":"nope","type":"invalid_request_error"}}`)
			return
		}
		resp := map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "test-model",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": reply},
			}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAICompleter_Complete(t *testing.T) {
	var seen chatBody
	srv := chatServer(t, http.StatusOK, "  Our price is 10$.\n", &seen)

	c, err := NewOpenAICompleter(Config{APIKey: "sk-test", Model: "test-model", BaseURL: srv.URL})
	require.NoError(t, err)

	got, err := c.Complete(context.Background(), CompletionRequest{System: SystemPrompt("en"), User: "price?"})
	require.NoError(t, err)
	assert.Equal(t, "Our price is 10$.", got)

	assert.Equal(t, "test-model", seen.Model)
	assert.Equal(t, DefaultMaxTokens, seen.MaxTokens)
	assert.InDelta(t, DefaultTemperature, seen.Temperature, 1e-9)
	require.Len(t, seen.Messages, 2)
	assert.Equal(t, "system", seen.Messages[0].Role)
	assert.Contains(t, seen.Messages[0].Content, "Always respond in en language.")
	assert.Equal(t, "user", seen.Messages[1].Role)
	assert.Equal(t, "price?", seen.Messages[1].Content)
}

func TestOpenAICompleter_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		reply     string
		wantErr   error
		retryable bool
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, retryable: true},
		{name: "server error", status: http.StatusBadGateway, retryable: true},
		{name: "bad request", status: http.StatusBadRequest, retryable: false},
		{name: "blank answer", status: http.StatusOK, reply: "   ", wantErr: ErrEmptyResponse, retryable: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := chatServer(t, tt.status, tt.reply, nil)
			c, err := NewOpenAICompleter(Config{APIKey: "sk-test", Model: "m", BaseURL: srv.URL})
			require.NoError(t, err)

			_, err = c.Complete(context.Background(), CompletionRequest{User: "hi"})
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Equal(t, tt.retryable, IsRetryable(err))
		})
	}
}

func TestOpenAICompleter_EmptyPrompt(t *testing.T) {
	c, err := NewOpenAICompleter(Config{APIKey: "sk-test", Model: "m", BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)
	_, err = c.Complete(context.Background(), CompletionRequest{User: "  "})
	assert.ErrorIs(t, err, ErrEmptyPrompt)
}

func TestOpenAITranscriber_Transcribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/transcriptions", r.URL.Path)
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		assert.Equal(t, "whisper-1", r.FormValue("model"))
		assert.Equal(t, "kk", r.FormValue("language"))
		f, hdr, err := r.FormFile("file")
		if assert.NoError(t, err) {
			defer f.Close()
			data, _ := io.ReadAll(f)
			assert.Equal(t, "OggS-data", string(data))
			assert.Equal(t, "voice_42.ogg", hdr.Filename)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"text":" Salem! "}`)
	}))
	t.Cleanup(srv.Close)

	tr, err := NewOpenAITranscriber(Config{APIKey: "sk-test", BaseURL: srv.URL})
	require.NoError(t, err)

	got, err := tr.Transcribe(context.Background(), TranscriptionRequest{
		Audio:    []byte("OggS-data"),
		Filename: "voice_42.ogg",
		Language: "kk",
	})
	require.NoError(t, err)
	assert.Equal(t, "Salem!", got)

	_, err = tr.Transcribe(context.Background(), TranscriptionRequest{})
	assert.ErrorIs(t, err, ErrEmptyAudio)
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{name: "missing key", cfg: Config{Model: "m"}, wantErr: ErrMissingAPIKey},
		{name: "missing model", cfg: Config{APIKey: "k"}, wantErr: ErrMissingModel},
		{name: "bad url", cfg: Config{APIKey: "k", Model: "m", BaseURL: "not a url"}, wantErr: ErrInvalidBaseURL},
		{name: "unknown provider", cfg: Config{Provider: "bard", APIKey: "k", Model: "m"}, wantErr: ErrUnknownProvider},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCompleter(tt.cfg)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNewCompleter_SelectsProvider(t *testing.T) {
	c, err := NewCompleter(Config{APIKey: "k", Model: "m"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAICompleter{}, c)

	c, err = NewCompleter(Config{Provider: "Gemini", APIKey: "k", Model: "gemini-2.5-flash"})
	require.NoError(t, err)
	assert.IsType(t, &GeminiCompleter{}, c)
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(context.Canceled))
	assert.True(t, IsRetryable(context.DeadlineExceeded))
	assert.True(t, IsRetryable(errors.New("connection reset")))
	assert.False(t, IsRetryable(ErrEmptyAudio))
}
