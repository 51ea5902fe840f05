package upstream

import (
	"context"
	"errors"
	"net/http"

	"github.com/openai/openai-go/v3"
	"google.golang.org/genai"
)

var (
	ErrMissingAPIKey   = errors.New("upstream: api key is required")
	ErrMissingModel    = errors.New("upstream: model is required")
	ErrInvalidBaseURL  = errors.New("upstream: invalid base url")
	ErrUnknownProvider = errors.New("upstream: unknown provider")
	ErrEmptyResponse   = errors.New("upstream: empty response")
	ErrEmptyAudio      = errors.New("upstream: empty audio")
	ErrEmptyPrompt     = errors.New("upstream: empty prompt")
)

// IsRetryable reports whether another attempt may succeed after err.
// Client errors (4xx other than 408, 409 and 429), malformed requests and
// empty responses are permanent; cancellation of the caller is not retried
// either. Transport errors and attempt timeouts are retried.
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, ErrEmptyResponse), errors.Is(err, ErrEmptyAudio), errors.Is(err, ErrEmptyPrompt):
		return false
	}

	var oaErr *openai.Error
	if errors.As(err, &oaErr) {
		return retryableStatus(oaErr.StatusCode)
	}
	var gErr genai.APIError
	if errors.As(err, &gErr) {
		return retryableStatus(gErr.Code)
	}
	return true
}

func retryableStatus(code int) bool {
	switch {
	case code == http.StatusRequestTimeout, code == http.StatusConflict, code == http.StatusTooManyRequests:
		return true
	case code >= 500:
		return true
	default:
		return false
	}
}
