// Package upstream holds the slow, rate-limited collaborators the pipeline
// protects: chat completion (OpenAI-compatible or Gemini) and speech-to-text
// (OpenAI-compatible).
//
// Clients here make exactly one attempt per call. Retries, timeouts and
// rate limiting belong to resilience.Executor; IsRetryable tells it which
// failures are worth another attempt.
package upstream
