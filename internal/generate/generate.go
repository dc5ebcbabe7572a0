// Package generate defines the text generation contract used by the editor
// and the provider clients that implement it.
package generate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrUnknownModel indicates that no provider is registered for a model.
var ErrUnknownModel = errors.New("unknown model")

// Options are per-request sampling parameters. Zero values fall back to the
// provider's defaults.
type Options struct {
	Model            string  `json:"model,omitempty"`
	Temperature      float64 `json:"temperature,omitempty"`
	MaxTokens        int     `json:"max_tokens,omitempty"`
	TopP             float64 `json:"top_p,omitempty"`
	FrequencyPenalty float64 `json:"frequency_penalty,omitempty"`
	PresencePenalty  float64 `json:"presence_penalty,omitempty"`
}

// Usage reports token accounting when the provider returns it.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the result of a single-shot generation.
type Response struct {
	Text  string `json:"text"`
	Model string `json:"model"`
	Usage *Usage `json:"usage,omitempty"`
}

// TokenFunc receives streamed text fragments in order. Returning an error
// stops the stream; the provider returns that error wrapped.
type TokenFunc func(token string) error

// Service produces text for a prompt.
type Service interface {
	GenerateText(ctx context.Context, prompt string, opts Options) (Response, error)
	GenerateStream(ctx context.Context, prompt string, opts Options, onToken TokenFunc) error
}

// APIError is a non-success HTTP answer from a provider.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api status %d: %s", e.Provider, e.StatusCode, truncate(e.Message, 200))
}

// Retryable reports whether the failure is transient.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Retryable()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
