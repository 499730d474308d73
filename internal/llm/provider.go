// Package llm holds the remote model backends used to translate and
// summarize text.
package llm

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_provider.go -package=mocks github.com/dgallion1/booknest/internal/llm Provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Provider sends a single prompt to a remote model and returns its text reply.
type Provider interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Name() string
}

// RateLimitError is returned when the remote API reports the caller has
// exhausted its quota.
type RateLimitError struct {
	StatusCode int
	Message    string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("429 rate limited (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

// StatusError is any other non-200 response.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api status %d: %s", e.StatusCode, truncate(e.Message, 200))
}

var quotaMarkers = []string{"429", "quota", "rate limit", "rate_limit", "resource_exhausted"}

// IsQuotaExceeded reports whether err signals a quota or rate-limit condition.
// Typed errors from either backend are checked first, then the message is
// scanned for the usual markers since some gateways only put it in the text.
func IsQuotaExceeded(err error) bool {
	if err == nil {
		return false
	}
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return true
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return true
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, m := range quotaMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
