package llm

import (
	"fmt"
	"time"
)

const (
	KindOpenAI    = "openai"
	KindAnthropic = "anthropic"
)

// Settings selects and configures a backend.
type Settings struct {
	Kind    string
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// Closer is implemented by backends that hold pooled connections.
type Closer interface {
	Close()
}

// New builds the backend named by s.Kind.
func New(s Settings) (Provider, error) {
	switch s.Kind {
	case KindOpenAI, "":
		return NewOpenAIClient(s.APIKey, s.Model, s.BaseURL, s.Timeout), nil
	case KindAnthropic:
		return NewAnthropicClient(s.APIKey, s.Model, s.BaseURL, s.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", s.Kind)
	}
}
