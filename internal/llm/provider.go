package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/codelion/codelion/internal/gemini"
)

// ErrNotConfigured is returned when no provider has an API key.
var ErrNotConfigured = errors.New("no LLM provider configured: set gemini.api_key or anthropic.api_key")

// Settings selects and configures a provider.
type Settings struct {
	// Provider is "gemini", "anthropic" or empty for the first one with a key.
	Provider string

	GeminiAPIKey    string
	GeminiModel     string
	AnthropicAPIKey string
	AnthropicModel  string

	Retry RetryPolicy
}

// New builds the configured Generator wrapped with rate-limit retries.
func New(ctx context.Context, s Settings) (Generator, error) {
	provider := strings.ToLower(strings.TrimSpace(s.Provider))
	if provider == "" {
		switch {
		case s.GeminiAPIKey != "":
			provider = "gemini"
		case s.AnthropicAPIKey != "":
			provider = "anthropic"
		default:
			return nil, ErrNotConfigured
		}
	}

	var g Generator
	switch provider {
	case "gemini":
		c, err := gemini.NewClient(ctx, gemini.Config{APIKey: s.GeminiAPIKey, Model: s.GeminiModel})
		if err != nil {
			return nil, err
		}
		g = c
	case "anthropic":
		if s.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("anthropic api key is not set")
		}
		g = NewClient(s.AnthropicAPIKey, s.AnthropicModel)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", s.Provider)
	}

	policy := s.Retry
	if policy.InitialInterval == 0 {
		policy = DefaultRetryPolicy
	}
	return WithRetry(g, policy), nil
}

// Unavailable is a Generator that always fails with Err. Agents built on it
// stay registered and report the configuration problem as an error result.
type Unavailable struct {
	Err error
}

func (u Unavailable) Name() string { return "unavailable" }

func (u Unavailable) Generate(context.Context, string, string) (string, error) {
	return "", u.Err
}
