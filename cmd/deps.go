package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	"github.com/codelion/codelion/internal/agents"
	"github.com/codelion/codelion/internal/auth"
	"github.com/codelion/codelion/internal/gemini"
	"github.com/codelion/codelion/internal/github"
	"github.com/codelion/codelion/internal/llm"
	"github.com/codelion/codelion/internal/metrics"
	"github.com/codelion/codelion/internal/reviewsvc"
	"github.com/codelion/codelion/internal/store"
)

// newGenerator builds the configured LLM. Without an API key the agents
// still exist but every analysis fails with the configuration error.
func newGenerator(ctx context.Context) llm.Generator {
	gen, err := llm.New(ctx, llm.Settings{
		Provider:        viper.GetString("llm.provider"),
		GeminiAPIKey:    viper.GetString("gemini.api_key"),
		GeminiModel:     viper.GetString("gemini.model"),
		AnthropicAPIKey: viper.GetString("anthropic.api_key"),
		AnthropicModel:  viper.GetString("anthropic.model"),
	})
	if err != nil {
		if !errors.Is(err, llm.ErrNotConfigured) {
			slog.Warn("llm provider unavailable", "error", err)
		}
		return llm.Unavailable{Err: err}
	}
	slog.Debug("llm provider ready", "provider", gen.Name())
	return gen
}

func newRegistry(gen llm.Generator) *agents.Registry {
	return agents.NewRegistry(agents.Defaults(gen)...)
}

// newGitHubClient returns nil when no token is configured.
func newGitHubClient() *github.Client {
	token := viper.GetString("github.token")
	if token == "" {
		return nil
	}
	return github.NewClient(token, viper.GetString("github.api_url"), nil)
}

func newReviewService(s store.Store, registry *agents.Registry, gh *github.Client, m *metrics.Metrics) *reviewsvc.Service {
	opts := reviewsvc.Options{
		Store:        s,
		Analyzer:     agents.NewOrchestrator(registry, viper.GetInt("review.max_concurrency")),
		Metrics:      m,
		PostComments: viper.GetBool("review.post_comments"),
	}
	// A nil *github.Client must not become a non-nil interface.
	if gh != nil {
		opts.GitHub = gh
	}
	return reviewsvc.New(opts)
}

func redirectURL() string {
	base := strings.TrimRight(viper.GetString("base_url"), "/")
	if base == "" {
		base = fmt.Sprintf("http://localhost:%d", viper.GetInt("port"))
	}
	return base + "/auth/callback"
}

func newExchanger() *auth.Exchanger {
	return auth.NewExchanger(auth.Config{
		ClientID:     viper.GetString("github.client_id"),
		ClientSecret: viper.GetString("github.client_secret"),
		RedirectURL:  redirectURL(),
		APIURL:       viper.GetString("github.api_url"),
	})
}

func newKeyValidator() *gemini.Validator {
	return gemini.NewValidator(gemini.Config{Model: viper.GetString("gemini.model")})
}
