package llm

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/cenkalti/backoff/v4"

	"github.com/codelion/codelion/internal/gemini"
)

// IsRateLimit reports whether err is a provider 429.
func IsRateLimit(err error) bool {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests
	}
	return gemini.IsRateLimit(err)
}

// RetryPolicy controls how rate-limited calls are retried.
type RetryPolicy struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy doubles from one second, three attempts after the first.
var DefaultRetryPolicy = RetryPolicy{
	MaxRetries:      3,
	InitialInterval: time.Second,
	MaxInterval:     30 * time.Second,
}

type retrying struct {
	next   Generator
	policy RetryPolicy
}

// WithRetry wraps g so that rate-limit errors are retried with exponential
// backoff. Any other error is returned immediately.
func WithRetry(g Generator, policy RetryPolicy) Generator {
	return &retrying{next: g, policy: policy}
}

func (r *retrying) Name() string { return r.next.Name() }

func (r *retrying) Generate(ctx context.Context, system, prompt string) (string, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.policy.InitialInterval
	b.MaxInterval = r.policy.MaxInterval
	b.MaxElapsedTime = 0

	var out string
	attempt := 0
	op := func() error {
		attempt++
		text, err := r.next.Generate(ctx, system, prompt)
		if err == nil {
			out = text
			return nil
		}
		if !IsRateLimit(err) {
			return backoff.Permanent(err)
		}
		slog.Debug("llm rate limited", "provider", r.next.Name(), "attempt", attempt)
		return err
	}

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, r.policy.MaxRetries), ctx))
	if err != nil {
		return "", err
	}
	return out, nil
}
