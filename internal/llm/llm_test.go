package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const anthropicOK = `{"id":"msg_1","type":"message","role":"assistant","model":"m",` +
	`"content":[{"type":"text","text":"hello"}],"stop_reason":"end_turn",` +
	`"usage":{"input_tokens":1,"output_tokens":1}}`

func anthropicServer(t *testing.T, statuses ...int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(calls.Add(1))
		status := http.StatusOK
		if n <= len(statuses) {
			status = statuses[n-1]
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status == http.StatusOK {
			_, _ = w.Write([]byte(anthropicOK))
			return
		}
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func testClient(srv *httptest.Server) *Client {
	return NewClient("test-key", "m", option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
}

func fastPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}
}

func TestClient_Generate(t *testing.T) {
	srv, calls := anthropicServer(t)
	c := testClient(srv)

	text, err := c.Generate(context.Background(), "system", "prompt")
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "anthropic", c.Name())
}

func TestIsRateLimit_Anthropic(t *testing.T) {
	srv, _ := anthropicServer(t, http.StatusTooManyRequests)
	_, err := testClient(srv).Generate(context.Background(), "", "prompt")
	require.Error(t, err)
	assert.True(t, IsRateLimit(err))
	assert.False(t, IsRateLimit(errors.New("other")))
}

func TestWithRetry_RetriesRateLimit(t *testing.T) {
	srv, calls := anthropicServer(t, http.StatusTooManyRequests, http.StatusTooManyRequests)
	g := WithRetry(testClient(srv), fastPolicy())

	text, err := g.Generate(context.Background(), "", "prompt")
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
	assert.Equal(t, int32(3), calls.Load())
}

func TestWithRetry_GivesUp(t *testing.T) {
	srv, calls := anthropicServer(t, 429, 429, 429, 429, 429, 429)
	g := WithRetry(testClient(srv), fastPolicy())

	_, err := g.Generate(context.Background(), "", "prompt")
	require.Error(t, err)
	assert.Equal(t, int32(4), calls.Load(), "first attempt plus three retries")
}

func TestWithRetry_NoRetryOnOtherErrors(t *testing.T) {
	srv, calls := anthropicServer(t, http.StatusUnauthorized, http.StatusUnauthorized)
	g := WithRetry(testClient(srv), fastPolicy())

	_, err := g.Generate(context.Background(), "", "prompt")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, "a\nb", StripFences("```text\na\nb\n```"))
	assert.Equal(t, "plain", StripFences("  plain \n"))
	assert.Equal(t, "", StripFences("```"))
}

func TestNew_ProviderSelection(t *testing.T) {
	ctx := context.Background()

	_, err := New(ctx, Settings{})
	assert.ErrorIs(t, err, ErrNotConfigured)

	g, err := New(ctx, Settings{AnthropicAPIKey: "a", AnthropicModel: "m"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", g.Name())

	g, err = New(ctx, Settings{GeminiAPIKey: "g", AnthropicAPIKey: "a"})
	require.NoError(t, err)
	assert.Equal(t, "gemini", g.Name())

	g, err = New(ctx, Settings{Provider: "anthropic", GeminiAPIKey: "g", AnthropicAPIKey: "a"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", g.Name())

	_, err = New(ctx, Settings{Provider: "openai", GeminiAPIKey: "g"})
	assert.Error(t, err)

	_, err = New(ctx, Settings{Provider: "anthropic"})
	assert.Error(t, err)
}

func TestUnavailable(t *testing.T) {
	g := Unavailable{Err: ErrNotConfigured}
	_, err := g.Generate(context.Background(), "sys", "prompt")
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.Equal(t, "unavailable", g.Name())
}
