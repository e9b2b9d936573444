package gemini

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const okResponse = `{"candidates":[{"content":{"role":"model","parts":[{"text":"Hi there"}]},"finishReason":"STOP"}]}`

type fakeGemini struct {
	calls   atomic.Int32
	status  int
	body    string
	lastKey atomic.Value
	lastReq atomic.Value
}

func (f *fakeGemini) server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		f.lastKey.Store(r.Header.Get("x-goog-api-key"))
		b, _ := io.ReadAll(r.Body)
		f.lastReq.Store(string(b))
		if !strings.Contains(r.URL.Path, ":generateContent") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(f.body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(srv *httptest.Server) Config {
	return Config{BaseURL: srv.URL + "/", HTTPClient: srv.Client()}
}

func TestValidate_EmptyKey(t *testing.T) {
	f := &fakeGemini{status: http.StatusOK, body: okResponse}
	v := NewValidator(testConfig(f.server(t)))

	for _, key := range []string{"", "  "} {
		got := v.Validate(context.Background(), key)
		assert.False(t, got.Valid)
		assert.Equal(t, MsgKeyRequired, got.Error)
	}
	assert.Zero(t, f.calls.Load(), "provider must not be called")
}

func TestValidate_Valid(t *testing.T) {
	f := &fakeGemini{status: http.StatusOK, body: okResponse}
	v := NewValidator(testConfig(f.server(t)))

	got := v.Validate(context.Background(), "AIza-good")
	assert.True(t, got.Valid)
	assert.Empty(t, got.Error)
	assert.Equal(t, int32(1), f.calls.Load())
	assert.Equal(t, "AIza-good", f.lastKey.Load())
	assert.Contains(t, f.lastReq.Load(), `"Hello"`)
}

func TestValidate_AcceptedWithoutText(t *testing.T) {
	f := &fakeGemini{status: http.StatusOK, body: `{"candidates":[{"finishReason":"SAFETY"}]}`}
	v := NewValidator(testConfig(f.server(t)))

	got := v.Validate(context.Background(), "AIza-good")
	assert.True(t, got.Valid)
	assert.Empty(t, got.Error)
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestValidate_ProviderRejects(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusForbidden, http.StatusTooManyRequests} {
		f := &fakeGemini{
			status: status,
			body:   `{"error":{"code":400,"message":"API key not valid.","status":"INVALID_ARGUMENT"}}`,
		}
		v := NewValidator(testConfig(f.server(t)))

		got := v.Validate(context.Background(), "AIza-bad")
		assert.False(t, got.Valid, "status %d", status)
		assert.Equal(t, MsgKeyInvalid, got.Error)
	}
}

func TestValidationJSON(t *testing.T) {
	b, err := json.Marshal(Validation{Valid: true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"valid":true}`, string(b))
}

func TestClient_Generate(t *testing.T) {
	f := &fakeGemini{status: http.StatusOK, body: okResponse}
	srv := f.server(t)
	cfg := testConfig(srv)
	cfg.APIKey = "k"

	c, err := NewClient(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "gemini", c.Name())

	text, err := c.Generate(context.Background(), "You review code.", "diff")
	require.NoError(t, err)
	assert.Equal(t, "Hi there", text)
	assert.Contains(t, f.lastReq.Load(), "You review code.")
}

func TestClient_RateLimit(t *testing.T) {
	f := &fakeGemini{
		status: http.StatusTooManyRequests,
		body:   `{"error":{"code":429,"message":"quota","status":"RESOURCE_EXHAUSTED"}}`,
	}
	cfg := testConfig(f.server(t))
	cfg.APIKey = "k"

	c, err := NewClient(context.Background(), cfg)
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), "", "diff")
	require.Error(t, err)
	assert.True(t, IsRateLimit(err))
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient(context.Background(), Config{})
	assert.Error(t, err)
}
