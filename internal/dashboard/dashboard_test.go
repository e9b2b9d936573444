package dashboard

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codelion/codelion/internal/auth"
	"github.com/codelion/codelion/internal/demo"
)

var testAgents = []AgentInfo{
	{Name: "security", Description: "Finds vulnerabilities"},
	{Name: "performance", Description: "Finds slow code"},
	{Name: "style", Description: "Checks conventions"},
}

func setupDashboard(t *testing.T, ex *auth.Exchanger) http.Handler {
	t.Helper()
	mux := http.NewServeMux()
	New(Options{Source: demo.NewSource(), Exchanger: ex, Agents: testAgents}).Register(mux)
	return mux
}

func get(t *testing.T, h http.Handler, target string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func fakeGitHub(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		w.Header().Set("Content-Type", "application/json")
		if r.PostForm.Get("code") != "good" {
			_, _ = w.Write([]byte(`{"error":"bad_verification_code","error_description":"The code passed is incorrect or expired."}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"gho_abc","token_type":"bearer"}`))
	})
	mux.HandleFunc("GET /user", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":1,"login":"octocat"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testExchanger(srv *httptest.Server) *auth.Exchanger {
	return auth.NewExchanger(auth.Config{
		ClientID:     "cid",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost:3000/auth/callback",
		TokenURL:     srv.URL + "/login/oauth/access_token",
		APIURL:       srv.URL,
		HTTPClient:   srv.Client(),
	})
}

func findCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestFlagsFromRequest(t *testing.T) {
	tests := []struct {
		name    string
		cookies []*http.Cookie
		want    Flags
	}{
		{"none", nil, Flags{}},
		{"empty session", []*http.Cookie{{Name: SessionCookie, Value: ""}}, Flags{}},
		{"session", []*http.Cookie{{Name: SessionCookie, Value: "cl_x"}}, Flags{SignedIn: true}},
		{"key not true", []*http.Cookie{{Name: KeyValidCookie, Value: "yes"}}, Flags{}},
		{"both", []*http.Cookie{
			{Name: SessionCookie, Value: "cl_x"},
			{Name: KeyValidCookie, Value: "true"},
		}, Flags{SignedIn: true, KeyValid: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for _, c := range tt.cookies {
				req.AddCookie(c)
			}
			assert.Equal(t, tt.want, FlagsFromRequest(req))
		})
	}
}

func TestDashboard_SignedOut(t *testing.T) {
	h := setupDashboard(t, nil)
	w := get(t, h, "/")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	body := w.Body.String()
	assert.Contains(t, body, "Sign in with GitHub")
	assert.Contains(t, body, "Get Started with CodeLion")
	assert.Contains(t, body, "1. Connect GitHub")
	assert.NotContains(t, body, "2. Add your Gemini API key")
	assert.NotContains(t, body, "API Key Connected")
	assert.NotContains(t, body, "Connect Repository")
}

func TestDashboard_SignedInWithoutKey(t *testing.T) {
	h := setupDashboard(t, nil)
	w := get(t, h, "/", &http.Cookie{Name: SessionCookie, Value: "cl_x"})

	body := w.Body.String()
	assert.Contains(t, body, "Get Started with CodeLion")
	assert.Contains(t, body, "2. Add your Gemini API key")
	assert.NotContains(t, body, "1. Connect GitHub")
	assert.Contains(t, body, "Settings")
	assert.Contains(t, body, "Connect Repository")
}

func TestDashboard_FullySetUp(t *testing.T) {
	h := setupDashboard(t, nil)
	w := get(t, h, "/",
		&http.Cookie{Name: SessionCookie, Value: "cl_x"},
		&http.Cookie{Name: KeyValidCookie, Value: "true"})

	body := w.Body.String()
	assert.NotContains(t, body, "Get Started with CodeLion")
	assert.NotContains(t, body, "Sign in with GitHub")
	assert.Contains(t, body, "API Key Connected")

	assert.Contains(t, body, `id="stat-total">15<`)
	assert.Contains(t, body, `id="stat-confidence">78.5%<`)
	assert.Contains(t, body, `id="stat-comments">45<`)
	assert.Contains(t, body, `id="stat-agents">3<`)
}

func TestDashboard_RecentReviews(t *testing.T) {
	h := setupDashboard(t, nil)
	body := get(t, h, "/").Body.String()

	assert.Contains(t, body, "PR #123")
	assert.Contains(t, body, "PR #124")
	assert.Contains(t, body, "myorg/myapp")
	assert.Contains(t, body, "in progress")
	assert.Contains(t, body, "Found 3 security issues and 2 performance improvements")
	assert.Contains(t, body, "85% confidence")
	assert.Equal(t, 1, strings.Count(body, "% confidence"), "zero confidence has no badge")
	assert.Less(t, strings.Index(body, "PR #123"), strings.Index(body, "PR #124"))

	assert.Contains(t, body, "No repositories connected yet")
	for _, a := range testAgents {
		assert.Contains(t, body, a.Description)
	}
}

func TestFormatConfidence(t *testing.T) {
	assert.Equal(t, "78.5%", FormatConfidence(78.5))
	assert.Equal(t, "80%", FormatConfidence(80))
	assert.Equal(t, "0%", FormatConfidence(0))
}

func TestStatic(t *testing.T) {
	h := setupDashboard(t, nil)

	w := get(t, h, "/static/app.js")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/api/validate-gemini-key")

	assert.Equal(t, http.StatusOK, get(t, h, "/static/style.css").Code)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/static/missing.js").Code)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/static/").Code)
}

func TestCallback_ProviderError(t *testing.T) {
	h := setupDashboard(t, nil)
	w := get(t, h, "/auth/callback?error=access_denied")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), msgAuthFailed)
	assert.Nil(t, findCookie(w, SessionCookie))
}

func TestCallback_MissingCode(t *testing.T) {
	h := setupDashboard(t, nil)
	w := get(t, h, "/auth/callback")

	assert.Contains(t, w.Body.String(), msgNoCode)
	assert.Nil(t, findCookie(w, SessionCookie))
}

func TestCallback_Success(t *testing.T) {
	srv := fakeGitHub(t)
	h := setupDashboard(t, testExchanger(srv))

	w := get(t, h, "/auth/callback?code=good")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, msgRedirect)
	assert.Contains(t, body, `http-equiv="refresh"`)

	c := findCookie(w, SessionCookie)
	require.NotNil(t, c)
	assert.True(t, strings.HasPrefix(c.Value, "cl_"))
	assert.True(t, c.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
}

func TestCallback_ExchangeRejected(t *testing.T) {
	srv := fakeGitHub(t)
	h := setupDashboard(t, testExchanger(srv))

	w := get(t, h, "/auth/callback?code=stale")
	assert.Contains(t, w.Body.String(), "The code passed is incorrect or expired.")
	assert.NotContains(t, w.Body.String(), `http-equiv="refresh"`)
	assert.Nil(t, findCookie(w, SessionCookie))
}

func TestCallback_StateMismatch(t *testing.T) {
	srv := fakeGitHub(t)
	h := setupDashboard(t, testExchanger(srv))

	w := get(t, h, "/auth/callback?code=good&state=other",
		&http.Cookie{Name: stateCookie, Value: "expected"})
	assert.Contains(t, w.Body.String(), msgAuthFailed)
	assert.Nil(t, findCookie(w, SessionCookie))
}

func TestLogin_Redirects(t *testing.T) {
	srv := fakeGitHub(t)
	h := setupDashboard(t, testExchanger(srv))

	w := get(t, h, "/auth/github/login")
	require.Equal(t, http.StatusFound, w.Code)
	state := findCookie(w, stateCookie)
	require.NotNil(t, state)

	loc := w.Header().Get("Location")
	assert.True(t, strings.HasPrefix(loc, "https://github.com/login/oauth/authorize?"))
	assert.Contains(t, loc, "state="+state.Value)
}

func TestLogin_NotConfigured(t *testing.T) {
	h := setupDashboard(t, nil)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, h, "/auth/github/login").Code)
}

func TestLogout_ClearsCookies(t *testing.T) {
	h := setupDashboard(t, nil)
	w := get(t, h, "/auth/logout", &http.Cookie{Name: SessionCookie, Value: "cl_x"})

	assert.Equal(t, http.StatusFound, w.Code)
	for _, name := range []string{SessionCookie, KeyValidCookie} {
		c := findCookie(w, name)
		require.NotNil(t, c, name)
		assert.Negative(t, c.MaxAge)
	}
}
