// Package dashboard renders the CodeLion web dashboard and the browser side
// of GitHub sign-in.
package dashboard

import (
	"bytes"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/codelion/codelion/internal/auth"
	"github.com/codelion/codelion/internal/models"
)

const (
	// SessionCookie holds the placeholder session token after sign-in.
	SessionCookie = "codelion_session"
	// KeyValidCookie is set to "true" by the browser once its Gemini key
	// passed validation. The key itself never leaves the browser.
	KeyValidCookie = "codelion_key_valid"

	stateCookie   = "codelion_oauth_state"
	sessionMaxAge = 7 * 24 * time.Hour
	recentLimit   = 10

	msgAuthFailed = "Authentication failed. Please try again."
	msgNoCode     = "No authorization code received."
	msgRedirect   = "Successfully authenticated! Redirecting..."
)

// Flags are the two client-held states the view depends on.
type Flags struct {
	SignedIn bool
	KeyValid bool
}

// FlagsFromRequest reads the sign-in and key flags from cookies.
func FlagsFromRequest(r *http.Request) Flags {
	var f Flags
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		f.SignedIn = true
	}
	if c, err := r.Cookie(KeyValidCookie); err == nil && c.Value == "true" {
		f.KeyValid = true
	}
	return f
}

// AgentInfo describes an agent card.
type AgentInfo struct {
	Name        string
	Description string
}

// Options configures the dashboard.
type Options struct {
	Source    Source
	Exchanger *auth.Exchanger
	Agents    []AgentInfo
	// SecureCookies marks cookies Secure; enable behind HTTPS.
	SecureCookies bool
}

// Handler serves the dashboard pages.
type Handler struct {
	source    Source
	exchanger *auth.Exchanger
	agents    []AgentInfo
	secure    bool
}

// New creates a dashboard Handler.
func New(opts Options) *Handler {
	return &Handler{
		source:    opts.Source,
		exchanger: opts.Exchanger,
		agents:    opts.Agents,
		secure:    opts.SecureCookies,
	}
}

// Register adds the dashboard routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.handleDashboard)
	mux.HandleFunc("GET /auth/github/login", h.handleLogin)
	mux.HandleFunc("GET /auth/callback", h.handleCallback)
	mux.HandleFunc("GET /auth/logout", h.handleLogout)
	mux.Handle("GET /static/", staticHandler())
}

type reviewView struct {
	PRNumber       int
	RepositoryName string
	Status         string
	Summary        string
	Confidence     int
}

type statsView struct {
	TotalReviews  int
	AvgConfidence string
	TotalComments int
	ActiveAgents  int
}

type dashboardView struct {
	Flags
	ShowOnboarding bool
	ShowGitHubStep bool
	ShowKeyStep    bool
	Stats          statsView
	Reviews        []reviewView
	Repositories   []*models.Repository
	Agents         []AgentInfo
}

// FormatConfidence renders an average confidence the way the stats panel
// shows it, e.g. 78.5 -> "78.5%", 80 -> "80%".
func FormatConfidence(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "%"
}

func (h *Handler) buildView(r *http.Request) (*dashboardView, error) {
	ctx := r.Context()
	flags := FlagsFromRequest(r)

	stats, err := h.source.Stats(ctx)
	if err != nil {
		return nil, err
	}
	reviews, err := h.source.RecentReviews(ctx, recentLimit)
	if err != nil {
		return nil, err
	}
	repos, err := h.source.Repositories(ctx)
	if err != nil {
		return nil, err
	}

	v := &dashboardView{
		Flags:          flags,
		ShowOnboarding: !flags.SignedIn || !flags.KeyValid,
		ShowGitHubStep: !flags.SignedIn,
		ShowKeyStep:    flags.SignedIn && !flags.KeyValid,
		Stats: statsView{
			TotalReviews:  stats.TotalReviews,
			AvgConfidence: FormatConfidence(stats.AverageConfidenceScore),
			TotalComments: stats.TotalComments,
			ActiveAgents:  len(h.agents),
		},
		Repositories: repos,
		Agents:       h.agents,
	}
	for _, rv := range reviews {
		v.Reviews = append(v.Reviews, reviewView{
			PRNumber:       rv.PRNumber,
			RepositoryName: rv.RepositoryName,
			Status:         string(rv.Status),
			Summary:        rv.Summary,
			Confidence:     rv.ConfidenceScore,
		})
	}
	return v, nil
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	v, err := h.buildView(r)
	if err != nil {
		slog.Error("dashboard data", "error", err)
		http.Error(w, "Failed to load dashboard", http.StatusInternalServerError)
		return
	}
	render(w, http.StatusOK, "dashboard.html", v)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if h.exchanger == nil || !h.exchanger.Configured() {
		http.Error(w, "GitHub sign-in is not configured", http.StatusServiceUnavailable)
		return
	}
	state := ulid.Make().String()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/auth",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.exchanger.AuthCodeURL(state), http.StatusFound)
}

type callbackView struct {
	Success bool
	Message string
}

func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	fail := func(msg string) {
		render(w, http.StatusOK, "callback.html", callbackView{Message: msg})
	}

	if q.Get("error") != "" {
		fail(msgAuthFailed)
		return
	}
	code := q.Get("code")
	if code == "" {
		fail(msgNoCode)
		return
	}
	if c, err := r.Cookie(stateCookie); err == nil && c.Value != "" && c.Value != q.Get("state") {
		slog.Warn("oauth state mismatch")
		fail(msgAuthFailed)
		return
	}
	if h.exchanger == nil {
		fail(auth.MsgGeneric)
		return
	}

	res := h.exchanger.Exchange(r.Context(), code)
	if !res.Success {
		msg := res.Message
		if msg == "" {
			msg = "Authentication failed."
		}
		fail(msg)
		return
	}

	http.SetCookie(w, &http.Cookie{Name: stateCookie, Path: "/auth", MaxAge: -1})
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    res.Token,
		Path:     "/",
		MaxAge:   int(sessionMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	slog.Info("user signed in", "github_id", res.User.ID, "username", res.User.Username)
	render(w, http.StatusOK, "callback.html", callbackView{Success: true, Message: msgRedirect})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	for _, name := range []string{SessionCookie, KeyValidCookie} {
		http.SetCookie(w, &http.Cookie{Name: name, Path: "/", MaxAge: -1})
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		slog.Error("render template", "template", name, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
