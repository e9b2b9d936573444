// Package api serves the CodeLion HTTP surface: the browser-facing auth and
// key-validation endpoints, the v1 JSON API, GitHub webhooks, health and
// metrics.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/codelion/codelion/internal/agents"
	"github.com/codelion/codelion/internal/apierr"
	"github.com/codelion/codelion/internal/auth"
	"github.com/codelion/codelion/internal/dashboard"
	"github.com/codelion/codelion/internal/gemini"
	"github.com/codelion/codelion/internal/github"
	"github.com/codelion/codelion/internal/metrics"
	"github.com/codelion/codelion/internal/store"
)

// Exchanger trades an OAuth code for a session.
type Exchanger interface {
	Exchange(ctx context.Context, code string) auth.Result
}

// KeyValidator checks a Gemini API key.
type KeyValidator interface {
	Validate(ctx context.Context, key string) gemini.Validation
}

// RepoClient is the part of the GitHub client used to connect repositories.
type RepoClient interface {
	GetRepository(ctx context.Context, owner, repo string) (*github.Repository, error)
	CreateWebhook(ctx context.Context, owner, repo, url, secret string) (*github.Webhook, error)
	DeleteWebhook(ctx context.Context, owner, repo string, id int64) error
}

// Enqueuer accepts pull request events for background review.
type Enqueuer interface {
	Enqueue(ctx context.Context, ev *github.PullRequestEvent)
}

// Options configures a Server. Only Store and Registry are required.
type Options struct {
	Store     store.Store
	Registry  *agents.Registry
	GitHub    RepoClient
	Reviews   Enqueuer
	Exchanger Exchanger
	Validator KeyValidator
	Metrics   *metrics.Metrics
	Dashboard *dashboard.Handler

	// WebhookSecret verifies X-Hub-Signature-256; empty disables the check.
	WebhookSecret string
	// BaseURL is the public address GitHub delivers webhooks to. When empty,
	// connecting a repository does not install a webhook.
	BaseURL string
}

// Server provides the HTTP handlers.
type Server struct {
	store         store.Store
	registry      *agents.Registry
	gh            RepoClient
	reviews       Enqueuer
	exchanger     Exchanger
	validator     KeyValidator
	metrics       *metrics.Metrics
	dashboard     *dashboard.Handler
	webhookSecret string
	baseURL       string
}

// NewServer creates a new API server.
func NewServer(opts Options) *Server {
	return &Server{
		store:         opts.Store,
		registry:      opts.Registry,
		gh:            opts.GitHub,
		reviews:       opts.Reviews,
		exchanger:     opts.Exchanger,
		validator:     opts.Validator,
		metrics:       opts.Metrics,
		dashboard:     opts.Dashboard,
		webhookSecret: opts.WebhookSecret,
		baseURL:       strings.TrimRight(opts.BaseURL, "/"),
	}
}

// Router returns an http.Handler for all routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/github", s.githubAuth)
	mux.HandleFunc("POST /api/validate-gemini-key", s.validateGeminiKey)

	mux.HandleFunc("GET /api/v1/reviews", s.authed(s.listReviews))
	mux.HandleFunc("GET /api/v1/reviews/stats/summary", s.authed(s.reviewStats))
	mux.HandleFunc("GET /api/v1/reviews/{id}", s.authed(s.getReview))

	mux.HandleFunc("GET /api/v1/repositories", s.authed(s.listRepositories))
	mux.HandleFunc("POST /api/v1/repositories/connect", s.authed(s.connectRepository))
	mux.HandleFunc("DELETE /api/v1/repositories/{id}", s.authed(s.disconnectRepository))

	mux.HandleFunc("GET /api/v1/agents", s.authed(s.listAgents))

	mux.HandleFunc("POST /api/webhooks/github", s.githubWebhook)

	mux.HandleFunc("GET /health", s.health)
	mux.Handle("GET /metrics", s.metrics.Handler())

	if s.dashboard != nil {
		s.dashboard.Register(mux)
	}

	return loggingMiddleware(corsMiddleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

// authed requires a bearer token or session cookie. Tokens are placeholders
// and are not verified beyond being present.
func (s *Server) authed(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sessionToken(r) == "" {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		h(w, r)
	}
}

func sessionToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if tok, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(tok)
		}
	}
	if c, err := r.Cookie(dashboard.SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeErr resolves err through apierr. Internal errors are logged and
// reported generically.
func writeErr(w http.ResponseWriter, err error) {
	status, msg := apierr.Resolve(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}
	writeError(w, status, msg)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	n := 0
	if s.registry != nil {
		n = s.registry.Len()
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "healthy", "agents": n})
}
