package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/codelion/codelion/internal/github"
)

const maxWebhookBody = 25 << 20

// metricEvent maps the unauthenticated event header onto a fixed label set.
func metricEvent(event string) string {
	switch event {
	case "pull_request", "pull_request_review", "ping":
		return event
	}
	return "other"
}

func (s *Server) githubWebhook(w http.ResponseWriter, r *http.Request) {
	event := r.Header.Get(github.EventHeader)
	label := metricEvent(event)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		s.metrics.ObserveWebhook(label, "invalid")
		writeError(w, http.StatusBadRequest, "Invalid payload")
		return
	}
	if !github.VerifySignature(s.webhookSecret, body, r.Header.Get(github.SignatureHeader)) {
		slog.Warn("webhook signature mismatch", "event", event)
		s.metrics.ObserveWebhook(label, "rejected")
		writeError(w, http.StatusUnauthorized, "Invalid signature")
		return
	}
	if !json.Valid(body) {
		s.metrics.ObserveWebhook(label, "invalid")
		writeError(w, http.StatusBadRequest, "Invalid payload")
		return
	}

	switch event {
	case "pull_request":
		ev, err := github.ParsePullRequestEvent(body)
		if err != nil {
			s.metrics.ObserveWebhook(label, "invalid")
			writeError(w, http.StatusBadRequest, "Invalid payload")
			return
		}
		slog.Info("pull request event",
			"repository", ev.Repository.FullName,
			"pr", ev.PRNumber(),
			"action", ev.Action,
		)
		if s.reviews != nil {
			s.reviews.Enqueue(r.Context(), ev)
		}
	case "pull_request_review":
		// Acknowledged; manual reviews are not tracked.
	default:
		slog.Debug("ignoring webhook event", "event", event)
	}

	s.metrics.ObserveWebhook(label, "accepted")
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}
