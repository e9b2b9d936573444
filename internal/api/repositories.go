package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/codelion/codelion/internal/apierr"
	"github.com/codelion/codelion/internal/github"
	"github.com/codelion/codelion/internal/models"
	"github.com/codelion/codelion/internal/store"
)

const (
	webhookPath    = "/api/webhooks/github"
	maxConnectBody = 64 << 10
)

func (s *Server) listRepositories(w http.ResponseWriter, r *http.Request) {
	repos, err := s.store.ListRepositories(r.Context(), true)
	if err != nil {
		writeErr(w, err)
		return
	}
	if repos == nil {
		repos = []*models.Repository{}
	}
	writeJSON(w, http.StatusOK, repos)
}

type connectRequest struct {
	Owner string `json:"owner"`
	Repo  string `json:"repo"`
}

func (s *Server) connectRepository(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxConnectBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Owner = strings.TrimSpace(req.Owner)
	req.Repo = strings.TrimSpace(req.Repo)
	if req.Owner == "" || req.Repo == "" {
		writeError(w, http.StatusBadRequest, "owner and repo are required")
		return
	}

	repo, err := s.connect(r.Context(), req.Owner, req.Repo)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":    "Repository connected successfully",
		"repository": repo,
	})
}

func (s *Server) connect(ctx context.Context, owner, name string) (*models.Repository, error) {
	if s.gh == nil {
		return nil, apierr.New(apierr.TypeUnavailable, nil, "GitHub token not configured")
	}

	fullName := owner + "/" + name
	existing, err := s.store.GetRepositoryByFullName(ctx, fullName)
	switch {
	case err == nil && existing.IsActive:
		return nil, apierr.New(apierr.TypeConflict, nil, "Repository already connected")
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return nil, err
	}

	info, err := s.gh.GetRepository(ctx, owner, name)
	if err != nil {
		return nil, githubError(err, "Repository not found on GitHub")
	}

	var hookID int64
	if s.baseURL != "" {
		hook, err := s.gh.CreateWebhook(ctx, owner, name, s.baseURL+webhookPath, s.webhookSecret)
		if err != nil {
			return nil, githubError(err, "Repository not found on GitHub")
		}
		hookID = hook.ID
	} else {
		slog.Warn("base_url not set; repository connected without a webhook", "repository", fullName)
	}

	repo := existing
	if repo == nil {
		repo = &models.Repository{}
	}
	repo.GitHubID = info.ID
	repo.Name = info.Name
	repo.FullName = info.FullName
	repo.Description = info.Description
	repo.Private = info.Private
	repo.HTMLURL = info.HTMLURL
	repo.CloneURL = info.CloneURL
	repo.IsActive = true
	repo.WebhookID = hookID

	if existing != nil {
		err = s.store.UpdateRepository(ctx, repo)
	} else {
		err = s.store.CreateRepository(ctx, repo)
	}
	if err != nil {
		if hookID != 0 {
			// Without a stored repository nothing would ever remove the hook.
			if derr := s.gh.DeleteWebhook(ctx, owner, name, hookID); derr != nil {
				slog.Warn("remove webhook after failed connect", "repository", fullName, "webhook_id", hookID, "error", derr)
			}
		}
		return nil, err
	}
	slog.Info("repository connected", "repository", repo.FullName, "webhook_id", hookID)
	return repo, nil
}

func (s *Server) disconnectRepository(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	repo, err := s.store.GetRepository(ctx, r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeErr(w, apierr.New(apierr.TypeNotFound, err, "Repository not found"))
		return
	}
	if err != nil {
		writeErr(w, err)
		return
	}

	if repo.WebhookID != 0 && s.gh != nil {
		owner, name, err := github.SplitFullName(repo.FullName)
		if err != nil {
			writeErr(w, err)
			return
		}
		err = s.gh.DeleteWebhook(ctx, owner, name, repo.WebhookID)
		if err != nil && !errors.Is(err, github.ErrNotFound) {
			writeErr(w, githubError(err, "Webhook not found"))
			return
		}
	}

	repo.IsActive = false
	repo.WebhookID = 0
	if err := s.store.UpdateRepository(ctx, repo); err != nil {
		writeErr(w, err)
		return
	}
	slog.Info("repository disconnected", "repository", repo.FullName)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Repository disconnected successfully"})
}

func githubError(err error, notFoundMsg string) error {
	switch {
	case errors.Is(err, github.ErrNotFound):
		return apierr.New(apierr.TypeNotFound, err, "%s", notFoundMsg)
	case errors.Is(err, github.ErrUnauthorized):
		return apierr.New(apierr.TypeUnavailable, err, "GitHub authentication failed")
	}
	return err
}
