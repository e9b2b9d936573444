package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/codelion/codelion/internal/apierr"
	"github.com/codelion/codelion/internal/models"
	"github.com/codelion/codelion/internal/store"
)

const (
	defaultReviewLimit = 20
	maxReviewLimit     = 100
)

func parseReviewFilter(r *http.Request) (store.ReviewListFilter, error) {
	q := r.URL.Query()
	f := store.ReviewListFilter{
		RepositoryID: q.Get("repository_id"),
		Limit:        defaultReviewLimit,
	}
	if v := q.Get("status"); v != "" {
		st := models.ReviewStatus(v)
		if !st.Valid() {
			return f, apierr.New(apierr.TypeBadRequest, nil, "invalid status %q", v)
		}
		f.Status = st
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxReviewLimit {
			return f, apierr.New(apierr.TypeBadRequest, err, "limit must be between 1 and %d", maxReviewLimit)
		}
		f.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, apierr.New(apierr.TypeBadRequest, err, "offset must be a non-negative integer")
		}
		f.Offset = n
	}
	return f, nil
}

func (s *Server) listReviews(w http.ResponseWriter, r *http.Request) {
	filter, err := parseReviewFilter(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	reviews, err := s.store.ListReviews(r.Context(), filter)
	if err != nil {
		writeErr(w, err)
		return
	}
	if reviews == nil {
		reviews = []*models.Review{}
	}
	writeJSON(w, http.StatusOK, reviews)
}

type reviewDetail struct {
	*models.Review
	Comments  []*models.ReviewComment `json:"comments"`
	AgentRuns []*models.AgentRun      `json:"agent_runs"`
}

func (s *Server) getReview(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ctx := r.Context()

	rev, err := s.store.GetReview(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		writeErr(w, apierr.New(apierr.TypeNotFound, err, "Review not found"))
		return
	}
	if err != nil {
		writeErr(w, err)
		return
	}

	comments, err := s.store.ListReviewComments(ctx, id)
	if err != nil {
		writeErr(w, err)
		return
	}
	runs, err := s.store.ListAgentRuns(ctx, id)
	if err != nil {
		writeErr(w, err)
		return
	}
	if comments == nil {
		comments = []*models.ReviewComment{}
	}
	if runs == nil {
		runs = []*models.AgentRun{}
	}

	writeJSON(w, http.StatusOK, reviewDetail{Review: rev, Comments: comments, AgentRuns: runs})
}

func (s *Server) reviewStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.ReviewStats(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type agentInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Server) listAgents(w http.ResponseWriter, r *http.Request) {
	out := []agentInfo{}
	if s.registry != nil {
		for _, a := range s.registry.List() {
			out = append(out, agentInfo{Name: a.Name(), Description: a.Description()})
		}
	}
	writeJSON(w, http.StatusOK, out)
}
