// Package reviewsvc drives a review from a pull request event to persisted
// results and inline GitHub comments.
package reviewsvc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/codelion/codelion/internal/agents"
	"github.com/codelion/codelion/internal/github"
	"github.com/codelion/codelion/internal/metrics"
	"github.com/codelion/codelion/internal/models"
	"github.com/codelion/codelion/internal/store"
)

// ErrNoGitHub is returned when a review needs GitHub but no client is set.
var ErrNoGitHub = errors.New("GitHub token not configured")

// GitHub is the subset of the GitHub client the service uses.
type GitHub interface {
	GetPullRequest(ctx context.Context, owner, repo string, number int) (*github.PullRequest, error)
	PostReviewComment(ctx context.Context, owner, repo string, number int, commitSHA, path string, line int, body string) error
}

// Analyzer runs the agents over a pull request.
type Analyzer interface {
	AnalyzePullRequest(ctx context.Context, pr agents.PullRequest) *agents.Analysis
}

// Options configures a Service. GitHub and Metrics may be nil.
type Options struct {
	Store        store.Store
	GitHub       GitHub
	Analyzer     Analyzer
	Metrics      *metrics.Metrics
	PostComments bool
}

// Service coordinates store, GitHub and agents for a review.
type Service struct {
	store        store.Store
	gh           GitHub
	analyzer     Analyzer
	metrics      *metrics.Metrics
	postComments bool

	wg sync.WaitGroup
}

// New creates a Service.
func New(opts Options) *Service {
	return &Service{
		store:        opts.Store,
		gh:           opts.GitHub,
		analyzer:     opts.Analyzer,
		metrics:      opts.Metrics,
		postComments: opts.PostComments,
	}
}

// HandlePullRequestEvent reacts to a pull_request webhook. opened and
// synchronize run a review, closed marks the latest review completed.
// Events for repositories that are not connected are ignored.
func (s *Service) HandlePullRequestEvent(ctx context.Context, ev *github.PullRequestEvent) error {
	repo, err := s.store.GetRepositoryByGitHubID(ctx, ev.Repository.ID)
	if errors.Is(err, store.ErrNotFound) {
		slog.Debug("ignoring event for unconnected repository", "repository", ev.Repository.FullName)
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup repository: %w", err)
	}
	if !repo.IsActive {
		slog.Debug("ignoring event for inactive repository", "repository", repo.FullName)
		return nil
	}

	number := ev.PRNumber()
	switch ev.Action {
	case "opened", "synchronize":
		_, err := s.review(ctx, repo.ID, repo.FullName, number, true)
		return err
	case "closed":
		return s.markCompleted(ctx, repo.ID, number)
	}
	return nil
}

// Enqueue processes ev in the background. The work outlives the request
// context; Wait blocks until all queued events are done.
func (s *Service) Enqueue(ctx context.Context, ev *github.PullRequestEvent) {
	ctx = context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.HandlePullRequestEvent(ctx, ev); err != nil {
			slog.Error("pull request event failed",
				"repository", ev.Repository.FullName,
				"pr", ev.PRNumber(),
				"action", ev.Action,
				"error", err,
			)
		}
	}()
}

// Wait blocks until all enqueued events have been processed.
func (s *Service) Wait() {
	s.wg.Wait()
}

// RunForPullRequest reviews owner/repo#number on demand. The repository
// does not need to be connected; if it is, the review is attached to it.
func (s *Service) RunForPullRequest(ctx context.Context, owner, repo string, number int) (*models.Review, error) {
	fullName := owner + "/" + repo
	var repoID string
	r, err := s.store.GetRepositoryByFullName(ctx, fullName)
	switch {
	case err == nil:
		repoID = r.ID
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("lookup repository: %w", err)
	}
	return s.review(ctx, repoID, fullName, number, repoID != "")
}

func (s *Service) markCompleted(ctx context.Context, repoID string, number int) error {
	rev, err := s.store.GetReviewByPR(ctx, repoID, number)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	rev.Status = models.ReviewStatusCompleted
	if err := s.store.UpdateReview(ctx, rev); err != nil {
		return fmt.Errorf("complete review: %w", err)
	}
	return nil
}

// review runs one full review. reuse selects the latest existing review for
// the pull request instead of creating a new one.
func (s *Service) review(ctx context.Context, repoID, fullName string, number int, reuse bool) (*models.Review, error) {
	if s.gh == nil {
		return nil, ErrNoGitHub
	}
	owner, name, err := github.SplitFullName(fullName)
	if err != nil {
		return nil, err
	}

	rev, err := s.openReview(ctx, repoID, fullName, number, reuse)
	if err != nil {
		return nil, err
	}
	log := slog.With("review_id", rev.ID, "repository", fullName, "pr", number)
	log.Info("review started")

	pr, err := s.gh.GetPullRequest(ctx, owner, name, number)
	if err != nil {
		return rev, s.fail(ctx, rev, fmt.Errorf("fetch pull request: %w", err))
	}

	input := agents.PullRequest{Title: pr.Title, Body: pr.Body, Repository: fullName}
	for _, f := range pr.Files {
		input.Files = append(input.Files, agents.ChangedFile{Filename: f.Filename, Patch: f.Patch})
	}
	analysis := s.analyzer.AnalyzePullRequest(ctx, input)

	rev.Status = models.ReviewStatusCompleted
	rev.Summary = analysis.Summary
	rev.ConfidenceScore = analysis.Confidence
	if err := s.store.UpdateReview(ctx, rev); err != nil {
		return rev, s.fail(ctx, rev, fmt.Errorf("save review: %w", err))
	}
	if err := s.saveResults(ctx, rev, analysis); err != nil {
		return rev, s.fail(ctx, rev, err)
	}
	s.metrics.ObserveReview(string(models.ReviewStatusCompleted))
	if err := analysis.Errors(); err != nil {
		log.Warn("some agents failed", "error", err)
	}
	log.Info("review completed", "confidence", rev.ConfidenceScore, "findings", len(analysis.Findings()))

	if s.postComments {
		if err := s.postFindings(ctx, owner, name, number, pr.HeadSHA(), analysis.Findings()); err != nil {
			log.Warn("posting review comments failed", "error", err)
		}
	}
	return rev, nil
}

func (s *Service) openReview(ctx context.Context, repoID, fullName string, number int, reuse bool) (*models.Review, error) {
	var rev *models.Review
	if reuse {
		existing, err := s.store.GetReviewByPR(ctx, repoID, number)
		switch {
		case err == nil:
			rev = existing
		case !errors.Is(err, store.ErrNotFound):
			return nil, fmt.Errorf("lookup review: %w", err)
		}
	}
	if rev == nil {
		rev = &models.Review{RepositoryID: repoID, RepositoryName: fullName, PRNumber: number}
		if err := s.store.CreateReview(ctx, rev); err != nil {
			return nil, err
		}
	}
	rev.Status = models.ReviewStatusInProgress
	if err := s.store.UpdateReview(ctx, rev); err != nil {
		return nil, fmt.Errorf("start review: %w", err)
	}
	return rev, nil
}

func (s *Service) saveResults(ctx context.Context, rev *models.Review, analysis *agents.Analysis) error {
	for _, res := range analysis.Results {
		done := time.Now().UTC()
		run := &models.AgentRun{
			ReviewID:      rev.ID,
			AgentName:     res.AgentName,
			FilePath:      res.FilePath,
			Status:        res.Status,
			FindingsCount: len(res.Findings),
			Confidence:    res.Confidence,
			ExecutionMs:   res.ExecutionMs,
			ErrorMessage:  res.ErrorMessage,
			CreatedAt:     done.Add(-time.Duration(res.ExecutionMs) * time.Millisecond),
			CompletedAt:   &done,
		}
		if err := s.store.CreateAgentRun(ctx, run); err != nil {
			return fmt.Errorf("save agent run: %w", err)
		}
		s.metrics.ObserveAgentRun(res.AgentName, string(res.Status), time.Duration(res.ExecutionMs)*time.Millisecond)

		for _, f := range res.Findings {
			c := &models.ReviewComment{
				ReviewID:    rev.ID,
				FilePath:    f.FilePath,
				LineNumber:  f.LineNumber,
				CommentType: f.Type,
				Content:     f.Description,
				Severity:    f.Severity,
			}
			if err := s.store.CreateReviewComment(ctx, c); err != nil {
				return fmt.Errorf("save review comment: %w", err)
			}
		}
	}
	return nil
}

// postFindings posts every finding tied to a line. Failures do not stop the
// remaining comments and are returned together.
func (s *Service) postFindings(ctx context.Context, owner, repo string, number int, sha string, findings []agents.Finding) error {
	var merr *multierror.Error
	for _, f := range findings {
		if f.LineNumber <= 0 || f.FilePath == "" {
			continue
		}
		if err := s.gh.PostReviewComment(ctx, owner, repo, number, sha, f.FilePath, f.LineNumber, CommentBody(f)); err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	return merr.ErrorOrNil()
}

// CommentBody renders a finding as a GitHub comment.
func CommentBody(f agents.Finding) string {
	kind := string(f.Type)
	if kind != "" {
		kind = strings.ToUpper(kind[:1]) + kind[1:]
	}
	body := fmt.Sprintf("**%s Review** (%s)\n\n%s", kind, f.Severity, f.Description)
	if f.Suggestion != "" {
		body += "\n\n**Suggestion:** " + f.Suggestion
	}
	return body
}

func (s *Service) fail(ctx context.Context, rev *models.Review, cause error) error {
	rev.Status = models.ReviewStatusFailed
	if err := s.store.UpdateReview(ctx, rev); err != nil {
		cause = multierror.Append(cause, fmt.Errorf("mark review failed: %w", err))
	}
	s.metrics.ObserveReview(string(models.ReviewStatusFailed))
	slog.Error("review failed", "review_id", rev.ID, "error", cause)
	return cause
}
