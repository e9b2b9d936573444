package store

import (
	"context"
	"errors"

	"github.com/codelion/codelion/internal/models"
)

// ErrNotFound is returned (wrapped) when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ReviewListFilter specifies filters for listing reviews.
type ReviewListFilter struct {
	RepositoryID string
	Status       models.ReviewStatus
	Limit        int
	Offset       int
}

// Store defines the persistence interface for codelion.
type Store interface {
	// Repositories
	CreateRepository(ctx context.Context, r *models.Repository) error
	GetRepository(ctx context.Context, id string) (*models.Repository, error)
	GetRepositoryByGitHubID(ctx context.Context, githubID int64) (*models.Repository, error)
	GetRepositoryByFullName(ctx context.Context, fullName string) (*models.Repository, error)
	ListRepositories(ctx context.Context, activeOnly bool) ([]*models.Repository, error)
	UpdateRepository(ctx context.Context, r *models.Repository) error

	// Reviews
	CreateReview(ctx context.Context, r *models.Review) error
	GetReview(ctx context.Context, id string) (*models.Review, error)
	GetReviewByPR(ctx context.Context, repositoryID string, prNumber int) (*models.Review, error)
	ListReviews(ctx context.Context, filter ReviewListFilter) ([]*models.Review, error)
	UpdateReview(ctx context.Context, r *models.Review) error
	ReviewStats(ctx context.Context) (*models.Stats, error)

	// Review comments
	CreateReviewComment(ctx context.Context, c *models.ReviewComment) error
	ListReviewComments(ctx context.Context, reviewID string) ([]*models.ReviewComment, error)

	// Agent runs
	CreateAgentRun(ctx context.Context, run *models.AgentRun) error
	ListAgentRuns(ctx context.Context, reviewID string) ([]*models.AgentRun, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
