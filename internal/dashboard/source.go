package dashboard

import (
	"context"

	"github.com/codelion/codelion/internal/models"
	"github.com/codelion/codelion/internal/store"
)

// Source supplies the data the dashboard renders.
type Source interface {
	RecentReviews(ctx context.Context, limit int) ([]*models.Review, error)
	Stats(ctx context.Context) (*models.Stats, error)
	Repositories(ctx context.Context) ([]*models.Repository, error)
}

// StoreSource reads dashboard data from the review store.
type StoreSource struct {
	Store store.Store
}

func (s StoreSource) RecentReviews(ctx context.Context, limit int) ([]*models.Review, error) {
	return s.Store.ListReviews(ctx, store.ReviewListFilter{Limit: limit})
}

func (s StoreSource) Stats(ctx context.Context) (*models.Stats, error) {
	return s.Store.ReviewStats(ctx)
}

func (s StoreSource) Repositories(ctx context.Context) ([]*models.Repository, error) {
	return s.Store.ListRepositories(ctx, true)
}
