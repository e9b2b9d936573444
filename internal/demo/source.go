// Package demo provides the fixed sample data the dashboard shows before a
// real review store is wired in. Every call returns fresh copies so callers
// may mutate the results.
package demo

import (
	"context"

	"github.com/codelion/codelion/internal/models"
)

// Source serves the sample reviews and statistics.
type Source struct{}

// NewSource returns the demo data source.
func NewSource() *Source { return &Source{} }

// RecentReviews returns up to limit sample reviews in their listed order.
// limit <= 0 returns all of them.
func (s *Source) RecentReviews(_ context.Context, limit int) ([]*models.Review, error) {
	n := len(recentReviews)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*models.Review, n)
	for i := range n {
		r := recentReviews[i]
		r.UpdatedAt = r.CreatedAt
		out[i] = &r
	}
	return out, nil
}

// Stats returns the sample statistics.
func (s *Source) Stats(context.Context) (*models.Stats, error) {
	return stats(), nil
}

// Repositories returns no repositories; the demo has none connected.
func (s *Source) Repositories(context.Context) ([]*models.Repository, error) {
	return nil, nil
}
