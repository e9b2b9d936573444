package demo

import (
	"time"

	"github.com/codelion/codelion/internal/models"
)

var recentReviews = []models.Review{
	{
		ID:              "1",
		PRNumber:        123,
		RepositoryName:  "myorg/myapp",
		Status:          models.ReviewStatusCompleted,
		Summary:         "Found 3 security issues and 2 performance improvements",
		ConfidenceScore: 85,
		CreatedAt:       time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
	},
	{
		ID:              "2",
		PRNumber:        124,
		RepositoryName:  "myorg/myapp",
		Status:          models.ReviewStatusInProgress,
		Summary:         "Analyzing code changes...",
		ConfidenceScore: 0,
		CreatedAt:       time.Date(2024, 1, 15, 11, 0, 0, 0, time.UTC),
	},
}

func stats() *models.Stats {
	return &models.Stats{
		TotalReviews: 15,
		StatusCounts: map[models.ReviewStatus]int{
			models.ReviewStatusCompleted:  12,
			models.ReviewStatusInProgress: 2,
			models.ReviewStatusPending:    1,
			models.ReviewStatusFailed:     0,
		},
		AverageConfidenceScore: 78.5,
		TotalComments:          45,
	}
}
