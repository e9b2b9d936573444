package models

import "time"

// ReviewStatus represents the lifecycle state of a pull-request review.
type ReviewStatus string

const (
	ReviewStatusPending    ReviewStatus = "pending"
	ReviewStatusInProgress ReviewStatus = "in_progress"
	ReviewStatusCompleted  ReviewStatus = "completed"
	ReviewStatusFailed     ReviewStatus = "failed"
)

// ReviewStatuses lists every valid status in display order.
var ReviewStatuses = []ReviewStatus{
	ReviewStatusCompleted,
	ReviewStatusInProgress,
	ReviewStatusPending,
	ReviewStatusFailed,
}

// Valid reports whether s is one of the fixed status tags.
func (s ReviewStatus) Valid() bool {
	switch s {
	case ReviewStatusPending, ReviewStatusInProgress, ReviewStatusCompleted, ReviewStatusFailed:
		return true
	}
	return false
}

// Review is one code-review run against a pull request.
type Review struct {
	ID              string       `json:"id"`
	RepositoryID    string       `json:"repository_id,omitempty"`
	RepositoryName  string       `json:"repository_name"`
	PRNumber        int          `json:"github_pr_id"`
	Status          ReviewStatus `json:"status"`
	Summary         string       `json:"summary"`
	ConfidenceScore int          `json:"confidence_score"` // 0-100
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// CommentType is the review aspect a comment belongs to.
type CommentType string

const (
	CommentTypeSecurity      CommentType = "security"
	CommentTypePerformance   CommentType = "performance"
	CommentTypeStyle         CommentType = "style"
	CommentTypeBug           CommentType = "bug"
	CommentTypeDocumentation CommentType = "documentation"
)

// Severity ranks how serious a finding is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ReviewComment is a single finding persisted against a review.
type ReviewComment struct {
	ID          string      `json:"id"`
	ReviewID    string      `json:"review_id"`
	FilePath    string      `json:"file_path"`
	LineNumber  int         `json:"line_number,omitempty"` // 0 = not tied to a line
	CommentType CommentType `json:"comment_type"`
	Content     string      `json:"content"`
	Severity    Severity    `json:"severity"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Stats aggregates review counts for the dashboard.
type Stats struct {
	TotalReviews           int                  `json:"total_reviews"`
	StatusCounts           map[ReviewStatus]int `json:"status_counts"`
	AverageConfidenceScore float64              `json:"average_confidence_score"`
	TotalComments          int                  `json:"total_comments"`
}

// NewStats returns a Stats with every status tag present at zero.
func NewStats() *Stats {
	counts := make(map[ReviewStatus]int, len(ReviewStatuses))
	for _, st := range ReviewStatuses {
		counts[st] = 0
	}
	return &Stats{StatusCounts: counts}
}
