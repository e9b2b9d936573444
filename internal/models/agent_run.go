package models

import "time"

// AgentRunStatus is the outcome of a single agent analysing a single file.
type AgentRunStatus string

const (
	AgentRunSuccess AgentRunStatus = "success"
	AgentRunWarning AgentRunStatus = "warning"
	AgentRunError   AgentRunStatus = "error"
)

// AgentRun records one agent execution inside a review.
type AgentRun struct {
	ID            string         `json:"id"`
	ReviewID      string         `json:"review_id"`
	AgentName     string         `json:"agent_name"`
	FilePath      string         `json:"file_path,omitempty"`
	Status        AgentRunStatus `json:"status"`
	FindingsCount int            `json:"findings_count"`
	Confidence    int            `json:"confidence_score"`
	ExecutionMs   int64          `json:"execution_time"`
	ErrorMessage  string         `json:"error_message,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
}
