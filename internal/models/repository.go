package models

import "time"

// Repository is a GitHub repository connected to CodeLion.
type Repository struct {
	ID          string    `json:"id"`
	GitHubID    int64     `json:"github_id"`
	Name        string    `json:"name"`
	FullName    string    `json:"full_name"`
	Description string    `json:"description"`
	Private     bool      `json:"private"`
	HTMLURL     string    `json:"html_url"`
	CloneURL    string    `json:"clone_url"`
	IsActive    bool      `json:"is_active"`
	WebhookID   int64     `json:"webhook_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
