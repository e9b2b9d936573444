// Package github is a small client for the GitHub REST API endpoints the
// review service needs, plus webhook payload helpers.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultAPIURL = "https://api.github.com"
	filesPerPage  = 100
	// GitHub stops listing pull request files after 3000.
	maxFilePages = 30
)

var (
	// ErrNotFound is returned for 404 responses.
	ErrNotFound = errors.New("github: not found")
	// ErrUnauthorized is returned for 401 and 403 responses.
	ErrUnauthorized = errors.New("github: authentication failed")
)

// Client provides access to the GitHub REST API.
type Client struct {
	token   string
	apiURL  string
	httpCli *http.Client
}

// NewClient creates a client authenticating with token. An empty apiURL
// uses api.github.com; a nil httpCli gets a 60s timeout client.
func NewClient(token, apiURL string, httpCli *http.Client) *Client {
	apiURL = strings.TrimRight(apiURL, "/")
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	if httpCli == nil {
		httpCli = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{token: token, apiURL: apiURL, httpCli: httpCli}
}

// Repository is the subset of repository metadata CodeLion stores.
type Repository struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	FullName    string `json:"full_name"`
	Description string `json:"description"`
	Private     bool   `json:"private"`
	HTMLURL     string `json:"html_url"`
	CloneURL    string `json:"clone_url"`
}

// File is a changed file in a pull request.
type File struct {
	Filename  string `json:"filename"`
	Status    string `json:"status"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Changes   int    `json:"changes"`
	Patch     string `json:"patch"`
}

// PullRequest holds pull request metadata and its changed files.
type PullRequest struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	State  string `json:"state"`
	Head   struct {
		SHA string `json:"sha"`
	} `json:"head"`
	Base struct {
		Repo Repository `json:"repo"`
	} `json:"base"`

	Files []File `json:"-"`
}

// HeadSHA returns the latest commit on the pull request branch.
func (p *PullRequest) HeadSHA() string { return p.Head.SHA }

// Webhook is a repository hook as returned by GitHub.
type Webhook struct {
	ID     int64    `json:"id"`
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Active bool     `json:"active"`
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpCli.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, strings.TrimSpace(string(respBody)))
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return fmt.Errorf("GitHub rejected request (422): %s", strings.TrimSpace(string(respBody)))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("GitHub API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

// GetRepository fetches repository metadata.
func (c *Client) GetRepository(ctx context.Context, owner, repo string) (*Repository, error) {
	var r Repository
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/repos/%s/%s", owner, repo), nil, &r); err != nil {
		return nil, fmt.Errorf("get repository %s/%s: %w", owner, repo, err)
	}
	return &r, nil
}

// GetPullRequest fetches a pull request together with all its changed files.
func (c *Client) GetPullRequest(ctx context.Context, owner, repo string, number int) (*PullRequest, error) {
	var pr PullRequest
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/repos/%s/%s/pulls/%d", owner, repo, number), nil, &pr); err != nil {
		return nil, fmt.Errorf("get pull request %s/%s#%d: %w", owner, repo, number, err)
	}

	for page := 1; page <= maxFilePages; page++ {
		var files []File
		path := fmt.Sprintf("/repos/%s/%s/pulls/%d/files?per_page=%d&page=%d", owner, repo, number, filesPerPage, page)
		if err := c.do(ctx, http.MethodGet, path, nil, &files); err != nil {
			return nil, fmt.Errorf("list pull request files: %w", err)
		}
		pr.Files = append(pr.Files, files...)
		if len(files) < filesPerPage {
			break
		}
	}
	return &pr, nil
}

// CreateWebhook installs a JSON webhook for pull request events. secret may
// be empty.
func (c *Client) CreateWebhook(ctx context.Context, owner, repo, url, secret string) (*Webhook, error) {
	cfg := map[string]string{"url": url, "content_type": "json"}
	if secret != "" {
		cfg["secret"] = secret
	}
	in := map[string]any{
		"name":   "web",
		"config": cfg,
		"events": []string{"pull_request", "pull_request_review"},
		"active": true,
	}

	var hook Webhook
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/repos/%s/%s/hooks", owner, repo), in, &hook); err != nil {
		return nil, fmt.Errorf("create webhook: %w", err)
	}
	return &hook, nil
}

// DeleteWebhook removes a repository hook.
func (c *Client) DeleteWebhook(ctx context.Context, owner, repo string, id int64) error {
	if err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/repos/%s/%s/hooks/%d", owner, repo, id), nil, nil); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	return nil
}

// PostReviewComment posts an inline comment on line of path at commitSHA.
func (c *Client) PostReviewComment(ctx context.Context, owner, repo string, number int, commitSHA, path string, line int, body string) error {
	in := map[string]any{
		"body":      body,
		"commit_id": commitSHA,
		"path":      path,
		"line":      line,
		"side":      "RIGHT",
	}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/repos/%s/%s/pulls/%d/comments", owner, repo, number), in, nil); err != nil {
		return fmt.Errorf("post review comment on %s:%d: %w", path, line, err)
	}
	return nil
}
