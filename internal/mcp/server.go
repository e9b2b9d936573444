// Package mcp exposes CodeLion reviews over the Model Context Protocol.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/codelion/codelion/internal/agents"
	"github.com/codelion/codelion/internal/github"
	"github.com/codelion/codelion/internal/models"
	"github.com/codelion/codelion/internal/store"
)

// Reviewer runs an on-demand review.
type Reviewer interface {
	RunForPullRequest(ctx context.Context, owner, repo string, number int) (*models.Review, error)
}

// Server wraps the review store and agent registry as MCP tools.
type Server struct {
	store    store.Store
	registry *agents.Registry
	reviewer Reviewer
	version  string
}

// NewServer creates the MCP server wrapper. reviewer may be nil, in which
// case the run tool is not offered.
func NewServer(s store.Store, registry *agents.Registry, reviewer Reviewer, version string) *Server {
	if version == "" {
		version = "dev"
	}
	return &Server{store: s, registry: registry, reviewer: reviewer, version: version}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("codelion", s.version, server.WithToolCapabilities(true))

	srv.AddTool(s.listReviewsTool())
	srv.AddTool(s.getReviewTool())
	srv.AddTool(s.reviewStatsTool())
	srv.AddTool(s.listAgentsTool())
	if s.reviewer != nil {
		srv.AddTool(s.runReviewTool())
	}

	return srv
}

// ServeStdio serves on stdin/stdout until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	stdioServer := server.NewStdioServer(s.MCPServer())
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// codelion_list_reviews
func (s *Server) listReviewsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("codelion_list_reviews",
		mcp.WithDescription("List recent code reviews, newest first. Returns a JSON array with id, github_pr_id, repository_name, status, summary and confidence_score."),
		mcp.WithString("status", mcp.Description("Filter by status: pending, in_progress, completed, failed")),
		mcp.WithString("repository_id", mcp.Description("Filter by connected repository id")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of reviews (default 20, max 100)")),
	)
	return tool, s.handleListReviews
}

func (s *Server) handleListReviews(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := store.ReviewListFilter{
		RepositoryID: request.GetString("repository_id", ""),
		Limit:        request.GetInt("limit", 20),
	}
	if filter.Limit < 1 || filter.Limit > 100 {
		return mcp.NewToolResultError("limit must be between 1 and 100"), nil
	}
	if st := request.GetString("status", ""); st != "" {
		filter.Status = models.ReviewStatus(st)
		if !filter.Status.Valid() {
			return mcp.NewToolResultError(fmt.Sprintf("invalid status: %s", st)), nil
		}
	}

	reviews, err := s.store.ListReviews(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list reviews: %v", err)), nil
	}
	if reviews == nil {
		reviews = []*models.Review{}
	}
	return jsonResult(reviews)
}

// codelion_get_review
func (s *Server) getReviewTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("codelion_get_review",
		mcp.WithDescription("Get one review with its comments and per-agent runs."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Review id")),
	)
	return tool, s.handleGetReview
}

func (s *Server) handleGetReview(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}

	rev, err := s.store.GetReview(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("review not found: %s", id)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get review: %v", err)), nil
	}
	comments, err := s.store.ListReviewComments(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list comments: %v", err)), nil
	}
	runs, err := s.store.ListAgentRuns(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list agent runs: %v", err)), nil
	}

	return jsonResult(struct {
		*models.Review
		Comments  []*models.ReviewComment `json:"comments"`
		AgentRuns []*models.AgentRun      `json:"agent_runs"`
	}{rev, comments, runs})
}

// codelion_review_stats
func (s *Server) reviewStatsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("codelion_review_stats",
		mcp.WithDescription("Aggregate review statistics: totals, counts per status, average confidence and comment count."),
	)
	return tool, s.handleReviewStats
}

func (s *Server) handleReviewStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.store.ReviewStats(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to compute stats: %v", err)), nil
	}
	return jsonResult(stats)
}

// codelion_list_agents
func (s *Server) listAgentsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("codelion_list_agents",
		mcp.WithDescription("List the review agents that run on every changed file."),
	)
	return tool, s.handleListAgents
}

func (s *Server) handleListAgents(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	type agentOut struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	out := []agentOut{}
	if s.registry != nil {
		for _, a := range s.registry.List() {
			out = append(out, agentOut{Name: a.Name(), Description: a.Description()})
		}
	}
	return jsonResult(out)
}

// codelion_run_review
func (s *Server) runReviewTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("codelion_run_review",
		mcp.WithDescription("Review a GitHub pull request now and return the stored review. Blocks until all agents finish."),
		mcp.WithString("pull_request", mcp.Required(), mcp.Description("Pull request reference, e.g. owner/repo#42")),
	)
	return tool, s.handleRunReview
}

func (s *Server) handleRunReview(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := request.RequireString("pull_request")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: pull_request"), nil
	}
	owner, repo, number, err := github.ParsePullRef(ref)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	rev, err := s.reviewer.RunForPullRequest(ctx, owner, repo, number)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("review failed: %v", err)), nil
	}
	return jsonResult(rev)
}
