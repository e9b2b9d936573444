package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codelion/codelion/internal/git"
	"github.com/codelion/codelion/internal/github"
	"github.com/codelion/codelion/internal/models"
	"github.com/codelion/codelion/internal/output"
	"github.com/codelion/codelion/internal/reviewsvc"
	"github.com/codelion/codelion/internal/store"
)

var (
	reviewListStatus string
	reviewListRepo   string
	reviewListLimit  int
)

var reviewCmd = &cobra.Command{
	Use:     "review",
	Aliases: []string{"r"},
	Short:   "Run and inspect pull request reviews",
}

var reviewRunCmd = &cobra.Command{
	Use:   "run <owner/repo#N | N>",
	Short: "Review a pull request now",
	Long: `Fetch a pull request from GitHub, run every agent over its changed files,
store the results and (if review.post_comments is set) post inline comments.

A bare number reviews that pull request in the repository of the current
directory's origin remote.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return reviewRunRun(cmd.Context(), args[0])
	},
}

var reviewListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List stored reviews",
	RunE: func(cmd *cobra.Command, args []string) error {
		return reviewListRun(cmd.Context())
	},
}

var reviewShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a review with its comments and agent runs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return reviewShowRun(cmd.Context(), args[0])
	},
}

func init() {
	reviewListCmd.Flags().StringVar(&reviewListStatus, "status", "", "Filter by status (pending, in_progress, completed, failed)")
	reviewListCmd.Flags().StringVar(&reviewListRepo, "repo", "", "Filter by connected repository (owner/repo)")
	reviewListCmd.Flags().IntVarP(&reviewListLimit, "limit", "n", 20, "Maximum number of reviews")

	reviewCmd.AddCommand(reviewRunCmd)
	reviewCmd.AddCommand(reviewListCmd)
	reviewCmd.AddCommand(reviewShowCmd)
	rootCmd.AddCommand(reviewCmd)
}

// resolvePullRef accepts owner/repo#N, or N / #N for the current checkout.
func resolvePullRef(ref string) (owner, repo string, number int, err error) {
	if strings.Contains(ref, "/") {
		return github.ParsePullRef(ref)
	}
	number, err = strconv.Atoi(strings.TrimPrefix(ref, "#"))
	if err != nil || number <= 0 {
		return "", "", 0, fmt.Errorf("invalid pull request %q (use owner/repo#N or N)", ref)
	}
	owner, repo, err = git.RepoFromDir(".")
	if err != nil {
		return "", "", 0, fmt.Errorf("resolve repository from current directory: %w", err)
	}
	return owner, repo, number, nil
}

func reviewRunRun(ctx context.Context, ref string) error {
	owner, repo, number, err := resolvePullRef(ref)
	if err != nil {
		return err
	}

	s, err := getStore()
	if err != nil {
		return err
	}

	registry := newRegistry(newGenerator(ctx))
	svc := newReviewService(s, registry, newGitHubClient(), nil)

	ui.Info("Reviewing %s/%s#%d with %d agents...", owner, repo, number, registry.Len())
	rev, err := svc.RunForPullRequest(ctx, owner, repo, number)
	if errors.Is(err, reviewsvc.ErrNoGitHub) {
		return fmt.Errorf("%w (set github.token or CODELION_GITHUB_TOKEN)", err)
	}
	if err != nil {
		return err
	}

	ui.Success("Review %s completed", rev.ID)
	return printReview(ctx, s, rev)
}

func reviewListRun(ctx context.Context) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	filter := store.ReviewListFilter{Limit: reviewListLimit}
	if reviewListStatus != "" {
		filter.Status = models.ReviewStatus(reviewListStatus)
		if !filter.Status.Valid() {
			return fmt.Errorf("invalid status: %s", reviewListStatus)
		}
	}
	if reviewListRepo != "" {
		repo, err := s.GetRepositoryByFullName(ctx, reviewListRepo)
		if err != nil {
			return fmt.Errorf("repository %s: %w", reviewListRepo, err)
		}
		filter.RepositoryID = repo.ID
	}

	reviews, err := s.ListReviews(ctx, filter)
	if err != nil {
		return err
	}
	if len(reviews) == 0 {
		ui.Info("No reviews found")
		return nil
	}

	table := ui.Table([]string{"ID", "PR", "Repository", "Status", "Confidence", "Created"})
	for _, r := range reviews {
		_ = table.Append([]string{
			r.ID,
			fmt.Sprintf("#%d", r.PRNumber),
			r.RepositoryName,
			output.StatusColor(r.Status),
			output.ConfidenceColor(r.ConfidenceScore),
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	return table.Render()
}

func reviewShowRun(ctx context.Context, id string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	rev, err := s.GetReview(ctx, id)
	if err != nil {
		return err
	}
	return printReview(ctx, s, rev)
}

func printReview(ctx context.Context, s store.Store, rev *models.Review) error {
	out := ui.Out
	fmt.Fprintf(out, "%s  %s#%d\n", output.Cyan(rev.ID), rev.RepositoryName, rev.PRNumber)
	fmt.Fprintf(out, "  Status:     %s\n", output.StatusColor(rev.Status))
	fmt.Fprintf(out, "  Confidence: %s\n", output.ConfidenceColor(rev.ConfidenceScore))
	if rev.Summary != "" {
		fmt.Fprintf(out, "  Summary:    %s\n", rev.Summary)
	}

	comments, err := s.ListReviewComments(ctx, rev.ID)
	if err != nil {
		return err
	}
	if len(comments) > 0 {
		fmt.Fprintf(out, "\nComments (%d):\n", len(comments))
		table := ui.Table([]string{"Severity", "Type", "Location", "Comment"})
		for _, c := range comments {
			loc := c.FilePath
			if c.LineNumber > 0 {
				loc = fmt.Sprintf("%s:%d", c.FilePath, c.LineNumber)
			}
			_ = table.Append([]string{output.SeverityColor(c.Severity), string(c.CommentType), loc, truncate(c.Content, 80)})
		}
		if err := table.Render(); err != nil {
			return err
		}
	}

	runs, err := s.ListAgentRuns(ctx, rev.ID)
	if err != nil {
		return err
	}
	if len(runs) > 0 {
		fmt.Fprintf(out, "\nAgent runs (%d):\n", len(runs))
		table := ui.Table([]string{"Agent", "File", "Status", "Findings", "Time"})
		for _, r := range runs {
			status := string(r.Status)
			if r.Status == models.AgentRunError {
				status = output.Red(status)
			}
			_ = table.Append([]string{r.AgentName, r.FilePath, status, strconv.Itoa(r.FindingsCount), fmt.Sprintf("%dms", r.ExecutionMs)})
		}
		if err := table.Render(); err != nil {
			return err
		}
	}
	return nil
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
