package cmd

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codelion/codelion/internal/models"
	"github.com/codelion/codelion/internal/store"
)

// seedReviews stores one connected repository with a completed and a failed review.
func seedReviews(t *testing.T) (store.Store, *models.Review) {
	t.Helper()
	s, err := getStore()
	require.NoError(t, err)
	ctx := context.Background()

	repo := &models.Repository{GitHubID: 1, Name: "api", FullName: "acme/api", IsActive: true}
	require.NoError(t, s.CreateRepository(ctx, repo))

	done := &models.Review{
		RepositoryID: repo.ID, RepositoryName: repo.FullName, PRNumber: 12,
		Status: models.ReviewStatusCompleted, Summary: "Looks fine", ConfidenceScore: 88,
	}
	require.NoError(t, s.CreateReview(ctx, done))
	require.NoError(t, s.CreateReviewComment(ctx, &models.ReviewComment{
		ReviewID: done.ID, FilePath: "main.go", LineNumber: 7,
		CommentType: models.CommentTypeSecurity, Severity: models.SeverityHigh,
		Content: "Query built from user input",
	}))
	require.NoError(t, s.CreateAgentRun(ctx, &models.AgentRun{
		ReviewID: done.ID, AgentName: "security", FilePath: "main.go",
		Status: models.AgentRunSuccess, FindingsCount: 1, ExecutionMs: 120,
	}))

	failed := &models.Review{RepositoryName: "other/lib", PRNumber: 3, Status: models.ReviewStatusFailed}
	require.NoError(t, s.CreateReview(ctx, failed))
	return s, done
}

func TestResolvePullRef(t *testing.T) {
	owner, repo, n, err := resolvePullRef("acme/api#42")
	require.NoError(t, err)
	assert.Equal(t, "acme", owner)
	assert.Equal(t, "api", repo)
	assert.Equal(t, 42, n)

	for _, bad := range []string{"#x", "0", "-3", "abc"} {
		_, _, _, err := resolvePullRef(bad)
		assert.Error(t, err, bad)
	}
}

func TestReviewRun_RequiresGitHubToken(t *testing.T) {
	testEnv(t)

	err := reviewRunRun(context.Background(), "acme/api#1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GitHub token not configured")
	assert.Contains(t, err.Error(), "CODELION_GITHUB_TOKEN")
}

func TestReviewList(t *testing.T) {
	_, out := testEnv(t)
	seedReviews(t)

	reviewListStatus, reviewListRepo, reviewListLimit = "", "", 20
	require.NoError(t, reviewListRun(context.Background()))
	text := out.String()
	assert.Contains(t, text, "acme/api")
	assert.Contains(t, text, "other/lib")
	assert.Contains(t, text, "88%")
}

func TestReviewList_Filters(t *testing.T) {
	_, out := testEnv(t)
	seedReviews(t)
	t.Cleanup(func() { reviewListStatus, reviewListRepo = "", "" })

	reviewListStatus, reviewListRepo, reviewListLimit = "failed", "", 20
	require.NoError(t, reviewListRun(context.Background()))
	assert.Contains(t, out.String(), "other/lib")
	assert.NotContains(t, out.String(), "acme/api")

	out.Reset()
	reviewListStatus, reviewListRepo = "", "acme/api"
	require.NoError(t, reviewListRun(context.Background()))
	assert.Contains(t, out.String(), "acme/api")
	assert.NotContains(t, out.String(), "other/lib")

	reviewListStatus, reviewListRepo = "bogus", ""
	assert.Error(t, reviewListRun(context.Background()))
}

func TestReviewList_Empty(t *testing.T) {
	_, out := testEnv(t)
	reviewListStatus, reviewListRepo, reviewListLimit = "", "", 20
	require.NoError(t, reviewListRun(context.Background()))
	assert.Contains(t, out.String(), "No reviews found")
}

func TestReviewShow(t *testing.T) {
	_, out := testEnv(t)
	_, rev := seedReviews(t)

	require.NoError(t, reviewShowRun(context.Background(), rev.ID))
	text := out.String()
	assert.Contains(t, text, "acme/api#12")
	assert.Contains(t, text, "Looks fine")
	assert.Contains(t, text, "main.go:7")
	assert.Contains(t, text, "Query built from user input")
	assert.Contains(t, text, "security")
	assert.Contains(t, text, "120ms")

	assert.ErrorIs(t, reviewShowRun(context.Background(), "missing"), store.ErrNotFound)
}

func TestStats(t *testing.T) {
	_, out := testEnv(t)
	seedReviews(t)

	require.NoError(t, statsRun(context.Background()))
	text := out.String()
	assert.Contains(t, text, "Total reviews:      2")
	assert.Contains(t, text, "88.0%")
	assert.Contains(t, text, "Total comments:     1")
}

func TestExport_ReviewsJSON(t *testing.T) {
	_, out := testEnv(t)
	seedReviews(t)
	exportType, exportFormat, exportLimit = "reviews", "json", 100

	require.NoError(t, exportRun(context.Background()))
	var got []models.Review
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Len(t, got, 2)
}

func TestExport_Formats(t *testing.T) {
	_, out := testEnv(t)
	seedReviews(t)
	t.Cleanup(func() { exportType, exportFormat = "reviews", "json" })

	exportType, exportFormat = "reviews", "csv"
	require.NoError(t, exportRun(context.Background()))
	assert.Contains(t, out.String(), "ID,Repository,PR,Status,Confidence,Created")

	out.Reset()
	exportType, exportFormat = "repositories", "markdown"
	require.NoError(t, exportRun(context.Background()))
	assert.Contains(t, out.String(), "| acme/api | false | true |")

	exportFormat = "xml"
	assert.Error(t, exportRun(context.Background()))

	exportType, exportFormat = "sessions", "json"
	assert.Error(t, exportRun(context.Background()))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "a b c", truncate("a\n  b\tc", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}

func TestGetStore_OutsideCommand(t *testing.T) {
	testEnv(t)
	dataStore = nil

	s, err := getStore()
	require.NoError(t, err)
	_, err = s.ReviewStats(context.Background())
	assert.NoError(t, err)
}
