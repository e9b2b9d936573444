package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/codelion/codelion/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One writer at a time; webhook processing and HTTP reads share this pool.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", strings.ToLower(strings.TrimPrefix(pragma, "PRAGMA ")), err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

// newULID generates a new, monotonically increasing ULID string.
func newULID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

func notFound(kind, key string) error {
	return fmt.Errorf("%s %w: %s", kind, ErrNotFound, key)
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		var count int
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count); err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Repositories ---

const repositoryColumns = `id, github_id, name, full_name, description, private, html_url, clone_url, is_active, webhook_id, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRepository(row rowScanner) (*models.Repository, error) {
	r := &models.Repository{}
	err := row.Scan(&r.ID, &r.GitHubID, &r.Name, &r.FullName, &r.Description, &r.Private,
		&r.HTMLURL, &r.CloneURL, &r.IsActive, &r.WebhookID, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

func (s *SQLiteStore) CreateRepository(ctx context.Context, r *models.Repository) error {
	if r.ID == "" {
		r.ID = newULID()
	}
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO repositories (`+repositoryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.GitHubID, r.Name, r.FullName, r.Description, boolToInt(r.Private),
		r.HTMLURL, r.CloneURL, boolToInt(r.IsActive), r.WebhookID, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create repository: %w", err)
	}
	return nil
}

func (s *SQLiteStore) getRepositoryWhere(ctx context.Context, where string, arg any, key string) (*models.Repository, error) {
	r, err := scanRepository(s.db.QueryRowContext(ctx,
		`SELECT `+repositoryColumns+` FROM repositories WHERE `+where+` = ?`, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("repository", key)
	}
	if err != nil {
		return nil, fmt.Errorf("get repository: %w", err)
	}
	return r, nil
}

func (s *SQLiteStore) GetRepository(ctx context.Context, id string) (*models.Repository, error) {
	return s.getRepositoryWhere(ctx, "id", id, id)
}

func (s *SQLiteStore) GetRepositoryByGitHubID(ctx context.Context, githubID int64) (*models.Repository, error) {
	return s.getRepositoryWhere(ctx, "github_id", githubID, fmt.Sprintf("github id %d", githubID))
}

func (s *SQLiteStore) GetRepositoryByFullName(ctx context.Context, fullName string) (*models.Repository, error) {
	return s.getRepositoryWhere(ctx, "full_name", fullName, fullName)
}

func (s *SQLiteStore) ListRepositories(ctx context.Context, activeOnly bool) ([]*models.Repository, error) {
	query := `SELECT ` + repositoryColumns + ` FROM repositories`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY full_name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var repos []*models.Repository
	for rows.Next() {
		r, err := scanRepository(rows)
		if err != nil {
			return nil, fmt.Errorf("scan repository: %w", err)
		}
		repos = append(repos, r)
	}
	return repos, rows.Err()
}

func (s *SQLiteStore) UpdateRepository(ctx context.Context, r *models.Repository) error {
	r.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`UPDATE repositories SET github_id=?, name=?, full_name=?, description=?, private=?, html_url=?, clone_url=?, is_active=?, webhook_id=?, updated_at=?
		WHERE id=?`,
		r.GitHubID, r.Name, r.FullName, r.Description, boolToInt(r.Private),
		r.HTMLURL, r.CloneURL, boolToInt(r.IsActive), r.WebhookID, r.UpdatedAt, r.ID,
	)
	if err != nil {
		return fmt.Errorf("update repository: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return notFound("repository", r.ID)
	}
	return nil
}

// --- Reviews ---

const reviewColumns = `id, repository_id, repository_name, pr_number, status, summary, confidence_score, created_at, updated_at`

func scanReview(row rowScanner) (*models.Review, error) {
	r := &models.Review{}
	err := row.Scan(&r.ID, &r.RepositoryID, &r.RepositoryName, &r.PRNumber, &r.Status,
		&r.Summary, &r.ConfidenceScore, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

func (s *SQLiteStore) CreateReview(ctx context.Context, r *models.Review) error {
	if r.Status == "" {
		r.Status = models.ReviewStatusPending
	}
	if !r.Status.Valid() {
		return fmt.Errorf("create review: invalid status %q", r.Status)
	}
	if r.ID == "" {
		r.ID = newULID()
	}
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reviews (`+reviewColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.RepositoryID, r.RepositoryName, r.PRNumber, string(r.Status),
		r.Summary, r.ConfidenceScore, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create review: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetReview(ctx context.Context, id string) (*models.Review, error) {
	r, err := scanReview(s.db.QueryRowContext(ctx,
		`SELECT `+reviewColumns+` FROM reviews WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("review", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get review: %w", err)
	}
	return r, nil
}

// GetReviewByPR returns the most recent review for a pull request.
func (s *SQLiteStore) GetReviewByPR(ctx context.Context, repositoryID string, prNumber int) (*models.Review, error) {
	r, err := scanReview(s.db.QueryRowContext(ctx,
		`SELECT `+reviewColumns+` FROM reviews WHERE repository_id = ? AND pr_number = ?
		ORDER BY created_at DESC, id DESC LIMIT 1`, repositoryID, prNumber))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("review", fmt.Sprintf("%s#%d", repositoryID, prNumber))
	}
	if err != nil {
		return nil, fmt.Errorf("get review by pr: %w", err)
	}
	return r, nil
}

// ListReviews returns reviews newest first.
func (s *SQLiteStore) ListReviews(ctx context.Context, filter ReviewListFilter) ([]*models.Review, error) {
	query := `SELECT ` + reviewColumns + ` FROM reviews`
	var conditions []string
	var args []any

	if filter.RepositoryID != "" {
		conditions = append(conditions, "repository_id = ?")
		args = append(args, filter.RepositoryID)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, max(filter.Offset, 0))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var reviews []*models.Review
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

func (s *SQLiteStore) UpdateReview(ctx context.Context, r *models.Review) error {
	if !r.Status.Valid() {
		return fmt.Errorf("update review: invalid status %q", r.Status)
	}
	r.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`UPDATE reviews SET repository_id=?, repository_name=?, pr_number=?, status=?, summary=?, confidence_score=?, updated_at=?
		WHERE id=?`,
		r.RepositoryID, r.RepositoryName, r.PRNumber, string(r.Status), r.Summary, r.ConfidenceScore, r.UpdatedAt, r.ID,
	)
	if err != nil {
		return fmt.Errorf("update review: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return notFound("review", r.ID)
	}
	return nil
}

// ReviewStats aggregates review counts. The average confidence covers
// scored reviews only and is rounded to two decimals.
func (s *SQLiteStore) ReviewStats(ctx context.Context) (*models.Stats, error) {
	stats := models.NewStats()

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM reviews GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("review stats: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan review stats: %w", err)
		}
		stats.StatusCounts[models.ReviewStatus(status)] = n
		stats.TotalReviews += n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("review stats: %w", err)
	}

	var avg sql.NullFloat64
	if err := s.db.QueryRowContext(ctx,
		`SELECT AVG(confidence_score) FROM reviews WHERE confidence_score > 0`,
	).Scan(&avg); err != nil {
		return nil, fmt.Errorf("average confidence: %w", err)
	}
	if avg.Valid {
		stats.AverageConfidenceScore = math.Round(avg.Float64*100) / 100
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM review_comments`).Scan(&stats.TotalComments); err != nil {
		return nil, fmt.Errorf("count comments: %w", err)
	}
	return stats, nil
}

// --- Review comments ---

func (s *SQLiteStore) CreateReviewComment(ctx context.Context, c *models.ReviewComment) error {
	if c.ID == "" {
		c.ID = newULID()
	}
	if c.Severity == "" {
		c.Severity = models.SeverityMedium
	}
	c.CreatedAt = time.Now().UTC()

	var line sql.NullInt64
	if c.LineNumber > 0 {
		line = sql.NullInt64{Int64: int64(c.LineNumber), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO review_comments (id, review_id, file_path, line_number, comment_type, content, severity, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.ReviewID, c.FilePath, line, string(c.CommentType), c.Content, string(c.Severity), c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create review comment: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListReviewComments(ctx context.Context, reviewID string) ([]*models.ReviewComment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, review_id, file_path, line_number, comment_type, content, severity, created_at
		FROM review_comments WHERE review_id = ? ORDER BY created_at, id`, reviewID)
	if err != nil {
		return nil, fmt.Errorf("list review comments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var comments []*models.ReviewComment
	for rows.Next() {
		c := &models.ReviewComment{}
		var line sql.NullInt64
		if err := rows.Scan(&c.ID, &c.ReviewID, &c.FilePath, &line, &c.CommentType, &c.Content, &c.Severity, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan review comment: %w", err)
		}
		if line.Valid {
			c.LineNumber = int(line.Int64)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// --- Agent runs ---

func (s *SQLiteStore) CreateAgentRun(ctx context.Context, run *models.AgentRun) error {
	if run.ID == "" {
		run.ID = newULID()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	var completed sql.NullTime
	if run.CompletedAt != nil {
		completed = sql.NullTime{Time: *run.CompletedAt, Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agent_runs (id, review_id, agent_name, file_path, status, findings_count, confidence_score, execution_ms, error_message, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.ReviewID, run.AgentName, run.FilePath, string(run.Status), run.FindingsCount,
		run.Confidence, run.ExecutionMs, run.ErrorMessage, run.CreatedAt, completed,
	)
	if err != nil {
		return fmt.Errorf("create agent run: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListAgentRuns(ctx context.Context, reviewID string) ([]*models.AgentRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, review_id, agent_name, file_path, status, findings_count, confidence_score, execution_ms, error_message, created_at, completed_at
		FROM agent_runs WHERE review_id = ? ORDER BY created_at, id`, reviewID)
	if err != nil {
		return nil, fmt.Errorf("list agent runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*models.AgentRun
	for rows.Next() {
		run := &models.AgentRun{}
		var completed sql.NullTime
		if err := rows.Scan(&run.ID, &run.ReviewID, &run.AgentName, &run.FilePath, &run.Status, &run.FindingsCount,
			&run.Confidence, &run.ExecutionMs, &run.ErrorMessage, &run.CreatedAt, &completed); err != nil {
			return nil, fmt.Errorf("scan agent run: %w", err)
		}
		if completed.Valid {
			t := completed.Time
			run.CompletedAt = &t
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
