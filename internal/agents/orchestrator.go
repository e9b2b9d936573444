package agents

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/codelion/codelion/internal/models"
)

// DefaultMaxConcurrency bounds agent calls in flight per pull request.
const DefaultMaxConcurrency = 4

// ChangedFile is one file of a pull request with its unified diff.
type ChangedFile struct {
	Filename string
	Patch    string
}

// PullRequest is the input to an analysis.
type PullRequest struct {
	Title      string
	Body       string
	Repository string
	Files      []ChangedFile
}

// Analysis aggregates every agent result for a pull request.
type Analysis struct {
	Results     []Result `json:"agent_results"`
	Summary     string   `json:"summary"`
	Confidence  int      `json:"confidence_score"`
	ExecutionMs int64    `json:"total_execution_time"`
}

// Findings returns all findings across results in result order.
func (a *Analysis) Findings() []Finding {
	var out []Finding
	for _, r := range a.Results {
		out = append(out, r.Findings...)
	}
	return out
}

// Errors joins the error messages of failed agent runs, or nil.
func (a *Analysis) Errors() error {
	var merr *multierror.Error
	for _, r := range a.Results {
		if r.Status == models.AgentRunError {
			merr = multierror.Append(merr, fmt.Errorf("%s on %s: %s", r.AgentName, r.FilePath, r.ErrorMessage))
		}
	}
	return merr.ErrorOrNil()
}

// Orchestrator fans each changed file out to every registered agent.
type Orchestrator struct {
	registry       *Registry
	maxConcurrency int
}

// NewOrchestrator creates an orchestrator. maxConcurrency <= 0 uses the default.
func NewOrchestrator(registry *Registry, maxConcurrency int) *Orchestrator {
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}
	return &Orchestrator{registry: registry, maxConcurrency: maxConcurrency}
}

func (o *Orchestrator) Registry() *Registry { return o.registry }

type job struct {
	agent Agent
	file  ChangedFile
	fc    FileContext
}

// AnalyzePullRequest runs all agents against all files with a non-empty
// patch. Agent failures, including panics, become error results; the
// analysis itself never fails.
func (o *Orchestrator) AnalyzePullRequest(ctx context.Context, pr PullRequest) *Analysis {
	start := time.Now()
	agents := o.registry.List()

	var jobs []job
	for _, f := range pr.Files {
		if f.Patch == "" {
			continue
		}
		fc := FileContext{
			FilePath:      f.Filename,
			Language:      DetectLanguage(f.Filename),
			Repository:    pr.Repository,
			PRTitle:       pr.Title,
			PRDescription: pr.Body,
		}
		for _, a := range agents {
			jobs = append(jobs, job{agent: a, file: f, fc: fc})
		}
	}

	results := make([]Result, len(jobs))
	var g errgroup.Group
	g.SetLimit(o.maxConcurrency)
	for i, j := range jobs {
		g.Go(func() error {
			results[i] = runAgent(ctx, j)
			return nil
		})
	}
	_ = g.Wait()

	analysis := &Analysis{
		Results:     results,
		Summary:     Summary(results),
		Confidence:  OverallConfidence(results),
		ExecutionMs: time.Since(start).Milliseconds(),
	}
	slog.Debug("pull request analysed",
		"repository", pr.Repository,
		"files", len(pr.Files),
		"agent_runs", len(results),
		"confidence", analysis.Confidence,
	)
	return analysis
}

func runAgent(ctx context.Context, j job) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("agent panicked", "agent", j.agent.Name(), "file", j.file.Filename, "panic", r)
			res = Result{
				AgentName:    j.agent.Name(),
				FilePath:     j.file.Filename,
				Status:       models.AgentRunError,
				ErrorMessage: fmt.Sprintf("agent panic: %v", r),
			}
		}
	}()
	if err := ctx.Err(); err != nil {
		return Result{AgentName: j.agent.Name(), FilePath: j.file.Filename, Status: models.AgentRunError, ErrorMessage: err.Error()}
	}
	res = j.agent.Analyze(ctx, j.file.Patch, j.fc)
	if res.AgentName == "" {
		res.AgentName = j.agent.Name()
	}
	if res.FilePath == "" {
		res.FilePath = j.file.Filename
	}
	return res
}

// Summary describes results in one sentence.
func Summary(results []Result) string {
	var findings, success, warning, failed int
	for _, r := range results {
		findings += len(r.Findings)
		switch r.Status {
		case models.AgentRunSuccess:
			success++
		case models.AgentRunWarning:
			warning++
		case models.AgentRunError:
			failed++
		}
	}
	return fmt.Sprintf("Analysis completed with %d findings across %d agents. Success: %d, Warnings: %d, Errors: %d",
		findings, len(results), success, warning, failed)
}

// OverallConfidence is the integer mean of the result confidences, 0 when
// there are no results.
func OverallConfidence(results []Result) int {
	if len(results) == 0 {
		return 0
	}
	total := 0
	for _, r := range results {
		total += r.Confidence
	}
	return total / len(results)
}
