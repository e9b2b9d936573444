// Package agents runs specialised LLM reviewers over pull-request diffs and
// turns their free-text replies into scored findings.
package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/codelion/codelion/internal/llm"
	"github.com/codelion/codelion/internal/models"
)

// FileContext describes the file an agent is reviewing.
type FileContext struct {
	FilePath      string
	Language      string
	Repository    string
	PRTitle       string
	PRDescription string
}

// Finding is one issue extracted from an agent's reply.
type Finding struct {
	Severity    models.Severity    `json:"severity"`
	Type        models.CommentType `json:"type"`
	Description string             `json:"description"`
	Suggestion  string             `json:"suggestion,omitempty"`
	FilePath    string             `json:"file_path"`
	LineNumber  int                `json:"line_number,omitempty"`
}

// Result is the outcome of one agent on one file.
type Result struct {
	AgentName    string                `json:"agent_name"`
	FilePath     string                `json:"file_path"`
	Status       models.AgentRunStatus `json:"status"`
	Findings     []Finding             `json:"findings"`
	Confidence   int                   `json:"confidence_score"`
	ExecutionMs  int64                 `json:"execution_time"`
	ErrorMessage string                `json:"error_message,omitempty"`
}

// Agent reviews a single file diff.
type Agent interface {
	Name() string
	Description() string
	SystemPrompt() string
	Analyze(ctx context.Context, diff string, fc FileContext) Result
}

// promptAgent is an Agent driven entirely by its system prompt.
type promptAgent struct {
	name        string
	description string
	system      string
	commentType models.CommentType
	gen         llm.Generator
}

func (a *promptAgent) Name() string         { return a.name }
func (a *promptAgent) Description() string  { return a.description }
func (a *promptAgent) SystemPrompt() string { return a.system }

func (a *promptAgent) Analyze(ctx context.Context, diff string, fc FileContext) Result {
	start := time.Now()
	res := Result{AgentName: a.name, FilePath: fc.FilePath}

	text, err := a.gen.Generate(ctx, a.system, a.userPrompt(diff, fc))
	res.ExecutionMs = time.Since(start).Milliseconds()
	if err != nil {
		res.Status = models.AgentRunError
		res.ErrorMessage = err.Error()
		return res
	}

	res.Findings = ParseFindings(llm.StripFences(text), a.commentType, fc.FilePath)
	res.Confidence = Confidence(res.Findings)
	res.Status = models.AgentRunSuccess
	if len(res.Findings) > 0 {
		res.Status = models.AgentRunWarning
	}
	return res
}

func (a *promptAgent) userPrompt(diff string, fc FileContext) string {
	orUnknown := func(s string) string {
		if s == "" {
			return "Unknown"
		}
		return s
	}
	desc := fc.PRDescription
	if desc == "" {
		desc = "None"
	}

	var sb strings.Builder
	sb.WriteString("Analyze the following code changes:\n\n")
	fmt.Fprintf(&sb, "File: %s\n", orUnknown(fc.FilePath))
	fmt.Fprintf(&sb, "Language: %s\n\n", orUnknown(fc.Language))
	sb.WriteString("Code Diff:\n")
	sb.WriteString(diff)
	sb.WriteString("\n\nContext:\n")
	fmt.Fprintf(&sb, "- Repository: %s\n", orUnknown(fc.Repository))
	fmt.Fprintf(&sb, "- PR Title: %s\n", orUnknown(fc.PRTitle))
	fmt.Fprintf(&sb, "- PR Description: %s\n\n", desc)
	fmt.Fprintf(&sb, "Please provide a detailed analysis focusing on %s.", strings.ToLower(a.description))
	return sb.String()
}

// NewSecurityAgent reviews for vulnerabilities.
func NewSecurityAgent(gen llm.Generator) Agent {
	return &promptAgent{
		name:        "security",
		description: "Security vulnerabilities and best practices",
		system:      securityPrompt,
		commentType: models.CommentTypeSecurity,
		gen:         gen,
	}
}

// NewPerformanceAgent reviews for efficiency problems.
func NewPerformanceAgent(gen llm.Generator) Agent {
	return &promptAgent{
		name:        "performance",
		description: "Performance optimization and efficiency",
		system:      performancePrompt,
		commentType: models.CommentTypePerformance,
		gen:         gen,
	}
}

// NewStyleAgent reviews formatting and conventions.
func NewStyleAgent(gen llm.Generator) Agent {
	return &promptAgent{
		name:        "style",
		description: "Code style, formatting, and best practices",
		system:      stylePrompt,
		commentType: models.CommentTypeStyle,
		gen:         gen,
	}
}

// Defaults returns the built-in agents sharing gen.
func Defaults(gen llm.Generator) []Agent {
	return []Agent{
		NewSecurityAgent(gen),
		NewPerformanceAgent(gen),
		NewStyleAgent(gen),
	}
}
