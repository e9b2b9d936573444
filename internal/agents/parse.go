package agents

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/codelion/codelion/internal/models"
)

var (
	criticalRe = regexp.MustCompile(`(?i)\bcritical\b`)
	highRe     = regexp.MustCompile(`(?i)\bhigh\b`)
	mediumRe   = regexp.MustCompile(`(?i)\bmedium\b`)
	lowRe      = regexp.MustCompile(`(?i)\blow\b`)
	lineRe     = regexp.MustCompile(`(?i)\bline\s+(\d+)`)
)

// severityOf returns the severity keyword found in line, checked in
// critical, high, low order with medium as the fallback. ok is false when
// the line names no severity at all.
func severityOf(line string) (models.Severity, bool) {
	switch {
	case criticalRe.MatchString(line):
		return models.SeverityCritical, true
	case highRe.MatchString(line):
		return models.SeverityHigh, true
	case lowRe.MatchString(line):
		return models.SeverityLow, true
	case mediumRe.MatchString(line):
		return models.SeverityMedium, true
	}
	return "", false
}

// ParseFindings splits a free-text review into findings. A line naming a
// severity starts a new finding, a following "-" line sets its suggestion
// and any other line extends its description. Text before the first
// severity line is ignored.
func ParseFindings(text string, ct models.CommentType, filePath string) []Finding {
	var findings []Finding
	var cur *Finding

	flush := func() {
		if cur == nil {
			return
		}
		if m := lineRe.FindStringSubmatch(cur.Description); m != nil {
			cur.LineNumber, _ = strconv.Atoi(m[1])
		}
		findings = append(findings, *cur)
		cur = nil
	}

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if sev, ok := severityOf(line); ok {
			flush()
			cur = &Finding{Severity: sev, Type: ct, Description: line, FilePath: filePath}
			continue
		}
		if cur == nil {
			continue
		}
		if strings.HasPrefix(line, "-") {
			cur.Suggestion = strings.TrimSpace(line[1:])
			continue
		}
		cur.Description += " " + line
	}
	flush()
	return findings
}

var severityScore = map[models.Severity]int{
	models.SeverityCritical: 20,
	models.SeverityHigh:     40,
	models.SeverityMedium:   60,
	models.SeverityLow:      80,
}

// Confidence is 100 with no findings, otherwise the integer mean of the
// per-severity scores.
func Confidence(findings []Finding) int {
	if len(findings) == 0 {
		return 100
	}
	total := 0
	for _, f := range findings {
		score, ok := severityScore[f.Severity]
		if !ok {
			score = severityScore[models.SeverityMedium]
		}
		total += score
	}
	return min(100, total/len(findings))
}
