// Package output renders CLI messages and tables.
package output

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/codelion/codelion/internal/models"
)

// UI writes prefixed messages to Out and ErrOut.
type UI struct {
	Verbose bool
	Out     io.Writer
	ErrOut  io.Writer
}

// New creates a UI on stdout/stderr.
func New() *UI {
	return &UI{
		Out:    os.Stdout,
		ErrOut: os.Stderr,
	}
}

var (
	infoPrefix    = color.New(color.FgHiBlue).Sprint("i")
	successPrefix = color.New(color.FgHiGreen).Sprint("✓")
	warningPrefix = color.New(color.FgHiYellow).Sprint("⚠")
	errorPrefix   = color.New(color.FgHiRed).Sprint("✗")
	verbosePrefix = color.New(color.FgHiBlue).Sprint("  →")
	cyan          = color.New(color.FgHiCyan).SprintFunc()
	green         = color.New(color.FgHiGreen).SprintFunc()
	yellow        = color.New(color.FgHiYellow).SprintFunc()
	red           = color.New(color.FgHiRed).SprintFunc()
	magenta       = color.New(color.FgHiMagenta).SprintFunc()
	faint         = color.New(color.Faint).SprintFunc()
)

func Cyan(s string) string  { return cyan(s) }
func Green(s string) string { return green(s) }
func Red(s string) string   { return red(s) }

// StatusColor colors a review status.
func StatusColor(status models.ReviewStatus) string {
	s := string(status)
	switch status {
	case models.ReviewStatusPending:
		return faint(s)
	case models.ReviewStatusInProgress:
		return yellow(s)
	case models.ReviewStatusCompleted:
		return green(s)
	case models.ReviewStatusFailed:
		return red(s)
	default:
		return s
	}
}

// ConfidenceColor renders a 0-100 confidence score. Zero means no score yet
// and is shown as "-".
func ConfidenceColor(score int) string {
	if score <= 0 {
		return "-"
	}
	s := strconv.Itoa(score) + "%"
	switch {
	case score >= 80:
		return green(s)
	case score >= 50:
		return yellow(s)
	default:
		return red(s)
	}
}

// SeverityColor colors a finding severity.
func SeverityColor(sev models.Severity) string {
	s := string(sev)
	switch sev {
	case models.SeverityCritical:
		return magenta(s)
	case models.SeverityHigh:
		return red(s)
	case models.SeverityMedium:
		return yellow(s)
	case models.SeverityLow:
		return cyan(s)
	default:
		return s
	}
}

func (u *UI) Info(format string, a ...any) {
	fmt.Fprintf(u.Out, "%s %s\n", infoPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) Success(format string, a ...any) {
	fmt.Fprintf(u.Out, "%s %s\n", successPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) Warning(format string, a ...any) {
	fmt.Fprintf(u.ErrOut, "%s %s\n", warningPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) Error(format string, a ...any) {
	fmt.Fprintf(u.ErrOut, "%s %s\n", errorPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) VerboseLog(format string, a ...any) {
	if u.Verbose {
		fmt.Fprintf(u.Out, "%s %s\n", verbosePrefix, fmt.Sprintf(format, a...))
	}
}

// Table returns a borderless, left-aligned table writing to Out.
func (u *UI) Table(headers []string) *tablewriter.Table {
	table := tablewriter.NewTable(u.Out,
		tablewriter.WithHeaderAlignment(tw.AlignLeft),
		tablewriter.WithRowAlignment(tw.AlignLeft),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Lines:      tw.LinesNone,
				Separators: tw.SeparatorsNone,
			},
		}),
		tablewriter.WithPadding(tw.Padding{Left: "", Right: "  "}),
	)
	table.Header(headers)
	return table
}
