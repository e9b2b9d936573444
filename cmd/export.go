package cmd

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/codelion/codelion/internal/store"
)

var (
	exportFormat string
	exportType   string
	exportLimit  int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export data as JSON, CSV, or Markdown",
	Long:  "Export reviews or connected repositories in various formats.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return exportRun(cmd.Context())
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "Output format: json, csv, markdown")
	exportCmd.Flags().StringVar(&exportType, "type", "reviews", "Data type: reviews, repositories")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 100, "Maximum number of reviews")
	rootCmd.AddCommand(exportCmd)
}

func exportRun(ctx context.Context) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	switch exportType {
	case "reviews":
		return exportReviews(ctx, s)
	case "repositories", "repos":
		return exportRepositories(ctx, s)
	default:
		return fmt.Errorf("unknown export type: %s (use: reviews, repositories)", exportType)
	}
}

func exportReviews(ctx context.Context, s store.Store) error {
	reviews, err := s.ListReviews(ctx, store.ReviewListFilter{Limit: exportLimit})
	if err != nil {
		return err
	}

	switch exportFormat {
	case "json":
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(reviews)
	case "csv":
		w := csv.NewWriter(ui.Out)
		_ = w.Write([]string{"ID", "Repository", "PR", "Status", "Confidence", "Created"})
		for _, r := range reviews {
			_ = w.Write([]string{
				r.ID, r.RepositoryName, strconv.Itoa(r.PRNumber), string(r.Status),
				strconv.Itoa(r.ConfidenceScore), r.CreatedAt.Format("2006-01-02"),
			})
		}
		w.Flush()
		return w.Error()
	case "markdown":
		fmt.Fprintln(ui.Out, "# Reviews")
		fmt.Fprintln(ui.Out)
		fmt.Fprintln(ui.Out, "| Repository | PR | Status | Confidence |")
		fmt.Fprintln(ui.Out, "|------------|----|--------|------------|")
		for _, r := range reviews {
			fmt.Fprintf(ui.Out, "| %s | #%d | %s | %d%% |\n", r.RepositoryName, r.PRNumber, r.Status, r.ConfidenceScore)
		}
		return nil
	default:
		return fmt.Errorf("unknown format: %s (use: json, csv, markdown)", exportFormat)
	}
}

func exportRepositories(ctx context.Context, s store.Store) error {
	repos, err := s.ListRepositories(ctx, false)
	if err != nil {
		return err
	}

	switch exportFormat {
	case "json":
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(repos)
	case "csv":
		w := csv.NewWriter(ui.Out)
		_ = w.Write([]string{"ID", "FullName", "Private", "Active", "URL"})
		for _, r := range repos {
			_ = w.Write([]string{r.ID, r.FullName, strconv.FormatBool(r.Private), strconv.FormatBool(r.IsActive), r.HTMLURL})
		}
		w.Flush()
		return w.Error()
	case "markdown":
		fmt.Fprintln(ui.Out, "# Repositories")
		fmt.Fprintln(ui.Out)
		fmt.Fprintln(ui.Out, "| Repository | Private | Active |")
		fmt.Fprintln(ui.Out, "|------------|---------|--------|")
		for _, r := range repos {
			fmt.Fprintf(ui.Out, "| %s | %t | %t |\n", r.FullName, r.Private, r.IsActive)
		}
		return nil
	default:
		return fmt.Errorf("unknown format: %s (use: json, csv, markdown)", exportFormat)
	}
}
