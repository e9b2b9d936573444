package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/codelion/codelion/internal/models"
	"github.com/codelion/codelion/internal/output"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show review statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return statsRun(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func statsRun(ctx context.Context) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	st, err := s.ReviewStats(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "Total reviews:      %d\n", st.TotalReviews)
	fmt.Fprintf(ui.Out, "Average confidence: %s\n", output.Green(strconv.FormatFloat(st.AverageConfidenceScore, 'f', 1, 64)+"%"))
	fmt.Fprintf(ui.Out, "Total comments:     %d\n", st.TotalComments)
	fmt.Fprintln(ui.Out)

	table := ui.Table([]string{"Status", "Count"})
	for _, status := range models.ReviewStatuses {
		_ = table.Append([]string{output.StatusColor(status), strconv.Itoa(st.StatusCounts[status])})
	}
	return table.Render()
}
