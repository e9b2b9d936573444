package cmd

import (
	"github.com/spf13/cobra"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List the review agents",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry := newRegistry(newGenerator(cmd.Context()))
		table := ui.Table([]string{"Name", "Description"})
		for _, a := range registry.List() {
			_ = table.Append([]string{a.Name(), a.Description()})
		}
		return table.Render()
	},
}

func init() {
	rootCmd.AddCommand(agentsCmd)
}
