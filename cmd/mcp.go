package cmd

import (
	"github.com/spf13/cobra"

	"github.com/codelion/codelion/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets an MCP-capable assistant query CodeLion reviews natively.
Configure it with:

  {
    "mcpServers": {
      "codelion": { "command": "codelion", "args": ["mcp"] }
    }
  }

Available tools: codelion_list_reviews, codelion_get_review,
codelion_review_stats, codelion_list_agents and, when github.token is set,
codelion_run_review.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := getStore()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		registry := newRegistry(newGenerator(ctx))

		var reviewer mcp.Reviewer
		if gh := newGitHubClient(); gh != nil {
			reviewer = newReviewService(s, registry, gh, nil)
		}

		return mcp.NewServer(s, registry, reviewer, buildVersion).ServeStdio(ctx)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
