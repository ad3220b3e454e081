package cmd

import (
	"context"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/joescharf/reviewkit/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets MCP-aware assistants manage checklists and reports and inspect
pull requests for the current repository. Configure with:

  {
    "mcpServers": {
      "reviewkit": { "command": "rk", "args": ["mcp"] }
    }
  }

Available tools: rk_list_checklists, rk_get_checklist, rk_create_checklist,
rk_generate_report, rk_update_report, rk_report_history, rk_export_report,
rk_detect_provider, rk_list_pull_requests, rk_changed_files, rk_pr_quality,
rk_add_review_comment, rk_submit_review`,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := getEngine()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals()...)
		defer stop()

		return mcp.NewServer(e, getIntegration()).ServeStdio(ctx)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
