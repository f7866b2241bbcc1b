package cmd

import (
	container "github.com/inference-gateway/adgate/internal/container"
	cobra "github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the gate's MCP tool surface only",
	Long: `Serve the MCP tool surface over HTTP without the REST API.

Registered tools: list_visible_tools, classify_tool, evaluate_tool_call,
approval_status, resolve_approval, task_status, cancel_task and
invalidate_credentials.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			Cfg.MCP.Addr = addr
		}
		if path, _ := cmd.Flags().GetString("path"); path != "" {
			Cfg.MCP.Path = path
		}
		interval, _ := cmd.Flags().GetDuration("janitor-interval")
		return runServers(false, true, interval)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("addr", "", "MCP listen address (default: :8091)")
	mcpCmd.Flags().String("path", "", "MCP endpoint path (default: /mcp)")
	mcpCmd.Flags().Duration("janitor-interval", container.DefaultJanitorInterval, "How often expired approvals and finished tasks are swept")
}
