package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	jzsmcp "github.com/valter-silva-au/jizoni-schedule/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  "Commands for running the jzs MCP (Model Context Protocol) server.",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the jzs MCP server on stdio",
	Long: `Start the jzs MCP server on stdio transport.

The server exposes scheduling as MCP tools that AI assistants can call:
get_schedule, get_critical_path, add_relationship, import_wbs,
compare_baseline, get_metrics and get_alerts.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireService(); err != nil {
			return err
		}

		srv := jzsmcp.NewServer(Service, MetricsCalc, AlertEngine, appVersion)
		if err := srv.Run(commandContext(cmd)); err != nil {
			return fmt.Errorf("running MCP server: %w", err)
		}
		return nil
	},
}

func init() {
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}
