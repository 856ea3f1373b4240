package cli

import (
	"github.com/spf13/cobra"

	"finbot/internal/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the tools over MCP on stdio",
	Long: `Build the knowledge base and expose financial_kb, yahoo_finance_news
and fmp_data as Model Context Protocol tools on stdin/stdout. Logs go to
stderr.`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	logger := GetLogger()
	a, err := buildApp(cmd.Context(), GetConfig(), logger, false)
	if err != nil {
		return err
	}
	return mcpserver.ServeStdio(mcpserver.New(a.tools.Tools(), logger.Named("mcp")))
}
