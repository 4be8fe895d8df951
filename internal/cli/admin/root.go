package admin

import (
	"github.com/spf13/cobra"

	"github.com/cloo-solutions/docqa/internal/cli"
)

// NewRootCmd assembles the docqad command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "docqad",
		Short: "docqa server and local tools",
		Long: `docqad answers questions about your documents.

It runs the web interface and JSON API (serve), ingests files and answers
questions from the terminal (ingest, ask, stats) and serves MCP on stdio
(mcp). Configuration comes from DOCQA_* environment variables and .env.

Environment variables:
  OPENAI_API_KEY      API key for embeddings and completions (required)
  OPENAI_BASE_URL     OpenAI-compatible API base URL
  DOCQA_DATA_DIR      Directory for uploads and the embedded store (default: data)
  DOCQA_STORE_DRIVER  sqlite (default) or postgres
  DATABASE_URL        Postgres connection URL for the postgres driver`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(ServeCmd())
	rootCmd.AddCommand(IngestCmd())
	rootCmd.AddCommand(AskCmd())
	rootCmd.AddCommand(StatsCmd())
	rootCmd.AddCommand(MCPCmd())

	return rootCmd
}
