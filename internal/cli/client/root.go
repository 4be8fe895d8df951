package client

import (
	"github.com/spf13/cobra"

	"github.com/cloo-solutions/docqa/internal/cli"
)

// NewRootCmd assembles the docqa command tree.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "docqa",
		Short: "docqa CLI - ask questions about your documents",
		Long: `docqa talks to a docqa server: upload documents, ask questions and
inspect the knowledge base.

Environment variables:
  DOCQA_API_URL     API base URL (default: http://localhost:8080)
  DOCQA_API_TOKEN   API token, when the server requires one`,
		Version:      version,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-token", "", "API token (overrides env and config)")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env and config)")
	rootCmd.PersistentFlags().String("session", "", "Session ID to use instead of the stored one")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(UploadCmd())
	rootCmd.AddCommand(AskCmd())
	rootCmd.AddCommand(StatsCmd())
	rootCmd.AddCommand(ResetCmd())
	rootCmd.AddCommand(LoginCmd())

	return rootCmd
}
