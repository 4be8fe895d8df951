package admin

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

// MCPCmd returns the mcp command
func MCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the knowledge base over MCP on stdio",
		Long: `Run an MCP server on stdin/stdout exposing the search and ask tools and
the docqa://stats resource. Logs go to stderr.`,
		RunE: runMCP,
	}

	addStoreFlags(cmd)
	return cmd
}

func runMCP(cmd *cobra.Command, args []string) error {
	app, cleanup, err := newAppFromCmd(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	server, err := app.MCPServer()
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	log.Println("serving MCP on stdio")
	return server.Run(cmd.Context())
}
