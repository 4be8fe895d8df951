package admin

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/docqa/internal/domain"
)

// StatsCmd returns the stats command
func StatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show knowledge base statistics",
		RunE:  runStats,
	}

	addStoreFlags(cmd)
	return cmd
}

func runStats(cmd *cobra.Command, args []string) error {
	app, cleanup, err := newAppFromCmd(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	stats, err := app.Stats.Stats(cmd.Context())
	if err != nil {
		return err
	}

	outputJSON, _ := cmd.Flags().GetBool("output")
	return printStats(cmd.OutOrStdout(), stats, outputJSON)
}

func printStats(w io.Writer, stats *domain.KnowledgeStats, outputJSON bool) error {
	if outputJSON {
		return json.NewEncoder(w).Encode(stats)
	}

	fmt.Fprintf(w, "Total chunks: %d\n", stats.TotalChunks)
	if len(stats.Files) == 0 {
		fmt.Fprintln(w, "No documents ingested yet.")
		return nil
	}
	fmt.Fprintf(w, "Files (%d):\n", len(stats.Files))
	for _, f := range stats.Files {
		fmt.Fprintf(w, "  %s\n", f)
	}
	return nil
}
