package admin

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/service"
	"github.com/cloo-solutions/docqa/internal/telemetry"
)

// IngestCmd returns the ingest command
func IngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Add documents to the knowledge base",
		Long: `Convert, chunk, embed and store the given files.

Supported formats: PDF, DOCX, PPTX, XLSX, HTML, Markdown and plain text.
A file named twice is ingested once. Failures are reported per file and do
not stop the batch.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runIngest,
	}

	addStoreFlags(cmd)
	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	app, cleanup, err := newAppFromCmd(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	files := make([]service.UploadedFile, 0, len(args))
	for _, arg := range args {
		path, err := filepath.Abs(arg)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", arg, err)
		}
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("cannot read %s: %w", arg, err)
		}
		files = append(files, service.UploadedFile{Name: filepath.Base(path), Path: path})
	}

	ctx, span := telemetry.StartTransaction(cmd.Context(), "docqad ingest", "cli.ingest")
	defer span.End()

	// one session per invocation so repeated names are skipped
	session := service.NewSession("", time.Now())
	stats := app.Ingest.IngestFiles(ctx, session, files)

	outputJSON, _ := cmd.Flags().GetBool("output")
	if err := printIngestStats(cmd.OutOrStdout(), stats, outputJSON); err != nil {
		return err
	}

	if len(stats.FailedFiles) > 0 {
		err := fmt.Errorf("%d of %d files failed", len(stats.FailedFiles), len(files))
		span.SetError(err)
		return err
	}
	return nil
}

func printIngestStats(w io.Writer, stats *domain.IngestStats, outputJSON bool) error {
	if outputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	for _, f := range stats.PerFile {
		switch f.Status {
		case domain.FileStatusSuccess:
			fmt.Fprintf(w, "✓ %s: %d chunks\n", f.Filename, f.Chunks)
		case domain.FileStatusSkipped:
			fmt.Fprintf(w, "- %s: already processed\n", f.Filename)
		default:
			fmt.Fprintf(w, "✗ %s: %s\n", f.Filename, f.Error)
		}
	}
	fmt.Fprintf(w, "\nProcessed %d files, %d chunks", stats.FilesProcessed, stats.TotalChunks)
	if n := len(stats.SkippedFiles); n > 0 {
		fmt.Fprintf(w, ", %d skipped", n)
	}
	if n := len(stats.FailedFiles); n > 0 {
		fmt.Fprintf(w, ", %d failed", n)
	}
	fmt.Fprintln(w)
	return nil
}
