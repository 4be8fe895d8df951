package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
)

// FileStat is the server's outcome for one uploaded file.
type FileStat struct {
	Filename string `json:"filename"`
	Chunks   int    `json:"chunks"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

// IngestStats is the response of POST /api/documents.
type IngestStats struct {
	FilesProcessed int        `json:"files_processed"`
	TotalChunks    int        `json:"total_chunks"`
	PerFile        []FileStat `json:"per_file_stats"`
	FailedFiles    []string   `json:"failed_files"`
	SkippedFiles   []string   `json:"skipped_files"`
}

// Source is one retrieved chunk under an answer.
type Source struct {
	Filename string  `json:"filename"`
	Pages    []int   `json:"page_numbers,omitempty"`
	Title    string  `json:"title,omitempty"`
	Score    float64 `json:"score"`
	Text     string  `json:"text"`
}

// AskResponse is the response of POST /api/ask.
type AskResponse struct {
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Sources  []Source `json:"sources"`
}

// KnowledgeStats is the response of GET /api/stats.
type KnowledgeStats struct {
	TotalChunks int      `json:"total_chunks"`
	Files       []string `json:"files"`
}

// UploadCmd creates the upload command.
func UploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>...",
		Short: "Upload documents to the knowledge base",
		Long:  "Uploads files to the server, which converts, chunks and embeds them. Files this session already uploaded are skipped.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			resp, err := api.Upload("/api/documents", args)
			if err != nil {
				return err
			}
			var stats IngestStats
			if err := resp.Decode(&stats); err != nil {
				return err
			}
			outputJSON, _ := cmd.Flags().GetBool("output")
			if err := printUpload(cmd.OutOrStdout(), &stats, outputJSON); err != nil {
				return err
			}
			if n := len(stats.FailedFiles); n > 0 {
				return fmt.Errorf("%d of %d files failed", n, len(args))
			}
			return nil
		},
	}
}

func printUpload(w io.Writer, stats *IngestStats, outputJSON bool) error {
	if outputJSON {
		return json.NewEncoder(w).Encode(stats)
	}
	for _, f := range stats.PerFile {
		switch f.Status {
		case "success":
			fmt.Fprintf(w, "✓ %s: %d chunks\n", f.Filename, f.Chunks)
		case "skipped":
			fmt.Fprintf(w, "- %s: already processed\n", f.Filename)
		default:
			fmt.Fprintf(w, "✗ %s: %s\n", f.Filename, f.Error)
		}
	}
	fmt.Fprintf(w, "\nProcessed %d files, %d chunks\n", stats.FilesProcessed, stats.TotalChunks)
	return nil
}

// AskCmd creates the ask command.
func AskCmd() *cobra.Command {
	var showSources bool

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about the uploaded documents",
		Long:  "Asks the server to answer from the knowledge base, printing the reply as it is generated. The conversation continues across calls until reset.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			question := map[string]string{"question": strings.Join(args, " ")}
			outputJSON, _ := cmd.Flags().GetBool("output")
			if outputJSON {
				resp, err := api.Post("/api/ask", question)
				if err != nil {
					return err
				}
				var answer AskResponse
				if err := resp.Decode(&answer); err != nil {
					return err
				}
				return printAnswer(cmd.OutOrStdout(), &answer, showSources, true)
			}
			return streamAnswer(cmd.OutOrStdout(), api, question, showSources)
		},
	}

	cmd.Flags().BoolVarP(&showSources, "sources", "s", false, "Print the retrieved chunks")
	return cmd
}

// streamAnswer prints the reply fragments from /api/ask/stream as they
// arrive, then the sources.
func streamAnswer(w io.Writer, api *APIClient, question map[string]string, showSources bool) error {
	var answer *AskResponse
	streamed := false
	err := api.PostStream("/api/ask/stream", question, func(event string, data []byte) error {
		switch event {
		case "delta":
			var delta struct {
				Text string `json:"text"`
			}
			if err := json.Unmarshal(data, &delta); err != nil {
				return fmt.Errorf("failed to parse stream event: %w", err)
			}
			if !streamed {
				delta.Text = strings.TrimLeft(delta.Text, " \t\n")
			}
			if delta.Text != "" {
				streamed = true
				fmt.Fprint(w, delta.Text)
			}
		case "answer":
			answer = &AskResponse{}
			if err := json.Unmarshal(data, answer); err != nil {
				return fmt.Errorf("failed to parse stream event: %w", err)
			}
		case "error":
			var body struct {
				Error string `json:"error"`
				Code  string `json:"code"`
			}
			_ = json.Unmarshal(data, &body)
			return &APIError{StatusCode: http.StatusOK, Code: body.Code, Message: body.Error}
		}
		return nil
	})
	if streamed {
		fmt.Fprintln(w)
	}
	if err != nil {
		return err
	}
	if answer == nil {
		return fmt.Errorf("stream ended without an answer")
	}
	if !streamed {
		fmt.Fprintln(w, answer.Answer)
	}
	return printSources(w, answer, showSources)
}

func printAnswer(w io.Writer, answer *AskResponse, showSources, outputJSON bool) error {
	if outputJSON {
		return json.NewEncoder(w).Encode(answer)
	}
	fmt.Fprintln(w, answer.Answer)
	return printSources(w, answer, showSources)
}

func printSources(w io.Writer, answer *AskResponse, showSources bool) error {
	if !showSources || len(answer.Sources) == 0 {
		return nil
	}
	fmt.Fprintln(w, "\nFound relevant sections:")
	for i, src := range answer.Sources {
		fmt.Fprintf(w, "\n[%d] %s (score %.2f)\n", i+1, sourceLabel(src), src.Score)
		fmt.Fprintln(w, strings.TrimSpace(src.Text))
	}
	return nil
}

func sourceLabel(src Source) string {
	label := src.Filename
	if len(src.Pages) > 0 {
		pages := make([]string, len(src.Pages))
		for i, p := range src.Pages {
			pages[i] = fmt.Sprint(p)
		}
		label += " - p. " + strings.Join(pages, ", ")
	}
	if src.Title != "" {
		label += " (" + src.Title + ")"
	}
	return label
}

// StatsCmd creates the stats command.
func StatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show knowledge base statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			resp, err := api.Get("/api/stats")
			if err != nil {
				return err
			}
			var stats KnowledgeStats
			if err := resp.Decode(&stats); err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if outputJSON, _ := cmd.Flags().GetBool("output"); outputJSON {
				return json.NewEncoder(w).Encode(stats)
			}
			fmt.Fprintf(w, "Total chunks: %d\n", stats.TotalChunks)
			for _, f := range stats.Files {
				fmt.Fprintf(w, "  %s\n", f)
			}
			return nil
		},
	}
}

// ResetCmd creates the reset command.
func ResetCmd() *cobra.Command {
	var forget bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear the conversation history",
		Long:  "Clears the chat history of the current session. With --forget the session is ended on the server and dropped locally, so the next call starts a new one.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			if forget {
				if api.SessionID() != "" {
					// a session the server already evicted needs no ending
					if _, err := api.Delete("/api/session"); err != nil && !isNotFound(err) {
						return err
					}
				}
				if err := updateGlobalConfig(func(g *GlobalConfig) { g.SessionID = "" }); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Session forgotten.")
				return nil
			}

			if api.SessionID() == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "No session to reset.")
				return nil
			}
			if _, err := api.Delete("/api/session/history"); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Chat history cleared.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&forget, "forget", false, "End the session instead of clearing its history")
	return cmd
}

// LoginCmd creates the login command.
func LoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store the server URL and API token",
		Long:  "Saves the API URL and token passed with --api-url and --api-token to the global config.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			token, _ := cmd.Flags().GetString("api-token")
			url, _ := cmd.Flags().GetString("api-url")
			if token == "" && url == "" {
				return fmt.Errorf("nothing to store: pass --api-url and/or --api-token")
			}
			if err := updateGlobalConfig(func(g *GlobalConfig) {
				if url != "" && url != g.APIURL {
					g.APIURL = url
					// sessions belong to one server
					g.SessionID = ""
				}
				if token != "" {
					g.APIToken = token
				}
			}); err != nil {
				return err
			}
			path, _ := GetConfigPath()
			fmt.Fprintf(cmd.OutOrStdout(), "Saved to %s\n", path)
			return nil
		},
	}
	return cmd
}

func isNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
