package admin

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/service"
	"github.com/cloo-solutions/docqa/internal/telemetry"
)

// AskCmd returns the ask command
func AskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a question from the knowledge base",
		Long: `Answer a question using only the ingested documents.

Without arguments, questions are read from stdin one per line and answered
in a single conversation, so later questions see the earlier answers.`,
		RunE: runAsk,
	}

	cmd.Flags().BoolP("sources", "s", false, "Print the retrieved chunks under each answer")
	addStoreFlags(cmd)
	return cmd
}

func runAsk(cmd *cobra.Command, args []string) error {
	app, cleanup, err := newAppFromCmd(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	showSources, _ := cmd.Flags().GetBool("sources")
	outputJSON, _ := cmd.Flags().GetBool("output")
	out := cmd.OutOrStdout()

	ctx, span := telemetry.StartTransaction(cmd.Context(), "docqad ask", "cli.ask")
	defer span.End()

	if len(args) > 0 {
		if err := answerQuestion(ctx, app.Query, nil, strings.Join(args, " "), out, showSources, outputJSON); err != nil {
			span.SetError(err)
			return err
		}
		return nil
	}

	session := service.NewSession("", time.Now())
	return askLoop(ctx, app.Query, session, cmd.InOrStdin(), out, showSources, outputJSON)
}

type asker interface {
	AskStream(ctx context.Context, session *service.Session, question string, onDelta func(string)) (*domain.Answer, error)
}

// askLoop answers one question per input line. Errors are printed and the
// loop continues.
func askLoop(ctx context.Context, q asker, session *service.Session, in io.Reader, out io.Writer, showSources, outputJSON bool) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if err := answerQuestion(ctx, q, session, question, out, showSources, outputJSON); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		if !outputJSON {
			fmt.Fprintln(out)
		}
	}
	return scanner.Err()
}

// answerQuestion prints the reply to out as it is generated. JSON output is
// written once the answer is complete.
func answerQuestion(ctx context.Context, q asker, session *service.Session, question string, out io.Writer, showSources, outputJSON bool) error {
	if outputJSON {
		answer, err := q.AskStream(ctx, session, question, nil)
		if err != nil {
			return err
		}
		return printAnswer(out, answer, showSources, true)
	}

	streamed := false
	answer, err := q.AskStream(ctx, session, question, func(delta string) {
		if !streamed {
			delta = strings.TrimLeft(delta, " \t\n")
		}
		if delta == "" {
			return
		}
		streamed = true
		fmt.Fprint(out, delta)
	})
	if streamed {
		fmt.Fprintln(out)
	}
	if err != nil {
		return err
	}
	if !streamed {
		fmt.Fprintln(out, answer.Text)
	}
	return printSources(out, answer, showSources)
}

type answerOutput struct {
	Question string         `json:"question"`
	Answer   string         `json:"answer"`
	Sources  []sourceOutput `json:"sources"`
}

type sourceOutput struct {
	Source string  `json:"source"`
	Score  float64 `json:"score"`
	Text   string  `json:"text"`
}

func printAnswer(w io.Writer, answer *domain.Answer, showSources, outputJSON bool) error {
	if outputJSON {
		out := answerOutput{
			Question: answer.Question,
			Answer:   answer.Text,
			Sources:  make([]sourceOutput, 0, len(answer.Sources)),
		}
		for _, src := range answer.Sources {
			out.Sources = append(out.Sources, sourceOutput{
				Source: service.SourceLine(src.Chunk.Metadata),
				Score:  src.Score,
				Text:   src.Chunk.Text,
			})
		}
		return json.NewEncoder(w).Encode(out)
	}

	fmt.Fprintln(w, answer.Text)
	return printSources(w, answer, showSources)
}

func printSources(w io.Writer, answer *domain.Answer, showSources bool) error {
	if !showSources || len(answer.Sources) == 0 {
		return nil
	}

	fmt.Fprintln(w, "\nFound relevant sections:")
	for i, src := range answer.Sources {
		fmt.Fprintf(w, "\n[%d] %s (score %.2f)\n", i+1, service.SourceLine(src.Chunk.Metadata), src.Score)
		fmt.Fprintln(w, strings.TrimSpace(src.Chunk.Text))
	}
	return nil
}
