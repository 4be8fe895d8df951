package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/telemetry"
)

// DefaultTopK is the number of chunks retrieved per question.
const DefaultTopK = 5

const systemPromptTemplate = `You are a helpful assistant that answers questions based strictly on the provided context.
Use only the information from the context to answer questions. If you're unsure or the context
doesn't contain the relevant information, clearly state that you cannot answer based on the available context.
Be precise and only cite information that is explicitly mentioned in the context.

Context:
%s
`

// ChunkSearcher reads from the vector store
type ChunkSearcher interface {
	Search(ctx context.Context, vector []float32, k int) ([]domain.SearchResult, error)
	Count(ctx context.Context) (int, error)
}

// CompletionClient generates the assistant reply to a conversation
type CompletionClient interface {
	Complete(ctx context.Context, messages []domain.Message) (string, error)
}

// StreamingCompletionClient is a CompletionClient that can deliver the reply
// in fragments as the model produces it.
type StreamingCompletionClient interface {
	CompleteStream(ctx context.Context, messages []domain.Message, onDelta func(string)) (string, error)
}

// QueryService runs the query path: embed the question, retrieve the
// nearest chunks, and answer from them.
type QueryService struct {
	embedder  EmbeddingClient
	store     ChunkSearcher
	completer CompletionClient
	topK      int
}

func NewQueryService(embedder EmbeddingClient, store ChunkSearcher, completer CompletionClient, topK int) *QueryService {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &QueryService{
		embedder:  embedder,
		store:     store,
		completer: completer,
		topK:      topK,
	}
}

func (s *QueryService) TopK() int {
	return s.topK
}

// Search returns at most k chunks most similar to question, best first. k <= 0
// uses the service default. An empty store fails with EmptyKnowledgeBase
// before the embedding API is called.
func (s *QueryService) Search(ctx context.Context, question string, k int) ([]domain.SearchResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.ErrEmptyQuestion
	}
	if k <= 0 {
		k = s.topK
	}

	count, err := s.store.Count(ctx)
	if err != nil {
		return nil, domain.NewStorageError("count", err)
	}
	if count == 0 {
		return nil, domain.ErrEmptyKnowledgeBase
	}

	embedCtx, span := telemetry.StartSpan(ctx, "query.embed", telemetry.SpanAttributes{Operation: "embed"})
	vector, err := s.embedder.GenerateEmbedding(embedCtx, question)
	span.End()
	if err != nil {
		return nil, domain.NewEmbeddingError("question", err)
	}

	searchCtx, span := telemetry.StartSpan(ctx, "query.search", telemetry.SpanAttributes{Operation: "search"})
	results, err := s.store.Search(searchCtx, vector, k)
	span.End()
	if err != nil {
		return nil, domain.NewStorageError("search", err)
	}
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Ask answers question from the retrieved context. The session's history is
// sent after the system message, and the exchange is appended to it on
// success. session may be nil for one-shot questions.
func (s *QueryService) Ask(ctx context.Context, session *Session, question string) (*domain.Answer, error) {
	return s.AskStream(ctx, session, question, nil)
}

// AskStream is Ask with onDelta receiving the reply fragments as they are
// generated. A completer that cannot stream delivers the whole reply as one
// fragment. onDelta is not called when retrieval fails.
func (s *QueryService) AskStream(ctx context.Context, session *Session, question string, onDelta func(string)) (*domain.Answer, error) {
	attrs := telemetry.SpanAttributes{Operation: "ask"}
	if session != nil {
		attrs.SessionID = session.ID
		session.ops.Lock()
		defer session.ops.Unlock()
	}
	ctx, span := telemetry.StartSpan(ctx, "query.ask", attrs)
	defer span.End()

	question = strings.TrimSpace(question)
	results, err := s.Search(ctx, question, s.topK)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	contextText := BuildContext(results)
	messages := []domain.Message{{Role: domain.RoleSystem, Content: SystemPrompt(contextText)}}
	if session != nil {
		messages = append(messages, session.History()...)
	}
	messages = append(messages, domain.Message{Role: domain.RoleUser, Content: question})

	completeCtx, completeSpan := telemetry.StartSpan(ctx, "query.complete", telemetry.SpanAttributes{Operation: "complete"})
	text, err := s.complete(completeCtx, messages, onDelta)
	completeSpan.End()
	if err != nil {
		err = domain.NewCompletionError(err)
		span.SetError(err)
		return nil, err
	}

	if session != nil {
		session.AppendExchange(question, text)
	}

	return &domain.Answer{
		Question: question,
		Text:     text,
		Sources:  results,
		Context:  contextText,
	}, nil
}

func (s *QueryService) complete(ctx context.Context, messages []domain.Message, onDelta func(string)) (string, error) {
	if onDelta != nil {
		if sc, ok := s.completer.(StreamingCompletionClient); ok {
			return sc.CompleteStream(ctx, messages, onDelta)
		}
	}
	text, err := s.completer.Complete(ctx, messages)
	if err == nil && onDelta != nil && text != "" {
		onDelta(text)
	}
	return text, err
}

// SystemPrompt restricts the model to the given context.
func SystemPrompt(contextText string) string {
	return fmt.Sprintf(systemPromptTemplate, contextText)
}

// BuildContext renders retrieved chunks as blocks of
//
//	text
//	Source: file - p. 1, 2
//	Title: heading
//
// joined by blank lines.
func BuildContext(results []domain.SearchResult) string {
	blocks := make([]string, 0, len(results))
	for _, r := range results {
		blocks = append(blocks, r.Chunk.Text+SourceLine(r.Chunk.Metadata))
	}
	return strings.Join(blocks, "\n\n")
}

// SourceLine is the citation appended to a chunk in the prompt context.
func SourceLine(meta domain.ChunkMetadata) string {
	var parts []string
	if meta.Filename != "" {
		parts = append(parts, meta.Filename)
	}
	if len(meta.PageNumbers) > 0 {
		pages := make([]string, len(meta.PageNumbers))
		for i, p := range meta.PageNumbers {
			pages[i] = strconv.Itoa(p)
		}
		parts = append(parts, "p. "+strings.Join(pages, ", "))
	}

	line := "\nSource: " + strings.Join(parts, " - ")
	if meta.Title != "" {
		line += "\nTitle: " + meta.Title
	}
	return line
}
