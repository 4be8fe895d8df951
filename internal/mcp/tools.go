package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/service"
)

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"the question or text to find similar document chunks for"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of chunks to return (default 5)"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []ChunkOutput `json:"results"`
	Count   int           `json:"count"`
}

// ChunkOutput is one retrieved chunk with its source.
type ChunkOutput struct {
	Filename string   `json:"filename"`
	Pages    []int    `json:"page_numbers,omitempty"`
	Title    string   `json:"title,omitempty"`
	Score    float64  `json:"score"`
	Text     string   `json:"text"`
	Headings []string `json:"headings,omitempty"`
}

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question  string `json:"question" jsonschema:"the question to answer from the ingested documents"`
	SessionID string `json:"session_id,omitempty" jsonschema:"continue the conversation of this session"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Answer    string        `json:"answer"`
	Sources   []ChunkOutput `json:"sources"`
	SessionID string        `json:"session_id,omitempty"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Find the document chunks most similar to a query",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question strictly from the ingested documents",
	}, s.handleAsk)
}

func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = service.DefaultTopK
	}

	results, err := s.ports.Search.Search(ctx, input.Query, limit)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Results: chunkOutputs(results),
		Count:   len(results),
	}
	return nil, output, nil
}

func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	var session *service.Session
	if s.ports.Sessions != nil && input.SessionID != "" {
		session, _ = s.ports.Sessions.GetOrCreate(input.SessionID)
	}

	answer, err := s.ports.Ask.Ask(ctx, session, input.Question)
	if err != nil {
		return nil, AskOutput{}, err
	}

	output := AskOutput{
		Answer:  answer.Text,
		Sources: chunkOutputs(answer.Sources),
	}
	if session != nil {
		output.SessionID = session.ID
	}
	return nil, output, nil
}

func chunkOutputs(results []domain.SearchResult) []ChunkOutput {
	out := make([]ChunkOutput, len(results))
	for i, r := range results {
		meta := r.Chunk.Metadata
		out[i] = ChunkOutput{
			Filename: meta.Filename,
			Pages:    meta.PageNumbers,
			Title:    meta.Title,
			Score:    r.Score,
			Text:     r.Chunk.Text,
			Headings: meta.Headings,
		}
	}
	return out
}
