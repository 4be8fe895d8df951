package mcp

import (
	"context"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/service"
)

type mockSearchService struct {
	results []domain.SearchResult
	err     error
	gotK    int
}

func (m *mockSearchService) Search(_ context.Context, _ string, k int) ([]domain.SearchResult, error) {
	m.gotK = k
	if m.err != nil {
		return nil, m.err
	}
	if len(m.results) > k {
		return m.results[:k], nil
	}
	return m.results, nil
}

type mockAskService struct {
	answer  *domain.Answer
	err     error
	session *service.Session
}

func (m *mockAskService) Ask(_ context.Context, session *service.Session, question string) (*domain.Answer, error) {
	m.session = session
	if m.err != nil {
		return nil, m.err
	}
	if session != nil {
		session.AppendExchange(question, m.answer.Text)
	}
	return m.answer, nil
}

type mockStatsService struct {
	stats *domain.KnowledgeStats
	err   error
}

func (m *mockStatsService) Stats(_ context.Context) (*domain.KnowledgeStats, error) {
	return m.stats, m.err
}

func sampleResults(n int) []domain.SearchResult {
	out := make([]domain.SearchResult, n)
	for i := range out {
		out[i] = domain.SearchResult{
			Chunk: domain.Chunk{
				Position: i,
				Text:     "chunk text",
				Metadata: domain.ChunkMetadata{Filename: "test_document.md", PageNumbers: []int{1}, Title: "Features"},
			},
			Score: 1 - float64(i)/10,
		}
	}
	return out
}
