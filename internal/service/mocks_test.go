package service

import (
	"context"
	"strings"

	"github.com/stretchr/testify/mock"

	"github.com/cloo-solutions/docqa/internal/domain"
)

// MockConverter mocks the document converter
type MockConverter struct {
	mock.Mock
}

func (m *MockConverter) Convert(ctx context.Context, path string) (*domain.Document, error) {
	args := m.Called(ctx, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

// MockEmbeddingClient mocks the OpenAI embeddings client
type MockEmbeddingClient struct {
	mock.Mock
}

func (m *MockEmbeddingClient) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

// MockCompletionClient mocks the OpenAI chat client
type MockCompletionClient struct {
	mock.Mock
}

func (m *MockCompletionClient) Complete(ctx context.Context, messages []domain.Message) (string, error) {
	args := m.Called(ctx, messages)
	return args.String(0), args.Error(1)
}

// MockChunkStore mocks the vector store
type MockChunkStore struct {
	mock.Mock
}

func (m *MockChunkStore) Append(ctx context.Context, rec *domain.ChunkRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockChunkStore) Search(ctx context.Context, vector []float32, k int) ([]domain.SearchResult, error) {
	args := m.Called(ctx, vector, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SearchResult), args.Error(1)
}

func (m *MockChunkStore) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockChunkStore) Filenames(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockArchiver mocks the source file archive
type MockArchiver struct {
	mock.Mock
}

func (m *MockArchiver) Archive(ctx context.Context, path string) error {
	args := m.Called(ctx, path)
	return args.Error(0)
}

// MockStreamingCompletionClient mocks a chat client that streams its reply
type MockStreamingCompletionClient struct {
	MockCompletionClient
}

func (m *MockStreamingCompletionClient) CompleteStream(ctx context.Context, messages []domain.Message, onDelta func(string)) (string, error) {
	args := m.Called(ctx, messages, onDelta)
	deltas, _ := args.Get(0).([]string)
	for _, d := range deltas {
		onDelta(d)
	}
	return strings.TrimSpace(strings.Join(deltas, "")), args.Error(1)
}
