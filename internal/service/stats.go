package service

import (
	"context"

	"github.com/cloo-solutions/docqa/internal/domain"
)

// StatsReader reports what the vector store holds
type StatsReader interface {
	Count(ctx context.Context) (int, error)
	Filenames(ctx context.Context) ([]string, error)
}

type StatsService struct {
	store StatsReader
}

func NewStatsService(store StatsReader) *StatsService {
	return &StatsService{store: store}
}

// Stats returns the total chunk count and the sorted unique filenames.
func (s *StatsService) Stats(ctx context.Context) (*domain.KnowledgeStats, error) {
	count, err := s.store.Count(ctx)
	if err != nil {
		return nil, domain.NewStorageError("count", err)
	}
	files, err := s.store.Filenames(ctx)
	if err != nil {
		return nil, domain.NewStorageError("list", err)
	}
	if files == nil {
		files = []string{}
	}
	return &domain.KnowledgeStats{TotalChunks: count, Files: files}, nil
}
