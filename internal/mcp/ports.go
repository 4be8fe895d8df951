package mcp

import (
	"context"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/service"
)

type SearchService interface {
	Search(ctx context.Context, question string, k int) ([]domain.SearchResult, error)
}

type AskService interface {
	Ask(ctx context.Context, session *service.Session, question string) (*domain.Answer, error)
}

type StatsService interface {
	Stats(ctx context.Context) (*domain.KnowledgeStats, error)
}

type SessionProvider interface {
	GetOrCreate(id string) (*service.Session, bool)
}

// Ports aggregates the services the MCP server drives.
type Ports struct {
	Search SearchService
	Ask    AskService

	// Stats backs the stats resource; optional
	Stats StatsService
	// Sessions lets ask calls continue a conversation; optional
	Sessions SessionProvider
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Search == nil {
		return ErrMissingSearchService
	}
	if p.Ask == nil {
		return ErrMissingAskService
	}
	return nil
}
