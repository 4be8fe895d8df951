package jobs

import (
	"context"
	"log"
)

// SessionEvictor drops idle sessions and reports how many were removed.
type SessionEvictor interface {
	Sweep() int
	Len() int
}

// SessionSweeper evicts sessions idle longer than the registry TTL. Staged
// uploads of evicted sessions stay on disk as the raw-file copy.
type SessionSweeper struct {
	sessions SessionEvictor
}

func NewSessionSweeper(sessions SessionEvictor) *SessionSweeper {
	return &SessionSweeper{sessions: sessions}
}

func (s *SessionSweeper) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if removed := s.sessions.Sweep(); removed > 0 {
		log.Printf("evicted %d idle sessions, %d remaining", removed, s.sessions.Len())
	}
	return nil
}
