package service

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cloo-solutions/docqa/internal/domain"
)

// Session holds the per-visitor state of the interactive shell: the set of
// filenames already ingested and the chat history. It lives in memory only.
type Session struct {
	ID        string
	CreatedAt time.Time

	// ops serialises ingest and ask operations of one session
	ops sync.Mutex

	mu        sync.RWMutex
	processed map[string]struct{}
	history   []domain.Message
	lastSeen  time.Time
}

func NewSession(id string, now time.Time) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	return &Session{
		ID:        id,
		CreatedAt: now,
		processed: make(map[string]struct{}),
		lastSeen:  now,
	}
}

func (s *Session) HasProcessed(filename string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.processed[filename]
	return ok
}

func (s *Session) MarkProcessed(filename string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed[filename] = struct{}{}
}

// ProcessedFiles returns the ingested filenames, sorted.
func (s *Session) ProcessedFiles() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	files := make([]string, 0, len(s.processed))
	for name := range s.processed {
		files = append(files, name)
	}
	sort.Strings(files)
	return files
}

// History returns a copy of the chat history, oldest first.
func (s *Session) History() []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Message(nil), s.history...)
}

func (s *Session) AppendExchange(question, answer string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history,
		domain.Message{Role: domain.RoleUser, Content: question},
		domain.Message{Role: domain.RoleAssistant, Content: answer},
	)
}

// ClearHistory drops the chat history. Ingested filenames are kept.
func (s *Session) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.After(s.lastSeen) {
		s.lastSeen = now
	}
}

func (s *Session) LastSeen() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSeen
}

// SessionRegistry maps session IDs to sessions.
type SessionRegistry struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewSessionRegistry(ttl time.Duration) *SessionRegistry {
	return &SessionRegistry{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// SetClock replaces the registry's time source.
func (r *SessionRegistry) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// Get returns the session with id and marks it as seen.
func (r *SessionRegistry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	s.touch(r.now())
	return s, nil
}

// GetOrCreate returns the session with id, creating a fresh one with a new
// ID when id is empty or unknown. created reports which happened.
func (r *SessionRegistry) GetOrCreate(id string) (s *Session, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	if id != "" {
		if s, ok := r.sessions[id]; ok {
			s.touch(now)
			return s, false
		}
	}
	s = NewSession("", now)
	r.sessions[s.ID] = s
	return s, true
}

func (r *SessionRegistry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep evicts sessions idle for longer than the TTL and returns how many
// were removed. A zero TTL keeps sessions forever.
func (r *SessionRegistry) Sweep() int {
	if r.ttl <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-r.ttl)
	removed := 0
	for id, s := range r.sessions {
		if s.LastSeen().Before(cutoff) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}
