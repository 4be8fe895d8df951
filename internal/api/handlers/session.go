package handlers

import (
	"net/http"
	"time"

	"github.com/cloo-solutions/docqa/internal/api"
	"github.com/cloo-solutions/docqa/internal/api/middleware"
	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/service"
)

// SessionStore looks up and drops sessions by ID
type SessionStore interface {
	Get(id string) (*service.Session, error)
	Delete(id string)
}

type SessionHandler struct {
	sessions SessionStore
}

func NewSessionHandler(sessions SessionStore) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

type SessionResponse struct {
	ID             string           `json:"id"`
	CreatedAt      string           `json:"created_at"`
	ProcessedFiles []string         `json:"processed_files"`
	History        []domain.Message `json:"history"`
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())
	if session == nil {
		api.HandleError(w, domain.ErrSessionNotFound)
		return
	}

	history := session.History()
	if history == nil {
		history = []domain.Message{}
	}
	api.Success(w, http.StatusOK, &SessionResponse{
		ID:             session.ID,
		CreatedAt:      session.CreatedAt.UTC().Format(time.RFC3339),
		ProcessedFiles: session.ProcessedFiles(),
		History:        history,
	})
}

// ClearHistory drops the chat history; ingested files stay recorded.
func (h *SessionHandler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())
	if session == nil {
		api.HandleError(w, domain.ErrSessionNotFound)
		return
	}
	session.ClearHistory()
	w.WriteHeader(http.StatusNoContent)
}

// End drops the caller's session. It runs without the session middleware so
// an unknown ID is reported instead of replaced. Stored chunks and staged
// uploads are kept.
func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	id := middleware.RequestSessionID(r)
	if id == "" || h.sessions == nil {
		api.HandleError(w, domain.ErrSessionNotFound)
		return
	}
	if _, err := h.sessions.Get(id); err != nil {
		api.HandleError(w, err)
		return
	}
	h.sessions.Delete(id)
	middleware.ExpireSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}
