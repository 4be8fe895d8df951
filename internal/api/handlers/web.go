package handlers

import (
	"bytes"
	"html/template"
	"log"
	"net/http"
	"strings"

	"github.com/cloo-solutions/docqa/internal/api/middleware"
	"github.com/cloo-solutions/docqa/internal/domain"
)

// WebHandler serves the browser shell: upload form, chat and stats panel.
type WebHandler struct {
	templates *template.Template
	documents *DocumentHandler
	query     QueryService
	stats     StatsService
}

func NewWebHandler(templates *template.Template, documents *DocumentHandler, query QueryService, stats StatsService) *WebHandler {
	return &WebHandler{
		templates: templates,
		documents: documents,
		query:     query,
		stats:     stats,
	}
}

type pageData struct {
	Formats    []domain.Format
	Stats      *domain.KnowledgeStats
	StatsError bool
	Empty      bool
	History    []domain.Message
	Upload     *domain.IngestStats
	Answer     *AskResponse
	Error      string
}

func (h *WebHandler) Index(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, pageData{})
}

// ProcessDocuments ingests the uploaded files not yet processed in this session.
func (h *WebHandler) ProcessDocuments(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())
	if session == nil {
		h.render(w, r, http.StatusInternalServerError, pageData{Error: "session not resolved"})
		return
	}

	stats, err := h.documents.process(r, session)
	if err != nil {
		h.render(w, r, http.StatusBadRequest, pageData{Error: err.Error()})
		return
	}
	h.render(w, r, http.StatusOK, pageData{Upload: stats})
}

func (h *WebHandler) Ask(w http.ResponseWriter, r *http.Request) {
	question := strings.TrimSpace(r.FormValue("question"))
	answer, err := h.query.Ask(r.Context(), middleware.GetSession(r.Context()), question)
	if err != nil {
		h.render(w, r, http.StatusOK, pageData{Error: userMessage(err)})
		return
	}
	h.render(w, r, http.StatusOK, pageData{Answer: answerToResponse(answer)})
}

func (h *WebHandler) ClearChat(w http.ResponseWriter, r *http.Request) {
	if session := middleware.GetSession(r.Context()); session != nil {
		session.ClearHistory()
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *WebHandler) render(w http.ResponseWriter, r *http.Request, status int, data pageData) {
	data.Formats = domain.SupportedFormats

	stats, err := h.stats.Stats(r.Context())
	if err != nil {
		log.Printf("web: failed to load stats: %v", err)
		data.StatsError = true
		data.Stats = &domain.KnowledgeStats{Files: []string{}}
	} else {
		data.Stats = stats
	}
	data.Empty = data.Stats.TotalChunks == 0

	if session := middleware.GetSession(r.Context()); session != nil {
		data.History = session.History()
	}

	var buf bytes.Buffer
	if err := h.templates.ExecuteTemplate(&buf, "index.html", data); err != nil {
		log.Printf("web: failed to render page: %v", err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// userMessage names the failing step for display in the page.
func userMessage(err error) string {
	switch domain.ErrorCode(err) {
	case domain.ErrCodeEmptyKnowledgeBase:
		return "Please upload and process some documents before asking questions."
	case domain.ErrCodeValidation:
		return "Please enter a question."
	case domain.ErrCodeEmbeddingAPI:
		return "Searching documents failed: " + err.Error()
	case domain.ErrCodeCompletionAPI:
		return "Generating the answer failed: " + err.Error()
	default:
		return err.Error()
	}
}
