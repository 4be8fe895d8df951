package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/cloo-solutions/docqa/internal/api"
	"github.com/cloo-solutions/docqa/internal/api/middleware"
	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/service"
)

type QueryService interface {
	Ask(ctx context.Context, session *service.Session, question string) (*domain.Answer, error)
	AskStream(ctx context.Context, session *service.Session, question string, onDelta func(string)) (*domain.Answer, error)
}

type AskHandler struct {
	svc QueryService
}

func NewAskHandler(svc QueryService) *AskHandler {
	return &AskHandler{svc: svc}
}

type AskRequest struct {
	Question string `json:"question"`
}

type SourceResponse struct {
	Filename string   `json:"filename"`
	Pages    []int    `json:"page_numbers,omitempty"`
	Title    string   `json:"title,omitempty"`
	Headings []string `json:"headings,omitempty"`
	Score    float64  `json:"score"`
	Text     string   `json:"text"`
}

type AskResponse struct {
	Question string           `json:"question"`
	Answer   string           `json:"answer"`
	Sources  []SourceResponse `json:"sources"`
}

func answerToResponse(a *domain.Answer) *AskResponse {
	resp := &AskResponse{
		Question: a.Question,
		Answer:   a.Text,
		Sources:  make([]SourceResponse, 0, len(a.Sources)),
	}
	for _, src := range a.Sources {
		meta := src.Chunk.Metadata
		resp.Sources = append(resp.Sources, SourceResponse{
			Filename: meta.Filename,
			Pages:    meta.PageNumbers,
			Title:    meta.Title,
			Headings: meta.Headings,
			Score:    src.Score,
			Text:     src.Chunk.Text,
		})
	}
	return resp
}

func (h *AskHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, domain.ErrCodeValidation, "invalid request body")
		return
	}

	answer, err := h.svc.Ask(r.Context(), middleware.GetSession(r.Context()), req.Question)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, answerToResponse(answer))
}

// AskStream answers like Ask as a server-sent event stream: one "delta" event
// per reply fragment, then an "answer" event carrying the AskResponse. A
// failure before the first fragment is an ordinary JSON error; after it, an
// "error" event ends the stream.
func (h *AskHandler) AskStream(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, domain.ErrCodeValidation, "invalid request body")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		api.Error(w, http.StatusInternalServerError, domain.ErrCodeInternalError, "streaming not supported")
		return
	}

	started := false
	send := func(event string, payload any) {
		if !started {
			w.Header().Set("Content-Type", "text/event-stream")
			w.Header().Set("Cache-Control", "no-cache")
			w.Header().Set("X-Accel-Buffering", "no")
			w.WriteHeader(http.StatusOK)
			started = true
		}
		data, _ := json.Marshal(payload)
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
		flusher.Flush()
	}

	answer, err := h.svc.AskStream(r.Context(), middleware.GetSession(r.Context()), req.Question, func(delta string) {
		send("delta", StreamDelta{Text: delta})
	})
	if err != nil {
		if !started {
			api.HandleError(w, err)
			return
		}
		_, body := api.ErrorBody(err)
		send("error", body)
		return
	}

	send("answer", answerToResponse(answer))
}

// StreamDelta is the payload of a "delta" event.
type StreamDelta struct {
	Text string `json:"text"`
}
