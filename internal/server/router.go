package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cloo-solutions/docqa/internal/api"
	"github.com/cloo-solutions/docqa/internal/api/handlers"
	"github.com/cloo-solutions/docqa/internal/api/middleware"
)

const (
	defaultJSONBodyBytes      int64 = 1 << 20
	defaultMultipartBodyBytes int64 = 256 << 20
)

type RouterConfig struct {
	Sessions middleware.SessionProvider
	// APIToken guards /api and /mcp when set
	APIToken string
	// BodyLimits zero values fall back to the defaults
	BodyLimits middleware.BodyLimits

	WebHandler      *handlers.WebHandler
	DocumentHandler *handlers.DocumentHandler
	AskHandler      *handlers.AskHandler
	StatsHandler    *handlers.StatsHandler
	SessionHandler  *handlers.SessionHandler

	// MCPHandler serves the MCP streamable HTTP transport when set
	MCPHandler http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	limits := cfg.BodyLimits
	if limits.JSON <= 0 {
		limits.JSON = defaultJSONBodyBytes
	}
	if limits.Multipart <= 0 {
		limits.Multipart = defaultMultipartBodyBytes
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.LimitBody(limits))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Sessions(cfg.Sessions))

		r.Get("/", cfg.WebHandler.Index)
		r.Post("/documents", cfg.WebHandler.ProcessDocuments)
		r.Post("/ask", cfg.WebHandler.Ask)
		r.Post("/chat/clear", cfg.WebHandler.ClearChat)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.TokenAuth(cfg.APIToken))

		r.Get("/stats", cfg.StatsHandler.Get)
		r.Delete("/session", cfg.SessionHandler.End)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Sessions(cfg.Sessions))

			r.Post("/documents", cfg.DocumentHandler.Upload)
			r.Post("/ask", cfg.AskHandler.Ask)
			r.Post("/ask/stream", cfg.AskHandler.AskStream)
			r.Get("/session", cfg.SessionHandler.Get)
			r.Delete("/session/history", cfg.SessionHandler.ClearHistory)
		})
	})

	if cfg.MCPHandler != nil {
		r.With(middleware.TokenAuth(cfg.APIToken)).Handle("/mcp", cfg.MCPHandler)
	}

	return r
}
