package admin

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/docqa/internal/api/handlers"
	"github.com/cloo-solutions/docqa/internal/api/middleware"
	"github.com/cloo-solutions/docqa/internal/jobs"
	"github.com/cloo-solutions/docqa/internal/server"
	"github.com/cloo-solutions/docqa/internal/web"
)

const shutdownTimeout = 30 * time.Second

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web interface and API server",
		Long:  "Start the docqa web interface, JSON API and MCP endpoint on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (overrides PORT)")
	cmd.Flags().Bool("no-mcp", false, "Do not mount the MCP endpoint at /mcp")
	addStoreFlags(cmd)

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	app, cleanup, err := newAppFromCmd(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	cfg := app.Config
	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}

	noMCP, _ := cmd.Flags().GetBool("no-mcp")
	handler, err := NewHandler(app, noMCP)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sweeper := jobs.NewWorker("session-sweeper", jobs.NewSessionSweeper(app.Sessions), cfg.SessionSweepInterval)
	go sweeper.Start(ctx)
	log.Printf("session sweeper started (ttl %s, every %s)", cfg.SessionTTL, cfg.SessionSweepInterval)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	// the root command's context is cancelled on SIGINT and SIGTERM
	select {
	case <-ctx.Done():
	case err := <-errc:
		return fmt.Errorf("server failed: %w", err)
	}
	log.Println("shutting down...")

	sweeper.Stop()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

// NewHandler builds the HTTP handler serving the web interface, the JSON API
// and, unless disabled, the MCP endpoint.
func NewHandler(app *App, disableMCP bool) (http.Handler, error) {
	templates, err := web.Templates()
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}

	documents := handlers.NewDocumentHandler(app.Ingest, app.Stager)

	limits := middleware.BodyLimits{
		JSON:      app.Config.MaxJSONBytes,
		Multipart: app.Config.MaxRequestBytes,
	}

	routerCfg := server.RouterConfig{
		Sessions:        app.Sessions,
		APIToken:        app.Config.APIToken,
		BodyLimits:      limits,
		WebHandler:      handlers.NewWebHandler(templates, documents, app.Query, app.Stats),
		DocumentHandler: documents,
		AskHandler:      handlers.NewAskHandler(app.Query),
		StatsHandler:    handlers.NewStatsHandler(app.Stats),
		SessionHandler:  handlers.NewSessionHandler(app.Sessions),
	}

	if !disableMCP {
		mcpServer, err := app.MCPServer()
		if err != nil {
			return nil, fmt.Errorf("failed to create MCP server: %w", err)
		}
		routerCfg.MCPHandler = mcpServer.Handler()
	}

	return server.NewRouter(routerCfg), nil
}
