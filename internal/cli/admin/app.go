package admin

import (
	"context"
	"fmt"
	"log"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"

	"github.com/cloo-solutions/docqa/internal/config"
	"github.com/cloo-solutions/docqa/internal/convert"
	"github.com/cloo-solutions/docqa/internal/database"
	"github.com/cloo-solutions/docqa/internal/mcp"
	"github.com/cloo-solutions/docqa/internal/openai"
	"github.com/cloo-solutions/docqa/internal/repository"
	"github.com/cloo-solutions/docqa/internal/service"
	"github.com/cloo-solutions/docqa/internal/storage"
	"github.com/cloo-solutions/docqa/internal/telemetry"
)

// Options adjusts how the application is assembled.
type Options struct {
	// NoMigrate skips applying the store schema on startup
	NoMigrate bool
	// ConverterOptions are passed to the document converter
	ConverterOptions []convert.Option
}

// App holds the wired ingest and query pipelines shared by every daemon
// command.
type App struct {
	Config   *config.Config
	Store    repository.ChunkStore
	Ingest   *service.IngestService
	Query    *service.QueryService
	Stats    *service.StatsService
	Sessions *service.SessionRegistry
	Stager   *storage.Stager

	closers []func()
}

// NewApp opens the configured vector store and builds the pipelines on top
// of it. Close releases what it opened.
func NewApp(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	if !cfg.HasOpenAI() {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}

	app := &App{Config: cfg}

	store, err := openStore(ctx, cfg, opts.NoMigrate)
	if err != nil {
		return nil, err
	}
	app.Store = store
	app.closers = append(app.closers, func() {
		if err := store.Close(); err != nil {
			log.Printf("failed to close store: %v", err)
		}
	})

	client := openai.NewClientWithConfig(openai.Config{
		APIKey:              cfg.OpenAIAPIKey,
		BaseURL:             cfg.OpenAIBaseURL,
		Timeout:             cfg.OpenAITimeout,
		EmbeddingModel:      goopenai.EmbeddingModel(cfg.EmbeddingModel),
		EmbeddingDimensions: cfg.EmbeddingDimensions,
		ChatModel:           cfg.ChatModel,
		Temperature:         cfg.Temperature,
	})

	dims, err := store.Dimensions(ctx)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to read store dimensions: %w", err)
	}
	if dims > 0 && dims != client.Dimensions() {
		app.Close()
		return nil, fmt.Errorf("store holds %d-dimensional vectors but EMBEDDING_DIMENSIONS is %d", dims, client.Dimensions())
	}

	converter, err := convert.New(ctx, opts.ConverterOptions...)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to create converter: %w", err)
	}
	if err := convert.CheckPDFTool(); err != nil {
		log.Printf("pdf support unavailable: %v\n%s", err, convert.PDFInstallInstructions())
	}

	if err := service.LoadTokenizer(); err != nil {
		app.Close()
		return nil, err
	}
	chunker := service.NewChunker(service.ChunkConfig{
		MaxTokens:     cfg.ChunkMaxTokens,
		MinTokens:     cfg.ChunkMinTokens,
		OverlapTokens: cfg.ChunkOverlapTokens,
	})

	app.Ingest = service.NewIngestService(converter, chunker, client, store)
	if cfg.HasS3() {
		archiver, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
			Root:            cfg.UploadsDir(),
		})
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := archiver.EnsureBucket(ctx); err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", archiver.Bucket())
		app.Ingest.WithArchiver(archiver)
	}

	app.Query = service.NewQueryService(client, store, client, cfg.TopK)
	app.Stats = service.NewStatsService(store)
	app.Sessions = service.NewSessionRegistry(cfg.SessionTTL)
	app.Stager = storage.NewStager(cfg.UploadsDir(), cfg.MaxUploadBytes)

	return app, nil
}

// MCPServer exposes the pipelines over MCP.
func (a *App) MCPServer() (*mcp.Server, error) {
	return mcp.NewServer(&mcp.Ports{
		Search:   a.Query,
		Ask:      a.Query,
		Stats:    a.Stats,
		Sessions: a.Sessions,
	})
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func openStore(ctx context.Context, cfg *config.Config, noMigrate bool) (repository.ChunkStore, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		log.Println("connected to database")
		if !noMigrate {
			if err := database.MigratePostgres(cfg.DatabaseURL); err != nil {
				pool.Close()
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
		}
		return repository.NewPostgresChunkStore(pool), nil

	default:
		db, err := database.OpenSQLite(cfg.SQLitePath())
		if err != nil {
			return nil, err
		}
		log.Printf("opened sqlite store at %s", cfg.SQLitePath())
		if !noMigrate {
			if err := database.MigrateSQLite(db); err != nil {
				db.Close()
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
		}
		return repository.NewSQLiteChunkStore(db), nil
	}
}

// addStoreFlags registers the flags every command that opens the store accepts.
func addStoreFlags(cmd *cobra.Command) {
	cmd.Flags().String("data-dir", "", "Directory for uploads and the embedded store (overrides DOCQA_DATA_DIR)")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
}

// loadConfig reads the environment and applies flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if dir, _ := cmd.Flags().GetString("data-dir"); dir != "" {
		cfg.DataDir = dir
	}
	return cfg, nil
}

func newAppFromCmd(cmd *cobra.Command) (*App, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}

	shutdownTelemetry := initTelemetry(cfg)

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	app, err := NewApp(cmd.Context(), cfg, Options{NoMigrate: noMigrate})
	if err != nil {
		shutdownTelemetry()
		return nil, nil, err
	}

	return app, func() {
		app.Close()
		shutdownTelemetry()
	}, nil
}

// initTelemetry starts Sentry when SENTRY_DSN is set. Production samples 10%
// of traces, everything else 100%.
func initTelemetry(cfg *config.Config) func() {
	if cfg.SentryDSN == "" {
		return func() {}
	}

	sampleRate := 1.0
	if cfg.Environment == "production" {
		sampleRate = 0.1
	}

	shutdown, err := telemetry.Init(telemetry.Config{
		DSN:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		TracesSampleRate: sampleRate,
		Debug:            cfg.Debug,
	})
	if err != nil {
		log.Printf("telemetry init failed (continuing without tracing): %v", err)
		return func() {}
	}
	return shutdown
}
