package config

import (
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	StoreDriverSQLite   = "sqlite"
	StoreDriverPostgres = "postgres"

	// EmbeddingInputLimit is the input token limit of the OpenAI embedding models.
	EmbeddingInputLimit = 8191
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DataDir string `envconfig:"DATA_DIR" default:"data"`

	// MaxUploadBytes caps a single uploaded file, MaxRequestBytes a whole
	// multipart upload request.
	MaxUploadBytes  int64 `envconfig:"MAX_UPLOAD_BYTES" default:"52428800"`
	MaxRequestBytes int64 `envconfig:"MAX_REQUEST_BYTES" default:"268435456"`
	MaxJSONBytes    int64 `envconfig:"MAX_JSON_BYTES" default:"1048576"`

	StoreDriver string `envconfig:"STORE_DRIVER" default:"sqlite"`
	DatabaseURL string `envconfig:"DATABASE_URL"`

	OpenAIAPIKey        string        `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL       string        `envconfig:"OPENAI_BASE_URL"`
	OpenAITimeout       time.Duration `envconfig:"OPENAI_TIMEOUT" default:"120s"`
	EmbeddingModel      string        `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-large"`
	EmbeddingDimensions int           `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`
	ChatModel           string        `envconfig:"CHAT_MODEL" default:"gpt-4o-mini"`
	Temperature         float32       `envconfig:"TEMPERATURE" default:"0.4"`
	TopK                int           `envconfig:"TOP_K" default:"5"`

	ChunkMaxTokens     int `envconfig:"CHUNK_MAX_TOKENS" default:"1024"`
	ChunkMinTokens     int `envconfig:"CHUNK_MIN_TOKENS" default:"64"`
	ChunkOverlapTokens int `envconfig:"CHUNK_OVERLAP_TOKENS" default:"48"`

	// APIToken protects the JSON API when set
	APIToken string `envconfig:"API_TOKEN"`

	SessionTTL           time.Duration `envconfig:"SESSION_TTL" default:"24h"`
	SessionSweepInterval time.Duration `envconfig:"SESSION_SWEEP_INTERVAL" default:"10m"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"docqa-uploads"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("DOCQA", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverSQLite:
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER is %q", StoreDriverPostgres)
		}
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q (expected %q or %q)", c.StoreDriver, StoreDriverSQLite, StoreDriverPostgres)
	}

	if c.ChunkMaxTokens <= 0 || c.ChunkMaxTokens > EmbeddingInputLimit {
		return fmt.Errorf("CHUNK_MAX_TOKENS must be between 1 and %d, got %d", EmbeddingInputLimit, c.ChunkMaxTokens)
	}
	if c.ChunkMinTokens < 0 || c.ChunkMinTokens > c.ChunkMaxTokens {
		return fmt.Errorf("CHUNK_MIN_TOKENS must be between 0 and CHUNK_MAX_TOKENS, got %d", c.ChunkMinTokens)
	}
	if c.ChunkOverlapTokens < 0 || c.ChunkOverlapTokens >= c.ChunkMaxTokens {
		return fmt.Errorf("CHUNK_OVERLAP_TOKENS must be smaller than CHUNK_MAX_TOKENS, got %d", c.ChunkOverlapTokens)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("TOP_K must be positive, got %d", c.TopK)
	}
	if c.MaxRequestBytes > 0 && c.MaxRequestBytes < c.MaxUploadBytes {
		return fmt.Errorf("MAX_REQUEST_BYTES (%d) must be at least MAX_UPLOAD_BYTES (%d)", c.MaxRequestBytes, c.MaxUploadBytes)
	}
	if c.EmbeddingDimensions <= 0 {
		return fmt.Errorf("EMBEDDING_DIMENSIONS must be positive, got %d", c.EmbeddingDimensions)
	}

	return nil
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

// UploadsDir is where uploaded files are staged before conversion.
func (c *Config) UploadsDir() string {
	return filepath.Join(c.DataDir, "uploads")
}

// SQLitePath is the embedded vector store file.
func (c *Config) SQLitePath() string {
	return filepath.Join(c.DataDir, "docqa.db")
}
