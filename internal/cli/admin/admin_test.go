package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/docqa/internal/config"
	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/service"
	"github.com/cloo-solutions/docqa/internal/testutil"
)

const testDimensions = 8

const featuresDoc = `# Test Document

## Features

This document tests document upload and the processing pipeline.

## Chunking

Chunking splits the text before embedding and storage.
`

func testConfig(t *testing.T, fake *testutil.FakeOpenAI) *config.Config {
	t.Helper()
	return &config.Config{
		Port:                 "0",
		DataDir:              t.TempDir(),
		MaxUploadBytes:       1 << 20,
		StoreDriver:          config.StoreDriverSQLite,
		OpenAIAPIKey:         "sk-test",
		OpenAIBaseURL:        fake.BaseURL(),
		OpenAITimeout:        5 * time.Second,
		EmbeddingModel:       "text-embedding-3-large",
		EmbeddingDimensions:  testDimensions,
		ChatModel:            "gpt-4o-mini",
		Temperature:          0.4,
		TopK:                 5,
		ChunkMaxTokens:       256,
		ChunkMinTokens:       8,
		ChunkOverlapTokens:   16,
		SessionTTL:           time.Hour,
		SessionSweepInterval: time.Minute,
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// setEnv points config.Load at the fake API.
func setEnv(t *testing.T, fake *testutil.FakeOpenAI) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_BASE_URL", fake.BaseURL())
	t.Setenv("DOCQA_EMBEDDING_DIMENSIONS", "8")
	t.Setenv("DOCQA_STORE_DRIVER", "sqlite")
	t.Setenv("SENTRY_DSN", "")
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestNewApp_RequiresAPIKey(t *testing.T) {
	fake := testutil.NewFakeOpenAI(t, testDimensions)
	cfg := testConfig(t, fake)
	cfg.OpenAIAPIKey = ""

	_, err := NewApp(context.Background(), cfg, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}

func TestNewApp_IngestAndAsk(t *testing.T) {
	ctx := context.Background()
	fake := testutil.NewFakeOpenAI(t, testDimensions, "upload", "pipeline", "chunking")
	cfg := testConfig(t, fake)

	app, err := NewApp(ctx, cfg, Options{})
	require.NoError(t, err)
	defer app.Close()

	path := writeFile(t, t.TempDir(), "test_document.md", featuresDoc)
	session := service.NewSession("", time.Now())
	stats := app.Ingest.IngestFiles(ctx, session, []service.UploadedFile{{Name: "test_document.md", Path: path}})
	require.Equal(t, 1, stats.FilesProcessed, "%+v", stats.PerFile)
	assert.Positive(t, stats.TotalChunks)

	kb, err := app.Stats.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, stats.TotalChunks, kb.TotalChunks)
	assert.Equal(t, []string{"test_document.md"}, kb.Files)

	answer, err := app.Query.Ask(ctx, session, "What does chunking do?")
	require.NoError(t, err)
	assert.Equal(t, "answered from context", answer.Text)
	assert.Contains(t, answer.Context, "Chunking splits the text")
	require.Len(t, fake.Chats(), 1)
}

func TestNewApp_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	fake := testutil.NewFakeOpenAI(t, testDimensions, "upload")
	cfg := testConfig(t, fake)

	app, err := NewApp(ctx, cfg, Options{})
	require.NoError(t, err)
	path := writeFile(t, t.TempDir(), "a.md", featuresDoc)
	stats := app.Ingest.IngestFiles(ctx, nil, []service.UploadedFile{{Name: "a.md", Path: path}})
	require.Equal(t, 1, stats.FilesProcessed)
	app.Close()

	cfg.EmbeddingDimensions = 4
	_, err = NewApp(ctx, cfg, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "8-dimensional")
}

func TestNewHandler(t *testing.T) {
	fake := testutil.NewFakeOpenAI(t, testDimensions)
	cfg := testConfig(t, fake)

	app, err := NewApp(context.Background(), cfg, Options{})
	require.NoError(t, err)
	defer app.Close()

	handler, err := NewHandler(app, false)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data domain.KnowledgeStats `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Data.TotalChunks)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<form")
}

func TestCommands_IngestAskStats(t *testing.T) {
	fake := testutil.NewFakeOpenAI(t, testDimensions, "upload", "pipeline", "chunking")
	setEnv(t, fake)
	dataDir := t.TempDir()
	docs := t.TempDir()
	doc := writeFile(t, docs, "test_document.md", featuresDoc)

	out, err := execute(t, "", "ingest", "--data-dir", dataDir, doc, doc)
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ test_document.md")
	assert.Contains(t, out, "- test_document.md: already processed")
	assert.Contains(t, out, "1 skipped")

	out, err = execute(t, "", "ask", "--data-dir", dataDir, "--sources", "What", "features?")
	require.NoError(t, err, out)
	assert.Contains(t, out, "answered from context")
	assert.Contains(t, out, "Found relevant sections:")
	assert.Contains(t, out, "test_document.md")

	out, err = execute(t, "", "stats", "--data-dir", dataDir, "--output")
	require.NoError(t, err, out)
	var stats domain.KnowledgeStats
	require.NoError(t, json.Unmarshal([]byte(out[strings.Index(out, "{"):]), &stats))
	assert.Positive(t, stats.TotalChunks)
	assert.Equal(t, []string{"test_document.md"}, stats.Files)
}

func TestCommands_AskConversationFromStdin(t *testing.T) {
	fake := testutil.NewFakeOpenAI(t, testDimensions, "upload", "pipeline", "chunking")
	setEnv(t, fake)
	dataDir := t.TempDir()
	doc := writeFile(t, t.TempDir(), "test_document.md", featuresDoc)

	_, err := execute(t, "", "ingest", "--data-dir", dataDir, doc)
	require.NoError(t, err)

	out, err := execute(t, "What is tested?\n\nAnd chunking?\n", "ask", "--data-dir", dataDir)
	require.NoError(t, err, out)
	assert.Equal(t, 2, strings.Count(out, "answered from context"))

	chats := fake.Chats()
	require.Len(t, chats, 2)
	assert.True(t, chats[0].Stream, "text output streams the reply")
	assert.Len(t, chats[0].Messages, 2)
	require.Len(t, chats[1].Messages, 4, "second question carries the first exchange")
	assert.Equal(t, "What is tested?", chats[1].Messages[1].Content)
	assert.Equal(t, "assistant", chats[1].Messages[2].Role)
}

func TestCommands_AskJSONWaitsForWholeAnswer(t *testing.T) {
	fake := testutil.NewFakeOpenAI(t, testDimensions, "upload", "pipeline", "chunking")
	fake.Answer = "Uploads feed the pipeline."
	setEnv(t, fake)
	dataDir := t.TempDir()
	doc := writeFile(t, t.TempDir(), "test_document.md", featuresDoc)

	_, err := execute(t, "", "ingest", "--data-dir", dataDir, doc)
	require.NoError(t, err)

	out, err := execute(t, "", "ask", "--data-dir", dataDir, "--output", "upload?")
	require.NoError(t, err, out)
	var answer struct {
		Answer string `json:"answer"`
	}
	require.NoError(t, json.Unmarshal([]byte(out[strings.Index(out, "{"):]), &answer))
	assert.Equal(t, "Uploads feed the pipeline.", answer.Answer)

	out, err = execute(t, "", "ask", "--data-dir", dataDir, "upload?")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Uploads feed the pipeline.\n")

	chats := fake.Chats()
	require.Len(t, chats, 2)
	assert.False(t, chats[0].Stream)
	assert.True(t, chats[1].Stream)
}

func TestCommands_AskEmptyKnowledgeBase(t *testing.T) {
	fake := testutil.NewFakeOpenAI(t, testDimensions)
	setEnv(t, fake)

	_, err := execute(t, "", "ask", "--data-dir", t.TempDir(), "anything?")
	assert.ErrorIs(t, err, domain.ErrEmptyKnowledgeBase)
	assert.Empty(t, fake.Chats())
}

func TestCommands_IngestFailureReported(t *testing.T) {
	fake := testutil.NewFakeOpenAI(t, testDimensions)
	setEnv(t, fake)
	bad := writeFile(t, t.TempDir(), "notes.xyz", "payload")

	out, err := execute(t, "", "ingest", "--data-dir", t.TempDir(), bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 files failed")
	assert.Contains(t, out, "✗ notes.xyz")
}

func TestCommands_IngestMissingFile(t *testing.T) {
	fake := testutil.NewFakeOpenAI(t, testDimensions)
	setEnv(t, fake)

	_, err := execute(t, "", "ingest", "--data-dir", t.TempDir(), filepath.Join(t.TempDir(), "missing.md"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot read")
}

func TestPrintIngestStats_JSON(t *testing.T) {
	stats := &domain.IngestStats{PerFile: []domain.FileStat{}, FailedFiles: []string{}, SkippedFiles: []string{}}
	stats.Add(domain.FileStat{Filename: "a.md", Chunks: 3, Status: domain.FileStatusSuccess})

	var buf bytes.Buffer
	require.NoError(t, printIngestStats(&buf, stats, true))
	assert.Contains(t, buf.String(), `"files_processed": 1`)
	assert.Contains(t, buf.String(), `"total_chunks": 3`)
}

func TestPrintStats_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printStats(&buf, &domain.KnowledgeStats{Files: []string{}}, false))
	assert.Contains(t, buf.String(), "Total chunks: 0")
	assert.Contains(t, buf.String(), "No documents ingested yet.")
}

func TestRootCmd_Commands(t *testing.T) {
	root := NewRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "ingest", "ask", "stats", "mcp"})
}
