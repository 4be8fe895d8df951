//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cloo-solutions/docqa/internal/cli/admin"
	"github.com/cloo-solutions/docqa/internal/config"
	"github.com/cloo-solutions/docqa/internal/testutil"
)

const embeddingDimensions = 16

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T          *testing.T
	Ctx        context.Context
	Config     *config.Config
	App        *admin.App
	OpenAI     *testutil.FakeOpenAI
	Server     *httptest.Server
	HTTPClient *http.Client
	SessionID  string
}

// SetupE2EEnv starts the full HTTP stack on the embedded SQLite store with a
// fake OpenAI API. mutate may adjust the config before the app is built.
func SetupE2EEnv(t *testing.T, mutate func(*config.Config)) *E2ETestEnv {
	t.Helper()
	ctx := context.Background()

	fake := testutil.NewFakeOpenAI(t, embeddingDimensions,
		"upload", "pipeline", "chunking", "embedding", "storage", "feature", "tested")

	cfg := &config.Config{
		Port:                 "0",
		DataDir:              t.TempDir(),
		MaxUploadBytes:       10 << 20,
		StoreDriver:          config.StoreDriverSQLite,
		OpenAIAPIKey:         "sk-e2e",
		OpenAIBaseURL:        fake.BaseURL(),
		OpenAITimeout:        10 * time.Second,
		EmbeddingModel:       "text-embedding-3-large",
		EmbeddingDimensions:  embeddingDimensions,
		ChatModel:            "gpt-4o-mini",
		Temperature:          0.4,
		TopK:                 5,
		ChunkMaxTokens:       512,
		ChunkMinTokens:       16,
		ChunkOverlapTokens:   32,
		SessionTTL:           time.Hour,
		SessionSweepInterval: time.Minute,
	}
	if mutate != nil {
		mutate(cfg)
	}

	app, err := admin.NewApp(ctx, cfg, admin.Options{})
	if err != nil {
		t.Fatalf("failed to build app: %v", err)
	}
	t.Cleanup(app.Close)

	handler, err := admin.NewHandler(app, false)
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &E2ETestEnv{
		T:          t,
		Ctx:        ctx,
		Config:     cfg,
		App:        app,
		OpenAI:     fake,
		Server:     srv,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	StatusCode int
	Data       json.RawMessage `json:"data"`
	Error      string          `json:"error,omitempty"`
	Code       string          `json:"code,omitempty"`
}

// Into decodes the data payload.
func (r *APIResponse) Into(v interface{}) {
	if err := json.Unmarshal(r.Data, v); err != nil {
		panic(fmt.Sprintf("failed to decode response data %s: %v", r.Data, err))
	}
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path string) *APIResponse {
	return e.doRequest(http.MethodGet, path, nil, "")
}

// Post performs a POST request with a JSON body
func (e *E2ETestEnv) Post(path string, body interface{}) *APIResponse {
	data, err := json.Marshal(body)
	if err != nil {
		e.T.Fatalf("failed to marshal body: %v", err)
	}
	return e.doRequest(http.MethodPost, path, bytes.NewReader(data), "application/json")
}

// Delete performs a DELETE request
func (e *E2ETestEnv) Delete(path string) *APIResponse {
	return e.doRequest(http.MethodDelete, path, nil, "")
}

// Upload posts files as a multipart form. Each entry maps an upload name to
// its content.
func (e *E2ETestEnv) Upload(files map[string][]byte) *APIResponse {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		part, err := mw.CreateFormFile("files", name)
		if err != nil {
			e.T.Fatalf("failed to create form file: %v", err)
		}
		if _, err := part.Write(content); err != nil {
			e.T.Fatalf("failed to write form file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		e.T.Fatalf("failed to close form: %v", err)
	}
	return e.doRequest(http.MethodPost, "/api/documents", &buf, mw.FormDataContentType())
}

// ReadTestdata returns a fixture from testdata/.
func (e *E2ETestEnv) ReadTestdata(name string) []byte {
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		e.T.Fatalf("failed to read fixture %s: %v", name, err)
	}
	return data
}

func (e *E2ETestEnv) doRequest(method, path string, body io.Reader, contentType string) *APIResponse {
	req, err := http.NewRequestWithContext(e.Ctx, method, e.Server.URL+path, body)
	if err != nil {
		e.T.Fatalf("failed to create request: %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if e.Config.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+e.Config.APIToken)
	}
	if e.SessionID != "" {
		req.Header.Set("X-Session-ID", e.SessionID)
	}

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		e.T.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	if id := resp.Header.Get("X-Session-ID"); id != "" {
		e.SessionID = id
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		e.T.Fatalf("failed to read response: %v", err)
	}

	apiResp := &APIResponse{}
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, apiResp); err != nil {
			e.T.Fatalf("%s %s returned non-JSON body (%d): %s", method, path, resp.StatusCode, respBody)
		}
	}
	apiResp.StatusCode = resp.StatusCode
	return apiResp
}
