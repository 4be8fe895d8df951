package client

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const (
	envAPIToken = "DOCQA_API_TOKEN"
	envAPIURL   = "DOCQA_API_URL"

	defaultAPIURL = "http://localhost:8080"

	sessionHeader = "X-Session-ID"
)

// APIClient talks to the docqa JSON API. It sends the session ID with every
// request and follows the one the server answers with.
type APIClient struct {
	baseURL    string
	apiToken   string
	sessionID  string
	httpClient *http.Client

	// onSession is called when the server assigns a new session ID
	onSession func(id string)
}

// NewAPIClientWithCmd resolves settings with the cascade flag → env →
// global config → default. A server assigned session ID is saved to the
// global config unless the session was given by flag.
func NewAPIClientWithCmd(cmd *cobra.Command) (*APIClient, error) {
	_ = godotenv.Load()

	var apiToken, baseURL, sessionID string
	if cmd != nil {
		apiToken, _ = cmd.Flags().GetString("api-token")
		baseURL, _ = cmd.Flags().GetString("api-url")
		sessionID, _ = cmd.Flags().GetString("session")
	}
	sessionFromFlag := sessionID != ""

	if apiToken == "" {
		apiToken = os.Getenv(envAPIToken)
	}
	if baseURL == "" {
		baseURL = os.Getenv(envAPIURL)
	}

	globalConfig, err := LoadGlobalConfig()
	if err != nil {
		return nil, err
	}
	if globalConfig != nil {
		if apiToken == "" {
			apiToken = globalConfig.APIToken
		}
		if baseURL == "" {
			baseURL = globalConfig.APIURL
		}
		if sessionID == "" {
			sessionID = globalConfig.SessionID
		}
	}

	if baseURL == "" {
		baseURL = defaultAPIURL
	}

	c := NewAPIClientWithConfig(apiToken, baseURL, sessionID)
	if !sessionFromFlag {
		c.onSession = func(id string) {
			if err := updateGlobalConfig(func(g *GlobalConfig) { g.SessionID = id }); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to save session: %v\n", err)
			}
		}
	}
	return c, nil
}

// NewAPIClientWithConfig creates an APIClient with explicit settings.
func NewAPIClientWithConfig(apiToken, baseURL, sessionID string) *APIClient {
	return &APIClient{
		baseURL:   baseURL,
		apiToken:  apiToken,
		sessionID: sessionID,
		httpClient: &http.Client{
			// ingestion and answering run inside the request
			Timeout: 10 * time.Minute,
		},
	}
}

// SessionID is the session the client currently continues.
func (c *APIClient) SessionID() string {
	return c.sessionID
}

// APIResponse represents the standard API response format.
type APIResponse struct {
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
	Code  string          `json:"code,omitempty"`
}

// Decode unmarshals the data payload into v.
func (r *APIResponse) Decode(v interface{}) error {
	if len(r.Data) == 0 {
		return fmt.Errorf("response has no data")
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("failed to parse response data: %w", err)
	}
	return nil
}

// APIError represents an error from the API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("API error (%d %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

// Get performs a GET request.
func (c *APIClient) Get(path string) (*APIResponse, error) {
	return c.doJSON(http.MethodGet, path, nil)
}

// Post performs a POST request with JSON body.
func (c *APIClient) Post(path string, body interface{}) (*APIResponse, error) {
	return c.doJSON(http.MethodPost, path, body)
}

// Delete performs a DELETE request.
func (c *APIClient) Delete(path string) (*APIResponse, error) {
	return c.doJSON(http.MethodDelete, path, nil)
}

func (c *APIClient) doJSON(method, path string, body interface{}) (*APIResponse, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req)
}

// Upload sends files as one multipart form to path. The form is streamed
// from disk.
func (c *APIClient) Upload(path string, files []string) (*APIResponse, error) {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return nil, fmt.Errorf("cannot read %s: %w", f, err)
		}
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeFiles(mw, files))
	}()

	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, pr)
	if err != nil {
		pr.Close()
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.do(req)
}

func writeFiles(mw *multipart.Writer, files []string) error {
	for _, path := range files {
		part, err := mw.CreateFormFile("files", filepath.Base(path))
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		_, err = io.Copy(part, f)
		f.Close()
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
	}
	return mw.Close()
}

// PostStream posts a JSON body to a server-sent event endpoint and calls
// onEvent for every event until the stream ends. A JSON reply instead of a
// stream is handled like Post, so API errors surface as *APIError.
func (c *APIClient) PostStream(path string, body interface{}, onEvent func(event string, data []byte) error) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		_, err := decodeResponse(resp)
		if err == nil {
			err = fmt.Errorf("server did not stream the response")
		}
		return err
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	var event string
	var data []byte
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if event != "" || data != nil {
				if err := onEvent(event, data); err != nil {
					return err
				}
			}
			event, data = "", nil
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data != nil {
				data = append(data, '\n')
			}
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " ")...)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read event stream: %w", err)
	}
	return nil
}

func (c *APIClient) do(req *http.Request) (*APIResponse, error) {
	resp, err := c.send(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return decodeResponse(resp)
}

// send adds the credentials and session to req and follows the session the
// server answers with.
func (c *APIClient) send(req *http.Request) (*http.Response, error) {
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}
	if c.sessionID != "" {
		req.Header.Set(sessionHeader, c.sessionID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if id := resp.Header.Get(sessionHeader); id != "" && id != c.sessionID {
		c.sessionID = id
		if c.onSession != nil {
			c.onSession(id)
		}
	}
	return resp, nil
}

func decodeResponse(resp *http.Response) (*APIResponse, error) {
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var apiResp APIResponse
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &apiResp); err != nil {
			if resp.StatusCode >= 400 {
				return nil, &APIError{StatusCode: resp.StatusCode, Message: string(bytes.TrimSpace(respBody))}
			}
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
	}

	if resp.StatusCode >= 400 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Code:       apiResp.Code,
			Message:    apiResp.Error,
		}
	}

	return &apiResp, nil
}
