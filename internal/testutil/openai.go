package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// ChatRequest is a chat completion request received by FakeOpenAI.
type ChatRequest struct {
	Model       string  `json:"model"`
	Temperature float32 `json:"temperature"`
	Stream      bool    `json:"stream"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

// FakeOpenAI serves the embeddings and chat completions endpoints. Embeddings
// count keyword occurrences, one dimension per keyword, padded to Dimensions,
// so texts sharing keywords are close. Completions return Answer, streamed
// word by word when the request asks for a stream.
type FakeOpenAI struct {
	Keywords   []string
	Dimensions int
	Answer     string

	server *httptest.Server

	mu              sync.Mutex
	chats           []ChatRequest
	embeddingInputs []string
}

// NewFakeOpenAI starts a fake server closed at test cleanup.
func NewFakeOpenAI(t *testing.T, dimensions int, keywords ...string) *FakeOpenAI {
	t.Helper()

	f := &FakeOpenAI{
		Keywords:   keywords,
		Dimensions: dimensions,
		Answer:     "answered from context",
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.server.Close)
	return f
}

// BaseURL is the OpenAI-compatible API base.
func (f *FakeOpenAI) BaseURL() string {
	return f.server.URL + "/v1"
}

// Chats returns the chat requests received so far.
func (f *FakeOpenAI) Chats() []ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ChatRequest(nil), f.chats...)
}

// EmbeddingInputs returns every text embedded so far.
func (f *FakeOpenAI) EmbeddingInputs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.embeddingInputs...)
}

// Embed returns the vector the server produces for text.
func (f *FakeOpenAI) Embed(text string) []float32 {
	vec := make([]float32, f.Dimensions)
	lower := strings.ToLower(text)
	for i, kw := range f.Keywords {
		if i >= len(vec) {
			break
		}
		vec[i] = float32(strings.Count(lower, strings.ToLower(kw)))
	}
	// keeps a text without keywords from being the zero vector
	vec[len(vec)-1] += 0.01
	return vec
}

func (f *FakeOpenAI) serve(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
		http.Error(w, `{"error":{"message":"missing api key"}}`, http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/v1/embeddings":
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		data := make([]map[string]any, 0, len(req.Input))
		f.mu.Lock()
		for i, in := range req.Input {
			f.embeddingInputs = append(f.embeddingInputs, in)
			data = append(data, map[string]any{"object": "embedding", "index": i, "embedding": f.Embed(in)})
		}
		f.mu.Unlock()

		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  req.Model,
		})

	case "/v1/chat/completions":
		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		f.mu.Lock()
		f.chats = append(f.chats, req)
		answer := f.Answer
		f.mu.Unlock()

		if req.Stream {
			writeStream(w, req.Model, answer)
			return
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-test",
			"object":  "chat.completion",
			"model":   req.Model,
			"choices": []map[string]any{{"index": 0, "message": map[string]any{"role": "assistant", "content": answer}, "finish_reason": "stop"}},
		})

	default:
		http.NotFound(w, r)
	}
}

func writeStream(w http.ResponseWriter, model, answer string) {
	w.Header().Set("Content-Type", "text/event-stream")
	for _, part := range strings.SplitAfter(answer, " ") {
		chunk, _ := json.Marshal(map[string]any{
			"id":      "chatcmpl-test",
			"object":  "chat.completion.chunk",
			"model":   model,
			"choices": []map[string]any{{"index": 0, "delta": map[string]any{"content": part}}},
		})
		fmt.Fprintf(w, "data: %s\n\n", chunk)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
}
