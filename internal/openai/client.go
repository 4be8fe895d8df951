package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/cloo-solutions/docqa/internal/domain"
)

const (
	// DefaultEmbeddingModel is the OpenAI model used for generating embeddings
	DefaultEmbeddingModel = openai.LargeEmbedding3
	// DefaultEmbeddingDimensions is the vector size requested from the embedding model
	DefaultEmbeddingDimensions = 1536
	// DefaultChatModel answers questions over the retrieved context
	DefaultChatModel = openai.GPT4oMini
	// DefaultTemperature for answer generation
	DefaultTemperature float32 = 0.4
	// DefaultTimeout bounds every API call
	DefaultTimeout = 120 * time.Second
)

var (
	// ErrEmptyText is returned when text is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrWrongDimensions is returned when embedding has wrong dimensions
	ErrWrongDimensions = errors.New("embedding has wrong dimensions")
	// ErrNoMessages is returned when a completion is requested without messages
	ErrNoMessages = errors.New("completion requires at least one message")
	// ErrEmptyCompletion is returned when the API answers without choices
	ErrEmptyCompletion = errors.New("no completion choices returned")
)

// EmbeddingAPI defines the interface for embedding generation
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, text string) ([]float32, error)
}

// ChatAPI defines the interface for chat completions
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, messages []domain.Message) (string, error)
}

// StreamingChatAPI streams a chat completion, calling onDelta with each
// content fragment as it arrives.
type StreamingChatAPI interface {
	StreamChatCompletion(ctx context.Context, messages []domain.Message, onDelta func(string)) (string, error)
}

// Client wraps the OpenAI API client
type Client struct {
	api        EmbeddingAPI
	chat       ChatAPI
	stream     StreamingChatAPI
	dimensions int
}

type OpenAIAdapter struct {
	client      *openai.Client
	model       openai.EmbeddingModel
	dimensions  int
	chatModel   string
	temperature float32
}

func NewOpenAIAdapter(cfg Config) *OpenAIAdapter {
	cfg = cfg.withDefaults()

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &OpenAIAdapter{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.EmbeddingModel,
		dimensions:  cfg.EmbeddingDimensions,
		chatModel:   cfg.ChatModel,
		temperature: cfg.Temperature,
	}
}

// CreateEmbeddings calls the OpenAI API to create embeddings
func (a *OpenAIAdapter) CreateEmbeddings(ctx context.Context, text string) ([]float32, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      a.model,
		Dimensions: a.dimensions,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) == 0 {
		return nil, errors.New("no embedding data returned")
	}

	return resp.Data[0].Embedding, nil
}

func (a *OpenAIAdapter) chatRequest(messages []domain.Message) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model:       a.chatModel,
		Temperature: a.temperature,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	return req
}

// CreateChatCompletion sends the messages in order and returns the first choice.
func (a *OpenAIAdapter) CreateChatCompletion(ctx context.Context, messages []domain.Message) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, a.chatRequest(messages))
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}

// StreamChatCompletion requests a streamed completion and returns the
// concatenated content of the first choice once the stream ends.
func (a *OpenAIAdapter) StreamChatCompletion(ctx context.Context, messages []domain.Message, onDelta func(string)) (string, error) {
	req := a.chatRequest(messages)
	req.Stream = true

	stream, err := a.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var sb strings.Builder
	received := false
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			continue
		}
		received = true
		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		sb.WriteString(delta)
		if onDelta != nil {
			onDelta(delta)
		}
	}
	if !received {
		return "", ErrEmptyCompletion
	}
	return sb.String(), nil
}

type Config struct {
	APIKey              string
	BaseURL             string
	Timeout             time.Duration
	EmbeddingModel      openai.EmbeddingModel
	EmbeddingDimensions int
	ChatModel           string
	Temperature         float32
}

func (c Config) withDefaults() Config {
	if c.EmbeddingModel == "" {
		c.EmbeddingModel = DefaultEmbeddingModel
	}
	if c.EmbeddingDimensions <= 0 {
		c.EmbeddingDimensions = DefaultEmbeddingDimensions
	}
	if c.ChatModel == "" {
		c.ChatModel = DefaultChatModel
	}
	if c.Temperature < 0 {
		c.Temperature = DefaultTemperature
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// NewClientWithConfig creates a new OpenAI client with explicit configuration.
func NewClientWithConfig(cfg Config) *Client {
	cfg = cfg.withDefaults()
	adapter := NewOpenAIAdapter(cfg)
	return &Client{
		api:        adapter,
		chat:       adapter,
		stream:     adapter,
		dimensions: cfg.EmbeddingDimensions,
	}
}

// Dimensions is the vector size every returned embedding has.
func (c *Client) Dimensions() int {
	if c.dimensions <= 0 {
		return DefaultEmbeddingDimensions
	}
	return c.dimensions
}

// GenerateEmbedding generates an embedding for the given text
func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	embedding, err := c.api.CreateEmbeddings(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}

	if len(embedding) != c.Dimensions() {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrWrongDimensions, c.Dimensions(), len(embedding))
	}

	return embedding, nil
}

// Complete generates the assistant reply to messages.
func (c *Client) Complete(ctx context.Context, messages []domain.Message) (string, error) {
	if len(messages) == 0 {
		return "", ErrNoMessages
	}
	answer, err := c.chat.CreateChatCompletion(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	return strings.TrimSpace(answer), nil
}

// CompleteStream generates the assistant reply like Complete, passing each
// fragment to onDelta as the model produces it. The returned text is trimmed,
// the fragments are not. Without a streaming backend the whole reply is
// delivered as a single fragment.
func (c *Client) CompleteStream(ctx context.Context, messages []domain.Message, onDelta func(string)) (string, error) {
	if c.stream == nil {
		answer, err := c.Complete(ctx, messages)
		if err == nil && onDelta != nil && answer != "" {
			onDelta(answer)
		}
		return answer, err
	}
	if len(messages) == 0 {
		return "", ErrNoMessages
	}
	answer, err := c.stream.StreamChatCompletion(ctx, messages, onDelta)
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	return strings.TrimSpace(answer), nil
}
