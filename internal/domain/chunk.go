package domain

import (
	"fmt"
	"time"
)

// ChunkMetadata is the source information stored alongside every chunk.
type ChunkMetadata struct {
	Filename    string   `json:"filename"`
	PageNumbers []int    `json:"page_numbers,omitempty"`
	Title       string   `json:"title,omitempty"`
	Headings    []string `json:"headings,omitempty"`
}

// Chunk is a structurally coherent span of document text sized for embedding.
type Chunk struct {
	DocumentID string
	Position   int
	Text       string
	TokenCount int
	Metadata   ChunkMetadata
}

// ChunkRecord is a chunk persisted with its embedding vector.
type ChunkRecord struct {
	ID        string
	Chunk     Chunk
	Embedding []float32
	CreatedAt time.Time
}

// SearchResult is a stored chunk matched by a similarity query. Score is a
// similarity in [0, 1]; higher is closer.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// ValidateChunk checks a chunk before it is embedded
func ValidateChunk(c *Chunk, maxTokens int) error {
	if c == nil {
		return fmt.Errorf("chunk cannot be nil")
	}
	if c.Text == "" {
		return fmt.Errorf("chunk text is required")
	}
	if c.Metadata.Filename == "" {
		return fmt.Errorf("chunk filename is required")
	}
	if c.Position < 0 {
		return fmt.Errorf("chunk position cannot be negative")
	}
	if maxTokens > 0 && c.TokenCount > maxTokens {
		return fmt.Errorf("chunk has %d tokens, limit is %d", c.TokenCount, maxTokens)
	}
	return nil
}
