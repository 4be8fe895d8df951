package repository

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cloo-solutions/docqa/internal/domain"
)

// ChunkStore is the vector store contract shared by the SQLite and Postgres backends.
type ChunkStore interface {
	Append(ctx context.Context, rec *domain.ChunkRecord) error
	Search(ctx context.Context, vector []float32, k int) ([]domain.SearchResult, error)
	Count(ctx context.Context) (int, error)
	Filenames(ctx context.Context) ([]string, error)
	Dimensions(ctx context.Context) (int, error)
	Close() error
}

const metaKeyDimensions = "dimensions"

// similarityFromDistance maps cosine distance in [0, 2] to a score in [0, 1].
// pgvector reports NaN against a zero vector; that scores 0 so results stay
// JSON-encodable.
func similarityFromDistance(distance float64) float64 {
	if math.IsNaN(distance) {
		return 0
	}
	score := 1 - distance/2
	return math.Max(0, math.Min(1, score))
}

// cosineDistance returns 1 - cos(a, b). Zero vectors are maximally distant
// from everything except another zero vector.
func cosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("embedding blob has invalid length %d", len(data))
	}
	v := make([]float32, len(data)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return v, nil
}

func validateRecord(rec *domain.ChunkRecord) error {
	if rec == nil {
		return fmt.Errorf("%w: record", domain.ErrMissingRequiredField)
	}
	if len(rec.Embedding) == 0 {
		return fmt.Errorf("%w: embedding", domain.ErrMissingRequiredField)
	}
	return domain.ValidateChunk(&rec.Chunk, 0)
}

func dimensionMismatch(want, got int) error {
	return fmt.Errorf("%w: store holds %d-dimensional vectors, got %d", domain.ErrDimensionMismatch, want, got)
}
