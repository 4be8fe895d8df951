package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cloo-solutions/docqa/internal/domain"
)

// SQLiteChunkStore keeps chunks and their vectors in a single local SQLite
// file. Search is an exhaustive cosine scan.
type SQLiteChunkStore struct {
	db *sql.DB

	mu   sync.Mutex
	dims int
}

func NewSQLiteChunkStore(db *sql.DB) *SQLiteChunkStore {
	return &SQLiteChunkStore{db: db}
}

func (s *SQLiteChunkStore) Close() error {
	return s.db.Close()
}

// Dimensions returns the vector size recorded on first write, or 0 for an empty store.
func (s *SQLiteChunkStore) Dimensions(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadDimensions(ctx)
}

func (s *SQLiteChunkStore) loadDimensions(ctx context.Context) (int, error) {
	if s.dims > 0 {
		return s.dims, nil
	}
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM store_meta WHERE key = ?`, metaKeyDimensions).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read store dimensions: %w", err)
	}
	dims, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid stored dimensions %q: %w", value, err)
	}
	s.dims = dims
	return dims, nil
}

// Append stores one chunk record. The first record fixes the store's vector
// dimension; later records of another size are rejected.
func (s *SQLiteChunkStore) Append(ctx context.Context, rec *domain.ChunkRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dims, err := s.loadDimensions(ctx)
	if err != nil {
		return err
	}
	if dims > 0 && dims != len(rec.Embedding) {
		return dimensionMismatch(dims, len(rec.Embedding))
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	meta, err := json.Marshal(rec.Chunk.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode chunk metadata: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if dims == 0 {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO store_meta (key, value) VALUES (?, ?)`,
			metaKeyDimensions, strconv.Itoa(len(rec.Embedding)),
		); err != nil {
			return fmt.Errorf("failed to record store dimensions: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO chunks
			(id, document_id, filename, position, text, token_count, metadata, embedding, dimensions, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.Chunk.DocumentID,
		rec.Chunk.Metadata.Filename,
		rec.Chunk.Position,
		rec.Chunk.Text,
		rec.Chunk.TokenCount,
		string(meta),
		encodeVector(rec.Embedding),
		len(rec.Embedding),
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert chunk: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chunk: %w", err)
	}
	if dims == 0 {
		s.dims = len(rec.Embedding)
	}
	return nil
}

// Search returns at most k chunks ordered by decreasing cosine similarity.
// Ties keep insertion order.
func (s *SQLiteChunkStore) Search(ctx context.Context, vector []float32, k int) ([]domain.SearchResult, error) {
	if k <= 0 {
		return []domain.SearchResult{}, nil
	}

	dims, err := s.Dimensions(ctx)
	if err != nil {
		return nil, err
	}
	if dims == 0 {
		return []domain.SearchResult{}, nil
	}
	if dims != len(vector) {
		return nil, dimensionMismatch(dims, len(vector))
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT document_id, position, text, token_count, metadata, embedding
		 FROM chunks ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to scan chunks: %w", err)
	}
	defer rows.Close()

	var results []domain.SearchResult
	for rows.Next() {
		var (
			c    domain.Chunk
			meta string
			blob []byte
		)
		if err := rows.Scan(&c.DocumentID, &c.Position, &c.Text, &c.TokenCount, &meta, &blob); err != nil {
			return nil, fmt.Errorf("failed to read chunk: %w", err)
		}
		if err := json.Unmarshal([]byte(meta), &c.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode chunk metadata: %w", err)
		}
		embedding, err := decodeVector(blob)
		if err != nil {
			return nil, err
		}
		if len(embedding) != len(vector) {
			continue
		}
		results = append(results, domain.SearchResult{
			Chunk: c,
			Score: similarityFromDistance(cosineDistance(vector, embedding)),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan chunks: %w", err)
	}

	slices.SortStableFunc(results, func(a, b domain.SearchResult) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	if len(results) > k {
		results = results[:k]
	}
	if results == nil {
		results = []domain.SearchResult{}
	}
	return results, nil
}

func (s *SQLiteChunkStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

// Filenames returns the distinct source filenames in the store, sorted.
func (s *SQLiteChunkStore) Filenames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT filename FROM chunks ORDER BY filename`)
	if err != nil {
		return nil, fmt.Errorf("failed to list filenames: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to read filename: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
