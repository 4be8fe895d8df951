package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/cloo-solutions/docqa/internal/domain"
)

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresChunkStore stores chunks in Postgres and ranks them with the
// pgvector cosine distance operator.
type PostgresChunkStore struct {
	db   dbtx
	pool *pgxpool.Pool

	mu   sync.Mutex
	dims int
}

func NewPostgresChunkStore(pool *pgxpool.Pool) *PostgresChunkStore {
	return &PostgresChunkStore{db: pool, pool: pool}
}

func (s *PostgresChunkStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *PostgresChunkStore) Dimensions(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadDimensions(ctx)
}

func (s *PostgresChunkStore) loadDimensions(ctx context.Context) (int, error) {
	if s.dims > 0 {
		return s.dims, nil
	}
	var value string
	err := s.db.QueryRow(ctx, `SELECT value FROM store_meta WHERE key = $1`, metaKeyDimensions).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
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

// claimDimensions records dims unless another writer got there first, and
// returns the dimension that won.
func (s *PostgresChunkStore) claimDimensions(ctx context.Context, dims int) (int, error) {
	_, err := s.db.Exec(ctx,
		`INSERT INTO store_meta (key, value) VALUES ($1, $2) ON CONFLICT (key) DO NOTHING`,
		metaKeyDimensions, strconv.Itoa(dims),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to record store dimensions: %w", err)
	}
	return s.loadDimensions(ctx)
}

func (s *PostgresChunkStore) Append(ctx context.Context, rec *domain.ChunkRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
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

	s.mu.Lock()
	defer s.mu.Unlock()

	// the first vector claims the store dimension in the same transaction as its insert
	return s.withTx(ctx, func(tx *PostgresChunkStore) error {
		dims, err := tx.loadDimensions(ctx)
		if err != nil {
			return err
		}
		if dims == 0 {
			if dims, err = tx.claimDimensions(ctx, len(rec.Embedding)); err != nil {
				return err
			}
		}
		if dims != len(rec.Embedding) {
			return dimensionMismatch(dims, len(rec.Embedding))
		}

		_, err = tx.db.Exec(ctx,
			`INSERT INTO chunks
				(id, document_id, filename, position, text, token_count, metadata, embedding, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			rec.ID,
			rec.Chunk.DocumentID,
			rec.Chunk.Metadata.Filename,
			rec.Chunk.Position,
			rec.Chunk.Text,
			rec.Chunk.TokenCount,
			meta,
			pgvector.NewVector(rec.Embedding),
			rec.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert chunk: %w", err)
		}
		return nil
	})
}

func (s *PostgresChunkStore) Search(ctx context.Context, vector []float32, k int) ([]domain.SearchResult, error) {
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

	rows, err := s.db.Query(ctx,
		`SELECT document_id, position, text, token_count, metadata, embedding <=> $1 AS distance
		 FROM chunks
		 ORDER BY distance, created_at, position
		 LIMIT $2`,
		pgvector.NewVector(vector), k,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	defer rows.Close()

	results := []domain.SearchResult{}
	for rows.Next() {
		var (
			c        domain.Chunk
			meta     []byte
			distance float64
		)
		if err := rows.Scan(&c.DocumentID, &c.Position, &c.Text, &c.TokenCount, &meta, &distance); err != nil {
			return nil, fmt.Errorf("failed to read chunk: %w", err)
		}
		if err := json.Unmarshal(meta, &c.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode chunk metadata: %w", err)
		}
		results = append(results, domain.SearchResult{Chunk: c, Score: similarityFromDistance(distance)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	return results, nil
}

func (s *PostgresChunkStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

func (s *PostgresChunkStore) Filenames(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT DISTINCT filename FROM chunks ORDER BY filename`)
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
