package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/telemetry"
)

// DocumentConverter turns a file on disk into a structured document
type DocumentConverter interface {
	Convert(ctx context.Context, path string) (*domain.Document, error)
}

// DocumentChunker splits a document into embeddable chunks
type DocumentChunker interface {
	Chunk(doc *domain.Document) ([]domain.Chunk, error)
	MaxTokens() int
}

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// ChunkWriter appends embedded chunks to the vector store
type ChunkWriter interface {
	Append(ctx context.Context, rec *domain.ChunkRecord) error
}

// FileArchiver retains a copy of an ingested source file
type FileArchiver interface {
	Archive(ctx context.Context, path string) error
}

// UploadedFile is a staged upload: Name is the name the user uploaded it
// under and Path where it sits on disk.
type UploadedFile struct {
	Name string
	Path string
}

// IngestService runs the ingest path: convert, chunk, embed, store.
type IngestService struct {
	converter DocumentConverter
	chunker   DocumentChunker
	embedder  EmbeddingClient
	store     ChunkWriter
	archiver  FileArchiver
}

func NewIngestService(converter DocumentConverter, chunker DocumentChunker, embedder EmbeddingClient, store ChunkWriter) *IngestService {
	return &IngestService{
		converter: converter,
		chunker:   chunker,
		embedder:  embedder,
		store:     store,
	}
}

// WithArchiver keeps a copy of every successfully ingested file.
func (s *IngestService) WithArchiver(a FileArchiver) *IngestService {
	s.archiver = a
	return s
}

// IngestFile converts, chunks, embeds and stores one file. The returned stat
// is never nil and counts the chunks stored before any failure; those chunks
// are not rolled back.
func (s *IngestService) IngestFile(ctx context.Context, path string) (*domain.FileStat, error) {
	filename := filepath.Base(path)
	stat := &domain.FileStat{Filename: filename, Status: domain.FileStatusFailed}

	ctx, span := telemetry.StartSpan(ctx, "ingest.file", telemetry.SpanAttributes{
		Filename:  filename,
		Operation: "ingest",
	})
	defer span.End()

	fail := func(err error) (*domain.FileStat, error) {
		stat.Error = err.Error()
		stat.Code = domain.ErrorCode(err)
		span.SetError(err)
		return stat, err
	}

	convCtx, convSpan := telemetry.StartSpan(ctx, "ingest.convert", telemetry.SpanAttributes{Filename: filename, Operation: "convert"})
	doc, err := s.converter.Convert(convCtx, path)
	convSpan.End()
	if err != nil {
		var domainErr *domain.DomainError
		if !errors.As(err, &domainErr) {
			err = domain.NewConversionError(filename, err)
		}
		return fail(err)
	}

	chunks, err := s.chunker.Chunk(doc)
	if err != nil {
		return fail(err)
	}

	maxTokens := s.chunker.MaxTokens()
	for i := range chunks {
		chunk := chunks[i]
		if err := domain.ValidateChunk(&chunk, maxTokens); err != nil {
			return fail(domain.NewDomainErrorWithCause(domain.ErrCodeChunking, "invalid chunk in "+filename, err))
		}

		embedCtx, embedSpan := telemetry.StartSpan(ctx, "ingest.embed", telemetry.SpanAttributes{Filename: filename, Operation: "embed"})
		vector, err := s.embedder.GenerateEmbedding(embedCtx, chunk.Text)
		embedSpan.End()
		if err != nil {
			return fail(domain.NewEmbeddingError(filename, err))
		}

		rec := &domain.ChunkRecord{
			Chunk:     chunk,
			Embedding: vector,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.store.Append(ctx, rec); err != nil {
			return fail(domain.NewStorageError("append", err))
		}
		stat.Chunks++
	}

	if s.archiver != nil {
		if err := s.archiver.Archive(ctx, path); err != nil {
			// the knowledge base already holds the file; retention is best effort
			log.Printf("ingest: failed to archive %s: %v", filename, err)
			telemetry.CaptureError(ctx, err)
		}
	}

	stat.Status = domain.FileStatusSuccess
	return stat, nil
}

// IngestFiles ingests a batch of uploads for a session. Files the session
// already ingested are skipped by name; one file's failure never stops the
// batch. Successfully ingested names join the session's set.
func (s *IngestService) IngestFiles(ctx context.Context, session *Session, files []UploadedFile) *domain.IngestStats {
	stats := &domain.IngestStats{
		PerFile:      []domain.FileStat{},
		FailedFiles:  []string{},
		SkippedFiles: []string{},
	}

	if session != nil {
		session.ops.Lock()
		defer session.ops.Unlock()
	}

	for _, f := range files {
		name := f.Name
		if name == "" {
			name = filepath.Base(f.Path)
		}

		if session != nil && session.HasProcessed(name) {
			telemetry.AddBreadcrumb(ctx, "ingest", "skipped "+name)
			stats.Add(domain.FileStat{Filename: name, Status: domain.FileStatusSkipped})
			continue
		}

		stat, err := s.IngestFile(ctx, f.Path)
		stat.Filename = name
		if err != nil {
			log.Printf("ingest: %s failed: %v", name, err)
			telemetry.CaptureError(ctx, err)
			stats.Add(*stat)
			continue
		}

		if session != nil {
			session.MarkProcessed(name)
		}
		telemetry.AddBreadcrumb(ctx, "ingest", fmt.Sprintf("ingested %s (%d chunks)", name, stat.Chunks))
		stats.Add(*stat)
	}

	return stats
}
