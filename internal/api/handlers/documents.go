package handlers

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/cloo-solutions/docqa/internal/api"
	"github.com/cloo-solutions/docqa/internal/api/middleware"
	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/service"
)

// multipartMemory is the part of a multipart form kept in memory; the rest
// spills to temp files.
const multipartMemory = 8 << 20

var errNoFiles = domain.NewDomainError(domain.ErrCodeValidation, "no files uploaded")

type IngestService interface {
	IngestFiles(ctx context.Context, session *service.Session, files []service.UploadedFile) *domain.IngestStats
}

type UploadStager interface {
	Stage(sessionID, name string, r io.Reader) (string, error)
}

type DocumentHandler struct {
	svc    IngestService
	stager UploadStager
}

func NewDocumentHandler(svc IngestService, stager UploadStager) *DocumentHandler {
	return &DocumentHandler{svc: svc, stager: stager}
}

// Upload ingests the files of a multipart form into the knowledge base.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())
	if session == nil {
		api.Error(w, http.StatusInternalServerError, domain.ErrCodeInternalError, "session not resolved")
		return
	}

	stats, err := h.process(r, session)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, stats)
}

// process stages the uploaded files and runs the ingest pipeline over them.
// Per-file failures are reported in the stats; only a malformed request
// returns an error.
func (h *DocumentHandler) process(r *http.Request, session *service.Session) (*domain.IngestStats, error) {
	headers, err := uploadedFiles(r)
	if err != nil {
		return nil, err
	}

	var staged []service.UploadedFile
	var rejected []domain.FileStat
	for _, fh := range headers {
		name := fh.Filename
		if session.HasProcessed(name) {
			// the pipeline reports it as skipped without touching the staged copy
			staged = append(staged, service.UploadedFile{Name: name})
			continue
		}

		path, err := h.stage(session.ID, fh)
		if err != nil {
			rejected = append(rejected, domain.FileStat{
				Filename: name,
				Status:   domain.FileStatusFailed,
				Error:    err.Error(),
				Code:     domain.ErrCodeValidation,
			})
			continue
		}
		staged = append(staged, service.UploadedFile{Name: name, Path: path})
	}

	stats := h.svc.IngestFiles(r.Context(), session, staged)
	for _, stat := range rejected {
		stats.Add(stat)
	}
	return stats, nil
}

func (h *DocumentHandler) stage(sessionID string, fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()
	return h.stager.Stage(sessionID, fh.Filename, f)
}

func uploadedFiles(r *http.Request) ([]*multipart.FileHeader, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "upload too large", err)
		}
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid multipart form", err)
	}

	files := r.MultipartForm.File["files"]
	files = append(files, r.MultipartForm.File["file"]...)
	if len(files) == 0 {
		return nil, errNoFiles
	}
	return files, nil
}
