package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/cloo-solutions/docqa/internal/domain"
)

// SuccessResponse wraps successful API responses
type SuccessResponse struct {
	Data interface{} `json:"data"`
}

// ErrorResponse represents an error API response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// JSON writes a JSON response with the given status code
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("api: failed to encode response: %v", err)
		}
	}
}

// Success writes a successful JSON response
func Success(w http.ResponseWriter, status int, data interface{}) {
	JSON(w, status, SuccessResponse{Data: data})
}

// Error writes an error response with an explicit code.
func Error(w http.ResponseWriter, status int, code, message string) {
	JSON(w, status, ErrorResponse{Error: message, Code: code})
}

var statusByCode = map[string]int{
	domain.ErrCodeValidation:         http.StatusBadRequest,
	domain.ErrCodeUnauthorized:       http.StatusUnauthorized,
	domain.ErrCodeNotFound:           http.StatusNotFound,
	domain.ErrCodeEmptyKnowledgeBase: http.StatusConflict,
	domain.ErrCodeConversion:         http.StatusUnprocessableEntity,
	domain.ErrCodeChunking:           http.StatusUnprocessableEntity,
	domain.ErrCodeEmbeddingAPI:       http.StatusBadGateway,
	domain.ErrCodeCompletionAPI:      http.StatusBadGateway,
	domain.ErrCodeStorage:            http.StatusInternalServerError,
	domain.ErrCodeInternalError:      http.StatusInternalServerError,
}

// DomainErrorToHTTP maps domain errors to HTTP status codes. Errors outside
// the domain are internal.
func DomainErrorToHTTP(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var domainErr *domain.DomainError
	if !errors.As(err, &domainErr) {
		return http.StatusInternalServerError
	}
	if status, ok := statusByCode[domainErr.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// HandleError writes the response for err. Server-side failures are logged,
// and errors outside the domain are not echoed to the caller.
func HandleError(w http.ResponseWriter, err error) {
	status, body := ErrorBody(err)
	JSON(w, status, body)
}

// ErrorBody is the status and envelope HandleError would write for err.
func ErrorBody(err error) (int, ErrorResponse) {
	status := DomainErrorToHTTP(err)
	if status >= http.StatusInternalServerError {
		log.Printf("api: %d: %v", status, err)
	}

	var domainErr *domain.DomainError
	if !errors.As(err, &domainErr) {
		return status, ErrorResponse{Error: "internal server error", Code: domain.ErrCodeInternalError}
	}
	return status, ErrorResponse{Error: err.Error(), Code: domainErr.Code}
}
