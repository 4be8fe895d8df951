package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a DomainError with the same code, so sentinel
// errors below match any error of their kind.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeInternalError = "INTERNAL_ERROR"

	ErrCodeConversion         = "CONVERSION_ERROR"
	ErrCodeChunking           = "CHUNKING_ERROR"
	ErrCodeEmbeddingAPI       = "EMBEDDING_API_ERROR"
	ErrCodeStorage            = "STORAGE_ERROR"
	ErrCodeCompletionAPI      = "COMPLETION_API_ERROR"
	ErrCodeEmptyKnowledgeBase = "EMPTY_KNOWLEDGE_BASE"
)

// Pipeline errors. Use errors.Is against these to classify a failure.
var (
	ErrConversion         = NewDomainError(ErrCodeConversion, "document conversion failed")
	ErrChunking           = NewDomainError(ErrCodeChunking, "no chunkable content found")
	ErrEmbeddingAPI       = NewDomainError(ErrCodeEmbeddingAPI, "embedding request failed")
	ErrStorage            = NewDomainError(ErrCodeStorage, "vector store write failed")
	ErrCompletionAPI      = NewDomainError(ErrCodeCompletionAPI, "completion request failed")
	ErrEmptyKnowledgeBase = NewDomainError(ErrCodeEmptyKnowledgeBase, "no documents ingested")
)

// Validation errors
var (
	ErrEmptyQuestion        = NewDomainError(ErrCodeValidation, "question cannot be empty")
	ErrUnsupportedFormat    = NewDomainError(ErrCodeConversion, "unsupported file format")
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
	ErrDimensionMismatch    = NewDomainError(ErrCodeStorage, "vector dimension does not match store")
)

// Not found errors
var (
	ErrSessionNotFound = NewDomainError(ErrCodeNotFound, "session not found")
)

// NewConversionError reports a file that could not be converted.
func NewConversionError(filename string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeConversion, fmt.Sprintf("failed to convert %s", filename), err)
}

// NewChunkingError reports a converted file that produced no chunks.
func NewChunkingError(filename string) *DomainError {
	return NewDomainError(ErrCodeChunking, fmt.Sprintf("no chunkable content found in %s", filename))
}

// NewEmbeddingError reports a failed embedding call for a file or for the question.
func NewEmbeddingError(subject string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeEmbeddingAPI, fmt.Sprintf("failed to embed %s", subject), err)
}

// NewStorageError reports a failed vector store operation.
func NewStorageError(operation string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeStorage, fmt.Sprintf("vector store %s failed", operation), err)
}

// NewCompletionError reports a failed chat completion call.
func NewCompletionError(err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeCompletionAPI, "failed to generate answer", err)
}

// ErrorCode returns the domain code of err, or ErrCodeInternalError when err
// carries none.
func ErrorCode(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ErrCodeInternalError
}
