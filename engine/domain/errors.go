package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the pipeline failure taxonomy. Callers distinguish
// these with errors.Is to choose a response (e.g. an HTTP status).
var (
	// ErrIndexUnavailable means no corpus version has been built yet.
	// Recoverable by the caller retrying later.
	ErrIndexUnavailable = errors.New("no corpus index available")
	// ErrEmptyQuery means the query text was empty or whitespace.
	ErrEmptyQuery = errors.New("empty query")
	// ErrQueryTooLong guards against pathological inputs.
	ErrQueryTooLong = errors.New("query too long")
	// ErrRerankFailed means every candidate failed cross-encoder scoring.
	// The pipeline falls back to fused retrieval order.
	ErrRerankFailed = errors.New("rerank failed for all candidates")
	// ErrGenerationFailed means the external generation call failed or
	// timed out. Fatal for the query.
	ErrGenerationFailed = errors.New("generation failed")
	// ErrNoChunks means a corpus build was attempted over zero chunks.
	ErrNoChunks = errors.New("no chunks to index")
	// ErrInvalidEncoding means document text was not valid UTF-8.
	ErrInvalidEncoding = errors.New("document text is not valid UTF-8")
	// ErrMissingProvenance means a document lacked source path or filename.
	ErrMissingProvenance = errors.New("document provenance missing")
)

// ValidationError wraps a sentinel with the offending field and value.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
