package domain

import (
	"strings"
	"unicode/utf8"
)

// MaxQueryLen bounds query text length in bytes.
const MaxQueryLen = 4096

// ValidateQuery checks a user query before it enters the pipeline.
func ValidateQuery(text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return NewValidationError("query", text, ErrEmptyQuery)
	}
	if len(trimmed) > MaxQueryLen {
		return NewValidationError("query", trimmed[:32]+"...", ErrQueryTooLong)
	}
	return nil
}

// ValidateDocument checks a DocumentInput before chunking. Text must be
// non-empty valid UTF-8; provenance fields must be present.
func ValidateDocument(doc DocumentInput) error {
	if strings.TrimSpace(doc.Text) == "" {
		return NewValidationError("text", "", ErrNoChunks)
	}
	if !utf8.ValidString(doc.Text) {
		return NewValidationError("text", doc.Filename, ErrInvalidEncoding)
	}
	if doc.Filename == "" {
		return NewValidationError("filename", "", ErrMissingProvenance)
	}
	if doc.SourcePath == "" {
		return NewValidationError("source_path", doc.Filename, ErrMissingProvenance)
	}
	return nil
}
