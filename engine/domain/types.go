// Package domain defines core domain types, sentinel errors, and validation
// for the Pathwise engine pipeline. It acts as the validation gate at
// pipeline entry points.
package domain

// DocumentInput is a single document handed over by the external ingestion
// collaborator: already-extracted UTF-8 text plus provenance.
type DocumentInput struct {
	Text       string `json:"text"`
	SourcePath string `json:"source_path"`
	Filename   string `json:"filename"`
}

// Chunk is an immutable text segment of a document within one corpus
// version. The ID is unique within the version; all other components hold
// chunk IDs, never the chunk itself.
type Chunk struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	SourcePath string `json:"source_path"`
	Filename   string `json:"filename"`
	Seq        int    `json:"seq"`
}

// ScoredChunk is a (chunk, score) pair returned by index queries.
type ScoredChunk struct {
	ChunkID string  `json:"chunk_id"`
	Score   float64 `json:"score"`
}

// Intent classifies a user query; it only steers the rewrite strategy and
// never blocks the pipeline.
type Intent string

const (
	IntentFactual    Intent = "factual"
	IntentAdvice     Intent = "advice"
	IntentComparison Intent = "comparison"
	IntentUnknown    Intent = "unknown"
)

// IssueKind enumerates the verifier's finding categories.
type IssueKind string

const (
	IssueUnsupportedClaim IssueKind = "unsupported_claim"
	IssueMissingCitation  IssueKind = "missing_citation"
	IssueEmptyContext     IssueKind = "empty_context"
	IssueLowConfidence    IssueKind = "low_confidence"
)

// Issue is a single verifier finding against a generated answer. Issues
// annotate the answer; they never modify it.
type Issue struct {
	Kind   IssueKind `json:"kind"`
	Detail string    `json:"detail"`
}
