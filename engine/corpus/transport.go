package corpus

import "github.com/PathwiseAI/pathwise-engine/engine/domain"

// SnapshotSubject is the NATS subject carrying full-corpus snapshots from
// the ingest binary to the API.
const SnapshotSubject = "pathwise.corpus.snapshot"

// Snapshot is the reindex message: the complete document set for the next
// corpus version. Always a full set, never a delta, so a rebuild is
// self-contained.
type Snapshot struct {
	Documents []domain.DocumentInput `json:"documents"`
}
