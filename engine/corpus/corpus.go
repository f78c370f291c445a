// Package corpus owns the chunk store and corpus versioning. A Version is
// an immutable snapshot of chunks plus the indexes built over them; builds
// happen off to the side and the active version pointer is swapped
// atomically, so readers always see either the old or the new version in
// full and queries never block a build.
package corpus

import (
	"sync/atomic"

	"github.com/PathwiseAI/pathwise-engine/engine/domain"
	"github.com/PathwiseAI/pathwise-engine/engine/lexical"
	"github.com/PathwiseAI/pathwise-engine/engine/retrieve"
)

// Version is one immutable corpus snapshot. All accessors are read-only;
// a Version is never mutated after Build returns it.
type Version struct {
	name   string
	chunks map[string]domain.Chunk
	order  []string
	vec    retrieve.VectorSearcher // nil when the dense index is unavailable
	lex    *lexical.Index
}

// Name returns the version identifier.
func (v *Version) Name() string { return v.name }

// Len returns the number of chunks in this version.
func (v *Version) Len() int { return len(v.order) }

// Chunk resolves a chunk by ID within this version.
func (v *Version) Chunk(id string) (domain.Chunk, bool) {
	c, ok := v.chunks[id]
	return c, ok
}

// Chunks returns the chunks in build order.
func (v *Version) Chunks() []domain.Chunk {
	out := make([]domain.Chunk, len(v.order))
	for i, id := range v.order {
		out[i] = v.chunks[id]
	}
	return out
}

// Vector returns the dense searcher, or nil when this version was built
// degraded (embedding backend down).
func (v *Version) Vector() retrieve.VectorSearcher { return v.vec }

// Lexical returns the sparse index, always present.
func (v *Version) Lexical() *lexical.Index { return v.lex }

// Degraded reports whether this version has no dense index.
func (v *Version) Degraded() bool { return v.vec == nil }

// Manager holds the process-wide active version pointer. Swap is atomic:
// concurrent readers see the old or the new version, never a partial one.
type Manager struct {
	active atomic.Pointer[Version]
}

// NewManager creates an empty Manager; Active returns nil until the first
// successful build is swapped in.
func NewManager() *Manager { return &Manager{} }

// Active returns the current version, or nil if none has been built.
func (m *Manager) Active() *Version { return m.active.Load() }

// Swap installs a new version and returns the previous one.
func (m *Manager) Swap(v *Version) *Version { return m.active.Swap(v) }
