// Package retrieve fuses dense and lexical index rankings into a single
// candidate set using reciprocal-rank fusion. When the dense index is
// unavailable it degrades to lexical-only retrieval and reports the
// degradation on the result, never as an error.
package retrieve

import (
	"context"
	"log/slog"
	"sort"

	"github.com/PathwiseAI/pathwise-engine/engine/domain"
	"github.com/PathwiseAI/pathwise-engine/pkg/fn"
)

// VectorSearcher is the dense index query contract.
type VectorSearcher interface {
	Query(ctx context.Context, text string, k int) ([]domain.ScoredChunk, error)
}

// LexicalSearcher is the sparse index query contract. Purely local, so it
// cannot fail.
type LexicalSearcher interface {
	Query(text string, k int) []domain.ScoredChunk
}

// Candidate is a fused retrieval candidate. Dense and lexical scores are
// recorded when the chunk appeared in the corresponding list.
type Candidate struct {
	ChunkID      string  `json:"chunk_id"`
	DenseScore   float64 `json:"dense_score,omitempty"`
	HasDense     bool    `json:"-"`
	LexicalScore float64 `json:"lexical_score,omitempty"`
	HasLexical   bool    `json:"-"`
	Fused        float64 `json:"fused_score"`
}

// Result is the retrieval output. Degraded is set when the dense index was
// unavailable or failed and only lexical results were used.
type Result struct {
	Candidates []Candidate
	Degraded   bool
}

// Options configures fusion policy.
type Options struct {
	// Breadth is how many hits to request from each index before fusing.
	Breadth int
	// RRFConst dampens rank-1 dominance in reciprocal-rank fusion.
	RRFConst float64
}

// DefaultOptions returns the standard fusion policy.
func DefaultOptions() Options {
	return Options{Breadth: 40, RRFConst: 60}
}

// Hybrid queries both indexes and fuses their rankings. Cheap to construct
// per corpus version; all reads are non-mutating.
type Hybrid struct {
	vec    VectorSearcher
	lex    LexicalSearcher
	opts   Options
	logger *slog.Logger
}

// New creates a Hybrid retriever. vec may be nil when no dense index is
// available; retrieval then runs lexical-only.
func New(vec VectorSearcher, lex LexicalSearcher, opts Options, logger *slog.Logger) *Hybrid {
	if opts.Breadth <= 0 {
		opts.Breadth = DefaultOptions().Breadth
	}
	if opts.RRFConst <= 0 {
		opts.RRFConst = DefaultOptions().RRFConst
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hybrid{vec: vec, lex: lex, opts: opts, logger: logger}
}

type denseOutcome struct {
	hits []domain.ScoredChunk
	err  error
}

// Retrieve returns up to topK fused candidates for the query. Both indexes
// are queried concurrently at the configured breadth. A dense-side failure
// is a degradation, not an error: lexical results still come back.
func (h *Hybrid) Retrieve(ctx context.Context, query string, topK int) (Result, error) {
	if topK <= 0 {
		topK = h.opts.Breadth
	}

	var dense denseOutcome
	var lexHits []domain.ScoredChunk

	if h.vec != nil {
		out := fn.FanOut(
			func() any {
				hits, err := h.vec.Query(ctx, query, h.opts.Breadth)
				return denseOutcome{hits: hits, err: err}
			},
			func() any {
				return h.lex.Query(query, h.opts.Breadth)
			},
		)
		dense = out[0].(denseOutcome)
		lexHits, _ = out[1].([]domain.ScoredChunk)
	} else {
		lexHits = h.lex.Query(query, h.opts.Breadth)
		dense.err = domain.ErrIndexUnavailable
	}

	degraded := false
	if dense.err != nil {
		degraded = true
		h.logger.Warn("retrieve: dense index unavailable, lexical only", "err", dense.err)
	}

	fused := h.fuse(dense.hits, lexHits)
	if len(fused) > topK {
		fused = fused[:topK]
	}
	return Result{Candidates: fused, Degraded: degraded}, nil
}

// fuse applies reciprocal-rank fusion: each chunk scores sum(1/(rank+c))
// over the lists it appears in; absence from a list simply contributes
// nothing. Ordering is fused score descending, ties by chunk ID.
func (h *Hybrid) fuse(dense, lex []domain.ScoredChunk) []Candidate {
	byID := make(map[string]*Candidate)

	for rank, hit := range dense {
		c := &Candidate{ChunkID: hit.ChunkID, DenseScore: hit.Score, HasDense: true}
		c.Fused += 1.0 / (float64(rank+1) + h.opts.RRFConst)
		byID[hit.ChunkID] = c
	}
	for rank, hit := range lex {
		c, ok := byID[hit.ChunkID]
		if !ok {
			c = &Candidate{ChunkID: hit.ChunkID}
			byID[hit.ChunkID] = c
		}
		c.LexicalScore = hit.Score
		c.HasLexical = true
		c.Fused += 1.0 / (float64(rank+1) + h.opts.RRFConst)
	}

	out := make([]Candidate, 0, len(byID))
	for _, c := range byID {
		out = append(out, *c)
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Fused != out[b].Fused {
			return out[a].Fused > out[b].Fused
		}
		return out[a].ChunkID < out[b].ChunkID
	})
	return out
}
