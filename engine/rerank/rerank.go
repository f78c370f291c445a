// Package rerank rescoring stage: applies a precise but expensive
// cross-encoder relevance function to the already-narrowed candidate set.
// Fused retrieval scores are cheap and noisy; this stage is accurate and
// costly, so it only ever sees the shortlist, never the full corpus.
package rerank

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/PathwiseAI/pathwise-engine/engine/domain"
	"github.com/PathwiseAI/pathwise-engine/pkg/fn"
)

// Scorer is the external cross-encoder: (query, chunk text) -> relevance.
type Scorer interface {
	Score(ctx context.Context, query, text string) (float64, error)
}

// Item is a candidate handed to the reranker: the chunk text plus its rank
// in the fused ordering, used for deterministic tie-breaking.
type Item struct {
	ChunkID   string
	Text      string
	FusedRank int
}

// RankedResult is a reranked shortlist entry. Rank is 1-based.
type RankedResult struct {
	ChunkID string  `json:"chunk_id"`
	Score   float64 `json:"rerank_score"`
	Rank    int     `json:"rank"`
}

// Options configures reranker concurrency and per-call timeouts.
type Options struct {
	// Workers bounds concurrent scoring calls.
	Workers int
	// CallTimeout applies to each individual scoring call.
	CallTimeout time.Duration
}

// DefaultOptions returns the standard reranking policy.
func DefaultOptions() Options {
	return Options{Workers: 4, CallTimeout: 10 * time.Second}
}

// Reranker scores candidates with bounded parallelism.
type Reranker struct {
	scorer Scorer
	opts   Options
	logger *slog.Logger
}

// New creates a Reranker.
func New(scorer Scorer, opts Options, logger *slog.Logger) *Reranker {
	if opts.Workers <= 0 {
		opts.Workers = DefaultOptions().Workers
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultOptions().CallTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reranker{scorer: scorer, opts: opts, logger: logger}
}

type scored struct {
	item  Item
	score float64
}

// Rerank scores every candidate and returns the top min(topK, survivors)
// ordered by score descending, ties broken by fused rank then chunk ID.
// A candidate whose scoring call fails is dropped and scoring continues;
// when every candidate fails the stage fails with domain.ErrRerankFailed
// and the caller falls back to the fused order.
func (r *Reranker) Rerank(ctx context.Context, query string, items []Item, topK int) ([]RankedResult, error) {
	if len(items) == 0 {
		return nil, nil
	}

	results := fn.ParMapResult(items, r.opts.Workers, func(it Item) fn.Result[scored] {
		callCtx, cancel := context.WithTimeout(ctx, r.opts.CallTimeout)
		defer cancel()
		s, err := r.scorer.Score(callCtx, query, it.Text)
		if err != nil {
			return fn.Err[scored](fmt.Errorf("score chunk %s: %w", it.ChunkID, err))
		}
		return fn.Ok(scored{item: it, score: s})
	})

	survivors := make([]scored, 0, len(results))
	for _, res := range results {
		v, err := res.Unwrap()
		if err != nil {
			r.logger.Warn("rerank: dropping candidate", "err", err)
			continue
		}
		survivors = append(survivors, v)
	}
	if len(survivors) == 0 {
		return nil, fmt.Errorf("rerank %d candidates: %w", len(items), domain.ErrRerankFailed)
	}

	sort.Slice(survivors, func(a, b int) bool {
		if survivors[a].score != survivors[b].score {
			return survivors[a].score > survivors[b].score
		}
		if survivors[a].item.FusedRank != survivors[b].item.FusedRank {
			return survivors[a].item.FusedRank < survivors[b].item.FusedRank
		}
		return survivors[a].item.ChunkID < survivors[b].item.ChunkID
	})

	if topK > 0 && topK < len(survivors) {
		survivors = survivors[:topK]
	}
	out := make([]RankedResult, len(survivors))
	for i, s := range survivors {
		out[i] = RankedResult{ChunkID: s.item.ChunkID, Score: s.score, Rank: i + 1}
	}
	return out, nil
}

// FusedFallback converts fused-order items into RankedResults, used when
// the scoring stage fails as a whole.
func FusedFallback(items []Item, topK int) []RankedResult {
	if topK > 0 && topK < len(items) {
		items = items[:topK]
	}
	out := make([]RankedResult, len(items))
	for i, it := range items {
		out[i] = RankedResult{ChunkID: it.ChunkID, Score: 0, Rank: i + 1}
	}
	return out
}
