// Package vector builds and queries a dense-embedding index over corpus
// chunks. The index is an immutable snapshot: built once, never mutated,
// safe for unbounded concurrent queries.
package vector

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/PathwiseAI/pathwise-engine/engine/domain"
	"github.com/PathwiseAI/pathwise-engine/pkg/fn"
)

// EmbedBatchSize is the max texts per embedding request at build time.
const EmbedBatchSize = 64

// Embedder is the external embedding function. It may be remote; callers
// treat failures as transient and retry with bounded attempts.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Index holds chunk embeddings with precomputed magnitudes for cosine
// similarity. All fields are fixed after Build.
type Index struct {
	emb  Embedder
	ids  []string
	vecs [][]float32
	mags []float64
	dim  int
}

// Build embeds every chunk once and constructs the index. It fails on an
// empty chunk set, and when embedding still fails after bounded retries
// the whole build fails.
func Build(ctx context.Context, emb Embedder, chunks []domain.Chunk) (*Index, error) {
	if len(chunks) == 0 {
		return nil, domain.ErrNoChunks
	}

	ids := make([]string, len(chunks))
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
		texts[i] = c.Text
	}

	vecs := make([][]float32, 0, len(chunks))
	for _, batch := range fn.Chunk(texts, EmbedBatchSize) {
		batch := batch
		r := fn.Retry(ctx, fn.DefaultRetry, func(ctx context.Context) fn.Result[[][]float32] {
			return fn.FromPair(emb.EmbedBatch(ctx, batch))
		})
		embedded, err := r.Unwrap()
		if err != nil {
			return nil, fmt.Errorf("vector: embed batch of %d: %w", len(batch), err)
		}
		if len(embedded) != len(batch) {
			return nil, fmt.Errorf("vector: embedder returned %d vectors for %d texts", len(embedded), len(batch))
		}
		vecs = append(vecs, embedded...)
	}

	dim := len(vecs[0])
	mags := make([]float64, len(vecs))
	for i, v := range vecs {
		if len(v) != dim {
			return nil, fmt.Errorf("vector: inconsistent dims %d vs %d at chunk %s", len(v), dim, ids[i])
		}
		mags[i] = magnitude(v)
	}

	return &Index{emb: emb, ids: ids, vecs: vecs, mags: mags, dim: dim}, nil
}

// Dim returns the embedding dimensionality.
func (ix *Index) Dim() int { return ix.dim }

// Len returns the number of indexed chunks.
func (ix *Index) Len() int { return len(ix.ids) }

// Query embeds the query text once and returns the top-k chunks by cosine
// similarity, higher first, ties broken by chunk ID ascending.
func (ix *Index) Query(ctx context.Context, text string, k int) ([]domain.ScoredChunk, error) {
	r := fn.Retry(ctx, fn.DefaultRetry, func(ctx context.Context) fn.Result[[]float32] {
		return fn.FromPair(ix.emb.Embed(ctx, text))
	})
	q, err := r.Unwrap()
	if err != nil {
		return nil, fmt.Errorf("vector: embed query: %w", err)
	}
	if len(q) != ix.dim {
		return nil, fmt.Errorf("vector: query dim %d != index dim %d", len(q), ix.dim)
	}

	qm := magnitude(q)
	if qm == 0 {
		return nil, nil
	}

	hits := make([]domain.ScoredChunk, 0, len(ix.vecs))
	for i := range ix.vecs {
		if ix.mags[i] == 0 {
			continue
		}
		s := dot(q, ix.vecs[i]) / (qm * ix.mags[i])
		if math.IsNaN(s) {
			continue
		}
		hits = append(hits, domain.ScoredChunk{ChunkID: ix.ids[i], Score: s})
	}

	sort.Slice(hits, func(a, b int) bool {
		if hits[a].Score != hits[b].Score {
			return hits[a].Score > hits[b].Score
		}
		return hits[a].ChunkID < hits[b].ChunkID
	})
	if k > 0 && k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

func magnitude(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
