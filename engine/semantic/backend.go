package semantic

import (
	"context"
	"fmt"

	"github.com/PathwiseAI/pathwise-engine/engine/domain"
	"github.com/PathwiseAI/pathwise-engine/engine/retrieve"
	"github.com/PathwiseAI/pathwise-engine/engine/vector"
	"github.com/PathwiseAI/pathwise-engine/pkg/fn"
)

// UpsertBatchSize is the max points per upsert request at build time.
const UpsertBatchSize = 128

// Backend builds per-version Qdrant collections and hands back a searcher
// bound to the collection it built. It satisfies the corpus vector-backend
// contract.
type Backend struct {
	store  *Store
	emb    vector.Embedder
	prefix string
}

// NewBackend creates a Backend. The prefix namespaces collections so
// several deployments can share one Qdrant instance.
func NewBackend(store *Store, emb vector.Embedder, prefix string) *Backend {
	if prefix == "" {
		prefix = "pathwise"
	}
	return &Backend{store: store, emb: emb, prefix: prefix}
}

// Build embeds all chunks, recreates the version's collection, and upserts
// the vectors. The returned searcher reads only that collection.
func (b *Backend) Build(ctx context.Context, versionName string, chunks []domain.Chunk) (retrieve.VectorSearcher, error) {
	if len(chunks) == 0 {
		return nil, domain.ErrNoChunks
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vecs := make([][]float32, 0, len(chunks))
	for _, batch := range fn.Chunk(texts, vector.EmbedBatchSize) {
		batch := batch
		r := fn.Retry(ctx, fn.DefaultRetry, func(ctx context.Context) fn.Result[[][]float32] {
			return fn.FromPair(b.emb.EmbedBatch(ctx, batch))
		})
		embedded, err := r.Unwrap()
		if err != nil {
			return nil, fmt.Errorf("semantic: embed batch of %d: %w", len(batch), err)
		}
		if len(embedded) != len(batch) {
			return nil, fmt.Errorf("semantic: embedder returned %d vectors for %d texts", len(embedded), len(batch))
		}
		vecs = append(vecs, embedded...)
	}

	collection := b.collectionName(versionName)

	// Rebuilds under the same version name start from an empty collection.
	if err := b.store.DropCollection(ctx, collection); err != nil {
		return nil, err
	}
	if err := b.store.EnsureCollection(ctx, collection, len(vecs[0])); err != nil {
		return nil, err
	}

	for start := 0; start < len(chunks); start += UpsertBatchSize {
		end := start + UpsertBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		if err := b.store.UpsertChunks(ctx, collection, chunks[start:end], vecs[start:end]); err != nil {
			return nil, err
		}
	}

	return &Searcher{store: b.store, emb: b.emb, collection: collection}, nil
}

// Drop removes the collection backing a retired version.
func (b *Backend) Drop(ctx context.Context, versionName string) error {
	return b.store.DropCollection(ctx, b.collectionName(versionName))
}

func (b *Backend) collectionName(versionName string) string {
	return b.prefix + "_" + versionName
}

// Searcher answers dense queries against one version's collection.
type Searcher struct {
	store      *Store
	emb        vector.Embedder
	collection string
}

// Query embeds the query text once and searches the collection.
func (s *Searcher) Query(ctx context.Context, text string, k int) ([]domain.ScoredChunk, error) {
	q, err := s.emb.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("semantic: embed query: %w", err)
	}
	return s.store.Search(ctx, s.collection, q, k)
}
