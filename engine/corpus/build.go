package corpus

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/PathwiseAI/pathwise-engine/engine/domain"
	"github.com/PathwiseAI/pathwise-engine/engine/lexical"
	"github.com/PathwiseAI/pathwise-engine/engine/retrieve"
	"github.com/PathwiseAI/pathwise-engine/engine/vector"
	"github.com/google/uuid"
)

// VectorBackend builds the dense index for a corpus version. The local
// in-process index is the default; a remote store (e.g. Qdrant) can stand
// in behind the same contract.
type VectorBackend interface {
	Build(ctx context.Context, versionName string, chunks []domain.Chunk) (retrieve.VectorSearcher, error)
}

// localBackend builds the in-process exact-cosine index.
type localBackend struct {
	emb vector.Embedder
}

func (b localBackend) Build(ctx context.Context, _ string, chunks []domain.Chunk) (retrieve.VectorSearcher, error) {
	return vector.Build(ctx, b.emb, chunks)
}

// LocalVectorBackend returns a VectorBackend over the in-process index.
func LocalVectorBackend(emb vector.Embedder) VectorBackend {
	return localBackend{emb: emb}
}

// BuildOptions configures chunking and degraded-build policy.
type BuildOptions struct {
	ChunkWords   int
	OverlapWords int
	// RequireVector makes a dense-index build failure fail the whole
	// corpus build. By default the build degrades to lexical-only,
	// since the sparse index needs no external backend.
	RequireVector bool
}

// DefaultBuildOptions returns the standard build policy.
func DefaultBuildOptions() BuildOptions {
	return BuildOptions{ChunkWords: DefaultChunkWords, OverlapWords: DefaultOverlapWords}
}

// Builder constructs corpus versions from document inputs.
type Builder struct {
	backend VectorBackend
	opts    BuildOptions
	logger  *slog.Logger
}

// NewBuilder creates a Builder.
func NewBuilder(backend VectorBackend, opts BuildOptions, logger *slog.Logger) *Builder {
	if opts.ChunkWords <= 0 {
		opts.ChunkWords = DefaultChunkWords
	}
	if opts.OverlapWords < 0 {
		opts.OverlapWords = DefaultOverlapWords
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{backend: backend, opts: opts, logger: logger}
}

// Build chunks the documents and constructs a fully-formed Version: chunk
// store, lexical index, and (unless degraded) dense index. It never
// touches the active version; the caller swaps the result in on success.
// Invalid documents are skipped with a warning; zero resulting chunks is
// an error the caller must treat as "no index available".
func (b *Builder) Build(ctx context.Context, name string, docs []domain.DocumentInput) (*Version, error) {
	var chunks []domain.Chunk
	for _, doc := range docs {
		if err := domain.ValidateDocument(doc); err != nil {
			b.logger.Warn("corpus: skipping document", "filename", doc.Filename, "err", err)
			continue
		}
		text := cleanText(doc.Text)
		for seq, piece := range chunkSentences(SplitSentences(text), b.opts.ChunkWords, b.opts.OverlapWords) {
			chunks = append(chunks, domain.Chunk{
				ID:         chunkID(doc.SourcePath, seq),
				Text:       piece,
				SourcePath: doc.SourcePath,
				Filename:   doc.Filename,
				Seq:        seq,
			})
		}
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("corpus: build %s from %d documents: %w", name, len(docs), domain.ErrNoChunks)
	}

	v := &Version{
		name:   name,
		chunks: make(map[string]domain.Chunk, len(chunks)),
		order:  make([]string, len(chunks)),
		lex:    lexical.Build(chunks),
	}
	for i, c := range chunks {
		v.chunks[c.ID] = c
		v.order[i] = c.ID
	}

	if b.backend != nil {
		searcher, err := b.backend.Build(ctx, name, chunks)
		if err != nil {
			if b.opts.RequireVector {
				return nil, fmt.Errorf("corpus: dense index for %s: %w", name, err)
			}
			b.logger.Warn("corpus: dense index build failed, version is lexical-only", "version", name, "err", err)
		} else {
			v.vec = searcher
		}
	}

	b.logger.Info("corpus: version built",
		"version", name, "documents", len(docs), "chunks", len(chunks), "degraded", v.Degraded())
	return v, nil
}

// chunkID derives a stable UUID from document provenance and sequence, so
// rebuilding the same corpus yields the same IDs.
func chunkID(sourcePath string, seq int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(sourcePath+"#"+strconv.Itoa(seq))).String()
}
