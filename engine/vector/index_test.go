package vector

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/PathwiseAI/pathwise-engine/engine/domain"
)

// hashEmbedder produces small deterministic vectors from character counts,
// good enough to make similar texts score similar.
type hashEmbedder struct {
	failFirst int // number of calls to fail before succeeding
	calls     int
}

func (e *hashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.calls++
	if e.calls <= e.failFirst {
		return nil, errors.New("embedding backend unavailable")
	}
	var vowels, consonants, spaces, digits float32
	for _, r := range strings.ToLower(text) {
		switch {
		case strings.ContainsRune("aeiou", r):
			vowels++
		case r == ' ':
			spaces++
		case r >= '0' && r <= '9':
			digits++
		default:
			consonants++
		}
	}
	return []float32{vowels, consonants, spaces, digits}, nil
}

func (e *hashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func testChunks() []domain.Chunk {
	return []domain.Chunk{
		{ID: "c1", Text: "software engineering career ladder", Filename: "f.txt"},
		{ID: "c2", Text: "data analyst interview preparation 101", Filename: "f.txt"},
		{ID: "c3", Text: "resume formatting tips", Filename: "f.txt"},
	}
}

func TestBuildEmptyFails(t *testing.T) {
	_, err := Build(context.Background(), &hashEmbedder{}, nil)
	if !errors.Is(err, domain.ErrNoChunks) {
		t.Fatalf("want ErrNoChunks, got %v", err)
	}
}

func TestBuildAndQuery(t *testing.T) {
	ix, err := Build(context.Background(), &hashEmbedder{}, testChunks())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if ix.Len() != 3 || ix.Dim() != 4 {
		t.Fatalf("len=%d dim=%d", ix.Len(), ix.Dim())
	}

	hits, err := ix.Query(context.Background(), "software engineering careers", 2)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("want 2 hits, got %d", len(hits))
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].Score > hits[i-1].Score {
			t.Fatalf("scores not descending: %v", hits)
		}
	}
}

func TestQueryDeterministic(t *testing.T) {
	ix, err := Build(context.Background(), &hashEmbedder{}, testChunks())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	a, _ := ix.Query(context.Background(), "career advice", 3)
	b, _ := ix.Query(context.Background(), "career advice", 3)
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("hit %d differs: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestBuildRetriesTransientFailure(t *testing.T) {
	// Fails the first call, then recovers inside the bounded retry budget.
	emb := &hashEmbedder{failFirst: 1}
	ix, err := Build(context.Background(), emb, testChunks())
	if err != nil {
		t.Fatalf("build should survive one transient failure: %v", err)
	}
	if ix.Len() != 3 {
		t.Fatalf("len = %d", ix.Len())
	}
}

func TestTieBreakByChunkID(t *testing.T) {
	// Identical texts embed identically; order must fall back to ID.
	chunks := []domain.Chunk{
		{ID: "zz", Text: "same text here"},
		{ID: "aa", Text: "same text here"},
	}
	ix, err := Build(context.Background(), &hashEmbedder{}, chunks)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	hits, err := ix.Query(context.Background(), "same text here", 2)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if hits[0].ChunkID != "aa" || hits[1].ChunkID != "zz" {
		t.Fatalf("tie-break order wrong: %v", hits)
	}
}
