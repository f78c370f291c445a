package corpus

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/PathwiseAI/pathwise-engine/engine/domain"
	"github.com/PathwiseAI/pathwise-engine/engine/retrieve"
)

type stubBackend struct {
	err   error
	built int
}

type stubSearcher struct{}

func (stubSearcher) Query(_ context.Context, _ string, _ int) ([]domain.ScoredChunk, error) {
	return nil, nil
}

func (b *stubBackend) Build(_ context.Context, _ string, _ []domain.Chunk) (retrieve.VectorSearcher, error) {
	b.built++
	if b.err != nil {
		return nil, b.err
	}
	return stubSearcher{}, nil
}

func docs() []domain.DocumentInput {
	return []domain.DocumentInput{
		{
			Text:       "Software careers reward continuous learning. Senior roles need mentoring skills. Architecture work needs breadth.",
			SourcePath: "/data/careers.txt",
			Filename:   "careers.txt",
		},
		{
			Text:       "Resumes should be one page. Use action verbs.",
			SourcePath: "/data/resumes.txt",
			Filename:   "resumes.txt",
		},
	}
}

func TestBuildVersion(t *testing.T) {
	b := NewBuilder(&stubBackend{}, DefaultBuildOptions(), slog.Default())
	v, err := b.Build(context.Background(), "v1", docs())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if v.Name() != "v1" || v.Len() == 0 {
		t.Fatalf("bad version: %s len=%d", v.Name(), v.Len())
	}
	if v.Degraded() {
		t.Error("should not be degraded")
	}
	if v.Lexical() == nil || v.Lexical().Len() != v.Len() {
		t.Error("lexical index missing or inconsistent")
	}
	for _, c := range v.Chunks() {
		got, ok := v.Chunk(c.ID)
		if !ok || got.Filename == "" || got.SourcePath == "" {
			t.Fatalf("chunk lookup/provenance broken: %+v", got)
		}
	}
}

func TestBuildNoDocsFails(t *testing.T) {
	b := NewBuilder(&stubBackend{}, DefaultBuildOptions(), slog.Default())
	_, err := b.Build(context.Background(), "v1", nil)
	if !errors.Is(err, domain.ErrNoChunks) {
		t.Fatalf("want ErrNoChunks, got %v", err)
	}
}

func TestBuildDegradesWhenVectorFails(t *testing.T) {
	b := NewBuilder(&stubBackend{err: errors.New("embedder down")}, DefaultBuildOptions(), slog.Default())
	v, err := b.Build(context.Background(), "v1", docs())
	if err != nil {
		t.Fatalf("build should degrade, not fail: %v", err)
	}
	if !v.Degraded() || v.Vector() != nil {
		t.Error("expected degraded lexical-only version")
	}
}

func TestBuildRequireVector(t *testing.T) {
	opts := DefaultBuildOptions()
	opts.RequireVector = true
	b := NewBuilder(&stubBackend{err: errors.New("embedder down")}, opts, slog.Default())
	if _, err := b.Build(context.Background(), "v1", docs()); err == nil {
		t.Fatal("RequireVector build should fail")
	}
}

func TestChunkIDsStableAcrossRebuilds(t *testing.T) {
	b := NewBuilder(&stubBackend{}, DefaultBuildOptions(), slog.Default())
	v1, _ := b.Build(context.Background(), "v1", docs())
	v2, _ := b.Build(context.Background(), "v2", docs())
	a, bb := v1.Chunks(), v2.Chunks()
	if len(a) != len(bb) {
		t.Fatal("chunk counts differ")
	}
	for i := range a {
		if a[i].ID != bb[i].ID {
			t.Fatalf("chunk %d ID changed across rebuilds", i)
		}
	}
}

func TestManagerSwap(t *testing.T) {
	m := NewManager()
	if m.Active() != nil {
		t.Fatal("fresh manager should have no active version")
	}
	b := NewBuilder(&stubBackend{}, DefaultBuildOptions(), slog.Default())
	v1, _ := b.Build(context.Background(), "v1", docs())
	if prev := m.Swap(v1); prev != nil {
		t.Fatal("first swap should return nil")
	}
	if m.Active() != v1 {
		t.Fatal("active version not updated")
	}

	v2, _ := b.Build(context.Background(), "v2", docs())
	if prev := m.Swap(v2); prev != v1 {
		t.Fatal("swap should return previous version")
	}
}

func TestManagerConcurrentReadersDuringSwap(t *testing.T) {
	m := NewManager()
	b := NewBuilder(&stubBackend{}, DefaultBuildOptions(), slog.Default())
	v1, _ := b.Build(context.Background(), "v1", docs())
	m.Swap(v1)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				v := m.Active()
				// A reader must always see a complete version.
				if v == nil || v.Len() == 0 || v.Lexical() == nil {
					t.Error("reader observed incomplete version")
					return
				}
			}
		}()
	}
	for i := 0; i < 50; i++ {
		v, _ := b.Build(context.Background(), "vn", docs())
		m.Swap(v)
	}
	close(stop)
	wg.Wait()
}

func TestChunkerOverlap(t *testing.T) {
	sentences := make([]string, 40)
	for i := range sentences {
		sentences[i] = strings.Repeat("word ", 20) + "end."
	}
	chunks := chunkSentences(sentences, 100, 20)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i := 1; i < len(chunks); i++ {
		// Overlap means each chunk shares its head with the previous tail.
		prevTail := lastWords(chunks[i-1], 5)
		if !strings.Contains(chunks[i], prevTail) {
			t.Fatalf("chunk %d missing overlap with predecessor", i)
		}
	}
}

func lastWords(s string, n int) string {
	fields := strings.Fields(s)
	if len(fields) < n {
		return s
	}
	return strings.Join(fields[len(fields)-n:], " ")
}

func TestChunkerShortDocSingleChunk(t *testing.T) {
	chunks := chunkSentences(SplitSentences("One short sentence."), 500, 80)
	if len(chunks) != 1 {
		t.Fatalf("want 1 chunk, got %d", len(chunks))
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("Text A."), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b.md"), []byte("Text B."), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "skip.pdf"), []byte("%PDF"), 0o644); err != nil {
		t.Fatal(err)
	}

	docs, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("want 2 docs, got %d", len(docs))
	}
	for _, d := range docs {
		if d.Filename == "skip.pdf" {
			t.Fatal("pdf should be skipped")
		}
		if d.SourcePath == "" || d.Text == "" {
			t.Fatalf("incomplete doc: %+v", d)
		}
	}
}
