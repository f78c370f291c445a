// Package lexical provides a sparse term-frequency index over corpus
// chunks. It catches exact keyword matches (identifiers, numbers, proper
// nouns) that dense embeddings under-weight, needs no external calls, and
// stays available when the embedding backend is down.
package lexical

import (
	"math"
	"sort"

	"github.com/PathwiseAI/pathwise-engine/engine/domain"
)

type posting struct {
	chunkID string
	tf      int
}

// Index is an immutable inverted index: term -> postings, plus per-chunk
// lengths for normalization. Built once, read-only afterwards.
type Index struct {
	postings map[string][]posting
	docLen   map[string]int
	n        int
}

// Build tokenizes every chunk and constructs the inverted index. An empty
// chunk set yields an empty (but usable) index.
func Build(chunks []domain.Chunk) *Index {
	ix := &Index{
		postings: make(map[string][]posting),
		docLen:   make(map[string]int),
		n:        len(chunks),
	}
	for _, c := range chunks {
		terms := Tokenize(c.Text)
		if len(terms) == 0 {
			continue
		}
		counts := make(map[string]int, len(terms))
		for _, t := range terms {
			counts[t]++
		}
		ix.docLen[c.ID] = len(terms)
		for t, tf := range counts {
			ix.postings[t] = append(ix.postings[t], posting{chunkID: c.ID, tf: tf})
		}
	}
	return ix
}

// Len returns the number of indexed chunks.
func (ix *Index) Len() int { return ix.n }

// Query scores chunks by TF-IDF term overlap with the query text and
// returns the top-k, higher first, ties broken by chunk ID ascending.
// Tokenization matches Build exactly, so casing and stopwords are
// normalized the same way on both sides.
func (ix *Index) Query(text string, k int) []domain.ScoredChunk {
	terms := Tokenize(text)
	if len(terms) == 0 || ix.n == 0 {
		return nil
	}

	scores := make(map[string]float64)
	seen := make(map[string]bool, len(terms))
	for _, t := range terms {
		if seen[t] {
			continue
		}
		seen[t] = true
		plist, ok := ix.postings[t]
		if !ok {
			continue
		}
		idf := math.Log(1 + float64(ix.n)/float64(1+len(plist)))
		for _, p := range plist {
			norm := float64(p.tf) / float64(ix.docLen[p.chunkID])
			scores[p.chunkID] += norm * idf
		}
	}
	if len(scores) == 0 {
		return nil
	}

	hits := make([]domain.ScoredChunk, 0, len(scores))
	for id, s := range scores {
		hits = append(hits, domain.ScoredChunk{ChunkID: id, Score: s})
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
	return hits
}
