package corpus

import (
	"strings"
	"unicode"
)

const (
	// DefaultChunkWords is the target word budget per chunk.
	DefaultChunkWords = 500
	// DefaultOverlapWords is the word overlap between adjacent chunks.
	DefaultOverlapWords = 80
)

// SplitSentences splits text into sentences using punctuation and
// newlines. Plain newline-delimited text still chunks sensibly.
func SplitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i, r := range runes {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			if r == '\n' || i == len(runes)-1 || unicode.IsSpace(runes[i+1]) {
				if s := strings.TrimSpace(current.String()); s != "" {
					sentences = append(sentences, s)
				}
				current.Reset()
			}
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// cleanText normalizes whitespace and drops blank lines.
func cleanText(text string) string {
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, l := range lines {
		if t := strings.TrimSpace(l); t != "" {
			kept = append(kept, t)
		}
	}
	return strings.Join(kept, "\n")
}

// chunkSentences groups sentences into chunks of roughly chunkWords words
// with overlapWords of trailing overlap carried into the next chunk.
func chunkSentences(sentences []string, chunkWords, overlapWords int) []string {
	if len(sentences) == 0 {
		return nil
	}
	if chunkWords <= 0 {
		chunkWords = DefaultChunkWords
	}
	if overlapWords < 0 {
		overlapWords = 0
	}

	var chunks []string
	start := 0

	for start < len(sentences) {
		var buf strings.Builder
		words := 0
		end := start

		for end < len(sentences) {
			n := wordCount(sentences[end])
			if words+n > chunkWords && words > 0 {
				break
			}
			if buf.Len() > 0 {
				buf.WriteRune(' ')
			}
			buf.WriteString(sentences[end])
			words += n
			end++
		}

		chunks = append(chunks, buf.String())
		if end == len(sentences) {
			break
		}

		// Step back into the tail of this chunk for overlap.
		overlap := 0
		newStart := end
		for newStart > start && overlap < overlapWords {
			newStart--
			overlap += wordCount(sentences[newStart])
		}
		if newStart == start {
			start = end
		} else {
			start = newStart
		}
	}
	return chunks
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
