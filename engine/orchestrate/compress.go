package orchestrate

import (
	"fmt"
	"strings"

	"github.com/PathwiseAI/pathwise-engine/engine/domain"
	"github.com/PathwiseAI/pathwise-engine/engine/rerank"
)

// DefaultMaxChars is the default evidence budget in characters.
const DefaultMaxChars = 3500

const evidenceSeparator = "\n\n"

// EvidenceItem is one cited chunk in the packet. Index is the 1-based
// citation number the generator and verifier both rely on.
type EvidenceItem struct {
	Index    int    `json:"citation_index"`
	ChunkID  string `json:"chunk_id"`
	Text     string `json:"text"`
	Filename string `json:"filename"`
}

// EvidencePacket is the ordered, budget-bound evidence handed to the
// generation call. Citation indices are contiguous from 1; they are stable
// for the lifetime of one query/answer pair.
type EvidencePacket struct {
	Items []EvidenceItem `json:"items"`
}

// Empty reports whether no chunk fit the budget.
func (p EvidencePacket) Empty() bool { return len(p.Items) == 0 }

// Render produces the exact context text sent to generation, one entry
// per citation: "[n] (filename)\ntext", separated by blank lines. The
// compression budget is accounted against this rendered form.
func (p EvidencePacket) Render() string {
	parts := make([]string, len(p.Items))
	for i, it := range p.Items {
		parts[i] = renderEntry(it.Index, it.Filename, it.Text)
	}
	return strings.Join(parts, evidenceSeparator)
}

func renderEntry(index int, filename, text string) string {
	return fmt.Sprintf("[%d] (%s)\n%s", index, filename, text)
}

// CompressContext greedily accepts ranked chunks in score order, assigning
// citation indices in acceptance order, until the budget is spent. A chunk
// whose rendered entry would overflow the budget is skipped whole, never
// truncated, so citation text is never garbled; later smaller chunks may
// still fit. Zero accepted chunks is a valid outcome the caller must
// surface as an empty-context condition, not a crash.
func CompressContext(ranked []rerank.RankedResult, lookup func(string) (domain.Chunk, bool), maxChars int) EvidencePacket {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	var packet EvidencePacket
	total := 0
	for _, rr := range ranked {
		chunk, ok := lookup(rr.ChunkID)
		if !ok {
			continue
		}
		next := len(packet.Items) + 1
		cost := len(renderEntry(next, chunk.Filename, chunk.Text))
		if total > 0 {
			cost += len(evidenceSeparator)
		}
		if total+cost > maxChars {
			continue
		}
		total += cost
		packet.Items = append(packet.Items, EvidenceItem{
			Index:    next,
			ChunkID:  chunk.ID,
			Text:     chunk.Text,
			Filename: chunk.Filename,
		})
	}
	return packet
}
