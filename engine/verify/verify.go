// Package verify is the post-generation self-check: given the answer text
// and the exact evidence packet that was sent to generation, it flags
// claims the evidence does not support. It must never see more than that
// packet; that restriction is what lets it catch fabricated claims. It
// only annotates the answer, it never modifies it.
package verify

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/PathwiseAI/pathwise-engine/engine/domain"
	"github.com/PathwiseAI/pathwise-engine/engine/lexical"
	"github.com/PathwiseAI/pathwise-engine/engine/orchestrate"
)

var citationRe = regexp.MustCompile(`\[(\d+)\]`)

// Options tunes the support heuristics. Thresholds are policy defaults,
// not fixed constants.
type Options struct {
	// SupportThreshold is the minimum fraction of a sentence's content
	// terms that must appear in the cited chunk.
	SupportThreshold float64
	// MinFactualWords is the sentence length from which an uncited
	// sentence looks factual enough to flag.
	MinFactualWords int
	// TrivialAnswerLen is the answer length under which an empty-context
	// answer is considered a harmless refusal rather than hallucination.
	TrivialAnswerLen int
}

// DefaultOptions returns the standard checking policy.
func DefaultOptions() Options {
	return Options{SupportThreshold: 0.3, MinFactualWords: 8, TrivialAnswerLen: 160}
}

// Checker runs the keyword-overlap self-check.
type Checker struct {
	opts Options
}

// New creates a Checker.
func New(opts Options) *Checker {
	d := DefaultOptions()
	if opts.SupportThreshold <= 0 {
		opts.SupportThreshold = d.SupportThreshold
	}
	if opts.MinFactualWords <= 0 {
		opts.MinFactualWords = d.MinFactualWords
	}
	if opts.TrivialAnswerLen <= 0 {
		opts.TrivialAnswerLen = d.TrivialAnswerLen
	}
	return &Checker{opts: opts}
}

// Check inspects each sentence of the answer against the evidence packet.
// Cited sentences whose cited chunk shows too little term overlap produce
// unsupported_claim; factual-looking sentences with no citation produce
// missing_citation; a non-trivial answer over an empty packet produces
// empty_context. The error return exists for heuristic backends that can
// fail; this keyword checker always succeeds.
func (c *Checker) Check(answer string, packet orchestrate.EvidencePacket) ([]domain.Issue, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil, nil
	}

	if packet.Empty() {
		if len(answer) >= c.opts.TrivialAnswerLen {
			return []domain.Issue{{
				Kind:   domain.IssueEmptyContext,
				Detail: "answer is substantial but no evidence was supplied to generation",
			}}, nil
		}
		return nil, nil
	}

	chunksByIndex := make(map[int]orchestrate.EvidenceItem, len(packet.Items))
	for _, it := range packet.Items {
		chunksByIndex[it.Index] = it
	}

	var issues []domain.Issue
	sentences := splitSentences(answer)
	flagged := 0
	checked := 0

	for _, sent := range sentences {
		cites := citationIndices(sent)
		if len(cites) == 0 {
			if looksFactual(sent, c.opts.MinFactualWords) {
				checked++
				flagged++
				issues = append(issues, domain.Issue{
					Kind:   domain.IssueMissingCitation,
					Detail: "no citation: " + clip(sent),
				})
			}
			continue
		}

		checked++
		supported := false
		for _, n := range cites {
			item, ok := chunksByIndex[n]
			if !ok {
				issues = append(issues, domain.Issue{
					Kind:   domain.IssueUnsupportedClaim,
					Detail: "cites [" + strconv.Itoa(n) + "] which is not in the evidence: " + clip(sent),
				})
				continue
			}
			if overlap(sent, item.Text) >= c.opts.SupportThreshold {
				supported = true
			}
		}
		if !supported {
			flagged++
			if allCitesValid(cites, chunksByIndex) {
				issues = append(issues, domain.Issue{
					Kind:   domain.IssueUnsupportedClaim,
					Detail: "cited evidence does not support: " + clip(sent),
				})
			}
		}
	}

	if checked > 0 && flagged*2 >= checked && flagged > 1 {
		issues = append(issues, domain.Issue{
			Kind:   domain.IssueLowConfidence,
			Detail: "most checked sentences lack evidentiary support",
		})
	}
	return issues, nil
}

func allCitesValid(cites []int, byIndex map[int]orchestrate.EvidenceItem) bool {
	for _, n := range cites {
		if _, ok := byIndex[n]; !ok {
			return false
		}
	}
	return true
}

// citationIndices extracts citation marker numbers like [2] from text.
func citationIndices(text string) []int {
	matches := citationRe.FindAllStringSubmatch(text, -1)
	out := make([]int, 0, len(matches))
	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}

// overlap returns the fraction of the sentence's content terms found in
// the chunk text. Citation markers are stripped before tokenizing.
func overlap(sentence, chunkText string) float64 {
	clean := citationRe.ReplaceAllString(sentence, " ")
	terms := lexical.Tokenize(clean)
	if len(terms) == 0 {
		return 1 // nothing to support
	}
	chunkTerms := make(map[string]bool)
	for _, t := range lexical.Tokenize(chunkText) {
		chunkTerms[t] = true
	}
	matched := 0
	for _, t := range terms {
		if chunkTerms[t] {
			matched++
		}
	}
	return float64(matched) / float64(len(terms))
}

// looksFactual decides whether an uncited sentence carries checkable
// content: long enough, or containing digits, and not hedged first-person
// framing ("I cannot answer...").
func looksFactual(sentence string, minWords int) bool {
	trimmed := strings.TrimSpace(sentence)
	lower := strings.ToLower(trimmed)
	for _, hedge := range []string{"i cannot", "i can't", "i don't know", "the context does not", "not enough information", "missing"} {
		if strings.Contains(lower, hedge) {
			return false
		}
	}
	if strings.ContainsFunc(trimmed, unicode.IsDigit) {
		return true
	}
	return len(strings.Fields(trimmed)) >= minWords
}

// splitSentences splits on sentence-final punctuation and newlines.
func splitSentences(text string) []string {
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

func clip(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 80 {
		return s[:77] + "..."
	}
	return s
}
