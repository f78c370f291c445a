// Package orchestrate turns a raw query and a reranked shortlist into a
// bounded evidence packet and a possibly-rewritten query: intent detection,
// query rewriting, and budget-bound context compression.
package orchestrate

import (
	"strings"

	"github.com/PathwiseAI/pathwise-engine/engine/domain"
)

var advicePhrases = []string{
	"should i", "advice", "advise", "recommend", "suggest",
	"is it worth", "what would you do", "help me decide",
}

var comparisonPhrases = []string{
	" vs ", " versus ", "compare", "difference between", "better than",
	"which is better", "pros and cons",
}

var factualStarters = []string{
	"what", "when", "where", "who", "how much", "how many", "how long", "define", "list",
}

// DetectIntent classifies the query into a closed intent set using phrase
// heuristics. Unknown is a valid outcome and never blocks the pipeline;
// intent only selects the rewrite strategy.
func DetectIntent(query string) domain.Intent {
	q := " " + strings.ToLower(strings.TrimSpace(query)) + " "

	for _, p := range comparisonPhrases {
		if strings.Contains(q, p) {
			return domain.IntentComparison
		}
	}
	for _, p := range advicePhrases {
		if strings.Contains(q, p) {
			return domain.IntentAdvice
		}
	}
	trimmed := strings.TrimSpace(q)
	for _, s := range factualStarters {
		if strings.HasPrefix(trimmed, s) {
			return domain.IntentFactual
		}
	}
	return domain.IntentUnknown
}
