package orchestrate

import (
	"strings"

	"github.com/PathwiseAI/pathwise-engine/engine/domain"
)

// abbreviations expanded during query rewriting. Expansions never contain
// an abbreviation as a standalone token, which keeps RewriteQuery
// idempotent.
var abbreviations = map[string]string{
	"swe":   "software engineer",
	"ml":    "machine learning",
	"ds":    "data science",
	"pm":    "product manager",
	"hr":    "human resources",
	"ux":    "user experience",
	"yoe":   "years of experience",
	"wlb":   "work-life balance",
	"comp":  "compensation",
	"cert":  "certification",
	"certs": "certifications",
}

// RewriteQuery expands abbreviations and normalizes whitespace. Factual
// and comparison queries are otherwise left as-is; they are already
// specific enough for retrieval. Idempotent: rewriting a rewritten query
// changes nothing.
func RewriteQuery(query string, intent domain.Intent) string {
	words := strings.Fields(query)
	out := make([]string, 0, len(words))
	for _, w := range words {
		bare := strings.ToLower(strings.Trim(w, "?.,!;:'\""))
		if intent == domain.IntentComparison && bare == "vs" {
			out = append(out, "versus")
			continue
		}
		if exp, ok := abbreviations[bare]; ok {
			// Carry trailing punctuation over to the expansion.
			if tail := trailingPunct(w); tail != "" {
				exp += tail
			}
			out = append(out, exp)
			continue
		}
		out = append(out, w)
	}
	return strings.Join(out, " ")
}

func trailingPunct(w string) string {
	i := len(w)
	for i > 0 && strings.ContainsRune("?.,!;:'\"", rune(w[i-1])) {
		i--
	}
	return w[i:]
}
