package usecase

import (
	"math"
	"sort"
	"strings"

	"github.com/jptamayo/juris-rag/internal/core/domain"
)

const (
	semanticWeight = 0.7
	keywordWeight  = 0.3
	// Matches at or below this relevance are dropped as low confidence.
	minRelevance = 0.2
)

// ScoreMatches blends vector-distance similarity with lexical keyword overlap
// into one relevance score, filters low-confidence matches and returns the top
// maxResults in descending relevance order. Pure: no I/O, no randomness.
//
// Exact-title candidates carry no distance and score as distance zero. A
// candidate with no loaded text keeps a zero keyword score; the snippet stage
// excludes it later if its semantic score alone carried it through.
func ScoreMatches(matches []domain.Candidate, query string, maxResults int) []domain.ScoredMatch {
	words := queryWords(query, 2)

	out := make([]domain.ScoredMatch, 0, len(matches))
	for _, m := range matches {
		keyword := keywordOverlap(words, m.Text)

		distance := 0.0
		if m.Distance != nil {
			distance = *m.Distance
		}
		semantic := math.Exp(-distance)

		relevance := semanticWeight*semantic + keywordWeight*keyword
		if relevance <= minRelevance {
			continue
		}
		out = append(out, domain.ScoredMatch{
			Candidate:      m,
			SemanticScore:  semantic,
			KeywordScore:   keyword,
			RelevanceScore: relevance,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RelevanceScore != out[j].RelevanceScore {
			return out[i].RelevanceScore > out[j].RelevanceScore
		}
		return out[i].UUID < out[j].UUID
	})

	if maxResults > 0 && len(out) > maxResults {
		out = out[:maxResults]
	}
	return out
}

// keywordOverlap is the fraction of query words appearing as substrings of the
// candidate text, in [0,1].
func keywordOverlap(words []string, text *string) float64 {
	if len(words) == 0 || text == nil || *text == "" {
		return 0
	}
	lower := strings.ToLower(*text)
	hits := 0
	for _, w := range words {
		if strings.Contains(lower, w) {
			hits++
		}
	}
	return float64(hits) / float64(len(words))
}

// queryWords lowercases and keeps words longer than minLen runes.
func queryWords(query string, minLen int) []string {
	fields := strings.Fields(strings.ToLower(query))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) > minLen {
			out = append(out, f)
		}
	}
	return out
}
