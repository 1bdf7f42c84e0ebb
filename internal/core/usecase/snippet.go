package usecase

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/jptamayo/juris-rag/internal/core/domain"
	"github.com/jptamayo/juris-rag/internal/core/ports"
)

const snippetMaxChars = 300

const snippetSystemPrompt = "You extract passages from Philippine legal texts. " +
	"Quote the 1-3 sentences from the provided excerpt most relevant to the " +
	"question, VERBATIM, with no commentary. If nothing in the excerpt is " +
	"relevant, reply exactly NOT_FOUND."

var (
	sentenceSplit  = regexp.MustCompile(`[.!?]+`)
	whitespaceRun  = regexp.MustCompile(`\s+`)
	punctuationRun = regexp.MustCompile(`^[\s[:punct:]]*$`)
)

// SnippetConfig tunes the optional model-assisted extraction path.
type SnippetConfig struct {
	UseModel  bool
	MaxChunks int
}

// SnippetExtractor produces a short citable excerpt for one candidate, or the
// sentinel when no reliable excerpt exists. Neither path can invent text: the
// heuristic path selects actual sentences and the model path is verified to
// quote the source verbatim.
type SnippetExtractor struct {
	generator ports.TextGenerator
	chunker   ports.Chunker
	cfg       SnippetConfig
	logger    *slog.Logger
}

func NewSnippetExtractor(generator ports.TextGenerator, chunker ports.Chunker, cfg SnippetConfig, logger *slog.Logger) *SnippetExtractor {
	if cfg.MaxChunks <= 0 {
		cfg.MaxChunks = 8
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SnippetExtractor{
		generator: generator,
		chunker:   chunker,
		cfg:       cfg,
		logger:    logger,
	}
}

// Extract returns a <=300 character excerpt of text relevant to query, or
// domain.UnknownPhrase. Callers must treat the sentinel as "omit this source".
func (e *SnippetExtractor) Extract(ctx context.Context, text, query string) string {
	if strings.TrimSpace(text) == "" {
		return domain.UnknownPhrase
	}
	if e.cfg.UseModel && e.generator != nil && e.chunker != nil {
		if snippet := e.extractWithModel(ctx, text, query); snippet != "" {
			return snippet
		}
	}
	return HeuristicSnippet(text, query)
}

// HeuristicSnippet is the always-available extraction path: pick the single
// sentence containing the most query keywords, sentinel when none scores.
func HeuristicSnippet(text, query string) string {
	keywords := queryWords(query, 3)
	if len(keywords) == 0 {
		return domain.UnknownPhrase
	}

	best := ""
	bestScore := 0
	for _, sentence := range sentenceSplit.Split(text, -1) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		lower := strings.ToLower(sentence)
		score := 0
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				score++
			}
		}
		if score > bestScore {
			best = sentence
			bestScore = score
		}
	}
	if bestScore == 0 {
		return domain.UnknownPhrase
	}
	return truncateSnippet(best)
}

func (e *SnippetExtractor) extractWithModel(ctx context.Context, text, query string) string {
	chunks := e.chunker.Split(text)
	if len(chunks) > e.cfg.MaxChunks {
		chunks = chunks[:e.cfg.MaxChunks]
	}

	for _, chunk := range chunks {
		prompt := "Question: " + query + "\n\nExcerpt:\n" + chunk
		raw, err := e.generator.Complete(ctx, snippetSystemPrompt, prompt, ports.GenerateOptions{
			Temperature: 0,
			MaxTokens:   160,
		})
		if err != nil {
			e.logger.Debug("snippet_model_unavailable", "error", err)
			return ""
		}
		passage := cleanModelPassage(raw)
		if passage == "" || isRefusal(passage) {
			continue
		}
		// Verbatim guarantee: the passage must actually occur in the chunk.
		if !containsNormalized(chunk, passage) {
			continue
		}
		return truncateSnippet(passage)
	}
	return ""
}

// cleanModelPassage strips code fences and wrapping quotes and collapses
// whitespace runs.
func cleanModelPassage(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.Trim(s, "\"'`")
	s = whitespaceRun.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	if punctuationRun.MatchString(s) {
		return ""
	}
	return s
}

func isRefusal(passage string) bool {
	lower := strings.ToLower(passage)
	for _, marker := range []string{
		"not_found",
		"no relevant",
		"not relevant",
		"cannot find",
		"does not contain",
	} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func containsNormalized(haystack, needle string) bool {
	normalize := func(s string) string {
		return whitespaceRun.ReplaceAllString(strings.ToLower(s), " ")
	}
	return strings.Contains(normalize(haystack), normalize(needle))
}

func truncateSnippet(s string) string {
	runes := []rune(s)
	if len(runes) <= snippetMaxChars {
		return s
	}
	return string(runes[:snippetMaxChars-3]) + "..."
}
