package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/jptamayo/juris-rag/internal/core/domain"
	"github.com/jptamayo/juris-rag/internal/core/jsonextract"
	"github.com/jptamayo/juris-rag/internal/core/ports"
)

// Philippine legal instrument abbreviations and their canonical full names.
// Keys are normalized (lowercase, no dots, no spaces).
var instrumentNames = map[string]string{
	"ra":  "Republic Act",
	"gr":  "G.R.",
	"pd":  "Presidential Decree",
	"ca":  "Commonwealth Act",
	"bp":  "Batas Pambansa",
	"eo":  "Executive Order",
	"ao":  "Administrative Order",
	"am":  "A.M.",
	"mc":  "Memorandum Circular",
	"ac":  "Administrative Circular",
	"blg": "Batas Pambansa Blg.",
}

// Deterministic title-lookup patterns, anchored on word boundaries. Two-letter
// abbreviations additionally require a trailing numeric id so that stray
// english words ("am", "ca") do not get classified as identifiers. This table
// is authoritative: the model-backed classifier may only upgrade a "false".
var instrumentPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bG\.?\s?R\.?\s*(?:No|Nos)?\.?\s*\d`),
	regexp.MustCompile(`(?i)\bR\.?\s?A\.?\s*(?:No)?\.?\s*\d`),
	regexp.MustCompile(`(?i)\bC\.?\s?A\.?\s*(?:No)?\.?\s*\d`),
	regexp.MustCompile(`(?i)\bP\.?\s?D\.?\s*(?:No)?\.?\s*\d`),
	regexp.MustCompile(`(?i)\bA\.?\s?O\.?\s*(?:No)?\.?\s*\d`),
	regexp.MustCompile(`(?i)\bB\.?\s?P\.?\s*(?:Blg|No)?\.?\s*\d`),
	regexp.MustCompile(`(?i)\bM\.?\s?C\.?\s*(?:No)?\.?\s*\d`),
	regexp.MustCompile(`(?i)\bA\.?\s?M\.?\s*(?:No)?\.?\s*[\d]`),
	regexp.MustCompile(`(?i)\bE\.?\s?O\.?\s*(?:No)?\.?\s*\d`),
	regexp.MustCompile(`(?i)\brepublic\s+act\b`),
	regexp.MustCompile(`(?i)\bpresidential\s+decree\b`),
	regexp.MustCompile(`(?i)\bcommonwealth\s+act\b`),
	regexp.MustCompile(`(?i)\bexecutive\s+order\b`),
	regexp.MustCompile(`(?i)\badministrative\s+(?:order|matter|circular)\b`),
	regexp.MustCompile(`(?i)\bbatas\s+pambansa\b`),
	regexp.MustCompile(`(?i)\bmemorandum\s+circular\b`),
}

// identifierShape parses "<letters/dots/spaces> <optional No./Number/#> <id>".
var identifierShape = regexp.MustCompile(`(?i)^([a-z.\s]+?)[\s.]*(?:no\.?|number|#)?\s*([0-9][0-9a-z-]*)$`)

const classifierSystemPrompt = "You classify legal research queries. " +
	"Answer with a JSON object {\"title_lookup\": true|false} and nothing else. " +
	"A query is a title lookup when it names a specific legal instrument or " +
	"case identifier rather than asking a descriptive question."

// ResolverConfig carries the domain policy the resolver needs. Passed in at
// construction; the resolver never reads the process environment.
type ResolverConfig struct {
	// ReferenceDate orders multi-row cascade hits by date proximity. Zero
	// disables date ordering.
	ReferenceDate time.Time
	// UseClassifier enables the model-backed recall booster for paraphrased
	// identifiers. The deterministic pattern table remains authoritative.
	UseClassifier bool
}

// TitleResolver decides whether a query is a law/case identifier lookup and
// runs the exact-match cascade before any vector search happens.
type TitleResolver struct {
	store      ports.DocumentStore
	classifier ports.TextGenerator
	cfg        ResolverConfig
	logger     *slog.Logger
}

func NewTitleResolver(store ports.DocumentStore, classifier ports.TextGenerator, cfg ResolverConfig, logger *slog.Logger) *TitleResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &TitleResolver{
		store:      store,
		classifier: classifier,
		cfg:        cfg,
		logger:     logger,
	}
}

// ResolveOutcome is the cascade's answer for one query. When Documents is
// empty, TitleFilter carries the substring constraint for the vector fallback.
type ResolveOutcome struct {
	Documents   []domain.Document
	Stage       domain.CascadeStage
	TitleFilter string
}

// IsTitleLookup reports whether the query names a legal instrument. A comma
// always means a descriptive query. The classifier, when enabled, runs only
// after the pattern table said "false" and can only flip the answer to "true";
// classifier failure is ignored.
func (r *TitleResolver) IsTitleLookup(ctx context.Context, query string) bool {
	if strings.Contains(query, ",") {
		return false
	}
	for _, pattern := range instrumentPatterns {
		if pattern.MatchString(query) {
			return true
		}
	}
	if r.cfg.UseClassifier && r.classifier != nil {
		if lookup, ok := r.classifyWithModel(ctx, query); ok {
			return lookup
		}
	}
	return false
}

func (r *TitleResolver) classifyWithModel(ctx context.Context, query string) (bool, bool) {
	raw, err := r.classifier.Complete(ctx, classifierSystemPrompt, query, ports.GenerateOptions{
		Temperature: 0,
		MaxTokens:   32,
	})
	if err != nil {
		r.logger.Debug("title_classifier_unavailable", "error", err)
		return false, false
	}
	obj, ok := jsonextract.Object(raw)
	if !ok {
		return false, false
	}
	lookup, ok := obj["title_lookup"].(bool)
	if !ok {
		return false, false
	}
	return lookup, true
}

// ExpandVariants generates plausible canonical rewrites of an identifier-like
// query. The original trimmed query is always included; order is insignificant
// because every cascade stage tries each variant independently.
func ExpandVariants(query string) []string {
	trimmed := strings.TrimSpace(query)
	variants := []string{}
	seen := map[string]struct{}{}
	add := func(v string) {
		v = strings.TrimSpace(v)
		if v == "" {
			return
		}
		if _, ok := seen[v]; ok {
			return
		}
		seen[v] = struct{}{}
		variants = append(variants, v)
	}

	add(trimmed)

	prefix, id, ok := splitIdentifier(trimmed)
	if !ok {
		return variants
	}

	full, known := instrumentNames[normalizeIdentifier(prefix)]
	if !known {
		full = strings.TrimSpace(prefix)
	}
	if full != "" {
		add(full + " No. " + id)
		add(full + " No " + id)
		add(full + " " + id)
	}
	return variants
}

func splitIdentifier(query string) (prefix, id string, ok bool) {
	m := identifierShape.FindStringSubmatch(query)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// normalizeIdentifier strips dots and whitespace and lowercases, recovering
// matches across punctuation drift ("A.M. No. 01-2-04-SC" vs "AM No 01204SC").
func normalizeIdentifier(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if r == '.' || r == ' ' || r == '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Resolve runs the lookup cascade: exact title, normalized identifier,
// type+evidence, then the substring-filtered vector fallback. The first stage
// returning rows short-circuits the rest. Store errors propagate; an empty
// stage is a continue signal, not an error.
func (r *TitleResolver) Resolve(ctx context.Context, query string) (*ResolveOutcome, error) {
	variants := ExpandVariants(query)

	docs, err := r.store.FindByExactTitle(ctx, variants)
	if err != nil {
		return nil, fmt.Errorf("exact title lookup: %w", err)
	}
	if len(docs) > 0 {
		return r.outcome(docs, domain.StageExactTitle), nil
	}

	normalized := make([]string, 0, len(variants))
	for _, v := range variants {
		normalized = append(normalized, normalizeIdentifier(v))
	}
	docs, err = r.store.FindByNormalizedIdentifier(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("normalized identifier lookup: %w", err)
	}
	if len(docs) > 0 {
		return r.outcome(docs, domain.StageNormalizedID), nil
	}

	if prefix, id, ok := splitIdentifier(strings.TrimSpace(query)); ok {
		instrumentType := strings.TrimSpace(prefix)
		if full, known := instrumentNames[normalizeIdentifier(prefix)]; known {
			instrumentType = full
		}
		docs, err = r.store.FindByTypeEvidence(ctx, instrumentType, id)
		if err != nil {
			return nil, fmt.Errorf("type evidence lookup: %w", err)
		}
		if len(docs) > 0 {
			return r.outcome(docs, domain.StageTypeEvidence), nil
		}
	}

	return &ResolveOutcome{
		Stage:       domain.StageVectorSearch,
		TitleFilter: bestVariant(variants),
	}, nil
}

func (r *TitleResolver) outcome(docs []domain.Document, stage domain.CascadeStage) *ResolveOutcome {
	if !r.cfg.ReferenceDate.IsZero() && len(docs) > 1 {
		sortByDateProximity(docs, r.cfg.ReferenceDate)
	}
	return &ResolveOutcome{Documents: docs, Stage: stage}
}

func sortByDateProximity(docs []domain.Document, reference time.Time) {
	sort.SliceStable(docs, func(i, j int) bool {
		return dateDistance(docs[i].Date, reference) < dateDistance(docs[j].Date, reference)
	})
}

func dateDistance(d *time.Time, reference time.Time) float64 {
	if d == nil {
		return math.Inf(1)
	}
	return math.Abs(reference.Sub(*d).Hours())
}

// bestVariant picks the single variant used as the vector-search title filter:
// prefer variants carrying a full instrument name, then variants containing
// "No.", then the longest remaining one.
func bestVariant(variants []string) string {
	if len(variants) == 0 {
		return ""
	}
	byFullName := []string{}
	for _, v := range variants {
		lower := strings.ToLower(v)
		for _, name := range instrumentNames {
			if strings.Contains(lower, strings.ToLower(name)) {
				byFullName = append(byFullName, v)
				break
			}
		}
	}
	pool := byFullName
	if len(pool) == 0 {
		pool = variants
	}
	withNo := []string{}
	for _, v := range pool {
		if strings.Contains(v, "No.") {
			withNo = append(withNo, v)
		}
	}
	if len(withNo) > 0 {
		pool = withNo
	}
	best := pool[0]
	for _, v := range pool[1:] {
		if len(v) > len(best) {
			best = v
		}
	}
	return best
}
