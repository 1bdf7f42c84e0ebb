package domain

import (
	"fmt"
	"strings"
	"time"
)

// UnknownPhrase marks "no reliable content". It is distinct from an empty
// string: a candidate whose snippet equals this sentinel must never be
// surfaced as a citable source.
const UnknownPhrase = "Insufficient information"

// SourceTokenPrefix is the stable wire-format prefix for citation tokens.
const SourceTokenPrefix = "identifier:"

// CascadeStage names the lookup level that produced a result set.
type CascadeStage string

const (
	StageExactTitle   CascadeStage = "exact_title"
	StageNormalizedID CascadeStage = "normalized_id"
	StageTypeEvidence CascadeStage = "type_evidence"
	StageVectorSearch CascadeStage = "vector_search"
	StageEmptyQuery   CascadeStage = "empty_query"
	StageNoEmbedding  CascadeStage = "no_embedding"
)

// Candidate is an in-flight, unranked document match for one query.
// Distance is nil for exact-title hits (definitionally distance zero).
// Text is nil when the body could not be loaded from storage.
type Candidate struct {
	UUID         string     `json:"uuid"`
	Filename     string     `json:"filename"`
	RelativePath string     `json:"relative_path"`
	Title        string     `json:"title,omitempty"`
	Date         *time.Time `json:"date,omitempty"`
	Distance     *float64   `json:"distance,omitempty"`
	Text         *string    `json:"-"`
}

// ScoredMatch is a Candidate with blended relevance scoring applied.
type ScoredMatch struct {
	Candidate
	SemanticScore  float64 `json:"semantic_score"`
	KeywordScore   float64 `json:"keyword_score"`
	RelevanceScore float64 `json:"relevance_score"`
}

// SourceRef is one surfaced, citable result.
type SourceRef struct {
	UUID           string     `json:"uuid"`
	Filename       string     `json:"filename"`
	Title          string     `json:"title,omitempty"`
	Date           *time.Time `json:"date,omitempty"`
	Snippet        string     `json:"snippet"`
	Token          string     `json:"token"`
	RelevanceScore float64    `json:"relevance_score"`
}

// RetrievalResult is the assembled answer to one search request.
type RetrievalResult struct {
	Query   string       `json:"query"`
	Stage   CascadeStage `json:"stage"`
	Sources []SourceRef  `json:"sources"`
}

// QueryEvent is published after each answered search request. QueryHash
// identifies repeated queries without putting user text on the wire.
type QueryEvent struct {
	RequestID   string       `json:"request_id"`
	QueryHash   string       `json:"query_hash"`
	Stage       CascadeStage `json:"stage"`
	Limit       int          `json:"limit"`
	SourceCount int          `json:"source_count"`
	DurationMS  float64      `json:"duration_ms"`
}

// SourceToken builds the canonical citation reference for a document.
func SourceToken(uuid, filename string) string {
	return SourceTokenPrefix + uuid + "/" + filename
}

// ParseSourceToken resolves a citation token back to its uuid and filename.
func ParseSourceToken(token string) (uuid, filename string, err error) {
	rest, ok := strings.CutPrefix(token, SourceTokenPrefix)
	if !ok {
		return "", "", WrapError(ErrInvalidInput, "parse source token", fmt.Errorf("missing %q prefix", SourceTokenPrefix))
	}
	uuid, filename, ok = strings.Cut(rest, "/")
	if !ok || uuid == "" || filename == "" {
		return "", "", WrapError(ErrInvalidInput, "parse source token", fmt.Errorf("malformed token %q", token))
	}
	return uuid, filename, nil
}
