package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jptamayo/juris-rag/internal/core/domain"
	"github.com/jptamayo/juris-rag/internal/core/ports"
)

// RetrievalMetrics is the slice of observability the service reports.
// Implemented by the prometheus adapter; nil-safe no-op when absent.
type RetrievalMetrics interface {
	ObserveRetrieval(stage domain.CascadeStage, sources int, duration time.Duration)
	IncSentinelDrop()
}

// RetrievalService is the top-level pipeline: search, score, snippet, assemble.
type RetrievalService struct {
	engine    *SearchEngine
	snippets  *SnippetExtractor
	publisher ports.EventPublisher
	metrics   RetrievalMetrics
	logger    *slog.Logger

	snippetConcurrency int
}

func NewRetrievalService(
	engine *SearchEngine,
	snippets *SnippetExtractor,
	publisher ports.EventPublisher,
	metrics RetrievalMetrics,
	logger *slog.Logger,
) *RetrievalService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetrievalService{
		engine:             engine,
		snippets:           snippets,
		publisher:          publisher,
		metrics:            metrics,
		logger:             logger,
		snippetConcurrency: defaultLoadParallel,
	}
}

// Retrieve answers one query end to end. Zero reliable sources is a valid
// outcome reported as an empty source list, never as an error; only
// infrastructure failures propagate.
func (s *RetrievalService) Retrieve(ctx context.Context, query string, k int, searchByTitle bool) (*domain.RetrievalResult, error) {
	start := time.Now()
	if k <= 0 {
		k = defaultSearchLimit
	}

	candidates, stage, err := s.engine.SearchNearest(ctx, query, k, searchByTitle)
	if err != nil {
		return nil, err
	}

	scored := ScoreMatches(candidates, query, k)
	snippets := s.extractSnippets(ctx, scored, query)
	sources := AssembleSources(scored, snippets)

	if s.metrics != nil {
		s.metrics.ObserveRetrieval(stage, len(sources), time.Since(start))
		for i := range scored {
			if snippets[i] == domain.UnknownPhrase {
				s.metrics.IncSentinelDrop()
			}
		}
	}

	result := &domain.RetrievalResult{
		Query:   query,
		Stage:   stage,
		Sources: sources,
	}
	s.publishEvent(ctx, result, k, time.Since(start))
	return result, nil
}

func (s *RetrievalService) extractSnippets(ctx context.Context, scored []domain.ScoredMatch, query string) []string {
	out := make([]string, len(scored))
	if len(scored) == 0 {
		return out
	}

	sem := make(chan struct{}, s.snippetConcurrency)
	var wg sync.WaitGroup
	for i := range scored {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if scored[i].Text == nil {
				out[i] = domain.UnknownPhrase
				return
			}
			out[i] = s.snippets.Extract(ctx, *scored[i].Text, query)
		}(i)
	}
	wg.Wait()
	return out
}

func (s *RetrievalService) publishEvent(ctx context.Context, result *domain.RetrievalResult, k int, elapsed time.Duration) {
	if s.publisher == nil {
		return
	}
	event := domain.QueryEvent{
		RequestID:   uuid.NewString(),
		QueryHash:   hashQuery(result.Query),
		Stage:       result.Stage,
		Limit:       k,
		SourceCount: len(result.Sources),
		DurationMS:  float64(elapsed.Microseconds()) / 1000.0,
	}
	if err := s.publisher.PublishQueryAnswered(ctx, event); err != nil {
		s.logger.Warn("query_event_publish_failed", "error", err)
	}
}

func hashQuery(query string) string {
	sum := sha256.Sum256([]byte(query))
	return hex.EncodeToString(sum[:8])
}

// AssembleSources merges scored matches and their snippets into the final
// ordered list: uuid-deduplicated, ranking preserved, one source token per
// surfaced candidate. A sentinel snippet drops the whole candidate — the
// assembler never emits a citation it cannot back with real text.
func AssembleSources(scored []domain.ScoredMatch, snippets []string) []domain.SourceRef {
	out := make([]domain.SourceRef, 0, len(scored))
	seen := make(map[string]struct{}, len(scored))
	for i, match := range scored {
		if _, dup := seen[match.UUID]; dup {
			continue
		}
		snippet := domain.UnknownPhrase
		if i < len(snippets) {
			snippet = snippets[i]
		}
		if snippet == domain.UnknownPhrase {
			continue
		}
		seen[match.UUID] = struct{}{}
		out = append(out, domain.SourceRef{
			UUID:           match.UUID,
			Filename:       match.Filename,
			Title:          match.Title,
			Date:           match.Date,
			Snippet:        snippet,
			Token:          domain.SourceToken(match.UUID, match.Filename),
			RelevanceScore: match.RelevanceScore,
		})
	}
	return out
}
