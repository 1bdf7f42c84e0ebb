package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jptamayo/juris-rag/internal/core/domain"
	"github.com/jptamayo/juris-rag/internal/core/ports"
)

const (
	defaultSearchLimit  = 5
	defaultLoadParallel = 6
)

// SearchConfig carries the engine's domain policy, passed at construction.
type SearchConfig struct {
	// ReferenceDate makes date proximity the primary ordering key of vector
	// results, with distance as tie-break. Zero keeps pure distance order.
	ReferenceDate time.Time
	// AllowDownsample permits block-averaging oversized query vectors down to
	// the store dimension. When false, a mismatch fails with
	// domain.ErrDimensionMismatch.
	AllowDownsample bool
	// LoadConcurrency bounds parallel body loads per request.
	LoadConcurrency int
}

// SearchEngine turns a free-text query into raw candidate matches, preferring
// the exact-match cascade over vector search whenever the query looks like a
// legal identifier.
type SearchEngine struct {
	embedder ports.Embedder
	store    ports.DocumentStore
	loader   ports.BodyLoader
	resolver *TitleResolver
	cfg      SearchConfig
	logger   *slog.Logger
}

func NewSearchEngine(
	embedder ports.Embedder,
	store ports.DocumentStore,
	loader ports.BodyLoader,
	resolver *TitleResolver,
	cfg SearchConfig,
	logger *slog.Logger,
) *SearchEngine {
	if cfg.LoadConcurrency <= 0 {
		cfg.LoadConcurrency = defaultLoadParallel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchEngine{
		embedder: embedder,
		store:    store,
		loader:   loader,
		resolver: resolver,
		cfg:      cfg,
		logger:   logger,
	}
}

// SearchNearest returns up to k candidates for the query. An empty query
// yields an empty list with no embedding call. The embedding is computed
// lazily: an exact cascade hit never touches the embedding capability.
func (e *SearchEngine) SearchNearest(ctx context.Context, query string, k int, searchByTitle bool) ([]domain.Candidate, domain.CascadeStage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.StageEmptyQuery, nil
	}
	if k <= 0 {
		k = defaultSearchLimit
	}

	titleFilter := ""
	if searchByTitle || e.resolver.IsTitleLookup(ctx, query) {
		outcome, err := e.resolver.Resolve(ctx, query)
		if err != nil {
			return nil, "", err
		}
		if len(outcome.Documents) > 0 {
			candidates := candidatesFromDocuments(outcome.Documents, k)
			e.loadBodies(ctx, candidates)
			return candidates, outcome.Stage, nil
		}
		titleFilter = outcome.TitleFilter
	}

	vector, err := e.embedder.EmbedQuery(ctx, query)
	if err != nil || len(vector) == 0 {
		// No embedding available is a valid "no matches" outcome for a search
		// system, not an exception.
		if err != nil {
			e.logger.Warn("embedding_unavailable", "error", err)
		}
		return nil, domain.StageNoEmbedding, nil
	}

	vector, err = EnsureDimension(vector, e.store.DeclaredDimension(), e.cfg.AllowDownsample)
	if err != nil {
		return nil, "", err
	}

	candidates, err := e.store.SearchNearest(ctx, vector, k, titleFilter)
	if err != nil {
		return nil, "", fmt.Errorf("vector search: %w", err)
	}

	if !e.cfg.ReferenceDate.IsZero() {
		resortByDateProximity(candidates, e.cfg.ReferenceDate)
	}

	e.loadBodies(ctx, candidates)
	return candidates, domain.StageVectorSearch, nil
}

func candidatesFromDocuments(docs []domain.Document, k int) []domain.Candidate {
	if k > 0 && len(docs) > k {
		docs = docs[:k]
	}
	out := make([]domain.Candidate, 0, len(docs))
	for _, d := range docs {
		out = append(out, domain.Candidate{
			UUID:         d.UUID,
			Filename:     d.Filename,
			RelativePath: d.RelativePath,
			Title:        d.Title,
			Date:         d.Date,
			// Distance stays nil: exact matches are definitionally distance
			// zero and carry no vector metric.
		})
	}
	return out
}

// resortByDateProximity puts legal currency first: ascending absolute date
// distance from the reference, vector distance only as tie-break.
func resortByDateProximity(candidates []domain.Candidate, reference time.Time) {
	sort.SliceStable(candidates, func(i, j int) bool {
		di := dateDistance(candidates[i].Date, reference)
		dj := dateDistance(candidates[j].Date, reference)
		if di != dj {
			return di < dj
		}
		return vectorDistance(candidates[i]) < vectorDistance(candidates[j])
	})
}

func vectorDistance(c domain.Candidate) float64 {
	if c.Distance == nil {
		return 0
	}
	return *c.Distance
}

// loadBodies fills candidate text with bounded parallelism. Loads are
// independent and side-effect free, so a failed or abandoned load simply
// leaves Text nil and downstream stages exclude the candidate.
func (e *SearchEngine) loadBodies(ctx context.Context, candidates []domain.Candidate) {
	if e.loader == nil || len(candidates) == 0 {
		return
	}

	sem := make(chan struct{}, e.cfg.LoadConcurrency)
	var wg sync.WaitGroup
	for i := range candidates {
		wg.Add(1)
		go func(c *domain.Candidate) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			body, err := e.loader.LoadBody(ctx, c.RelativePath, c.Filename)
			if err != nil {
				e.logger.Debug("candidate_body_unavailable",
					"uuid", c.UUID,
					"filename", c.Filename,
					"error", err,
				)
				return
			}
			c.Text = &body
		}(&candidates[i])
	}
	wg.Wait()
}
