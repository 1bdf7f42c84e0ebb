package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jptamayo/juris-rag/internal/core/domain"
	"github.com/jptamayo/juris-rag/internal/core/ports"
)

type embedderFake struct {
	vector []float32
	err    error
	calls  int
}

func (f *embedderFake) EmbedQuery(context.Context, string) ([]float32, error) {
	f.calls++
	return f.vector, f.err
}

type loaderFake struct {
	bodies map[string]string
	err    error
}

func (f *loaderFake) LoadBody(_ context.Context, _ string, filename string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	body, ok := f.bodies[filename]
	if !ok {
		return "", domain.WrapError(domain.ErrDocumentNotFound, "load body", errors.New("missing"))
	}
	return body, nil
}

func newTestEngine(store *storeFake, embedder *embedderFake, loader *loaderFake, cfg SearchConfig) *SearchEngine {
	resolver := NewTitleResolver(store, nil, ResolverConfig{}, nil)
	var bodyLoader ports.BodyLoader
	if loader != nil {
		bodyLoader = loader
	}
	return NewSearchEngine(embedder, store, bodyLoader, resolver, cfg, nil)
}

func TestSearchNearestEmptyQuery(t *testing.T) {
	embedder := &embedderFake{vector: []float32{1}}
	engine := newTestEngine(&storeFake{}, embedder, nil, SearchConfig{})

	candidates, stage, err := engine.SearchNearest(context.Background(), "   ", 5, false)
	if err != nil {
		t.Fatalf("SearchNearest() error = %v", err)
	}
	if stage != domain.StageEmptyQuery {
		t.Fatalf("expected empty query stage, got %s", stage)
	}
	if len(candidates) != 0 {
		t.Fatalf("expected no candidates, got %d", len(candidates))
	}
	if embedder.calls != 0 {
		t.Fatalf("embedder called for empty query")
	}
}

func TestSearchNearestExactHitSkipsEmbedding(t *testing.T) {
	embedder := &embedderFake{vector: []float32{1, 2}}
	store := &storeFake{exactTitle: []domain.Document{
		{UUID: "u1", Filename: "ra-7394.txt", Title: "Republic Act No. 7394"},
	}}
	loader := &loaderFake{bodies: map[string]string{"ra-7394.txt": "consumer protection"}}
	engine := newTestEngine(store, embedder, loader, SearchConfig{})

	candidates, stage, err := engine.SearchNearest(context.Background(), "RA 7394", 5, false)
	if err != nil {
		t.Fatalf("SearchNearest() error = %v", err)
	}
	if stage != domain.StageExactTitle {
		t.Fatalf("expected exact title stage, got %s", stage)
	}
	if embedder.calls != 0 {
		t.Fatalf("embedder called despite exact cascade hit")
	}
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	if candidates[0].Distance != nil {
		t.Fatalf("exact hit must carry nil distance")
	}
	if candidates[0].Text == nil || *candidates[0].Text != "consumer protection" {
		t.Fatalf("expected loaded body, got %v", candidates[0].Text)
	}
}

func TestSearchNearestEmbeddingUnavailable(t *testing.T) {
	engine := newTestEngine(&storeFake{}, &embedderFake{err: errors.New("ollama down")}, nil, SearchConfig{})

	candidates, stage, err := engine.SearchNearest(context.Background(), "descriptive question", 5, false)
	if err != nil {
		t.Fatalf("expected graceful degradation, got error %v", err)
	}
	if stage != domain.StageNoEmbedding {
		t.Fatalf("expected no embedding stage, got %s", stage)
	}
	if len(candidates) != 0 {
		t.Fatalf("expected empty result, got %d", len(candidates))
	}
}

func TestSearchNearestEmptyEmbeddingDegrades(t *testing.T) {
	engine := newTestEngine(&storeFake{}, &embedderFake{}, nil, SearchConfig{})

	_, stage, err := engine.SearchNearest(context.Background(), "descriptive question", 5, false)
	if err != nil {
		t.Fatalf("SearchNearest() error = %v", err)
	}
	if stage != domain.StageNoEmbedding {
		t.Fatalf("expected no embedding stage, got %s", stage)
	}
}

func TestSearchNearestDimensionMismatch(t *testing.T) {
	store := &storeFake{dimension: 2}
	engine := newTestEngine(store, &embedderFake{vector: []float32{1, 2, 3, 4}}, nil, SearchConfig{AllowDownsample: false})

	_, _, err := engine.SearchNearest(context.Background(), "descriptive question", 5, false)
	if !domain.IsKind(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected dimension mismatch, got %v", err)
	}
}

func TestSearchNearestVectorFallbackCarriesTitleFilter(t *testing.T) {
	store := &storeFake{dimension: 2}
	engine := newTestEngine(store, &embedderFake{vector: []float32{1, 2}}, nil, SearchConfig{})

	_, stage, err := engine.SearchNearest(context.Background(), "RA 1061", 5, false)
	if err != nil {
		t.Fatalf("SearchNearest() error = %v", err)
	}
	if stage != domain.StageVectorSearch {
		t.Fatalf("expected vector search stage, got %s", stage)
	}
	if store.searchCalls != 1 {
		t.Fatalf("expected one vector search, got %d", store.searchCalls)
	}
	if store.searchFilter != "Republic Act No. 1061" {
		t.Fatalf("expected canonical title filter, got %q", store.searchFilter)
	}
}

func TestSearchNearestDateProximityReorders(t *testing.T) {
	reference := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	ancient := time.Date(1936, 1, 1, 0, 0, 0, 0, time.UTC)

	store := &storeFake{dimension: 2, searchResult: []domain.Candidate{
		{UUID: "closest-vector", Distance: floatPtr(0.1), Date: &ancient},
		{UUID: "most-current", Distance: floatPtr(0.4), Date: &recent},
		{UUID: "undated", Distance: floatPtr(0.2)},
	}}
	engine := newTestEngine(store, &embedderFake{vector: []float32{1, 2}}, nil, SearchConfig{ReferenceDate: reference})

	candidates, _, err := engine.SearchNearest(context.Background(), "obligations and contracts", 5, false)
	if err != nil {
		t.Fatalf("SearchNearest() error = %v", err)
	}
	want := []string{"most-current", "closest-vector", "undated"}
	for i, uuid := range want {
		if candidates[i].UUID != uuid {
			t.Fatalf("position %d: expected %s, got %s", i, uuid, candidates[i].UUID)
		}
	}
}

func TestSearchNearestBodyLoadFailureLeavesTextNil(t *testing.T) {
	store := &storeFake{dimension: 2, searchResult: []domain.Candidate{
		{UUID: "a", Filename: "present.txt", Distance: floatPtr(0.1)},
		{UUID: "b", Filename: "missing.txt", Distance: floatPtr(0.2)},
	}}
	loader := &loaderFake{bodies: map[string]string{"present.txt": "body text"}}
	engine := newTestEngine(store, &embedderFake{vector: []float32{1, 2}}, loader, SearchConfig{})

	candidates, _, err := engine.SearchNearest(context.Background(), "descriptive question", 5, false)
	if err != nil {
		t.Fatalf("SearchNearest() error = %v", err)
	}
	if candidates[0].Text == nil {
		t.Fatalf("expected body for present file")
	}
	if candidates[1].Text != nil {
		t.Fatalf("expected nil text for missing file, got %q", *candidates[1].Text)
	}
}

func TestSearchNearestForcedTitleSearch(t *testing.T) {
	store := &storeFake{exactTitle: []domain.Document{{UUID: "u1", Title: "Water Code of the Philippines"}}}
	engine := newTestEngine(store, &embedderFake{}, nil, SearchConfig{})

	// Not identifier-shaped, but the caller forces the title cascade.
	candidates, stage, err := engine.SearchNearest(context.Background(), "Water Code of the Philippines", 5, true)
	if err != nil {
		t.Fatalf("SearchNearest() error = %v", err)
	}
	if stage != domain.StageExactTitle {
		t.Fatalf("expected exact title stage, got %s", stage)
	}
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
}
