package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jptamayo/juris-rag/internal/core/domain"
)

type publisherFake struct {
	events []domain.QueryEvent
	err    error
}

func (f *publisherFake) PublishQueryAnswered(_ context.Context, event domain.QueryEvent) error {
	f.events = append(f.events, event)
	return f.err
}

type metricsFake struct {
	stage         domain.CascadeStage
	sources       int
	sentinelDrops int
}

func (f *metricsFake) ObserveRetrieval(stage domain.CascadeStage, sources int, _ time.Duration) {
	f.stage = stage
	f.sources = sources
}

func (f *metricsFake) IncSentinelDrop() { f.sentinelDrops++ }

func newTestService(store *storeFake, embedder *embedderFake, loader *loaderFake, publisher *publisherFake, m *metricsFake) *RetrievalService {
	engine := newTestEngine(store, embedder, loader, SearchConfig{})
	snippets := NewSnippetExtractor(nil, nil, SnippetConfig{}, nil)
	var observer RetrievalMetrics
	if m != nil {
		observer = m
	}
	return NewRetrievalService(engine, snippets, publisher, observer, nil)
}

func TestRetrieveEndToEnd(t *testing.T) {
	store := &storeFake{dimension: 2, searchResult: []domain.Candidate{
		{UUID: "u1", Filename: "consumer.txt", Title: "Consumer Act", Distance: floatPtr(0.1)},
	}}
	loader := &loaderFake{bodies: map[string]string{
		"consumer.txt": "The consumer act regulates warranties and product liability claims.",
	}}
	publisher := &publisherFake{}
	m := &metricsFake{}
	svc := newTestService(store, &embedderFake{vector: []float32{1, 2}}, loader, publisher, m)

	result, err := svc.Retrieve(context.Background(), "consumer warranties liability", 5, false)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if result.Stage != domain.StageVectorSearch {
		t.Fatalf("expected vector stage, got %s", result.Stage)
	}
	if len(result.Sources) != 1 {
		t.Fatalf("expected 1 source, got %d", len(result.Sources))
	}

	src := result.Sources[0]
	if src.Token != "identifier:u1/consumer.txt" {
		t.Fatalf("unexpected token %q", src.Token)
	}
	if src.Snippet == domain.UnknownPhrase || src.Snippet == "" {
		t.Fatalf("expected real snippet, got %q", src.Snippet)
	}
	if len([]rune(src.Snippet)) > 300 {
		t.Fatalf("snippet too long: %d runes", len([]rune(src.Snippet)))
	}

	if len(publisher.events) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(publisher.events))
	}
	event := publisher.events[0]
	if event.SourceCount != 1 || event.Stage != domain.StageVectorSearch || event.RequestID == "" || event.QueryHash == "" {
		t.Fatalf("unexpected event %+v", event)
	}
	if m.sources != 1 || m.stage != domain.StageVectorSearch {
		t.Fatalf("metrics not observed: %+v", m)
	}
}

func TestRetrieveUnloadableBodyYieldsNoSources(t *testing.T) {
	store := &storeFake{dimension: 2, searchResult: []domain.Candidate{
		{UUID: "u1", Filename: "missing.txt", Distance: floatPtr(0.1)},
	}}
	m := &metricsFake{}
	svc := newTestService(store, &embedderFake{vector: []float32{1, 2}}, &loaderFake{}, &publisherFake{}, m)

	result, err := svc.Retrieve(context.Background(), "some descriptive query", 5, false)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(result.Sources) != 0 {
		t.Fatalf("expected no sources for unloadable body, got %d", len(result.Sources))
	}
	if m.sentinelDrops != 1 {
		t.Fatalf("expected 1 sentinel drop, got %d", m.sentinelDrops)
	}
}

func TestRetrievePublishFailureIsNotFatal(t *testing.T) {
	store := &storeFake{}
	publisher := &publisherFake{err: context.DeadlineExceeded}
	svc := newTestService(store, &embedderFake{}, nil, publisher, nil)

	if _, err := svc.Retrieve(context.Background(), "anything", 5, false); err != nil {
		t.Fatalf("publish failure surfaced as request failure: %v", err)
	}
}

func TestAssembleSourcesDeduplicates(t *testing.T) {
	scored := []domain.ScoredMatch{
		{Candidate: domain.Candidate{UUID: "u1", Filename: "a.txt"}, RelevanceScore: 0.9},
		{Candidate: domain.Candidate{UUID: "u1", Filename: "a.txt"}, RelevanceScore: 0.8},
		{Candidate: domain.Candidate{UUID: "u2", Filename: "b.txt"}, RelevanceScore: 0.7},
	}
	snippets := []string{"first snippet", "dup snippet", "second snippet"}

	sources := AssembleSources(scored, snippets)
	if len(sources) != 2 {
		t.Fatalf("expected 2 deduplicated sources, got %d", len(sources))
	}
	if sources[0].UUID != "u1" || sources[1].UUID != "u2" {
		t.Fatalf("ranking order not preserved: %+v", sources)
	}
	if sources[0].Snippet != "first snippet" {
		t.Fatalf("expected highest-ranked snippet kept, got %q", sources[0].Snippet)
	}
}

func TestAssembleSourcesDropsSentinelSnippets(t *testing.T) {
	scored := []domain.ScoredMatch{
		{Candidate: domain.Candidate{UUID: "u1", Filename: "a.txt"}, RelevanceScore: 0.9},
		{Candidate: domain.Candidate{UUID: "u2", Filename: "b.txt"}, RelevanceScore: 0.8},
	}
	snippets := []string{domain.UnknownPhrase, "usable snippet"}

	sources := AssembleSources(scored, snippets)
	if len(sources) != 1 {
		t.Fatalf("expected 1 source, got %d", len(sources))
	}
	if sources[0].UUID != "u2" {
		t.Fatalf("expected the sourced candidate, got %s", sources[0].UUID)
	}
}

func TestAssembleSourcesAllSentinel(t *testing.T) {
	scored := []domain.ScoredMatch{
		{Candidate: domain.Candidate{UUID: "u1", Filename: "a.txt"}},
	}
	sources := AssembleSources(scored, []string{domain.UnknownPhrase})
	if len(sources) != 0 {
		t.Fatalf("expected empty list when every snippet is the sentinel, got %d", len(sources))
	}
}

func TestAssembleSourcesTokenFormat(t *testing.T) {
	scored := []domain.ScoredMatch{
		{Candidate: domain.Candidate{UUID: "abc-123", Filename: "gr-227635.txt"}},
	}
	sources := AssembleSources(scored, []string{"snippet"})
	if !strings.HasPrefix(sources[0].Token, domain.SourceTokenPrefix) {
		t.Fatalf("token missing prefix: %q", sources[0].Token)
	}
	uuid, filename, err := domain.ParseSourceToken(sources[0].Token)
	if err != nil {
		t.Fatalf("ParseSourceToken() error = %v", err)
	}
	if uuid != "abc-123" || filename != "gr-227635.txt" {
		t.Fatalf("token round trip mismatch: %s %s", uuid, filename)
	}
}
