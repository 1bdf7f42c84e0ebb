package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jptamayo/juris-rag/internal/config"
	"github.com/jptamayo/juris-rag/internal/core/ports"
	"github.com/jptamayo/juris-rag/internal/core/usecase"
	"github.com/jptamayo/juris-rag/internal/infrastructure/chunking"
	"github.com/jptamayo/juris-rag/internal/infrastructure/extractor/plaintext"
	"github.com/jptamayo/juris-rag/internal/infrastructure/llm/ollama"
	"github.com/jptamayo/juris-rag/internal/infrastructure/queue/nats"
	"github.com/jptamayo/juris-rag/internal/infrastructure/ratelimit"
	"github.com/jptamayo/juris-rag/internal/infrastructure/repository/postgres"
	"github.com/jptamayo/juris-rag/internal/infrastructure/resilience"
	"github.com/jptamayo/juris-rag/internal/infrastructure/storage/localfs"
	"github.com/jptamayo/juris-rag/internal/observability/metrics"
)

type App struct {
	Config config.Config

	Retriever ports.Retriever
	Documents ports.DocumentReader
	Loader    ports.BodyLoader
	Limiter   ports.RequestLimiter
	Metrics   *metrics.RetrievalMetrics

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	referenceDate, err := cfg.ParsedReferenceDate()
	if err != nil {
		return nil, fmt.Errorf("parse reference date: %w", err)
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db, cfg.EmbeddingDimension)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.CorpusPath)
	if err != nil {
		return nil, fmt.Errorf("init corpus storage: %w", err)
	}
	loader := plaintext.NewExtractor(storage)

	publisher, err := nats.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		return nil, fmt.Errorf("init event publisher: %w", err)
	}

	guard := resilience.NewGuard(resilience.DefaultPolicy())
	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, guard)
	embedder := ollama.NewEmbedder(ollamaClient)
	generator := ollama.NewGenerator(ollamaClient)

	var classifier ports.TextGenerator
	if cfg.TitleClassifierEnabled {
		classifier = generator
	}
	resolver := usecase.NewTitleResolver(repo, classifier, usecase.ResolverConfig{
		ReferenceDate: referenceDate,
		UseClassifier: cfg.TitleClassifierEnabled,
	}, logger)

	engine := usecase.NewSearchEngine(embedder, repo, loader, resolver, usecase.SearchConfig{
		ReferenceDate:   referenceDate,
		AllowDownsample: cfg.AllowDownsample,
		LoadConcurrency: cfg.LoadConcurrency,
	}, logger)

	chunker := chunking.NewSplitter(cfg.SnippetChunkSize, cfg.SnippetChunkOverlap)
	snippets := usecase.NewSnippetExtractor(generator, chunker, usecase.SnippetConfig{
		UseModel:  cfg.SnippetUseModel,
		MaxChunks: cfg.SnippetMaxChunks,
	}, logger)

	m := metrics.NewRetrievalMetrics("juris-rag")
	retriever := usecase.NewRetrievalService(engine, snippets, publisher, m, logger)

	fallback := ratelimit.NewProcessFallback(cfg.RateFallbackRPS, cfg.RateFallbackBurst)
	limiter := ratelimit.NewDailyLimiter(db, cfg.DailyRequestLimit, fallback, logger)
	schemaCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := limiter.EnsureSchema(schemaCtx); err != nil {
		return nil, fmt.Errorf("ensure rate limit schema: %w", err)
	}

	return &App{
		Config: cfg,

		Retriever: retriever,
		Documents: repo,
		Loader:    loader,
		Limiter:   limiter,
		Metrics:   m,

		closeFn: func() {
			publisher.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
