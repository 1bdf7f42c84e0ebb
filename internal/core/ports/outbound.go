package ports

import (
	"context"
	"io"

	"github.com/jptamayo/juris-rag/internal/core/domain"
)

// Embedder converts free text to a fixed-length vector. A (nil, nil) return
// means the capability produced no embedding; callers degrade to an empty
// result set rather than failing the request.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// GenerateOptions tune a single completion call.
type GenerateOptions struct {
	Temperature float64
	MaxTokens   int
}

// TextGenerator is the opaque completion capability. It backs only the
// optional snippet-extraction and title-classifier paths; both have
// deterministic fallbacks that never depend on it.
type TextGenerator interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, opts GenerateOptions) (string, error)
}

// DocumentStore serves document metadata, title lookups and vector-distance
// ordered search over the persisted embeddings.
type DocumentStore interface {
	GetByUUID(ctx context.Context, uuid string) (*domain.Document, error)
	// FindByExactTitle matches any variant against title/short-title verbatim.
	FindByExactTitle(ctx context.Context, variants []string) ([]domain.Document, error)
	// FindByNormalizedIdentifier compares after stripping dots and whitespace,
	// case-insensitively, on both sides.
	FindByNormalizedIdentifier(ctx context.Context, variants []string) ([]domain.Document, error)
	// FindByTypeEvidence matches instrument type and trailing identifier
	// independently against category/title/filename.
	FindByTypeEvidence(ctx context.Context, instrumentType, evidence string) ([]domain.Document, error)
	// DeclaredDimension is the dimensionality every stored vector shares.
	DeclaredDimension() int
	// SearchNearest orders candidates by ascending vector distance, optionally
	// pre-filtered by a case-insensitive title substring.
	SearchNearest(ctx context.Context, queryVector []float32, k int, titleFilter string) ([]domain.Candidate, error)
}

// ObjectStorage reads source documents from the corpus.
type ObjectStorage interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// BodyLoader loads a document body as plain text. A not-found condition is a
// tolerated per-candidate outcome, not a request failure.
type BodyLoader interface {
	LoadBody(ctx context.Context, relativePath, filename string) (string, error)
}

// Chunker splits text into scannable chunks for the model-assisted paths.
type Chunker interface {
	Split(text string) []string
}

// EventPublisher emits retrieval telemetry; publish failures must never fail
// the request they describe.
type EventPublisher interface {
	PublishQueryAnswered(ctx context.Context, event domain.QueryEvent) error
}

// RequestLimiter enforces the per-client daily request budget.
type RequestLimiter interface {
	Allow(ctx context.Context, clientKey string) (bool, error)
}
