package ports

import (
	"context"

	"github.com/jptamayo/juris-rag/internal/core/domain"
)

// Retriever is the inbound contract for the retrieval pipeline: query in,
// ordered deduplicated cited sources out. A query with zero reliable sources
// yields an empty source list, not an error.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int, searchByTitle bool) (*domain.RetrievalResult, error)
}

// DocumentReader is the inbound read model for document metadata.
type DocumentReader interface {
	GetByUUID(ctx context.Context, uuid string) (*domain.Document, error)
}
