package driven

import (
	"context"

	"github.com/custodia-labs/sercha-pipeline/internal/core/domain"
)

// EmbeddingService generates query-time embeddings. Chunk embeddings
// are produced by the conversion worker and arrive via the callback;
// this service only embeds search queries.
//
// This is an optional service - when nil, vector/semantic search is
// disabled and searches degrade to keyword mode.
type EmbeddingService interface {
	// EmbedQuery generates the hybrid embedding for a query string.
	EmbedQuery(ctx context.Context, text string) ([]float32, domain.SparseVector, error)

	// Dimensions returns the dense vector size (e.g. 384). This must
	// match the VectorIndex configuration.
	Dimensions() int

	// Close releases resources.
	Close() error
}
