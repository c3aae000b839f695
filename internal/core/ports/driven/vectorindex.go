package driven

import (
	"context"

	"github.com/custodia-labs/sercha-pipeline/internal/core/domain"
)

// VectorPoint is one chunk prepared for upsert into the external index.
type VectorPoint struct {
	ID           string
	DocumentID   string
	ChunkIndex   int
	Content      string
	Heading      string
	QualityScore float64
	Dense        []float32
	Sparse       domain.SparseVector
}

// VectorHit is a similarity search result from the external index.
type VectorHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// Score is the similarity score, higher is better.
	Score float64

	// Content is the indexed chunk text carried in the point payload.
	Content string
}

// VectorIndex replicates chunk vectors into an external index and
// serves similarity queries over them. Backed by Qdrant.
type VectorIndex interface {
	// UpsertBatch inserts or replaces a batch of points atomically from
	// the caller's perspective (a single batch call).
	UpsertBatch(ctx context.Context, points []VectorPoint) error

	// Query finds the k most similar chunks to the dense query vector.
	Query(ctx context.Context, dense []float32, k int) ([]VectorHit, error)

	// DeleteByDocument removes all points belonging to a document.
	DeleteByDocument(ctx context.Context, documentID string) error

	// Close releases resources.
	Close() error
}
