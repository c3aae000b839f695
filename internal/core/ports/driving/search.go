package driving

import (
	"context"

	"github.com/custodia-labs/sercha-pipeline/internal/core/domain"
)

// SearchService provides retrieval capabilities to external actors.
type SearchService interface {
	// Search performs retrieval across all completed, active documents.
	Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error)
}
