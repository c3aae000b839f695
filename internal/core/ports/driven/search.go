package driven

import "context"

// SearchHit represents a keyword search result from the engine.
type SearchHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// Score is the relevance score (BM25), higher is better.
	Score float64

	// Content is the matched chunk text.
	Content string
}

// SearchEngine provides full-text keyword search over chunk content.
// Backed by the SQLite FTS5 index kept alongside the primary store.
type SearchEngine interface {
	// Search performs a keyword search and returns matching chunks with
	// scores, best match first. Chunks of inactive documents are excluded.
	Search(ctx context.Context, query string, limit int) ([]SearchHit, error)
}
