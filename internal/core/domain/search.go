package domain

// SearchMode selects the retrieval strategy.
type SearchMode string

// Supported search modes.
const (
	// SearchModeKeyword is BM25 full-text search only.
	SearchModeKeyword SearchMode = "keyword"

	// SearchModeSemantic is pure vector similarity search.
	SearchModeSemantic SearchMode = "semantic"

	// SearchModeHybrid combines keyword and vector results with RRF.
	SearchModeHybrid SearchMode = "hybrid"
)

// Description returns a human-readable mode description.
func (m SearchMode) Description() string {
	switch m {
	case SearchModeKeyword:
		return "keyword (BM25)"
	case SearchModeSemantic:
		return "semantic (vector similarity)"
	case SearchModeHybrid:
		return "hybrid (keyword + vector, RRF)"
	default:
		return string(m)
	}
}

// SearchOptions configures a search query.
type SearchOptions struct {
	// TopK is the maximum number of results.
	TopK int

	// Mode selects the retrieval strategy.
	Mode SearchMode

	// Alpha weights vector vs keyword contributions in hybrid mode.
	// 1.0 is pure vector ranking, 0.0 pure keyword ranking.
	Alpha float64
}

// SearchResult is a single retrieval hit.
type SearchResult struct {
	// Document is the matched document.
	Document Document

	// Chunk is the specific chunk that matched.
	Chunk Chunk

	// Score is the fused relevance score.
	Score float64

	// VectorScore and KeywordScore are the raw per-side RRF
	// contributions; zero when the chunk was absent from that side.
	VectorScore  float64
	KeywordScore float64

	// Highlights contains snippets with matched terms.
	Highlights []string
}
