package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-pipeline/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-pipeline/internal/core/domain"
	"github.com/custodia-labs/sercha-pipeline/internal/core/ports/driven"
)

// --- Mock implementations for search testing ---

// searchMockEngine implements driven.SearchEngine.
type searchMockEngine struct {
	hits []driven.SearchHit
	err  error
}

func (m *searchMockEngine) Search(_ context.Context, _ string, _ int) ([]driven.SearchHit, error) {
	return m.hits, m.err
}

// searchMockIndex implements driven.VectorIndex.
type searchMockIndex struct {
	hits []driven.VectorHit
	err  error
}

func (m *searchMockIndex) UpsertBatch(_ context.Context, _ []driven.VectorPoint) error { return nil }
func (m *searchMockIndex) Query(_ context.Context, _ []float32, _ int) ([]driven.VectorHit, error) {
	return m.hits, m.err
}
func (m *searchMockIndex) DeleteByDocument(_ context.Context, _ string) error { return nil }
func (m *searchMockIndex) Close() error                                       { return nil }

// searchMockEmbedder implements driven.EmbeddingService.
type searchMockEmbedder struct {
	err error
}

func (m *searchMockEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, domain.SparseVector, error) {
	if m.err != nil {
		return nil, domain.SparseVector{}, m.err
	}
	return []float32{0.1, 0.2, 0.3, 0.4}, domain.SparseVector{Indices: []uint32{1}, Values: []float32{0.5}}, nil
}

func (m *searchMockEmbedder) Dimensions() int { return 4 }
func (m *searchMockEmbedder) Close() error    { return nil }

// seedSearchable creates a completed document with one chunk per content.
func seedSearchable(t *testing.T, store *memory.DocumentStore, docID string, active bool, contents ...string) {
	t.Helper()
	ctx := context.Background()

	doc := &domain.Document{
		ID:          docID,
		Filename:    docID + ".md",
		Format:      domain.FormatMarkdown,
		ContentHash: "hash-" + docID,
		Status:      domain.StatusPending,
		IsActive:    active,
	}
	require.NoError(t, store.CreateDocument(ctx, doc))

	chunks := make([]domain.Chunk, len(contents))
	for i, content := range contents {
		chunks[i] = domain.Chunk{
			ID:         docID + "-chunk-" + string(rune('a'+i)),
			DocumentID: docID,
			Content:    content,
			ChunkIndex: i,
			SyncStatus: domain.SyncSynced,
		}
	}
	require.NoError(t, store.CompleteDocument(ctx, docID, "full document text", chunks))
}

func TestSearchKeywordMode(t *testing.T) {
	ctx := context.Background()
	store := memory.NewDocumentStore()
	seedSearchable(t, store, "doc-1", true, "the quick brown fox", "jumps over the lazy dog")

	engine := &searchMockEngine{hits: []driven.SearchHit{
		{ChunkID: "doc-1-chunk-a", Score: 2.5, Content: "the quick brown fox"},
		{ChunkID: "doc-1-chunk-b", Score: 1.0, Content: "jumps over the lazy dog"},
	}}
	svc := NewSearch(store, engine, nil, nil)

	results, err := svc.Search(ctx, "fox", domain.SearchOptions{Mode: domain.SearchModeKeyword})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "doc-1-chunk-a", results[0].Chunk.ID)
	assert.Greater(t, results[0].Score, results[1].Score)
	assert.Zero(t, results[0].VectorScore)
	assert.Positive(t, results[0].KeywordScore)
}

func TestSearchHybridFusesBothSides(t *testing.T) {
	ctx := context.Background()
	store := memory.NewDocumentStore()
	seedSearchable(t, store, "doc-1", true,
		"retrieval pipelines explained", "vector indexes in practice", "keyword ranking basics")

	engine := &searchMockEngine{hits: []driven.SearchHit{
		{ChunkID: "doc-1-chunk-a", Score: 3.0},
		{ChunkID: "doc-1-chunk-c", Score: 1.0},
	}}
	index := &searchMockIndex{hits: []driven.VectorHit{
		{ChunkID: "doc-1-chunk-a", Score: 0.9},
		{ChunkID: "doc-1-chunk-b", Score: 0.7},
	}}
	svc := NewSearch(store, engine, index, &searchMockEmbedder{})

	results, err := svc.Search(ctx, "retrieval", domain.SearchOptions{Mode: domain.SearchModeHybrid, Alpha: 0.5})
	require.NoError(t, err)
	require.Len(t, results, 3)

	// chunk-a appears in both ranked lists and must win.
	assert.Equal(t, "doc-1-chunk-a", results[0].Chunk.ID)
	assert.Positive(t, results[0].VectorScore)
	assert.Positive(t, results[0].KeywordScore)
}

func TestSearchHybridAlphaZeroRanksByKeyword(t *testing.T) {
	ctx := context.Background()
	store := memory.NewDocumentStore()
	seedSearchable(t, store, "doc-1", true, "shared between both sides", "keyword winner")

	engine := &searchMockEngine{hits: []driven.SearchHit{
		{ChunkID: "doc-1-chunk-b", Score: 4.0},
		{ChunkID: "doc-1-chunk-a", Score: 2.0},
	}}
	index := &searchMockIndex{hits: []driven.VectorHit{
		{ChunkID: "doc-1-chunk-a", Score: 0.99},
	}}
	svc := NewSearch(store, engine, index, &searchMockEmbedder{})

	// Alpha 0 means keyword order decides, even though chunk-a
	// dominates the vector side.
	results, err := svc.Search(ctx, "keyword", domain.SearchOptions{Mode: domain.SearchModeHybrid, Alpha: 0})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "doc-1-chunk-b", results[0].Chunk.ID)
	assert.Equal(t, "doc-1-chunk-a", results[1].Chunk.ID)
}

func TestSearchHybridDegradesWhenVectorSideFails(t *testing.T) {
	ctx := context.Background()
	store := memory.NewDocumentStore()
	seedSearchable(t, store, "doc-1", true, "only keyword results here")

	engine := &searchMockEngine{hits: []driven.SearchHit{
		{ChunkID: "doc-1-chunk-a", Score: 2.0},
	}}
	index := &searchMockIndex{err: errors.New("qdrant unreachable")}
	svc := NewSearch(store, engine, index, &searchMockEmbedder{})

	results, err := svc.Search(ctx, "keyword", domain.SearchOptions{Mode: domain.SearchModeHybrid})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc-1-chunk-a", results[0].Chunk.ID)
}

func TestSearchHybridDegradesToKeywordWithoutVectorServices(t *testing.T) {
	ctx := context.Background()
	store := memory.NewDocumentStore()
	seedSearchable(t, store, "doc-1", true, "degraded search content")

	engine := &searchMockEngine{hits: []driven.SearchHit{
		{ChunkID: "doc-1-chunk-a", Score: 1.5},
	}}
	svc := NewSearch(store, engine, nil, nil)

	results, err := svc.Search(ctx, "degraded", domain.SearchOptions{Mode: domain.SearchModeHybrid})
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestSearchSemanticMode(t *testing.T) {
	ctx := context.Background()
	store := memory.NewDocumentStore()
	seedSearchable(t, store, "doc-1", true, "semantic content one", "semantic content two")

	index := &searchMockIndex{hits: []driven.VectorHit{
		{ChunkID: "doc-1-chunk-b", Score: 0.95},
		{ChunkID: "doc-1-chunk-a", Score: 0.80},
	}}
	svc := NewSearch(store, &searchMockEngine{}, index, &searchMockEmbedder{})

	results, err := svc.Search(ctx, "semantic", domain.SearchOptions{Mode: domain.SearchModeSemantic})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "doc-1-chunk-b", results[0].Chunk.ID)
	assert.Zero(t, results[0].KeywordScore)
}

func TestSearchSkipsInactiveDocuments(t *testing.T) {
	ctx := context.Background()
	store := memory.NewDocumentStore()
	seedSearchable(t, store, "doc-1", true, "active document content")
	seedSearchable(t, store, "doc-2", false, "inactive document content")

	engine := &searchMockEngine{hits: []driven.SearchHit{
		{ChunkID: "doc-2-chunk-a", Score: 5.0},
		{ChunkID: "doc-1-chunk-a", Score: 1.0},
	}}
	svc := NewSearch(store, engine, nil, nil)

	results, err := svc.Search(ctx, "document", domain.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc-1", results[0].Document.ID)
}

func TestSearchSkipsStaleChunks(t *testing.T) {
	ctx := context.Background()
	store := memory.NewDocumentStore()
	seedSearchable(t, store, "doc-1", true, "surviving content")

	engine := &searchMockEngine{hits: []driven.SearchHit{
		{ChunkID: "deleted-chunk", Score: 5.0},
		{ChunkID: "doc-1-chunk-a", Score: 1.0},
	}}
	svc := NewSearch(store, engine, nil, nil)

	results, err := svc.Search(ctx, "surviving", domain.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc-1-chunk-a", results[0].Chunk.ID)
}

func TestSearchEmptyQuery(t *testing.T) {
	svc := NewSearch(memory.NewDocumentStore(), &searchMockEngine{}, nil, nil)

	results, err := svc.Search(context.Background(), "   ", domain.SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchTopKLimitsResults(t *testing.T) {
	ctx := context.Background()
	store := memory.NewDocumentStore()
	seedSearchable(t, store, "doc-1", true, "one", "two", "three")

	engine := &searchMockEngine{hits: []driven.SearchHit{
		{ChunkID: "doc-1-chunk-a", Score: 3.0},
		{ChunkID: "doc-1-chunk-b", Score: 2.0},
		{ChunkID: "doc-1-chunk-c", Score: 1.0},
	}}
	svc := NewSearch(store, engine, nil, nil)

	results, err := svc.Search(ctx, "one two three", domain.SearchOptions{TopK: 2})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSearchHighlights(t *testing.T) {
	highlights := generateHighlights("The fox runs. The dog sleeps. Nothing here.", "fox dog")
	require.Len(t, highlights, 2)
	assert.Contains(t, highlights[0], "fox")
	assert.Contains(t, highlights[1], "dog")
}
