package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/custodia-labs/sercha-pipeline/internal/core/domain"
	"github.com/custodia-labs/sercha-pipeline/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-pipeline/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-pipeline/internal/fusion"
	"github.com/custodia-labs/sercha-pipeline/internal/logger"
)

// Ensure Search implements the interface.
var _ driving.SearchService = (*Search)(nil)

// DefaultTopK is the result count when the caller does not set one.
const DefaultTopK = 10

// DefaultAlpha balances vector and keyword contributions in hybrid mode.
const DefaultAlpha = 0.5

// Search provides keyword, semantic and hybrid retrieval over
// completed documents.
type Search struct {
	docStore     driven.DocumentStore
	searchEngine driven.SearchEngine
	vectorIndex  driven.VectorIndex
	embedder     driven.EmbeddingService
}

// NewSearch creates a search service. The vectorIndex and embedder
// parameters are optional (can be nil); without them searches degrade
// to keyword mode.
func NewSearch(
	docStore driven.DocumentStore,
	searchEngine driven.SearchEngine,
	vectorIndex driven.VectorIndex,
	embedder driven.EmbeddingService,
) *Search {
	return &Search{
		docStore:     docStore,
		searchEngine: searchEngine,
		vectorIndex:  vectorIndex,
		embedder:     embedder,
	}
}

// Search performs retrieval across all completed, active documents.
func (s *Search) Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	logger.Section("Search Execution")
	logger.Debug("Query: %q", query)

	query = strings.TrimSpace(query)
	if query == "" {
		logger.Debug("Empty query, returning no results")
		return []domain.SearchResult{}, nil
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	// Alpha 0 is meaningful in hybrid mode (pure keyword ranking), so
	// only out-of-range values fall back to the default.
	alpha := opts.Alpha
	if opts.Mode != domain.SearchModeHybrid || alpha < 0 || alpha > 1 {
		alpha = DefaultAlpha
	}

	// Fetch more than requested so hits hydrating to deleted or
	// inactive documents do not shrink the final page.
	internalLimit := topK * 2

	mode := s.effectiveMode(opts.Mode)
	logger.Info("Effective search mode: %s", mode.Description())

	var fused []fusion.Result
	var err error

	switch mode {
	case domain.SearchModeKeyword:
		fused, err = s.keywordOnly(ctx, query, internalLimit)
	case domain.SearchModeSemantic:
		fused, err = s.semanticOnly(ctx, query, internalLimit)
	case domain.SearchModeHybrid:
		fused, err = s.hybrid(ctx, query, internalLimit, alpha)
	default:
		fused, err = s.keywordOnly(ctx, query, internalLimit)
	}
	if err != nil {
		logger.Warn("Search failed: %v", err)
		return nil, fmt.Errorf("search: %w", err)
	}

	logger.Debug("Fused results: %d chunks", len(fused))

	results, err := s.hydrateResults(ctx, fused, query)
	if err != nil {
		return nil, fmt.Errorf("hydrate results: %w", err)
	}

	if len(results) > topK {
		results = results[:topK]
	}
	logger.Info("Final results: %d", len(results))
	return results, nil
}

// effectiveMode degrades the requested mode to what the configured
// services can actually serve.
func (s *Search) effectiveMode(requested domain.SearchMode) domain.SearchMode {
	canDoVector := s.vectorIndex != nil && s.embedder != nil

	switch requested {
	case domain.SearchModeSemantic:
		if canDoVector {
			return domain.SearchModeSemantic
		}
		return domain.SearchModeKeyword
	case domain.SearchModeKeyword:
		return domain.SearchModeKeyword
	default:
		if canDoVector {
			return domain.SearchModeHybrid
		}
		return domain.SearchModeKeyword
	}
}

// keywordSearch runs the BM25 engine and converts hits to fusion
// candidates in rank order.
func (s *Search) keywordSearch(ctx context.Context, query string, limit int) ([]fusion.Candidate, error) {
	if s.searchEngine == nil {
		return nil, domain.ErrSearchUnavailable
	}

	hits, err := s.searchEngine.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	logger.Debug("Keyword search: %d hits", len(hits))

	candidates := make([]fusion.Candidate, len(hits))
	for i, hit := range hits {
		candidates[i] = fusion.Candidate{ID: hit.ChunkID, Content: hit.Content}
	}
	return candidates, nil
}

// vectorSearch embeds the query and runs the external similarity index.
func (s *Search) vectorSearch(ctx context.Context, query string, limit int) ([]fusion.Candidate, error) {
	if s.vectorIndex == nil {
		return nil, domain.ErrVectorIndexUnavailable
	}
	if s.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	dense, _, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	logger.Debug("Query embedding: %d dimensions", len(dense))

	hits, err := s.vectorIndex.Query(ctx, dense, limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	logger.Debug("Vector search: %d hits", len(hits))

	candidates := make([]fusion.Candidate, len(hits))
	for i, hit := range hits {
		candidates[i] = fusion.Candidate{ID: hit.ChunkID, Content: hit.Content}
	}
	return candidates, nil
}

// keywordOnly scores keyword hits through the fusion path with alpha 0
// so downstream handling is uniform.
func (s *Search) keywordOnly(ctx context.Context, query string, limit int) ([]fusion.Result, error) {
	keyword, err := s.keywordSearch(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return fusion.Fuse(nil, keyword, 0), nil
}

// semanticOnly scores vector hits through the fusion path with alpha 1.
func (s *Search) semanticOnly(ctx context.Context, query string, limit int) ([]fusion.Result, error) {
	vector, err := s.vectorSearch(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return fusion.Fuse(vector, nil, 1), nil
}

// hybrid runs both searches in parallel and fuses the ranked lists.
// If one side fails the other still serves results.
func (s *Search) hybrid(ctx context.Context, query string, limit int, alpha float64) ([]fusion.Result, error) {
	var keyword, vector []fusion.Candidate
	var keywordErr, vectorErr error

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		keyword, keywordErr = s.keywordSearch(ctx, query, limit)
	}()
	go func() {
		defer wg.Done()
		vector, vectorErr = s.vectorSearch(ctx, query, limit)
	}()
	wg.Wait()

	if keywordErr != nil && vectorErr != nil {
		return nil, fmt.Errorf("hybrid search: keyword=%w, vector=%w", keywordErr, vectorErr)
	}
	if vectorErr != nil {
		logger.Warn("Hybrid search: vector side failed, keyword results only: %v", vectorErr)
		return fusion.Fuse(nil, keyword, 0), nil
	}
	if keywordErr != nil {
		logger.Warn("Hybrid search: keyword side failed, vector results only: %v", keywordErr)
		return fusion.Fuse(vector, nil, 1), nil
	}

	logger.Debug("Hybrid search: fusing %d vector + %d keyword results (alpha=%.2f)",
		len(vector), len(keyword), alpha)
	return fusion.Fuse(vector, keyword, alpha), nil
}

// hydrateResults loads chunks and parent documents for fused hits,
// dropping hits whose chunk or document is gone or inactive.
func (s *Search) hydrateResults(ctx context.Context, fused []fusion.Result, query string) ([]domain.SearchResult, error) {
	results := make([]domain.SearchResult, 0, len(fused))

	for _, fr := range fused {
		chunk, err := s.docStore.GetChunk(ctx, fr.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				// Stale index entry, skip it.
				continue
			}
			return nil, fmt.Errorf("get chunk %s: %w", fr.ID, err)
		}

		doc, err := s.docStore.GetDocument(ctx, chunk.DocumentID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("get document %s: %w", chunk.DocumentID, err)
		}
		if !doc.IsActive || doc.Status != domain.StatusCompleted {
			continue
		}

		results = append(results, domain.SearchResult{
			Document:     *doc,
			Chunk:        *chunk,
			Score:        fr.Score,
			VectorScore:  fr.VectorScore,
			KeywordScore: fr.KeywordScore,
			Highlights:   generateHighlights(chunk.Content, query),
		})
	}

	return results, nil
}

// generateHighlights creates up to three snippets containing query terms.
func generateHighlights(content, query string) []string {
	queryTerms := strings.Fields(strings.ToLower(query))
	if len(queryTerms) == 0 {
		return nil
	}

	var highlights []string
	for _, sentence := range splitSentences(content) {
		sentenceLower := strings.ToLower(sentence)
		for _, term := range queryTerms {
			if strings.Contains(sentenceLower, term) {
				if len(sentence) > 200 {
					sentence = sentence[:200] + "..."
				}
				highlights = append(highlights, sentence)
				break
			}
		}
		if len(highlights) >= 3 {
			break
		}
	}
	return highlights
}

// splitSentences splits content on common terminators.
func splitSentences(content string) []string {
	var sentences []string
	var current strings.Builder

	for _, r := range content {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
