// Package qdrant is a minimal REST client replicating chunk vectors
// into a Qdrant collection with named dense and sparse vectors.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/custodia-labs/sercha-pipeline/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Vector names inside the collection.
const (
	denseVectorName  = "dense"
	sparseVectorName = "sparse"
)

// Config holds the Qdrant connection settings.
type Config struct {
	URL        string
	APIKey     string
	Collection string
	Dimensions int
	Timeout    time.Duration
}

// Index is a Qdrant-backed vector index. It assumes cosine distance
// for the dense vector and creates the collection if missing.
type Index struct {
	config Config
	client *http.Client
}

// NewIndex creates a Qdrant client and ensures the collection exists.
func NewIndex(ctx context.Context, config Config) (*Index, error) {
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}
	idx := &Index{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
	if err := idx.ensureCollection(ctx); err != nil {
		return nil, fmt.Errorf("ensuring collection %s: %w", config.Collection, err)
	}
	return idx, nil
}

// ensureCollection creates the collection if it does not exist.
// Qdrant returns 200 for an existing collection with the same schema.
func (x *Index) ensureCollection(ctx context.Context) error {
	body := map[string]any{
		"vectors": map[string]any{
			denseVectorName: map[string]any{
				"size":     x.config.Dimensions,
				"distance": "Cosine",
			},
		},
		"sparse_vectors": map[string]any{
			sparseVectorName: map[string]any{},
		},
	}
	return x.putJSON(ctx, fmt.Sprintf("%s/collections/%s", x.config.URL, x.config.Collection), body, nil)
}

// UpsertBatch inserts or replaces a batch of points.
func (x *Index) UpsertBatch(ctx context.Context, points []driven.VectorPoint) error {
	if len(points) == 0 {
		return nil
	}

	list := make([]map[string]any, 0, len(points))
	for _, p := range points {
		list = append(list, map[string]any{
			"id": p.ID,
			"vector": map[string]any{
				denseVectorName: p.Dense,
				sparseVectorName: map[string]any{
					"indices": p.Sparse.Indices,
					"values":  p.Sparse.Values,
				},
			},
			"payload": map[string]any{
				"document_id":   p.DocumentID,
				"chunk_index":   p.ChunkIndex,
				"content":       p.Content,
				"heading":       p.Heading,
				"quality_score": p.QualityScore,
			},
		})
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", x.config.URL, x.config.Collection)
	return x.putJSON(ctx, url, map[string]any{"points": list}, nil)
}

// Query finds the k most similar chunks to the dense query vector.
func (x *Index) Query(ctx context.Context, dense []float32, k int) ([]driven.VectorHit, error) {
	if k <= 0 {
		k = 10
	}
	req := map[string]any{
		"vector": map[string]any{
			"name":   denseVectorName,
			"vector": dense,
		},
		"limit":        k,
		"with_payload": true,
	}

	var resp struct {
		Result []struct {
			ID      string         `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/search", x.config.URL, x.config.Collection)
	if err := x.postJSON(ctx, url, req, &resp); err != nil {
		return nil, err
	}

	hits := make([]driven.VectorHit, 0, len(resp.Result))
	for _, r := range resp.Result {
		hit := driven.VectorHit{ChunkID: r.ID, Score: r.Score}
		if v, ok := r.Payload["content"].(string); ok {
			hit.Content = v
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// DeleteByDocument removes all points belonging to a document.
func (x *Index) DeleteByDocument(ctx context.Context, documentID string) error {
	body := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": "document_id", "match": map[string]any{"value": documentID}},
			},
		},
	}
	url := fmt.Sprintf("%s/collections/%s/points/delete?wait=true", x.config.URL, x.config.Collection)
	return x.postJSON(ctx, url, body, nil)
}

// Close releases resources.
func (x *Index) Close() error {
	x.client.CloseIdleConnections()
	return nil
}

func (x *Index) putJSON(ctx context.Context, url string, body, out any) error {
	return x.doJSON(ctx, http.MethodPut, url, body, out)
}

func (x *Index) postJSON(ctx context.Context, url string, body, out any) error {
	return x.doJSON(ctx, http.MethodPost, url, body, out)
}

func (x *Index) doJSON(ctx context.Context, method, url string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshalling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if x.config.APIKey != "" {
		req.Header.Set("api-key", x.config.APIKey)
	}

	resp, err := x.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant %s %s failed: %s", method, url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
