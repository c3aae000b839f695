// Package httpembed provides a query embedding adapter backed by the
// same embedding server the conversion worker uses, so query and chunk
// vectors share one model.
package httpembed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/custodia-labs/sercha-pipeline/internal/core/domain"
	"github.com/custodia-labs/sercha-pipeline/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultBaseURL    = "http://localhost:8200"
	DefaultTimeout    = 30 * time.Second
	DefaultDimensions = domain.DefaultDenseDimensions
)

// Config holds configuration for the embedding server.
type Config struct {
	// BaseURL is the embedding server address (default: http://localhost:8200).
	BaseURL string

	// Timeout is the request timeout (default: 30s).
	Timeout time.Duration

	// Dimensions is the dense vector size (default: 384).
	Dimensions int
}

// EmbeddingService generates hybrid query embeddings over HTTP.
type EmbeddingService struct {
	client     *http.Client
	baseURL    string
	dimensions int
}

// embedRequest is the embedding server request format.
type embedRequest struct {
	Text string `json:"text"`
}

// embedResponse is the embedding server response format.
type embedResponse struct {
	Dense  []float32 `json:"dense"`
	Sparse struct {
		Indices []uint32  `json:"indices"`
		Values  []float32 `json:"values"`
	} `json:"sparse"`
}

// NewEmbeddingService creates a new HTTP embedding service.
func NewEmbeddingService(cfg Config) *EmbeddingService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = DefaultDimensions
	}

	return &EmbeddingService{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:    cfg.BaseURL,
		dimensions: cfg.Dimensions,
	}
}

// EmbedQuery generates the hybrid embedding for a query string.
func (s *EmbeddingService) EmbedQuery(ctx context.Context, text string) ([]float32, domain.SparseVector, error) {
	jsonBody, err := json.Marshal(embedRequest{Text: text})
	if err != nil {
		return nil, domain.SparseVector{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		s.baseURL+"/embed",
		bytes.NewReader(jsonBody),
	)
	if err != nil {
		return nil, domain.SparseVector{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, domain.SparseVector{}, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, domain.SparseVector{}, fmt.Errorf("embedding error (status %d): failed to read response", resp.StatusCode)
		}
		return nil, domain.SparseVector{}, fmt.Errorf("embedding error (status %d): %s", resp.StatusCode, string(body))
	}

	var embedResp embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return nil, domain.SparseVector{}, fmt.Errorf("decode response: %w", err)
	}

	if len(embedResp.Dense) != s.dimensions {
		return nil, domain.SparseVector{}, fmt.Errorf("embedding returned %d dimensions, expected %d",
			len(embedResp.Dense), s.dimensions)
	}

	sparse := domain.SparseVector{
		Indices: embedResp.Sparse.Indices,
		Values:  embedResp.Sparse.Values,
	}
	return embedResp.Dense, sparse, nil
}

// Dimensions returns the dense vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	return nil
}
