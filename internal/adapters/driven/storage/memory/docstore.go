package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-pipeline/internal/core/domain"
	"github.com/custodia-labs/sercha-pipeline/internal/core/ports/driven"
)

// Ensure DocumentStore implements the interface.
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore is an in-memory implementation of driven.DocumentStore.
type DocumentStore struct {
	mu        sync.RWMutex
	documents map[string]domain.Document
	chunks    map[string][]domain.Chunk
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents: make(map[string]domain.Document),
		chunks:    make(map[string][]domain.Chunk),
	}
}

// CreateDocument stores a new document.
func (s *DocumentStore) CreateDocument(_ context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.documents {
		if existing.ContentHash == doc.ContentHash {
			return domain.ErrAlreadyExists
		}
	}
	if _, ok := s.documents[doc.ID]; ok {
		return domain.ErrAlreadyExists
	}
	s.documents[doc.ID] = *doc
	return nil
}

// GetDocument retrieves a document by ID.
func (s *DocumentStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

// GetDocumentByHash retrieves a document by content hash.
func (s *DocumentStore) GetDocumentByHash(_ context.Context, hash string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id := range s.documents {
		doc := s.documents[id]
		if doc.ContentHash == hash {
			return &doc, nil
		}
	}
	return nil, domain.ErrNotFound
}

// ListDocuments returns all documents.
func (s *DocumentStore) ListDocuments(_ context.Context) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.Document, 0, len(s.documents))
	for id := range s.documents {
		result = append(result, s.documents[id])
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// CountDocumentsByStatus returns document counts per status.
func (s *DocumentStore) CountDocumentsByStatus(_ context.Context) (map[domain.DocumentStatus]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[domain.DocumentStatus]int)
	for _, doc := range s.documents {
		counts[doc.Status]++
	}
	return counts, nil
}

// MarkProcessing transitions a document to PROCESSING.
func (s *DocumentStore) MarkProcessing(_ context.Context, id string, retryCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[id]
	if !ok {
		return domain.ErrNotFound
	}
	doc.Status = domain.StatusProcessing
	doc.RetryCount = retryCount
	doc.UpdatedAt = time.Now().UTC()
	s.documents[id] = doc
	return nil
}

// MarkFailed transitions a document to FAILED with a reason.
func (s *DocumentStore) MarkFailed(_ context.Context, id, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[id]
	if !ok {
		return domain.ErrNotFound
	}
	doc.Status = domain.StatusFailed
	doc.FailReason = domain.TruncateFailReason(reason)
	doc.UpdatedAt = time.Now().UTC()
	s.documents[id] = doc
	return nil
}

// CompleteDocument stores content and chunks and marks COMPLETED.
func (s *DocumentStore) CompleteDocument(_ context.Context, id, processedContent string, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[id]
	if !ok {
		return domain.ErrNotFound
	}
	doc.Status = domain.StatusCompleted
	doc.FailReason = ""
	doc.ProcessedContent = processedContent
	doc.UpdatedAt = time.Now().UTC()
	s.documents[id] = doc
	s.chunks[id] = append([]domain.Chunk(nil), chunks...)
	return nil
}

// ResetForRetry transitions a document back to PENDING.
func (s *DocumentStore) ResetForRetry(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[id]
	if !ok {
		return domain.ErrNotFound
	}
	doc.Status = domain.StatusPending
	doc.FailReason = ""
	doc.RetryCount = 0
	doc.UpdatedAt = time.Now().UTC()
	s.documents[id] = doc
	return nil
}

// DeleteDocument removes a document and its chunks.
func (s *DocumentStore) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[id]
	if !ok {
		return domain.ErrNotFound
	}
	if doc.Status == domain.StatusProcessing {
		return domain.ErrDocumentProcessing
	}
	delete(s.documents, id)
	delete(s.chunks, id)
	return nil
}

// GetChunk retrieves a specific chunk by ID.
func (s *DocumentStore) GetChunk(_ context.Context, id string) (*domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, chunks := range s.chunks {
		for _, chunk := range chunks {
			if chunk.ID == id {
				return &chunk, nil
			}
		}
	}
	return nil, domain.ErrNotFound
}

// GetChunks retrieves all chunks for a document, ordered by index.
func (s *DocumentStore) GetChunks(_ context.Context, documentID string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunks := append([]domain.Chunk(nil), s.chunks[documentID]...)
	sort.Slice(chunks, func(i, j int) bool {
		return chunks[i].ChunkIndex < chunks[j].ChunkIndex
	})
	return chunks, nil
}

// ListPendingChunks returns up to limit chunks awaiting sync.
func (s *DocumentStore) ListPendingChunks(_ context.Context, documentID string, limit int) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.Chunk
	for docID, chunks := range s.chunks {
		if documentID != "" && docID != documentID {
			continue
		}
		for _, chunk := range chunks {
			if chunk.SyncStatus == domain.SyncPending {
				result = append(result, chunk)
			}
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].DocumentID != result[j].DocumentID {
			return result[i].DocumentID < result[j].DocumentID
		}
		return result[i].ChunkIndex < result[j].ChunkIndex
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// MarkChunksSynced sets chunks to SYNCED and nulls their vectors.
func (s *DocumentStore) MarkChunksSynced(_ context.Context, chunkIDs []string) error {
	return s.updateChunks(chunkIDs, func(c *domain.Chunk) {
		c.SyncStatus = domain.SyncSynced
		c.DenseVector = nil
		c.SparseVector = domain.SparseVector{}
	})
}

// MarkChunksSyncFailed sets chunks to FAILED.
func (s *DocumentStore) MarkChunksSyncFailed(_ context.Context, chunkIDs []string) error {
	return s.updateChunks(chunkIDs, func(c *domain.Chunk) {
		c.SyncStatus = domain.SyncFailed
	})
}

// CountChunksBySyncStatus returns chunk counts per sync status.
func (s *DocumentStore) CountChunksBySyncStatus(_ context.Context) (map[domain.SyncStatus]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[domain.SyncStatus]int)
	for _, chunks := range s.chunks {
		for _, chunk := range chunks {
			counts[chunk.SyncStatus]++
		}
	}
	return counts, nil
}

func (s *DocumentStore) updateChunks(chunkIDs []string, apply func(*domain.Chunk)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make(map[string]bool, len(chunkIDs))
	for _, id := range chunkIDs {
		ids[id] = true
	}
	for docID, chunks := range s.chunks {
		for i := range chunks {
			if ids[chunks[i].ID] {
				apply(&chunks[i])
			}
		}
		s.chunks[docID] = chunks
	}
	return nil
}
