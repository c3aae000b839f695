package driven

import (
	"context"

	"github.com/custodia-labs/sercha-pipeline/internal/core/domain"
)

// DocumentStore persists documents and chunks.
// Backed by SQLite for metadata storage.
//
// Write ownership is split: the orchestrator drives document status
// transitions; the outbox synchronizer owns chunk sync status and
// vector reclamation. No other component writes those fields.
type DocumentStore interface {
	// CreateDocument stores a new document. Returns
	// domain.ErrAlreadyExists when the content hash is already present.
	CreateDocument(ctx context.Context, doc *domain.Document) error

	// GetDocument retrieves a document by ID.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// GetDocumentByHash retrieves a document by its content hash.
	GetDocumentByHash(ctx context.Context, hash string) (*domain.Document, error)

	// ListDocuments returns all documents.
	ListDocuments(ctx context.Context) ([]domain.Document, error)

	// CountDocumentsByStatus returns the number of documents per status.
	CountDocumentsByStatus(ctx context.Context) (map[domain.DocumentStatus]int, error)

	// MarkProcessing transitions a document to PROCESSING and records
	// the attempt count.
	MarkProcessing(ctx context.Context, id string, retryCount int) error

	// MarkFailed transitions a document to FAILED with a reason. The
	// reason is truncated to domain.MaxFailReasonLength.
	MarkFailed(ctx context.Context, id, reason string) error

	// CompleteDocument transitions a document to COMPLETED, stores the
	// processed content and bulk-inserts its chunks in one transaction.
	// Any previously stored chunks for the document are replaced, so a
	// partial chunk set is never visible to readers.
	CompleteDocument(ctx context.Context, id, processedContent string, chunks []domain.Chunk) error

	// ResetForRetry transitions a document back to PENDING, clearing
	// its failure reason and retry count.
	ResetForRetry(ctx context.Context, id string) error

	// DeleteDocument removes a document and its chunks. Returns
	// domain.ErrDocumentProcessing while the document is PROCESSING.
	DeleteDocument(ctx context.Context, id string) error

	// GetChunk retrieves a specific chunk by ID.
	GetChunk(ctx context.Context, id string) (*domain.Chunk, error)

	// GetChunks retrieves all chunks for a document, ordered by index.
	GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error)

	// ListPendingChunks returns up to limit chunks with sync status
	// PENDING, optionally scoped to one document (empty documentID
	// selects across all documents).
	ListPendingChunks(ctx context.Context, documentID string, limit int) ([]domain.Chunk, error)

	// MarkChunksSynced sets the chunks to SYNCED and nulls their vector
	// fields; the external index is authoritative thereafter.
	MarkChunksSynced(ctx context.Context, chunkIDs []string) error

	// MarkChunksSyncFailed sets the chunks to FAILED.
	MarkChunksSyncFailed(ctx context.Context, chunkIDs []string) error

	// CountChunksBySyncStatus returns the number of chunks per sync status.
	CountChunksBySyncStatus(ctx context.Context) (map[domain.SyncStatus]int, error)
}
