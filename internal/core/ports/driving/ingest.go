package driving

import (
	"context"

	"github.com/custodia-labs/sercha-pipeline/internal/core/domain"
)

// IngestService registers uploads and manages document lifecycle actions.
type IngestService interface {
	// Ingest registers a file, deduplicates by content hash, and
	// enqueues a processing job. Returns domain.ErrAlreadyExists when a
	// document with the same content digest is already registered.
	Ingest(ctx context.Context, path string, cfg domain.JobConfig) (*domain.Document, error)

	// Retry resets a failed document to PENDING, clearing its failure
	// reason and retry count, and re-enqueues it.
	Retry(ctx context.Context, documentID string) error

	// Delete removes a document and its chunks. Forbidden while the
	// document is PROCESSING.
	Delete(ctx context.Context, documentID string) error

	// Get retrieves a document by ID.
	Get(ctx context.Context, documentID string) (*domain.Document, error)

	// Status summarises pipeline state for reporting.
	Status(ctx context.Context) (*PipelineStatus, error)
}

// PipelineStatus is a point-in-time summary of pipeline state.
type PipelineStatus struct {
	// Documents counts documents per lifecycle status.
	Documents map[domain.DocumentStatus]int

	// Chunks counts chunks per sync status.
	Chunks map[domain.SyncStatus]int

	// Queue reports job queue depth.
	QueueReady     int
	QueueLeased    int
	QueueScheduled int
}
