package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-pipeline/internal/core/domain"
	"github.com/custodia-labs/sercha-pipeline/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-pipeline/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-pipeline/internal/logger"
)

// Ensure Ingest implements the driving interface.
var _ driving.IngestService = (*Ingest)(nil)

// Ingest registers uploads, deduplicates them by content digest, and
// feeds the processing queue.
type Ingest struct {
	docStore driven.DocumentStore
	queue    driven.JobQueue
	index    driven.VectorIndex
}

// NewIngest creates an ingest service.
func NewIngest(docStore driven.DocumentStore, queue driven.JobQueue) *Ingest {
	return &Ingest{
		docStore: docStore,
		queue:    queue,
	}
}

// WithVectorIndex attaches a vector index so deletions also purge
// replicated vectors. Without one, deletes touch only the primary store.
func (s *Ingest) WithVectorIndex(index driven.VectorIndex) *Ingest {
	s.index = index
	return s
}

// Ingest registers a file and enqueues a processing job for it.
func (s *Ingest) Ingest(ctx context.Context, path string, cfg domain.JobConfig) (*domain.Document, error) {
	logger.Section("Ingest")

	filename := filepath.Base(path)
	format, ok := domain.FormatFromFilename(filename)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported file extension %q", domain.ErrInvalidInput, filepath.Ext(filename))
	}

	hash, err := hashFile(path)
	if err != nil {
		return nil, fmt.Errorf("hash file: %w", err)
	}
	logger.Debug("File %s, format %s, sha256 %s", filename, format, hash)

	// Content digest is the dedup key. A second upload of identical
	// bytes points the caller at the existing document.
	if existing, err := s.docStore.GetDocumentByHash(ctx, hash); err == nil && existing != nil {
		return existing, fmt.Errorf("%w: document %s has identical content", domain.ErrAlreadyExists, existing.ID)
	} else if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("check content hash: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	now := time.Now().UTC()
	doc := &domain.Document{
		ID:          uuid.New().String(),
		Filename:    filename,
		Format:      format,
		SourcePath:  absPath,
		ContentHash: hash,
		Status:      domain.StatusPending,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.docStore.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}

	job := domain.ProcessingJob{
		DocumentID: doc.ID,
		SourcePath: absPath,
		Format:     format,
		Config:     cfg,
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}

	logger.Info("Registered document %s (%s)", doc.ID, filename)
	return doc, nil
}

// Retry resets a failed document to PENDING and re-enqueues it.
func (s *Ingest) Retry(ctx context.Context, documentID string) error {
	doc, err := s.docStore.GetDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("get document: %w", err)
	}
	if doc.Status != domain.StatusFailed {
		return fmt.Errorf("%w: document %s is %s, only FAILED documents can be retried",
			domain.ErrInvalidInput, doc.ID, doc.Status)
	}

	if err := s.docStore.ResetForRetry(ctx, doc.ID); err != nil {
		return fmt.Errorf("reset document: %w", err)
	}

	job := domain.ProcessingJob{
		DocumentID: doc.ID,
		SourcePath: doc.SourcePath,
		Format:     doc.Format,
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}

	logger.Info("Document %s reset for retry", doc.ID)
	return nil
}

// Delete removes a document, its chunks, and any replicated vectors.
func (s *Ingest) Delete(ctx context.Context, documentID string) error {
	if err := s.docStore.DeleteDocument(ctx, documentID); err != nil {
		return err
	}
	if s.index != nil {
		if err := s.index.DeleteByDocument(ctx, documentID); err != nil {
			logger.Warn("Failed to purge vectors for document %s: %v", documentID, err)
		}
	}
	logger.Info("Document %s deleted", documentID)
	return nil
}

// Get retrieves a document by ID.
func (s *Ingest) Get(ctx context.Context, documentID string) (*domain.Document, error) {
	return s.docStore.GetDocument(ctx, documentID)
}

// Status summarises pipeline state across documents, chunks and the
// job queue.
func (s *Ingest) Status(ctx context.Context) (*driving.PipelineStatus, error) {
	docs, err := s.docStore.CountDocumentsByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	chunks, err := s.docStore.CountChunksBySyncStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count chunks: %w", err)
	}
	counts, err := s.queue.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("queue counts: %w", err)
	}

	return &driving.PipelineStatus{
		Documents:      docs,
		Chunks:         chunks,
		QueueReady:     counts.Ready,
		QueueLeased:    counts.Leased,
		QueueScheduled: counts.Scheduled,
	}, nil
}

// hashFile computes the SHA-256 digest of a file's contents.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
