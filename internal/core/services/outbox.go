package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-pipeline/internal/core/domain"
	"github.com/custodia-labs/sercha-pipeline/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-pipeline/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-pipeline/internal/logger"
)

// Ensure Outbox implements the synchronizer interface.
var _ driving.OutboxSynchronizer = (*Outbox)(nil)

// OutboxConfig tunes the chunk-to-index synchronisation.
type OutboxConfig struct {
	// BatchSize is the number of pending chunks fetched per round.
	BatchSize int

	// DrainDelay is the pause between consecutive batches of one run,
	// keeping sustained load off the vector index.
	DrainDelay time.Duration

	// Interval is how often the background loop looks for pending
	// chunks.
	Interval time.Duration

	// MaxAttempts caps upsert retries per batch before the batch is
	// marked FAILED.
	MaxAttempts int

	// RetryBackoff is the delay between upsert retries.
	RetryBackoff time.Duration

	// Dimensions is the expected dense vector length.
	Dimensions int
}

// DefaultOutboxConfig returns the standard synchronisation settings.
func DefaultOutboxConfig() OutboxConfig {
	return OutboxConfig{
		BatchSize:    100,
		DrainDelay:   500 * time.Millisecond,
		Interval:     30 * time.Second,
		MaxAttempts:  3,
		RetryBackoff: 2 * time.Second,
		Dimensions:   domain.DefaultDenseDimensions,
	}
}

// Outbox pushes PENDING chunks to the external vector index in batches.
// The chunk row in the local store is the source of truth; the index is
// a projection that can always be rebuilt from it. Runs are serialised
// so two triggers never race over the same batch.
type Outbox struct {
	config OutboxConfig
	store  driven.DocumentStore
	index  driven.VectorIndex

	syncMu sync.Mutex

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewOutbox creates an outbox synchroniser. The index may be nil when
// no vector index is configured; Sync then reports ErrVectorIndexUnavailable.
func NewOutbox(config OutboxConfig, store driven.DocumentStore, index driven.VectorIndex) *Outbox {
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.Dimensions <= 0 {
		config.Dimensions = domain.DefaultDenseDimensions
	}
	return &Outbox{
		config: config,
		store:  store,
		index:  index,
	}
}

// Sync drains pending chunks for one document, or for all documents
// when documentID is empty. It keeps fetching batches until none
// remain, pausing between batches. Safe to call concurrently; callers
// queue behind the run in progress.
func (o *Outbox) Sync(ctx context.Context, documentID string) (*driving.SyncReport, error) {
	if o.index == nil {
		return nil, domain.ErrVectorIndexUnavailable
	}

	o.syncMu.Lock()
	defer o.syncMu.Unlock()

	logger.Section("Vector Sync")
	report := &driving.SyncReport{}

	for {
		chunks, err := o.store.ListPendingChunks(ctx, documentID, o.config.BatchSize)
		if err != nil {
			return report, fmt.Errorf("list pending chunks: %w", err)
		}
		if len(chunks) == 0 {
			break
		}

		report.Batches++
		if err := o.syncBatch(ctx, chunks, report); err != nil {
			return report, err
		}

		if len(chunks) < o.config.BatchSize {
			break
		}

		// More batches remain; pause before the next round.
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		case <-time.After(o.config.DrainDelay):
		}
	}

	logger.Info("Sync complete: %d synced, %d skipped, %d failed in %d batches",
		report.Synced, report.Skipped, report.Failed, report.Batches)
	return report, nil
}

// syncBatch validates and upserts one batch of chunks, then records
// the outcome per chunk.
func (o *Outbox) syncBatch(ctx context.Context, chunks []domain.Chunk, report *driving.SyncReport) error {
	points := make([]driven.VectorPoint, 0, len(chunks))
	validIDs := make([]string, 0, len(chunks))
	skippedIDs := make([]string, 0)

	for i := range chunks {
		c := &chunks[i]
		if !c.HasValidVectors(o.config.Dimensions) {
			// No usable vectors: keyword search still covers the
			// chunk, so it is considered handled.
			skippedIDs = append(skippedIDs, c.ID)
			continue
		}
		points = append(points, driven.VectorPoint{
			ID:           c.ID,
			DocumentID:   c.DocumentID,
			ChunkIndex:   c.ChunkIndex,
			Content:      c.Content,
			Heading:      c.Heading,
			QualityScore: c.QualityScore,
			Dense:        c.DenseVector,
			Sparse:       c.SparseVector,
		})
		validIDs = append(validIDs, c.ID)
	}

	if len(skippedIDs) > 0 {
		logger.Debug("Skipping %d chunks without valid vectors", len(skippedIDs))
		if err := o.store.MarkChunksSynced(ctx, skippedIDs); err != nil {
			return fmt.Errorf("mark skipped chunks: %w", err)
		}
		report.Skipped += len(skippedIDs)
	}

	if len(points) == 0 {
		return nil
	}

	if err := o.upsertWithRetry(ctx, points); err != nil {
		logger.Warn("Batch of %d chunks failed after %d attempts: %v",
			len(points), o.config.MaxAttempts, err)
		if markErr := o.store.MarkChunksSyncFailed(ctx, validIDs); markErr != nil {
			return fmt.Errorf("mark failed chunks: %w", markErr)
		}
		report.Failed += len(validIDs)
		return nil
	}

	// Synced chunks drop their vector payloads locally; the index holds
	// them from here on.
	if err := o.store.MarkChunksSynced(ctx, validIDs); err != nil {
		return fmt.Errorf("mark synced chunks: %w", err)
	}
	report.Synced += len(validIDs)
	return nil
}

// upsertWithRetry pushes one batch to the index, retrying transient
// failures with a fixed backoff.
func (o *Outbox) upsertWithRetry(ctx context.Context, points []driven.VectorPoint) error {
	var lastErr error
	for attempt := 1; attempt <= o.config.MaxAttempts; attempt++ {
		lastErr = o.index.UpsertBatch(ctx, points)
		if lastErr == nil {
			return nil
		}
		if attempt < o.config.MaxAttempts {
			logger.Debug("Upsert attempt %d/%d failed, retrying in %s: %v",
				attempt, o.config.MaxAttempts, o.config.RetryBackoff, lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(o.config.RetryBackoff):
			}
		}
	}
	return lastErr
}

// Start begins the background sync loop. This method blocks until Stop
// is called or the context is cancelled.
func (o *Outbox) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return nil // Already running
	}
	o.running = true
	o.stopCh = make(chan struct{})
	o.mu.Unlock()

	o.wg.Add(1)
	defer o.wg.Done()

	ticker := time.NewTicker(o.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-o.stopCh:
			return nil
		case <-ticker.C:
			if _, err := o.Sync(ctx, ""); err != nil {
				logger.Error("outbox: sync failed: %v", err)
			}
		}
	}
}

// Stop gracefully shuts down the background loop.
func (o *Outbox) Stop() error {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return nil
	}
	o.running = false
	close(o.stopCh)
	o.mu.Unlock()

	o.wg.Wait()
	return nil
}
