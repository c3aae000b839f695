package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-pipeline/internal/chunker"
	"github.com/custodia-labs/sercha-pipeline/internal/core/domain"
	"github.com/custodia-labs/sercha-pipeline/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-pipeline/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-pipeline/internal/logger"
	"github.com/custodia-labs/sercha-pipeline/internal/quality"
)

// Ensure Orchestrator implements the callback interface.
var _ driving.CallbackHandler = (*Orchestrator)(nil)

// unreachablePrefix marks documents that failed without ever getting a
// real answer from the conversion worker, as opposed to a real rejection.
const unreachablePrefix = "AI_WORKER_UNREACHABLE: "

// OrchestratorConfig tunes the retry policy and fallback processing.
type OrchestratorConfig struct {
	// MaxAttempts caps how many times a job is dispatched.
	MaxAttempts int

	// BaseBackoff is the delay before the second attempt; it doubles
	// per attempt thereafter.
	BaseBackoff time.Duration

	// Gate holds the extracted-text validation thresholds.
	Gate quality.GateConfig

	// Analyzer holds the chunk scoring thresholds.
	Analyzer quality.AnalyzerConfig

	// ChunkSize and ChunkOverlap configure the local fallback chunker,
	// used when the worker returns text without pre-built chunks.
	ChunkSize    int
	ChunkOverlap int
}

// DefaultOrchestratorConfig returns the standard retry policy.
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		MaxAttempts:  3,
		BaseBackoff:  5 * time.Second,
		Gate:         quality.DefaultGateConfig(),
		Analyzer:     quality.DefaultAnalyzerConfig(),
		ChunkSize:    chunker.DefaultSize,
		ChunkOverlap: chunker.DefaultOverlap,
	}
}

// Orchestrator drives each document through
// PENDING -> PROCESSING -> {COMPLETED, FAILED}, exactly-once from the
// caller's perspective despite an at-least-once queue. It owns the
// document status field; no other component writes it.
type Orchestrator struct {
	docStore   driven.DocumentStore
	queue      driven.JobQueue
	dispatcher driven.ConversionDispatcher
	config     OrchestratorConfig
}

// NewOrchestrator creates a job orchestrator.
func NewOrchestrator(
	docStore driven.DocumentStore,
	queue driven.JobQueue,
	dispatcher driven.ConversionDispatcher,
	config OrchestratorConfig,
) *Orchestrator {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	return &Orchestrator{
		docStore:   docStore,
		queue:      queue,
		dispatcher: dispatcher,
		config:     config,
	}
}

// HandleJob processes one dequeued job: it dispatches the conversion to
// the external worker and classifies any dispatch failure. The queue
// lease is kept until the callback resolves the document, so a worker
// crash surfaces as lease expiry and redelivery.
func (o *Orchestrator) HandleJob(ctx context.Context, qj *driven.QueuedJob) error {
	logger.Section("Job Dispatch")
	logger.Debug("Document %s, attempt %d/%d", qj.Job.DocumentID, qj.Attempt, o.config.MaxAttempts)

	doc, err := o.docStore.GetDocument(ctx, qj.Job.DocumentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Document was deleted after enqueue; drop the job.
			logger.Warn("Document %s no longer exists, discarding job", qj.Job.DocumentID)
			return o.queue.Discard(ctx, qj.ID)
		}
		return fmt.Errorf("get document: %w", err)
	}

	// Idempotency guard: duplicate delivery or a late retry racing a
	// prior success is a no-op.
	if doc.Status == domain.StatusCompleted && doc.ProcessedContent != "" {
		logger.Info("Document %s already completed, acknowledging duplicate delivery", doc.ID)
		return o.queue.Ack(ctx, qj.ID)
	}

	if err := o.docStore.MarkProcessing(ctx, doc.ID, qj.Attempt); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	if err := o.dispatcher.Dispatch(ctx, qj.Job); err != nil {
		return o.handleDispatchFailure(ctx, qj, err)
	}

	// Dispatched. The result arrives via the callback; the job stays
	// leased until then.
	logger.Info("Dispatched document %s to conversion worker", doc.ID)
	return nil
}

// handleDispatchFailure classifies a dispatch error and applies the
// retry policy.
func (o *Orchestrator) handleDispatchFailure(ctx context.Context, qj *driven.QueuedJob, dispatchErr error) error {
	var convErr *domain.ConversionError
	if errors.As(dispatchErr, &convErr) && convErr.Permanent {
		logger.Warn("Permanent failure for document %s: %s", qj.Job.DocumentID, convErr.Code)
		if err := o.docStore.MarkFailed(ctx, qj.Job.DocumentID, convErr.Code); err != nil {
			return fmt.Errorf("mark failed: %w", err)
		}
		return o.queue.Discard(ctx, qj.ID)
	}

	if qj.Attempt >= o.config.MaxAttempts {
		reason := domain.TruncateFailReason(unreachablePrefix + dispatchErr.Error())
		logger.Warn("Retries exhausted for document %s: %v", qj.Job.DocumentID, dispatchErr)
		if err := o.docStore.MarkFailed(ctx, qj.Job.DocumentID, reason); err != nil {
			return fmt.Errorf("mark failed: %w", err)
		}
		return o.queue.Discard(ctx, qj.ID)
	}

	delay := o.backoff(qj.Attempt)
	logger.Debug("Transient dispatch failure for document %s, retrying in %s: %v",
		qj.Job.DocumentID, delay, dispatchErr)
	return o.queue.Release(ctx, qj.ID, delay)
}

// backoff returns the exponential delay after the given 1-based attempt.
func (o *Orchestrator) backoff(attempt int) time.Duration {
	delay := o.config.BaseBackoff
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	return delay
}

// HandleCallback applies a conversion result posted by the external
// worker. It is the only path that transitions documents to COMPLETED.
func (o *Orchestrator) HandleCallback(ctx context.Context, payload domain.CallbackPayload) error {
	logger.Section("Conversion Callback")
	logger.Debug("Document %s, success=%t", payload.DocumentID, payload.Success)

	if payload.DocumentID == "" {
		return fmt.Errorf("%w: missing document id", domain.ErrInvalidInput)
	}

	doc, err := o.docStore.GetDocument(ctx, payload.DocumentID)
	if err != nil {
		return fmt.Errorf("get document: %w", err)
	}

	// A duplicate callback for an already-completed document is a no-op.
	if doc.Status == domain.StatusCompleted && doc.ProcessedContent != "" {
		logger.Info("Document %s already completed, ignoring duplicate callback", doc.ID)
		return o.resolveJob(ctx, doc.ID)
	}

	if payload.Success && payload.Result != nil {
		return o.completeDocument(ctx, doc, payload.Result)
	}

	workerErr := payload.Error
	if workerErr == nil {
		workerErr = &domain.CallbackError{Code: domain.CodeInternalError, Message: "empty callback payload"}
	}
	return o.failFromWorker(ctx, doc, workerErr)
}

// completeDocument runs the quality gate and persists the extracted
// content with its chunks in one transaction.
func (o *Orchestrator) completeDocument(ctx context.Context, doc *domain.Document, result *domain.CallbackResult) error {
	gate := quality.Validate(result.Text, o.config.Gate)
	logger.Debug("Quality gate: passed=%t noise=%.3f", gate.Passed, gate.NoiseRatio)

	if !gate.Passed {
		logger.Warn("Document %s rejected by quality gate: %s", doc.ID, gate.Reason)
		if err := o.docStore.MarkFailed(ctx, doc.ID, string(gate.Reason)); err != nil {
			return fmt.Errorf("mark failed: %w", err)
		}
		return o.resolveJob(ctx, doc.ID)
	}
	for _, w := range gate.Warnings {
		logger.Warn("Document %s quality warning: %s", doc.ID, w)
	}

	chunks := o.buildChunks(doc.ID, result)
	if err := o.docStore.CompleteDocument(ctx, doc.ID, result.Text, chunks); err != nil {
		return fmt.Errorf("complete document: %w", err)
	}

	logger.Info("Document %s completed: %d chunks, %d pages, ocr=%t",
		doc.ID, len(chunks), result.PageCount, result.OCRApplied)
	return o.resolveJob(ctx, doc.ID)
}

// buildChunks converts the worker's pre-embedded chunks into domain
// chunks, falling back to local chunking when the worker sent none.
// Every chunk starts with sync status PENDING for the outbox.
func (o *Orchestrator) buildChunks(documentID string, result *domain.CallbackResult) []domain.Chunk {
	if len(result.Chunks) == 0 {
		return o.chunkLocally(documentID, result.Text)
	}

	chunks := make([]domain.Chunk, 0, len(result.Chunks))
	for i, wc := range result.Chunks {
		c := domain.Chunk{
			ID:          uuid.New().String(),
			DocumentID:  documentID,
			Content:     wc.Content,
			ChunkIndex:  i,
			CharStart:   wc.Metadata.CharStart,
			CharEnd:     wc.Metadata.CharEnd,
			Heading:     wc.Metadata.Heading,
			DenseVector: wc.Embedding.Dense,
			SparseVector: domain.SparseVector{
				Indices: wc.Embedding.Sparse.Indices,
				Values:  wc.Embedding.Sparse.Values,
			},
			SyncStatus: domain.SyncPending,
		}

		if wc.Metadata.QualityScore != nil {
			c.QualityScore = *wc.Metadata.QualityScore
			c.QualityFlags = wc.Metadata.QualityFlags
		} else {
			report := quality.AnalyzeChunk(wc.Content, wc.Metadata.Heading != "", o.config.Analyzer)
			c.QualityScore = report.Score
			c.QualityFlags = flagStrings(report.Flags)
		}

		chunks = append(chunks, c)
	}
	return chunks
}

// chunkLocally splits text that arrived without worker-side chunks.
// These chunks carry no vectors; the outbox marks them SYNCED without
// an upsert and keyword search still covers them.
func (o *Orchestrator) chunkLocally(documentID, text string) []domain.Chunk {
	pieces := chunker.Split(text, o.config.ChunkSize, o.config.ChunkOverlap)
	chunks := make([]domain.Chunk, 0, len(pieces))
	for _, p := range pieces {
		report := quality.AnalyzeChunk(p.Content, p.Heading != "", o.config.Analyzer)
		chunks = append(chunks, domain.Chunk{
			ID:           uuid.New().String(),
			DocumentID:   documentID,
			Content:      p.Content,
			ChunkIndex:   p.Index,
			CharStart:    p.CharStart,
			CharEnd:      p.CharEnd,
			Heading:      p.Heading,
			QualityScore: report.Score,
			QualityFlags: flagStrings(report.Flags),
			SyncStatus:   domain.SyncPending,
		})
	}
	return chunks
}

// failFromWorker classifies a worker-reported failure: permanent codes
// fail the document immediately; transient codes are retried until the
// attempt cap, then failed with the code and message.
func (o *Orchestrator) failFromWorker(ctx context.Context, doc *domain.Document, workerErr *domain.CallbackError) error {
	if domain.IsPermanentCode(workerErr.Code) {
		logger.Warn("Document %s permanently rejected by worker: %s", doc.ID, workerErr.Code)
		if err := o.docStore.MarkFailed(ctx, doc.ID, workerErr.Code); err != nil {
			return fmt.Errorf("mark failed: %w", err)
		}
		return o.resolveJob(ctx, doc.ID)
	}

	if doc.RetryCount >= o.config.MaxAttempts {
		reason := workerErr.Code
		if workerErr.Message != "" {
			reason += ": " + workerErr.Message
		}
		reason = domain.TruncateFailReason(reason)
		logger.Warn("Document %s failed after %d attempts: %s", doc.ID, doc.RetryCount, reason)
		if err := o.docStore.MarkFailed(ctx, doc.ID, reason); err != nil {
			return fmt.Errorf("mark failed: %w", err)
		}
		return o.resolveJob(ctx, doc.ID)
	}

	// Transient worker failure with attempts left: release the leased
	// job so the queue redelivers it after backoff.
	job, err := o.queue.FindByDocument(ctx, doc.ID)
	if err != nil {
		return fmt.Errorf("find job: %w", err)
	}
	if job == nil {
		// Lease already expired; redelivery will happen on its own.
		return nil
	}
	delay := o.backoff(doc.RetryCount)
	logger.Debug("Transient worker failure for document %s (%s), retrying in %s",
		doc.ID, workerErr.Code, delay)
	return o.queue.Release(ctx, job.ID, delay)
}

// resolveJob acknowledges the in-flight queue job for a document, if
// one is still leased.
func (o *Orchestrator) resolveJob(ctx context.Context, documentID string) error {
	job, err := o.queue.FindByDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("find job: %w", err)
	}
	if job == nil {
		return nil
	}
	return o.queue.Ack(ctx, job.ID)
}

// flagStrings converts analyzer flags to persistable strings.
func flagStrings(flags []quality.ChunkFlag) []string {
	if len(flags) == 0 {
		return nil
	}
	out := make([]string, len(flags))
	for i, f := range flags {
		out[i] = string(f)
	}
	return out
}
