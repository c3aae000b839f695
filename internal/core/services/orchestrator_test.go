package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-pipeline/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-pipeline/internal/core/domain"
	"github.com/custodia-labs/sercha-pipeline/internal/core/ports/driven"
)

// --- Mock implementations for orchestrator testing ---

// mockDispatcher implements driven.ConversionDispatcher.
type mockDispatcher struct {
	err        error
	dispatched []domain.ProcessingJob
}

func (m *mockDispatcher) Dispatch(_ context.Context, job domain.ProcessingJob) error {
	m.dispatched = append(m.dispatched, job)
	return m.err
}

// goodText passes the default quality gate.
var goodText = strings.Repeat("All work and no play makes Jack a dull boy. ", 5)

func newTestOrchestrator(dispatcher *mockDispatcher) (*Orchestrator, *memory.DocumentStore, *memory.JobQueue) {
	store := memory.NewDocumentStore()
	queue := memory.NewJobQueue(time.Minute)
	orch := NewOrchestrator(store, queue, dispatcher, DefaultOrchestratorConfig())
	return orch, store, queue
}

func seedDocument(t *testing.T, store *memory.DocumentStore, queue *memory.JobQueue, id string) *driven.QueuedJob {
	t.Helper()
	ctx := context.Background()

	doc := &domain.Document{
		ID:          id,
		Filename:    id + ".pdf",
		Format:      domain.FormatPDF,
		ContentHash: "hash-" + id,
		Status:      domain.StatusPending,
		IsActive:    true,
	}
	require.NoError(t, store.CreateDocument(ctx, doc))
	require.NoError(t, queue.Enqueue(ctx, domain.ProcessingJob{
		DocumentID: id,
		SourcePath: "/uploads/" + id + ".pdf",
		Format:     domain.FormatPDF,
	}))

	qj, err := queue.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, qj)
	return qj
}

func TestHandleJobDispatchSuccess(t *testing.T) {
	ctx := context.Background()
	dispatcher := &mockDispatcher{}
	orch, store, queue := newTestOrchestrator(dispatcher)
	qj := seedDocument(t, store, queue, "doc-1")

	require.NoError(t, orch.HandleJob(ctx, qj))

	doc, err := store.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, doc.Status)
	assert.Equal(t, 1, doc.RetryCount)
	assert.Len(t, dispatcher.dispatched, 1)

	// The job stays leased until the callback resolves it.
	counts, err := queue.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Leased)
}

func TestHandleJobPermanentFailure(t *testing.T) {
	ctx := context.Background()
	dispatcher := &mockDispatcher{err: &domain.ConversionError{
		Code: domain.CodePasswordProtected, Message: "encrypted", Permanent: true,
	}}
	orch, store, queue := newTestOrchestrator(dispatcher)
	qj := seedDocument(t, store, queue, "doc-1")

	require.NoError(t, orch.HandleJob(ctx, qj))

	doc, err := store.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, doc.Status)
	assert.Equal(t, domain.CodePasswordProtected, doc.FailReason)

	counts, err := queue.Counts(ctx)
	require.NoError(t, err)
	assert.Zero(t, counts.Ready+counts.Leased+counts.Scheduled)
}

func TestHandleJobTransientFailureSchedulesRetry(t *testing.T) {
	ctx := context.Background()
	dispatcher := &mockDispatcher{err: errors.New("connection refused")}
	orch, store, queue := newTestOrchestrator(dispatcher)
	qj := seedDocument(t, store, queue, "doc-1")

	require.NoError(t, orch.HandleJob(ctx, qj))

	// Document stays PROCESSING while the retry waits out its backoff.
	doc, err := store.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, doc.Status)

	counts, err := queue.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Scheduled)
}

func TestHandleJobRetriesExhausted(t *testing.T) {
	ctx := context.Background()
	dispatcher := &mockDispatcher{err: errors.New("connection refused")}
	orch, store, queue := newTestOrchestrator(dispatcher)

	now := time.Now()
	queue.SetClock(func() time.Time { return now })
	qj := seedDocument(t, store, queue, "doc-1")

	// Three attempts with backoff between each.
	for attempt := 1; attempt <= 3; attempt++ {
		assert.Equal(t, attempt, qj.Attempt)
		require.NoError(t, orch.HandleJob(ctx, qj))
		if attempt == 3 {
			break
		}
		now = now.Add(time.Minute)
		var err error
		qj, err = queue.Dequeue(ctx)
		require.NoError(t, err)
		require.NotNil(t, qj)
	}

	doc, err := store.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, doc.Status)
	assert.True(t, strings.HasPrefix(doc.FailReason, "AI_WORKER_UNREACHABLE: "), doc.FailReason)
	assert.Equal(t, 3, doc.RetryCount)
	assert.Len(t, dispatcher.dispatched, 3)

	counts, err := queue.Counts(ctx)
	require.NoError(t, err)
	assert.Zero(t, counts.Ready+counts.Leased+counts.Scheduled)
}

func TestHandleJobBackoffDoubles(t *testing.T) {
	orch := NewOrchestrator(nil, nil, nil, DefaultOrchestratorConfig())
	assert.Equal(t, 5*time.Second, orch.backoff(1))
	assert.Equal(t, 10*time.Second, orch.backoff(2))
	assert.Equal(t, 20*time.Second, orch.backoff(3))
}

func TestHandleJobIdempotentOnCompletedDocument(t *testing.T) {
	ctx := context.Background()
	dispatcher := &mockDispatcher{}
	orch, store, queue := newTestOrchestrator(dispatcher)
	qj := seedDocument(t, store, queue, "doc-1")

	require.NoError(t, store.CompleteDocument(ctx, "doc-1", goodText, nil))

	require.NoError(t, orch.HandleJob(ctx, qj))

	// Duplicate delivery is acknowledged without re-dispatching.
	assert.Empty(t, dispatcher.dispatched)
	counts, err := queue.Counts(ctx)
	require.NoError(t, err)
	assert.Zero(t, counts.Ready+counts.Leased+counts.Scheduled)
}

func TestHandleJobDocumentDeleted(t *testing.T) {
	ctx := context.Background()
	dispatcher := &mockDispatcher{}
	orch, store, queue := newTestOrchestrator(dispatcher)
	qj := seedDocument(t, store, queue, "doc-1")
	require.NoError(t, store.DeleteDocument(ctx, "doc-1"))

	require.NoError(t, orch.HandleJob(ctx, qj))

	assert.Empty(t, dispatcher.dispatched)
	counts, err := queue.Counts(ctx)
	require.NoError(t, err)
	assert.Zero(t, counts.Ready+counts.Leased+counts.Scheduled)
}

func TestHandleCallbackSuccess(t *testing.T) {
	ctx := context.Background()
	dispatcher := &mockDispatcher{}
	orch, store, queue := newTestOrchestrator(dispatcher)
	qj := seedDocument(t, store, queue, "doc-1")
	require.NoError(t, orch.HandleJob(ctx, qj))

	score := 0.85
	dense := make([]float32, domain.DefaultDenseDimensions)
	for i := range dense {
		dense[i] = 0.1
	}
	embedding := domain.ChunkEmbedding{Dense: dense}
	embedding.Sparse.Indices = []uint32{1, 7}
	embedding.Sparse.Values = []float32{0.5, 0.2}

	payload := domain.CallbackPayload{
		DocumentID: "doc-1",
		Success:    true,
		Result: &domain.CallbackResult{
			Text: goodText,
			Chunks: []domain.CallbackChunk{
				{
					Content:   goodText,
					Embedding: embedding,
					Metadata: domain.ChunkMetadata{
						CharStart:    0,
						CharEnd:      len(goodText),
						Heading:      "Introduction",
						QualityScore: &score,
					},
				},
			},
			PageCount:  3,
			OCRApplied: false,
		},
	}

	require.NoError(t, orch.HandleCallback(ctx, payload))

	doc, err := store.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, doc.Status)
	assert.Equal(t, goodText, doc.ProcessedContent)

	chunks, err := store.GetChunks(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, domain.SyncPending, chunks[0].SyncStatus)
	assert.Equal(t, 0.85, chunks[0].QualityScore)
	assert.Equal(t, "Introduction", chunks[0].Heading)
	assert.Len(t, chunks[0].DenseVector, domain.DefaultDenseDimensions)

	counts, err := queue.Counts(ctx)
	require.NoError(t, err)
	assert.Zero(t, counts.Ready+counts.Leased+counts.Scheduled)
}

func TestHandleCallbackLocalChunkingFallback(t *testing.T) {
	ctx := context.Background()
	dispatcher := &mockDispatcher{}
	orch, store, queue := newTestOrchestrator(dispatcher)
	qj := seedDocument(t, store, queue, "doc-1")
	require.NoError(t, orch.HandleJob(ctx, qj))

	payload := domain.CallbackPayload{
		DocumentID: "doc-1",
		Success:    true,
		Result:     &domain.CallbackResult{Text: goodText},
	}
	require.NoError(t, orch.HandleCallback(ctx, payload))

	chunks, err := store.GetChunks(ctx, "doc-1")
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.Equal(t, domain.SyncPending, c.SyncStatus)
		assert.Empty(t, c.DenseVector)
		assert.Greater(t, c.QualityScore, 0.0)
	}
}

func TestHandleCallbackQualityGateRejects(t *testing.T) {
	ctx := context.Background()
	dispatcher := &mockDispatcher{}
	orch, store, queue := newTestOrchestrator(dispatcher)
	qj := seedDocument(t, store, queue, "doc-1")
	require.NoError(t, orch.HandleJob(ctx, qj))

	payload := domain.CallbackPayload{
		DocumentID: "doc-1",
		Success:    true,
		Result:     &domain.CallbackResult{Text: "too short"},
	}
	require.NoError(t, orch.HandleCallback(ctx, payload))

	doc, err := store.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, doc.Status)
	assert.Equal(t, "TEXT_TOO_SHORT", doc.FailReason)

	counts, err := queue.Counts(ctx)
	require.NoError(t, err)
	assert.Zero(t, counts.Ready+counts.Leased+counts.Scheduled)
}

func TestHandleCallbackDuplicateIsNoOp(t *testing.T) {
	ctx := context.Background()
	dispatcher := &mockDispatcher{}
	orch, store, queue := newTestOrchestrator(dispatcher)
	qj := seedDocument(t, store, queue, "doc-1")
	require.NoError(t, orch.HandleJob(ctx, qj))

	payload := domain.CallbackPayload{
		DocumentID: "doc-1",
		Success:    true,
		Result:     &domain.CallbackResult{Text: goodText},
	}
	require.NoError(t, orch.HandleCallback(ctx, payload))

	first, err := store.GetDocument(ctx, "doc-1")
	require.NoError(t, err)

	// A replayed callback must not rewrite the document.
	replay := domain.CallbackPayload{
		DocumentID: "doc-1",
		Success:    true,
		Result:     &domain.CallbackResult{Text: goodText + " replayed extra content follows here."},
	}
	require.NoError(t, orch.HandleCallback(ctx, replay))

	second, err := store.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, first.ProcessedContent, second.ProcessedContent)
}

func TestHandleCallbackPermanentWorkerError(t *testing.T) {
	ctx := context.Background()
	dispatcher := &mockDispatcher{}
	orch, store, queue := newTestOrchestrator(dispatcher)
	qj := seedDocument(t, store, queue, "doc-1")
	require.NoError(t, orch.HandleJob(ctx, qj))

	payload := domain.CallbackPayload{
		DocumentID: "doc-1",
		Success:    false,
		Error:      &domain.CallbackError{Code: domain.CodeCorruptFile, Message: "bad xref table"},
	}
	require.NoError(t, orch.HandleCallback(ctx, payload))

	doc, err := store.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, doc.Status)
	assert.Equal(t, domain.CodeCorruptFile, doc.FailReason)

	counts, err := queue.Counts(ctx)
	require.NoError(t, err)
	assert.Zero(t, counts.Ready+counts.Leased+counts.Scheduled)
}

func TestHandleCallbackTransientWorkerErrorRetries(t *testing.T) {
	ctx := context.Background()
	dispatcher := &mockDispatcher{}
	orch, store, queue := newTestOrchestrator(dispatcher)
	qj := seedDocument(t, store, queue, "doc-1")
	require.NoError(t, orch.HandleJob(ctx, qj))

	payload := domain.CallbackPayload{
		DocumentID: "doc-1",
		Success:    false,
		Error:      &domain.CallbackError{Code: domain.CodeTimeout, Message: "conversion timed out"},
	}
	require.NoError(t, orch.HandleCallback(ctx, payload))

	// First attempt failed transiently: job scheduled for redelivery.
	doc, err := store.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, doc.Status)

	counts, err := queue.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Scheduled)
}

func TestHandleCallbackTransientWorkerErrorExhausted(t *testing.T) {
	ctx := context.Background()
	dispatcher := &mockDispatcher{}
	orch, store, queue := newTestOrchestrator(dispatcher)

	now := time.Now()
	queue.SetClock(func() time.Time { return now })
	qj := seedDocument(t, store, queue, "doc-1")

	payload := domain.CallbackPayload{
		DocumentID: "doc-1",
		Success:    false,
		Error:      &domain.CallbackError{Code: domain.CodeTimeout, Message: "conversion timed out"},
	}

	for attempt := 1; attempt <= 3; attempt++ {
		require.NoError(t, orch.HandleJob(ctx, qj))
		require.NoError(t, orch.HandleCallback(ctx, payload))
		if attempt == 3 {
			break
		}
		now = now.Add(time.Minute)
		var err error
		qj, err = queue.Dequeue(ctx)
		require.NoError(t, err)
		require.NotNil(t, qj)
	}

	doc, err := store.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, doc.Status)
	assert.Equal(t, "TIMEOUT: conversion timed out", doc.FailReason)
}

func TestHandleCallbackMissingDocumentID(t *testing.T) {
	dispatcher := &mockDispatcher{}
	orch, _, _ := newTestOrchestrator(dispatcher)

	err := orch.HandleCallback(context.Background(), domain.CallbackPayload{Success: true})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
