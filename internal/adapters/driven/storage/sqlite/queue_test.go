package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-pipeline/internal/core/domain"
)

func testJob(docID string) domain.ProcessingJob {
	return domain.ProcessingJob{
		DocumentID: docID,
		SourcePath: "/uploads/" + docID + ".pdf",
		Format:     domain.FormatPDF,
		Config:     domain.JobConfig{OCRMode: domain.OCRModeAuto},
	}
}

func TestQueueEnqueueDequeue(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	queue := store.JobQueue(time.Minute)

	require.NoError(t, queue.Enqueue(ctx, testJob("doc-1")))

	qj, err := queue.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, qj)
	assert.Equal(t, 1, qj.Attempt)
	assert.Equal(t, "doc-1", qj.Job.DocumentID)
	assert.Equal(t, domain.OCRModeAuto, qj.Job.Config.OCRMode)

	// The claimed job is leased, not deliverable again.
	second, err := queue.Dequeue(ctx)
	require.NoError(t, err)
	assert.Nil(t, second)
}

func TestQueueDequeueEmpty(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	qj, err := store.JobQueue(time.Minute).Dequeue(context.Background())
	require.NoError(t, err)
	assert.Nil(t, qj)
}

func TestQueueFIFOOrder(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	queue := store.JobQueue(time.Minute)

	require.NoError(t, queue.Enqueue(ctx, testJob("doc-1")))
	require.NoError(t, queue.Enqueue(ctx, testJob("doc-2")))

	first, err := queue.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "doc-1", first.Job.DocumentID)

	second, err := queue.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, "doc-2", second.Job.DocumentID)
}

func TestQueueAckRemovesJob(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	queue := store.JobQueue(time.Minute)

	require.NoError(t, queue.Enqueue(ctx, testJob("doc-1")))
	qj, err := queue.Dequeue(ctx)
	require.NoError(t, err)
	require.NoError(t, queue.Ack(ctx, qj.ID))

	counts, err := queue.Counts(ctx)
	require.NoError(t, err)
	assert.Zero(t, counts.Ready+counts.Leased+counts.Scheduled)
}

func TestQueueReleaseSchedulesRedelivery(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	queue := store.JobQueue(time.Minute)

	require.NoError(t, queue.Enqueue(ctx, testJob("doc-1")))
	qj, err := queue.Dequeue(ctx)
	require.NoError(t, err)

	require.NoError(t, queue.Release(ctx, qj.ID, time.Hour))

	counts, err := queue.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Scheduled)

	// Not deliverable until the backoff elapses.
	next, err := queue.Dequeue(ctx)
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestQueueReleasePreservesAttempts(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	queue := store.JobQueue(time.Minute)

	require.NoError(t, queue.Enqueue(ctx, testJob("doc-1")))
	qj, err := queue.Dequeue(ctx)
	require.NoError(t, err)
	require.NoError(t, queue.Release(ctx, qj.ID, 0))

	again, err := queue.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, 2, again.Attempt)
}

func TestQueueLeaseExpiryRedelivers(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	queue := store.JobQueue(50 * time.Millisecond)

	require.NoError(t, queue.Enqueue(ctx, testJob("doc-1")))
	first, err := queue.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, first)

	time.Sleep(80 * time.Millisecond)

	// Lease lapsed without an Ack: the job is delivered again with an
	// incremented attempt count.
	second, err := queue.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, second.Attempt)
}

func TestQueueFindByDocument(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	queue := store.JobQueue(time.Minute)

	require.NoError(t, queue.Enqueue(ctx, testJob("doc-1")))
	require.NoError(t, queue.Enqueue(ctx, testJob("doc-2")))

	found, err := queue.FindByDocument(ctx, "doc-2")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "doc-2", found.Job.DocumentID)

	missing, err := queue.FindByDocument(ctx, "doc-3")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestQueueCounts(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	queue := store.JobQueue(time.Minute)

	require.NoError(t, queue.Enqueue(ctx, testJob("doc-1")))
	require.NoError(t, queue.Enqueue(ctx, testJob("doc-2")))
	require.NoError(t, queue.Enqueue(ctx, testJob("doc-3")))

	leased, err := queue.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, leased)

	scheduled, err := queue.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, scheduled)
	require.NoError(t, queue.Release(ctx, scheduled.ID, time.Hour))

	counts, err := queue.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Ready)
	assert.Equal(t, 1, counts.Leased)
	assert.Equal(t, 1, counts.Scheduled)
}
