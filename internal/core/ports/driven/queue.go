package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/sercha-pipeline/internal/core/domain"
)

// QueuedJob is a claimed queue message. Attempt is the 1-based count of
// deliveries including this one.
type QueuedJob struct {
	ID      int64
	Attempt int
	Job     domain.ProcessingJob
}

// QueueCounts summarises queue depth for status reporting.
type QueueCounts struct {
	// Ready jobs are deliverable now.
	Ready int

	// Leased jobs are claimed by a worker and awaiting completion.
	Leased int

	// Scheduled jobs are waiting out a retry backoff.
	Scheduled int
}

// JobQueue is a durable, at-least-once delivery queue for processing
// jobs. A dequeued job is held under a lease long enough to cover
// worst-case conversion latency; lease expiry without acknowledgement
// makes the job eligible for redelivery. Consumers must be idempotent.
type JobQueue interface {
	// Enqueue adds a job for delivery.
	Enqueue(ctx context.Context, job domain.ProcessingJob) error

	// Dequeue claims the next ready job under a lease. Returns nil with
	// no error when nothing is ready.
	Dequeue(ctx context.Context) (*QueuedJob, error)

	// Ack removes a completed job.
	Ack(ctx context.Context, id int64) error

	// Release schedules a leased job for redelivery after the given
	// delay, preserving its attempt count.
	Release(ctx context.Context, id int64, delay time.Duration) error

	// Discard removes a job terminally without completing it.
	Discard(ctx context.Context, id int64) error

	// FindByDocument returns the most recent job for a document, leased
	// or not, so the callback path can correlate results to in-flight
	// work. Returns nil with no error when none exists.
	FindByDocument(ctx context.Context, documentID string) (*QueuedJob, error)

	// Counts reports queue depth.
	Counts(ctx context.Context) (QueueCounts, error)
}
