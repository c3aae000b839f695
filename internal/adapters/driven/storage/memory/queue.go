package memory

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-pipeline/internal/core/domain"
	"github.com/custodia-labs/sercha-pipeline/internal/core/ports/driven"
)

// Ensure JobQueue implements the interface.
var _ driven.JobQueue = (*JobQueue)(nil)

// queuedJob is one queue row.
type queuedJob struct {
	id          int64
	attempts    int
	job         domain.ProcessingJob
	readyAt     time.Time
	leasedUntil time.Time
}

// JobQueue is an in-memory implementation of driven.JobQueue with the
// same lease semantics as the durable SQLite queue.
type JobQueue struct {
	mu       sync.Mutex
	nextID   int64
	jobs     map[int64]*queuedJob
	leaseFor time.Duration
	now      func() time.Time
}

// NewJobQueue creates a new in-memory job queue.
func NewJobQueue(leaseFor time.Duration) *JobQueue {
	if leaseFor <= 0 {
		leaseFor = 5 * time.Minute
	}
	return &JobQueue{
		jobs:     make(map[int64]*queuedJob),
		leaseFor: leaseFor,
		now:      time.Now,
	}
}

// SetClock overrides the clock, for tests exercising lease expiry.
func (q *JobQueue) SetClock(now func() time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.now = now
}

// Enqueue adds a job for delivery.
func (q *JobQueue) Enqueue(_ context.Context, job domain.ProcessingJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nextID++
	q.jobs[q.nextID] = &queuedJob{
		id:      q.nextID,
		job:     job,
		readyAt: q.now(),
	}
	return nil
}

// Dequeue claims the next ready job under a lease.
func (q *JobQueue) Dequeue(_ context.Context) (*driven.QueuedJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.now()

	var best *queuedJob
	for _, j := range q.jobs {
		if j.readyAt.After(now) {
			continue
		}
		if j.leasedUntil.After(now) {
			continue
		}
		if best == nil || j.id < best.id {
			best = j
		}
	}
	if best == nil {
		return nil, nil
	}

	best.attempts++
	best.leasedUntil = now.Add(q.leaseFor)
	return &driven.QueuedJob{ID: best.id, Attempt: best.attempts, Job: best.job}, nil
}

// Ack removes a completed job.
func (q *JobQueue) Ack(_ context.Context, id int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.jobs, id)
	return nil
}

// Release schedules a leased job for redelivery after the delay.
func (q *JobQueue) Release(_ context.Context, id int64, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	j, ok := q.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	j.leasedUntil = time.Time{}
	j.readyAt = q.now().Add(delay)
	return nil
}

// Discard removes a job terminally.
func (q *JobQueue) Discard(_ context.Context, id int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.jobs, id)
	return nil
}

// FindByDocument returns the most recent job for a document.
func (q *JobQueue) FindByDocument(_ context.Context, documentID string) (*driven.QueuedJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var best *queuedJob
	for _, j := range q.jobs {
		if j.job.DocumentID != documentID {
			continue
		}
		if best == nil || j.id > best.id {
			best = j
		}
	}
	if best == nil {
		return nil, nil
	}
	return &driven.QueuedJob{ID: best.id, Attempt: best.attempts, Job: best.job}, nil
}

// Counts reports queue depth.
func (q *JobQueue) Counts(_ context.Context) (driven.QueueCounts, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.now()
	var counts driven.QueueCounts
	for _, j := range q.jobs {
		switch {
		case j.leasedUntil.After(now):
			counts.Leased++
		case j.readyAt.After(now):
			counts.Scheduled++
		default:
			counts.Ready++
		}
	}
	return counts, nil
}
