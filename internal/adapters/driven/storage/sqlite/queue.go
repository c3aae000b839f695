package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/custodia-labs/sercha-pipeline/internal/core/domain"
	"github.com/custodia-labs/sercha-pipeline/internal/core/ports/driven"
)

// jobQueue implements driven.JobQueue on the jobs table. Delivery is
// at-least-once: a claimed row carries a lease and becomes deliverable
// again once the lease lapses without an Ack.
type jobQueue struct {
	store    *Store
	leaseFor time.Duration
}

var _ driven.JobQueue = (*jobQueue)(nil)

// Enqueue adds a job for delivery.
func (q *jobQueue) Enqueue(ctx context.Context, job domain.ProcessingJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshalling job: %w", err)
	}

	now := time.Now().UTC()
	_, err = q.store.db.ExecContext(ctx, `
		INSERT INTO jobs (document_id, payload, attempts, next_attempt_at, created_at)
		VALUES (?, ?, 0, ?, ?)
	`, job.DocumentID, string(payload), now, now)
	if err != nil {
		return fmt.Errorf("enqueueing job: %w", err)
	}
	return nil
}

// Dequeue claims the next ready job under a lease. The claim runs in a
// transaction so concurrent workers never deliver the same row twice.
func (q *jobQueue) Dequeue(ctx context.Context) (*driven.QueuedJob, error) {
	tx, err := q.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	row := tx.QueryRowContext(ctx, `
		SELECT id, attempts, payload FROM jobs
		WHERE next_attempt_at <= ? AND (leased_until IS NULL OR leased_until <= ?)
		ORDER BY id
		LIMIT 1
	`, now, now)

	var id int64
	var attempts int
	var payload string
	if err := row.Scan(&id, &attempts, &payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("claiming job: %w", err)
	}

	attempts++
	leasedUntil := now.Add(q.leaseFor)
	if _, err := tx.ExecContext(ctx, `
		UPDATE jobs SET attempts = ?, leased_until = ? WHERE id = ?
	`, attempts, leasedUntil, id); err != nil {
		return nil, fmt.Errorf("leasing job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing claim: %w", err)
	}

	var job domain.ProcessingJob
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		return nil, fmt.Errorf("unmarshalling job %d: %w", id, err)
	}

	return &driven.QueuedJob{ID: id, Attempt: attempts, Job: job}, nil
}

// Ack removes a completed job.
func (q *jobQueue) Ack(ctx context.Context, id int64) error {
	if _, err := q.store.db.ExecContext(ctx, "DELETE FROM jobs WHERE id = ?", id); err != nil {
		return fmt.Errorf("acking job %d: %w", id, err)
	}
	return nil
}

// Release schedules a leased job for redelivery after the delay.
func (q *jobQueue) Release(ctx context.Context, id int64, delay time.Duration) error {
	res, err := q.store.db.ExecContext(ctx, `
		UPDATE jobs SET leased_until = NULL, next_attempt_at = ? WHERE id = ?
	`, time.Now().UTC().Add(delay), id)
	if err != nil {
		return fmt.Errorf("releasing job %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking release of %d: %w", id, err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Discard removes a job terminally.
func (q *jobQueue) Discard(ctx context.Context, id int64) error {
	if _, err := q.store.db.ExecContext(ctx, "DELETE FROM jobs WHERE id = ?", id); err != nil {
		return fmt.Errorf("discarding job %d: %w", id, err)
	}
	return nil
}

// FindByDocument returns the most recent job for a document.
func (q *jobQueue) FindByDocument(ctx context.Context, documentID string) (*driven.QueuedJob, error) {
	row := q.store.db.QueryRowContext(ctx, `
		SELECT id, attempts, payload FROM jobs
		WHERE document_id = ?
		ORDER BY id DESC
		LIMIT 1
	`, documentID)

	var id int64
	var attempts int
	var payload string
	if err := row.Scan(&id, &attempts, &payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("finding job for %s: %w", documentID, err)
	}

	var job domain.ProcessingJob
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		return nil, fmt.Errorf("unmarshalling job %d: %w", id, err)
	}

	return &driven.QueuedJob{ID: id, Attempt: attempts, Job: job}, nil
}

// Counts reports queue depth.
func (q *jobQueue) Counts(ctx context.Context) (driven.QueueCounts, error) {
	now := time.Now().UTC()
	row := q.store.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN leased_until > ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN (leased_until IS NULL OR leased_until <= ?) AND next_attempt_at > ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN (leased_until IS NULL OR leased_until <= ?) AND next_attempt_at <= ? THEN 1 ELSE 0 END), 0)
		FROM jobs
	`, now, now, now, now, now)

	var counts driven.QueueCounts
	if err := row.Scan(&counts.Leased, &counts.Scheduled, &counts.Ready); err != nil {
		return driven.QueueCounts{}, fmt.Errorf("counting jobs: %w", err)
	}
	return counts, nil
}
