package driving

import "context"

// OutboxSynchronizer drains pending chunk vectors into the external
// vector index.
type OutboxSynchronizer interface {
	// Sync drains the pending backlog, optionally scoped to one
	// document (empty documentID drains across all documents). It
	// processes bounded batches with a small delay between them and
	// returns once no PENDING chunks remain in scope.
	Sync(ctx context.Context, documentID string) (*SyncReport, error)
}

// SyncReport summarises one drain run.
type SyncReport struct {
	// Synced is the number of chunks upserted and marked SYNCED.
	Synced int

	// Skipped is the number of chunks marked SYNCED without an upsert
	// because they lacked complete vectors.
	Skipped int

	// Failed is the number of chunks marked FAILED after exhausted
	// upsert retries.
	Failed int

	// Batches is the number of batch calls performed.
	Batches int
}
