package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	// Returned on a duplicate content hash at upload.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDocumentProcessing indicates an operation is forbidden while the
	// document is being processed (e.g. deletion).
	ErrDocumentProcessing = errors.New("document is processing")

	// ErrVectorIndexUnavailable indicates the external vector index is
	// not configured. Semantic search and outbox sync are disabled.
	ErrVectorIndexUnavailable = errors.New("vector index unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not
	// configured. Query-time vector search is disabled.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrSearchUnavailable indicates the keyword search engine is not
	// configured.
	ErrSearchUnavailable = errors.New("search engine unavailable")
)
