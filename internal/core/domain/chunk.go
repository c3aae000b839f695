package domain

// SyncStatus tracks a chunk's replication state into the external
// vector index (the outbox pattern).
type SyncStatus string

// Chunk sync states.
const (
	SyncPending SyncStatus = "PENDING"
	SyncSynced  SyncStatus = "SYNCED"
	SyncFailed  SyncStatus = "FAILED"
)

// DefaultDenseDimensions is the dense embedding size produced by the
// conversion worker (BGE-small).
const DefaultDenseDimensions = 384

// SparseVector is a BM25-style sparse embedding as index/value pairs.
type SparseVector struct {
	Indices []uint32
	Values  []float32
}

// IsEmpty reports whether the sparse vector carries no entries.
func (v SparseVector) IsEmpty() bool {
	return len(v.Indices) == 0 || len(v.Values) == 0
}

// Chunk is a searchable text segment owned by exactly one document.
//
// A chunk with SyncStatus SYNCED may have empty vector fields: once
// replicated, the external index is authoritative for retrieval vectors
// and the primary store reclaims the space.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// DocumentID links to the parent document. Chunks are cascade-deleted
	// with it.
	DocumentID string

	// Content is the chunk text.
	Content string

	// ChunkIndex is the 0-based, contiguous position within the document.
	ChunkIndex int

	// CharStart and CharEnd are offsets into the source text, used for
	// citation and highlighting.
	CharStart int
	CharEnd   int

	// Heading is the nearest preceding section title, if any.
	Heading string

	// DenseVector is the fixed-length embedding. Nil once synced.
	DenseVector []float32

	// SparseVector is the keyword-weighted embedding. Empty once synced.
	SparseVector SparseVector

	// QualityScore is the chunk quality assessment in [0, 1].
	QualityScore float64

	// QualityFlags lists detected quality issues.
	QualityFlags []string

	// SyncStatus is the outbox replication state.
	SyncStatus SyncStatus
}

// HasValidVectors reports whether the chunk carries a complete hybrid
// embedding for the given dense dimensionality.
func (c *Chunk) HasValidVectors(dims int) bool {
	return len(c.DenseVector) == dims && !c.SparseVector.IsEmpty()
}
