// Package sqlite provides the durable document store, keyword search
// index and job queue, all backed by a single SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/sercha-pipeline/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/sercha-pipeline/internal/core/domain"
	"github.com/custodia-labs/sercha-pipeline/internal/core/ports/driven"
)

// Store is a unified SQLite-based storage that provides the document
// store, the keyword search engine and the job queue through wrapper
// types sharing one connection.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.sercha-pipeline/data/pipeline.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".sercha-pipeline", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "pipeline.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// DocumentStore returns a DocumentStore interface backed by this store.
func (s *Store) DocumentStore() driven.DocumentStore {
	return &documentStore{store: s}
}

// SearchEngine returns a keyword SearchEngine backed by the FTS index.
func (s *Store) SearchEngine() driven.SearchEngine {
	return &searchEngine{store: s}
}

// JobQueue returns a JobQueue interface backed by this store.
func (s *Store) JobQueue(leaseFor time.Duration) driven.JobQueue {
	if leaseFor <= 0 {
		leaseFor = 5 * time.Minute
	}
	return &jobQueue{store: s, leaseFor: leaseFor}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}

		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Document Store ====================

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

const documentColumns = `id, filename, format, source_path, content_hash, status,
	fail_reason, retry_count, processed_content, is_active, created_at, updated_at`

// CreateDocument stores a new document.
func (s *documentStore) CreateDocument(ctx context.Context, doc *domain.Document) error {
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, doc.ID, doc.Filename, string(doc.Format), doc.SourcePath, doc.ContentHash,
		string(doc.Status), doc.FailReason, doc.RetryCount, doc.ProcessedContent,
		doc.IsActive, doc.CreatedAt, doc.UpdatedAt)

	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("creating document: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *documentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT `+documentColumns+` FROM documents WHERE id = ?
	`, id)
	return scanDocument(row)
}

// GetDocumentByHash retrieves a document by content hash.
func (s *documentStore) GetDocumentByHash(ctx context.Context, hash string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT `+documentColumns+` FROM documents WHERE content_hash = ?
	`, hash)
	return scanDocument(row)
}

// ListDocuments returns all documents.
func (s *documentStore) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+documentColumns+` FROM documents ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocumentRows(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

// CountDocumentsByStatus returns document counts per status.
func (s *documentStore) CountDocumentsByStatus(ctx context.Context) (map[domain.DocumentStatus]int, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM documents GROUP BY status
	`)
	if err != nil {
		return nil, fmt.Errorf("counting documents: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.DocumentStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scanning count: %w", err)
		}
		counts[domain.DocumentStatus(status)] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating counts: %w", err)
	}
	return counts, nil
}

// MarkProcessing transitions a document to PROCESSING.
func (s *documentStore) MarkProcessing(ctx context.Context, id string, retryCount int) error {
	return s.updateDocument(ctx, id, `
		UPDATE documents SET status = ?, retry_count = ?, updated_at = ? WHERE id = ?
	`, string(domain.StatusProcessing), retryCount, time.Now().UTC(), id)
}

// MarkFailed transitions a document to FAILED with a reason.
func (s *documentStore) MarkFailed(ctx context.Context, id, reason string) error {
	return s.updateDocument(ctx, id, `
		UPDATE documents SET status = ?, fail_reason = ?, updated_at = ? WHERE id = ?
	`, string(domain.StatusFailed), domain.TruncateFailReason(reason), time.Now().UTC(), id)
}

// CompleteDocument stores content and chunks and marks COMPLETED, all
// in one transaction so readers never see a partial chunk set.
func (s *documentStore) CompleteDocument(ctx context.Context, id, processedContent string, chunks []domain.Chunk) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `
		UPDATE documents SET status = ?, fail_reason = '', processed_content = ?, updated_at = ?
		WHERE id = ?
	`, string(domain.StatusCompleted), processedContent, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("updating document: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", id); err != nil {
		return fmt.Errorf("clearing previous chunks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, content, chunk_index, char_start, char_end,
			heading, dense_vector, sparse_indices, sparse_values, quality_score, quality_flags, sync_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		flagsJSON, err := json.Marshal(chunk.QualityFlags)
		if err != nil {
			return fmt.Errorf("marshalling quality flags: %w", err)
		}

		if _, err := stmt.ExecContext(ctx, chunk.ID, chunk.DocumentID, chunk.Content,
			chunk.ChunkIndex, chunk.CharStart, chunk.CharEnd, chunk.Heading,
			float32SliceToBytes(chunk.DenseVector),
			uint32SliceToBytes(chunk.SparseVector.Indices),
			float32SliceToBytes(chunk.SparseVector.Values),
			chunk.QualityScore, string(flagsJSON), string(chunk.SyncStatus)); err != nil {
			return fmt.Errorf("saving chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// ResetForRetry transitions a document back to PENDING.
func (s *documentStore) ResetForRetry(ctx context.Context, id string) error {
	return s.updateDocument(ctx, id, `
		UPDATE documents SET status = ?, fail_reason = '', retry_count = 0, updated_at = ? WHERE id = ?
	`, string(domain.StatusPending), time.Now().UTC(), id)
}

// DeleteDocument removes a document and its chunks.
func (s *documentStore) DeleteDocument(ctx context.Context, id string) error {
	doc, err := s.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	if doc.Status == domain.StatusProcessing {
		return domain.ErrDocumentProcessing
	}

	if _, err := s.store.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return nil
}

// updateDocument runs an UPDATE and maps zero affected rows to ErrNotFound.
func (s *documentStore) updateDocument(ctx context.Context, id, query string, args ...any) error {
	res, err := s.store.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating document %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update of %s: %w", id, err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

const chunkColumns = `id, document_id, content, chunk_index, char_start, char_end,
	heading, dense_vector, sparse_indices, sparse_values, quality_score, quality_flags, sync_status`

// GetChunk retrieves a specific chunk by ID.
func (s *documentStore) GetChunk(ctx context.Context, id string) (*domain.Chunk, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT `+chunkColumns+` FROM chunks WHERE id = ?
	`, id)

	chunk, err := scanChunk(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return chunk, err
}

// GetChunks retrieves all chunks for a document, ordered by index.
func (s *documentStore) GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+chunkColumns+` FROM chunks WHERE document_id = ? ORDER BY chunk_index
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	return collectChunks(rows)
}

// ListPendingChunks returns up to limit chunks awaiting sync.
func (s *documentStore) ListPendingChunks(ctx context.Context, documentID string, limit int) ([]domain.Chunk, error) {
	query := `SELECT ` + chunkColumns + ` FROM chunks WHERE sync_status = ?`
	args := []any{string(domain.SyncPending)}
	if documentID != "" {
		query += " AND document_id = ?"
		args = append(args, documentID)
	}
	query += " ORDER BY document_id, chunk_index LIMIT ?"
	args = append(args, limit)

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying pending chunks: %w", err)
	}
	defer rows.Close()

	return collectChunks(rows)
}

// MarkChunksSynced sets chunks to SYNCED and nulls their vectors.
func (s *documentStore) MarkChunksSynced(ctx context.Context, chunkIDs []string) error {
	return s.updateChunkStatus(ctx, chunkIDs, `
		UPDATE chunks SET sync_status = ?, dense_vector = NULL,
			sparse_indices = NULL, sparse_values = NULL
		WHERE id IN `, string(domain.SyncSynced))
}

// MarkChunksSyncFailed sets chunks to FAILED.
func (s *documentStore) MarkChunksSyncFailed(ctx context.Context, chunkIDs []string) error {
	return s.updateChunkStatus(ctx, chunkIDs, `
		UPDATE chunks SET sync_status = ? WHERE id IN `, string(domain.SyncFailed))
}

func (s *documentStore) updateChunkStatus(ctx context.Context, chunkIDs []string, prefix, status string) error {
	if len(chunkIDs) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(chunkIDs))
	placeholders = "(" + placeholders[:len(placeholders)-1] + ")"

	args := make([]any, 0, len(chunkIDs)+1)
	args = append(args, status)
	for _, id := range chunkIDs {
		args = append(args, id)
	}

	if _, err := s.store.db.ExecContext(ctx, prefix+placeholders, args...); err != nil {
		return fmt.Errorf("updating chunk sync status: %w", err)
	}
	return nil
}

// CountChunksBySyncStatus returns chunk counts per sync status.
func (s *documentStore) CountChunksBySyncStatus(ctx context.Context) (map[domain.SyncStatus]int, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT sync_status, COUNT(*) FROM chunks GROUP BY sync_status
	`)
	if err != nil {
		return nil, fmt.Errorf("counting chunks: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.SyncStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scanning count: %w", err)
		}
		counts[domain.SyncStatus(status)] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating counts: %w", err)
	}
	return counts, nil
}

// ==================== Search Engine ====================

// searchEngine implements driven.SearchEngine over the FTS5 index.
type searchEngine struct {
	store *Store
}

var _ driven.SearchEngine = (*searchEngine)(nil)

// Search performs a BM25-ranked keyword search over chunk content.
// Only chunks of active, completed documents are returned.
func (s *searchEngine) Search(ctx context.Context, query string, limit int) ([]driven.SearchHit, error) {
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}

	// bm25() returns lower-is-better; negate so higher is better.
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT c.id, c.content, -bm25(chunks_fts) AS score
		FROM chunks_fts f
		JOIN chunks c ON c.rowid = f.rowid
		JOIN documents d ON d.id = c.document_id
		WHERE chunks_fts MATCH ? AND d.is_active = 1 AND d.status = ?
		ORDER BY score DESC
		LIMIT ?
	`, match, string(domain.StatusCompleted), limit)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	defer rows.Close()

	var hits []driven.SearchHit //nolint:prealloc // size unknown from query
	for rows.Next() {
		var hit driven.SearchHit
		if err := rows.Scan(&hit.ChunkID, &hit.Content, &hit.Score); err != nil {
			return nil, fmt.Errorf("scanning hit: %w", err)
		}
		hits = append(hits, hit)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating hits: %w", err)
	}
	return hits, nil
}

// ftsQuery converts free text into a safe FTS5 match expression: each
// term is quoted so user punctuation cannot change the query grammar.
func ftsQuery(query string) string {
	terms := strings.Fields(query)
	quoted := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.ReplaceAll(term, `"`, "")
		if term == "" {
			continue
		}
		quoted = append(quoted, `"`+term+`"`)
	}
	return strings.Join(quoted, " ")
}

// ==================== Helper Functions ====================

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

// uint32SliceToBytes converts a []uint32 to a byte slice for storage.
func uint32SliceToBytes(values []uint32) []byte {
	if len(values) == 0 {
		return nil
	}
	buf := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], v)
	}
	return buf
}

// bytesToUint32Slice converts a byte slice back to []uint32.
func bytesToUint32Slice(data []byte) []uint32 {
	if len(data) == 0 {
		return nil
	}
	values := make([]uint32, len(data)/4)
	for i := range values {
		values[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	return values
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDocument scans a single document row.
func scanDocument(row *sql.Row) (*domain.Document, error) {
	doc, err := scanDocumentFields(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return doc, err
}

// scanDocumentRows scans a document from *sql.Rows.
func scanDocumentRows(rows *sql.Rows) (*domain.Document, error) {
	return scanDocumentFields(rows)
}

func scanDocumentFields(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var format, status string

	if err := row.Scan(&doc.ID, &doc.Filename, &format, &doc.SourcePath,
		&doc.ContentHash, &status, &doc.FailReason, &doc.RetryCount,
		&doc.ProcessedContent, &doc.IsActive, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	doc.Format = domain.DocumentFormat(format)
	doc.Status = domain.DocumentStatus(status)
	return &doc, nil
}

// scanChunk scans a single chunk row.
func scanChunk(row rowScanner) (*domain.Chunk, error) {
	var chunk domain.Chunk
	var syncStatus, flagsJSON string
	var denseBlob, sparseIdxBlob, sparseValBlob []byte

	if err := row.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Content, &chunk.ChunkIndex,
		&chunk.CharStart, &chunk.CharEnd, &chunk.Heading,
		&denseBlob, &sparseIdxBlob, &sparseValBlob,
		&chunk.QualityScore, &flagsJSON, &syncStatus); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}

	chunk.DenseVector = bytesToFloat32Slice(denseBlob)
	chunk.SparseVector = domain.SparseVector{
		Indices: bytesToUint32Slice(sparseIdxBlob),
		Values:  bytesToFloat32Slice(sparseValBlob),
	}
	chunk.SyncStatus = domain.SyncStatus(syncStatus)

	if flagsJSON != "" && flagsJSON != "[]" {
		if err := json.Unmarshal([]byte(flagsJSON), &chunk.QualityFlags); err != nil {
			return nil, fmt.Errorf("unmarshalling quality flags: %w", err)
		}
	}

	return &chunk, nil
}

// collectChunks scans all chunk rows.
func collectChunks(rows *sql.Rows) ([]domain.Chunk, error) {
	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, *chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return chunks, nil
}
