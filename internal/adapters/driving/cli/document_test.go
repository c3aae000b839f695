package cli

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-pipeline/internal/core/domain"
)

func seedCLIDocument(t *testing.T, status domain.DocumentStatus) *domain.Document {
	t.Helper()
	now := time.Now().UTC()
	doc := &domain.Document{
		ID:          "doc-cli",
		Filename:    "manual.pdf",
		Format:      domain.FormatPDF,
		SourcePath:  "/tmp/manual.pdf",
		ContentHash: "hash-cli",
		Status:      status,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, testDocStore.CreateDocument(context.Background(), doc))
	return doc
}

func TestDocumentGetCmd_ShowsDocument(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	seedCLIDocument(t, domain.StatusCompleted)

	out, err := executeCommand("document", "get", "doc-cli")

	assert.NoError(t, err)
	assert.Contains(t, out, "doc-cli")
	assert.Contains(t, out, "manual.pdf")
	assert.Contains(t, out, "COMPLETED")
}

func TestDocumentGetCmd_NotFound(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	_, err := executeCommand("document", "get", "ghost")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get document")
}

func TestDocumentContentCmd_PrintsContent(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	doc := seedCLIDocument(t, domain.StatusProcessing)
	require.NoError(t, testDocStore.CompleteDocument(
		context.Background(), doc.ID, "# Extracted manual text", nil))

	out, err := executeCommand("document", "content", "doc-cli")

	assert.NoError(t, err)
	assert.Contains(t, out, "# Extracted manual text")
}

func TestDocumentContentCmd_NoContent(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	seedCLIDocument(t, domain.StatusPending)

	_, err := executeCommand("document", "content", "doc-cli")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no processed content")
}

func TestDocumentRetryCmd_ReenqueuesFailed(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	seedCLIDocument(t, domain.StatusFailed)

	out, err := executeCommand("document", "retry", "doc-cli")

	assert.NoError(t, err)
	assert.Contains(t, out, "re-enqueued")

	counts, err := testQueue.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Ready)
}

func TestDocumentRetryCmd_RejectsCompleted(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	seedCLIDocument(t, domain.StatusCompleted)

	_, err := executeCommand("document", "retry", "doc-cli")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to retry")
}

func TestDocumentDeleteCmd_RemovesDocument(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	seedCLIDocument(t, domain.StatusCompleted)

	out, err := executeCommand("document", "delete", "doc-cli")

	assert.NoError(t, err)
	assert.Contains(t, out, "deleted")

	_, err = testDocStore.GetDocument(context.Background(), "doc-cli")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
