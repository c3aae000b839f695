package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIngestCmd_Use(t *testing.T) {
	assert.Equal(t, "ingest [file...]", ingestCmd.Use)
}

func TestIngestCmd_RequiresArgs(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	_, err := executeCommand("ingest")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg(s)")
}

func TestIngestCmd_RegistersFile(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	path := writeTestFile(t, "report.pdf", "pdf bytes")

	out, err := executeCommand("ingest", path)

	assert.NoError(t, err)
	assert.Contains(t, out, "registered as")
	assert.Contains(t, out, "(pdf)")
}

func TestIngestCmd_ReportsDuplicate(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	path := writeTestFile(t, "report.pdf", "same bytes")

	_, err := executeCommand("ingest", path)
	require.NoError(t, err)

	out, err := executeCommand("ingest", path)

	assert.NoError(t, err)
	assert.Contains(t, out, "already registered")
}

func TestIngestCmd_FailsOnUnsupportedExtension(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	path := writeTestFile(t, "archive.zip", "zip bytes")

	out, err := executeCommand("ingest", path)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to register")
	assert.Contains(t, out, "unsupported file extension")
}

func TestIngestCmd_RejectsInvalidOCRMode(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	path := writeTestFile(t, "report.pdf", "pdf bytes")

	_, err := executeCommand("ingest", "--ocr", "maybe", path)
	defer func() {
		ingestOCRMode = "auto"
	}()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid OCR mode")
}
