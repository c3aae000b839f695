package domain

import (
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"
)

// DocumentFormat identifies the source file format of an uploaded document.
type DocumentFormat string

// Supported document formats.
const (
	FormatPDF      DocumentFormat = "pdf"
	FormatDOCX     DocumentFormat = "docx"
	FormatPPTX     DocumentFormat = "pptx"
	FormatXLSX     DocumentFormat = "xlsx"
	FormatHTML     DocumentFormat = "html"
	FormatMarkdown DocumentFormat = "md"
	FormatEPUB     DocumentFormat = "epub"
	FormatCSV      DocumentFormat = "csv"
	FormatText     DocumentFormat = "txt"
)

// FormatFromFilename detects the document format from the file
// extension. Returns false for unsupported extensions.
func FormatFromFilename(name string) (DocumentFormat, bool) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	switch DocumentFormat(ext) {
	case FormatPDF, FormatDOCX, FormatPPTX, FormatXLSX, FormatHTML,
		FormatMarkdown, FormatEPUB, FormatCSV, FormatText:
		return DocumentFormat(ext), true
	case "markdown":
		return FormatMarkdown, true
	case "htm":
		return FormatHTML, true
	}
	return "", false
}

// DocumentStatus tracks a document through the processing pipeline.
type DocumentStatus string

// Document lifecycle states.
const (
	StatusPending    DocumentStatus = "PENDING"
	StatusProcessing DocumentStatus = "PROCESSING"
	StatusCompleted  DocumentStatus = "COMPLETED"
	StatusFailed     DocumentStatus = "FAILED"
)

// MaxFailReasonLength bounds the persisted failure reason.
const MaxFailReasonLength = 500

// Document represents one uploaded source file and its processing state.
//
// ContentHash is the dedup key: a second upload with the same digest is
// rejected rather than creating a new row. Status transitions are owned
// exclusively by the orchestrator; no other component writes them.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// Filename is the original upload name.
	Filename string

	// Format is the detected source format.
	Format DocumentFormat

	// SourcePath is the absolute path of the uploaded file, kept so a
	// failed document can be re-dispatched.
	SourcePath string

	// ContentHash is the SHA-256 digest of the raw file, globally unique.
	ContentHash string

	// Status is the pipeline state.
	Status DocumentStatus

	// FailReason holds the terminal failure reason, bounded to
	// MaxFailReasonLength characters. Empty unless Status is FAILED.
	FailReason string

	// RetryCount is the number of dispatch attempts made so far.
	RetryCount int

	// ProcessedContent is the extracted markdown text. Non-empty whenever
	// Status is COMPLETED.
	ProcessedContent string

	// IsActive soft-enables the document for retrieval.
	IsActive bool

	// CreatedAt is when the document was registered.
	CreatedAt time.Time

	// UpdatedAt is when the document last changed.
	UpdatedAt time.Time
}

// TruncateFailReason bounds a failure reason before persistence. The cut
// backs up to a rune boundary so the stored reason stays valid UTF-8.
func TruncateFailReason(reason string) string {
	if len(reason) <= MaxFailReasonLength {
		return reason
	}
	cut := MaxFailReasonLength
	for cut > 0 && !utf8.RuneStart(reason[cut]) {
		cut--
	}
	return reason[:cut]
}
