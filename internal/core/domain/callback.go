package domain

// Conversion worker error codes.
const (
	CodePasswordProtected = "PASSWORD_PROTECTED"
	CodeCorruptFile       = "CORRUPT_FILE"
	CodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
	CodeOCRFailed         = "OCR_FAILED"
	CodeTimeout           = "TIMEOUT"
	CodeInternalError     = "INTERNAL_ERROR"
)

// IsPermanentCode reports whether a worker error code is a permanent
// content error. Permanent failures are surfaced immediately and never
// retried; everything else is treated as transient.
func IsPermanentCode(code string) bool {
	switch code {
	case CodePasswordProtected, CodeCorruptFile, CodeUnsupportedFormat:
		return true
	default:
		return false
	}
}

// ConversionError is a tagged failure from dispatch or the conversion
// worker. The Permanent flag is inspected by the retry policy instead of
// matching on error types.
type ConversionError struct {
	Code      string
	Message   string
	Permanent bool
}

func (e *ConversionError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

// ChunkEmbedding is the hybrid (dense + sparse) vector attached to a
// callback chunk.
type ChunkEmbedding struct {
	Dense  []float32 `json:"dense"`
	Sparse struct {
		Indices []uint32  `json:"indices"`
		Values  []float32 `json:"values"`
	} `json:"sparse"`
}

// ChunkMetadata carries per-chunk positioning and quality hints from the
// conversion worker.
type ChunkMetadata struct {
	CharStart    int      `json:"charStart"`
	CharEnd      int      `json:"charEnd"`
	Heading      string   `json:"heading,omitempty"`
	Page         int      `json:"page,omitempty"`
	QualityScore *float64 `json:"qualityScore,omitempty"`
	QualityFlags []string `json:"qualityFlags,omitempty"`
}

// CallbackChunk is one pre-chunked, pre-embedded text segment delivered
// by the conversion worker.
type CallbackChunk struct {
	Content   string         `json:"content"`
	Index     int            `json:"index"`
	Embedding ChunkEmbedding `json:"embedding"`
	Metadata  ChunkMetadata  `json:"metadata"`
}

// CallbackResult is the success payload of a conversion callback.
type CallbackResult struct {
	Text             string          `json:"text"`
	Chunks           []CallbackChunk `json:"chunks"`
	PageCount        int             `json:"pageCount"`
	OCRApplied       bool            `json:"ocrApplied"`
	ProcessingTimeMs int64           `json:"processingTimeMs"`
}

// CallbackError is the failure payload of a conversion callback.
type CallbackError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CallbackPayload is what the external conversion worker posts back once
// out-of-band processing finishes. It is correlated to a document by ID.
type CallbackPayload struct {
	DocumentID string          `json:"documentId"`
	Success    bool            `json:"success"`
	Result     *CallbackResult `json:"result,omitempty"`
	Error      *CallbackError  `json:"error,omitempty"`
}
