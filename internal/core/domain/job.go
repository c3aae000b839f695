package domain

// OCRMode controls when the conversion worker applies OCR.
type OCRMode string

// OCR modes accepted by the conversion worker.
const (
	OCRModeAuto  OCRMode = "auto"
	OCRModeForce OCRMode = "force"
	OCRModeNever OCRMode = "never"
)

// JobConfig carries per-job conversion options, passed through opaquely
// to the external worker.
type JobConfig struct {
	// OCRMode selects the OCR strategy.
	OCRMode OCRMode `json:"ocrMode,omitempty"`

	// Languages are OCR language hints (e.g. "en", "vi").
	Languages []string `json:"languages,omitempty"`

	// Profile names a worker-side processing profile override.
	Profile string `json:"profile,omitempty"`
}

// ProcessingJob is the ephemeral queue message that drives one document
// through conversion. It exists only inside the queue; its lifecycle is
// owned by the queue's delivery semantics.
type ProcessingJob struct {
	DocumentID string         `json:"documentId"`
	SourcePath string         `json:"sourcePath"`
	Format     DocumentFormat `json:"format"`
	Config     JobConfig      `json:"config"`
}
