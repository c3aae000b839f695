package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-pipeline/internal/core/domain"
)

var (
	ingestOCRMode   string
	ingestLanguages []string
	ingestProfile   string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file...]",
	Short: "Register documents for processing",
	Long: `Registers one or more files, deduplicates them by content hash, and
enqueues processing jobs for the external conversion worker.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestOCRMode, "ocr", "auto", "OCR mode: auto, force, or never")
	ingestCmd.Flags().StringSliceVar(&ingestLanguages, "lang", nil, "OCR language hints (e.g. en, vi)")
	ingestCmd.Flags().StringVar(&ingestProfile, "profile", "", "worker processing profile override")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	ocrMode := domain.OCRMode(ingestOCRMode)
	switch ocrMode {
	case domain.OCRModeAuto, domain.OCRModeForce, domain.OCRModeNever:
	default:
		return fmt.Errorf("invalid OCR mode: %s", ingestOCRMode)
	}

	cfg := domain.JobConfig{
		OCRMode:   ocrMode,
		Languages: ingestLanguages,
		Profile:   ingestProfile,
	}

	ctx := cmd.Context()
	var failed int
	for _, path := range args {
		doc, err := ingestService.Ingest(ctx, path, cfg)
		switch {
		case errors.Is(err, domain.ErrAlreadyExists):
			cmd.Printf("  %s: already registered as %s\n", path, doc.ID)
		case err != nil:
			cmd.Printf("  %s: %v\n", path, err)
			failed++
		default:
			cmd.Printf("  %s: registered as %s (%s)\n", path, doc.ID, doc.Format)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed to register", failed, len(args))
	}
	return nil
}
