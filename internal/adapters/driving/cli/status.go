package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-pipeline/internal/core/domain"
)

var statusCmd = &cobra.Command{
	Use:   "status [doc-id]",
	Short: "Show pipeline status",
	Long: `Summarises document states, chunk sync states, and queue depth.
With a document ID, shows that document's state instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	if len(args) == 1 {
		return runDocumentGet(cmd, args)
	}

	status, err := ingestService.Status(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}

	cmd.Println("Documents:")
	for _, s := range []domain.DocumentStatus{
		domain.StatusPending, domain.StatusProcessing, domain.StatusCompleted, domain.StatusFailed,
	} {
		cmd.Printf("  %-12s %d\n", s, status.Documents[s])
	}

	cmd.Println("\nChunks:")
	for _, s := range []domain.SyncStatus{domain.SyncPending, domain.SyncSynced, domain.SyncFailed} {
		cmd.Printf("  %-12s %d\n", s, status.Chunks[s])
	}

	cmd.Println("\nQueue:")
	cmd.Printf("  %-12s %d\n", "ready", status.QueueReady)
	cmd.Printf("  %-12s %d\n", "leased", status.QueueLeased)
	cmd.Printf("  %-12s %d\n", "scheduled", status.QueueScheduled)

	return nil
}
