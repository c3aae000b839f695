package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync [doc-id]",
	Short: "Push pending chunk vectors to the vector index",
	Long: `Drains the outbox of PENDING chunks into the external vector index.
With a document ID, only that document's backlog is drained.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	if outboxService == nil {
		return errors.New("outbox service not configured")
	}

	documentID := ""
	if len(args) > 0 {
		documentID = args[0]
	}

	report, err := outboxService.Sync(cmd.Context(), documentID)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	cmd.Printf("Sync complete: %d synced, %d skipped, %d failed (%d batches)\n",
		report.Synced, report.Skipped, report.Failed, report.Batches)
	return nil
}
