package cli

import (
	"github.com/spf13/cobra"
)

var retryCmd = &cobra.Command{
	Use:   "retry [doc-id]",
	Short: "Re-enqueue a failed document",
	Long: `Resets a FAILED document to PENDING, clearing its failure reason and
attempt count, and enqueues a fresh processing job.`,
	Args: cobra.ExactArgs(1),
	RunE: runDocumentRetry,
}

func init() {
	rootCmd.AddCommand(retryCmd)
}
