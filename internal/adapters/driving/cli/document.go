package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Manage registered documents",
	Long:  `View, retry, or delete registered documents.`,
}

var documentGetCmd = &cobra.Command{
	Use:   "get [doc-id]",
	Short: "Show document info",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentGet,
}

var documentContentCmd = &cobra.Command{
	Use:   "content [doc-id]",
	Short: "Print processed document content",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentContent,
}

var documentRetryCmd = &cobra.Command{
	Use:   "retry [doc-id]",
	Short: "Re-enqueue a failed document",
	Long:  `Resets a FAILED document to PENDING and enqueues a fresh processing job.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentRetry,
}

var documentDeleteCmd = &cobra.Command{
	Use:   "delete [doc-id]",
	Short: "Delete a document and its chunks",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentDelete,
}

func init() {
	documentCmd.AddCommand(documentGetCmd)
	documentCmd.AddCommand(documentContentCmd)
	documentCmd.AddCommand(documentRetryCmd)
	documentCmd.AddCommand(documentDeleteCmd)
	rootCmd.AddCommand(documentCmd)
}

func runDocumentGet(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	doc, err := ingestService.Get(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	cmd.Printf("Document: %s\n\n", doc.ID)
	cmd.Printf("  Filename:  %s\n", doc.Filename)
	cmd.Printf("  Format:    %s\n", doc.Format)
	cmd.Printf("  Status:    %s\n", doc.Status)
	cmd.Printf("  Hash:      %s\n", doc.ContentHash)
	cmd.Printf("  Active:    %t\n", doc.IsActive)
	cmd.Printf("  Attempts:  %d\n", doc.RetryCount)
	if doc.FailReason != "" {
		cmd.Printf("  Failure:   %s\n", doc.FailReason)
	}
	cmd.Printf("  Created:   %s\n", doc.CreatedAt.Format("2006-01-02 15:04:05"))
	cmd.Printf("  Updated:   %s\n", doc.UpdatedAt.Format("2006-01-02 15:04:05"))

	return nil
}

func runDocumentContent(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	doc, err := ingestService.Get(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	if doc.ProcessedContent == "" {
		return fmt.Errorf("document %s has no processed content (status: %s)", doc.ID, doc.Status)
	}

	cmd.Println(doc.ProcessedContent)
	return nil
}

func runDocumentRetry(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	if err := ingestService.Retry(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to retry document: %w", err)
	}

	cmd.Printf("Document %s re-enqueued for processing.\n", args[0])
	return nil
}

func runDocumentDelete(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	if err := ingestService.Delete(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	cmd.Printf("Document %s deleted.\n", args[0])
	return nil
}
