package cli

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-pipeline/internal/adapters/driving/callback"
	"github.com/custodia-labs/sercha-pipeline/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the processing pipeline",
	Long: `Starts the queue worker, the background vector sync loop, and the
callback endpoint the conversion worker posts results to. Runs until
interrupted.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if worker == nil || callbackHandler == nil {
		return errors.New("pipeline services not configured")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := callback.NewServer(appConfig.Callback.ListenAddr, callbackHandler)
	if err := server.Start(); err != nil {
		return err
	}
	cmd.Printf("Callback endpoint listening on %s\n", server.URL())

	// Without a vector index the outbox has nothing to drain into.
	if outbox != nil && vectorIndex != nil {
		go func() {
			if err := outbox.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("outbox loop: %v", err)
			}
		}()
	}

	cmd.Println("Pipeline running, press Ctrl+C to stop.")

	// Blocks until the context is cancelled.
	err := worker.Start(ctx)

	if outbox != nil {
		_ = outbox.Stop()
	}
	if stopErr := server.Stop(); stopErr != nil {
		logger.Error("callback server shutdown: %v", stopErr)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	cmd.Println("Pipeline stopped.")
	return nil
}
