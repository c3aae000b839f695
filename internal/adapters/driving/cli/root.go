// Package cli implements the command-line interface for the pipeline.
package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-pipeline/internal/adapters/driven/config/file"
	"github.com/custodia-labs/sercha-pipeline/internal/adapters/driven/converter/httpconv"
	"github.com/custodia-labs/sercha-pipeline/internal/adapters/driven/embedding/httpembed"
	"github.com/custodia-labs/sercha-pipeline/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/sercha-pipeline/internal/adapters/driven/vectorindex/qdrant"
	"github.com/custodia-labs/sercha-pipeline/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-pipeline/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-pipeline/internal/core/services"
	"github.com/custodia-labs/sercha-pipeline/internal/logger"
	"github.com/custodia-labs/sercha-pipeline/internal/quality"
)

// version is set at build time via -ldflags.
var version = "dev"

// Persistent flags.
var (
	verboseFlag bool
	configPath  string
	dataDir     string
)

// Services wired by initServices. Tests inject their own and set
// servicesWired to skip initialization.
var (
	servicesWired bool

	appConfig       *file.Config
	store           *sqlite.Store
	jobQueue        driven.JobQueue
	vectorIndex     driven.VectorIndex
	ingestService   driving.IngestService
	searchService   driving.SearchService
	outboxService   driving.OutboxSynchronizer
	callbackHandler driving.CallbackHandler
	worker          *services.Worker
	outbox          *services.Outbox
)

var rootCmd = &cobra.Command{
	Use:   "sercha-pipeline",
	Short: "Document ingestion and hybrid retrieval pipeline",
	Long: `sercha-pipeline ingests documents, dispatches them to an external
conversion worker, and serves hybrid (keyword + semantic) search over
the processed content.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logger.SetVerbose(verboseFlag)
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}
		return initServices(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default ~/.sercha-pipeline/config.toml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (default ~/.sercha-pipeline/data)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// initServices builds the full service graph from configuration. It is
// idempotent so commands composed in one process share a single store.
func initServices(ctx context.Context) error {
	if servicesWired {
		return nil
	}

	cfg, err := file.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	appConfig = cfg

	st, err := sqlite.NewStore(dataDir)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	store = st

	docStore := store.DocumentStore()
	jobQueue = store.JobQueue(cfg.Lease())

	// Vector services are optional. Without them the pipeline still
	// ingests and serves keyword search.
	var embedder driven.EmbeddingService
	if cfg.VectorIndex.URL != "" {
		index, err := qdrant.NewIndex(ctx, qdrant.Config{
			URL:        cfg.VectorIndex.URL,
			APIKey:     cfg.VectorIndex.APIKey,
			Collection: cfg.VectorIndex.Collection,
			Dimensions: cfg.VectorIndex.Dimensions,
		})
		if err != nil {
			logger.Warn("Vector index unavailable, continuing keyword-only: %v", err)
		} else {
			vectorIndex = index
		}
	}
	if cfg.Embedding.URL != "" {
		embedder = httpembed.NewEmbeddingService(httpembed.Config{
			BaseURL:    cfg.Embedding.URL,
			Dimensions: cfg.VectorIndex.Dimensions,
		})
	}

	dispatcher := httpconv.NewClient(httpconv.Config{
		BaseURL:       cfg.Converter.URL,
		CallbackURL:   cfg.Callback.PublicURL,
		Timeout:       cfg.ConverterTimeout(),
		RatePerSecond: cfg.Converter.RatePerSecond,
	})

	orchestratorConfig := services.DefaultOrchestratorConfig()
	orchestratorConfig.MaxAttempts = cfg.Queue.MaxAttempts
	orchestratorConfig.BaseBackoff = cfg.BaseBackoff()
	orchestratorConfig.Gate = quality.GateConfig{
		MinLength:        cfg.Quality.MinLength,
		MaxNoiseRatio:    cfg.Quality.MaxNoiseRatio,
		RejectNoiseRatio: cfg.Quality.RejectNoiseRatio,
	}
	orchestratorConfig.ChunkSize = cfg.Chunker.Size
	orchestratorConfig.ChunkOverlap = cfg.Chunker.Overlap

	orchestrator := services.NewOrchestrator(docStore, jobQueue, dispatcher, orchestratorConfig)
	callbackHandler = orchestrator

	ingest := services.NewIngest(docStore, jobQueue)
	if vectorIndex != nil {
		ingest.WithVectorIndex(vectorIndex)
	}
	ingestService = ingest
	searchService = services.NewSearch(docStore, store.SearchEngine(), vectorIndex, embedder)

	outbox = services.NewOutbox(services.OutboxConfig{
		BatchSize:    cfg.Outbox.BatchSize,
		DrainDelay:   cfg.OutboxDrainDelay(),
		Interval:     cfg.OutboxInterval(),
		MaxAttempts:  cfg.Outbox.MaxAttempts,
		RetryBackoff: 2 * time.Second,
		Dimensions:   cfg.VectorIndex.Dimensions,
	}, docStore, vectorIndex)
	outboxService = outbox

	worker = services.NewWorker(services.WorkerConfig{
		PollInterval: cfg.PollInterval(),
		Concurrency:  cfg.Worker.Concurrency,
	}, jobQueue, orchestrator)

	servicesWired = true
	return nil
}
