package cli

import (
	"bytes"
	"context"
	"time"

	"github.com/custodia-labs/sercha-pipeline/internal/adapters/driven/config/file"
	"github.com/custodia-labs/sercha-pipeline/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-pipeline/internal/core/domain"
	"github.com/custodia-labs/sercha-pipeline/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-pipeline/internal/core/services"
)

// Test fixtures shared by the command tests. setupTestServices wires
// in-memory services and returns a cleanup restoring the previous state.
var (
	testDocStore *memory.DocumentStore
	testQueue    *memory.JobQueue
)

func setupTestServices() func() {
	oldWired := servicesWired
	oldConfig := appConfig
	oldIngest := ingestService
	oldSearch := searchService
	oldOutbox := outboxService

	testDocStore = memory.NewDocumentStore()
	testQueue = memory.NewJobQueue(time.Minute)

	servicesWired = true
	appConfig = file.DefaultConfig()
	ingestService = services.NewIngest(testDocStore, testQueue)
	searchService = &cliMockSearchService{}
	outboxService = &cliMockOutbox{}

	return func() {
		servicesWired = oldWired
		appConfig = oldConfig
		ingestService = oldIngest
		searchService = oldSearch
		outboxService = oldOutbox
		testDocStore = nil
		testQueue = nil
	}
}

func executeCommand(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}

type cliMockSearchService struct {
	err    error
	lastQ  string
	lastOp domain.SearchOptions
}

func (m *cliMockSearchService) Search(_ context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	m.lastQ = query
	m.lastOp = opts
	if m.err != nil {
		return nil, m.err
	}
	return []domain.SearchResult{
		{
			Document:   domain.Document{ID: "doc-1", Filename: "guide.pdf"},
			Chunk:      domain.Chunk{ID: "chunk-1", ChunkIndex: 2, Heading: "Installation"},
			Score:      0.0328,
			Highlights: []string{"Install the binary and run it."},
		},
	}, nil
}

type cliMockOutbox struct {
	err    error
	lastID string
}

func (m *cliMockOutbox) Sync(_ context.Context, documentID string) (*driving.SyncReport, error) {
	m.lastID = documentID
	if m.err != nil {
		return nil, m.err
	}
	return &driving.SyncReport{Synced: 7, Skipped: 2, Failed: 1, Batches: 1}, nil
}
