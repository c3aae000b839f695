package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-pipeline/internal/core/domain"
)

var (
	searchTopK  int
	searchMode  string
	searchAlpha float64
	searchJSON  bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search processed documents",
	Long: `Performs hybrid search across all completed documents.
Combines keyword (BM25) and semantic (vector) search for best results.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchTopK, "limit", "n", 10, "maximum number of results")
	searchCmd.Flags().StringVar(&searchMode, "mode", "hybrid", "search mode: hybrid, keyword, or semantic")
	searchCmd.Flags().Float64Var(&searchAlpha, "alpha", 0.5, "vector weight in hybrid mode (0=keyword only, 1=vector only)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]

	if searchService == nil {
		return errors.New("search service not configured")
	}

	mode := domain.SearchMode(searchMode)
	switch mode {
	case domain.SearchModeHybrid, domain.SearchModeKeyword, domain.SearchModeSemantic:
	default:
		return fmt.Errorf("invalid search mode: %s", searchMode)
	}

	opts := domain.SearchOptions{
		TopK:  searchTopK,
		Mode:  mode,
		Alpha: searchAlpha,
	}

	results, err := searchService.Search(cmd.Context(), query, opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, results)
	}

	return outputSearchTable(cmd, results)
}

func outputSearchJSON(cmd *cobra.Command, results []domain.SearchResult) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, results []domain.SearchResult) error {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i := range results {
		r := &results[i]

		cmd.Printf("  [%d] %s #%d (%.4f)\n", i+1, r.Document.Filename, r.Chunk.ChunkIndex, r.Score)
		if r.Chunk.Heading != "" {
			cmd.Printf("      Section: %s\n", r.Chunk.Heading)
		}
		if len(r.Highlights) > 0 {
			cmd.Printf("      %s\n", r.Highlights[0])
		}
		cmd.Println()
	}

	cmd.Printf("Total: %d results\n", len(results))
	return nil
}
