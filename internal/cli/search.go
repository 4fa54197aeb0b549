package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/markdave123-py/neurodoc/internal/core/ingestion_engine"
	"github.com/markdave123-py/neurodoc/internal/core/retrieval"
	"github.com/markdave123-py/neurodoc/internal/core/store"
)

var (
	searchStrategy   string
	searchLimit      int
	searchJSON       bool
	searchVocabulary string
	searchMaxSize    int
	searchOverlap    int
)

var searchCmd = &cobra.Command{
	Use:   "search [query] [files...]",
	Short: "Rank the chunks of local files against a query",
	Long: `Indexes the given files into a fresh in-memory store and ranks their chunks.
The keyword strategy scores phrase, keyword and synonym matches; the embedding
strategy uses cosine similarity over lexical hash vectors.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVarP(&searchStrategy, "strategy", "s", retrieval.StrategyKeyword, "ranking strategy: keyword or embedding")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", retrieval.DefaultLimit, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	searchCmd.Flags().StringVar(&searchVocabulary, "vocabulary", "", "YAML vocabulary overriding the built-in one")
	searchCmd.Flags().IntVar(&searchMaxSize, "max-size", 1000, "maximum chunk size in characters")
	searchCmd.Flags().IntVar(&searchOverlap, "overlap", 200, "overlap budget; overlap/6 words seed each chunk")
	rootCmd.AddCommand(searchCmd)
}

type searchResult struct {
	Rank       int     `json:"rank"`
	Score      float64 `json:"score"`
	FileName   string  `json:"fileName"`
	PageNumber int     `json:"pageNumber"`
	ChunkIndex int     `json:"chunkIndex"`
	Content    string  `json:"content"`
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	query, files := args[0], args[1:]

	vocab := retrieval.DefaultVocabulary()
	if searchVocabulary != "" {
		v, err := retrieval.LoadVocabulary(searchVocabulary)
		if err != nil {
			return err
		}
		vocab = v
	}

	ranker, err := retrieval.NewRanker(searchStrategy, vocab, nil)
	if err != nil {
		return err
	}

	idx := store.NewDocumentStore()
	ing := ingestion_engine.NewDocumentIngestor(
		idx,
		ingestion_engine.NewDocconvExtractor(false),
		nil,
		nil,
		nil, nil,
		&ingestion_engine.IngestConfig{MaxChunkSize: searchMaxSize, Overlap: searchOverlap},
	)
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if _, err := ing.Ingest(ctx, ingestion_engine.UploadRequest{FileName: filepath.Base(path), Data: data}); err != nil {
			return fmt.Errorf("index %s: %w", path, err)
		}
	}

	scored, err := retrieval.NewSearcher(idx, ranker, searchLimit).SearchScored(ctx, query, searchLimit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	results := make([]searchResult, len(scored))
	for i, sc := range scored {
		results[i] = searchResult{
			Rank:       i + 1,
			Score:      sc.Score,
			FileName:   sc.Chunk.FileName,
			PageNumber: sc.Chunk.PageNumber,
			ChunkIndex: sc.Chunk.ChunkIndex,
			Content:    sc.Chunk.Content,
		}
	}

	if searchJSON {
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}
	for _, r := range results {
		cmd.Printf("  [%d] %s, page %d (%.2f)\n", r.Rank, r.FileName, r.PageNumber, r.Score)
		cmd.Printf("      %s\n\n", r.Content)
	}
	return nil
}
