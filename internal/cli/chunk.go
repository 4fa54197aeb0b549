package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/markdave123-py/neurodoc/internal/core/ingestion_engine"
)

var (
	chunkMaxSize int
	chunkOverlap int
)

var chunkCmd = &cobra.Command{
	Use:   "chunk [file]",
	Short: "Print the chunks of a document as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runChunk,
}

func init() {
	chunkCmd.Flags().IntVar(&chunkMaxSize, "max-size", 1000, "maximum chunk size in characters")
	chunkCmd.Flags().IntVar(&chunkOverlap, "overlap", 200, "overlap budget; overlap/6 words seed each chunk")
	rootCmd.AddCommand(chunkCmd)
}

func runChunk(cmd *cobra.Command, args []string) error {
	text, err := extractFile(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	pieces := ingestion_engine.Chunk(text, chunkMaxSize, chunkOverlap)
	if pieces == nil {
		pieces = []ingestion_engine.ChunkPiece{}
	}
	data, err := json.MarshalIndent(pieces, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal chunks: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func extractFile(ctx context.Context, path string) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	name := filepath.Base(path)
	extracted, err := ingestion_engine.NewDocconvExtractor(false).
		ExtractText(ctx, data, name, ingestion_engine.ResolveMimeType(name, ""))
	if err != nil {
		return "", err
	}
	return extracted.Text, nil
}
