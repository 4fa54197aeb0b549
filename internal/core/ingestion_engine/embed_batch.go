package ingestion_engine

import (
	"context"
	"fmt"
	"log"

	"github.com/markdave123-py/neurodoc/internal/models"
)

// embedChunks consumes chunk pieces, binds them to doc and embeds them in
// batches. This is the sink of the Ingest pipeline.
//
// An embedding failure is logged and the batch kept without vectors; the
// embedding ranker fills missing vectors at query time.
func (i *DocumentIngestor) embedChunks(
	ctx context.Context,
	doc *models.Document,
	in <-chan ChunkPiece,
) ([]models.DocumentChunk, error) {
	var out []models.DocumentChunk
	batch := make([]models.DocumentChunk, 0, i.cfg.BatchSize)

	flush := func(items []models.DocumentChunk) {
		if len(items) == 0 || i.embedder == nil {
			out = append(out, items...)
			return
		}

		texts := make([]string, len(items))
		for k := range items {
			texts[k] = items[k].Content
		}

		vecs, err := i.embedder.EmbedTexts(ctx, texts)
		switch {
		case err != nil:
			log.Printf("DocumentIngestor: embedding %d chunks of %s failed, keeping them without vectors: %v", len(items), doc.ID, err)
		case len(vecs) != len(items):
			log.Printf("DocumentIngestor: embed size mismatch for %s: got %d want %d", doc.ID, len(vecs), len(items))
		default:
			for k := range items {
				items[k].Embedding = vecs[k]
			}
		}
		out = append(out, items...)
	}

	for p := range in {
		c, err := models.NewChunk(doc, p.Content, p.PageNumber, p.Section, p.ChunkIndex)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", p.ChunkIndex, err)
		}
		batch = append(batch, c)
		if len(batch) == i.cfg.BatchSize {
			flush(batch)
			batch = make([]models.DocumentChunk, 0, i.cfg.BatchSize)
		}
	}
	// Final tail.
	flush(batch)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
