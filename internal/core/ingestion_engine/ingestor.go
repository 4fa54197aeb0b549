package ingestion_engine

import (
	"context"

	"github.com/markdave123-py/neurodoc/internal/models"
)

// Ingestor is what the upload endpoint needs from the ingestion engine.
type Ingestor interface {
	// Ingest extracts, chunks, embeds and summarizes one upload and makes it
	// searchable before returning.
	Ingest(ctx context.Context, req UploadRequest) (*models.Document, error)
	// Start launches the archive workers; without it nothing is archived.
	Start(ctx context.Context, numWorkers int)
	Enqueue(ctx context.Context, job ArchiveJob) error
}

var _ Ingestor = (*DocumentIngestor)(nil)
