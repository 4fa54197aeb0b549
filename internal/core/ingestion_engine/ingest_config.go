package ingestion_engine

import (
	"sync/atomic"

	"github.com/markdave123-py/neurodoc/internal/core"
	"github.com/markdave123-py/neurodoc/internal/core/store"
	"github.com/markdave123-py/neurodoc/internal/models"
)

// IngestConfig tunes the ingestion pipeline.
//
// MaxChunkSize:     soft upper bound of a chunk in characters (default 1000).
// Overlap:          character budget carried into the next chunk (default 200).
// BatchSize:        how many chunks to embed in one provider call.
// SummarySentences: sentences kept in the document summary.
// QueueSize:        capacity of the archive job queue.
type IngestConfig struct {
	MaxChunkSize     int
	Overlap          int
	BatchSize        int
	SummarySentences int
	QueueSize        int
}

func (c *IngestConfig) withDefaults() *IngestConfig {
	out := IngestConfig{}
	if c != nil {
		out = *c
	}
	if out.MaxChunkSize <= 0 {
		out.MaxChunkSize = DefaultMaxChunkSize
	}
	if out.Overlap < 0 {
		out.Overlap = 0
	}
	if out.BatchSize <= 0 {
		out.BatchSize = 16
	}
	if out.SummarySentences <= 0 {
		out.SummarySentences = defaultSummarySentences
	}
	if out.QueueSize <= 0 {
		out.QueueSize = 64
	}
	return &out
}

// UploadRequest is one file handed to Ingest.
type UploadRequest struct {
	UserID      string
	FileName    string
	ContentType string
	Data        []byte
}

// ArchiveJob is a successfully indexed upload waiting to be copied to the
// object store and the archive database. Superseded lists the documents the
// upload replaced in the index; their stored files are deleted.
type ArchiveJob struct {
	Document    models.Document
	Chunks      []models.DocumentChunk
	Superseded  []models.Document
	Data        []byte
	ContentType string
}

// DocumentIngestor turns uploads into indexed documents:
//
// index:      the in-memory chunk index every query searches.
// extractor:  text extraction (docconv, plain text, email).
// embedder:   optional; attaches vectors to chunks at ingest time.
// summarizer: frequency summary and key clause labels.
// db, obj:    optional archive collaborators fed by the worker pool.
// jobs:       archive queue drained by Start's workers.
type DocumentIngestor struct {
	index      *store.DocumentStore
	extractor  core.DocumentExtractor
	embedder   core.EmbeddingProvider
	summarizer *Summarizer
	db         core.DbClient
	obj        core.ObjectClient
	cfg        *IngestConfig
	jobs       chan ArchiveJob
	archiving  atomic.Bool
}

// DocconvExtractor implements core.DocumentExtractor on top of sajari/docconv,
// with direct handling for plain text and email.
type DocconvExtractor struct {
	useReadability bool
}
