package ingestion_engine

import (
	"context"
	"fmt"
	"hash/fnv"
	"log"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/neurodoc/internal/core"
	"github.com/markdave123-py/neurodoc/internal/core/store"
	"github.com/markdave123-py/neurodoc/internal/models"
)

// NewDocumentIngestor wires the pipeline. embedder, summarizer, db and obj may
// be nil: chunks are then left without vectors, documents without a summary,
// and nothing is archived.
func NewDocumentIngestor(
	index *store.DocumentStore,
	extractor core.DocumentExtractor,
	embedder core.EmbeddingProvider,
	summarizer *Summarizer,
	db core.DbClient,
	obj core.ObjectClient,
	cfg *IngestConfig,
) *DocumentIngestor {
	cfg = cfg.withDefaults()
	return &DocumentIngestor{
		index:      index,
		extractor:  extractor,
		embedder:   embedder,
		summarizer: summarizer,
		db:         db,
		obj:        obj,
		cfg:        cfg,
		jobs:       make(chan ArchiveJob, cfg.QueueSize),
	}
}

// Ingest runs one upload through extract -> chunk -> embed, with the summary
// computed alongside, then swaps the document into the index. A previously
// indexed document with the same file name is replaced.
func (i *DocumentIngestor) Ingest(ctx context.Context, req UploadRequest) (*models.Document, error) {
	fileName := cleanFileName(req.FileName)
	if fileName == "" {
		return nil, fmt.Errorf("%w: file name is required", models.ErrInvalidInput)
	}
	mimeType := ResolveMimeType(fileName, req.ContentType)

	extracted, err := i.extractor.ExtractText(ctx, req.Data, fileName, mimeType)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", fileName, err)
	}

	doc, err := models.NewDocument(uuid.NewString(), req.UserID, fileName, mimeType, int64(len(req.Data)))
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)

	// text -> chunk pieces (receive-only channel).
	texts := i.emitText(gctx, g, extracted.Text)
	pieces := i.streamChunk(gctx, g, texts)

	// pieces -> bound, embedded chunks.
	var chunks []models.DocumentChunk
	g.Go(func() error {
		var err error
		chunks, err = i.embedChunks(gctx, doc, pieces)
		return err
	})

	var summary Summary
	if i.summarizer != nil {
		g.Go(func() error {
			summary = i.summarizer.Summarize(extracted.Text)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("ingest %s: %w", fileName, err)
	}

	doc.Summary = summary.Text
	doc.KeyClauses = summary.KeyClauses
	doc.Pages = extracted.Pages
	if doc.Pages == 0 && len(chunks) > 0 {
		doc.Pages = chunks[len(chunks)-1].PageNumber
	}
	doc.Chunks = chunks

	superseded, err := i.index.ReplaceDocument(*doc)
	if err != nil {
		return nil, fmt.Errorf("index %s: %w", fileName, err)
	}
	log.Printf("DocumentIngestor: indexed %s as %s (%d chunks, %d pages)", fileName, doc.ID, len(chunks), doc.Pages)

	if i.archiving.Load() {
		job := ArchiveJob{Document: *doc, Chunks: chunks, Superseded: superseded, Data: req.Data, ContentType: mimeType}
		job.Document.Chunks = nil
		job.Document.ChunkCount = len(chunks)
		if err := i.Enqueue(ctx, job); err != nil {
			log.Printf("DocumentIngestor: archive of %s skipped: %v", doc.ID, err)
		}
	}

	out := *doc
	out.Chunks = nil
	out.ChunkCount = len(chunks)
	return &out, nil
}

// emitText feeds the extracted text into the pipeline.
func (i *DocumentIngestor) emitText(ctx context.Context, g *errgroup.Group, text string) <-chan string {
	out := make(chan string, 1)
	g.Go(func() error {
		defer close(out)
		select {
		case out <- text:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	return out
}

// Start runs numWorkers archive workers fed from the job queue. Jobs are
// sharded by file name, so uploads of the same file archive in order. It is
// a no-op when neither an object store nor an archive database is configured.
func (i *DocumentIngestor) Start(ctx context.Context, numWorkers int) {
	if i.db == nil && i.obj == nil {
		log.Println("DocumentIngestor: no archive configured, workers not started.")
		return
	}
	if numWorkers <= 0 {
		numWorkers = 1
	}
	i.archiving.Store(true)

	shards := make([]chan ArchiveJob, numWorkers)
	for w := range shards {
		shards[w] = make(chan ArchiveJob, i.cfg.QueueSize)
		go i.worker(ctx, w+1, shards[w])
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case job := <-i.jobs:
				select {
				case shards[shardOf(job.Document.FileName, numWorkers)] <- job:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
}

func (i *DocumentIngestor) worker(ctx context.Context, w int, jobs <-chan ArchiveJob) {
	for {
		select {
		case <-ctx.Done():
			log.Println("DocumentIngestor: Worker shutting down.")
			return
		case job := <-jobs:
			log.Printf("DocumentIngestor: Archiving document %s by worker with ID %d", job.Document.ID, w)

			if err := i.archive(ctx, job); err != nil {
				log.Printf("DocumentIngestor: Error archiving document %s: %v", job.Document.ID, err)
			}
		}
	}
}

func shardOf(fileName string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(fileName))
	return int(h.Sum32() % uint32(n))
}

// Enqueue schedules an archive job. If the queue is full, this call blocks
// until space frees up or ctx is done.
func (i *DocumentIngestor) Enqueue(ctx context.Context, job ArchiveJob) error {
	select {
	case i.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// archive copies the raw upload to object storage and the document with its
// chunk vectors to the archive database. Both steps are optional. A document
// that left the index before its turn is skipped, so a stale job never
// overwrites a newer archive. Stored files of superseded documents are
// removed either way.
func (i *DocumentIngestor) archive(ctx context.Context, job ArchiveJob) error {
	actx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()
	defer i.dropSuperseded(actx, job.Superseded)

	doc := job.Document
	if _, live := i.index.GetDocument(doc.ID); !live {
		log.Printf("DocumentIngestor: %s was replaced or deleted, archive skipped", doc.ID)
		return nil
	}

	var url string
	if i.obj != nil {
		var err error
		url, err = i.obj.UploadFile(actx, ObjectKey(doc.UserID, doc.ID, doc.FileName), job.Data, job.ContentType)
		if err != nil {
			return fmt.Errorf("upload raw file: %w", err)
		}
	}
	if i.db != nil {
		if err := i.db.ArchiveDocument(actx, &doc, job.Chunks, url); err != nil {
			return fmt.Errorf("archive document: %w", err)
		}
	}
	return nil
}

func (i *DocumentIngestor) dropSuperseded(ctx context.Context, docs []models.Document) {
	if i.obj == nil {
		return
	}
	for _, old := range docs {
		if err := i.obj.DeleteFile(ctx, ObjectKey(old.UserID, old.ID, old.FileName)); err != nil {
			log.Printf("DocumentIngestor: delete stored file of replaced %s failed: %v", old.ID, err)
		}
	}
}

// ObjectKey is the storage key of a raw upload.
func ObjectKey(userID, docID, fileName string) string {
	fileName = strings.ReplaceAll(strings.TrimSpace(fileName), " ", "_")
	if userID == "" {
		userID = "anonymous"
	}
	return path.Join("users", userID, "documents", docID, fileName)
}

// cleanFileName strips client-side directories from an uploaded name.
func cleanFileName(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, `\`, "/"))
	if name == "" {
		return ""
	}
	base := filepath.Base(name)
	if base == "." || base == "/" {
		return ""
	}
	return base
}
