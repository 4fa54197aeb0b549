package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/markdave123-py/neurodoc/internal/core"
	"github.com/markdave123-py/neurodoc/internal/core/ingestion_engine"
	"github.com/markdave123-py/neurodoc/internal/core/store"
	"github.com/markdave123-py/neurodoc/internal/models"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

type DocumentService struct {
	index    *store.DocumentStore
	ingestor ingestion_engine.Ingestor
	db       core.DbClient
	storage  core.ObjectClient
}

// NewDocumentService wires the document operations. db and storage are the
// optional archive and may be nil.
func NewDocumentService(index *store.DocumentStore, ing ingestion_engine.Ingestor, db core.DbClient, storage core.ObjectClient) *DocumentService {
	return &DocumentService{index: index, ingestor: ing, db: db, storage: storage}
}

func (s *DocumentService) Upload(ctx context.Context, userID, fileName, contentType string, data []byte) (*models.Document, error) {
	return s.ingestor.Ingest(ctx, ingestion_engine.UploadRequest{
		UserID:      userID,
		FileName:    fileName,
		ContentType: contentType,
		Data:        data,
	})
}

// ListOptions filters and pages the document listing.
type ListOptions struct {
	Limit    int
	Offset   int
	Search   string
	FileType string
}

// DocumentPage is one page of the listing plus the filtered total.
type DocumentPage struct {
	Documents []models.Document `json:"documents"`
	Total     int               `json:"total"`
	Limit     int               `json:"limit"`
	Offset    int               `json:"offset"`
}

// List returns indexed documents, newest first. Search matches the file name
// or summary case-insensitively; FileType matches the MIME type or extension.
func (s *DocumentService) List(opts ListOptions) DocumentPage {
	if opts.Limit <= 0 {
		opts.Limit = defaultPageSize
	}
	opts.Limit = min(opts.Limit, maxPageSize)
	opts.Offset = max(opts.Offset, 0)

	search := strings.ToLower(strings.TrimSpace(opts.Search))
	fileType := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(opts.FileType), "."))

	docs := s.index.GetAllDocuments()
	filtered := docs[:0]
	for _, d := range docs {
		if search != "" &&
			!strings.Contains(strings.ToLower(d.FileName), search) &&
			!strings.Contains(strings.ToLower(d.Summary), search) {
			continue
		}
		if fileType != "" && !matchesFileType(d, fileType) {
			continue
		}
		filtered = append(filtered, d)
	}
	sort.SliceStable(filtered, func(i, j int) bool { return filtered[i].UploadedAt.After(filtered[j].UploadedAt) })

	page := DocumentPage{Documents: []models.Document{}, Total: len(filtered), Limit: opts.Limit, Offset: opts.Offset}
	if opts.Offset < len(filtered) {
		end := min(opts.Offset+opts.Limit, len(filtered))
		page.Documents = filtered[opts.Offset:end]
	}
	return page
}

func matchesFileType(d models.Document, fileType string) bool {
	if strings.EqualFold(d.FileType, fileType) {
		return true
	}
	return strings.HasSuffix(strings.ToLower(d.FileName), "."+fileType) || strings.HasSuffix(strings.ToLower(d.FileType), "/"+fileType)
}

// Filenames lists the file names of every indexed document.
func (s *DocumentService) Filenames() []string {
	return s.index.GetReferencedFilenames()
}

// Delete drops a document and its chunks from the index. The archive copy is
// removed on a best-effort basis.
func (s *DocumentService) Delete(ctx context.Context, id string) error {
	doc, ok := s.index.GetDocument(id)
	if !ok || !s.index.RemoveDocument(id) {
		return fmt.Errorf("%w: document %s", models.ErrNotFound, id)
	}
	log.Printf("DocumentService: removed %s (%s)", doc.FileName, id)

	if s.storage != nil {
		if err := s.storage.DeleteFile(ctx, ingestion_engine.ObjectKey(doc.UserID, doc.ID, doc.FileName)); err != nil {
			log.Printf("DocumentService: delete stored file of %s failed: %v", id, err)
		}
	}
	if s.db != nil {
		if err := s.db.DeleteDocument(ctx, id); err != nil {
			log.Printf("DocumentService: delete archived %s failed: %v", id, err)
		}
	}
	return nil
}

// ClearAll empties the index and the archive tables. Stored raw files are
// left in the bucket.
func (s *DocumentService) ClearAll(ctx context.Context) (documents, chunks int) {
	documents, chunks = s.index.Stats()
	s.index.ClearAll()
	log.Printf("DocumentService: cleared %d documents and %d chunks", documents, chunks)

	if s.db != nil {
		if err := s.db.DeleteAllDocuments(ctx); err != nil {
			log.Printf("DocumentService: clearing archive failed: %v", err)
		}
	}
	return documents, chunks
}

// Clauses returns the chunks of one document, or of all documents when docID
// is empty, in index order. Vectors are stripped unless includeEmbeddings.
func (s *DocumentService) Clauses(docID string, limit int, includeEmbeddings bool) ([]models.DocumentChunk, error) {
	var chunks []models.DocumentChunk
	if docID == "" {
		chunks = s.index.GetAllChunks()
	} else {
		if _, ok := s.index.GetDocument(docID); !ok {
			return nil, fmt.Errorf("%w: document %s", models.ErrNotFound, docID)
		}
		chunks = s.index.ChunksByDocument(docID)
	}

	if limit <= 0 {
		limit = defaultPageSize
	}
	if len(chunks) > limit {
		chunks = chunks[:limit]
	}
	if !includeEmbeddings {
		for i := range chunks {
			chunks[i].Embedding = nil
		}
	}
	if chunks == nil {
		chunks = []models.DocumentChunk{}
	}
	return chunks, nil
}

// Stats reports the index size.
func (s *DocumentService) Stats() (documents, chunks int) {
	return s.index.Stats()
}
