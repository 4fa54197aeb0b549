package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/neurodoc/internal/core"
	"github.com/markdave123-py/neurodoc/internal/core/ingestion_engine"
	"github.com/markdave123-py/neurodoc/internal/core/retrieval"
	"github.com/markdave123-py/neurodoc/internal/core/store"
	"github.com/markdave123-py/neurodoc/internal/models"
)

type recordingStorage struct {
	mu      sync.Mutex
	deleted []string
	err     error
}

func (r *recordingStorage) UploadFile(_ context.Context, key string, _ []byte, _ string) (string, error) {
	return "https://bucket/" + key, nil
}

func (r *recordingStorage) DeleteFile(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, key)
	return r.err
}

func newDocumentService(t *testing.T, storage core.ObjectClient) (*DocumentService, *store.DocumentStore) {
	t.Helper()
	idx := store.NewDocumentStore()
	ing := ingestion_engine.NewDocumentIngestor(
		idx,
		ingestion_engine.NewDocconvExtractor(false),
		retrieval.NewLexicalHashEmbedder(64),
		ingestion_engine.NewSummarizer(nil, 2),
		nil, nil,
		&ingestion_engine.IngestConfig{MaxChunkSize: 200},
	)
	return NewDocumentService(idx, ing, nil, storage), idx
}

func TestDocumentService_UploadAndClauses(t *testing.T) {
	svc, _ := newDocumentService(t, nil)
	ctx := context.Background()

	doc, err := svc.Upload(ctx, "u1", "policy.txt", "text/plain",
		[]byte("Knee surgery is covered. Cosmetic surgery is excluded. Claims are settled in 30 days."))
	require.NoError(t, err)
	assert.Equal(t, "policy.txt", doc.FileName)
	assert.Equal(t, 1, doc.ChunkCount)

	clauses, err := svc.Clauses(doc.ID, 0, false)
	require.NoError(t, err)
	require.Len(t, clauses, 1)
	assert.Nil(t, clauses[0].Embedding)

	withVectors, err := svc.Clauses(doc.ID, 0, true)
	require.NoError(t, err)
	assert.Len(t, withVectors[0].Embedding, 64)

	all, err := svc.Clauses("", 10, false)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = svc.Clauses("missing", 0, false)
	assert.ErrorIs(t, err, models.ErrNotFound)

	assert.Equal(t, []string{"policy.txt"}, svc.Filenames())
}

func TestDocumentService_List(t *testing.T) {
	svc, idx := newDocumentService(t, nil)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"a.pdf", "b.docx", "c.pdf"} {
		doc, err := models.NewDocument("id-"+name, "u1", name, "", 10)
		require.NoError(t, err)
		doc.UploadedAt = base.Add(time.Duration(i) * time.Hour)
		if name == "b.docx" {
			doc.Summary = "Maternity benefits"
		}
		require.NoError(t, idx.AddDocument(*doc))
	}

	page := svc.List(ListOptions{})
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Documents, 3)
	assert.Equal(t, "c.pdf", page.Documents[0].FileName)

	page = svc.List(ListOptions{FileType: ".PDF"})
	assert.Equal(t, 2, page.Total)

	page = svc.List(ListOptions{Search: "maternity"})
	require.Len(t, page.Documents, 1)
	assert.Equal(t, "b.docx", page.Documents[0].FileName)

	page = svc.List(ListOptions{Limit: 1, Offset: 1})
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Documents, 1)
	assert.Equal(t, "b.docx", page.Documents[0].FileName)

	page = svc.List(ListOptions{Offset: 10})
	assert.NotNil(t, page.Documents)
	assert.Empty(t, page.Documents)
}

func TestDocumentService_Delete(t *testing.T) {
	storage := &recordingStorage{err: errors.New("bucket gone")}
	svc, idx := newDocumentService(t, storage)
	doc := seedIndex(t, idx, "policy.pdf", "Knee surgery is covered.")

	require.NoError(t, svc.Delete(context.Background(), doc.ID))
	assert.Equal(t, []string{"users/u1/documents/" + doc.ID + "/policy.pdf"}, storage.deleted)

	docs, chunks := svc.Stats()
	assert.Zero(t, docs)
	assert.Zero(t, chunks)

	assert.ErrorIs(t, svc.Delete(context.Background(), doc.ID), models.ErrNotFound)
}

func TestDocumentService_ClearAll(t *testing.T) {
	svc, idx := newDocumentService(t, nil)
	seedIndex(t, idx, "a.pdf", "one", "two")
	seedIndex(t, idx, "b.pdf", "three")

	docs, chunks := svc.ClearAll(context.Background())
	assert.Equal(t, 2, docs)
	assert.Equal(t, 3, chunks)
	assert.Empty(t, svc.Filenames())
}
