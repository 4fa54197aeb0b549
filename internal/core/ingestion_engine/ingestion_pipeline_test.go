package ingestion_engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/neurodoc/internal/core"
	"github.com/markdave123-py/neurodoc/internal/core/retrieval"
	"github.com/markdave123-py/neurodoc/internal/core/store"
	"github.com/markdave123-py/neurodoc/internal/models"
)

type fakeExtractor struct {
	text  string
	pages int
	err   error
}

func (f fakeExtractor) ExtractText(context.Context, []byte, string, string) (core.ExtractedText, error) {
	return core.ExtractedText{Text: f.text, Pages: f.pages}, f.err
}

type fakeEmbedder struct {
	calls int
	err   error
}

func (f *fakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(len(texts[i])), 1}
	}
	return out, nil
}

type fakeObjectClient struct {
	mu      sync.Mutex
	keys    []string
	deleted []string
}

func (f *fakeObjectClient) UploadFile(_ context.Context, key string, _ []byte, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	return "s3://bucket/" + key, nil
}

func (f *fakeObjectClient) DeleteFile(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeObjectClient) removed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

type fakeArchiveDB struct {
	mu       sync.Mutex
	archived []string
}

func (f *fakeArchiveDB) CreateUser(context.Context, *models.User) error { return nil }

func (f *fakeArchiveDB) GetUserByEmail(context.Context, string) (*models.User, error) {
	return nil, nil
}

func (f *fakeArchiveDB) ArchiveDocument(_ context.Context, doc *models.Document, _ []models.DocumentChunk, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.archived = append(f.archived, doc.ID)
	return nil
}

func (f *fakeArchiveDB) DeleteDocument(context.Context, string) error { return nil }
func (f *fakeArchiveDB) DeleteAllDocuments(context.Context) error     { return nil }
func (f *fakeArchiveDB) Ping(context.Context) error                   { return nil }
func (f *fakeArchiveDB) Close() error                                 { return nil }

func (f *fakeArchiveDB) ids() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.archived...)
}

func (f *fakeObjectClient) uploaded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.keys...)
}

const policyText = "Coverage includes knee surgery. Pre-authorization required. " +
	"Claims must be filed within 30 days. Cosmetic procedures are excluded."

func newTestIngestor(ext core.DocumentExtractor, emb core.EmbeddingProvider, cfg *IngestConfig) (*DocumentIngestor, *store.DocumentStore) {
	idx := store.NewDocumentStore()
	sum := NewSummarizer(retrieval.DefaultVocabulary(), 2)
	return NewDocumentIngestor(idx, ext, emb, sum, nil, nil, cfg), idx
}

func TestIngest_IndexesDocument(t *testing.T) {
	emb := &fakeEmbedder{}
	ing, idx := newTestIngestor(fakeExtractor{text: policyText}, emb, &IngestConfig{MaxChunkSize: 70, Overlap: 0, BatchSize: 2})

	doc, err := ing.Ingest(context.Background(), UploadRequest{
		UserID:      "u1",
		FileName:    "docs/policy.txt",
		ContentType: "text/plain",
		Data:        []byte(policyText),
	})
	require.NoError(t, err)

	assert.Equal(t, "policy.txt", doc.FileName)
	assert.Equal(t, "text/plain", doc.FileType)
	assert.Equal(t, int64(len(policyText)), doc.Size)
	assert.Nil(t, doc.Chunks)
	assert.Equal(t, 4, doc.ChunkCount)
	assert.Equal(t, 2, doc.Pages)
	assert.Contains(t, doc.KeyClauses, "Coverage")
	assert.Contains(t, doc.KeyClauses, "Exclusions")
	assert.NotEmpty(t, doc.Summary)
	assert.Equal(t, 2, emb.calls)

	chunks := idx.GetAllChunks()
	require.Len(t, chunks, 4)
	for i, c := range chunks {
		assert.Equal(t, doc.ID, c.DocumentID)
		assert.Equal(t, "policy.txt", c.FileName)
		assert.Equal(t, i, c.ChunkIndex)
		assert.Equal(t, models.ChunkID(doc.ID, i), c.ID)
		assert.Len(t, c.Embedding, 2)
	}
}

func TestIngest_ReuploadReplaces(t *testing.T) {
	ing, idx := newTestIngestor(fakeExtractor{text: policyText}, nil, &IngestConfig{MaxChunkSize: 70})

	first, err := ing.Ingest(context.Background(), UploadRequest{FileName: "a.pdf", Data: []byte("x")})
	require.NoError(t, err)
	second, err := ing.Ingest(context.Background(), UploadRequest{FileName: "a.pdf", Data: []byte("y")})
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	docs := idx.GetAllDocuments()
	require.Len(t, docs, 1)
	assert.Equal(t, second.ID, docs[0].ID)
	for _, c := range idx.GetAllChunks() {
		assert.Equal(t, second.ID, c.DocumentID)
		assert.Nil(t, c.Embedding)
	}
}

func TestIngest_UsesExtractorPageCount(t *testing.T) {
	ing, _ := newTestIngestor(fakeExtractor{text: policyText, pages: 12}, nil, nil)
	doc, err := ing.Ingest(context.Background(), UploadRequest{FileName: "p.pdf"})
	require.NoError(t, err)
	assert.Equal(t, 12, doc.Pages)
	assert.Equal(t, 1, doc.ChunkCount)
}

func TestIngest_EmptyTextYieldsEmptyDocument(t *testing.T) {
	ing, idx := newTestIngestor(fakeExtractor{text: "  "}, nil, nil)
	doc, err := ing.Ingest(context.Background(), UploadRequest{FileName: "blank.pdf"})
	require.NoError(t, err)
	assert.Equal(t, 0, doc.ChunkCount)
	assert.Equal(t, 0, doc.Pages)
	assert.Empty(t, doc.Summary)

	docs, chunks := idx.Stats()
	assert.Equal(t, 1, docs)
	assert.Equal(t, 0, chunks)
}

func TestIngest_Errors(t *testing.T) {
	ing, idx := newTestIngestor(fakeExtractor{err: errors.New("corrupt pdf")}, nil, nil)

	_, err := ing.Ingest(context.Background(), UploadRequest{FileName: "  "})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = ing.Ingest(context.Background(), UploadRequest{FileName: "bad.pdf"})
	assert.ErrorContains(t, err, "corrupt pdf")

	docs, _ := idx.Stats()
	assert.Equal(t, 0, docs)
}

func TestIngest_EmbedFailureKeepsChunks(t *testing.T) {
	ing, idx := newTestIngestor(fakeExtractor{text: policyText}, &fakeEmbedder{err: errors.New("quota")}, nil)
	doc, err := ing.Ingest(context.Background(), UploadRequest{FileName: "p.pdf"})
	require.NoError(t, err)
	assert.Equal(t, 1, doc.ChunkCount)
	assert.Nil(t, idx.GetAllChunks()[0].Embedding)
}

func TestIngest_ArchivesWhenStarted(t *testing.T) {
	obj := &fakeObjectClient{}
	idx := store.NewDocumentStore()
	ing := NewDocumentIngestor(idx, fakeExtractor{text: policyText}, nil, nil, nil, obj, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ing.Start(ctx, 2)

	doc, err := ing.Ingest(ctx, UploadRequest{UserID: "u1", FileName: "my policy.pdf", Data: []byte("%PDF")})
	require.NoError(t, err)

	want := "users/u1/documents/" + doc.ID + "/my_policy.pdf"
	assert.Eventually(t, func() bool {
		keys := obj.uploaded()
		return len(keys) == 1 && keys[0] == want
	}, 2*time.Second, 10*time.Millisecond)
}

func TestArchive_ReuploadKeepsNewestAndDropsReplacedFiles(t *testing.T) {
	obj := &fakeObjectClient{}
	db := &fakeArchiveDB{}
	idx := store.NewDocumentStore()
	ing := NewDocumentIngestor(idx, fakeExtractor{text: policyText}, nil, nil, db, obj, nil)

	// queue every upload before any worker runs
	ing.archiving.Store(true)
	var ids []string
	for n := 0; n < 3; n++ {
		doc, err := ing.Ingest(context.Background(), UploadRequest{UserID: "u1", FileName: "a.pdf", Data: []byte("%PDF")})
		require.NoError(t, err)
		ids = append(ids, doc.ID)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ing.Start(ctx, 4)

	key := func(id string) string { return ObjectKey("u1", id, "a.pdf") }
	assert.Eventually(t, func() bool {
		return len(obj.removed()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, []string{ids[2]}, db.ids())
	assert.Equal(t, []string{key(ids[2])}, obj.uploaded())
	assert.ElementsMatch(t, []string{key(ids[0]), key(ids[1])}, obj.removed())
}

func TestShardOf(t *testing.T) {
	for _, name := range []string{"a.pdf", "b.pdf", "policy terms.docx", ""} {
		got := shardOf(name, 4)
		assert.GreaterOrEqual(t, got, 0)
		assert.Less(t, got, 4)
		assert.Equal(t, got, shardOf(name, 4))
	}
	assert.Equal(t, 0, shardOf("a.pdf", 1))
}

func TestStart_NoArchiveIsNoop(t *testing.T) {
	ing, _ := newTestIngestor(fakeExtractor{text: policyText}, nil, &IngestConfig{QueueSize: 1})
	ing.Start(context.Background(), 2)

	// the queue would fill on the second upload if jobs were enqueued
	for n := 0; n < 3; n++ {
		_, err := ing.Ingest(context.Background(), UploadRequest{FileName: "p.pdf"})
		require.NoError(t, err)
	}
	assert.False(t, ing.archiving.Load())
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "users/u/documents/d/a_b.pdf", ObjectKey("u", "d", " a b.pdf "))
	assert.True(t, strings.HasPrefix(ObjectKey("", "d", "x"), "users/anonymous/"))
}

func TestCleanFileName(t *testing.T) {
	assert.Equal(t, "a.pdf", cleanFileName(`C:\Users\me\a.pdf`))
	assert.Equal(t, "a.pdf", cleanFileName("../../a.pdf"))
	assert.Equal(t, "", cleanFileName(" "))
	assert.Equal(t, "", cleanFileName("/"))
}
