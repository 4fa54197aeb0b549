package store

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/neurodoc/internal/models"
)

func makeDoc(id, fileName string, contents ...string) models.Document {
	doc := models.Document{ID: id, FileName: fileName}
	for i, c := range contents {
		doc.Chunks = append(doc.Chunks, models.DocumentChunk{
			ID:         models.ChunkID(id, i),
			DocumentID: id,
			Content:    c,
			PageNumber: i/3 + 1,
			ChunkIndex: i,
		})
	}
	return doc
}

func TestDocumentStore_AddAndSnapshot(t *testing.T) {
	s := NewDocumentStore()
	require.NoError(t, s.AddDocument(makeDoc("d1", "policy.pdf", "knee surgery covered")))
	require.NoError(t, s.AddDocument(makeDoc("d2", "terms.pdf", "flood damage excluded", "claims within 30 days")))

	docs := s.GetAllDocuments()
	require.Len(t, docs, 2)
	assert.Equal(t, 1, docs[0].ChunkCount)
	assert.Nil(t, docs[0].Chunks)

	chunks := s.GetAllChunks()
	require.Len(t, chunks, 3)
	assert.Equal(t, "policy.pdf", chunks[0].FileName, "file name is back-filled from the owning document")

	// Snapshots are detached from store state.
	chunks[0].Content = "mutated"
	assert.Equal(t, "knee surgery covered", s.GetAllChunks()[0].Content)

	assert.Equal(t, []string{"policy.pdf", "terms.pdf"}, s.GetReferencedFilenames())
}

func TestDocumentStore_ReplaceOnReupload(t *testing.T) {
	s := NewDocumentStore()
	require.NoError(t, s.AddDocument(makeDoc("old", "a.pdf", "one", "two")))
	require.NoError(t, s.AddDocument(makeDoc("other", "b.pdf", "unrelated")))
	require.NoError(t, s.AddDocument(makeDoc("new", "a.pdf", "uno", "dos", "tres")))

	var named []models.Document
	for _, d := range s.GetAllDocuments() {
		if d.FileName == "a.pdf" {
			named = append(named, d)
		}
	}
	require.Len(t, named, 1)
	assert.Equal(t, "new", named[0].ID)

	var aChunks []models.DocumentChunk
	for _, c := range s.GetAllChunks() {
		if c.FileName == "a.pdf" {
			aChunks = append(aChunks, c)
		}
	}
	require.Len(t, aChunks, 3)
	for _, c := range aChunks {
		assert.Equal(t, "new", c.DocumentID)
	}
	assert.Len(t, s.ChunksByDocument("other"), 1)
}

func TestDocumentStore_ReplaceScenario(t *testing.T) {
	s := NewDocumentStore()
	require.NoError(t, s.AddDocument(makeDoc("first", "a.pdf", "one", "two")))
	require.NoError(t, s.AddDocument(makeDoc("second", "a.pdf", "uno", "dos", "tres")))

	chunks := s.GetAllChunks()
	require.Len(t, chunks, 3)
	for _, c := range chunks {
		assert.Equal(t, "second", c.DocumentID)
	}
}

func TestDocumentStore_ReplaceDocumentReturnsSuperseded(t *testing.T) {
	s := NewDocumentStore()

	superseded, err := s.ReplaceDocument(makeDoc("d1", "a.pdf", "one"))
	require.NoError(t, err)
	assert.Empty(t, superseded)

	superseded, err = s.ReplaceDocument(makeDoc("d2", "a.pdf", "two"))
	require.NoError(t, err)
	require.Len(t, superseded, 1)
	assert.Equal(t, "d1", superseded[0].ID)

	// re-adding the live id replaces in place and supersedes nothing else
	superseded, err = s.ReplaceDocument(makeDoc("d2", "a.pdf", "three"))
	require.NoError(t, err)
	assert.Empty(t, superseded)
}

func TestDocumentStore_ClearAll(t *testing.T) {
	s := NewDocumentStore()
	require.NoError(t, s.AddDocument(makeDoc("d1", "policy.pdf", "text")))
	require.NoError(t, s.AddDocument(makeDoc("d2", "terms.pdf", "text")))

	s.ClearAll()

	assert.Empty(t, s.GetAllDocuments())
	assert.Empty(t, s.GetAllChunks())
	assert.Empty(t, s.GetReferencedFilenames())
}

func TestDocumentStore_RemoveDocument(t *testing.T) {
	s := NewDocumentStore()
	require.NoError(t, s.AddDocument(makeDoc("d1", "policy.pdf", "a", "b")))
	require.NoError(t, s.AddDocument(makeDoc("d2", "terms.pdf", "c")))

	assert.True(t, s.RemoveDocument("d1"))
	assert.False(t, s.RemoveDocument("d1"))

	docs, chunks := s.Stats()
	assert.Equal(t, 1, docs)
	assert.Equal(t, 1, chunks)
	_, ok := s.GetDocument("d1")
	assert.False(t, ok)
}

func TestDocumentStore_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		doc  models.Document
	}{
		{"missing id", models.Document{FileName: "a.pdf"}},
		{"missing file name", models.Document{ID: "d1"}},
		{"empty chunk content", makeDoc("d1", "a.pdf", "")},
		{"foreign chunk", func() models.Document {
			d := makeDoc("d1", "a.pdf", "text")
			d.Chunks[0].DocumentID = "d9"
			return d
		}()},
		{"gap in chunk indices", func() models.Document {
			d := makeDoc("d1", "a.pdf", "one", "two")
			d.Chunks[1].ChunkIndex = 5
			return d
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewDocumentStore()
			err := s.AddDocument(tt.doc)
			assert.ErrorIs(t, err, models.ErrInvalidInput)
			assert.Empty(t, s.GetAllChunks())
		})
	}
}

func TestDocumentStore_IDCollisionAcrossFilenames(t *testing.T) {
	s := NewDocumentStore()
	require.NoError(t, s.AddDocument(makeDoc("d1", "a.pdf", "one")))

	err := s.AddDocument(makeDoc("d1", "b.pdf", "two"))
	require.ErrorIs(t, err, models.ErrInvalidInput)

	chunks := s.GetAllChunks()
	require.Len(t, chunks, 1)
	assert.Equal(t, "one", chunks[0].Content, "failed add must leave state untouched")
}

func TestDocumentStore_ConcurrentReplaceIsAtomic(t *testing.T) {
	s := NewDocumentStore()
	require.NoError(t, s.AddDocument(makeDoc("v0", "a.pdf", "x", "y")))

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				chunks := s.GetAllChunks()
				// every snapshot holds exactly one generation of a.pdf
				owners := map[string]int{}
				for _, c := range chunks {
					owners[c.DocumentID]++
				}
				assert.Len(t, owners, 1)
				for _, n := range owners {
					assert.Equal(t, 2, n)
				}
			}
		}()
	}

	for i := 1; i <= 200; i++ {
		require.NoError(t, s.AddDocument(makeDoc(fmt.Sprintf("v%d", i), "a.pdf", "x", "y")))
	}
	close(stop)
	wg.Wait()
}

func TestUserStore(t *testing.T) {
	s := NewUserStore()
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, &models.User{ID: "u1", Email: "Ada@example.com", PasswordHash: "h"}))
	assert.ErrorIs(t, s.CreateUser(ctx, &models.User{ID: "u2", Email: "ada@example.com"}), models.ErrAlreadyExists)

	u, err := s.GetUserByEmail(ctx, "ada@EXAMPLE.com")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "u1", u.ID)

	missing, err := s.GetUserByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
