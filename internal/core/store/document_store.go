// Package store holds the process-wide document registry and chunk index.
package store

import (
	"fmt"
	"sync"

	"github.com/markdave123-py/neurodoc/internal/models"
)

// DocumentStore is the in-memory registry of uploaded documents and the flat
// index of all their chunks. Mutators take the write lock and swap in freshly
// built slices, so a replace-on-upload is atomic for readers.
type DocumentStore struct {
	mu        sync.RWMutex
	documents []models.Document
	chunks    []models.DocumentChunk
}

// NewDocumentStore returns an empty store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{}
}

// AddDocument registers doc and its chunks. Any live document with the same
// file name is superseded together with all of its chunks.
func (s *DocumentStore) AddDocument(doc models.Document) error {
	_, err := s.ReplaceDocument(doc)
	return err
}

// ReplaceDocument is AddDocument that also returns the documents doc
// superseded, so their archived copies can be cleaned up.
func (s *DocumentStore) ReplaceDocument(doc models.Document) ([]models.Document, error) {
	if err := validateDocument(doc); err != nil {
		return nil, err
	}

	incoming := make([]models.DocumentChunk, len(doc.Chunks))
	copy(incoming, doc.Chunks)
	for i := range incoming {
		if incoming[i].FileName == "" {
			incoming[i].FileName = doc.FileName
		}
	}

	doc.ChunkCount = len(incoming)
	doc.Chunks = nil

	s.mu.Lock()
	defer s.mu.Unlock()

	replaced := map[string]struct{}{doc.ID: {}}
	var superseded []models.Document
	docs := make([]models.Document, 0, len(s.documents)+1)
	for _, d := range s.documents {
		if d.ID == doc.ID && d.FileName != doc.FileName {
			return nil, fmt.Errorf("%w: document id %s already belongs to %q", models.ErrInvalidInput, doc.ID, d.FileName)
		}
		if d.FileName == doc.FileName || d.ID == doc.ID {
			replaced[d.ID] = struct{}{}
			if d.ID != doc.ID {
				superseded = append(superseded, d)
			}
			continue
		}
		docs = append(docs, d)
	}
	docs = append(docs, doc)

	chunks := make([]models.DocumentChunk, 0, len(s.chunks)+len(incoming))
	for _, c := range s.chunks {
		if _, gone := replaced[c.DocumentID]; gone {
			continue
		}
		chunks = append(chunks, c)
	}
	chunks = append(chunks, incoming...)

	s.documents = docs
	s.chunks = chunks
	return superseded, nil
}

// RemoveDocument drops the document with the given id and its chunks.
// It reports whether anything was removed.
func (s *DocumentStore) RemoveDocument(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	docs := make([]models.Document, 0, len(s.documents))
	for _, d := range s.documents {
		if d.ID == id {
			found = true
			continue
		}
		docs = append(docs, d)
	}
	if !found {
		return false
	}

	chunks := make([]models.DocumentChunk, 0, len(s.chunks))
	for _, c := range s.chunks {
		if c.DocumentID != id {
			chunks = append(chunks, c)
		}
	}
	s.documents = docs
	s.chunks = chunks
	return true
}

// GetAllDocuments returns a snapshot of the registered documents in upload order.
func (s *DocumentStore) GetAllDocuments() []models.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Document, len(s.documents))
	copy(out, s.documents)
	return out
}

// GetAllChunks returns a snapshot of every indexed chunk.
func (s *DocumentStore) GetAllChunks() []models.DocumentChunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.DocumentChunk, len(s.chunks))
	copy(out, s.chunks)
	return out
}

// GetDocument looks up a document by id.
func (s *DocumentStore) GetDocument(id string) (models.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.documents {
		if d.ID == id {
			return d, true
		}
	}
	return models.Document{}, false
}

// ChunksByDocument returns the chunks of one document ordered by chunk index.
func (s *DocumentStore) ChunksByDocument(id string) []models.DocumentChunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.DocumentChunk
	for _, c := range s.chunks {
		if c.DocumentID == id {
			out = append(out, c)
		}
	}
	return out
}

// GetReferencedFilenames lists the file names of all live documents.
func (s *DocumentStore) GetReferencedFilenames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.documents))
	for _, d := range s.documents {
		names = append(names, d.FileName)
	}
	return names
}

// Stats reports the number of documents and chunks currently indexed.
func (s *DocumentStore) Stats() (documents, chunks int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.documents), len(s.chunks)
}

// ClearAll empties the registry and the chunk index.
func (s *DocumentStore) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents = nil
	s.chunks = nil
}

func validateDocument(doc models.Document) error {
	if doc.ID == "" {
		return fmt.Errorf("%w: document id is required", models.ErrInvalidInput)
	}
	if doc.FileName == "" {
		return fmt.Errorf("%w: document %s has no file name", models.ErrInvalidInput, doc.ID)
	}
	for i, c := range doc.Chunks {
		if c.Content == "" {
			return fmt.Errorf("%w: chunk %d of %s has empty content", models.ErrInvalidInput, i, doc.ID)
		}
		if c.DocumentID != doc.ID {
			return fmt.Errorf("%w: chunk %d belongs to %q, not %q", models.ErrInvalidInput, i, c.DocumentID, doc.ID)
		}
		if c.ChunkIndex != i {
			return fmt.Errorf("%w: chunk indices of %s are not contiguous (position %d has index %d)",
				models.ErrInvalidInput, doc.ID, i, c.ChunkIndex)
		}
	}
	return nil
}
