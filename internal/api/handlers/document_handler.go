package handlers

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/markdave123-py/neurodoc/internal/services"
)

// MaxUploadBytes bounds one multipart upload.
const MaxUploadBytes = 50 << 20

type DocumentHandler struct {
	docs *services.DocumentService
}

func NewDocumentHandler(docs *services.DocumentService) *DocumentHandler {
	return &DocumentHandler{docs: docs}
}

// UploadDocument reads the multipart "file" field and indexes it before
// responding; archival happens in the background.
func (h *DocumentHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read file")
		return
	}

	uploadctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	doc, err := h.docs.Upload(uploadctx, userID, header.Filename, header.Header.Get("Content-Type"), data)
	if err != nil {
		log.Printf("DocumentHandler: upload of %s failed: %v", header.Filename, err)
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"document": doc})
}

func (h *DocumentHandler) GetDocuments(w http.ResponseWriter, r *http.Request) {
	page := h.docs.List(services.ListOptions{
		Limit:    queryInt(r, "limit", 0),
		Offset:   queryInt(r, "offset", 0),
		Search:   r.URL.Query().Get("search"),
		FileType: r.URL.Query().Get("fileType"),
	})
	writeJSON(w, http.StatusOK, page)
}

func (h *DocumentHandler) GetFilenames(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"filenames": h.docs.Filenames()})
}

func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.docs.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

func (h *DocumentHandler) ClearDocuments(w http.ResponseWriter, r *http.Request) {
	docs, chunks := h.docs.ClearAll(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"deletedDocuments": docs, "deletedChunks": chunks})
}

// GetClauses lists indexed chunks, optionally of one document.
func (h *DocumentHandler) GetClauses(w http.ResponseWriter, r *http.Request) {
	docID := r.URL.Query().Get("doc_id")
	clauses, err := h.docs.Clauses(docID, queryInt(r, "limit", 0), queryBool(r, "include_embeddings"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"clauses": clauses, "count": len(clauses)})
}
