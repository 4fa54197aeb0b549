package models

import (
	"fmt"
	"strings"
	"time"
)

// User represents an authenticated user of the system.
type User struct {
	ID           string    `db:"id" json:"id"`
	FirstName    string    `db:"first_name" json:"first_name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Document represents an uploaded policy or contract document.
// Chunks is only populated on the way into the store; listings carry ChunkCount instead.
type Document struct {
	ID         string          `db:"id" json:"id"`
	UserID     string          `db:"user_id" json:"user_id"`
	FileName   string          `db:"file_name" json:"fileName"`
	FileType   string          `db:"file_type" json:"fileType"`
	Size       int64           `db:"size" json:"size"`
	Pages      int             `db:"pages" json:"pages"`
	Summary    string          `db:"summary" json:"summary"`
	KeyClauses []string        `db:"key_clauses" json:"key_clauses"`
	ChunkCount int             `db:"chunk_count" json:"chunkCount"`
	UploadedAt time.Time       `db:"uploaded_at" json:"uploadedAt"`
	Chunks     []DocumentChunk `db:"-" json:"chunks,omitempty"`
}

// DocumentChunk represents one text chunk from a document.
type DocumentChunk struct {
	ID         string    `db:"id" json:"id"`
	DocumentID string    `db:"document_id" json:"documentId"`
	FileName   string    `db:"file_name" json:"fileName"`
	Content    string    `db:"content" json:"content"`
	PageNumber int       `db:"page_number" json:"pageNumber"`
	Section    string    `db:"section" json:"section"`
	ChunkIndex int       `db:"chunk_index" json:"chunkIndex"`
	Embedding  []float32 `db:"embedding" json:"embedding,omitempty"` // pgvector column
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// ChunkID derives the stable identifier of a chunk from its owner and position.
func ChunkID(documentID string, chunkIndex int) string {
	return fmt.Sprintf("%s_chunk_%d", documentID, chunkIndex)
}

// NewDocument builds a document record, rejecting records without an id or filename.
func NewDocument(id, userID, fileName, fileType string, size int64) (*Document, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: document id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(fileName) == "" {
		return nil, fmt.Errorf("%w: document file name is required", ErrInvalidInput)
	}
	if size < 0 {
		return nil, fmt.Errorf("%w: negative document size %d", ErrInvalidInput, size)
	}
	return &Document{
		ID:         id,
		UserID:     userID,
		FileName:   fileName,
		FileType:   fileType,
		Size:       size,
		UploadedAt: time.Now().UTC(),
	}, nil
}

// NewChunk builds a chunk owned by doc. Content must be non-empty and the
// page number 1-based.
func NewChunk(doc *Document, content string, pageNumber int, section string, chunkIndex int) (DocumentChunk, error) {
	if doc == nil {
		return DocumentChunk{}, fmt.Errorf("%w: chunk without owning document", ErrInvalidInput)
	}
	if strings.TrimSpace(content) == "" {
		return DocumentChunk{}, fmt.Errorf("%w: chunk %d of %s has empty content", ErrInvalidInput, chunkIndex, doc.ID)
	}
	if chunkIndex < 0 {
		return DocumentChunk{}, fmt.Errorf("%w: negative chunk index %d", ErrInvalidInput, chunkIndex)
	}
	if pageNumber < 1 {
		return DocumentChunk{}, fmt.Errorf("%w: page number %d is not 1-based", ErrInvalidInput, pageNumber)
	}
	return DocumentChunk{
		ID:         ChunkID(doc.ID, chunkIndex),
		DocumentID: doc.ID,
		FileName:   doc.FileName,
		Content:    content,
		PageNumber: pageNumber,
		Section:    section,
		ChunkIndex: chunkIndex,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// ChunkReference is the citation attached to an answer.
type ChunkReference struct {
	DocumentID string  `json:"documentId"`
	FileName   string  `json:"fileName"`
	PageNumber int     `json:"pageNumber"`
	Section    string  `json:"section"`
	ChunkIndex int     `json:"chunkIndex"`
	Excerpt    string  `json:"excerpt"`
	Score      float64 `json:"score"`
}

// Decision sources.
const (
	DecisionSourceLLM       = "llm"
	DecisionSourceRuleBased = "rule_based"
)

// QueryDecision is the answer returned for a natural-language question.
type QueryDecision struct {
	Query               string           `json:"Query"`
	Decision            string           `json:"Decision"`
	Amount              string           `json:"Amount,omitempty"`
	Justification       string           `json:"Justification"`
	ConfidenceScore     float64          `json:"ConfidenceScore"`
	References          []ChunkReference `json:"References,omitempty"`
	ReferencedDocuments []string         `json:"ReferencedDocuments"`
	Source              string           `json:"Source"`
	ProcessingTimeMs    int64            `json:"ProcessingTimeMs"`
}

// AuditEntry records one answered query.
type AuditEntry struct {
	ID              string    `db:"id" json:"id"`
	UserID          string    `db:"user_id" json:"user_id"`
	Query           string    `db:"query" json:"query"`
	Decision        string    `db:"decision" json:"decision"`
	ConfidenceScore float64   `db:"confidence" json:"confidence"`
	Source          string    `db:"source" json:"source"`
	ChunkCount      int       `db:"chunk_count" json:"chunkCount"`
	Documents       []string  `db:"documents" json:"documents"`
	DurationMs      int64     `db:"duration_ms" json:"durationMs"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// AuditStatistics aggregates the audit trail over a time window.
type AuditStatistics struct {
	TotalQueries      int            `json:"totalQueries"`
	AverageConfidence float64        `json:"averageConfidence"`
	AverageDurationMs float64        `json:"averageDurationMs"`
	Decisions         map[string]int `json:"decisions"`
	FallbackCount     int            `json:"fallbackCount"`
	From              time.Time      `json:"startDate"`
	To                time.Time      `json:"endDate"`
}
