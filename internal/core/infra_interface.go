package core

import (
	"context"
	"time"

	"github.com/markdave123-py/neurodoc/internal/models"
)

// UserStore is the account persistence the auth endpoints need.
// GetUserByEmail returns (nil, nil) when no account matches.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// DbClient is the optional Postgres archive. The in-memory chunk index stays
// authoritative for search; the archive keeps users and a durable copy of
// every ingested document with its chunk vectors.
type DbClient interface {
	UserStore

	// ArchiveDocument stores doc and its chunks, replacing any archived
	// document with the same file name.
	ArchiveDocument(ctx context.Context, doc *models.Document, chunks []models.DocumentChunk, storageURL string) error
	DeleteDocument(ctx context.Context, id string) error
	DeleteAllDocuments(ctx context.Context) error

	Ping(ctx context.Context) error
	Close() error
}

// ObjectClient keeps raw uploads in an object store bound to one bucket.
type ObjectClient interface {
	UploadFile(ctx context.Context, key string, data []byte, contentType string) (url string, err error)
	DeleteFile(ctx context.Context, key string) error
}

// AuditLog is the trail of answered queries.
type AuditLog interface {
	Record(ctx context.Context, entry models.AuditEntry) (models.AuditEntry, error)
	List(ctx context.Context, userID string, from, to time.Time, limit int) ([]models.AuditEntry, error)
	Statistics(ctx context.Context, userID string, from, to time.Time) (models.AuditStatistics, error)
}
