package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/markdave123-py/neurodoc/internal/config"
	"github.com/markdave123-py/neurodoc/internal/core"
	"github.com/markdave123-py/neurodoc/internal/models"
)

const uniqueViolation = "23505"

type DatabaseClient struct {
	db *sql.DB
}

var _ core.DbClient = (*DatabaseClient)(nil)

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (*DatabaseClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	dsn, err := BuildDSN(cfg.DatabaseURL, cfg.SslCertPath)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func (c *DatabaseClient) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Users

func (c *DatabaseClient) CreateUser(ctx context.Context, user *models.User) error {
	if user == nil {
		return fmt.Errorf("%w: nil user", models.ErrInvalidInput)
	}
	const q = `
		INSERT INTO users (id, first_name, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = now
	}
	_, err := c.db.ExecContext(ctx, q,
		user.ID, user.FirstName, strings.ToLower(strings.TrimSpace(user.Email)), user.PasswordHash, user.CreatedAt, user.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: email %s", models.ErrAlreadyExists, user.Email)
	}
	return err
}

func (c *DatabaseClient) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const q = `
		SELECT id, first_name, email, password_hash, created_at, updated_at
		FROM users WHERE lower(email) = lower($1)
	`
	var u models.User
	err := c.db.QueryRowContext(ctx, q, strings.TrimSpace(email)).Scan(
		&u.ID, &u.FirstName, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Documents

// ArchiveDocument replaces any archived document with the same file name or
// id and writes doc with its chunks in a single transaction.
func (c *DatabaseClient) ArchiveDocument(ctx context.Context, doc *models.Document, chunks []models.DocumentChunk, storageURL string) error {
	if doc == nil {
		return fmt.Errorf("%w: nil document", models.ErrInvalidInput)
	}
	clauses, err := json.Marshal(nonNil(doc.KeyClauses))
	if err != nil {
		return fmt.Errorf("encode key clauses: %w", err)
	}

	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	// chunks go with their document through ON DELETE CASCADE
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE file_name = $1 OR id = $2`, doc.FileName, doc.ID); err != nil {
		return fmt.Errorf("replace previous %s: %w", doc.FileName, err)
	}

	const insertDoc = `
		INSERT INTO documents
			(id, user_id, file_name, file_type, size, pages, summary, key_clauses, chunk_count, storage_url, uploaded_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9, $10, $11)
	`
	if _, err := tx.ExecContext(ctx, insertDoc,
		doc.ID, doc.UserID, doc.FileName, doc.FileType, doc.Size, doc.Pages, doc.Summary,
		string(clauses), len(chunks), storageURL, doc.UploadedAt,
	); err != nil {
		return fmt.Errorf("insert document: %w", err)
	}

	if len(chunks) > 0 {
		const insertChunk = `
			INSERT INTO document_chunks
				(id, document_id, chunk_index, page_number, section, content, embedding, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`
		stmt, err := tx.PrepareContext(ctx, insertChunk)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i := range chunks {
			ch := &chunks[i]
			if _, err := stmt.ExecContext(ctx,
				ch.ID, doc.ID, ch.ChunkIndex, ch.PageNumber, ch.Section, ch.Content, embeddingArg(ch.Embedding), ch.CreatedAt,
			); err != nil {
				return fmt.Errorf("insert chunk %d: %w", ch.ChunkIndex, err)
			}
		}
	}
	return tx.Commit()
}

func (c *DatabaseClient) DeleteDocument(ctx context.Context, id string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: archived document %s", models.ErrNotFound, id)
	}
	return nil
}

func (c *DatabaseClient) DeleteAllDocuments(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM documents`)
	return err
}

// embeddingArg maps a chunk vector to a pgvector parameter; a chunk without
// a vector is stored as NULL.
func embeddingArg(v []float32) any {
	if len(v) == 0 {
		return nil
	}
	return pgvector.NewVector(v)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
