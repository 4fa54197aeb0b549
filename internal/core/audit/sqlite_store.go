// Package audit keeps the trail of answered queries in a local SQLite file.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/markdave123-py/neurodoc/internal/core"
	"github.com/markdave123-py/neurodoc/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS audit_entries (
	id           TEXT PRIMARY KEY,
	user_id      TEXT NOT NULL DEFAULT '',
	query        TEXT NOT NULL,
	decision     TEXT NOT NULL,
	confidence   REAL NOT NULL DEFAULT 0,
	source       TEXT NOT NULL DEFAULT '',
	chunk_count  INTEGER NOT NULL DEFAULT 0,
	documents    TEXT NOT NULL DEFAULT '[]',
	duration_ms  INTEGER NOT NULL DEFAULT 0,
	created_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS audit_entries_user_created_idx ON audit_entries (user_id, created_at);
`

// DefaultListLimit bounds List when the caller passes no limit.
const DefaultListLimit = 20

// SQLiteStore implements core.AuditLog.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

var _ core.AuditLog = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the audit database at path.
// ":memory:" keeps the trail in memory for the life of the process.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: audit database path is empty", models.ErrInvalidInput)
	}
	dsn := path
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, fmt.Errorf("creating audit directory: %w", err)
			}
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening audit database: %w", err)
	}
	// one writer; also keeps a :memory: database on a single connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating audit schema: %w", err)
	}
	return &SQLiteStore{db: db, path: path}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Record appends an entry, filling in the id and timestamp when missing.
func (s *SQLiteStore) Record(ctx context.Context, entry models.AuditEntry) (models.AuditEntry, error) {
	if strings.TrimSpace(entry.Query) == "" {
		return entry, fmt.Errorf("%w: audit entry without query", models.ErrInvalidInput)
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.Documents == nil {
		entry.Documents = []string{}
	}
	docs, err := json.Marshal(entry.Documents)
	if err != nil {
		return entry, fmt.Errorf("marshalling documents: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_entries (id, user_id, query, decision, confidence, source, chunk_count, documents, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.UserID, entry.Query, entry.Decision, entry.ConfidenceScore, entry.Source,
		entry.ChunkCount, string(docs), entry.DurationMs, entry.CreatedAt.UnixMilli())
	if err != nil {
		return entry, fmt.Errorf("inserting audit entry: %w", err)
	}
	return entry, nil
}

// List returns the newest entries first. An empty userID matches every user
// and a zero from or to leaves that end of the window open.
func (s *SQLiteStore) List(ctx context.Context, userID string, from, to time.Time, limit int) ([]models.AuditEntry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	where, args := window(userID, from, to)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, query, decision, confidence, source, chunk_count, documents, duration_ms, created_at
		FROM audit_entries`+where+`
		ORDER BY created_at DESC, id
		LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit entries: %w", err)
	}
	defer rows.Close()

	out := []models.AuditEntry{}
	for rows.Next() {
		var (
			e       models.AuditEntry
			docs    string
			created int64
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Query, &e.Decision, &e.ConfidenceScore, &e.Source,
			&e.ChunkCount, &docs, &e.DurationMs, &created); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		if err := json.Unmarshal([]byte(docs), &e.Documents); err != nil {
			return nil, fmt.Errorf("unmarshalling documents of %s: %w", e.ID, err)
		}
		e.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// Statistics aggregates the entries inside the window.
func (s *SQLiteStore) Statistics(ctx context.Context, userID string, from, to time.Time) (models.AuditStatistics, error) {
	stats := models.AuditStatistics{Decisions: map[string]int{}, From: from, To: to}
	where, args := window(userID, from, to)

	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(AVG(confidence), 0), COALESCE(AVG(duration_ms), 0),
		       COALESCE(SUM(CASE WHEN source = ? THEN 1 ELSE 0 END), 0)
		FROM audit_entries`+where, append([]any{models.DecisionSourceRuleBased}, args...)...)
	if err := row.Scan(&stats.TotalQueries, &stats.AverageConfidence, &stats.AverageDurationMs, &stats.FallbackCount); err != nil {
		return stats, fmt.Errorf("aggregating audit entries: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT decision, COUNT(*) FROM audit_entries`+where+` GROUP BY decision`, args...)
	if err != nil {
		return stats, fmt.Errorf("grouping audit decisions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			decision string
			n        int
		)
		if err := rows.Scan(&decision, &n); err != nil {
			return stats, fmt.Errorf("scanning decision count: %w", err)
		}
		stats.Decisions[decision] = n
	}
	return stats, rows.Err()
}

// window builds the WHERE clause shared by List and Statistics.
func window(userID string, from, to time.Time) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if userID != "" {
		conds = append(conds, "user_id = ?")
		args = append(args, userID)
	}
	if !from.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, from.UnixMilli())
	}
	if !to.IsZero() {
		conds = append(conds, "created_at <= ?")
		args = append(args, to.UnixMilli())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
