package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/neurodoc/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "audit", "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, d := range []string{"Approved", "Rejected", "Approved"} {
		_, err := s.Record(ctx, models.AuditEntry{
			UserID:          "u1",
			Query:           "query",
			Decision:        d,
			ConfidenceScore: 0.5,
			Source:          models.DecisionSourceLLM,
			Documents:       []string{"policy.pdf"},
			CreatedAt:       base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}
	other, err := s.Record(ctx, models.AuditEntry{UserID: "u2", Query: "other", Decision: "Requires Review"})
	require.NoError(t, err)
	assert.NotEmpty(t, other.ID)
	assert.False(t, other.CreatedAt.IsZero())

	got, err := s.List(ctx, "u1", time.Time{}, time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "Approved", got[0].Decision)
	assert.Equal(t, base.Add(2*time.Hour), got[0].CreatedAt)
	assert.Equal(t, []string{"policy.pdf"}, got[0].Documents)

	got, err = s.List(ctx, "u1", base.Add(30*time.Minute), base.Add(90*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Rejected", got[0].Decision)

	got, err = s.List(ctx, "", time.Time{}, time.Time{}, 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = s.List(ctx, "nobody", time.Time{}, time.Time{}, 0)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestRecord_RejectsEmptyQuery(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Record(context.Background(), models.AuditEntry{Query: "  "})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestStatistics(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entries := []models.AuditEntry{
		{UserID: "u1", Query: "a", Decision: "Approved", ConfidenceScore: 0.9, Source: models.DecisionSourceLLM, DurationMs: 100},
		{UserID: "u1", Query: "b", Decision: "Approved", ConfidenceScore: 0.7, Source: models.DecisionSourceLLM, DurationMs: 300},
		{UserID: "u1", Query: "c", Decision: "Information Not Found", ConfidenceScore: 0.2, Source: models.DecisionSourceRuleBased, DurationMs: 200},
		{UserID: "u2", Query: "d", Decision: "Rejected", ConfidenceScore: 1, Source: models.DecisionSourceLLM},
	}
	for _, e := range entries {
		_, err := s.Record(ctx, e)
		require.NoError(t, err)
	}

	stats, err := s.Statistics(ctx, "u1", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalQueries)
	assert.InDelta(t, 0.6, stats.AverageConfidence, 1e-9)
	assert.InDelta(t, 200, stats.AverageDurationMs, 1e-9)
	assert.Equal(t, 1, stats.FallbackCount)
	assert.Equal(t, map[string]int{"Approved": 2, "Information Not Found": 1}, stats.Decisions)

	empty, err := s.Statistics(ctx, "u1", time.Now().Add(time.Hour), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 0, empty.TotalQueries)
	assert.Equal(t, 0.0, empty.AverageConfidence)
	assert.Empty(t, empty.Decisions)
}

func TestNewSQLiteStore_Memory(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Record(context.Background(), models.AuditEntry{Query: "q", Decision: "Approved"})
	require.NoError(t, err)
	got, err := s.List(context.Background(), "", time.Time{}, time.Time{}, 0)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = NewSQLiteStore("")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}
