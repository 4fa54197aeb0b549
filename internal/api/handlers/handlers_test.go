package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	middleware "github.com/markdave123-py/neurodoc/internal/api/middlewares"
	"github.com/markdave123-py/neurodoc/internal/models"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"", time.Time{}},
		{"2026-03-01", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"2026-03-01T10:20:30.123456", time.Date(2026, 3, 1, 10, 20, 30, 123456000, time.UTC)},
		{"2026-03-01T10:20:30+02:00", time.Date(2026, 3, 1, 8, 20, 30, 0, time.UTC)},
		{"2026-03-01 10:20:30", time.Date(2026, 3, 1, 10, 20, 30, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseDate(tt.in)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}

	_, err := parseDate("last tuesday")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestParseEndDate(t *testing.T) {
	got, err := parseEndDate("2026-10-16")
	require.NoError(t, err)
	assert.True(t, got.After(time.Date(2026, 10, 16, 23, 59, 59, 0, time.UTC)))
	assert.True(t, got.Before(time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)))

	got, err = parseEndDate("2026-10-16T09:30:00-05:00")
	require.NoError(t, err)
	assert.True(t, time.Date(2026, 10, 16, 14, 30, 0, 0, time.UTC).Equal(got))

	got, err = parseEndDate("")
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	_, err = parseEndDate("16/10/2026")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: bad", models.ErrInvalidInput), http.StatusBadRequest},
		{models.ErrUnauthorized, http.StatusUnauthorized},
		{fmt.Errorf("wrap: %w", models.ErrNotFound), http.StatusNotFound},
		{models.ErrAlreadyExists, http.StatusConflict},
		{models.ErrLLMUnavailable, http.StatusServiceUnavailable},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		writeServiceError(rec, tt.err)
		assert.Equal(t, tt.want, rec.Code, tt.err.Error())

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.NotEmpty(t, body["error"])
	}

	rec := httptest.NewRecorder()
	writeServiceError(rec, errors.New("secret connection string"))
	assert.NotContains(t, rec.Body.String(), "secret")
}

func TestRequireUser(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := requireUser(rec, req)
	assert.False(t, ok)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req = req.WithContext(middleware.WithUserID(context.Background(), "u1"))
	id, ok := requireUser(rec, req)
	assert.True(t, ok)
	assert.Equal(t, "u1", id)
}

func TestQueryHelpers(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=7&bad=x&include_embeddings=true", nil)
	assert.Equal(t, 7, queryInt(req, "limit", 1))
	assert.Equal(t, 1, queryInt(req, "bad", 1))
	assert.Equal(t, 3, queryInt(req, "missing", 3))
	assert.True(t, queryBool(req, "include_embeddings"))
	assert.False(t, queryBool(req, "missing"))
}
