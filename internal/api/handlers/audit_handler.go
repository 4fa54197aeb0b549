package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/markdave123-py/neurodoc/internal/core"
	"github.com/markdave123-py/neurodoc/internal/models"
)

// statsWindow is the default span of POST /api/audit.
const statsWindow = 30 * 24 * time.Hour

type AuditHandler struct {
	audit core.AuditLog
	now   func() time.Time
}

func NewAuditHandler(audit core.AuditLog) *AuditHandler {
	return &AuditHandler{audit: audit, now: time.Now}
}

// GetAuditTrail lists the caller's answered queries, newest first.
func (h *AuditHandler) GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	from, err := parseDate(r.URL.Query().Get("start_date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := parseEndDate(r.URL.Query().Get("end_date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := h.audit.List(r.Context(), userID, from, to, queryInt(r, "limit", 0))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "count": len(entries)})
}

type statsRequest struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// GetStatistics aggregates the caller's audit trail. The window defaults to
// the last 30 days.
func (h *AuditHandler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req statsRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid body")
			return
		}
	}

	from, err := parseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := parseEndDate(req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if to.IsZero() {
		to = h.now().UTC()
	}
	if from.IsZero() {
		from = to.Add(-statsWindow)
	}
	if from.After(to) {
		writeError(w, http.StatusBadRequest, "startDate is after endDate")
		return
	}

	stats, err := h.audit.Statistics(r.Context(), userID, from, to)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]models.AuditStatistics{"statistics": stats})
}

const dateOnly = "2006-01-02"

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	dateOnly,
}

// parseDate accepts RFC 3339, a zone-less ISO timestamp (read as UTC) or a
// bare date. Blank input is the zero time.
func parseDate(s string) (time.Time, error) {
	t, _, err := parseDateLayout(s)
	return t, err
}

// parseEndDate is parseDate for the upper bound of a window: a bare date
// covers the whole day.
func parseEndDate(s string) (time.Time, error) {
	t, layout, err := parseDateLayout(s)
	if err != nil || layout != dateOnly {
		return t, err
	}
	return t.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
}

func parseDateLayout(s string) (time.Time, string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, "", nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), layout, nil
		}
	}
	return time.Time{}, "", fmt.Errorf("%w: unrecognised date %q", models.ErrInvalidInput, s)
}
