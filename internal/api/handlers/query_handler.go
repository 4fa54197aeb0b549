package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/markdave123-py/neurodoc/internal/services"
)

type QueryHandler struct {
	queries *services.QueryService
}

func NewQueryHandler(queries *services.QueryService) *QueryHandler {
	return &QueryHandler{queries: queries}
}

type queryRequest struct {
	Query   string `json:"query"`
	Options struct {
		Limit             int     `json:"limit"`
		Threshold         float64 `json:"threshold"`
		IncludeReferences *bool   `json:"includeReferences"`
	} `json:"options"`
}

// QueryDocuments answers a question against every indexed document.
// References are included unless the caller opts out.
func (h *QueryHandler) QueryDocuments(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	includeRefs := true
	if req.Options.IncludeReferences != nil {
		includeRefs = *req.Options.IncludeReferences
	}

	decision, err := h.queries.Answer(r.Context(), userID, req.Query, services.QueryOptions{
		Limit:             req.Options.Limit,
		MinScore:          req.Options.Threshold,
		IncludeReferences: includeRefs,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}
