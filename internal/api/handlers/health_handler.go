package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/markdave123-py/neurodoc/internal/core"
	"github.com/markdave123-py/neurodoc/internal/services"
)

// HealthInfo names the moving parts reported by the detailed health check.
type HealthInfo struct {
	Strategy string
	LLM      string
	Embedder string
	Version  string
}

type HealthHandler struct {
	docs    *services.DocumentService
	db      core.DbClient
	info    HealthInfo
	started time.Time
}

// NewHealthHandler reports on docs and, when non-nil, pings db.
func NewHealthHandler(docs *services.DocumentService, db core.DbClient, info HealthInfo) *HealthHandler {
	return &HealthHandler{docs: docs, db: db, info: info, started: time.Now()}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	}
	if !queryBool(r, "detailed") {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	documents, chunks := h.docs.Stats()
	llm := h.info.LLM
	if llm == "" {
		llm = "rule_based"
	}
	resp["version"] = h.info.Version
	resp["uptimeSeconds"] = int64(time.Since(h.started).Seconds())
	resp["documents"] = documents
	resp["chunks"] = chunks
	resp["retrieval"] = h.info.Strategy
	resp["embedder"] = h.info.Embedder
	resp["llm"] = llm

	database := "disabled"
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			database = "unreachable"
			resp["status"] = "degraded"
		} else {
			database = "ok"
		}
	}
	resp["database"] = database

	writeJSON(w, http.StatusOK, resp)
}
