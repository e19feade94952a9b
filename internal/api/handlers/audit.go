package handlers

import (
	"context"
	"net/http"

	"github.com/Togather-Foundation/tablon/internal/audit"
)

type AuditLister interface {
	List(ctx context.Context, limit, offset int) ([]audit.Entry, error)
}

type AuditHandler struct {
	entries AuditLister
	env     string
}

func NewAuditHandler(entries AuditLister, env string) *AuditHandler {
	return &AuditHandler{entries: entries, env: env}
}

// List handles GET /api/audit?limit=&offset=.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", audit.DefaultListLimit)
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	items, err := h.entries.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	writeJSON(w, http.StatusOK, items)
}
