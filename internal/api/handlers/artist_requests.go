package handlers

import (
	"context"
	"net/http"

	"github.com/Togather-Foundation/tablon/internal/api/middleware"
	"github.com/Togather-Foundation/tablon/internal/auth"
	"github.com/Togather-Foundation/tablon/internal/domain/artistrequests"
)

type ArtistRequestService interface {
	Submit(ctx context.Context, requester auth.Identity, in artistrequests.SubmitInput) (artistrequests.SubmitResult, error)
	List(ctx context.Context, filters artistrequests.Filters) (artistrequests.ListResult, error)
	Get(ctx context.Context, id int64) (*artistrequests.ArtistRequest, error)
	Approve(ctx context.Context, admin auth.Identity, id int64, adminNotes string) (artistrequests.ApproveResult, error)
	Reject(ctx context.Context, admin auth.Identity, id int64, reason string) (artistrequests.RejectResult, error)
	Delete(ctx context.Context, admin auth.Identity, id int64) error
}

// ArtistRequestsHandler serves the submission endpoint and the admin
// moderation queue.
type ArtistRequestsHandler struct {
	service ArtistRequestService
	env     string
}

func NewArtistRequestsHandler(service ArtistRequestService, env string) *ArtistRequestsHandler {
	return &ArtistRequestsHandler{service: service, env: env}
}

type SubmitResponse struct {
	Message  string   `json:"message"`
	ID       int64    `json:"id"`
	Warnings []string `json:"warnings,omitempty"`
}

type ApproveRequest struct {
	AdminNotes string `json:"admin_notes" validate:"max=2000"`
}

type ApproveResponse struct {
	Message  string   `json:"message"`
	ArtistID int64    `json:"artistId"`
	Warnings []string `json:"warnings,omitempty"`
}

type RejectRequest struct {
	Reason string `json:"reason" validate:"max=2000"`
}

// Submit handles POST /api/artist-requests.
func (h *ArtistRequestsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFromContext(r.Context())
	var in artistrequests.SubmitInput
	if !decodeJSON(w, r, &in, h.env, false) {
		return
	}
	result, err := h.service.Submit(r.Context(), identity, in)
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	writeJSON(w, http.StatusCreated, SubmitResponse{
		Message:  "Solicitud creada",
		ID:       result.ID,
		Warnings: warningText(result.Warnings),
	})
}

// List handles GET /api/admin/artist-requests.
func (h *ArtistRequestsHandler) List(w http.ResponseWriter, r *http.Request) {
	filters, err := artistrequests.ParseListFilters(r.URL.Query())
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	result, err := h.service.List(r.Context(), filters)
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *ArtistRequestsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", h.env)
	if !ok {
		return
	}
	item, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// Approve handles POST /api/admin/artist-requests/{id}/approve. The body
// is optional.
func (h *ArtistRequestsHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", h.env)
	if !ok {
		return
	}
	var req ApproveRequest
	if !decodeJSON(w, r, &req, h.env, true) {
		return
	}
	admin, _ := middleware.IdentityFromContext(r.Context())
	result, err := h.service.Approve(r.Context(), admin, id, req.AdminNotes)
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	writeJSON(w, http.StatusOK, ApproveResponse{
		Message:  "Solicitud aprobada y artista creado",
		ArtistID: result.ArtistID,
		Warnings: warningText(result.Warnings),
	})
}

func (h *ArtistRequestsHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", h.env)
	if !ok {
		return
	}
	var req RejectRequest
	if !decodeJSON(w, r, &req, h.env, true) {
		return
	}
	admin, _ := middleware.IdentityFromContext(r.Context())
	result, err := h.service.Reject(r.Context(), admin, id, req.Reason)
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Solicitud rechazada", Warnings: warningText(result.Warnings)})
}

func (h *ArtistRequestsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", h.env)
	if !ok {
		return
	}
	admin, _ := middleware.IdentityFromContext(r.Context())
	if err := h.service.Delete(r.Context(), admin, id); err != nil {
		writeError(w, r, err, h.env)
		return
	}
	writeMessage(w, http.StatusOK, "Solicitud eliminada correctamente")
}

// warningText exposes which side effects failed, not why.
func warningText(warnings []artistrequests.SoftFailure) []string {
	if len(warnings) == 0 {
		return nil
	}
	out := make([]string, 0, len(warnings))
	for _, w := range warnings {
		out = append(out, w.Step)
	}
	return out
}
