package handlers

import (
	"context"
	"net/http"

	"github.com/Togather-Foundation/tablon/internal/api/middleware"
	"github.com/Togather-Foundation/tablon/internal/domain/notifications"
)

type NotificationService interface {
	List(ctx context.Context, userID int64, limit, offset int) ([]notifications.Notification, error)
	MarkRead(ctx context.Context, userID, id int64) error
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
	UnreadCount(ctx context.Context, userID int64) (int, error)
}

// NotificationsHandler only ever touches the caller's own notifications.
type NotificationsHandler struct {
	service NotificationService
	env     string
}

func NewNotificationsHandler(service NotificationService, env string) *NotificationsHandler {
	return &NotificationsHandler{service: service, env: env}
}

func (h *NotificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFromContext(r.Context())
	limit, err := queryInt(r, "limit", notifications.DefaultListLimit)
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	items, err := h.service.List(r.Context(), identity.ID, limit, offset)
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *NotificationsHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFromContext(r.Context())
	n, err := h.service.UnreadCount(r.Context(), identity.ID)
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

func (h *NotificationsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", h.env)
	if !ok {
		return
	}
	identity, _ := middleware.IdentityFromContext(r.Context())
	if err := h.service.MarkRead(r.Context(), identity.ID, id); err != nil {
		writeError(w, r, err, h.env)
		return
	}
	writeMessage(w, http.StatusOK, "Notificación marcada como leída")
}

func (h *NotificationsHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFromContext(r.Context())
	n, err := h.service.MarkAllRead(r.Context(), identity.ID)
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Notificaciones marcadas como leídas", "updated": n})
}
