package handlers

import (
	"context"
	"net/http"

	"github.com/Togather-Foundation/tablon/internal/audit"
	"github.com/Togather-Foundation/tablon/internal/domain/users"
)

// UserService defines the admin user management operations.
type UserService interface {
	List(ctx context.Context) ([]users.User, error)
	Get(ctx context.Context, id int64) (*users.User, error)
	Create(ctx context.Context, actor audit.Actor, in users.AdminInput) (*users.User, error)
	Update(ctx context.Context, actor audit.Actor, id int64, in users.AdminInput) (*users.User, error)
	SetAdmin(ctx context.Context, actor audit.Actor, id int64, isAdmin bool) (*users.User, error)
	Delete(ctx context.Context, actor audit.Actor, id int64) error
}

type UsersHandler struct {
	service UserService
	env     string
}

func NewUsersHandler(service UserService, env string) *UsersHandler {
	return &UsersHandler{service: service, env: env}
}

// UserRequest is the admin create/update body. An empty password on
// update keeps the current one.
type UserRequest struct {
	Name     string `json:"name" validate:"max=100"`
	Email    string `json:"email" validate:"max=254"`
	Password string `json:"password" validate:"max=128"`
	IsAdmin  bool   `json:"is_admin"`
}

func (req UserRequest) input() users.AdminInput {
	return users.AdminInput{Name: req.Name, Email: req.Email, Password: req.Password, IsAdmin: req.IsAdmin}
}

type SetAdminRequest struct {
	IsAdmin *bool `json:"is_admin" validate:"required"`
}

type UserResponse struct {
	Message string      `json:"message"`
	User    *users.User `json:"user"`
}

func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context())
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", h.env)
	if !ok {
		return
	}
	user, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req UserRequest
	if !decodeJSON(w, r, &req, h.env, false) {
		return
	}
	user, err := h.service.Create(r.Context(), actor(r), req.input())
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	writeJSON(w, http.StatusCreated, UserResponse{Message: "Usuario creado correctamente.", User: user})
}

func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", h.env)
	if !ok {
		return
	}
	var req UserRequest
	if !decodeJSON(w, r, &req, h.env, false) {
		return
	}
	user, err := h.service.Update(r.Context(), actor(r), id, req.input())
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{Message: "Usuario actualizado correctamente.", User: user})
}

// SetAdmin handles PUT /api/users/admin/{id}.
func (h *UsersHandler) SetAdmin(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", h.env)
	if !ok {
		return
	}
	var req SetAdminRequest
	if !decodeJSON(w, r, &req, h.env, false) {
		return
	}
	user, err := h.service.SetAdmin(r.Context(), actor(r), id, *req.IsAdmin)
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{Message: "Rol de administrador actualizado.", User: user})
}

func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", h.env)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), actor(r), id); err != nil {
		writeError(w, r, err, h.env)
		return
	}
	writeMessage(w, http.StatusOK, "Usuario eliminado correctamente.")
}
