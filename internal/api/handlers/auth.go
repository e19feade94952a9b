package handlers

import (
	"context"
	"net/http"

	"github.com/Togather-Foundation/tablon/internal/api/middleware"
	"github.com/Togather-Foundation/tablon/internal/domain"
	"github.com/Togather-Foundation/tablon/internal/domain/users"
)

// AccountService is the slice of users.Service the auth endpoints need.
type AccountService interface {
	Register(ctx context.Context, in users.RegisterInput) (users.Session, error)
	Login(ctx context.Context, email, password string) (users.Session, error)
	Verify(ctx context.Context, id int64) (*users.User, error)
}

type AuthHandler struct {
	accounts AccountService
	env      string
}

func NewAuthHandler(accounts AccountService, env string) *AuthHandler {
	return &AuthHandler{accounts: accounts, env: env}
}

type RegisterRequest struct {
	Name     string `json:"name" validate:"max=100"`
	Email    string `json:"email" validate:"max=254"`
	Password string `json:"password" validate:"max=128"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"max=254"`
	Password string `json:"password" validate:"max=128"`
}

type SessionResponse struct {
	Message string     `json:"message"`
	Token   string     `json:"token"`
	User    users.User `json:"user"`
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeJSON(w, r, &req, h.env, false) {
		return
	}
	session, err := h.accounts.Register(r.Context(), users.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	writeJSON(w, http.StatusCreated, SessionResponse{
		Message: "Usuario registrado exitosamente",
		Token:   session.Token,
		User:    session.User,
	})
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req, h.env, false) {
		return
	}
	session, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{
		Message: "Login exitoso",
		Token:   session.Token,
		User:    session.User,
	})
}

// Verify handles GET /api/auth/verify. The token only proves who the
// caller was; the user row is read fresh.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, domain.NewError(domain.ErrUnauthenticated, "Token no proporcionado"), h.env)
		return
	}
	user, err := h.accounts.Verify(r.Context(), identity.ID)
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}
