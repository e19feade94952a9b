package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/Togather-Foundation/tablon/internal/api/middleware"
	"github.com/Togather-Foundation/tablon/internal/auth"
	"github.com/Togather-Foundation/tablon/internal/domain/anuncios"
)

type AnuncioService interface {
	List(ctx context.Context, filters anuncios.Filters) ([]anuncios.Anuncio, error)
	Get(ctx context.Context, id int64) (*anuncios.Anuncio, error)
	Create(ctx context.Context, identity auth.Identity, draft anuncios.Draft) (*anuncios.Anuncio, error)
	Update(ctx context.Context, identity auth.Identity, id int64, draft anuncios.Draft) (*anuncios.Anuncio, error)
	Delete(ctx context.Context, identity auth.Identity, id int64) error
}

type AnunciosHandler struct {
	service AnuncioService
	env     string
}

func NewAnunciosHandler(service AnuncioService, env string) *AnunciosHandler {
	return &AnunciosHandler{service: service, env: env}
}

// AnuncioRequest is the create/update body. Precio arrives as a number or
// a numeric string from HTML forms.
type AnuncioRequest struct {
	Titulo        string     `json:"titulo" validate:"max=200"`
	Descripcion   string     `json:"descripcion" validate:"max=5000"`
	Fecha         string     `json:"fecha" validate:"max=100"`
	Lugar         string     `json:"lugar" validate:"max=200"`
	Precio        formNumber `json:"precio"`
	Categoria     string     `json:"categoria" validate:"max=50"`
	Participantes string     `json:"participantes" validate:"max=1000"`
}

type formNumber struct {
	Value *float64
}

func (n *formNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		n.Value = nil
		return nil
	}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case float64:
		n.Value = &v
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			n.Value = nil
			return nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("precio must be a number")
		}
		n.Value = &f
	default:
		return fmt.Errorf("precio must be a number")
	}
	return nil
}

func (req AnuncioRequest) draft() anuncios.Draft {
	return anuncios.Draft{
		Titulo:        req.Titulo,
		Descripcion:   req.Descripcion,
		Fecha:         req.Fecha,
		Lugar:         req.Lugar,
		Precio:        req.Precio.Value,
		Categoria:     req.Categoria,
		Participantes: req.Participantes,
	}
}

type AnuncioResponse struct {
	Message string            `json:"message"`
	Anuncio *anuncios.Anuncio `json:"anuncio"`
}

// List handles GET /api/anuncios.
func (h *AnunciosHandler) List(w http.ResponseWriter, r *http.Request) {
	filters, err := anuncios.ParseFilters(r.URL.Query())
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	items, err := h.service.List(r.Context(), filters)
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *AnunciosHandler) Get(w http.ResponseWriter, r *http.Request) {
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

func (h *AnunciosHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFromContext(r.Context())
	var req AnuncioRequest
	if !decodeJSON(w, r, &req, h.env, false) {
		return
	}
	created, err := h.service.Create(r.Context(), identity, req.draft())
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	writeJSON(w, http.StatusCreated, AnuncioResponse{Message: "Anuncio creado correctamente.", Anuncio: created})
}

func (h *AnunciosHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", h.env)
	if !ok {
		return
	}
	identity, _ := middleware.IdentityFromContext(r.Context())
	var req AnuncioRequest
	if !decodeJSON(w, r, &req, h.env, false) {
		return
	}
	updated, err := h.service.Update(r.Context(), identity, id, req.draft())
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	writeJSON(w, http.StatusOK, AnuncioResponse{Message: "Anuncio editado correctamente.", Anuncio: updated})
}

func (h *AnunciosHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", h.env)
	if !ok {
		return
	}
	identity, _ := middleware.IdentityFromContext(r.Context())
	if err := h.service.Delete(r.Context(), identity, id); err != nil {
		writeError(w, r, err, h.env)
		return
	}
	writeMessage(w, http.StatusOK, "Anuncio eliminado correctamente.")
}
