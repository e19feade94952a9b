package handlers

import (
	"context"
	"net/http"

	"github.com/Togather-Foundation/tablon/internal/api/middleware"
	"github.com/Togather-Foundation/tablon/internal/audit"
	"github.com/Togather-Foundation/tablon/internal/domain/artists"
)

type ArtistService interface {
	Lookup(ctx context.Context, name string) (artists.LookupResult, error)
	List(ctx context.Context) ([]artists.Artist, error)
	Create(ctx context.Context, actor audit.Actor, input artists.Input) (*artists.Artist, error)
	Update(ctx context.Context, actor audit.Actor, id int64, input artists.Input) (*artists.Artist, error)
	Delete(ctx context.Context, actor audit.Actor, id int64) error
}

type ArtistsHandler struct {
	service ArtistService
	env     string
}

func NewArtistsHandler(service ArtistService, env string) *ArtistsHandler {
	return &ArtistsHandler{service: service, env: env}
}

// ArtistRequest is the admin create/update body.
type ArtistRequest struct {
	Name      string  `json:"name" validate:"max=200"`
	Bio       string  `json:"bio" validate:"max=5000"`
	Photo     *string `json:"photo" validate:"omitempty,max=2048"`
	Spotify   *string `json:"spotify" validate:"omitempty,max=2048"`
	YouTube   *string `json:"youtube" validate:"omitempty,max=2048"`
	WhatsApp  *string `json:"whatsapp" validate:"omitempty,max=2048"`
	Instagram *string `json:"instagram" validate:"omitempty,max=2048"`
	Facebook  *string `json:"facebook" validate:"omitempty,max=2048"`
	Threads   *string `json:"threads" validate:"omitempty,max=2048"`
	TikTok    *string `json:"tiktok" validate:"omitempty,max=2048"`
	Bandcamp  *string `json:"bandcamp" validate:"omitempty,max=2048"`
	Website   *string `json:"website" validate:"omitempty,max=2048"`
	Email     *string `json:"email" validate:"omitempty,max=254"`
	Phone     *string `json:"phone" validate:"omitempty,max=50"`
}

func (req ArtistRequest) input() artists.Input {
	return artists.Input{
		Name:  req.Name,
		Bio:   req.Bio,
		Photo: req.Photo,
		Socials: artists.Socials{
			Spotify:   req.Spotify,
			YouTube:   req.YouTube,
			WhatsApp:  req.WhatsApp,
			Instagram: req.Instagram,
			Facebook:  req.Facebook,
			Threads:   req.Threads,
			TikTok:    req.TikTok,
			Bandcamp:  req.Bandcamp,
			Website:   req.Website,
		},
		Email: req.Email,
		Phone: req.Phone,
	}
}

type ArtistResponse struct {
	Message string          `json:"message"`
	ID      int64           `json:"id"`
	Artist  *artists.Artist `json:"artist"`
}

// Lookup handles GET /api/artistas?name= and GET /api/artistas/{name}.
func (h *ArtistsHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "name")
	if name == "" {
		name = r.URL.Query().Get("name")
	}
	result, err := h.service.Lookup(r.Context(), name)
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	if result.Profile == nil {
		matches := result.Matches
		if matches == nil {
			matches = []artists.Match{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"matches": matches})
		return
	}
	writeJSON(w, http.StatusOK, result.Profile)
}

func (h *ArtistsHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context())
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *ArtistsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req ArtistRequest
	if !decodeJSON(w, r, &req, h.env, false) {
		return
	}
	created, err := h.service.Create(r.Context(), actor(r), req.input())
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	writeJSON(w, http.StatusCreated, ArtistResponse{Message: "Artista creado", ID: created.ID, Artist: created})
}

func (h *ArtistsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", h.env)
	if !ok {
		return
	}
	var req ArtistRequest
	if !decodeJSON(w, r, &req, h.env, false) {
		return
	}
	updated, err := h.service.Update(r.Context(), actor(r), id, req.input())
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	writeJSON(w, http.StatusOK, ArtistResponse{Message: "Artista actualizado", ID: updated.ID, Artist: updated})
}

func (h *ArtistsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", h.env)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), actor(r), id); err != nil {
		writeError(w, r, err, h.env)
		return
	}
	writeMessage(w, http.StatusOK, "Artista eliminado")
}

func actor(r *http.Request) audit.Actor {
	identity, _ := middleware.IdentityFromContext(r.Context())
	return audit.ActorFromIdentity(identity)
}
