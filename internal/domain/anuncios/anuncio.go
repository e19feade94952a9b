package anuncios

import (
	"context"
	"strings"
	"time"

	"github.com/Togather-Foundation/tablon/internal/domain"
)

var ErrNotFound = domain.NewError(domain.ErrNotFound, "Anuncio no encontrado.")

// Categoria is the closed set of anuncio kinds.
type Categoria string

const (
	CategoriaConcierto    Categoria = "Concierto"
	CategoriaPresentacion Categoria = "Presentacion"
	CategoriaAnuncio      Categoria = "Anuncio"
	CategoriaOtros        Categoria = "Otros"
)

var categorias = []Categoria{CategoriaConcierto, CategoriaPresentacion, CategoriaAnuncio, CategoriaOtros}

// ParseCategoria matches case-insensitively and returns the canonical value.
func ParseCategoria(raw string) (Categoria, bool) {
	raw = strings.TrimSpace(raw)
	for _, c := range categorias {
		if strings.EqualFold(raw, string(c)) {
			return c, true
		}
	}
	return "", false
}

// Anuncio is a posted announcement. Autor is filled from the owning user
// on reads.
type Anuncio struct {
	ID            int64     `json:"id"`
	Titulo        string    `json:"titulo"`
	Descripcion   string    `json:"descripcion"`
	Fecha         time.Time `json:"fecha"`
	Lugar         string    `json:"lugar"`
	Precio        float64   `json:"precio"`
	Categoria     Categoria `json:"categoria"`
	Participantes string    `json:"participantes"`
	UserID        int64     `json:"user_id"`
	Autor         string    `json:"autor,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Input is a validated, sanitized anuncio ready to be stored.
type Input struct {
	Titulo        string
	Descripcion   string
	Fecha         time.Time
	Lugar         string
	Precio        float64
	Categoria     Categoria
	Participantes string
}

// Repository stores anuncios. Create and Update relink participating
// artists in the same transaction as the write.
type Repository interface {
	List(ctx context.Context, filters Filters) ([]Anuncio, error)
	GetByID(ctx context.Context, id int64) (*Anuncio, error)
	Create(ctx context.Context, userID int64, input Input) (*Anuncio, error)
	Update(ctx context.Context, id int64, input Input) (*Anuncio, error)
	Delete(ctx context.Context, id int64) error
	ListByArtist(ctx context.Context, artistID int64) ([]Anuncio, error)
	ListByParticipant(ctx context.Context, name string) ([]Anuncio, error)
}

// ParticipantNames splits the free-text participant list on commas.
// Blank entries are dropped and duplicates keep their first position.
func ParticipantNames(participantes string) []string {
	parts := strings.Split(participantes, ",")
	names := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}
