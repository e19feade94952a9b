package artists

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Togather-Foundation/tablon/internal/domain"
	"github.com/Togather-Foundation/tablon/internal/domain/anuncios"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultSinopsis     = "Sin sinopsis disponible para este artista."
	sinopsisMinLength   = 20
	sinopsisMaxLength   = 300
	msgNameRequiredLook = "Nombre de artista requerido"
)

// PostSource supplies the anuncios an artist takes part in.
type PostSource interface {
	ListByArtist(ctx context.Context, artistID int64) ([]anuncios.Anuncio, error)
	ListByParticipant(ctx context.Context, name string) ([]anuncios.Anuncio, error)
}

type Match struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Bio  string `json:"bio"`
}

type Post struct {
	ID          int64              `json:"id"`
	Titulo      string             `json:"titulo"`
	Fecha       time.Time          `json:"fecha"`
	Lugar       string             `json:"lugar"`
	Categoria   anuncios.Categoria `json:"categoria"`
	Precio      float64            `json:"precio"`
	Descripcion string             `json:"descripcion"`
}

// Details is the registry data attached to a profile when the artist is
// known.
type Details struct {
	ID    int64   `json:"id"`
	Bio   string  `json:"bio"`
	Photo *string `json:"photo"`
	Socials
	Email *string `json:"email"`
	Phone *string `json:"phone"`
}

// Profile is the public artist card. Details is nil for names that only
// appear in participant text.
type Profile struct {
	Artist string `json:"artist"`
	*Details
	TotalPosts int            `json:"totalPosts"`
	Categorias map[string]int `json:"categorias"`
	Sinopsis   string         `json:"sinopsis"`
	Posts      []Post         `json:"posts"`
}

// LookupResult holds either several candidate matches or one profile.
type LookupResult struct {
	Matches []Match
	Profile *Profile
}

// Lookup resolves a public artist query. Several partial matches are
// returned for the client to choose from; a single match yields the full
// profile; no match falls back to a search of the participant text.
func (s *Service) Lookup(ctx context.Context, name string) (LookupResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return LookupResult{}, domain.Invalid("name", msgNameRequiredLook)
	}

	found, err := s.repo.SearchByName(ctx, name)
	if err != nil {
		return LookupResult{}, fmt.Errorf("search artists: %w", err)
	}

	switch len(found) {
	case 0:
		posts, err := s.posts.ListByParticipant(ctx, name)
		if err != nil {
			return LookupResult{}, fmt.Errorf("search participants: %w", err)
		}
		return LookupResult{Profile: buildProfile(name, nil, posts)}, nil
	case 1:
		profile, err := s.profile(ctx, found[0])
		if err != nil {
			return LookupResult{}, err
		}
		return LookupResult{Profile: profile}, nil
	default:
		matches := make([]Match, 0, len(found))
		for _, a := range found {
			matches = append(matches, Match{ID: a.ID, Name: a.Name, Bio: a.Bio})
		}
		return LookupResult{Matches: matches}, nil
	}
}

// profile gathers linked anuncios and anuncios that list the artist by
// exact name but were posted before the artist was registered.
func (s *Service) profile(ctx context.Context, artist Artist) (*Profile, error) {
	var linked, mentioned []anuncios.Anuncio

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		linked, err = s.posts.ListByArtist(gctx, artist.ID)
		if err != nil {
			return fmt.Errorf("linked anuncios: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		mentioned, err = s.posts.ListByParticipant(gctx, artist.Name)
		if err != nil {
			return fmt.Errorf("participant anuncios: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[int64]struct{}, len(linked))
	merged := make([]anuncios.Anuncio, 0, len(linked)+len(mentioned))
	for _, a := range linked {
		seen[a.ID] = struct{}{}
		merged = append(merged, a)
	}
	for _, a := range mentioned {
		if _, ok := seen[a.ID]; ok || !listsParticipant(a.Participantes, artist.Name) {
			continue
		}
		seen[a.ID] = struct{}{}
		merged = append(merged, a)
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Fecha.Before(merged[j].Fecha) })

	return buildProfile(artist.Name, &Details{
		ID:      artist.ID,
		Bio:     artist.Bio,
		Photo:   artist.Photo,
		Socials: artist.Socials,
		Email:   artist.Email,
		Phone:   artist.Phone,
	}, merged), nil
}

func listsParticipant(participantes, name string) bool {
	for _, p := range anuncios.ParticipantNames(participantes) {
		if strings.EqualFold(p, name) {
			return true
		}
	}
	return false
}

func buildProfile(label string, details *Details, items []anuncios.Anuncio) *Profile {
	profile := &Profile{
		Artist:     label,
		Details:    details,
		TotalPosts: len(items),
		Categorias: map[string]int{},
		Sinopsis:   Sinopsis(items),
		Posts:      make([]Post, 0, len(items)),
	}
	for _, a := range items {
		profile.Categorias[string(a.Categoria)]++
		profile.Posts = append(profile.Posts, Post{
			ID:          a.ID,
			Titulo:      a.Titulo,
			Fecha:       a.Fecha,
			Lugar:       a.Lugar,
			Categoria:   a.Categoria,
			Precio:      a.Precio,
			Descripcion: a.Descripcion,
		})
	}
	return profile
}

// Sinopsis picks the first description longer than 20 characters,
// truncated to 300 characters.
func Sinopsis(items []anuncios.Anuncio) string {
	for _, a := range items {
		text := strings.TrimSpace(a.Descripcion)
		runes := []rune(text)
		if len(runes) <= sinopsisMinLength {
			continue
		}
		if len(runes) > sinopsisMaxLength {
			return string(runes[:sinopsisMaxLength-3]) + "..."
		}
		return text
	}
	return DefaultSinopsis
}
