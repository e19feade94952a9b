package artists

import (
	"context"
	"errors"
	"fmt"

	"github.com/Togather-Foundation/tablon/internal/audit"
	"github.com/Togather-Foundation/tablon/internal/domain"
	"github.com/Togather-Foundation/tablon/internal/sanitize"
	"github.com/Togather-Foundation/tablon/internal/validation"
	"github.com/rs/zerolog"
)

type AuditRecorder interface {
	Record(ctx context.Context, actor audit.Actor, action, details string)
}

// Service is the artist registry: public lookup plus admin maintenance.
type Service struct {
	repo   Repository
	posts  PostSource
	audit  AuditRecorder
	logger zerolog.Logger
}

func NewService(repo Repository, posts PostSource, auditLogger AuditRecorder, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		posts:  posts,
		audit:  auditLogger,
		logger: logger.With().Str("component", "artists").Logger(),
	}
}

func (s *Service) List(ctx context.Context) ([]Artist, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list artists: %w", err)
	}
	return items, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Artist, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Create(ctx context.Context, actor audit.Actor, input Input) (*Artist, error) {
	input, err := clean(input)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.FindByName(ctx, input.Name); err == nil {
		return nil, ErrNameTaken
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("check artist name: %w", err)
	}

	created, err := s.repo.Create(ctx, input)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actor, audit.ActionCreateArtist, "Nombre: "+created.Name)
	return created, nil
}

func (s *Service) Update(ctx context.Context, actor audit.Actor, id int64, input Input) (*Artist, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	input, err := clean(input)
	if err != nil {
		return nil, err
	}

	if other, err := s.repo.FindByName(ctx, input.Name); err == nil && other.ID != id {
		return nil, ErrNameTaken
	} else if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("check artist name: %w", err)
	}

	updated, err := s.repo.Update(ctx, id, input)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actor, audit.ActionEditArtist, fmt.Sprintf("ID: %d, Nombre: %s", updated.ID, updated.Name))
	return updated, nil
}

// Delete removes the artist and its anuncio links. Anuncios stay.
func (s *Service) Delete(ctx context.Context, actor audit.Actor, id int64) error {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete artist: %w", err)
	}
	s.audit.Record(ctx, actor, audit.ActionDeleteArtist, fmt.Sprintf("ID: %d, Nombre: %s", existing.ID, existing.Name))
	return nil
}

func clean(input Input) (Input, error) {
	out := Input{
		Name:  sanitize.Text(input.Name),
		Bio:   sanitize.HTML(input.Bio),
		Phone: sanitize.OptionalText(input.Phone),
		Email: sanitize.OptionalText(input.Email),
		Photo: sanitize.OptionalText(input.Photo),
	}
	if out.Name == "" {
		return Input{}, domain.Invalid("name", "Nombre requerido")
	}
	if out.Photo != nil {
		if err := validation.ValidateURL(*out.Photo, "photo", false); err != nil {
			return Input{}, domain.Invalid("photo", "URL inválida en photo: "+*out.Photo)
		}
	}
	if out.Email != nil {
		if err := validation.ValidateEmail(*out.Email, "email"); err != nil {
			return Input{}, domain.Invalid("email", "Email inválido")
		}
	}
	for platform, link := range input.Socials.Links() {
		link = sanitize.Text(link)
		if link == "" {
			continue
		}
		// WhatsApp is commonly a bare phone number.
		if platform != PlatformWhatsApp {
			if err := validation.ValidateURL(link, platform, false); err != nil {
				return Input{}, domain.Invalid(platform, "URL inválida en "+platform+": "+link)
			}
		}
		out.Socials.SetIfEmpty(platform, link)
	}
	return out, nil
}
