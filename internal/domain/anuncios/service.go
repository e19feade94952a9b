package anuncios

import (
	"context"
	"fmt"
	"time"

	"github.com/Togather-Foundation/tablon/internal/audit"
	"github.com/Togather-Foundation/tablon/internal/auth"
	"github.com/Togather-Foundation/tablon/internal/domain"
	"github.com/Togather-Foundation/tablon/internal/sanitize"
	"github.com/rs/zerolog"
)

const msgRequiredFields = "Todos los campos obligatorios deben estar completos."

var (
	ErrForbiddenEdit   = domain.NewError(domain.ErrForbidden, "No tienes permiso para editar este anuncio.")
	ErrForbiddenDelete = domain.NewError(domain.ErrForbidden, "No tienes permiso para eliminar este anuncio.")
)

type AuditRecorder interface {
	Record(ctx context.Context, actor audit.Actor, action, details string)
}

// Draft is an anuncio as submitted by a client, before validation.
type Draft struct {
	Titulo        string
	Descripcion   string
	Fecha         string
	Lugar         string
	Precio        *float64
	Categoria     string
	Participantes string
}

// Service is the anuncio catalog.
type Service struct {
	repo   Repository
	audit  AuditRecorder
	logger zerolog.Logger
}

func NewService(repo Repository, auditLogger AuditRecorder, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		audit:  auditLogger,
		logger: logger.With().Str("component", "anuncios").Logger(),
	}
}

func (s *Service) List(ctx context.Context, filters Filters) ([]Anuncio, error) {
	items, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("list anuncios: %w", err)
	}
	return items, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Anuncio, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Create(ctx context.Context, identity auth.Identity, draft Draft) (*Anuncio, error) {
	input, err := draft.validate()
	if err != nil {
		return nil, err
	}

	created, err := s.repo.Create(ctx, identity.ID, input)
	if err != nil {
		return nil, fmt.Errorf("create anuncio: %w", err)
	}
	s.audit.Record(ctx, audit.ActorFromIdentity(identity), audit.ActionCreateAnuncio, "Título: "+created.Titulo)
	return created, nil
}

// Update replaces every editable field. Only the owner or an admin may
// edit.
func (s *Service) Update(ctx context.Context, identity auth.Identity, id int64, draft Draft) (*Anuncio, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !auth.CanModify(identity, existing.UserID) {
		return nil, ErrForbiddenEdit
	}

	input, err := draft.validate()
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.Update(ctx, id, input)
	if err != nil {
		return nil, fmt.Errorf("update anuncio: %w", err)
	}
	s.audit.Record(ctx, audit.ActorFromIdentity(identity), audit.ActionEditAnuncio,
		fmt.Sprintf("ID: %d, Título: %s", updated.ID, updated.Titulo))
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, identity auth.Identity, id int64) error {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !auth.CanModify(identity, existing.UserID) {
		return ErrForbiddenDelete
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete anuncio: %w", err)
	}
	s.audit.Record(ctx, audit.ActorFromIdentity(identity), audit.ActionDeleteAnuncio,
		fmt.Sprintf("ID: %d, Título: %s", existing.ID, existing.Titulo))
	return nil
}

func (d Draft) validate() (Input, error) {
	input := Input{
		Titulo:        sanitize.Text(d.Titulo),
		Descripcion:   sanitize.Text(d.Descripcion),
		Lugar:         sanitize.Text(d.Lugar),
		Participantes: sanitize.Text(d.Participantes),
	}
	fecha := sanitize.Text(d.Fecha)
	categoria := sanitize.Text(d.Categoria)

	if input.Titulo == "" || input.Descripcion == "" || fecha == "" || input.Lugar == "" || categoria == "" {
		return Input{}, domain.Invalid("", msgRequiredFields)
	}

	parsed, err := ParseFecha(fecha)
	if err != nil {
		return Input{}, domain.Invalid("fecha", "Fecha inválida.")
	}
	input.Fecha = parsed.Truncate(time.Second)

	c, ok := ParseCategoria(categoria)
	if !ok {
		return Input{}, domain.Invalid("categoria", "Categoría inválida.")
	}
	input.Categoria = c

	if d.Precio != nil {
		if *d.Precio < 0 {
			return Input{}, domain.Invalid("precio", "El precio no puede ser negativo.")
		}
		input.Precio = *d.Precio
	}
	return input, nil
}
