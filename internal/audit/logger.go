package audit

import (
	"context"
	"strings"
	"time"

	"github.com/Togather-Foundation/tablon/internal/auth"
	"github.com/rs/zerolog"
)

// Actions recorded by the services.
const (
	ActionLogin           = "LOGIN"
	ActionCreateAnuncio   = "CREAR_ANUNCIO"
	ActionEditAnuncio     = "EDITAR_ANUNCIO"
	ActionDeleteAnuncio   = "ELIMINAR_ANUNCIO"
	ActionCreateArtist    = "CREAR_ARTISTA"
	ActionEditArtist      = "EDITAR_ARTISTA"
	ActionDeleteArtist    = "ELIMINAR_ARTISTA"
	ActionSubmitRequest   = "SOLICITAR_ARTISTA"
	ActionApproveRequest  = "APROBAR_SOLICITUD"
	ActionRejectRequest   = "RECHAZAR_SOLICITUD"
	ActionDeleteRequest   = "ELIMINAR_SOLICITUD"
	ActionCreateUser      = "CREAR_USUARIO"
	ActionEditUser        = "EDITAR_USUARIO"
	ActionDeleteUser      = "ELIMINAR_USUARIO"
	ActionChangeAdminRole = "CAMBIAR_ROL"
)

// Actor identifies who performed an action. A zero ID means anonymous.
type Actor struct {
	ID    int64
	Name  string
	Email string
}

func ActorFromIdentity(identity auth.Identity) Actor {
	return Actor{ID: identity.ID, Name: identity.Name, Email: identity.Email}
}

// Entry is one row of the audit trail.
type Entry struct {
	ID        int64     `json:"id"`
	UserID    *int64    `json:"user_id"`
	UserName  string    `json:"user_name"`
	UserEmail string    `json:"user_email"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	Timestamp time.Time `json:"timestamp"`
}

// Store persists audit entries.
type Store interface {
	Insert(ctx context.Context, entry Entry) error
	List(ctx context.Context, limit, offset int) ([]Entry, error)
}

// Logger writes audit entries to the store and mirrors them to the
// structured log. Failures never reach the caller.
type Logger struct {
	store  Store
	logger zerolog.Logger
	now    func() time.Time
}

func NewLogger(store Store, logger zerolog.Logger) *Logger {
	return &Logger{
		store:  store,
		logger: logger.With().Str("component", "audit").Logger(),
		now:    time.Now,
	}
}

// Record appends an entry for actor. Errors are logged and swallowed.
func (l *Logger) Record(ctx context.Context, actor Actor, action, details string) {
	if l == nil {
		return
	}
	entry := Entry{
		UserName:  strings.TrimSpace(actor.Name),
		UserEmail: strings.TrimSpace(actor.Email),
		Action:    action,
		Details:   details,
		Timestamp: l.now().UTC(),
	}
	if actor.ID > 0 {
		id := actor.ID
		entry.UserID = &id
	}

	l.logger.Info().
		Str("action", entry.Action).
		Int64("user_id", actor.ID).
		Str("details", entry.Details).
		Msg("audit")

	if l.store == nil {
		return
	}
	if err := l.store.Insert(ctx, entry); err != nil {
		l.logger.Warn().Err(err).Str("action", action).Msg("audit entry not persisted")
	}
}

const (
	DefaultListLimit = 100
	MaxListLimit     = 500
)

// List returns entries newest first.
func (l *Logger) List(ctx context.Context, limit, offset int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	if l.store == nil {
		return []Entry{}, nil
	}
	return l.store.List(ctx, limit, offset)
}
