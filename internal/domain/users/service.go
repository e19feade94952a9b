package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Togather-Foundation/tablon/internal/audit"
	"github.com/Togather-Foundation/tablon/internal/auth"
	"github.com/Togather-Foundation/tablon/internal/domain"
	"github.com/Togather-Foundation/tablon/internal/metrics"
	"github.com/Togather-Foundation/tablon/internal/sanitize"
	"github.com/Togather-Foundation/tablon/internal/validation"
	"github.com/rs/zerolog"
)

// Error types for user domain operations
var (
	ErrNotFound           = domain.NewError(domain.ErrNotFound, "Usuario no encontrado")
	ErrEmailTaken         = domain.NewError(domain.ErrConflict, "El email ya está registrado")
	ErrInvalidCredentials = domain.NewError(domain.ErrUnauthenticated, "Credenciales inválidas")
)

const (
	msgRequiredFields = "Todos los campos son requeridos"
	msgInvalidEmail   = "Email inválido"
	msgWeakPassword   = "Contraseña débil. Debe tener al menos 8 caracteres, una mayúscula, una minúscula y un número."
)

// User is an account. PasswordHash never leaves the server.
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	IsAdmin      bool      `json:"is_admin"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u User) Identity() auth.Identity {
	return auth.Identity{ID: u.ID, Name: u.Name, Email: u.Email, IsAdmin: u.IsAdmin}
}

// CreateParams contains parameters for inserting a user
type CreateParams struct {
	Name         string
	Email        string
	PasswordHash string
	IsAdmin      bool
}

// UpdateParams contains parameters for updating a user. A nil
// PasswordHash keeps the stored hash.
type UpdateParams struct {
	Name         string
	Email        string
	PasswordHash *string
	IsAdmin      bool
}

// Repository persists users. Implementations return ErrNotFound and
// ErrEmailTaken for the matching conditions.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]User, error)
	Update(ctx context.Context, id int64, params UpdateParams) (*User, error)
	SetAdmin(ctx context.Context, id int64, isAdmin bool) (*User, error)
	Delete(ctx context.Context, id int64) error
}

type TokenIssuer interface {
	Generate(identity auth.Identity) (string, error)
}

type AuditRecorder interface {
	Record(ctx context.Context, actor audit.Actor, action, details string)
}

// Session is what register and login hand back to the client.
type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Service handles accounts and sessions
type Service struct {
	repo   Repository
	tokens TokenIssuer
	audit  AuditRecorder
	logger zerolog.Logger
}

func NewService(repo Repository, tokens TokenIssuer, auditLogger AuditRecorder, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		tokens: tokens,
		audit:  auditLogger,
		logger: logger.With().Str("component", "users").Logger(),
	}
}

// RegisterInput is the public sign-up payload
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// Register creates a non-admin account and signs a session token for it.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Session, error) {
	name := sanitize.Text(in.Name)
	email := NormalizeEmail(in.Email)
	if name == "" || email == "" || in.Password == "" {
		return Session{}, domain.Invalid("", msgRequiredFields)
	}
	if err := checkCredentials(email, in.Password); err != nil {
		metrics.AuthAttempts.WithLabelValues("register", "failure").Inc()
		return Session{}, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.repo.Create(ctx, CreateParams{Name: name, Email: email, PasswordHash: hash})
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("register", "failure").Inc()
		return Session{}, err
	}

	session, err := s.session(*user)
	if err != nil {
		return Session{}, err
	}
	metrics.AuthAttempts.WithLabelValues("register", "success").Inc()
	s.logger.Info().Int64("user_id", user.ID).Msg("user registered")
	return session, nil
}

// Login checks credentials. Unknown email and wrong password are
// indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return Session{}, domain.Invalid("", "Email y contraseña son requeridos")
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.AuthAttempts.WithLabelValues("login", "failure").Inc()
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, fmt.Errorf("login lookup: %w", err)
	}
	if err := auth.CheckPassword(user.PasswordHash, password); err != nil {
		metrics.AuthAttempts.WithLabelValues("login", "failure").Inc()
		return Session{}, ErrInvalidCredentials
	}

	session, err := s.session(*user)
	if err != nil {
		return Session{}, err
	}
	metrics.AuthAttempts.WithLabelValues("login", "success").Inc()
	s.audit.Record(ctx, audit.ActorFromIdentity(user.Identity()), audit.ActionLogin, "Email: "+user.Email)
	return session, nil
}

// Verify reloads the account behind a token so deleted users and role
// changes are visible immediately.
func (s *Service) Verify(ctx context.Context, id int64) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// AdminInput is the payload for admin create/update. An empty Password on
// update keeps the current one.
type AdminInput struct {
	Name     string
	Email    string
	Password string
	IsAdmin  bool
}

func (s *Service) Create(ctx context.Context, actor audit.Actor, in AdminInput) (*User, error) {
	name := sanitize.Text(in.Name)
	email := NormalizeEmail(in.Email)
	if name == "" || email == "" || in.Password == "" {
		return nil, domain.Invalid("", msgRequiredFields)
	}
	if err := checkCredentials(email, in.Password); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.repo.Create(ctx, CreateParams{Name: name, Email: email, PasswordHash: hash, IsAdmin: in.IsAdmin})
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actor, audit.ActionCreateUser, "Email: "+user.Email)
	return user, nil
}

func (s *Service) Update(ctx context.Context, actor audit.Actor, id int64, in AdminInput) (*User, error) {
	name := sanitize.Text(in.Name)
	email := NormalizeEmail(in.Email)
	if name == "" || email == "" {
		return nil, domain.Invalid("", "Nombre y email son requeridos")
	}
	if err := validation.ValidateEmail(email, "email"); err != nil {
		return nil, domain.Invalid("email", msgInvalidEmail)
	}

	params := UpdateParams{Name: name, Email: email, IsAdmin: in.IsAdmin}
	if in.Password != "" {
		if err := auth.ValidatePassword(in.Password); err != nil {
			return nil, domain.Invalid("password", msgWeakPassword)
		}
		hash, err := auth.HashPassword(in.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		params.PasswordHash = &hash
	}

	user, err := s.repo.Update(ctx, id, params)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actor, audit.ActionEditUser, fmt.Sprintf("ID: %d, Email: %s", user.ID, user.Email))
	return user, nil
}

func (s *Service) SetAdmin(ctx context.Context, actor audit.Actor, id int64, isAdmin bool) (*User, error) {
	user, err := s.repo.SetAdmin(ctx, id, isAdmin)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actor, audit.ActionChangeAdminRole, fmt.Sprintf("ID: %d, is_admin: %t", user.ID, user.IsAdmin))
	return user, nil
}

// Delete removes the account. Owned anuncios, requests and notifications
// go with it.
func (s *Service) Delete(ctx context.Context, actor audit.Actor, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.audit.Record(ctx, actor, audit.ActionDeleteUser, fmt.Sprintf("ID: %d", id))
	return nil
}

// EnsureAdmin makes sure an administrator with the given email exists. An
// existing account is promoted; its password is left alone. It reports
// whether anything changed.
func (s *Service) EnsureAdmin(ctx context.Context, name, email, password string) (bool, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return false, nil
	}

	existing, err := s.repo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.IsAdmin {
			return false, nil
		}
		if _, err := s.repo.SetAdmin(ctx, existing.ID, true); err != nil {
			return false, fmt.Errorf("promote admin: %w", err)
		}
		s.logger.Info().Int64("user_id", existing.ID).Msg("bootstrap admin promoted")
		return true, nil
	case !errors.Is(err, domain.ErrNotFound):
		return false, fmt.Errorf("lookup admin: %w", err)
	}

	name = sanitize.Text(name)
	if name == "" {
		name = "Administrador"
	}
	if err := checkCredentials(email, password); err != nil {
		return false, fmt.Errorf("bootstrap admin: %w", err)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}
	user, err := s.repo.Create(ctx, CreateParams{Name: name, Email: email, PasswordHash: hash, IsAdmin: true})
	if err != nil {
		return false, fmt.Errorf("create admin: %w", err)
	}
	s.logger.Info().Int64("user_id", user.ID).Msg("bootstrap admin created")
	return true, nil
}

func (s *Service) session(user User) (Session, error) {
	token, err := s.tokens.Generate(user.Identity())
	if err != nil {
		return Session{}, fmt.Errorf("generate token: %w", err)
	}
	return Session{Token: token, User: user}, nil
}

func checkCredentials(email, password string) error {
	if err := validation.ValidateEmail(email, "email"); err != nil {
		return domain.Invalid("email", msgInvalidEmail)
	}
	if err := auth.ValidatePassword(password); err != nil {
		return domain.Invalid("password", msgWeakPassword)
	}
	return nil
}

// NormalizeEmail trims and lower-cases an address. Emails are unique
// case-insensitively.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
