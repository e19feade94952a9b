package artistrequests

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Togather-Foundation/tablon/internal/audit"
	"github.com/Togather-Foundation/tablon/internal/auth"
	"github.com/Togather-Foundation/tablon/internal/domain"
	"github.com/Togather-Foundation/tablon/internal/domain/artists"
	"github.com/Togather-Foundation/tablon/internal/domain/notifications"
	"github.com/Togather-Foundation/tablon/internal/domain/users"
	"github.com/Togather-Foundation/tablon/internal/metrics"
	"github.com/Togather-Foundation/tablon/internal/sanitize"
	"github.com/Togather-Foundation/tablon/internal/telemetry"
	"github.com/Togather-Foundation/tablon/internal/validation"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Routing keys for moderation events.
const (
	EventSubmitted = "artist_request.submitted"
	EventApproved  = "artist_request.approved"
	EventRejected  = "artist_request.rejected"
)

const (
	DefaultPerPage = 25
	MaxPerPage     = 100

	autoRejectReason = "Artista ya existe en el sistema"
	maxImageURLs     = 1
)

// Soft failure steps.
const (
	StepDuplicateCheck = "duplicate_check"
	StepLookupUser     = "lookup_requester"
	StepNotify         = "notify"
	StepPublish        = "publish"
)

// ArtistRegistry is the part of the artist store approval needs.
type ArtistRegistry interface {
	FindByName(ctx context.Context, name string) (*artists.Artist, error)
	Create(ctx context.Context, input artists.Input) (*artists.Artist, error)
}

// TxStores are the request and artist stores bound to one transaction.
type TxStores struct {
	Requests Repository
	Artists  ArtistRegistry
}

// Transactor runs fn in a single transaction, committing only when fn
// returns nil.
type Transactor interface {
	WithModerationTx(ctx context.Context, fn func(ctx context.Context, stores TxStores) error) error
}

type UserDirectory interface {
	GetByID(ctx context.Context, id int64) (*users.User, error)
}

type Notifier interface {
	Notify(ctx context.Context, userID int64, msg notifications.Message) notifications.Outcome
}

type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

type AuditRecorder interface {
	Record(ctx context.Context, actor audit.Actor, action, details string)
}

// Event is the broker payload for moderation transitions.
type Event struct {
	RequestID  int64     `json:"request_id"`
	UserID     int64     `json:"user_id"`
	Nombre     string    `json:"nombre"`
	Status     Status    `json:"status"`
	ArtistID   *int64    `json:"artist_id,omitempty"`
	AdminID    *int64    `json:"admin_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// SoftFailure is a side effect that failed without undoing the operation.
type SoftFailure struct {
	Step string
	Err  error
}

type SubmitResult struct {
	ID       int64
	Warnings []SoftFailure
}

type ApproveResult struct {
	ArtistID int64
	Warnings []SoftFailure
}

type RejectResult struct {
	Warnings []SoftFailure
}

type ListResult struct {
	Items   []ArtistRequest `json:"items"`
	Total   int             `json:"total"`
	Page    int             `json:"page"`
	PerPage int             `json:"per_page"`
}

// Config bounds submissions per user inside a rolling window.
type Config struct {
	MaxPerWindow int
	Window       time.Duration
}

type Dependencies struct {
	Requests  Repository
	Artists   ArtistRegistry
	Tx        Transactor
	Users     UserDirectory
	Notifier  Notifier
	Publisher EventPublisher
	Audit     AuditRecorder
}

// Service runs the artist-request moderation workflow.
type Service struct {
	repo      Repository
	artists   ArtistRegistry
	tx        Transactor
	users     UserDirectory
	notifier  Notifier
	publisher EventPublisher
	audit     AuditRecorder
	cfg       Config
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(deps Dependencies, cfg Config, logger zerolog.Logger) *Service {
	if cfg.MaxPerWindow <= 0 {
		cfg.MaxPerWindow = 3
	}
	if cfg.Window <= 0 {
		cfg.Window = 24 * time.Hour
	}
	return &Service{
		repo:      deps.Requests,
		artists:   deps.Artists,
		tx:        deps.Tx,
		users:     deps.Users,
		notifier:  deps.Notifier,
		publisher: deps.Publisher,
		audit:     deps.Audit,
		cfg:       cfg,
		logger:    logger.With().Str("component", "artist_requests").Logger(),
		now:       time.Now,
	}
}

// Submit validates and stores a new pending request for requester.
func (s *Service) Submit(ctx context.Context, requester auth.Identity, in SubmitInput) (result SubmitResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "artistrequests.Submit",
		trace.WithAttributes(attribute.Int64("user.id", requester.ID)))
	defer func() { endSpan(span, err) }()

	outcome := "invalid"
	defer func() { metrics.ArtistRequestsSubmitted.WithLabelValues(outcome).Inc() }()

	if strings.TrimSpace(in.Nombre) == "" {
		return SubmitResult{}, domain.Invalid("nombre", "Nombre del artista requerido")
	}

	count, err := s.repo.CountRecentByUser(ctx, requester.ID, s.now().Add(-s.cfg.Window))
	if err != nil {
		outcome = "error"
		return SubmitResult{}, fmt.Errorf("count recent requests: %w", err)
	}
	if count >= s.cfg.MaxPerWindow {
		outcome = "rate_limited"
		return SubmitResult{}, domain.NewError(domain.ErrRateLimited, fmt.Sprintf(
			"Has alcanzado el límite de solicitudes (%d en %s). Espera antes de enviar otra.",
			s.cfg.MaxPerWindow, windowLabel(s.cfg.Window)))
	}

	imageURLs, err := parseImageURLs(in.ImageURLs)
	if err != nil {
		return SubmitResult{}, err
	}
	links, err := parseSocialLinks(in.SocialLinks)
	if err != nil {
		return SubmitResult{}, err
	}
	muestras, err := parseMuestras(in.Muestras)
	if err != nil {
		return SubmitResult{}, err
	}

	params := CreateParams{
		UserID:       requester.ID,
		Nombre:       sanitize.Text(in.Nombre),
		Bio:          optional(in.Bio),
		Genero:       optional(in.Genero),
		SocialLinks:  links,
		ImageURLs:    imageURLs,
		Muestras:     muestras,
		NotasUsuario: optional(in.NotasUsuario),
	}
	if params.Nombre == "" {
		return SubmitResult{}, domain.Invalid("nombre", "Nombre del artista requerido")
	}

	var warnings []SoftFailure
	if _, err := s.repo.FindPendingByUserAndName(ctx, requester.ID, params.Nombre); err == nil {
		outcome = "duplicate"
		return SubmitResult{}, ErrDuplicate
	} else if !errors.Is(err, domain.ErrNotFound) {
		warnings = s.soft(ctx, warnings, "submit", StepDuplicateCheck, err)
	}

	id, err := s.repo.Create(ctx, params)
	if err != nil {
		outcome = "error"
		return SubmitResult{}, fmt.Errorf("create artist request: %w", err)
	}
	outcome = "accepted"

	warnings = s.publish(ctx, warnings, "submit", EventSubmitted, Event{
		RequestID:  id,
		UserID:     requester.ID,
		Nombre:     params.Nombre,
		Status:     StatusPending,
		OccurredAt: s.now().UTC(),
	})
	s.record(ctx, audit.ActorFromIdentity(requester), audit.ActionSubmitRequest,
		fmt.Sprintf("ID: %d, Nombre: %s", id, params.Nombre))

	return SubmitResult{ID: id, Warnings: warnings}, nil
}

// ParseListFilters reads status, page and per_page from a query string.
func ParseListFilters(values url.Values) (Filters, error) {
	filters := Filters{Page: 1, PerPage: DefaultPerPage}

	if raw := strings.TrimSpace(values.Get("status")); raw != "" {
		status := Status(strings.ToLower(raw))
		if !status.Valid() {
			return Filters{}, domain.Invalid("status", "Estado inválido: "+raw)
		}
		filters.Status = status
	}
	if raw := strings.TrimSpace(values.Get("page")); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return Filters{}, domain.Invalid("page", "Página inválida")
		}
		filters.Page = page
	}
	if raw := strings.TrimSpace(values.Get("per_page")); raw != "" {
		perPage, err := strconv.Atoi(raw)
		if err != nil || perPage < 1 {
			return Filters{}, domain.Invalid("per_page", "per_page inválido")
		}
		filters.PerPage = perPage
	}
	return filters, nil
}

// List returns requests newest first.
func (s *Service) List(ctx context.Context, filters Filters) (ListResult, error) {
	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.PerPage < 1 {
		filters.PerPage = DefaultPerPage
	}
	if filters.PerPage > MaxPerPage {
		filters.PerPage = MaxPerPage
	}

	items, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return ListResult{}, fmt.Errorf("list artist requests: %w", err)
	}
	return ListResult{Items: items, Total: total, Page: filters.Page, PerPage: filters.PerPage}, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*ArtistRequest, error) {
	return s.repo.Get(ctx, id)
}

// Approve turns a pending request into a registry artist. A request whose
// name is already taken is rejected automatically and ErrArtistExists is
// returned.
func (s *Service) Approve(ctx context.Context, admin auth.Identity, id int64, adminNotes string) (result ApproveResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "artistrequests.Approve",
		trace.WithAttributes(attribute.Int64("artist_request.id", id)))
	defer func() { endSpan(span, err) }()

	req, err := s.pending(ctx, id)
	if err != nil {
		return ApproveResult{}, err
	}

	if _, err := s.artists.FindByName(ctx, req.Nombre); err == nil {
		return ApproveResult{}, s.autoReject(ctx, admin, req)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return ApproveResult{}, fmt.Errorf("check artist name: %w", err)
	}

	var (
		artist       *artists.Artist
		nameConflict bool
	)
	err = s.inTx(ctx, func(ctx context.Context, stores TxStores) error {
		created, err := stores.Artists.Create(ctx, ArtistInput(*req))
		if err != nil {
			nameConflict = errors.Is(err, domain.ErrConflict)
			return fmt.Errorf("create artist: %w", err)
		}
		err = stores.Requests.UpdateStatus(ctx, req.ID, StatusUpdate{
			Status:     StatusApproved,
			AdminID:    admin.ID,
			AdminNotes: optional(adminNotes),
			ReviewedAt: s.now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("approve request %d: %w", req.ID, err)
		}
		artist = created
		return nil
	})
	if err != nil {
		if nameConflict {
			return ApproveResult{}, s.autoReject(ctx, admin, req)
		}
		return ApproveResult{}, err
	}
	metrics.ArtistRequestsReviewed.WithLabelValues(string(StatusApproved), "admin").Inc()

	var warnings []SoftFailure
	warnings = s.notifyRequester(ctx, warnings, "approve", req, notifications.Message{
		Type:     notifications.TypeSuccess,
		Title:    "Solicitud aprobada",
		Message:  fmt.Sprintf("Tu solicitud para %q fue aprobada.", req.Nombre),
		Metadata: map[string]any{"request_id": req.ID, "artist_id": artist.ID},
	})
	artistID, adminID := artist.ID, admin.ID
	warnings = s.publish(ctx, warnings, "approve", EventApproved, Event{
		RequestID:  req.ID,
		UserID:     req.UserID,
		Nombre:     req.Nombre,
		Status:     StatusApproved,
		ArtistID:   &artistID,
		AdminID:    &adminID,
		OccurredAt: s.now().UTC(),
	})
	s.record(ctx, audit.ActorFromIdentity(admin), audit.ActionApproveRequest,
		fmt.Sprintf("ID: %d, Artista: %s (ID %d)", req.ID, req.Nombre, artist.ID))

	return ApproveResult{ArtistID: artist.ID, Warnings: warnings}, nil
}

// Reject closes a pending request with an optional reason.
func (s *Service) Reject(ctx context.Context, admin auth.Identity, id int64, reason string) (result RejectResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "artistrequests.Reject",
		trace.WithAttributes(attribute.Int64("artist_request.id", id)))
	defer func() { endSpan(span, err) }()

	req, err := s.pending(ctx, id)
	if err != nil {
		return RejectResult{}, err
	}

	notes := optional(reason)
	err = s.repo.UpdateStatus(ctx, req.ID, StatusUpdate{
		Status:     StatusRejected,
		AdminID:    admin.ID,
		AdminNotes: notes,
		ReviewedAt: s.now().UTC(),
	})
	if err != nil {
		return RejectResult{}, fmt.Errorf("reject request %d: %w", req.ID, err)
	}
	metrics.ArtistRequestsReviewed.WithLabelValues(string(StatusRejected), "admin").Inc()

	motivo := "No especificado"
	if notes != nil {
		motivo = *notes
	}

	var warnings []SoftFailure
	warnings = s.notifyRequester(ctx, warnings, "reject", req, notifications.Message{
		Type:     notifications.TypeWarning,
		Title:    "Solicitud rechazada",
		Message:  fmt.Sprintf("Tu solicitud para %q fue rechazada. Motivo: %s", req.Nombre, motivo),
		Metadata: map[string]any{"request_id": req.ID},
	})
	adminID := admin.ID
	warnings = s.publish(ctx, warnings, "reject", EventRejected, Event{
		RequestID:  req.ID,
		UserID:     req.UserID,
		Nombre:     req.Nombre,
		Status:     StatusRejected,
		AdminID:    &adminID,
		OccurredAt: s.now().UTC(),
	})
	s.record(ctx, audit.ActorFromIdentity(admin), audit.ActionRejectRequest,
		fmt.Sprintf("ID: %d, Motivo: %s", req.ID, motivo))

	return RejectResult{Warnings: warnings}, nil
}

// Delete removes a request in any state.
func (s *Service) Delete(ctx context.Context, admin auth.Identity, id int64) error {
	req, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete artist request: %w", err)
	}
	s.record(ctx, audit.ActorFromIdentity(admin), audit.ActionDeleteRequest,
		fmt.Sprintf("ID: %d, Nombre: %s", req.ID, req.Nombre))
	return nil
}

// inTx runs fn on transaction-bound stores. Without a Transactor the
// plain stores are used and nothing is rolled back.
func (s *Service) inTx(ctx context.Context, fn func(context.Context, TxStores) error) error {
	if s.tx == nil {
		return fn(ctx, TxStores{Requests: s.repo, Artists: s.artists})
	}
	return s.tx.WithModerationTx(ctx, fn)
}

func (s *Service) pending(ctx context.Context, id int64) (*ArtistRequest, error) {
	req, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != StatusPending {
		return nil, ErrNotPending
	}
	return req, nil
}

// autoReject closes a request whose artist already exists. It always
// returns ErrArtistExists unless the store fails outright.
func (s *Service) autoReject(ctx context.Context, admin auth.Identity, req *ArtistRequest) error {
	reason := autoRejectReason
	err := s.repo.UpdateStatus(ctx, req.ID, StatusUpdate{
		Status:     StatusRejected,
		AdminID:    admin.ID,
		AdminNotes: &reason,
		ReviewedAt: s.now().UTC(),
	})
	switch {
	case err == nil:
		metrics.ArtistRequestsReviewed.WithLabelValues(string(StatusRejected), "artist_exists").Inc()
		s.record(ctx, audit.ActorFromIdentity(admin), audit.ActionRejectRequest,
			fmt.Sprintf("ID: %d, Motivo: %s", req.ID, reason))
	case errors.Is(err, domain.ErrInvalidState):
		// Another reviewer closed it first.
	default:
		return fmt.Errorf("auto-reject request %d: %w", req.ID, err)
	}
	return ErrArtistExists
}

func (s *Service) notifyRequester(ctx context.Context, warnings []SoftFailure, op string, req *ArtistRequest, msg notifications.Message) []SoftFailure {
	if user, err := s.users.GetByID(ctx, req.UserID); err != nil {
		warnings = s.soft(ctx, warnings, op, StepLookupUser, err)
	} else {
		msg.Email = user.Email
	}

	if s.notifier == nil {
		return warnings
	}
	if out := s.notifier.Notify(ctx, req.UserID, msg); out.Err != nil {
		warnings = s.soft(ctx, warnings, op, StepNotify, out.Err)
	}
	return warnings
}

func (s *Service) publish(ctx context.Context, warnings []SoftFailure, op, routingKey string, event Event) []SoftFailure {
	if s.publisher == nil {
		return warnings
	}
	if err := s.publisher.Publish(ctx, routingKey, event); err != nil {
		return s.soft(ctx, warnings, op, StepPublish, err)
	}
	return warnings
}

func (s *Service) record(ctx context.Context, actor audit.Actor, action, details string) {
	if s.audit != nil {
		s.audit.Record(ctx, actor, action, details)
	}
}

func (s *Service) soft(ctx context.Context, warnings []SoftFailure, op, step string, err error) []SoftFailure {
	metrics.ModerationSoftFailures.WithLabelValues(op, step).Inc()
	logger := zerolog.Ctx(ctx)
	if logger.GetLevel() == zerolog.Disabled {
		logger = &s.logger
	}
	logger.Warn().Err(err).Str("operation", op).Str("step", step).Msg("moderation side effect failed")
	return append(warnings, SoftFailure{Step: step, Err: err})
}

func endSpan(span trace.Span, err error) {
	if err != nil && !isClientError(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func isClientError(err error) bool {
	for _, kind := range []error{domain.ErrValidation, domain.ErrNotFound, domain.ErrConflict, domain.ErrRateLimited, domain.ErrInvalidState} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

func parseImageURLs(raw json.RawMessage) ([]string, error) {
	if isNull(raw) {
		return nil, nil
	}
	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, domain.Invalid("image_urls", "image_urls debe ser un array de URLs")
	}
	if len(items) > maxImageURLs {
		return nil, domain.Invalid("image_urls", fmt.Sprintf("Máximo %d URL de imagen permitida", maxImageURLs))
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		u, ok := item.(string)
		if !ok || !validation.IsHTTPURL(u) {
			return nil, domain.Invalid("image_urls", fmt.Sprintf("URL inválida en image_urls: %v", item))
		}
		out = append(out, strings.TrimSpace(u))
	}
	return out, nil
}

func parseSocialLinks(in SocialLinksInput) ([]SocialLink, error) {
	switch in.shape {
	case socialAbsent:
		return nil, nil
	case socialMalformed:
		return nil, domain.Invalid("social_links", "social_links mal formado")
	case socialList:
		out := make([]SocialLink, 0, len(in.items))
		for _, item := range in.items {
			rawURL, present := item["url"]
			if item == nil || !present || rawURL == nil || rawURL == "" {
				return nil, domain.Invalid("social_links", "Cada social link debe tener un campo url")
			}
			u, ok := rawURL.(string)
			if !ok || !validation.IsHTTPURL(u) {
				return nil, domain.Invalid("social_links", fmt.Sprintf("URL inválida en social_links: %v", rawURL))
			}
			platform, _ := item["platform"].(string)
			out = append(out, SocialLink{Platform: sanitize.Text(platform), URL: strings.TrimSpace(u)})
		}
		return out, nil
	default:
		out := make([]SocialLink, 0, len(in.entries))
		for _, entry := range in.entries {
			u, ok := entry.Value.(string)
			if !ok || !validation.IsHTTPURL(u) {
				continue
			}
			out = append(out, SocialLink{Platform: sanitize.Text(entry.Key), URL: strings.TrimSpace(u)})
		}
		return out, nil
	}
}

func parseMuestras(raw json.RawMessage) (json.RawMessage, error) {
	if isNull(raw) {
		return nil, nil
	}
	if !json.Valid(raw) {
		return nil, domain.Invalid("muestras", "muestras mal formado")
	}
	return raw, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed == "" || trimmed == "null"
}

func optional(value string) *string {
	cleaned := sanitize.Text(value)
	if cleaned == "" {
		return nil
	}
	return &cleaned
}

func windowLabel(window time.Duration) string {
	if window%time.Hour == 0 {
		return fmt.Sprintf("%dh", int(window/time.Hour))
	}
	return window.String()
}
