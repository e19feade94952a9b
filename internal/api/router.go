package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/Togather-Foundation/tablon/internal/api/handlers"
	"github.com/Togather-Foundation/tablon/internal/api/middleware"
	"github.com/Togather-Foundation/tablon/internal/api/problem"
	"github.com/Togather-Foundation/tablon/internal/audit"
	"github.com/Togather-Foundation/tablon/internal/auth"
	"github.com/Togather-Foundation/tablon/internal/config"
	"github.com/Togather-Foundation/tablon/internal/domain/anuncios"
	"github.com/Togather-Foundation/tablon/internal/domain/artistrequests"
	"github.com/Togather-Foundation/tablon/internal/domain/artists"
	"github.com/Togather-Foundation/tablon/internal/domain/notifications"
	"github.com/Togather-Foundation/tablon/internal/domain/users"
	"github.com/Togather-Foundation/tablon/internal/email"
	"github.com/Togather-Foundation/tablon/internal/jobs"
	"github.com/Togather-Foundation/tablon/internal/messaging"
	"github.com/Togather-Foundation/tablon/internal/metrics"
	"github.com/Togather-Foundation/tablon/internal/storage/postgres"
	"github.com/Togather-Foundation/tablon/web"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/rs/zerolog"
)

// RouterWithClient is the HTTP handler plus the background pieces the
// serve command starts and stops around it.
type RouterWithClient struct {
	Handler     http.Handler
	RiverClient *river.Client[pgx.Tx]
	Users       *users.Service

	publisher   messaging.Publisher
	rateLimiter *middleware.RateLimiter
}

// Close releases the broker connection and the rate limiter sweeper.
func (r *RouterWithClient) Close() error {
	if r.rateLimiter != nil {
		r.rateLimiter.Stop()
	}
	if r.publisher != nil {
		return r.publisher.Close()
	}
	return nil
}

// Shutdown stops River within the given context.
func (r *RouterWithClient) Shutdown(ctx context.Context) error {
	if r.RiverClient == nil {
		return nil
	}
	return r.RiverClient.Stop(ctx)
}

// NewRouter wires storage, services and handlers. jobLogger feeds River,
// which only accepts slog.
func NewRouter(cfg config.Config, logger zerolog.Logger, jobLogger *slog.Logger, pool *pgxpool.Pool, version, gitCommit, buildDate string) (*RouterWithClient, error) {
	repo, err := postgres.NewRepository(pool)
	if err != nil {
		return nil, fmt.Errorf("repository init: %w", err)
	}

	tokens := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry, cfg.Auth.JWTIssuer)
	auditLogger := audit.NewLogger(repo.Audit(), logger)

	mailer, err := email.NewService(cfg.Email, cfg.Server.BaseURL, logger)
	if err != nil {
		return nil, fmt.Errorf("email service: %w", err)
	}

	publisher, err := newPublisher(cfg.Messaging, logger)
	if err != nil {
		return nil, err
	}

	var (
		riverClient *river.Client[pgx.Tx]
		enqueuer    notifications.EmailEnqueuer
	)
	if cfg.Jobs.Enabled {
		retention := time.Duration(cfg.Notifications.RetentionDays) * 24 * time.Hour
		workers := jobs.NewWorkers(jobs.WorkerDeps{
			Sender:    mailer,
			Purger:    notifications.NewDispatcher(repo.Notifications(), nil, nil, logger),
			Retention: retention,
			Logger:    logger,
		})
		riverClient, err = jobs.NewClient(pool, cfg.Jobs, workers, jobLogger,
			[]rivertype.Hook{metrics.NewRiverMetricsHook()}, jobs.NewPeriodicJobs(retention))
		if err != nil {
			_ = publisher.Close()
			return nil, fmt.Errorf("river client: %w", err)
		}
		enqueuer = jobs.NewEnqueuer(riverClient, cfg.Jobs)
	}
	dispatcher := notifications.NewDispatcher(repo.Notifications(), enqueuer, mailer, logger)

	usersService := users.NewService(repo.Users(), tokens, auditLogger, logger)
	anunciosService := anuncios.NewService(repo.Anuncios(), auditLogger, logger)
	artistsService := artists.NewService(repo.Artists(), repo.Anuncios(), auditLogger, logger)
	requestsService := artistrequests.NewService(artistrequests.Dependencies{
		Requests:  repo.ArtistRequests(),
		Artists:   repo.Artists(),
		Tx:        repo,
		Users:     repo.Users(),
		Notifier:  dispatcher,
		Publisher: publisher,
		Audit:     auditLogger,
	}, artistrequests.Config{
		MaxPerWindow: cfg.ArtistRequests.MaxPerWindow,
		Window:       cfg.ArtistRequests.Window,
	}, logger)

	env := cfg.Environment
	set := Handlers{
		Auth:           handlers.NewAuthHandler(usersService, env),
		Anuncios:       handlers.NewAnunciosHandler(anunciosService, env),
		Artists:        handlers.NewArtistsHandler(artistsService, env),
		ArtistRequests: handlers.NewArtistRequestsHandler(requestsService, env),
		Notifications:  handlers.NewNotificationsHandler(dispatcher, env),
		Audit:          handlers.NewAuditHandler(auditLogger, env),
		Users:          handlers.NewUsersHandler(usersService, env),
		Health:         handlers.NewHealthChecker(pool, cfg.Jobs.Enabled, version, gitCommit),
		DB:             pool,
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit, env)
	return &RouterWithClient{
		Handler:     NewHandler(cfg, logger, set, tokens, limiter, version, gitCommit, buildDate),
		RiverClient: riverClient,
		Users:       usersService,
		publisher:   publisher,
		rateLimiter: limiter,
	}, nil
}

func newPublisher(cfg config.MessagingConfig, logger zerolog.Logger) (messaging.Publisher, error) {
	if strings.TrimSpace(cfg.AMQPURL) == "" {
		logger.Info().Msg("AMQP_URL not set, moderation events are logged only")
		return messaging.NewLogPublisher(logger), nil
	}
	publisher, err := messaging.NewRabbitPublisher(cfg.AMQPURL, cfg.Exchange, logger)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq publisher: %w", err)
	}
	return publisher, nil
}

// Handlers is everything the route table dispatches to.
type Handlers struct {
	Auth           *handlers.AuthHandler
	Anuncios       *handlers.AnunciosHandler
	Artists        *handlers.ArtistsHandler
	ArtistRequests *handlers.ArtistRequestsHandler
	Notifications  *handlers.NotificationsHandler
	Audit          *handlers.AuditHandler
	Users          *handlers.UsersHandler
	Health         *handlers.HealthChecker
	DB             handlers.HealthDB
}

// NewHandler builds the route table and the outer middleware chain.
func NewHandler(cfg config.Config, logger zerolog.Logger, h Handlers, tokens *auth.JWTManager, limiter *middleware.RateLimiter, version, gitCommit, buildDate string) http.Handler {
	env := cfg.Environment

	authn := middleware.RequireAuth(tokens, env)
	adminOnly := middleware.RequireAdmin(env)
	body := middleware.RequestSize(middleware.DefaultMaxBodySize)
	public := limiter.Limit(middleware.TierPublic)
	login := limiter.Limit(middleware.TierLogin)
	adminTier := limiter.Limit(middleware.TierAdmin)

	member := func(fn http.HandlerFunc) http.Handler {
		return public(authn(body(fn)))
	}
	admin := func(fn http.HandlerFunc) http.Handler {
		return adminTier(authn(adminOnly(body(fn))))
	}
	open := func(fn http.HandlerFunc) http.Handler {
		return public(fn)
	}

	mux := http.NewServeMux()

	mux.Handle("/healthz", handlers.Healthz())
	mux.Handle("/readyz", handlers.Readyz(h.DB))
	if h.Health != nil {
		mux.Handle("/health", h.Health.Health())
	}
	mux.Handle("/version", VersionHandler(version, gitCommit, buildDate))
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/api/openapi.json", OpenAPIHandler())

	mux.Handle("/api/auth/register", methodMux(map[string]http.Handler{
		http.MethodPost: login(body(http.HandlerFunc(h.Auth.Register))),
	}))
	mux.Handle("/api/auth/login", methodMux(map[string]http.Handler{
		http.MethodPost: login(body(http.HandlerFunc(h.Auth.Login))),
	}))
	mux.Handle("/api/auth/verify", methodMux(map[string]http.Handler{
		http.MethodGet: member(h.Auth.Verify),
	}))

	mux.Handle("/api/anuncios", methodMux(map[string]http.Handler{
		http.MethodGet:  open(h.Anuncios.List),
		http.MethodPost: member(h.Anuncios.Create),
	}))
	mux.Handle("/api/anuncios/{id}", methodMux(map[string]http.Handler{
		http.MethodGet:    open(h.Anuncios.Get),
		http.MethodPut:    member(h.Anuncios.Update),
		http.MethodDelete: member(h.Anuncios.Delete),
	}))

	mux.Handle("/api/artistas", methodMux(map[string]http.Handler{
		http.MethodGet: open(h.Artists.Lookup),
	}))
	mux.Handle("/api/artistas/{name}", methodMux(map[string]http.Handler{
		http.MethodGet: open(h.Artists.Lookup),
	}))
	mux.Handle("/api/admin/artistas", methodMux(map[string]http.Handler{
		http.MethodGet:  admin(h.Artists.List),
		http.MethodPost: admin(h.Artists.Create),
	}))
	mux.Handle("/api/admin/artistas/{id}", methodMux(map[string]http.Handler{
		http.MethodPut:    admin(h.Artists.Update),
		http.MethodDelete: admin(h.Artists.Delete),
	}))

	mux.Handle("/api/artist-requests", methodMux(map[string]http.Handler{
		http.MethodPost: member(h.ArtistRequests.Submit),
	}))
	mux.Handle("/api/admin/artist-requests", methodMux(map[string]http.Handler{
		http.MethodGet: admin(h.ArtistRequests.List),
	}))
	mux.Handle("/api/admin/artist-requests/{id}", methodMux(map[string]http.Handler{
		http.MethodGet:    admin(h.ArtistRequests.Get),
		http.MethodDelete: admin(h.ArtistRequests.Delete),
	}))
	mux.Handle("/api/admin/artist-requests/{id}/approve", methodMux(map[string]http.Handler{
		http.MethodPost: admin(h.ArtistRequests.Approve),
	}))
	mux.Handle("/api/admin/artist-requests/{id}/reject", methodMux(map[string]http.Handler{
		http.MethodPost: admin(h.ArtistRequests.Reject),
	}))

	mux.Handle("/api/notifications", methodMux(map[string]http.Handler{
		http.MethodGet: member(h.Notifications.List),
	}))
	mux.Handle("/api/notifications/unread-count", methodMux(map[string]http.Handler{
		http.MethodGet: member(h.Notifications.UnreadCount),
	}))
	mux.Handle("/api/notifications/read-all", methodMux(map[string]http.Handler{
		http.MethodPut: member(h.Notifications.MarkAllRead),
	}))
	mux.Handle("/api/notifications/{id}/read", methodMux(map[string]http.Handler{
		http.MethodPut: member(h.Notifications.MarkRead),
	}))

	mux.Handle("/api/audit", methodMux(map[string]http.Handler{
		http.MethodGet: admin(h.Audit.List),
	}))

	mux.Handle("/api/users", methodMux(map[string]http.Handler{
		http.MethodGet:  admin(h.Users.List),
		http.MethodPost: admin(h.Users.Create),
	}))
	mux.Handle("/api/users/{id}", methodMux(map[string]http.Handler{
		http.MethodGet:    admin(h.Users.Get),
		http.MethodPut:    admin(h.Users.Update),
		http.MethodDelete: admin(h.Users.Delete),
	}))
	mux.Handle("/api/users/admin/{id}", methodMux(map[string]http.Handler{
		http.MethodPut: admin(h.Users.SetAdmin),
	}))

	mux.Handle("/api/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Not found", nil, env,
			problem.WithDetail("Ruta no encontrada"))
	}))
	mux.Handle("/robots.txt", web.RobotsTxtHandler())
	mux.Handle("/", web.StaticHandler())

	var handler http.Handler = metrics.HTTPMiddleware(mux)
	handler = middleware.CORS(cfg.CORS, logger)(handler)
	handler = middleware.SecurityHeaders(env == "production")(handler)
	handler = middleware.RequestLogging()(handler)
	handler = middleware.Tracing(handler)
	handler = middleware.CorrelationID(logger)(handler)
	return recoverer(handler, env)
}

// recoverer turns a handler panic into a 500 problem response.
func recoverer(next http.Handler, env string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				err, ok := rec.(error)
				if !ok {
					err = fmt.Errorf("%v", rec)
				}
				zerolog.Ctx(r.Context()).Error().Err(err).Msg("handler panic")
				problem.Write(w, r, http.StatusInternalServerError, problem.TypeInternal, "Internal server error", err, env)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func methodMux(handlers map[string]http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := handlers[r.Method]; ok {
			handler.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Allow", allowedMethods(handlers))
		w.WriteHeader(http.StatusMethodNotAllowed)
	})
}

func allowedMethods(handlers map[string]http.Handler) string {
	methods := make([]string, 0, len(handlers))
	for method := range handlers {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	return strings.Join(methods, ", ")
}
