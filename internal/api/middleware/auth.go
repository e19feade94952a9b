package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/Togather-Foundation/tablon/internal/api/problem"
	"github.com/Togather-Foundation/tablon/internal/auth"
)

type identityKey struct{}

var errNotAdmin = errors.New("caller is not an admin")

// RequireAuth validates the bearer token and stores the caller identity in the
// request context. Missing or invalid tokens get a 401 before the handler runs.
func RequireAuth(manager *auth.JWTManager, env string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := auth.TokenFromHeader(r.Header.Get("Authorization"))
			if err != nil {
				writeUnauthenticated(w, r, "Token no proporcionado", err, env)
				return
			}
			if manager == nil {
				writeUnauthenticated(w, r, "Token inválido", auth.ErrInvalidToken, env)
				return
			}

			claims, err := manager.Validate(token)
			if err != nil {
				writeUnauthenticated(w, r, "Token inválido o expirado", err, env)
				return
			}

			identity := claims.Identity()
			ctx := ContextWithIdentity(r.Context(), identity)
			logger := LoggerFromContext(ctx).With().Int64("user_id", identity.ID).Logger()
			ctx = logger.WithContext(ctx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin must run after RequireAuth.
func RequireAdmin(env string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				writeUnauthenticated(w, r, "Token no proporcionado", auth.ErrMissingToken, env)
				return
			}
			if !identity.IsAdmin {
				problem.Write(w, r, http.StatusForbidden, problem.TypeForbidden, "Forbidden", errNotAdmin, env,
					problem.WithDetail("Se requieren permisos de administrador"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func ContextWithIdentity(ctx context.Context, identity auth.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

func IdentityFromContext(ctx context.Context) (auth.Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(auth.Identity)
	return identity, ok
}

func writeUnauthenticated(w http.ResponseWriter, r *http.Request, detail string, err error, env string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="tablon"`)
	problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthenticated, "Unauthenticated", err, env,
		problem.WithDetail(detail))
}
