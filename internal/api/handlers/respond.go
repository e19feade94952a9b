package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/Togather-Foundation/tablon/internal/api/problem"
	"github.com/Togather-Foundation/tablon/internal/domain"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func init() {
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
}

// MessageResponse is the plain acknowledgement body.
type MessageResponse struct {
	Message  string   `json:"message"`
	Warnings []string `json:"warnings,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, MessageResponse{Message: message})
}

func pathParam(r *http.Request, key string) string {
	if r == nil {
		return ""
	}
	return r.PathValue(key)
}

// pathID parses a positive integer path parameter. On failure the 400 has
// already been written.
func pathID(w http.ResponseWriter, r *http.Request, key, env string) (int64, bool) {
	raw := strings.TrimSpace(pathParam(r, key))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		writeError(w, r, domain.Invalid(key, "ID inválido"), env)
		return 0, false
	}
	return id, true
}

// decodeJSON reads a JSON body into dst and runs its validate tags. An
// empty body decodes to the zero value when allowEmpty is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, env string, allowEmpty bool) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	switch {
	case err == nil:
	case errors.Is(err, io.EOF) && allowEmpty:
	default:
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			problem.Write(w, r, http.StatusRequestEntityTooLarge, problem.TypePayloadTooLarge, "Payload too large", err, env,
				problem.WithDetail("El cuerpo de la solicitud es demasiado grande"))
			return false
		}
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request body", err, env,
			problem.WithDetail("JSON inválido"))
		return false
	}

	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fields := make(map[string]any, len(verrs))
			for _, fe := range verrs {
				fields[fe.Field()] = fieldMessage(fe)
			}
			first := verrs[0]
			problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Validation failed", err, env,
				problem.WithDetail(fieldMessage(first)), problem.WithErrors(fields))
			return false
		}
		writeError(w, r, err, env)
		return false
	}
	return true
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s es requerido", fe.Field())
	case "email":
		return "Email inválido"
	case "max":
		return fmt.Sprintf("%s excede la longitud máxima (%s)", fe.Field(), fe.Param())
	case "min", "gte":
		return fmt.Sprintf("%s debe ser al menos %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s no es válido", fe.Field())
	}
}

// writeError maps a domain error onto its problem response. Anything
// outside the taxonomy is a 500 whose detail is hidden in production.
func writeError(w http.ResponseWriter, r *http.Request, err error, env string) {
	status, typ, title := classify(err)

	var opts []problem.Option
	if status < http.StatusInternalServerError {
		if msg, ok := domain.Message(err); ok {
			opts = append(opts, problem.WithDetail(msg))
		}
		var verr *domain.ValidationError
		if errors.As(err, &verr) && verr.Field != "" {
			opts = append(opts, problem.WithErrors(map[string]any{verr.Field: verr.Message}))
		}
	}
	problem.Write(w, r, status, typ, title, err, env, opts...)
}

func classify(err error) (int, string, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, problem.TypeValidation, "Validation failed"
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, problem.TypeUnauthenticated, "Unauthenticated"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, problem.TypeForbidden, "Forbidden"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, problem.TypeNotFound, "Not found"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, problem.TypeConflict, "Conflict"
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, problem.TypeRateLimited, "Too many requests"
	case errors.Is(err, domain.ErrInvalidState):
		return http.StatusBadRequest, problem.TypeInvalidState, "Invalid state"
	default:
		return http.StatusInternalServerError, problem.TypeInternal, "Internal server error"
	}
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, domain.Invalid(key, key+" debe ser un entero no negativo")
	}
	return n, nil
}
