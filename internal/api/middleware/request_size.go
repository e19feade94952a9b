package middleware

import (
	"net/http"
)

const (
	// DefaultMaxBodySize covers every JSON endpoint.
	DefaultMaxBodySize int64 = 1 << 20 // 1MB
)

// RequestSize wraps the body in http.MaxBytesReader. Handlers see a
// *http.MaxBytesError from the decoder once the limit is exceeded and answer 413.
func RequestSize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
