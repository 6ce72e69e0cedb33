package handlers

import (
	"net/http"

	"github.com/rs/zerolog"
)

// WithRecover wraps an http.Handler and recovers from panics, returning
// HTTP 500 instead of taking the admin mux down with the request.
func WithRecover(next http.Handler, log zerolog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().Interface("panic", rec).
					Str("method", r.Method).Str("path", r.URL.Path).
					Msg("recovered in admin handler")
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
