package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"social/internal/store"
)

// Register is the registration boundary: a plain HTTP POST carrying
// username, password and up to five comma-separated tags. It is served
// on the admin mux, not on the framed TCP port.
func Register(st *store.Store, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		username := strings.TrimSpace(r.FormValue("username"))
		password := r.FormValue("password")
		if username == "" {
			http.Error(w, "Username required", http.StatusBadRequest)
			return
		}
		var tags []string
		if raw := strings.TrimSpace(r.FormValue("tags")); raw != "" {
			tags = strings.Split(raw, ",")
		}

		err := st.CreateUser(username, password, tags)
		switch {
		case err == nil:
			log.Info().Str("user", username).Msg("user registered")
			w.WriteHeader(http.StatusCreated)
		case errors.Is(err, store.ErrUsernameAlreadyExists):
			http.Error(w, "Username already taken", http.StatusConflict)
		case errors.Is(err, store.ErrInvalidPassword):
			http.Error(w, "Password required", http.StatusBadRequest)
		case errors.Is(err, store.ErrTooManyTags):
			http.Error(w, "At most 5 tags allowed", http.StatusBadRequest)
		default:
			log.Error().Err(err).Str("user", username).Msg("registration failed")
			http.Error(w, "Registration failed", http.StatusInternalServerError)
		}
	}
}
