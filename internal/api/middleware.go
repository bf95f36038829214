package api

import (
	"net/http"
	"strings"
)

// HeaderUserEmail carries the caller's identity. Authentication happens
// upstream of the relay.
const HeaderUserEmail = "X-User-Email"

// authMiddleware requires the X-User-Email header and adds it to the
// request context.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		email := strings.TrimSpace(r.Header.Get(HeaderUserEmail))
		if email == "" {
			http.Error(w, "missing "+HeaderUserEmail+" header", http.StatusUnauthorized)

			return
		}

		next.ServeHTTP(w, r.WithContext(withUserEmail(r.Context(), email)))
	})
}
