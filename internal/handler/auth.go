package handler

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

const adminUsername = "admin"

// requireAdmin checks HTTP basic credentials against the admin password hash.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(username), []byte(adminUsername)) != 1 ||
			bcrypt.CompareHashAndPassword(h.adminHash, []byte(password)) != nil {
			if ok {
				slog.Warn("admin authentication failed", "remote", r.RemoteAddr)
			}
			w.Header().Set("WWW-Authenticate", `Basic realm="adaptest admin"`)
			h.writeMessage(w, r, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
