package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// Admin returns middleware that gates operator endpoints behind a shared
// password, supplied either in the X-Admin-Password header or the "password"
// query parameter. If no password is configured the endpoints are disabled
// outright rather than left open.
func Admin(password string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if password == "" {
				writeUnauthorized(w, "admin access not configured")
				return
			}

			supplied := extractPassword(r)
			if supplied == "" {
				writeUnauthorized(w, "missing admin password")
				return
			}

			// Constant-time comparison to prevent timing attacks.
			if subtle.ConstantTimeCompare([]byte(supplied), []byte(password)) != 1 {
				writeUnauthorized(w, "invalid admin password")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func extractPassword(r *http.Request) string {
	if p := r.Header.Get("X-Admin-Password"); p != "" {
		return strings.TrimSpace(p)
	}
	return strings.TrimSpace(r.URL.Query().Get("password"))
}

// writeUnauthorized sends a 401 response with a JSON error body.
func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}
