// Package middleware provides HTTP middleware for the recorder API.
package middleware

import (
	"log/slog"
	"net/http"
)

// OriginAllowed reports whether origin matches the allow list. An empty
// origin (same-origin or non-browser client) is always allowed.
func OriginAllowed(origin string, allowedOrigins []string) bool {
	if origin == "" {
		return true
	}
	for _, o := range allowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

// CheckOrigin is the websocket upgrade guard shared by the page bridge and
// the consumer stream. Development mode accepts everything.
func CheckOrigin(r *http.Request, allowedOrigins []string, isDev bool) bool {
	if isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if OriginAllowed(origin, allowedOrigins) {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", allowedOrigins)
	return false
}

// CORS returns middleware that handles CORS headers.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if origin != "" && OriginAllowed(origin, allowedOrigins) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Recorder-Tab-ID")
				// Credentials only for explicit origins, never for a wildcard echo.
				for _, o := range allowedOrigins {
					if o != "*" && o == origin {
						w.Header().Set("Access-Control-Allow-Credentials", "true")
						break
					}
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
