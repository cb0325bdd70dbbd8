// Package server holds the REST surface of the session lifecycle: login,
// refresh, logout, the authenticated whoami endpoint, and the health check.
package server

import (
	"encoding/json"
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog/log"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Failed to encode response")
	}
}

// writeError is the one error shape every handler uses.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// Recovery converts panics into 500 responses. Stack traces are always
// logged; they only reach the response body in dev mode.
func Recovery(dev bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					stack := debug.Stack()
					log.Error().
						Interface("panic", rec).
						Str("path", r.URL.Path).
						Bytes("stack", stack).
						Msg("Handler panicked")

					if dev {
						writeJSON(w, http.StatusInternalServerError, map[string]string{
							"error": "internal server error",
							"stack": string(stack),
						})
						return
					}
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
