// Package auth is the request gateway: it classifies every inbound request
// as public or protected, resolves the access credential from cookie or
// bearer header, and either forwards the request with the principal in
// context or rejects it. It never refreshes tokens; refresh is an explicit
// client-initiated flow against the refresh endpoint.
package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tiagosilva/ecclesia/internal/tokens"
)

type contextKey int

const principalIDContextKey contextKey = iota

// WithPrincipalID returns a context carrying the authenticated principal ID.
func WithPrincipalID(ctx context.Context, principalID int64) context.Context {
	return context.WithValue(ctx, principalIDContextKey, principalID)
}

// PrincipalIDFromContext extracts the authenticated principal ID from the
// request context. ok is false for unauthenticated requests.
func PrincipalIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(principalIDContextKey).(int64)
	return id, ok
}

// defaultPublicPaths are reachable without a credential. The login and
// refresh endpoints must stay public or nobody could ever authenticate;
// /ws is public at the HTTP layer because the socket authenticates itself
// with a user_connected announcement after the upgrade.
var defaultPublicPaths = []string{
	"/",
	"/login",
	"/healthz",
	"/api/auth/login",
	"/api/auth/refresh",
	"/ws",
}

var defaultPublicPrefixes = []string{
	"/public/",
}

// Gateway authenticates requests using the token service.
type Gateway struct {
	tokens         *tokens.Service
	publicPaths    map[string]struct{}
	publicPrefixes []string
	loginURL       string
}

// NewGateway creates a gateway with the default public allow-list.
func NewGateway(svc *tokens.Service) *Gateway {
	paths := make(map[string]struct{}, len(defaultPublicPaths))
	for _, p := range defaultPublicPaths {
		paths[p] = struct{}{}
	}
	return &Gateway{
		tokens:         svc,
		publicPaths:    paths,
		publicPrefixes: defaultPublicPrefixes,
		loginURL:       "/login",
	}
}

// isPublic reports whether the path passes through unauthenticated.
func (g *Gateway) isPublic(path string) bool {
	if _, ok := g.publicPaths[path]; ok {
		return true
	}
	for _, prefix := range g.publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func isAPIPath(path string) bool {
	return strings.HasPrefix(path, "/api/")
}

// Middleware wraps a handler with the gateway's request classification.
func (g *Gateway) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path

			if g.isPublic(path) {
				// A logged-in visit to the login page goes straight to the
				// dashboard.
				if path == "/login" {
					if token, ok := ResolveCredential(r); ok {
						if _, err := g.tokens.VerifyAccess(token); err == nil {
							http.Redirect(w, r, "/dashboard", http.StatusFound)
							return
						}
					}
				}
				next.ServeHTTP(w, r)
				return
			}

			token, ok := ResolveCredential(r)
			if !ok {
				g.reject(w, r, "missing credential")
				return
			}

			claims, err := g.tokens.VerifyAccess(token)
			if err != nil {
				log.Debug().Err(err).Str("path", path).Msg("Access token rejected")
				g.reject(w, r, "invalid credential")
				return
			}

			// Re-stamp the normalized bearer header so downstream handlers
			// see one canonical credential transport.
			r.Header.Set("Authorization", "Bearer "+token)

			ctx := WithPrincipalID(r.Context(), claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// reject surfaces an auth failure: machine-readable 401 for API paths,
// login redirect for page navigation. Never a 500.
func (g *Gateway) reject(w http.ResponseWriter, r *http.Request, reason string) {
	log.Debug().Str("path", r.URL.Path).Str("reason", reason).Msg("Request rejected")

	if isAPIPath(r.URL.Path) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
		return
	}

	http.Redirect(w, r, g.loginURL, http.StatusFound)
}
