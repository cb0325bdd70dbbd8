package auth

import (
	"net/http"
	"strings"
)

// AccessTokenCookie is the httpOnly cookie carrying the access token for
// browser clients. API clients send the same token as a bearer header.
const AccessTokenCookie = "accessToken"

// RefreshTokenCookie carries the refresh token; only the refresh endpoint
// reads it.
const RefreshTokenCookie = "refreshToken"

// ResolveCredential extracts the access token from a request. The cookie
// takes priority over the Authorization header so that a stale header left
// behind by a client library cannot shadow a fresh cookie. Returns false
// when no credential is present.
//
// Every protected handler goes through this one function; credential
// precedence is decided here and nowhere else.
func ResolveCredential(r *http.Request) (string, bool) {
	if cookie, err := r.Cookie(AccessTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}
	if token := bearerToken(r); token != "" {
		return token, true
	}
	return "", false
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}

	return parts[1]
}
