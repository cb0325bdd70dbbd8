package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/tiagosilva/ecclesia/internal/auth"
	httpmiddleware "github.com/tiagosilva/ecclesia/internal/http"
	"github.com/tiagosilva/ecclesia/internal/models"
	"github.com/tiagosilva/ecclesia/internal/store"
	"github.com/tiagosilva/ecclesia/internal/tokens"
	"golang.org/x/crypto/bcrypt"
)

// AuthHandlers implements the session lifecycle endpoints.
type AuthHandlers struct {
	tokens        *tokens.Service
	principals    store.PrincipalStore
	secureCookies bool
}

// NewAuthHandlers creates the auth endpoint handlers. secureCookies should
// be true everywhere TLS terminates in front of the server.
func NewAuthHandlers(svc *tokens.Service, principals store.PrincipalStore, secureCookies bool) *AuthHandlers {
	return &AuthHandlers{
		tokens:        svc,
		principals:    principals,
		secureCookies: secureCookies,
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type sessionResponse struct {
	User         *models.Principal `json:"user"`
	AccessToken  string            `json:"accessToken"`
	RefreshToken string            `json:"refreshToken"`
}

// Login verifies the password and issues a fresh token pair. The response
// carries the tokens for API clients and sets httpOnly cookies for
// browsers.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	principal, err := h.principals.GetByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, store.ErrPrincipalNotFound) {
			h.rejectLogin(w, r, req.Username)
			return
		}
		log.Error().Err(err).Msg("Failed to load principal")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(principal.PasswordHash), []byte(req.Password)); err != nil {
		h.rejectLogin(w, r, req.Username)
		return
	}

	h.issueSession(w, principal)
}

// rejectLogin answers failed logins uniformly so the response does not
// reveal whether the username exists.
func (h *AuthHandlers) rejectLogin(w http.ResponseWriter, r *http.Request, username string) {
	log.Warn().
		Str("username", username).
		Str("client_ip", httpmiddleware.ExtractClientIP(r)).
		Msg("Login failed")
	writeError(w, http.StatusUnauthorized, "invalid credentials")
}

// Refresh rotates the token pair. The refresh token comes from the request
// body, falling back to the refresh cookie for browser clients.
func (h *AuthHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	// Browser clients send an empty body and rely on the cookie.
	var req refreshRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.RefreshToken == "" {
		if cookie, err := r.Cookie(auth.RefreshTokenCookie); err == nil {
			req.RefreshToken = cookie.Value
		}
	}
	if req.RefreshToken == "" {
		writeError(w, http.StatusUnauthorized, "missing refresh token")
		return
	}

	claims, err := h.tokens.VerifyRefresh(req.RefreshToken)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	principal, err := h.principals.Get(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrPrincipalNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		log.Error().Err(err).Msg("Failed to load principal")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.issueSession(w, principal)
}

// Me returns the authenticated principal.
func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	principalID, ok := auth.PrincipalIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	principal, err := h.principals.Get(r.Context(), principalID)
	if err != nil {
		if errors.Is(err, store.ErrPrincipalNotFound) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		log.Error().Err(err).Msg("Failed to load principal")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]*models.Principal{"user": principal})
}

// Logout clears both session cookies. Tokens are not revocable; the client
// discards its copies.
func (h *AuthHandlers) Logout(w http.ResponseWriter, _ *http.Request) {
	h.clearCookie(w, auth.AccessTokenCookie)
	h.clearCookie(w, auth.RefreshTokenCookie)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *AuthHandlers) issueSession(w http.ResponseWriter, principal *models.Principal) {
	access, refresh, err := h.tokens.IssuePair(principal.ID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to issue token pair")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.setCookie(w, auth.AccessTokenCookie, access, int(h.tokens.AccessTTL().Seconds()))
	h.setCookie(w, auth.RefreshTokenCookie, refresh, int(h.tokens.RefreshTTL().Seconds()))

	writeJSON(w, http.StatusOK, sessionResponse{
		User:         principal,
		AccessToken:  access,
		RefreshToken: refresh,
	})
}

func (h *AuthHandlers) setCookie(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandlers) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
