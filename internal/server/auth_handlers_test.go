package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tiagosilva/ecclesia/internal/auth"
	"github.com/tiagosilva/ecclesia/internal/models"
	"github.com/tiagosilva/ecclesia/internal/store/memory"
	"github.com/tiagosilva/ecclesia/internal/tokens"
	"golang.org/x/crypto/bcrypt"
)

type handlerEnv struct {
	handlers   *AuthHandlers
	tokens     *tokens.Service
	principals *memory.PrincipalStore
	admin      *models.Principal
}

func setupHandlers(t *testing.T) *handlerEnv {
	t.Helper()

	svc, err := tokens.New(
		[]byte("0123456789abcdef0123456789abcdef"),
		[]byte("fedcba9876543210fedcba9876543210"),
	)
	require.NoError(t, err)

	principals := memory.NewPrincipalStore()

	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)

	admin := &models.Principal{
		Username:     "admin",
		Name:         "Admin",
		Role:         models.RoleAdmin,
		PasswordHash: string(hash),
	}
	require.NoError(t, principals.Create(context.Background(), admin))

	return &handlerEnv{
		handlers:   NewAuthHandlers(svc, principals, false),
		tokens:     svc,
		principals: principals,
		admin:      admin,
	}
}

func postJSON(t *testing.T, handler http.HandlerFunc, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodPost, target, bytes.NewReader(raw)))
	return rec
}

func findCookie(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestLogin(t *testing.T) {
	env := setupHandlers(t)

	t.Run("success", func(t *testing.T) {
		rec := postJSON(t, env.handlers.Login, "/api/auth/login", loginRequest{Username: "admin", Password: "secret"})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp sessionResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, "admin", resp.User.Username)
		require.NotEmpty(t, resp.AccessToken)
		require.NotEmpty(t, resp.RefreshToken)

		claims, err := env.tokens.VerifyAccess(resp.AccessToken)
		require.NoError(t, err)
		require.Equal(t, env.admin.ID, claims.UserID)

		access := findCookie(t, rec, auth.AccessTokenCookie)
		require.NotNil(t, access)
		require.True(t, access.HttpOnly)
		require.Equal(t, http.SameSiteLaxMode, access.SameSite)
		require.Equal(t, resp.AccessToken, access.Value)

		require.NotNil(t, findCookie(t, rec, auth.RefreshTokenCookie))
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := postJSON(t, env.handlers.Login, "/api/auth/login", loginRequest{Username: "admin", Password: "nope"})
		require.Equal(t, http.StatusUnauthorized, rec.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, "invalid credentials", body["error"])
	})

	t.Run("unknown user", func(t *testing.T) {
		rec := postJSON(t, env.handlers.Login, "/api/auth/login", loginRequest{Username: "ghost", Password: "secret"})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := httptest.NewRecorder()
		env.handlers.Login(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader([]byte("{"))))
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRefresh(t *testing.T) {
	env := setupHandlers(t)

	t.Run("via body", func(t *testing.T) {
		refresh, err := env.tokens.IssueRefreshToken(env.admin.ID)
		require.NoError(t, err)

		rec := postJSON(t, env.handlers.Refresh, "/api/auth/refresh", refreshRequest{RefreshToken: refresh})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp sessionResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

		claims, err := env.tokens.VerifyAccess(resp.AccessToken)
		require.NoError(t, err)
		require.Equal(t, env.admin.ID, claims.UserID)

		_, err = env.tokens.VerifyRefresh(resp.RefreshToken)
		require.NoError(t, err)
	})

	t.Run("via cookie", func(t *testing.T) {
		refresh, err := env.tokens.IssueRefreshToken(env.admin.ID)
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
		r.AddCookie(&http.Cookie{Name: auth.RefreshTokenCookie, Value: refresh})
		env.handlers.Refresh(rec, r)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		env.handlers.Refresh(rec, httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("access token rejected", func(t *testing.T) {
		access, err := env.tokens.IssueAccessToken(env.admin.ID)
		require.NoError(t, err)

		rec := postJSON(t, env.handlers.Refresh, "/api/auth/refresh", refreshRequest{RefreshToken: access})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unknown principal", func(t *testing.T) {
		refresh, err := env.tokens.IssueRefreshToken(9999)
		require.NoError(t, err)

		rec := postJSON(t, env.handlers.Refresh, "/api/auth/refresh", refreshRequest{RefreshToken: refresh})
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestMe(t *testing.T) {
	env := setupHandlers(t)

	t.Run("authenticated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		r = r.WithContext(auth.WithPrincipalID(r.Context(), env.admin.ID))
		env.handlers.Me(rec, r)

		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]*models.Principal
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, "admin", body["user"].Username)
	})

	t.Run("no principal in context", func(t *testing.T) {
		rec := httptest.NewRecorder()
		env.handlers.Me(rec, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestLogout(t *testing.T) {
	env := setupHandlers(t)

	rec := httptest.NewRecorder()
	env.handlers.Logout(rec, httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	for _, name := range []string{auth.AccessTokenCookie, auth.RefreshTokenCookie} {
		cookie := findCookie(t, rec, name)
		require.NotNil(t, cookie)
		require.Negative(t, cookie.MaxAge)
		require.Empty(t, cookie.Value)
	}
}

// TestLoginThenMe runs the full flow through the gateway middleware the way
// a browser would: login sets the cookie, the cookie authenticates the
// whoami call.
func TestLoginThenMe(t *testing.T) {
	env := setupHandlers(t)

	gateway := auth.NewGateway(env.tokens)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", env.handlers.Login)
	mux.HandleFunc("GET /api/auth/me", env.handlers.Me)
	handler := gateway.Middleware()(mux)

	raw, err := json.Marshal(loginRequest{Username: "admin", Password: "secret"})
	require.NoError(t, err)

	loginRec := httptest.NewRecorder()
	handler.ServeHTTP(loginRec, httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(raw)))
	require.Equal(t, http.StatusOK, loginRec.Code)

	access := findCookie(t, loginRec, auth.AccessTokenCookie)
	require.NotNil(t, access)

	meRec := httptest.NewRecorder()
	meReq := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	meReq.AddCookie(access)
	handler.ServeHTTP(meRec, meReq)

	require.Equal(t, http.StatusOK, meRec.Code)

	var body map[string]*models.Principal
	require.NoError(t, json.Unmarshal(meRec.Body.Bytes(), &body))
	require.Equal(t, env.admin.ID, body["user"].ID)

	// Without the cookie the same call is rejected.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
