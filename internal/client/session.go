// Package client implements the API-side session lifecycle used by the
// CLI: login, persisted tokens, background refresh, and the realtime
// connection.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"github.com/tiagosilva/ecclesia/internal/models"
)

// refreshLead is how long before access-token expiry the background
// refresh fires.
const refreshLead = 60 * time.Second

// Session is the persisted login state.
type Session struct {
	User         *models.Principal `json:"user"`
	AccessToken  string            `json:"accessToken"`
	RefreshToken string            `json:"refreshToken"`
	AccessExpiry time.Time         `json:"accessExpiry"`
}

type sessionResponse struct {
	User         *models.Principal `json:"user"`
	AccessToken  string            `json:"accessToken"`
	RefreshToken string            `json:"refreshToken"`
}

// SessionStore owns the client's token pair. It persists the session to
// disk and keeps the access token fresh with a single background refresh
// timer; a refresh failure logs the session out.
type SessionStore struct {
	baseURL    string
	httpClient *http.Client
	path       string

	mu      sync.Mutex
	session *Session
	timer   *time.Timer
}

// SessionOption configures a SessionStore.
type SessionOption func(*SessionStore)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(httpClient *http.Client) SessionOption {
	return func(s *SessionStore) {
		s.httpClient = httpClient
	}
}

// WithSessionPath overrides where the session file is written.
func WithSessionPath(path string) SessionOption {
	return func(s *SessionStore) {
		s.path = path
	}
}

// NewSessionStore creates a session store for the given server. The
// session file defaults to ~/.ecclesia/session.json.
func NewSessionStore(baseURL string, opts ...SessionOption) (*SessionStore, error) {
	s := &SessionStore{
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("client: failed to resolve home directory: %w", err)
		}
		s.path = filepath.Join(home, ".ecclesia", "session.json")
	}

	return s, nil
}

// Login authenticates and stores the returned token pair. Any pending
// refresh from a previous login is cancelled.
func (s *SessionStore) Login(ctx context.Context, username, password string) (*models.Principal, error) {
	body, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return nil, err
	}

	resp, err := s.postJSON(ctx, "/api/auth/login", body)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.installLocked(resp); err != nil {
		return nil, err
	}
	return resp.User, nil
}

// Logout cancels the refresh timer and deletes the persisted session.
func (s *SessionStore) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
}

// CheckAuth restores the persisted session and verifies it against the
// server. It returns false when no session exists; a session the server
// rejects is logged out.
func (s *SessionStore) CheckAuth(ctx context.Context) (*models.Principal, bool, error) {
	s.mu.Lock()
	if s.session == nil {
		if err := s.loadLocked(); err != nil {
			s.mu.Unlock()
			return nil, false, nil
		}
	}
	token := s.session.AccessToken
	s.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/auth/me", nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.Logout()
		return nil, false, nil
	}

	var body struct {
		User *models.Principal `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	if s.session != nil {
		s.session.User = body.User
	}
	s.mu.Unlock()

	return body.User, true, nil
}

// AccessToken returns the current access token, or false when logged out.
func (s *SessionStore) AccessToken() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return "", false
	}
	return s.session.AccessToken, true
}

// refresh rotates the token pair in the background. The mutex makes the
// rotation single-flight; a failure clears the session.
func (s *SessionStore) refresh() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return
	}

	body, err := json.Marshal(map[string]string{"refreshToken": s.session.RefreshToken})
	if err != nil {
		s.clearLocked()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := s.postJSON(ctx, "/api/auth/refresh", body)
	if err != nil {
		log.Debug().Err(err).Msg("Token refresh failed, logging out")
		s.clearLocked()
		return
	}

	if err := s.installLocked(resp); err != nil {
		log.Debug().Err(err).Msg("Failed to install refreshed session")
		s.clearLocked()
	}
}

// installLocked swaps in a fresh token pair, persists it, and schedules
// the next refresh. Callers must hold mu.
func (s *SessionStore) installLocked(resp *sessionResponse) error {
	expiry, err := tokenExpiry(resp.AccessToken)
	if err != nil {
		return err
	}

	s.session = &Session{
		User:         resp.User,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		AccessExpiry: expiry,
	}

	if err := s.saveLocked(); err != nil {
		log.Warn().Err(err).Msg("Failed to persist session")
	}

	s.scheduleLocked(expiry)
	return nil
}

func (s *SessionStore) scheduleLocked(expiry time.Time) {
	if s.timer != nil {
		s.timer.Stop()
	}

	delay := time.Until(expiry.Add(-refreshLead))
	if delay < 0 {
		delay = 0
	}
	s.timer = time.AfterFunc(delay, s.refresh)
}

func (s *SessionStore) clearLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.session = nil
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("Failed to remove session file")
	}
}

func (s *SessionStore) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s.session, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

func (s *SessionStore) loadLocked() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return err
	}

	s.session = &session
	s.scheduleLocked(session.AccessExpiry)
	return nil
}

func (s *SessionStore) postJSON(ctx context.Context, path string, body []byte) (*sessionResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("client: %s (status %d)", apiErr.Error, resp.StatusCode)
		}
		return nil, fmt.Errorf("client: request failed with status %d", resp.StatusCode)
	}

	var result sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

// tokenExpiry reads the exp claim without verifying the signature. The
// client holds no signing secret; the server remains the verifier.
func tokenExpiry(token string) (time.Time, error) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, fmt.Errorf("client: failed to parse access token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, fmt.Errorf("client: access token has no expiry")
	}
	return claims.ExpiresAt.Time, nil
}
