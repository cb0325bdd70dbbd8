package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tiagosilva/ecclesia/internal/models"
	"github.com/tiagosilva/ecclesia/internal/store"
)

// ViewerSessionStore implements store.ViewerSessionStore using in-memory
// storage.
type ViewerSessionStore struct {
	mu sync.RWMutex

	sessions map[uuid.UUID]*models.ViewerSession
}

// NewViewerSessionStore creates a new in-memory viewer session store.
func NewViewerSessionStore() *ViewerSessionStore {
	return &ViewerSessionStore{
		sessions: make(map[uuid.UUID]*models.ViewerSession),
	}
}

// Create records a new open viewer session.
func (s *ViewerSessionStore) Create(ctx context.Context, session *models.ViewerSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session.StartedAt.IsZero() {
		session.StartedAt = time.Now()
	}

	clone := *session
	s.sessions[clone.SessionID] = &clone

	return nil
}

// Close sets EndedAt on an open session. Closing a closed session is a
// no-op; closing an unknown session returns ErrViewerSessionNotFound.
func (s *ViewerSessionStore) Close(ctx context.Context, sessionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[sessionID]
	if !exists {
		return store.ErrViewerSessionNotFound
	}
	if session.EndedAt != nil {
		return nil
	}

	now := time.Now()
	session.EndedAt = &now
	return nil
}

// CountOpen returns the number of open sessions for a live.
func (s *ViewerSessionStore) CountOpen(ctx context.Context, liveID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, session := range s.sessions {
		if session.LiveID == liveID && session.EndedAt == nil {
			count++
		}
	}
	return count, nil
}
