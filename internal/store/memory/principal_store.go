package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tiagosilva/ecclesia/internal/models"
	"github.com/tiagosilva/ecclesia/internal/store"
)

// PrincipalStore implements store.PrincipalStore using in-memory storage.
// This implementation is for testing and development - data is lost on
// restart.
type PrincipalStore struct {
	mu sync.RWMutex

	nextID               int64
	principals           map[int64]*models.Principal
	principalsByUsername map[string]*models.Principal
}

// NewPrincipalStore creates a new in-memory principal store.
func NewPrincipalStore() *PrincipalStore {
	return &PrincipalStore{
		nextID:               1,
		principals:           make(map[int64]*models.Principal),
		principalsByUsername: make(map[string]*models.Principal),
	}
}

// Create creates a new principal in memory, assigning an ID if unset.
func (s *PrincipalStore) Create(ctx context.Context, principal *models.Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.principalsByUsername[principal.Username]; exists {
		return store.ErrPrincipalAlreadyExists
	}
	if principal.ID == 0 {
		principal.ID = s.nextID
		s.nextID++
	} else if _, exists := s.principals[principal.ID]; exists {
		return store.ErrPrincipalAlreadyExists
	}
	if principal.ID >= s.nextID {
		s.nextID = principal.ID + 1
	}
	if principal.CreatedAt.IsZero() {
		principal.CreatedAt = time.Now()
	}

	// Clone to avoid external modifications
	clone := *principal
	s.principals[clone.ID] = &clone
	s.principalsByUsername[clone.Username] = &clone

	return nil
}

// Get retrieves a principal by ID.
func (s *PrincipalStore) Get(ctx context.Context, id int64) (*models.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	principal, exists := s.principals[id]
	if !exists {
		return nil, store.ErrPrincipalNotFound
	}

	clone := *principal
	return &clone, nil
}

// GetByUsername retrieves a principal by username.
func (s *PrincipalStore) GetByUsername(ctx context.Context, username string) (*models.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	principal, exists := s.principalsByUsername[username]
	if !exists {
		return nil, store.ErrPrincipalNotFound
	}

	clone := *principal
	return &clone, nil
}

// SetOnline updates the durable online flag for a principal.
func (s *PrincipalStore) SetOnline(ctx context.Context, id int64, online bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	principal, exists := s.principals[id]
	if !exists {
		return store.ErrPrincipalNotFound
	}

	principal.Online = online
	return nil
}

// List returns all principals ordered by ID.
func (s *PrincipalStore) List(ctx context.Context) ([]*models.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.Principal, 0, len(s.principals))
	for _, p := range s.principals {
		clone := *p
		result = append(result, &clone)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })

	return result, nil
}
