package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tiagosilva/ecclesia/internal/models"
	"github.com/tiagosilva/ecclesia/internal/store"
)

// LiveStore implements store.LiveStore using in-memory storage.
type LiveStore struct {
	mu sync.RWMutex

	nextID int64
	lives  map[int64]*models.Live
}

// NewLiveStore creates a new in-memory live store.
func NewLiveStore() *LiveStore {
	return &LiveStore{
		nextID: 1,
		lives:  make(map[int64]*models.Live),
	}
}

// Create creates a new live, assigning an ID if unset.
func (s *LiveStore) Create(ctx context.Context, live *models.Live) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if live.ID == 0 {
		live.ID = s.nextID
		s.nextID++
	}
	if live.ID >= s.nextID {
		s.nextID = live.ID + 1
	}
	if live.StartedAt.IsZero() {
		live.StartedAt = time.Now()
	}

	clone := *live
	s.lives[clone.ID] = &clone

	return nil
}

// Get retrieves a live by ID.
func (s *LiveStore) Get(ctx context.Context, id int64) (*models.Live, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	live, exists := s.lives[id]
	if !exists {
		return nil, store.ErrLiveNotFound
	}

	clone := *live
	return &clone, nil
}

// Current returns the most recently started live that has not ended.
func (s *LiveStore) Current(ctx context.Context) (*models.Live, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var open []*models.Live
	for _, l := range s.lives {
		if l.EndedAt == nil {
			open = append(open, l)
		}
	}
	if len(open) == 0 {
		return nil, store.ErrLiveNotFound
	}
	sort.Slice(open, func(i, j int) bool { return open[i].StartedAt.After(open[j].StartedAt) })

	clone := *open[0]
	return &clone, nil
}

// SetOfferingActive updates the offering flag for a live.
func (s *LiveStore) SetOfferingActive(ctx context.Context, id int64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	live, exists := s.lives[id]
	if !exists {
		return store.ErrLiveNotFound
	}

	live.OfferingActive = active
	return nil
}
