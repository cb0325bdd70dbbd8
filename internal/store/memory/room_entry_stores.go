package memory

import (
	"context"
	"sync"
	"time"

	"github.com/tiagosilva/ecclesia/internal/models"
	"github.com/tiagosilva/ecclesia/internal/store"
)

// ReadingStore implements store.ReadingStore using in-memory storage.
type ReadingStore struct {
	mu sync.RWMutex

	nextID   int64
	readings []*models.Reading
}

// NewReadingStore creates a new in-memory reading store.
func NewReadingStore() *ReadingStore {
	return &ReadingStore{nextID: 1}
}

// Create records a reading announcement, assigning an ID.
func (s *ReadingStore) Create(ctx context.Context, reading *models.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reading.ID = s.nextID
	s.nextID++
	if reading.CreatedAt.IsZero() {
		reading.CreatedAt = time.Now()
	}

	clone := *reading
	s.readings = append(s.readings, &clone)

	return nil
}

// ListByLive returns readings for a live in insertion order.
func (s *ReadingStore) ListByLive(ctx context.Context, liveID int64) ([]*models.Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.Reading
	for _, r := range s.readings {
		if r.LiveID == liveID {
			clone := *r
			result = append(result, &clone)
		}
	}
	return result, nil
}

// PrayerRequestStore implements store.PrayerRequestStore using in-memory
// storage.
type PrayerRequestStore struct {
	mu sync.RWMutex

	nextID   int64
	requests []*models.PrayerRequest
}

// NewPrayerRequestStore creates a new in-memory prayer request store.
func NewPrayerRequestStore() *PrayerRequestStore {
	return &PrayerRequestStore{nextID: 1}
}

// Create records a prayer request, assigning an ID.
func (s *PrayerRequestStore) Create(ctx context.Context, request *models.PrayerRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	request.ID = s.nextID
	s.nextID++
	if request.CreatedAt.IsZero() {
		request.CreatedAt = time.Now()
	}

	clone := *request
	s.requests = append(s.requests, &clone)

	return nil
}

// ListByLive returns prayer requests for a live in insertion order.
func (s *PrayerRequestStore) ListByLive(ctx context.Context, liveID int64) ([]*models.PrayerRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.PrayerRequest
	for _, r := range s.requests {
		if r.LiveID == liveID {
			clone := *r
			result = append(result, &clone)
		}
	}
	return result, nil
}

// NewStores returns a full set of in-memory stores.
func NewStores() store.Stores {
	return store.Stores{
		Principals:     NewPrincipalStore(),
		Lives:          NewLiveStore(),
		ViewerSessions: NewViewerSessionStore(),
		Readings:       NewReadingStore(),
		PrayerRequests: NewPrayerRequestStore(),
	}
}
