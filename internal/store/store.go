// Package store defines the persistence interfaces used by the auth
// endpoints, the presence registry, and the live-room coordinator. Two
// implementations exist: memory (tests and development) and postgres.
//
// For presence and live-room state the in-memory registries are the source
// of truth; these stores are a best-effort durable mirror. Callers log and
// continue on store failures rather than aborting a broadcast.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/tiagosilva/ecclesia/internal/models"
)

var (
	ErrPrincipalNotFound      = errors.New("principal not found")
	ErrPrincipalAlreadyExists = errors.New("principal already exists")
	ErrLiveNotFound           = errors.New("live not found")
	ErrViewerSessionNotFound  = errors.New("viewer session not found")
)

// PrincipalStore persists principals and their online flag.
type PrincipalStore interface {
	Create(ctx context.Context, principal *models.Principal) error
	Get(ctx context.Context, id int64) (*models.Principal, error)
	GetByUsername(ctx context.Context, username string) (*models.Principal, error)
	SetOnline(ctx context.Context, id int64, online bool) error
	List(ctx context.Context) ([]*models.Principal, error)
}

// LiveStore persists live broadcasts and their room-scoped offering flag.
type LiveStore interface {
	Create(ctx context.Context, live *models.Live) error
	Get(ctx context.Context, id int64) (*models.Live, error)
	// Current returns the most recent live that has not ended.
	Current(ctx context.Context) (*models.Live, error)
	SetOfferingActive(ctx context.Context, id int64, active bool) error
}

// ViewerSessionStore persists viewer-session intervals. Sessions are
// closed, never deleted.
type ViewerSessionStore interface {
	Create(ctx context.Context, session *models.ViewerSession) error
	// Close sets EndedAt on an open session. Closing an already-closed
	// session is a no-op so disconnect paths stay idempotent.
	Close(ctx context.Context, sessionID uuid.UUID) error
	CountOpen(ctx context.Context, liveID int64) (int, error)
}

// ReadingStore persists Bible-reading announcements.
type ReadingStore interface {
	Create(ctx context.Context, reading *models.Reading) error
	ListByLive(ctx context.Context, liveID int64) ([]*models.Reading, error)
}

// PrayerRequestStore persists prayer requests.
type PrayerRequestStore interface {
	Create(ctx context.Context, request *models.PrayerRequest) error
	ListByLive(ctx context.Context, liveID int64) ([]*models.PrayerRequest, error)
}

// Stores bundles every store so wiring code can pass one value around.
type Stores struct {
	Principals     PrincipalStore
	Lives          LiveStore
	ViewerSessions ViewerSessionStore
	Readings       ReadingStore
	PrayerRequests PrayerRequestStore
}
