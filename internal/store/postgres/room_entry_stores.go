package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tiagosilva/ecclesia/internal/models"
	"github.com/tiagosilva/ecclesia/internal/store"
)

// ReadingStore implements store.ReadingStore using PostgreSQL.
type ReadingStore struct {
	pool *pgxpool.Pool
}

// NewReadingStore creates a new PostgreSQL-backed reading store.
func NewReadingStore(pool *pgxpool.Pool) *ReadingStore {
	return &ReadingStore{pool: pool}
}

// Create records a reading announcement and fills in its assigned ID.
func (s *ReadingStore) Create(ctx context.Context, reading *models.Reading) error {
	query := `
		INSERT INTO readings (live_id, text, minute_marker)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`

	err := s.pool.QueryRow(ctx, query,
		reading.LiveID,
		reading.Text,
		reading.MinuteMarker,
	).Scan(&reading.ID, &reading.CreatedAt)
	if err != nil {
		return mapPostgresError(err)
	}
	return nil
}

// ListByLive returns readings for a live in creation order.
func (s *ReadingStore) ListByLive(ctx context.Context, liveID int64) ([]*models.Reading, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, live_id, text, minute_marker, created_at
		FROM readings
		WHERE live_id = $1
		ORDER BY created_at, id
	`, liveID)
	if err != nil {
		return nil, mapPostgresError(err)
	}
	defer rows.Close()

	var result []*models.Reading
	for rows.Next() {
		var r models.Reading
		if err := rows.Scan(&r.ID, &r.LiveID, &r.Text, &r.MinuteMarker, &r.CreatedAt); err != nil {
			return nil, mapPostgresError(err)
		}
		result = append(result, &r)
	}
	return result, rows.Err()
}

// PrayerRequestStore implements store.PrayerRequestStore using PostgreSQL.
type PrayerRequestStore struct {
	pool *pgxpool.Pool
}

// NewPrayerRequestStore creates a new PostgreSQL-backed prayer request
// store.
func NewPrayerRequestStore(pool *pgxpool.Pool) *PrayerRequestStore {
	return &PrayerRequestStore{pool: pool}
}

// Create records a prayer request and fills in its assigned ID.
func (s *PrayerRequestStore) Create(ctx context.Context, request *models.PrayerRequest) error {
	query := `
		INSERT INTO prayer_requests (live_id, request_for, reason)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`

	err := s.pool.QueryRow(ctx, query,
		request.LiveID,
		request.For,
		request.Reason,
	).Scan(&request.ID, &request.CreatedAt)
	if err != nil {
		return mapPostgresError(err)
	}
	return nil
}

// ListByLive returns prayer requests for a live in creation order.
func (s *PrayerRequestStore) ListByLive(ctx context.Context, liveID int64) ([]*models.PrayerRequest, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, live_id, request_for, reason, created_at
		FROM prayer_requests
		WHERE live_id = $1
		ORDER BY created_at, id
	`, liveID)
	if err != nil {
		return nil, mapPostgresError(err)
	}
	defer rows.Close()

	var result []*models.PrayerRequest
	for rows.Next() {
		var r models.PrayerRequest
		if err := rows.Scan(&r.ID, &r.LiveID, &r.For, &r.Reason, &r.CreatedAt); err != nil {
			return nil, mapPostgresError(err)
		}
		result = append(result, &r)
	}
	return result, rows.Err()
}

// NewStores returns a full set of PostgreSQL stores sharing one pool.
func NewStores(pool *pgxpool.Pool) store.Stores {
	return store.Stores{
		Principals:     NewPrincipalStore(pool),
		Lives:          NewLiveStore(pool),
		ViewerSessions: NewViewerSessionStore(pool),
		Readings:       NewReadingStore(pool),
		PrayerRequests: NewPrayerRequestStore(pool),
	}
}
