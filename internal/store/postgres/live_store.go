package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tiagosilva/ecclesia/internal/models"
	"github.com/tiagosilva/ecclesia/internal/store"
)

// LiveStore implements store.LiveStore using PostgreSQL.
type LiveStore struct {
	pool *pgxpool.Pool
}

// NewLiveStore creates a new PostgreSQL-backed live store.
func NewLiveStore(pool *pgxpool.Pool) *LiveStore {
	return &LiveStore{pool: pool}
}

func scanLive(row pgx.Row) (*models.Live, error) {
	var l models.Live
	err := row.Scan(
		&l.ID,
		&l.Title,
		&l.VideoID,
		&l.OfferingActive,
		&l.StartedAt,
		&l.EndedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrLiveNotFound
		}
		return nil, mapPostgresError(err)
	}
	return &l, nil
}

// Create inserts a new live and fills in its assigned ID.
func (s *LiveStore) Create(ctx context.Context, live *models.Live) error {
	query := `
		INSERT INTO lives (title, video_id, offering_active)
		VALUES ($1, $2, $3)
		RETURNING id, started_at
	`

	err := s.pool.QueryRow(ctx, query,
		live.Title,
		live.VideoID,
		live.OfferingActive,
	).Scan(&live.ID, &live.StartedAt)
	if err != nil {
		return mapPostgresError(err)
	}
	return nil
}

// Get retrieves a live by ID.
func (s *LiveStore) Get(ctx context.Context, id int64) (*models.Live, error) {
	query := `
		SELECT id, title, video_id, offering_active, started_at, ended_at
		FROM lives
		WHERE id = $1
	`
	return scanLive(s.pool.QueryRow(ctx, query, id))
}

// Current returns the most recently started live that has not ended.
func (s *LiveStore) Current(ctx context.Context) (*models.Live, error) {
	query := `
		SELECT id, title, video_id, offering_active, started_at, ended_at
		FROM lives
		WHERE ended_at IS NULL
		ORDER BY started_at DESC
		LIMIT 1
	`
	return scanLive(s.pool.QueryRow(ctx, query))
}

// SetOfferingActive updates the offering flag for a live.
func (s *LiveStore) SetOfferingActive(ctx context.Context, id int64, active bool) error {
	result, err := s.pool.Exec(ctx, `UPDATE lives SET offering_active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return mapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return store.ErrLiveNotFound
	}
	return nil
}
