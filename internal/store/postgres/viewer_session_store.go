package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/tiagosilva/ecclesia/internal/models"
	"github.com/tiagosilva/ecclesia/internal/store"
)

// ViewerSessionStore implements store.ViewerSessionStore using PostgreSQL.
type ViewerSessionStore struct {
	pool *pgxpool.Pool
}

// NewViewerSessionStore creates a new PostgreSQL-backed viewer session
// store.
func NewViewerSessionStore(pool *pgxpool.Pool) *ViewerSessionStore {
	return &ViewerSessionStore{pool: pool}
}

// Create records a new open viewer session.
func (s *ViewerSessionStore) Create(ctx context.Context, session *models.ViewerSession) error {
	query := `
		INSERT INTO viewer_sessions (session_id, live_id)
		VALUES ($1, $2)
		RETURNING started_at
	`

	err := s.pool.QueryRow(ctx, query, session.SessionID, session.LiveID).Scan(&session.StartedAt)
	if err != nil {
		return mapPostgresError(err)
	}

	log.Debug().
		Str("session_id", session.SessionID.String()).
		Int64("live_id", session.LiveID).
		Msg("Created viewer session")

	return nil
}

// Close sets ended_at on an open session. Closing a closed session is a
// no-op; closing an unknown session returns ErrViewerSessionNotFound.
func (s *ViewerSessionStore) Close(ctx context.Context, sessionID uuid.UUID) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE viewer_sessions
		SET ended_at = now()
		WHERE session_id = $1 AND ended_at IS NULL
	`, sessionID)
	if err != nil {
		return mapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		// Distinguish "already closed" (no-op) from "never existed"
		var exists bool
		if err := s.pool.QueryRow(ctx, `
			SELECT EXISTS(SELECT 1 FROM viewer_sessions WHERE session_id = $1)
		`, sessionID).Scan(&exists); err != nil {
			return mapPostgresError(err)
		}
		if !exists {
			return store.ErrViewerSessionNotFound
		}
	}

	return nil
}

// CountOpen returns the number of open sessions for a live.
func (s *ViewerSessionStore) CountOpen(ctx context.Context, liveID int64) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM viewer_sessions
		WHERE live_id = $1 AND ended_at IS NULL
	`, liveID).Scan(&count)
	if err != nil {
		return 0, mapPostgresError(err)
	}
	return count, nil
}
