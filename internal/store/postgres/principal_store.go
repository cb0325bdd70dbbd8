package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/tiagosilva/ecclesia/internal/models"
	"github.com/tiagosilva/ecclesia/internal/store"
)

// PrincipalStore implements store.PrincipalStore using PostgreSQL.
type PrincipalStore struct {
	pool *pgxpool.Pool
}

// NewPrincipalStore creates a new PostgreSQL-backed principal store.
func NewPrincipalStore(pool *pgxpool.Pool) *PrincipalStore {
	return &PrincipalStore{pool: pool}
}

const principalColumns = `id, username, name, email, role, avatar_url, password_hash, online, created_at`

func scanPrincipal(row pgx.Row) (*models.Principal, error) {
	var p models.Principal
	err := row.Scan(
		&p.ID,
		&p.Username,
		&p.Name,
		&p.Email,
		&p.Role,
		&p.AvatarURL,
		&p.PasswordHash,
		&p.Online,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrPrincipalNotFound
		}
		return nil, mapPostgresError(err)
	}
	return &p, nil
}

// Create inserts a new principal and fills in its assigned ID.
func (s *PrincipalStore) Create(ctx context.Context, principal *models.Principal) error {
	query := `
		INSERT INTO principals (username, name, email, role, avatar_url, password_hash, online)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	err := s.pool.QueryRow(ctx, query,
		principal.Username,
		principal.Name,
		principal.Email,
		principal.Role,
		principal.AvatarURL,
		principal.PasswordHash,
		principal.Online,
	).Scan(&principal.ID, &principal.CreatedAt)
	if err != nil {
		return mapPostgresError(err)
	}

	log.Debug().
		Int64("principal_id", principal.ID).
		Str("username", principal.Username).
		Msg("Created principal")

	return nil
}

// Get retrieves a principal by ID.
func (s *PrincipalStore) Get(ctx context.Context, id int64) (*models.Principal, error) {
	query := fmt.Sprintf(`SELECT %s FROM principals WHERE id = $1`, principalColumns)
	return scanPrincipal(s.pool.QueryRow(ctx, query, id))
}

// GetByUsername retrieves a principal by username.
func (s *PrincipalStore) GetByUsername(ctx context.Context, username string) (*models.Principal, error) {
	query := fmt.Sprintf(`SELECT %s FROM principals WHERE username = $1`, principalColumns)
	return scanPrincipal(s.pool.QueryRow(ctx, query, username))
}

// SetOnline updates the durable online flag for a principal.
func (s *PrincipalStore) SetOnline(ctx context.Context, id int64, online bool) error {
	result, err := s.pool.Exec(ctx, `UPDATE principals SET online = $2 WHERE id = $1`, id, online)
	if err != nil {
		return mapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return store.ErrPrincipalNotFound
	}
	return nil
}

// List returns all principals ordered by ID.
func (s *PrincipalStore) List(ctx context.Context) ([]*models.Principal, error) {
	query := fmt.Sprintf(`SELECT %s FROM principals ORDER BY id`, principalColumns)

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, mapPostgresError(err)
	}
	defer rows.Close()

	var result []*models.Principal
	for rows.Next() {
		p, err := scanPrincipal(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}
