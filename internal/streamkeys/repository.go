package streamkeys

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gallos-live/backend/internal/models"
)

// Repository implements Store over PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a stream key repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, email, password_hash, role, is_active, COALESCE(stream_key,''), created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.Password, &u.Role, &u.Active, &u.StreamKey, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// GetByStreamKey returns the user holding the given stream key, or (nil, nil).
func (r *Repository) GetByStreamKey(ctx context.Context, key string) (*models.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE stream_key = $1`
	return scanUser(r.pool.QueryRow(ctx, q, key))
}

// GetByEmail returns the user with the given email, or (nil, nil).
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.pool.QueryRow(ctx, q, email))
}

// SetStreamKey replaces the user's stream key in a single update; the previous
// key stops matching lookups as soon as the statement commits.
func (r *Repository) SetStreamKey(ctx context.Context, userID uuid.UUID, key string) error {
	const q = `UPDATE users SET stream_key = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.pool.Exec(ctx, q, key, userID)
	return err
}
