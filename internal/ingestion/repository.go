package ingestion

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gallos-live/backend/internal/models"
)

// Repository persists archived recording artifacts.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a recordings repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts an archived recording row.
func (r *Repository) Create(ctx context.Context, rec *models.Recording) error {
	const q = `INSERT INTO recordings (storage_key, public_url, source_path, file_size, content_type, publisher_email)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6,''))
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, rec.StorageKey, rec.PublicURL, rec.SourcePath, rec.FileSize, rec.ContentType, rec.PublisherEmail).
		Scan(&rec.ID, &rec.CreatedAt)
}

// GetByStorageKey returns the recording archived under the given key, or
// (nil, nil) when the key has not been archived yet.
func (r *Repository) GetByStorageKey(ctx context.Context, storageKey string) (*models.Recording, error) {
	const q = `SELECT id, storage_key, public_url, source_path, file_size, content_type, COALESCE(publisher_email,''), created_at
		FROM recordings WHERE storage_key = $1`
	var rec models.Recording
	err := r.pool.QueryRow(ctx, q, storageKey).
		Scan(&rec.ID, &rec.StorageKey, &rec.PublicURL, &rec.SourcePath, &rec.FileSize, &rec.ContentType, &rec.PublisherEmail, &rec.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}
