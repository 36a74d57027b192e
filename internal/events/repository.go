package events

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gallos-live/backend/internal/models"
)

// Repository implements Store over PostgreSQL. The single-live invariant is
// backed by a partial unique index on status = 'live', so concurrent starts
// across service instances surface as ErrConflict instead of two live rows.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an event repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const eventColumns = `id, title, description, thumbnail_url, scheduled_at, ended_at, COALESCE(hls_url,''), status, created_by, created_at, updated_at`

func scanEvent(row pgx.Row) (*models.BroadcastEvent, error) {
	var ev models.BroadcastEvent
	err := row.Scan(&ev.ID, &ev.Title, &ev.Description, &ev.ThumbnailURL, &ev.ScheduledAt, &ev.EndedAt,
		&ev.HLSURL, &ev.Status, &ev.CreatedBy, &ev.CreatedAt, &ev.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &ev, nil
}

// Create inserts a new scheduled event.
func (r *Repository) Create(ctx context.Context, ev *models.BroadcastEvent) error {
	const q = `INSERT INTO broadcast_events (title, description, thumbnail_url, scheduled_at, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, ev.Title, ev.Description, ev.ThumbnailURL, ev.ScheduledAt, string(ev.Status), ev.CreatedBy).
		Scan(&ev.ID, &ev.CreatedAt, &ev.UpdatedAt)
}

// SetLive promotes the event to live and stores the HLS pointer. Any other
// live event is finalized first, inside the same transaction, so the partial
// unique index never sees two live rows.
func (r *Repository) SetLive(ctx context.Context, id uuid.UUID, hlsURL string) (*models.BroadcastEvent, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	const demote = `UPDATE broadcast_events
		SET status = 'finalized', ended_at = NOW(), updated_at = NOW()
		WHERE status = 'live' AND id <> $1`
	if _, err := tx.Exec(ctx, demote, id); err != nil {
		return nil, mapConflict(err)
	}

	const promote = `UPDATE broadcast_events
		SET status = 'live', hls_url = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + eventColumns
	ev, err := scanEvent(tx.QueryRow(ctx, promote, id, hlsURL))
	if err != nil {
		return nil, mapConflict(err)
	}
	if ev == nil {
		return nil, nil
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, mapConflict(err)
	}
	return ev, nil
}

// Finalize marks the event finalized and stamps the end time. Re-invoking on
// an already finalized event re-stamps the end time and succeeds.
func (r *Repository) Finalize(ctx context.Context, id uuid.UUID) (*models.BroadcastEvent, error) {
	const q = `UPDATE broadcast_events
		SET status = 'finalized', ended_at = NOW(), updated_at = NOW()
		WHERE id = $1
		RETURNING ` + eventColumns
	return scanEvent(r.pool.QueryRow(ctx, q, id))
}

// CurrentLive returns the live event joined with its owner's email, or
// (nil, nil) when nothing is live. Most recently scheduled wins if the
// invariant is ever violated.
func (r *Repository) CurrentLive(ctx context.Context) (*LiveRecord, error) {
	const q = `SELECT e.id, e.title, e.description, e.thumbnail_url, e.scheduled_at, e.ended_at,
			COALESCE(e.hls_url,''), e.status, e.created_by, e.created_at, e.updated_at, u.email
		FROM broadcast_events e
		JOIN users u ON e.created_by = u.id
		WHERE e.status = 'live'
		ORDER BY e.scheduled_at DESC
		LIMIT 1`
	var rec LiveRecord
	ev := &rec.Event
	err := r.pool.QueryRow(ctx, q).Scan(&ev.ID, &ev.Title, &ev.Description, &ev.ThumbnailURL, &ev.ScheduledAt, &ev.EndedAt,
		&ev.HLSURL, &ev.Status, &ev.CreatedBy, &ev.CreatedAt, &ev.UpdatedAt, &rec.AdminEmail)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// mapConflict translates unique violations and serialization failures from
// concurrent transitions into ErrConflict.
func mapConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505", "40001": // unique_violation, serialization_failure
			return ErrConflict
		}
	}
	return err
}
