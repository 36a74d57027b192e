// Package events owns the broadcast event lifecycle: scheduled -> live ->
// finalized, with at most one live event system-wide.
package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gallos-live/backend/internal/models"
)

var (
	ErrEventNotFound = errors.New("event not found")
	// ErrConflict signals a serialization failure between concurrent lifecycle
	// transitions; the caller should retry.
	ErrConflict = errors.New("concurrent lifecycle transition")
)

// hlsManifest is the single global playback manifest: one endpoint serves
// whichever event is currently live.
const hlsManifest = "/stream.m3u8"

// LiveRecord is a live event joined with its owning admin's email.
type LiveRecord struct {
	Event      models.BroadcastEvent
	AdminEmail string
}

// Store is the event store surface. SetLive must atomically demote any other
// live event to finalized before promoting the target, relying on the store's
// transactional guarantees rather than in-process locks. Lookups return
// (nil, nil) when no row matches.
type Store interface {
	Create(ctx context.Context, ev *models.BroadcastEvent) error
	SetLive(ctx context.Context, id uuid.UUID, hlsURL string) (*models.BroadcastEvent, error)
	Finalize(ctx context.Context, id uuid.UUID) (*models.BroadcastEvent, error)
	CurrentLive(ctx context.Context) (*LiveRecord, error)
}

// StartResult is returned by Start.
type StartResult struct {
	ID     uuid.UUID `json:"event_id"`
	Title  string    `json:"title"`
	HLSURL string    `json:"hls_url"`
}

// StopResult is returned by Stop.
type StopResult struct {
	ID    uuid.UUID `json:"event_id"`
	Title string    `json:"title"`
}

// LiveEvent is the viewer-facing description of the current broadcast.
type LiveEvent struct {
	ID           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	HLSURL       string    `json:"hls_url"`
	ScheduledAt  string    `json:"scheduled_at"`
	AdminEmail   string    `json:"admin"`
}

// Service drives broadcast event state transitions.
type Service struct {
	store      Store
	hlsBaseURL string
	logger     *zap.Logger
}

// NewService creates an event service. hlsBaseURL is the playback location the
// HLS pointer is derived from.
func NewService(store Store, hlsBaseURL string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, hlsBaseURL: hlsBaseURL, logger: logger}
}

// HLSURL returns the global playback manifest URL.
func (s *Service) HLSURL() string {
	return s.hlsBaseURL + hlsManifest
}

// Start transitions the event to live and stores the computed HLS pointer.
// Any other event still live is forced to finalized in the same transaction.
func (s *Service) Start(ctx context.Context, id uuid.UUID) (*StartResult, error) {
	hlsURL := s.HLSURL()
	ev, err := s.store.SetLive(ctx, id, hlsURL)
	if err != nil {
		return nil, fmt.Errorf("set live: %w", err)
	}
	if ev == nil {
		return nil, ErrEventNotFound
	}
	s.logger.Info("broadcast started", zap.String("event_id", ev.ID.String()), zap.String("title", ev.Title))
	return &StartResult{ID: ev.ID, Title: ev.Title, HLSURL: hlsURL}, nil
}

// Stop transitions the event to finalized and stamps its end time. Stopping an
// already finalized event succeeds and re-stamps the end time.
func (s *Service) Stop(ctx context.Context, id uuid.UUID) (*StopResult, error) {
	ev, err := s.store.Finalize(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("finalize: %w", err)
	}
	if ev == nil {
		return nil, ErrEventNotFound
	}
	s.logger.Info("broadcast stopped", zap.String("event_id", ev.ID.String()), zap.String("title", ev.Title))
	return &StopResult{ID: ev.ID, Title: ev.Title}, nil
}

// CurrentLive returns the currently live broadcast, or nil when nothing is
// live. This is the steady-state read and performs no writes.
func (s *Service) CurrentLive(ctx context.Context) (*LiveEvent, error) {
	rec, err := s.store.CurrentLive(ctx)
	if err != nil {
		return nil, fmt.Errorf("current live: %w", err)
	}
	if rec == nil {
		return nil, nil
	}
	return &LiveEvent{
		ID:           rec.Event.ID,
		Title:        rec.Event.Title,
		Description:  rec.Event.Description,
		ThumbnailURL: rec.Event.ThumbnailURL,
		HLSURL:       s.HLSURL(),
		ScheduledAt:  rec.Event.ScheduledAt.Format(time.RFC3339),
		AdminEmail:   rec.AdminEmail,
	}, nil
}

// Schedule records a new broadcast event in the scheduled state.
func (s *Service) Schedule(ctx context.Context, ev *models.BroadcastEvent) error {
	ev.Status = models.EventStatusScheduled
	if err := s.store.Create(ctx, ev); err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	s.logger.Info("broadcast scheduled", zap.String("event_id", ev.ID.String()), zap.String("title", ev.Title))
	return nil
}
