package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/gallos-live/backend/internal/models"
)

// memoryStore is an in-memory Store honoring the SetLive contract: demote any
// other live event before promoting the target, atomically.
type memoryStore struct {
	mu     sync.Mutex
	events map[uuid.UUID]*models.BroadcastEvent
	emails map[uuid.UUID]string // created_by -> admin email
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		events: make(map[uuid.UUID]*models.BroadcastEvent),
		emails: make(map[uuid.UUID]string),
	}
}

func (s *memoryStore) add(ev *models.BroadcastEvent, adminEmail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	s.events[ev.ID] = ev
	s.emails[ev.CreatedBy] = adminEmail
}

func (s *memoryStore) Create(_ context.Context, ev *models.BroadcastEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev.ID = uuid.New()
	ev.CreatedAt = time.Now()
	ev.UpdatedAt = ev.CreatedAt
	s.events[ev.ID] = ev
	return nil
}

func (s *memoryStore) SetLive(_ context.Context, id uuid.UUID, hlsURL string) (*models.BroadcastEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	target, ok := s.events[id]
	if !ok {
		return nil, nil
	}
	now := time.Now()
	for _, ev := range s.events {
		if ev.ID != id && ev.Status == models.EventStatusLive {
			ev.Status = models.EventStatusFinalized
			ev.EndedAt = &now
		}
	}
	target.Status = models.EventStatusLive
	target.HLSURL = hlsURL
	copied := *target
	return &copied, nil
}

func (s *memoryStore) Finalize(_ context.Context, id uuid.UUID) (*models.BroadcastEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[id]
	if !ok {
		return nil, nil
	}
	now := time.Now()
	ev.Status = models.EventStatusFinalized
	ev.EndedAt = &now
	copied := *ev
	return &copied, nil
}

func (s *memoryStore) CurrentLive(_ context.Context) (*LiveRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *models.BroadcastEvent
	for _, ev := range s.events {
		if ev.Status != models.EventStatusLive {
			continue
		}
		if best == nil || ev.ScheduledAt.After(best.ScheduledAt) {
			best = ev
		}
	}
	if best == nil {
		return nil, nil
	}
	return &LiveRecord{Event: *best, AdminEmail: s.emails[best.CreatedBy]}, nil
}

func (s *memoryStore) liveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, ev := range s.events {
		if ev.Status == models.EventStatusLive {
			n++
		}
	}
	return n
}

func scheduledEvent(title string, at time.Time) *models.BroadcastEvent {
	return &models.BroadcastEvent{
		ID:          uuid.New(),
		Title:       title,
		ScheduledAt: at,
		Status:      models.EventStatusScheduled,
		CreatedBy:   uuid.New(),
	}
}

func TestStartSetsLiveAndHLSPointer(t *testing.T) {
	store := newMemoryStore()
	ev := scheduledEvent("pelea estelar", time.Now())
	store.add(ev, "admin@x.pe")
	service := NewService(store, "http://cdn.example.com/hls", nil)

	result, err := service.Start(context.Background(), ev.ID)
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if result.HLSURL != "http://cdn.example.com/hls/stream.m3u8" {
		t.Fatalf("unexpected hls url %s", result.HLSURL)
	}
	if result.ID != ev.ID || result.Title != "pelea estelar" {
		t.Fatalf("unexpected result %+v", result)
	}
	if ev.Status != models.EventStatusLive {
		t.Fatalf("expected live, got %s", ev.Status)
	}
}

func TestStartUnknownEvent(t *testing.T) {
	service := NewService(newMemoryStore(), "http://cdn.example.com/hls", nil)
	if _, err := service.Start(context.Background(), uuid.New()); !errors.Is(err, ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound, got %v", err)
	}
}

func TestSingleLiveInvariant(t *testing.T) {
	store := newMemoryStore()
	first := scheduledEvent("first", time.Now().Add(-time.Hour))
	second := scheduledEvent("second", time.Now())
	store.add(first, "admin@x.pe")
	store.add(second, "admin@x.pe")
	service := NewService(store, "http://cdn.example.com/hls", nil)
	ctx := context.Background()

	if _, err := service.Start(ctx, first.ID); err != nil {
		t.Fatalf("start first: %v", err)
	}
	if _, err := service.Start(ctx, second.ID); err != nil {
		t.Fatalf("start second: %v", err)
	}

	if n := store.liveCount(); n != 1 {
		t.Fatalf("expected exactly one live event, got %d", n)
	}
	if first.Status != models.EventStatusFinalized {
		t.Fatalf("expected first event demoted to finalized, got %s", first.Status)
	}
	if first.EndedAt == nil {
		t.Fatal("expected demoted event to carry an end time")
	}
	if second.Status != models.EventStatusLive {
		t.Fatalf("expected second event live, got %s", second.Status)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	store := newMemoryStore()
	ev := scheduledEvent("show", time.Now())
	store.add(ev, "admin@x.pe")
	service := NewService(store, "http://cdn.example.com/hls", nil)
	ctx := context.Background()

	if _, err := service.Start(ctx, ev.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := service.Stop(ctx, ev.ID); err != nil {
		t.Fatalf("first stop: %v", err)
	}
	firstEnd := *ev.EndedAt

	result, err := service.Stop(ctx, ev.ID)
	if err != nil {
		t.Fatalf("second stop should succeed, got %v", err)
	}
	if result.ID != ev.ID {
		t.Fatalf("unexpected result %+v", result)
	}
	if ev.Status != models.EventStatusFinalized {
		t.Fatalf("expected finalized, got %s", ev.Status)
	}
	if ev.EndedAt == nil || ev.EndedAt.Before(firstEnd) {
		t.Fatal("expected end time to remain set")
	}
}

func TestStopWithoutStartIsAllowed(t *testing.T) {
	store := newMemoryStore()
	ev := scheduledEvent("never aired", time.Now())
	store.add(ev, "admin@x.pe")
	service := NewService(store, "http://cdn.example.com/hls", nil)

	if _, err := service.Stop(context.Background(), ev.ID); err != nil {
		t.Fatalf("stop on scheduled event should succeed, got %v", err)
	}
	if ev.Status != models.EventStatusFinalized {
		t.Fatalf("expected finalized, got %s", ev.Status)
	}
}

func TestCurrentLiveEmptyStore(t *testing.T) {
	service := NewService(newMemoryStore(), "http://cdn.example.com/hls", nil)
	live, err := service.CurrentLive(context.Background())
	if err != nil {
		t.Fatalf("CurrentLive returned error: %v", err)
	}
	if live != nil {
		t.Fatalf("expected not live, got %+v", live)
	}
}

// Two live rows should never exist, but if the store is ever in that state the
// most recently scheduled event wins the live query.
func TestCurrentLiveTieBreaksOnScheduledAt(t *testing.T) {
	store := newMemoryStore()
	older := scheduledEvent("older", time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC))
	newer := scheduledEvent("newer", time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC))
	older.Status = models.EventStatusLive
	newer.Status = models.EventStatusLive
	store.add(older, "admin@x.pe")
	store.add(newer, "admin@x.pe")
	service := NewService(store, "http://cdn.example.com/hls", nil)

	live, err := service.CurrentLive(context.Background())
	if err != nil {
		t.Fatalf("CurrentLive returned error: %v", err)
	}
	if live == nil {
		t.Fatal("expected a live event")
	}
	if live.ID != newer.ID || live.Title != "newer" {
		t.Fatalf("expected most recently scheduled event, got %+v", live)
	}
}

// Start has no source-state guard: restarting a finalized event brings it back
// to live, matching the permissive lifecycle.
func TestStartAllowedFromFinalized(t *testing.T) {
	store := newMemoryStore()
	ev := scheduledEvent("encore", time.Now())
	store.add(ev, "admin@x.pe")
	service := NewService(store, "http://cdn.example.com/hls", nil)
	ctx := context.Background()

	if _, err := service.Start(ctx, ev.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := service.Stop(ctx, ev.ID); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if _, err := service.Start(ctx, ev.ID); err != nil {
		t.Fatalf("restart after finalize should succeed, got %v", err)
	}
	if ev.Status != models.EventStatusLive {
		t.Fatalf("expected live after restart, got %s", ev.Status)
	}
}

func TestCurrentLiveReturnsLiveEvent(t *testing.T) {
	store := newMemoryStore()
	scheduled := time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)
	ev := scheduledEvent("gran final", scheduled)
	ev.Description = "la gran final"
	ev.ThumbnailURL = "https://cdn.example.com/thumbs/final.jpg"
	store.add(ev, "admin@x.pe")
	service := NewService(store, "http://cdn.example.com/hls", nil)
	ctx := context.Background()

	if _, err := service.Start(ctx, ev.ID); err != nil {
		t.Fatalf("start: %v", err)
	}

	live, err := service.CurrentLive(ctx)
	if err != nil {
		t.Fatalf("CurrentLive returned error: %v", err)
	}
	if live == nil {
		t.Fatal("expected a live event")
	}
	if live.ID != ev.ID || live.Title != "gran final" || live.Description != "la gran final" {
		t.Fatalf("unexpected live view %+v", live)
	}
	if live.AdminEmail != "admin@x.pe" {
		t.Fatalf("expected owner email, got %s", live.AdminEmail)
	}
	if live.HLSURL != "http://cdn.example.com/hls/stream.m3u8" {
		t.Fatalf("unexpected hls url %s", live.HLSURL)
	}
	if live.ScheduledAt != scheduled.Format(time.RFC3339) {
		t.Fatalf("expected ISO-8601 scheduled time, got %s", live.ScheduledAt)
	}
}
