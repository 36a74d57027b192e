package models

import (
	"time"

	"github.com/google/uuid"
)

// EventStatus represents the broadcast event lifecycle.
type EventStatus string

const (
	EventStatusScheduled EventStatus = "scheduled"
	EventStatusLive      EventStatus = "live"
	EventStatusFinalized EventStatus = "finalized"
)

// BroadcastEvent is one scheduled live session. At most one event is live at a
// time system-wide; HLSURL and EndedAt are set by the start/stop transitions.
type BroadcastEvent struct {
	ID           uuid.UUID   `json:"id"`
	Title        string      `json:"title"`
	Description  string      `json:"description"`
	ThumbnailURL string      `json:"thumbnail_url,omitempty"`
	ScheduledAt  time.Time   `json:"scheduled_at"`
	EndedAt      *time.Time  `json:"ended_at,omitempty"`
	HLSURL       string      `json:"hls_url,omitempty"`
	Status       EventStatus `json:"status"`
	CreatedBy    uuid.UUID   `json:"created_by"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}
