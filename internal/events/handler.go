package events

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gallos-live/backend/internal/middleware"
	"github.com/gallos-live/backend/internal/models"
	"github.com/gallos-live/backend/pkg/response"
)

// Handler handles event lifecycle and live-status HTTP endpoints.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates an events handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

// CreateRequest is the body for POST /api/events.
type CreateRequest struct {
	Title        string    `json:"title" binding:"required"`
	Description  string    `json:"description"`
	ThumbnailURL string    `json:"thumbnail_url"`
	ScheduledAt  time.Time `json:"scheduled_at" binding:"required"`
}

// Create handles POST /api/events (admin). Schedules a new broadcast event.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	createdBy, err := adminID(c)
	if err != nil {
		response.Unauthorized(c, "missing user context")
		return
	}

	ev := &models.BroadcastEvent{
		Title:        req.Title,
		Description:  req.Description,
		ThumbnailURL: req.ThumbnailURL,
		ScheduledAt:  req.ScheduledAt,
		CreatedBy:    createdBy,
	}
	if err := h.service.Schedule(c.Request.Context(), ev); err != nil {
		h.logger.Error("schedule event failed", zap.Error(err))
		response.Internal(c, "error scheduling event")
		return
	}

	response.Created(c, ev)
}

// Start handles POST /api/events/:id/start. Called when the RTMP server
// confirms the stream began.
func (h *Handler) Start(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}

	result, err := h.service.Start(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, ErrEventNotFound):
			response.NotFound(c, "event not found")
		case errors.Is(err, ErrConflict):
			response.Conflict(c, "another lifecycle transition is in progress; retry")
		default:
			h.logger.Error("start event failed", zap.String("event_id", id.String()), zap.Error(err))
			response.Internal(c, "error starting stream")
		}
		return
	}

	response.OK(c, result)
}

// Stop handles POST /api/events/:id/stop. Called when the RTMP server detects
// the stream ended.
func (h *Handler) Stop(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}

	result, err := h.service.Stop(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, ErrEventNotFound):
			response.NotFound(c, "event not found")
		default:
			h.logger.Error("stop event failed", zap.String("event_id", id.String()), zap.Error(err))
			response.Internal(c, "error stopping stream")
		}
		return
	}

	response.OK(c, result)
}

// Live handles GET /api/streams/live. Returns the current live broadcast and
// its playback URL, or an explicit not-live signal with 200.
func (h *Handler) Live(c *gin.Context) {
	live, err := h.service.CurrentLive(c.Request.Context())
	if err != nil {
		h.logger.Error("live query failed", zap.Error(err))
		response.Internal(c, "error fetching live stream")
		return
	}

	if live == nil {
		c.JSON(http.StatusOK, gin.H{
			"is_live": false,
			"message": "no live broadcast right now",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"is_live": true,
		"event":   live,
	})
}

func adminID(c *gin.Context) (uuid.UUID, error) {
	v, ok := c.Get(middleware.ContextUserID)
	if !ok {
		return uuid.Nil, errors.New("no user in context")
	}
	id, ok := v.(uuid.UUID)
	if !ok {
		return uuid.Nil, errors.New("unexpected user id type")
	}
	return id, nil
}
