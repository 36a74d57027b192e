package streamkeys

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gallos-live/backend/pkg/response"
)

// Handler handles the publish validation webhook and admin key management.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a stream key handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

// GenerateKeyRequest is the body for POST /api/admin/stream-key/generate.
type GenerateKeyRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// Validate handles POST /api/streams/validate, called by the RTMP server
// before permitting a publish (nginx-rtmp on_publish sends the stream key as
// form field "name"). Every denial is the same generic 403 so an
// unauthenticated caller cannot distinguish a wrong key from a deactivated
// account.
func (h *Handler) Validate(c *gin.Context) {
	key := c.PostForm("name")

	pub, err := h.service.Authorize(c.Request.Context(), key)
	if err != nil {
		switch {
		case errors.Is(err, ErrKeyNotFound), errors.Is(err, ErrNotPublisher), errors.Is(err, ErrPublisherInactive):
			response.Forbidden(c, "stream key rejected")
		default:
			h.logger.Error("validate stream key failed", zap.Error(err))
			response.Internal(c, "error validating stream key")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"user_id": pub.ID,
		"email":   pub.Email,
	})
}

// Generate handles POST /api/admin/stream-key/generate. Issues a new key for
// the named account, invalidating the previous one.
func (h *Handler) Generate(c *gin.Context) {
	var req GenerateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	grant, err := h.service.Generate(c.Request.Context(), req.Email)
	if err != nil {
		switch {
		case errors.Is(err, ErrUserNotFound):
			response.NotFound(c, "user "+req.Email+" not found")
		case errors.Is(err, ErrNotPublisher):
			response.Forbidden(c, "user "+req.Email+" cannot hold a stream key")
		default:
			h.logger.Error("generate stream key failed", zap.String("email", req.Email), zap.Error(err))
			response.Internal(c, "error generating stream key")
		}
		return
	}

	response.OK(c, grant)
}

// Get handles GET /api/admin/stream-key?email=... . Returns the current key
// and publish configuration for the named account.
func (h *Handler) Get(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		response.BadRequest(c, "email query parameter required")
		return
	}

	grant, err := h.service.Lookup(c.Request.Context(), email)
	if err != nil {
		switch {
		case errors.Is(err, ErrUserNotFound):
			response.NotFound(c, "user "+email+" not found")
		case errors.Is(err, ErrNotPublisher):
			response.Forbidden(c, "user "+email+" cannot hold a stream key")
		case errors.Is(err, ErrNoStreamKey):
			response.NotFound(c, "user "+email+" has no stream key; generate one first")
		default:
			h.logger.Error("get stream key failed", zap.String("email", email), zap.Error(err))
			response.Internal(c, "error fetching stream key")
		}
		return
	}

	response.OK(c, grant)
}
