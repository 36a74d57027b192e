package ingestion

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gallos-live/backend/pkg/response"
	"github.com/gallos-live/backend/pkg/storage"
)

const listLimit = 100

// ArchiveBrowser is the object-store surface for administrative inspection of
// archived recordings.
type ArchiveBrowser interface {
	List(ctx context.Context, prefix string, max int32) ([]storage.ObjectSummary, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) bool
}

// AdminHandler exposes archived recordings to trusted operators.
type AdminHandler struct {
	archive ArchiveBrowser
	logger  *zap.Logger
}

// NewAdminHandler creates an archive admin handler.
func NewAdminHandler(archive ArchiveBrowser, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{archive: archive, logger: logger}
}

// List handles GET /api/admin/recordings. Lists archived recordings from
// object storage.
func (h *AdminHandler) List(c *gin.Context) {
	objects, err := h.archive.List(c.Request.Context(), keyNamespace+"/", listLimit)
	if err != nil {
		h.logger.Error("list recordings failed", zap.Error(err))
		response.BadGateway(c, "error listing recordings")
		return
	}
	response.OK(c, gin.H{"recordings": objects, "total": len(objects)})
}

// Delete handles DELETE /api/admin/recordings/*key. Deletion is best-effort
// cleanup: provider errors are reported as deleted=false, not propagated.
func (h *AdminHandler) Delete(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if key == "" {
		response.BadRequest(c, "recording key required")
		return
	}

	exists, err := h.archive.Exists(c.Request.Context(), key)
	if err != nil {
		h.logger.Error("check recording failed", zap.String("key", key), zap.Error(err))
		response.BadGateway(c, "error checking recording")
		return
	}
	if !exists {
		response.NotFound(c, "recording not found")
		return
	}

	deleted := h.archive.Delete(c.Request.Context(), key)
	response.OK(c, gin.H{"key": key, "deleted": deleted})
}
