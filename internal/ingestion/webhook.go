package ingestion

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gallos-live/backend/internal/models"
	"github.com/gallos-live/backend/pkg/queue"
	"github.com/gallos-live/backend/pkg/response"
)

// RecordingStore persists archived recording rows.
type RecordingStore interface {
	Create(ctx context.Context, rec *models.Recording) error
	GetByStorageKey(ctx context.Context, storageKey string) (*models.Recording, error)
}

// Enqueuer hands archive jobs to the background worker.
type Enqueuer interface {
	EnqueueArchive(ctx context.Context, payload queue.ArchivePayload) error
}

// WebhookHandler handles the recording-finished notification from the media
// server (nginx-rtmp on_record_done sends the recording path as "path" and the
// stream key as "name").
type WebhookHandler struct {
	pipeline   *Pipeline
	recordings RecordingStore
	jobs       Enqueuer
	logger     *zap.Logger
}

// NewWebhookHandler creates a recording webhook handler. jobs may be nil, in
// which case the recording is archived synchronously in the request.
func NewWebhookHandler(pipeline *Pipeline, recordings RecordingStore, jobs Enqueuer, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{pipeline: pipeline, recordings: recordings, jobs: jobs, logger: logger}
}

// RecordingFinished handles POST /webhooks/recording-finished. The archival
// key is derived here, once per notification, so worker retries of the same
// job re-upload under the same key instead of duplicating the artifact.
func (h *WebhookHandler) RecordingFinished(c *gin.Context) {
	sourcePath := c.PostForm("path")
	publisherKey := c.PostForm("name")
	if sourcePath == "" {
		response.BadRequest(c, "path form field required")
		return
	}

	storageKey := DeriveStorageKey(publisherKey, time.Now())

	if h.jobs != nil {
		err := h.jobs.EnqueueArchive(c.Request.Context(), queue.ArchivePayload{
			SourcePath: sourcePath,
			StreamKey:  publisherKey,
			StorageKey: storageKey,
		})
		if err != nil {
			h.logger.Error("enqueue archive job failed", zap.String("storage_key", storageKey), zap.Error(err))
			response.Internal(c, "failed to enqueue archive job")
			return
		}
		h.logger.Info("archive job enqueued", zap.String("storage_key", storageKey), zap.String("source_path", sourcePath))
		response.Accepted(c, gin.H{"storage_key": storageKey, "status": "queued"})
		return
	}

	result, err := h.pipeline.Ingest(c.Request.Context(), ArchiveRequest{
		SourcePath:   sourcePath,
		PublisherKey: publisherKey,
		StorageKey:   storageKey,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrSourceNotFound):
			response.NotFound(c, "recording file not found on media server")
		case errors.Is(err, ErrSourceUnavailable):
			response.BadGateway(c, "media server unavailable")
		default:
			h.logger.Error("archive failed", zap.String("storage_key", storageKey), zap.Error(err))
			response.BadGateway(c, "failed to archive recording")
		}
		return
	}

	rec := &models.Recording{
		StorageKey:     result.StorageKey,
		PublicURL:      result.PublicURL,
		SourcePath:     sourcePath,
		FileSize:       result.FileSize,
		ContentType:    "video/mp4",
		PublisherEmail: result.PublisherEmail,
	}
	if err := h.recordings.Create(c.Request.Context(), rec); err != nil {
		h.logger.Error("persist recording failed", zap.String("storage_key", result.StorageKey), zap.Error(err))
		response.Internal(c, "recording archived but not recorded")
		return
	}

	response.OK(c, result)
}
