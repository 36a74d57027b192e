// Package worker runs background archive jobs enqueued by the
// recording-finished webhook.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gallos-live/backend/internal/ingestion"
	"github.com/gallos-live/backend/internal/models"
	"github.com/gallos-live/backend/pkg/queue"
)

// Ingestor archives one recording.
type Ingestor interface {
	Ingest(ctx context.Context, req ingestion.ArchiveRequest) (*ingestion.ArchiveResult, error)
}

// ArchiveProcessor processes archive jobs: fetch the recording from the media
// server, upload to object storage, persist the result.
type ArchiveProcessor struct {
	pipeline   Ingestor
	recordings ingestion.RecordingStore
	queue      *queue.Queue
	logger     *zap.Logger
}

// NewArchiveProcessor creates an archive job processor.
func NewArchiveProcessor(pipeline Ingestor, recordings ingestion.RecordingStore, q *queue.Queue, logger *zap.Logger) *ArchiveProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArchiveProcessor{pipeline: pipeline, recordings: recordings, queue: q, logger: logger}
}

// Process executes one archive job. Jobs carry the archival key derived when
// the notification arrived, so a retried job re-uploads under the same key and
// a job whose key is already archived is a no-op.
func (p *ArchiveProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeArchive {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.ArchivePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	existing, err := p.recordings.GetByStorageKey(ctx, payload.StorageKey)
	if err != nil {
		return fmt.Errorf("check existing recording: %w", err)
	}
	if existing != nil {
		p.logger.Info("recording already archived", zap.String("storage_key", payload.StorageKey))
		return nil
	}

	result, err := p.pipeline.Ingest(ctx, ingestion.ArchiveRequest{
		SourcePath:   payload.SourcePath,
		PublisherKey: payload.StreamKey,
		StorageKey:   payload.StorageKey,
	})
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	rec := &models.Recording{
		StorageKey:     result.StorageKey,
		PublicURL:      result.PublicURL,
		SourcePath:     payload.SourcePath,
		FileSize:       result.FileSize,
		ContentType:    "video/mp4",
		PublisherEmail: result.PublisherEmail,
	}
	if err := p.recordings.Create(ctx, rec); err != nil {
		return fmt.Errorf("persist recording: %w", err)
	}

	p.logger.Info("archive job completed",
		zap.String("job_id", job.ID),
		zap.String("storage_key", result.StorageKey),
		zap.Int64("file_size", result.FileSize),
	)
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *ArchiveProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("archive worker stopping")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
