// Package main runs the standalone archive worker: it drains the recording
// archive queue and uploads finished broadcasts to object storage.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gallos-live/backend/config"
	"github.com/gallos-live/backend/internal/ingestion"
	"github.com/gallos-live/backend/internal/streamkeys"
	"github.com/gallos-live/backend/internal/worker"
	"github.com/gallos-live/backend/pkg/database"
	"github.com/gallos-live/backend/pkg/queue"
	"github.com/gallos-live/backend/pkg/redis"
	"github.com/gallos-live/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	archiveStore, err := storage.New(ctx, storage.Config{
		Endpoint:        cfg.Storage.Endpoint,
		Region:          cfg.Storage.Region,
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretAccessKey,
		Bucket:          cfg.Storage.Bucket,
		PublicBaseURL:   cfg.Storage.PublicBaseURL,
	}, logger)
	if err != nil {
		logger.Fatal("object storage", zap.Error(err))
	}

	keyRepo := streamkeys.NewRepository(pool)
	recRepo := ingestion.NewRepository(pool)
	fetchTimeout := time.Duration(cfg.Ingest.FetchTimeoutMinutes) * time.Minute
	pipeline := ingestion.NewPipeline(keyRepo, archiveStore, cfg.Ingest.RecordingsBaseURL, fetchTimeout, logger)

	jobQueue := queue.NewQueue(rdb.Client, logger)
	processor := worker.NewArchiveProcessor(pipeline, recRepo, jobQueue, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Run(workerCtx)
	logger.Info("archive worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("archive worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
