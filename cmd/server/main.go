// Package main runs the streaming control plane HTTP server: publish
// authorization, broadcast lifecycle, and recording archival.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gallos-live/backend/config"
	"github.com/gallos-live/backend/internal/auth"
	"github.com/gallos-live/backend/internal/events"
	"github.com/gallos-live/backend/internal/ingestion"
	"github.com/gallos-live/backend/internal/middleware"
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

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Stream key authorization + admin key management
	keyRepo := streamkeys.NewRepository(pool)
	keyService := streamkeys.NewService(keyRepo, cfg.Ingest.RTMPPublishURL, logger)
	keyHandler := streamkeys.NewHandler(keyService, logger)

	// Broadcast event lifecycle
	eventRepo := events.NewRepository(pool)
	eventService := events.NewService(eventRepo, cfg.Ingest.HLSBaseURL, logger)
	eventHandler := events.NewHandler(eventService, logger)

	// Recording archival (optional: requires object storage)
	var archiveStore *storage.Client
	if cfg.Storage.Enabled() {
		archiveStore, err = storage.New(ctx, storage.Config{
			Endpoint:        cfg.Storage.Endpoint,
			Region:          cfg.Storage.Region,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
			Bucket:          cfg.Storage.Bucket,
			PublicBaseURL:   cfg.Storage.PublicBaseURL,
		}, logger)
		if err != nil {
			logger.Warn("object storage disabled", zap.Error(err))
			archiveStore = nil
		}
	} else {
		logger.Warn("object storage not configured; recording archival disabled")
	}

	var jobQueue *queue.Queue
	var pipeline *ingestion.Pipeline
	recRepo := ingestion.NewRepository(pool)
	if archiveStore != nil {
		fetchTimeout := time.Duration(cfg.Ingest.FetchTimeoutMinutes) * time.Minute
		pipeline = ingestion.NewPipeline(keyRepo, archiveStore, cfg.Ingest.RecordingsBaseURL, fetchTimeout, logger)

		rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Warn("redis unavailable; recordings archive synchronously in the webhook", zap.Error(err))
		} else {
			defer rdb.Close()
			jobQueue = queue.NewQueue(rdb.Client, logger)
		}
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Gallos Streaming Server API",
			"version": "1.0.0",
			"endpoints": gin.H{
				"validate_stream": "POST /api/streams/validate",
				"get_live_stream": "GET /api/streams/live",
				"start_stream":    "POST /api/events/:id/start",
				"stop_stream":     "POST /api/events/:id/stop",
			},
		})
	})
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":       "healthy",
			"environment":  cfg.Server.Environment,
			"hls_base_url": cfg.Ingest.HLSBaseURL,
		})
	})

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Webhooks from the RTMP server and public live query (no JWT)
	router.POST("/api/streams/validate", keyHandler.Validate)
	router.GET("/api/streams/live", eventHandler.Live)

	// Admin API (JWT required)
	api := router.Group("/api")
	api.Use(middleware.JWT(jwtService), middleware.RequireRole("admin"))
	{
		api.POST("/events", eventHandler.Create)
		api.POST("/events/:id/start", eventHandler.Start)
		api.POST("/events/:id/stop", eventHandler.Stop)
		api.POST("/admin/stream-key/generate", keyHandler.Generate)
		api.GET("/admin/stream-key", keyHandler.Get)
	}

	if archiveStore != nil {
		var jobs ingestion.Enqueuer
		if jobQueue != nil {
			jobs = jobQueue
		}
		webhook := ingestion.NewWebhookHandler(pipeline, recRepo, jobs, logger)
		router.POST("/webhooks/recording-finished", webhook.RecordingFinished)

		archiveAdmin := ingestion.NewAdminHandler(archiveStore, logger)
		api.GET("/admin/recordings", archiveAdmin.List)
		api.DELETE("/admin/recordings/*key", archiveAdmin.Delete)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// In-process archive worker
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if jobQueue != nil {
		processor := worker.NewArchiveProcessor(pipeline, recRepo, jobQueue, logger)
		go processor.Run(workerCtx)
		logger.Info("archive worker started")
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
