package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	_ "github.com/noah-isme/lgu-admin-api/api/swagger"
	"github.com/noah-isme/lgu-admin-api/internal/repository"
	"github.com/noah-isme/lgu-admin-api/internal/service"
	"github.com/noah-isme/lgu-admin-api/pkg/cache"
	"github.com/noah-isme/lgu-admin-api/pkg/config"
	"github.com/noah-isme/lgu-admin-api/pkg/database"
	"github.com/noah-isme/lgu-admin-api/pkg/jobs"
	"github.com/noah-isme/lgu-admin-api/pkg/logger"
	"github.com/noah-isme/lgu-admin-api/pkg/mediastore"
	"github.com/noah-isme/lgu-admin-api/pkg/signature"
)

// @title LGU Admin API
// @version 1.0.0
// @description Media management and provider sync for the LGU admin console
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const (
	auditExportMaxRows = 10000
	eventKeepAlive     = 15 * time.Second
	shutdownTimeout    = 15 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if err := run(cfg, logr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	metrics := service.NewMetricsService()

	remote, err := mediastore.New(mediastore.Config{
		CloudName: cfg.Media.CloudName,
		APIKey:    cfg.Media.APIKey,
		APISecret: cfg.Media.APISecret,
		BaseURL:   cfg.Media.BaseURL,
		Timeout:   cfg.Media.RequestTimeout,
		RPS:       cfg.Media.RateLimitRPS,
		Burst:     cfg.Media.RateLimitBurst,
		Observe:   metrics.ObserveRemoteCall,
	})
	if err != nil {
		return fmt.Errorf("media store: %w", err)
	}

	assetRepo := repository.NewAssetRepository(db)
	syncLogRepo := repository.NewSyncLogRepository(db)
	syncOpRepo := repository.NewSyncOperationRepository(db)
	cleanupRepo := repository.NewCleanupQueueRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Sync.StatsCacheTTL, logr, redisClient != nil)
	broadcaster := service.NewSyncBroadcaster(redisClient, cfg.Broadcast.Channel, logr)
	go broadcaster.Run(ctx)

	engine := service.NewSyncEngine(remote, assetRepo, syncLogRepo, syncOpRepo, broadcaster, cacheSvc, metrics, service.SyncEngineConfig{
		BatchSize:       cfg.Sync.BatchSize,
		OrphanBatchSize: cfg.Sync.OrphanBatchSize,
		MaxRetries:      cfg.Sync.MaxRetries,
	}, logr)

	syncQueue := jobs.NewQueue("media-sync", engine.HandleJob, jobs.QueueConfig{
		Workers:    cfg.Sync.Workers,
		MaxRetries: 1,
		Logger:     logr,
	})
	engine.SetQueue(syncQueue)
	syncQueue.Start(ctx)
	defer syncQueue.Stop()

	cleanupSvc := service.NewCleanupService(cleanupRepo, remote, assetRepo, syncLogRepo, engine, broadcaster, metrics, cfg.Cleanup.BatchSize, logr)
	cleanupQueueSvc := service.NewCleanupQueueService(cleanupRepo, cfg.Cleanup.MaxAttempts, logr)

	validate, _ := binding.Validator.Engine().(*validator.Validate)
	scheduler := service.NewCleanupScheduler(cleanupSvc, service.SchedulerConfig{
		Interval:  cfg.Cleanup.Interval,
		BatchSize: cfg.Cleanup.BatchSize,
	}, cfg.Cleanup.RestartDelay, validate, metrics, logr)
	if cfg.Cleanup.Enabled {
		if err := scheduler.Start(ctx); err != nil {
			return fmt.Errorf("start cleanup scheduler: %w", err)
		}
	}
	defer scheduler.Stop()

	deps := routeDeps{
		cfg:          cfg,
		logger:       logr,
		metrics:      metrics,
		auth:         service.NewAuthService(logr, service.AuthConfig{JWTSecret: cfg.Auth.JWTSecret, Issuer: cfg.Auth.Issuer}),
		engine:       engine,
		assets:       service.NewAssetService(assetRepo, remote, engine, cacheSvc, cfg.Sync.StatsCacheTTL, cfg.Cleanup.MaxAttempts, logr),
		audit:        service.NewSyncAuditService(syncLogRepo, syncOpRepo, broadcaster, auditExportMaxRows, logr),
		broadcaster:  broadcaster,
		cleanup:      cleanupSvc,
		cleanupQueue: cleanupQueueSvc,
		scheduler:    scheduler,
		verifier:     signature.NewWebhookVerifier(cfg.Webhook.Secret, cfg.Webhook.MaxAge),
		checks: map[string]readinessCheck{
			"database": db.PingContext,
		},
	}
	if redisClient != nil {
		deps.checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	if !deps.verifier.Enabled() {
		logr.Warn("webhook secret not configured, provider notifications are disabled")
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           newRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
