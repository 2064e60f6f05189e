package main

import (
	"context"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/lgu-admin-api/internal/handler"
	"github.com/noah-isme/lgu-admin-api/internal/middleware"
	"github.com/noah-isme/lgu-admin-api/internal/models"
	"github.com/noah-isme/lgu-admin-api/internal/service"
	"github.com/noah-isme/lgu-admin-api/pkg/config"
	"github.com/noah-isme/lgu-admin-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/lgu-admin-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/lgu-admin-api/pkg/middleware/requestid"
	"github.com/noah-isme/lgu-admin-api/pkg/signature"
)

type readinessCheck = func(ctx context.Context) error

type routeDeps struct {
	cfg          *config.Config
	logger       *zap.Logger
	metrics      *service.MetricsService
	auth         *service.AuthService
	engine       *service.SyncEngine
	assets       *service.AssetService
	audit        *service.SyncAuditService
	broadcaster  *service.SyncBroadcaster
	cleanup      *service.CleanupService
	cleanupQueue *service.CleanupQueueService
	scheduler    *service.CleanupScheduler
	verifier     *signature.WebhookVerifier
	checks       map[string]readinessCheck
}

func newRouter(d routeDeps) *gin.Engine {
	r := gin.New()
	// Public ids contain slashes; clients send them percent-encoded.
	r.UseRawPath = true
	r.UnescapePathValues = true

	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(d.logger, "/health", "/ready", "/metrics"))
	r.Use(corsmiddleware.New(d.cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(d.metrics))
	r.Use(middleware.WithResponseMeta())

	checks := make(map[string]handler.ReadinessCheck, len(d.checks))
	for name, check := range d.checks {
		checks[name] = check
	}
	metricsHandler := handler.NewMetricsHandler(d.metrics, checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if d.cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	webhookHandler := handler.NewWebhookHandler(d.engine, d.verifier, d.logger)
	syncHandler := handler.NewSyncHandler(d.engine, d.audit, d.broadcaster, eventKeepAlive, d.logger)
	cleanupHandler := handler.NewCleanupHandler(d.cleanup, d.cleanupQueue, d.scheduler)
	assetHandler := handler.NewAssetHandler(d.assets, 0)

	api := r.Group(d.cfg.APIPrefix)
	// Provider callbacks authenticate with a body signature instead of a token.
	api.POST("/webhook", webhookHandler.Receive)

	authed := api.Group("")
	authed.Use(middleware.JWT(d.auth))

	viewer := authed.Group("")
	viewer.Use(middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleStaff))
	{
		viewer.GET("/assets", assetHandler.List)
		viewer.GET("/assets/stats", assetHandler.Stats)
		viewer.GET("/assets/upload-signature", assetHandler.UploadSignature)
		viewer.GET("/assets/:publicId", assetHandler.Get)
		viewer.POST("/assets", assetHandler.Upload)
		viewer.PATCH("/assets/:publicId", assetHandler.Update)
	}

	admin := authed.Group("")
	admin.Use(middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin))
	{
		admin.DELETE("/assets/:publicId", assetHandler.Delete)

		admin.PUT("/webhook", webhookHandler.Simulate)

		admin.POST("/sync", syncHandler.Sync)
		admin.GET("/sync/events", syncHandler.Events)
		admin.GET("/sync/logs", syncHandler.Logs)
		admin.GET("/sync/logs/export", syncHandler.ExportLogs)
		admin.GET("/sync/jobs/:id", syncHandler.Job)
		admin.GET("/sync/operations", syncHandler.Operations)
		admin.GET("/sync/operations/:id", syncHandler.Operation)
		admin.GET("/sync/operations/:id/live", syncHandler.LiveOperation)

		admin.POST("/cleanup", cleanupHandler.Cleanup)
		admin.GET("/cleanup/queue", cleanupHandler.Queue)
		admin.POST("/cleanup/queue", cleanupHandler.QueueRemote)
		admin.GET("/cleanup/queue/:id", cleanupHandler.QueueItem)

		admin.GET("/scheduler", cleanupHandler.SchedulerStatus)
		admin.POST("/scheduler", cleanupHandler.Scheduler)
	}

	return r
}
