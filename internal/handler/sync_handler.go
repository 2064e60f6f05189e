package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/lgu-admin-api/internal/dto"
	"github.com/noah-isme/lgu-admin-api/internal/middleware"
	"github.com/noah-isme/lgu-admin-api/internal/models"
	"github.com/noah-isme/lgu-admin-api/internal/service"
	"github.com/noah-isme/lgu-admin-api/pkg/jobs"
	"github.com/noah-isme/lgu-admin-api/pkg/response"
)

type syncRunner interface {
	Run(ctx context.Context, opts service.SyncOptions) (*service.SyncResult, error)
	EnqueueFullSync(opts service.SyncOptions) (string, error)
	JobStatus(id string) (*jobs.Status, error)
	SyncAsset(ctx context.Context, publicID string, kind models.ResourceKind, source models.SyncSource) (*service.SyncResult, error)
}

type syncAuditor interface {
	ListLogs(ctx context.Context, q dto.SyncLogQuery) ([]models.SyncLogEntry, models.Pagination, error)
	ExportLogs(ctx context.Context, q dto.SyncLogQuery) (*service.LogExport, error)
	ListOperations(ctx context.Context, q dto.SyncOperationQuery) ([]models.SyncOperation, error)
	GetOperation(ctx context.Context, id string) (*models.SyncOperation, error)
	LiveOperation(ctx context.Context, id string) (*service.SyncEvent, error)
}

type syncEventSource interface {
	Subscribe() (<-chan service.SyncEvent, func())
}

// SyncHandler exposes sync triggers, progress streaming and the audit trail.
type SyncHandler struct {
	runner    syncRunner
	audit     syncAuditor
	events    syncEventSource
	keepAlive time.Duration
	logger    *zap.Logger
}

// NewSyncHandler constructs the handler. keepAlive spaces SSE comments on idle streams.
func NewSyncHandler(runner syncRunner, audit syncAuditor, events syncEventSource, keepAlive time.Duration, logger *zap.Logger) *SyncHandler {
	if keepAlive <= 0 {
		keepAlive = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncHandler{runner: runner, audit: audit, events: events, keepAlive: keepAlive, logger: logger}
}

// Sync godoc
// @Summary Run a media sync
// @Description Runs a full or partial sync. With single_asset set only that asset is mirrored; with async the run is queued and 202 is returned.
// @Tags Sync
// @Accept json
// @Produce json
// @Param payload body dto.SyncRequest false "Sync options"
// @Success 200 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sync [post]
func (h *SyncHandler) Sync(c *gin.Context) {
	var req dto.SyncRequest
	if err := bindOptionalJSON(c, &req, "sync payload"); err != nil {
		response.Error(c, err)
		return
	}
	ctx := c.Request.Context()

	if req.SingleAsset != "" {
		result, err := h.runner.SyncAsset(ctx, req.SingleAsset, models.ResourceKind(req.ResourceTypeFilter), models.SyncSourceAdmin)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, result, nil, middleware.ResponseMeta(c))
		return
	}

	opts := service.SyncOptions{
		Mode:               service.SyncMode(req.Mode),
		Force:              req.Force,
		BatchSize:          req.BatchSize,
		MaxRetries:         req.MaxRetries,
		IncludeDeleted:     req.IncludeDeleted,
		FolderFilter:       req.FolderFilter,
		ResourceTypeFilter: models.ResourceKind(req.ResourceTypeFilter),
		Actor:              actorFromContext(c),
		Source:             models.SyncSourceAdmin,
	}
	if opts.Mode == "" {
		opts.Mode = service.SyncModeFull
	}

	if req.Async {
		jobID, err := h.runner.EnqueueFullSync(opts)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Accepted(c, dto.SyncAcceptedResponse{JobID: jobID, Mode: string(opts.Mode)})
		return
	}

	result, err := h.runner.Run(ctx, opts)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil, middleware.ResponseMeta(c))
}

// Events godoc
// @Summary Stream sync progress
// @Description Server-sent events for sync, cleanup and webhook activity.
// @Tags Sync
// @Produce text/event-stream
// @Success 200 {string} string "event stream"
// @Router /sync/events [get]
func (h *SyncHandler) Events(c *gin.Context) {
	events, unsubscribe := h.events.Subscribe()
	defer unsubscribe()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()
	ctx := c.Request.Context()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case event, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(string(event.Type), event)
			return true
		case <-ticker.C:
			_, err := fmt.Fprint(w, ": keepalive\n\n")
			return err == nil
		}
	})
}

// Logs godoc
// @Summary List sync log entries
// @Tags Sync
// @Produce json
// @Param public_id query string false "Asset public id"
// @Param operation query string false "upload, update, delete or restore"
// @Param source query string false "webhook, admin, scheduled or api"
// @Param status query string false "success, error or skipped"
// @Param from query string false "From date (YYYY-MM-DD)"
// @Param to query string false "To date (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /sync/logs [get]
func (h *SyncHandler) Logs(c *gin.Context) {
	var q dto.SyncLogQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, invalidPayload(err, "log query"))
		return
	}
	entries, pagination, err := h.audit.ListLogs(c.Request.Context(), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, &pagination, middleware.ResponseMeta(c))
}

// ExportLogs godoc
// @Summary Export sync log entries
// @Tags Sync
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Router /sync/logs/export [get]
func (h *SyncHandler) ExportLogs(c *gin.Context) {
	var q dto.SyncLogQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, invalidPayload(err, "log query"))
		return
	}
	file, err := h.audit.ExportLogs(c.Request.Context(), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Type", file.ContentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Status(http.StatusOK)
	if err := file.Render(c.Writer); err != nil {
		h.logger.Error("sync log export interrupted", zap.String("filename", file.Filename), zap.Error(err))
	}
}

// Operations godoc
// @Summary List recent sync operations
// @Tags Sync
// @Produce json
// @Param operation_type query string false "Operation kind"
// @Param limit query int false "Max rows"
// @Success 200 {object} response.Envelope
// @Router /sync/operations [get]
func (h *SyncHandler) Operations(c *gin.Context) {
	var q dto.SyncOperationQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, invalidPayload(err, "operation query"))
		return
	}
	ops, err := h.audit.ListOperations(c.Request.Context(), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ops, nil, middleware.ResponseMeta(c))
}

// Operation godoc
// @Summary Get a sync operation
// @Tags Sync
// @Produce json
// @Param id path string true "Operation ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /sync/operations/{id} [get]
func (h *SyncHandler) Operation(c *gin.Context) {
	op, err := h.audit.GetOperation(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, op, nil, middleware.ResponseMeta(c))
}

// Job godoc
// @Summary Status of a queued sync
// @Tags Sync
// @Produce json
// @Param id path string true "Job ID returned by an async sync"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /sync/jobs/{id} [get]
func (h *SyncHandler) Job(c *gin.Context) {
	st, err := h.runner.JobStatus(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, st, nil, middleware.ResponseMeta(c))
}

// LiveOperation godoc
// @Summary Latest progress of a sync operation
// @Tags Sync
// @Produce json
// @Param id path string true "Operation ID"
// @Success 200 {object} response.Envelope
// @Router /sync/operations/{id}/live [get]
func (h *SyncHandler) LiveOperation(c *gin.Context) {
	event, err := h.audit.LiveOperation(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil, middleware.ResponseMeta(c))
}
