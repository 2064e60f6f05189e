package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lgu-admin-api/internal/dto"
	"github.com/noah-isme/lgu-admin-api/internal/middleware"
	"github.com/noah-isme/lgu-admin-api/internal/models"
	"github.com/noah-isme/lgu-admin-api/internal/service"
	appErrors "github.com/noah-isme/lgu-admin-api/pkg/errors"
	"github.com/noah-isme/lgu-admin-api/pkg/response"
)

type cleanupRunner interface {
	Process(ctx context.Context, opts service.CleanupOptions) ([]service.CleanupOutcome, error)
}

type cleanupQueue interface {
	List(ctx context.Context, q dto.CleanupQueueQuery) (*service.CleanupQueueView, error)
	Get(ctx context.Context, id string) (*models.CleanupItem, error)
	QueueRemoteDeletion(ctx context.Context, req dto.QueueRemoteDeletionRequest, actorID string) (*dto.DeleteAssetResponse, error)
}

type cleanupScheduler interface {
	Start(ctx context.Context) error
	Stop()
	Restart(ctx context.Context) error
	Configure(ctx context.Context, cfg service.SchedulerConfig) error
	ForceRun(ctx context.Context, opts service.CleanupOptions) ([]service.CleanupOutcome, error)
	Status() service.SchedulerStatus
}

// CleanupResponse reports one cleanup pass.
type CleanupResponse struct {
	Summary service.CleanupSummary   `json:"summary"`
	Items   []service.CleanupOutcome `json:"items"`
}

// SchedulerResponse reports the scheduler after an action.
type SchedulerResponse struct {
	Action string                  `json:"action"`
	Status service.SchedulerStatus `json:"status"`
	Pass   *CleanupResponse        `json:"pass,omitempty"`
}

// CleanupHandler drives the provider-side deletion queue.
type CleanupHandler struct {
	cleanup   cleanupRunner
	queue     cleanupQueue
	scheduler cleanupScheduler
}

// NewCleanupHandler constructs a cleanup handler.
func NewCleanupHandler(cleanup cleanupRunner, queue cleanupQueue, scheduler cleanupScheduler) *CleanupHandler {
	return &CleanupHandler{cleanup: cleanup, queue: queue, scheduler: scheduler}
}

// Cleanup godoc
// @Summary Process the cleanup queue now
// @Tags Cleanup
// @Accept json
// @Produce json
// @Param payload body dto.CleanupRequest false "Cleanup options"
// @Success 200 {object} response.Envelope
// @Router /cleanup [post]
func (h *CleanupHandler) Cleanup(c *gin.Context) {
	var req dto.CleanupRequest
	if err := bindOptionalJSON(c, &req, "cleanup payload"); err != nil {
		response.Error(c, err)
		return
	}
	outcomes, err := h.cleanup.Process(c.Request.Context(), service.CleanupOptions{
		Limit:      req.Limit,
		ForceRetry: req.ForceRetry,
		SpecificID: req.SpecificID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, newCleanupResponse(outcomes), nil, middleware.ResponseMeta(c))
}

// Queue godoc
// @Summary Browse the cleanup queue
// @Tags Cleanup
// @Produce json
// @Param status query string false "pending (default), processing, completed, failed or skipped"
// @Param limit query int false "Max rows"
// @Success 200 {object} response.Envelope
// @Router /cleanup/queue [get]
func (h *CleanupHandler) Queue(c *gin.Context) {
	var q dto.CleanupQueueQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, invalidPayload(err, "queue query"))
		return
	}
	view, err := h.queue.List(c.Request.Context(), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil, middleware.ResponseMeta(c))
}

// QueueItem godoc
// @Summary Get a cleanup queue item
// @Tags Cleanup
// @Produce json
// @Param id path string true "Queue item ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /cleanup/queue/{id} [get]
func (h *CleanupHandler) QueueItem(c *gin.Context) {
	item, err := h.queue.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil, middleware.ResponseMeta(c))
}

// QueueRemote godoc
// @Summary Queue deletion of a provider asset without a local row
// @Tags Cleanup
// @Accept json
// @Produce json
// @Param payload body dto.QueueRemoteDeletionRequest true "Provider asset"
// @Success 202 {object} response.Envelope
// @Router /cleanup/queue [post]
func (h *CleanupHandler) QueueRemote(c *gin.Context) {
	var req dto.QueueRemoteDeletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "queue payload"))
		return
	}
	queued, err := h.queue.QueueRemoteDeletion(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, queued)
}

// SchedulerStatus godoc
// @Summary Cleanup scheduler status
// @Tags Cleanup
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /scheduler [get]
func (h *CleanupHandler) SchedulerStatus(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.scheduler.Status(), nil, middleware.ResponseMeta(c))
}

// Scheduler godoc
// @Summary Control the cleanup scheduler
// @Description Actions: start, stop, restart, configure (interval uses Go duration syntax), force_cleanup and status.
// @Tags Cleanup
// @Accept json
// @Produce json
// @Param payload body dto.SchedulerRequest true "Scheduler action"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /scheduler [post]
func (h *CleanupHandler) Scheduler(c *gin.Context) {
	var req dto.SchedulerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "scheduler payload"))
		return
	}
	ctx := c.Request.Context()
	out := SchedulerResponse{Action: req.Action}

	var err error
	switch req.Action {
	case "start":
		err = h.scheduler.Start(ctx)
	case "stop":
		h.scheduler.Stop()
	case "restart":
		err = h.scheduler.Restart(ctx)
	case "configure":
		err = h.configure(ctx, req.Config)
	case "force_cleanup":
		var outcomes []service.CleanupOutcome
		outcomes, err = h.scheduler.ForceRun(ctx, service.CleanupOptions{ForceRetry: req.ForceRetry})
		if err == nil {
			pass := newCleanupResponse(outcomes)
			out.Pass = &pass
		}
	case "status":
	default:
		err = appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown action %q", req.Action))
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	out.Status = h.scheduler.Status()
	response.JSON(c, http.StatusOK, out, nil, middleware.ResponseMeta(c))
}

func (h *CleanupHandler) configure(ctx context.Context, payload *dto.SchedulerConfigPayload) error {
	if payload == nil {
		return appErrors.Clone(appErrors.ErrValidation, "config is required for configure")
	}
	interval, err := time.ParseDuration(payload.Interval)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, fmt.Sprintf("invalid interval %q", payload.Interval))
	}
	return h.scheduler.Configure(ctx, service.SchedulerConfig{Interval: interval, BatchSize: payload.BatchSize})
}

func newCleanupResponse(outcomes []service.CleanupOutcome) CleanupResponse {
	if outcomes == nil {
		outcomes = []service.CleanupOutcome{}
	}
	return CleanupResponse{Summary: service.Summarize(outcomes), Items: outcomes}
}
