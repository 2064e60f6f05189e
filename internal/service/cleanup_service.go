package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lgu-admin-api/internal/models"
	appErrors "github.com/noah-isme/lgu-admin-api/pkg/errors"
	"github.com/noah-isme/lgu-admin-api/pkg/mediastore"
)

type cleanupQueueStore interface {
	ClaimPending(ctx context.Context, limit int) ([]models.CleanupItem, error)
	ClaimByID(ctx context.Context, id string) (*models.CleanupItem, error)
	UpdateStatus(ctx context.Context, id string, status models.CleanupStatus, providerResponse models.JSONMap, errMsg *string) error
}

type remoteDestroyer interface {
	Destroy(ctx context.Context, publicID string, kind models.ResourceKind) (*mediastore.DestroyResult, error)
	DestroyAnyKind(ctx context.Context, publicID string) (*mediastore.DestroyResult, error)
}

type syncStatusWriter interface {
	GetByPublicID(ctx context.Context, publicID string) (*models.Asset, error)
	UpdateSyncStatus(ctx context.Context, publicID string, status models.SyncStatus, syncErr *string) (bool, error)
}

type assetLocker interface {
	LockAsset(publicID string) func()
}

// CleanupOptions narrows one processing pass.
type CleanupOptions struct {
	Limit      int
	ForceRetry bool
	SpecificID string
}

// CleanupOutcome is the result for one queue item.
type CleanupOutcome struct {
	QueueID  string               `json:"queue_id"`
	PublicID string               `json:"public_id"`
	Status   models.CleanupStatus `json:"status"`
	Attempts int                  `json:"attempts"`
	Error    string               `json:"error,omitempty"`
}

// CleanupSummary counts outcomes by status.
type CleanupSummary struct {
	Processed int `json:"processed"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Summarize counts the outcomes of a pass.
func Summarize(outcomes []CleanupOutcome) CleanupSummary {
	summary := CleanupSummary{Processed: len(outcomes)}
	for _, o := range outcomes {
		switch o.Status {
		case models.CleanupCompleted:
			summary.Completed++
		case models.CleanupFailed:
			summary.Failed++
		case models.CleanupSkipped:
			summary.Skipped++
		}
	}
	return summary
}

// CleanupService executes the provider-side deletions queued by local soft deletes.
type CleanupService struct {
	queue       cleanupQueueStore
	remote      remoteDestroyer
	assets      syncStatusWriter
	logs        syncLogWriter
	locker      assetLocker
	broadcaster *SyncBroadcaster
	metrics     *MetricsService
	logger      *zap.Logger
	batchSize   int
}

// NewCleanupService wires the service. locker, broadcaster and metrics may be nil.
func NewCleanupService(queue cleanupQueueStore, remote remoteDestroyer, assets syncStatusWriter, logs syncLogWriter, locker assetLocker, broadcaster *SyncBroadcaster, metrics *MetricsService, batchSize int, logger *zap.Logger) *CleanupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if batchSize <= 0 {
		batchSize = 10
	}
	return &CleanupService{
		queue:       queue,
		remote:      remote,
		assets:      assets,
		logs:        logs,
		locker:      locker,
		broadcaster: broadcaster,
		metrics:     metrics,
		logger:      logger,
		batchSize:   batchSize,
	}
}

// Process claims queue items and destroys their provider copies. Items at their attempt ceiling are
// skipped unless ForceRetry is set.
func (s *CleanupService) Process(ctx context.Context, opts CleanupOptions) ([]CleanupOutcome, error) {
	items, err := s.claim(ctx, opts)
	if err != nil {
		return nil, err
	}
	outcomes := make([]CleanupOutcome, 0, len(items))
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			s.release(item)
			continue
		}
		outcome := s.processItem(ctx, item, opts.ForceRetry)
		s.metrics.RecordCleanupItem(string(outcome.Status))
		s.broadcaster.Publish(ctx, SyncEvent{
			Type:     EventCleanupItem,
			PublicID: outcome.PublicID,
			Message:  string(outcome.Status),
			Data:     map[string]interface{}{"queue_id": outcome.QueueID, "attempts": outcome.Attempts},
		})
		outcomes = append(outcomes, outcome)
	}
	if len(outcomes) > 0 {
		summary := Summarize(outcomes)
		s.logger.Sugar().Infow("cleanup pass finished",
			"processed", summary.Processed,
			"completed", summary.Completed,
			"failed", summary.Failed,
			"skipped", summary.Skipped,
		)
	}
	return outcomes, nil
}

func (s *CleanupService) claim(ctx context.Context, opts CleanupOptions) ([]models.CleanupItem, error) {
	if opts.SpecificID != "" {
		item, err := s.queue.ClaimByID(ctx, opts.SpecificID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "cleanup item not found or already processing")
		}
		if err != nil {
			return nil, appErrors.Database(err, "failed to claim cleanup item")
		}
		return []models.CleanupItem{*item}, nil
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = s.batchSize
	}
	items, err := s.queue.ClaimPending(ctx, limit)
	if err != nil {
		return nil, appErrors.Database(err, "failed to claim cleanup items")
	}
	return items, nil
}

// release hands a claimed item back when the pass is interrupted.
func (s *CleanupService) release(item models.CleanupItem) {
	if err := s.queue.UpdateStatus(context.Background(), item.ID, models.CleanupPending, nil, item.ErrorMessage); err != nil {
		s.logger.Sugar().Warnw("release cleanup item failed", "queue_id", item.ID, "error", err)
	}
}

func (s *CleanupService) processItem(ctx context.Context, item models.CleanupItem, force bool) CleanupOutcome {
	outcome := CleanupOutcome{QueueID: item.ID, PublicID: item.PublicID, Attempts: item.ProcessingAttempts}
	log := s.logger.Sugar().With("queue_id", item.ID, "public_id", item.PublicID)

	if item.Exhausted() && !force {
		outcome.Status = models.CleanupSkipped
		if err := s.queue.UpdateStatus(ctx, item.ID, models.CleanupSkipped, nil, item.ErrorMessage); err != nil {
			log.Errorw("mark cleanup item skipped failed", "error", err)
		}
		return outcome
	}

	if s.locker != nil {
		unlock := s.locker.LockAsset(item.PublicID)
		defer unlock()
	}

	start := time.Now()
	var (
		res *mediastore.DestroyResult
		err error
	)
	// A restored asset is live again and its provider copy must stay.
	_, err = s.assets.GetByPublicID(ctx, item.PublicID)
	switch {
	case err == nil:
		msg := "asset restored locally"
		outcome.Status = models.CleanupSkipped
		outcome.Error = msg
		if uerr := s.queue.UpdateStatus(ctx, item.ID, models.CleanupSkipped, models.JSONMap{"reason": "restored"}, &msg); uerr != nil {
			log.Errorw("mark cleanup item skipped failed", "error", uerr)
		}
		log.Infow("cleanup skipped, asset is live")
		return outcome
	case errors.Is(err, sql.ErrNoRows):
		err = nil
	default:
		err = fmt.Errorf("check local asset: %w", err)
	}
	if err == nil {
		if item.ResourceType.Valid() {
			res, err = s.remote.Destroy(ctx, item.PublicID, item.ResourceType)
		} else {
			res, err = s.remote.DestroyAnyKind(ctx, item.PublicID)
		}
	}
	if err == nil && !res.Succeeded() {
		err = fmt.Errorf("provider answered %q", res.Result)
	}
	outcome.Attempts++

	var response models.JSONMap
	if res != nil {
		response = models.JSONMap{"result": res.Result}
	}
	if err != nil {
		msg := err.Error()
		outcome.Status = models.CleanupFailed
		outcome.Error = msg
		if uerr := s.queue.UpdateStatus(ctx, item.ID, models.CleanupFailed, response, &msg); uerr != nil {
			log.Errorw("mark cleanup item failed failed", "error", uerr)
		}
		s.writeLog(ctx, item, err, response, start)
		log.Warnw("cleanup destroy failed", "attempt", outcome.Attempts, "error", err)
		return outcome
	}

	outcome.Status = models.CleanupCompleted
	if uerr := s.queue.UpdateStatus(ctx, item.ID, models.CleanupCompleted, response, nil); uerr != nil {
		log.Errorw("mark cleanup item completed failed", "error", uerr)
	}
	if _, uerr := s.assets.UpdateSyncStatus(ctx, item.PublicID, models.SyncStatusSynced, nil); uerr != nil {
		log.Errorw("mark deleted asset synced failed", "error", uerr)
	}
	s.writeLog(ctx, item, nil, response, start)
	return outcome
}

func (s *CleanupService) writeLog(ctx context.Context, item models.CleanupItem, opErr error, details models.JSONMap, start time.Time) {
	if s.logs == nil {
		return
	}
	if details == nil {
		details = models.JSONMap{}
	}
	details["queue_id"] = item.ID
	entry := &models.SyncLogEntry{
		PublicID:   item.PublicID,
		Operation:  models.SyncLogDelete,
		Source:     models.SyncSourceScheduled,
		Status:     models.SyncLogSuccess,
		Details:    details,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if opErr != nil {
		msg := opErr.Error()
		entry.Status = models.SyncLogError
		entry.ErrorMessage = &msg
	}
	if err := s.logs.Create(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Sugar().Errorw("write sync log failed", "public_id", item.PublicID, "error", err)
	}
}
