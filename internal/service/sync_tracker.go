package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/lgu-admin-api/internal/models"
)

// operationTracker keeps the persisted operation record and the broadcast stream in step with a run.
// When the record cannot be created the run continues and progress is only broadcast.
type operationTracker struct {
	engine    *SyncEngine
	op        models.SyncOperation
	persisted bool

	from, to    int
	phasePages  int
	processed   int
	failedItems int
}

func (e *SyncEngine) startOperation(ctx context.Context, kind models.SyncOperationKind, opts SyncOptions) *operationTracker {
	t := &operationTracker{
		engine: e,
		op: models.SyncOperation{
			Kind:        kind,
			Status:      models.SyncOpPending,
			TriggeredBy: opts.Actor,
			StartedAt:   time.Now().UTC(),
			OperationData: models.JSONMap{
				"force":           opts.Force,
				"batch_size":      opts.BatchSize,
				"include_deleted": opts.IncludeDeleted,
				"folder":          opts.FolderFilter,
				"resource_type":   string(opts.ResourceTypeFilter),
				"source":          string(opts.Source),
			},
		},
	}
	if e.operations != nil {
		if err := e.operations.Create(ctx, &t.op); err != nil {
			e.logger.Sugar().Errorw("create sync operation record failed", "kind", kind, "error", err)
		} else {
			t.persisted = true
		}
	}
	if t.op.ID == "" {
		t.op.ID = uuid.NewString()
	}
	e.broadcaster.Publish(ctx, SyncEvent{
		Type:        EventSyncStarted,
		OperationID: t.op.ID,
		Status:      models.SyncOpPending,
		ActorID:     opts.Actor,
		Message:     string(kind) + " started",
	})
	return t
}

func (t *operationTracker) enterPhase(ctx context.Context, status models.SyncOperationStatus, from, to int) {
	t.from, t.to, t.phasePages = from, to, 0
	t.failedItems = t.op.FailedItems
	t.op.Status = status
	t.op.Progress = from
	t.persist(ctx)
	t.engine.broadcaster.Publish(ctx, SyncEvent{
		Type:        EventSyncPhase,
		OperationID: t.op.ID,
		Status:      status,
		Progress:    from,
		ActorID:     t.op.TriggeredBy,
	})
}

// advance records a processed page. The phase total is unknown up front, so progress
// approaches the phase ceiling without reaching it.
func (t *operationTracker) advance(ctx context.Context, items, phaseFailed int) {
	t.phasePages++
	t.processed += items
	t.op.ProcessedItems = t.processed
	t.op.TotalItems = t.processed
	t.op.FailedItems = t.failedItems + phaseFailed
	span := t.to - t.from
	t.op.Progress = t.from + span*t.phasePages/(t.phasePages+1)
	t.persist(ctx)
	t.engine.broadcaster.Publish(ctx, SyncEvent{
		Type:        EventSyncProgress,
		OperationID: t.op.ID,
		Status:      t.op.Status,
		Progress:    t.op.Progress,
		ActorID:     t.op.TriggeredBy,
		Data: map[string]interface{}{
			"processed_items": t.op.ProcessedItems,
			"failed_items":    t.op.FailedItems,
		},
	})
}

func (t *operationTracker) persist(ctx context.Context) {
	if !t.persisted {
		return
	}
	err := t.engine.operations.UpdateProgress(ctx, t.op.ID, models.SyncProgress{
		Status:         t.op.Status,
		Progress:       t.op.Progress,
		TotalItems:     t.op.TotalItems,
		ProcessedItems: t.op.ProcessedItems,
		FailedItems:    t.op.FailedItems,
	})
	if err != nil {
		t.engine.logger.Sugar().Warnw("persist sync progress failed", "operation_id", t.op.ID, "error", err)
	}
}

// finish closes the record. aborted marks runs that stopped before finishing every phase.
func (t *operationTracker) finish(ctx context.Context, result *SyncResult, aborted bool) {
	ctx = context.WithoutCancel(ctx)
	status := models.SyncOpCompleted
	eventType := EventSyncCompleted
	if aborted {
		status = models.SyncOpFailed
		eventType = EventSyncFailed
	}
	t.op.Status = status
	t.op.Progress = 100
	t.op.FailedItems = result.FailedItems

	data := models.JSONMap{
		"synced_items":  result.SyncedItems,
		"created_items": result.CreatedItems,
		"updated_items": result.UpdatedItems,
		"deleted_items": result.DeletedItems,
		"skipped_items": result.SkippedItems,
		"failed_items":  result.FailedItems,
		"duration_ms":   result.DurationMs,
		"success":       result.Success,
	}
	var errs models.JSONMap
	if len(result.Errors) > 0 {
		errs = models.JSONMap{"errors": result.Errors}
	}
	if t.persisted {
		if err := t.engine.operations.Complete(ctx, t.op.ID, status, data, errs); err != nil {
			t.engine.logger.Sugar().Errorw("complete sync operation failed", "operation_id", t.op.ID, "error", err)
		}
	}
	t.engine.broadcaster.Publish(ctx, SyncEvent{
		Type:        eventType,
		OperationID: t.op.ID,
		Status:      status,
		Progress:    100,
		ActorID:     t.op.TriggeredBy,
		Data:        data,
	})
}
