package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/lgu-admin-api/internal/models"
	appErrors "github.com/noah-isme/lgu-admin-api/pkg/errors"
	"github.com/noah-isme/lgu-admin-api/pkg/jobs"
	"github.com/noah-isme/lgu-admin-api/pkg/mediastore"
)

// remoteMediaStore is the subset of the provider client the sync engine drives.
type remoteMediaStore interface {
	Destroy(ctx context.Context, publicID string, kind models.ResourceKind) (*mediastore.DestroyResult, error)
	DestroyAnyKind(ctx context.Context, publicID string) (*mediastore.DestroyResult, error)
	SearchAll(ctx context.Context, q mediastore.SearchQuery, fn func(page []models.RemoteResource) error) error
	Resource(ctx context.Context, publicID string, kind models.ResourceKind) (*models.RemoteResource, error)
	ResourceAnyKind(ctx context.Context, publicID string) (*models.RemoteResource, error)
	UpdateResource(ctx context.Context, publicID string, kind models.ResourceKind, update mediastore.ResourceUpdate) error
}

type syncAssetStore interface {
	Upsert(ctx context.Context, asset *models.Asset) error
	GetByPublicID(ctx context.Context, publicID string) (*models.Asset, error)
	GetByPublicIDWithDeleted(ctx context.Context, publicID string) (*models.Asset, error)
	ListPendingSync(ctx context.Context, limit, maxRetries int) ([]models.Asset, error)
	ListActive(ctx context.Context, afterPublicID string, limit int) ([]models.Asset, error)
	SoftDelete(ctx context.Context, publicID, deletedBy string) (bool, error)
	HardDelete(ctx context.Context, publicID string) (int, error)
	Restore(ctx context.Context, publicID string) (bool, error)
	UpdateSyncStatus(ctx context.Context, publicID string, status models.SyncStatus, syncErr *string) (bool, error)
}

type syncLogWriter interface {
	Create(ctx context.Context, entry *models.SyncLogEntry) error
}

type syncOperationStore interface {
	Create(ctx context.Context, op *models.SyncOperation) error
	UpdateProgress(ctx context.Context, id string, progress models.SyncProgress) error
	Complete(ctx context.Context, id string, status models.SyncOperationStatus, data, errorDetails models.JSONMap) error
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) (string, error)
	Status(id string) (jobs.Status, bool)
}

// JobTypeFullSync identifies queued full syncs.
const JobTypeFullSync = "media.full_sync"

// SyncMode selects which phases a sync run executes.
type SyncMode string

const (
	SyncModeFull          SyncMode = "full"
	SyncModeRemoteToLocal SyncMode = "remote_to_local"
	SyncModeLocalToRemote SyncMode = "local_to_remote"
	SyncModeOrphans       SyncMode = "orphans"
)

// SyncOptions tunes a sync run. Zero values fall back to the engine configuration.
type SyncOptions struct {
	Mode               SyncMode
	Force              bool
	BatchSize          int
	MaxRetries         int
	IncludeDeleted     bool
	FolderFilter       string
	ResourceTypeFilter models.ResourceKind
	Actor              string
	Source             models.SyncSource
}

// SyncResult aggregates the outcome of a sync run.
type SyncResult struct {
	OperationID  string   `json:"operation_id,omitempty"`
	Success      bool     `json:"success"`
	SyncedItems  int      `json:"synced_items"`
	CreatedItems int      `json:"created_items"`
	UpdatedItems int      `json:"updated_items"`
	DeletedItems int      `json:"deleted_items"`
	SkippedItems int      `json:"skipped_items"`
	FailedItems  int      `json:"failed_items"`
	Errors       []string `json:"errors"`
	DurationMs   int64    `json:"duration_ms"`
}

func (r *SyncResult) merge(other SyncResult) {
	r.SyncedItems += other.SyncedItems
	r.CreatedItems += other.CreatedItems
	r.UpdatedItems += other.UpdatedItems
	r.DeletedItems += other.DeletedItems
	r.SkippedItems += other.SkippedItems
	r.FailedItems += other.FailedItems
	r.Errors = append(r.Errors, other.Errors...)
}

func (r *SyncResult) fail(publicID string, err error) {
	r.FailedItems++
	if publicID == "" {
		r.Errors = append(r.Errors, err.Error())
		return
	}
	r.Errors = append(r.Errors, fmt.Sprintf("%s: %v", publicID, err))
}

// SyncEngineConfig carries batch defaults.
type SyncEngineConfig struct {
	BatchSize       int
	OrphanBatchSize int
	MaxRetries      int
}

// SyncEngine reconciles the local asset mirror with the provider in both directions.
type SyncEngine struct {
	remote      remoteMediaStore
	assets      syncAssetStore
	logs        syncLogWriter
	operations  syncOperationStore
	broadcaster *SyncBroadcaster
	cache       *CacheService
	metrics     *MetricsService
	queue       jobEnqueuer
	logger      *zap.Logger
	cfg         SyncEngineConfig

	running atomic.Bool
	locks   *keyedMutex
	single  singleflight.Group
}

// NewSyncEngine wires the engine. broadcaster, cache and metrics may be nil.
func NewSyncEngine(
	remote remoteMediaStore,
	assets syncAssetStore,
	logs syncLogWriter,
	operations syncOperationStore,
	broadcaster *SyncBroadcaster,
	cache *CacheService,
	metrics *MetricsService,
	cfg SyncEngineConfig,
	logger *zap.Logger,
) *SyncEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.OrphanBatchSize <= 0 {
		cfg.OrphanBatchSize = 1000
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &SyncEngine{
		remote:      remote,
		assets:      assets,
		logs:        logs,
		operations:  operations,
		broadcaster: broadcaster,
		cache:       cache,
		metrics:     metrics,
		logger:      logger,
		cfg:         cfg,
		locks:       newKeyedMutex(),
	}
}

// SetQueue attaches the background queue used by EnqueueFullSync.
func (e *SyncEngine) SetQueue(queue jobEnqueuer) {
	e.queue = queue
}

// Running reports whether a sync run is in progress in this process.
func (e *SyncEngine) Running() bool {
	return e.running.Load()
}

// LockAsset serializes a mutation of one asset against the engine.
func (e *SyncEngine) LockAsset(publicID string) func() {
	return e.locks.Lock(publicID)
}

func (e *SyncEngine) withDefaults(opts SyncOptions) SyncOptions {
	if opts.Mode == "" {
		opts.Mode = SyncModeFull
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = e.cfg.BatchSize
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = e.cfg.MaxRetries
	}
	if opts.Actor == "" {
		opts.Actor = models.ActorSystemSync
	}
	if opts.Source == "" {
		opts.Source = models.SyncSourceAPI
	}
	return opts
}

// FullSync runs remote → local, local → remote and orphan cleanup in that order.
func (e *SyncEngine) FullSync(ctx context.Context, opts SyncOptions) (*SyncResult, error) {
	opts.Mode = SyncModeFull
	return e.Run(ctx, opts)
}

// SyncRemoteToLocal runs only the pull phase.
func (e *SyncEngine) SyncRemoteToLocal(ctx context.Context, opts SyncOptions) (*SyncResult, error) {
	opts.Mode = SyncModeRemoteToLocal
	return e.Run(ctx, opts)
}

// SyncLocalToRemote runs only the push phase.
func (e *SyncEngine) SyncLocalToRemote(ctx context.Context, opts SyncOptions) (*SyncResult, error) {
	opts.Mode = SyncModeLocalToRemote
	return e.Run(ctx, opts)
}

// CleanupOrphans runs only the orphan phase.
func (e *SyncEngine) CleanupOrphans(ctx context.Context, opts SyncOptions) (*SyncResult, error) {
	opts.Mode = SyncModeOrphans
	return e.Run(ctx, opts)
}

type syncPhase struct {
	status   models.SyncOperationStatus
	from, to int
	run      func(ctx context.Context, t *operationTracker, opts SyncOptions) (SyncResult, error)
}

func (e *SyncEngine) phasesFor(mode SyncMode) (models.SyncOperationKind, []syncPhase, error) {
	pull := func(from, to int) syncPhase {
		return syncPhase{status: models.SyncOpRemoteToDB, from: from, to: to, run: e.pullRemote}
	}
	push := func(from, to int) syncPhase {
		return syncPhase{status: models.SyncOpDBToRemote, from: from, to: to, run: e.pushLocal}
	}
	orphans := func(from, to int) syncPhase {
		return syncPhase{status: models.SyncOpCleanup, from: from, to: to, run: e.sweepOrphans}
	}
	switch mode {
	case SyncModeFull:
		return models.SyncKindFull, []syncPhase{pull(0, 60), push(60, 80), orphans(80, 100)}, nil
	case SyncModeRemoteToLocal:
		return models.SyncKindRemoteToDB, []syncPhase{pull(0, 100)}, nil
	case SyncModeLocalToRemote:
		return models.SyncKindDBToRemote, []syncPhase{push(0, 100)}, nil
	case SyncModeOrphans:
		return models.SyncKindCleanup, []syncPhase{orphans(0, 100)}, nil
	default:
		return "", nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown sync mode %q", mode))
	}
}

// Run executes the phases selected by opts.Mode. Only one run may be active per process; a second
// caller receives ErrSyncInProgress. Per-item failures are reported in the result, the returned
// error is reserved for runs that could not start.
func (e *SyncEngine) Run(ctx context.Context, opts SyncOptions) (*SyncResult, error) {
	opts = e.withDefaults(opts)
	kind, phases, err := e.phasesFor(opts.Mode)
	if err != nil {
		return nil, err
	}
	if !e.running.CompareAndSwap(false, true) {
		return nil, appErrors.ErrSyncInProgress
	}
	defer e.running.Store(false)

	start := time.Now()
	tracker := e.startOperation(ctx, kind, opts)
	result := &SyncResult{OperationID: tracker.op.ID, Errors: []string{}}
	log := e.logger.Sugar().With("operation_id", tracker.op.ID, "kind", kind)
	log.Infow("sync started", "force", opts.Force, "folder", opts.FolderFilter, "resource_type", opts.ResourceTypeFilter)

	aborted := false
	for _, phase := range phases {
		tracker.enterPhase(ctx, phase.status, phase.from, phase.to)
		phaseResult, err := phase.run(ctx, tracker, opts)
		result.merge(phaseResult)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", phase.status, err))
			log.Errorw("sync phase aborted", "phase", phase.status, "error", err)
			aborted = true
			if ctx.Err() != nil {
				break
			}
		}
	}

	result.Success = len(result.Errors) == 0
	result.DurationMs = time.Since(start).Milliseconds()
	tracker.finish(ctx, result, aborted)
	e.cache.InvalidateMedia(context.WithoutCancel(ctx))
	e.metrics.ObserveSync(string(kind), result.Success, time.Since(start))

	log.Infow("sync finished",
		"success", result.Success,
		"synced", result.SyncedItems,
		"created", result.CreatedItems,
		"updated", result.UpdatedItems,
		"deleted", result.DeletedItems,
		"failed", result.FailedItems,
		"duration_ms", result.DurationMs,
	)
	return result, nil
}

// EnqueueFullSync hands a sync run to the background queue and returns the job id.
// Only one full sync can be queued or running at a time.
func (e *SyncEngine) EnqueueFullSync(opts SyncOptions) (string, error) {
	if e.queue == nil {
		return "", appErrors.Clone(appErrors.ErrInternal, "background sync queue is not configured")
	}
	if e.Running() {
		return "", appErrors.ErrSyncInProgress
	}
	id, err := e.queue.Enqueue(jobs.Job{Type: JobTypeFullSync, Key: JobTypeFullSync, Payload: opts})
	switch {
	case errors.Is(err, jobs.ErrDuplicate):
		return "", appErrors.Clone(appErrors.ErrSyncInProgress, "a full sync is already queued")
	case err != nil:
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue sync")
	}
	e.logger.Sugar().Infow("full sync queued", "job_id", id, "mode", opts.Mode, "actor", opts.Actor)
	return id, nil
}

// JobStatus reports a queued sync job. Finished jobs are forgotten after the queue's history limit.
func (e *SyncEngine) JobStatus(id string) (*jobs.Status, error) {
	if e.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "background sync queue is not configured")
	}
	st, ok := e.queue.Status(id)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "sync job not found")
	}
	return &st, nil
}

// HandleJob is the queue handler for JobTypeFullSync. A run already in progress drops the job.
func (e *SyncEngine) HandleJob(ctx context.Context, job jobs.Job) error {
	opts, ok := job.Payload.(SyncOptions)
	if !ok {
		e.logger.Sugar().Errorw("discarding sync job with unexpected payload", "job_id", job.ID, "type", job.Type)
		return nil
	}
	_, err := e.Run(ctx, opts)
	if errors.Is(err, appErrors.ErrSyncInProgress) {
		e.logger.Sugar().Warnw("queued sync skipped, another run is active", "job_id", job.ID)
		return nil
	}
	return err
}

// pullRemote walks every remote resource and reconciles the local row.
func (e *SyncEngine) pullRemote(ctx context.Context, t *operationTracker, opts SyncOptions) (SyncResult, error) {
	var result SyncResult
	query := mediastore.SearchQuery{
		Expression: searchExpression(opts),
		SortBy:     "created_at",
		SortDir:    "desc",
		MaxResults: opts.BatchSize,
	}
	err := e.remote.SearchAll(ctx, query, func(page []models.RemoteResource) error {
		for _, res := range page {
			if err := ctx.Err(); err != nil {
				return err
			}
			outcome, err := e.reconcileRemote(ctx, res, opts)
			if err != nil {
				result.fail(res.PublicID, err)
				e.metrics.RecordSyncItem("remote_to_local", "error")
				e.logger.Sugar().Warnw("remote asset reconcile failed", "public_id", res.PublicID, "error", err)
				continue
			}
			outcome.count(&result)
			e.metrics.RecordSyncItem("remote_to_local", string(outcome))
		}
		t.advance(ctx, len(page), result.FailedItems)
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("search remote assets: %w", err)
	}
	return result, nil
}

type reconcileOutcome string

const (
	outcomeCreated   reconcileOutcome = "created"
	outcomeUpdated   reconcileOutcome = "updated"
	outcomeRestored  reconcileOutcome = "restored"
	outcomeUnchanged reconcileOutcome = "unchanged"
	outcomeSkipped   reconcileOutcome = "skipped"
)

func (o reconcileOutcome) count(r *SyncResult) {
	switch o {
	case outcomeCreated:
		r.SyncedItems++
		r.CreatedItems++
	case outcomeUpdated, outcomeRestored:
		r.SyncedItems++
		r.UpdatedItems++
	case outcomeUnchanged:
		r.SyncedItems++
	case outcomeSkipped:
		r.SkippedItems++
	}
}

// reconcileRemote applies one remote resource to the local mirror under the asset lock.
// Rows with unpushed local edits are left alone, as are rows soft-deleted locally unless
// IncludeDeleted asks for them to be restored.
func (e *SyncEngine) reconcileRemote(ctx context.Context, res models.RemoteResource, opts SyncOptions) (reconcileOutcome, error) {
	unlock := e.locks.Lock(res.PublicID)
	defer unlock()

	start := time.Now()
	outcome, err := e.reconcileLocked(ctx, res, opts)
	switch {
	case err != nil:
		e.writeLog(ctx, res.PublicID, models.SyncLogUpdate, opts.Source, err, nil, start)
	case outcome == outcomeCreated:
		e.writeLog(ctx, res.PublicID, models.SyncLogUpload, opts.Source, nil, models.JSONMap{"version": res.Version}, start)
	case outcome == outcomeUpdated:
		e.writeLog(ctx, res.PublicID, models.SyncLogUpdate, opts.Source, nil, models.JSONMap{"version": res.Version, "forced": opts.Force}, start)
	case outcome == outcomeRestored:
		e.writeLog(ctx, res.PublicID, models.SyncLogRestore, opts.Source, nil, models.JSONMap{"version": res.Version}, start)
	}
	return outcome, err
}

func (e *SyncEngine) reconcileLocked(ctx context.Context, res models.RemoteResource, opts SyncOptions) (reconcileOutcome, error) {
	local, err := e.assets.GetByPublicIDWithDeleted(ctx, res.PublicID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("load local asset: %w", err)
	}
	if errors.Is(err, sql.ErrNoRows) {
		local = nil
	}

	switch {
	case local == nil:
		if err := e.assets.Upsert(ctx, assetFromRemote(res)); err != nil {
			return "", err
		}
		return outcomeCreated, nil
	case local.Deleted():
		if !opts.IncludeDeleted {
			return outcomeSkipped, nil
		}
		if _, err := e.assets.Restore(ctx, res.PublicID); err != nil {
			return "", err
		}
		local.DeletedAt, local.DeletedBy = nil, nil
		applyRemote(local, res)
		if err := e.assets.Upsert(ctx, local); err != nil {
			return "", err
		}
		return outcomeRestored, nil
	case local.SyncStatus == models.SyncStatusPending:
		return outcomeSkipped, nil
	case opts.Force || hasChanged(local, res):
		applyRemote(local, res)
		if err := e.assets.Upsert(ctx, local); err != nil {
			return "", err
		}
		return outcomeUpdated, nil
	default:
		return outcomeUnchanged, nil
	}
}

// pushLocal sends pending local changes to the provider: soft-deleted rows are destroyed,
// metadata edits are written back. Each row is attempted at most once per run.
func (e *SyncEngine) pushLocal(ctx context.Context, t *operationTracker, opts SyncOptions) (SyncResult, error) {
	var result SyncResult
	attempted := make(map[string]struct{})
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		batch, err := e.assets.ListPendingSync(ctx, opts.BatchSize, opts.MaxRetries)
		if err != nil {
			return result, fmt.Errorf("list pending assets: %w", err)
		}
		fresh := 0
		for i := range batch {
			asset := batch[i]
			if _, done := attempted[asset.ID]; done {
				continue
			}
			attempted[asset.ID] = struct{}{}
			fresh++

			if err := e.pushAsset(ctx, &asset, opts); err != nil {
				result.fail(asset.PublicID, err)
				e.metrics.RecordSyncItem("local_to_remote", "error")
				continue
			}
			if asset.Deleted() {
				result.DeletedItems++
				e.metrics.RecordSyncItem("local_to_remote", "deleted")
			} else {
				result.SyncedItems++
				e.metrics.RecordSyncItem("local_to_remote", "pushed")
			}
		}
		t.advance(ctx, fresh, result.FailedItems)
		if fresh == 0 || len(batch) < opts.BatchSize {
			return result, nil
		}
	}
}

func (e *SyncEngine) pushAsset(ctx context.Context, asset *models.Asset, opts SyncOptions) error {
	unlock := e.locks.Lock(asset.PublicID)
	defer unlock()

	start := time.Now()
	operation := models.SyncLogUpdate
	var pushErr error
	var details models.JSONMap

	if asset.Deleted() {
		operation = models.SyncLogDelete
		var res *mediastore.DestroyResult
		if asset.ResourceType.Valid() {
			res, pushErr = e.remote.Destroy(ctx, asset.PublicID, asset.ResourceType)
		} else {
			res, pushErr = e.remote.DestroyAnyKind(ctx, asset.PublicID)
		}
		if pushErr == nil && !res.Succeeded() {
			pushErr = fmt.Errorf("provider answered %q", res.Result)
		}
		if res != nil {
			details = models.JSONMap{"result": res.Result}
		}
	} else {
		pushErr = e.remote.UpdateResource(ctx, asset.PublicID, asset.ResourceType, mediastore.ResourceUpdate{
			Tags:        asset.Tags,
			Description: asset.Description,
			AltText:     asset.AltText,
		})
		if errors.Is(pushErr, mediastore.ErrNotFound) {
			pushErr = errors.New("asset no longer exists at the provider")
		}
	}

	if pushErr != nil {
		msg := pushErr.Error()
		if _, err := e.assets.UpdateSyncStatus(ctx, asset.PublicID, models.SyncStatusError, &msg); err != nil {
			e.logger.Sugar().Errorw("record sync error failed", "public_id", asset.PublicID, "error", err)
		}
		e.writeLog(ctx, asset.PublicID, operation, opts.Source, pushErr, details, start)
		return pushErr
	}
	if _, err := e.assets.UpdateSyncStatus(ctx, asset.PublicID, models.SyncStatusSynced, nil); err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	e.writeLog(ctx, asset.PublicID, operation, opts.Source, nil, details, start)
	return nil
}

// sweepOrphans soft-deletes live rows whose provider copy is gone. Anything other than a clear
// not-found keeps the row.
func (e *SyncEngine) sweepOrphans(ctx context.Context, t *operationTracker, opts SyncOptions) (SyncResult, error) {
	var result SyncResult
	after := ""
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		batch, err := e.assets.ListActive(ctx, after, e.cfg.OrphanBatchSize)
		if err != nil {
			return result, fmt.Errorf("list active assets: %w", err)
		}
		for _, asset := range batch {
			after = asset.PublicID
			if !matchesFilter(asset, opts) {
				continue
			}
			orphan, err := e.isOrphan(ctx, asset)
			if err != nil {
				e.logger.Sugar().Warnw("orphan check inconclusive, keeping asset", "public_id", asset.PublicID, "error", err)
				continue
			}
			if !orphan {
				continue
			}
			if err := e.removeOrphan(ctx, asset.PublicID, opts); err != nil {
				result.fail(asset.PublicID, err)
				e.metrics.RecordSyncItem("orphans", "error")
				continue
			}
			result.DeletedItems++
			e.metrics.RecordSyncItem("orphans", "deleted")
		}
		t.advance(ctx, len(batch), result.FailedItems)
		if len(batch) < e.cfg.OrphanBatchSize {
			return result, nil
		}
	}
}

func (e *SyncEngine) isOrphan(ctx context.Context, asset models.Asset) (bool, error) {
	var err error
	if asset.ResourceType.Valid() {
		_, err = e.remote.Resource(ctx, asset.PublicID, asset.ResourceType)
	} else {
		_, err = e.remote.ResourceAnyKind(ctx, asset.PublicID)
	}
	if errors.Is(err, mediastore.ErrNotFound) {
		return true, nil
	}
	return false, err
}

func (e *SyncEngine) removeOrphan(ctx context.Context, publicID string, opts SyncOptions) error {
	unlock := e.locks.Lock(publicID)
	defer unlock()

	start := time.Now()
	deleted, err := e.assets.SoftDelete(ctx, publicID, models.ActorSystemOrphan)
	if err != nil {
		return err
	}
	if !deleted {
		return nil
	}
	if _, err := e.assets.UpdateSyncStatus(ctx, publicID, models.SyncStatusSynced, nil); err != nil {
		return fmt.Errorf("mark orphan synced: %w", err)
	}
	e.writeLog(ctx, publicID, models.SyncLogDelete, opts.Source, nil, models.JSONMap{"reason": "orphan"}, start)
	return nil
}

func matchesFilter(asset models.Asset, opts SyncOptions) bool {
	if opts.ResourceTypeFilter != "" && asset.ResourceType != opts.ResourceTypeFilter {
		return false
	}
	if opts.FolderFilter != "" {
		folder := strings.Trim(opts.FolderFilter, "/")
		if asset.Folder != folder && !strings.HasPrefix(asset.PublicID, folder+"/") {
			return false
		}
	}
	return true
}

func searchExpression(opts SyncOptions) string {
	parts := make([]string, 0, 2)
	if folder := strings.Trim(opts.FolderFilter, "/"); folder != "" {
		parts = append(parts, fmt.Sprintf(`folder:"%s/*"`, folder))
	}
	if opts.ResourceTypeFilter != "" {
		parts = append(parts, "resource_type:"+string(opts.ResourceTypeFilter))
	}
	return strings.Join(parts, " AND ")
}

// writeLog appends an audit entry. Failing to log never fails the operation.
func (e *SyncEngine) writeLog(ctx context.Context, publicID string, op models.SyncLogOperation, source models.SyncSource, opErr error, details models.JSONMap, start time.Time) {
	entry := &models.SyncLogEntry{
		PublicID:   publicID,
		Operation:  op,
		Source:     source,
		Status:     models.SyncLogSuccess,
		Details:    details,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if opErr != nil {
		msg := opErr.Error()
		entry.Status = models.SyncLogError
		entry.ErrorMessage = &msg
	}
	if err := e.logs.Create(context.WithoutCancel(ctx), entry); err != nil {
		e.logger.Sugar().Errorw("write sync log failed", "public_id", publicID, "operation", op, "error", err)
	}
}

// writeSkipped records an operation that found nothing to do.
func (e *SyncEngine) writeSkipped(ctx context.Context, publicID string, op models.SyncLogOperation, source models.SyncSource, reason string) {
	entry := &models.SyncLogEntry{
		PublicID:  publicID,
		Operation: op,
		Source:    source,
		Status:    models.SyncLogSkipped,
		Details:   models.JSONMap{"reason": reason},
	}
	if err := e.logs.Create(context.WithoutCancel(ctx), entry); err != nil {
		e.logger.Sugar().Errorw("write sync log failed", "public_id", publicID, "operation", op, "error", err)
	}
}
