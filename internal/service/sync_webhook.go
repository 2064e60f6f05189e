package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/noah-isme/lgu-admin-api/internal/models"
	appErrors "github.com/noah-isme/lgu-admin-api/pkg/errors"
	"github.com/noah-isme/lgu-admin-api/pkg/mediastore"
)

// SyncSingleAsset pulls one resource from the provider and mirrors it locally. Concurrent calls
// for the same public id share a single provider round trip.
func (e *SyncEngine) SyncSingleAsset(ctx context.Context, publicID string, kind models.ResourceKind, source models.SyncSource) (*models.Asset, error) {
	if publicID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "public_id is required")
	}
	// Joined callers must not fail because the first caller went away.
	shared := context.WithoutCancel(ctx)
	v, err, _ := e.single.Do(publicID, func() (interface{}, error) {
		remote, err := e.fetchRemote(shared, publicID, kind)
		if err != nil {
			return nil, err
		}
		return e.mirrorRemote(shared, *remote, models.SyncLogUpdate, source)
	})
	if err != nil {
		return nil, err
	}
	asset := *v.(*models.Asset)
	return &asset, nil
}

// SyncAsset runs SyncSingleAsset and reports it in the aggregate result shape of a sync run.
func (e *SyncEngine) SyncAsset(ctx context.Context, publicID string, kind models.ResourceKind, source models.SyncSource) (*SyncResult, error) {
	start := time.Now()
	if _, err := e.SyncSingleAsset(ctx, publicID, kind, source); err != nil {
		return nil, err
	}
	return &SyncResult{
		Success:     true,
		SyncedItems: 1,
		Errors:      []string{},
		DurationMs:  time.Since(start).Milliseconds(),
	}, nil
}

func (e *SyncEngine) fetchRemote(ctx context.Context, publicID string, kind models.ResourceKind) (*models.RemoteResource, error) {
	var (
		remote *models.RemoteResource
		err    error
	)
	if kind.Valid() {
		remote, err = e.remote.Resource(ctx, publicID, kind)
	} else {
		remote, err = e.remote.ResourceAnyKind(ctx, publicID)
	}
	switch {
	case errors.Is(err, mediastore.ErrNotFound):
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("asset %s not found at media provider", publicID))
	case err != nil:
		return nil, appErrors.Wrap(err, appErrors.ErrRemoteUnavailable.Code, appErrors.ErrRemoteUnavailable.Status, appErrors.ErrRemoteUnavailable.Message)
	}
	return remote, nil
}

// mirrorRemote upserts the live row for a remote resource under the asset lock and logs the result.
// A live row with unpushed local edits is returned untouched.
func (e *SyncEngine) mirrorRemote(ctx context.Context, remote models.RemoteResource, op models.SyncLogOperation, source models.SyncSource) (*models.Asset, error) {
	unlock := e.locks.Lock(remote.PublicID)
	defer unlock()

	start := time.Now()
	local, err := e.assets.GetByPublicID(ctx, remote.PublicID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		local = assetFromRemote(remote)
		if op == models.SyncLogUpdate {
			op = models.SyncLogUpload
		}
	case err != nil:
		return nil, appErrors.Database(err, "")
	case local.SyncStatus == models.SyncStatusPending:
		e.writeSkipped(ctx, remote.PublicID, op, source, "local changes pending push")
		return local, nil
	default:
		applyRemote(local, remote)
	}

	if err := e.assets.Upsert(ctx, local); err != nil {
		e.writeLog(ctx, remote.PublicID, op, source, err, nil, start)
		return nil, appErrors.Database(err, "")
	}
	e.writeLog(ctx, remote.PublicID, op, source, nil, models.JSONMap{"version": remote.Version}, start)
	e.broadcaster.Publish(ctx, SyncEvent{Type: EventAssetSynced, PublicID: remote.PublicID, Message: string(op)})
	e.cache.InvalidateMedia(context.WithoutCancel(ctx))
	return local, nil
}

// ReconcileRemoteDeletion removes the local rows of an asset the provider no longer has. Unlike an
// admin deletion nothing is queued: the remote copy is already gone.
func (e *SyncEngine) ReconcileRemoteDeletion(ctx context.Context, publicID string, source models.SyncSource) (int, error) {
	unlock := e.locks.Lock(publicID)
	defer unlock()

	start := time.Now()
	removed, err := e.assets.HardDelete(ctx, publicID)
	if err != nil {
		e.writeLog(ctx, publicID, models.SyncLogDelete, source, err, nil, start)
		return 0, appErrors.Database(err, "")
	}
	if removed == 0 {
		e.writeSkipped(ctx, publicID, models.SyncLogDelete, source, "no local rows")
		return 0, nil
	}
	e.writeLog(ctx, publicID, models.SyncLogDelete, source, nil, models.JSONMap{"rows": removed}, start)
	e.broadcaster.Publish(ctx, SyncEvent{Type: EventAssetSynced, PublicID: publicID, Message: "deleted"})
	e.cache.InvalidateMedia(context.WithoutCancel(ctx))
	return removed, nil
}

// RestoreFromRemote brings back a soft-deleted row after the provider restored the asset and
// refreshes it from the provider copy.
func (e *SyncEngine) RestoreFromRemote(ctx context.Context, publicID string, kind models.ResourceKind, source models.SyncSource) (*models.Asset, error) {
	remote, err := e.fetchRemote(ctx, publicID, kind)
	if err != nil {
		e.writeLog(ctx, publicID, models.SyncLogRestore, source, err, nil, time.Now())
		return nil, err
	}

	unlock := e.locks.Lock(publicID)
	start := time.Now()
	restored, err := e.assets.Restore(ctx, publicID)
	unlock()
	if err != nil {
		e.writeLog(ctx, publicID, models.SyncLogRestore, source, err, nil, start)
		return nil, appErrors.Database(err, "")
	}
	if !restored {
		e.logger.Sugar().Infow("no deleted row to restore, mirroring remote copy", "public_id", publicID)
	}
	return e.mirrorRemote(ctx, *remote, models.SyncLogRestore, source)
}

// HandleWebhook applies a parsed provider notification. Every touched asset is attempted; the
// returned error joins the individual failures.
func (e *SyncEngine) HandleWebhook(ctx context.Context, n models.WebhookNotification) error {
	var err error
	switch v := n.(type) {
	case *models.UploadNotification:
		_, err = e.mirrorRemote(ctx, v.Resource, models.SyncLogUpload, models.SyncSourceWebhook)
	case *models.UpdateNotification:
		err = e.applyUpdate(ctx, v)
	case *models.DeleteNotification:
		errs := make([]error, 0, len(v.Targets))
		for _, target := range v.Targets {
			if _, derr := e.ReconcileRemoteDeletion(ctx, target.PublicID, models.SyncSourceWebhook); derr != nil {
				errs = append(errs, fmt.Errorf("%s: %w", target.PublicID, derr))
			}
		}
		err = errors.Join(errs...)
	case *models.RestoreNotification:
		errs := make([]error, 0, len(v.Targets))
		for _, target := range v.Targets {
			if _, rerr := e.RestoreFromRemote(ctx, target.PublicID, target.ResourceType, models.SyncSourceWebhook); rerr != nil {
				errs = append(errs, fmt.Errorf("%s: %w", target.PublicID, rerr))
			}
		}
		err = errors.Join(errs...)
	default:
		err = fmt.Errorf("%w: %T", models.ErrUnsupportedNotification, n)
	}

	kind := "unknown"
	if n != nil {
		kind = string(n.Kind())
	}
	e.metrics.RecordWebhook(kind, err)
	event := SyncEvent{Type: EventWebhookProcessed, Message: kind, Data: map[string]interface{}{}}
	if n != nil {
		event.Data["public_ids"] = n.PublicIDs()
	}
	if err != nil {
		event.Data["error"] = err.Error()
	}
	e.broadcaster.Publish(ctx, event)
	return err
}

func (e *SyncEngine) applyUpdate(ctx context.Context, n *models.UpdateNotification) error {
	publicID := n.Ref.PublicID
	unlock := e.locks.Lock(publicID)
	defer unlock()

	start := time.Now()
	local, err := e.assets.GetByPublicID(ctx, publicID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		kind := n.Ref.ResourceType
		if !kind.Valid() {
			kind = models.ResourceImage
		}
		local = &models.Asset{PublicID: publicID, ResourceType: kind, Folder: folderOf(publicID)}
	case err != nil:
		e.writeLog(ctx, publicID, models.SyncLogUpdate, models.SyncSourceWebhook, err, nil, start)
		return appErrors.Database(err, "")
	}

	var details models.JSONMap
	if local.SyncStatus == models.SyncStatusPending {
		// The row stays pending so the next push still sends the local edit.
		applyProviderPatch(local, n.Patch)
		details = models.JSONMap{"kept_local_changes": true}
	} else {
		applyPatch(local, n.Patch)
	}
	if err := e.assets.Upsert(ctx, local); err != nil {
		e.writeLog(ctx, publicID, models.SyncLogUpdate, models.SyncSourceWebhook, err, nil, start)
		return appErrors.Database(err, "")
	}
	e.writeLog(ctx, publicID, models.SyncLogUpdate, models.SyncSourceWebhook, nil, details, start)
	e.broadcaster.Publish(ctx, SyncEvent{Type: EventAssetSynced, PublicID: publicID, Message: string(models.SyncLogUpdate)})
	e.cache.InvalidateMedia(context.WithoutCancel(ctx))
	return nil
}

// SimulateWebhook replays a notification for one asset on behalf of an admin. Upload and update
// fetch the current provider copy instead of trusting a payload.
func (e *SyncEngine) SimulateWebhook(ctx context.Context, publicID string, action models.NotificationKind, kind models.ResourceKind, actor string) error {
	e.logger.Sugar().Infow("simulating webhook", "public_id", publicID, "action", action, "actor_id", actor)
	var err error
	switch action {
	case models.NotificationUpload, models.NotificationUpdate:
		_, err = e.SyncSingleAsset(ctx, publicID, kind, models.SyncSourceAdmin)
	case models.NotificationDelete:
		_, err = e.ReconcileRemoteDeletion(ctx, publicID, models.SyncSourceAdmin)
	case models.NotificationRestore:
		_, err = e.RestoreFromRemote(ctx, publicID, kind, models.SyncSourceAdmin)
	default:
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported action %q", action))
	}
	e.metrics.RecordWebhook("simulated_"+string(action), err)
	return err
}

// RecordRejectedWebhook logs a notification that could not be parsed or applied.
func (e *SyncEngine) RecordRejectedWebhook(ctx context.Context, publicID string, kind models.NotificationKind, reason error) {
	if publicID == "" {
		publicID = "unknown"
	}
	op := models.SyncLogUpdate
	switch kind {
	case models.NotificationUpload:
		op = models.SyncLogUpload
	case models.NotificationDelete:
		op = models.SyncLogDelete
	case models.NotificationRestore:
		op = models.SyncLogRestore
	}
	details := models.JSONMap{"notification_type": string(kind)}
	e.writeLog(ctx, publicID, op, models.SyncSourceWebhook, reason, details, time.Now())
	e.metrics.RecordWebhook("rejected", reason)
}
