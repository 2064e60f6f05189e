package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lgu-admin-api/internal/models"
	appErrors "github.com/noah-isme/lgu-admin-api/pkg/errors"
)

func TestHandleWebhookUploadUsesPayload(t *testing.T) {
	f := newEngineFixture()
	events, unsubscribe := f.engine.broadcaster.Subscribe()
	defer unsubscribe()

	err := f.engine.HandleWebhook(context.Background(), &models.UploadNotification{Resource: remoteAsset("lgu/news/banner", 1, "news")})
	require.NoError(t, err)

	assert.Equal(t, 0, f.remote.lookups)
	row := f.assets.row("lgu/news/banner")
	require.NotNil(t, row)
	assert.Equal(t, "lgu/news", row.Folder)
	assert.Equal(t, models.SyncStatusSynced, row.SyncStatus)

	logged := f.logs.with(models.SyncLogSuccess, models.SyncLogUpload)
	require.Len(t, logged, 1)
	assert.Equal(t, models.SyncSourceWebhook, logged[0].Source)

	var types []SyncEventType
	for len(events) > 0 {
		types = append(types, (<-events).Type)
	}
	assert.Contains(t, types, EventAssetSynced)
	assert.Contains(t, types, EventWebhookProcessed)
}

func TestHandleWebhookUpdateAppliesOnlySentFields(t *testing.T) {
	f := newEngineFixture()
	local := assetFromRemote(remoteAsset("abc123", 1, "old"))
	local.Description = "kept"
	f.assets.seed(*local)

	tags := []string{"fresh", "fresh", " council "}
	version := int64(5)
	err := f.engine.HandleWebhook(context.Background(), &models.UpdateNotification{
		Ref:   models.ResourceRef{PublicID: "abc123", ResourceType: models.ResourceImage},
		Patch: models.AssetPatch{Tags: &tags, Version: &version},
	})
	require.NoError(t, err)

	row := f.assets.row("abc123")
	assert.Equal(t, []string{"council", "fresh"}, []string(row.Tags))
	assert.Equal(t, int64(5), row.Version)
	assert.Equal(t, "kept", row.Description)
	assert.Equal(t, int64(2048), row.Bytes)
	assert.Len(t, f.logs.with(models.SyncLogSuccess, models.SyncLogUpdate), 1)
}

func TestHandleWebhookUpdateKeepsUnpushedEdits(t *testing.T) {
	f := newEngineFixture(remoteAsset("abc123", 1))
	local := assetFromRemote(remoteAsset("abc123", 1))
	local.SyncStatus = models.SyncStatusPending
	local.Description = "edited locally"
	local.Tags = []string{"council"}
	f.assets.seed(*local)

	version := int64(2)
	bytes := int64(4096)
	providerTags := []string{"stale"}
	providerCaption := "provider caption"
	err := f.engine.HandleWebhook(context.Background(), &models.UpdateNotification{
		Ref:   models.ResourceRef{PublicID: "abc123", ResourceType: models.ResourceImage},
		Patch: models.AssetPatch{Version: &version, Bytes: &bytes, Tags: &providerTags, Description: &providerCaption},
	})
	require.NoError(t, err)

	row := f.assets.row("abc123")
	assert.Equal(t, models.SyncStatusPending, row.SyncStatus)
	assert.Equal(t, int64(2), row.Version)
	assert.Equal(t, int64(4096), row.Bytes)
	assert.Equal(t, "edited locally", row.Description)
	assert.Equal(t, []string{"council"}, []string(row.Tags))
	logged := f.logs.with(models.SyncLogSuccess, models.SyncLogUpdate)
	require.Len(t, logged, 1)
	assert.Equal(t, true, logged[0].Details["kept_local_changes"])

	result, err := f.engine.SyncLocalToRemote(context.Background(), SyncOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.SyncedItems)
	assert.Equal(t, "edited locally", f.remote.updates["abc123"].Description)
	assert.Equal(t, []string{"council"}, f.remote.updates["abc123"].Tags)
	assert.Equal(t, models.SyncStatusSynced, f.assets.row("abc123").SyncStatus)
}

func TestHandleWebhookUpdateCreatesMissingRow(t *testing.T) {
	f := newEngineFixture()
	url := "https://cdn.example.com/raw/permit.pdf"
	err := f.engine.HandleWebhook(context.Background(), &models.UpdateNotification{
		Ref:   models.ResourceRef{PublicID: "permits/permit", ResourceType: models.ResourceRaw},
		Patch: models.AssetPatch{SecureURL: &url},
	})
	require.NoError(t, err)

	row := f.assets.row("permits/permit")
	require.NotNil(t, row)
	assert.Equal(t, models.ResourceRaw, row.ResourceType)
	assert.Equal(t, url, row.SecureURL)
	assert.Equal(t, "permits", row.Folder)
}

func TestHandleWebhookDeleteRemovesEveryRow(t *testing.T) {
	f := newEngineFixture()
	deletedAt := time.Now().Add(-24 * time.Hour)
	old := assetFromRemote(remoteAsset("abc123", 1))
	old.DeletedAt = &deletedAt
	f.assets.seed(*old, *assetFromRemote(remoteAsset("abc123", 2)), *assetFromRemote(remoteAsset("other", 1)))

	err := f.engine.HandleWebhook(context.Background(), &models.DeleteNotification{Targets: []models.ResourceRef{
		{PublicID: "abc123"},
		{PublicID: "never-mirrored"},
	}})
	require.NoError(t, err)

	assert.Nil(t, f.assets.row("abc123"))
	assert.NotNil(t, f.assets.row("other"))
	assert.Equal(t, 1, f.assets.count())
	assert.Len(t, f.logs.with(models.SyncLogSuccess, models.SyncLogDelete), 1)
	skipped := f.logs.with(models.SyncLogSkipped, models.SyncLogDelete)
	require.Len(t, skipped, 1)
	assert.Equal(t, "never-mirrored", skipped[0].PublicID)
	assert.Empty(t, f.remote.destroyed)
}

func TestHandleWebhookRestore(t *testing.T) {
	f := newEngineFixture(remoteAsset("abc123", 3))
	deletedAt := time.Now().Add(-time.Hour)
	local := assetFromRemote(remoteAsset("abc123", 1))
	local.DeletedAt = &deletedAt
	f.assets.seed(*local)

	err := f.engine.HandleWebhook(context.Background(), &models.RestoreNotification{Targets: []models.ResourceRef{
		{PublicID: "abc123", ResourceType: models.ResourceImage},
	}})
	require.NoError(t, err)

	row := f.assets.row("abc123")
	assert.Nil(t, row.DeletedAt)
	assert.Equal(t, int64(3), row.Version)
	assert.Equal(t, 1, f.assets.count())
	assert.Len(t, f.logs.with(models.SyncLogSuccess, models.SyncLogRestore), 1)
}

func TestHandleWebhookRestoreJoinsFailures(t *testing.T) {
	f := newEngineFixture(remoteAsset("present", 1))

	err := f.engine.HandleWebhook(context.Background(), &models.RestoreNotification{Targets: []models.ResourceRef{
		{PublicID: "missing", ResourceType: models.ResourceImage},
		{PublicID: "present", ResourceType: models.ResourceImage},
	}})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.Contains(t, err.Error(), "missing")
	assert.NotNil(t, f.assets.row("present"))
	assert.Len(t, f.logs.with(models.SyncLogError, models.SyncLogRestore), 1)
}

func TestHandleWebhookUnsupported(t *testing.T) {
	f := newEngineFixture()
	err := f.engine.HandleWebhook(context.Background(), nil)
	assert.ErrorIs(t, err, models.ErrUnsupportedNotification)
}

func TestSimulateWebhookFetchesProviderCopy(t *testing.T) {
	f := newEngineFixture(remoteAsset("abc123", 7))
	ctx := context.Background()

	require.NoError(t, f.engine.SimulateWebhook(ctx, "abc123", models.NotificationUpload, models.ResourceImage, "admin-1"))
	assert.Equal(t, 1, f.remote.lookups)
	assert.Equal(t, int64(7), f.assets.row("abc123").Version)
	logged := f.logs.with(models.SyncLogSuccess, models.SyncLogUpload)
	require.Len(t, logged, 1)
	assert.Equal(t, models.SyncSourceAdmin, logged[0].Source)

	require.NoError(t, f.engine.SimulateWebhook(ctx, "abc123", models.NotificationDelete, "", "admin-1"))
	assert.Nil(t, f.assets.row("abc123"))

	err := f.engine.SimulateWebhook(ctx, "abc123", models.NotificationKind("rename"), "", "admin-1")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestSyncSingleAssetSharesConcurrentLookups(t *testing.T) {
	f := newEngineFixture(remoteAsset("abc123", 1))
	f.remote.lookupDelay = 50 * time.Millisecond

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := f.engine.SyncSingleAsset(context.Background(), "abc123", models.ResourceImage, models.SyncSourceAdmin)
			errs <- err
		}()
	}
	require.NoError(t, <-errs)
	require.NoError(t, <-errs)
	assert.LessOrEqual(t, f.remote.lookups, 2)
	assert.Equal(t, 1, f.assets.count())
}

func TestSyncSingleAssetOutlivesFirstCaller(t *testing.T) {
	f := newEngineFixture(remoteAsset("abc123", 1))
	f.remote.lookupDelay = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := f.engine.SyncSingleAsset(ctx, "abc123", models.ResourceImage, models.SyncSourceAdmin)
		first <- err
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()

	asset, err := f.engine.SyncSingleAsset(context.Background(), "abc123", models.ResourceImage, models.SyncSourceAdmin)
	require.NoError(t, err)
	assert.Equal(t, int64(1), asset.Version)
	require.NoError(t, <-first)
	assert.NotNil(t, f.assets.row("abc123"))
}

func TestRecordRejectedWebhook(t *testing.T) {
	f := newEngineFixture()
	f.engine.RecordRejectedWebhook(context.Background(), "", models.NotificationDelete, models.ErrMalformedNotification)

	logged := f.logs.with(models.SyncLogError, models.SyncLogDelete)
	require.Len(t, logged, 1)
	assert.Equal(t, "unknown", logged[0].PublicID)
	assert.Equal(t, models.SyncSourceWebhook, logged[0].Source)
	assert.Equal(t, "delete", logged[0].Details["notification_type"])
}
