package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/lgu-admin-api/internal/models"
	appErrors "github.com/noah-isme/lgu-admin-api/pkg/errors"
	"github.com/noah-isme/lgu-admin-api/pkg/jobs"
	"github.com/noah-isme/lgu-admin-api/pkg/mediastore"
)

func remoteAsset(publicID string, version int64, tags ...string) models.RemoteResource {
	return models.RemoteResource{
		PublicID:     publicID,
		ResourceType: models.ResourceImage,
		Format:       "jpg",
		Version:      version,
		Etag:         fmt.Sprintf("etag-%d", version),
		Bytes:        2048,
		Width:        640,
		Height:       480,
		Tags:         tags,
		URL:          "http://cdn.example.com/" + publicID,
		SecureURL:    "https://cdn.example.com/" + publicID,
		CreatedAt:    time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
	}
}

type engineFixture struct {
	engine *SyncEngine
	remote *stubRemote
	assets *memAssets
	logs   *memSyncLog
	ops    *memOperations
}

func newEngineFixture(resources ...models.RemoteResource) *engineFixture {
	f := &engineFixture{
		remote: newStubRemote(resources...),
		assets: &memAssets{},
		logs:   &memSyncLog{},
		ops:    newMemOperations(),
	}
	f.engine = NewSyncEngine(f.remote, f.assets, f.logs, f.ops, NewSyncBroadcaster(nil, "", zap.NewNop()), nil, nil,
		SyncEngineConfig{BatchSize: 2, OrphanBatchSize: 2, MaxRetries: 3}, zap.NewNop())
	return f
}

func (f *engineFixture) logCount() int {
	f.logs.mu.Lock()
	defer f.logs.mu.Unlock()
	return len(f.logs.entries)
}

func TestFullSyncLifecycle(t *testing.T) {
	f := newEngineFixture(remoteAsset("abc123", 1, "ordinance"))
	ctx := context.Background()

	_, err := f.engine.SyncSingleAsset(ctx, "abc123", models.ResourceImage, models.SyncSourceAdmin)
	require.NoError(t, err)

	result, err := f.engine.FullSync(ctx, SyncOptions{})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.SyncedItems)
	assert.Equal(t, 0, result.UpdatedItems)
	row := f.assets.row("abc123")
	require.NotNil(t, row)
	assert.Equal(t, models.SyncStatusSynced, row.SyncStatus)

	f.remote.put(remoteAsset("abc123", 2, "ordinance"))
	result, err = f.engine.FullSync(ctx, SyncOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.UpdatedItems)
	assert.Equal(t, int64(2), f.assets.row("abc123").Version)

	deleted, err := f.assets.SoftDelete(ctx, "abc123", "admin-1")
	require.NoError(t, err)
	require.True(t, deleted)

	result, err = f.engine.SyncLocalToRemote(ctx, SyncOptions{})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.DeletedItems)
	_, stillRemote := f.remote.resources["abc123"]
	assert.False(t, stillRemote)

	row = f.assets.row("abc123")
	require.NotNil(t, row.DeletedAt)
	assert.Equal(t, models.SyncStatusSynced, row.SyncStatus)
	assert.Len(t, f.logs.with(models.SyncLogSuccess, models.SyncLogDelete), 1)
}

func TestFullSyncUnchangedAssetWritesNoLog(t *testing.T) {
	f := newEngineFixture(remoteAsset("a", 1, "x", "y"), remoteAsset("b", 4))
	ctx := context.Background()

	first, err := f.engine.FullSync(ctx, SyncOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, first.CreatedItems)
	logged := f.logCount()

	second, err := f.engine.FullSync(ctx, SyncOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, second.SyncedItems)
	assert.Equal(t, 0, second.UpdatedItems)
	assert.Equal(t, 0, second.CreatedItems)
	assert.Equal(t, logged, f.logCount())
}

func TestSyncRemoteToLocalDetectsVersionConflict(t *testing.T) {
	f := newEngineFixture(remoteAsset("abc123", 2))
	f.assets.seed(*assetFromRemote(remoteAsset("abc123", 1)))

	result, err := f.engine.SyncRemoteToLocal(context.Background(), SyncOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.UpdatedItems)
	assert.Equal(t, int64(2), f.assets.row("abc123").Version)
	assert.Equal(t, "etag-2", f.assets.row("abc123").Signature)
	assert.Len(t, f.logs.with(models.SyncLogSuccess, models.SyncLogUpdate), 1)
}

func TestSyncRemoteToLocalIgnoresTagOrder(t *testing.T) {
	f := newEngineFixture(remoteAsset("abc123", 1, "a", "b"))
	local := assetFromRemote(remoteAsset("abc123", 1))
	local.Tags = []string{"b", "a"}
	f.assets.seed(*local)

	result, err := f.engine.SyncRemoteToLocal(context.Background(), SyncOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.UpdatedItems)
	assert.Equal(t, 1, result.SyncedItems)
}

func TestSyncRemoteToLocalForceRewritesUnchanged(t *testing.T) {
	f := newEngineFixture(remoteAsset("abc123", 1))
	f.assets.seed(*assetFromRemote(remoteAsset("abc123", 1)))

	result, err := f.engine.SyncRemoteToLocal(context.Background(), SyncOptions{Force: true})
	require.NoError(t, err)
	assert.Equal(t, 1, result.UpdatedItems)
}

func TestSyncRemoteToLocalLeavesPendingEdits(t *testing.T) {
	f := newEngineFixture(remoteAsset("abc123", 2))
	local := assetFromRemote(remoteAsset("abc123", 1))
	local.SyncStatus = models.SyncStatusPending
	local.Description = "edited locally"
	f.assets.seed(*local)

	result, err := f.engine.SyncRemoteToLocal(context.Background(), SyncOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.SkippedItems)
	row := f.assets.row("abc123")
	assert.Equal(t, int64(1), row.Version)
	assert.Equal(t, "edited locally", row.Description)
}

func TestSyncRemoteToLocalSoftDeletedRows(t *testing.T) {
	deletedAt := time.Now().Add(-time.Hour)
	seed := func(f *engineFixture) {
		local := assetFromRemote(remoteAsset("abc123", 1))
		local.DeletedAt = &deletedAt
		f.assets.seed(*local)
	}

	f := newEngineFixture(remoteAsset("abc123", 1))
	seed(f)
	result, err := f.engine.SyncRemoteToLocal(context.Background(), SyncOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.SkippedItems)
	assert.NotNil(t, f.assets.row("abc123").DeletedAt)

	f = newEngineFixture(remoteAsset("abc123", 1))
	seed(f)
	result, err = f.engine.SyncRemoteToLocal(context.Background(), SyncOptions{IncludeDeleted: true})
	require.NoError(t, err)
	assert.Equal(t, 1, result.UpdatedItems)
	assert.Nil(t, f.assets.row("abc123").DeletedAt)
	assert.Equal(t, 1, f.assets.count())
	assert.Len(t, f.logs.with(models.SyncLogSuccess, models.SyncLogRestore), 1)
}

func TestSyncRemoteToLocalPaginates(t *testing.T) {
	resources := make([]models.RemoteResource, 0, 5)
	for i := 0; i < 5; i++ {
		resources = append(resources, remoteAsset(fmt.Sprintf("lgu/docs/%d", i), 1))
	}
	f := newEngineFixture(resources...)

	result, err := f.engine.SyncRemoteToLocal(context.Background(), SyncOptions{})
	require.NoError(t, err)
	assert.Equal(t, 5, result.CreatedItems)
	assert.Equal(t, 5, f.assets.count())
	assert.Equal(t, "lgu/docs", f.assets.row("lgu/docs/3").Folder)
}

func TestSyncSearchFailureFailsOperation(t *testing.T) {
	f := newEngineFixture()
	f.remote.searchErr = &mediastore.APIError{StatusCode: 503, Message: "unavailable"}

	result, err := f.engine.FullSync(context.Background(), SyncOptions{})
	require.NoError(t, err)
	assert.False(t, result.Success)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "cloudinary_to_db")

	op := f.ops.get(result.OperationID)
	assert.Equal(t, models.SyncOpFailed, op.Status)
}

func TestFullSyncWalksStateMachine(t *testing.T) {
	f := newEngineFixture(remoteAsset("abc123", 1))

	result, err := f.engine.FullSync(context.Background(), SyncOptions{Actor: "admin-1"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, []models.SyncOperationStatus{
		models.SyncOpPending,
		models.SyncOpRemoteToDB,
		models.SyncOpDBToRemote,
		models.SyncOpCleanup,
		models.SyncOpCompleted,
	}, f.ops.statuses)

	op := f.ops.get(result.OperationID)
	assert.Equal(t, 100, op.Progress)
	assert.Equal(t, "admin-1", op.TriggeredBy)
	assert.Equal(t, 1, op.OperationData["created_items"])
}

func TestFullSyncRejectsConcurrentRun(t *testing.T) {
	f := newEngineFixture()
	f.engine.running.Store(true)

	_, err := f.engine.FullSync(context.Background(), SyncOptions{})
	require.ErrorIs(t, err, appErrors.ErrSyncInProgress)
	assert.True(t, f.engine.Running())
}

func TestFullSyncSurvivesMissingOperationRecord(t *testing.T) {
	f := newEngineFixture(remoteAsset("abc123", 1))
	f.ops.createErr = fmt.Errorf("database error")

	result, err := f.engine.FullSync(context.Background(), SyncOptions{})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.NotEmpty(t, result.OperationID)
	assert.Equal(t, 1, result.CreatedItems)
}

func TestSyncLocalToRemotePushesMetadata(t *testing.T) {
	f := newEngineFixture(remoteAsset("abc123", 1))
	local := assetFromRemote(remoteAsset("abc123", 1))
	local.SyncStatus = models.SyncStatusPending
	local.Tags = []string{"council", "2024"}
	local.Description = "Session minutes"
	local.AltText = "Council hall"
	f.assets.seed(*local)

	result, err := f.engine.SyncLocalToRemote(context.Background(), SyncOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.SyncedItems)

	update := f.remote.updates["abc123"]
	assert.Equal(t, []string{"council", "2024"}, update.Tags)
	assert.Equal(t, "Session minutes", update.Description)
	assert.Equal(t, "Council hall", update.AltText)
	assert.Equal(t, models.SyncStatusSynced, f.assets.row("abc123").SyncStatus)
}

func TestSyncLocalToRemoteDestroyFailureMarksError(t *testing.T) {
	f := newEngineFixture(remoteAsset("abc123", 1))
	f.remote.destroyErr["abc123"] = &mediastore.APIError{StatusCode: 500, Message: "boom"}
	f.assets.seed(*assetFromRemote(remoteAsset("abc123", 1)))
	_, err := f.assets.SoftDelete(context.Background(), "abc123", "admin-1")
	require.NoError(t, err)

	result, err := f.engine.SyncLocalToRemote(context.Background(), SyncOptions{})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 1, result.FailedItems)
	assert.Equal(t, 0, result.DeletedItems)

	row := f.assets.row("abc123")
	assert.Equal(t, models.SyncStatusError, row.SyncStatus)
	assert.Equal(t, 1, row.RetryCount)
	require.NotNil(t, row.SyncError)
	assert.Contains(t, *row.SyncError, "boom")
	assert.Len(t, f.logs.with(models.SyncLogError, models.SyncLogDelete), 1)
}

func TestSyncLocalToRemoteRetriesErroredRowsUntilCeiling(t *testing.T) {
	f := newEngineFixture(remoteAsset("abc123", 1))
	local := assetFromRemote(remoteAsset("abc123", 1))
	local.SyncStatus = models.SyncStatusError
	local.RetryCount = 3
	f.assets.seed(*local)

	result, err := f.engine.SyncLocalToRemote(context.Background(), SyncOptions{MaxRetries: 3})
	require.NoError(t, err)
	assert.Equal(t, 0, result.SyncedItems)

	result, err = f.engine.SyncLocalToRemote(context.Background(), SyncOptions{MaxRetries: 5})
	require.NoError(t, err)
	assert.Equal(t, 1, result.SyncedItems)
}

func TestCleanupOrphansKeepsAmbiguousAssets(t *testing.T) {
	f := newEngineFixture(remoteAsset("present", 1))
	f.assets.seed(
		*assetFromRemote(remoteAsset("present", 1)),
		*assetFromRemote(remoteAsset("gone", 1)),
		*assetFromRemote(remoteAsset("flaky", 1)),
	)
	f.remote.resourceErr["flaky"] = &mediastore.APIError{StatusCode: 500, Message: "upstream timeout"}

	result, err := f.engine.CleanupOrphans(context.Background(), SyncOptions{})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.DeletedItems)

	assert.NotNil(t, f.assets.row("gone").DeletedAt)
	assert.Equal(t, models.ActorSystemOrphan, *f.assets.row("gone").DeletedBy)
	assert.Nil(t, f.assets.row("flaky").DeletedAt)
	assert.Nil(t, f.assets.row("present").DeletedAt)
}

func TestCleanupOrphansHonoursFilters(t *testing.T) {
	f := newEngineFixture()
	video := assetFromRemote(remoteAsset("clips/intro", 1))
	video.ResourceType = models.ResourceVideo
	f.assets.seed(*assetFromRemote(remoteAsset("docs/a", 1)), *video)

	result, err := f.engine.CleanupOrphans(context.Background(), SyncOptions{ResourceTypeFilter: models.ResourceVideo})
	require.NoError(t, err)
	assert.Equal(t, 1, result.DeletedItems)
	assert.Nil(t, f.assets.row("docs/a").DeletedAt)
	assert.NotNil(t, f.assets.row("clips/intro").DeletedAt)
}

func TestSearchExpression(t *testing.T) {
	assert.Equal(t, "", searchExpression(SyncOptions{}))
	assert.Equal(t, `folder:"lgu/docs/*" AND resource_type:video`,
		searchExpression(SyncOptions{FolderFilter: "/lgu/docs/", ResourceTypeFilter: models.ResourceVideo}))
}

func TestSyncSingleAsset(t *testing.T) {
	f := newEngineFixture(remoteAsset("abc123", 3, "seal"))
	ctx := context.Background()

	asset, err := f.engine.SyncSingleAsset(ctx, "abc123", "", models.SyncSourceAdmin)
	require.NoError(t, err)
	assert.Equal(t, int64(3), asset.Version)
	assert.Equal(t, []string{"seal"}, []string(asset.Tags))
	assert.Len(t, f.logs.with(models.SyncLogSuccess, models.SyncLogUpload), 1)

	_, err = f.engine.SyncSingleAsset(ctx, "missing", models.ResourceImage, models.SyncSourceAdmin)
	require.ErrorIs(t, err, appErrors.ErrNotFound)

	f.remote.resourceErr["broken"] = &mediastore.APIError{StatusCode: 401, Message: "bad credentials"}
	_, err = f.engine.SyncSingleAsset(ctx, "broken", models.ResourceImage, models.SyncSourceAdmin)
	require.ErrorIs(t, err, appErrors.ErrRemoteUnavailable)

	result, err := f.engine.SyncAsset(ctx, "abc123", models.ResourceImage, models.SyncSourceAPI)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.SyncedItems)
}

func TestSyncSingleAssetKeepsPendingRow(t *testing.T) {
	f := newEngineFixture(remoteAsset("abc123", 2))
	local := assetFromRemote(remoteAsset("abc123", 1))
	local.SyncStatus = models.SyncStatusPending
	f.assets.seed(*local)

	asset, err := f.engine.SyncSingleAsset(context.Background(), "abc123", models.ResourceImage, models.SyncSourceAdmin)
	require.NoError(t, err)
	assert.Equal(t, int64(1), asset.Version)
	assert.Len(t, f.logs.with(models.SyncLogSkipped, models.SyncLogUpdate), 1)
}

func TestSyncEngineHandleJob(t *testing.T) {
	f := newEngineFixture(remoteAsset("abc123", 1))

	require.NoError(t, f.engine.HandleJob(context.Background(), jobs.Job{ID: "job-1", Type: JobTypeFullSync, Payload: SyncOptions{}}))
	assert.Equal(t, 1, f.assets.count())

	require.NoError(t, f.engine.HandleJob(context.Background(), jobs.Job{ID: "job-2", Type: JobTypeFullSync, Payload: "garbage"}))

	_, err := f.engine.EnqueueFullSync(SyncOptions{})
	require.Error(t, err)
}

func TestEnqueueFullSyncTracksJob(t *testing.T) {
	f := newEngineFixture(remoteAsset("abc123", 1))
	queue := jobs.NewQueue("media-sync", f.engine.HandleJob, jobs.QueueConfig{})
	f.engine.SetQueue(queue)
	queue.Start(context.Background())
	defer queue.Stop()

	id, err := f.engine.EnqueueFullSync(SyncOptions{Actor: "admin-1"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.Eventually(t, func() bool {
		st, err := f.engine.JobStatus(id)
		return err == nil && st.State == jobs.StateSucceeded
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, f.assets.count())

	_, err = f.engine.JobStatus("missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	locks := newKeyedMutex()
	unlock := locks.Lock("abc123")

	acquired := make(chan struct{})
	go func() {
		release := locks.Lock("abc123")
		close(acquired)
		release()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while first was held")
	case <-time.After(20 * time.Millisecond):
	}

	other := locks.Lock("other")
	other()

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second lock never acquired")
	}
	require.Eventually(t, func() bool {
		locks.mu.Lock()
		defer locks.mu.Unlock()
		return len(locks.locks) == 0
	}, time.Second, 5*time.Millisecond)
}
