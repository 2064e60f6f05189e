package handler

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lgu-admin-api/internal/models"
	"github.com/noah-isme/lgu-admin-api/internal/service"
	appErrors "github.com/noah-isme/lgu-admin-api/pkg/errors"
	"github.com/noah-isme/lgu-admin-api/pkg/jobs"
)

type syncRunnerMock struct {
	runOpts     []service.SyncOptions
	runResult   *service.SyncResult
	runErr      error
	enqueued    []service.SyncOptions
	enqueueErr  error
	singleID    string
	singleKind  models.ResourceKind
	singleError error
}

func (m *syncRunnerMock) Run(ctx context.Context, opts service.SyncOptions) (*service.SyncResult, error) {
	m.runOpts = append(m.runOpts, opts)
	if m.runErr != nil {
		return nil, m.runErr
	}
	if m.runResult != nil {
		return m.runResult, nil
	}
	return &service.SyncResult{OperationID: "op-1", Success: true, Errors: []string{}}, nil
}

func (m *syncRunnerMock) EnqueueFullSync(opts service.SyncOptions) (string, error) {
	m.enqueued = append(m.enqueued, opts)
	return "job-1", m.enqueueErr
}

func (m *syncRunnerMock) JobStatus(id string) (*jobs.Status, error) {
	if id != "job-1" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "sync job not found")
	}
	return &jobs.Status{ID: id, Type: service.JobTypeFullSync, State: jobs.StateRunning, Attempts: 1}, nil
}

func (m *syncRunnerMock) SyncAsset(ctx context.Context, publicID string, kind models.ResourceKind, source models.SyncSource) (*service.SyncResult, error) {
	m.singleID = publicID
	m.singleKind = kind
	if m.singleError != nil {
		return nil, m.singleError
	}
	return &service.SyncResult{Success: true, SyncedItems: 1, UpdatedItems: 1, Errors: []string{}}, nil
}

type logReaderStub struct {
	entries []models.SyncLogEntry
	filter  models.SyncLogFilter
}

func (s *logReaderStub) List(ctx context.Context, filter models.SyncLogFilter) ([]models.SyncLogEntry, int, error) {
	s.filter = filter
	start := (filter.Page - 1) * filter.Limit
	if start > len(s.entries) {
		start = len(s.entries)
	}
	end := start + filter.Limit
	if end > len(s.entries) {
		end = len(s.entries)
	}
	return s.entries[start:end], len(s.entries), nil
}

type operationReaderStub struct {
	ops map[string]models.SyncOperation
}

func (s *operationReaderStub) GetByID(ctx context.Context, id string) (*models.SyncOperation, error) {
	op, ok := s.ops[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &op, nil
}

func (s *operationReaderStub) ListRecent(ctx context.Context, kind models.SyncOperationKind, limit int) ([]models.SyncOperation, error) {
	out := make([]models.SyncOperation, 0, len(s.ops))
	for _, op := range s.ops {
		out = append(out, op)
	}
	return out, nil
}

type syncHandlerFixture struct {
	handler     *SyncHandler
	runner      *syncRunnerMock
	logs        *logReaderStub
	broadcaster *service.SyncBroadcaster
}

func newSyncHandlerFixture() *syncHandlerFixture {
	runner := &syncRunnerMock{}
	logs := &logReaderStub{}
	for i, id := range []string{"a", "b", "c"} {
		logs.entries = append(logs.entries, models.SyncLogEntry{
			ID:        "log-" + id,
			PublicID:  id,
			Operation: models.SyncLogUpload,
			Source:    models.SyncSourceWebhook,
			Status:    models.SyncLogSuccess,
			CreatedAt: time.Date(2024, 6, 1, 8, 0, i, 0, time.UTC),
		})
	}
	ops := &operationReaderStub{ops: map[string]models.SyncOperation{
		"op-9": {ID: "op-9", Kind: models.SyncKindFull, Status: models.SyncOpCompleted, Progress: 100, StartedAt: time.Now().UTC()},
	}}
	broadcaster := service.NewSyncBroadcaster(nil, "", nil)
	audit := service.NewSyncAuditService(logs, ops, broadcaster, 0, nil)
	return &syncHandlerFixture{
		handler:     NewSyncHandler(runner, audit, broadcaster, time.Second, nil),
		runner:      runner,
		logs:        logs,
		broadcaster: broadcaster,
	}
}

func TestSyncHandlerRunsFullSyncByDefault(t *testing.T) {
	f := newSyncHandlerFixture()

	c, w := newTestContext(http.MethodPost, "/api/v1/sync", nil, adminClaims())
	f.handler.Sync(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, f.runner.runOpts, 1)
	opts := f.runner.runOpts[0]
	assert.Equal(t, service.SyncModeFull, opts.Mode)
	assert.Equal(t, "admin-1", opts.Actor)
	assert.Equal(t, models.SyncSourceAdmin, opts.Source)

	var result service.SyncResult
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &result))
	assert.Equal(t, "op-1", result.OperationID)
}

func TestSyncHandlerPassesOptions(t *testing.T) {
	f := newSyncHandlerFixture()

	body := `{"mode":"orphans","force":true,"batch_size":25,"folder_filter":"lgu/news","resource_type_filter":"video"}`
	c, w := newTestContext(http.MethodPost, "/api/v1/sync", []byte(body), adminClaims())
	f.handler.Sync(c)

	require.Equal(t, http.StatusOK, w.Code)
	opts := f.runner.runOpts[0]
	assert.Equal(t, service.SyncModeOrphans, opts.Mode)
	assert.True(t, opts.Force)
	assert.Equal(t, 25, opts.BatchSize)
	assert.Equal(t, "lgu/news", opts.FolderFilter)
	assert.Equal(t, models.ResourceVideo, opts.ResourceTypeFilter)
}

func TestSyncHandlerRejectsInvalidPayload(t *testing.T) {
	f := newSyncHandlerFixture()

	c, w := newTestContext(http.MethodPost, "/api/v1/sync", []byte(`{"mode":"sideways"}`), adminClaims())
	f.handler.Sync(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newTestContext(http.MethodPost, "/api/v1/sync", []byte(`{"batch_size":5000}`), adminClaims())
	f.handler.Sync(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, f.runner.runOpts)
}

func TestSyncHandlerConflictWhileRunning(t *testing.T) {
	f := newSyncHandlerFixture()
	f.runner.runErr = appErrors.ErrSyncInProgress

	c, w := newTestContext(http.MethodPost, "/api/v1/sync", []byte(`{}`), adminClaims())
	f.handler.Sync(c)

	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, appErrors.ErrSyncInProgress.Code, decodeEnvelope(t, w).Error.Code)
}

func TestSyncHandlerAsyncQueuesJob(t *testing.T) {
	f := newSyncHandlerFixture()

	c, w := newTestContext(http.MethodPost, "/api/v1/sync", []byte(`{"async":true,"mode":"remote_to_local"}`), adminClaims())
	f.handler.Sync(c)

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Empty(t, f.runner.runOpts)
	require.Len(t, f.runner.enqueued, 1)
	assert.Equal(t, service.SyncModeRemoteToLocal, f.runner.enqueued[0].Mode)
	assert.Contains(t, w.Body.String(), `"job_id":"job-1"`)
}

func TestSyncHandlerSingleAsset(t *testing.T) {
	f := newSyncHandlerFixture()

	c, w := newTestContext(http.MethodPost, "/api/v1/sync", []byte(`{"single_asset":"lgu/news/flood","resource_type_filter":"image"}`), adminClaims())
	f.handler.Sync(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "lgu/news/flood", f.runner.singleID)
	assert.Equal(t, models.ResourceImage, f.runner.singleKind)
	assert.Empty(t, f.runner.runOpts)

	f.runner.singleError = appErrors.Clone(appErrors.ErrNotFound, "asset not found at provider")
	c, w = newTestContext(http.MethodPost, "/api/v1/sync", []byte(`{"single_asset":"missing"}`), adminClaims())
	f.handler.Sync(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSyncHandlerLogs(t *testing.T) {
	f := newSyncHandlerFixture()

	c, w := newTestContext(http.MethodGet, "/api/v1/sync/logs?status=success&limit=2&page=1", nil, adminClaims())
	f.handler.Logs(c)

	require.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 3, env.Pagination.TotalCount)
	assert.True(t, env.Pagination.HasNext)
	assert.Equal(t, models.SyncLogSuccess, f.logs.filter.Status)

	c, w = newTestContext(http.MethodGet, "/api/v1/sync/logs?status=maybe", nil, adminClaims())
	f.handler.Logs(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSyncHandlerExportLogsCSV(t *testing.T) {
	f := newSyncHandlerFixture()

	c, w := newTestContext(http.MethodGet, "/api/v1/sync/logs/export", nil, adminClaims())
	f.handler.ExportLogs(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment; filename=")
	records, err := csv.NewReader(strings.NewReader(w.Body.String())).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 4)

	c, w = newTestContext(http.MethodGet, "/api/v1/sync/logs/export?format=xlsx", nil, adminClaims())
	f.handler.ExportLogs(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSyncHandlerOperations(t *testing.T) {
	f := newSyncHandlerFixture()

	c, w := newTestContext(http.MethodGet, "/api/v1/sync/operations", nil, adminClaims())
	f.handler.Operations(c)
	require.Equal(t, http.StatusOK, w.Code)

	c, w = newTestContext(http.MethodGet, "/api/v1/sync/operations/op-9", nil, adminClaims())
	c.Params = gin.Params{{Key: "id", Value: "op-9"}}
	f.handler.Operation(c)
	require.Equal(t, http.StatusOK, w.Code)

	c, w = newTestContext(http.MethodGet, "/api/v1/sync/operations/nope", nil, adminClaims())
	c.Params = gin.Params{{Key: "id", Value: "nope"}}
	f.handler.Operation(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSyncHandlerLiveOperation(t *testing.T) {
	f := newSyncHandlerFixture()

	c, w := newTestContext(http.MethodGet, "/api/v1/sync/operations/op-9/live", nil, adminClaims())
	c.Params = gin.Params{{Key: "id", Value: "op-9"}}
	f.handler.LiveOperation(c)

	require.Equal(t, http.StatusOK, w.Code)
	var event service.SyncEvent
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &event))
	assert.Equal(t, service.EventSyncCompleted, event.Type)
	assert.Equal(t, 100, event.Progress)
}

type eventSourceStub struct {
	events       chan service.SyncEvent
	unsubscribed bool
}

func (s *eventSourceStub) Subscribe() (<-chan service.SyncEvent, func()) {
	return s.events, func() { s.unsubscribed = true }
}

// closeNotifyingRecorder satisfies the CloseNotifier gin's Stream expects.
type closeNotifyingRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func (r *closeNotifyingRecorder) CloseNotify() <-chan bool { return r.closed }

func TestSyncHandlerEventsStreamsUntilClosed(t *testing.T) {
	gin.SetMode(gin.TestMode)
	source := &eventSourceStub{events: make(chan service.SyncEvent, 2)}
	source.events <- service.SyncEvent{Type: service.EventSyncStarted, OperationID: "op-1"}
	source.events <- service.SyncEvent{Type: service.EventSyncCompleted, OperationID: "op-1", Progress: 100}
	close(source.events)

	h := NewSyncHandler(&syncRunnerMock{}, nil, source, time.Hour, nil)
	w := &closeNotifyingRecorder{ResponseRecorder: httptest.NewRecorder(), closed: make(chan bool, 1)}
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/sync/events", nil)

	h.Events(c)

	body := w.Body.String()
	assert.Contains(t, body, "event:sync.started")
	assert.Contains(t, body, "event:sync.completed")
	assert.Contains(t, body, `"operation_id":"op-1"`)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.True(t, source.unsubscribed)
}

func TestSyncHandlerJobStatus(t *testing.T) {
	h := newSyncHandlerFixture().handler

	c, w := newTestContext(http.MethodGet, "/api/v1/sync/jobs/job-1", nil, adminClaims())
	c.Params = gin.Params{{Key: "id", Value: "job-1"}}
	h.Job(c)
	require.Equal(t, http.StatusOK, w.Code)

	var st jobs.Status
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &st))
	assert.Equal(t, jobs.StateRunning, st.State)

	c, w = newTestContext(http.MethodGet, "/api/v1/sync/jobs/nope", nil, adminClaims())
	c.Params = gin.Params{{Key: "id", Value: "nope"}}
	h.Job(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
