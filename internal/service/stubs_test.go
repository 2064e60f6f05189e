package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/lgu-admin-api/internal/models"
	"github.com/noah-isme/lgu-admin-api/pkg/mediastore"
)

type stubRemote struct {
	mu          sync.Mutex
	resources   map[string]models.RemoteResource
	searchErr   error
	resourceErr map[string]error
	destroyErr  map[string]error
	updateErr   map[string]error
	destroyed   []string
	updates     map[string]mediastore.ResourceUpdate
	lookups     int
	lookupDelay time.Duration
}

func newStubRemote(resources ...models.RemoteResource) *stubRemote {
	r := &stubRemote{
		resources:   make(map[string]models.RemoteResource),
		resourceErr: make(map[string]error),
		destroyErr:  make(map[string]error),
		updateErr:   make(map[string]error),
		updates:     make(map[string]mediastore.ResourceUpdate),
	}
	for _, res := range resources {
		r.resources[res.PublicID] = res
	}
	return r
}

func (r *stubRemote) put(res models.RemoteResource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resources[res.PublicID] = res
}

func (r *stubRemote) Destroy(ctx context.Context, publicID string, kind models.ResourceKind) (*mediastore.DestroyResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.destroyErr[publicID]; err != nil {
		return nil, err
	}
	r.destroyed = append(r.destroyed, publicID)
	if _, ok := r.resources[publicID]; !ok {
		return &mediastore.DestroyResult{Result: mediastore.DestroyNotFound}, nil
	}
	delete(r.resources, publicID)
	return &mediastore.DestroyResult{Result: mediastore.DestroyOK}, nil
}

func (r *stubRemote) DestroyAnyKind(ctx context.Context, publicID string) (*mediastore.DestroyResult, error) {
	return r.Destroy(ctx, publicID, "")
}

func (r *stubRemote) SearchAll(ctx context.Context, q mediastore.SearchQuery, fn func(page []models.RemoteResource) error) error {
	r.mu.Lock()
	if r.searchErr != nil {
		r.mu.Unlock()
		return r.searchErr
	}
	ids := make([]string, 0, len(r.resources))
	for id := range r.resources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	all := make([]models.RemoteResource, 0, len(ids))
	for _, id := range ids {
		all = append(all, r.resources[id])
	}
	r.mu.Unlock()

	size := q.MaxResults
	if size <= 0 {
		size = len(all) + 1
	}
	for start := 0; start < len(all); start += size {
		end := start + size
		if end > len(all) {
			end = len(all)
		}
		if err := fn(all[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (r *stubRemote) Resource(ctx context.Context, publicID string, kind models.ResourceKind) (*models.RemoteResource, error) {
	if r.lookupDelay > 0 {
		time.Sleep(r.lookupDelay)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := r.resourceErr[publicID]; err != nil {
		return nil, err
	}
	res, ok := r.resources[publicID]
	if !ok {
		return nil, mediastore.ErrNotFound
	}
	return &res, nil
}

func (r *stubRemote) ResourceAnyKind(ctx context.Context, publicID string) (*models.RemoteResource, error) {
	return r.Resource(ctx, publicID, "")
}

func (r *stubRemote) UpdateResource(ctx context.Context, publicID string, kind models.ResourceKind, update mediastore.ResourceUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.updateErr[publicID]; err != nil {
		return err
	}
	if _, ok := r.resources[publicID]; !ok {
		return mediastore.ErrNotFound
	}
	r.updates[publicID] = update
	return nil
}

// memAssets mimics the asset table and its procedures: at most one live row per public id plus any
// number of soft-deleted ones.
type memAssets struct {
	mu     sync.Mutex
	rows   []*models.Asset
	nextID int
}

func (m *memAssets) seed(assets ...models.Asset) {
	for i := range assets {
		a := assets[i]
		m.nextID++
		if a.ID == "" {
			a.ID = fmt.Sprintf("asset-%d", m.nextID)
		}
		m.rows = append(m.rows, &a)
	}
}

func (m *memAssets) live(publicID string) *models.Asset {
	for _, row := range m.rows {
		if row.PublicID == publicID && row.DeletedAt == nil {
			return row
		}
	}
	return nil
}

func (m *memAssets) latestDeleted(publicID string) *models.Asset {
	var latest *models.Asset
	for _, row := range m.rows {
		if row.PublicID != publicID || row.DeletedAt == nil {
			continue
		}
		if latest == nil || row.DeletedAt.After(*latest.DeletedAt) {
			latest = row
		}
	}
	return latest
}

func (m *memAssets) row(publicID string) *models.Asset {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row := m.live(publicID); row != nil {
		cp := *row
		return &cp
	}
	if row := m.latestDeleted(publicID); row != nil {
		cp := *row
		return &cp
	}
	return nil
}

func (m *memAssets) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func (m *memAssets) Upsert(ctx context.Context, asset *models.Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *asset
	if row := m.live(asset.PublicID); row != nil {
		cp.ID = row.ID
		*row = cp
		asset.ID = row.ID
		return nil
	}
	m.nextID++
	cp.ID = fmt.Sprintf("asset-%d", m.nextID)
	asset.ID = cp.ID
	m.rows = append(m.rows, &cp)
	return nil
}

func (m *memAssets) GetByPublicID(ctx context.Context, publicID string) (*models.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row := m.live(publicID)
	if row == nil {
		return nil, sql.ErrNoRows
	}
	cp := *row
	return &cp, nil
}

func (m *memAssets) GetByPublicIDWithDeleted(ctx context.Context, publicID string) (*models.Asset, error) {
	if row := m.row(publicID); row != nil {
		return row, nil
	}
	return nil, sql.ErrNoRows
}

func (m *memAssets) ListPendingSync(ctx context.Context, limit, maxRetries int) ([]models.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Asset, 0)
	for _, row := range m.rows {
		pending := row.SyncStatus == models.SyncStatusPending
		retryable := row.SyncStatus == models.SyncStatusError && row.RetryCount < maxRetries
		if pending || retryable {
			out = append(out, *row)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memAssets) ListActive(ctx context.Context, afterPublicID string, limit int) ([]models.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	live := make([]models.Asset, 0)
	for _, row := range m.rows {
		if row.DeletedAt == nil && row.PublicID > afterPublicID {
			live = append(live, *row)
		}
	}
	sort.Slice(live, func(i, j int) bool { return live[i].PublicID < live[j].PublicID })
	if len(live) > limit {
		live = live[:limit]
	}
	return live, nil
}

func (m *memAssets) SoftDelete(ctx context.Context, publicID, deletedBy string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row := m.live(publicID)
	if row == nil {
		return false, nil
	}
	now := time.Now().UTC()
	row.DeletedAt = &now
	row.DeletedBy = &deletedBy
	row.SyncStatus = models.SyncStatusPending
	return true, nil
}

func (m *memAssets) SoftDeleteAndQueue(ctx context.Context, publicID string, req models.CleanupRequest) (string, error) {
	ok, err := m.SoftDelete(ctx, publicID, req.TriggeredBy)
	if err != nil || !ok {
		return "", err
	}
	return "queue-" + publicID, nil
}

func (m *memAssets) HardDelete(ctx context.Context, publicID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.rows[:0]
	removed := 0
	for _, row := range m.rows {
		if row.PublicID == publicID {
			removed++
			continue
		}
		kept = append(kept, row)
	}
	m.rows = kept
	return removed, nil
}

func (m *memAssets) Restore(ctx context.Context, publicID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.live(publicID) != nil {
		return false, nil
	}
	row := m.latestDeleted(publicID)
	if row == nil {
		return false, nil
	}
	row.DeletedAt, row.DeletedBy = nil, nil
	return true, nil
}

func (m *memAssets) UpdateSyncStatus(ctx context.Context, publicID string, status models.SyncStatus, syncErr *string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row := m.live(publicID)
	if row == nil {
		row = m.latestDeleted(publicID)
	}
	if row == nil {
		return false, nil
	}
	row.SyncStatus = status
	row.SyncError = syncErr
	switch status {
	case models.SyncStatusError:
		row.RetryCount++
	case models.SyncStatusSynced:
		row.RetryCount = 0
		now := time.Now().UTC()
		row.LastSyncedAt = &now
	}
	return true, nil
}

type memSyncLog struct {
	mu      sync.Mutex
	entries []models.SyncLogEntry
	err     error
}

func (m *memSyncLog) Create(ctx context.Context, entry *models.SyncLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *memSyncLog) with(status models.SyncLogStatus, op models.SyncLogOperation) []models.SyncLogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.SyncLogEntry, 0)
	for _, e := range m.entries {
		if e.Status == status && e.Operation == op {
			out = append(out, e)
		}
	}
	return out
}

type memOperations struct {
	mu        sync.Mutex
	createErr error
	ops       map[string]*models.SyncOperation
	statuses  []models.SyncOperationStatus
	errors    models.JSONMap
}

func newMemOperations() *memOperations {
	return &memOperations{ops: make(map[string]*models.SyncOperation)}
}

func (m *memOperations) Create(ctx context.Context, op *models.SyncOperation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	op.ID = fmt.Sprintf("op-%d", len(m.ops)+1)
	cp := *op
	m.ops[op.ID] = &cp
	m.statuses = append(m.statuses, op.Status)
	return nil
}

func (m *memOperations) UpdateProgress(ctx context.Context, id string, p models.SyncProgress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	op := m.ops[id]
	op.Status, op.Progress = p.Status, p.Progress
	op.ProcessedItems, op.FailedItems = p.ProcessedItems, p.FailedItems
	if n := len(m.statuses); n == 0 || m.statuses[n-1] != p.Status {
		m.statuses = append(m.statuses, p.Status)
	}
	return nil
}

func (m *memOperations) Complete(ctx context.Context, id string, status models.SyncOperationStatus, data, errorDetails models.JSONMap) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	op := m.ops[id]
	op.Status, op.Progress = status, 100
	op.OperationData = data
	m.errors = errorDetails
	m.statuses = append(m.statuses, status)
	return nil
}

func (m *memOperations) get(id string) models.SyncOperation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.ops[id]
}
