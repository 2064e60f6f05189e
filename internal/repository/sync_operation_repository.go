package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lgu-admin-api/internal/models"
)

const syncOperationColumns = `id, operation_type, status, progress, total_items, processed_items, failed_items,
       started_at, completed_at, triggered_by, operation_data, error_details`

// SyncOperationRepository stores one record per sync invocation.
type SyncOperationRepository struct {
	db *sqlx.DB
}

// NewSyncOperationRepository constructs the repository.
func NewSyncOperationRepository(db *sqlx.DB) *SyncOperationRepository {
	return &SyncOperationRepository{db: db}
}

// Create inserts a new operation in pending state.
func (r *SyncOperationRepository) Create(ctx context.Context, op *models.SyncOperation) error {
	if op.ID == "" {
		op.ID = uuid.NewString()
	}
	if op.Status == "" {
		op.Status = models.SyncOpPending
	}
	if op.StartedAt.IsZero() {
		op.StartedAt = time.Now().UTC()
	}
	if op.OperationData == nil {
		op.OperationData = models.JSONMap{}
	}
	if op.ErrorDetails == nil {
		op.ErrorDetails = models.JSONMap{}
	}
	const query = `INSERT INTO media_sync_operations
	(id, operation_type, status, progress, total_items, processed_items, failed_items, started_at, triggered_by, operation_data, error_details)
	VALUES (:id, :operation_type, :status, :progress, :total_items, :processed_items, :failed_items, :started_at, :triggered_by, :operation_data, :error_details)`
	if _, err := r.db.NamedExecContext(ctx, query, op); err != nil {
		return fmt.Errorf("create sync operation: %w", err)
	}
	return nil
}

// UpdateProgress records the current phase and counters. Finished operations are left untouched.
func (r *SyncOperationRepository) UpdateProgress(ctx context.Context, id string, progress models.SyncProgress) error {
	_, err := r.db.ExecContext(ctx, `SELECT update_sync_progress($1, $2, $3, $4, $5, $6)`,
		id, progress.Status, progress.Progress, progress.TotalItems, progress.ProcessedItems, progress.FailedItems)
	if err != nil {
		return fmt.Errorf("update sync progress of %s: %w", id, err)
	}
	return nil
}

// Complete finalizes the operation as completed or failed.
func (r *SyncOperationRepository) Complete(ctx context.Context, id string, status models.SyncOperationStatus, data, errorDetails models.JSONMap) error {
	_, err := r.db.ExecContext(ctx, `SELECT complete_sync_operation($1, $2, $3, $4)`, id, status, data, errorDetails)
	if err != nil {
		return fmt.Errorf("complete sync operation %s: %w", id, err)
	}
	return nil
}

// GetByID fetches one operation.
func (r *SyncOperationRepository) GetByID(ctx context.Context, id string) (*models.SyncOperation, error) {
	query := fmt.Sprintf(`SELECT %s FROM media_sync_operations WHERE id = $1`, syncOperationColumns)
	var op models.SyncOperation
	if err := r.db.GetContext(ctx, &op, query, id); err != nil {
		return nil, err
	}
	return &op, nil
}

// ListRecent returns the latest operations, optionally restricted to one kind.
func (r *SyncOperationRepository) ListRecent(ctx context.Context, kind models.SyncOperationKind, limit int) ([]models.SyncOperation, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	args := []interface{}{}
	where := ""
	if kind != "" {
		args = append(args, kind)
		where = " WHERE operation_type = $1"
	}
	query := fmt.Sprintf(`SELECT %s FROM media_sync_operations%s ORDER BY started_at DESC LIMIT %d`, syncOperationColumns, where, limit)
	var ops []models.SyncOperation
	if err := r.db.SelectContext(ctx, &ops, query, args...); err != nil {
		return nil, fmt.Errorf("list sync operations: %w", err)
	}
	return ops, nil
}
