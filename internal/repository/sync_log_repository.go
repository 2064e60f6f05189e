package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lgu-admin-api/internal/models"
)

const syncLogColumns = `id, public_id, operation, source, status, error_message, details, operation_id, duration_ms, created_at`

// SyncLogRepository appends to and reads the sync audit log. Rows are never updated.
type SyncLogRepository struct {
	db *sqlx.DB
}

// NewSyncLogRepository constructs the repository.
func NewSyncLogRepository(db *sqlx.DB) *SyncLogRepository {
	return &SyncLogRepository{db: db}
}

// Create inserts one entry.
func (r *SyncLogRepository) Create(ctx context.Context, entry *models.SyncLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.Details == nil {
		entry.Details = models.JSONMap{}
	}
	const query = `INSERT INTO media_sync_log (` + syncLogColumns + `)
	VALUES (:id, :public_id, :operation, :source, :status, :error_message, :details, :operation_id, :duration_ms, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create sync log: %w", err)
	}
	return nil
}

// List returns entries newest first together with the total match count.
func (r *SyncLogRepository) List(ctx context.Context, filter models.SyncLogFilter) ([]models.SyncLogEntry, int, error) {
	conditions := make([]string, 0, 6)
	args := make([]interface{}, 0, 6)
	if filter.PublicID != "" {
		args = append(args, filter.PublicID)
		conditions = append(conditions, fmt.Sprintf("public_id = $%d", len(args)))
	}
	if filter.Operation != "" {
		args = append(args, filter.Operation)
		conditions = append(conditions, fmt.Sprintf("operation = $%d", len(args)))
	}
	if filter.Source != "" {
		args = append(args, filter.Source)
		conditions = append(conditions, fmt.Sprintf("source = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM media_sync_log"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count sync logs: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	query := fmt.Sprintf("SELECT %s FROM media_sync_log%s ORDER BY created_at DESC LIMIT %d OFFSET %d",
		syncLogColumns, where, limit, (page-1)*limit)

	var entries []models.SyncLogEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list sync logs: %w", err)
	}
	return entries, total, nil
}
