package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lgu-admin-api/internal/models"
)

const cleanupColumns = `id, public_id, resource_type, reason, triggered_by, processing_attempts, max_attempts, status,
       provider_response, error_message, created_at, updated_at, processed_at`

// CleanupQueueRepository manages provider-side deletions waiting to be executed.
type CleanupQueueRepository struct {
	db *sqlx.DB
}

// NewCleanupQueueRepository constructs the repository.
func NewCleanupQueueRepository(db *sqlx.DB) *CleanupQueueRepository {
	return &CleanupQueueRepository{db: db}
}

// Enqueue adds a deletion request. An open request for the same public id is reused.
func (r *CleanupQueueRepository) Enqueue(ctx context.Context, publicID string, kind models.ResourceKind, req models.CleanupRequest) (string, error) {
	if kind == "" {
		kind = models.ResourceImage
	}
	maxAttempts := req.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	const query = `INSERT INTO media_cleanup_queue (id, public_id, resource_type, reason, triggered_by, max_attempts)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (public_id) WHERE status IN ('pending', 'processing', 'failed')
	DO UPDATE SET reason = EXCLUDED.reason, updated_at = NOW()
	RETURNING id`
	var id string
	if err := r.db.GetContext(ctx, &id, query, uuid.NewString(), publicID, kind, req.Reason, req.TriggeredBy, maxAttempts); err != nil {
		return "", fmt.Errorf("enqueue cleanup for %s: %w", publicID, err)
	}
	return id, nil
}

// ClaimPending atomically moves up to limit pending or failed items to processing and returns them.
// Concurrent claimers never receive the same row.
func (r *CleanupQueueRepository) ClaimPending(ctx context.Context, limit int) ([]models.CleanupItem, error) {
	if limit <= 0 {
		limit = 10
	}
	query := fmt.Sprintf(`SELECT %s FROM claim_cleanup_items($1)`, cleanupColumns)
	var items []models.CleanupItem
	if err := r.db.SelectContext(ctx, &items, query, limit); err != nil {
		return nil, fmt.Errorf("claim cleanup items: %w", err)
	}
	return items, nil
}

// ClaimByID claims a single item regardless of its current status, used for targeted retries.
func (r *CleanupQueueRepository) ClaimByID(ctx context.Context, id string) (*models.CleanupItem, error) {
	query := fmt.Sprintf(`UPDATE media_cleanup_queue SET status = 'processing', updated_at = NOW()
	WHERE id = $1 AND status <> 'processing'
	RETURNING %s`, cleanupColumns)
	var item models.CleanupItem
	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		return nil, err
	}
	return &item, nil
}

// GetByID fetches one item.
func (r *CleanupQueueRepository) GetByID(ctx context.Context, id string) (*models.CleanupItem, error) {
	query := fmt.Sprintf(`SELECT %s FROM media_cleanup_queue WHERE id = $1`, cleanupColumns)
	var item models.CleanupItem
	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateStatus records the outcome of one processing attempt.
func (r *CleanupQueueRepository) UpdateStatus(ctx context.Context, id string, status models.CleanupStatus, providerResponse models.JSONMap, errMsg *string) error {
	var response interface{}
	if providerResponse != nil {
		response = providerResponse
	}
	if _, err := r.db.ExecContext(ctx, `SELECT update_cleanup_status($1, $2, $3, $4)`, id, status, response, errMsg); err != nil {
		return fmt.Errorf("update cleanup status of %s: %w", id, err)
	}
	return nil
}

// ListByStatus returns the most recent items in the given status.
func (r *CleanupQueueRepository) ListByStatus(ctx context.Context, status models.CleanupStatus, limit int) ([]models.CleanupItem, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT %s FROM media_cleanup_queue WHERE status = $1 ORDER BY updated_at DESC LIMIT $2`, cleanupColumns)
	var items []models.CleanupItem
	if err := r.db.SelectContext(ctx, &items, query, status, limit); err != nil {
		return nil, fmt.Errorf("list cleanup items: %w", err)
	}
	return items, nil
}

// CountOpen returns the number of items still waiting to be processed.
func (r *CleanupQueueRepository) CountOpen(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM media_cleanup_queue WHERE status IN ('pending', 'failed')`); err != nil {
		return 0, fmt.Errorf("count open cleanup items: %w", err)
	}
	return count, nil
}
