package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/lgu-admin-api/internal/models"
)

const assetColumns = `id, public_id, format, mime_type, bytes, width, height, resource_type, version, signature,
       provider_created_at, tags, folder, description, alt_text, url, secure_url, sync_status, last_synced_at,
       sync_error, retry_count, deleted_at, deleted_by, created_at, updated_at`

// undefinedFunction is the Postgres error code raised when a stored procedure is missing.
const undefinedFunction = "42883"

var assetSortColumns = map[models.AssetSortField]string{
	models.AssetSortCreatedAt: "created_at",
	models.AssetSortUpdatedAt: "updated_at",
	models.AssetSortBytes:     "bytes",
	models.AssetSortPublicID:  "public_id",
	models.AssetSortFormat:    "format",
}

// AssetRepository persists the local mirror of provider assets.
type AssetRepository struct {
	db *sqlx.DB
}

// NewAssetRepository constructs the repository.
func NewAssetRepository(db *sqlx.DB) *AssetRepository {
	return &AssetRepository{db: db}
}

// Upsert inserts the asset or overwrites the live row with the same public id. Last write wins.
func (r *AssetRepository) Upsert(ctx context.Context, asset *models.Asset) error {
	if asset.ID == "" {
		asset.ID = uuid.NewString()
	}
	if asset.SyncStatus == "" {
		asset.SyncStatus = models.SyncStatusSynced
	}
	if asset.MimeType == "" {
		asset.MimeType = models.MimeTypeFor(asset.ResourceType, asset.Format)
	}
	if asset.Tags == nil {
		asset.Tags = pq.StringArray{}
	}
	now := time.Now().UTC()
	if asset.SyncStatus == models.SyncStatusSynced && asset.LastSyncedAt == nil {
		asset.LastSyncedAt = &now
	}

	const query = `INSERT INTO media_assets
	(id, public_id, format, mime_type, bytes, width, height, resource_type, version, signature, provider_created_at,
	 tags, folder, description, alt_text, url, secure_url, sync_status, last_synced_at, sync_error, retry_count,
	 created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $22)
	ON CONFLICT (public_id) WHERE deleted_at IS NULL DO UPDATE SET
	 format = EXCLUDED.format,
	 mime_type = EXCLUDED.mime_type,
	 bytes = EXCLUDED.bytes,
	 width = EXCLUDED.width,
	 height = EXCLUDED.height,
	 resource_type = EXCLUDED.resource_type,
	 version = EXCLUDED.version,
	 signature = EXCLUDED.signature,
	 provider_created_at = EXCLUDED.provider_created_at,
	 tags = EXCLUDED.tags,
	 folder = EXCLUDED.folder,
	 description = EXCLUDED.description,
	 alt_text = EXCLUDED.alt_text,
	 url = EXCLUDED.url,
	 secure_url = EXCLUDED.secure_url,
	 sync_status = EXCLUDED.sync_status,
	 last_synced_at = EXCLUDED.last_synced_at,
	 sync_error = EXCLUDED.sync_error,
	 retry_count = EXCLUDED.retry_count,
	 updated_at = EXCLUDED.updated_at
	RETURNING id, created_at, updated_at`

	row := r.db.QueryRowxContext(ctx, query,
		asset.ID, asset.PublicID, asset.Format, asset.MimeType, asset.Bytes, asset.Width, asset.Height,
		asset.ResourceType, asset.Version, asset.Signature, asset.ProviderCreatedAt, asset.Tags, asset.Folder,
		asset.Description, asset.AltText, asset.URL, asset.SecureURL, asset.SyncStatus, asset.LastSyncedAt,
		asset.SyncError, asset.RetryCount, now,
	)
	if err := row.Scan(&asset.ID, &asset.CreatedAt, &asset.UpdatedAt); err != nil {
		return fmt.Errorf("upsert asset %s: %w", asset.PublicID, err)
	}
	return nil
}

// GetByPublicID returns the live row. Soft-deleted rows are invisible here.
func (r *AssetRepository) GetByPublicID(ctx context.Context, publicID string) (*models.Asset, error) {
	query := fmt.Sprintf(`SELECT %s FROM media_assets WHERE public_id = $1 AND deleted_at IS NULL`, assetColumns)
	var asset models.Asset
	if err := r.db.GetContext(ctx, &asset, query, publicID); err != nil {
		return nil, err
	}
	return &asset, nil
}

// GetByPublicIDWithDeleted returns the live row, or the most recently soft-deleted one.
func (r *AssetRepository) GetByPublicIDWithDeleted(ctx context.Context, publicID string) (*models.Asset, error) {
	query := fmt.Sprintf(`SELECT %s FROM media_assets WHERE public_id = $1
	ORDER BY (deleted_at IS NOT NULL), deleted_at DESC LIMIT 1`, assetColumns)
	var asset models.Asset
	if err := r.db.GetContext(ctx, &asset, query, publicID); err != nil {
		return nil, err
	}
	return &asset, nil
}

// Search lists live assets matching the filter.
func (r *AssetRepository) Search(ctx context.Context, filter models.AssetFilter) ([]models.Asset, int, error) {
	conditions := []string{"deleted_at IS NULL"}
	args := make([]interface{}, 0, 10)

	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		idx := len(args)
		conditions = append(conditions, fmt.Sprintf("(public_id ILIKE $%d OR description ILIKE $%d OR alt_text ILIKE $%d)", idx, idx, idx))
	}
	if filter.Folder != "" {
		args = append(args, filter.Folder)
		conditions = append(conditions, fmt.Sprintf("folder = $%d", len(args)))
	}
	if filter.ResourceType != "" {
		args = append(args, filter.ResourceType)
		conditions = append(conditions, fmt.Sprintf("resource_type = $%d", len(args)))
	}
	if len(filter.Tags) > 0 {
		args = append(args, pq.Array(filter.Tags))
		conditions = append(conditions, fmt.Sprintf("tags @> $%d", len(args)))
	}
	if filter.SyncStatus != "" {
		args = append(args, filter.SyncStatus)
		conditions = append(conditions, fmt.Sprintf("sync_status = $%d", len(args)))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.MinBytes != nil {
		args = append(args, *filter.MinBytes)
		conditions = append(conditions, fmt.Sprintf("bytes >= $%d", len(args)))
	}
	if filter.MaxBytes != nil {
		args = append(args, *filter.MaxBytes)
		conditions = append(conditions, fmt.Sprintf("bytes <= $%d", len(args)))
	}
	where := " WHERE " + strings.Join(conditions, " AND ")

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM media_assets"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count assets: %w", err)
	}

	sortColumn, ok := assetSortColumns[filter.SortBy]
	if !ok {
		sortColumn = "created_at"
	}
	direction := "ASC"
	if filter.SortDesc {
		direction = "DESC"
	}
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	query := fmt.Sprintf("SELECT %s FROM media_assets%s ORDER BY %s %s, id LIMIT %d OFFSET %d",
		assetColumns, where, sortColumn, direction, limit, (page-1)*limit)

	var assets []models.Asset
	if err := r.db.SelectContext(ctx, &assets, query, args...); err != nil {
		return nil, 0, fmt.Errorf("search assets: %w", err)
	}
	return assets, total, nil
}

// ListPendingSync returns rows awaiting a local → remote push: every pending row, soft-deleted or
// not, plus errored rows that have not used up their retries.
func (r *AssetRepository) ListPendingSync(ctx context.Context, limit, maxRetries int) ([]models.Asset, error) {
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`SELECT %s FROM media_assets
	WHERE sync_status = 'pending' OR (sync_status = 'error' AND retry_count < $1)
	ORDER BY updated_at ASC LIMIT $2`, assetColumns)
	var assets []models.Asset
	if err := r.db.SelectContext(ctx, &assets, query, maxRetries, limit); err != nil {
		return nil, fmt.Errorf("list pending sync: %w", err)
	}
	return assets, nil
}

// ListActive pages live rows by public id, starting after the given key.
func (r *AssetRepository) ListActive(ctx context.Context, afterPublicID string, limit int) ([]models.Asset, error) {
	if limit <= 0 {
		limit = 1000
	}
	query := fmt.Sprintf(`SELECT %s FROM media_assets
	WHERE deleted_at IS NULL AND public_id > $1
	ORDER BY public_id ASC LIMIT $2`, assetColumns)
	var assets []models.Asset
	if err := r.db.SelectContext(ctx, &assets, query, afterPublicID, limit); err != nil {
		return nil, fmt.Errorf("list active assets: %w", err)
	}
	return assets, nil
}

// SoftDelete marks the live row deleted and pending. It reports whether a live row existed.
func (r *AssetRepository) SoftDelete(ctx context.Context, publicID, deletedBy string) (bool, error) {
	var ok bool
	if err := r.db.GetContext(ctx, &ok, `SELECT soft_delete_media_asset($1, $2)`, publicID, deletedBy); err != nil {
		return false, fmt.Errorf("soft delete asset %s: %w", publicID, err)
	}
	return ok, nil
}

// SoftDeleteAndQueue soft-deletes the live row and queues the provider deletion in one statement.
// An empty queue id means no live row existed.
func (r *AssetRepository) SoftDeleteAndQueue(ctx context.Context, publicID string, req models.CleanupRequest) (string, error) {
	var queueID sql.NullString
	err := r.db.GetContext(ctx, &queueID, `SELECT request_media_deletion($1, $2, $3, $4)`,
		publicID, req.TriggeredBy, req.Reason, req.MaxAttempts)
	if err != nil {
		return "", fmt.Errorf("request deletion of %s: %w", publicID, err)
	}
	return queueID.String, nil
}

// HardDelete removes every row for the public id together with its usage links.
func (r *AssetRepository) HardDelete(ctx context.Context, publicID string) (int, error) {
	var affected int
	if err := r.db.GetContext(ctx, &affected, `SELECT hard_delete_media_asset($1)`, publicID); err != nil {
		return 0, fmt.Errorf("hard delete asset %s: %w", publicID, err)
	}
	return affected, nil
}

// Restore clears deleted_at on the most recently deleted row unless a live row already exists.
// Open cleanup requests for the asset are skipped in the same call.
func (r *AssetRepository) Restore(ctx context.Context, publicID string) (bool, error) {
	var ok bool
	if err := r.db.GetContext(ctx, &ok, `SELECT restore_media_asset($1)`, publicID); err != nil {
		return false, fmt.Errorf("restore asset %s: %w", publicID, err)
	}
	return ok, nil
}

// UpdateSyncStatus records the outcome of a sync attempt. Errors bump the retry counter.
func (r *AssetRepository) UpdateSyncStatus(ctx context.Context, publicID string, status models.SyncStatus, syncErr *string) (bool, error) {
	var ok bool
	if err := r.db.GetContext(ctx, &ok, `SELECT update_media_sync_status($1, $2, $3)`, publicID, status, syncErr); err != nil {
		return false, fmt.Errorf("update sync status of %s: %w", publicID, err)
	}
	return ok, nil
}

// UpdateMetadata applies a local admin edit and flags the row for the next push.
func (r *AssetRepository) UpdateMetadata(ctx context.Context, publicID string, update models.AssetMetadataUpdate) (*models.Asset, error) {
	var tags interface{}
	if update.Tags != nil {
		tags = pq.Array(update.Tags)
	}
	query := fmt.Sprintf(`UPDATE media_assets SET
	 tags = COALESCE($2, tags),
	 description = COALESCE($3, description),
	 alt_text = COALESCE($4, alt_text),
	 sync_status = 'pending',
	 updated_at = NOW()
	WHERE public_id = $1 AND deleted_at IS NULL
	RETURNING %s`, assetColumns)
	var asset models.Asset
	if err := r.db.GetContext(ctx, &asset, query, publicID, tags, update.Description, update.AltText); err != nil {
		return nil, fmt.Errorf("update metadata of %s: %w", publicID, err)
	}
	return &asset, nil
}

// Stats aggregates library counters through get_media_stats. When the procedure is not installed the
// same shape is computed from a scan of the live rows.
func (r *AssetRepository) Stats(ctx context.Context) (*models.AssetStats, error) {
	var stats models.AssetStats
	err := r.db.GetContext(ctx, &stats, `SELECT total_assets, total_images, total_videos, total_size,
       synced_assets, pending_assets, error_assets FROM get_media_stats()`)
	if err == nil {
		return &stats, nil
	}
	if !isUndefinedFunction(err) {
		return nil, fmt.Errorf("media stats: %w", err)
	}
	return r.scanStats(ctx)
}

func isUndefinedFunction(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == undefinedFunction
}

type statsRow struct {
	ResourceType models.ResourceKind `db:"resource_type"`
	SyncStatus   models.SyncStatus   `db:"sync_status"`
	Bytes        int64               `db:"bytes"`
}

func (r *AssetRepository) scanStats(ctx context.Context) (*models.AssetStats, error) {
	var rows []statsRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT resource_type, sync_status, bytes FROM media_assets WHERE deleted_at IS NULL`); err != nil {
		return nil, fmt.Errorf("scan assets for stats: %w", err)
	}
	return reduceStats(rows), nil
}

func reduceStats(rows []statsRow) *models.AssetStats {
	stats := &models.AssetStats{}
	for _, row := range rows {
		stats.TotalAssets++
		stats.TotalSize += row.Bytes
		switch row.ResourceType {
		case models.ResourceImage:
			stats.TotalImages++
		case models.ResourceVideo:
			stats.TotalVideos++
		}
		switch row.SyncStatus {
		case models.SyncStatusSynced:
			stats.SyncedAssets++
		case models.SyncStatusPending:
			stats.PendingAssets++
		case models.SyncStatusError:
			stats.ErrorAssets++
		}
	}
	return stats
}
