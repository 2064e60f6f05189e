package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lgu-admin-api/internal/dto"
	"github.com/noah-isme/lgu-admin-api/internal/models"
	appErrors "github.com/noah-isme/lgu-admin-api/pkg/errors"
	"github.com/noah-isme/lgu-admin-api/pkg/mediastore"
)

type assetStore interface {
	Search(ctx context.Context, filter models.AssetFilter) ([]models.Asset, int, error)
	GetByPublicID(ctx context.Context, publicID string) (*models.Asset, error)
	UpdateMetadata(ctx context.Context, publicID string, update models.AssetMetadataUpdate) (*models.Asset, error)
	SoftDeleteAndQueue(ctx context.Context, publicID string, req models.CleanupRequest) (string, error)
	Stats(ctx context.Context) (*models.AssetStats, error)
}

type remoteUploader interface {
	Upload(ctx context.Context, filename string, file io.Reader, opts mediastore.UploadOptions) (*models.RemoteResource, error)
	SignedUploadParams(folder string) map[string]string
}

type assetSyncer interface {
	SyncSingleAsset(ctx context.Context, publicID string, kind models.ResourceKind, source models.SyncSource) (*models.Asset, error)
	LockAsset(publicID string) func()
}

// UploadInput is one admin upload.
type UploadInput struct {
	Filename string
	File     io.Reader
	Form     dto.UploadAssetForm
}

// AssetService serves the admin media library.
type AssetService struct {
	assets          assetStore
	remote          remoteUploader
	sync            assetSyncer
	cache           *CacheService
	statsTTL        time.Duration
	cleanupAttempts int
	logger          *zap.Logger
}

// NewAssetService wires the admin asset service. cache may be nil.
func NewAssetService(assets assetStore, remote remoteUploader, syncer assetSyncer, cache *CacheService, statsTTL time.Duration, cleanupAttempts int, logger *zap.Logger) *AssetService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cleanupAttempts <= 0 {
		cleanupAttempts = 3
	}
	return &AssetService{
		assets:          assets,
		remote:          remote,
		sync:            syncer,
		cache:           cache,
		statsTTL:        statsTTL,
		cleanupAttempts: cleanupAttempts,
		logger:          logger,
	}
}

// Search lists live assets.
func (s *AssetService) Search(ctx context.Context, q dto.AssetListQuery) (*models.AssetPage, error) {
	filter := models.AssetFilter{
		Search:       strings.TrimSpace(q.Search),
		Folder:       strings.Trim(q.Folder, "/"),
		ResourceType: models.ResourceKind(q.ResourceType),
		Tags:         normalizeTags(q.Tags),
		SyncStatus:   models.SyncStatus(q.SyncStatus),
		CreatedFrom:  q.CreatedFrom,
		CreatedTo:    q.CreatedTo,
		MinBytes:     q.MinBytes,
		MaxBytes:     q.MaxBytes,
		SortBy:       models.AssetSortField(q.SortBy),
		SortDesc:     q.SortOrder != "asc",
		Page:         q.Page,
		Limit:        q.Limit,
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.MinBytes != nil && filter.MaxBytes != nil && *filter.MinBytes > *filter.MaxBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, "min_bytes must not exceed max_bytes")
	}

	assets, total, err := s.assets.Search(ctx, filter)
	if err != nil {
		return nil, appErrors.Database(err, "failed to search assets")
	}
	return &models.AssetPage{
		Assets:  assets,
		Total:   total,
		Page:    filter.Page,
		Limit:   filter.Limit,
		HasNext: filter.Page*filter.Limit < total,
		HasPrev: filter.Page > 1,
	}, nil
}

// Get returns one live asset, served from cache when possible.
func (s *AssetService) Get(ctx context.Context, publicID string) (*models.Asset, error) {
	key := assetCacheKey(publicID)
	var cached models.Asset
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}
	asset, err := s.assets.GetByPublicID(ctx, publicID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "asset not found")
	}
	if err != nil {
		return nil, appErrors.Database(err, "failed to load asset")
	}
	s.cache.Set(ctx, key, asset, 0)
	return asset, nil
}

// Stats returns library counters, cached for the configured TTL. The flag reports a cache hit.
func (s *AssetService) Stats(ctx context.Context) (*models.AssetStats, bool, error) {
	var cached models.AssetStats
	if s.cache.Get(ctx, cacheKeyStats, &cached) {
		return &cached, true, nil
	}
	stats, err := s.assets.Stats(ctx)
	if err != nil {
		return nil, false, appErrors.Database(err, "failed to compute media stats")
	}
	s.cache.Set(ctx, cacheKeyStats, stats, s.statsTTL)
	return stats, false, nil
}

// Upload stores a file at the provider and mirrors it locally right away.
func (s *AssetService) Upload(ctx context.Context, in UploadInput, actorID string) (*models.Asset, error) {
	if in.File == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	opts := mediastore.UploadOptions{
		PublicID:    strings.Trim(in.Form.PublicID, "/"),
		Folder:      strings.Trim(in.Form.Folder, "/"),
		Tags:        splitTags(in.Form.Tags),
		Description: in.Form.Description,
		AltText:     in.Form.AltText,
	}
	if kind := models.ResourceKind(in.Form.ResourceType); kind.Valid() {
		opts.Kind = kind
	}

	remote, err := s.remote.Upload(ctx, in.Filename, in.File, opts)
	if err != nil {
		s.logger.Sugar().Warnw("upload to media provider failed", "filename", in.Filename, "actor_id", actorID, "error", err)
		return nil, appErrors.Wrap(err, appErrors.ErrRemoteUnavailable.Code, appErrors.ErrRemoteUnavailable.Status, "upload to media provider failed")
	}
	s.logger.Sugar().Infow("asset uploaded", "public_id", remote.PublicID, "actor_id", actorID, "bytes", remote.Bytes)

	asset, err := s.sync.SyncSingleAsset(ctx, remote.PublicID, remote.ResourceType, models.SyncSourceAdmin)
	if err != nil {
		return nil, err
	}
	return asset, nil
}

// UpdateMetadata applies a local edit. The change reaches the provider on the next push phase.
func (s *AssetService) UpdateMetadata(ctx context.Context, publicID string, req dto.UpdateAssetRequest, actorID string) (*models.Asset, error) {
	update := models.AssetMetadataUpdate{Description: req.Description, AltText: req.AltText}
	if req.Tags != nil {
		update.Tags = normalizeTags(*req.Tags)
	}
	if update.Tags == nil && update.Description == nil && update.AltText == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "nothing to update")
	}

	unlock := s.sync.LockAsset(publicID)
	asset, err := s.assets.UpdateMetadata(ctx, publicID, update)
	unlock()
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "asset not found")
	}
	if err != nil {
		return nil, appErrors.Database(err, "failed to update asset")
	}
	s.cache.InvalidateMedia(ctx)
	s.logger.Sugar().Infow("asset metadata updated", "public_id", publicID, "actor_id", actorID)
	return asset, nil
}

// RequestDeletion soft-deletes the asset and queues its provider deletion.
func (s *AssetService) RequestDeletion(ctx context.Context, publicID, reason, actorID string) (*dto.DeleteAssetResponse, error) {
	if reason == "" {
		reason = "admin deletion"
	}
	unlock := s.sync.LockAsset(publicID)
	queueID, err := s.assets.SoftDeleteAndQueue(ctx, publicID, models.CleanupRequest{
		Reason:      reason,
		TriggeredBy: actorID,
		MaxAttempts: s.cleanupAttempts,
	})
	unlock()
	if err != nil {
		return nil, appErrors.Database(err, "failed to delete asset")
	}
	if queueID == "" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "asset not found")
	}
	s.cache.InvalidateMedia(ctx)
	s.logger.Sugar().Infow("asset deletion requested", "public_id", publicID, "queue_id", queueID, "actor_id", actorID)
	return &dto.DeleteAssetResponse{PublicID: publicID, QueueID: queueID}, nil
}

// SignedUploadParams returns the signed fields for a direct browser upload.
func (s *AssetService) SignedUploadParams(folder string) map[string]string {
	return s.remote.SignedUploadParams(strings.Trim(folder, "/"))
}

func assetCacheKey(publicID string) string {
	return fmt.Sprintf("media:assets:%s", publicID)
}

func splitTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return normalizeTags(strings.Split(raw, ","))
}
