package models

import (
	"mime"
	"strings"
	"time"

	"github.com/lib/pq"
)

// ResourceKind is the provider's resource type.
type ResourceKind string

const (
	ResourceImage ResourceKind = "image"
	ResourceVideo ResourceKind = "video"
	ResourceRaw   ResourceKind = "raw"
)

// ResourceKindFallbackOrder is tried when the kind of a remote asset is unknown.
var ResourceKindFallbackOrder = []ResourceKind{ResourceImage, ResourceVideo, ResourceRaw}

// Valid reports whether the kind is one the provider accepts.
func (k ResourceKind) Valid() bool {
	switch k {
	case ResourceImage, ResourceVideo, ResourceRaw:
		return true
	default:
		return false
	}
}

// SyncStatus tracks whether a local row agrees with the provider.
type SyncStatus string

const (
	SyncStatusSynced  SyncStatus = "synced"
	SyncStatusPending SyncStatus = "pending"
	SyncStatusError   SyncStatus = "error"
)

// Asset mirrors one provider media object. PublicID is the join key with the provider;
// at most one non-deleted row exists per public id.
type Asset struct {
	ID                string         `db:"id" json:"id"`
	PublicID          string         `db:"public_id" json:"public_id"`
	Format            string         `db:"format" json:"format"`
	MimeType          string         `db:"mime_type" json:"mime_type"`
	Bytes             int64          `db:"bytes" json:"bytes"`
	Width             *int           `db:"width" json:"width,omitempty"`
	Height            *int           `db:"height" json:"height,omitempty"`
	ResourceType      ResourceKind   `db:"resource_type" json:"resource_type"`
	Version           int64          `db:"version" json:"version"`
	Signature         string         `db:"signature" json:"signature"`
	ProviderCreatedAt *time.Time     `db:"provider_created_at" json:"provider_created_at,omitempty"`
	Tags              pq.StringArray `db:"tags" json:"tags"`
	Folder            string         `db:"folder" json:"folder"`
	Description       string         `db:"description" json:"description"`
	AltText           string         `db:"alt_text" json:"alt_text"`
	URL               string         `db:"url" json:"url"`
	SecureURL         string         `db:"secure_url" json:"secure_url"`
	SyncStatus        SyncStatus     `db:"sync_status" json:"sync_status"`
	LastSyncedAt      *time.Time     `db:"last_synced_at" json:"last_synced_at,omitempty"`
	SyncError         *string        `db:"sync_error" json:"sync_error,omitempty"`
	RetryCount        int            `db:"retry_count" json:"retry_count"`
	DeletedAt         *time.Time     `db:"deleted_at" json:"deleted_at,omitempty"`
	DeletedBy         *string        `db:"deleted_by" json:"deleted_by,omitempty"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at" json:"updated_at"`
}

// Deleted reports whether the row has been soft-deleted.
func (a *Asset) Deleted() bool {
	return a != nil && a.DeletedAt != nil
}

// AssetSortField whitelists sortable columns.
type AssetSortField string

const (
	AssetSortCreatedAt AssetSortField = "created_at"
	AssetSortUpdatedAt AssetSortField = "updated_at"
	AssetSortBytes     AssetSortField = "bytes"
	AssetSortPublicID  AssetSortField = "public_id"
	AssetSortFormat    AssetSortField = "format"
)

// AssetFilter is the admin listing query. Pagination is page based.
type AssetFilter struct {
	Search       string
	Folder       string
	ResourceType ResourceKind
	Tags         []string
	SyncStatus   SyncStatus
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
	MinBytes     *int64
	MaxBytes     *int64
	SortBy       AssetSortField
	SortDesc     bool
	Page         int
	Limit        int
}

// AssetPage is one page of assets.
type AssetPage struct {
	Assets  []Asset `json:"assets"`
	Total   int     `json:"total"`
	Page    int     `json:"page"`
	Limit   int     `json:"limit"`
	HasNext bool    `json:"has_next"`
	HasPrev bool    `json:"has_prev"`
}

// AssetStats aggregates library counters for the dashboard.
type AssetStats struct {
	TotalAssets   int64 `db:"total_assets" json:"total_assets"`
	TotalImages   int64 `db:"total_images" json:"total_images"`
	TotalVideos   int64 `db:"total_videos" json:"total_videos"`
	TotalSize     int64 `db:"total_size" json:"total_size"`
	SyncedAssets  int64 `db:"synced_assets" json:"synced_assets"`
	PendingAssets int64 `db:"pending_assets" json:"pending_assets"`
	ErrorAssets   int64 `db:"error_assets" json:"error_assets"`
}

// AssetMetadataUpdate carries local admin edits that must be pushed to the provider.
type AssetMetadataUpdate struct {
	Tags        []string
	Description *string
	AltText     *string
}

// MimeTypeFor guesses a MIME type from the provider kind and format.
func MimeTypeFor(kind ResourceKind, format string) string {
	format = strings.TrimPrefix(strings.ToLower(format), ".")
	if format != "" {
		if t := mime.TypeByExtension("." + format); t != "" {
			return t
		}
		switch kind {
		case ResourceImage:
			return "image/" + format
		case ResourceVideo:
			return "video/" + format
		}
	}
	return "application/octet-stream"
}
