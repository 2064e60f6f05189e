package dto

import "time"

// AssetListQuery captures the admin asset listing filters.
type AssetListQuery struct {
	Search       string     `form:"search"`
	Folder       string     `form:"folder"`
	ResourceType string     `form:"resource_type" binding:"omitempty,oneof=image video raw"`
	Tags         []string   `form:"tags"`
	SyncStatus   string     `form:"sync_status" binding:"omitempty,oneof=synced pending error"`
	CreatedFrom  *time.Time `form:"created_from" time_format:"2006-01-02"`
	CreatedTo    *time.Time `form:"created_to" time_format:"2006-01-02"`
	MinBytes     *int64     `form:"min_bytes" binding:"omitempty,min=0"`
	MaxBytes     *int64     `form:"max_bytes" binding:"omitempty,min=0"`
	SortBy       string     `form:"sort_by" binding:"omitempty,oneof=created_at updated_at bytes public_id format"`
	SortOrder    string     `form:"sort_order" binding:"omitempty,oneof=asc desc"`
	Page         int        `form:"page" binding:"omitempty,min=1"`
	Limit        int        `form:"limit" binding:"omitempty,min=1,max=100"`
}

// UploadAssetForm carries the non-file fields of a multipart upload.
type UploadAssetForm struct {
	PublicID     string `form:"public_id" binding:"omitempty,max=255"`
	Folder       string `form:"folder" binding:"omitempty,max=255"`
	Tags         string `form:"tags"`
	ResourceType string `form:"resource_type" binding:"omitempty,oneof=auto image video raw"`
	Description  string `form:"description" binding:"omitempty,max=2000"`
	AltText      string `form:"alt_text" binding:"omitempty,max=500"`
}

// UpdateAssetRequest edits local metadata. Omitted fields are left unchanged.
type UpdateAssetRequest struct {
	Tags        *[]string `json:"tags" binding:"omitempty,max=50,dive,min=1,max=255"`
	Description *string   `json:"description" binding:"omitempty,max=2000"`
	AltText     *string   `json:"alt_text" binding:"omitempty,max=500"`
}

// DeleteAssetRequest explains an admin deletion.
type DeleteAssetRequest struct {
	Reason string `json:"reason" binding:"omitempty,max=500"`
}

// DeleteAssetResponse returns the queued cleanup item.
type DeleteAssetResponse struct {
	PublicID string `json:"public_id"`
	QueueID  string `json:"queue_id"`
}

// UploadSignatureQuery selects the target folder of a direct upload.
type UploadSignatureQuery struct {
	Folder string `form:"folder" binding:"omitempty,max=255"`
}
