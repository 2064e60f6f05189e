package dto

import "time"

// SyncRequest triggers a sync run, or a single-asset sync when SingleAsset is set.
type SyncRequest struct {
	Mode               string `json:"mode" binding:"omitempty,oneof=full remote_to_local local_to_remote orphans"`
	Force              bool   `json:"force"`
	BatchSize          int    `json:"batch_size" binding:"omitempty,min=1,max=500"`
	MaxRetries         int    `json:"max_retries" binding:"omitempty,min=1,max=20"`
	IncludeDeleted     bool   `json:"include_deleted"`
	FolderFilter       string `json:"folder_filter" binding:"omitempty,max=255"`
	ResourceTypeFilter string `json:"resource_type_filter" binding:"omitempty,oneof=image video raw"`
	SingleAsset        string `json:"single_asset" binding:"omitempty,max=255"`
	Async              bool   `json:"async"`
}

// SyncAcceptedResponse is returned when a sync was queued.
type SyncAcceptedResponse struct {
	JobID string `json:"job_id"`
	Mode  string `json:"mode"`
}

// SyncLogQuery filters the sync audit log.
type SyncLogQuery struct {
	PublicID  string     `form:"public_id"`
	Operation string     `form:"operation" binding:"omitempty,oneof=upload update delete restore"`
	Source    string     `form:"source" binding:"omitempty,oneof=webhook admin scheduled api"`
	Status    string     `form:"status" binding:"omitempty,oneof=success error skipped"`
	From      *time.Time `form:"from" time_format:"2006-01-02"`
	To        *time.Time `form:"to" time_format:"2006-01-02"`
	Page      int        `form:"page" binding:"omitempty,min=1"`
	Limit     int        `form:"limit" binding:"omitempty,min=1,max=500"`
	Format    string     `form:"format" binding:"omitempty,oneof=csv pdf"`
}

// SyncOperationQuery filters recent sync operations.
type SyncOperationQuery struct {
	Kind  string `form:"operation_type" binding:"omitempty,oneof=full_sync cloudinary_to_db db_to_cloudinary cleanup single_asset"`
	Limit int    `form:"limit" binding:"omitempty,min=1,max=100"`
}

// CleanupRequest drains the cleanup queue synchronously.
type CleanupRequest struct {
	Limit      int    `json:"limit" binding:"omitempty,min=1,max=100"`
	ForceRetry bool   `json:"force_retry"`
	SpecificID string `json:"specific_id" binding:"omitempty,uuid"`
}

// SchedulerConfigPayload adjusts the cleanup schedule. Interval uses Go duration syntax, e.g. "5m".
type SchedulerConfigPayload struct {
	Interval  string `json:"interval" binding:"required"`
	BatchSize int    `json:"batch_size" binding:"required,min=1,max=100"`
}

// SchedulerRequest controls the cleanup scheduler.
type SchedulerRequest struct {
	Action     string                  `json:"action" binding:"required,oneof=start stop restart configure force_cleanup status"`
	Config     *SchedulerConfigPayload `json:"config"`
	ForceRetry bool                    `json:"force_retry"`
}

// WebhookSimulateRequest synthesizes a provider notification for one asset.
type WebhookSimulateRequest struct {
	PublicID     string `json:"public_id" binding:"required,max=255"`
	Action       string `json:"action" binding:"required,oneof=upload update delete restore"`
	ResourceType string `json:"resource_type" binding:"omitempty,oneof=image video raw"`
}

// CleanupQueueQuery browses the deletion queue.
type CleanupQueueQuery struct {
	Status string `form:"status" binding:"omitempty,oneof=pending processing completed failed skipped"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=200"`
}

// QueueRemoteDeletionRequest queues the deletion of a provider asset without a local row.
type QueueRemoteDeletionRequest struct {
	PublicID     string `json:"public_id" binding:"required,max=255"`
	ResourceType string `json:"resource_type" binding:"omitempty,oneof=image video raw"`
	Reason       string `json:"reason" binding:"omitempty,max=500"`
}
