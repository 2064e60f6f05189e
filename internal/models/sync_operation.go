package models

import "time"

// SyncOperationKind distinguishes a full sync from the individually triggered phases.
type SyncOperationKind string

const (
	SyncKindFull        SyncOperationKind = "full_sync"
	SyncKindRemoteToDB  SyncOperationKind = "cloudinary_to_db"
	SyncKindDBToRemote  SyncOperationKind = "db_to_cloudinary"
	SyncKindCleanup     SyncOperationKind = "cleanup"
	SyncKindSingleAsset SyncOperationKind = "single_asset"
)

// SyncOperationStatus walks pending → cloudinary_to_db → db_to_cloudinary → cleanup → completed|failed.
type SyncOperationStatus string

const (
	SyncOpPending    SyncOperationStatus = "pending"
	SyncOpRemoteToDB SyncOperationStatus = "cloudinary_to_db"
	SyncOpDBToRemote SyncOperationStatus = "db_to_cloudinary"
	SyncOpCleanup    SyncOperationStatus = "cleanup"
	SyncOpCompleted  SyncOperationStatus = "completed"
	SyncOpFailed     SyncOperationStatus = "failed"
)

// Finished reports whether the operation reached a terminal state.
func (s SyncOperationStatus) Finished() bool {
	return s == SyncOpCompleted || s == SyncOpFailed
}

// SyncOperation is the observability record of one sync invocation.
type SyncOperation struct {
	ID             string              `db:"id" json:"id"`
	Kind           SyncOperationKind   `db:"operation_type" json:"operation_type"`
	Status         SyncOperationStatus `db:"status" json:"status"`
	Progress       int                 `db:"progress" json:"progress"`
	TotalItems     int                 `db:"total_items" json:"total_items"`
	ProcessedItems int                 `db:"processed_items" json:"processed_items"`
	FailedItems    int                 `db:"failed_items" json:"failed_items"`
	StartedAt      time.Time           `db:"started_at" json:"started_at"`
	CompletedAt    *time.Time          `db:"completed_at" json:"completed_at,omitempty"`
	TriggeredBy    string              `db:"triggered_by" json:"triggered_by"`
	OperationData  JSONMap             `db:"operation_data" json:"operation_data,omitempty"`
	ErrorDetails   JSONMap             `db:"error_details" json:"error_details,omitempty"`
}

// SyncProgress is one in-place progress update of an operation.
type SyncProgress struct {
	Status         SyncOperationStatus
	Progress       int
	TotalItems     int
	ProcessedItems int
	FailedItems    int
}
