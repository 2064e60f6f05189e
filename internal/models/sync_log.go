package models

import "time"

// SyncLogOperation names the sync-affecting action that was recorded.
type SyncLogOperation string

const (
	SyncLogUpload  SyncLogOperation = "upload"
	SyncLogUpdate  SyncLogOperation = "update"
	SyncLogDelete  SyncLogOperation = "delete"
	SyncLogRestore SyncLogOperation = "restore"
)

// SyncSource identifies who triggered a sync-affecting operation.
type SyncSource string

const (
	SyncSourceWebhook   SyncSource = "webhook"
	SyncSourceAdmin     SyncSource = "admin"
	SyncSourceScheduled SyncSource = "scheduled"
	SyncSourceAPI       SyncSource = "api"
)

// SyncLogStatus is the outcome of a logged operation.
type SyncLogStatus string

const (
	SyncLogSuccess SyncLogStatus = "success"
	SyncLogError   SyncLogStatus = "error"
	SyncLogSkipped SyncLogStatus = "skipped"
)

// SyncLogEntry is an append-only audit record. Rows are inserted, never updated.
type SyncLogEntry struct {
	ID           string           `db:"id" json:"id"`
	PublicID     string           `db:"public_id" json:"public_id"`
	Operation    SyncLogOperation `db:"operation" json:"operation"`
	Source       SyncSource       `db:"source" json:"source"`
	Status       SyncLogStatus    `db:"status" json:"status"`
	ErrorMessage *string          `db:"error_message" json:"error_message,omitempty"`
	Details      JSONMap          `db:"details" json:"details,omitempty"`
	OperationID  *string          `db:"operation_id" json:"operation_id,omitempty"`
	DurationMs   int64            `db:"duration_ms" json:"duration_ms"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
}

// SyncLogFilter narrows audit listing queries.
type SyncLogFilter struct {
	PublicID  string
	Operation SyncLogOperation
	Source    SyncSource
	Status    SyncLogStatus
	From      *time.Time
	To        *time.Time
	Page      int
	Limit     int
}
