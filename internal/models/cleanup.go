package models

import "time"

// CleanupStatus captures the queue item lifecycle.
type CleanupStatus string

const (
	CleanupPending    CleanupStatus = "pending"
	CleanupProcessing CleanupStatus = "processing"
	CleanupCompleted  CleanupStatus = "completed"
	CleanupFailed     CleanupStatus = "failed"
	CleanupSkipped    CleanupStatus = "skipped"
)

// Terminal reports whether the item will not be picked up again without force.
func (s CleanupStatus) Terminal() bool {
	return s == CleanupCompleted || s == CleanupSkipped
}

// CleanupItem is a pending provider-side deletion created by a local soft delete.
type CleanupItem struct {
	ID                 string        `db:"id" json:"id"`
	PublicID           string        `db:"public_id" json:"public_id"`
	ResourceType       ResourceKind  `db:"resource_type" json:"resource_type"`
	Reason             string        `db:"reason" json:"reason"`
	TriggeredBy        string        `db:"triggered_by" json:"triggered_by"`
	ProcessingAttempts int           `db:"processing_attempts" json:"processing_attempts"`
	MaxAttempts        int           `db:"max_attempts" json:"max_attempts"`
	Status             CleanupStatus `db:"status" json:"status"`
	ProviderResponse   JSONMap       `db:"provider_response" json:"provider_response,omitempty"`
	ErrorMessage       *string       `db:"error_message" json:"error_message,omitempty"`
	CreatedAt          time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time     `db:"updated_at" json:"updated_at"`
	ProcessedAt        *time.Time    `db:"processed_at" json:"processed_at,omitempty"`
}

// Exhausted reports whether the attempt ceiling has been reached.
func (i CleanupItem) Exhausted() bool {
	return i.MaxAttempts > 0 && i.ProcessingAttempts >= i.MaxAttempts
}

// CleanupRequest describes why a deletion was queued.
type CleanupRequest struct {
	Reason      string
	TriggeredBy string
	MaxAttempts int
}
