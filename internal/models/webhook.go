package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// NotificationKind is the provider's notification_type.
type NotificationKind string

const (
	NotificationUpload  NotificationKind = "upload"
	NotificationUpdate  NotificationKind = "update"
	NotificationDelete  NotificationKind = "delete"
	NotificationRestore NotificationKind = "restore"
)

var (
	ErrMalformedNotification   = errors.New("malformed webhook payload")
	ErrUnsupportedNotification = errors.New("unsupported notification type")
)

// WebhookNotification is the closed set of push notifications the sync engine understands:
// *UploadNotification, *UpdateNotification, *DeleteNotification and *RestoreNotification.
type WebhookNotification interface {
	Kind() NotificationKind
	// PublicIDs lists every asset the notification touches, for logging.
	PublicIDs() []string
	isWebhookNotification()
}

// UploadNotification carries the complete resource as uploaded.
type UploadNotification struct {
	Resource RemoteResource
}

// AssetPatch lists the fields an update notification actually carried. Nil means "not sent".
type AssetPatch struct {
	Tags        *[]string
	Description *string
	AltText     *string
	Version     *int64
	Etag        *string
	Bytes       *int64
	Format      *string
	Width       *int
	Height      *int
	Folder      *string
	URL         *string
	SecureURL   *string
}

// Empty reports whether no field was sent.
func (p AssetPatch) Empty() bool {
	return p == (AssetPatch{})
}

// UpdateNotification carries a partial change to an existing resource.
type UpdateNotification struct {
	Ref   ResourceRef
	Patch AssetPatch
}

// DeleteNotification lists resources removed at the provider.
type DeleteNotification struct {
	Targets []ResourceRef
}

// RestoreNotification lists resources restored at the provider.
type RestoreNotification struct {
	Targets []ResourceRef
}

func (*UploadNotification) Kind() NotificationKind  { return NotificationUpload }
func (*UpdateNotification) Kind() NotificationKind  { return NotificationUpdate }
func (*DeleteNotification) Kind() NotificationKind  { return NotificationDelete }
func (*RestoreNotification) Kind() NotificationKind { return NotificationRestore }

func (n *UploadNotification) PublicIDs() []string  { return []string{n.Resource.PublicID} }
func (n *UpdateNotification) PublicIDs() []string  { return []string{n.Ref.PublicID} }
func (n *DeleteNotification) PublicIDs() []string  { return refIDs(n.Targets) }
func (n *RestoreNotification) PublicIDs() []string { return refIDs(n.Targets) }

func (*UploadNotification) isWebhookNotification()  {}
func (*UpdateNotification) isWebhookNotification()  {}
func (*DeleteNotification) isWebhookNotification()  {}
func (*RestoreNotification) isWebhookNotification() {}

func refIDs(refs []ResourceRef) []string {
	ids := make([]string, 0, len(refs))
	for _, r := range refs {
		ids = append(ids, r.PublicID)
	}
	return ids
}

type rawNotification struct {
	NotificationType string        `json:"notification_type"`
	PublicID         string        `json:"public_id"`
	AssetID          string        `json:"asset_id"`
	ResourceType     ResourceKind  `json:"resource_type"`
	Resources        []ResourceRef `json:"resources"`
	Format           *string       `json:"format"`
	Version          *int64        `json:"version"`
	Etag             *string       `json:"etag"`
	Bytes            *int64        `json:"bytes"`
	Width            *int          `json:"width"`
	Height           *int          `json:"height"`
	Tags             *[]string     `json:"tags"`
	Folder           *string       `json:"folder"`
	URL              *string       `json:"url"`
	SecureURL        *string       `json:"secure_url"`
	CreatedAt        *time.Time    `json:"created_at"`
	Context          *ResourceCtx  `json:"context"`
	Description      *string       `json:"description"`
}

// ParseWebhook validates a raw provider payload once and returns the matching variant.
func ParseWebhook(body []byte) (WebhookNotification, error) {
	var raw rawNotification
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedNotification, err)
	}
	kind := NotificationKind(strings.ToLower(strings.TrimSpace(raw.NotificationType)))

	switch kind {
	case NotificationUpload:
		if raw.PublicID == "" {
			return nil, fmt.Errorf("%w: upload without public_id", ErrMalformedNotification)
		}
		return &UploadNotification{Resource: raw.resource()}, nil
	case NotificationUpdate:
		if raw.PublicID == "" {
			return nil, fmt.Errorf("%w: update without public_id", ErrMalformedNotification)
		}
		return &UpdateNotification{
			Ref:   ResourceRef{PublicID: raw.PublicID, ResourceType: raw.ResourceType},
			Patch: raw.patch(),
		}, nil
	case NotificationDelete, NotificationRestore:
		targets := raw.targets()
		if len(targets) == 0 {
			return nil, fmt.Errorf("%w: %s without resources", ErrMalformedNotification, kind)
		}
		if kind == NotificationDelete {
			return &DeleteNotification{Targets: targets}, nil
		}
		return &RestoreNotification{Targets: targets}, nil
	case "":
		return nil, fmt.Errorf("%w: notification_type missing", ErrMalformedNotification)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedNotification, raw.NotificationType)
	}
}

func (r rawNotification) targets() []ResourceRef {
	targets := make([]ResourceRef, 0, len(r.Resources)+1)
	for _, res := range r.Resources {
		if res.PublicID != "" {
			targets = append(targets, res)
		}
	}
	if len(targets) == 0 && r.PublicID != "" {
		targets = append(targets, ResourceRef{PublicID: r.PublicID, ResourceType: r.ResourceType})
	}
	return targets
}

func (r rawNotification) resource() RemoteResource {
	res := RemoteResource{
		PublicID:     r.PublicID,
		AssetID:      r.AssetID,
		ResourceType: r.ResourceType,
		Format:       deref(r.Format),
		Version:      deref(r.Version),
		Etag:         deref(r.Etag),
		Bytes:        deref(r.Bytes),
		Width:        deref(r.Width),
		Height:       deref(r.Height),
		Folder:       deref(r.Folder),
		URL:          deref(r.URL),
		SecureURL:    deref(r.SecureURL),
	}
	if res.ResourceType == "" {
		res.ResourceType = ResourceImage
	}
	if r.Tags != nil {
		res.Tags = *r.Tags
	}
	if r.CreatedAt != nil {
		res.CreatedAt = *r.CreatedAt
	}
	if r.Context != nil {
		res.Context = *r.Context
	}
	if res.Context.Caption == "" && r.Description != nil {
		res.Context.Caption = *r.Description
	}
	return res
}

func (r rawNotification) patch() AssetPatch {
	p := AssetPatch{
		Tags:      r.Tags,
		Version:   r.Version,
		Etag:      r.Etag,
		Bytes:     r.Bytes,
		Format:    r.Format,
		Width:     r.Width,
		Height:    r.Height,
		Folder:    r.Folder,
		URL:       r.URL,
		SecureURL: r.SecureURL,
	}
	if r.Context != nil {
		alt, caption := r.Context.Alt, r.Context.Caption
		p.AltText = &alt
		p.Description = &caption
	}
	if r.Description != nil {
		p.Description = r.Description
	}
	return p
}

func deref[T any](v *T) T {
	var zero T
	if v == nil {
		return zero
	}
	return *v
}
