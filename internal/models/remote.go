package models

import (
	"encoding/json"
	"time"
)

// RemoteResource is the provider's view of one asset, as returned by search, resource lookup,
// upload responses and upload notifications.
type RemoteResource struct {
	PublicID     string       `json:"public_id"`
	AssetID      string       `json:"asset_id,omitempty"`
	ResourceType ResourceKind `json:"resource_type"`
	Format       string       `json:"format"`
	Version      int64        `json:"version"`
	Etag         string       `json:"etag,omitempty"`
	Bytes        int64        `json:"bytes"`
	Width        int          `json:"width,omitempty"`
	Height       int          `json:"height,omitempty"`
	Tags         []string     `json:"tags"`
	Folder       string       `json:"folder,omitempty"`
	URL          string       `json:"url"`
	SecureURL    string       `json:"secure_url"`
	CreatedAt    time.Time    `json:"created_at"`
	Context      ResourceCtx  `json:"context,omitempty"`
}

// ResourceCtx holds contextual metadata. The provider nests it under "custom" in some
// responses and flattens it in others; both shapes decode to the same value.
type ResourceCtx struct {
	Alt     string `json:"alt,omitempty"`
	Caption string `json:"caption,omitempty"`
}

// UnmarshalJSON accepts {"custom":{"alt":..}} and {"alt":..}.
func (c *ResourceCtx) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var outer map[string]json.RawMessage
	if err := json.Unmarshal(data, &outer); err != nil {
		return err
	}
	if custom, ok := outer["custom"]; ok {
		outer = nil
		if err := json.Unmarshal(custom, &outer); err != nil {
			return err
		}
	}
	c.Alt = rawString(outer["alt"])
	c.Caption = rawString(outer["caption"])
	return nil
}

func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// Dimensions returns pixel dimensions, nil for non-image kinds or unknown sizes.
func (r RemoteResource) Dimensions() (*int, *int) {
	if r.Width <= 0 || r.Height <= 0 {
		return nil, nil
	}
	w, h := r.Width, r.Height
	return &w, &h
}

// ResourceRef identifies a remote asset without its content descriptors.
type ResourceRef struct {
	PublicID     string       `json:"public_id"`
	ResourceType ResourceKind `json:"resource_type"`
}
