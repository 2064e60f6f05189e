package service

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/noah-isme/lgu-admin-api/internal/models"
)

// keyedMutex serializes work per public id. Entries are dropped once nobody holds or waits on them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedEntry)}
}

// Lock blocks until the key is free and returns the matching unlock.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &keyedEntry{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// hasChanged compares the provider-owned fields that signal a new revision.
func hasChanged(local *models.Asset, remote models.RemoteResource) bool {
	if local.Version != remote.Version {
		return true
	}
	if local.Signature != remote.Etag {
		return true
	}
	if local.Bytes != remote.Bytes {
		return true
	}
	return !sameTagSet(local.Tags, remote.Tags)
}

func sameTagSet(a, b []string) bool {
	left := normalizeTags(a)
	right := normalizeTags(b)
	if len(left) != len(right) {
		return false
	}
	for i := range left {
		if left[i] != right[i] {
			return false
		}
	}
	return true
}

func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// assetFromRemote builds a fresh synced row from the provider view.
func assetFromRemote(remote models.RemoteResource) *models.Asset {
	asset := &models.Asset{PublicID: remote.PublicID}
	applyRemote(asset, remote)
	return asset
}

// applyRemote overwrites the provider-owned fields of a local row and marks it synced.
// Description and alt text are only replaced when the provider carries a value.
func applyRemote(asset *models.Asset, remote models.RemoteResource) {
	kind := remote.ResourceType
	if !kind.Valid() {
		kind = models.ResourceImage
	}
	asset.Format = remote.Format
	asset.MimeType = models.MimeTypeFor(kind, remote.Format)
	asset.Bytes = remote.Bytes
	asset.Width, asset.Height = remote.Dimensions()
	asset.ResourceType = kind
	asset.Version = remote.Version
	asset.Signature = remote.Etag
	if !remote.CreatedAt.IsZero() {
		created := remote.CreatedAt.UTC()
		asset.ProviderCreatedAt = &created
	}
	asset.Tags = pq.StringArray(normalizeTags(remote.Tags))
	asset.Folder = remote.Folder
	if asset.Folder == "" {
		asset.Folder = folderOf(remote.PublicID)
	}
	if remote.Context.Caption != "" {
		asset.Description = remote.Context.Caption
	}
	if remote.Context.Alt != "" {
		asset.AltText = remote.Context.Alt
	}
	asset.URL = remote.URL
	asset.SecureURL = remote.SecureURL
	markSynced(asset)
}

func markSynced(asset *models.Asset) {
	now := time.Now().UTC()
	asset.SyncStatus = models.SyncStatusSynced
	asset.SyncError = nil
	asset.RetryCount = 0
	asset.LastSyncedAt = &now
}

// applyPatch merges the fields an update notification carried into the row and marks it synced.
func applyPatch(asset *models.Asset, patch models.AssetPatch) {
	if patch.Tags != nil {
		asset.Tags = pq.StringArray(normalizeTags(*patch.Tags))
	}
	if patch.Description != nil {
		asset.Description = *patch.Description
	}
	if patch.AltText != nil {
		asset.AltText = *patch.AltText
	}
	applyProviderPatch(asset, patch)
	markSynced(asset)
}

// applyProviderPatch merges only the fields the provider owns. Tags, description and alt
// text are left alone so unpushed local edits survive.
func applyProviderPatch(asset *models.Asset, patch models.AssetPatch) {
	if patch.Version != nil {
		asset.Version = *patch.Version
	}
	if patch.Etag != nil {
		asset.Signature = *patch.Etag
	}
	if patch.Bytes != nil {
		asset.Bytes = *patch.Bytes
	}
	if patch.Format != nil {
		asset.Format = *patch.Format
		asset.MimeType = models.MimeTypeFor(asset.ResourceType, asset.Format)
	}
	if patch.Width != nil && *patch.Width > 0 {
		w := *patch.Width
		asset.Width = &w
	}
	if patch.Height != nil && *patch.Height > 0 {
		h := *patch.Height
		asset.Height = &h
	}
	if patch.Folder != nil {
		asset.Folder = *patch.Folder
	}
	if patch.URL != nil {
		asset.URL = *patch.URL
	}
	if patch.SecureURL != nil {
		asset.SecureURL = *patch.SecureURL
	}
}

func folderOf(publicID string) string {
	if i := strings.LastIndex(publicID, "/"); i > 0 {
		return publicID[:i]
	}
	return ""
}
