package mediastore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/noah-isme/lgu-admin-api/internal/models"
	"github.com/noah-isme/lgu-admin-api/pkg/signature"
)

// Destroy results reported by the provider. Both mean the asset is gone.
const (
	DestroyOK       = "ok"
	DestroyNotFound = "not found"
)

// UploadOptions controls how a new asset is stored at the provider.
type UploadOptions struct {
	PublicID string
	Folder   string
	Tags     []string
	// Kind defaults to "auto" so the provider detects the type.
	Kind        models.ResourceKind
	Description string
	AltText     string
}

// DestroyResult is the provider's answer to a destroy call.
type DestroyResult struct {
	Result string `json:"result"`
}

// Succeeded reports whether the asset no longer exists at the provider.
func (r *DestroyResult) Succeeded() bool {
	return r != nil && (r.Result == DestroyOK || r.Result == DestroyNotFound)
}

// NotFound reports whether the provider had nothing to delete.
func (r *DestroyResult) NotFound() bool {
	return r != nil && r.Result == DestroyNotFound
}

// SearchQuery is one page request against the search API.
type SearchQuery struct {
	Expression string
	// SortBy defaults to created_at, SortDir to desc.
	SortBy     string
	SortDir    string
	MaxResults int
	NextCursor string
}

// SearchResult is one page of search hits.
type SearchResult struct {
	TotalCount int                     `json:"total_count"`
	Resources  []models.RemoteResource `json:"resources"`
	NextCursor string                  `json:"next_cursor"`
}

// ResourceUpdate is the metadata pushed from local admin edits.
type ResourceUpdate struct {
	Tags        []string
	Description string
	AltText     string
}

// Upload stores a new file at the provider.
func (c *Client) Upload(ctx context.Context, filename string, file io.Reader, opts UploadOptions) (*models.RemoteResource, error) {
	kind := string(opts.Kind)
	if kind == "" {
		kind = "auto"
	}
	params := map[string]string{
		"public_id": opts.PublicID,
		"folder":    opts.Folder,
		"tags":      strings.Join(opts.Tags, ","),
		"context":   contextParam(opts.AltText, opts.Description),
	}
	fields := c.signedForm(params)

	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	for k := range fields {
		if err := writer.WriteField(k, fields.Get(k)); err != nil {
			return nil, fmt.Errorf("mediastore: upload: write field %s: %w", k, err)
		}
	}
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("mediastore: upload: create file part: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("mediastore: upload: copy file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("mediastore: upload: close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(kind, "upload"), buf)
	if err != nil {
		return nil, fmt.Errorf("mediastore: upload: build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var out models.RemoteResource
	if err := c.do(ctx, "upload", req, false, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Destroy deletes an asset of the given kind. A missing asset is reported as a successful
// "not found" result, never as ErrNotFound.
func (c *Client) Destroy(ctx context.Context, publicID string, kind models.ResourceKind) (*DestroyResult, error) {
	form := c.signedForm(map[string]string{
		"public_id":  publicID,
		"invalidate": "true",
	})
	var out DestroyResult
	err := c.postForm(ctx, "destroy", c.endpoint(kindOrDefault(kind), "destroy"), form, false, &out)
	if errors.Is(err, ErrNotFound) {
		return &DestroyResult{Result: DestroyNotFound}, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DestroyAnyKind destroys an asset whose kind is unknown, trying image, video and raw in turn.
// It stops at the first "ok". The asset counts as already gone only when every kind answered
// "not found"; any other failure is returned so the deletion is retried.
func (c *Client) DestroyAnyKind(ctx context.Context, publicID string) (*DestroyResult, error) {
	var (
		lastErr  error
		notFound bool
	)
	for _, kind := range models.ResourceKindFallbackOrder {
		res, err := c.Destroy(ctx, publicID, kind)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if res.Result == DestroyOK {
			return res, nil
		}
		if res.NotFound() {
			notFound = true
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	if notFound {
		return &DestroyResult{Result: DestroyNotFound}, nil
	}
	return nil, &APIError{StatusCode: http.StatusBadGateway, Message: "destroy returned no result"}
}

// Search runs one page of the search API.
func (c *Client) Search(ctx context.Context, q SearchQuery) (*SearchResult, error) {
	sortBy := q.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	sortDir := q.SortDir
	if sortDir == "" {
		sortDir = "desc"
	}
	payload := map[string]interface{}{
		"sort_by":     []map[string]string{{sortBy: sortDir}},
		"with_field":  []string{"tags", "context"},
		"max_results": q.MaxResults,
	}
	if q.Expression != "" {
		payload["expression"] = q.Expression
	}
	if q.NextCursor != "" {
		payload["next_cursor"] = q.NextCursor
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("mediastore: search: encode: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("resources", "search"), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("mediastore: search: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out SearchResult
	if err := c.do(ctx, "search", req, true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SearchAll follows next_cursor until the provider stops returning one, handing each page to fn.
// An error from fn stops the walk.
func (c *Client) SearchAll(ctx context.Context, q SearchQuery, fn func(page []models.RemoteResource) error) error {
	seen := map[string]struct{}{}
	for {
		page, err := c.Search(ctx, q)
		if err != nil {
			return err
		}
		if len(page.Resources) > 0 {
			if err := fn(page.Resources); err != nil {
				return err
			}
		}
		if page.NextCursor == "" {
			return nil
		}
		if _, loop := seen[page.NextCursor]; loop {
			return &APIError{StatusCode: http.StatusBadGateway, Message: "search cursor repeated"}
		}
		seen[page.NextCursor] = struct{}{}
		q.NextCursor = page.NextCursor
	}
}

// Resource fetches one asset. A missing asset yields ErrNotFound.
func (c *Client) Resource(ctx context.Context, publicID string, kind models.ResourceKind) (*models.RemoteResource, error) {
	endpoint := c.endpoint("resources", kindOrDefault(kind), "upload", escapeID(publicID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("mediastore: resource: build request: %w", err)
	}
	var out models.RemoteResource
	if err := c.do(ctx, "resource", req, true, &out); err != nil {
		return nil, err
	}
	if out.ResourceType == "" {
		out.ResourceType = models.ResourceKind(kindOrDefault(kind))
	}
	return &out, nil
}

// ResourceAnyKind looks an asset up under image, video and raw in turn. ErrNotFound is returned only
// when every kind answered 404; otherwise the last ambiguous error is returned.
func (c *Client) ResourceAnyKind(ctx context.Context, publicID string) (*models.RemoteResource, error) {
	var lastErr error
	for _, kind := range models.ResourceKindFallbackOrder {
		res, err := c.Resource(ctx, publicID, kind)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, ErrNotFound) {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, ErrNotFound
}

// UpdateResource replaces tags and contextual metadata of an existing asset.
func (c *Client) UpdateResource(ctx context.Context, publicID string, kind models.ResourceKind, update ResourceUpdate) error {
	form := url.Values{}
	form.Set("tags", strings.Join(update.Tags, ","))
	form.Set("context", contextParam(update.AltText, update.Description))
	endpoint := c.endpoint("resources", kindOrDefault(kind), "upload", escapeID(publicID))
	return c.postForm(ctx, "update", endpoint, form, true, nil)
}

// contextParam encodes alt/caption as the provider's "key=value|key=value" context string.
func contextParam(alt, caption string) string {
	var pairs []string
	if alt != "" {
		pairs = append(pairs, "alt="+escapeContext(alt))
	}
	if caption != "" {
		pairs = append(pairs, "caption="+escapeContext(caption))
	}
	return strings.Join(pairs, "|")
}

func escapeContext(v string) string {
	return strings.NewReplacer("|", `\|`, "=", `\=`).Replace(v)
}

// SignedUploadParams returns the fields a browser needs for a direct signed upload.
func (c *Client) SignedUploadParams(folder string) map[string]string {
	params := map[string]string{"folder": folder}
	params["timestamp"] = strconv.FormatInt(c.now().Unix(), 10)
	params["signature"] = signature.SignParams(params, c.cfg.APISecret)
	params["api_key"] = c.cfg.APIKey
	params["cloud_name"] = c.cfg.CloudName
	return params
}
