// Package mediastore is a thin REST client for the hosted media provider. It covers the calls the
// sync pipeline needs (upload, destroy, search, resource lookup, metadata update) and never retries
// on its own; callers decide what a failure means.
package mediastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/noah-isme/lgu-admin-api/internal/models"
	"github.com/noah-isme/lgu-admin-api/pkg/signature"
)

// ErrNotFound is returned when the provider reports the resource does not exist.
var ErrNotFound = errors.New("mediastore: resource not found")

// APIError is any non-404 provider failure.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mediastore: provider returned %d: %s", e.StatusCode, e.Message)
}

const defaultBaseURL = "https://api.cloudinary.com"

// Config holds provider credentials and client tuning.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	BaseURL   string
	Timeout   time.Duration
	// RPS <= 0 disables client-side throttling.
	RPS   float64
	Burst int
	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
	// Observe is called once per provider call.
	Observe func(operation string, duration time.Duration, err error)
}

// Client talks to the provider REST API.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	now     func() time.Time
}

// New validates the configuration and builds a client.
func New(cfg Config) (*Client, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, errors.New("mediastore: cloud name, api key and api secret are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RPS > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}

	return &Client{cfg: cfg, http: httpClient, limiter: limiter, now: time.Now}, nil
}

func (c *Client) endpoint(parts ...string) string {
	return c.cfg.BaseURL + "/v1_1/" + url.PathEscape(c.cfg.CloudName) + "/" + strings.Join(parts, "/")
}

// signedForm adds api_key, timestamp and signature to a form payload.
func (c *Client) signedForm(params map[string]string) url.Values {
	params["timestamp"] = strconv.FormatInt(c.now().Unix(), 10)
	sig := signature.SignParams(params, c.cfg.APISecret)

	form := url.Values{}
	for k, v := range params {
		if v != "" {
			form.Set(k, v)
		}
	}
	form.Set("api_key", c.cfg.APIKey)
	form.Set("signature", sig)
	return form
}

func (c *Client) do(ctx context.Context, operation string, req *http.Request, admin bool, out interface{}) (err error) {
	start := time.Now()
	defer func() {
		if c.cfg.Observe != nil {
			c.cfg.Observe(operation, time.Since(start), err)
		}
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("mediastore: %s: %w", operation, err)
	}
	if admin {
		req.SetBasicAuth(c.cfg.APIKey, c.cfg.APISecret)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("mediastore: %s: %w", operation, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("mediastore: %s: read response: %w", operation, err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return &APIError{StatusCode: resp.StatusCode, Message: providerMessage(body)}
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("mediastore: %s: decode response: %w", operation, err)
	}
	return nil
}

func providerMessage(body []byte) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 256 {
		msg = msg[:256]
	}
	return msg
}

func (c *Client) postForm(ctx context.Context, operation, endpoint string, form url.Values, admin bool, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("mediastore: %s: build request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(ctx, operation, req, admin, out)
}

func kindOrDefault(kind models.ResourceKind) string {
	if kind == "" {
		return string(models.ResourceImage)
	}
	return string(kind)
}

// escapeID escapes each path segment of a public id while keeping folder separators.
func escapeID(publicID string) string {
	segments := strings.Split(publicID, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
