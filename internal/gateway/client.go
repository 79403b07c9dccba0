// Buddybridge - Baby Buddy Polling Bridge
// Copyright 2026 Buddybridge contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/buddybridge/buddybridge

/*
client.go - Baby Buddy REST API Client

Implements token-authenticated access to the Baby Buddy endpoint
directory: connectivity probing, paginated reads, and entry writes
with a compatibility retry for older serializer versions.

API Reference: https://docs.baby-buddy.net/api/
*/

package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/buddybridge/buddybridge/internal/config"
	"github.com/buddybridge/buddybridge/internal/logging"
	"github.com/buddybridge/buddybridge/internal/metrics"
	"github.com/buddybridge/buddybridge/internal/models"
)

// API defines the upstream operations the rest of the service depends
// on. Both Client and BreakerClient implement this interface.
type API interface {
	Connect(ctx context.Context) error
	Children(ctx context.Context) (*models.ChildrenPage, error)
	First(ctx context.Context, endpoint string, childID int) (models.Record, error)
	Create(ctx context.Context, endpoint string, data map[string]any) (models.Record, error)
	Update(ctx context.Context, endpoint string, id int, data map[string]any) (models.Record, error)
	Delete(ctx context.Context, endpoint string, id int) error
}

// Ensure Client implements API
var _ API = (*Client)(nil)

// Client provides access to the Baby Buddy REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	// endpoints caches the endpoint directory from the API root,
	// keyed by endpoint name, populated by Connect.
	mu        sync.RWMutex
	endpoints map[string]string

	// now is swappable for deterministic compat-retry timestamps in tests.
	now func() time.Time
}

// NewClient creates a Baby Buddy API client from resolved configuration.
//
// Parameters:
//   - cfg: upstream connection settings (host, port, path prefix, API key)
func NewClient(cfg *config.BabyBuddyConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL() + "/api",
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		now: time.Now,
	}
}

// Connect fetches the API root to verify reachability and credentials
// and caches the endpoint directory it returns. Returns
// ErrAuthorization when the token is rejected and a ConnectError when
// the server cannot be reached.
func (c *Client) Connect(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/", nil, nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := c.checkStatus(resp, "/"); err != nil {
		return err
	}

	// The root response maps endpoint names to absolute URLs. An
	// undecodable body is not fatal; the client falls back to
	// constructed paths.
	var directory map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&directory); err == nil && len(directory) > 0 {
		c.mu.Lock()
		c.endpoints = directory
		c.mu.Unlock()
	}

	logging.Debug().Str("base_url", c.baseURL).Int("endpoints", len(directory)).Msg("Connected to Baby Buddy API")
	return nil
}

// endpointPath resolves the request path for an endpoint, preferring
// the discovered directory over the constructed default.
func (c *Client) endpointPath(endpoint string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if u, ok := c.endpoints[endpoint]; ok {
		if path, found := strings.CutPrefix(u, c.baseURL); found && path != "" {
			return path
		}
	}
	return "/" + endpoint + "/"
}

// Children retrieves the full child roster.
func (c *Client) Children(ctx context.Context) (*models.ChildrenPage, error) {
	var page models.ChildrenPage
	if err := c.getJSON(ctx, "/children/", nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// First retrieves the most recent entry in one category for one child.
// Baby Buddy orders results newest-first, so a child-filtered query
// with limit=1 yields the latest record. An empty Record means the
// child has no entries in that category.
func (c *Client) First(ctx context.Context, endpoint string, childID int) (models.Record, error) {
	query := url.Values{}
	query.Set("child", strconv.Itoa(childID))
	query.Set("limit", "1")

	var page models.RecordPage
	if err := c.getJSON(ctx, c.endpointPath(endpoint), query, &page); err != nil {
		return nil, err
	}
	if len(page.Results) == 0 {
		return models.Record{}, nil
	}
	return page.Results[0], nil
}

// Create posts a new entry to an endpoint and returns the created
// record.
//
// Older Baby Buddy serializers reject entries that omit a "time" or
// "date" field with a field-required error instead of defaulting to
// the current moment. When that exact error comes back, the request is
// resubmitted once with the missing field filled in.
func (c *Client) Create(ctx context.Context, endpoint string, data map[string]any) (models.Record, error) {
	record, err := c.writeJSON(ctx, http.MethodPost, c.endpointPath(endpoint), data)
	if err == nil {
		return record, nil
	}

	field, ok := missingTimestampField(err)
	if !ok {
		return nil, err
	}

	retry := make(map[string]any, len(data)+1)
	for k, v := range data {
		retry[k] = v
	}
	switch field {
	case "time":
		retry["time"] = c.now().Format(time.RFC3339)
	case "date":
		retry["date"] = c.now().Format("2006-01-02")
	}

	metrics.CompatRetries.WithLabelValues(field).Inc()
	logging.Debug().Str("endpoint", endpoint).Str("field", field).Msg("Resubmitting entry with fallback timestamp")

	return c.writeJSON(ctx, http.MethodPost, c.endpointPath(endpoint), retry)
}

// Update patches an existing entry by ID.
func (c *Client) Update(ctx context.Context, endpoint string, id int, data map[string]any) (models.Record, error) {
	return c.writeJSON(ctx, http.MethodPatch, fmt.Sprintf("%s%d/", c.endpointPath(endpoint), id), data)
}

// Delete removes an entry by ID.
func (c *Client) Delete(ctx context.Context, endpoint string, id int) error {
	resp, err := c.do(ctx, http.MethodDelete, fmt.Sprintf("%s%d/", c.endpointPath(endpoint), id), nil, nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	return c.checkStatus(resp, endpoint)
}

// missingTimestampField inspects an upstream 400 body for the
// field-required error older serializers emit when "time" or "date" is
// omitted. Returns the field name when the body matches exactly.
func missingTimestampField(err error) (string, bool) {
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusBadRequest {
		return "", false
	}

	var body map[string][]string
	if jsonErr := json.Unmarshal(se.Body, &body); jsonErr != nil {
		return "", false
	}
	if len(body) != 1 {
		return "", false
	}
	for _, field := range []string{"time", "date"} {
		msgs, ok := body[field]
		if ok && len(msgs) == 1 && msgs[0] == "This field is required." {
			return field, true
		}
	}
	return "", false
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := c.checkStatus(resp, path); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("gateway: failed to decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) writeJSON(ctx context.Context, method, path string, data map[string]any) (models.Record, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("gateway: failed to encode %s payload: %w", path, err)
	}

	resp, err := c.do(ctx, method, path, nil, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := c.checkStatus(resp, path); err != nil {
		return nil, err
	}

	var record models.Record
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return nil, fmt.Errorf("gateway: failed to decode %s response: %w", path, err)
	}
	return record, nil
}

// do builds and executes one request against the API, recording
// latency and failure classification.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Response, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("gateway: failed to build request: %w", err)
	}

	req.Header.Set("Authorization", "Token "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordGatewayRequest(method, path, time.Since(start), "network")
		return nil, &ConnectError{Err: err}
	}

	errType := ""
	if resp.StatusCode >= 400 {
		errType = "status_" + strconv.Itoa(resp.StatusCode)
	}
	metrics.RecordGatewayRequest(method, path, time.Since(start), errType)

	return resp, nil
}

// checkStatus consumes error bodies and maps status codes onto the
// gateway error taxonomy. The caller still owns closing resp.Body.
func (c *Client) checkStatus(resp *http.Response, endpoint string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return ErrAuthorization
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		body = nil
	}
	return &StatusError{StatusCode: resp.StatusCode, Endpoint: endpoint, Body: body}
}
