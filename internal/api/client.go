package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client talks to a running daemon over its HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a client for the daemon listening at bind
// (host:port or a full URL).
func NewClient(bind string) *Client {
	base := strings.TrimSpace(bind)
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Client{
		baseURL: strings.TrimRight(base, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Health reports whether the daemon answers its health probe.
func (c *Client) Health(ctx context.Context) error {
	var resp HealthResponse
	return c.call(ctx, http.MethodGet, "/health", nil, &resp)
}

// Status fetches the daemon's runtime status.
func (c *Client) Status(ctx context.Context) (DaemonStatus, error) {
	var resp DaemonStatus
	err := c.call(ctx, http.MethodGet, "/api/status", nil, &resp)
	return resp, err
}

// Validate asks the daemon to validate a run's tracks. An empty runID
// validates the active run. Promotion only happens when promote is set.
func (c *Client) Validate(ctx context.Context, runID string, promote bool) (ValidateResponse, error) {
	params := url.Values{}
	if runID != "" {
		params.Set("run-id", runID)
	}
	if promote {
		params.Set("promote", "true")
	}
	var resp ValidateResponse
	err := c.call(ctx, http.MethodPost, "/api/validate", params, &resp)
	return resp, err
}

// Trigger runs one named stage immediately. topicIndex is only
// meaningful for the per-topic stages.
func (c *Client) Trigger(ctx context.Context, stage string, topicIndex int) (TriggerResponse, error) {
	params := url.Values{}
	if topicIndex > 0 {
		params.Set("topic-index", strconv.Itoa(topicIndex))
	}
	var resp TriggerResponse
	err := c.call(ctx, http.MethodPost, "/api/trigger/"+url.PathEscape(stage), params, &resp)
	return resp, err
}

func (c *Client) call(ctx context.Context, method, path string, params url.Values, out any) error {
	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("daemon unreachable at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var payload struct {
			Error string `json:"error"`
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
			return fmt.Errorf("daemon returned %d: %s", resp.StatusCode, payload.Error)
		}
		return fmt.Errorf("daemon returned %d", resp.StatusCode)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
