// Package stages holds the HTTP clients for the external collaborators
// that perform the actual pipeline work: the news crawler (topics and
// article details) and the newscast generator (news consolidation,
// script generation, speech synthesis, audio merge). The coordinator
// only routes work to them and interprets their structured responses.
package stages

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"newscastd/internal/config"
	"newscastd/internal/logging"
	"newscastd/internal/services"
)

// HTTPDoer describes the HTTP client used by the stage clients.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Result is the response envelope every stage collaborator returns.
type Result struct {
	Success      bool   `json:"success"`
	TimingMS     int64  `json:"timing_ms"`
	Message      string `json:"message"`
	RunID        string `json:"run_id,omitempty"`
	TopicIndex   int    `json:"topic_index,omitempty"`
	SuccessCount int    `json:"success_count,omitempty"`
	ErrorCount   int    `json:"error_count,omitempty"`
}

// DetailResult is the per-article response from the detail-fetch stage.
type DetailResult struct {
	Result
	NewsID string `json:"news_id,omitempty"`
	Size   int64  `json:"size,omitempty"`
}

// collaborator is one external service: a base URL plus the HTTP client
// carrying that service's configured timeout.
type collaborator struct {
	baseURL string
	http    HTTPDoer
}

func (col collaborator) endpoint(path string, params url.Values) string {
	target := col.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	return target
}

// Client calls the stage collaborators.
type Client struct {
	crawler   collaborator
	generator collaborator
	logger    *slog.Logger
}

// NewClient constructs a stage client from configuration. Each
// collaborator gets its own HTTP client so the configured timeouts
// apply independently.
func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	return &Client{
		crawler: collaborator{
			baseURL: cfg.Crawler.BaseURL,
			http:    &http.Client{Timeout: time.Duration(cfg.Crawler.TimeoutSeconds) * time.Second},
		},
		generator: collaborator{
			baseURL: cfg.Generator.BaseURL,
			http:    &http.Client{Timeout: time.Duration(cfg.Generator.TimeoutSeconds) * time.Second},
		},
		logger: logging.NewComponentLogger(logger, "stages"),
	}
}

// NewClientWith constructs a stage client with an explicit HTTP doer,
// used in tests.
func NewClientWith(crawlerURL, generatorURL string, doer HTTPDoer, logger *slog.Logger) *Client {
	return &Client{
		crawler:   collaborator{baseURL: crawlerURL, http: doer},
		generator: collaborator{baseURL: generatorURL, http: doer},
		logger:    logging.NewComponentLogger(logger, "stages"),
	}
}

func runParams(runID string, topicIndex int) url.Values {
	params := url.Values{}
	if runID != "" {
		params.Set("run-id", runID)
	}
	if topicIndex > 0 {
		params.Set("topic-index", strconv.Itoa(topicIndex))
	}
	return params
}

// do performs one stage request and decodes the JSON envelope into out.
// Network failures and 5xx responses are tagged transient, 404 as
// missing input, other 4xx as structural.
func (c *Client) do(ctx context.Context, col collaborator, stage, target string, body []byte, out any) error {
	method := http.MethodPost
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, stage, "build request", target, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := col.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return services.Wrap(services.ErrTimeout, stage, "call", target, err)
		}
		return services.Wrap(services.ErrTransient, stage, "call", target, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(stage, resp.StatusCode); err != nil {
		return err
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return services.Wrap(services.ErrValidation, stage, "decode response", target, err)
	}
	return nil
}

// doRaw performs one stage request and returns the raw response body,
// used by the speech synthesis endpoint which answers with audio bytes.
func (c *Client) doRaw(ctx context.Context, col collaborator, stage, target string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, stage, "build request", target, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := col.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, services.Wrap(services.ErrTimeout, stage, "call", target, err)
		}
		return nil, services.Wrap(services.ErrTransient, stage, "call", target, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(stage, resp.StatusCode); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, stage, "read response", target, err)
	}
	return data, nil
}

func classifyStatus(stage string, status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusNotFound:
		return services.Wrap(services.ErrNotFound, stage, "call", fmt.Sprintf("status %d", status), nil)
	case status >= 400 && status < 500:
		return services.Wrap(services.ErrValidation, stage, "call", fmt.Sprintf("status %d", status), nil)
	default:
		return services.Wrap(services.ErrTransient, stage, "call", fmt.Sprintf("status %d", status), nil)
	}
}
