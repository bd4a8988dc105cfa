// Package apiclient talks to a running stemworker daemon over its HTTP API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"stemworker/internal/api"
	"stemworker/internal/config"
	"stemworker/internal/validator"
)

// ErrUnavailable reports that no API bind address is configured.
var ErrUnavailable = errors.New("daemon API is not configured (paths.api_bind is empty)")

// APIError is a non-success response from the daemon.
type APIError struct {
	StatusCode int
	Message    string
	Scan       *validator.Result
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("daemon returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("daemon returned status %d: %s", e.StatusCode, e.Message)
}

// Client issues requests against the daemon API.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

// New builds a client for bind, which may be host:port or a full URL.
func New(bind, token string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, ErrUnavailable
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, fmt.Errorf("parse api bind: %w", err)
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""
	return &Client{
		base:  base,
		token: strings.TrimSpace(token),
		http:  &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// FromConfig builds a client from the configured bind address and token.
func FromConfig(cfg *config.Config) (*Client, error) {
	if cfg == nil {
		return nil, ErrUnavailable
	}
	return New(cfg.Paths.APIBind, cfg.Paths.APIToken)
}

// CreateJob submits a folder for processing.
func (c *Client) CreateJob(ctx context.Context, req api.CreateJobRequest) (api.CreateJobResponse, error) {
	var resp api.CreateJobResponse
	err := c.do(ctx, http.MethodPost, "/api/jobs", nil, req, &resp)
	return resp, err
}

// GetJob returns a job snapshot.
func (c *Client) GetJob(ctx context.Context, id string) (api.JobView, error) {
	var resp api.JobView
	err := c.do(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(strings.TrimSpace(id)), nil, nil, &resp)
	return resp, err
}

// ListJobs returns jobs, optionally filtered by status.
func (c *Client) ListJobs(ctx context.Context, statuses []string) ([]api.JobView, error) {
	values := url.Values{}
	for _, status := range statuses {
		if status = strings.TrimSpace(status); status != "" {
			values.Add("status", status)
		}
	}
	var resp api.JobListResponse
	if err := c.do(ctx, http.MethodGet, "/api/jobs", values, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

// Scan evaluates a source folder without creating a job.
func (c *Client) Scan(ctx context.Context, source string) (api.ScanResponse, error) {
	var resp api.ScanResponse
	values := url.Values{"source_location": []string{source}}
	err := c.do(ctx, http.MethodGet, "/api/scan", values, nil, &resp)
	return resp, err
}

// Health returns the dependency checks. An unhealthy daemon still yields a
// populated response alongside the APIError.
func (c *Client) Health(ctx context.Context) (api.HealthResponse, error) {
	var resp api.HealthResponse
	err := c.do(ctx, http.MethodGet, "/api/health", nil, nil, &resp)
	return resp, err
}

// Status returns daemon runtime information.
func (c *Client) Status(ctx context.Context) (api.DaemonStatus, error) {
	var resp api.DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if c == nil {
		return ErrUnavailable
	}
	endpoint := c.base.ResolveReference(&url.URL{Path: path, RawQuery: query.Encode()})

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var rejection api.RejectionResponse
		if json.Unmarshal(data, &rejection) == nil {
			apiErr.Message = rejection.Error
			apiErr.Scan = rejection.Scan
		}
		if resp.StatusCode == http.StatusServiceUnavailable && out != nil {
			_ = json.Unmarshal(data, out)
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
