package cluster

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dreamware/rgwsync/internal/model"
)

// HTTP paths shared by the monitor and its agents.
const (
	PushPath   = "/api/zone-agent/push"
	HealthPath = "/api/health"
)

// RequestIDHeader carries the agent's per-push correlation id.
const RequestIDHeader = "X-Request-ID"

// maxErrorBody bounds the response text kept on an HTTPError.
const maxErrorBody = 300

// PushResponse is the monitor's reply to an accepted agent push.
type PushResponse struct {
	ReceivedAt      time.Time `json:"received_at"`
	Status          string    `json:"status"`
	ZoneName        string    `json:"zone_name"`
	ErrorsCount     int       `json:"errors_count"`
	BucketSyncCount int       `json:"bucket_sync_count"`
}

// HealthResponse is served at HealthPath.
type HealthResponse struct {
	Timestamp        time.Time `json:"timestamp"`
	Status           string    `json:"status"`
	AdminError       string    `json:"admin_error,omitempty"`
	AdminAccess      bool      `json:"admin_access"`
	CollectorRunning bool      `json:"collector_running"`
}

// ErrorResponse is the body of every non-2xx JSON reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HTTPError is returned for a response with a status of 300 or above.
type HTTPError struct {
	URL    string
	Body   string
	Status int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %s: %d: %s", e.URL, e.Status, e.Body)
}

// Client talks JSON to the monitor's HTTP API.
type Client struct {
	http    *http.Client
	baseURL string
}

// NewClient returns a client for the monitor at baseURL. A trailing slash is
// ignored.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the monitor URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Push delivers one agent payload. requestID, when set, is sent in
// RequestIDHeader.
func (c *Client) Push(ctx context.Context, payload model.ZoneAgentPayload, requestID string) (*PushResponse, error) {
	header := http.Header{}
	if requestID != "" {
		header.Set(RequestIDHeader, requestID)
	}
	var out PushResponse
	if err := c.PostJSON(ctx, PushPath, payload, &out, header); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health fetches the monitor's health report.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	if err := c.GetJSON(ctx, HealthPath, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PostJSON sends body as JSON to path and decodes the reply into out when out
// is non-nil.
func (c *Client) PostJSON(ctx context.Context, path string, body any, out any, header http.Header) error {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(reqBody))
	if err != nil {
		return err
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

// GetJSON fetches path and decodes the reply into out.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &HTTPError{URL: req.URL.String(), Status: resp.StatusCode, Body: string(body)}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
