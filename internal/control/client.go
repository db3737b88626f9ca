package control

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ErihKoh/video-detecting-and-tracking/internal/httputil"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/pipeline"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/report"
)

// APIError is a non-2xx response from a control server. A 409 unwraps to
// pipeline.ErrInvalidControlAction.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusConflict {
		return pipeline.ErrInvalidControlAction
	}
	return nil
}

// Client drives a running tracker over its control API.
type Client struct {
	HTTPClient httputil.HTTPClient
	BaseURL    string
}

// NewClient returns a client for baseURL, e.g. "http://localhost:8090".
func NewClient(httpClient httputil.HTTPClient, baseURL string) *Client {
	if httpClient == nil {
		httpClient = httputil.NewStandardClient(10 * time.Second)
	}
	return &Client{HTTPClient: httpClient, BaseURL: strings.TrimRight(baseURL, "/")}
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// action posts to a control endpoint and returns the resulting status.
func (c *Client) action(ctx context.Context, path string, body interface{}) (pipeline.Status, error) {
	var resp actionResponse
	if err := c.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return pipeline.Status{}, err
	}
	return resp.Status, nil
}

// Status fetches the current pipeline status.
func (c *Client) Status(ctx context.Context) (pipeline.Status, error) {
	var st pipeline.Status
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &st)
	return st, err
}

// StartRecording starts a recording session.
func (c *Client) StartRecording(ctx context.Context) (pipeline.Status, error) {
	return c.action(ctx, "/api/recording/start", nil)
}

// StopRecording stops the active session.
func (c *Client) StopRecording(ctx context.Context) (pipeline.Status, error) {
	return c.action(ctx, "/api/recording/stop", nil)
}

// ToggleRecording flips the recording state.
func (c *Client) ToggleRecording(ctx context.Context) (pipeline.Status, error) {
	return c.action(ctx, "/api/recording/toggle", nil)
}

// TakeScreenshot queues a screenshot for the next frame.
func (c *Client) TakeScreenshot(ctx context.Context) (pipeline.Status, error) {
	return c.action(ctx, "/api/screenshot", nil)
}

// SetConfidenceThreshold changes the detection threshold.
func (c *Client) SetConfidenceThreshold(ctx context.Context, v float64) (pipeline.Status, error) {
	return c.action(ctx, "/api/threshold", ThresholdRequest{Threshold: &v})
}

// SetAllowedClasses restricts tracking to the named classes. No names
// admits every class.
func (c *Client) SetAllowedClasses(ctx context.Context, names []string) (pipeline.Status, error) {
	return c.action(ctx, "/api/classes", ClassesRequest{Classes: names})
}

// Quit asks the tracker to shut down.
func (c *Client) Quit(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/quit", nil, nil)
}

// Summary fetches run statistics.
func (c *Client) Summary(ctx context.Context) (report.Summary, error) {
	var s report.Summary
	err := c.do(ctx, http.MethodGet, "/api/summary", nil, &s)
	return s, err
}
