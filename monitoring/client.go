package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ErrNoSamples is returned when the remote instance has no table to serve
var ErrNoSamples = errors.New("no samples available")

// StatusError reports an unexpected HTTP status from a remote instance
type StatusError struct {
	Path string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.Path, e.Code, e.Body)
}

// Client reads the monitoring endpoints of another instance
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the instance listening at baseURL
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the instance address
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Health fetches /health. A degraded instance answers 503 with a valid body.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var health HealthResponse
	if err := c.get(ctx, "/health", &health, http.StatusOK, http.StatusServiceUnavailable); err != nil {
		return nil, err
	}
	return &health, nil
}

// Samples fetches the last limit rows of the remote table
func (c *Client) Samples(ctx context.Context, limit int) (*SamplesResponse, error) {
	var samples SamplesResponse
	path := "/api/samples?limit=" + strconv.Itoa(limit)
	err := c.get(ctx, path, &samples, http.StatusOK)
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound {
		return nil, ErrNoSamples
	}
	if err != nil {
		return nil, err
	}
	return &samples, nil
}

func (c *Client) get(ctx context.Context, path string, into any, accept ...int) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	ok := false
	for _, code := range accept {
		if resp.StatusCode == code {
			ok = true
			break
		}
	}
	if !ok {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return fmt.Errorf("invalid response from %s: %w", path, err)
	}
	return nil
}
