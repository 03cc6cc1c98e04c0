// Package backend is the HTTP client for the device discovery backend.
//
// The backend lists reachable telescopes, registers and removes manually
// added ones, and runs plate-solve and sync jobs. Plate-solve is
// asynchronous: the HTTP call returns a job id and the result later arrives
// as a status push on the device's control channel.
package backend

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

	"github.com/nerrad567/scopelink-core/internal/device"
)

var (
	// ErrDiscovery is returned when the device list cannot be fetched.
	ErrDiscovery = errors.New("backend: discovery failed")

	// ErrRequest is returned when a backend call other than discovery fails.
	ErrRequest = errors.New("backend: request failed")
)

// maxErrorBody bounds how much of an error response body is kept.
const maxErrorBody = 1024

// Config configures the backend client.
type Config struct {
	// URL is the API base, e.g. http://127.0.0.1:5555/api.
	URL     string
	Token   string
	Timeout time.Duration
}

// Client makes REST calls to the discovery backend.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewClient creates a client targeting cfg.URL.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		token:   cfg.Token,
		client:  &http.Client{Timeout: timeout},
	}
}

// StatusError carries a non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Code, e.Body)
}

// ListDevices fetches GET /devices.
// Accepts either a bare array or {"devices": [...]}.
func (c *Client) ListDevices(ctx context.Context) ([]device.Device, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/devices", nil, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDiscovery, err)
	}

	var list []device.Device
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var wrapped struct {
		Devices []device.Device `json:"devices"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("%w: decoding device list: %v", ErrDiscovery, err)
	}
	return wrapped.Devices, nil
}

// AddDevice registers a manually added device with POST /devices.
// The backend may assign an id; the returned device carries it.
func (c *Client) AddDevice(ctx context.Context, d device.Device) (device.Device, error) {
	out := d
	if err := c.do(ctx, http.MethodPost, "/devices", d, &out); err != nil {
		return device.Device{}, fmt.Errorf("%w: adding device: %w", ErrRequest, err)
	}
	return out, nil
}

// RemoveDevice deletes a device with DELETE /devices/{id}.
func (c *Client) RemoveDevice(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/devices/"+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("%w: removing device: %w", ErrRequest, err)
	}
	return nil
}

// PlateSolve starts a plate-solve job with POST /devices/{id}/plate-solve
// and returns its job id.
func (c *Client) PlateSolve(ctx context.Context, id string) (string, error) {
	var out struct {
		JobID string `json:"job_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/devices/"+url.PathEscape(id)+"/plate-solve", struct{}{}, &out); err != nil {
		return "", fmt.Errorf("%w: plate solve: %w", ErrRequest, err)
	}
	if out.JobID == "" {
		return "", fmt.Errorf("%w: plate solve: response has no job_id", ErrRequest)
	}
	return out.JobID, nil
}

// Sync tells the mount it is pointing at ra/dec with POST /devices/{id}/sync.
func (c *Client) Sync(ctx context.Context, id string, ra, dec float64) error {
	body := map[string]float64{"ra": ra, "dec": dec}
	if err := c.do(ctx, http.MethodPost, "/devices/"+url.PathEscape(id)+"/sync", body, nil); err != nil {
		return fmt.Errorf("%w: sync: %w", ErrRequest, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody)) //nolint:errcheck // best effort detail
		return &StatusError{
			Method: method,
			Path:   path,
			Code:   resp.StatusCode,
			Body:   strings.TrimSpace(string(respBody)),
		}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
