package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/dpla/fieldmap/internal/rpc"
)

// Error is a non-200 reply from the daemon.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("daemon returned %d: %s", e.Status, e.Message)
}

type Client struct {
	socketPath string
	httpClient *http.Client
}

func NewClient(socketPath string) *Client {
	return &Client{
		socketPath: socketPath,
		httpClient: &http.Client{
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					return net.Dial("unix", socketPath)
				},
			},
			Timeout: 2 * time.Minute, // a live reload fetches the whole index mapping
		},
	}
}

// ConnectOrSpawn tries to connect to the daemon, spawning it if necessary.
func ConnectOrSpawn(socketPath string) (*Client, error) {
	client := NewClient(socketPath)

	if client.IsAvailable() {
		return client, nil
	}

	if err := Spawn(); err != nil {
		return nil, fmt.Errorf("spawning daemon: %w", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		time.Sleep(100 * time.Millisecond)
		if client.IsAvailable() {
			return client, nil
		}
	}

	return nil, fmt.Errorf("daemon did not start within 5 seconds")
}

func (c *Client) IsAvailable() bool {
	conn, err := net.DialTimeout("unix", c.socketPath, 100*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

func (c *Client) Reload(ctx context.Context, req rpc.ReloadRequest) (*rpc.ReloadResponse, error) {
	var resp rpc.ReloadResponse
	err := c.post(ctx, "/reload", req, &resp)
	return &resp, err
}

func (c *Client) Fields(ctx context.Context, req rpc.FieldsRequest) (*rpc.FieldsResponse, error) {
	var resp rpc.FieldsResponse
	err := c.post(ctx, "/fields", req, &resp)
	return &resp, err
}

func (c *Client) Describe(ctx context.Context, req rpc.DescribeRequest) (*rpc.DescribeResponse, error) {
	var resp rpc.DescribeResponse
	err := c.post(ctx, "/describe", req, &resp)
	return &resp, err
}

func (c *Client) Facets(ctx context.Context, req rpc.FacetsRequest) (*rpc.FacetsResponse, error) {
	var resp rpc.FacetsResponse
	err := c.post(ctx, "/facets", req, &resp)
	return &resp, err
}

func (c *Client) Snapshot(ctx context.Context, req rpc.SnapshotRequest) (*rpc.SnapshotResponse, error) {
	var resp rpc.SnapshotResponse
	err := c.post(ctx, "/snapshot", req, &resp)
	return &resp, err
}

func (c *Client) Status(ctx context.Context) (*rpc.StatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", "http://unix/status", nil)
	if err != nil {
		return nil, err
	}
	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("status request: %w", err)
	}
	defer httpResp.Body.Close()

	var resp rpc.StatusResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decoding status: %w", err)
	}
	return &resp, nil
}

func (c *Client) ClearCache(ctx context.Context) (*rpc.ClearCacheResponse, error) {
	var resp rpc.ClearCacheResponse
	err := c.post(ctx, "/clear-cache", nil, &resp)
	return &resp, err
}

func (c *Client) Shutdown(ctx context.Context) error {
	var resp map[string]string
	return c.post(ctx, "/shutdown", nil, &resp)
}

func (c *Client) post(ctx context.Context, path string, body, result interface{}) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", "http://unix"+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &e) == nil && e.Error != "" {
			return &Error{Status: resp.StatusCode, Message: e.Error}
		}
		return &Error{Status: resp.StatusCode, Message: string(respBody)}
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	return nil
}
