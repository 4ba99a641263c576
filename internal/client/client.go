// Package client talks to a running dockmond over its HTTP API.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"dockmon/internal/gateway"
	"dockmon/internal/snapshot"

	"github.com/gorilla/websocket"
)

const (
	envServer     = "DOCKMON_SERVER"
	DefaultServer = "http://localhost:8080"
)

var (
	// ErrNotReady means the daemon has not published a snapshot yet.
	ErrNotReady = errors.New("daemon has no snapshot yet")
	// ErrContainerGone means the container no longer exists.
	ErrContainerGone = errors.New("container no longer exists")
	// ErrNotFound means the requested instance does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable means the daemon cannot reach the container engine.
	ErrUnavailable = errors.New("container engine unavailable")
	// ErrEngine means the container engine rejected the request.
	ErrEngine = errors.New("container engine error")
)

// DefaultServerURL returns $DOCKMON_SERVER or DefaultServer.
func DefaultServerURL() string {
	if v := strings.TrimSpace(os.Getenv(envServer)); v != "" {
		return v
	}
	return DefaultServer
}

// APIError is a non-2xx daemon response.
type APIError struct {
	StatusCode int
	Message    string
	kind       error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.StatusCode)
}

func (e *APIError) Unwrap() error { return e.kind }

// Health is the daemon's readiness report.
type Health struct {
	Status    string `json:"status"`
	Degraded  bool   `json:"degraded"`
	Sequence  uint64 `json:"sequence,omitempty"`
	LastError string `json:"lastError,omitempty"`
}

type Client struct {
	base *url.URL
	http *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a client for the daemon at server, e.g. http://host:8080.
func New(server string, opts ...Option) (*Client, error) {
	if !strings.Contains(server, "://") {
		server = "http://" + server
	}
	u, err := url.Parse(strings.TrimRight(server, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url %q: %w", server, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server url %q: scheme must be http or https", server)
	}
	c := &Client{base: u, http: &http.Client{Timeout: 30 * time.Second}}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Server returns the daemon base URL.
func (c *Client) Server() string { return c.base.String() }

func (c *Client) Snapshot(ctx context.Context) (*snapshot.Snapshot, error) {
	var snap snapshot.Snapshot
	if err := c.do(ctx, http.MethodGet, "/api/v1/snapshot", nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *Client) Instance(ctx context.Context, name string) (snapshot.InstanceGroup, error) {
	var g snapshot.InstanceGroup
	err := c.do(ctx, http.MethodGet, "/api/v1/instances/"+url.PathEscape(name), nil, &g)
	return g, err
}

func (c *Client) LiveStats(ctx context.Context, id string) (gateway.LiveStats, error) {
	var s gateway.LiveStats
	err := c.do(ctx, http.MethodGet, "/api/v1/containers/"+url.PathEscape(id)+"/stats", nil, &s)
	return s, err
}

// Logs returns the last lines of a container's output. lines <= 0 uses the
// daemon default.
func (c *Client) Logs(ctx context.Context, id string, lines int) ([]string, error) {
	q := url.Values{}
	if lines > 0 {
		q.Set("lines", strconv.Itoa(lines))
	}
	var resp struct {
		Lines []string `json:"lines"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/containers/"+url.PathEscape(id)+"/logs", q, &resp); err != nil {
		return nil, err
	}
	return resp.Lines, nil
}

func (c *Client) Restart(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/containers/"+url.PathEscape(id)+"/restart", nil, nil)
}

// Refresh makes the daemon run a cycle now and returns the new snapshot.
func (c *Client) Refresh(ctx context.Context) (*snapshot.Snapshot, error) {
	var snap snapshot.Snapshot
	if err := c.do(ctx, http.MethodPost, "/api/v1/refresh", nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Health returns the daemon readiness. A daemon that is still idle answers
// 503 with a valid body, which is not an error here.
func (c *Client) Health(ctx context.Context) (Health, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/healthz", nil)
	if err != nil {
		return Health{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return Health{}, fmt.Errorf("connect to daemon at %s: %w", c.base, err)
	}
	defer resp.Body.Close()

	var h Health
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return Health{}, fmt.Errorf("decode health: %w", err)
	}
	return h, nil
}

// Watch streams snapshots as the daemon publishes them. The channel is
// closed when ctx is done or the connection drops.
func (c *Client) Watch(ctx context.Context) (<-chan *snapshot.Snapshot, error) {
	u := *c.base
	u.Scheme = "ws"
	if c.base.Scheme == "https" {
		u.Scheme = "wss"
	}
	u.Path += "/api/v1/watch"

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return nil, decodeError(resp)
		}
		return nil, fmt.Errorf("connect to daemon at %s: %w", c.base, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	out := make(chan *snapshot.Snapshot)
	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}()
	go func() {
		defer close(out)
		defer cancel()
		for {
			var snap snapshot.Snapshot
			if err := conn.ReadJSON(&snap); err != nil {
				return
			}
			select {
			case out <- &snap:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values) (*http.Request, error) {
	u := *c.base
	u.Path += path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, out any) error {
	req, err := c.newRequest(ctx, method, path, query)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("connect to daemon at %s: %w", c.base, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &body); err != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(data))
		if body.Error == "" {
			body.Error = http.StatusText(resp.StatusCode)
		}
	}

	apiErr := &APIError{StatusCode: resp.StatusCode, Message: body.Error}
	switch resp.StatusCode {
	case http.StatusNotFound:
		apiErr.kind = ErrNotFound
		if body.Error == ErrContainerGone.Error() {
			apiErr.kind = ErrContainerGone
		}
	case http.StatusServiceUnavailable:
		apiErr.kind = ErrUnavailable
		if body.Error == "snapshot not ready" {
			apiErr.kind = ErrNotReady
		}
	case http.StatusBadGateway:
		apiErr.kind = ErrEngine
	}
	return apiErr
}
