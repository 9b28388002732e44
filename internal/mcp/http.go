package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/waypoint-ai/waypoint/internal/httpkit"
)

const maxResponseBytes = 10 << 20

// HTTPConfig describes a remote tool server reached over streamable
// HTTP.
type HTTPConfig struct {
	// URL is the server endpoint; every message is POSTed to it.
	URL string

	// Headers are added to every request, typically Authorization.
	Headers map[string]string

	Logger *slog.Logger
}

// HTTPTransport exchanges JSON-RPC messages with an MCP server over
// HTTP POST. The Mcp-Session-Id header returned by the server is
// echoed on subsequent requests for session affinity.
type HTTPTransport struct {
	url     string
	headers map[string]string
	client  *http.Client
	logger  *slog.Logger

	mu        sync.RWMutex
	sessionID string
}

// NewHTTPTransport creates an HTTP transport for the given config.
func NewHTTPTransport(cfg HTTPConfig) *HTTPTransport {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPTransport{
		url:     cfg.URL,
		headers: cfg.Headers,
		client:  httpkit.NewClient(),
		logger:  logger,
	}
}

// Call POSTs the request and decodes the response body.
func (t *HTTPTransport) Call(ctx context.Context, req *Request) (*Response, error) {
	httpResp, err := t.post(ctx, req)
	if err != nil {
		return nil, err
	}
	defer httpkit.DrainAndClose(httpResp.Body, 1<<20)

	t.captureSession(httpResp)

	if httpResp.StatusCode != http.StatusOK {
		errBody := httpkit.ReadErrorBody(httpResp.Body, 1<<20)
		return nil, fmt.Errorf("tool server returned %d: %s", httpResp.StatusCode, errBody)
	}

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &resp, nil
}

// Notify POSTs the notification. 200 and 202 both count as delivered.
func (t *HTTPTransport) Notify(ctx context.Context, notif *Notification) error {
	httpResp, err := t.post(ctx, notif)
	if err != nil {
		return err
	}
	defer httpkit.DrainAndClose(httpResp.Body, 1<<20)

	t.captureSession(httpResp)

	if httpResp.StatusCode != http.StatusOK && httpResp.StatusCode != http.StatusAccepted {
		errBody := httpkit.ReadErrorBody(httpResp.Body, 1<<20)
		return fmt.Errorf("tool server returned %d for notification: %s", httpResp.StatusCode, errBody)
	}
	return nil
}

func (t *HTTPTransport) post(ctx context.Context, msg any) (*http.Response, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}

	t.mu.RLock()
	if t.sessionID != "" {
		req.Header.Set("Mcp-Session-Id", t.sessionID)
	}
	t.mu.RUnlock()

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", t.url, err)
	}
	return resp, nil
}

func (t *HTTPTransport) captureSession(resp *http.Response) {
	sid := resp.Header.Get("Mcp-Session-Id")
	if sid == "" {
		return
	}
	t.mu.Lock()
	t.sessionID = sid
	t.mu.Unlock()
}

// Close is a no-op; the shared HTTP client owns the connection pool.
func (t *HTTPTransport) Close() error {
	return nil
}
