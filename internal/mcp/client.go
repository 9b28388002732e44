package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/waypoint-ai/waypoint/internal/buildinfo"
	"github.com/waypoint-ai/waypoint/internal/llm"
)

// protocolVersion is advertised during the initialize handshake.
const protocolVersion = "2024-11-05"

// ToolDefinition is a tool as the server declares it in tools/list.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// ContentBlock is one item of a tools/call result.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type callToolResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

type toolsListResult struct {
	Tools []ToolDefinition `json:"tools"`
}

type initializeResult struct {
	ProtocolVersion string `json:"protocolVersion"`
	ServerInfo      struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"serverInfo"`
}

// Client talks to one MCP tool server. Connect must succeed before any
// tool call.
type Client struct {
	transport Transport
	logger    *slog.Logger
	nextID    atomic.Int64

	mu    sync.RWMutex
	tools []ToolDefinition
}

// NewClient wraps a transport in a protocol client.
func NewClient(transport Transport, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{transport: transport, logger: logger}
}

// Connect performs the initialize handshake and discovers the server's
// tools. It must be called once before CallTool or Tools.
func (c *Client) Connect(ctx context.Context) error {
	params := map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    "waypoint",
			"version": buildinfo.Version,
		},
	}

	resp, err := c.call(ctx, "initialize", params)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	var init initializeResult
	if err := json.Unmarshal(resp.Result, &init); err != nil {
		return fmt.Errorf("unmarshal initialize result: %w", err)
	}

	c.logger.Info("tool server ready",
		"server_name", init.ServerInfo.Name,
		"server_version", init.ServerInfo.Version,
		"protocol_version", init.ProtocolVersion,
	)

	if err := c.transport.Notify(ctx, newNotification("notifications/initialized", nil)); err != nil {
		return fmt.Errorf("send initialized notification: %w", err)
	}

	return c.refreshTools(ctx)
}

// refreshTools fetches tools/list and caches the result.
func (c *Client) refreshTools(ctx context.Context) error {
	resp, err := c.call(ctx, "tools/list", nil)
	if err != nil {
		return fmt.Errorf("tools/list: %w", err)
	}

	var list toolsListResult
	if err := json.Unmarshal(resp.Result, &list); err != nil {
		return fmt.Errorf("unmarshal tools/list result: %w", err)
	}

	c.mu.Lock()
	c.tools = list.Tools
	c.mu.Unlock()

	c.logger.Info("discovered tools", "count", len(list.Tools))
	return nil
}

// Tools returns the discovered tools in the shape the model expects.
func (c *Client) Tools() []llm.Tool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]llm.Tool, 0, len(c.tools))
	for _, td := range c.tools {
		out = append(out, llm.Tool{
			Name:        td.Name,
			Description: td.Description,
			InputSchema: td.InputSchema,
		})
	}
	return out
}

// CallTool invokes a tool and flattens the result content blocks into
// one string. Non-text blocks become inline markers.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	params := map[string]any{
		"name":      name,
		"arguments": args,
	}

	resp, err := c.call(ctx, "tools/call", params)
	if err != nil {
		return "", fmt.Errorf("tools/call %s: %w", name, err)
	}

	var result callToolResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return "", fmt.Errorf("unmarshal tools/call result: %w", err)
	}

	text := flattenContent(result.Content)
	if result.IsError {
		return "", fmt.Errorf("tool %s failed: %s", name, text)
	}
	return text, nil
}

// Ping checks that the server is responsive.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.call(ctx, "ping", nil)
	return err
}

// Close shuts down the transport.
func (c *Client) Close() error {
	return c.transport.Close()
}

func (c *Client) call(ctx context.Context, method string, params any) (*Response, error) {
	req := newRequest(c.nextID.Add(1), method, params)

	resp, err := c.transport.Call(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return resp, nil
}

func flattenContent(blocks []ContentBlock) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if b.Type == "text" {
			parts = append(parts, b.Text)
			continue
		}
		parts = append(parts, fmt.Sprintf("[%s]", b.Type))
	}
	return strings.Join(parts, "\n")
}
