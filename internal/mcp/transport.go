package mcp

import "context"

// Transport delivers JSON-RPC messages to a single MCP server.
// Implementations own framing, encoding, and response correlation.
type Transport interface {
	// Call sends a request and waits for the matching response.
	Call(ctx context.Context, req *Request) (*Response, error)

	// Notify sends a notification. No response is read.
	Notify(ctx context.Context, notif *Notification) error

	// Close releases transport resources. For subprocess transports
	// this terminates the server process.
	Close() error
}
