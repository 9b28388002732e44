package llm

import "context"

// Client is the interface the orchestrator uses to reach the reasoning
// engine. Implementations convert to and from the provider wire format.
type Client interface {
	// Chat sends a completion request and returns the response.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Ping checks if the provider is reachable.
	Ping(ctx context.Context) error
}
