// Package llm provides the reasoning-engine client used by the orchestrator.
package llm

import "log/slog"

// LevelTrace is below Debug, used for wire-level payload logging.
const LevelTrace = slog.Level(-8)

// Message is one turn of conversation history in provider-neutral form.
//
// Assistant messages may carry ToolCalls; the results come back as
// role "tool" messages referencing the call via ToolCallID. Wire
// framing (Anthropic content blocks) happens at the provider boundary,
// never in orchestration code.
type Message struct {
	Role       string     `json:"role"` // user, assistant, tool
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // set on role "tool"
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Tool describes a callable tool advertised to the model.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// ChatRequest is a single reasoning-engine call.
type ChatRequest struct {
	System      string
	Messages    []Message
	Tools       []Tool
	MaxTokens   int
	Temperature float64
}

// ChatResponse is the unified response from the provider. Wire format
// conversion happens at the provider boundary (anthropic.go).
type ChatResponse struct {
	Model      string
	Message    Message
	StopReason string

	InputTokens  int
	OutputTokens int
}

// HasToolCalls reports whether the response requests any tool invocations.
func (r *ChatResponse) HasToolCalls() bool {
	return r != nil && len(r.Message.ToolCalls) > 0
}
