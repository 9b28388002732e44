// Package history maintains the per-query conversation: pairing repair
// between tool calls and tool results, budgeted compression, and the
// best-effort fact extraction that feeds the compression digest.
package history

import "github.com/waypoint-ai/waypoint/internal/llm"

// ValidateAndFix repairs the conversation so every assistant tool call
// has exactly one matching tool result before the history is sent to
// the model. Tool results whose call is missing are dropped, and tool
// calls that never received a result are stripped from the assistant
// message that issued them; an assistant message left with no text and
// no calls is removed entirely.
func ValidateAndFix(messages []llm.Message) []llm.Message {
	// First pass: keep plain messages, index tool calls, and admit each
	// tool result only if it matches a still-unanswered call.
	kept := make([]llm.Message, 0, len(messages))
	answered := make(map[string]bool)
	pending := make(map[string]bool)

	for _, msg := range messages {
		switch {
		case msg.Role == "tool":
			if pending[msg.ToolCallID] && !answered[msg.ToolCallID] {
				answered[msg.ToolCallID] = true
				kept = append(kept, msg)
			}
			// Orphaned or duplicate results are dropped.

		case msg.Role == "assistant" && len(msg.ToolCalls) > 0:
			for _, tc := range msg.ToolCalls {
				pending[tc.ID] = true
			}
			kept = append(kept, msg)

		default:
			kept = append(kept, msg)
		}
	}

	// Second pass: strip calls that never got an answer. Results were
	// only admitted against a pending call, so after this pass the
	// pairing is exact in both directions.
	repaired := kept[:0]
	for _, msg := range kept {
		if msg.Role != "assistant" || len(msg.ToolCalls) == 0 {
			repaired = append(repaired, msg)
			continue
		}

		var calls []llm.ToolCall
		for _, tc := range msg.ToolCalls {
			if answered[tc.ID] {
				calls = append(calls, tc)
			}
		}
		if len(calls) == len(msg.ToolCalls) {
			repaired = append(repaired, msg)
			continue
		}

		msg.ToolCalls = calls
		if msg.Content == "" && len(calls) == 0 {
			continue // nothing left worth sending
		}
		repaired = append(repaired, msg)
	}

	return repaired
}
