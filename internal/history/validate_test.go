package history

import (
	"testing"

	"github.com/waypoint-ai/waypoint/internal/llm"
)

func toolCall(id, name string) llm.ToolCall {
	return llm.ToolCall{ID: id, Name: name, Arguments: map[string]any{}}
}

// checkPairing verifies the invariant both ways: every kept call has
// exactly one result and every kept result targets a kept call.
func checkPairing(t *testing.T, messages []llm.Message) {
	t.Helper()

	calls := make(map[string]int)
	results := make(map[string]int)
	for _, msg := range messages {
		for _, tc := range msg.ToolCalls {
			calls[tc.ID]++
		}
		if msg.Role == "tool" {
			results[msg.ToolCallID]++
		}
	}

	for id, n := range calls {
		if results[id] != 1 {
			t.Errorf("call %s has %d results, want 1", id, results[id])
		}
		if n != 1 {
			t.Errorf("call %s appears %d times", id, n)
		}
	}
	for id := range results {
		if calls[id] == 0 {
			t.Errorf("result %s has no matching call", id)
		}
	}
}

func TestValidateAndFixWellFormedUnchanged(t *testing.T) {
	messages := []llm.Message{
		{Role: "user", Content: "深圳到珠海怎么走"},
		{Role: "assistant", Content: "我来查询路线", ToolCalls: []llm.ToolCall{toolCall("t1", "maps_geo")}},
		{Role: "tool", ToolCallID: "t1", Content: `{"location":"113.5,22.3"}`},
		{Role: "assistant", Content: "已找到位置"},
	}

	fixed := ValidateAndFix(messages)
	if len(fixed) != len(messages) {
		t.Fatalf("len = %d, want %d", len(fixed), len(messages))
	}
	checkPairing(t, fixed)
}

func TestValidateAndFixDropsOrphanedResult(t *testing.T) {
	messages := []llm.Message{
		{Role: "user", Content: "查询"},
		{Role: "tool", ToolCallID: "ghost", Content: "orphan"},
		{Role: "assistant", Content: "好的"},
	}

	fixed := ValidateAndFix(messages)
	for _, msg := range fixed {
		if msg.Role == "tool" {
			t.Fatalf("orphaned result survived: %+v", msg)
		}
	}
	checkPairing(t, fixed)
}

func TestValidateAndFixDropsDuplicateResult(t *testing.T) {
	messages := []llm.Message{
		{Role: "assistant", ToolCalls: []llm.ToolCall{toolCall("t1", "maps_geo")}},
		{Role: "tool", ToolCallID: "t1", Content: "first"},
		{Role: "tool", ToolCallID: "t1", Content: "second"},
	}

	fixed := ValidateAndFix(messages)
	checkPairing(t, fixed)

	count := 0
	for _, msg := range fixed {
		if msg.Role == "tool" {
			count++
			if msg.Content != "first" {
				t.Errorf("kept result = %q, want the first one", msg.Content)
			}
		}
	}
	if count != 1 {
		t.Errorf("tool results = %d, want 1", count)
	}
}

func TestValidateAndFixStripsUnansweredCall(t *testing.T) {
	messages := []llm.Message{
		{Role: "user", Content: "查询"},
		{Role: "assistant", Content: "我来查询", ToolCalls: []llm.ToolCall{
			toolCall("t1", "maps_geo"),
			toolCall("t2", "maps_weather"),
		}},
		{Role: "tool", ToolCallID: "t1", Content: "ok"},
		// t2 never got a result.
	}

	fixed := ValidateAndFix(messages)
	checkPairing(t, fixed)

	for _, msg := range fixed {
		for _, tc := range msg.ToolCalls {
			if tc.ID == "t2" {
				t.Error("unanswered call t2 should be stripped")
			}
		}
	}
}

func TestValidateAndFixDropsEmptiedAssistant(t *testing.T) {
	messages := []llm.Message{
		{Role: "user", Content: "查询"},
		// No text and no answered calls: nothing worth keeping.
		{Role: "assistant", ToolCalls: []llm.ToolCall{toolCall("t1", "maps_geo")}},
	}

	fixed := ValidateAndFix(messages)
	if len(fixed) != 1 || fixed[0].Role != "user" {
		t.Errorf("fixed = %+v, want only the user message", fixed)
	}
}

func TestValidateAndFixKeepsTextOfEmptiedAssistant(t *testing.T) {
	messages := []llm.Message{
		{Role: "assistant", Content: "正在查询", ToolCalls: []llm.ToolCall{toolCall("t1", "maps_geo")}},
	}

	fixed := ValidateAndFix(messages)
	if len(fixed) != 1 {
		t.Fatalf("len = %d, want 1", len(fixed))
	}
	if fixed[0].Content != "正在查询" || len(fixed[0].ToolCalls) != 0 {
		t.Errorf("fixed[0] = %+v, want text kept and calls stripped", fixed[0])
	}
}
