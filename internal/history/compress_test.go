package history

import (
	"reflect"
	"strings"
	"testing"

	"github.com/waypoint-ai/waypoint/internal/llm"
)

// buildLongConversation returns a conversation whose middle is padded
// past any reasonable budget: informational assistant text carrying an
// extractable fact, and pure chatter.
func buildLongConversation() []llm.Message {
	return []llm.Message{
		{Role: "user", Content: "深圳到珠海怎么走"},
		{Role: "assistant", Content: "查位置", ToolCalls: []llm.ToolCall{{ID: "t1", Name: "maps_geo"}}},
		{Role: "tool", ToolCallID: "t1", Content: `{"location":"113.5,22.3"}`},
		{Role: "assistant", Content: "查询结果：位置：珠海市香洲区。" + strings.Repeat("详", 600)},
		{Role: "assistant", Content: strings.Repeat("嗯", 600)},
		{Role: "assistant", Content: "查路线", ToolCalls: []llm.ToolCall{{ID: "t2", Name: "maps_direction_driving"}}},
		{Role: "tool", ToolCallID: "t2", Content: `{"distance":"66000"}`},
		{Role: "user", Content: "ok1"},
		{Role: "assistant", Content: "ok2"},
		{Role: "user", Content: "ok3"},
		{Role: "assistant", Content: "ok4"},
		{Role: "user", Content: "ok5"},
	}
}

func TestCompressShortConversationUntouched(t *testing.T) {
	c := NewCompressor(10, NewRegexExtractor(), nil) // tiny budget

	messages := []llm.Message{
		{Role: "user", Content: strings.Repeat("长", 500)},
		{Role: "assistant", Content: strings.Repeat("长", 500)},
	}
	out := c.Compress(messages)
	if !reflect.DeepEqual(out, messages) {
		t.Error("conversations of 5 or fewer messages must pass through")
	}
}

func TestCompressWithinBudgetUntouched(t *testing.T) {
	c := NewCompressor(DefaultBudget, NewRegexExtractor(), nil)

	messages := []llm.Message{
		{Role: "user", Content: "a"},
		{Role: "assistant", Content: "b"},
		{Role: "user", Content: "c"},
		{Role: "assistant", Content: "d"},
		{Role: "user", Content: "e"},
		{Role: "assistant", Content: "f"},
	}
	out := c.Compress(messages)
	if !reflect.DeepEqual(out, messages) {
		t.Error("conversation within budget must pass through")
	}
}

func TestCompressDropsChatterKeepsToolTraffic(t *testing.T) {
	c := NewCompressor(300, NewRegexExtractor(), nil)
	messages := buildLongConversation()

	out := c.Compress(messages)
	if len(out) >= len(messages) {
		t.Fatalf("len = %d, want fewer than %d", len(out), len(messages))
	}

	// First message survives in place.
	if out[0].Content != messages[0].Content {
		t.Errorf("out[0] = %+v", out[0])
	}

	// Tool call/result pairs survive verbatim.
	var toolIDs []string
	for _, msg := range out {
		if msg.Role == "tool" {
			toolIDs = append(toolIDs, msg.ToolCallID)
		}
		if strings.Contains(msg.Content, "嗯嗯") {
			t.Error("chatter message survived compression")
		}
	}
	if len(toolIDs) != 2 {
		t.Errorf("tool results kept = %v, want both t1 and t2", toolIDs)
	}

	// The digest lands right after the first message and carries the
	// extracted fact.
	if !strings.HasPrefix(out[1].Content, digestPrefix) {
		t.Fatalf("out[1] = %q, want digest", out[1].Content)
	}
	if out[1].Role != "user" {
		t.Errorf("digest role = %q, want user", out[1].Role)
	}
	if !strings.Contains(out[1].Content, "珠海市香洲区") {
		t.Errorf("digest missing extracted fact: %q", out[1].Content)
	}
}

func TestCompressIdempotent(t *testing.T) {
	// The second budget is so small that even the compressed output
	// exceeds it; a second pass must still change nothing.
	for _, budget := range []int{300, 10} {
		c := NewCompressor(budget, NewRegexExtractor(), nil)

		once := c.Compress(buildLongConversation())
		twice := c.Compress(once)
		if !reflect.DeepEqual(once, twice) {
			t.Errorf("budget %d: compression not idempotent:\nonce:  %+v\ntwice: %+v", budget, once, twice)
		}

		digests := 0
		for _, msg := range twice {
			if strings.HasPrefix(msg.Content, digestPrefix) {
				digests++
			}
		}
		if digests != 1 {
			t.Errorf("budget %d: digest messages = %d, want 1", budget, digests)
		}
	}
}

func TestCompressMergesFactsIntoExistingDigest(t *testing.T) {
	c := NewCompressor(300, NewRegexExtractor(), nil)

	grown := c.Compress(buildLongConversation())
	grown = append(grown,
		llm.Message{Role: "assistant", Content: "查询结果：天气：多云。" + strings.Repeat("详", 600)},
		llm.Message{Role: "user", Content: "p1"},
		llm.Message{Role: "assistant", Content: "p2"},
		llm.Message{Role: "user", Content: "p3"},
		llm.Message{Role: "assistant", Content: "p4"},
		llm.Message{Role: "user", Content: "p5"},
	)

	out := c.Compress(grown)

	var digest string
	digests := 0
	for _, msg := range out {
		if strings.HasPrefix(msg.Content, digestPrefix) {
			digest = msg.Content
			digests++
		}
	}
	if digests != 1 {
		t.Fatalf("digest messages = %d, want exactly 1", digests)
	}
	if !strings.Contains(digest, "珠海市香洲区") || !strings.Contains(digest, "多云") {
		t.Errorf("digest missing merged facts: %q", digest)
	}
}

func TestCompressNilExtractor(t *testing.T) {
	c := NewCompressor(300, nil, nil)

	out := c.Compress(buildLongConversation())
	for _, msg := range out {
		if strings.HasPrefix(msg.Content, digestPrefix) {
			t.Error("no digest expected without an extractor")
		}
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens(nil); got != 0 {
		t.Errorf("EstimateTokens(nil) = %d", got)
	}

	short := []llm.Message{{Role: "user", Content: "hi"}}
	long := []llm.Message{{Role: "user", Content: strings.Repeat("x", 4000)}}
	if EstimateTokens(short) >= EstimateTokens(long) {
		t.Error("longer conversation must estimate more tokens")
	}
	if EstimateTokens(long) < 1000 {
		t.Errorf("4000 chars should estimate at least 1000 tokens, got %d", EstimateTokens(long))
	}
}
