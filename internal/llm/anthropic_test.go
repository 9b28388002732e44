package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestConvertToAnthropic(t *testing.T) {
	messages := []Message{
		{Role: "user", Content: "深圳到珠海怎么走"},
		{Role: "assistant", Content: "我来查询", ToolCalls: []ToolCall{
			{ID: "toolu_1", Name: "maps_geo", Arguments: map[string]any{"address": "珠海"}},
		}},
		{Role: "tool", ToolCallID: "toolu_1", Content: `{"location":"113.54,22.27"}`},
		{Role: "assistant", Content: "已获取位置"},
	}

	wire := convertToAnthropic(messages)
	if len(wire) != 4 {
		t.Fatalf("messages = %d, want 4", len(wire))
	}

	if wire[0].Role != "user" || wire[0].Content != "深圳到珠海怎么走" {
		t.Errorf("wire[0] = %+v", wire[0])
	}

	// The assistant tool call turns into text + tool_use blocks.
	blocks, ok := wire[1].Content.([]anthropicContent)
	if !ok {
		t.Fatalf("wire[1].Content = %T", wire[1].Content)
	}
	if len(blocks) != 2 || blocks[0].Type != "text" || blocks[0].Text != "我来查询" {
		t.Errorf("assistant blocks = %+v", blocks)
	}
	if blocks[1].Type != "tool_use" || blocks[1].ID != "toolu_1" || blocks[1].Name != "maps_geo" {
		t.Errorf("tool_use block = %+v", blocks[1])
	}

	// The tool result rides on a user message as a tool_result block
	// with scalar string content.
	if wire[2].Role != "user" {
		t.Errorf("wire[2].Role = %q", wire[2].Role)
	}
	resultBlocks, ok := wire[2].Content.([]anthropicContent)
	if !ok || len(resultBlocks) != 1 {
		t.Fatalf("wire[2].Content = %+v", wire[2].Content)
	}
	if resultBlocks[0].Type != "tool_result" || resultBlocks[0].ToolUseID != "toolu_1" {
		t.Errorf("tool_result block = %+v", resultBlocks[0])
	}
	if resultBlocks[0].Content != `{"location":"113.54,22.27"}` {
		t.Errorf("tool_result content = %q", resultBlocks[0].Content)
	}

	// Plain assistant text stays a string.
	if wire[3].Content != "已获取位置" {
		t.Errorf("wire[3] = %+v", wire[3])
	}
}

func TestConvertToAnthropicFallbackToolID(t *testing.T) {
	wire := convertToAnthropic([]Message{
		{Role: "assistant", ToolCalls: []ToolCall{{Name: "maps_geo"}}},
	})

	blocks := wire[0].Content.([]anthropicContent)
	if len(blocks) != 1 {
		t.Fatalf("blocks = %+v", blocks)
	}
	if blocks[0].ID != "toolu_maps_geo_0" {
		t.Errorf("fallback ID = %q", blocks[0].ID)
	}
	if blocks[0].Input == nil {
		t.Error("nil arguments must become an empty object")
	}
}

func TestConvertToolsToAnthropic(t *testing.T) {
	if got := convertToolsToAnthropic(nil); got != nil {
		t.Errorf("nil tools = %v", got)
	}

	tools := convertToolsToAnthropic([]Tool{
		{Name: "maps_geo", Description: "地理编码", InputSchema: map[string]any{"type": "object"}},
		{Name: "bare"},
	})
	if len(tools) != 2 {
		t.Fatalf("tools = %d", len(tools))
	}
	if tools[0].Name != "maps_geo" || tools[0].InputSchema == nil {
		t.Errorf("tools[0] = %+v", tools[0])
	}
	schema, ok := tools[1].InputSchema.(map[string]any)
	if !ok || schema["type"] != "object" {
		t.Errorf("missing schema must default to an empty object schema, got %+v", tools[1].InputSchema)
	}
}

func TestConvertFromAnthropic(t *testing.T) {
	resp := &anthropicResponse{
		Role:       "assistant",
		Model:      "claude-3-5-sonnet-20241022",
		StopReason: "tool_use",
		Content: []anthropicContent{
			{Type: "text", Text: "我来"},
			{Type: "text", Text: "查询"},
			{Type: "tool_use", ID: "toolu_1", Name: "maps_geo", Input: map[string]any{"address": "珠海"}},
		},
		Usage: anthropicUsage{InputTokens: 120, OutputTokens: 45},
	}

	got := convertFromAnthropic(resp)
	if got.Message.Content != "我来查询" {
		t.Errorf("Content = %q", got.Message.Content)
	}
	if len(got.Message.ToolCalls) != 1 {
		t.Fatalf("ToolCalls = %+v", got.Message.ToolCalls)
	}
	tc := got.Message.ToolCalls[0]
	if tc.ID != "toolu_1" || tc.Name != "maps_geo" || tc.Arguments["address"] != "珠海" {
		t.Errorf("tool call = %+v", tc)
	}
	if got.StopReason != "tool_use" || got.InputTokens != 120 || got.OutputTokens != 45 {
		t.Errorf("response = %+v", got)
	}
	if !got.HasToolCalls() {
		t.Error("HasToolCalls = false")
	}
}

func TestIsRateLimited(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"http 429", &APIError{Status: 429, Body: "too many requests"}, true},
		{"rate_limit body", &APIError{Status: 529, Body: `{"type":"rate_limit_error"}`}, true},
		{"rate limit phrase", &APIError{Status: 500, Body: "Rate Limit exceeded"}, true},
		{"plain 400", &APIError{Status: 400, Body: "invalid_request_error"}, false},
		{"wrapped", fmt.Errorf("call failed: %w", &APIError{Status: 429}), true},
		{"unrelated error", errors.New("connection refused"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRateLimited(tt.err); got != tt.want {
				t.Errorf("IsRateLimited = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChatAgainstStubServer(t *testing.T) {
	var gotReq anthropicRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "sk-test" {
			t.Errorf("x-api-key = %q", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") == "" {
			t.Error("missing anthropic-version header")
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		fmt.Fprint(w, `{
			"role": "assistant",
			"model": "claude-3-5-sonnet-20241022",
			"stop_reason": "end_turn",
			"content": [{"type":"text","text":"你好"}],
			"usage": {"input_tokens": 10, "output_tokens": 2}
		}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	resp, err := client.Chat(context.Background(), &ChatRequest{
		System:      "系统提示",
		Messages:    []Message{{Role: "user", Content: "你好"}},
		MaxTokens:   700,
		Temperature: 0.2,
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if resp.Message.Content != "你好" || resp.StopReason != "end_turn" {
		t.Errorf("response = %+v", resp)
	}
	if gotReq.Model != "claude-3-5-sonnet-20241022" || gotReq.System != "系统提示" {
		t.Errorf("request = %+v", gotReq)
	}
	if gotReq.MaxTokens != 700 || gotReq.Temperature != 0.2 {
		t.Errorf("request budgets = %+v", gotReq)
	}
}

func TestChatSurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"type":"rate_limit_error"}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Chat(context.Background(), &ChatRequest{
		Messages: []Message{{Role: "user", Content: "你好"}},
	})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want APIError", err)
	}
	if apiErr.Status != http.StatusTooManyRequests || !IsRateLimited(err) {
		t.Errorf("err = %+v", apiErr)
	}
}

func newTestClient(t *testing.T, url string) *AnthropicClient {
	t.Helper()
	c := NewAnthropicClient("sk-test", "claude-3-5-sonnet-20241022", slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.baseURL = url
	return c
}
