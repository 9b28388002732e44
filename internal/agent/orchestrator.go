// Package agent implements the turn orchestrator: the loop that drives
// the model, dispatches tool calls, watches for enough information to
// answer, and synthesizes the final answer.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/waypoint-ai/waypoint/internal/gateway"
	"github.com/waypoint-ai/waypoint/internal/history"
	"github.com/waypoint-ai/waypoint/internal/llm"
	"github.com/waypoint-ai/waypoint/internal/memory"
	"github.com/waypoint-ai/waypoint/internal/normalize"
	"github.com/waypoint-ai/waypoint/internal/routeinfo"
	"github.com/waypoint-ai/waypoint/internal/toolcache"
)

// temperature is fixed low for all model calls; the loop wants
// reproducible tool selection, not creative variance.
const temperature = 0.2

// maxResultDisplay bounds, in runes, how much of a tool result lands
// in the visible transcript. The conversation history keeps the full
// compact form.
const maxResultDisplay = 600

// ToolSource supplies the tool descriptors advertised to the model.
type ToolSource interface {
	Tools() []llm.Tool
}

// Config tunes the orchestration loop. Zero values fall back to the
// defaults matching interactive use.
type Config struct {
	// MaxIterations is the hard cap on model turns per query.
	MaxIterations int

	// IterationDelay is the base pacing delay between turns; the
	// actual sleep scales with the iteration number.
	IterationDelay time.Duration

	// SettleDelay is slept before the finalization call to stay
	// clear of the provider rate limit.
	SettleDelay time.Duration

	// FinalMaxTokens is the budget for the finalization call.
	FinalMaxTokens int

	Keywords Keywords
}

func (c Config) withDefaults() Config {
	if c.MaxIterations == 0 {
		c.MaxIterations = 4
	}
	if c.IterationDelay == 0 {
		c.IterationDelay = 3 * time.Second
	}
	if c.SettleDelay == 0 {
		c.SettleDelay = 3 * time.Second
	}
	if c.FinalMaxTokens == 0 {
		c.FinalMaxTokens = 1500
	}
	if len(c.Keywords.Concluding) == 0 {
		c.Keywords = DefaultKeywords()
	}
	return c
}

// Orchestrator runs one query at a time. The gateway serializes model
// pacing, so concurrent callers must queue in front of Run.
type Orchestrator struct {
	gateway    *gateway.Gateway
	tools      ToolSource
	cache      *toolcache.Cache
	mem        *memory.Store
	routes     *routeinfo.Table
	compressor *history.Compressor
	logger     *slog.Logger
	cfg        Config
}

// New assembles an orchestrator from its collaborators.
func New(gw *gateway.Gateway, tools ToolSource, cache *toolcache.Cache, mem *memory.Store, routes *routeinfo.Table, compressor *history.Compressor, logger *slog.Logger, cfg Config) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		gateway:    gw,
		tools:      tools,
		cache:      cache,
		mem:        mem,
		routes:     routes,
		compressor: compressor,
		logger:     logger,
		cfg:        cfg.withDefaults(),
	}
}

// Result is the outcome of one query.
type Result struct {
	// Answer is the final answer text, model-generated or locally
	// synthesized.
	Answer string

	// Transcript is the full visible output: intermediate reasoning,
	// tool calls and results, then the answer.
	Transcript string

	Iterations   int
	ToolCalls    int
	LocalSummary bool
}

// phase is the verdict of one loop step.
type phase int

const (
	phaseContinue phase = iota
	phaseFinalize
	phaseAborted
)

// session is the per-query mutable state. A fresh one is built for
// every Run call, which is what resets InfoState.
type session struct {
	query string
	kind  QueryKind
	tools []llm.Tool

	messages []llm.Message
	info     InfoState

	iteration    int
	noToolStreak int
	done         bool

	results    []normalize.Result
	transcript []string
	toolCalls  int
}

// Run processes one free-text query end to end: iterate until enough
// information is gathered or budgets run out, then synthesize the
// answer and fold the outcome into memory. The only error returned is
// context cancellation; every other failure degrades to a local
// summary.
func (o *Orchestrator) Run(ctx context.Context, query string) (*Result, error) {
	s := &session{
		query: query,
		kind:  o.cfg.Keywords.Classify(query),
		tools: o.tools.Tools(),
	}

	initial := query
	if prompt := o.mem.PromptFor(query); prompt != "" {
		initial = prompt + "\n\n您的问题: " + query
		o.logger.Debug("query augmented with memory", "query", query)
	}
	s.messages = []llm.Message{{Role: "user", Content: initial}}

	o.logger.Info("query started", "query", query, "kind", s.kind.String(), "tools", len(s.tools))

	for {
		verdict := o.step(ctx, s)
		if verdict != phaseContinue {
			break
		}
		wait := o.cfg.IterationDelay * time.Duration(s.iteration) / 2
		if err := o.gateway.Sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	answer, local := o.finalize(ctx, s)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.transcript = append(s.transcript, strings.Repeat("=", 50))
	if local {
		s.transcript = append(s.transcript, "摘要 (本地生成):")
	} else {
		s.transcript = append(s.transcript, "最终回答:")
	}
	s.transcript = append(s.transcript, answer)

	o.mem.Update(query, s.results, answer)

	o.logger.Info("query finished",
		"iterations", s.iteration,
		"tool_calls", s.toolCalls,
		"local_summary", local,
	)

	return &Result{
		Answer:       answer,
		Transcript:   strings.Join(s.transcript, "\n"),
		Iterations:   s.iteration,
		ToolCalls:    s.toolCalls,
		LocalSummary: local,
	}, nil
}

// step runs one Planning/ToolDispatch/Evaluate cycle and reports
// whether the loop continues, moves to finalization, or aborts.
func (o *Orchestrator) step(ctx context.Context, s *session) phase {
	s.iteration++
	budget := o.tokenBudget(s)

	o.logger.Debug("iteration started",
		"iteration", s.iteration,
		"max_iterations", o.cfg.MaxIterations,
		"max_tokens", budget,
	)

	outgoing := history.ValidateAndFix(o.compressor.Compress(s.messages))
	resp, err := o.gateway.Chat(ctx, &llm.ChatRequest{
		System:      systemPrompt,
		Messages:    outgoing,
		Tools:       s.tools,
		MaxTokens:   budget,
		Temperature: temperature,
	})
	if err != nil {
		o.logger.Error("model call failed", "iteration", s.iteration, "error", err)
		return phaseAborted
	}

	msg := resp.Message
	text := strings.TrimSpace(msg.Content)
	if text == "" && len(msg.ToolCalls) == 0 {
		o.logger.Warn("empty model response", "iteration", s.iteration)
		return phaseFinalize
	}

	if text != "" {
		if o.cfg.Keywords.LooksConcluding(text) {
			s.done = true
			o.logger.Debug("concluding language detected")
		}
		s.transcript = append(s.transcript, text)
	}
	s.messages = append(s.messages, msg)

	if len(msg.ToolCalls) > 0 {
		s.noToolStreak = 0
		o.dispatchTools(ctx, s, msg.ToolCalls)
	} else {
		s.noToolStreak++
		if s.noToolStreak >= 2 {
			s.done = true
			o.logger.Debug("two consecutive responses without tool calls")
		}
	}

	if s.iteration >= 2 && s.info.Sufficient(s.kind) {
		s.done = true
		o.logger.Debug("sufficient information gathered", "kind", s.kind.String())
	}

	if s.done {
		return phaseFinalize
	}
	if s.iteration >= o.cfg.MaxIterations {
		return phaseFinalize
	}
	return phaseContinue
}

// dispatchTools executes the requested tool calls strictly in order.
// Each call gets a tool-result message; failures become error results
// and never abort the turn.
func (o *Orchestrator) dispatchTools(ctx context.Context, s *session, calls []llm.ToolCall) {
	for _, call := range calls {
		s.toolCalls++

		args, _ := json.Marshal(call.Arguments)
		s.transcript = append(s.transcript, fmt.Sprintf("▼ 调用工具 %s ▼\n参数: %s", call.Name, args))

		result, err := o.cache.GetOrCall(ctx, call.Name, call.Arguments)
		if err != nil {
			errText := fmt.Sprintf("Error calling tool %s: %v", call.Name, err)
			o.logger.Warn("tool call failed", "tool", call.Name, "error", err)
			s.transcript = append(s.transcript, "Error: "+errText)
			s.messages = append(s.messages, llm.Message{
				Role:       "tool",
				ToolCallID: call.ID,
				Content:    "Error: " + errText,
			})
			continue
		}

		s.results = append(s.results, result)
		s.info.Mark(categorize(call.Name))

		compact := result.Compact()
		display := compact
		if runes := []rune(display); len(runes) > maxResultDisplay {
			display = string(runes[:maxResultDisplay]) + "... [truncated]"
		}
		s.transcript = append(s.transcript, "结果:\n"+display)

		s.messages = append(s.messages, llm.Message{
			Role:       "tool",
			ToolCallID: call.ID,
			Content:    compact,
		})
	}
}

// tokenBudget follows a fixed schedule: generous on the first turn for
// planning (more when memory already covers the query), minimal in the
// middle, generous again at the end for concluding.
func (o *Orchestrator) tokenBudget(s *session) int {
	switch {
	case s.iteration == 1:
		if o.mem.QueryCount() > 0 && o.mem.HasRelevantMemory(s.query) {
			o.logger.Debug("relevant memory detected, raising first-turn budget")
			return 1000
		}
		return 700
	case s.iteration < o.cfg.MaxIterations-1:
		return 500
	default:
		return 900
	}
}

// finalize issues the answer-synthesis call with an empty tool set.
// Any failure falls back to the deterministic local summary; the user
// always gets an answer.
func (o *Orchestrator) finalize(ctx context.Context, s *session) (answer string, local bool) {
	if err := o.gateway.Sleep(ctx, o.cfg.SettleDelay); err != nil {
		return o.localSummary(s), true
	}

	memoryContext := o.mem.Context()
	routeContext := ""
	if origin, destination := o.mem.RouteEndpoints(s.query); origin != "" && destination != "" {
		routeContext = o.routes.Context(origin, destination)
	}

	messages := history.ValidateAndFix(o.compressor.Compress(s.messages))
	messages = append(messages, llm.Message{
		Role:    "user",
		Content: finalizationPrompt(memoryContext, routeContext),
	})

	resp, err := o.gateway.Chat(ctx, &llm.ChatRequest{
		System:      systemPrompt,
		Messages:    messages,
		MaxTokens:   o.cfg.FinalMaxTokens,
		Temperature: temperature,
	})
	if err != nil {
		o.logger.Warn("finalization call failed, using local summary", "error", err)
		return o.localSummary(s), true
	}

	text := strings.TrimSpace(resp.Message.Content)
	if text == "" {
		o.logger.Warn("empty finalization response, using local summary")
		return o.localSummary(s), true
	}
	return text, false
}
