package history

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/waypoint-ai/waypoint/internal/llm"
)

// DefaultBudget is the token budget compression targets.
const DefaultBudget = 8000

// digestPrefix marks the synthetic fact-digest message. A message
// carrying it is never re-extracted or dropped by later passes.
const digestPrefix = "根据已收集的信息，我们知道："

// infoMarkers gate fact extraction: only assistant text that looks
// informational is mined, process chatter is dropped outright.
var infoMarkers = []string{"查询", "结果", "信息", "query", "result", "information"}

// Compressor bounds the size of the conversation sent to the model
// while preserving tool call/result pairing.
type Compressor struct {
	budget    int
	extractor FactExtractor
	logger    *slog.Logger
}

// NewCompressor creates a Compressor with the given token budget. A
// zero budget means DefaultBudget; a nil extractor disables the digest.
func NewCompressor(budget int, extractor FactExtractor, logger *slog.Logger) *Compressor {
	if budget <= 0 {
		budget = DefaultBudget
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Compressor{
		budget:    budget,
		extractor: extractor,
		logger:    logger.With("component", "compressor"),
	}
}

// EstimateTokens approximates the token count of a conversation as
// serialized length over four, summed across messages.
func EstimateTokens(messages []llm.Message) int {
	total := 0
	for _, m := range messages {
		data, err := json.Marshal(m)
		if err != nil {
			continue
		}
		total += len(data) / 4
	}
	return total
}

// Compress returns a reduced copy of messages fitting the budget, or
// the input unchanged when it is short or already within budget.
//
// The first message and the five most recent messages are always kept,
// as is every message participating in a tool call/result pair.
// Assistant free text outside that set is mined for facts when it
// looks informational and dropped either way; extracted facts fold into
// a single synthetic digest message inserted after the first message.
//
// Compressing an already-compressed conversation returns it unchanged:
// the kept tail is position-stable, the digest is recognized by its
// prefix, and new facts merge into an existing digest instead of
// producing a second one.
func (c *Compressor) Compress(messages []llm.Message) []llm.Message {
	if len(messages) <= 5 {
		return messages
	}

	tokens := EstimateTokens(messages)
	if tokens <= c.budget {
		return messages
	}

	c.logger.Debug("compressing conversation",
		"messages", len(messages),
		"estimated_tokens", tokens,
		"budget", c.budget,
	)

	mustKeep := make(map[int]bool)
	mustKeep[0] = true
	for i := len(messages) - 5; i < len(messages); i++ {
		mustKeep[i] = true
	}

	var facts []string
	kept := make([]llm.Message, 0, len(messages))
	digestAt := -1

	for i, msg := range messages {
		switch {
		// An earlier digest survives and absorbs any new facts.
		case strings.HasPrefix(msg.Content, digestPrefix):
			digestAt = len(kept)
			kept = append(kept, msg)

		case mustKeep[i]:
			kept = append(kept, msg)

		// Pairing must be preserved: tool traffic is kept verbatim.
		case msg.Role == "tool", msg.Role == "assistant" && len(msg.ToolCalls) > 0:
			kept = append(kept, msg)

		case msg.Role == "assistant" && informational(msg.Content):
			if c.extractor != nil {
				facts = append(facts, c.extractor.ExtractFacts(msg.Content)...)
			}

			// Everything else is dropped outright.
		}
	}

	if len(facts) > 0 {
		if digestAt >= 0 {
			kept[digestAt] = mergeDigest(kept[digestAt], facts)
		} else {
			digest := llm.Message{
				Role:    "user",
				Content: digestPrefix + "\n• " + strings.Join(facts, "\n• "),
			}
			kept = append(kept[:1], append([]llm.Message{digest}, kept[1:]...)...)
		}
	}

	c.logger.Debug("conversation compressed",
		"before", len(messages),
		"after", len(kept),
		"facts", len(facts),
	)

	return kept
}

// mergeDigest appends facts the digest does not already carry.
func mergeDigest(digest llm.Message, facts []string) llm.Message {
	var fresh []string
	for _, fact := range facts {
		if !strings.Contains(digest.Content, fact) {
			fresh = append(fresh, fact)
		}
	}
	if len(fresh) == 0 {
		return digest
	}
	digest.Content += "\n• " + strings.Join(fresh, "\n• ")
	return digest
}

func informational(text string) bool {
	for _, marker := range infoMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}
