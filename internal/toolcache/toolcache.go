// Package toolcache memoizes tool invocations by tool name and
// arguments, with a time-based expiry.
package toolcache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/waypoint-ai/waypoint/internal/normalize"
)

// DefaultTTL is how long a cached result stays live.
const DefaultTTL = time.Hour

// Caller invokes the external tool capability. Implemented by the MCP
// client.
type Caller interface {
	CallTool(ctx context.Context, name string, args map[string]any) (string, error)
}

type entry struct {
	result normalize.Result
	at     time.Time
}

// Cache wraps a Caller with TTL memoization. Entries are never evicted;
// staleness is checked lazily at read time. The table grows for the
// process lifetime.
type Cache struct {
	caller Caller
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]entry
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL overrides the entry time-to-live.
func WithTTL(d time.Duration) Option {
	return func(c *Cache) { c.ttl = d }
}

// WithClock injects the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates a Cache around caller.
func New(caller Caller, logger *slog.Logger, opts ...Option) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cache{
		caller:  caller,
		ttl:     DefaultTTL,
		now:     time.Now,
		logger:  logger.With("component", "toolcache"),
		entries: make(map[string]entry),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// GetOrCall returns the cached result for (name, args) if a live entry
// exists, otherwise invokes the tool, normalizes the response, and
// stores it. Failed calls are never cached and will be retried on the
// next attempt.
func (c *Cache) GetOrCall(ctx context.Context, name string, args map[string]any) (normalize.Result, error) {
	key := cacheKey(name, args)

	c.mu.Lock()
	e, ok := c.entries[key]
	c.mu.Unlock()

	if ok && c.now().Sub(e.at) < c.ttl {
		c.logger.Debug("tool cache hit", "tool", name)
		return e.result, nil
	}

	raw, err := c.caller.CallTool(ctx, name, args)
	if err != nil {
		return normalize.Result{}, err
	}

	result := normalize.Normalize(raw)

	c.mu.Lock()
	c.entries[key] = entry{result: result, at: c.now()}
	c.mu.Unlock()

	c.logger.Debug("tool cache store", "tool", name, "kind", result.Kind.String())
	return result, nil
}

// Size returns the number of stored entries, live or stale.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// cacheKey derives the canonical key from the tool name and arguments.
// encoding/json sorts map keys, so identical argument sets always
// serialize identically.
func cacheKey(name string, args map[string]any) string {
	data, err := json.Marshal(args)
	if err != nil {
		// Unserializable arguments fall back to the fmt rendering,
		// which is stable enough for a cache key.
		data = []byte(fmt.Sprintf("%v", args))
	}
	return name + ":" + string(data)
}
