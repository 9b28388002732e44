// Package gateway wraps the reasoning-engine client with call pacing
// and retry behavior: a minimum delay between calls, and exponential
// backoff with jitter on rate-limit rejections.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/waypoint-ai/waypoint/internal/llm"
)

// Defaults for call pacing and retry.
const (
	DefaultMinCallDelay  = 2 * time.Second
	DefaultMaxRetries    = 5
	DefaultBackoffFactor = 1.5
)

// Option configures a Gateway.
type Option func(*Gateway)

// WithMinCallDelay sets the minimum delay between successive calls.
func WithMinCallDelay(d time.Duration) Option {
	return func(g *Gateway) { g.minDelay = d }
}

// WithMaxRetries sets the retry budget for rate-limited calls.
func WithMaxRetries(n int) Option {
	return func(g *Gateway) { g.maxRetries = n }
}

// WithBackoffFactor sets the exponential backoff base.
func WithBackoffFactor(f float64) Option {
	return func(g *Gateway) { g.backoffFactor = f }
}

// WithClock injects the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// WithSleeper injects the sleep function, for tests. The sleeper must
// honor context cancellation.
func WithSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(g *Gateway) { g.sleep = sleep }
}

// WithJitterSource injects the jitter random source, for tests.
// Values must be in [0, 1).
func WithJitterSource(fn func() float64) Option {
	return func(g *Gateway) { g.jitter = fn }
}

// Gateway paces and retries calls to a single llm.Client. It is not
// safe for concurrent use; the orchestrator serializes access, and a
// multi-query server must do the same to preserve the pacing contract.
type Gateway struct {
	client        llm.Client
	minDelay      time.Duration
	maxRetries    int
	backoffFactor float64
	logger        *slog.Logger

	now    func() time.Time
	sleep  func(context.Context, time.Duration) error
	jitter func() float64

	lastCall time.Time
}

// New creates a Gateway around client.
func New(client llm.Client, logger *slog.Logger, opts ...Option) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gateway{
		client:        client,
		minDelay:      DefaultMinCallDelay,
		maxRetries:    DefaultMaxRetries,
		backoffFactor: DefaultBackoffFactor,
		logger:        logger.With("component", "gateway"),
		now:           time.Now,
		sleep:         sleepContext,
		jitter:        rand.Float64,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Chat invokes the model, first honoring the minimum inter-call delay,
// then retrying with exponential backoff on rate-limit rejections.
// Non-retryable errors propagate immediately. On success the call time
// is recorded for the next delay calculation.
func (g *Gateway) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	if !g.lastCall.IsZero() {
		elapsed := g.now().Sub(g.lastCall)
		if elapsed < g.minDelay {
			wait := g.minDelay - elapsed
			g.logger.Debug("pacing model call", "wait", wait)
			if err := g.sleep(ctx, wait); err != nil {
				return nil, err
			}
		}
	}

	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := g.backoffDelay(attempt)
			g.logger.Warn("rate limited, backing off",
				"attempt", attempt,
				"max_retries", g.maxRetries,
				"backoff", backoff,
			)
			if err := g.sleep(ctx, backoff); err != nil {
				return nil, err
			}
		}

		resp, err := g.client.Chat(ctx, req)
		if err == nil {
			g.lastCall = g.now()
			return resp, nil
		}
		if !llm.IsRateLimited(err) {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("retry budget exhausted after %d attempts: %w", g.maxRetries, lastErr)
}

// backoffDelay computes factor^attempt seconds scaled by a jitter in
// [1.0, 1.1) to avoid synchronized retries.
func (g *Gateway) backoffDelay(attempt int) time.Duration {
	base := math.Pow(g.backoffFactor, float64(attempt))
	scaled := base * (1 + g.jitter()*0.1)
	return time.Duration(scaled * float64(time.Second))
}

// Sleep pauses for d honoring ctx, using the injected sleeper. The
// orchestrator uses this for inter-iteration pacing so tests can
// observe every delay through one hook.
func (g *Gateway) Sleep(ctx context.Context, d time.Duration) error {
	return g.sleep(ctx, d)
}

// sleepContext sleeps for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
