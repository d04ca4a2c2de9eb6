package ratelimit

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// GlobalWindow is the fixed span of the global limiter
const GlobalWindow = time.Minute

// GlobalLimiter caps aggregate throughput across all identifiers, protecting
// the shared quota of the external service. It has a single sequence whose
// own Admit calls bound its length, so it needs no sweep.
type GlobalLimiter struct {
	mu       sync.Mutex
	requests window
	limit    int
	clock    Clock
	logger   *slog.Logger
}

// NewGlobalLimiter creates a limiter admitting maxPerMinute requests per minute
func NewGlobalLimiter(maxPerMinute int, opts ...Option) (*GlobalLimiter, error) {
	if maxPerMinute <= 0 {
		return nil, fmt.Errorf("max requests per minute must be greater than 0, got %d", maxPerMinute)
	}

	s := buildSettings(opts)
	s.logger.Info("global rate limiter initialized", "max_requests_per_minute", maxPerMinute)

	return &GlobalLimiter{
		requests: window{timestamps: make([]time.Time, 0, maxPerMinute)},
		limit:    maxPerMinute,
		clock:    s.clock,
		logger:   s.logger,
	}, nil
}

// Admit records a request if the global cap allows it
func (g *GlobalLimiter) Admit() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.requests.admit(g.clock.Now(), g.limit, GlobalWindow) {
		g.logger.Warn("global rate limit exceeded")
		return false
	}
	return true
}

// Remaining returns how many more requests are admitted this minute
func (g *GlobalLimiter) Remaining() int {
	return g.Status().Remaining
}

// ResetIn returns the time until a global slot frees, or 0 if one is free
func (g *GlobalLimiter) ResetIn() time.Duration {
	return g.Status().ResetIn
}

// Status returns remaining and reset-in from a single clock reading
func (g *GlobalLimiter) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.requests.status(g.clock.Now(), g.limit, GlobalWindow)
}

// Limit returns the per-minute cap
func (g *GlobalLimiter) Limit() int { return g.limit }
