package worker

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Pacer spaces outbound calls per key with token buckets. Batch runs use
// it to avoid hammering the analysis provider; it does not replace the
// sliding-window admission gates.
type Pacer struct {
	limiters     map[string]*rate.Limiter
	mu           sync.RWMutex
	defaultRate  rate.Limit
	defaultBurst int
}

// NewPacer creates a pacer allowing requestsPerSecond per key. A
// non-positive rate disables pacing.
func NewPacer(requestsPerSecond float64, burst int) *Pacer {
	if burst <= 0 {
		burst = 1
	}

	limit := rate.Limit(requestsPerSecond)
	if requestsPerSecond <= 0 {
		limit = rate.Inf
	}

	return &Pacer{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  limit,
		defaultBurst: burst,
	}
}

// Wait blocks until key may proceed or ctx ends
func (p *Pacer) Wait(ctx context.Context, key string) error {
	return p.limiter(key).Wait(ctx)
}

// Allow reports whether key may proceed now, consuming a token if so
func (p *Pacer) Allow(key string) bool {
	return p.limiter(key).Allow()
}

func (p *Pacer) limiter(key string) *rate.Limiter {
	p.mu.RLock()
	limiter, exists := p.limiters[key]
	p.mu.RUnlock()

	if exists {
		return limiter
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if limiter, exists := p.limiters[key]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(p.defaultRate, p.defaultBurst)
	p.limiters[key] = limiter
	return limiter
}

// SetRate overrides the pacing for one key
func (p *Pacer) SetRate(key string, requestsPerSecond float64, burst int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if burst <= 0 {
		burst = p.defaultBurst
	}
	p.limiters[key] = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}
