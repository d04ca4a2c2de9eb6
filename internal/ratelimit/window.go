package ratelimit

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// WindowLimiter admits at most maxRequests per identifier within any
// trailing window. Windows are created on first admission and dropped by
// Sweep once empty.
type WindowLimiter struct {
	mu          sync.Mutex
	windows     map[string]*window
	maxRequests int
	span        time.Duration
	clock       Clock
	logger      *slog.Logger
}

// Stats summarizes the limiter for status surfaces
type Stats struct {
	TrackedIdentifiers int           `json:"tracked_identifiers"`
	ActiveIdentifiers  int           `json:"active_identifiers"`
	ActiveRequests     int           `json:"active_requests"`
	MaxRequests        int           `json:"max_requests"`
	Window             time.Duration `json:"window"`
}

// NewWindowLimiter creates a per-identifier limiter
func NewWindowLimiter(maxRequests int, span time.Duration, opts ...Option) (*WindowLimiter, error) {
	if maxRequests <= 0 {
		return nil, fmt.Errorf("max requests must be greater than 0, got %d", maxRequests)
	}
	if span <= 0 {
		return nil, fmt.Errorf("window must be greater than 0, got %v", span)
	}

	s := buildSettings(opts)
	s.logger.Info("rate limiter initialized", "max_requests", maxRequests, "window", span)

	return &WindowLimiter{
		windows:     make(map[string]*window),
		maxRequests: maxRequests,
		span:        span,
		clock:       s.clock,
		logger:      s.logger,
	}, nil
}

// Admit records a request for identifier and reports whether it fits in the
// window. A denial mutates nothing beyond the stale-prefix trim.
func (l *WindowLimiter) Admit(identifier string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	w, ok := l.windows[identifier]
	if !ok {
		w = &window{timestamps: make([]time.Time, 0, l.maxRequests)}
		l.windows[identifier] = w
	}

	if !w.admit(now, l.maxRequests, l.span) {
		l.logger.Debug("rate limit exceeded", "identifier", identifier)
		return false
	}
	return true
}

// Remaining returns how many more requests identifier may make right now
func (l *WindowLimiter) Remaining(identifier string) int {
	return l.Status(identifier).Remaining
}

// ResetIn returns the time until identifier regains a slot, or 0 when it
// is under capacity
func (l *WindowLimiter) ResetIn(identifier string) time.Duration {
	return l.Status(identifier).ResetIn
}

// Status returns remaining and reset-in from a single clock reading.
// Unknown identifiers behave as empty windows.
func (l *WindowLimiter) Status(identifier string) Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[identifier]
	if !ok {
		return Status{Limit: l.maxRequests, Remaining: l.maxRequests}
	}
	return w.status(l.clock.Now(), l.maxRequests, l.span)
}

// Forget drops identifier's window unconditionally
func (l *WindowLimiter) Forget(identifier string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.windows[identifier]; ok {
		delete(l.windows, identifier)
		l.logger.Info("rate limit reset", "identifier", identifier)
	}
}

// Sweep trims timestamps older than twice the window and drops identifiers
// left empty. It returns the number of identifiers removed. Run it from a
// single periodic task.
func (l *WindowLimiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.clock.Now().Add(-2 * l.span)
	removed := 0
	for id, w := range l.windows {
		w.evict(cutoff)
		if len(w.timestamps) == 0 {
			delete(l.windows, id)
			removed++
		}
	}

	if removed > 0 {
		l.logger.Debug("cleaned up inactive rate limit entries", "removed", removed)
	}
	return removed
}

// Stats counts non-stale timestamps per identifier without evicting them
func (l *WindowLimiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.clock.Now().Add(-l.span)
	st := Stats{
		TrackedIdentifiers: len(l.windows),
		MaxRequests:        l.maxRequests,
		Window:             l.span,
	}
	for _, w := range l.windows {
		if n := w.countSince(cutoff); n > 0 {
			st.ActiveIdentifiers++
			st.ActiveRequests += n
		}
	}
	return st
}

// MaxRequests returns the per-identifier cap
func (l *WindowLimiter) MaxRequests() int { return l.maxRequests }

// Window returns the window length
func (l *WindowLimiter) Window() time.Duration { return l.span }
