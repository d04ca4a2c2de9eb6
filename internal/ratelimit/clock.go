// Package ratelimit implements sliding-window admission control: a keyed
// limiter scoped per identifier and a single-sequence global limiter.
//
// Both keep, for each scope, the timestamps of admitted requests still inside
// the window, oldest first. Every operation that touches a sequence first
// trims its stale prefix, so a denied flood never grows memory.
package ratelimit

import (
	"log/slog"
	"time"
)

// Clock supplies the current time. It must be monotonically non-decreasing
// for the sliding-window guarantees to hold.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock
type ClockFunc func() time.Time

// Now calls f
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads time.Now, which carries a monotonic reading
var SystemClock Clock = ClockFunc(time.Now)

type settings struct {
	clock  Clock
	logger *slog.Logger
}

// Option configures a limiter
type Option func(*settings)

// WithClock replaces the time source (tests use a fake clock)
func WithClock(c Clock) Option {
	return func(s *settings) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets the logger used for admission decisions
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

func buildSettings(opts []Option) settings {
	s := settings{clock: SystemClock, logger: slog.Default()}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Status is a read-only view of one scope's admission state
type Status struct {
	Limit     int           `json:"limit"`
	Remaining int           `json:"remaining"`
	ResetIn   time.Duration `json:"reset_in"`
}

// window is an ascending sequence of admission timestamps
type window struct {
	timestamps []time.Time
}

// evict trims every timestamp at or before cutoff. The sequence is ordered,
// so this is a prefix trim.
func (w *window) evict(cutoff time.Time) {
	i := 0
	for i < len(w.timestamps) && !w.timestamps[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return
	}
	n := copy(w.timestamps, w.timestamps[i:])
	clear(w.timestamps[n:])
	w.timestamps = w.timestamps[:n]
}

// admit appends now if fewer than limit timestamps remain after eviction
func (w *window) admit(now time.Time, limit int, span time.Duration) bool {
	w.evict(now.Add(-span))
	if len(w.timestamps) >= limit {
		return false
	}
	w.timestamps = append(w.timestamps, now)
	return true
}

func (w *window) status(now time.Time, limit int, span time.Duration) Status {
	w.evict(now.Add(-span))
	st := Status{Limit: limit, Remaining: max(0, limit-len(w.timestamps))}
	if len(w.timestamps) >= limit {
		// One slot frees when the oldest admitted request ages out
		st.ResetIn = max(0, w.timestamps[0].Add(span).Sub(now))
	}
	return st
}

// countSince counts timestamps after cutoff without mutating the sequence
func (w *window) countSince(cutoff time.Time) int {
	n := 0
	for i := len(w.timestamps) - 1; i >= 0; i-- {
		if !w.timestamps[i].After(cutoff) {
			break
		}
		n++
	}
	return n
}
