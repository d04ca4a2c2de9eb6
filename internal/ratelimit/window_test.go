package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type WindowLimiterSuite struct {
	suite.Suite
	clock   *fakeClock
	start   time.Time
	limiter *WindowLimiter
}

func TestWindowLimiterSuite(t *testing.T) {
	suite.Run(t, new(WindowLimiterSuite))
}

func (s *WindowLimiterSuite) SetupTest() {
	s.clock = newFakeClock()
	s.start = s.clock.Now()
	l, err := NewWindowLimiter(2, 60*time.Second, WithClock(s.clock), WithLogger(discardLogger()))
	s.Require().NoError(err)
	s.limiter = l
}

func (s *WindowLimiterSuite) at(seconds int) {
	s.clock.Set(s.start.Add(time.Duration(seconds) * time.Second))
}

func (s *WindowLimiterSuite) TestAdmissionSequence() {
	s.at(0)
	s.True(s.limiter.Admit("u1"))
	s.at(10)
	s.True(s.limiter.Admit("u1"))
	s.at(20)
	s.False(s.limiter.Admit("u1"))
	s.at(61)
	s.True(s.limiter.Admit("u1"), "t=0 entry should have expired")
}

func (s *WindowLimiterSuite) TestBoundaryIsExclusive() {
	s.at(0)
	s.True(s.limiter.Admit("u1"))
	s.True(s.limiter.Admit("u1"))

	// Exactly window_seconds later the t=0 entries are at now-window and are evicted
	s.at(60)
	s.True(s.limiter.Admit("u1"))
}

func (s *WindowLimiterSuite) TestIdentifiersAreIndependent() {
	s.True(s.limiter.Admit("u1"))
	s.True(s.limiter.Admit("u1"))
	s.False(s.limiter.Admit("u1"))

	s.True(s.limiter.Admit("u2"))
	s.Equal(1, s.limiter.Remaining("u2"))
	s.Equal(0, s.limiter.Remaining("u1"))
}

func (s *WindowLimiterSuite) TestUnknownIdentifier() {
	s.Equal(2, s.limiter.Remaining("nobody"))
	s.Equal(time.Duration(0), s.limiter.ResetIn("nobody"))
	s.Equal(0, s.limiter.Stats().TrackedIdentifiers, "read-only calls must not create windows")
}

func (s *WindowLimiterSuite) TestRemainingAndResetIn() {
	s.at(0)
	s.True(s.limiter.Admit("u1"))
	s.Equal(1, s.limiter.Remaining("u1"))
	s.Equal(time.Duration(0), s.limiter.ResetIn("u1"), "under capacity resets immediately")

	s.at(15)
	s.True(s.limiter.Admit("u1"))
	s.Equal(0, s.limiter.Remaining("u1"))

	s.at(20)
	s.Equal(40*time.Second, s.limiter.ResetIn("u1"))

	s.at(60)
	s.Equal(1, s.limiter.Remaining("u1"), "remaining grows as entries age out")
	s.Equal(time.Duration(0), s.limiter.ResetIn("u1"))
}

func (s *WindowLimiterSuite) TestDenialDoesNotGrowWindow() {
	s.True(s.limiter.Admit("u1"))
	s.True(s.limiter.Admit("u1"))
	for range 100 {
		s.False(s.limiter.Admit("u1"))
	}
	s.Equal(2, s.limiter.Stats().ActiveRequests)
}

func (s *WindowLimiterSuite) TestForget() {
	s.True(s.limiter.Admit("u1"))
	s.True(s.limiter.Admit("u1"))
	s.limiter.Forget("u1")
	s.Equal(2, s.limiter.Remaining("u1"))
	s.True(s.limiter.Admit("u1"))

	s.NotPanics(func() { s.limiter.Forget("never-seen") })
}

func (s *WindowLimiterSuite) TestSweep() {
	s.at(0)
	s.True(s.limiter.Admit("old"))
	s.at(90)
	s.True(s.limiter.Admit("recent"))

	// Sweep uses a 2x window threshold: "old" at t=0 is kept at t=100
	s.at(100)
	s.Equal(0, s.limiter.Sweep())
	s.Equal(2, s.limiter.Stats().TrackedIdentifiers)

	s.at(121)
	s.Equal(1, s.limiter.Sweep())
	st := s.limiter.Stats()
	s.Equal(1, st.TrackedIdentifiers)
	s.Equal(1, st.ActiveIdentifiers)
}

func (s *WindowLimiterSuite) TestStatsIsQueryTimeFilter() {
	s.at(0)
	s.True(s.limiter.Admit("a"))
	s.True(s.limiter.Admit("b"))
	s.at(30)
	s.True(s.limiter.Admit("b"))

	s.at(70)
	st := s.limiter.Stats()
	s.Equal(2, st.TrackedIdentifiers)
	s.Equal(1, st.ActiveIdentifiers)
	s.Equal(1, st.ActiveRequests)
	s.Equal(2, st.MaxRequests)
	s.Equal(60*time.Second, st.Window)

	// Stats did not evict: a sweep at 2x still sees "a" as stale-but-present until t=120
	s.Equal(2, s.limiter.Stats().TrackedIdentifiers)
}

func TestNewWindowLimiter_InvalidConfig(t *testing.T) {
	_, err := NewWindowLimiter(0, time.Minute, WithLogger(discardLogger()))
	assert.Error(t, err)

	_, err = NewWindowLimiter(5, 0, WithLogger(discardLogger()))
	assert.Error(t, err)
}

// Soundness: in any trailing window, admitted calls never exceed the cap
func TestWindowLimiter_Soundness(t *testing.T) {
	clock := newFakeClock()
	start := clock.Now()
	const limit = 3
	span := 10 * time.Second

	l, err := NewWindowLimiter(limit, span, WithClock(clock), WithLogger(discardLogger()))
	require.NoError(t, err)

	admitted := map[string][]time.Time{}
	ids := []string{"a", "b", "c"}
	for step := range 500 {
		clock.Set(start.Add(time.Duration(step*700) * time.Millisecond))
		id := ids[step%len(ids)]
		if l.Admit(id) {
			admitted[id] = append(admitted[id], clock.Now())
		}

		// Eviction correctness: every retained timestamp is inside the window
		l.mu.Lock()
		if w, ok := l.windows[id]; ok {
			cutoff := clock.Now().Add(-span)
			for _, ts := range w.timestamps {
				require.True(t, ts.After(cutoff))
			}
		}
		l.mu.Unlock()
	}

	for id, times := range admitted {
		for i := range times {
			inWindow := 0
			for j := i; j < len(times) && times[j].Sub(times[i]) < span; j++ {
				inWindow++
			}
			assert.LessOrEqual(t, inWindow, limit, fmt.Sprintf("identifier %s exceeded cap", id))
		}
	}
}

func TestWindowLimiter_Concurrent(t *testing.T) {
	l, err := NewWindowLimiter(50, time.Hour, WithLogger(discardLogger()))
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 10 {
				if l.Admit("shared") {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, allowed)
	assert.Equal(t, 0, l.Remaining("shared"))
}
