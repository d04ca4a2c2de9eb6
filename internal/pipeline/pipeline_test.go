package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/ppiankov/claimgate/internal/cache"
	"github.com/ppiankov/claimgate/internal/llm"
	"github.com/ppiankov/claimgate/internal/llm/mocks"
	"github.com/ppiankov/claimgate/internal/metrics"
	"github.com/ppiankov/claimgate/internal/model"
)

const verifyReply = "ACCURACY: Mostly True\nCONFIDENCE: 80\nEXPLANATION: Broadly correct.\nSOURCES: - Source A\n- Source B"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type PipelineSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	provider *mocks.MockProvider
	clock    *testClock
	cfg      *model.Config
	metrics  *metrics.Metrics
}

func TestPipelineSuite(t *testing.T) {
	suite.Run(t, new(PipelineSuite))
}

func (s *PipelineSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.provider = mocks.NewMockProvider(s.ctrl)
	s.provider.EXPECT().Name().Return("mock").AnyTimes()
	s.clock = &testClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	s.metrics = metrics.New(prometheus.NewRegistry())

	s.cfg = model.DefaultConfig()
	s.cfg.RateLimit.MaxRequests = 2
	s.cfg.RateLimit.Window = time.Minute
	s.cfg.RateLimit.GlobalPerMinute = 30
}

func (s *PipelineSuite) newPipeline(opts ...Option) *Pipeline {
	base := []Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithClock(s.clock),
		WithMetrics(s.metrics),
	}
	p, err := New(s.cfg, s.provider, append(base, opts...)...)
	s.Require().NoError(err)
	return p
}

func (s *PipelineSuite) expectReply(text string) *gomock.Call {
	return s.provider.EXPECT().
		Generate(gomock.Any(), gomock.Any()).
		Return(&llm.GenerateResponse{Text: text, Model: "m"}, nil)
}

func (s *PipelineSuite) TestNew() {
	s.Run("nil provider", func() {
		_, err := New(s.cfg, nil)
		s.Error(err)
	})

	s.Run("invalid configuration", func() {
		cfg := model.DefaultConfig()
		cfg.RateLimit.MaxRequests = 0
		_, err := New(cfg, s.provider)
		s.Error(err)
	})
}

func (s *PipelineSuite) TestAnalyze_Verify() {
	p := s.newPipeline()
	s.provider.EXPECT().
		Generate(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
			s.Contains(req.Prompt, `"The moon landing was staged in a studio"`)
			s.Contains(req.Prompt, "ACCURACY:")
			return &llm.GenerateResponse{Text: verifyReply}, nil
		})

	result, err := p.Analyze(context.Background(), Request{
		Identifier: "u1",
		Text:       "**The moon landing** was staged in a <@123> studio",
		Mode:       model.ModeVerify,
	})

	s.Require().NoError(err)
	s.Require().NotNil(result.Verify)
	s.Equal(model.AccuracyMostlyTrue, result.Verify.Accuracy)
	s.Equal(80, result.Verify.Confidence)
	s.Equal([]string{"Source A", "Source B"}, result.Verify.Sources)
	s.False(result.Degraded)
	s.Equal(1, p.LimiterStats("u1").Remaining)
	s.Equal(29, p.GlobalStats().Remaining)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.AnalysesTotal.WithLabelValues("verify", metrics.OutcomeAnalyzed)))
}

func (s *PipelineSuite) TestAnalyze_LengthBounds() {
	p := s.newPipeline()

	_, err := p.Analyze(context.Background(), Request{Identifier: "u1", Text: "  **hi** <@42> ", Mode: model.ModeVerify})
	s.ErrorIs(err, ErrClaimTooShort)
	s.True(IsLengthError(err))
	s.Equal(2, p.LimiterStats("u1").Remaining)
	s.Equal(30, p.GlobalStats().Remaining)
	s.Equal(0, p.Stats().TrackedIdentifiers)

	s.cfg.Claims.MaxLength = 20
	p = s.newPipeline()
	_, err = p.Analyze(context.Background(), Request{Identifier: "u1", Text: "this claim is definitely longer than twenty characters", Mode: model.ModeExpose})
	s.ErrorIs(err, ErrClaimTooLong)

	// No provider call was expected and no quota was used.
	s.Equal(2, p.LimiterStats("u1").Remaining)
	s.Equal(30, p.GlobalStats().Remaining)
	s.Equal(0, p.Stats().TrackedIdentifiers)
}

func (s *PipelineSuite) TestAnalyze_Automatic() {
	p := s.newPipeline()

	_, err := p.Analyze(context.Background(), Request{
		Identifier: "u1",
		Text:       "I had a lovely sandwich for lunch today",
		Mode:       model.ModeVerify,
		Automatic:  true,
	})
	s.ErrorIs(err, ErrNotTriggered)
	s.Equal(2, p.LimiterStats("u1").Remaining)

	s.expectReply(verifyReply)
	_, err = p.Analyze(context.Background(), Request{
		Identifier: "u1",
		Text:       "Studies show that chemtrails control the weather",
		Mode:       model.ModeVerify,
		Automatic:  true,
	})
	s.NoError(err)

	// Explicit requests skip the trigger check entirely.
	s.expectReply(verifyReply)
	_, err = p.Analyze(context.Background(), Request{
		Identifier: "u1",
		Text:       "I had a lovely sandwich for lunch today",
		Mode:       model.ModeVerify,
	})
	s.NoError(err)
}

func (s *PipelineSuite) TestAnalyze_IdentifierRateLimited() {
	p := s.newPipeline()
	s.expectReply(verifyReply).Times(2)
	req := Request{Identifier: "u1", Text: "The earth is roughly spherical", Mode: model.ModeVerify}

	for i := 0; i < 2; i++ {
		_, err := p.Analyze(context.Background(), req)
		s.Require().NoError(err)
		s.clock.Advance(10 * time.Second)
	}

	_, err := p.Analyze(context.Background(), req)
	rl, ok := IsRateLimited(err)
	s.Require().True(ok, "expected rate limit, got %v", err)
	s.Equal(ScopeIdentifier, rl.Scope)
	s.Equal(40*time.Second, rl.RetryAfter)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.RateLimitedTotal.WithLabelValues("identifier")))

	// Another identifier is unaffected.
	s.expectReply(verifyReply)
	_, err = p.Analyze(context.Background(), Request{Identifier: "u2", Text: req.Text, Mode: model.ModeVerify})
	s.NoError(err)
}

func (s *PipelineSuite) TestAnalyze_GlobalRateLimited() {
	s.cfg.RateLimit.GlobalPerMinute = 2
	p := s.newPipeline()
	s.expectReply(verifyReply).Times(2)

	for _, id := range []string{"a", "b"} {
		_, err := p.Analyze(context.Background(), Request{Identifier: id, Text: "Water boils at 100C at sea level", Mode: model.ModeVerify})
		s.Require().NoError(err)
	}

	s.clock.Advance(15 * time.Second)
	_, err := p.Analyze(context.Background(), Request{Identifier: "c", Text: "Water boils at 100C at sea level", Mode: model.ModeVerify})
	rl, ok := IsRateLimited(err)
	s.Require().True(ok)
	s.Equal(ScopeGlobal, rl.Scope)
	s.Equal(45*time.Second, rl.RetryAfter)

	// The identifier gate admitted "c" before the global gate denied it,
	// and that slot is not refunded.
	s.Equal(1, p.LimiterStats("c").Remaining)
	s.Equal(3, p.Stats().TrackedIdentifiers)
	s.Equal(0, p.GlobalStats().Remaining)
}

func (s *PipelineSuite) TestAnalyze_ServiceUnavailable() {
	p := s.newPipeline()
	boom := errors.New("connection reset")
	s.provider.EXPECT().Generate(gomock.Any(), gomock.Any()).Return(nil, boom)

	_, err := p.Analyze(context.Background(), Request{Identifier: "u1", Text: "Vitamin C cures the common cold", Mode: model.ModeVerify})

	s.True(IsServiceUnavailable(err))
	s.ErrorIs(err, boom)
	s.Equal(1, p.LimiterStats("u1").Remaining, "admission is not refunded")
}

func (s *PipelineSuite) TestAnalyze_EmptyResponse() {
	p := s.newPipeline()
	s.expectReply("")

	_, err := p.Analyze(context.Background(), Request{Identifier: "u1", Text: "Vitamin C cures the common cold", Mode: model.ModeVerify})

	s.True(IsServiceUnavailable(err))
	s.ErrorIs(err, llm.ErrEmptyResponse)
}

func (s *PipelineSuite) TestAnalyze_Cancelled() {
	p := s.newPipeline()
	started := make(chan struct{})
	s.provider.EXPECT().
		Generate(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ llm.GenerateRequest) (*llm.GenerateResponse, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := p.Analyze(ctx, Request{Identifier: "u1", Text: "Vitamin C cures the common cold", Mode: model.ModeExpose})

	s.ErrorIs(err, context.Canceled)
	s.False(IsServiceUnavailable(err))
	s.Equal(1, p.LimiterStats("u1").Remaining, "cancelled request keeps its slot")
}

func (s *PipelineSuite) TestAnalyze_DegradedExpose() {
	p := s.newPipeline()
	s.expectReply("Honestly this is debunked, about 73% sure.")

	result, err := p.Analyze(context.Background(), Request{Identifier: "u1", Text: "Vaccines contain microchips", Mode: model.ModeExpose})

	s.Require().NoError(err)
	s.Require().NotNil(result.Expose)
	s.True(result.Degraded)
	s.Equal(model.OutcomeDebunked, result.Expose.Outcome)
	s.Equal(73, result.Expose.Confidence)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.ParseTierTotal.WithLabelValues("expose", "heuristic")))
}

func (s *PipelineSuite) TestAnalyze_CacheHit() {
	p := s.newPipeline(WithCache(cache.NewMemoryCache(time.Hour, time.Minute), time.Hour))
	s.expectReply(verifyReply).Times(1)
	req := Request{Identifier: "u1", Text: "The earth is roughly spherical", Mode: model.ModeVerify}

	first, err := p.Analyze(context.Background(), req)
	s.Require().NoError(err)
	s.False(first.Cached)

	second, err := p.Analyze(context.Background(), Request{Identifier: "u1", Text: "  The   earth is *roughly* spherical ", Mode: model.ModeVerify})
	s.Require().NoError(err)
	s.True(second.Cached)
	s.Equal(first.Verify, second.Verify)

	// A cache hit still passes both gates.
	s.Equal(0, p.LimiterStats("u1").Remaining)
	s.Equal(28, p.GlobalStats().Remaining)
}

func (s *PipelineSuite) TestForgetAndSweep() {
	p := s.newPipeline()
	s.expectReply(verifyReply).Times(2)
	req := Request{Identifier: "u1", Text: "The earth is roughly spherical", Mode: model.ModeVerify}

	for i := 0; i < 2; i++ {
		_, err := p.Analyze(context.Background(), req)
		s.Require().NoError(err)
	}
	s.Equal(0, p.LimiterStats("u1").Remaining)

	p.Forget("u1")
	s.Equal(2, p.LimiterStats("u1").Remaining)

	s.expectReply(verifyReply)
	_, err := p.Analyze(context.Background(), Request{Identifier: "u2", Text: req.Text, Mode: model.ModeVerify})
	s.Require().NoError(err)

	s.clock.Advance(3 * time.Minute)
	s.Equal(1, p.Sweep())
	s.Equal(0, p.Stats().TrackedIdentifiers)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.SweptIdentifiers))
}

func (s *PipelineSuite) TestAnalyze_Concurrent() {
	s.cfg.RateLimit.MaxRequests = 100
	s.cfg.RateLimit.GlobalPerMinute = 10
	p := s.newPipeline()
	s.expectReply(verifyReply).Times(10)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ok      int
		limited int
	)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Analyze(context.Background(), Request{Identifier: "shared", Text: "Concurrent claim under test", Mode: model.ModeVerify})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if _, isRL := IsRateLimited(err); isRL {
				limited++
			}
		}()
	}
	wg.Wait()

	s.Equal(10, ok)
	s.Equal(15, limited)
}
