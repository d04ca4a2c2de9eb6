package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/claimgate/internal/cache"
	"github.com/ppiankov/claimgate/internal/extract"
	"github.com/ppiankov/claimgate/internal/llm"
	"github.com/ppiankov/claimgate/internal/metrics"
	"github.com/ppiankov/claimgate/internal/model"
	"github.com/ppiankov/claimgate/internal/parse"
	"github.com/ppiankov/claimgate/internal/ratelimit"
)

// Pipeline gates, sends and parses claims. Safe for concurrent use; the
// only shared mutable state lives in the two limiters.
type Pipeline struct {
	limiter  *ratelimit.WindowLimiter
	global   *ratelimit.GlobalLimiter
	trigger  *extract.TriggerDetector
	builder  *llm.PromptBuilder
	provider llm.Provider
	parser   *parse.Parser
	results  *cache.ResultCache
	store    cache.Cache
	cacheTTL time.Duration
	metrics  *metrics.Metrics
	logger   *slog.Logger
	clock    ratelimit.Clock
	newID    func() string
}

// Request is one analysis invocation
type Request struct {
	// Identifier is the rate-limit key, usually a user id
	Identifier string

	// Text is the raw claim as received
	Text string

	Mode model.Mode

	// Automatic marks unsolicited analysis, which must pass the trigger check
	Automatic bool
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMetrics enables Prometheus instrumentation
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithCache enables result reuse for repeated claims
func WithCache(store cache.Cache, ttl time.Duration) Option {
	return func(p *Pipeline) {
		p.store = store
		p.cacheTTL = ttl
	}
}

// WithClock replaces the limiters' time source
func WithClock(clock ratelimit.Clock) Option {
	return func(p *Pipeline) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// New builds a pipeline from validated configuration
func New(cfg *model.Config, provider llm.Provider, opts ...Option) (*Pipeline, error) {
	if provider == nil {
		return nil, errors.New("analysis provider is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	p := &Pipeline{
		builder:  llm.NewPromptBuilder(cfg.Claims.MinLength, cfg.Claims.MaxLength),
		provider: provider,
		logger:   slog.Default(),
		clock:    ratelimit.SystemClock,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.parser = parse.New(parse.WithLogger(p.logger))
	if p.store != nil {
		p.results = cache.NewResultCache(p.store, p.cacheTTL, p.logger)
	}

	limiterOpts := []ratelimit.Option{ratelimit.WithClock(p.clock), ratelimit.WithLogger(p.logger)}

	var err error
	p.limiter, err = ratelimit.NewWindowLimiter(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window, limiterOpts...)
	if err != nil {
		return nil, fmt.Errorf("create limiter: %w", err)
	}
	p.global, err = ratelimit.NewGlobalLimiter(cfg.RateLimit.GlobalPerMinute, limiterOpts...)
	if err != nil {
		return nil, fmt.Errorf("create global limiter: %w", err)
	}
	p.trigger, err = extract.NewTriggerDetector(cfg.Trigger.Keywords, cfg.Trigger.Patterns)
	if err != nil {
		return nil, fmt.Errorf("create trigger detector: %w", err)
	}

	return p, nil
}

// Analyze runs one claim through normalize, length bounds, trigger (automatic
// only), per-identifier gate, global gate, provider call and parse.
//
// Gate and provider failures come back as typed errors. Admission is never
// undone: a request that is admitted and then cancelled still holds its slot.
func (p *Pipeline) Analyze(ctx context.Context, req Request) (*model.Result, error) {
	mode := req.Mode
	if mode == "" {
		mode = model.ModeVerify
	}
	logger := p.logger.With("request_id", p.newID(), "identifier", req.Identifier, "mode", mode)

	claim := model.Claim{
		Raw:        req.Text,
		Normalized: extract.Normalize(req.Text),
		Mode:       mode,
	}

	if err := p.builder.CheckLength(claim.Normalized); err != nil {
		logger.Debug("claim rejected", "error", err)
		p.metrics.IncrementAnalysis(string(mode), metrics.OutcomeRejected)
		return nil, err
	}

	if req.Automatic {
		m, ok := p.trigger.Match(claim.Normalized)
		if !ok {
			p.metrics.IncrementAnalysis(string(mode), metrics.OutcomeNotTriggered)
			return nil, ErrNotTriggered
		}
		logger.Debug("automatic analysis triggered", "heuristic", m.Heuristic)
	}

	if !p.limiter.Admit(req.Identifier) {
		err := &RateLimitedError{
			Scope:      ScopeIdentifier,
			Identifier: req.Identifier,
			RetryAfter: p.limiter.ResetIn(req.Identifier),
		}
		logger.Info("rate limited", "scope", err.Scope, "retry_after", err.RetryAfter)
		p.metrics.IncrementRateLimited(string(err.Scope))
		p.metrics.IncrementAnalysis(string(mode), metrics.OutcomeRateLimited)
		return nil, err
	}

	// The identifier slot taken above stays consumed when the global gate
	// denies.
	if !p.global.Admit() {
		err := &RateLimitedError{
			Scope:      ScopeGlobal,
			Identifier: req.Identifier,
			RetryAfter: p.global.ResetIn(),
		}
		logger.Info("rate limited", "scope", err.Scope, "retry_after", err.RetryAfter)
		p.metrics.IncrementRateLimited(string(err.Scope))
		p.metrics.IncrementAnalysis(string(mode), metrics.OutcomeRateLimited)
		return nil, err
	}

	if cached, ok := p.results.Get(mode, claim.Normalized); ok {
		logger.Debug("cache hit")
		p.metrics.IncrementAnalysis(string(mode), metrics.OutcomeCached)
		return cached, nil
	}

	prompt, err := p.builder.Build(mode, claim.Normalized)
	if err != nil {
		return nil, err
	}

	text, err := p.generate(ctx, prompt)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			logger.Info("analysis abandoned", "error", ctxErr)
			return nil, ctxErr
		}
		logger.Warn("analysis service failed", "provider", p.provider.Name(), "error", err)
		p.metrics.IncrementAnalysis(string(mode), metrics.OutcomeUnavailable)
		return nil, &ServiceUnavailableError{Provider: p.provider.Name(), Err: err}
	}

	result, tier := p.parser.ParseTier(mode, text)
	p.metrics.IncrementParseTier(string(mode), string(tier))
	p.metrics.IncrementAnalysis(string(mode), metrics.OutcomeAnalyzed)
	p.results.Set(mode, claim.Normalized, result)

	logger.Info("claim analyzed",
		"classification", result.Classification(),
		"confidence", result.Confidence(),
		"tier", tier,
		"degraded", result.Degraded,
	)
	return result, nil
}

type generated struct {
	text string
	err  error
}

// generate calls the provider and stops waiting as soon as ctx is done
func (p *Pipeline) generate(ctx context.Context, prompt string) (string, error) {
	done := make(chan generated, 1)
	start := time.Now()

	go func() {
		resp, err := p.provider.Generate(ctx, llm.GenerateRequest{Prompt: prompt})
		switch {
		case err != nil:
		case resp == nil || resp.Text == "":
			err = llm.ErrEmptyResponse
		}
		p.metrics.ObserveProvider(p.provider.Name(), start, err)
		if err != nil {
			done <- generated{err: err}
			return
		}
		done <- generated{text: resp.Text}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case g := <-done:
		return g.text, g.err
	}
}

// LimiterStats reports the per-identifier gate for identifier
func (p *Pipeline) LimiterStats(identifier string) ratelimit.Status {
	return p.limiter.Status(identifier)
}

// GlobalStats reports the global gate
func (p *Pipeline) GlobalStats() ratelimit.Status {
	return p.global.Status()
}

// Stats summarizes the per-identifier limiter
func (p *Pipeline) Stats() ratelimit.Stats {
	return p.limiter.Stats()
}

// Forget clears identifier's window
func (p *Pipeline) Forget(identifier string) {
	p.limiter.Forget(identifier)
	p.logger.Info("rate limit reset", "identifier", identifier)
}

// Sweep drops idle identifiers and refreshes the limiter gauges. It must
// not run concurrently with itself.
func (p *Pipeline) Sweep() int {
	removed := p.limiter.Sweep()
	stats := p.limiter.Stats()
	p.metrics.AddSwept(removed)
	p.metrics.SetLimiterOccupancy(stats.TrackedIdentifiers, stats.ActiveIdentifiers, p.global.Remaining())
	return removed
}

// Provider returns the analysis provider name
func (p *Pipeline) Provider() string {
	return p.provider.Name()
}

// Ready reports whether the provider is configured and reachable. It does
// not touch either rate gate.
func (p *Pipeline) Ready(ctx context.Context) bool {
	return p.provider.IsAvailable(ctx)
}
