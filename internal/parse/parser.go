// Package parse turns free-text model replies into bounded results.
//
// Parsing never fails. Each reply runs through an ordered chain of
// strategies (structured payload, field headers, keyword heuristic) and
// the first that recognizes the reply wins. When nothing is recognized the
// chain ends in a fixed "unknown" result. Results from the heuristic and
// the terminal default are marked Degraded.
package parse

import (
	"log/slog"
	"strings"

	"github.com/ppiankov/claimgate/internal/model"
)

// Tier names the strategy that produced a result
type Tier string

const (
	TierStructured Tier = "structured"
	TierHeaders    Tier = "headers"
	TierHeuristic  Tier = "heuristic"
	TierFailure    Tier = "failure"
)

// FailureExplanation is used when a reply contains no text at all
const FailureExplanation = "Failed to parse analysis response"

// strategy returns ok=false when it does not recognize the reply
type strategy struct {
	tier  Tier
	parse func(mode model.Mode, raw string) (*model.Result, bool)
}

// Parser dispatches a reply through the strategy chain
type Parser struct {
	chain  []strategy
	logger *slog.Logger
}

// Option configures a Parser
type Option func(*Parser)

// WithLogger sets the logger used to report degraded parses
func WithLogger(logger *slog.Logger) Option {
	return func(p *Parser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a Parser with the default strategy chain
func New(opts ...Option) *Parser {
	p := &Parser{
		chain: []strategy{
			{TierStructured, parseStructured},
			{TierHeaders, parseHeaders},
			{TierHeuristic, parseHeuristic},
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse returns the structured result for raw. It never returns nil.
func (p *Parser) Parse(mode model.Mode, raw string) *model.Result {
	result, _ := p.ParseTier(mode, raw)
	return result
}

// ParseTier is Parse but also reports which strategy produced the result
func (p *Parser) ParseTier(mode model.Mode, raw string) (*model.Result, Tier) {
	if mode != model.ModeExpose {
		mode = model.ModeVerify
	}

	if strings.TrimSpace(raw) != "" {
		for _, s := range p.chain {
			if result, ok := s.parse(mode, raw); ok {
				if result.Degraded {
					p.logger.Debug("degraded parse", "mode", mode, "tier", s.tier)
				}
				return result, s.tier
			}
		}
	}

	p.logger.Warn("unparseable analysis response", "mode", mode, "length", len(raw))
	return failureResult(mode), TierFailure
}

func failureResult(mode model.Mode) *model.Result {
	if mode == model.ModeExpose {
		return model.NewExposeResult(model.ExposeResult{
			Outcome:  model.OutcomeUnknown,
			Analysis: FailureExplanation,
		}, true)
	}
	return model.NewVerifyResult(model.VerifyResult{
		Accuracy:    model.AccuracyUnknown,
		Explanation: FailureExplanation,
	}, true)
}
