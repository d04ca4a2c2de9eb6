package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ppiankov/claimgate/internal/model"
)

// TriggerDetector decides whether unsolicited text warrants analysis. It is
// a cheap, explainable pre-filter: case-folded keyword containment OR'ed with
// a battery of regular expressions. Same input and configuration always give
// the same answer.
type TriggerDetector struct {
	keywords []string
	patterns []*regexp.Regexp
}

// Match describes which heuristic fired
type Match struct {
	Heuristic string // e.g. "keyword:detox" or "pattern:\b(miracle cure|...)\b"
}

// NewTriggerDetector compiles the configured patterns. Keywords are matched
// case-insensitively; patterns are evaluated against lower-cased text.
func NewTriggerDetector(keywords []string, patterns []string) (*TriggerDetector, error) {
	d := &TriggerDetector{}

	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			d.keywords = append(d.keywords, kw)
		}
	}

	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile trigger pattern %q: %w", p, err)
		}
		d.patterns = append(d.patterns, re)
	}

	return d, nil
}

// ShouldAnalyze reports whether any keyword or pattern matches text
func (d *TriggerDetector) ShouldAnalyze(text string) bool {
	_, ok := d.Match(text)
	return ok
}

// Match returns the first heuristic that fires. Keywords are checked before
// patterns; the decision does not depend on that order.
func (d *TriggerDetector) Match(text string) (Match, bool) {
	lower := strings.ToLower(text)

	for _, kw := range d.keywords {
		if strings.Contains(lower, kw) {
			return Match{Heuristic: "keyword:" + kw}, true
		}
	}

	for _, re := range d.patterns {
		if re.MatchString(lower) {
			return Match{Heuristic: "pattern:" + re.String()}, true
		}
	}

	return Match{}, false
}

var defaultPatterns = mustCompileAll(model.DefaultTriggerPatterns)

// ShouldAnalyze checks text against the given keywords and the default
// pattern battery
func ShouldAnalyze(text string, keywords []string) bool {
	d := &TriggerDetector{patterns: defaultPatterns}
	for _, kw := range keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			d.keywords = append(d.keywords, kw)
		}
	}
	return d.ShouldAnalyze(text)
}

func mustCompileAll(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(p))
	}
	return out
}
