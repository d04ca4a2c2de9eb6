package parse

import (
	"regexp"
	"strings"

	"github.com/ppiankov/claimgate/internal/model"
)

const (
	heuristicTextLimit  = 500
	heuristicConfidence = 50
)

var (
	percentToken  = regexp.MustCompile(`(-?\d+)\s*%`)
	debunkedWord  = regexp.MustCompile(`\bdebunked\b`)
	supportedWord = regexp.MustCompile(`\bsupported\b`)
)

// verifyPhrases are checked in order; multi-word labels come first so
// "mostly false" is not read as "false"
var verifyPhrases = []struct {
	phrase   string
	accuracy model.Accuracy
	label    string
}{
	{"mostly true", model.AccuracyMostlyTrue, "Mostly True"},
	{"mostly false", model.AccuracyMostlyFalse, "Mostly False"},
	{"partially true", model.AccuracyMixed, "Mixed"},
	{"insufficient evidence", model.AccuracyInsufficientEvidence, "Insufficient Evidence"},
	{"mixed", model.AccuracyMixed, "Mixed"},
}

// parseHeuristic always succeeds on non-empty text
func parseHeuristic(mode model.Mode, raw string) (*model.Result, bool) {
	lower := strings.ToLower(raw)

	confidence := heuristicConfidence
	if m := percentToken.FindStringSubmatch(raw); m != nil {
		if c, ok := parseConfidence(m[1]); ok {
			confidence = c
		}
	}

	text := model.TruncateText(strings.TrimSpace(raw), heuristicTextLimit)

	if mode == model.ModeExpose {
		outcome := model.OutcomeUnknown
		switch {
		case debunkedWord.MatchString(lower):
			outcome = model.OutcomeDebunked
		case supportedWord.MatchString(lower):
			outcome = model.OutcomeSupported
		}
		return model.NewExposeResult(model.ExposeResult{
			Outcome:    outcome,
			Confidence: confidence,
			Analysis:   text,
			Evidence:   []string{},
		}, true), true
	}

	accuracy, label := model.AccuracyUnknown, "Unknown"
	for _, p := range verifyPhrases {
		if strings.Contains(lower, p.phrase) {
			accuracy, label = p.accuracy, p.label
			break
		}
	}
	return model.NewVerifyResult(model.VerifyResult{
		Accuracy:    accuracy,
		Label:       label,
		Confidence:  confidence,
		Explanation: text,
		Sources:     []string{},
	}, true), true
}
