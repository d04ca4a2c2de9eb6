package model

import "strings"

// Limits applied to every Result regardless of how it was produced
const (
	MaxConfidence  = 100
	MaxTextLength  = 1024 // Explanation/analysis cap, ellipsis included
	MaxListEntries = 4    // Sources/evidence cap
	Ellipsis       = "..."
)

// Accuracy is the verify-mode classification
type Accuracy string

const (
	AccuracyTrue                 Accuracy = "true"
	AccuracyMostlyTrue           Accuracy = "mostly_true"
	AccuracyMixed                Accuracy = "mixed"
	AccuracyMostlyFalse          Accuracy = "mostly_false"
	AccuracyFalse                Accuracy = "false"
	AccuracyInsufficientEvidence Accuracy = "insufficient_evidence"
	AccuracyUnknown              Accuracy = "unknown"
)

// ParseAccuracy maps a free-text label ("Mostly True", "partially true",
// "Insufficient Evidence") onto the Accuracy enum
func ParseAccuracy(label string) Accuracy {
	s := strings.ToLower(strings.TrimSpace(label))
	s = strings.Trim(s, "*[]().:")
	s = strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '_' || r == '-'
	}), " ")

	switch {
	case s == "":
		return AccuracyUnknown
	case strings.HasPrefix(s, "mostly true"):
		return AccuracyMostlyTrue
	case strings.HasPrefix(s, "mostly false"):
		return AccuracyMostlyFalse
	case strings.HasPrefix(s, "mixed"), strings.HasPrefix(s, "partially true"), strings.HasPrefix(s, "half true"):
		return AccuracyMixed
	case strings.HasPrefix(s, "insufficient"), strings.HasPrefix(s, "unverifiable"):
		return AccuracyInsufficientEvidence
	case strings.HasPrefix(s, "true"):
		return AccuracyTrue
	case strings.HasPrefix(s, "false"):
		return AccuracyFalse
	default:
		return AccuracyUnknown
	}
}

// Outcome is the expose-mode classification
type Outcome string

const (
	OutcomeDebunked  Outcome = "debunked"
	OutcomeSupported Outcome = "supported"
	OutcomeUnknown   Outcome = "unknown"
)

// ParseOutcome maps a free-text label onto the Outcome enum
func ParseOutcome(label string) Outcome {
	s := strings.ToLower(strings.TrimSpace(label))
	s = strings.Trim(s, "*[]().:")
	switch {
	case strings.HasPrefix(s, "debunk"):
		return OutcomeDebunked
	case strings.HasPrefix(s, "support"):
		return OutcomeSupported
	default:
		return OutcomeUnknown
	}
}

// VerifyResult is the structured verify-mode answer
type VerifyResult struct {
	Accuracy    Accuracy `json:"accuracy"`
	Label       string   `json:"label"` // Label as the model wrote it, e.g. "Mostly True"
	Confidence  int      `json:"confidence"`
	Explanation string   `json:"explanation"`
	Sources     []string `json:"sources"`
}

// ExposeResult is the structured expose-mode answer
type ExposeResult struct {
	Outcome    Outcome  `json:"outcome"`
	Confidence int      `json:"confidence"`
	Analysis   string   `json:"analysis"`
	Evidence   []string `json:"evidence"`
}

// Result is a tagged union: exactly one of Verify or Expose is set,
// matching Mode. Consumers switch on Mode.
type Result struct {
	Mode     Mode          `json:"mode"`
	Verify   *VerifyResult `json:"verify,omitempty"`
	Expose   *ExposeResult `json:"expose,omitempty"`
	Degraded bool          `json:"degraded"` // Produced by the heuristic fallback, not structured extraction
	Cached   bool          `json:"cached,omitempty"`
}

// NewVerifyResult wraps v in a Result and enforces the bounds
func NewVerifyResult(v VerifyResult, degraded bool) *Result {
	if v.Accuracy == "" {
		v.Accuracy = ParseAccuracy(v.Label)
	}
	if v.Label == "" {
		v.Label = "Unknown"
	}
	v.Confidence = ClampConfidence(v.Confidence)
	v.Explanation = TruncateText(v.Explanation, MaxTextLength)
	v.Sources = LimitList(v.Sources, MaxListEntries)
	return &Result{Mode: ModeVerify, Verify: &v, Degraded: degraded}
}

// NewExposeResult wraps e in a Result and enforces the bounds
func NewExposeResult(e ExposeResult, degraded bool) *Result {
	if e.Outcome == "" {
		e.Outcome = OutcomeUnknown
	}
	e.Confidence = ClampConfidence(e.Confidence)
	e.Analysis = TruncateText(e.Analysis, MaxTextLength)
	e.Evidence = LimitList(e.Evidence, MaxListEntries)
	return &Result{Mode: ModeExpose, Expose: &e, Degraded: degraded}
}

// Confidence returns the confidence of whichever variant is set
func (r *Result) Confidence() int {
	switch r.Mode {
	case ModeVerify:
		if r.Verify != nil {
			return r.Verify.Confidence
		}
	case ModeExpose:
		if r.Expose != nil {
			return r.Expose.Confidence
		}
	}
	return 0
}

// Classification returns the enum value of whichever variant is set
func (r *Result) Classification() string {
	switch r.Mode {
	case ModeVerify:
		if r.Verify != nil {
			return string(r.Verify.Accuracy)
		}
	case ModeExpose:
		if r.Expose != nil {
			return string(r.Expose.Outcome)
		}
	}
	return "unknown"
}

// ClampConfidence bounds c to [0,100]
func ClampConfidence(c int) int {
	if c < 0 {
		return 0
	}
	if c > MaxConfidence {
		return MaxConfidence
	}
	return c
}

// TruncateText cuts s to at most limit runes, replacing the tail with an
// ellipsis when it had to cut
func TruncateText(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	if limit <= len(Ellipsis) {
		return string(runes[:limit])
	}
	return string(runes[:limit-len(Ellipsis)]) + Ellipsis
}

// LimitList keeps the first n entries, preserving order. Never returns nil.
func LimitList(items []string, n int) []string {
	if len(items) > n {
		items = items[:n]
	}
	out := make([]string, len(items))
	copy(out, items)
	return out
}
