// Package render turns analysis results into text cards, short one-line
// summaries and JSON documents.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ppiankov/claimgate/internal/model"
	"github.com/ppiankov/claimgate/internal/sources"
)

// Tone is the card color family, keyed off the classification
type Tone string

const (
	ToneGreen  Tone = "green"
	ToneRed    Tone = "red"
	ToneOrange Tone = "orange"
	ToneBlue   Tone = "blue"
)

const (
	defaultMaxShown = 3
	quickLength     = 200
)

// Renderer formats results for people. The zero value is not usable; build
// one with New.
type Renderer struct {
	includeFooter bool
	maxShown      int
	provider      string
	classifier    *sources.Classifier
}

// Option configures a Renderer
type Option func(*Renderer)

// WithClassifier tags listed sources and evidence with their authority tier
func WithClassifier(c *sources.Classifier) Option {
	return func(r *Renderer) { r.classifier = c }
}

// New creates a renderer from output settings. provider is named in the
// footer and may be empty.
func New(cfg model.OutputConfig, provider string, opts ...Option) *Renderer {
	maxShown := cfg.MaxListShown
	if maxShown <= 0 {
		maxShown = defaultMaxShown
	}
	r := &Renderer{
		includeFooter: cfg.IncludeFooter,
		maxShown:      maxShown,
		provider:      provider,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ToneOf picks the card tone for a result
func ToneOf(r *model.Result) Tone {
	switch r.Mode {
	case model.ModeVerify:
		if r.Verify == nil {
			return ToneBlue
		}
		switch r.Verify.Accuracy {
		case model.AccuracyTrue, model.AccuracyMostlyTrue:
			return ToneGreen
		case model.AccuracyFalse, model.AccuracyMostlyFalse:
			return ToneRed
		case model.AccuracyMixed:
			return ToneOrange
		}
	case model.ModeExpose:
		if r.Expose == nil {
			return ToneBlue
		}
		switch r.Expose.Outcome {
		case model.OutcomeDebunked:
			return ToneRed
		case model.OutcomeSupported:
			return ToneGreen
		}
	}
	return ToneBlue
}

// Title returns the card heading
func Title(r *model.Result, automatic bool) string {
	var title string
	switch {
	case r.Mode == model.ModeExpose && r.Expose != nil && r.Expose.Outcome == model.OutcomeDebunked:
		title = "🔥 Claim Exposed & Debunked"
	case r.Mode == model.ModeExpose && r.Expose != nil && r.Expose.Outcome == model.OutcomeSupported:
		title = "✅ Claim Validated & Supported"
	case r.Mode == model.ModeExpose:
		title = "🔍 Expose Analysis"
	default:
		title = "🔍 Truthiness Analysis"
	}
	if automatic {
		title += " (Auto)"
	}
	return title
}

// Text renders the full card for claim
func (rd *Renderer) Text(claim string, r *model.Result, automatic bool) string {
	var b strings.Builder

	b.WriteString(Title(r, automatic))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "📝 Claim: %s\n", claim)

	var (
		body, bodyName, listName string
		items                    []string
	)
	switch r.Mode {
	case model.ModeExpose:
		e := exposeOf(r)
		fmt.Fprintf(&b, "🎯 Result: %s\n", titleCase(string(e.Outcome)))
		fmt.Fprintf(&b, "📊 Confidence: %d%%\n", e.Confidence)
		body, bodyName = e.Analysis, "🔍 Analysis"
		listName, items = "📚 Evidence", e.Evidence
	default:
		v := verifyOf(r)
		fmt.Fprintf(&b, "🎯 Assessment: %s\n", v.Label)
		fmt.Fprintf(&b, "📊 Truth Percentage: %d%%\n", v.Confidence)
		body, bodyName = v.Explanation, "💭 Explanation"
		listName, items = "📚 Sources", v.Sources
	}
	if rd.provider != "" {
		fmt.Fprintf(&b, "🤖 AI Model: %s\n", rd.provider)
	}

	if body != "" {
		fmt.Fprintf(&b, "\n%s:\n%s\n", bodyName, model.TruncateText(body, model.MaxTextLength))
	}
	if list := rd.list(items); list != "" {
		fmt.Fprintf(&b, "\n%s:\n%s\n", listName, list)
	}
	if r.Degraded {
		b.WriteString("\n⚠️ The response did not follow the expected format; details were inferred.\n")
	}
	if r.Cached {
		b.WriteString("♻️ Cached result\n")
	}
	if rd.includeFooter {
		b.WriteString("\n")
		b.WriteString(rd.Footer(r.Mode))
		b.WriteString("\n")
	}
	return b.String()
}

// Footer returns the disclaimer line
func (rd *Renderer) Footer(mode model.Mode) string {
	noun := "Results"
	if mode == model.ModeExpose {
		noun = "Analysis"
	}
	if rd.provider == "" {
		return fmt.Sprintf("%s may not be 100%% accurate", noun)
	}
	return fmt.Sprintf("Powered by %s | %s may not be 100%% accurate", rd.provider, noun)
}

func (rd *Renderer) list(items []string) string {
	if len(items) == 0 {
		return ""
	}
	shown := items
	if len(shown) > rd.maxShown {
		shown = shown[:rd.maxShown]
	}
	lines := make([]string, 0, len(shown)+1)
	for _, item := range shown {
		line := "• " + item
		if rd.classifier != nil {
			if tier := rd.classifier.Classify(item); tier != sources.TierUnknown {
				line += " [" + tier.String() + "]"
			}
		}
		lines = append(lines, line)
	}
	if extra := len(items) - len(shown); extra > 0 {
		lines = append(lines, fmt.Sprintf("... and %d more", extra))
	}
	return strings.Join(lines, "\n")
}

// Quick renders classification, confidence and the start of the explanation
// on one line
func Quick(r *model.Result) string {
	var label, body string
	switch r.Mode {
	case model.ModeExpose:
		e := exposeOf(r)
		label, body = titleCase(string(e.Outcome)), e.Analysis
	default:
		v := verifyOf(r)
		label, body = v.Label, v.Explanation
	}
	body = model.TruncateText(strings.Join(strings.Fields(body), " "), quickLength)
	if body == "" {
		return fmt.Sprintf("%s (%d%%)", label, r.Confidence())
	}
	return fmt.Sprintf("%s (%d%%): %s", label, r.Confidence(), body)
}

// Report is the JSON document written for one analyzed claim
type Report struct {
	Claim       string        `json:"claim"`
	Mode        model.Mode    `json:"mode"`
	Provider    string        `json:"provider,omitempty"`
	GeneratedAt time.Time     `json:"generated_at"`
	Result      *model.Result `json:"result"`
}

// NewReport wraps a result with its claim
func NewReport(claim, provider string, r *model.Result, at time.Time) Report {
	return Report{
		Claim:       claim,
		Mode:        r.Mode,
		Provider:    provider,
		GeneratedAt: at.UTC(),
		Result:      r,
	}
}

// WriteJSON writes v as indented JSON followed by a newline
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

func verifyOf(r *model.Result) model.VerifyResult {
	if r.Verify != nil {
		return *r.Verify
	}
	return model.VerifyResult{Accuracy: model.AccuracyUnknown, Label: "Unknown"}
}

func exposeOf(r *model.Result) model.ExposeResult {
	if r.Expose != nil {
		return *r.Expose
	}
	return model.ExposeResult{Outcome: model.OutcomeUnknown}
}

func titleCase(s string) string {
	words := strings.Fields(strings.ReplaceAll(s, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
