package render

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/claimgate/internal/model"
	"github.com/ppiankov/claimgate/internal/sources"
)

func newRenderer(footer bool) *Renderer {
	return New(model.OutputConfig{IncludeFooter: footer, MaxListShown: 3}, "openai")
}

func TestText_Verify(t *testing.T) {
	r := model.NewVerifyResult(model.VerifyResult{
		Label:       "Mostly False",
		Confidence:  20,
		Explanation: "Large studies found no link.",
		Sources:     []string{"CDC", "WHO", "Lancet", "NEJM"},
	}, false)

	out := newRenderer(true).Text("vaccines cause autism", r, false)

	assert.True(t, strings.HasPrefix(out, "🔍 Truthiness Analysis\n"))
	assert.Contains(t, out, "📝 Claim: vaccines cause autism")
	assert.Contains(t, out, "🎯 Assessment: Mostly False")
	assert.Contains(t, out, "📊 Truth Percentage: 20%")
	assert.Contains(t, out, "Large studies found no link.")
	assert.Contains(t, out, "• CDC\n• WHO\n• Lancet\n... and 1 more")
	assert.NotContains(t, out, "NEJM")
	assert.Contains(t, out, "Powered by openai | Results may not be 100% accurate")
	assert.Equal(t, ToneRed, ToneOf(r))
}

func TestText_ExposeAutoNoFooter(t *testing.T) {
	r := model.NewExposeResult(model.ExposeResult{
		Outcome:    model.OutcomeDebunked,
		Confidence: 90,
		Analysis:   "No evidence supports this.",
		Evidence:   []string{"Study A"},
	}, true)

	out := newRenderer(false).Text("the earth is flat", r, true)

	assert.True(t, strings.HasPrefix(out, "🔥 Claim Exposed & Debunked (Auto)\n"))
	assert.Contains(t, out, "🎯 Result: Debunked")
	assert.Contains(t, out, "📊 Confidence: 90%")
	assert.Contains(t, out, "• Study A")
	assert.NotContains(t, out, "more")
	assert.Contains(t, out, "did not follow the expected format")
	assert.NotContains(t, out, "Powered by")
}

func TestText_NoListOmitsSection(t *testing.T) {
	r := model.NewVerifyResult(model.VerifyResult{Label: "True", Confidence: 95}, false)
	out := newRenderer(false).Text("water is wet enough", r, false)
	assert.NotContains(t, out, "Sources")
	assert.NotContains(t, out, "Explanation")
}

func TestTitle(t *testing.T) {
	tests := []struct {
		name string
		r    *model.Result
		want string
	}{
		{"verify", model.NewVerifyResult(model.VerifyResult{}, false), "🔍 Truthiness Analysis"},
		{"debunked", model.NewExposeResult(model.ExposeResult{Outcome: model.OutcomeDebunked}, false), "🔥 Claim Exposed & Debunked"},
		{"supported", model.NewExposeResult(model.ExposeResult{Outcome: model.OutcomeSupported}, false), "✅ Claim Validated & Supported"},
		{"unknown", model.NewExposeResult(model.ExposeResult{}, false), "🔍 Expose Analysis"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Title(tt.r, false))
		})
	}
}

func TestToneOf(t *testing.T) {
	tests := []struct {
		label string
		want  Tone
	}{
		{"True", ToneGreen},
		{"Mostly True", ToneGreen},
		{"False", ToneRed},
		{"Partially True", ToneOrange},
		{"Insufficient Evidence", ToneBlue},
		{"", ToneBlue},
	}
	for _, tt := range tests {
		r := model.NewVerifyResult(model.VerifyResult{Label: tt.label}, false)
		assert.Equal(t, tt.want, ToneOf(r), tt.label)
	}

	supported := model.NewExposeResult(model.ExposeResult{Outcome: model.OutcomeSupported}, false)
	assert.Equal(t, ToneGreen, ToneOf(supported))
}

func TestQuick(t *testing.T) {
	long := strings.Repeat("word ", 100)
	r := model.NewVerifyResult(model.VerifyResult{Label: "Mixed", Confidence: 55, Explanation: long}, false)

	out := Quick(r)
	assert.True(t, strings.HasPrefix(out, "Mixed (55%): word word"))
	assert.True(t, strings.HasSuffix(out, "..."))
	assert.LessOrEqual(t, len([]rune(strings.TrimPrefix(out, "Mixed (55%): "))), 200)

	bare := model.NewExposeResult(model.ExposeResult{Outcome: model.OutcomeSupported, Confidence: 70}, false)
	assert.Equal(t, "Supported (70%)", Quick(bare))
}

func TestWriteJSON_Report(t *testing.T) {
	r := model.NewVerifyResult(model.VerifyResult{Label: "True", Confidence: 90, Sources: []string{"a <b>"}}, false)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("x", 3600))

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, NewReport("claim text here", "openai", r, at)))
	assert.Contains(t, buf.String(), "a <b>")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "claim text here", decoded["claim"])
	assert.Equal(t, "verify", decoded["mode"])
	assert.Equal(t, "2024-05-01T11:00:00Z", decoded["generated_at"])

	result := decoded["result"].(map[string]any)
	verify := result["verify"].(map[string]any)
	assert.Equal(t, "true", verify["accuracy"])
	assert.EqualValues(t, 90, verify["confidence"])
}

func TestFooter_NoProvider(t *testing.T) {
	rd := New(model.OutputConfig{}, "")
	assert.Equal(t, "Analysis may not be 100% accurate", rd.Footer(model.ModeExpose))
	assert.Equal(t, defaultMaxShown, rd.maxShown)
}

func TestText_AuthorityTags(t *testing.T) {
	r := model.NewVerifyResult(model.VerifyResult{
		Label:   "False",
		Sources: []string{"CDC", "https://www.reuters.com/fact-check", "My uncle"},
	}, false)

	rd := New(model.OutputConfig{MaxListShown: 3}, "", WithClassifier(sources.NewClassifier(nil)))
	out := rd.Text("the claim under test", r, false)

	assert.Contains(t, out, "• CDC [primary]\n")
	assert.Contains(t, out, "• https://www.reuters.com/fact-check [secondary]\n")
	assert.Contains(t, out, "• My uncle\n")
}
