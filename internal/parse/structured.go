package parse

import (
	"encoding/json"
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/ppiankov/claimgate/internal/model"
)

var errNaNConfidence = errors.New("confidence is not a number")

var fencedJSON = regexp.MustCompile("(?s)^```(?:json|JSON)?\\s*(\\{.*\\})\\s*```$")

// confidenceValue accepts 80, 80.5, "80" and "80%"
type confidenceValue int

func (c *confidenceValue) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		return c.set(n)
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if s == "" {
		*c = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	return c.set(f)
}

// set saturates f to [0,100] before the int conversion, which is
// undefined for values outside the int range
func (c *confidenceValue) set(f float64) error {
	switch {
	case math.IsNaN(f):
		return errNaNConfidence
	case f <= 0:
		*c = 0
	case f >= model.MaxConfidence:
		*c = model.MaxConfidence
	default:
		*c = confidenceValue(int(f))
	}
	return nil
}

type structuredReply struct {
	// verify
	Accuracy    string   `json:"accuracy"`
	Explanation string   `json:"explanation"`
	Sources     []string `json:"sources"`

	// expose
	ExposeType string   `json:"expose_type"`
	Outcome    string   `json:"outcome"`
	Analysis   string   `json:"analysis"`
	Evidence   []string `json:"evidence"`

	Confidence confidenceValue `json:"confidence"`
}

// jsonPayload returns the object text when raw is a single JSON object,
// bare or inside one code fence
func jsonPayload(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "{") {
		return s, true
	}
	if m := fencedJSON.FindStringSubmatch(s); m != nil {
		return m[1], true
	}
	return "", false
}

func parseStructured(mode model.Mode, raw string) (*model.Result, bool) {
	payload, ok := jsonPayload(raw)
	if !ok {
		return nil, false
	}

	var reply structuredReply
	if err := json.Unmarshal([]byte(payload), &reply); err != nil {
		return nil, false
	}

	if mode == model.ModeExpose {
		label := reply.ExposeType
		if label == "" {
			label = reply.Outcome
		}
		if strings.TrimSpace(label) == "" {
			return nil, false
		}
		return model.NewExposeResult(model.ExposeResult{
			Outcome:    model.ParseOutcome(label),
			Confidence: int(reply.Confidence),
			Analysis:   collapseSpace(reply.Analysis),
			Evidence:   cleanList(reply.Evidence),
		}, false), true
	}

	if strings.TrimSpace(reply.Accuracy) == "" {
		return nil, false
	}
	return model.NewVerifyResult(model.VerifyResult{
		Label:       strings.TrimSpace(reply.Accuracy),
		Confidence:  int(reply.Confidence),
		Explanation: collapseSpace(reply.Explanation),
		Sources:     cleanList(reply.Sources),
	}, false), true
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
