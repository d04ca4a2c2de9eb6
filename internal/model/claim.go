package model

import (
	"fmt"
	"strings"
)

// Mode selects the analysis template and the result shape
type Mode string

const (
	ModeVerify Mode = "verify" // Accuracy assessment (ACCURACY/CONFIDENCE/EXPLANATION/SOURCES)
	ModeExpose Mode = "expose" // Debunk-first analysis (EXPOSE_TYPE/CONFIDENCE/ANALYSIS/EVIDENCE)
)

// ParseMode converts user input into a Mode
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "verify", "truthiness", "truth", "check":
		return ModeVerify, nil
	case "expose", "debunk":
		return ModeExpose, nil
	default:
		return "", fmt.Errorf("unknown analysis mode: %q (supported: verify, expose)", s)
	}
}

// Claim is a unit of text submitted for analysis. It lives only for the
// duration of one pipeline invocation.
type Claim struct {
	Raw        string `json:"raw"`
	Normalized string `json:"normalized"`
	Mode       Mode   `json:"mode"`
}
