package llm

import (
	"errors"
	"strings"
	"testing"

	"github.com/ppiankov/claimgate/internal/model"
)

func TestPromptBuilder_Build(t *testing.T) {
	b := NewPromptBuilder(10, 1000)
	claim := "The earth is flat and nobody disputes it"

	verify, err := b.Build(model.ModeVerify, claim)
	if err != nil {
		t.Fatalf("Build verify: %v", err)
	}
	for _, want := range []string{`"` + claim + `"`, "ACCURACY:", "CONFIDENCE:", "EXPLANATION:", "SOURCES:", "[0-100]%"} {
		if !strings.Contains(verify, want) {
			t.Errorf("verify prompt missing %q", want)
		}
	}

	expose, err := b.Build(model.ModeExpose, claim)
	if err != nil {
		t.Fatalf("Build expose: %v", err)
	}
	for _, want := range []string{`"` + claim + `"`, "EXPOSE_TYPE:", "ANALYSIS:", "EVIDENCE:"} {
		if !strings.Contains(expose, want) {
			t.Errorf("expose prompt missing %q", want)
		}
	}
}

func TestPromptBuilder_LengthBounds(t *testing.T) {
	b := NewPromptBuilder(10, 20)

	tests := []struct {
		name  string
		claim string
		want  error
	}{
		{"too short", "short", model.ErrClaimTooShort},
		{"min length", "0123456789", nil},
		{"max length", "01234567890123456789", nil},
		{"too long", "012345678901234567890", model.ErrClaimTooLong},
		// runes, not bytes
		{"multibyte at max", strings.Repeat("é", 20), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.Build(model.ModeVerify, tt.claim)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestPromptBuilder_UnknownMode(t *testing.T) {
	b := NewPromptBuilder(1, 100)
	if _, err := b.Build(model.Mode("summarize"), "a claim here"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}
