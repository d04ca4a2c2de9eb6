package extract

import (
	"strings"
	"testing"
)

func TestNormalize_StripsMarkup(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"mention", "<@123456> vaccines contain microchips", "vaccines contain microchips"},
		{"nickname mention", "<@!42> hello there", "hello there"},
		{"role mention", "<@&99> everyone listen", "everyone listen"},
		{"channel", "see <#555> for details", "see for details"},
		{"custom emoji", "wow <:pepe:12345> really", "wow really"},
		{"animated emoji", "wow <a:dance:12345> really", "wow really"},
		{"code block", "before ```go\nfmt.Println()\n``` after", "before after"},
		{"inline code", "run `rm -rf` now", "run now"},
		{"bold", "this is **very** true", "this is very true"},
		{"italic", "this is *quite* true", "this is quite true"},
		{"underline", "this is __really__ true", "this is really true"},
		{"strikethrough", "this is ~~not~~ true", "this is not true"},
		{"whitespace", "  lots\t\tof \n\n space  ", "lots of space"},
		{"empty", "", ""},
		{"only markup", "<@1> <#2> `x`", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.in)
			if got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"plain text",
		"<@<@1>2> nested mention",
		"***bold italic***",
		"* a * b *",
		"__init__ method",
		"~~~~",
		"``` unterminated",
		"mixed **bold `code` text** here",
		" non-breaking space",
		strings.Repeat("<@1>", 20),
		"_a_ __b__ ___c___",
	}

	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestNormalize_NestedMention(t *testing.T) {
	got := Normalize("<@<@1>2> hi")
	if got != "hi" {
		t.Errorf("expected nested mention to be removed, got %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("expected unchanged, got %q", got)
	}
	if got := Truncate("abcdefghij", 4); got != "abcd..." {
		t.Errorf("expected abcd..., got %q", got)
	}
}
