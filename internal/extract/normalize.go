// Package extract prepares chat text for analysis: it strips platform markup
// and decides whether unsolicited text is worth sending to the analyzer.
package extract

import (
	"regexp"
	"strings"
)

// markupRule rewrites one kind of chat markup. Rules run in slice order.
type markupRule struct {
	pattern *regexp.Regexp
	replace string
}

var markupRules = []markupRule{
	{regexp.MustCompile(`<@[!&]?\d+>`), ""},             // User and role mentions
	{regexp.MustCompile(`<#\d+>`), ""},                  // Channel references
	{regexp.MustCompile(`<a?:\w+:\d+>`), ""},            // Custom emoji
	{regexp.MustCompile("```[\\s\\S]*?```"), ""},        // Fenced code blocks
	{regexp.MustCompile("`[^`]*`"), ""},                 // Inline code
	{regexp.MustCompile(`\*{1,2}([^*]*)\*{1,2}`), "$1"}, // Bold/italic, keep inner text
	{regexp.MustCompile(`_{1,2}([^_]*)_{1,2}`), "$1"},   // Underline, keep inner text
	{regexp.MustCompile(`~~([^~]*)~~`), "$1"},           // Strikethrough, keep inner text
}

// Normalize strips chat markup and collapses whitespace. The result is a
// fixed point: Normalize(Normalize(s)) == Normalize(s).
func Normalize(raw string) string {
	s := normalizeOnce(raw)
	for {
		// Removing one token can expose another ("<@<@1>2>"). Every pass after
		// the first that changes s also shortens it, so this terminates.
		next := normalizeOnce(s)
		if next == s {
			return s
		}
		s = next
	}
}

func normalizeOnce(s string) string {
	for _, rule := range markupRules {
		s = rule.pattern.ReplaceAllString(s, rule.replace)
	}
	return strings.Join(strings.Fields(s), " ")
}

// Truncate shortens s for display, appending "..." when cut
func Truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
