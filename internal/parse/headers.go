package parse

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ppiankov/claimgate/internal/model"
)

var (
	leadingNumber = regexp.MustCompile(`-?\d+`)
	listGlyphs    = regexp.MustCompile(`^(?:[-•*+>]|\d+[.)]|\s)+`)
)

// fieldSet names the headers one mode reads. Only these and CONFIDENCE
// end a section, so another mode's header inside a block stays text.
type fieldSet struct {
	classification string
	text           string
	list           string
	headers        *regexp.Regexp
}

var (
	verifyFields = newFieldSet("ACCURACY", "EXPLANATION", "SOURCES")
	exposeFields = newFieldSet("EXPOSE_TYPE", "ANALYSIS", "EVIDENCE")
)

// newFieldSet builds the header matcher for one mode. Headers sit at the
// start of a line and may carry markdown decoration such as
// "**ACCURACY:**" or "## EVIDENCE:"; underscores also match a space.
func newFieldSet(classification, text, list string) fieldSet {
	names := []string{classification, "CONFIDENCE", text, list}
	alts := make([]string, len(names))
	for i, name := range names {
		alts[i] = strings.ReplaceAll(name, "_", "[_ ]")
	}
	pattern := `(?im)^[ \t>#*_-]*(` + strings.Join(alts, "|") + `)[ \t*_]*:[ \t*_]*`
	return fieldSet{
		classification: classification,
		text:           text,
		list:           list,
		headers:        regexp.MustCompile(pattern),
	}
}

// splitSections maps each header of fields to the text between it and
// the next one. The first occurrence of a header wins.
func splitSections(fields fieldSet, raw string) map[string]string {
	locs := fields.headers.FindAllStringSubmatchIndex(raw, -1)
	sections := make(map[string]string, len(locs))

	for i, loc := range locs {
		name := strings.ToUpper(strings.ReplaceAll(raw[loc[2]:loc[3]], " ", "_"))
		end := len(raw)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		if _, seen := sections[name]; !seen {
			sections[name] = strings.TrimSpace(raw[loc[1]:end])
		}
	}
	return sections
}

func parseHeaders(mode model.Mode, raw string) (*model.Result, bool) {
	fields := verifyFields
	if mode == model.ModeExpose {
		fields = exposeFields
	}

	sections := splitSections(fields, raw)
	label := firstLine(sections[fields.classification])
	if label == "" {
		return nil, false
	}

	confidence := 0
	if c, ok := parseConfidence(sections["CONFIDENCE"]); ok {
		confidence = c
	}
	text := collapseSpace(sections[fields.text])
	list := splitList(sections[fields.list])

	if mode == model.ModeExpose {
		return model.NewExposeResult(model.ExposeResult{
			Outcome:    model.ParseOutcome(label),
			Confidence: confidence,
			Analysis:   text,
			Evidence:   list,
		}, false), true
	}
	return model.NewVerifyResult(model.VerifyResult{
		Label:       label,
		Confidence:  confidence,
		Explanation: text,
		Sources:     list,
	}, false), true
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), "*_"))
}

// parseConfidence reads the first integer in s, clamped to [0,100]
func parseConfidence(s string) (int, bool) {
	m := leadingNumber.FindString(s)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		// Too many digits for an int; only the sign matters after clamping.
		if strings.HasPrefix(m, "-") {
			return 0, true
		}
		return model.MaxConfidence, true
	}
	return model.ClampConfidence(n), true
}

// splitList turns a SOURCES/EVIDENCE block into entries. Bullets and
// numbering are stripped; blank lines and lines starting with "important"
// are dropped.
func splitList(block string) []string {
	var items []string
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(strings.ToLower(line), "important") {
			continue
		}
		line = strings.TrimSpace(listGlyphs.ReplaceAllString(line, ""))
		if line == "" {
			continue
		}
		items = append(items, line)
		if len(items) == model.MaxListEntries {
			break
		}
	}
	return items
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
