package sources

import (
	"testing"

	"github.com/ppiankov/claimgate/internal/model"
)

func TestClassifier_Links(t *testing.T) {
	classifier := NewClassifier(nil) // Use defaults

	tests := []struct {
		source   string
		expected Tier
		desc     string
	}{
		{"https://www.who.int/news-room/fact-sheets", TierPrimary, "Primary domain with www"},
		{"CDC (https://www.cdc.gov/vaccinesafety/)", TierPrimary, "Link inside a citation"},
		{"https://pubmed.ncbi.nlm.nih.gov/12345/", TierPrimary, "Subdomain of a primary domain"},
		{"https://en.wikipedia.org/wiki/MMR_vaccine", TierSecondary, "Secondary domain with language subdomain"},
		{"Reuters Fact Check: https://www.reuters.com/fact-check/x", TierSecondary, "Link beats name"},
		{"https://someblog.example.com/post", TierTertiary, "Unknown host"},
		{"https://whitehouse.gov/statements", TierPrimary, ".gov TLD should be primary"},
		{"https://mit.edu/research", TierPrimary, ".edu TLD should be primary"},
		{"https://oxford.ac.uk/research", TierPrimary, ".ac.uk TLD should be primary (UK academic)"},
		{"https://localhost:8080/page", TierTertiary, "Port is ignored"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			result := classifier.Classify(tt.source)
			if result != tt.expected {
				t.Errorf("Expected %v for %q, got %v", tt.expected, tt.source, result)
			}
		})
	}
}

func TestClassifier_BareDomains(t *testing.T) {
	classifier := NewClassifier(nil)

	tests := []struct {
		source   string
		expected Tier
	}{
		{"nejm.org", TierPrimary},
		{"See snopes.com for details", TierSecondary},
		{"factcheck.org", TierSecondary},
		{"randomsite.net/article", TierTertiary},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			if got := classifier.Classify(tt.source); got != tt.expected {
				t.Errorf("Expected %v for %q, got %v", tt.expected, tt.source, got)
			}
		})
	}
}

func TestClassifier_Names(t *testing.T) {
	classifier := NewClassifier(nil)

	tests := []struct {
		source   string
		expected Tier
		desc     string
	}{
		{"World Health Organization", TierPrimary, "Institution name"},
		{"CDC vaccine safety data", TierPrimary, "Acronym"},
		{"A 2019 meta-analysis of 650,000 children", TierPrimary, "Study type"},
		{"Journal of Pediatrics", TierPrimary, "Journal"},
		{"Associated Press", TierSecondary, "Wire service"},
		{"AP report", TierSecondary, "Wire service acronym"},
		{"Encyclopaedia Britannica", TierSecondary, "Reference work"},
		{"people who tried it", TierUnknown, "Lowercase acronym is prose"},
		{"Personal anecdotes", TierUnknown, "Nothing recognizable"},
		{"", TierUnknown, "Empty"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			if got := classifier.Classify(tt.source); got != tt.expected {
				t.Errorf("Expected %v for %q, got %v", tt.expected, tt.source, got)
			}
		})
	}
}

func TestClassifier_DomainMap(t *testing.T) {
	config := &model.SourcesConfig{
		PrimaryDomains: []string{"legislation.gov.uk"},
		DomainMap: map[string]string{
			"nytimes.com": "secondary",
			"myblog.com":  "tertiary",
			"cdc.gov":     "tertiary",
		},
	}
	classifier := NewClassifier(config)

	tests := []struct {
		host     string
		expected Tier
	}{
		{"nytimes.com", TierSecondary},
		{"www.myblog.com", TierTertiary},
		{"cdc.gov", TierTertiary},
		{"www.legislation.gov.uk", TierPrimary},
		{"reuters.com", TierTertiary},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			if got := classifier.ClassifyHost(tt.host); got != tt.expected {
				t.Errorf("Expected %v for %s, got %v", tt.expected, tt.host, got)
			}
		})
	}
}

func TestParseTierString(t *testing.T) {
	tests := []struct {
		input    string
		expected Tier
	}{
		{"primary", TierPrimary},
		{"PRIMARY", TierPrimary},
		{"1", TierPrimary},
		{"secondary", TierSecondary},
		{"2", TierSecondary},
		{"tertiary", TierTertiary},
		{"3", TierTertiary},
		{"invalid", TierTertiary},
		{"", TierTertiary},
	}

	for _, tt := range tests {
		if got := parseTierString(tt.input); got != tt.expected {
			t.Errorf("parseTierString(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestTier_String(t *testing.T) {
	if TierPrimary.String() != "primary" || TierUnknown.String() != "unknown" {
		t.Errorf("unexpected tier names: %s, %s", TierPrimary, TierUnknown)
	}
}
