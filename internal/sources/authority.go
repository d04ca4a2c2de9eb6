// Package sources classifies the sources an analysis cites by authority.
package sources

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/ppiankov/claimgate/internal/model"
)

// Tier is the authority of a cited source
type Tier int

const (
	TierUnknown   Tier = iota // Nothing recognizable to classify
	TierPrimary               // Official bodies, journals, academic hosts
	TierSecondary             // Reference works, wire services, fact-checkers
	TierTertiary              // Any other web host
)

func (t Tier) String() string {
	switch t {
	case TierPrimary:
		return "primary"
	case TierSecondary:
		return "secondary"
	case TierTertiary:
		return "tertiary"
	default:
		return "unknown"
	}
}

var (
	urlPattern    = regexp.MustCompile(`(?i)https?://[^\s)\]>"']+`)
	domainPattern = regexp.MustCompile(`(?i)(?:^|[\s(\[])((?:[a-z0-9-]+\.)+[a-z]{2,})(?:/\S*)?(?:$|[\s)\],;])`)
)

// Named institutions for sources cited without a link. Acronyms match
// case-sensitively so "who" in prose is not the World Health Organization.
var (
	primaryNames = []string{
		"world health organization", "centers for disease control",
		"national institutes of health", "food and drug administration",
		"intergovernmental panel on climate change", "new england journal of medicine",
		"the lancet", "cochrane", "pubmed", "peer-reviewed", "meta-analysis",
		"systematic review", "journal of",
	}
	primaryAcronyms = regexp.MustCompile(`\b(?:WHO|CDC|NIH|FDA|NASA|NOAA|IPCC|NEJM|BMJ|JAMA|EMA|ECDC)\b`)

	secondaryNames = []string{
		"wikipedia", "britannica", "reuters", "associated press", "bbc",
		"snopes", "politifact", "factcheck.org", "full fact", "new york times",
		"washington post", "the guardian", "scientific american",
	}
	secondaryAcronyms = regexp.MustCompile(`\bAP\b`)
)

// Classifier assigns authority tiers to free-text source citations
type Classifier struct {
	primaryMap   map[string]bool
	secondaryMap map[string]bool
	domainMap    map[string]Tier
}

// NewClassifier creates a classifier from configuration. A nil config uses
// the built-in domain lists.
func NewClassifier(config *model.SourcesConfig) *Classifier {
	if config == nil {
		config = &model.DefaultConfig().Sources
	}

	c := &Classifier{
		primaryMap:   make(map[string]bool, len(config.PrimaryDomains)),
		secondaryMap: make(map[string]bool, len(config.SecondaryDomains)),
		domainMap:    make(map[string]Tier, len(config.DomainMap)),
	}
	for _, d := range config.PrimaryDomains {
		c.primaryMap[strings.ToLower(d)] = true
	}
	for _, d := range config.SecondaryDomains {
		c.secondaryMap[strings.ToLower(d)] = true
	}
	for host, tier := range config.DomainMap {
		c.domainMap[strings.ToLower(host)] = parseTierString(tier)
	}
	return c
}

// Classify tiers a source string such as "CDC", "Reuters fact check" or
// "https://www.who.int/news". A link or bare domain wins over a name.
func (c *Classifier) Classify(source string) Tier {
	if host := hostOf(source); host != "" {
		return c.ClassifyHost(host)
	}

	if primaryAcronyms.MatchString(source) {
		return TierPrimary
	}
	lower := strings.ToLower(source)
	for _, name := range primaryNames {
		if strings.Contains(lower, name) {
			return TierPrimary
		}
	}
	if secondaryAcronyms.MatchString(source) {
		return TierSecondary
	}
	for _, name := range secondaryNames {
		if strings.Contains(lower, name) {
			return TierSecondary
		}
	}
	return TierUnknown
}

// ClassifyHost tiers a bare host name
func (c *Classifier) ClassifyHost(host string) Tier {
	host = strings.TrimPrefix(strings.ToLower(host), "www.")

	if tier, ok := c.domainMap[host]; ok {
		return tier
	}
	if matchesDomain(host, c.primaryMap) {
		return TierPrimary
	}
	if matchesDomain(host, c.secondaryMap) {
		return TierSecondary
	}

	// Government and academic TLDs
	for _, suffix := range []string{".gov", ".edu", ".mil", ".int", ".ac.uk", ".gov.uk"} {
		if strings.HasSuffix(host, suffix) {
			return TierPrimary
		}
	}
	return TierTertiary
}

// matchesDomain reports whether host is one of domains or a subdomain of one
func matchesDomain(host string, domains map[string]bool) bool {
	if domains[host] {
		return true
	}
	for d := range domains {
		if strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// hostOf extracts the host of the first link or bare domain in s
func hostOf(s string) string {
	if m := urlPattern.FindString(s); m != "" {
		u, err := url.Parse(m)
		if err != nil {
			return ""
		}
		return u.Hostname()
	}
	if m := domainPattern.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return ""
}

func parseTierString(tier string) Tier {
	switch strings.ToLower(tier) {
	case "primary", "1":
		return TierPrimary
	case "secondary", "2":
		return TierSecondary
	case "tertiary", "3":
		return TierTertiary
	default:
		return TierTertiary
	}
}
