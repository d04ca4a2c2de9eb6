package model

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Config is the process-wide configuration. It is loaded once at startup
// and treated as read-only afterwards.
type Config struct {
	RateLimit   RateLimitConfig   `yaml:"rate_limit" mapstructure:"rate_limit"`
	Claims      ClaimsConfig      `yaml:"claims" mapstructure:"claims"`
	Trigger     TriggerConfig     `yaml:"trigger" mapstructure:"trigger"`
	LLM         LLMConfig         `yaml:"llm" mapstructure:"llm"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Telegram    TelegramConfig    `yaml:"telegram" mapstructure:"telegram"`
	Output      OutputConfig      `yaml:"output" mapstructure:"output"`
	Sources     SourcesConfig     `yaml:"sources" mapstructure:"sources"`
}

// RateLimitConfig holds the per-identifier and global admission caps
type RateLimitConfig struct {
	MaxRequests     int           `yaml:"max_requests" mapstructure:"max_requests"`
	Window          time.Duration `yaml:"window" mapstructure:"window"`
	GlobalPerMinute int           `yaml:"global_per_minute" mapstructure:"global_per_minute"`
	SweepInterval   time.Duration `yaml:"sweep_interval" mapstructure:"sweep_interval"`
}

// ClaimsConfig bounds the normalized claim length
type ClaimsConfig struct {
	MinLength int `yaml:"min_length" mapstructure:"min_length"`
	MaxLength int `yaml:"max_length" mapstructure:"max_length"`
}

// TriggerConfig drives unsolicited (automatic) analysis
type TriggerConfig struct {
	AutoAnalyze bool     `yaml:"auto_analyze" mapstructure:"auto_analyze"`
	Keywords    []string `yaml:"keywords" mapstructure:"keywords"`
	Patterns    []string `yaml:"patterns" mapstructure:"patterns"`
}

// LLMConfig selects and configures the external analysis service
type LLMConfig struct {
	Provider    string        `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama, gemini
	Model       string        `yaml:"model" mapstructure:"model"`
	APIKey      string        `yaml:"-" mapstructure:"api_key"`
	BaseURL     string        `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxTokens   int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float32       `yaml:"temperature" mapstructure:"temperature"`
	HTTPProxy   string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy  string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
}

// CacheConfig controls reuse of parsed results for repeated claims
type CacheConfig struct {
	Enabled         bool          `yaml:"enabled" mapstructure:"enabled"`
	TTL             time.Duration `yaml:"ttl" mapstructure:"ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" mapstructure:"cleanup_interval"`
	Dir             string        `yaml:"dir,omitempty" mapstructure:"dir"` // Empty = memory only
}

// ConcurrencyConfig sizes the batch worker pool
type ConcurrencyConfig struct {
	Workers    int     `yaml:"workers" mapstructure:"workers"`
	BatchRPS   float64 `yaml:"batch_rps" mapstructure:"batch_rps"`
	BatchBurst int     `yaml:"batch_burst" mapstructure:"batch_burst"`
}

// ServerConfig configures the HTTP status/analyze API
type ServerConfig struct {
	Addr         string        `yaml:"addr" mapstructure:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	AdminToken   string        `yaml:"-" mapstructure:"admin_token"` // Required for DELETE /v1/limits/{id} when set
}

// TelegramConfig configures the chat connector (disabled when Token is empty)
type TelegramConfig struct {
	Token         string  `yaml:"-" mapstructure:"token"`
	AdminChatIDs  []int64 `yaml:"admin_chat_ids" mapstructure:"admin_chat_ids"`
	RespondToBots bool    `yaml:"respond_to_bots" mapstructure:"respond_to_bots"`
}

// OutputConfig controls CLI rendering
type OutputConfig struct {
	Verbose       bool `yaml:"verbose" mapstructure:"verbose"`
	IncludeFooter bool `yaml:"include_footer" mapstructure:"include_footer"`
	MaxListShown  int  `yaml:"max_list_shown" mapstructure:"max_list_shown"`
}

// SourcesConfig drives authority tagging of the sources a result cites
type SourcesConfig struct {
	Annotate         bool              `yaml:"annotate" mapstructure:"annotate"`
	PrimaryDomains   []string          `yaml:"primary_domains" mapstructure:"primary_domains"`
	SecondaryDomains []string          `yaml:"secondary_domains" mapstructure:"secondary_domains"`
	DomainMap        map[string]string `yaml:"domain_map,omitempty" mapstructure:"domain_map"` // host -> primary|secondary|tertiary
}

// DefaultPrimaryDomains are official, scientific and journal hosts
var DefaultPrimaryDomains = []string{
	"who.int", "cdc.gov", "nih.gov", "fda.gov", "nasa.gov", "noaa.gov",
	"ipcc.ch", "un.org", "europa.eu", "doi.org", "pubmed.ncbi.nlm.nih.gov",
	"thelancet.com", "nejm.org", "nature.com", "science.org", "bmj.com",
	"cochranelibrary.com", "jamanetwork.com",
}

// DefaultSecondaryDomains are reference works, wire services and fact-checkers
var DefaultSecondaryDomains = []string{
	"wikipedia.org", "britannica.com", "reuters.com", "apnews.com",
	"bbc.com", "bbc.co.uk", "snopes.com", "politifact.com", "factcheck.org",
	"fullfact.org", "nytimes.com", "washingtonpost.com", "theguardian.com",
	"scientificamerican.com",
}

// DefaultTriggerKeywords are substrings that mark a message as worth
// analyzing without being asked
var DefaultTriggerKeywords = []string{
	// Health
	"vaccine", "vaccines", "vaccination", "covid", "coronavirus",
	"hydroxychloroquine", "ivermectin", "miracle cure", "natural immunity",
	"microchip", "magnetic", "5g causes", "essential oils cure",

	// Political
	"election fraud", "stolen election", "rigged election", "voter fraud",
	"deep state", "false flag", "crisis actor", "fake news media",

	// Science
	"climate change hoax", "global warming fake", "flat earth",
	"chemtrails", "moon landing fake", "evolution hoax",

	// Rhetorical markers
	"studies show", "research proves", "scientists say",
	"doctors hate", "they don't want you to know",
	"hidden truth", "cover up", "government conspiracy",

	// Financial scams
	"get rich quick", "guaranteed profit", "investment opportunity",
	"crypto scam", "ponzi scheme",

	// Health products
	"cure cancer", "detox", "cleanse", "alkaline water",
	"anti-aging", "weight loss pill", "burn fat fast",
}

// DefaultTriggerPatterns match stylistic markers of misinformation-style
// claims. They are evaluated against lower-cased text.
var DefaultTriggerPatterns = []string{
	`\b(studies? show|research proves|scientists say)\b`,
	`\b(breaking|urgent|exclusive)\b.*\b(news|report)\b`,
	`\b(they don't want you to know|hidden truth|cover[- ]?up)\b`,
	`\b(miracle cure|secret remedy|doctors hate)\b`,
	`\b(\d+% of (people|doctors|scientists))\b`,
}

// DefaultConfig returns the configuration used when nothing is overridden
func DefaultConfig() *Config {
	return &Config{
		RateLimit: RateLimitConfig{
			MaxRequests:     5,
			Window:          5 * time.Minute,
			GlobalPerMinute: 30,
			SweepInterval:   5 * time.Minute,
		},
		Claims: ClaimsConfig{
			MinLength: 10,
			MaxLength: 1000,
		},
		Trigger: TriggerConfig{
			AutoAnalyze: true,
			Keywords:    append([]string(nil), DefaultTriggerKeywords...),
			Patterns:    append([]string(nil), DefaultTriggerPatterns...),
		},
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			Timeout:     30 * time.Second,
			MaxTokens:   1000,
			Temperature: 0.1,
		},
		Cache: CacheConfig{
			Enabled:         true,
			TTL:             time.Hour,
			CleanupInterval: 10 * time.Minute,
		},
		Concurrency: ConcurrencyConfig{
			Workers:    5,
			BatchRPS:   1,
			BatchBurst: 2,
		},
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 90 * time.Second,
		},
		Output: OutputConfig{
			IncludeFooter: true,
			MaxListShown:  3,
		},
		Sources: SourcesConfig{
			Annotate:         true,
			PrimaryDomains:   append([]string(nil), DefaultPrimaryDomains...),
			SecondaryDomains: append([]string(nil), DefaultSecondaryDomains...),
		},
	}
}

// Validate reports every configuration error at once. Limits of zero are
// rejected here so the limiters never have to handle them.
func (c *Config) Validate() error {
	var errs []error

	if c.RateLimit.MaxRequests <= 0 {
		errs = append(errs, fmt.Errorf("rate_limit.max_requests must be greater than 0"))
	}
	if c.RateLimit.Window <= 0 {
		errs = append(errs, fmt.Errorf("rate_limit.window must be greater than 0"))
	}
	if c.RateLimit.GlobalPerMinute <= 0 {
		errs = append(errs, fmt.Errorf("rate_limit.global_per_minute must be greater than 0"))
	}
	if c.RateLimit.SweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("rate_limit.sweep_interval must be greater than 0"))
	}
	if c.Claims.MinLength <= 0 {
		errs = append(errs, fmt.Errorf("claims.min_length must be greater than 0"))
	}
	if c.Claims.MaxLength < c.Claims.MinLength {
		errs = append(errs, fmt.Errorf("claims.max_length (%d) must be >= claims.min_length (%d)", c.Claims.MaxLength, c.Claims.MinLength))
	}
	if c.Trigger.AutoAnalyze && len(c.Trigger.Patterns) == 0 {
		errs = append(errs, fmt.Errorf("trigger.patterns must not be empty when trigger.auto_analyze is true"))
	}
	for _, p := range c.Trigger.Patterns {
		if _, err := regexp.Compile(p); err != nil {
			errs = append(errs, fmt.Errorf("trigger.patterns: %q: %w", p, err))
		}
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 1 {
		errs = append(errs, fmt.Errorf("llm.temperature must be between 0 and 1"))
	}
	if c.LLM.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("llm.max_tokens must be greater than 0"))
	}
	if c.Concurrency.Workers <= 0 {
		errs = append(errs, fmt.Errorf("concurrency.workers must be greater than 0"))
	}
	for host, tier := range c.Sources.DomainMap {
		switch strings.ToLower(tier) {
		case "primary", "secondary", "tertiary":
		default:
			errs = append(errs, fmt.Errorf("sources.domain_map[%s]: unknown tier %q", host, tier))
		}
	}

	return errors.Join(errs...)
}
