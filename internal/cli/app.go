package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/claimgate/internal/cache"
	"github.com/ppiankov/claimgate/internal/llm"
	"github.com/ppiankov/claimgate/internal/metrics"
	"github.com/ppiankov/claimgate/internal/model"
	"github.com/ppiankov/claimgate/internal/pipeline"
	"github.com/ppiankov/claimgate/internal/render"
	"github.com/ppiankov/claimgate/internal/sources"
)

// Keys missing from the marshaled defaults (secrets and empty omitempty
// fields). They are bound explicitly so env overrides still reach them.
var envOnlyKeys = []string{
	"llm.api_key", "llm.base_url", "llm.http_proxy", "llm.https_proxy",
	"cache.dir", "telegram.token", "server.admin_token",
}

func setupLogger(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// registerDefaults teaches viper every key so AutomaticEnv can override
// keys that appear in no config file
func registerDefaults(v *viper.Viper) {
	data, err := yaml.Marshal(model.DefaultConfig())
	if err != nil {
		return
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return
	}
	setDefaults(v, "", tree)

	for _, key := range envOnlyKeys {
		_ = v.BindEnv(key)
	}
}

func setDefaults(v *viper.Viper, prefix string, tree map[string]any) {
	for k, val := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := val.(map[string]any); ok {
			setDefaults(v, key, sub)
			continue
		}
		v.SetDefault(key, val)
	}
}

// loadConfig merges defaults, config file and environment, resolves the
// provider's API key and validates the result
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	resolveProviderEnv(&cfg.LLM)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}
	return cfg, nil
}

// resolveProviderEnv falls back to the provider's conventional variables
// (OPENAI_API_KEY, ANTHROPIC_API_KEY, GEMINI_API_KEY, OLLAMA_BASE_URL)
func resolveProviderEnv(c *model.LLMConfig) {
	if c.APIKey == "" {
		if env := llm.APIKeyEnv(c.Provider); env != "" {
			c.APIKey = os.Getenv(env)
		}
	}
	if strings.EqualFold(c.Provider, "ollama") && c.BaseURL == "" {
		c.BaseURL = os.Getenv("OLLAMA_BASE_URL")
	}
}

// app bundles what the commands share
type app struct {
	cfg      *model.Config
	pipeline *pipeline.Pipeline
	registry *prometheus.Registry
	logger   *slog.Logger
}

func newApp(cfg *model.Config) (*app, error) {
	logger := slog.Default()

	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM))
	if err != nil {
		if env := llm.APIKeyEnv(cfg.LLM.Provider); env != "" && cfg.LLM.APIKey == "" {
			return nil, fmt.Errorf("%w (set %s or CLAIMGATE_LLM_API_KEY)", err, env)
		}
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(metrics.New(reg)),
	}
	if store := cache.New(cfg.Cache); store != nil {
		opts = append(opts, pipeline.WithCache(store, cfg.Cache.TTL))
	}

	p, err := pipeline.New(cfg, provider, opts...)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, pipeline: p, registry: reg, logger: logger}, nil
}

func (a *app) renderer() *render.Renderer {
	var opts []render.Option
	if a.cfg.Sources.Annotate {
		opts = append(opts, render.WithClassifier(sources.NewClassifier(&a.cfg.Sources)))
	}
	return render.New(a.cfg.Output, a.pipeline.Provider(), opts...)
}
