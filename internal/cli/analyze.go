package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/claimgate/internal/model"
	"github.com/ppiankov/claimgate/internal/pipeline"
	"github.com/ppiankov/claimgate/internal/render"
)

var (
	identifier  string
	outJSON     bool
	quick       bool
	noFooter    bool
	timeout     time.Duration
	llmProvider string
	llmModel    string
)

// verifyCmd represents the verify command
var verifyCmd = &cobra.Command{
	Use:     "verify <claim...>",
	Aliases: []string{"check", "factcheck"},
	Short:   "Assess how accurate a claim is",
	Long: `Verify asks the configured model for an accuracy assessment:
- Accuracy label (True, Mostly True, Mixed, Mostly False, False, Insufficient Evidence)
- Truth percentage (0-100)
- Explanation and up to four sources

Example:
  claimgate verify "vaccines cause autism"
  claimgate verify --quick the great wall is visible from space
  claimgate verify --json "coffee stunts growth" > result.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAnalyze(cmd, model.ModeVerify, args)
	},
}

// exposeCmd represents the expose command
var exposeCmd = &cobra.Command{
	Use:     "expose <claim...>",
	Aliases: []string{"debunk"},
	Short:   "Run a debunk-first analysis of a claim",
	Long: `Expose asks the configured model to either debunk or support a claim:
- Result (Debunked, Supported)
- Confidence (0-100)
- Analysis and up to four pieces of evidence

Example:
  claimgate expose "the moon landing was staged"
  claimgate expose --llm-provider anthropic "5g causes illness"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAnalyze(cmd, model.ModeExpose, args)
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(exposeCmd)

	for _, c := range []*cobra.Command{verifyCmd, exposeCmd} {
		c.Flags().StringVar(&identifier, "identifier", "cli", "rate-limit identifier for this request")
		c.Flags().BoolVar(&outJSON, "json", false, "print the result as JSON")
		c.Flags().BoolVar(&quick, "quick", false, "print only the classification, confidence and a short explanation")
		c.Flags().BoolVar(&noFooter, "no-footer", false, "omit the disclaimer footer")
		c.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall analysis timeout")
		addLLMFlags(c)
	}
}

func addLLMFlags(c *cobra.Command) {
	c.Flags().StringVar(&llmProvider, "llm-provider", "", "LLM provider (openai, anthropic, ollama, gemini)")
	c.Flags().StringVar(&llmModel, "llm-model", "", "LLM model name")
}

// applyLLMFlags overrides the configured provider before API keys resolve
func applyLLMFlags() {
	if llmProvider != "" {
		viper.Set("llm.provider", llmProvider)
	}
	if llmModel != "" {
		viper.Set("llm.model", llmModel)
	}
}

func runAnalyze(cmd *cobra.Command, mode model.Mode, args []string) error {
	applyLLMFlags()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if noFooter {
		cfg.Output.IncludeFooter = false
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}

	claim := strings.Join(args, " ")
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	if verbose {
		fmt.Fprintf(os.Stderr, "Analyzing (%s) with %s/%s\n", mode, cfg.LLM.Provider, cfg.LLM.Model)
		fmt.Fprintf(os.Stderr, "Timeout: %v\n", timeout)
		fmt.Fprintln(os.Stderr)
	}

	result, err := a.pipeline.Analyze(ctx, pipeline.Request{
		Identifier: identifier,
		Text:       claim,
		Mode:       mode,
	})
	if err != nil {
		return describeError(err)
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "✓ Classified as %s (%d%%)\n", result.Classification(), result.Confidence())
		if result.Degraded {
			fmt.Fprintf(os.Stderr, "⚠️  Response format not recognized, result inferred\n")
		}
		fmt.Fprintln(os.Stderr)
	}

	out := cmd.OutOrStdout()
	switch {
	case outJSON:
		return render.WriteJSON(out, render.NewReport(claim, a.pipeline.Provider(), result, time.Now()))
	case quick:
		_, err = fmt.Fprintln(out, render.Quick(result))
		return err
	default:
		_, err = fmt.Fprint(out, a.renderer().Text(claim, result, false))
		return err
	}
}

// describeError adds a user-facing hint to pipeline failures
func describeError(err error) error {
	if rl, ok := pipeline.IsRateLimited(err); ok {
		return fmt.Errorf("%w (retry after %s)", err, rl.RetryAfter.Round(time.Second))
	}
	if pipeline.IsLengthError(err) {
		return fmt.Errorf("claim rejected: %w", err)
	}
	if pipeline.IsServiceUnavailable(err) {
		return fmt.Errorf("analysis failed: %w", err)
	}
	return err
}
