package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/claimgate/internal/model"
	"github.com/ppiankov/claimgate/internal/render"
	"github.com/ppiankov/claimgate/internal/worker"
)

var (
	batchMode    string
	concurrency  int
	outputFile   string
	batchTimeout time.Duration
	batchRetries int
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Analyze many claims from a file in parallel",
	Long: `Batch analyzes claims concurrently:
- Read claims from an input file (one per line, '#' comments, '-' for stdin)
- Pace provider calls with a token bucket so the gates are not flooded
- Every claim still passes the same rate gates as a single request
- Write all results to one JSON document

Example:
  claimgate batch claims.txt
  claimgate batch claims.txt --mode expose --concurrency 3 --output results.json
  cat claims.txt | claimgate batch - --retries 2`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().StringVar(&batchMode, "mode", "verify", "analysis mode (verify, expose)")
	batchCmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of concurrent workers (default: concurrency.workers)")
	batchCmd.Flags().StringVar(&outputFile, "output", "", "write JSON results to this path instead of stdout")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().IntVar(&batchRetries, "retries", 0, "times to wait out a rate-limit denial before giving up on a claim")
	batchCmd.Flags().StringVar(&identifier, "identifier", "batch", "rate-limit identifier shared by every claim")
	addLLMFlags(batchCmd)
}

// batchEntry is one line of the batch JSON output
type batchEntry struct {
	Index    int           `json:"index"`
	Claim    string        `json:"claim"`
	Attempts int           `json:"attempts"`
	Result   *model.Result `json:"result,omitempty"`
	Error    string        `json:"error,omitempty"`
}

type batchReport struct {
	Mode        model.Mode   `json:"mode"`
	Provider    string       `json:"provider"`
	GeneratedAt time.Time    `json:"generated_at"`
	Total       int          `json:"total"`
	Succeeded   int          `json:"succeeded"`
	Failed      int          `json:"failed"`
	Results     []batchEntry `json:"results"`
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]

	mode, err := model.ParseMode(batchMode)
	if err != nil {
		return err
	}
	applyLLMFlags()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if concurrency > 0 {
		cfg.Concurrency.Workers = concurrency
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Claimgate Batch Analysis\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Mode:         %s\n", mode)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", cfg.Concurrency.Workers)
	fmt.Fprintf(os.Stderr, "  Pace:         %.2f req/s (burst %d)\n", cfg.Concurrency.BatchRPS, cfg.Concurrency.BatchBurst)
	fmt.Fprintf(os.Stderr, "  LLM:          %s/%s\n", cfg.LLM.Provider, cfg.LLM.Model)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	processor := worker.NewBatchProcessor(a.pipeline, worker.BatchOptions{
		Mode:       mode,
		Identifier: identifier,
		Workers:    cfg.Concurrency.Workers,
		RPS:        cfg.Concurrency.BatchRPS,
		Burst:      cfg.Concurrency.BatchBurst,
		Retries:    batchRetries,
	}, a.logger)

	fmt.Fprintf(os.Stderr, "⚙️  Reading claims from file...\n")
	results, err := processor.ProcessFile(ctx, file)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}
	fmt.Fprintf(os.Stderr, "✓ Processed %d claims\n", len(results))
	fmt.Fprintf(os.Stderr, "\n")

	report := batchReport{
		Mode:        mode,
		Provider:    a.pipeline.Provider(),
		GeneratedAt: time.Now().UTC(),
		Total:       len(results),
		Results:     make([]batchEntry, 0, len(results)),
	}
	for _, r := range results {
		entry := batchEntry{Index: r.Index, Claim: r.Claim, Attempts: r.Attempts, Result: r.Result}
		if r.Error != nil {
			report.Failed++
			entry.Error = describeError(r.Error).Error()
			fmt.Fprintf(os.Stderr, "✗ #%d: %s\n", r.Index+1, entry.Error)
		} else {
			report.Succeeded++
			fmt.Fprintf(os.Stderr, "✓ #%d: %s\n", r.Index+1, render.Quick(r.Result))
		}
		report.Results = append(report.Results, entry)
	}

	if err := writeBatchReport(cmd, report); err != nil {
		return err
	}

	// Summary
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d claims\n", report.Total)
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", report.Succeeded)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", report.Failed)
	if outputFile != "" {
		fmt.Fprintf(os.Stderr, "  Output:    %s\n", outputFile)
	}
	fmt.Fprintf(os.Stderr, "\n")

	return nil
}

func writeBatchReport(cmd *cobra.Command, report batchReport) (err error) {
	if outputFile == "" {
		return render.WriteJSON(cmd.OutOrStdout(), report)
	}

	if dir := filepath.Dir(outputFile); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	f, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close output file: %w", closeErr)
		}
	}()
	return render.WriteJSON(f, report)
}
