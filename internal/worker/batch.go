package worker

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/claimgate/internal/model"
	"github.com/ppiankov/claimgate/internal/pipeline"
)

// Analyzer runs one claim through the gated pipeline
type Analyzer interface {
	Analyze(ctx context.Context, req pipeline.Request) (*model.Result, error)
}

// ClaimJob analyzes one claim from a batch
type ClaimJob struct {
	Index    int
	Request  pipeline.Request
	Analyzer Analyzer
	Pacer    *Pacer
	PaceKey  string
	Retries  int
	Logger   *slog.Logger
}

// Execute paces, analyzes and, when allowed, waits out rate-limit denials
func (j *ClaimJob) Execute(ctx context.Context) Result {
	res := &ClaimResult{Index: j.Index, Claim: j.Request.Text}

	for attempt := 0; ; attempt++ {
		if j.Pacer != nil {
			if err := j.Pacer.Wait(ctx, j.PaceKey); err != nil {
				res.Error = err
				return res
			}
		}

		res.Result, res.Error = j.Analyzer.Analyze(ctx, j.Request)
		res.Attempts = attempt + 1

		rl, limited := pipeline.IsRateLimited(res.Error)
		if !limited || attempt >= j.Retries {
			return res
		}

		if j.Logger != nil {
			j.Logger.Info("batch claim rate limited, waiting", "index", j.Index, "scope", rl.Scope, "retry_after", rl.RetryAfter)
		}
		select {
		case <-ctx.Done():
			res.Error = ctx.Err()
			return res
		case <-time.After(rl.RetryAfter):
		}
	}
}

// ClaimResult is the outcome of one batch entry
type ClaimResult struct {
	Index    int
	Claim    string
	Result   *model.Result
	Error    error
	Attempts int
}

// GetError returns the analysis error, if any
func (r *ClaimResult) GetError() error {
	return r.Error
}

// BatchOptions tunes a batch run
type BatchOptions struct {
	Mode       model.Mode
	Identifier string
	Workers    int
	RPS        float64
	Burst      int

	// Retries is how many times a rate-limited claim waits out its
	// retry-after and tries again. Zero reports denials as-is.
	Retries int
}

// BatchProcessor analyzes many claims concurrently
type BatchProcessor struct {
	analyzer Analyzer
	opts     BatchOptions
	pacer    *Pacer
	logger   *slog.Logger
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(analyzer Analyzer, opts BatchOptions, logger *slog.Logger) *BatchProcessor {
	if opts.Mode == "" {
		opts.Mode = model.ModeVerify
	}
	if opts.Identifier == "" {
		opts.Identifier = "batch"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchProcessor{
		analyzer: analyzer,
		opts:     opts,
		pacer:    NewPacer(opts.RPS, opts.Burst),
		logger:   logger,
	}
}

// ProcessClaims analyzes claims and returns results in input order
func (b *BatchProcessor) ProcessClaims(ctx context.Context, claims []string) []*ClaimResult {
	if len(claims) == 0 {
		return []*ClaimResult{}
	}

	pool := NewPool(ctx, b.opts.Workers)
	pool.Start()

	submitted := 0
	go func() {
		for i, claim := range claims {
			job := &ClaimJob{
				Index: i,
				Request: pipeline.Request{
					Identifier: b.opts.Identifier,
					Text:       claim,
					Mode:       b.opts.Mode,
				},
				Analyzer: b.analyzer,
				Pacer:    b.pacer,
				PaceKey:  b.opts.Identifier,
				Retries:  b.opts.Retries,
				Logger:   b.logger,
			}
			if !pool.Submit(job) {
				break
			}
			submitted++
		}
		pool.Close()
	}()

	results := make([]*ClaimResult, 0, len(claims))
	for r := range pool.Results() {
		results = append(results, r.(*ClaimResult))
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Index < results[j].Index })

	// Claims never run because ctx ended still get an entry
	if len(results) < len(claims) {
		done := make(map[int]bool, len(results))
		for _, r := range results {
			done[r.Index] = true
		}
		err := ctx.Err()
		if err == nil {
			err = context.Canceled
		}
		for i, claim := range claims {
			if !done[i] {
				results = append(results, &ClaimResult{Index: i, Claim: claim, Error: err})
			}
		}
		sort.Slice(results, func(i, j int) bool { return results[i].Index < results[j].Index })
	}

	b.logger.Debug("batch complete", "claims", len(claims), "submitted", submitted)
	return results
}

// ProcessFile reads claims from a file and analyzes them
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*ClaimResult, error) {
	claims, err := ReadClaimsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read claims: %w", err)
	}

	return b.ProcessClaims(ctx, claims), nil
}

// ReadClaimsFromFile reads claims, one per line. "-" reads stdin.
func ReadClaimsFromFile(filePath string) ([]string, error) {
	if filePath == "-" {
		return ReadClaims(os.Stdin)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	return ReadClaims(file)
}

// ReadClaims reads one claim per line, skipping blanks, "#" comments and
// duplicates
func ReadClaims(r io.Reader) ([]string, error) {
	var claims []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			claims = append(claims, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return claims, nil
}
