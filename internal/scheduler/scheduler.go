// Package scheduler wraps robfig/cron to run periodic limiter maintenance.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper drops idle rate-limit state and reports how many identifiers
// it removed
type Sweeper interface {
	Sweep() int
}

// Engine manages the cron scheduler
type Engine struct {
	cron   *cron.Cron
	logger *slog.Logger
}

// New creates an Engine. Jobs never overlap with themselves: a run that is
// still going when the next tick fires causes that tick to be skipped.
func New(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	cl := cronLogger{logger: logger}
	return &Engine{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger: logger,
	}
}

// AddSweep registers s to run every interval
func (e *Engine) AddSweep(s Sweeper, interval time.Duration) (cron.EntryID, error) {
	if interval <= 0 {
		return 0, fmt.Errorf("scheduler.AddSweep: interval must be positive, got %s", interval)
	}

	id, err := e.cron.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		start := time.Now()
		removed := s.Sweep()
		e.logger.Debug("limiter sweep", "removed", removed, "duration", time.Since(start))
	})
	if err != nil {
		return 0, fmt.Errorf("scheduler.AddSweep: %w", err)
	}
	return id, nil
}

// Start runs the scheduler until ctx is done
func (e *Engine) Start(ctx context.Context) {
	e.cron.Start()
	go func() {
		<-ctx.Done()
		e.Stop()
	}()
}

// Stop halts the scheduler and waits for running jobs
func (e *Engine) Stop() {
	<-e.cron.Stop().Done()
}

// Next reports when entry id fires next
func (e *Engine) Next(id cron.EntryID) time.Time {
	return e.cron.Entry(id).Next
}

// cronLogger adapts slog to cron.Logger
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
