package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/claimgate/internal/httpapi"
	"github.com/ppiankov/claimgate/internal/scheduler"
	"github.com/ppiankov/claimgate/internal/telegram"
)

var serveAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the Telegram bot and the limiter sweeper",
	Long: `Serve runs every long-lived surface against one shared pipeline, so
all of them draw from the same rate limits:
- HTTP API on server.addr (POST /v1/analyze, /v1/limits, /metrics, /healthz, /readyz)
- Telegram bot when telegram.token is set
- Periodic sweep of idle rate-limit entries every rate_limit.sweep_interval

Example:
  claimgate serve
  CLAIMGATE_TELEGRAM_TOKEN=123:abc claimgate serve --addr :9090`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default: server.addr)")
	addLLMFlags(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	applyLLMFlags()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched := scheduler.New(a.logger)
	sweepID, err := sched.AddSweep(a.pipeline, cfg.RateLimit.SweepInterval)
	if err != nil {
		return err
	}

	handler := httpapi.New(a.pipeline, a.registry, cfg.Server.AdminToken, a.logger)
	server := httpapi.NewServer(cfg.Server, handler, a.logger)

	commands := telegram.NewCommandHandler(a.pipeline, a.renderer(), telegram.Options{
		AutoAnalyze:   cfg.Trigger.AutoAnalyze,
		RespondToBots: cfg.Telegram.RespondToBots,
		AdminChatIDs:  cfg.Telegram.AdminChatIDs,
	}, a.logger)
	bot, err := telegram.New(cfg.Telegram.Token, commands, a.logger)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "✓ Provider: %s/%s\n", cfg.LLM.Provider, cfg.LLM.Model)
	fmt.Fprintf(os.Stderr, "✓ Limits: %d per %s per identifier, %d per minute global\n",
		cfg.RateLimit.MaxRequests, cfg.RateLimit.Window, cfg.RateLimit.GlobalPerMinute)
	if bot == nil {
		fmt.Fprintf(os.Stderr, "  Telegram disabled (no telegram.token)\n")
	}
	if cfg.Server.AdminToken == "" {
		a.logger.Warn("server.admin_token not set, DELETE /v1/limits/{identifier} is disabled")
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(ctx)
	})
	g.Go(func() error {
		sched.Start(ctx)
		a.logger.Info("limiter sweep scheduled", "next", sched.Next(sweepID))
		return nil
	})
	if bot != nil {
		g.Go(func() error {
			return bot.Run(ctx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.logger.Info("shutdown complete")
	return nil
}
