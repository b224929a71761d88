package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hackgods/clinic-access-scheduling/internal/config"
	"github.com/hackgods/clinic-access-scheduling/internal/db"
	"github.com/hackgods/clinic-access-scheduling/internal/logger"
	"github.com/hackgods/clinic-access-scheduling/internal/slot"
	"github.com/hackgods/clinic-access-scheduling/internal/waitlist"
)

// sweepTimeout bounds a single expiry run.
const sweepTimeout = 20 * time.Second

func main() {
	var once bool
	var interval time.Duration

	cmd := &cobra.Command{
		Use:          "waitlist-expiry",
		Short:        "Expire waitlist entries whose window has passed",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(once, interval)
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run a single sweep and exit")
	cmd.Flags().DurationVar(&interval, "interval", 0, "time between sweeps (default WORKER_INTERVAL)")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(once bool, interval time.Duration) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if interval <= 0 {
		interval = cfg.WorkerInterval
	}
	log := logger.New(cfg.Env, cfg.LogLevel).With().Str("component", "waitlist_expiry").Logger()
	log.Info().Str("env", cfg.Env).Dur("interval", interval).Bool("once", once).Msg("waitlist expiry worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{MaxConns: 2, MinConns: 1})
	cancelPg()
	if err != nil {
		return err
	}
	defer pool.Close()

	slots := slot.NewService(slot.NewPgRepository(pool), log)
	svc := waitlist.NewService(waitlist.NewPgRepository(pool), slots, log)

	if once {
		return runOnce(rootCtx, svc, log)
	}

	// Run once at startup
	_ = runOnce(rootCtx, svc, log)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info().Msg("shutdown signal received, stopping waitlist expiry worker")
			return nil
		case <-ticker.C:
			_ = runOnce(rootCtx, svc, log)
		}
	}
}

func runOnce(ctx context.Context, svc *waitlist.Service, log zerolog.Logger) error {
	runCtx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	start := time.Now()
	n, err := svc.ExpireSweep(runCtx)
	if err != nil {
		log.Error().Err(err).Msg("expiry run failed")
		return err
	}
	log.Info().Int("expired", n).Dur("took", time.Since(start)).Msg("expiry run complete")
	return nil
}
