package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hackgods/clinic-access-scheduling/internal/api"
	"github.com/hackgods/clinic-access-scheduling/internal/appointment"
	"github.com/hackgods/clinic-access-scheduling/internal/config"
	"github.com/hackgods/clinic-access-scheduling/internal/db"
	"github.com/hackgods/clinic-access-scheduling/internal/logger"
	redisclient "github.com/hackgods/clinic-access-scheduling/internal/redis"
	"github.com/hackgods/clinic-access-scheduling/internal/slot"
	"github.com/hackgods/clinic-access-scheduling/internal/waitlist"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:          "api-server",
		Short:        "Clinic scheduling API server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(func(log zerolog.Logger, pool *pgxpool.Pool) error {
				return db.MigrateUp(pool, log)
			})
		},
	})

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			return withPool(func(log zerolog.Logger, pool *pgxpool.Pool) error {
				return db.MigrateDown(pool, steps, log)
			})
		},
	}
	down.Flags().Int("steps", 1, "number of migrations to roll back")
	cmd.AddCommand(down)

	return cmd
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.Env, cfg.LogLevel)
	log.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Str("version", version).Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns})
	cancelPg()
	if err != nil {
		return err
	}
	defer pool.Close()
	log.Info().Msg("connected to Postgres")

	if cfg.MigrateOnStart {
		if err := db.MigrateUp(pool, log); err != nil {
			return err
		}
	}

	checks := []api.DependencyCheck{{Name: "postgres", Critical: true, Ping: pool.Ping}}

	var locker redisclient.Locker
	switch cfg.LockBackend {
	case config.LockBackendLocal:
		log.Warn().Msg("using in-process slot locks; bookings are only serialised within this instance")
		locker = redisclient.NewLocalSlotLocker()
	default:
		rdb, err := redisclient.NewRedisClient(rootCtx, cfg)
		if err != nil {
			return err
		}
		defer closeRedis(rdb, log)
		log.Info().Str("addr", cfg.RedisAddr).Msg("connected to Redis")

		locker = redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL, log)
		checks = append(checks, api.DependencyCheck{
			Name: "redis",
			Ping: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
	}

	slots := slot.NewService(slot.NewPgRepository(pool), log)
	appts := appointment.NewService(appointment.NewPgRepository(pool), slots, locker, log)
	wl := waitlist.NewService(waitlist.NewPgRepository(pool), slots, log)

	srv := &http.Server{
		Addr: ":" + cfg.HTTPPort,
		Handler: api.NewRouter(api.RouterConfig{
			Slots:        slots,
			Appointments: appts,
			Waitlist:     wl,
			Checks:       checks,
			CORSOrigins:  cfg.CORSOrigins,
			Logger:       log,
			Env:          cfg.Env,
			Version:      version,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-rootCtx.Done():
	}

	log.Info().Dur("timeout", cfg.ShutdownTimeout).Msg("shutting down api-server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	log.Info().Msg("api-server stopped")
	return nil
}

func closeRedis(rdb *redis.Client, log zerolog.Logger) {
	if err := rdb.Close(); err != nil {
		log.Warn().Err(err).Msg("error closing redis")
	}
}
