package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/careloop/clinic-scheduling/internal/config"
	"github.com/careloop/clinic-scheduling/internal/db"
	"github.com/careloop/clinic-scheduling/internal/notify"
	redisclient "github.com/careloop/clinic-scheduling/internal/redis"
	"github.com/careloop/clinic-scheduling/internal/scheduling"
)

// The expiry worker sweeps pending bookings that were never confirmed within
// the TTL and cancels them, releasing their windows.
func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()
	log.Info().Msg("expiry-worker starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}

	log.Info().
		Str("env", cfg.Env).
		Dur("interval", cfg.WorkerInterval).
		Dur("pending_ttl", cfg.PendingTTL).
		Msg("running expiry worker")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Error().Err(err).Msg("error closing redis")
		}
	}()
	log.Info().Msg("connected to Redis")

	repo := scheduling.NewPgRepository(pgPool)
	txRunner := scheduling.NewPgTxRunner(pgPool)
	publisher := notify.NewRedisPublisher(rdb)
	svc := scheduling.NewService(repo, txRunner, publisher, cfg, log)

	// Run once at startup
	runOnce(rootCtx, svc, log)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info().Msg("shutdown signal received, stopping expiry worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, log)
		}
	}
}

func runOnce(ctx context.Context, svc *scheduling.Service, log zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	released, err := svc.ReleaseStalePending(runCtx)
	if err != nil {
		log.Error().Err(err).Msg("expiry run error")
		return
	}
	log.Info().
		Int("released", released).
		Dur("took", time.Since(start)).
		Msg("expiry run complete")
}
