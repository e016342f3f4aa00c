package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignite/sales-celebrations/internal/app"
	"github.com/ignite/sales-celebrations/internal/config"
	"github.com/ignite/sales-celebrations/internal/pkg/distlock"
	"github.com/ignite/sales-celebrations/internal/pkg/logger"
	"github.com/ignite/sales-celebrations/internal/worker"
)

func main() {
	configPath := flag.String("config", envOr("CONFIG_PATH", "config/config.yaml"), "path to the YAML configuration")
	flag.Parse()

	logger.SetService("celebrations-worker")

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Config check FAILED: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer a.Close()

	// The lock outlives a run that hits its timeout, so a slow replica is
	// never overlapped by the next tick elsewhere.
	lockTTL := cfg.Polling.RunTimeout() + time.Minute
	locks := func(key string) distlock.DistLock {
		return distlock.NewLock(a.Redis, a.DB, key, lockTTL)
	}

	scheduler, err := worker.NewPollScheduler(worker.ScheduleConfig{
		Regular:         cfg.Schedule.Regular,
		Catchup:         cfg.Schedule.Catchup,
		Timezone:        cfg.Schedule.Timezone,
		CatchupLookback: cfg.Polling.CatchupWindow(),
		LockPrefix:      cfg.Redis.KeyPrefix,
	}, a.Poller, locks)
	if err != nil {
		log.Fatalf("Invalid schedule: %v", err)
	}
	if err := scheduler.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	monitor := worker.NewStaleClaimMonitor(a.Ledger, 0, 0)
	go monitor.Start(ctx)

	logger.Info("worker: running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("worker: shutting down")
	stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.Polling.RunTimeout()+5*time.Second)
	defer stopCancel()
	scheduler.Stop(stopCtx)
	cancel()

	logger.Info("worker: stopped", "stats", a.Poller.Stats())
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
