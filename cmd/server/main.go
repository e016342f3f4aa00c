package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignite/sales-celebrations/internal/api"
	"github.com/ignite/sales-celebrations/internal/app"
	"github.com/ignite/sales-celebrations/internal/config"
	"github.com/ignite/sales-celebrations/internal/pkg/logger"
)

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v\n"+
			"  Hint: Run 'lsof -i :%d' to find the blocking process", port, addr, err, port)
	}
	ln.Close()
	return nil
}

func main() {
	configPath := flag.String("config", envOr("CONFIG_PATH", "config/config.yaml"), "path to the YAML configuration")
	flag.Parse()

	logger.SetService("celebrations-api")

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Config check FAILED: %v", err)
	}

	host := cfg.Server.GetHost()
	if err := checkPortAvailable(host, cfg.Server.Port); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer a.Close()

	if cfg.Server.TriggerToken == "" {
		logger.Warn("server: TRIGGER_TOKEN not set, /api is unauthenticated")
	}

	handlers := api.NewHandlers(a.Poller, a.PollRuns, a.Ledger, cfg.Polling.CatchupWindow())
	health := api.NewHealthChecker(a.DB, a.Redis, a.S3, cfg.Audit.S3Bucket, a.PollRuns, 0)
	server := api.NewServer(cfg.Server, handlers, health)

	addr := fmt.Sprintf("%s:%d", host, cfg.Server.Port)
	go func() {
		logger.Info("server: listening", "addr", addr)
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server: shutting down")
	cancel()

	// Leave in-flight poll runs their full budget to finish.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Polling.RunTimeout()+5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server: forced shutdown", "error", err)
	}
	logger.Info("server: stopped")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
