// Package app wires configuration into a ready Poller and its operator
// surfaces. cmd/server and cmd/worker share it.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/ignite/sales-celebrations/internal/audit"
	"github.com/ignite/sales-celebrations/internal/config"
	"github.com/ignite/sales-celebrations/internal/domain"
	"github.com/ignite/sales-celebrations/internal/pkg/logger"
	"github.com/ignite/sales-celebrations/internal/recentids"
	"github.com/ignite/sales-celebrations/internal/repository/postgres"
	"github.com/ignite/sales-celebrations/internal/salesfeed"
	"github.com/ignite/sales-celebrations/internal/service/content"
	"github.com/ignite/sales-celebrations/internal/service/dispatch"
	"github.com/ignite/sales-celebrations/internal/service/ledger"
	"github.com/ignite/sales-celebrations/internal/service/poller"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"
)

// App holds the long-lived collaborators of a process.
type App struct {
	Config   *config.Config
	DB       *sql.DB
	Redis    *redis.Client // nil when Redis is not configured
	S3       *s3.Client    // nil when audit archiving is disabled
	Poller   *poller.Poller
	Ledger   *ledger.Service
	PollRuns *postgres.PollRunRepo
}

// Open connects to the configured backends and wires the App.
func Open(ctx context.Context, cfg *config.Config) (*App, error) {
	logger.SetLevelName(cfg.Log.Level)
	logger.SetRedactSecrets(cfg.Log.RedactSecrets)

	db, err := OpenDB(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	var rdb *redis.Client
	if cfg.Redis.URL != "" {
		rdb, err = OpenRedis(ctx, cfg.Redis.URL)
		if err != nil {
			db.Close()
			return nil, err
		}
	} else {
		logger.Info("app: redis not configured, recent ids kept in memory")
	}

	var s3c *s3.Client
	if cfg.Audit.Enabled {
		s3c, err = audit.NewS3Client(ctx, cfg.Audit.S3Region)
		if err != nil {
			db.Close()
			if rdb != nil {
				rdb.Close()
			}
			return nil, err
		}
	}

	a, err := Wire(cfg, db, rdb, s3c)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// OpenDB opens and pings PostgreSQL with the configured pool limits.
func OpenDB(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime())

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	logger.Info("app: connected to database", "url", logger.RedactURL(cfg.URL))
	return db, nil
}

// OpenRedis parses a redis:// URL and pings the server.
func OpenRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	logger.Info("app: connected to redis", "addr", opts.Addr)
	return client, nil
}

// Wire builds the App over already-open backends. rdb and s3c may be nil.
func Wire(cfg *config.Config, db *sql.DB, rdb *redis.Client, s3c *s3.Client) (*App, error) {
	a := &App{Config: cfg, DB: db, Redis: rdb, S3: s3c}

	selector, err := content.NewSelector(postgres.NewContentRepo(db), content.Options{
		Fallbacks: map[domain.CelebrationType]string{
			domain.CelebrationBigSale: cfg.Content.BigSaleFallback,
			domain.CelebrationTGL:     cfg.Content.TGLFallback,
		},
	})
	if err != nil {
		return a, err
	}

	feed := salesfeed.NewClient(salesfeed.Config{
		BaseURL:      cfg.SalesFeed.BaseURL,
		TokenURL:     cfg.SalesFeed.TokenURL,
		ClientID:     cfg.SalesFeed.ClientID,
		ClientSecret: cfg.SalesFeed.ClientSecret,
		Scopes:       cfg.SalesFeed.Scopes,
		Timeout:      cfg.SalesFeed.Timeout(),
		MaxRetries:   cfg.SalesFeed.MaxRetries,
		TokenMargin:  cfg.SalesFeed.TokenExpiryMargin(),
		EnrichDelay:  cfg.Polling.EnrichDelay(),
	})

	var recent recentids.Cache = recentids.NewMemory()
	if rdb != nil {
		recent = recentids.NewRedis(rdb, cfg.Redis.KeyPrefix)
	}

	a.Ledger = ledger.NewService(postgres.NewClaimRepo(db))
	a.PollRuns = postgres.NewPollRunRepo(db)

	deps := poller.Deps{
		Source:      feed,
		Estimates:   postgres.NewEstimateRepo(db),
		Ledger:      a.Ledger,
		Channels:    postgres.NewChannelRepo(db),
		Salespeople: postgres.NewSalespersonRepo(db),
		Settings:    postgres.NewSettingsRepo(db),
		Runs:        a.PollRuns,
		Watermarks:  postgres.NewWatermarkRepo(db),
		Content:     selector,
		Sender:      dispatch.New(cfg.Dispatch.Timeout()),
		Recent:      recent,
	}
	if s3c != nil && cfg.Audit.S3Bucket != "" {
		deps.Archiver = audit.NewArchiver(s3c, cfg.Audit.S3Bucket, cfg.Audit.Prefix)
	}

	a.Poller = poller.New(deps, poller.Config{
		Settings:   cfg.Celebration,
		BatchSize:  cfg.Polling.BatchSize,
		BatchPause: cfg.Polling.BatchPause(),
		MaxErrors:  cfg.Polling.MaxErrors,
		RunTimeout: cfg.Polling.RunTimeout(),
	})
	return a, nil
}

// Close releases the backends.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
