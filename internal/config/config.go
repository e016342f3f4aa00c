package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ignite/sales-celebrations/internal/domain"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned when the configuration cannot be used to run pollers.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all configuration for the application
type Config struct {
	Server      ServerConfig    `yaml:"server"`
	Database    DatabaseConfig  `yaml:"database"`
	Redis       RedisConfig     `yaml:"redis"`
	SalesFeed   SalesFeedConfig `yaml:"sales_feed"`
	Celebration domain.Settings `yaml:"celebration"`
	Polling     PollingConfig   `yaml:"polling"`
	Schedule    ScheduleConfig  `yaml:"schedule"`
	Dispatch    DispatchConfig  `yaml:"dispatch"`
	Content     ContentConfig   `yaml:"content"`
	Audit       AuditConfig     `yaml:"audit"`
	Log         LogConfig       `yaml:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	TriggerToken   string   `yaml:"trigger_token"` // bearer token required on /api when set
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	URL                    string `yaml:"url"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// ConnMaxLifetime returns the connection lifetime as a duration
func (c DatabaseConfig) ConnMaxLifetime() time.Duration {
	return time.Duration(c.ConnMaxLifetimeMinutes) * time.Minute
}

// RedisConfig holds the optional Redis connection. An empty URL disables
// Redis; the recent-id cache then lives in process memory.
type RedisConfig struct {
	URL       string `yaml:"url"`
	KeyPrefix string `yaml:"key_prefix"`
}

// SalesFeedConfig holds the upstream sales feed API configuration
type SalesFeedConfig struct {
	BaseURL                  string   `yaml:"base_url"`
	TokenURL                 string   `yaml:"token_url"`
	ClientID                 string   `yaml:"client_id"`
	ClientSecret             string   `yaml:"client_secret"`
	Scopes                   []string `yaml:"scopes"`
	TimeoutSeconds           int      `yaml:"timeout_seconds"`
	MaxRetries               int      `yaml:"max_retries"`
	TokenExpiryMarginSeconds int      `yaml:"token_expiry_margin_seconds"`
}

// Timeout returns the configured timeout as a duration
func (c SalesFeedConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// TokenExpiryMargin returns how long before expiry a cached token is refreshed
func (c SalesFeedConfig) TokenExpiryMargin() time.Duration {
	return time.Duration(c.TokenExpiryMarginSeconds) * time.Second
}

// PollingConfig holds poller pacing and window configuration
type PollingConfig struct {
	CatchupWindowHours int `yaml:"catchup_window_hours"`
	BatchSize          int `yaml:"batch_size"`
	BatchPauseMs       int `yaml:"batch_pause_ms"`
	EnrichDelayMs      int `yaml:"enrich_delay_ms"`
	RunTimeoutSeconds  int `yaml:"run_timeout_seconds"`
	MaxErrors          int `yaml:"max_errors"`
}

// CatchupWindow returns the catchup lookback as a duration
func (c PollingConfig) CatchupWindow() time.Duration {
	return time.Duration(c.CatchupWindowHours) * time.Hour
}

// BatchPause returns the pause between batches as a duration
func (c PollingConfig) BatchPause() time.Duration {
	return time.Duration(c.BatchPauseMs) * time.Millisecond
}

// EnrichDelay returns the spacing between enrichment calls as a duration
func (c PollingConfig) EnrichDelay() time.Duration {
	return time.Duration(c.EnrichDelayMs) * time.Millisecond
}

// RunTimeout returns the external timeout applied to a single run
func (c PollingConfig) RunTimeout() time.Duration {
	return time.Duration(c.RunTimeoutSeconds) * time.Second
}

// ScheduleConfig holds cron expressions for the worker process
type ScheduleConfig struct {
	Regular  string `yaml:"regular"`
	Catchup  string `yaml:"catchup"`
	Timezone string `yaml:"timezone"`
}

// DispatchConfig holds outbound chat webhook settings
type DispatchConfig struct {
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration
func (c DispatchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ContentConfig holds fallback message templates (Liquid syntax) used when
// no active content exists for a category.
type ContentConfig struct {
	BigSaleFallback string `yaml:"big_sale_fallback"`
	TGLFallback     string `yaml:"tgl_fallback"`
}

// AuditConfig controls archiving of fetched batches to S3
type AuditConfig struct {
	Enabled  bool   `yaml:"enabled"`
	S3Bucket string `yaml:"s3_bucket"`
	S3Region string `yaml:"s3_region"`
	Prefix   string `yaml:"prefix"`
}

// LogConfig controls the structured logger
type LogConfig struct {
	Level         string `yaml:"level"`
	RedactSecrets bool   `yaml:"redact_secrets"`
}

// Default big sale / TGL fallbacks.
const (
	DefaultBigSaleFallback = `{{ seller }} just closed a {{ amount }} sale with {{ customer }}!`
	DefaultTGLFallback     = `{{ seller }} generated a tech lead for {{ customer }}!`
)

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML configuration and applies defaults
func Parse(data []byte) (*Config, error) {
	cfg := Config{
		Log:         LogConfig{RedactSecrets: true},
		Celebration: domain.Settings{PollingEnabled: true, LookbackBufferMinutes: 30},
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetimeMinutes == 0 {
		cfg.Database.ConnMaxLifetimeMinutes = 5
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "celebrations"
	}
	if cfg.SalesFeed.TimeoutSeconds == 0 {
		cfg.SalesFeed.TimeoutSeconds = 30
	}
	if cfg.SalesFeed.MaxRetries == 0 {
		cfg.SalesFeed.MaxRetries = 3
	}
	if cfg.SalesFeed.TokenExpiryMarginSeconds == 0 {
		cfg.SalesFeed.TokenExpiryMarginSeconds = 60
	}
	if cfg.Celebration.TGLMatch == "" {
		cfg.Celebration.TGLMatch = domain.MatchSubstring
	}
	if len(cfg.Celebration.TGLFields) == 0 {
		cfg.Celebration.TGLFields = []string{domain.FieldSummary, domain.FieldLineItems}
	}
	if cfg.Celebration.RecentIDsCacheSize == 0 {
		cfg.Celebration.RecentIDsCacheSize = 500
	}
	if cfg.Polling.CatchupWindowHours == 0 {
		cfg.Polling.CatchupWindowHours = 6
	}
	if cfg.Polling.BatchSize == 0 {
		cfg.Polling.BatchSize = 10
	}
	if cfg.Polling.BatchPauseMs == 0 {
		cfg.Polling.BatchPauseMs = 2000
	}
	if cfg.Polling.EnrichDelayMs == 0 {
		cfg.Polling.EnrichDelayMs = 250
	}
	if cfg.Polling.RunTimeoutSeconds == 0 {
		cfg.Polling.RunTimeoutSeconds = 300
	}
	if cfg.Polling.MaxErrors == 0 {
		cfg.Polling.MaxErrors = 20
	}
	if cfg.Schedule.Regular == "" {
		cfg.Schedule.Regular = "*/2 * * * *"
	}
	if cfg.Schedule.Catchup == "" {
		cfg.Schedule.Catchup = "7 * * * *"
	}
	if cfg.Schedule.Timezone == "" {
		cfg.Schedule.Timezone = "UTC"
	}
	if cfg.Dispatch.TimeoutSeconds == 0 {
		cfg.Dispatch.TimeoutSeconds = 10
	}
	if cfg.Content.BigSaleFallback == "" {
		cfg.Content.BigSaleFallback = DefaultBigSaleFallback
	}
	if cfg.Content.TGLFallback == "" {
		cfg.Content.TGLFallback = DefaultTGLFallback
	}
	if cfg.Audit.S3Region == "" {
		cfg.Audit.S3Region = "us-east-1"
	}
	if cfg.Audit.Prefix == "" {
		cfg.Audit.Prefix = "poll-batches"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// Validate reports configuration the services cannot start with.
func (cfg *Config) Validate() error {
	var problems []string
	if cfg.Database.URL == "" {
		problems = append(problems, "database.url is required")
	}
	if cfg.SalesFeed.BaseURL == "" {
		problems = append(problems, "sales_feed.base_url is required")
	}
	if cfg.Polling.BatchSize < 0 || cfg.Polling.BatchPauseMs < 0 || cfg.Polling.EnrichDelayMs < 0 {
		problems = append(problems, "polling pacing values must be >= 0")
	}
	if cfg.Audit.Enabled && cfg.Audit.S3Bucket == "" {
		problems = append(problems, "audit.s3_bucket is required when audit is enabled")
	}
	if err := cfg.Celebration.Validate(); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars when deployed.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.applyEnv()
	return cfg, nil
}

func (cfg *Config) applyEnv() {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("SALES_FEED_BASE_URL"); v != "" {
		cfg.SalesFeed.BaseURL = v
	}
	if v := os.Getenv("SALES_FEED_TOKEN_URL"); v != "" {
		cfg.SalesFeed.TokenURL = v
	}
	if v := os.Getenv("SALES_FEED_CLIENT_ID"); v != "" {
		cfg.SalesFeed.ClientID = v
	}
	if v := os.Getenv("SALES_FEED_CLIENT_SECRET"); v != "" {
		cfg.SalesFeed.ClientSecret = v
	}
	if v := os.Getenv("TRIGGER_TOKEN"); v != "" {
		cfg.Server.TriggerToken = v
	}
	if v := os.Getenv("BIG_SALE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Celebration.BigSaleThreshold = f
		}
	}
	if v := os.Getenv("TGL_MARKER_TEXT"); v != "" {
		cfg.Celebration.TGLMarkerText = v
	}
	if v := os.Getenv("POLLING_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Celebration.PollingEnabled = b
		}
	}
	if v := os.Getenv("AUDIT_S3_BUCKET"); v != "" {
		cfg.Audit.S3Bucket = v
		cfg.Audit.Enabled = true
	}
}
