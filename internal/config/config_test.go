package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ignite/sales-celebrations/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  port: 9090
  host: "0.0.0.0"

database:
  url: "postgres://celebrations@localhost/celebrations?sslmode=disable"

sales_feed:
  base_url: "https://feed.example.com/api"
  token_url: "https://feed.example.com/oauth/token"
  timeout_seconds: 45

celebration:
  big_sale_threshold: 700
  tgl_marker_text: "Tech Generated Lead"
  tgl_match: exact
  tgl_case_sensitive: true
  tgl_fields: [line_items]
  polling_enabled: false
  lookback_buffer_minutes: 45
  recent_ids_cache_size: 200

polling:
  batch_size: 5
  catchup_window_hours: 8

schedule:
  regular: "*/5 * * * *"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "https://feed.example.com/api", cfg.SalesFeed.BaseURL)
	assert.Equal(t, 45, cfg.SalesFeed.TimeoutSeconds)

	assert.Equal(t, 700.0, cfg.Celebration.BigSaleThreshold)
	assert.Equal(t, "Tech Generated Lead", cfg.Celebration.TGLMarkerText)
	assert.Equal(t, domain.MatchExact, cfg.Celebration.TGLMatch)
	assert.True(t, cfg.Celebration.TGLCaseSensitive)
	assert.Equal(t, []string{domain.FieldLineItems}, cfg.Celebration.TGLFields)
	assert.False(t, cfg.Celebration.PollingEnabled)
	assert.Equal(t, 45, cfg.Celebration.LookbackBufferMinutes)
	assert.Equal(t, 200, cfg.Celebration.RecentIDsCacheSize)

	assert.Equal(t, 5, cfg.Polling.BatchSize)
	assert.Equal(t, 8, cfg.Polling.CatchupWindowHours)
	assert.Equal(t, "*/5 * * * *", cfg.Schedule.Regular)

	require.NoError(t, cfg.Validate())
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Parse([]byte("database:\n  url: postgres://x\n"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 30, cfg.SalesFeed.TimeoutSeconds)
	assert.Equal(t, 3, cfg.SalesFeed.MaxRetries)
	assert.Equal(t, domain.MatchSubstring, cfg.Celebration.TGLMatch)
	assert.Equal(t, []string{domain.FieldSummary, domain.FieldLineItems}, cfg.Celebration.TGLFields)
	assert.True(t, cfg.Celebration.PollingEnabled)
	assert.Equal(t, 30, cfg.Celebration.LookbackBufferMinutes)
	assert.Equal(t, 500, cfg.Celebration.RecentIDsCacheSize)
	assert.Equal(t, 6, cfg.Polling.CatchupWindowHours)
	assert.Equal(t, 20, cfg.Polling.MaxErrors)
	assert.Equal(t, "7 * * * *", cfg.Schedule.Catchup)
	assert.Equal(t, DefaultBigSaleFallback, cfg.Content.BigSaleFallback)
	assert.True(t, cfg.Log.RedactSecrets)
}

func TestLoad_ZeroLookbackBuffer(t *testing.T) {
	cfg, err := Parse([]byte(`
database:
  url: postgres://x
sales_feed:
  base_url: https://feed
celebration:
  tgl_marker_text: TGL
  lookback_buffer_minutes: 0
`))
	require.NoError(t, err)

	assert.Equal(t, 0, cfg.Celebration.LookbackBufferMinutes)
	require.NoError(t, cfg.Validate())
}

func TestValidate_MalformedConfiguration(t *testing.T) {
	cfg, err := Parse([]byte(`
database:
  url: postgres://x
sales_feed:
  base_url: https://feed
celebration:
  big_sale_threshold: -1
  tgl_match: fuzzy
`))
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "big_sale_threshold")
	assert.Contains(t, err.Error(), "tgl_marker_text")
	assert.Contains(t, err.Error(), "fuzzy")
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("celebration:\n  tgl_marker_text: file\n"), 0644))

	t.Setenv("DATABASE_URL", "postgres://env")
	t.Setenv("SALES_FEED_CLIENT_SECRET", "s3cret")
	t.Setenv("BIG_SALE_THRESHOLD", "1500")
	t.Setenv("TGL_MARKER_TEXT", "TGL")
	t.Setenv("POLLING_ENABLED", "false")
	t.Setenv("AUDIT_S3_BUCKET", "audit-bucket")

	cfg, err := LoadFromEnv(configPath)
	require.NoError(t, err)

	assert.Equal(t, "postgres://env", cfg.Database.URL)
	assert.Equal(t, "s3cret", cfg.SalesFeed.ClientSecret)
	assert.Equal(t, 1500.0, cfg.Celebration.BigSaleThreshold)
	assert.Equal(t, "TGL", cfg.Celebration.TGLMarkerText)
	assert.False(t, cfg.Celebration.PollingEnabled)
	assert.True(t, cfg.Audit.Enabled)
	assert.Equal(t, "audit-bucket", cfg.Audit.S3Bucket)
}

func TestExampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config", "config.example.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "America/Chicago", cfg.Schedule.Timezone)
	assert.Equal(t, 10000.0, cfg.Celebration.BigSaleThreshold)
	assert.True(t, cfg.Celebration.PollingEnabled)

	// The database URL comes from the environment.
	assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
	cfg.Database.URL = "postgres://localhost/celebrations"
	assert.NoError(t, cfg.Validate())
}
