package app

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/ignite/sales-celebrations/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(`
database:
  url: postgres://localhost/celebrations
sales_feed:
  base_url: http://feed.local
celebration:
  big_sale_threshold: 10000
  tgl_marker_text: "TGL"
`))
	require.NoError(t, err)
	return cfg
}

func TestWire(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	a, err := Wire(testConfig(t), db, nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, a.Poller)
	assert.NotNil(t, a.Ledger)
	assert.NotNil(t, a.PollRuns)
	assert.Nil(t, a.Redis)
	assert.Nil(t, a.S3)
}

func TestWire_BadFallbackTemplate(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cfg := testConfig(t)
	cfg.Content.TGLFallback = "{% if seller %}never closed"
	_, err = Wire(cfg, db, nil, nil)
	assert.Error(t, err)
}

func TestOpenRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := OpenRedis(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	defer client.Close()

	a, err := Wire(testConfig(t), nil, client, nil)
	require.NoError(t, err)
	assert.Same(t, client, a.Redis)

	_, err = OpenRedis(context.Background(), "not a url")
	assert.Error(t, err)
}
