package runtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Auth.JWTSecret = "runtime-test-secret"
	cfg.Auth.BcryptCost = 4
	cfg.Logging.Output = "discard"
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Cart.SweepSchedule = "off"
	return cfg
}

func TestNewApplicationMemory(t *testing.T) {
	ctx := context.Background()
	a, err := NewApplication(ctx, testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })

	assert.Contains(t, a.App().Services(), "rate-limiter-cleanup")

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", gjson.Get(rec.Body.String(), "status").String())
}

func TestNewApplicationRateLimitDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.RateLimit.Enabled = false

	a, err := NewApplication(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })
	assert.NotContains(t, a.App().Services(), "rate-limiter-cleanup")
}

func TestNewApplicationSQLite(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Database.Driver = config.DriverSQLite
	cfg.Database.DSN = filepath.Join(t.TempDir(), "bookstore.db")

	a, err := NewApplication(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })

	stats, err := a.App().Seeder.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 12, stats.Books)

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/books?limit=3", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(12), gjson.Get(rec.Body.String(), "pagination.total").Int())
}

func TestNewApplicationUnknownDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Driver = "cassandra"

	_, err := NewApplication(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cassandra")
}

func TestRunAndShutdown(t *testing.T) {
	a, err := NewApplication(context.Background(), testConfig(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	cancel()

	require.NoError(t, <-done)
	require.NoError(t, a.Shutdown(context.Background()))
}
