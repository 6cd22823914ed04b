package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Pipeline.Workers)
	assert.Equal(t, 0, cfg.Pipeline.BatchSize)
	assert.Equal(t, 25, cfg.Pipeline.ProgressEvery)

	// Default backend chain, highest priority first.
	require.Len(t, cfg.Backends, 3)
	assert.Equal(t, "apis.net.pe", cfg.Backends[0].Name)
	assert.Equal(t, "ruc.pe", cfg.Backends[1].Name)
	assert.Equal(t, "facturapi", cfg.Backends[2].Name)
	assert.True(t, cfg.Backends[0].Priority < cfg.Backends[1].Priority)
	assert.True(t, cfg.Backends[2].RequiresKey)
	assert.False(t, cfg.Backends[2].Usable(), "keyed backend is unusable without a credential")
}

func TestLoadFromYAML(t *testing.T) {
	dir := chTempDir(t)

	yaml := `
store:
  driver: sqlite
  database_url: /tmp/ruc.db
log:
  level: debug
  format: console
pipeline:
  workers: 12
backends:
  - name: custom
    priority: 1
    url: https://example.test/ruc/{ruc}
    response_field: razonSocial
    min_spacing: 750ms
    timeout: 5s
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 12, cfg.Pipeline.Workers)
	// Explicit backends replace the built-in chain entirely.
	require.Len(t, cfg.Backends, 1)
	assert.Equal(t, "custom", cfg.Backends[0].Name)
	assert.Equal(t, 750*time.Millisecond, cfg.Backends[0].MinSpacing)
	assert.Equal(t, 5*time.Second, cfg.Backends[0].Timeout)
	// Defaults still apply for unset values.
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chTempDir(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("RUC_STORE_DRIVER", "postgres")
	t.Setenv("RUC_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadFacturapiKeyFromEnv(t *testing.T) {
	chTempDir(t)

	t.Setenv("RUC_FACTURAPI_KEY", "sk_test_abc")

	cfg, err := Load()
	require.NoError(t, err)

	require.Len(t, cfg.Backends, 3)
	assert.Equal(t, "sk_test_abc", cfg.Backends[2].APIKey)
	assert.True(t, cfg.Backends[2].Usable())
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults mirrors the Load defaults for validation tests.
func validDefaults(t *testing.T) *Config {
	chTempDir(t)
	cfg, err := Load()
	require.NoError(t, err)
	cfg.Store.DatabaseURL = "postgres://localhost/ruc"
	return cfg
}

func TestValidateResolve(t *testing.T) {
	cfg := validDefaults(t)
	assert.NoError(t, cfg.Validate("resolve"))

	cfg.Pipeline.Workers = 0
	err := cfg.Validate("resolve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline.workers must be between 1 and 50")

	cfg.Pipeline.Workers = 51
	assert.Error(t, cfg.Validate("resolve"))

	cfg.Pipeline.Workers = 50
	assert.NoError(t, cfg.Validate("resolve"))
}

func TestValidateResolve_NoBackends(t *testing.T) {
	cfg := validDefaults(t)
	cfg.Backends = nil

	err := cfg.Validate("resolve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "at least one backend")
}

func TestValidateMissingDatabaseURL(t *testing.T) {
	cfg := validDefaults(t)
	cfg.Store.DatabaseURL = ""

	err := cfg.Validate("resolve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestValidateBadDriver(t *testing.T) {
	cfg := validDefaults(t)
	cfg.Store.Driver = "mysql"

	err := cfg.Validate("status")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver must be postgres or sqlite")
}

func TestValidateServePort(t *testing.T) {
	cfg := validDefaults(t)
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults(t)
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
