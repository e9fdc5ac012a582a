package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"LISTEN_ADDR", "LOG_LEVEL", "ENV", "DUCKDB_PATH", "META_DB_PATH", "TABLES_FILE",
		"HTTP_TIMEOUT", "UPSTREAM_RPS", "UPSTREAM_BURST", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
		"CORS_ALLOWED_ORIGINS",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "restfdw_meta.sqlite", cfg.MetaDBPath)
	assert.Equal(t, "tables.yaml", cfg.TablesFile)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Zero(t, cfg.UpstreamRPS)
	assert.Equal(t, 1, cfg.UpstreamBurst)
	assert.InDelta(t, 100, cfg.RateLimitRPS, 0.001)
	assert.Equal(t, 200, cfg.RateLimitBurst)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.Len(t, cfg.Warnings, 1, "in-memory DuckDB warning")
	assert.False(t, cfg.IsProduction())
}

func TestLoadFromEnv_AllVarsSet(t *testing.T) {
	clearEnv(t)
	t.Setenv("LISTEN_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DUCKDB_PATH", "/tmp/restfdw.duckdb")
	t.Setenv("META_DB_PATH", "/tmp/meta.sqlite")
	t.Setenv("TABLES_FILE", "/etc/restfdw/tables.yaml")
	t.Setenv("HTTP_TIMEOUT", "5s")
	t.Setenv("UPSTREAM_RPS", "2.5")
	t.Setenv("UPSTREAM_BURST", "3")
	t.Setenv("RATE_LIMIT_RPS", "10")
	t.Setenv("RATE_LIMIT_BURST", "20")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	assert.Equal(t, "/tmp/restfdw.duckdb", cfg.DuckDBPath)
	assert.Equal(t, "/tmp/meta.sqlite", cfg.MetaDBPath)
	assert.Equal(t, "/etc/restfdw/tables.yaml", cfg.TablesFile)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	assert.InDelta(t, 2.5, cfg.UpstreamRPS, 0.001)
	assert.Equal(t, 3, cfg.UpstreamBurst)
	assert.InDelta(t, 10, cfg.RateLimitRPS, 0.001)
	assert.Equal(t, 20, cfg.RateLimitBurst)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.Empty(t, cfg.Warnings)
}

func TestLoadFromEnv_InvalidValues(t *testing.T) {
	t.Run("bad timeout is fatal", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("HTTP_TIMEOUT", "soon")
		_, err := LoadFromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "HTTP_TIMEOUT")
	})

	t.Run("bad numbers become warnings", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("DUCKDB_PATH", "x.duckdb")
		t.Setenv("UPSTREAM_RPS", "fast")
		t.Setenv("RATE_LIMIT_BURST", "-1")
		cfg, err := LoadFromEnv()
		require.NoError(t, err)
		assert.Zero(t, cfg.UpstreamRPS)
		assert.Equal(t, 200, cfg.RateLimitBurst)
		assert.Len(t, cfg.Warnings, 2)
	})
}

func TestLoadFromEnv_Production(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENV", "production")

	_, err := LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CORS wildcard")

	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example")
	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"loud", slog.LevelInfo},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseLevel(tc.in))
		})
	}
}

func TestLoadDotEnv_FileNotFound(t *testing.T) {
	require.NoError(t, LoadDotEnv("/nonexistent/.env"))
}

func TestLoadDotEnv(t *testing.T) {
	t.Setenv("RESTFDW_TEST_PRECEDENCE", "from_env")
	t.Setenv("RESTFDW_TEST_PLAIN", "")
	t.Setenv("RESTFDW_TEST_QUOTED", "")
	t.Setenv("RESTFDW_TEST_EXPORTED", "")

	envFile := filepath.Join(t.TempDir(), ".env")
	content := "# comment\n\n" +
		"RESTFDW_TEST_PLAIN=value\n" +
		"RESTFDW_TEST_QUOTED='sq0atp-123'\n" +
		"export RESTFDW_TEST_EXPORTED=\"yes\"\n" +
		"RESTFDW_TEST_PRECEDENCE=from_file\n" +
		"not a pair\n"
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o600))

	require.NoError(t, LoadDotEnv(envFile))

	assert.Equal(t, "value", os.Getenv("RESTFDW_TEST_PLAIN"))
	assert.Equal(t, "sq0atp-123", os.Getenv("RESTFDW_TEST_QUOTED"))
	assert.Equal(t, "yes", os.Getenv("RESTFDW_TEST_EXPORTED"))
	assert.Equal(t, "from_env", os.Getenv("RESTFDW_TEST_PRECEDENCE"))
}

func TestStripQuotes(t *testing.T) {
	assert.Equal(t, "abc", stripQuotes(`"abc"`))
	assert.Equal(t, "abc", stripQuotes(`'abc'`))
	assert.Equal(t, `"abc'`, stripQuotes(`"abc'`))
	assert.Equal(t, `"`, stripQuotes(`"`))
}
