package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func clearSchedulerEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SCHEDULER_CONFIG_FILE",
		"SCHEDULER_HTTP_PORT",
		"SCHEDULER_SQLITE_DSN",
		"SCHEDULER_TIMEZONE",
		"SCHEDULER_REDIS_ADDR",
		"SCHEDULER_CACHE_TTL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearSchedulerEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.HTTPPort)
	require.Equal(t, "file:class-scheduler.db", cfg.SQLiteDSN)
	require.Equal(t, "UTC", cfg.Timezone)
	require.Empty(t, cfg.RedisAddr)
	require.Equal(t, 5*time.Minute, cfg.CacheTTL)

	loc, err := cfg.Location()
	require.NoError(t, err)
	require.Equal(t, time.UTC, loc)
}

func TestLoadEnvOverrides(t *testing.T) {
	clearSchedulerEnv(t)
	t.Setenv("SCHEDULER_HTTP_PORT", "9090")
	t.Setenv("SCHEDULER_SQLITE_DSN", "file:other.db")
	t.Setenv("SCHEDULER_TIMEZONE", "America/New_York")
	t.Setenv("SCHEDULER_REDIS_ADDR", "localhost:6379")
	t.Setenv("SCHEDULER_CACHE_TTL", "90s")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.HTTPPort)
	require.Equal(t, "file:other.db", cfg.SQLiteDSN)
	require.Equal(t, "America/New_York", cfg.Timezone)
	require.Equal(t, "localhost:6379", cfg.RedisAddr)
	require.Equal(t, 90*time.Second, cfg.CacheTTL)
}

func TestLoadConfigFile(t *testing.T) {
	clearSchedulerEnv(t)

	path := filepath.Join(t.TempDir(), "scheduler.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http_port: 9001
sqlite_dsn: file:from-file.db
timezone: Europe/Berlin
redis_addr: redis:6379
cache_ttl: 2m
`), 0o600))
	t.Setenv("SCHEDULER_CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 9001, cfg.HTTPPort)
	require.Equal(t, "file:from-file.db", cfg.SQLiteDSN)
	require.Equal(t, "Europe/Berlin", cfg.Timezone)
	require.Equal(t, "redis:6379", cfg.RedisAddr)
	require.Equal(t, 2*time.Minute, cfg.CacheTTL)
}

func TestLoadEnvBeatsFile(t *testing.T) {
	clearSchedulerEnv(t)

	path := filepath.Join(t.TempDir(), "scheduler.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http_port: 9001\n"), 0o600))
	t.Setenv("SCHEDULER_CONFIG_FILE", path)
	t.Setenv("SCHEDULER_HTTP_PORT", "9002")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 9002, cfg.HTTPPort)
}

func TestLoadInvalidValues(t *testing.T) {
	t.Run("bad port", func(t *testing.T) {
		clearSchedulerEnv(t)
		t.Setenv("SCHEDULER_HTTP_PORT", "not-a-port")

		_, err := Load()
		require.ErrorContains(t, err, "SCHEDULER_HTTP_PORT")
	})

	t.Run("bad timezone", func(t *testing.T) {
		clearSchedulerEnv(t)
		t.Setenv("SCHEDULER_TIMEZONE", "Mars/Olympus_Mons")

		_, err := Load()
		require.ErrorContains(t, err, "SCHEDULER_TIMEZONE")
	})

	t.Run("bad ttl", func(t *testing.T) {
		clearSchedulerEnv(t)
		t.Setenv("SCHEDULER_CACHE_TTL", "-5m")

		_, err := Load()
		require.ErrorContains(t, err, "SCHEDULER_CACHE_TTL")
	})

	t.Run("bad ttl in file", func(t *testing.T) {
		clearSchedulerEnv(t)
		path := filepath.Join(t.TempDir(), "scheduler.yaml")
		require.NoError(t, os.WriteFile(path, []byte("cache_ttl: nope\n"), 0o600))
		t.Setenv("SCHEDULER_CONFIG_FILE", path)

		_, err := Load()
		require.ErrorContains(t, err, "cache_ttl")
	})

	t.Run("missing file", func(t *testing.T) {
		clearSchedulerEnv(t)
		t.Setenv("SCHEDULER_CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))

		_, err := Load()
		require.Error(t, err)
	})
}
