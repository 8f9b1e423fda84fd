package config_test

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/stock-ledger/config"
)

func TestLoad_Defaults(t *testing.T) {
	// GIVEN: A clean environment
	for _, k := range []string{"PORT", "DB_DRIVER", "DB_DSN", "REDIS_ADDRESS", "LOG_LEVEL", "APPEND_MAX_ATTEMPTS", "LOCK_TTL", "INTEGRITY_INTERVAL", "CORS_ORIGINS"} {
		t.Setenv(k, "")
	}
	t.Chdir(t.TempDir())

	// WHEN: Loading with no flags
	cfg, err := config.Load(nil)

	// THEN: Defaults apply
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, config.DriverSQLite, cfg.DBDriver)
	assert.Equal(t, "stock.db", cfg.DBDSN)
	assert.Equal(t, 5, cfg.AppendMaxAttempts)
	assert.Equal(t, time.Hour, cfg.IntegrityInterval)
	assert.Equal(t, ":8080", cfg.Addr())
}

func TestLoad_EnvThenFlags(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "9000")
	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("DB_DSN", "postgres://localhost/stock")
	t.Setenv("LOCK_TTL", "3s")
	t.Setenv("INTEGRITY_INTERVAL", "0")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test,,")
	t.Setenv("APPEND_MAX_ATTEMPTS", "")
	t.Setenv("REDIS_ADDRESS", "")

	cfg, err := config.Load([]string{"-port", "9100", "-redis", "localhost:6379"})
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port, "flag wins over env")
	assert.Equal(t, config.DriverPostgres, cfg.DBDriver)
	assert.Equal(t, "postgres://localhost/stock", cfg.DBDSN)
	assert.Equal(t, "localhost:6379", cfg.RedisAddress)
	assert.Equal(t, 3*time.Second, cfg.LockTTL)
	assert.Zero(t, cfg.IntegrityInterval)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
}

func TestFromEnv_ReportsEveryBadValue(t *testing.T) {
	env := map[string]string{
		"PORT":                "eighty",
		"LOCK_TTL":            "soon",
		"APPEND_MAX_ATTEMPTS": "x",
		"INTEGRITY_INTERVAL":  "hourly",
	}
	_, err := config.FromEnv(func(k string) string { return env[k] }, config.Default())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "PORT")
	assert.Contains(t, err.Error(), "LOCK_TTL")
	assert.Contains(t, err.Error(), "APPEND_MAX_ATTEMPTS")
	assert.Contains(t, err.Error(), "INTEGRITY_INTERVAL")
}

func TestApplyFlags_UnknownFlag(t *testing.T) {
	_, err := config.ApplyFlags(config.Default(), []string{"-nope"}, io.Discard)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		errMsg string
	}{
		{"default is valid", func(*config.Config) {}, ""},
		{"memory needs no dsn", func(c *config.Config) { c.DBDriver = config.DriverMemory; c.DBDSN = "" }, ""},
		{"sqlite needs dsn", func(c *config.Config) { c.DBDSN = "" }, "needs a DSN"},
		{"unknown driver", func(c *config.Config) { c.DBDriver = "oracle" }, "unknown db driver"},
		{"port range", func(c *config.Config) { c.Port = 70000 }, "out of range"},
		{"attempts", func(c *config.Config) { c.AppendMaxAttempts = 0 }, "at least 1"},
		{"lock ttl with redis", func(c *config.Config) { c.RedisAddress = "r:6379"; c.LockTTL = 0 }, "lock TTL"},
		{"negative integrity interval", func(c *config.Config) { c.IntegrityInterval = -time.Second }, "integrity interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
