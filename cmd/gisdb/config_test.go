package main

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapEnv(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoadConfig_Defaults(t *testing.T) {
	c, err := loadConfig(mapEnv(nil))
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), c)
	assert.Equal(t, ":8080", c.Addr)
	assert.Zero(t, c.RateLimit)
	assert.Equal(t, "local", c.Store)
}

func TestLoadConfig_Env(t *testing.T) {
	c, err := loadConfig(mapEnv(map[string]string{
		"GISDB_DB":               "/data/airports.gdb",
		"GISDB_ADDR":             "127.0.0.1:9000",
		"GISDB_RATE_LIMIT":       "12.5",
		"GISDB_RATE_BURST":       "5",
		"GISDB_SHUTDOWN_TIMEOUT": "3s",
		"GISDB_STORE":            "minio",
		"GISDB_BUCKET":           "navdata",
		"GISDB_SECURE":           "false",
		"LOG_LEVEL":              "DEBUG",
		"LOG_FORMAT":             "json",
	}))
	require.NoError(t, err)

	assert.Equal(t, "/data/airports.gdb", c.DB)
	assert.Equal(t, "127.0.0.1:9000", c.Addr)
	assert.InDelta(t, 12.5, c.RateLimit, 0)
	assert.Equal(t, 5, c.RateBurst)
	assert.Equal(t, 3*time.Second, c.ShutdownTimeout)
	assert.Equal(t, "minio", c.Store)
	assert.Equal(t, "navdata", c.Bucket)
	assert.False(t, c.Secure)
	assert.Equal(t, slog.LevelDebug, c.LogLevel)
	assert.Equal(t, "json", c.LogFormat)
}

func TestLoadConfig_Invalid(t *testing.T) {
	for key, val := range map[string]string{
		"GISDB_RATE_LIMIT":       "-1",
		"GISDB_RATE_BURST":       "0",
		"GISDB_CACHE_BLOCKS":     "many",
		"GISDB_SHUTDOWN_TIMEOUT": "soon",
		"GISDB_SECURE":           "maybe",
		"GISDB_STORE":            "ftp",
	} {
		t.Run(key, func(t *testing.T) {
			_, err := loadConfig(mapEnv(map[string]string{key: val}))
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}
