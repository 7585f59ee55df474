package main

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// config holds the settings shared by the subcommands. Values come from the
// environment (optionally via .env) and may be overridden by flags.
type config struct {
	DB string // GISDB_DB

	// serve
	Addr            string        // GISDB_ADDR
	RateLimit       float64       // GISDB_RATE_LIMIT, requests per second, 0 disables
	RateBurst       int           // GISDB_RATE_BURST
	ShutdownTimeout time.Duration // GISDB_SHUTDOWN_TIMEOUT
	CacheBlocks     int           // GISDB_CACHE_BLOCKS, blocks cached when serving from a store

	// build, pack
	Codec string // GISDB_CODEC

	// publish, serve -blob
	Store     string // GISDB_STORE: local, s3 or minio
	Bucket    string // GISDB_BUCKET, or the root directory for local
	Prefix    string // GISDB_PREFIX
	Region    string // GISDB_REGION
	Endpoint  string // GISDB_ENDPOINT
	AccessKey string // GISDB_ACCESS_KEY
	SecretKey string // GISDB_SECRET_KEY
	Secure    bool   // GISDB_SECURE

	// logging
	LogLevel  slog.Level // LOG_LEVEL
	LogFormat string     // LOG_FORMAT: text or json
	LogFile   string     // LOG_FILE, rotated with lumberjack
}

func defaultConfig() config {
	return config{
		Addr:            ":8080",
		RateBurst:       50,
		ShutdownTimeout: 10 * time.Second,
		CacheBlocks:     1024,
		Codec:           "none",
		Store:           "local",
		Secure:          true,
		LogLevel:        slog.LevelInfo,
		LogFormat:       "text",
	}
}

// loadConfig reads the configuration through getenv, normally os.Getenv.
func loadConfig(getenv func(string) string) (config, error) {
	c := defaultConfig()

	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	str("GISDB_DB", &c.DB)
	str("GISDB_ADDR", &c.Addr)
	str("GISDB_CODEC", &c.Codec)
	str("GISDB_STORE", &c.Store)
	str("GISDB_BUCKET", &c.Bucket)
	str("GISDB_PREFIX", &c.Prefix)
	str("GISDB_REGION", &c.Region)
	str("GISDB_ENDPOINT", &c.Endpoint)
	str("GISDB_ACCESS_KEY", &c.AccessKey)
	str("GISDB_SECRET_KEY", &c.SecretKey)
	str("LOG_FILE", &c.LogFile)

	if v := getenv("GISDB_RATE_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			return c, fmt.Errorf("GISDB_RATE_LIMIT: invalid value %q", v)
		}
		c.RateLimit = f
	}
	if v := getenv("GISDB_RATE_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return c, fmt.Errorf("GISDB_RATE_BURST: invalid value %q", v)
		}
		c.RateBurst = n
	}
	if v := getenv("GISDB_CACHE_BLOCKS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return c, fmt.Errorf("GISDB_CACHE_BLOCKS: invalid value %q", v)
		}
		c.CacheBlocks = n
	}
	if v := getenv("GISDB_SHUTDOWN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return c, fmt.Errorf("GISDB_SHUTDOWN_TIMEOUT: %w", err)
		}
		c.ShutdownTimeout = d
	}
	if v := getenv("GISDB_SECURE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return c, fmt.Errorf("GISDB_SECURE: %w", err)
		}
		c.Secure = b
	}

	switch strings.ToLower(getenv("LOG_LEVEL")) {
	case "debug":
		c.LogLevel = slog.LevelDebug
	case "warn":
		c.LogLevel = slog.LevelWarn
	case "error":
		c.LogLevel = slog.LevelError
	}
	if strings.ToLower(getenv("LOG_FORMAT")) == "json" {
		c.LogFormat = "json"
	}

	switch c.Store {
	case "local", "s3", "minio":
	default:
		return c, fmt.Errorf("GISDB_STORE: unknown store %q", c.Store)
	}
	return c, nil
}
