package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/imgbridge/imgbridge/internal/guard"
)

// Config is the daemon configuration, read from IMGBRIDGE_* environment
// variables. A .env file in the working directory is honored when present.
type Config struct {
	HTTPPort     int
	DBPath       string
	LogLevel     string
	LogFormat    string // text or json
	WatchDirs    []string
	ProfilesPath string

	MaxBytes      int64
	MaxMegapixels float64

	JPEGQuality int
	GIFColors   int

	StabilityDelaySec int
	RescanIntervalSec int
	MD5ChunkSize      int64
}

// Load reads the configuration from the environment.
func Load() *Config {
	// Missing .env is the normal case; real deployments set the
	// environment directly.
	_ = godotenv.Load()

	cfg := &Config{}
	cfg.HTTPPort = getEnvInt("IMGBRIDGE_HTTP_PORT", 8080)
	cfg.DBPath = getEnv("IMGBRIDGE_DB_PATH", "imgbridge.db")
	cfg.LogLevel = getEnv("IMGBRIDGE_LOG_LEVEL", "info")
	cfg.LogFormat = getEnv("IMGBRIDGE_LOG_FORMAT", "text")
	cfg.WatchDirs = splitAndTrim(os.Getenv("IMGBRIDGE_WATCH_DIRS"))
	cfg.ProfilesPath = getEnv("IMGBRIDGE_PROFILES", "")
	cfg.MaxBytes = getEnvInt64("IMGBRIDGE_MAX_BYTES", guard.DefaultMaxBytes)
	cfg.MaxMegapixels = getEnvFloat("IMGBRIDGE_MAX_MEGAPIXELS", guard.DefaultMaxMegapixels)
	cfg.JPEGQuality = getEnvInt("IMGBRIDGE_JPEG_QUALITY", 90)
	cfg.GIFColors = getEnvInt("IMGBRIDGE_GIF_COLORS", 256)
	cfg.StabilityDelaySec = getEnvInt("IMGBRIDGE_STABILITY_DELAY", 1)
	cfg.RescanIntervalSec = getEnvInt("IMGBRIDGE_RESCAN_INTERVAL", 300)
	cfg.MD5ChunkSize = getEnvInt64("IMGBRIDGE_MD5_CHUNK_SIZE", 4*1024*1024)
	return cfg
}

// Validate reports configuration values the daemon cannot run with.
func (c *Config) Validate() error {
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("http port %d is out of range", c.HTTPPort)
	}
	if c.DBPath == "" {
		return fmt.Errorf("db path must not be empty")
	}
	if c.MaxBytes <= 0 {
		return fmt.Errorf("max bytes must be positive, got %d", c.MaxBytes)
	}
	if c.MaxMegapixels <= 0 {
		return fmt.Errorf("max megapixels must be positive, got %g", c.MaxMegapixels)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log format must be text or json, got %q", c.LogFormat)
	}
	for _, dir := range c.WatchDirs {
		fi, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("watch dir %s: %w", dir, err)
		}
		if !fi.IsDir() {
			return fmt.Errorf("watch dir %s is not a directory", dir)
		}
	}
	return nil
}

// Limits builds the resource guard ceilings from the configuration.
func (c *Config) Limits() guard.Limits {
	return guard.Limits{MaxBytes: c.MaxBytes, MaxMegapixels: c.MaxMegapixels}
}

// HTTPAddr returns the listen address for the API server.
func (c *Config) HTTPAddr() string { return fmt.Sprintf(":%d", c.HTTPPort) }

func splitAndTrim(s string) []string {
	if s == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getEnvInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return i
}

func getEnvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
