package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imgbridge/imgbridge/internal/guard"
)

// clearEnv blanks every variable Load reads so host environments cannot
// leak into the assertions. t.Setenv restores the originals afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"IMGBRIDGE_HTTP_PORT",
		"IMGBRIDGE_DB_PATH",
		"IMGBRIDGE_LOG_LEVEL",
		"IMGBRIDGE_LOG_FORMAT",
		"IMGBRIDGE_WATCH_DIRS",
		"IMGBRIDGE_PROFILES",
		"IMGBRIDGE_MAX_BYTES",
		"IMGBRIDGE_MAX_MEGAPIXELS",
		"IMGBRIDGE_JPEG_QUALITY",
		"IMGBRIDGE_GIF_COLORS",
		"IMGBRIDGE_STABILITY_DELAY",
		"IMGBRIDGE_RESCAN_INTERVAL",
		"IMGBRIDGE_MD5_CHUNK_SIZE",
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg := Load()

	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "imgbridge.db", cfg.DBPath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Empty(t, cfg.WatchDirs)
	assert.Empty(t, cfg.ProfilesPath)
	assert.EqualValues(t, guard.DefaultMaxBytes, cfg.MaxBytes)
	assert.EqualValues(t, guard.DefaultMaxMegapixels, cfg.MaxMegapixels)
	assert.Equal(t, 90, cfg.JPEGQuality)
	assert.Equal(t, 256, cfg.GIFColors)
	assert.Equal(t, 1, cfg.StabilityDelaySec)
	assert.Equal(t, 300, cfg.RescanIntervalSec)
	assert.EqualValues(t, 4*1024*1024, cfg.MD5ChunkSize)

	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("IMGBRIDGE_HTTP_PORT", "9090")
	t.Setenv("IMGBRIDGE_DB_PATH", "/var/lib/imgbridge/history.db")
	t.Setenv("IMGBRIDGE_LOG_FORMAT", "json")
	t.Setenv("IMGBRIDGE_WATCH_DIRS", " /data/inbox , /data/shared ,")
	t.Setenv("IMGBRIDGE_MAX_BYTES", "1048576")
	t.Setenv("IMGBRIDGE_MAX_MEGAPIXELS", "2.5")
	t.Setenv("IMGBRIDGE_JPEG_QUALITY", "75")

	cfg := Load()

	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, "/var/lib/imgbridge/history.db", cfg.DBPath)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, []string{"/data/inbox", "/data/shared"}, cfg.WatchDirs)
	assert.EqualValues(t, 1048576, cfg.MaxBytes)
	assert.EqualValues(t, 2.5, cfg.MaxMegapixels)
	assert.Equal(t, 75, cfg.JPEGQuality)
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	clearEnv(t)
	t.Setenv("IMGBRIDGE_HTTP_PORT", "eighty")
	t.Setenv("IMGBRIDGE_MAX_BYTES", "lots")

	cfg := Load()

	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.EqualValues(t, guard.DefaultMaxBytes, cfg.MaxBytes)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		clearEnv(t)
		return Load()
	}

	t.Run("port out of range", func(t *testing.T) {
		cfg := base()
		cfg.HTTPPort = 0
		assert.ErrorContains(t, cfg.Validate(), "out of range")
		cfg.HTTPPort = 70000
		assert.ErrorContains(t, cfg.Validate(), "out of range")
	})

	t.Run("empty db path", func(t *testing.T) {
		cfg := base()
		cfg.DBPath = ""
		assert.ErrorContains(t, cfg.Validate(), "db path")
	})

	t.Run("non-positive limits", func(t *testing.T) {
		cfg := base()
		cfg.MaxBytes = 0
		assert.ErrorContains(t, cfg.Validate(), "max bytes")

		cfg = base()
		cfg.MaxMegapixels = -1
		assert.ErrorContains(t, cfg.Validate(), "max megapixels")
	})

	t.Run("unknown log format", func(t *testing.T) {
		cfg := base()
		cfg.LogFormat = "xml"
		assert.ErrorContains(t, cfg.Validate(), "log format")
	})

	t.Run("missing watch dir", func(t *testing.T) {
		cfg := base()
		cfg.WatchDirs = []string{filepath.Join(t.TempDir(), "absent")}
		assert.Error(t, cfg.Validate())
	})

	t.Run("watch dir is a file", func(t *testing.T) {
		cfg := base()
		path := filepath.Join(t.TempDir(), "file.txt")
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
		cfg.WatchDirs = []string{path}
		assert.ErrorContains(t, cfg.Validate(), "not a directory")
	})

	t.Run("existing watch dir passes", func(t *testing.T) {
		cfg := base()
		cfg.WatchDirs = []string{t.TempDir()}
		assert.NoError(t, cfg.Validate())
	})
}

func TestLimitsAndAddr(t *testing.T) {
	clearEnv(t)
	t.Setenv("IMGBRIDGE_HTTP_PORT", "9191")
	t.Setenv("IMGBRIDGE_MAX_BYTES", "512")
	t.Setenv("IMGBRIDGE_MAX_MEGAPIXELS", "7")

	cfg := Load()

	assert.Equal(t, guard.Limits{MaxBytes: 512, MaxMegapixels: 7}, cfg.Limits())
	assert.Equal(t, ":9191", cfg.HTTPAddr())
}
