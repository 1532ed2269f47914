package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shortlink.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 3001, cfg.Server.Port)
	assert.Equal(t, 30, cfg.Shortener.DefaultValidityMinutes)
	assert.Equal(t, 5, cfg.Shortener.MaxURLsPerRequest)
	assert.Equal(t, 6, cfg.Shortener.ShortcodeLength)
	assert.Equal(t, 3, cfg.Shortener.MinShortcodeLength)
	assert.Equal(t, 10, cfg.Shortener.MaxShortcodeLength)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, ":3001", cfg.Addr())
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8080
  request_timeout: 2s
shortener:
  default_validity_minutes: 60
  max_urls_per_request: 3
storage:
  driver: sqlite
  timeout: 750ms
cache:
  redis_addr: localhost:6379
  ttl: 1m
log:
  level: debug
  format: text
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 2*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, 60, cfg.Shortener.DefaultValidityMinutes)
	assert.Equal(t, 3, cfg.Shortener.MaxURLsPerRequest)
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, ":memory:", cfg.Storage.DSN, "sqlite falls back to an in-memory database")
	assert.Equal(t, 750*time.Millisecond, cfg.Storage.Timeout)
	assert.Equal(t, "localhost:6379", cfg.Cache.RedisAddr)
	assert.Equal(t, time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Незаданные поля сохраняют значения по умолчанию
	assert.Equal(t, 6, cfg.Shortener.ShortcodeLength)
}

func TestLoadEnvOverridesYAML(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 8080\nshortener:\n  shortcode_length: 7\n")

	t.Setenv("PORT", "9000")
	t.Setenv("SHORTCODE_LENGTH", "8")
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/db?sslmode=disable")
	t.Setenv("STORE_TIMEOUT", "1s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 8, cfg.Shortener.ShortcodeLength)
	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, time.Second, cfg.Storage.Timeout)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad int", map[string]string{"PORT": "abc"}, "PORT"},
		{"bad duration", map[string]string{"STORE_TIMEOUT": "soon"}, "STORE_TIMEOUT"},
		{"zero validity", map[string]string{"DEFAULT_VALIDITY_MINUTES": "0"}, "default_validity_minutes"},
		{"length outside bounds", map[string]string{"SHORTCODE_LENGTH": "12"}, "shortcode_length"},
		{"inverted bounds", map[string]string{"MIN_SHORTCODE_LENGTH": "11"}, "bounds"},
		{"postgres without dsn", map[string]string{"STORE_DRIVER": "postgres"}, "storage.dsn"},
		{"unknown driver", map[string]string{"STORE_DRIVER": "mongo"}, "unknown storage.driver"},
		{"negative cache size", map[string]string{"CACHE_LOCAL_SIZE": "-1"}, "cache.local_size"},
		{"unknown level", map[string]string{"LOG_LEVEL": "fatal"}, "log.level"},
		{"unknown timezone", map[string]string{"TZ_NAME": "Mars/Olympus"}, "timezone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "read config file")
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "server: [unterminated")
	_, err := Load(path)
	assert.ErrorContains(t, err, "parse config file")
}

func TestLocation(t *testing.T) {
	cfg := Default()
	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	cfg.Shortener.Timezone = "UTC"
	loc, err = cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())
}
