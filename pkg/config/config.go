// Package config loads shortlink settings from defaults, an optional YAML
// file and environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Shortener ShortenerConfig `yaml:"shortener"`
	Storage   StorageConfig   `yaml:"storage"`
	Cache     CacheConfig     `yaml:"cache"`
	Clicks    ClicksConfig    `yaml:"clicks"`
	Log       LogConfig       `yaml:"log"`
	Sentry    SentryConfig    `yaml:"sentry"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	BaseURL         string        `yaml:"base_url"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	GRPCAddr        string        `yaml:"grpc_addr"`
	Mode            string        `yaml:"mode"`
}

type ShortenerConfig struct {
	DefaultValidityMinutes int    `yaml:"default_validity_minutes"`
	MaxURLsPerRequest      int    `yaml:"max_urls_per_request"`
	ShortcodeLength        int    `yaml:"shortcode_length"`
	MinShortcodeLength     int    `yaml:"min_shortcode_length"`
	MaxShortcodeLength     int    `yaml:"max_shortcode_length"`
	MaxGenerateAttempts    int    `yaml:"max_generate_attempts"`
	Timezone               string `yaml:"timezone"`
}

type StorageConfig struct {
	Driver              string        `yaml:"driver"`
	DSN                 string        `yaml:"dsn"`
	Timeout             time.Duration `yaml:"timeout"`
	MaxOpenConns        int           `yaml:"max_open_conns"`
	BreakerMaxFailures  int           `yaml:"breaker_max_failures"`
	BreakerResetTimeout time.Duration `yaml:"breaker_reset_timeout"`
}

type CacheConfig struct {
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	TTL           time.Duration `yaml:"ttl"`
	LocalSize     int           `yaml:"local_size"`
}

type ClicksConfig struct {
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`
	BatchSize int `yaml:"batch_size"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
	ShipURL    string `yaml:"ship_url"`
	ShipToken  string `yaml:"ship_token"`
	Stack      string `yaml:"stack"`
}

type SentryConfig struct {
	DSN         string `yaml:"dsn"`
	Environment string `yaml:"environment"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            3001,
			BaseURL:         "http://localhost:3001",
			ShutdownTimeout: 5 * time.Second,
			RequestTimeout:  5 * time.Second,
			Mode:            "release",
		},
		Shortener: ShortenerConfig{
			DefaultValidityMinutes: 30,
			MaxURLsPerRequest:      5,
			ShortcodeLength:        6,
			MinShortcodeLength:     3,
			MaxShortcodeLength:     10,
			MaxGenerateAttempts:    10,
			Timezone:               "Local",
		},
		Storage: StorageConfig{
			Driver:              DriverMemory,
			Timeout:             3 * time.Second,
			MaxOpenConns:        25,
			BreakerMaxFailures:  5,
			BreakerResetTimeout: 10 * time.Second,
		},
		Cache: CacheConfig{
			TTL:       5 * time.Minute,
			LocalSize: 1024,
		},
		Clicks: ClicksConfig{
			Workers:   8,
			QueueSize: 256,
			BatchSize: 32,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
			Stack:      "backend",
		},
		Sentry: SentryConfig{
			Environment: "development",
		},
	}
}

// Load builds the configuration. An empty path skips the YAML layer.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if cfg.Storage.Driver == DriverSQLite && cfg.Storage.DSN == "" {
		cfg.Storage.DSN = ":memory:"
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	var errs []error
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	setString := func(key string, dst *string) {
		*dst = getEnv(key, *dst)
	}

	setInt("PORT", &cfg.Server.Port)
	setString("BASE_URL", &cfg.Server.BaseURL)
	setDuration("SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	setDuration("REQUEST_TIMEOUT", &cfg.Server.RequestTimeout)
	setString("GRPC_ADDR", &cfg.Server.GRPCAddr)
	setString("GIN_MODE", &cfg.Server.Mode)

	setInt("DEFAULT_VALIDITY_MINUTES", &cfg.Shortener.DefaultValidityMinutes)
	setInt("MAX_URLS_PER_REQUEST", &cfg.Shortener.MaxURLsPerRequest)
	setInt("SHORTCODE_LENGTH", &cfg.Shortener.ShortcodeLength)
	setInt("MIN_SHORTCODE_LENGTH", &cfg.Shortener.MinShortcodeLength)
	setInt("MAX_SHORTCODE_LENGTH", &cfg.Shortener.MaxShortcodeLength)
	setInt("MAX_GENERATE_ATTEMPTS", &cfg.Shortener.MaxGenerateAttempts)
	setString("TZ_NAME", &cfg.Shortener.Timezone)

	setString("STORE_DRIVER", &cfg.Storage.Driver)
	setString("DATABASE_URL", &cfg.Storage.DSN)
	setDuration("STORE_TIMEOUT", &cfg.Storage.Timeout)
	setInt("DB_MAX_OPEN_CONNS", &cfg.Storage.MaxOpenConns)
	setInt("BREAKER_MAX_FAILURES", &cfg.Storage.BreakerMaxFailures)
	setDuration("BREAKER_RESET_TIMEOUT", &cfg.Storage.BreakerResetTimeout)

	setString("REDIS_ADDR", &cfg.Cache.RedisAddr)
	setString("REDIS_PASSWORD", &cfg.Cache.RedisPassword)
	setInt("REDIS_DB", &cfg.Cache.RedisDB)
	setDuration("CACHE_TTL", &cfg.Cache.TTL)
	setInt("CACHE_LOCAL_SIZE", &cfg.Cache.LocalSize)

	setInt("CLICK_WORKERS", &cfg.Clicks.Workers)
	setInt("CLICK_QUEUE_SIZE", &cfg.Clicks.QueueSize)
	setInt("CLICK_BATCH_SIZE", &cfg.Clicks.BatchSize)

	setString("LOG_LEVEL", &cfg.Log.Level)
	setString("LOG_FORMAT", &cfg.Log.Format)
	setString("LOG_FILE", &cfg.Log.File)
	setString("LOG_SHIP_URL", &cfg.Log.ShipURL)
	setString("LOG_SHIP_TOKEN", &cfg.Log.ShipToken)
	setString("LOG_STACK", &cfg.Log.Stack)

	setString("SENTRY_DSN", &cfg.Sentry.DSN)
	setString("SENTRY_ENVIRONMENT", &cfg.Sentry.Environment)

	return errors.Join(errs...)
}

func (c Config) Validate() error {
	var errs []error
	s := c.Shortener

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if s.DefaultValidityMinutes <= 0 {
		errs = append(errs, errors.New("shortener.default_validity_minutes must be positive"))
	}
	if s.MaxURLsPerRequest <= 0 {
		errs = append(errs, errors.New("shortener.max_urls_per_request must be positive"))
	}
	if s.MinShortcodeLength <= 0 || s.MinShortcodeLength > s.MaxShortcodeLength {
		errs = append(errs, fmt.Errorf("shortener shortcode bounds [%d,%d] are invalid", s.MinShortcodeLength, s.MaxShortcodeLength))
	}
	if s.ShortcodeLength < s.MinShortcodeLength || s.ShortcodeLength > s.MaxShortcodeLength {
		errs = append(errs, fmt.Errorf("shortener.shortcode_length %d outside [%d,%d]", s.ShortcodeLength, s.MinShortcodeLength, s.MaxShortcodeLength))
	}
	if s.MaxGenerateAttempts <= 0 {
		errs = append(errs, errors.New("shortener.max_generate_attempts must be positive"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}

	switch c.Storage.Driver {
	case DriverMemory, DriverSQLite:
	case DriverPostgres:
		if c.Storage.DSN == "" {
			errs = append(errs, errors.New("storage.dsn is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.driver %q", c.Storage.Driver))
	}
	if c.Storage.Timeout <= 0 {
		errs = append(errs, errors.New("storage.timeout must be positive"))
	}

	if c.Cache.LocalSize < 0 {
		errs = append(errs, errors.New("cache.local_size must not be negative"))
	}

	if c.Clicks.Workers <= 0 || c.Clicks.QueueSize < 0 || c.Clicks.BatchSize <= 0 {
		errs = append(errs, errors.New("clicks.workers and clicks.batch_size must be positive"))
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log.level %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("unknown log.format %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// Location resolves the timezone used for hour-of-day statistics.
func (c Config) Location() (*time.Location, error) {
	switch c.Shortener.Timezone {
	case "", "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Shortener.Timezone)
	if err != nil {
		return nil, fmt.Errorf("shortener.timezone: %w", err)
	}
	return loc, nil
}

func (c Config) Addr() string {
	return ":" + strconv.Itoa(c.Server.Port)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
