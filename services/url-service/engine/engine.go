// Package engine assembles the shortener from configuration: store, guard,
// cache, click pool and service.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"

	"shortlink/pkg/clock"
	"shortlink/pkg/config"
	"shortlink/pkg/logging"
	"shortlink/pkg/shortcode"
	"shortlink/services/analytics-service/aggregator"
	"shortlink/services/analytics-service/worker"
	"shortlink/services/cache-service/cache"
	"shortlink/services/url-service/allocator"
	"shortlink/services/url-service/repository"
	"shortlink/services/url-service/service"
)

type Engine struct {
	Service *service.Service
	Store   *repository.Guarded
	Cache   *cache.Cache

	clicks *worker.WorkerPool
	redis  *redis.Client
	logger *slog.Logger
}

type options struct {
	clock clock.Clock
	store repository.Store
}

type Option func(*options)

func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithStore replaces the configured backend.
func WithStore(s repository.Store) Option {
	return func(o *options) { o.store = s }
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts ...Option) (*Engine, error) {
	o := options{clock: clock.System{}}
	for _, opt := range opts {
		opt(&o)
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	backend := o.store
	if backend == nil {
		backend, err = OpenStore(ctx, cfg.Storage, logger)
		if err != nil {
			return nil, err
		}
	}

	store := repository.NewGuarded(backend, repository.GuardOptions{
		Timeout:      cfg.Storage.Timeout,
		MaxFailures:  cfg.Storage.BreakerMaxFailures,
		ResetTimeout: cfg.Storage.BreakerResetTimeout,
		Clock:        o.clock.Now,
	}, logging.Component(logger, "repository"))

	e := &Engine{Store: store, logger: logger}

	var linkCache service.LinkCache
	if cfg.Cache.LocalSize > 0 {
		if cfg.Cache.RedisAddr != "" {
			e.redis = redis.NewClient(&redis.Options{
				Addr:     cfg.Cache.RedisAddr,
				Password: cfg.Cache.RedisPassword,
				DB:       cfg.Cache.RedisDB,
			})
			pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			if err := e.redis.Ping(pingCtx).Err(); err != nil {
				logger.Warn("redis unreachable, cache degrades to local tier until it recovers", "addr", cfg.Cache.RedisAddr, "error", err)
			}
			cancel()
		}
		e.Cache = cache.New(e.redis, cache.Options{TTL: cfg.Cache.TTL, LocalSize: cfg.Cache.LocalSize})
		linkCache = e.Cache
	}

	e.clicks = worker.New(cfg.Clicks.Workers, cfg.Clicks.QueueSize, cfg.Clicks.BatchSize, store, logger)
	e.clicks.Start()

	sc := cfg.Shortener
	e.Service = service.New(service.Config{
		DefaultValidity:   time.Duration(sc.DefaultValidityMinutes) * time.Minute,
		MaxURLsPerRequest: sc.MaxURLsPerRequest,
		BaseURL:           cfg.Server.BaseURL,
	}, service.Deps{
		Store: store,
		Allocator: allocator.New(store, allocator.Config{
			Length:      sc.ShortcodeLength,
			MaxLength:   sc.MaxShortcodeLength,
			MaxAttempts: sc.MaxGenerateAttempts,
			Validator:   shortcode.NewValidator(sc.MinShortcodeLength, sc.MaxShortcodeLength),
		}),
		Aggregator: aggregator.New(loc),
		Clicks:     e.clicks,
		Cache:      linkCache,
		Clock:      o.clock,
		Logger:     logger,
	})

	logger.Info("engine started",
		"driver", cfg.Storage.Driver,
		"cache", e.Cache != nil,
		"redis", e.redis != nil,
		"click_workers", cfg.Clicks.Workers,
	)
	return e, nil
}

// OpenStore opens the backend named by cfg.Driver. Postgres schemas are
// migrated before the store is returned.
func OpenStore(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (repository.Store, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return repository.NewMemoryStore(), nil
	case config.DriverSQLite:
		return repository.OpenSQLite(ctx, cfg.DSN)
	case config.DriverPostgres:
		m, err := repository.NewMigrator(cfg.DSN, logging.Component(logger, "db"))
		if err != nil {
			return nil, err
		}
		err = m.Up()
		if cerr := m.Close(); cerr != nil {
			logger.Warn("close migrator", "error", cerr)
		}
		if err != nil {
			return nil, err
		}
		return repository.OpenPostgres(ctx, cfg.DSN, cfg.MaxOpenConns)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// Close drains pending clicks before closing the store.
func (e *Engine) Close() error {
	e.clicks.Stop()

	var errs []error
	if e.redis != nil {
		errs = append(errs, e.redis.Close())
	}
	errs = append(errs, e.Store.Close())

	e.logger.Info("engine stopped")
	return errors.Join(errs...)
}
