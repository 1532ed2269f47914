// Package service implements the shortener use cases on top of a Store:
// shortening, listing, statistics, deletion and the redirect path.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"shortlink/pkg/apperr"
	"shortlink/pkg/clock"
	"shortlink/pkg/logging"
	"shortlink/pkg/shortcode"
	"shortlink/services/analytics-service/aggregator"
	"shortlink/services/url-service/allocator"
	"shortlink/services/url-service/expiry"
	"shortlink/services/url-service/models"
	"shortlink/services/url-service/repository"
)

const Version = "1.0.0"

// maxCreateRetries bounds how often a generated code is redrawn after losing
// a uniqueness race in the store.
const maxCreateRetries = 3

// errStaleHead marks a cached head the store no longer agrees with.
var errStaleHead = errors.New("cached record head is stale")

// ClickSink applies a click to the record ref names and returns once the
// store acknowledged it.
type ClickSink interface {
	Submit(ctx context.Context, ref models.Ref, click models.ClickEvent) error
}

type LinkCache interface {
	Get(ctx context.Context, code string) (*models.URLRecord, bool, error)
	Set(ctx context.Context, rec *models.URLRecord) error
	Delete(ctx context.Context, code string) error
}

type Config struct {
	DefaultValidity   time.Duration
	MaxURLsPerRequest int
	BaseURL           string
}

type Deps struct {
	Store      repository.Store
	Allocator  *allocator.Allocator
	Aggregator *aggregator.Aggregator
	Clicks     ClickSink
	Cache      LinkCache
	Clock      clock.Clock
	Logger     *slog.Logger
}

type Service struct {
	store      repository.Store
	allocator  *allocator.Allocator
	policy     *expiry.Policy
	aggregator *aggregator.Aggregator
	clicks     ClickSink
	cache      LinkCache
	clock      clock.Clock
	cfg        Config
	logger     *slog.Logger
	startedAt  time.Time
}

func New(cfg Config, deps Deps) *Service {
	if deps.Clock == nil {
		deps.Clock = clock.System{}
	}
	if deps.Clicks == nil {
		deps.Clicks = DirectClicks(deps.Store)
	}
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	if deps.Aggregator == nil {
		deps.Aggregator = aggregator.New(time.Local)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Service{
		store:      deps.Store,
		allocator:  deps.Allocator,
		policy:     expiry.New(deps.Clock, deps.Store),
		aggregator: deps.Aggregator,
		clicks:     deps.Clicks,
		cache:      deps.Cache,
		clock:      deps.Clock,
		cfg:        cfg,
		logger:     logging.Component(deps.Logger, "service"),
		startedAt:  deps.Clock.Now(),
	}
}

type ShortenRequest struct {
	URLs []string
	// Validity in minutes; nil selects the configured default.
	Validity  *int
	Shortcode string
}

// Shorten creates one record per URL. The batch is not atomic: when an item
// fails, the records created before it stay and are returned with the error.
func (s *Service) Shorten(ctx context.Context, req ShortenRequest) ([]URLView, error) {
	if len(req.URLs) == 0 {
		return nil, apperr.InvalidInput("URLs array is required")
	}
	if len(req.URLs) > s.cfg.MaxURLsPerRequest {
		return nil, apperr.InvalidInput(fmt.Sprintf("Maximum %d URLs allowed", s.cfg.MaxURLsPerRequest))
	}

	validity := s.cfg.DefaultValidity
	if req.Validity != nil {
		if *req.Validity <= 0 {
			return nil, apperr.InvalidInput("Validity must be a positive number of minutes")
		}
		validity = time.Duration(*req.Validity) * time.Minute
	}
	if req.Shortcode != "" {
		if err := s.allocator.ValidateCustom(req.Shortcode); err != nil {
			return nil, err
		}
	}

	createdAt := s.clock.Now()
	expiresAt := createdAt.Add(validity)

	created := make([]URLView, 0, len(req.URLs))
	for i, raw := range req.URLs {
		if !shortcode.IsValidURL(raw) {
			return created, apperr.InvalidInput("Invalid URL: " + raw)
		}

		rec, err := s.create(ctx, raw, req.Shortcode, i, len(req.URLs), createdAt, expiresAt)
		if err != nil {
			if len(created) > 0 {
				s.logger.Warn("batch partially created", "created", len(created), "total", len(req.URLs), "error", err)
			}
			return created, err
		}

		s.logger.Info("URL shortened", "shortcode", rec.Shortcode, "expires_at", rec.ExpiresAt)
		created = append(created, s.view(rec))
	}

	return created, nil
}

func (s *Service) create(ctx context.Context, raw, custom string, index, total int, createdAt, expiresAt time.Time) (*models.URLRecord, error) {
	for attempt := 0; ; attempt++ {
		code, err := s.allocator.Allocate(ctx, custom, index, total)
		if err != nil {
			return nil, err
		}

		rec := &models.URLRecord{
			Shortcode:   code,
			OriginalURL: raw,
			CreatedAt:   createdAt,
			ExpiresAt:   expiresAt,
			Clicks:      []models.ClickEvent{},
		}

		err = s.store.Create(ctx, rec)
		switch {
		case err == nil:
			// Another node may have served a previous record under this code.
			s.invalidate(ctx, code)
			return rec, nil
		case errors.Is(err, repository.ErrDuplicateKey) && custom != "":
			return nil, allocator.Taken(code)
		case errors.Is(err, repository.ErrDuplicateKey) && attempt < maxCreateRetries:
			s.logger.Debug("generated shortcode lost a race, retrying", "shortcode", code)
			continue
		default:
			return nil, err
		}
	}
}

func (s *Service) List(ctx context.Context) ([]URLView, error) {
	recs, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]URLView, 0, len(recs))
	for _, rec := range recs {
		views = append(views, s.view(rec))
	}
	return views, nil
}

func (s *Service) Stats(ctx context.Context, code string) (*StatsView, error) {
	rec, err := s.store.FindByShortcode(ctx, code)
	if err != nil {
		return nil, notFound(err)
	}

	stats := s.aggregator.Aggregate(rec.Clicks)
	view := s.view(rec)
	view.Summary = stats.Summary

	return &StatsView{
		URLView:          view,
		ClicksByHour:     stats.ClicksByHour,
		ClicksByReferrer: stats.ClicksByReferrer,
		RecentClicks:     stats.RecentClicks,
	}, nil
}

// Redirect resolves code for a visitor and records the click. The target is
// returned only after the click has been acknowledged by the store.
func (s *Service) Redirect(ctx context.Context, code string, visitor models.Visitor) (string, error) {
	rec, cached, err := s.lookup(ctx, code)
	if err != nil {
		return "", s.missing(code, err)
	}

	target, err := s.follow(ctx, rec, visitor, !cached)
	if !errors.Is(err, errStaleHead) {
		return target, err
	}

	s.logger.Debug("cached head is stale, resolving from store", "shortcode", code)
	s.invalidate(ctx, code)
	rec, err = s.store.FindByShortcode(ctx, code)
	if err != nil {
		return "", s.missing(code, err)
	}
	s.cacheSet(ctx, rec)
	return s.follow(ctx, rec, visitor, true)
}

// follow applies expiry to rec and records the click against it. A head that
// did not come straight from the store is not trusted with an expiry verdict
// or a missing record; those come back as errStaleHead.
func (s *Service) follow(ctx context.Context, rec *models.URLRecord, visitor models.Visitor, fresh bool) (string, error) {
	code := rec.Shortcode
	if !fresh && s.policy.IsExpired(rec) {
		return "", errStaleHead
	}

	rec, err := s.policy.Check(ctx, rec)
	if err != nil {
		return "", s.dropStale(ctx, code, err)
	}
	if rec.IsExpired {
		s.logger.Warn("short URL expired", "shortcode", code, "expired_at", rec.ExpiresAt)
		return "", apperr.New(apperr.ErrGone, "Short URL has expired")
	}

	if err := s.clicks.Submit(ctx, rec.Ref(), visitor.Click(s.clock.Now())); err != nil {
		if !fresh && errors.Is(err, apperr.ErrNotFound) {
			return "", errStaleHead
		}
		return "", s.dropStale(ctx, code, err)
	}

	s.logger.Info("click recorded", "shortcode", code, "ip", visitor.IP)
	return rec.OriginalURL, nil
}

func (s *Service) Delete(ctx context.Context, code string) error {
	if err := s.store.Delete(ctx, code); err != nil {
		return notFound(err)
	}
	s.invalidate(ctx, code)

	s.logger.Info("URL deleted", "shortcode", code)
	return nil
}

func (s *Service) Health(ctx context.Context) (Health, error) {
	totals, err := s.store.Totals(ctx)
	if err != nil {
		return Health{}, err
	}

	now := s.clock.Now()
	return Health{
		Status:      "ok",
		Uptime:      now.Sub(s.startedAt).Seconds(),
		Timestamp:   now,
		TotalURLs:   totals.URLs,
		TotalClicks: totals.Clicks,
		Version:     Version,
	}, nil
}

// lookup returns the head for code and whether it came from the cache.
func (s *Service) lookup(ctx context.Context, code string) (*models.URLRecord, bool, error) {
	if s.cache != nil {
		rec, found, err := s.cache.Get(ctx, code)
		if err != nil {
			s.logger.Warn("cache read failed", "shortcode", code, "error", err)
		}
		if found {
			return rec, true, nil
		}
	}

	rec, err := s.store.FindByShortcode(ctx, code)
	if err != nil {
		return nil, false, err
	}
	s.cacheSet(ctx, rec)
	return rec, false, nil
}

func (s *Service) missing(code string, err error) error {
	if errors.Is(err, apperr.ErrNotFound) {
		s.logger.Warn("short URL not found", "shortcode", code)
	}
	return notFound(err)
}

// dropStale handles a record that vanished between lookup and write.
func (s *Service) dropStale(ctx context.Context, code string, err error) error {
	if errors.Is(err, apperr.ErrNotFound) {
		s.invalidate(ctx, code)
		return notFound(err)
	}
	return err
}

func (s *Service) cacheSet(ctx context.Context, rec *models.URLRecord) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, rec); err != nil {
		s.logger.Warn("cache write failed", "shortcode", rec.Shortcode, "error", err)
	}
}

func (s *Service) invalidate(ctx context.Context, code string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, code); err != nil {
		s.logger.Error("cache invalidation failed", "shortcode", code, "error", err)
	}
}

func (s *Service) view(rec *models.URLRecord) URLView {
	clicks := rec.Clicks
	if clicks == nil {
		clicks = []models.ClickEvent{}
	}
	return URLView{
		Shortcode:   rec.Shortcode,
		ShortURL:    s.cfg.BaseURL + "/" + rec.Shortcode,
		OriginalURL: rec.OriginalURL,
		CreatedAt:   rec.CreatedAt,
		ExpiresAt:   rec.ExpiresAt,
		Clicks:      clicks,
		IsExpired:   s.policy.IsExpired(rec),
		Summary:     s.aggregator.Summarize(clicks),
	}
}

func notFound(err error) error {
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.Wrap(apperr.ErrNotFound, "Short URL not found", err)
	}
	return err
}

type directClicks struct {
	store repository.Store
}

// DirectClicks appends each click straight to the store.
func DirectClicks(store repository.Store) ClickSink {
	return directClicks{store: store}
}

func (d directClicks) Submit(ctx context.Context, ref models.Ref, click models.ClickEvent) error {
	return d.store.AppendClicks(ctx, ref, []models.ClickEvent{click})
}
