package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"shortlink/pkg/apperr"
	"shortlink/pkg/circuitbreaker"
	"shortlink/services/url-service/models"
)

type GuardOptions struct {
	Timeout      time.Duration
	MaxFailures  int
	ResetTimeout time.Duration
	Clock        func() time.Time
}

// Guarded bounds every call to the wrapped store with a timeout and a circuit
// breaker. Infrastructure failures come back as apperr.ErrStoreUnavailable;
// domain results (not found, duplicate key) pass through untouched.
type Guarded struct {
	store   Store
	breaker *circuitbreaker.CircuitBreaker
	timeout time.Duration
	logger  *slog.Logger
}

func NewGuarded(store Store, opts GuardOptions, logger *slog.Logger) *Guarded {
	breakerOpts := []circuitbreaker.Option{circuitbreaker.WithFailurePredicate(isInfrastructureFailure)}
	if opts.Clock != nil {
		breakerOpts = append(breakerOpts, circuitbreaker.WithClock(opts.Clock))
	}
	if opts.MaxFailures <= 0 {
		opts.MaxFailures = 5
	}

	return &Guarded{
		store:   store,
		breaker: circuitbreaker.New(opts.MaxFailures, opts.ResetTimeout, breakerOpts...),
		timeout: opts.Timeout,
		logger:  logger,
	}
}

func isInfrastructureFailure(err error) bool {
	return !errors.Is(err, ErrNotFound) &&
		!errors.Is(err, ErrDuplicateKey) &&
		!errors.Is(err, context.Canceled)
}

func (g *Guarded) BreakerState() circuitbreaker.State {
	return g.breaker.State()
}

func (g *Guarded) do(ctx context.Context, op string, fn func(context.Context) error) error {
	err := g.breaker.Call(func() error {
		if g.timeout <= 0 {
			return fn(ctx)
		}
		cctx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()
		return fn(cctx)
	})
	if err == nil || !isInfrastructureFailure(err) {
		return err
	}

	g.logger.Error("store call failed", "op", op, "error", err)
	return apperr.Wrap(apperr.ErrStoreUnavailable, op, err)
}

func (g *Guarded) Create(ctx context.Context, rec *models.URLRecord) error {
	return g.do(ctx, "create", func(ctx context.Context) error {
		return g.store.Create(ctx, rec)
	})
}

func (g *Guarded) FindByShortcode(ctx context.Context, code string) (*models.URLRecord, error) {
	var rec *models.URLRecord
	err := g.do(ctx, "find", func(ctx context.Context) error {
		var err error
		rec, err = g.store.FindByShortcode(ctx, code)
		return err
	})
	return rec, err
}

func (g *Guarded) ListAll(ctx context.Context) ([]*models.URLRecord, error) {
	var recs []*models.URLRecord
	err := g.do(ctx, "list", func(ctx context.Context) error {
		var err error
		recs, err = g.store.ListAll(ctx)
		return err
	})
	return recs, err
}

func (g *Guarded) AppendClick(ctx context.Context, code string, click models.ClickEvent) error {
	return g.do(ctx, "append click", func(ctx context.Context) error {
		return g.store.AppendClick(ctx, code, click)
	})
}

func (g *Guarded) AppendClicks(ctx context.Context, ref models.Ref, clicks []models.ClickEvent) error {
	return g.do(ctx, "append clicks", func(ctx context.Context) error {
		return g.store.AppendClicks(ctx, ref, clicks)
	})
}

func (g *Guarded) MarkExpired(ctx context.Context, code string) error {
	return g.do(ctx, "mark expired", func(ctx context.Context) error {
		return g.store.MarkExpired(ctx, code)
	})
}

func (g *Guarded) Delete(ctx context.Context, code string) error {
	return g.do(ctx, "delete", func(ctx context.Context) error {
		return g.store.Delete(ctx, code)
	})
}

func (g *Guarded) Totals(ctx context.Context) (Totals, error) {
	var t Totals
	err := g.do(ctx, "totals", func(ctx context.Context) error {
		var err error
		t, err = g.store.Totals(ctx)
		return err
	})
	return t, err
}

func (g *Guarded) Close() error {
	return g.store.Close()
}
