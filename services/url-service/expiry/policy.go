// Package expiry decides whether a record is still live.
package expiry

import (
	"context"

	"shortlink/pkg/clock"
	"shortlink/services/url-service/models"
)

type Marker interface {
	MarkExpired(ctx context.Context, code string) error
}

type Policy struct {
	clock clock.Clock
	store Marker
}

func New(c clock.Clock, store Marker) *Policy {
	return &Policy{clock: c, store: store}
}

// IsExpired derives expiry at read time without touching the store.
func (p *Policy) IsExpired(rec *models.URLRecord) bool {
	return rec.IsExpired || p.clock.Now().After(rec.ExpiresAt)
}

// Check persists the expiry flip the first time a record is seen past its
// expiry. The returned record reflects the flip; rec itself is not modified.
func (p *Policy) Check(ctx context.Context, rec *models.URLRecord) (*models.URLRecord, error) {
	if rec.IsExpired || !p.clock.Now().After(rec.ExpiresAt) {
		return rec, nil
	}

	if err := p.store.MarkExpired(ctx, rec.Shortcode); err != nil {
		return rec, err
	}

	flipped := *rec
	flipped.IsExpired = true
	return &flipped, nil
}
