// Package repository persists URL records and their click logs.
//
// Every Store implementation guarantees that Create is atomic with respect to
// shortcode uniqueness and that AppendClicks and MarkExpired are atomic
// per-record mutations.
package repository

import (
	"context"

	"shortlink/pkg/apperr"
	"shortlink/services/url-service/models"
)

var (
	ErrNotFound     = apperr.ErrNotFound
	ErrDuplicateKey = apperr.ErrDuplicateKey
)

type Store interface {
	// Create inserts rec. It returns ErrDuplicateKey if the shortcode exists.
	Create(ctx context.Context, rec *models.URLRecord) error
	// FindByShortcode returns a copy of the record with its full click log.
	FindByShortcode(ctx context.Context, code string) (*models.URLRecord, error)
	// ListAll returns every record in creation order.
	ListAll(ctx context.Context) ([]*models.URLRecord, error)
	AppendClick(ctx context.Context, code string, click models.ClickEvent) error
	// AppendClicks appends clicks in order, all or nothing, to the record ref
	// names. It returns ErrNotFound when the code is missing or now belongs to
	// a record created at another time.
	AppendClicks(ctx context.Context, ref models.Ref, clicks []models.ClickEvent) error
	// MarkExpired sets the expiry flag. It never clears it.
	MarkExpired(ctx context.Context, code string) error
	Delete(ctx context.Context, code string) error
	Totals(ctx context.Context) (Totals, error)
	Close() error
}

type Totals struct {
	URLs   int
	Clicks int
}
