// Package allocator picks shortcodes for new records: custom codes (with the
// batch suffix rule) or random ones.
//
// The occupancy check here only avoids obvious collisions. The store's atomic
// Create is what guarantees uniqueness.
package allocator

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strconv"

	"shortlink/pkg/apperr"
	"shortlink/pkg/shortcode"
	"shortlink/services/url-service/models"
)

var ErrExhausted = errors.New("allocator: no free shortcode found")

// reserved are the path segments the HTTP router serves itself. A record
// under one of them could never be reached by its short URL.
var reserved = map[string]struct{}{
	"api":     {},
	"health":  {},
	"shorten": {},
	"stats":   {},
	"urls":    {},
}

func Reserved(code string) bool {
	_, ok := reserved[code]
	return ok
}

type Finder interface {
	FindByShortcode(ctx context.Context, code string) (*models.URLRecord, error)
}

type Config struct {
	// Length of generated codes.
	Length int
	// MaxLength caps how far Length may grow when codes keep colliding.
	MaxLength int
	// MaxAttempts is the number of draws per length before growing.
	MaxAttempts int
	Validator   shortcode.Validator
	Random      io.Reader
}

type Allocator struct {
	store Finder
	cfg   Config
}

func New(store Finder, cfg Config) *Allocator {
	if cfg.Random == nil {
		cfg.Random = rand.Reader
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	if cfg.MaxLength < cfg.Length {
		cfg.MaxLength = cfg.Length
	}
	return &Allocator{store: store, cfg: cfg}
}

// Candidate is the code stored for item index (0-based) of a batch of total
// items sharing the custom code requested.
func Candidate(requested string, index, total int) string {
	if total <= 1 {
		return requested
	}
	return requested + strconv.Itoa(index+1)
}

// Taken is the error reported when code already belongs to another record.
func Taken(code string) error {
	return apperr.New(apperr.ErrShortcodeTaken, fmt.Sprintf(
		"The shortcode '%s' is already in use. Please try another one or leave it blank to assign a random shortcode.", code))
}

// Allocate returns a free code for item index of total. An empty requested
// code asks for a random one.
func (a *Allocator) Allocate(ctx context.Context, requested string, index, total int) (string, error) {
	if requested != "" {
		return a.allocateCustom(ctx, requested, index, total)
	}
	return a.allocateRandom(ctx)
}

func (a *Allocator) ValidateCustom(requested string) error {
	if !a.cfg.Validator.IsValidShortcode(requested) {
		return apperr.InvalidInput(a.cfg.Validator.Rule())
	}
	if Reserved(requested) {
		return apperr.InvalidInput(fmt.Sprintf("Shortcode '%s' is reserved", requested))
	}
	return nil
}

func (a *Allocator) allocateCustom(ctx context.Context, requested string, index, total int) (string, error) {
	if err := a.ValidateCustom(requested); err != nil {
		return "", err
	}

	code := Candidate(requested, index, total)
	occupied, err := a.occupied(ctx, code)
	if err != nil {
		return "", err
	}
	if occupied {
		return "", Taken(code)
	}
	return code, nil
}

func (a *Allocator) allocateRandom(ctx context.Context) (string, error) {
	for length := a.cfg.Length; length <= a.cfg.MaxLength; length++ {
		for attempt := 0; attempt < a.cfg.MaxAttempts; attempt++ {
			code, err := shortcode.Generate(a.cfg.Random, length)
			if err != nil {
				return "", err
			}
			if Reserved(code) {
				continue
			}

			occupied, err := a.occupied(ctx, code)
			if err != nil {
				return "", err
			}
			if !occupied {
				return code, nil
			}
		}
	}
	return "", ErrExhausted
}

func (a *Allocator) occupied(ctx context.Context, code string) (bool, error) {
	_, err := a.store.FindByShortcode(ctx, code)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, apperr.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}
