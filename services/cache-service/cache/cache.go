// Package cache is a two-tier read-through cache of record heads: a bounded
// in-process LRU in front of an optional shared Redis.
//
// Only the immutable part of a record is cached. Click logs always come from
// the store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"shortlink/services/url-service/models"
)

const DefaultPrefix = "shortlink:url:"

type Options struct {
	TTL       time.Duration
	LocalSize int
	Prefix    string
}

type Cache struct {
	rdb    *redis.Client
	local  *expirable.LRU[string, models.URLRecord]
	ttl    time.Duration
	prefix string
}

// New builds a cache. A nil rdb leaves only the local tier.
func New(rdb *redis.Client, opts Options) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Minute
	}
	if opts.LocalSize <= 0 {
		opts.LocalSize = 1024
	}
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}

	return &Cache{
		rdb:    rdb,
		local:  expirable.NewLRU[string, models.URLRecord](opts.LocalSize, nil, opts.TTL),
		ttl:    opts.TTL,
		prefix: opts.Prefix,
	}
}

func (c *Cache) key(code string) string {
	return c.prefix + code
}

// Get returns the cached head for code. A Redis failure is returned together
// with found == false so callers can fall back to the store.
func (c *Cache) Get(ctx context.Context, code string) (*models.URLRecord, bool, error) {
	if rec, ok := c.local.Get(code); ok {
		return &rec, true, nil
	}
	if c.rdb == nil {
		return nil, false, nil
	}

	val, err := c.rdb.Get(ctx, c.key(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", code, err)
	}

	var rec models.URLRecord
	if err := json.Unmarshal(val, &rec); err != nil {
		return nil, false, fmt.Errorf("decode cached %s: %w", code, err)
	}

	c.local.Add(code, rec)
	return &rec, true, nil
}

func (c *Cache) Set(ctx context.Context, rec *models.URLRecord) error {
	head := rec.Head()
	c.local.Add(head.Shortcode, *head)

	if c.rdb == nil {
		return nil
	}
	val, err := json.Marshal(head)
	if err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, c.key(head.Shortcode), val, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", head.Shortcode, err)
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, code string) error {
	c.local.Remove(code)

	if c.rdb == nil {
		return nil
	}
	if err := c.rdb.Del(ctx, c.key(code)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", code, err)
	}
	return nil
}

func (c *Cache) Len() int {
	return c.local.Len()
}
