package models

import "time"

const (
	DirectReferrer = "direct"
	Unknown        = "unknown"
)

type ClickEvent struct {
	Timestamp time.Time `json:"timestamp"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"userAgent"`
	Referrer  string    `json:"referrer"`
}

// Visitor is the request metadata a click is built from.
type Visitor struct {
	IP        string
	UserAgent string
	Referrer  string
}

// Click stamps v at ts, filling the documented defaults for absent fields.
func (v Visitor) Click(ts time.Time) ClickEvent {
	c := ClickEvent{
		Timestamp: ts,
		IP:        v.IP,
		UserAgent: v.UserAgent,
		Referrer:  v.Referrer,
	}
	if c.IP == "" {
		c.IP = Unknown
	}
	if c.UserAgent == "" {
		c.UserAgent = Unknown
	}
	if c.Referrer == "" {
		c.Referrer = DirectReferrer
	}
	return c
}

type URLRecord struct {
	Shortcode   string       `json:"shortcode"`
	OriginalURL string       `json:"originalUrl"`
	CreatedAt   time.Time    `json:"createdAt"`
	ExpiresAt   time.Time    `json:"expiresAt"`
	Clicks      []ClickEvent `json:"clicks"`
	IsExpired   bool         `json:"isExpired"`
}

// Clone returns a deep copy so callers never share the click log with a store.
func (r *URLRecord) Clone() *URLRecord {
	if r == nil {
		return nil
	}
	c := *r
	if r.Clicks != nil {
		c.Clicks = make([]ClickEvent, len(r.Clicks))
		copy(c.Clicks, r.Clicks)
	}
	return &c
}

// Head is the immutable part of the record plus the expiry flag, without clicks.
func (r *URLRecord) Head() *URLRecord {
	if r == nil {
		return nil
	}
	h := *r
	h.Clicks = nil
	return &h
}

// Ref names one incarnation of a shortcode: a code that is deleted and
// created again gets a new Ref even though the Shortcode stays.
type Ref struct {
	Shortcode   string
	OriginalURL string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

func (r *URLRecord) Ref() Ref {
	return Ref{
		Shortcode:   r.Shortcode,
		OriginalURL: r.OriginalURL,
		CreatedAt:   r.CreatedAt,
		ExpiresAt:   r.ExpiresAt,
	}
}

// Matches reports whether rec is the incarnation r names. A Ref carrying only
// a shortcode matches any record under that code. Stores keep times to the
// microsecond.
func (r Ref) Matches(rec *URLRecord) bool {
	if r.CreatedAt.IsZero() {
		return true
	}
	return r.OriginalURL == rec.OriginalURL &&
		sameInstant(r.CreatedAt, rec.CreatedAt) &&
		sameInstant(r.ExpiresAt, rec.ExpiresAt)
}

func sameInstant(a, b time.Time) bool {
	d := a.Sub(b)
	return d > -time.Microsecond && d < time.Microsecond
}
