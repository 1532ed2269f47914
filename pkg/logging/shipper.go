package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Entry is the payload accepted by the log collector.
type Entry struct {
	Stack     string    `json:"stack"`
	Level     string    `json:"level"`
	Package   string    `json:"package"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type ShipperConfig struct {
	URL       string
	Token     string
	Stack     string
	Level     slog.Leveler
	QueueSize int
	Client    *http.Client
}

type shipperCore struct {
	cfg     ShipperConfig
	queue   chan Entry
	mu      sync.RWMutex
	closed  bool
	wg      sync.WaitGroup
	dropped atomic.Int64
	failed  atomic.Int64
}

// Shipper is a slog.Handler that forwards records to a remote collector from
// a background goroutine. A full queue drops the record.
type Shipper struct {
	core  *shipperCore
	pkg   string
	attrs []slog.Attr
}

func NewShipper(cfg ShipperConfig) *Shipper {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 512
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 5 * time.Second}
	}
	if cfg.Level == nil {
		cfg.Level = slog.LevelInfo
	}
	if cfg.Stack == "" {
		cfg.Stack = "backend"
	}

	core := &shipperCore{
		cfg:   cfg,
		queue: make(chan Entry, cfg.QueueSize),
	}
	core.wg.Add(1)
	go core.run()

	return &Shipper{core: core, pkg: "service"}
}

func (s *Shipper) Enabled(_ context.Context, level slog.Level) bool {
	return level >= s.core.cfg.Level.Level()
}

func (s *Shipper) Handle(_ context.Context, r slog.Record) error {
	pkg := s.pkg
	var b strings.Builder
	b.WriteString(r.Message)

	writeAttr := func(a slog.Attr) {
		if a.Key == PackageKey {
			pkg = a.Value.String()
			return
		}
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value.Any())
	}
	for _, a := range s.attrs {
		writeAttr(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(a)
		return true
	})

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	s.core.enqueue(Entry{
		Stack:     s.core.cfg.Stack,
		Level:     levelName(r.Level),
		Package:   pkg,
		Message:   b.String(),
		Timestamp: ts,
	})
	return nil
}

func (s *Shipper) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := &Shipper{core: s.core, pkg: s.pkg, attrs: append([]slog.Attr(nil), s.attrs...)}
	for _, a := range attrs {
		if a.Key == PackageKey {
			next.pkg = a.Value.String()
			continue
		}
		next.attrs = append(next.attrs, a)
	}
	return next
}

// WithGroup is a no-op: the collector has a flat message format.
func (s *Shipper) WithGroup(string) slog.Handler {
	return s
}

// Dropped reports how many entries were discarded because the queue was full.
func (s *Shipper) Dropped() int64 {
	return s.core.dropped.Load()
}

// Failed reports how many deliveries the collector did not accept.
func (s *Shipper) Failed() int64 {
	return s.core.failed.Load()
}

// Close stops accepting entries and waits for queued ones to be delivered.
func (s *Shipper) Close() error {
	c := s.core
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.queue)
	}
	c.mu.Unlock()
	c.wg.Wait()
	return nil
}

func (c *shipperCore) enqueue(e Entry) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		c.dropped.Add(1)
		return
	}
	select {
	case c.queue <- e:
	default:
		c.dropped.Add(1)
	}
}

func (c *shipperCore) run() {
	defer c.wg.Done()
	for e := range c.queue {
		if err := c.send(e); err != nil {
			c.failed.Add(1)
		}
	}
}

func (c *shipperCore) send(e Entry) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.cfg.Client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("log collector returned %d", resp.StatusCode)
	}
	return nil
}

func levelName(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "error"
	case l >= slog.LevelWarn:
		return "warn"
	case l >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}
