// Package worker applies click appends through one writer goroutine per
// shard. A shortcode always maps to the same shard, so its clicks reach the
// store in arrival order.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/cespare/xxhash/v2"

	"shortlink/pkg/logging"
	"shortlink/services/url-service/models"
)

var ErrPoolClosed = errors.New("worker: pool is closed")

type Appender interface {
	AppendClicks(ctx context.Context, ref models.Ref, clicks []models.ClickEvent) error
}

type job struct {
	ctx   context.Context
	ref   models.Ref
	click models.ClickEvent
	done  chan error
}

type WorkerPool struct {
	workers   int
	batchSize int
	shards    []chan job
	appender  Appender
	logger    *slog.Logger
	wg        sync.WaitGroup
	mu        sync.RWMutex
	closed    bool
	startOnce sync.Once
}

func New(workers, queueSize, batchSize int, appender Appender, logger *slog.Logger) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	if batchSize <= 0 {
		batchSize = 1
	}
	if logger == nil {
		logger = logging.Discard()
	}

	shards := make([]chan job, workers)
	for i := range shards {
		shards[i] = make(chan job, queueSize)
	}

	return &WorkerPool{
		workers:   workers,
		batchSize: batchSize,
		shards:    shards,
		appender:  appender,
		logger:    logging.Component(logger, "domain"),
	}
}

func (p *WorkerPool) Start() {
	p.startOnce.Do(func() {
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go p.worker(i)
		}
	})
}

func (p *WorkerPool) shardFor(code string) chan job {
	return p.shards[xxhash.Sum64String(code)%uint64(len(p.shards))]
}

// Submit queues click for the record ref names and waits until the store acknowledged it.
// If ctx ends first the click may still be applied later, unless it was
// still queued, in which case it is dropped.
func (p *WorkerPool) Submit(ctx context.Context, ref models.Ref, click models.ClickEvent) error {
	j := job{ctx: ctx, ref: ref, click: click, done: make(chan error, 1)}

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrPoolClosed
	}
	select {
	case p.shardFor(ref.Shortcode) <- j:
		p.mu.RUnlock()
	case <-ctx.Done():
		p.mu.RUnlock()
		return ctx.Err()
	}

	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	queue := p.shards[id]
	batch := make([]job, 0, p.batchSize)

	for first := range queue {
		batch = append(batch[:0], first)
	drain:
		for len(batch) < p.batchSize {
			select {
			case j, ok := <-queue:
				if !ok {
					break drain
				}
				batch = append(batch, j)
			default:
				break drain
			}
		}
		p.flush(id, batch)
	}
}

// flush writes consecutive runs for the same record with one store call each.
func (p *WorkerPool) flush(id int, batch []job) {
	for start := 0; start < len(batch); {
		end := start + 1
		for end < len(batch) && sameRecord(batch[end].ref, batch[start].ref) {
			end++
		}
		p.apply(id, batch[start:end])
		start = end
	}
}

func (p *WorkerPool) apply(id int, run []job) {
	live := run[:0:0]
	for _, j := range run {
		if err := j.ctx.Err(); err != nil {
			j.done <- err
			continue
		}
		live = append(live, j)
	}
	if len(live) == 0 {
		return
	}

	clicks := make([]models.ClickEvent, len(live))
	for i, j := range live {
		clicks[i] = j.click
	}

	// The append must not be cut short by one caller leaving mid-write.
	ctx := context.WithoutCancel(live[0].ctx)
	err := p.appender.AppendClicks(ctx, live[0].ref, clicks)
	if err != nil {
		p.logger.Warn("click append failed", "worker", id, "shortcode", live[0].ref.Shortcode, "clicks", len(clicks), "error", err)
	}
	for _, j := range live {
		j.done <- err
	}
}

func sameRecord(a, b models.Ref) bool {
	return a.Shortcode == b.Shortcode &&
		a.OriginalURL == b.OriginalURL &&
		a.CreatedAt.Equal(b.CreatedAt) &&
		a.ExpiresAt.Equal(b.ExpiresAt)
}

// Stop rejects new submissions, drains the queues and waits for the workers.
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	for _, q := range p.shards {
		close(q)
	}
	p.mu.Unlock()

	p.Start()
	p.wg.Wait()
}
