package repository

import (
	"context"
	"sort"
	"sync"

	"shortlink/services/url-service/models"
)

// MemoryStore keeps records in an index keyed by shortcode. Each record owns
// a mutex guarding its click log, so appends to different records never
// contend.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*memoryEntry
	seq     uint64
}

type memoryEntry struct {
	mu      sync.Mutex
	seq     uint64
	record  models.URLRecord
	deleted bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*memoryEntry)}
}

func (s *MemoryStore) Create(ctx context.Context, rec *models.URLRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.Shortcode]; ok {
		return ErrDuplicateKey
	}

	s.seq++
	s.records[rec.Shortcode] = &memoryEntry{seq: s.seq, record: *rec.Clone()}
	return nil
}

func (s *MemoryStore) FindByShortcode(ctx context.Context, code string) (*models.URLRecord, error) {
	e, err := s.lookup(ctx, code)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return nil, ErrNotFound
	}
	return e.record.Clone(), nil
}

func (s *MemoryStore) ListAll(ctx context.Context) ([]*models.URLRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	entries := make([]*memoryEntry, 0, len(s.records))
	for _, e := range s.records {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	out := make([]*models.URLRecord, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if !e.deleted {
			out = append(out, e.record.Clone())
		}
		e.mu.Unlock()
	}
	return out, nil
}

func (s *MemoryStore) AppendClick(ctx context.Context, code string, click models.ClickEvent) error {
	return s.AppendClicks(ctx, models.Ref{Shortcode: code}, []models.ClickEvent{click})
}

func (s *MemoryStore) AppendClicks(ctx context.Context, ref models.Ref, clicks []models.ClickEvent) error {
	e, err := s.lookup(ctx, ref.Shortcode)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted || !ref.Matches(&e.record) {
		return ErrNotFound
	}
	e.record.Clicks = append(e.record.Clicks, clicks...)
	return nil
}

func (s *MemoryStore) MarkExpired(ctx context.Context, code string) error {
	e, err := s.lookup(ctx, code)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return ErrNotFound
	}
	e.record.IsExpired = true
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	e, ok := s.records[code]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	delete(s.records, code)
	s.mu.Unlock()

	// Appends that looked the entry up before removal must observe the deletion.
	e.mu.Lock()
	e.deleted = true
	e.mu.Unlock()
	return nil
}

func (s *MemoryStore) Totals(ctx context.Context) (Totals, error) {
	if err := ctx.Err(); err != nil {
		return Totals{}, err
	}

	s.mu.RLock()
	entries := make([]*memoryEntry, 0, len(s.records))
	for _, e := range s.records {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	t := Totals{URLs: len(entries)}
	for _, e := range entries {
		e.mu.Lock()
		t.Clicks += len(e.record.Clicks)
		e.mu.Unlock()
	}
	return t, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) lookup(ctx context.Context, code string) (*memoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	e, ok := s.records[code]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}
