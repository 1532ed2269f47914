package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shortlink/services/url-service/models"
)

var baseTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newRecord(code string) *models.URLRecord {
	return &models.URLRecord{
		Shortcode:   code,
		OriginalURL: "https://example.com/" + code,
		CreatedAt:   baseTime,
		ExpiresAt:   baseTime.Add(30 * time.Minute),
	}
}

func newClick(i int, ip string) models.ClickEvent {
	return models.ClickEvent{
		Timestamp: baseTime.Add(time.Duration(i) * time.Second),
		IP:        ip,
		UserAgent: "test-agent",
		Referrer:  "direct",
	}
}

// runStoreContract checks the behaviour every Store implementation shares.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("CreateAndFind", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, newRecord("abc")))

		got, err := s.FindByShortcode(ctx, "abc")
		require.NoError(t, err)
		assert.Equal(t, "abc", got.Shortcode)
		assert.Equal(t, "https://example.com/abc", got.OriginalURL)
		assert.WithinDuration(t, baseTime, got.CreatedAt, time.Millisecond)
		assert.WithinDuration(t, baseTime.Add(30*time.Minute), got.ExpiresAt, time.Millisecond)
		assert.False(t, got.IsExpired)
		assert.Empty(t, got.Clicks)
	})

	t.Run("DuplicateKey", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, newRecord("dup")))

		other := newRecord("dup")
		other.OriginalURL = "https://other.example"
		assert.ErrorIs(t, s.Create(ctx, other), ErrDuplicateKey)

		got, err := s.FindByShortcode(ctx, "dup")
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/dup", got.OriginalURL, "first writer wins")
	})

	t.Run("ConcurrentCreateSingleWinner", func(t *testing.T) {
		s := newStore(t)

		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := s.Create(ctx, newRecord("race")); err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, wins)
	})

	t.Run("FindNotFound", func(t *testing.T) {
		s := newStore(t)
		_, err := s.FindByShortcode(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("ListAllInCreationOrder", func(t *testing.T) {
		s := newStore(t)
		for _, code := range []string{"zzz", "aaa", "mmm"} {
			require.NoError(t, s.Create(ctx, newRecord(code)))
		}
		require.NoError(t, s.AppendClick(ctx, "aaa", newClick(1, "10.0.0.1")))

		list, err := s.ListAll(ctx)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, "zzz", list[0].Shortcode)
		assert.Equal(t, "aaa", list[1].Shortcode)
		assert.Equal(t, "mmm", list[2].Shortcode)
		assert.Len(t, list[1].Clicks, 1)
		assert.Empty(t, list[0].Clicks)
	})

	t.Run("AppendKeepsOrder", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, newRecord("ord")))

		require.NoError(t, s.AppendClick(ctx, "ord", newClick(1, "a")))
		require.NoError(t, s.AppendClicks(ctx, models.Ref{Shortcode: "ord"}, []models.ClickEvent{newClick(2, "b"), newClick(3, "c")}))
		require.NoError(t, s.AppendClicks(ctx, models.Ref{Shortcode: "ord"}, nil))

		got, err := s.FindByShortcode(ctx, "ord")
		require.NoError(t, err)
		require.Len(t, got.Clicks, 3)
		assert.Equal(t, []string{"a", "b", "c"}, []string{got.Clicks[0].IP, got.Clicks[1].IP, got.Clicks[2].IP})
		assert.WithinDuration(t, baseTime.Add(3*time.Second), got.Clicks[2].Timestamp, time.Millisecond)
		assert.Equal(t, "test-agent", got.Clicks[0].UserAgent)
		assert.Equal(t, "direct", got.Clicks[0].Referrer)
	})

	t.Run("AppendNotFound", func(t *testing.T) {
		s := newStore(t)
		assert.ErrorIs(t, s.AppendClick(ctx, "ghost", newClick(1, "a")), ErrNotFound)
	})

	t.Run("ConcurrentAppendsAreNotLost", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, newRecord("hot")))
		require.NoError(t, s.Create(ctx, newRecord("cold")))

		const writers, perWriter = 10, 10
		var wg sync.WaitGroup
		for w := 0; w < writers; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < perWriter; i++ {
					assert.NoError(t, s.AppendClick(ctx, "hot", newClick(i, fmt.Sprintf("w%d-%d", w, i))))
				}
			}(w)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				assert.NoError(t, s.AppendClick(ctx, "cold", newClick(i, "cold")))
			}
		}()
		wg.Wait()

		got, err := s.FindByShortcode(ctx, "hot")
		require.NoError(t, err)
		require.Len(t, got.Clicks, writers*perWriter)

		// Порядок кликов каждого писателя сохраняется
		next := make(map[int]int)
		for _, c := range got.Clicks {
			var w, i int
			_, err := fmt.Sscanf(c.IP, "w%d-%d", &w, &i)
			require.NoError(t, err)
			assert.Equal(t, next[w], i, "writer %d out of order", w)
			next[w] = i + 1
		}

		cold, err := s.FindByShortcode(ctx, "cold")
		require.NoError(t, err)
		assert.Len(t, cold.Clicks, perWriter)
	})

	t.Run("MarkExpiredIsIdempotent", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, newRecord("exp")))

		require.NoError(t, s.MarkExpired(ctx, "exp"))
		require.NoError(t, s.MarkExpired(ctx, "exp"))

		got, err := s.FindByShortcode(ctx, "exp")
		require.NoError(t, err)
		assert.True(t, got.IsExpired)

		assert.ErrorIs(t, s.MarkExpired(ctx, "nope"), ErrNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, newRecord("del")))
		require.NoError(t, s.AppendClick(ctx, "del", newClick(1, "a")))

		require.NoError(t, s.Delete(ctx, "del"))
		_, err := s.FindByShortcode(ctx, "del")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.Delete(ctx, "del"), ErrNotFound)
		assert.ErrorIs(t, s.AppendClick(ctx, "del", newClick(2, "b")), ErrNotFound)

		// Код снова свободен, старые клики не возвращаются
		require.NoError(t, s.Create(ctx, newRecord("del")))
		got, err := s.FindByShortcode(ctx, "del")
		require.NoError(t, err)
		assert.Empty(t, got.Clicks)
	})

	t.Run("AppendChecksIdentity", func(t *testing.T) {
		s := newStore(t)
		old := newRecord("inc")
		require.NoError(t, s.Create(ctx, old))
		stored, err := s.FindByShortcode(ctx, "inc")
		require.NoError(t, err)
		oldRef := stored.Ref()
		require.NoError(t, s.AppendClicks(ctx, oldRef, []models.ClickEvent{newClick(1, "a")}))

		// Код пересоздан: клик по старой голове не засчитывается новой записи
		require.NoError(t, s.Delete(ctx, "inc"))
		fresh := newRecord("inc")
		fresh.CreatedAt = baseTime.Add(time.Hour)
		fresh.OriginalURL = "https://new.example"
		require.NoError(t, s.Create(ctx, fresh))

		assert.ErrorIs(t, s.AppendClicks(ctx, oldRef, []models.ClickEvent{newClick(2, "b")}), ErrNotFound)

		stored, err = s.FindByShortcode(ctx, "inc")
		require.NoError(t, err)
		require.NoError(t, s.AppendClicks(ctx, stored.Ref(), []models.ClickEvent{newClick(3, "c")}))

		got, err := s.FindByShortcode(ctx, "inc")
		require.NoError(t, err)
		require.Len(t, got.Clicks, 1)
		assert.Equal(t, "c", got.Clicks[0].IP)
	})

	t.Run("Totals", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, newRecord("t1")))
		require.NoError(t, s.Create(ctx, newRecord("t2")))
		require.NoError(t, s.AppendClicks(ctx, models.Ref{Shortcode: "t1"}, []models.ClickEvent{newClick(1, "a"), newClick(2, "b")}))

		totals, err := s.Totals(ctx)
		require.NoError(t, err)
		assert.Equal(t, Totals{URLs: 2, Clicks: 2}, totals)
	})

	t.Run("CanceledContext", func(t *testing.T) {
		s := newStore(t)
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		assert.Error(t, s.Create(cctx, newRecord("ctx")))
		_, err := s.FindByShortcode(ctx, "ctx")
		assert.ErrorIs(t, err, ErrNotFound, "a canceled create leaves nothing behind")
	})
}
