package aggregator

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	urlmodels "shortlink/services/url-service/models"
)

func clickAt(hour int, referrer string) urlmodels.ClickEvent {
	return urlmodels.ClickEvent{
		Timestamp: time.Date(2024, 5, 1, hour, 15, 0, 0, time.UTC),
		IP:        "127.0.0.1",
		UserAgent: "test",
		Referrer:  referrer,
	}
}

func TestAggregateByHour(t *testing.T) {
	a := New(time.UTC)

	stats := a.Aggregate([]urlmodels.ClickEvent{
		clickAt(1, "direct"),
		clickAt(1, "direct"),
		clickAt(3, "https://news.example"),
	})

	assert.Equal(t, map[int]int{1: 2, 3: 1}, stats.ClicksByHour)
	assert.Equal(t, map[string]int{"direct": 2, "https://news.example": 1}, stats.ClicksByReferrer)
	assert.Equal(t, 3, stats.ClickCount)
	require.NotNil(t, stats.LastClicked)
	assert.Equal(t, 3, stats.LastClicked.Hour())
}

func TestAggregateUsesLocation(t *testing.T) {
	// UTC+5: 22:15 UTC превращается в 03:15 местного времени
	loc := time.FixedZone("UTC+5", 5*60*60)
	a := New(loc)

	stats := a.Aggregate([]urlmodels.ClickEvent{clickAt(22, "direct")})
	assert.Equal(t, map[int]int{3: 1}, stats.ClicksByHour)
}

func TestAggregateEmpty(t *testing.T) {
	stats := New(time.UTC).Aggregate(nil)

	assert.Zero(t, stats.ClickCount)
	assert.Nil(t, stats.LastClicked)
	assert.Empty(t, stats.ClicksByHour)
	assert.Empty(t, stats.ClicksByReferrer)
	assert.NotNil(t, stats.RecentClicks)
	assert.Empty(t, stats.RecentClicks)
}

func TestAggregateRecentWindow(t *testing.T) {
	clicks := make([]urlmodels.ClickEvent, 0, 15)
	for i := 0; i < 15; i++ {
		clicks = append(clicks, clickAt(i, fmt.Sprintf("ref-%d", i)))
	}

	stats := New(time.UTC).Aggregate(clicks)

	require.Len(t, stats.RecentClicks, DefaultRecentWindow)
	assert.Equal(t, "ref-5", stats.RecentClicks[0].Referrer, "window keeps the last 10 in chronological order")
	assert.Equal(t, "ref-14", stats.RecentClicks[9].Referrer)

	// Окно не должно разделять память с исходным журналом
	stats.RecentClicks[0].Referrer = "mutated"
	assert.Equal(t, "ref-5", clicks[5].Referrer)
}

func TestSummarize(t *testing.T) {
	a := New(nil)
	s := a.Summarize([]urlmodels.ClickEvent{clickAt(2, "direct"), clickAt(7, "direct")})

	assert.Equal(t, 2, s.ClickCount)
	require.NotNil(t, s.LastClicked)
	assert.Equal(t, 7, s.LastClicked.UTC().Hour())
	assert.Nil(t, a.Summarize(nil).LastClicked)
}
