// Package aggregator derives click statistics from a record's click log at
// read time. Nothing it computes is stored.
package aggregator

import (
	"time"

	"shortlink/services/analytics-service/models"
	urlmodels "shortlink/services/url-service/models"
)

const DefaultRecentWindow = 10

type Aggregator struct {
	loc          *time.Location
	recentWindow int
}

// New returns an aggregator bucketing hours in loc (time.Local when nil).
func New(loc *time.Location) *Aggregator {
	if loc == nil {
		loc = time.Local
	}
	return &Aggregator{loc: loc, recentWindow: DefaultRecentWindow}
}

func (a *Aggregator) Summarize(clicks []urlmodels.ClickEvent) models.Summary {
	s := models.Summary{ClickCount: len(clicks)}
	if len(clicks) > 0 {
		last := clicks[len(clicks)-1].Timestamp
		s.LastClicked = &last
	}
	return s
}

func (a *Aggregator) Aggregate(clicks []urlmodels.ClickEvent) models.ClickStats {
	stats := models.ClickStats{
		Summary:          a.Summarize(clicks),
		ClicksByHour:     make(map[int]int),
		ClicksByReferrer: make(map[string]int),
	}

	for _, c := range clicks {
		stats.ClicksByHour[c.Timestamp.In(a.loc).Hour()]++
		stats.ClicksByReferrer[c.Referrer]++
	}

	start := len(clicks) - a.recentWindow
	if start < 0 {
		start = 0
	}
	stats.RecentClicks = make([]urlmodels.ClickEvent, len(clicks)-start)
	copy(stats.RecentClicks, clicks[start:])

	return stats
}
