package models

import (
	"time"

	urlmodels "shortlink/services/url-service/models"
)

// Summary is the cheap part of the statistics, shown in listings.
type Summary struct {
	ClickCount  int        `json:"clickCount"`
	LastClicked *time.Time `json:"lastClicked,omitempty"`
}

type ClickStats struct {
	Summary
	ClicksByHour     map[int]int             `json:"clicksByHour"`
	ClicksByReferrer map[string]int          `json:"clicksByReferrer"`
	RecentClicks     []urlmodels.ClickEvent `json:"recentClicks"`
}
