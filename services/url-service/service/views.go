package service

import (
	"time"

	analytics "shortlink/services/analytics-service/models"
	"shortlink/services/url-service/models"
)

type URLView struct {
	Shortcode   string              `json:"shortcode"`
	ShortURL    string              `json:"shortUrl"`
	OriginalURL string              `json:"originalUrl"`
	CreatedAt   time.Time           `json:"createdAt"`
	ExpiresAt   time.Time           `json:"expiresAt"`
	Clicks      []models.ClickEvent `json:"clicks"`
	IsExpired   bool                `json:"isExpired"`
	analytics.Summary
}

type StatsView struct {
	URLView
	ClicksByHour     map[int]int         `json:"clicksByHour"`
	ClicksByReferrer map[string]int      `json:"clicksByReferrer"`
	RecentClicks     []models.ClickEvent `json:"recentClicks"`
}

type Health struct {
	Status      string    `json:"status"`
	Uptime      float64   `json:"uptime"`
	Timestamp   time.Time `json:"timestamp"`
	TotalURLs   int       `json:"totalUrls"`
	TotalClicks int       `json:"totalClicks"`
	Version     string    `json:"version"`
}
