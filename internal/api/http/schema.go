package http

import (
	"strings"
	"time"

	"github.com/shortlyhq/shortly/internal/models"
)

// shortenURLRequest represents the request payload for creating a shortened URL.
type shortenURLRequest struct {
	URL             string `json:"url" validate:"required,url"`
	CustomCode      string `json:"custom_code" validate:"omitempty,min=4,max=20"`
	ValidityMinutes int    `json:"validity_minutes" validate:"omitempty,gt=0"`
}

// urlResponse represents the response payload for a shortened URL operation.
type urlResponse struct {
	ShortCode  string     `json:"short_code"`
	ShortURL   string     `json:"short_url"`
	LongURL    string     `json:"long_url"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	ClickCount int        `json:"click_count"`
}

// clickResponse represents one click event in a statistics payload.
type clickResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Referrer  string    `json:"referrer"`
	Location  string    `json:"location"`
	UserAgent string    `json:"user_agent,omitempty"`
}

// urlStatsResponse extends urlResponse with derived statistics and the full
// click history.
type urlStatsResponse struct {
	urlResponse
	TotalClicks     int             `json:"total_clicks"`
	UniqueReferrers int             `json:"unique_referrers"`
	ClicksToday     int             `json:"clicks_today"`
	Clicks          []clickResponse `json:"clicks"`
}

// toURLResponse converts a URL model from the business layer into a response payload.
func toURLResponse(baseURL string, url *models.URL) urlResponse {
	return urlResponse{
		ShortCode:  url.ShortCode,
		ShortURL:   strings.TrimSuffix(baseURL, "/") + "/" + url.ShortCode,
		LongURL:    url.LongURL,
		CreatedAt:  url.CreatedAt,
		ExpiresAt:  url.ExpiresAt,
		ClickCount: url.ClickCount(),
	}
}

func toURLStatsResponse(baseURL string, url *models.URL, stats models.URLStats) urlStatsResponse {
	resp := urlStatsResponse{
		urlResponse:     toURLResponse(baseURL, url),
		TotalClicks:     stats.TotalClicks,
		UniqueReferrers: stats.UniqueReferrers,
		ClicksToday:     stats.ClicksToday,
		Clicks:          make([]clickResponse, 0, len(url.Clicks)),
	}

	for _, c := range url.Clicks {
		resp.Clicks = append(resp.Clicks, clickResponse(c))
	}

	return resp
}
