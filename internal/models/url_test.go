package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestURL_Expired(t *testing.T) {
	now := time.Now()

	t.Run("no expiry never expires", func(t *testing.T) {
		url := &URL{}

		assert.False(t, url.Expired(now))
		assert.False(t, url.Expired(now.Add(1000*time.Hour)))
	})

	t.Run("future expiry", func(t *testing.T) {
		expiresAt := now.Add(time.Minute)
		url := &URL{ExpiresAt: &expiresAt}

		assert.False(t, url.Expired(now))
	})

	t.Run("past expiry", func(t *testing.T) {
		expiresAt := now.Add(-time.Minute)
		url := &URL{ExpiresAt: &expiresAt}

		assert.True(t, url.Expired(now))
	})
}

func TestNewClick(t *testing.T) {
	ts := time.Date(2025, time.March, 14, 9, 26, 53, 0, time.UTC)

	t.Run("absent referrer becomes the sentinel", func(t *testing.T) {
		click := NewClick(ts, "", "test-agent")

		assert.Equal(t, DirectReferrer, click.Referrer)
		assert.Equal(t, UnknownLocation, click.Location)
		assert.Equal(t, ts, click.Timestamp)
		assert.Equal(t, "test-agent", click.UserAgent)
	})

	t.Run("referrer is preserved", func(t *testing.T) {
		click := NewClick(ts, "https://referrer.example", "")

		assert.Equal(t, "https://referrer.example", click.Referrer)
	})
}

func TestURL_Stats(t *testing.T) {
	now := time.Date(2025, time.March, 14, 18, 0, 0, 0, time.UTC)

	t.Run("empty click list", func(t *testing.T) {
		url := &URL{}

		stats := url.Stats(now)

		assert.Zero(t, stats.TotalClicks)
		assert.Zero(t, stats.UniqueReferrers)
		assert.Zero(t, stats.ClicksToday)
	})

	t.Run("direct clicks are excluded from unique referrers", func(t *testing.T) {
		url := &URL{
			Clicks: []Click{
				{Timestamp: now.Add(-time.Hour), Referrer: DirectReferrer},
				{Timestamp: now.Add(-time.Hour), Referrer: "https://a.example"},
				{Timestamp: now.Add(-time.Hour), Referrer: "https://a.example"},
				{Timestamp: now.Add(-time.Hour), Referrer: "https://b.example"},
			},
		}

		stats := url.Stats(now)

		assert.Equal(t, 4, stats.TotalClicks)
		assert.Equal(t, 2, stats.UniqueReferrers)
	})

	t.Run("clicks today uses calendar day equality", func(t *testing.T) {
		url := &URL{
			Clicks: []Click{
				{Timestamp: now.Add(-17 * time.Hour), Referrer: DirectReferrer}, // 01:00 same day
				{Timestamp: now.Add(-time.Minute), Referrer: DirectReferrer},
				{Timestamp: now.Add(-19 * time.Hour), Referrer: DirectReferrer}, // 23:00 previous day
				{Timestamp: now.Add(24 * time.Hour), Referrer: DirectReferrer},  // next day
			},
		}

		stats := url.Stats(now)

		assert.Equal(t, 4, stats.TotalClicks)
		assert.Equal(t, 2, stats.ClicksToday)
	})

	t.Run("stats derivation does not mutate the click list", func(t *testing.T) {
		url := &URL{
			Clicks: []Click{
				{Timestamp: now, Referrer: "https://a.example"},
			},
		}

		_ = url.Stats(now)
		_ = url.Stats(now)

		assert.Equal(t, 1, url.ClickCount())
	})
}
