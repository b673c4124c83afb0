package models

import "time"

// DirectReferrer is the sentinel stored when a click arrives without a
// Referer header.
const DirectReferrer = "Direct"

// UnknownLocation is the sentinel for click geolocation, which is never
// resolved by this service.
const UnknownLocation = "Unknown"

// URL represents a shortened URL together with its click history.
type URL struct {
	// ID is the unique identifier assigned by the backing store.
	ID int64
	// ShortCode is the short code or key associated with the long URL.
	ShortCode string
	// LongURL is the original, full-length URL that the short code points to.
	LongURL string
	// CreatedAt is the timestamp indicating when the shortened URL was created.
	CreatedAt time.Time
	// ExpiresAt is the moment after which redirection is refused.
	// A nil value means the URL never expires.
	ExpiresAt *time.Time
	// Clicks holds every recorded traversal of the short code, in
	// chronological order. The slice is append-only.
	Clicks []Click
}

// Expired reports whether the URL must be refused for redirection at the
// given moment. Expired URLs remain readable for statistics.
func (u *URL) Expired(now time.Time) bool {
	return u.ExpiresAt != nil && now.After(*u.ExpiresAt)
}

// ClickCount returns the number of recorded clicks. The count is always
// derived from the click list and never stored separately.
func (u *URL) ClickCount() int {
	return len(u.Clicks)
}

// Click represents one observed traversal of a short code to its target.
type Click struct {
	// Timestamp is the moment the click occurred.
	Timestamp time.Time
	// Referrer is the source of the click, or DirectReferrer when the
	// traversal carried no referrer information.
	Referrer string
	// Location is the geographic origin of the click. Geolocation is not
	// resolved, so this is always UnknownLocation.
	Location string
	// UserAgent is the client software that performed the traversal.
	UserAgent string
}

// NewClick builds a click event, substituting the sentinel for an absent
// referrer.
func NewClick(ts time.Time, referrer, userAgent string) Click {
	if referrer == "" {
		referrer = DirectReferrer
	}

	return Click{
		Timestamp: ts,
		Referrer:  referrer,
		Location:  UnknownLocation,
		UserAgent: userAgent,
	}
}

// URLStats contains values derived from a URL's click history.
type URLStats struct {
	// TotalClicks is the length of the click list.
	TotalClicks int
	// UniqueReferrers is the number of distinct referrer values,
	// excluding DirectReferrer.
	UniqueReferrers int
	// ClicksToday is the number of clicks that occurred on the current
	// calendar day in the location of the supplied time.
	ClicksToday int
}

// Stats recomputes the derived statistics for the URL.
func (u *URL) Stats(now time.Time) URLStats {
	stats := URLStats{
		TotalClicks: len(u.Clicks),
	}

	referrers := make(map[string]struct{})
	y, m, d := now.Date()

	for _, c := range u.Clicks {
		if c.Referrer != DirectReferrer {
			referrers[c.Referrer] = struct{}{}
		}

		cy, cm, cd := c.Timestamp.In(now.Location()).Date()
		if cy == y && cm == m && cd == d {
			stats.ClicksToday++
		}
	}

	stats.UniqueReferrers = len(referrers)

	return stats
}
