// Package service contains the URL shortening business logic: input
// validation, short code allocation and the expiry rule applied on the
// redirect path.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/shortlyhq/shortly/internal/logging"
	"github.com/shortlyhq/shortly/internal/models"
	"github.com/shortlyhq/shortly/internal/storage"
)

// shortCodeAlphabet is the alphabet for generated codes.
const shortCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// maxRetries bounds the attempts to generate a non-colliding short code.
const maxRetries = 5

// customCodePattern is the canonical format policy for user-supplied codes:
// 4-20 url-safe characters (letters, digits, underscore, hyphen).
var customCodePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{4,20}$`)

var (
	// ErrInvalidURL is returned when the long URL is not a well-formed
	// absolute http(s) URL.
	ErrInvalidURL = errors.New("invalid url")
	// ErrInvalidShortCode is returned when a custom short code violates the
	// format policy.
	ErrInvalidShortCode = errors.New("invalid short code")
	// ErrInvalidValidity is returned for a non-positive validity duration.
	ErrInvalidValidity = errors.New("invalid validity duration")
	// ErrURLExpired is returned when a short code resolves to a record whose
	// expiry has passed. The record itself is retained for statistics.
	ErrURLExpired = errors.New("url expired")
	// ErrMaxRetriesExceeded is returned when the maximum number of retries for generating a short code is exceeded.
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded for generating short code")
)

// URLRepository defines the interface for working with URLs at the business logic layer.
type URLRepository interface {
	// Create inserts a new shortened URL into the repository.
	// It fails with storage.ErrShortCodeExists when the code is taken,
	// leaving the store unchanged.
	Create(ctx context.Context, shortCode, longURL string, expiresAt *time.Time) (*models.URL, error)

	// GetByShortCode retrieves a URL by its short code without mutating it.
	GetByShortCode(ctx context.Context, shortCode string) (*models.URL, error)

	// AddClick appends one click event to the record's history and returns
	// the updated record.
	AddClick(ctx context.Context, shortCode string, click models.Click) (*models.URL, error)

	// List retrieves every record in deterministic creation order.
	List(ctx context.Context) ([]*models.URL, error)
}

// URLService provides methods to manage URL shortening operations.
type URLService struct {
	repo            URLRepository
	events          logging.Sink
	shortCodeLength int
	now             func() time.Time
}

// NewURLService creates a URLService over the given repository. Generated
// short codes have shortCodeLength characters. Events describing the outcome
// of each operation go to the sink on a best-effort basis.
func NewURLService(repo URLRepository, events logging.Sink, shortCodeLength int) *URLService {
	if events == nil {
		events = logging.Nop{}
	}

	return &URLService{
		repo:            repo,
		events:          events,
		shortCodeLength: shortCodeLength,
		now:             time.Now,
	}
}

// ShortenURL validates the input, allocates a short code and persists a new
// record. A non-empty customCode is used verbatim after a format and
// uniqueness check; otherwise a random code is generated with a bounded
// retry against collisions. A nil validity means the URL never expires.
func (s *URLService) ShortenURL(ctx context.Context, longURL, customCode string, validity *time.Duration) (*models.URL, error) {
	const op = "service.URLService.ShortenURL"

	if err := validateLongURL(longURL); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var expiresAt *time.Time
	if validity != nil {
		if *validity <= 0 {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidValidity)
		}

		t := s.now().Add(*validity).UTC()
		expiresAt = &t
	}

	if customCode != "" {
		if !customCodePattern.MatchString(customCode) {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidShortCode)
		}

		url, err := s.repo.Create(ctx, customCode, longURL, expiresAt)
		if err != nil {
			s.events.Error("url shortening failed", map[string]any{
				"short_code": customCode,
				"long_url":   longURL,
			})
			return nil, fmt.Errorf("%s: failed to shorten url: %w", op, err)
		}

		s.events.Success("url shortened", map[string]any{
			"short_code": url.ShortCode,
			"long_url":   url.LongURL,
		})

		return url, nil
	}

	for i := 0; i < maxRetries; i++ {
		shortCode, err := gonanoid.Generate(shortCodeAlphabet, s.shortCodeLength)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to generate short code: %w", op, err)
		}

		url, err := s.repo.Create(ctx, shortCode, longURL, expiresAt)
		if err != nil {
			if errors.Is(err, storage.ErrShortCodeExists) {
				continue
			}

			s.events.Error("url shortening failed", map[string]any{
				"long_url": longURL,
			})
			return nil, fmt.Errorf("%s: failed to shorten url: %w", op, err)
		}

		s.events.Success("url shortened", map[string]any{
			"short_code": url.ShortCode,
			"long_url":   url.LongURL,
		})

		return url, nil
	}

	s.events.Error("short code allocation exhausted", map[string]any{
		"long_url": longURL,
	})

	return nil, fmt.Errorf("%s: %w", op, ErrMaxRetriesExceeded)
}

// ResolveShortCode resolves a short code for redirection. An expired record
// fails with ErrURLExpired and is not mutated; otherwise exactly one click
// event is appended and persisted before the record is returned.
func (s *URLService) ResolveShortCode(ctx context.Context, shortCode string, click models.Click) (*models.URL, error) {
	const op = "service.URLService.ResolveShortCode"

	url, err := s.repo.GetByShortCode(ctx, shortCode)
	if err != nil {
		if errors.Is(err, storage.ErrURLNotFound) {
			s.events.Error("short code not found", map[string]any{
				"short_code": shortCode,
			})
		}
		return nil, fmt.Errorf("%s: failed to resolve short code: %w", op, err)
	}

	if url.Expired(s.now()) {
		s.events.Warn("expired short code accessed", map[string]any{
			"short_code": shortCode,
			"expires_at": url.ExpiresAt,
		})
		return nil, fmt.Errorf("%s: %w", op, ErrURLExpired)
	}

	if click.Timestamp.IsZero() {
		click.Timestamp = s.now().UTC()
	}

	url, err = s.repo.AddClick(ctx, shortCode, click)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to record click: %w", op, err)
	}

	s.events.Success("short code resolved", map[string]any{
		"short_code":   shortCode,
		"long_url":     url.LongURL,
		"total_clicks": url.ClickCount(),
	})

	return url, nil
}

// GetURLStats retrieves a record for statistics purposes. The read is pure:
// no click is appended and expired records are served.
func (s *URLService) GetURLStats(ctx context.Context, shortCode string) (*models.URL, error) {
	const op = "service.URLService.GetURLStats"

	url, err := s.repo.GetByShortCode(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get url stats: %w", op, err)
	}

	return url, nil
}

// ListURLs returns every record in creation order.
func (s *URLService) ListURLs(ctx context.Context) ([]*models.URL, error) {
	const op = "service.URLService.ListURLs"

	urls, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list urls: %w", op, err)
	}

	return urls, nil
}

// validateLongURL requires a well-formed absolute http(s) URL with a host.
func validateLongURL(longURL string) error {
	u, err := url.Parse(longURL)
	if err != nil {
		return ErrInvalidURL
	}

	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidURL
	}

	return nil
}
