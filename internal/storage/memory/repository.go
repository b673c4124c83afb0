// Package memory provides a URL store backed by an in-process map.
//
// The repository mirrors the behaviour of an origin-scoped key-value storage
// area: a single string-keyed mapping, mutated synchronously, optionally
// persisted as one JSON snapshot file. Mutations are serialized behind a
// mutex; concurrent processes sharing a snapshot file are not coordinated.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shortlyhq/shortly/internal/models"
	"github.com/shortlyhq/shortly/internal/storage"
)

// Option configures a Repository.
type Option func(*Repository)

// WithSnapshotPath enables persistence: every mutation rewrites the snapshot
// file at path, and NewRepository reloads it on startup.
func WithSnapshotPath(path string) Option {
	return func(r *Repository) {
		r.snapshotPath = path
	}
}

// Repository is a mutex-guarded map from short code to URL record.
type Repository struct {
	mu           sync.RWMutex
	urls         map[string]*models.URL
	nextID       int64
	snapshotPath string
}

// NewRepository creates a memory repository, loading the snapshot file when
// one is configured and present.
func NewRepository(opts ...Option) (*Repository, error) {
	const op = "storage.memory.NewRepository"

	r := &Repository{
		urls:   make(map[string]*models.URL),
		nextID: 1,
	}

	for _, opt := range opts {
		opt(r)
	}

	if err := r.loadSnapshot(); err != nil {
		return nil, fmt.Errorf("%s: failed to load snapshot: %w", op, err)
	}

	return r, nil
}

// Create inserts a new URL record keyed by shortCode. The store is the
// authority on uniqueness: a duplicate key fails with ErrShortCodeExists
// and leaves the mapping untouched.
func (r *Repository) Create(ctx context.Context, shortCode, longURL string, expiresAt *time.Time) (*models.URL, error) {
	const op = "storage.memory.Repository.Create"

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.urls[shortCode]; ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrShortCodeExists)
	}

	url := &models.URL{
		ID:        r.nextID,
		ShortCode: shortCode,
		LongURL:   longURL,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: expiresAt,
	}

	r.urls[shortCode] = url
	r.nextID++

	if err := r.persistLocked(); err != nil {
		delete(r.urls, shortCode)
		r.nextID--
		return nil, fmt.Errorf("%s: failed to persist snapshot: %w", op, err)
	}

	return cloneURL(url), nil
}

// GetByShortCode returns the record for shortCode, expired or not.
func (r *Repository) GetByShortCode(ctx context.Context, shortCode string) (*models.URL, error) {
	const op = "storage.memory.Repository.GetByShortCode"

	r.mu.RLock()
	defer r.mu.RUnlock()

	url, ok := r.urls[shortCode]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrURLNotFound)
	}

	return cloneURL(url), nil
}

// AddClick appends one click event to the record's history and persists the
// mutation synchronously. The click list is never truncated or reordered.
func (r *Repository) AddClick(ctx context.Context, shortCode string, click models.Click) (*models.URL, error) {
	const op = "storage.memory.Repository.AddClick"

	r.mu.Lock()
	defer r.mu.Unlock()

	url, ok := r.urls[shortCode]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrURLNotFound)
	}

	url.Clicks = append(url.Clicks, click)

	if err := r.persistLocked(); err != nil {
		url.Clicks = url.Clicks[:len(url.Clicks)-1]
		return nil, fmt.Errorf("%s: failed to persist snapshot: %w", op, err)
	}

	return cloneURL(url), nil
}

// List returns every record ordered by creation time, short code as
// tiebreaker. The underlying map carries no iteration order of its own.
func (r *Repository) List(ctx context.Context) ([]*models.URL, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	urls := make([]*models.URL, 0, len(r.urls))
	for _, url := range r.urls {
		urls = append(urls, cloneURL(url))
	}

	sort.Slice(urls, func(i, j int) bool {
		if !urls[i].CreatedAt.Equal(urls[j].CreatedAt) {
			return urls[i].CreatedAt.Before(urls[j].CreatedAt)
		}
		return urls[i].ShortCode < urls[j].ShortCode
	})

	return urls, nil
}

// cloneURL copies a record so callers can't alias the repository's state.
func cloneURL(url *models.URL) *models.URL {
	c := *url

	if url.ExpiresAt != nil {
		expiresAt := *url.ExpiresAt
		c.ExpiresAt = &expiresAt
	}

	if url.Clicks != nil {
		c.Clicks = make([]models.Click, len(url.Clicks))
		copy(c.Clicks, url.Clicks)
	}

	return &c
}
