package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shortlyhq/shortly/internal/models"
)

// snapshotVersion identifies the persisted schema. Bump on incompatible
// changes to the record layout.
const snapshotVersion = 1

type snapshot struct {
	Version int                  `json:"version"`
	URLs    map[string]urlRecord `json:"urls"`
}

type urlRecord struct {
	ID        int64         `json:"id"`
	ShortCode string        `json:"short_code"`
	LongURL   string        `json:"long_url"`
	CreatedAt time.Time     `json:"created_at"`
	ExpiresAt *time.Time    `json:"expires_at,omitempty"`
	Clicks    []clickRecord `json:"clicks"`
}

type clickRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Referrer  string    `json:"referrer"`
	Location  string    `json:"location"`
	UserAgent string    `json:"user_agent,omitempty"`
}

func toURLRecord(url *models.URL) urlRecord {
	rec := urlRecord{
		ID:        url.ID,
		ShortCode: url.ShortCode,
		LongURL:   url.LongURL,
		CreatedAt: url.CreatedAt,
		ExpiresAt: url.ExpiresAt,
		Clicks:    make([]clickRecord, 0, len(url.Clicks)),
	}

	for _, c := range url.Clicks {
		rec.Clicks = append(rec.Clicks, clickRecord(c))
	}

	return rec
}

func (rec urlRecord) toURL() *models.URL {
	url := &models.URL{
		ID:        rec.ID,
		ShortCode: rec.ShortCode,
		LongURL:   rec.LongURL,
		CreatedAt: rec.CreatedAt,
		ExpiresAt: rec.ExpiresAt,
	}

	for _, c := range rec.Clicks {
		url.Clicks = append(url.Clicks, models.Click(c))
	}

	return url
}

// persistLocked rewrites the snapshot file. Callers must hold the write lock.
// The write goes through a temporary file and a rename so a crash never
// leaves a half-written snapshot behind.
func (r *Repository) persistLocked() error {
	if r.snapshotPath == "" {
		return nil
	}

	snap := snapshot{
		Version: snapshotVersion,
		URLs:    make(map[string]urlRecord, len(r.urls)),
	}
	for shortCode, url := range r.urls {
		snap.URLs[shortCode] = toURLRecord(url)
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	tmp := r.snapshotPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}

	return os.Rename(tmp, r.snapshotPath)
}

// loadSnapshot restores the mapping from the snapshot file, if any.
func (r *Repository) loadSnapshot() error {
	if r.snapshotPath == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(r.snapshotPath), 0o750); err != nil {
		return err
	}

	data, err := os.ReadFile(r.snapshotPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}
	if snap.Version != snapshotVersion {
		return fmt.Errorf("unsupported snapshot version: %d", snap.Version)
	}

	for shortCode, rec := range snap.URLs {
		r.urls[shortCode] = rec.toURL()
		if rec.ID >= r.nextID {
			r.nextID = rec.ID + 1
		}
	}

	return nil
}
