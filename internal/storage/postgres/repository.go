// Package postgres provides the PostgreSQL-backed URL store.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/shortlyhq/shortly/internal/models"
	"github.com/shortlyhq/shortly/internal/storage"
)

const uniqueViolationErrCode = "23505"

func isUniqueViolationError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationErrCode
}

type urlRecord struct {
	ID        int64      `db:"id"`
	ShortCode string     `db:"short_code"`
	LongURL   string     `db:"long_url"`
	CreatedAt time.Time  `db:"created_at"`
	ExpiresAt *time.Time `db:"expires_at"`
}

type clickRecord struct {
	URLID     int64     `db:"url_id"`
	ClickedAt time.Time `db:"clicked_at"`
	Referrer  string    `db:"referrer"`
	Location  string    `db:"location"`
	UserAgent string    `db:"user_agent"`
}

func (rec *urlRecord) toURL(clicks []clickRecord) *models.URL {
	url := &models.URL{
		ID:        rec.ID,
		ShortCode: rec.ShortCode,
		LongURL:   rec.LongURL,
		CreatedAt: rec.CreatedAt,
		ExpiresAt: rec.ExpiresAt,
	}

	for _, c := range clicks {
		url.Clicks = append(url.Clicks, models.Click{
			Timestamp: c.ClickedAt,
			Referrer:  c.Referrer,
			Location:  c.Location,
			UserAgent: c.UserAgent,
		})
	}

	return url
}

// URLRepository stores URL records in the urls and url_clicks tables.
type URLRepository struct {
	db *sqlx.DB
}

func NewURLRepository(db *sqlx.DB) *URLRepository {
	return &URLRepository{
		db: db,
	}
}

// Create inserts a new URL record. Uniqueness of the short code is enforced
// by the UNIQUE constraint on urls.short_code.
func (r *URLRepository) Create(ctx context.Context, shortCode, longURL string, expiresAt *time.Time) (*models.URL, error) {
	const op = "storage.postgres.URLRepository.Create"

	rec := new(urlRecord)
	query := `INSERT INTO urls(short_code, long_url, expires_at)
		VALUES ($1, $2, $3)
		RETURNING *`

	err := r.db.GetContext(ctx, rec, query, shortCode, longURL, expiresAt)
	if err != nil {
		if isUniqueViolationError(err) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrShortCodeExists)
		}

		return nil, fmt.Errorf("%s: failed to create url record: %w", op, err)
	}

	return rec.toURL(nil), nil
}

// GetByShortCode retrieves a record and its click history without mutating it.
func (r *URLRepository) GetByShortCode(ctx context.Context, shortCode string) (*models.URL, error) {
	const op = "storage.postgres.URLRepository.GetByShortCode"

	rec := new(urlRecord)
	query := `SELECT * FROM urls WHERE short_code = $1`

	err := r.db.GetContext(ctx, rec, query, shortCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get url record: %w", op, err)
	}

	clicks, err := r.clicksForURL(ctx, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get clicks: %w", op, err)
	}

	return rec.toURL(clicks), nil
}

// AddClick appends one click event to the record's history.
func (r *URLRepository) AddClick(ctx context.Context, shortCode string, click models.Click) (*models.URL, error) {
	const op = "storage.postgres.URLRepository.AddClick"

	var id int64
	err := r.db.GetContext(ctx, &id, `SELECT id FROM urls WHERE short_code = $1`, shortCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get url record: %w", op, err)
	}

	query := `INSERT INTO url_clicks(url_id, clicked_at, referrer, location, user_agent)
		VALUES ($1, $2, $3, $4, $5)`

	_, err = r.db.ExecContext(ctx, query, id, click.Timestamp, click.Referrer, click.Location, click.UserAgent)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to add click: %w", op, err)
	}

	url, err := r.GetByShortCode(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return url, nil
}

// List returns every record with its clicks, ordered by creation time.
func (r *URLRepository) List(ctx context.Context) ([]*models.URL, error) {
	const op = "storage.postgres.URLRepository.List"

	var recs []urlRecord
	query := `SELECT * FROM urls ORDER BY created_at, short_code`

	if err := r.db.SelectContext(ctx, &recs, query); err != nil {
		return nil, fmt.Errorf("%s: failed to list url records: %w", op, err)
	}

	urls := make([]*models.URL, 0, len(recs))
	for i := range recs {
		clicks, err := r.clicksForURL(ctx, recs[i].ID)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to get clicks: %w", op, err)
		}

		urls = append(urls, recs[i].toURL(clicks))
	}

	return urls, nil
}

func (r *URLRepository) clicksForURL(ctx context.Context, urlID int64) ([]clickRecord, error) {
	var clicks []clickRecord
	query := `SELECT url_id, clicked_at, referrer, location, user_agent
		FROM url_clicks
		WHERE url_id = $1
		ORDER BY clicked_at, id`

	if err := r.db.SelectContext(ctx, &clicks, query, urlID); err != nil {
		return nil, err
	}

	return clicks, nil
}
