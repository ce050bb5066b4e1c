package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coderfong/moq-pools-sub002/internal/listing"
	"github.com/coderfong/moq-pools-sub002/logger"
	pkgerr "github.com/coderfong/moq-pools-sub002/pkg/errors"
)

// PostgresStore persists external listings into Postgres via a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

// NewPostgresStore connects a pool for the given DSN.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return &PostgresStore{pool: pool, log: logger.ForStore()}, nil
}

const upsertListingSQL = `
INSERT INTO external_listings
    (url, platform, title, image, price, currency, moq, store_name, description,
     categories, terms, rating, orders, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW())
ON CONFLICT (url) DO UPDATE SET
    title       = EXCLUDED.title,
    image       = CASE WHEN EXCLUDED.image <> '' THEN EXCLUDED.image ELSE external_listings.image END,
    price       = EXCLUDED.price,
    currency    = EXCLUDED.currency,
    moq         = EXCLUDED.moq,
    store_name  = EXCLUDED.store_name,
    description = EXCLUDED.description,
    categories  = (SELECT ARRAY(SELECT DISTINCT unnest(external_listings.categories || EXCLUDED.categories))),
    terms       = (SELECT ARRAY(SELECT DISTINCT unnest(external_listings.terms || EXCLUDED.terms))),
    rating      = EXCLUDED.rating,
    orders      = EXCLUDED.orders,
    updated_at  = NOW()`

// UpsertListing inserts or updates one listing keyed by canonical URL.
func (s *PostgresStore) UpsertListing(ctx context.Context, l *listing.ExternalListing) error {
	_, err := s.pool.Exec(ctx, upsertListingSQL,
		l.URL, string(l.Platform), l.Title, l.Image, l.Price, l.Currency,
		l.MOQ, l.StoreName, l.Description, l.Categories, l.Terms, l.Rating, l.Orders)
	if err != nil {
		return pkgerr.NewPersistence(string(l.Platform), fmt.Sprintf("upsert listing %s", l.URL), err)
	}
	return nil
}

// UpsertListings writes a batch, continuing past individual failures.
func (s *PostgresStore) UpsertListings(ctx context.Context, items []listing.ExternalListing) (int, error) {
	written := 0
	var lastErr error
	for i := range items {
		if err := s.UpsertListing(ctx, &items[i]); err != nil {
			lastErr = err
			s.log.Debug().Err(err).Str("url", items[i].URL).Msg("Listing upsert failed")
			continue
		}
		written++
	}
	return written, lastErr
}

// GetDetail returns the persisted detail JSON and its timestamp.
func (s *PostgresStore) GetDetail(ctx context.Context, canonicalURL string) ([]byte, time.Time, error) {
	var detailJSON []byte
	var updatedAt *time.Time

	err := s.pool.QueryRow(ctx,
		`SELECT detail_json, detail_updated_at FROM external_listings WHERE url = $1`,
		canonicalURL).Scan(&detailJSON, &updatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, time.Time{}, ErrNotFound
		}
		return nil, time.Time{}, fmt.Errorf("get detail %s: %w", canonicalURL, err)
	}
	if detailJSON == nil || updatedAt == nil {
		return nil, time.Time{}, ErrNotFound
	}
	return detailJSON, *updatedAt, nil
}

// SaveDetail attaches detail JSON to the listing row. Creates a stub row when
// the listing was never upserted, so on-demand detail fetches still persist.
func (s *PostgresStore) SaveDetail(ctx context.Context, canonicalURL string, detailJSON []byte, updatedAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO external_listings (url, platform, title, detail_json, detail_updated_at, updated_at)
VALUES ($1, $2, '', $3, $4, NOW())
ON CONFLICT (url) DO UPDATE SET
    detail_json       = EXCLUDED.detail_json,
    detail_updated_at = EXCLUDED.detail_updated_at,
    updated_at        = NOW()`,
		canonicalURL, string(listing.PlatformForURL(canonicalURL)), detailJSON, updatedAt)
	if err != nil {
		return pkgerr.NewPersistence(string(listing.PlatformForURL(canonicalURL)),
			fmt.Sprintf("save detail %s", canonicalURL), err)
	}
	return nil
}

// Close releases the pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}
