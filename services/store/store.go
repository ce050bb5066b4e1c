package store

import (
	"context"
	"errors"
	"time"

	"github.com/coderfong/moq-pools-sub002/internal/listing"
)

// ErrNotFound is returned when a listing or detail record does not exist.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence contract for the acquisition pipeline. The whole
// pipeline must keep functioning when a Store call fails; callers treat write
// failures as best-effort.
type Store interface {
	// UpsertListing inserts or updates a listing keyed by its canonical URL.
	UpsertListing(ctx context.Context, l *listing.ExternalListing) error

	// UpsertListings upserts a batch, continuing past individual failures.
	// Returns the number of rows successfully written.
	UpsertListings(ctx context.Context, items []listing.ExternalListing) (int, error)

	// GetDetail returns the persisted detail JSON and its update timestamp
	// for a canonical URL. ErrNotFound when no detail has been stored.
	GetDetail(ctx context.Context, canonicalURL string) ([]byte, time.Time, error)

	// SaveDetail attaches detail JSON and a timestamp to a listing record.
	SaveDetail(ctx context.Context, canonicalURL string, detailJSON []byte, updatedAt time.Time) error

	// Close releases the underlying connections.
	Close()
}
