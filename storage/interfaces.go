package storage

import (
	"context"
	"errors"

	"propertyguru-scraper/models"
)

// ErrConflict is returned when an insert collides with the composite unique
// constraint on (external_id, selling_type, unit_type). It marks a
// recoverable, per-record condition.
var ErrConflict = errors.New("storage: conflicting listing already exists")

// ErrNotFound is returned when a key triple has no stored row.
var ErrNotFound = errors.New("storage: listing not found")

// Tx is the write surface available inside one scoped transaction. The
// reconciliation engine is the only component that uses it.
type Tx interface {
	// FetchByKey returns the stored row for a key triple, or (nil, nil)
	// when no row exists.
	FetchByKey(key models.ListingKey) (*models.Listing, error)

	// Insert creates a new row. The store assigns created_at. Returns an
	// error wrapping ErrConflict when the unique constraint fires.
	Insert(l *models.Listing) error

	// Update rewrites every column of the row identified by l.Key().
	Update(l *models.Listing) error
}

// Store is the persisted listing store. WithTx scopes a transaction to a
// single reconciliation call: read, compare, write, then commit or roll
// back before returning. Read accessors outside WithTx are for reporting
// and the pending-work tracker only.
type Store interface {
	WithTx(ctx context.Context, fn func(Tx) error) error

	FetchByKey(ctx context.Context, key models.ListingKey) (*models.Listing, error)
	FetchAll(ctx context.Context) ([]*models.Listing, error)

	// PendingDetails returns rows with details_fetched = false, capped at
	// limit when limit > 0. Tie order is store-default and not guaranteed.
	PendingDetails(ctx context.Context, limit int) ([]*models.Listing, error)

	Close() error
}
