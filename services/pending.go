package services

import (
	"context"
	"strconv"

	"propertyguru-scraper/models"
	"propertyguru-scraper/storage"
	"propertyguru-scraper/utils"
)

// PendingTracker selects stored listings still awaiting detail enrichment.
// Selection is driven purely by the persisted details_fetched flag, so a
// crashed detail run resumes where it left off: only the entity being
// processed at crash time is re-fetched.
type PendingTracker struct {
	store  storage.Store
	logger *utils.Logger
}

// NewPendingTracker creates a tracker reading from the given store.
func NewPendingTracker(store storage.Store, logger *utils.Logger) *PendingTracker {
	return &PendingTracker{store: store, logger: logger}
}

// NextBatch returns listings with details_fetched = false, capped at limit
// when limit > 0 and unbounded otherwise. Tie order among pending rows is
// store-default and carries no guarantee.
func (t *PendingTracker) NextBatch(ctx context.Context, limit int) ([]*models.Listing, error) {
	pending, err := t.store.PendingDetails(ctx, limit)
	if err != nil {
		return nil, err
	}
	t.logger.Info("[pending] %d listing(s) awaiting detail fetch (limit: %s)",
		len(pending), limitLabel(limit))
	return pending, nil
}

func limitLabel(limit int) string {
	if limit <= 0 {
		return "none"
	}
	return strconv.Itoa(limit)
}
