package services

import (
	"context"
	"errors"
	"fmt"

	"propertyguru-scraper/models"
	"propertyguru-scraper/storage"
	"propertyguru-scraper/utils"
)

// BatchCounts holds insert/update/ignore tallies plus records that failed
// individually. Failures never inflate the three success counters.
type BatchCounts struct {
	Inserted int
	Updated  int
	Ignored  int
	Failed   int
}

func (c BatchCounts) String() string {
	return fmt.Sprintf("insert: %d | update: %d | ignore: %d | failed: %d",
		c.Inserted, c.Updated, c.Ignored, c.Failed)
}

func (c *BatchCounts) add(o BatchCounts) {
	c.Inserted += o.Inserted
	c.Updated += o.Updated
	c.Ignored += o.Ignored
	c.Failed += o.Failed
}

// BatchUpserter sequences reconciliation calls for a page's worth of
// candidates, isolating per-record failures so one bad record never aborts
// the batch. Cumulative totals are owned by the instance, not shared
// globally, so parallel test runs never interfere.
type BatchUpserter struct {
	recon  *Reconciler
	logger *utils.Logger
	totals BatchCounts
}

// NewBatchUpserter creates a coordinator around the given reconciler.
func NewBatchUpserter(recon *Reconciler, logger *utils.Logger) *BatchUpserter {
	return &BatchUpserter{recon: recon, logger: logger}
}

// RunBatch upserts the candidates in input order and returns the per-batch
// counts. Validation failures and insert-race conflicts are recoverable:
// they are logged, counted as Failed, and the batch continues. Any other
// error (store down, timeout) is batch-fatal: processing stops and the
// error is returned alongside the counts accumulated so far.
func (b *BatchUpserter) RunBatch(ctx context.Context, candidates []*models.Listing) (BatchCounts, error) {
	var counts BatchCounts

	for i, cand := range candidates {
		result, err := b.recon.Upsert(ctx, cand)
		if err != nil {
			if recoverable(err) {
				b.logger.Warn("[batch] record %d (%s) skipped: %v", i+1, cand.Key(), err)
				counts.Failed++
				continue
			}
			b.totals.add(counts)
			return counts, fmt.Errorf("batch aborted at record %d (%s) during upsert: %w",
				i+1, cand.Key(), err)
		}

		switch result.Outcome {
		case OutcomeInserted:
			counts.Inserted++
		case OutcomeUpdated:
			counts.Updated++
		case OutcomeIgnored:
			counts.Ignored++
		}
	}

	b.totals.add(counts)
	b.logger.Info("[batch] counts | %s | cumulative | %s", counts, b.totals)
	return counts, nil
}

// Totals returns the process-lifetime cumulative counters.
func (b *BatchUpserter) Totals() BatchCounts {
	return b.totals
}

// recoverable reports whether an upsert error affects only the single
// record. Everything else is treated as batch-fatal.
func recoverable(err error) bool {
	var vErr *models.ValidationError
	return errors.Is(err, storage.ErrConflict) || errors.As(err, &vErr)
}
