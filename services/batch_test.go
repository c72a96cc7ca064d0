package services

import (
	"context"
	"errors"
	"testing"

	"propertyguru-scraper/models"
	"propertyguru-scraper/storage"
	"propertyguru-scraper/utils"
)

func TestRunBatchIsolatesBadRecord(t *testing.T) {
	ctx := context.Background()
	recon, store := testReconciler(t)
	batch := NewBatchUpserter(recon, utils.NewLogger())

	bad := candidate("101")
	bad.Title = "" // fails validation

	counts, err := batch.RunBatch(ctx, []*models.Listing{
		candidate("100"), bad, candidate("102"),
	})
	if err != nil {
		t.Fatalf("batch must survive a recoverable failure: %v", err)
	}

	want := BatchCounts{Inserted: 2, Failed: 1}
	if counts != want {
		t.Errorf("counts: got %+v, want %+v", counts, want)
	}

	// Records after the bad one were still processed.
	if store.Len() != 2 {
		t.Errorf("store rows: got %d, want 2", store.Len())
	}
}

func TestRunBatchCumulativeTotals(t *testing.T) {
	ctx := context.Background()
	recon, _ := testReconciler(t)
	batch := NewBatchUpserter(recon, utils.NewLogger())

	if _, err := batch.RunBatch(ctx, []*models.Listing{candidate("100")}); err != nil {
		t.Fatalf("first batch: %v", err)
	}

	// Second batch: one duplicate (ignored) and one fresh insert.
	counts, err := batch.RunBatch(ctx, []*models.Listing{candidate("100"), candidate("200")})
	if err != nil {
		t.Fatalf("second batch: %v", err)
	}
	if (counts != BatchCounts{Inserted: 1, Ignored: 1}) {
		t.Errorf("second batch counts: got %+v", counts)
	}

	totals := batch.Totals()
	if (totals != BatchCounts{Inserted: 2, Ignored: 1}) {
		t.Errorf("cumulative totals: got %+v", totals)
	}
}

func TestRunBatchScenario(t *testing.T) {
	ctx := context.Background()
	recon, _ := testReconciler(t)
	batch := NewBatchUpserter(recon, utils.NewLogger())

	// Run 1: new record.
	counts, err := batch.RunBatch(ctx, []*models.Listing{candidate("100")})
	if err != nil {
		t.Fatal(err)
	}
	if (counts != BatchCounts{Inserted: 1}) {
		t.Errorf("run 1 counts: got %+v", counts)
	}

	// Run 2: identical record.
	counts, err = batch.RunBatch(ctx, []*models.Listing{candidate("100")})
	if err != nil {
		t.Fatal(err)
	}
	if (counts != BatchCounts{Ignored: 1}) {
		t.Errorf("run 2 counts: got %+v", counts)
	}

	// Run 3: same key, new title.
	changed := candidate("100")
	changed.Title = "Renamed"
	counts, err = batch.RunBatch(ctx, []*models.Listing{changed})
	if err != nil {
		t.Fatal(err)
	}
	if (counts != BatchCounts{Updated: 1}) {
		t.Errorf("run 3 counts: got %+v", counts)
	}

	if totals := batch.Totals(); (totals != BatchCounts{Inserted: 1, Updated: 1, Ignored: 1}) {
		t.Errorf("totals: got %+v", totals)
	}
}

// brokenStore fails every transaction, simulating a store outage.
type brokenStore struct {
	*storage.MemoryStore
	err error
}

func (s *brokenStore) WithTx(ctx context.Context, fn func(storage.Tx) error) error {
	return s.err
}

func TestRunBatchFatalErrorAborts(t *testing.T) {
	ctx := context.Background()
	outage := errors.New("connection refused")
	store := &brokenStore{MemoryStore: storage.NewMemoryStore(), err: outage}
	batch := NewBatchUpserter(NewReconciler(store, utils.NewLogger()), utils.NewLogger())

	counts, err := batch.RunBatch(ctx, []*models.Listing{candidate("100"), candidate("200")})
	if !errors.Is(err, outage) {
		t.Fatalf("expected wrapped outage error, got %v", err)
	}
	if counts != (BatchCounts{}) {
		t.Errorf("counts before abort: got %+v, want zero", counts)
	}
}
