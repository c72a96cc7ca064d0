package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"propertyguru-scraper/config"
	"propertyguru-scraper/models"
	"propertyguru-scraper/scraper/propertyguru"
	"propertyguru-scraper/services"
	"propertyguru-scraper/storage"
	"propertyguru-scraper/utils"
)

func main() {
	logger := utils.NewLogger()
	cfg := config.Load()
	if cfg.Verbose {
		logger.EnableDebug()
	}

	logger.Info("=== PropertyGuru Scraping System starting ===")
	logger.Info("Config — mode: %s | bedrooms: %d | pages: %d | detail batch: %d | concurrency: %d | rate: %dms",
		cfg.ScrapeMode, cfg.UnitTypeCode, cfg.PagesToScrape, cfg.DetailBatchLimit,
		cfg.MaxConcurrency, cfg.RateLimitMs)

	sellingType := models.SellingType(cfg.ScrapeMode)
	if !sellingType.Valid() {
		logger.Error("Invalid SCRAPE_MODE %q (want Rent or Buy)", cfg.ScrapeMode)
		os.Exit(1)
	}
	unitType, ok := models.UnitTypeFromCode(cfg.UnitTypeCode)
	if !ok {
		logger.Error("Invalid UNIT_TYPE %d (want -1..5)", cfg.UnitTypeCode)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store storage.Store
	if cfg.DryRun {
		logger.Warn("DRY_RUN enabled — using in-memory store, nothing will be persisted")
		store = storage.NewMemoryStore()
	} else {
		pgStore, err := storage.NewPostgresStore(cfg.DSN(), logger)
		if err != nil {
			logger.Error("Failed to connect to PostgreSQL: %v", err)
			logger.Error("Make sure Docker is running: docker compose up -d")
			os.Exit(1)
		}
		store = pgStore
	}
	defer store.Close()

	normalizer := services.NewNormalizer(logger)
	reconciler := services.NewReconciler(store, logger)
	batcher := services.NewBatchUpserter(reconciler, logger)
	tracker := services.NewPendingTracker(store, logger)

	if cfg.MonitorAddr != "" {
		monitor := services.NewMonitor(store, batcher, logger)
		monitor.Start(cfg.MonitorAddr)
		defer monitor.Stop()
	}

	pgScraper := propertyguru.New(cfg, logger)

	// Phase 1: search pages → candidate listings → reconciled upserts
	rawCards, err := pgScraper.ScrapeListings(ctx)
	if err != nil {
		logger.Error("Listing scrape failed: %v", err)
	}
	if len(rawCards) == 0 && err != nil {
		logger.Error("No listings were scraped. Exiting.")
		os.Exit(1)
	}

	candidates := make([]*models.Listing, 0, len(rawCards))
	parseFailures := 0
	for _, raw := range rawCards {
		cand, failures := normalizer.NormalizeListing(raw, sellingType, unitType)
		parseFailures += len(failures)
		candidates = append(candidates, cand)
	}
	if parseFailures > 0 {
		logger.Warn("Normalization degraded %d field(s) to NULL across %d cards",
			parseFailures, len(rawCards))
	}

	counts, err := batcher.RunBatch(ctx, candidates)
	if err != nil {
		logger.Error("Batch upsert aborted: %v", err)
		os.Exit(1)
	}
	logger.Info("Phase 1 complete: %s", counts)

	// Phase 2: work through the pending-details queue
	pending, err := tracker.NextBatch(ctx, cfg.DetailBatchLimit)
	if err != nil {
		logger.Error("Failed to load pending-details queue: %v", err)
		os.Exit(1)
	}

	if len(pending) > 0 {
		detailRaw := pgScraper.ScrapeDetails(ctx, pending)

		var filled, updated, unchanged int
		for _, l := range pending {
			raw, fetched := detailRaw[l.Key()]
			if !fetched {
				continue
			}
			details, failures := normalizer.NormalizeDetails(raw)
			if len(failures) > 0 {
				logger.Debug("Details for %s degraded %d field(s) to NULL", l.Key(), len(failures))
			}

			result, err := reconciler.UpdateDetails(ctx, l.Key(), details)
			if err != nil {
				logger.Warn("Detail update failed for %s: %v", l.Key(), err)
				continue
			}
			switch result.Outcome {
			case services.DetailFirstFill:
				filled++
			case services.DetailUpdated:
				updated++
			case services.DetailNoChange:
				unchanged++
			}
		}
		logger.Info("Phase 2 complete: %d filled, %d updated, %d unchanged, %d still pending",
			filled, updated, unchanged, len(pending)-len(detailRaw))
	} else {
		logger.Info("Phase 2: pending-details queue is empty")
	}

	// Export and report on the reconciled dataset
	all, err := store.FetchAll(ctx)
	if err != nil {
		logger.Error("Failed to fetch listings for export: %v", err)
		os.Exit(1)
	}

	csvWriter, err := storage.NewCSVWriter(cfg.CSVOutputPath)
	if err != nil {
		logger.Error("Failed to create CSV writer: %v", err)
		os.Exit(1)
	}
	defer csvWriter.Close()

	if err := csvWriter.WriteListings(all); err != nil {
		logger.Error("CSV export failed: %v", err)
	} else {
		logger.Info("Exported %d listings to %s", len(all), cfg.CSVOutputPath)
	}

	insightSvc := services.NewInsightService(logger)
	report := insightSvc.Generate(all)
	insightSvc.Print(report)

	logger.Info("Done. Totals this run: %s", batcher.Totals())
}
