package services

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"propertyguru-scraper/storage"
	"propertyguru-scraper/utils"
)

// Monitor exposes a small read-only HTTP surface over the store while a
// scrape runs: stored listings, pending-work depth, and the coordinator's
// cumulative counters. It never writes.
type Monitor struct {
	store  storage.Store
	batch  *BatchUpserter
	logger *utils.Logger
	server *http.Server
}

// NewMonitor creates a Monitor over the given store and coordinator.
func NewMonitor(store storage.Store, batch *BatchUpserter, logger *utils.Logger) *Monitor {
	return &Monitor{store: store, batch: batch, logger: logger}
}

// Start serves the monitoring endpoints on addr in a background goroutine.
func (m *Monitor) Start(addr string) {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", m.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/listings", m.handleListings).Methods(http.MethodGet)
	r.HandleFunc("/counters", m.handleCounters).Methods(http.MethodGet)

	m.server = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		m.logger.Info("[monitor] listening on %s", addr)
		if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.logger.Error("[monitor] server stopped: %v", err)
		}
	}()
}

// Stop shuts the monitor down, waiting briefly for in-flight requests.
func (m *Monitor) Stop() {
	if m.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = m.server.Shutdown(ctx)
}

func (m *Monitor) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (m *Monitor) handleListings(w http.ResponseWriter, r *http.Request) {
	listings, err := m.store.FetchAll(r.Context())
	if err != nil {
		m.logger.Error("[monitor] fetch all: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "store unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, listings)
}

func (m *Monitor) handleCounters(w http.ResponseWriter, r *http.Request) {
	pending, err := m.store.PendingDetails(r.Context(), 0)
	if err != nil {
		m.logger.Error("[monitor] pending details: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "store unavailable"})
		return
	}

	totals := m.batch.Totals()
	writeJSON(w, http.StatusOK, map[string]int{
		"inserted":        totals.Inserted,
		"updated":         totals.Updated,
		"ignored":         totals.Ignored,
		"failed":          totals.Failed,
		"pending_details": len(pending),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
