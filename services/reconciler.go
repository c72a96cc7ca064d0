package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"propertyguru-scraper/models"
	"propertyguru-scraper/storage"
	"propertyguru-scraper/utils"
)

// Outcome is the decision an upsert reached for one candidate record.
type Outcome string

const (
	OutcomeInserted Outcome = "inserted"
	OutcomeUpdated  Outcome = "updated"
	OutcomeIgnored  Outcome = "ignored"
)

// UpsertResult reports the outcome of a phase-1 upsert. ChangedFields is
// populated only for OutcomeUpdated, in canonical schema order.
type UpsertResult struct {
	Outcome       Outcome
	ChangedFields []string
}

// DetailOutcome is the decision UpdateDetails reached.
type DetailOutcome string

const (
	// DetailFirstFill means every detail column was NULL before this call:
	// the row counts as populated no matter what values were supplied.
	DetailFirstFill DetailOutcome = "first_fill"
	DetailUpdated   DetailOutcome = "updated"
	DetailNoChange  DetailOutcome = "no_change"
)

// DetailResult reports the outcome of a phase-2 detail update.
type DetailResult struct {
	Outcome       DetailOutcome
	ChangedFields []string
}

// Reconciler decides, for each incoming candidate, whether it is a new
// entity, an unchanged duplicate, or a modification of stored state, and
// encodes the audit trail for modifications. It is the store's only write
// surface; each call runs inside its own scoped transaction.
type Reconciler struct {
	store  storage.Store
	logger *utils.Logger
	now    func() time.Time
}

// NewReconciler creates a Reconciler writing through the given store.
func NewReconciler(store storage.Store, logger *utils.Logger) *Reconciler {
	return &Reconciler{store: store, logger: logger, now: time.Now}
}

// Upsert reconciles a phase-1 candidate against stored state.
//
// Not found: the row is inserted with details_fetched = false and no audit
// trail. Found: the listing-level columns are compared with type-aware
// equality; a non-empty diff applies the new values, records the changed
// column names and prior values, stamps updated_at, and resets
// details_fetched so the row re-enters the phase-2 queue. An empty diff
// writes nothing at all.
func (r *Reconciler) Upsert(ctx context.Context, cand *models.Listing) (UpsertResult, error) {
	if err := cand.Validate(); err != nil {
		return UpsertResult{}, err
	}

	var result UpsertResult
	err := r.store.WithTx(ctx, func(tx storage.Tx) error {
		existing, err := tx.FetchByKey(cand.Key())
		if err != nil {
			return err
		}

		if existing == nil {
			insert := cand.Clone()
			insert.DetailsFetched = false
			insert.UpdatedAt = nil
			insert.UpdatedFields = nil
			insert.UpdatedOldValues = nil
			if err := tx.Insert(insert); err != nil {
				return err
			}
			result = UpsertResult{Outcome: OutcomeInserted}
			return nil
		}

		changes := models.DiffListing(existing, cand)
		if len(changes) == 0 {
			result = UpsertResult{Outcome: OutcomeIgnored}
			return nil
		}

		models.ApplyListing(existing, cand, changes)
		r.stampAudit(existing, changes)
		existing.DetailsFetched = false
		if err := tx.Update(existing); err != nil {
			return err
		}
		result = UpsertResult{Outcome: OutcomeUpdated, ChangedFields: changedColumns(changes)}
		return nil
	})
	if err != nil {
		return UpsertResult{}, err
	}

	switch result.Outcome {
	case OutcomeInserted:
		r.logger.Info("[reconciler] insert | %s | %s", cand.Key(), cand.Title)
	case OutcomeUpdated:
		r.logger.Info("[reconciler] update | %s | changed: %s",
			cand.Key(), strings.Join(result.ChangedFields, ", "))
	default:
		r.logger.Debug("[reconciler] ignore | %s", cand.Key())
	}
	return result, nil
}

// UpdateDetails reconciles phase-2 detail fields onto a stored row.
//
// When every detail column is currently NULL this is the first detail fill:
// all supplied values are applied unconditionally, the audit field records
// the first-fill marker instead of an enumerated diff, and prior values stay
// NULL. Otherwise the detail columns are diffed exactly like a phase-1
// update. In every case details_fetched becomes true, even when nothing
// changed: a listing whose details were already correct still counts as
// fetched.
func (r *Reconciler) UpdateDetails(ctx context.Context, key models.ListingKey, details *models.Listing) (DetailResult, error) {
	var result DetailResult
	err := r.store.WithTx(ctx, func(tx storage.Tx) error {
		existing, err := tx.FetchByKey(key)
		if err != nil {
			return err
		}
		if existing == nil {
			return fmt.Errorf("reconciler: update details %s: %w", key, storage.ErrNotFound)
		}

		if models.DetailsAllNull(existing) {
			models.ApplyAllDetails(existing, details)
			now := r.now()
			existing.UpdatedAt = &now
			marker := models.DetailsFirstFillMarker
			existing.UpdatedFields = &marker
			existing.UpdatedOldValues = nil
			existing.DetailsFetched = true
			if err := tx.Update(existing); err != nil {
				return err
			}
			result = DetailResult{Outcome: DetailFirstFill}
			return nil
		}

		changes := models.DiffDetails(existing, details)
		if len(changes) == 0 {
			if !existing.DetailsFetched {
				existing.DetailsFetched = true
				if err := tx.Update(existing); err != nil {
					return err
				}
			}
			result = DetailResult{Outcome: DetailNoChange}
			return nil
		}

		models.ApplyDetails(existing, details, changes)
		r.stampAudit(existing, changes)
		existing.DetailsFetched = true
		if err := tx.Update(existing); err != nil {
			return err
		}
		result = DetailResult{Outcome: DetailUpdated, ChangedFields: changedColumns(changes)}
		return nil
	})
	if err != nil {
		return DetailResult{}, err
	}

	switch result.Outcome {
	case DetailFirstFill:
		r.logger.Info("[reconciler] details filled | %s", key)
	case DetailUpdated:
		r.logger.Info("[reconciler] details updated | %s | changed: %s",
			key, strings.Join(result.ChangedFields, ", "))
	default:
		r.logger.Debug("[reconciler] details unchanged | %s", key)
	}
	return result, nil
}

// stampAudit writes the change record onto the row: updated_at plus the two
// parallel delimited audit columns, equal length by construction.
func (r *Reconciler) stampAudit(l *models.Listing, changes []models.FieldChange) {
	now := r.now()
	l.UpdatedAt = &now

	names := make([]string, len(changes))
	olds := make([]string, len(changes))
	for i, c := range changes {
		names[i] = c.Column
		olds[i] = c.Old
	}
	fields := strings.Join(names, models.AuditDelimiter)
	values := strings.Join(olds, models.AuditDelimiter)
	l.UpdatedFields = &fields
	l.UpdatedOldValues = &values
}

func changedColumns(changes []models.FieldChange) []string {
	cols := make([]string, len(changes))
	for i, c := range changes {
		cols[i] = c.Column
	}
	return cols
}
