package models

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// Column names, shared between the field registry, the raw field maps
// emitted by the scraper, and the store's schema.
const (
	FieldExternalID       = "external_id"
	FieldTitle            = "title"
	FieldAddress          = "address"
	FieldURL              = "listing_url"
	FieldAvailability     = "availability"
	FieldProjectYear      = "project_year"
	FieldClosestMRT       = "closest_mrt"
	FieldDistanceToMRT    = "distance_to_closest_mrt"
	FieldVerified         = "is_verified_listing"
	FieldEveryoneWelcomed = "is_everyone_welcomed"
	FieldListedDate       = "listed_date"
	FieldAgentName        = "agent_name"
	FieldAgentRating      = "agent_rating"
	FieldSellingPrice     = "selling_price"
	FieldSellingPriceText = "selling_price_text"

	FieldDescription          = "description"
	FieldPropertyCategory     = "property_category"
	FieldPropertyCategoryText = "property_category_text"
	FieldTenure               = "tenure"
	FieldTenureText           = "tenure_text"
	FieldBedroomCount         = "bedroom_count"
	FieldBathroomCount        = "bathroom_count"
	FieldFurnishing           = "furnishing"
	FieldFloorSizeSqft        = "floor_size_sqft"
	FieldLandSizeSqft         = "land_size_sqft"
	FieldPSFFloor             = "psf_floor"
	FieldPSFLand              = "psf_land"
	FieldRawDetailsText       = "raw_details_text"
	FieldRawAmenitiesText     = "raw_amenities_text"
	FieldRawFacilitiesText    = "raw_facilities_text"
)

// fieldSpec describes one comparable column: how to test it for NULL, how to
// compare a candidate value against the stored one, how to stringify the
// prior value for the audit trail (NULL serializes to the empty string), and
// how to copy the candidate value onto the stored row.
type fieldSpec struct {
	column string
	isNil  func(*Listing) bool
	equal  func(stored, cand *Listing) bool
	old    func(*Listing) string
	apply  func(dst, src *Listing)
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// ptrField builds a spec for a nilable column whose underlying type is
// directly comparable.
func ptrField[T comparable](column string, get func(*Listing) **T, str func(T) string) fieldSpec {
	return fieldSpec{
		column: column,
		isNil:  func(l *Listing) bool { return *get(l) == nil },
		equal: func(stored, cand *Listing) bool {
			a, b := *get(stored), *get(cand)
			if a == nil || b == nil {
				return a == nil && b == nil
			}
			return *a == *b
		},
		old: func(l *Listing) string {
			p := *get(l)
			if p == nil {
				return ""
			}
			return str(*p)
		},
		apply: func(dst, src *Listing) { *get(dst) = copyPtr(*get(src)) },
	}
}

// decField compares by numeric value, not representation: 500000.00 scanned
// back from the store must equal a freshly parsed 500000.00.
func decField(column string, get func(*Listing) **decimal.Decimal) fieldSpec {
	return fieldSpec{
		column: column,
		isNil:  func(l *Listing) bool { return *get(l) == nil },
		equal: func(stored, cand *Listing) bool {
			a, b := *get(stored), *get(cand)
			if a == nil || b == nil {
				return a == nil && b == nil
			}
			return a.Equal(*b)
		},
		old: func(l *Listing) string {
			p := *get(l)
			if p == nil {
				return ""
			}
			return p.StringFixed(2)
		},
		apply: func(dst, src *Listing) {
			p := *get(src)
			if p == nil {
				*get(dst) = nil
				return
			}
			v := p.Copy()
			*get(dst) = &v
		},
	}
}

// dateField compares calendar dates only; timestamps scanned from a DATE
// column carry no meaningful clock component.
func dateField(column string) fieldSpec {
	return fieldSpec{
		column: column,
		isNil:  func(l *Listing) bool { return l.ListedDate == nil },
		equal: func(stored, cand *Listing) bool {
			a, b := stored.ListedDate, cand.ListedDate
			if a == nil || b == nil {
				return a == nil && b == nil
			}
			ay, am, ad := a.Date()
			by, bm, bd := b.Date()
			return ay == by && am == bm && ad == bd
		},
		old: func(l *Listing) string {
			if l.ListedDate == nil {
				return ""
			}
			return l.ListedDate.Format("2006-01-02")
		},
		apply: func(dst, src *Listing) { dst.ListedDate = copyPtr(src.ListedDate) },
	}
}

func itoa(v int) string          { return strconv.Itoa(v) }
func btoa(v bool) string         { return strconv.FormatBool(v) }
func ftoa(v float64) string      { return strconv.FormatFloat(v, 'g', -1, 64) }
func ident(v string) string      { return v }
func catS(v PropertyCategory) string { return string(v) }
func tenS(v Tenure) string       { return string(v) }

// listingFields is the statically declared, ordered set of listing-level
// columns a phase-1 upsert compares. Identity, lifecycle, and audit columns
// are deliberately absent: identity can never differ after a key lookup, and
// the engine owns the rest. Order is canonical schema order, which makes the
// diff deterministic.
var listingFields = []fieldSpec{
	{
		column: FieldTitle,
		isNil:  func(l *Listing) bool { return l.Title == "" },
		equal:  func(stored, cand *Listing) bool { return stored.Title == cand.Title },
		old:    func(l *Listing) string { return l.Title },
		apply:  func(dst, src *Listing) { dst.Title = src.Title },
	},
	ptrField(FieldAddress, func(l *Listing) **string { return &l.Address }, ident),
	{
		column: FieldURL,
		isNil:  func(l *Listing) bool { return l.URL == "" },
		equal:  func(stored, cand *Listing) bool { return stored.URL == cand.URL },
		old:    func(l *Listing) string { return l.URL },
		apply:  func(dst, src *Listing) { dst.URL = src.URL },
	},
	ptrField(FieldAvailability, func(l *Listing) **string { return &l.Availability }, ident),
	ptrField(FieldProjectYear, func(l *Listing) **int { return &l.ProjectYear }, itoa),
	ptrField(FieldClosestMRT, func(l *Listing) **string { return &l.ClosestMRT }, ident),
	ptrField(FieldDistanceToMRT, func(l *Listing) **int { return &l.DistanceToMRT }, itoa),
	ptrField(FieldVerified, func(l *Listing) **bool { return &l.Verified }, btoa),
	ptrField(FieldEveryoneWelcomed, func(l *Listing) **bool { return &l.EveryoneWelcomed }, btoa),
	dateField(FieldListedDate),
	ptrField(FieldAgentName, func(l *Listing) **string { return &l.AgentName }, ident),
	ptrField(FieldAgentRating, func(l *Listing) **float64 { return &l.AgentRating }, ftoa),
	decField(FieldSellingPrice, func(l *Listing) **decimal.Decimal { return &l.SellingPrice }),
	ptrField(FieldSellingPriceText, func(l *Listing) **string { return &l.SellingPriceText }, ident),
}

// detailFields is the detail-level column set, compared by UpdateDetails.
var detailFields = []fieldSpec{
	ptrField(FieldDescription, func(l *Listing) **string { return &l.Description }, ident),
	ptrField(FieldPropertyCategory, func(l *Listing) **PropertyCategory { return &l.PropertyCategory }, catS),
	ptrField(FieldPropertyCategoryText, func(l *Listing) **string { return &l.PropertyCategoryText }, ident),
	ptrField(FieldTenure, func(l *Listing) **Tenure { return &l.Tenure }, tenS),
	ptrField(FieldTenureText, func(l *Listing) **string { return &l.TenureText }, ident),
	ptrField(FieldBedroomCount, func(l *Listing) **int { return &l.BedroomCount }, itoa),
	ptrField(FieldBathroomCount, func(l *Listing) **int { return &l.BathroomCount }, itoa),
	ptrField(FieldFurnishing, func(l *Listing) **string { return &l.Furnishing }, ident),
	ptrField(FieldFloorSizeSqft, func(l *Listing) **int { return &l.FloorSizeSqft }, itoa),
	ptrField(FieldLandSizeSqft, func(l *Listing) **int { return &l.LandSizeSqft }, itoa),
	decField(FieldPSFFloor, func(l *Listing) **decimal.Decimal { return &l.PSFFloor }),
	decField(FieldPSFLand, func(l *Listing) **decimal.Decimal { return &l.PSFLand }),
	ptrField(FieldRawDetailsText, func(l *Listing) **string { return &l.RawDetailsText }, ident),
	ptrField(FieldRawAmenitiesText, func(l *Listing) **string { return &l.RawAmenitiesText }, ident),
	ptrField(FieldRawFacilitiesText, func(l *Listing) **string { return &l.RawFacilitiesText }, ident),
}

// FieldChange records one differing column and its prior stored value,
// already stringified for the audit trail.
type FieldChange struct {
	Column string
	Old    string
}

func diff(stored, cand *Listing, specs []fieldSpec) []FieldChange {
	var changes []FieldChange
	for _, f := range specs {
		if !f.equal(stored, cand) {
			changes = append(changes, FieldChange{Column: f.column, Old: f.old(stored)})
		}
	}
	return changes
}

func apply(dst, src *Listing, specs []fieldSpec, changes []FieldChange) {
	changed := make(map[string]struct{}, len(changes))
	for _, c := range changes {
		changed[c.Column] = struct{}{}
	}
	for _, f := range specs {
		if _, ok := changed[f.column]; ok {
			f.apply(dst, src)
		}
	}
}

// DiffListing compares the candidate against the stored row over the
// listing-level column set, in canonical order.
func DiffListing(stored, cand *Listing) []FieldChange {
	return diff(stored, cand, listingFields)
}

// ApplyListing copies the changed listing-level columns from cand onto dst.
func ApplyListing(dst, cand *Listing, changes []FieldChange) {
	apply(dst, cand, listingFields, changes)
}

// DiffDetails compares the candidate against the stored row over the
// detail-level column set, in canonical order.
func DiffDetails(stored, cand *Listing) []FieldChange {
	return diff(stored, cand, detailFields)
}

// ApplyDetails copies the changed detail-level columns from cand onto dst.
func ApplyDetails(dst, cand *Listing, changes []FieldChange) {
	apply(dst, cand, detailFields, changes)
}

// ApplyAllDetails copies every detail-level column from cand onto dst,
// used for the first detail fill.
func ApplyAllDetails(dst, cand *Listing) {
	for _, f := range detailFields {
		f.apply(dst, cand)
	}
}

// DetailsAllNull reports whether every detail-level column on the stored
// row is NULL, which marks the row as never having had a detail fill.
func DetailsAllNull(l *Listing) bool {
	for _, f := range detailFields {
		if !f.isNil(l) {
			return false
		}
	}
	return true
}

// OldValue returns the audit-trail stringification of a single column's
// current value, or false if the column is not a comparable field.
func OldValue(l *Listing, column string) (string, bool) {
	for _, f := range listingFields {
		if f.column == column {
			return f.old(l), true
		}
	}
	for _, f := range detailFields {
		if f.column == column {
			return f.old(l), true
		}
	}
	return "", false
}
