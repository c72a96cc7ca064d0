package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SellingType is the market side a listing was scraped from.
type SellingType string

const (
	SellingBuy  SellingType = "Buy"
	SellingRent SellingType = "Rent"
)

// Valid reports whether the selling type is one of the known enum values.
func (s SellingType) Valid() bool {
	return s == SellingBuy || s == SellingRent
}

// UnitType is the unit-size bucket used by the portal's search filter.
type UnitType string

const (
	UnitRoom     UnitType = "Room"
	UnitStudio   UnitType = "Studio"
	Unit1Bedroom UnitType = "1 Bedroom"
	Unit2Bedroom UnitType = "2 Bedroom"
	Unit3Bedroom UnitType = "3 Bedroom"
	Unit4Bedroom UnitType = "4 Bedroom"
	Unit5Bedroom UnitType = "5+ Bedroom"
)

// UnitTypeFromCode maps the portal's numeric bedrooms filter to a UnitType:
// -1 is Room, 0 is Studio, 1..4 are bedroom counts, 5 means five or more.
func UnitTypeFromCode(code int) (UnitType, bool) {
	switch code {
	case -1:
		return UnitRoom, true
	case 0:
		return UnitStudio, true
	case 1:
		return Unit1Bedroom, true
	case 2:
		return Unit2Bedroom, true
	case 3:
		return Unit3Bedroom, true
	case 4:
		return Unit4Bedroom, true
	case 5:
		return Unit5Bedroom, true
	}
	return "", false
}

// Valid reports whether the unit type is one of the known enum values.
func (u UnitType) Valid() bool {
	switch u {
	case UnitRoom, UnitStudio, Unit1Bedroom, Unit2Bedroom, Unit3Bedroom, Unit4Bedroom, Unit5Bedroom:
		return true
	}
	return false
}

// PropertyCategory classifies the property, derived from free text on the
// detail page.
type PropertyCategory string

const (
	CategoryHDB    PropertyCategory = "HDB"
	CategoryCondo  PropertyCategory = "Condo"
	CategoryLanded PropertyCategory = "Landed"
)

// Tenure is the land-ownership scheme stated on the detail page.
type Tenure string

const (
	TenureFreehold  Tenure = "Freehold"
	TenureLeasehold Tenure = "Leasehold"
)

// ListingKey is the composite uniqueness key: at most one stored row exists
// per key triple, enforced by the store's unique constraint.
type ListingKey struct {
	ExternalID  string
	SellingType SellingType
	UnitType    UnitType
}

func (k ListingKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.ExternalID, k.SellingType, k.UnitType)
}

// AuditDelimiter joins field names and prior values in the audit columns.
const AuditDelimiter = " || "

// DetailsFirstFillMarker is written to UpdatedFields when detail columns are
// populated for the first time, instead of an enumerated diff.
const DetailsFirstFillMarker = "details_first_fill"

// Listing is the persisted unit. Listing-level fields come from a search
// results card (phase 1); detail-level fields come from the listing's own
// page (phase 2) and stay nil until then. Nilable fields are pointers so a
// missing value survives the round trip to the store as NULL.
type Listing struct {
	ID int64

	// Identity (the key triple)
	ExternalID  string
	SellingType SellingType
	UnitType    UnitType

	// Listing-level facts
	Title            string
	Address          *string
	URL              string
	Availability     *string
	ProjectYear      *int
	ClosestMRT       *string
	DistanceToMRT    *int // meters
	Verified         *bool
	EveryoneWelcomed *bool
	ListedDate       *time.Time
	AgentName        *string
	AgentRating      *float64
	SellingPrice     *decimal.Decimal
	SellingPriceText *string

	// Detail-level facts
	Description          *string
	PropertyCategory     *PropertyCategory
	PropertyCategoryText *string
	Tenure               *Tenure
	TenureText           *string
	BedroomCount         *int
	BathroomCount        *int
	Furnishing           *string
	FloorSizeSqft        *int
	LandSizeSqft         *int
	PSFFloor             *decimal.Decimal
	PSFLand              *decimal.Decimal
	RawDetailsText       *string
	RawAmenitiesText     *string
	RawFacilitiesText    *string

	// Lifecycle and audit
	DetailsFetched   bool
	CreatedAt        time.Time
	UpdatedAt        *time.Time
	UpdatedFields    *string
	UpdatedOldValues *string
}

// Key returns the listing's composite uniqueness key.
func (l *Listing) Key() ListingKey {
	return ListingKey{ExternalID: l.ExternalID, SellingType: l.SellingType, UnitType: l.UnitType}
}

// ValidationError rejects a candidate record before it reaches the store.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid listing: %s %s", e.Field, e.Reason)
}

// Validate checks required identity fields and numeric ranges. A failing
// candidate must never touch the store.
func (l *Listing) Validate() error {
	if l.ExternalID == "" {
		return &ValidationError{Field: "external_id", Reason: "cannot be empty"}
	}
	if l.Title == "" {
		return &ValidationError{Field: "title", Reason: "cannot be empty"}
	}
	if l.URL == "" {
		return &ValidationError{Field: "listing_url", Reason: "cannot be empty"}
	}
	if !l.SellingType.Valid() {
		return &ValidationError{Field: "selling_type", Reason: fmt.Sprintf("unknown value %q", l.SellingType)}
	}
	if !l.UnitType.Valid() {
		return &ValidationError{Field: "unit_type", Reason: fmt.Sprintf("unknown value %q", l.UnitType)}
	}
	if l.AgentRating != nil && (*l.AgentRating < 0 || *l.AgentRating > 5) {
		return &ValidationError{Field: "agent_rating", Reason: "must be between 0 and 5"}
	}
	intChecks := []struct {
		field string
		val   *int
	}{
		{"project_year", l.ProjectYear},
		{"distance_to_closest_mrt", l.DistanceToMRT},
		{"bedroom_count", l.BedroomCount},
		{"bathroom_count", l.BathroomCount},
		{"floor_size_sqft", l.FloorSizeSqft},
		{"land_size_sqft", l.LandSizeSqft},
	}
	for _, c := range intChecks {
		if c.val != nil && *c.val < 0 {
			return &ValidationError{Field: c.field, Reason: "cannot be negative"}
		}
	}
	decChecks := []struct {
		field string
		val   *decimal.Decimal
	}{
		{"selling_price", l.SellingPrice},
		{"psf_floor", l.PSFFloor},
		{"psf_land", l.PSFLand},
	}
	for _, c := range decChecks {
		if c.val != nil && c.val.IsNegative() {
			return &ValidationError{Field: c.field, Reason: "cannot be negative"}
		}
	}
	return nil
}

// Clone returns a deep copy. Stores hand out clones so callers can never
// mutate persisted state behind the engine's back.
func (l *Listing) Clone() *Listing {
	c := *l
	c.Address = cloneStr(l.Address)
	c.Availability = cloneStr(l.Availability)
	c.ProjectYear = cloneInt(l.ProjectYear)
	c.ClosestMRT = cloneStr(l.ClosestMRT)
	c.DistanceToMRT = cloneInt(l.DistanceToMRT)
	c.Verified = cloneBool(l.Verified)
	c.EveryoneWelcomed = cloneBool(l.EveryoneWelcomed)
	c.ListedDate = cloneTime(l.ListedDate)
	c.AgentName = cloneStr(l.AgentName)
	c.AgentRating = cloneFloat(l.AgentRating)
	c.SellingPrice = cloneDec(l.SellingPrice)
	c.SellingPriceText = cloneStr(l.SellingPriceText)
	c.Description = cloneStr(l.Description)
	if l.PropertyCategory != nil {
		v := *l.PropertyCategory
		c.PropertyCategory = &v
	}
	c.PropertyCategoryText = cloneStr(l.PropertyCategoryText)
	if l.Tenure != nil {
		v := *l.Tenure
		c.Tenure = &v
	}
	c.TenureText = cloneStr(l.TenureText)
	c.BedroomCount = cloneInt(l.BedroomCount)
	c.BathroomCount = cloneInt(l.BathroomCount)
	c.Furnishing = cloneStr(l.Furnishing)
	c.FloorSizeSqft = cloneInt(l.FloorSizeSqft)
	c.LandSizeSqft = cloneInt(l.LandSizeSqft)
	c.PSFFloor = cloneDec(l.PSFFloor)
	c.PSFLand = cloneDec(l.PSFLand)
	c.RawDetailsText = cloneStr(l.RawDetailsText)
	c.RawAmenitiesText = cloneStr(l.RawAmenitiesText)
	c.RawFacilitiesText = cloneStr(l.RawFacilitiesText)
	c.UpdatedAt = cloneTime(l.UpdatedAt)
	c.UpdatedFields = cloneStr(l.UpdatedFields)
	c.UpdatedOldValues = cloneStr(l.UpdatedOldValues)
	return &c
}

func cloneStr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneBool(p *bool) *bool {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneDec(p *decimal.Decimal) *decimal.Decimal {
	if p == nil {
		return nil
	}
	v := p.Copy()
	return &v
}

// RawFields is one raw extracted field set for a listing card or detail
// page, keyed by column name. Values are untyped text straight off the
// page; the normalizer owns all parsing. A missing key means the field was
// not present on the page.
type RawFields map[string]string
