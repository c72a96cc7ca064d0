package services

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"propertyguru-scraper/models"
	"propertyguru-scraper/utils"
)

var (
	// priceRegexp keeps only the numeric part of a display price
	priceStripRegexp = regexp.MustCompile(`[^\d.]`)
	// distanceRegexp matches "(460 m)" or "(1.04 km)" in location text
	distanceRegexp = regexp.MustCompile(`\(([\d.]+)\s*(km|m)\)`)
	// projectYearRegexp matches "Built: 2016" or "New Project: 2027"
	projectYearRegexp = regexp.MustCompile(`(Built:|New Project:)\s*(\d{4})`)
	// listedDateRegexp extracts the date from "Listed on May 5, 2025"
	listedDateRegexp = regexp.MustCompile(`Listed on\s+(\w+\s\d{1,2},\s\d{4})`)
	// stationRegexp extracts the station name from "8 min (460 m) from Redhill MRT"
	stationRegexp = regexp.MustCompile(`from\s+(.+)`)
	// sqftRegexp pulls a square-footage number out of "1,023 sqft floor area"
	sqftRegexp = regexp.MustCompile(`([\d,]+(?:\.\d+)?)\s*sqft`)
	// countRegexp grabs the first digit run in a bed/bath count
	countRegexp = regexp.MustCompile(`\d+`)
)

// Category keyword vocabularies. Priority is HDB > Condo > Landed: HDB
// keywords are the most specific, landed the broadest.
var (
	hdbKeywords   = []string{"hdb"}
	condoKeywords = []string{
		"condominium", "apartment", "walk-up", "cluster house",
		"executive condominium",
	}
	landedKeywords = []string{
		"terraced house", "detached house", "semi-detached house",
		"corner terrace", "bungalow house", "good class bungalow",
		"shophouse", "land only", "town house", "conservation house",
	}
)

// ParseFailure records one field that could not be normalized. Failures are
// diagnostics, never fatal: the field degrades to NULL.
type ParseFailure struct {
	Field  string
	Value  string
	Reason string
}

func (f ParseFailure) String() string {
	return fmt.Sprintf("%s=%q: %s", f.Field, f.Value, f.Reason)
}

// Normalizer converts raw extracted field sets into typed candidate
// listings. Every emitted value conforms to the target type or is nil;
// malformed input never aborts normalization.
type Normalizer struct {
	logger *utils.Logger
}

// NewNormalizer creates a Normalizer with the given logger.
func NewNormalizer(logger *utils.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// NormalizeListing builds a phase-1 candidate from a listing card's raw
// fields plus the scraping context (the search filters the card came from).
func (n *Normalizer) NormalizeListing(raw models.RawFields, sellingType models.SellingType, unitType models.UnitType) (*models.Listing, []ParseFailure) {
	var failures []ParseFailure
	fail := func(field, value, reason string) {
		failures = append(failures, ParseFailure{Field: field, Value: value, Reason: reason})
	}

	l := &models.Listing{
		ExternalID:  strings.TrimSpace(raw[models.FieldExternalID]),
		SellingType: sellingType,
		UnitType:    unitType,
	}
	l.Title = normalizeText(raw[models.FieldTitle])
	l.URL = strings.TrimSpace(raw[models.FieldURL])
	l.Address = optionalText(raw, models.FieldAddress)
	l.Availability = optionalText(raw, models.FieldAvailability)

	if v, ok := nonEmpty(raw, models.FieldProjectYear); ok {
		if year, err := parseProjectYear(v); err != nil {
			fail(models.FieldProjectYear, v, err.Error())
		} else {
			l.ProjectYear = &year
		}
	}

	if v, ok := nonEmpty(raw, models.FieldClosestMRT); ok {
		station := parseStation(v)
		if station != "" {
			l.ClosestMRT = &station
		}
	}

	if v, ok := nonEmpty(raw, models.FieldDistanceToMRT); ok {
		if meters, err := parseDistanceMeters(v); err != nil {
			fail(models.FieldDistanceToMRT, v, err.Error())
		} else {
			l.DistanceToMRT = &meters
		}
	}

	if v, ok := nonEmpty(raw, models.FieldVerified); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err != nil {
			fail(models.FieldVerified, v, "not a boolean")
		} else {
			l.Verified = &b
		}
	}

	if v, ok := nonEmpty(raw, models.FieldEveryoneWelcomed); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err != nil {
			fail(models.FieldEveryoneWelcomed, v, "not a boolean")
		} else {
			l.EveryoneWelcomed = &b
		}
	}

	if v, ok := nonEmpty(raw, models.FieldListedDate); ok {
		if d, err := parseListedDate(v); err != nil {
			fail(models.FieldListedDate, v, err.Error())
		} else {
			l.ListedDate = &d
		}
	}

	l.AgentName = optionalText(raw, models.FieldAgentName)

	if v, ok := nonEmpty(raw, models.FieldAgentRating); ok {
		if rating, err := parseRating(v); err != nil {
			fail(models.FieldAgentRating, v, err.Error())
		} else {
			l.AgentRating = &rating
		}
	}

	if v, ok := nonEmpty(raw, models.FieldSellingPrice); ok {
		if price, err := parsePrice(v); err != nil {
			fail(models.FieldSellingPrice, v, err.Error())
		} else {
			l.SellingPrice = &price
		}
	}
	l.SellingPriceText = optionalText(raw, models.FieldSellingPriceText)

	for _, f := range failures {
		n.logger.Debug("[normalizer] parse failure: %s", f)
	}
	return l, failures
}

// NormalizeDetails builds a detail-field candidate from a detail page's raw
// fields. Only detail-level columns are populated.
func (n *Normalizer) NormalizeDetails(raw models.RawFields) (*models.Listing, []ParseFailure) {
	var failures []ParseFailure
	fail := func(field, value, reason string) {
		failures = append(failures, ParseFailure{Field: field, Value: value, Reason: reason})
	}

	l := &models.Listing{}
	l.Description = optionalText(raw, models.FieldDescription)

	if v, ok := nonEmpty(raw, models.FieldPropertyCategory); ok {
		text := normalizeText(v)
		l.PropertyCategoryText = &text
		if cat, ok := classifyCategory(text); ok {
			l.PropertyCategory = &cat
		} else {
			fail(models.FieldPropertyCategory, v, "no category keyword matched")
		}
	}

	if v, ok := nonEmpty(raw, models.FieldTenure); ok {
		text := normalizeText(v)
		l.TenureText = &text
		if t, ok := classifyTenure(text); ok {
			l.Tenure = &t
		} else {
			fail(models.FieldTenure, v, "no tenure keyword matched")
		}
	}

	if v, ok := nonEmpty(raw, models.FieldBedroomCount); ok {
		if c, err := parseCount(v); err != nil {
			fail(models.FieldBedroomCount, v, err.Error())
		} else {
			l.BedroomCount = &c
		}
	}

	if v, ok := nonEmpty(raw, models.FieldBathroomCount); ok {
		if c, err := parseCount(v); err != nil {
			fail(models.FieldBathroomCount, v, err.Error())
		} else {
			l.BathroomCount = &c
		}
	}

	if v, ok := nonEmpty(raw, models.FieldFurnishing); ok {
		if f, ok := classifyFurnishing(v); ok {
			l.Furnishing = &f
		} else {
			fail(models.FieldFurnishing, v, "no furnishing keyword matched")
		}
	}

	if v, ok := nonEmpty(raw, models.FieldFloorSizeSqft); ok {
		if sqft, err := parseSqft(v); err != nil {
			fail(models.FieldFloorSizeSqft, v, err.Error())
		} else {
			l.FloorSizeSqft = &sqft
		}
	}

	if v, ok := nonEmpty(raw, models.FieldLandSizeSqft); ok {
		if sqft, err := parseSqft(v); err != nil {
			fail(models.FieldLandSizeSqft, v, err.Error())
		} else {
			l.LandSizeSqft = &sqft
		}
	}

	if v, ok := nonEmpty(raw, models.FieldPSFFloor); ok {
		if psf, err := parsePrice(v); err != nil {
			fail(models.FieldPSFFloor, v, err.Error())
		} else {
			l.PSFFloor = &psf
		}
	}

	if v, ok := nonEmpty(raw, models.FieldPSFLand); ok {
		if psf, err := parsePrice(v); err != nil {
			fail(models.FieldPSFLand, v, err.Error())
		} else {
			l.PSFLand = &psf
		}
	}

	l.RawDetailsText = optionalText(raw, models.FieldRawDetailsText)
	l.RawAmenitiesText = optionalText(raw, models.FieldRawAmenitiesText)
	l.RawFacilitiesText = optionalText(raw, models.FieldRawFacilitiesText)

	for _, f := range failures {
		n.logger.Debug("[normalizer] parse failure: %s", f)
	}
	return l, failures
}

// parsePrice strips everything but digits and the decimal point, then
// parses an exact decimal rounded half-up to 2 fractional digits.
func parsePrice(raw string) (decimal.Decimal, error) {
	cleaned := priceStripRegexp.ReplaceAllString(raw, "")
	if cleaned == "" {
		return decimal.Decimal{}, fmt.Errorf("no numeric value")
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("not a decimal number")
	}
	return d.Round(2), nil
}

// parseDistanceMeters finds a bracketed distance and normalizes it to
// integer meters, converting km when needed.
func parseDistanceMeters(raw string) (int, error) {
	m := distanceRegexp.FindStringSubmatch(raw)
	if m == nil {
		return 0, fmt.Errorf("no distance found")
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("not a number")
	}
	if m[2] == "km" {
		return int(value * 1000), nil
	}
	return int(value), nil
}

// parseStation returns the transit station name, taking the part after
// "from" when present and the whole string otherwise.
func parseStation(raw string) string {
	if strings.Contains(raw, "from") {
		if m := stationRegexp.FindStringSubmatch(raw); m != nil {
			return strings.TrimSpace(m[1])
		}
		return ""
	}
	return strings.TrimSpace(raw)
}

func parseProjectYear(raw string) (int, error) {
	m := projectYearRegexp.FindStringSubmatch(raw)
	if m == nil {
		return 0, fmt.Errorf("no year found")
	}
	return strconv.Atoi(m[2])
}

// parseListedDate accepts "Listed on May 5, 2025" or a bare "May 5, 2025".
func parseListedDate(raw string) (time.Time, error) {
	text := strings.TrimSpace(raw)
	if m := listedDateRegexp.FindStringSubmatch(text); m != nil {
		text = m[1]
	}
	d, err := time.Parse("Jan 2, 2006", text)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized date format")
	}
	return d, nil
}

func parseRating(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("not a number")
	}
	if v < 0 || v > 5 {
		return 0, fmt.Errorf("rating out of range [0, 5]")
	}
	return v, nil
}

func parseCount(raw string) (int, error) {
	text := strings.TrimSpace(raw)
	if v, err := strconv.Atoi(text); err == nil {
		return v, nil
	}
	// fall back to the first digit run, the page sometimes adds extra text
	digits := countRegexp.FindString(text)
	if digits == "" {
		return 0, fmt.Errorf("no count found")
	}
	return strconv.Atoi(digits)
}

func parseSqft(raw string) (int, error) {
	m := sqftRegexp.FindStringSubmatch(strings.ToLower(raw))
	if m == nil {
		return 0, fmt.Errorf("no sqft value found")
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0, fmt.Errorf("not a number")
	}
	return int(v + 0.5), nil
}

// classifyCategory maps free text to a property category by keyword-set
// membership, first match wins in priority order HDB > Condo > Landed.
func classifyCategory(raw string) (models.PropertyCategory, bool) {
	lower := strings.ToLower(raw)
	for _, kw := range hdbKeywords {
		if strings.Contains(lower, kw) {
			return models.CategoryHDB, true
		}
	}
	for _, kw := range condoKeywords {
		if strings.Contains(lower, kw) {
			return models.CategoryCondo, true
		}
	}
	for _, kw := range landedKeywords {
		if strings.Contains(lower, kw) {
			return models.CategoryLanded, true
		}
	}
	return "", false
}

// classifyTenure checks "lease" before "freehold": leasehold text like
// "99-year leasehold" also contains no "freehold", but the ordering matches
// how the portal words mixed phrases.
func classifyTenure(raw string) (models.Tenure, bool) {
	lower := strings.ToLower(raw)
	if strings.Contains(lower, "lease") {
		return models.TenureLeasehold, true
	}
	if strings.Contains(lower, "freehold") {
		return models.TenureFreehold, true
	}
	return "", false
}

func classifyFurnishing(raw string) (string, bool) {
	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, "unfurnished"):
		return "Unfurnished", true
	case strings.Contains(lower, "partially furnished"):
		return "Partially Furnished", true
	case strings.Contains(lower, "fully furnished"), strings.Contains(lower, "furnished"):
		return "Fully Furnished", true
	}
	return "", false
}

// normalizeText trims and collapses internal whitespace.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func nonEmpty(raw models.RawFields, field string) (string, bool) {
	v, ok := raw[field]
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

func optionalText(raw models.RawFields, field string) *string {
	v, ok := nonEmpty(raw, field)
	if !ok {
		return nil
	}
	text := normalizeText(v)
	return &text
}
