package services

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"propertyguru-scraper/models"
	"propertyguru-scraper/utils"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"S$ 2,500.00 /mo", "2500.00", false},
		{"S$ 1,250,000", "1250000.00", false},
		{"2500.005", "2500.01", false}, // half-up
		{"S$ 2.44 psf", "2.44", false},
		{"Price on ask", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := parsePrice(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parsePrice(%q): expected error, got %s", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("parsePrice(%q): %v", tt.in, err)
			continue
		}
		if !got.Equal(decimal.RequireFromString(tt.want)) || got.StringFixed(2) != tt.want {
			t.Errorf("parsePrice(%q): got %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestParseDistanceMeters(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"8 min (460 m) from Redhill MRT", 460, false},
		{"(1.04 km) from Farrer Road MRT", 1040, false},
		{"(2 km)", 2000, false},
		{"8 min walk", 0, true},
	}

	for _, tt := range tests {
		got, err := parseDistanceMeters(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseDistanceMeters(%q): err %v, wantErr %t", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("parseDistanceMeters(%q): got %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseStation(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"8 min (460 m) from Redhill MRT", "Redhill MRT"},
		{"Redhill MRT", "Redhill MRT"},
		{"  Queenstown MRT  ", "Queenstown MRT"},
	}
	for _, tt := range tests {
		if got := parseStation(tt.in); got != tt.want {
			t.Errorf("parseStation(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseProjectYear(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"Built: 2014", 2014, false},
		{"New Project: 2027", 2027, false},
		{"Built: 2014; Everyone Welcome", 2014, false},
		{"Everyone Welcome", 0, true},
	}
	for _, tt := range tests {
		got, err := parseProjectYear(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseProjectYear(%q): err %v, wantErr %t", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("parseProjectYear(%q): got %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseListedDate(t *testing.T) {
	want := time.Date(2025, 5, 5, 0, 0, 0, 0, time.UTC)

	for _, in := range []string{"Listed on May 5, 2025", "May 5, 2025"} {
		got, err := parseListedDate(in)
		if err != nil {
			t.Errorf("parseListedDate(%q): %v", in, err)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("parseListedDate(%q): got %v, want %v", in, got, want)
		}
	}

	if _, err := parseListedDate("yesterday"); err == nil {
		t.Error("parseListedDate should reject free text")
	}
}

func TestParseRatingBounds(t *testing.T) {
	if v, err := parseRating("4.9"); err != nil || v != 4.9 {
		t.Errorf("parseRating(4.9): got %v, %v", v, err)
	}
	for _, in := range []string{"5.5", "-1", "five"} {
		if _, err := parseRating(in); err == nil {
			t.Errorf("parseRating(%q): expected error", in)
		}
	}
}

func TestParseSqft(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"1,023 sqft floor area", 1023, false},
		{"850 sqft", 850, false},
		{"1,023.6 sqft land area", 1024, false},
		{"no size", 0, true},
	}
	for _, tt := range tests {
		got, err := parseSqft(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseSqft(%q): err %v, wantErr %t", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("parseSqft(%q): got %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestClassifyCategoryPriority(t *testing.T) {
	tests := []struct {
		in   string
		want models.PropertyCategory
		ok   bool
	}{
		{"HDB Flat for rent", models.CategoryHDB, true},
		{"Condominium for rent", models.CategoryCondo, true},
		{"Executive Condominium", models.CategoryCondo, true},
		{"Semi-Detached House", models.CategoryLanded, true},
		{"HDB Shophouse", models.CategoryHDB, true}, // HDB wins over Landed
		{"Office space", "", false},
	}
	for _, tt := range tests {
		got, ok := classifyCategory(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("classifyCategory(%q): got (%q, %t), want (%q, %t)",
				tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestClassifyTenure(t *testing.T) {
	tests := []struct {
		in   string
		want models.Tenure
		ok   bool
	}{
		{"99-year leasehold", models.TenureLeasehold, true},
		{"Freehold", models.TenureFreehold, true},
		{"Leasehold (not freehold)", models.TenureLeasehold, true}, // lease checked first
		{"Unknown tenure", "", false},
	}
	for _, tt := range tests {
		got, ok := classifyTenure(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("classifyTenure(%q): got (%q, %t), want (%q, %t)",
				tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestClassifyFurnishing(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"Unfurnished", "Unfurnished", true},
		{"Partially Furnished", "Partially Furnished", true},
		{"Fully Furnished", "Fully Furnished", true},
		{"Furnished", "Fully Furnished", true},
		{"Bare unit", "", false},
	}
	for _, tt := range tests {
		got, ok := classifyFurnishing(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("classifyFurnishing(%q): got (%q, %t), want (%q, %t)",
				tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestNormalizeListing(t *testing.T) {
	n := NewNormalizer(utils.NewLogger())

	raw := models.RawFields{
		models.FieldExternalID:       "25266539",
		models.FieldTitle:            "  D'Leedon   Tower A ",
		models.FieldURL:              "https://www.propertyguru.com.sg/listing/25266539",
		models.FieldAddress:          "7 Leedon Heights",
		models.FieldAvailability:     "Available Now",
		models.FieldProjectYear:      "Built: 2014; Everyone Welcome",
		models.FieldClosestMRT:       "8 min (460 m) from Farrer Road MRT",
		models.FieldDistanceToMRT:    "8 min (460 m) from Farrer Road MRT",
		models.FieldVerified:         "true",
		models.FieldEveryoneWelcomed: "true",
		models.FieldListedDate:       "Listed on May 5, 2025",
		models.FieldAgentName:        "Jane Lim",
		models.FieldAgentRating:      "4.9",
		models.FieldSellingPrice:     "S$ 2,500.00 /mo",
		models.FieldSellingPriceText: "S$ 2,500.00 /mo",
	}

	l, failures := n.NormalizeListing(raw, models.SellingRent, models.Unit2Bedroom)
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %v", failures)
	}

	if l.Title != "D'Leedon Tower A" {
		t.Errorf("title: got %q", l.Title)
	}
	if l.ProjectYear == nil || *l.ProjectYear != 2014 {
		t.Errorf("project year: got %v", l.ProjectYear)
	}
	if l.ClosestMRT == nil || *l.ClosestMRT != "Farrer Road MRT" {
		t.Errorf("closest mrt: got %v", l.ClosestMRT)
	}
	if l.DistanceToMRT == nil || *l.DistanceToMRT != 460 {
		t.Errorf("distance: got %v", l.DistanceToMRT)
	}
	if l.SellingPrice == nil || !l.SellingPrice.Equal(decimal.RequireFromString("2500.00")) {
		t.Errorf("price: got %v", l.SellingPrice)
	}
	if l.ListedDate == nil || l.ListedDate.Format("2006-01-02") != "2025-05-05" {
		t.Errorf("listed date: got %v", l.ListedDate)
	}
	if err := l.Validate(); err != nil {
		t.Errorf("normalized listing must validate: %v", err)
	}
}

func TestNormalizeListingDegradesBadFields(t *testing.T) {
	n := NewNormalizer(utils.NewLogger())

	raw := models.RawFields{
		models.FieldExternalID:   "25266539",
		models.FieldTitle:        "D'Leedon",
		models.FieldURL:          "https://www.propertyguru.com.sg/listing/25266539",
		models.FieldAgentRating:  "9.9",           // out of range
		models.FieldSellingPrice: "Price on ask",  // unparsable
		models.FieldListedDate:   "last Tuesday",  // unparsable
	}

	l, failures := n.NormalizeListing(raw, models.SellingRent, models.Unit2Bedroom)
	if len(failures) != 3 {
		t.Fatalf("failures: got %d (%v), want 3", len(failures), failures)
	}
	if l.AgentRating != nil || l.SellingPrice != nil || l.ListedDate != nil {
		t.Error("unparsable fields must degrade to nil")
	}
	if err := l.Validate(); err != nil {
		t.Errorf("degraded listing must still validate: %v", err)
	}
}

func TestNormalizeDetails(t *testing.T) {
	n := NewNormalizer(utils.NewLogger())

	raw := models.RawFields{
		models.FieldDescription:      "Spacious unit near MRT",
		models.FieldPropertyCategory: "Condominium for rent",
		models.FieldTenure:           "99-year leasehold",
		models.FieldBedroomCount:     "3",
		models.FieldBathroomCount:    "2 baths",
		models.FieldFurnishing:       "Fully Furnished",
		models.FieldFloorSizeSqft:    "1,023 sqft floor area",
		models.FieldPSFFloor:         "S$ 2.44 psf",
	}

	l, failures := n.NormalizeDetails(raw)
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %v", failures)
	}

	if l.PropertyCategory == nil || *l.PropertyCategory != models.CategoryCondo {
		t.Errorf("category: got %v", l.PropertyCategory)
	}
	if l.PropertyCategoryText == nil || *l.PropertyCategoryText != "Condominium for rent" {
		t.Errorf("category text: got %v", l.PropertyCategoryText)
	}
	if l.Tenure == nil || *l.Tenure != models.TenureLeasehold {
		t.Errorf("tenure: got %v", l.Tenure)
	}
	if l.BedroomCount == nil || *l.BedroomCount != 3 {
		t.Errorf("bedrooms: got %v", l.BedroomCount)
	}
	if l.BathroomCount == nil || *l.BathroomCount != 2 {
		t.Errorf("bathrooms: got %v", l.BathroomCount)
	}
	if l.FloorSizeSqft == nil || *l.FloorSizeSqft != 1023 {
		t.Errorf("floor size: got %v", l.FloorSizeSqft)
	}
	if l.PSFFloor == nil || !l.PSFFloor.Equal(decimal.RequireFromString("2.44")) {
		t.Errorf("psf: got %v", l.PSFFloor)
	}
}

func TestNormalizeDetailsKeepsTextWhenClassificationFails(t *testing.T) {
	n := NewNormalizer(utils.NewLogger())

	raw := models.RawFields{
		models.FieldPropertyCategory: "Mystery building",
		models.FieldTenure:           "999 years",
	}

	l, failures := n.NormalizeDetails(raw)
	if len(failures) != 2 {
		t.Fatalf("failures: got %d, want 2", len(failures))
	}
	if l.PropertyCategory != nil || l.Tenure != nil {
		t.Error("unclassifiable enums must stay nil")
	}
	if l.PropertyCategoryText == nil || *l.PropertyCategoryText != "Mystery building" {
		t.Error("raw category text must be kept even when classification fails")
	}
	if l.TenureText == nil || *l.TenureText != "999 years" {
		t.Error("raw tenure text must be kept even when classification fails")
	}
}
