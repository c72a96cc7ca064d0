package propertyguru

import (
	"testing"

	"propertyguru-scraper/config"
	"propertyguru-scraper/models"
	"propertyguru-scraper/utils"
)

const sampleCard = `
<div class="listing-card-banner-root">
  <div data-listing-id="25266539">
    <a class="listing-card-link" href="/listing/25266539"></a>
    <h3 class="listing-title">D'Leedon</h3>
    <div class="listing-address">7 Leedon Heights</div>
    <div class="listing-price">S$ 2,500.00 /mo</div>
    <span da-id="lc-price-badge">Available Now</span>
    <span da-id="lc-info-badge">Built: 2014</span>
    <span da-id="lc-info-badge">Everyone Welcome</span>
    <span class="listing-location-value">8 min (460 m) from Farrer Road MRT</span>
    <span da-id="verified-listing-badge-button">Verified</span>
    <ul class="listing-recency"><li><span class="info-value">Listed on May 5, 2025</span></li></ul>
    <div class="agent-info-group">
      <a da-id="lc-agent-name">Jane Lim</a>
      <span class="rating-value">4.9</span>
    </div>
  </div>
</div>`

func TestParseCard(t *testing.T) {
	raw, err := parseCard(sampleCard)
	if err != nil {
		t.Fatalf("parseCard: %v", err)
	}

	want := map[string]string{
		models.FieldExternalID:       "25266539",
		models.FieldTitle:            "D'Leedon",
		models.FieldAddress:          "7 Leedon Heights",
		models.FieldURL:              "https://www.propertyguru.com.sg/listing/25266539",
		models.FieldAvailability:     "Available Now",
		models.FieldEveryoneWelcomed: "true",
		models.FieldVerified:         "true",
		models.FieldListedDate:       "Listed on May 5, 2025",
		models.FieldAgentName:        "Jane Lim",
		models.FieldAgentRating:      "4.9",
		models.FieldSellingPrice:     "S$ 2,500.00 /mo",
	}
	for field, exp := range want {
		if got := raw[field]; got != exp {
			t.Errorf("%s: got %q, want %q", field, got, exp)
		}
	}

	if got := raw[models.FieldProjectYear]; got != "Built: 2014; Everyone Welcome" {
		t.Errorf("project year badges: got %q", got)
	}
	if got := raw[models.FieldClosestMRT]; got != "8 min (460 m) from Farrer Road MRT" {
		t.Errorf("closest mrt: got %q", got)
	}
}

func TestParseCardIDFromURL(t *testing.T) {
	card := `
<div class="listing-card-banner-root">
  <a class="listing-card-link" href="https://www.propertyguru.com.sg/listing/987654"></a>
  <h3 class="listing-title">Some Condo</h3>
</div>`

	raw, err := parseCard(card)
	if err != nil {
		t.Fatalf("parseCard: %v", err)
	}
	if got := raw[models.FieldExternalID]; got != "987654" {
		t.Errorf("external id fallback: got %q, want %q", got, "987654")
	}
	if got := raw[models.FieldVerified]; got != "false" {
		t.Errorf("verified default: got %q, want false", got)
	}
}

const sampleDetailPage = `
<html><body>
  <div class="property-snapshot-section"></div>
  <h3 class="subtitle">Spacious unit near MRT</h3>
  <div class="description trimmed">Bright corner unit with unblocked views.</div>
  <div class="amenity"><span><img alt="Bed"></span><div><p>3</p></div></div>
  <div class="amenity"><span><img alt="Bath"></span><div><p>2</p></div></div>
  <div class="property-modal-body-wrapper">
    <div><img alt="home-open-o"><p>Condominium for rent</p></div>
    <div><img alt="calendar-days-o"><p>99-year leasehold</p></div>
    <p>Fully Furnished</p>
    <p>1,023 sqft floor area</p>
    <p>S$ 2.44 psf</p>
  </div>
  <section class="property-amenities-section"><p>Air-conditioning</p><p>Balcony</p></section>
  <section class="property-facilities-section"><p>Swimming pool</p><p>Gym</p></section>
</body></html>`

func TestParseDetails(t *testing.T) {
	raw, err := parseDetails(sampleDetailPage)
	if err != nil {
		t.Fatalf("parseDetails: %v", err)
	}

	want := map[string]string{
		models.FieldDescription:      "Spacious unit near MRT\nBright corner unit with unblocked views.",
		models.FieldBedroomCount:     "3",
		models.FieldBathroomCount:    "2",
		models.FieldPropertyCategory: "Condominium for rent",
		models.FieldTenure:           "99-year leasehold",
		models.FieldFurnishing:       "Fully Furnished",
		models.FieldFloorSizeSqft:    "1,023 sqft floor area",
		models.FieldPSFFloor:         "S$ 2.44 psf",
		models.FieldRawFacilitiesText: "Swimming pool" + models.AuditDelimiter + "Gym",
	}
	for field, exp := range want {
		if got := raw[field]; got != exp {
			t.Errorf("%s: got %q, want %q", field, got, exp)
		}
	}

	if raw[models.FieldLandSizeSqft] != "" {
		t.Errorf("land size should be absent, got %q", raw[models.FieldLandSizeSqft])
	}
}

func TestSearchURL(t *testing.T) {
	logger := utils.NewLogger()

	tests := []struct {
		name string
		cfg  config.Config
		page int
		want string
	}{
		{
			name: "rent with recency filter",
			cfg:  config.Config{ScrapeMode: "Rent", UnitTypeCode: 2, LastPostedDays: 2, MaxConcurrency: 1},
			page: 1,
			want: "https://www.propertyguru.com.sg/property-for-rent/1?listingType=rent&cur_page=1&isCommercial=false&sort=date&order=desc&bedrooms=2&lastPosted=2",
		},
		{
			name: "sale without recency filter",
			cfg:  config.Config{ScrapeMode: "Buy", UnitTypeCode: -1, MaxConcurrency: 1},
			page: 3,
			want: "https://www.propertyguru.com.sg/property-for-sale/3?listingType=sale&cur_page=3&isCommercial=false&sort=date&order=desc&bedrooms=-1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(&tt.cfg, logger)
			if got := s.searchURL(tt.page); got != tt.want {
				t.Errorf("searchURL:\n got  %s\n want %s", got, tt.want)
			}
		})
	}
}
