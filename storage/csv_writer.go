package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"propertyguru-scraper/models"
)

// CSVWriter appends stored listings to a CSV file for offline inspection.
// The header row is written only when the file is new or empty, so repeated
// runs accumulate rows in one file. Safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

var csvHeader = []string{
	"external_id", "selling_type", "unit_type", "title", "address",
	"listing_url", "availability", "project_year", "closest_mrt",
	"distance_to_closest_mrt", "is_verified_listing", "is_everyone_welcomed",
	"listed_date", "agent_name", "agent_rating", "selling_price",
	"selling_price_text", "description", "property_category", "tenure",
	"bedroom_count", "bathroom_count", "furnishing", "floor_size_sqft",
	"land_size_sqft", "psf_floor", "psf_land", "details_fetched",
	"created_at", "updated_at", "updated_fields", "updated_old_values",
}

// NewCSVWriter opens (or creates) the CSV file at path in append mode and
// writes the header row if the file is empty. Intermediate directories are
// created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("csv: open file %q: %w", path, err)
	}

	w := csv.NewWriter(f)

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: stat file %q: %w", path, err)
	}
	if info.Size() == 0 {
		if err := w.Write(csvHeader); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("csv: write header: %w", err)
		}
		w.Flush()
	}

	return &CSVWriter{file: f, writer: w}, nil
}

// WriteListings appends one row per listing.
func (c *CSVWriter) WriteListings(listings []*models.Listing) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, l := range listings {
		if err := c.writer.Write(listingRow(l)); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

func listingRow(l *models.Listing) []string {
	return []string{
		l.ExternalID,
		string(l.SellingType),
		string(l.UnitType),
		l.Title,
		strOrEmpty(l.Address),
		l.URL,
		strOrEmpty(l.Availability),
		intOrEmpty(l.ProjectYear),
		strOrEmpty(l.ClosestMRT),
		intOrEmpty(l.DistanceToMRT),
		boolOrEmpty(l.Verified),
		boolOrEmpty(l.EveryoneWelcomed),
		dateOrEmpty(l.ListedDate),
		strOrEmpty(l.AgentName),
		floatOrEmpty(l.AgentRating),
		decOrEmpty(l.SellingPrice),
		strOrEmpty(l.SellingPriceText),
		strOrEmpty(l.Description),
		catOrEmpty(l.PropertyCategory),
		tenureOrEmpty(l.Tenure),
		intOrEmpty(l.BedroomCount),
		intOrEmpty(l.BathroomCount),
		strOrEmpty(l.Furnishing),
		intOrEmpty(l.FloorSizeSqft),
		intOrEmpty(l.LandSizeSqft),
		decOrEmpty(l.PSFFloor),
		decOrEmpty(l.PSFLand),
		strconv.FormatBool(l.DetailsFetched),
		l.CreatedAt.Format(time.RFC3339),
		timeOrEmpty(l.UpdatedAt),
		strOrEmpty(l.UpdatedFields),
		strOrEmpty(l.UpdatedOldValues),
	}
}

func strOrEmpty(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func intOrEmpty(p *int) string {
	if p == nil {
		return ""
	}
	return strconv.Itoa(*p)
}

func boolOrEmpty(p *bool) string {
	if p == nil {
		return ""
	}
	return strconv.FormatBool(*p)
}

func floatOrEmpty(p *float64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatFloat(*p, 'g', -1, 64)
}

func decOrEmpty(p *decimal.Decimal) string {
	if p == nil {
		return ""
	}
	return p.StringFixed(2)
}

func dateOrEmpty(p *time.Time) string {
	if p == nil {
		return ""
	}
	return p.Format("2006-01-02")
}

func timeOrEmpty(p *time.Time) string {
	if p == nil {
		return ""
	}
	return p.Format(time.RFC3339)
}

func catOrEmpty(p *models.PropertyCategory) string {
	if p == nil {
		return ""
	}
	return string(*p)
}

func tenureOrEmpty(p *models.Tenure) string {
	if p == nil {
		return ""
	}
	return string(*p)
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}
