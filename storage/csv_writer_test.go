package storage

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"propertyguru-scraper/models"
)

func TestCSVWriterHeaderAndRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "listings.csv")

	w, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}

	l := memListing("100")
	price := decimal.RequireFromString("2500.00")
	l.SellingPrice = &price
	if err := w.WriteListings([]*models.Listing{l}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	rows := readCSV(t, path)
	if len(rows) != 2 {
		t.Fatalf("rows: got %d, want header + 1", len(rows))
	}
	if rows[0][0] != "external_id" {
		t.Errorf("header: got %v", rows[0][:3])
	}
	if len(rows[1]) != len(csvHeader) {
		t.Errorf("row width: got %d, want %d", len(rows[1]), len(csvHeader))
	}
	if rows[1][0] != "100" {
		t.Errorf("external_id cell: got %q", rows[1][0])
	}
	priceCol := indexOf(t, csvHeader, "selling_price")
	if rows[1][priceCol] != "2500.00" {
		t.Errorf("price cell: got %q", rows[1][priceCol])
	}
}

func TestCSVWriterAppendsWithoutDuplicateHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "listings.csv")

	for i := 0; i < 2; i++ {
		w, err := NewCSVWriter(path)
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		if err := w.WriteListings([]*models.Listing{memListing("100")}); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("close %d: %v", i, err)
		}
	}

	rows := readCSV(t, path)
	if len(rows) != 3 {
		t.Fatalf("rows: got %d, want header + 2", len(rows))
	}
	if rows[1][0] != "100" || rows[2][0] != "100" {
		t.Errorf("data rows: got %q, %q", rows[1][0], rows[2][0])
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	return rows
}

func indexOf(t *testing.T, header []string, name string) int {
	t.Helper()
	for i, h := range header {
		if h == name {
			return i
		}
	}
	t.Fatalf("column %q not in header", name)
	return -1
}
