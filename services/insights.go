package services

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"propertyguru-scraper/models"
	"propertyguru-scraper/utils"
)

// InsightReport summarizes the stored dataset after a run.
type InsightReport struct {
	TotalListings  int
	PendingDetails int
	VerifiedCount  int

	PricedListings int
	AveragePrice   decimal.Decimal
	MinPrice       decimal.Decimal
	MaxPrice       decimal.Decimal
	MostExpensive  *models.Listing

	ByUnitType map[models.UnitType]int
	ByCategory map[models.PropertyCategory]int
}

// InsightService computes read-only statistics over stored listings.
type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

func (s *InsightService) Generate(listings []*models.Listing) *InsightReport {
	report := &InsightReport{
		ByUnitType: make(map[models.UnitType]int),
		ByCategory: make(map[models.PropertyCategory]int),
	}

	if len(listings) == 0 {
		return report
	}

	report.TotalListings = len(listings)

	var total decimal.Decimal
	for _, l := range listings {
		if !l.DetailsFetched {
			report.PendingDetails++
		}
		if l.Verified != nil && *l.Verified {
			report.VerifiedCount++
		}
		report.ByUnitType[l.UnitType]++
		if l.PropertyCategory != nil {
			report.ByCategory[*l.PropertyCategory]++
		}

		if l.SellingPrice == nil {
			continue
		}
		price := *l.SellingPrice
		if report.PricedListings == 0 {
			report.MinPrice = price
			report.MaxPrice = price
			report.MostExpensive = l
		} else {
			if price.LessThan(report.MinPrice) {
				report.MinPrice = price
			}
			if price.GreaterThan(report.MaxPrice) {
				report.MaxPrice = price
				report.MostExpensive = l
			}
		}
		total = total.Add(price)
		report.PricedListings++
	}

	if report.PricedListings > 0 {
		report.AveragePrice = total.DivRound(decimal.NewFromInt(int64(report.PricedListings)), 2)
	}

	return report
}

func (s *InsightService) Print(r *InsightReport) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Printf("\n\033[1;35m%s\033[0m\n", sep)
	fmt.Printf("\033[1;35m  📊 PROPERTY SCRAPE INSIGHTS\033[0m\n")
	fmt.Printf("\033[1;35m%s\033[0m\n\n", sep)

	fmt.Printf("\033[1;33m  Overview\033[0m\n")
	fmt.Printf("  %s\n", thin)
	fmt.Printf("  Stored listings         : \033[1m%d\033[0m\n", r.TotalListings)
	fmt.Printf("  Pending detail fetch    : \033[1m%d\033[0m\n", r.PendingDetails)
	fmt.Printf("  Verified listings       : \033[1m%d\033[0m\n", r.VerifiedCount)
	fmt.Println()

	fmt.Printf("\033[1;33m  Price Statistics\033[0m\n")
	fmt.Printf("  %s\n", thin)
	if r.PricedListings > 0 {
		fmt.Printf("  Average price : \033[1;32mS$ %s\033[0m\n", r.AveragePrice.StringFixed(2))
		fmt.Printf("  Minimum price : \033[1;32mS$ %s\033[0m\n", r.MinPrice.StringFixed(2))
		fmt.Printf("  Maximum price : \033[1;32mS$ %s\033[0m\n", r.MaxPrice.StringFixed(2))
	} else {
		fmt.Printf("  No price data available\n")
	}
	fmt.Println()

	if r.MostExpensive != nil {
		fmt.Printf("\033[1;33m  Most Expensive Listing\033[0m\n")
		fmt.Printf("  %s\n", thin)
		fmt.Printf("  %s\n", truncate(r.MostExpensive.Title, 50))
		fmt.Printf("  Key   : %s\n", r.MostExpensive.Key())
		fmt.Printf("  Price : \033[1;31mS$ %s\033[0m\n", r.MostExpensive.SellingPrice.StringFixed(2))
		fmt.Println()
	}

	fmt.Printf("\033[1;33m  Listings by Unit Type\033[0m\n")
	fmt.Printf("  %s\n", thin)
	printBreakdown(unitTypeCounts(r.ByUnitType))
	fmt.Println()

	fmt.Printf("\033[1;33m  Listings by Category\033[0m\n")
	fmt.Printf("  %s\n", thin)
	printBreakdown(categoryCounts(r.ByCategory))

	fmt.Printf("\n\033[1;35m%s\033[0m\n\n", sep)
}

type labelCount struct {
	label string
	count int
}

func unitTypeCounts(m map[models.UnitType]int) []labelCount {
	var out []labelCount
	for k, v := range m {
		out = append(out, labelCount{string(k), v})
	}
	return out
}

func categoryCounts(m map[models.PropertyCategory]int) []labelCount {
	var out []labelCount
	for k, v := range m {
		out = append(out, labelCount{string(k), v})
	}
	return out
}

func printBreakdown(items []labelCount) {
	if len(items) == 0 {
		fmt.Printf("  No data\n")
		return
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].count != items[j].count {
			return items[i].count > items[j].count
		}
		return items[i].label < items[j].label
	})
	for _, it := range items {
		bar := strings.Repeat("█", it.count)
		fmt.Printf("  %-14s %s (%d)\n", it.label, bar, it.count)
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
