package services

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"property-finder/models"
	"property-finder/utils"
)

// InsightService summarizes and prints ranked results.
type InsightService struct {
	logger *utils.Logger
	out    io.Writer
}

// NewInsightService creates an InsightService printing to stdout.
func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger, out: os.Stdout}
}

// WithOutput returns a copy printing to w.
func (s *InsightService) WithOutput(w io.Writer) *InsightService {
	cp := *s
	cp.out = w
	return &cp
}

// Generate summarizes results. Listings without a price are left out of the
// price statistics.
func (s *InsightService) Generate(listings []models.ScoredListing) *models.InsightReport {
	report := &models.InsightReport{
		ListingsByLocation: make(map[string]int),
	}

	if len(listings) == 0 {
		return report
	}

	report.TotalListings = len(listings)
	var scoreTotal float64
	bestRatio := 0.0

	var priceListings []*models.ScoredListing
	var ratedListings []*models.ScoredListing

	for i := range listings {
		l := &listings[i]
		if l.Price != nil && *l.Price > 0 {
			priceListings = append(priceListings, l)
		}
		if l.Rating != nil && *l.Rating > 0 {
			ratedListings = append(ratedListings, l)
		}
		if l.Location != "" {
			report.ListingsByLocation[l.Location]++
		}
		scoreTotal += l.Score
		if l.Price != nil && *l.Price > 0 && l.Rating != nil {
			if ratio := *l.Rating / *l.Price; ratio > bestRatio {
				bestRatio = ratio
				report.BestValue = l
			}
		}
	}
	report.AverageScore = round2(scoreTotal / float64(len(listings)))

	// Price stats (only listings with a price)
	report.PricedListings = len(priceListings)
	if len(priceListings) > 0 {
		report.MinPrice = *priceListings[0].Price
		report.MaxPrice = *priceListings[0].Price
		report.MostExpensive = priceListings[0]
		var total float64
		for _, l := range priceListings {
			p := *l.Price
			total += p
			if p < report.MinPrice {
				report.MinPrice = p
			}
			if p > report.MaxPrice {
				report.MaxPrice = p
				report.MostExpensive = l
			}
		}
		report.AveragePrice = round2(total / float64(len(priceListings)))
		report.MinPrice = round2(report.MinPrice)
		report.MaxPrice = round2(report.MaxPrice)
	}

	// Top 5 by rating
	sort.SliceStable(ratedListings, func(i, j int) bool {
		return *ratedListings[i].Rating > *ratedListings[j].Rating
	})
	if len(ratedListings) > 5 {
		report.TopRated = ratedListings[:5]
	} else {
		report.TopRated = ratedListings
	}

	return report
}

// PrintRanked prints the ranked results table and the top pick.
func (s *InsightService) PrintRanked(results []models.ScoredListing) {
	sep := strings.Repeat("=", 65)
	w := s.out

	fmt.Fprintf(w, "\n%s\n", sep)
	fmt.Fprintln(w, "RESULTS - Ranked by Match Score")
	fmt.Fprintln(w, sep)

	if len(results) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}

	for i, r := range results {
		price := "Price unknown"
		if r.Price != nil {
			price = fmt.Sprintf("$%s/night", formatNumber(*r.Price))
		}
		rating := "No rating"
		if r.Rating != nil && *r.Rating > 0 {
			rating = fmt.Sprintf("%s/5.0", formatNumber(*r.Rating))
		}
		fmt.Fprintf(w, "\n%d. %s\n", i+1, r.Name)
		fmt.Fprintf(w, "   Location: %s\n", r.Location)
		fmt.Fprintf(w, "   %s   Rating: %s   Match Score: %.1f/10\n", price, rating, r.Score)
	}

	top := results[0]
	fmt.Fprintf(w, "\n%s\n", sep)
	fmt.Fprintf(w, "Top result: %s\n", top.Name)
	fmt.Fprintf(w, "   %s\n", top.Location)
	fmt.Fprintln(w, sep)
}

func (s *InsightService) Print(r *models.InsightReport) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)
	w := s.out

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  📊 SEARCH INSIGHTS\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	// Overview
	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Ranked listings : \033[1m%d\033[0m\n", r.TotalListings)
	fmt.Fprintf(w, "  With a price    : \033[1m%d\033[0m\n", r.PricedListings)
	fmt.Fprintf(w, "  Average match   : \033[1m%.1f/10\033[0m\n", r.AverageScore)
	fmt.Fprintln(w)

	// Price Stats
	fmt.Fprintf(w, "\033[1;33m  Price Statistics (per night)\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if r.PricedListings > 0 {
		fmt.Fprintf(w, "  Average price : \033[1;32m$%.2f\033[0m\n", r.AveragePrice)
		fmt.Fprintf(w, "  Minimum price : \033[1;32m$%.2f\033[0m\n", r.MinPrice)
		fmt.Fprintf(w, "  Maximum price : \033[1;32m$%.2f\033[0m\n", r.MaxPrice)
	} else {
		fmt.Fprintf(w, "  No price data available\n")
	}
	fmt.Fprintln(w)

	// Most Expensive
	if r.MostExpensive != nil {
		fmt.Fprintf(w, "\033[1;33m  Most Expensive Listing\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		fmt.Fprintf(w, "  %s\n", truncate(r.MostExpensive.Name, 50))
		fmt.Fprintf(w, "  Location : %s\n", r.MostExpensive.Location)
		fmt.Fprintf(w, "  Price    : \033[1;31m$%.2f/night\033[0m\n", *r.MostExpensive.Price)
		fmt.Fprintln(w)
	}

	if r.BestValue != nil {
		fmt.Fprintf(w, "\033[1;33m  Best Value\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		fmt.Fprintf(w, "  %s\n", truncate(r.BestValue.Name, 50))
		fmt.Fprintf(w, "  %.2f ★ for $%s/night\n", *r.BestValue.Rating, formatNumber(*r.BestValue.Price))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "\033[1;33m  Top 5 Highest Rated Properties\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.TopRated) == 0 {
		fmt.Fprintf(w, "  No rated listings found\n")
	} else {
		for i, l := range r.TopRated {
			fmt.Fprintf(w, "  \033[1m%d.\033[0m %-40s \033[1;32m%.2f ★\033[0m\n",
				i+1, truncate(l.Name, 38), *l.Rating)
		}
	}
	fmt.Fprintln(w)

	// Listings by Location
	fmt.Fprintf(w, "\033[1;33m  Listings by Location\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.ListingsByLocation) == 0 {
		fmt.Fprintf(w, "  No location data\n")
	} else {
		type locCount struct {
			loc   string
			count int
		}
		var locs []locCount
		for loc, cnt := range r.ListingsByLocation {
			locs = append(locs, locCount{loc, cnt})
		}
		sort.Slice(locs, func(i, j int) bool {
			if locs[i].count != locs[j].count {
				return locs[i].count > locs[j].count
			}
			return locs[i].loc < locs[j].loc
		})
		for _, lc := range locs {
			bar := strings.Repeat("█", lc.count)
			fmt.Fprintf(w, "  %-30s %s (%d)\n", truncate(lc.loc, 28), bar, lc.count)
		}
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

// formatNumber drops a trailing ".00" so whole prices print as integers.
func formatNumber(f float64) string {
	return strings.TrimSuffix(fmt.Sprintf("%.2f", f), ".00")
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
