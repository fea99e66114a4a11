package services

import (
	"bytes"
	"strings"
	"testing"

	"property-finder/models"
	"property-finder/utils"
)

func ptr(f float64) *float64 { return &f }

func sampleListings() []models.ScoredListing {
	return []models.ScoredListing{
		{Listing: models.Listing{Name: "Villa A", Price: ptr(200), Location: "Bangkok", Rating: ptr(4.9)}, Score: 6},
		{Listing: models.Listing{Name: "Studio B", Price: ptr(50), Location: "Bangkok", Rating: ptr(4.5)}, Score: 8},
		{Listing: models.Listing{Name: "Loft C", Price: ptr(120), Location: "Tokyo", Rating: ptr(4.8)}, Score: 7},
		{Listing: models.Listing{Name: "Cabin D", Price: ptr(300), Location: "Bali"}, Score: 5},
		{Listing: models.Listing{Name: "Flat E", Location: "Tokyo", Rating: ptr(4.7)}, Score: 6},
	}
}

func TestInsightCounts(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	r := svc.Generate(sampleListings())
	if r.TotalListings != 5 {
		t.Errorf("TotalListings: got %d, want 5", r.TotalListings)
	}
	if r.PricedListings != 4 {
		t.Errorf("PricedListings: got %d, want 4", r.PricedListings)
	}
}

func TestInsightPrices(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	r := svc.Generate(sampleListings())
	wantAvg := 167.50
	if r.AveragePrice != wantAvg {
		t.Errorf("AveragePrice: got %.2f, want %.2f", r.AveragePrice, wantAvg)
	}
	if r.MinPrice != 50 {
		t.Errorf("MinPrice: got %.2f, want 50", r.MinPrice)
	}
	if r.MaxPrice != 300 {
		t.Errorf("MaxPrice: got %.2f, want 300", r.MaxPrice)
	}
}

func TestInsightMostExpensive(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	r := svc.Generate(sampleListings())
	if r.MostExpensive == nil {
		t.Fatal("MostExpensive should not be nil")
	}
	if r.MostExpensive.Name != "Cabin D" {
		t.Errorf("MostExpensive: got %q, want %q", r.MostExpensive.Name, "Cabin D")
	}
}

func TestInsightMostExpensiveWhenFirstIsMax(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	r := svc.Generate([]models.ScoredListing{
		{Listing: models.Listing{Name: "Dear", Price: ptr(500)}},
		{Listing: models.Listing{Name: "Cheap", Price: ptr(40)}},
	})
	if r.MostExpensive == nil || r.MostExpensive.Name != "Dear" {
		t.Errorf("MostExpensive: got %+v, want Dear", r.MostExpensive)
	}
}

func TestInsightScoresAndBestValue(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	r := svc.Generate(sampleListings())
	if r.AverageScore != 6.4 {
		t.Errorf("AverageScore: got %.2f, want 6.4", r.AverageScore)
	}
	if r.BestValue == nil || r.BestValue.Name != "Studio B" {
		t.Errorf("BestValue: got %+v, want Studio B", r.BestValue)
	}
}

func TestInsightTopRated(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	r := svc.Generate(sampleListings())
	if len(r.TopRated) != 4 {
		t.Errorf("TopRated len: got %d, want 4", len(r.TopRated))
	}
	if *r.TopRated[0].Rating != 4.9 {
		t.Errorf("TopRated[0].Rating: got %.2f, want 4.9", *r.TopRated[0].Rating)
	}
}

func TestInsightLocationGrouping(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	r := svc.Generate(sampleListings())
	if r.ListingsByLocation["Bangkok"] != 2 {
		t.Errorf("Bangkok count: got %d, want 2", r.ListingsByLocation["Bangkok"])
	}
	if r.ListingsByLocation["Tokyo"] != 2 {
		t.Errorf("Tokyo count: got %d, want 2", r.ListingsByLocation["Tokyo"])
	}
}

func TestInsightEmptyInput(t *testing.T) {
	svc := NewInsightService(utils.NewDiscardLogger())
	r := svc.Generate(nil)
	if r.TotalListings != 0 {
		t.Errorf("expected 0 total listings for empty input")
	}
}

func TestPrintRanked(t *testing.T) {
	var buf bytes.Buffer
	svc := NewInsightService(newTestLogger()).WithOutput(&buf)
	svc.PrintRanked(sampleListings()[:2])

	out := buf.String()
	for _, want := range []string{
		"1. Villa A",
		"   Location: Bangkok",
		"$200/night   Rating: 4.90/5.0   Match Score: 6.0/10",
		"Top result: Villa A",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintRankedEmpty(t *testing.T) {
	var buf bytes.Buffer
	NewInsightService(newTestLogger()).WithOutput(&buf).PrintRanked(nil)
	if !strings.Contains(buf.String(), "No results found.") {
		t.Errorf("expected empty message, got %q", buf.String())
	}
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	svc := NewInsightService(newTestLogger()).WithOutput(&buf)
	svc.Print(svc.Generate(sampleListings()))
	out := buf.String()
	if !strings.Contains(out, "Cabin D") {
		t.Errorf("report should name the most expensive listing")
	}
	if !strings.Contains(out, "4.50 ★ for $50/night") {
		t.Errorf("report should show the best value listing:\n%s", out)
	}
}
