package models

import "time"

// Strategy identifies the extraction technique that produced a candidate.
type Strategy string

const (
	StrategyModel      Strategy = "model"
	StrategyStructured Strategy = "structured_data"
	StrategyRegex      Strategy = "regex"
	StrategyNone       Strategy = "none"
)

// RawCandidate holds unvalidated data exactly as one strategy found it.
// Every field is text; numeric parsing happens during cleaning.
type RawCandidate struct {
	Name      string
	Location  string
	PriceRaw  string
	RatingRaw string
	URL       string
	Currency  string
	Strategy  Strategy
}

// Listing is the cleaned, validated record produced by the cleaner.
type Listing struct {
	Name     string   `json:"name" yaml:"name" validate:"required"`
	Location string   `json:"location" yaml:"location"`
	Price    *float64 `json:"price_per_night" yaml:"price_per_night" validate:"omitempty,gt=0"`
	Currency string   `json:"currency,omitempty" yaml:"currency,omitempty"`
	Rating   *float64 `json:"rating" yaml:"rating" validate:"omitempty,gte=0,lte=5"`
	URL      string   `json:"url,omitempty" yaml:"url,omitempty"`

	// Description is filled lazily by the scorer. DescriptionFetched records
	// that a fetch was attempted so an empty result is cached too.
	Description        string `json:"description,omitempty" yaml:"description,omitempty"`
	DescriptionFetched bool   `json:"-" yaml:"-"`
}

// ScoredListing is a Listing with its ranking score (0–10, one decimal).
type ScoredListing struct {
	Listing `yaml:",inline"`
	Score   float64 `json:"match_score" yaml:"match_score"`
}

// ResultDocument is the persisted result of one run. Field names are relied
// on by downstream tooling.
type ResultDocument struct {
	SessionID  string          `json:"session_id" yaml:"session_id"`
	SearchDate string          `json:"search_date" yaml:"search_date"`
	Total      int             `json:"total" yaml:"total"`
	Keywords   []string        `json:"keywords" yaml:"keywords"`
	Results    []ScoredListing `json:"results" yaml:"results"`
}

// SearchDateLayout renders search_date the way existing result files do.
const SearchDateLayout = "2006-01-02T15:04:05.000000"

// NewResultDocument builds the persisted document for a finished run.
func NewResultDocument(sessionID string, at time.Time, keywords []string, results []ScoredListing) *ResultDocument {
	if keywords == nil {
		keywords = []string{}
	}
	if results == nil {
		results = []ScoredListing{}
	}
	return &ResultDocument{
		SessionID:  sessionID,
		SearchDate: at.Format(SearchDateLayout),
		Total:      len(results),
		Keywords:   keywords,
		Results:    results,
	}
}

// InsightReport holds summary analytics over a ranked result set.
type InsightReport struct {
	TotalListings      int
	PricedListings     int
	AverageScore       float64
	BestValue          *ScoredListing // highest rating per unit of price
	AveragePrice       float64
	MinPrice           float64
	MaxPrice           float64
	MostExpensive      *ScoredListing
	TopRated           []*ScoredListing
	ListingsByLocation map[string]int
}
