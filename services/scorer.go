package services

import (
	"context"
	"math"
	"sort"
	"strings"

	"property-finder/extract"
	"property-finder/models"
	"property-finder/observe"
	"property-finder/scraper"
	"property-finder/utils"
)

// DefaultCanonicalHosts are the name prefixes that mark a listing whose
// name is its own detail-page address.
var DefaultCanonicalHosts = []string{"airbnb.com", "www.airbnb.com"}

// EnrichPredicate decides whether a listing's description may be fetched.
type EnrichPredicate func(l *models.Listing) bool

// CanonicalHostPredicate allows enrichment for listings whose name starts
// with one of hosts.
func CanonicalHostPredicate(hosts ...string) EnrichPredicate {
	return func(l *models.Listing) bool {
		for _, h := range hosts {
			if h != "" && strings.HasPrefix(l.Name, h) {
				return true
			}
		}
		return false
	}
}

// Scorer computes match scores and fetches listing descriptions on demand.
type Scorer struct {
	profile *Profile
	fetcher scraper.Fetcher
	enrich  EnrichPredicate
	tracker *observe.Tracker
	logger  *utils.Logger
}

// NewScorer creates a Scorer. fetcher may be nil, which disables enrichment.
func NewScorer(profile *Profile, fetcher scraper.Fetcher, enrich EnrichPredicate, logger *utils.Logger) *Scorer {
	if enrich == nil {
		enrich = CanonicalHostPredicate(DefaultCanonicalHosts...)
	}
	if logger == nil {
		logger = utils.NewDiscardLogger()
	}
	return &Scorer{profile: profile, fetcher: fetcher, enrich: enrich, logger: logger}
}

// WithTracker returns a copy of the scorer that reports to tracker.
func (s *Scorer) WithTracker(tracker *observe.Tracker) *Scorer {
	cp := *s
	cp.tracker = tracker
	return &cp
}

// Profile returns the scoring profile in use.
func (s *Scorer) Profile() *Profile {
	return s.profile
}

// Score returns the listing's match score for keywords, fetching its
// description first when allowed and not yet attempted. The fetched
// description, empty or not, is cached on the listing.
func (s *Scorer) Score(ctx context.Context, l *models.Listing, keywords []string) float64 {
	s.ensureDescription(ctx, l)

	p := s.profile
	score := p.BaseScore

	text := strings.ToLower(l.Description + " " + l.Name + " " + l.Location)
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(text, kw) {
			score += p.KeywordWeight
		}
	}

	name := strings.ToLower(l.Name)
	location := strings.ToLower(l.Location)
	for _, term := range p.Terms {
		if strings.Contains(name, term) {
			score += p.NameTermWeight
		}
		if strings.Contains(location, term) {
			score += p.LocationTermWeight
		}
	}
	for _, region := range p.Regions {
		if strings.Contains(location, region) {
			score += p.RegionBonus
			break
		}
	}

	price := p.DefaultPrice
	if l.Price != nil && *l.Price > 0 {
		price = *l.Price
	}
	score += p.priceBonus(price)

	return roundScore(score, p.MaxScore)
}

// Rank scores every listing and returns them best first. Listings with
// equal scores keep their input order.
func (s *Scorer) Rank(ctx context.Context, listings []*models.Listing, keywords []string) []models.ScoredListing {
	ranked := make([]models.ScoredListing, 0, len(listings))
	for _, l := range listings {
		score := s.Score(ctx, l, keywords)
		ranked = append(ranked, models.ScoredListing{Listing: *l, Score: score})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

func (s *Scorer) ensureDescription(ctx context.Context, l *models.Listing) {
	if l.Description != "" || l.DescriptionFetched || s.fetcher == nil || !s.enrich(l) {
		return
	}
	l.DescriptionFetched = true

	url := "https://" + l.Name
	markup, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		s.logger.Warn("[scorer] Description fetch failed for %s: %v", url, err)
		s.tracker.Track(ctx, "description_fetch_failed", "Fetch description from "+l.Name, err.Error(), map[string]any{"url": url})
		return
	}
	l.Description = extract.Description(markup)
	s.logger.Debug("[scorer] Fetched %d-char description for %s", len(l.Description), l.Name)
}

// roundScore clamps to [0, limit] and rounds to one decimal.
func roundScore(score, limit float64) float64 {
	score = math.Max(0, math.Min(score, limit))
	return math.Round(score*10) / 10
}
