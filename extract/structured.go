package extract

import (
	"context"
	"strings"

	"property-finder/jsonval"
	"property-finder/models"
	"property-finder/normalize"
)

var (
	nameKeys     = []string{"name", "title"}
	priceKeys    = []string{"price", "priceString", "priceValue"}
	ratingKeys   = []string{"rating", "starRating", "avgRating"}
	locationKeys = []string{"location", "city", "neighborhood", "subtitle"}
	currencyKeys = []string{"currency", "priceCurrency"}
)

// StructuredData mines listing-shaped objects out of the JSON script blocks
// embedded in a page.
type StructuredData struct{}

// NewStructuredData creates the structured-data strategy.
func NewStructuredData() *StructuredData {
	return &StructuredData{}
}

func (s *StructuredData) Name() models.Strategy {
	return models.StrategyStructured
}

func (s *StructuredData) Extract(_ context.Context, req Request) Outcome {
	blocks := DataBlocks(req.Markup)

	var candidates []models.RawCandidate
	skipped := 0
	for _, block := range blocks {
		v, err := jsonval.Parse(block)
		if err != nil {
			skipped++
			continue
		}
		candidates = append(candidates, Mine(v)...)
	}

	return Succeeded(candidates, map[string]any{
		"method":         "json_ld",
		"blocks":         len(blocks),
		"blocks_skipped": skipped,
		"count":          len(candidates),
	})
}

// Mine walks v depth-first and returns every object that looks like a
// listing. Nested matches are all returned, duplicates included.
func Mine(v jsonval.Value) []models.RawCandidate {
	var out []models.RawCandidate
	mine(v, &out)
	return out
}

func mine(v jsonval.Value, out *[]models.RawCandidate) {
	switch v.Kind() {
	case jsonval.Object:
		if c, ok := candidateFromObject(v); ok {
			*out = append(*out, c)
		}
		for _, f := range v.Fields() {
			mine(f.Value, out)
		}
	case jsonval.Array:
		for _, item := range v.Items() {
			mine(item, out)
		}
	}
}

func candidateFromObject(v jsonval.Value) (models.RawCandidate, bool) {
	var name string
	if n, ok := v.First(nameKeys...); ok {
		name = strings.TrimSpace(n.Str())
	}
	if name == "" {
		return models.RawCandidate{}, false
	}

	priceRaw := firstText(v, priceKeys)
	ratingRaw := firstText(v, ratingKeys)
	_, hasPrice := normalize.Price(priceRaw)
	_, hasRating := normalize.Rating(ratingRaw)
	if !hasPrice && !hasRating {
		return models.RawCandidate{}, false
	}

	c := models.RawCandidate{
		Name:     name,
		Location: locationText(v),
		Currency: firstText(v, currencyKeys),
		Strategy: models.StrategyStructured,
	}
	if hasPrice {
		c.PriceRaw = priceRaw
	}
	if hasRating {
		c.RatingRaw = ratingRaw
	}
	if u, ok := v.Get("url"); ok && u.Kind() == jsonval.String {
		c.URL = strings.TrimSpace(u.Str())
	}
	return c, true
}

func locationText(v jsonval.Value) string {
	loc, ok := v.First(locationKeys...)
	if !ok {
		return ""
	}
	if loc.Kind() == jsonval.Object {
		return firstText(loc, []string{"name", "city"})
	}
	return loc.Text()
}

func firstText(v jsonval.Value, keys []string) string {
	if f, ok := v.First(keys...); ok {
		return f.Text()
	}
	return ""
}
