package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"property-finder/extract"
	"property-finder/models"
)

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	logger := newTestLogger()
	return NewPipeline(
		extract.DefaultCascade(nil, logger, nil),
		NewCleaner(logger),
		NewScorer(mustProfile(t, "property"), nil, nil, logger),
		logger,
	)
}

func TestPipelineStructuredListing(t *testing.T) {
	markup := `<html><head><script type="application/ld+json">` +
		`{"name":"Lake Cabin","price":"$89","rating":4.8,"city":"Shreveport, LA"}` +
		`</script></head><body></body></html>`

	res := newTestPipeline(t).Run(context.Background(), markup, "", []string{"lake"})
	assert.Equal(t, models.StrategyStructured, res.Strategy)
	require.Len(t, res.Listings, 1)

	l := res.Listings[0]
	assert.Equal(t, "Lake Cabin", l.Name)
	assert.Equal(t, 89.0, *l.Price)
	assert.Equal(t, 4.8, *l.Rating)
	assert.Equal(t, "Shreveport, LA", l.Location)
	assert.Equal(t, 7.5, l.Score)
}

func TestPipelineMinimumStayDoesNotChangePrice(t *testing.T) {
	markup := `<html><head><script type="application/ld+json">` +
		`{"name":"Lake Cabin","priceString":"$120 per night, 2 nights minimum","rating":4.8}` +
		`</script></head><body></body></html>`

	res := newTestPipeline(t).Run(context.Background(), markup, "", nil)
	require.Len(t, res.Listings, 1)
	assert.Equal(t, 120.0, *res.Listings[0].Price)
	assert.Equal(t, 6.0, res.Listings[0].Score)
}

func TestPipelineRegexFallback(t *testing.T) {
	markup := `<html><body><p>Cozy spot $75 night</p><p>4.6 (12)</p>` +
		`<p>Roomy house $120 night</p><p>4.9 (5)</p></body></html>`

	res := newTestPipeline(t).Run(context.Background(), markup, "", nil)
	assert.Equal(t, models.StrategyRegex, res.Strategy)
	require.Len(t, res.Listings, 2)

	byName := map[string]models.ScoredListing{}
	for _, l := range res.Listings {
		byName[l.Name] = l
	}
	assert.Equal(t, 75.0, *byName["Property 1"].Price)
	assert.Equal(t, 4.6, *byName["Property 1"].Rating)
	assert.Equal(t, 120.0, *byName["Property 2"].Price)
	assert.Equal(t, 4.9, *byName["Property 2"].Rating)
}

func TestPipelineDeduplicatesAndValidates(t *testing.T) {
	markup := `<html><head><script type="application/json">[` +
		`{"name":"Riverside Loft","price":"$110"},` +
		`{"name":"Riverside Loft","price":"$240"},` +
		`{"name":"Star Gazer","rating":"5.7"},` +
		`{"name":"Refund","price":"-10"}` +
		`]</script></head><body></body></html>`

	res := newTestPipeline(t).Run(context.Background(), markup, "", nil)
	assert.Equal(t, 4, res.Candidates)
	require.Len(t, res.Listings, 1)
	assert.Equal(t, "Riverside Loft", res.Listings[0].Name)
	assert.Equal(t, 110.0, *res.Listings[0].Price)
}

func TestPipelineScoresNeverExceedTen(t *testing.T) {
	markup := `<html><head><script type="application/ld+json">` +
		`{"name":"Cabin on the Lake","price":"$40"}` +
		`</script></head></html>`
	keywords := []string{"cabin", "lake", "on", "the", "cab", "la", "ke", "ca", "bin", "in", "e"}

	res := newTestPipeline(t).Run(context.Background(), markup, "", keywords)
	require.Len(t, res.Listings, 1)
	assert.Equal(t, 10.0, res.Listings[0].Score)
}

func TestPipelineNoListings(t *testing.T) {
	res := newTestPipeline(t).Run(context.Background(), "<html><body>nothing</body></html>", "", nil)
	assert.Equal(t, models.StrategyNone, res.Strategy)
	assert.Empty(t, res.Listings)
}
