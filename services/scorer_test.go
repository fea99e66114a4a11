package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"property-finder/models"
)

type countingFetcher struct {
	calls  int
	urls   []string
	markup string
	err    error
}

func (f *countingFetcher) Fetch(_ context.Context, url string) (string, error) {
	f.calls++
	f.urls = append(f.urls, url)
	return f.markup, f.err
}

func mustProfile(t *testing.T, name string) *Profile {
	t.Helper()
	p, err := LoadProfile(name)
	require.NoError(t, err)
	return p
}

func TestScoreKeywordAndPriceBonus(t *testing.T) {
	s := NewScorer(mustProfile(t, "property"), nil, nil, newTestLogger())
	keywords := []string{"waterfront", "cabin"}

	tests := []struct {
		name    string
		listing models.Listing
		want    float64
	}{
		{"no price uses default", models.Listing{Name: "Cabin on the Lake"}, 5.5},
		{"cheap", models.Listing{Name: "Cabin on the Lake", Price: ptr(89)}, 7.5},
		{"mid", models.Listing{Name: "Cabin on the Lake", Price: ptr(120)}, 6.5},
		{"at tier edge", models.Listing{Name: "Cabin on the Lake", Price: ptr(150)}, 5.5},
		{"both keywords via location", models.Listing{Name: "Cabin", Location: "Waterfront, LA"}, 6.0},
		{"description counts", models.Listing{Name: "Loft", Description: "A WATERFRONT gem"}, 5.5},
		{"no match", models.Listing{Name: "Loft", Price: ptr(500)}, 5.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := tt.listing
			assert.Equal(t, tt.want, s.Score(context.Background(), &l, keywords))
		})
	}
}

func TestScoreIsClampedAndRounded(t *testing.T) {
	p := mustProfile(t, "property")
	s := NewScorer(p, nil, nil, newTestLogger())

	many := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"}
	l := &models.Listing{Name: "abcdefghijkl", Price: ptr(50)}
	assert.Equal(t, 10.0, s.Score(context.Background(), l, many))

	p2 := *p
	p2.KeywordWeight = 0.33
	s2 := NewScorer(&p2, nil, nil, newTestLogger())
	l2 := &models.Listing{Name: "cabin", Price: ptr(500)}
	assert.Equal(t, 5.3, s2.Score(context.Background(), l2, []string{"cabin"}))

	p3 := *p
	p3.BaseScore = 0
	p3.PriceTiers = []PriceTier{{Below: 1000, Bonus: -4}}
	s3 := NewScorer(&p3, nil, nil, newTestLogger())
	assert.Equal(t, 0.0, s3.Score(context.Background(), &models.Listing{Name: "x", Price: ptr(10)}, nil))
}

func TestScoreSwampProfile(t *testing.T) {
	s := NewScorer(mustProfile(t, "swamp"), nil, nil, newTestLogger())

	l := &models.Listing{Name: "Swamp Cabin", Location: "Houma, Louisiana", Price: ptr(80)}
	// 5 base + 2 name terms + region + cheap
	assert.Equal(t, 9.0, s.Score(context.Background(), l, nil))

	city := &models.Listing{Name: "Downtown Condo", Location: "Chicago, IL", Price: ptr(220)}
	assert.Equal(t, 5.0, s.Score(context.Background(), city, nil))
}

func TestEnrichmentFetchesOnce(t *testing.T) {
	f := &countingFetcher{markup: `<html><head><meta property="og:description" content="Secluded waterfront hideaway"></head></html>`}
	s := NewScorer(mustProfile(t, "property"), f, nil, newTestLogger())

	l := &models.Listing{Name: "airbnb.com/rooms/42", Location: "Unknown", Price: ptr(200)}
	first := s.Score(context.Background(), l, []string{"waterfront"})
	second := s.Score(context.Background(), l, []string{"waterfront"})

	assert.Equal(t, 1, f.calls)
	assert.Equal(t, []string{"https://airbnb.com/rooms/42"}, f.urls)
	assert.Equal(t, "Secluded waterfront hideaway", l.Description)
	assert.Equal(t, 5.5, first)
	assert.Equal(t, first, second)
}

func TestEnrichmentCachesEmptyAndFailedFetches(t *testing.T) {
	empty := &countingFetcher{markup: "<html></html>"}
	s := NewScorer(mustProfile(t, "property"), empty, nil, newTestLogger())
	l := &models.Listing{Name: "www.airbnb.com/rooms/7"}
	s.Score(context.Background(), l, nil)
	s.Score(context.Background(), l, nil)
	assert.Equal(t, 1, empty.calls)
	assert.Empty(t, l.Description)

	failing := &countingFetcher{err: errors.New("boom")}
	s = NewScorer(mustProfile(t, "property"), failing, nil, newTestLogger())
	l = &models.Listing{Name: "airbnb.com/rooms/8"}
	assert.Equal(t, 5.0, s.Score(context.Background(), l, nil))
	s.Score(context.Background(), l, nil)
	assert.Equal(t, 1, failing.calls)
}

func TestEnrichmentOnlyForCanonicalNames(t *testing.T) {
	f := &countingFetcher{}
	s := NewScorer(mustProfile(t, "property"), f, nil, newTestLogger())

	for _, name := range []string{"Lake Cabin", "https://airbnb.com/rooms/1", "example.com/rooms/1"} {
		s.Score(context.Background(), &models.Listing{Name: name}, nil)
	}
	s.Score(context.Background(), &models.Listing{Name: "airbnb.com/rooms/9", Description: "already known"}, nil)
	assert.Equal(t, 0, f.calls)

	custom := NewScorer(mustProfile(t, "property"), f, CanonicalHostPredicate("example.com"), newTestLogger())
	custom.Score(context.Background(), &models.Listing{Name: "example.com/rooms/1"}, nil)
	assert.Equal(t, 1, f.calls)
}

func TestRankIsStableDescending(t *testing.T) {
	s := NewScorer(mustProfile(t, "property"), nil, nil, newTestLogger())
	listings := []*models.Listing{
		{Name: "First", Price: ptr(500)},
		{Name: "Best", Price: ptr(50)},
		{Name: "Second", Price: ptr(500)},
		{Name: "Mid", Price: ptr(120)},
	}

	ranked := s.Rank(context.Background(), listings, nil)
	got := make([]string, 0, len(ranked))
	for _, r := range ranked {
		got = append(got, r.Name)
	}
	assert.Equal(t, []string{"Best", "Mid", "First", "Second"}, got)
	assert.Equal(t, 7.0, ranked[0].Score)
}

func TestLoadProfile(t *testing.T) {
	assert.Equal(t, []string{"property", "swamp"}, BuiltinProfiles())

	p, err := LoadProfile("")
	require.NoError(t, err)
	assert.Equal(t, "property", p.Name)
	assert.Equal(t, 150.0, p.DefaultPrice)

	swamp := mustProfile(t, "swamp")
	assert.Equal(t, "Louisiana", swamp.DefaultLocation)
	assert.Contains(t, swamp.Terms, "bayou")

	_, err = LoadProfile("no-such-profile")
	assert.ErrorIs(t, err, ErrUnknownProfile)
}

func TestLoadBuiltinProfileIgnoresFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: custom\ndefault_price: 100\nmax_score: 10\n"), 0o644))

	// The file path still works for the local loader.
	p, err := LoadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, "custom", p.Name)

	for _, name := range []string{path, "/etc/passwd", "../profiles/swamp", "profiles/swamp.yaml"} {
		_, err := LoadBuiltinProfile(name)
		assert.ErrorIs(t, err, ErrUnknownProfile, name)
	}

	p, err = LoadBuiltinProfile("swamp")
	require.NoError(t, err)
	assert.Equal(t, "swamp", p.Name)

	p, err = LoadBuiltinProfile("")
	require.NoError(t, err)
	assert.Equal(t, DefaultProfile, p.Name)
}

func TestParseProfileValidates(t *testing.T) {
	_, err := ParseProfile([]byte("name: broken\ndefault_price: 100\nmax_score: 0\n"))
	assert.Error(t, err)

	p, err := ParseProfile([]byte(`
name: custom
base_score: 4
keyword_weight: 1
default_price: 100
max_score: 8
price_tiers:
  - below: 200
    bonus: 0.5
  - below: 80
    bonus: 2
`))
	require.NoError(t, err)
	assert.Equal(t, 80.0, p.PriceTiers[0].Below, "tiers are sorted by threshold")
}
