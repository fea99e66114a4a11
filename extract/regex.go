package extract

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"property-finder/models"
	"property-finder/normalize"
	"property-finder/utils"
)

// MaxRegexCandidates caps how many candidates the regex strategy emits.
const MaxRegexCandidates = 10

var (
	tagRegexp        = regexp.MustCompile(`<[^>]+>`)
	spaceRegexp      = regexp.MustCompile(`\s+`)
	dollarRegexp     = regexp.MustCompile(`\$(\d+)`)
	ratingTextRegexp = regexp.MustCompile(`\b([4-5]\.\d{1,2})\b`)
	locationRegexp   = regexp.MustCompile(`([A-Z][a-z]+(?:\s+[A-Z][a-z]+){0,2},?\s+[A-Z]{2})`)
)

// RegexHeuristic is the last-resort strategy. It pulls prices, ratings,
// listing URLs and locations out of the page text as independent streams and
// zips them by position. Alignment is best effort.
type RegexHeuristic struct {
	host     string
	urlRegex *regexp.Regexp
}

// NewRegexHeuristic creates the regex strategy. Listing URLs are matched
// with pattern (its first group is the listing id) and rendered as
// host + "/rooms/" + id.
func NewRegexHeuristic(host, pattern string) (*RegexHeuristic, error) {
	if host == "" {
		host = "airbnb.com"
	}
	if pattern == "" {
		pattern = `/rooms/(\d+)`
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile listing url pattern: %w", err)
	}
	if re.NumSubexp() < 1 {
		return nil, fmt.Errorf("listing url pattern %q needs a capture group", pattern)
	}
	return &RegexHeuristic{host: host, urlRegex: re}, nil
}

// DefaultRegexHeuristic returns the strategy tuned for airbnb.com listings.
func DefaultRegexHeuristic() *RegexHeuristic {
	r, _ := NewRegexHeuristic("", "")
	return r
}

func (r *RegexHeuristic) Name() models.Strategy {
	return models.StrategyRegex
}

func (r *RegexHeuristic) Extract(_ context.Context, req Request) Outcome {
	text := tagRegexp.ReplaceAllString(req.Markup, " ")
	text = strings.TrimSpace(spaceRegexp.ReplaceAllString(text, " "))

	prices := submatches(dollarRegexp, text)
	ratings := submatches(ratingTextRegexp, text)
	locations := submatches(locationRegexp, text)

	urls := utils.NewOrderedSet()
	for _, id := range submatches(r.urlRegex, req.Markup) {
		urls.Add(r.host + "/rooms/" + id)
	}
	urlList := urls.Values()

	count := min(len(prices), len(ratings), MaxRegexCandidates)
	candidates := make([]models.RawCandidate, 0, count)
	for i := 0; i < count; i++ {
		c := models.RawCandidate{
			Name:      fmt.Sprintf("Property %d", i+1),
			Location:  normalize.UnknownLocation,
			PriceRaw:  "$" + prices[i],
			RatingRaw: ratings[i],
			Strategy:  models.StrategyRegex,
		}
		if i < len(urlList) {
			c.URL = urlList[i]
			c.Name = urlList[i]
		}
		if i < len(locations) {
			c.Location = locations[i]
		}
		candidates = append(candidates, c)
	}

	return Succeeded(candidates, map[string]any{
		"method":    "regex",
		"prices":    len(prices),
		"ratings":   len(ratings),
		"urls":      len(urlList),
		"locations": len(locations),
		"count":     len(candidates),
	})
}

func submatches(re *regexp.Regexp, s string) []string {
	matches := re.FindAllStringSubmatch(s, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}
