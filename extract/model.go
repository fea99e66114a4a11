package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"property-finder/jsonval"
	"property-finder/llm"
	"property-finder/models"
)

// DefaultMaxChars bounds how much cleaned markup is sent to the model.
const DefaultMaxChars = 100000

const listingSystemPrompt = `You extract property listings from web page markup.
Return ONLY a JSON object of the form:
{"listings":[{"name":"","price":0,"currency":"","location":"","url":"","rating":0}]}
List every property on the page, not a sample. Give price as a bare number
(numeric only, no currency symbol or text) and put the currency code in
"currency". Give rating as a number. Use null for a price or rating you cannot
find and an empty string for any other missing field. Do not add commentary or
markdown.`

var errUnexpectedShape = errors.New("model response has no listings array")

// ModelBased delegates extraction to a generative model. It only runs when
// the request carries an intent.
type ModelBased struct {
	completer llm.Completer
	maxChars  int
}

// NewModelBased creates the model strategy. maxChars <= 0 selects
// DefaultMaxChars.
func NewModelBased(completer llm.Completer, maxChars int) *ModelBased {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &ModelBased{completer: completer, maxChars: maxChars}
}

func (m *ModelBased) Name() models.Strategy {
	return models.StrategyModel
}

// Applies reports whether the request has an intent to extract against.
func (m *ModelBased) Applies(req Request) bool {
	return strings.TrimSpace(req.Intent) != ""
}

func (m *ModelBased) Extract(ctx context.Context, req Request) Outcome {
	if m.completer == nil {
		return Failed(llm.ErrNoProvider, nil)
	}

	cleaned := CleanMarkup(req.Markup, m.maxChars)
	detail := map[string]any{
		"method":      "model",
		"provider":    m.completer.Name(),
		"input_chars": len([]rune(cleaned)),
	}

	user := fmt.Sprintf("Intent: %s\n\nMarkup:\n%s", strings.TrimSpace(req.Intent), cleaned)
	resp, err := m.completer.Complete(ctx, listingSystemPrompt, user)
	if err != nil {
		return Failed(fmt.Errorf("model call: %w", err), detail)
	}

	candidates, err := ParseModelResponse(resp)
	if err != nil {
		return Failed(err, detail)
	}
	detail["count"] = len(candidates)
	return Succeeded(candidates, detail)
}

// ParseModelResponse reads the listings out of a model reply. Code fences
// are tolerated and either {"listings":[...]} or a bare array is accepted.
func ParseModelResponse(resp string) ([]models.RawCandidate, error) {
	v, err := jsonval.Parse(stripFences(resp))
	if err != nil {
		return nil, fmt.Errorf("parse model response: %w", err)
	}

	var items []jsonval.Value
	switch v.Kind() {
	case jsonval.Array:
		items = v.Items()
	case jsonval.Object:
		listings, ok := v.Get("listings")
		if !ok || listings.Kind() != jsonval.Array {
			return nil, errUnexpectedShape
		}
		items = listings.Items()
	default:
		return nil, errUnexpectedShape
	}

	candidates := make([]models.RawCandidate, 0, len(items))
	for _, item := range items {
		if item.Kind() != jsonval.Object {
			continue
		}
		candidates = append(candidates, models.RawCandidate{
			Name:      strings.TrimSpace(firstText(item, []string{"name"})),
			Location:  locationText(item),
			PriceRaw:  firstText(item, []string{"price"}),
			RatingRaw: firstText(item, []string{"rating"}),
			URL:       strings.TrimSpace(firstText(item, []string{"url"})),
			Currency:  firstText(item, []string{"currency"}),
			Strategy:  models.StrategyModel,
		})
	}
	return candidates, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}
