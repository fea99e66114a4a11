package services

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"property-finder/models"
	"property-finder/normalize"
	"property-finder/utils"
)

// PriceBounds are the exclusive nightly price limits applied in strict mode.
type PriceBounds struct {
	Min float64
	Max float64
}

// DefaultPriceBounds admits 5 < price < 2000.
var DefaultPriceBounds = PriceBounds{Min: 5, Max: 2000}

// Cleaner transforms raw candidates into clean, validated Listings.
type Cleaner struct {
	logger   *utils.Logger
	validate *validator.Validate
	strict   bool
	bounds   PriceBounds
}

// CleanerOption configures a Cleaner.
type CleanerOption func(*Cleaner)

// WithPriceBounds enables strict mode with the given exclusive bounds.
func WithPriceBounds(b PriceBounds) CleanerOption {
	return func(c *Cleaner) {
		c.strict = true
		c.bounds = b
	}
}

// WithoutPriceBounds disables strict mode: any positive price is accepted.
func WithoutPriceBounds() CleanerOption {
	return func(c *Cleaner) {
		c.strict = false
	}
}

// NewCleaner creates a Cleaner with the given logger. Strict price bounds
// are on by default.
func NewCleaner(logger *utils.Logger, opts ...CleanerOption) *Cleaner {
	c := &Cleaner{
		logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		strict:   true,
		bounds:   DefaultPriceBounds,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Clean normalizes candidates, drops invalid ones and keeps the first
// listing seen for each exact name. Input order is preserved.
func (c *Cleaner) Clean(raw []models.RawCandidate) []*models.Listing {
	seen := utils.NewOrderedSet()
	result := make([]*models.Listing, 0, len(raw))

	for _, r := range raw {
		listing := c.normalise(r)

		if err := c.check(listing); err != nil {
			c.logger.Debug("[cleaner] Dropping %q: %v", listing.Name, err)
			continue
		}

		if !seen.Add(listing.Name) {
			c.logger.Debug("[cleaner] Duplicate name skipped: %s", listing.Name)
			continue
		}

		result = append(result, listing)
	}

	c.logger.Info("[cleaner] Cleaned %d → %d listings (dropped %d)",
		len(raw), len(result), len(raw)-len(result))
	return result
}

func (c *Cleaner) normalise(r models.RawCandidate) *models.Listing {
	l := &models.Listing{
		Name:     normalize.Text(r.Name),
		Location: normalize.Location(r.Location),
		Currency: normalize.Currency(r.Currency, r.PriceRaw),
		URL:      strings.TrimSpace(r.URL),
	}
	if p, ok := normalize.Price(r.PriceRaw); ok {
		l.Price = &p
	}
	if v, ok := normalize.Rating(r.RatingRaw); ok {
		l.Rating = &v
	}
	return l
}

// check applies the struct-tag rules, then the strict price bounds.
func (c *Cleaner) check(l *models.Listing) error {
	if err := c.validate.Struct(l); err != nil {
		return err
	}
	if c.strict && l.Price != nil && !(*l.Price > c.bounds.Min && *l.Price < c.bounds.Max) {
		return fmt.Errorf("price %.2f outside (%.0f, %.0f)", *l.Price, c.bounds.Min, c.bounds.Max)
	}
	return nil
}
