package services

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path"
	"slices"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed profiles/*.yaml
var builtinProfiles embed.FS

// DefaultProfile is the profile used when none is named.
const DefaultProfile = "property"

// ErrUnknownProfile is returned for a name that is neither built in nor a
// readable file.
var ErrUnknownProfile = errors.New("unknown scoring profile")

// PriceTier adds Bonus when the nightly price is below Below.
type PriceTier struct {
	Below float64 `yaml:"below" validate:"gt=0"`
	Bonus float64 `yaml:"bonus"`
}

// Profile is a named set of scoring parameters.
type Profile struct {
	Name            string `yaml:"name" validate:"required"`
	Description     string `yaml:"description"`
	DefaultQuery    string `yaml:"default_query"`
	DefaultLocation string `yaml:"default_location"`

	BaseScore     float64 `yaml:"base_score" validate:"gte=0"`
	KeywordWeight float64 `yaml:"keyword_weight"`

	// Terms are profile-specific words checked in the name and location.
	Terms              []string `yaml:"terms"`
	NameTermWeight     float64  `yaml:"name_term_weight"`
	LocationTermWeight float64  `yaml:"location_term_weight"`

	Regions     []string `yaml:"regions"`
	RegionBonus float64  `yaml:"region_bonus"`

	DefaultPrice float64     `yaml:"default_price" validate:"gt=0"`
	PriceTiers   []PriceTier `yaml:"price_tiers" validate:"dive"`
	MaxScore     float64     `yaml:"max_score" validate:"gt=0"`
}

// BuiltinProfiles lists the names of the embedded profiles.
func BuiltinProfiles() []string {
	entries, err := builtinProfiles.ReadDir("profiles")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), path.Ext(e.Name())))
	}
	sort.Strings(names)
	return names
}

// LoadProfile resolves name to a built-in profile, or else reads it as a
// YAML file path. An empty name selects DefaultProfile.
func LoadProfile(name string) (*Profile, error) {
	if name == "" {
		name = DefaultProfile
	}

	data, err := builtinProfiles.ReadFile("profiles/" + name + ".yaml")
	if err != nil {
		data, err = os.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownProfile, name)
		}
	}
	return ParseProfile(data)
}

// LoadBuiltinProfile resolves name among the embedded profiles only. It
// never touches the filesystem, so it is safe for names supplied by remote
// callers. An empty name selects DefaultProfile.
func LoadBuiltinProfile(name string) (*Profile, error) {
	if name == "" {
		name = DefaultProfile
	}
	if !slices.Contains(BuiltinProfiles(), name) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProfile, name)
	}
	data, err := builtinProfiles.ReadFile("profiles/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProfile, name)
	}
	return ParseProfile(data)
}

// ParseProfile decodes and validates a YAML profile.
func ParseProfile(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	if err := validator.New().Struct(&p); err != nil {
		return nil, fmt.Errorf("invalid profile %q: %w", p.Name, err)
	}

	for i := range p.Terms {
		p.Terms[i] = strings.ToLower(p.Terms[i])
	}
	for i := range p.Regions {
		p.Regions[i] = strings.ToLower(p.Regions[i])
	}
	sort.SliceStable(p.PriceTiers, func(i, j int) bool {
		return p.PriceTiers[i].Below < p.PriceTiers[j].Below
	})
	return &p, nil
}

// priceBonus returns the bonus of the lowest tier the price falls under.
func (p *Profile) priceBonus(price float64) float64 {
	for _, t := range p.PriceTiers {
		if price < t.Below {
			return t.Bonus
		}
	}
	return 0
}
