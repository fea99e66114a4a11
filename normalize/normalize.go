// Package normalize turns loosely formatted price, rating, currency and
// location text into typed values. Parsers never fail loudly: a value that
// cannot be read is reported as absent.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// UnknownLocation is used when a listing carries no location.
const UnknownLocation = "Unknown"

var (
	// priceRegexp captures the first integer run, skipping a leading "$".
	// A minus sign on either side of the symbol is kept.
	priceRegexp = regexp.MustCompile(`(-?)\$?(-?)(\d+)`)
	// thousandsRegexp matches a digit group separator such as "1,200"
	thousandsRegexp = regexp.MustCompile(`(\d),(\d{3})`)
	// ratingRegexp captures the first decimal or integer run
	ratingRegexp = regexp.MustCompile(`(\d+\.?\d*)`)
	// currencyCodeRegexp matches an ISO-4217 style code
	currencyCodeRegexp = regexp.MustCompile(`^[A-Za-z]{3}$`)
)

var currencySymbols = []struct {
	symbol string
	code   string
}{
	{"US$", "USD"},
	{"$", "USD"},
	{"€", "EUR"},
	{"£", "GBP"},
	{"฿", "THB"},
	{"¥", "JPY"},
	{"₹", "INR"},
}

// Price extracts a nightly price from raw text.
// Examples:
//
//	"$89"                              → 89
//	"$1,200 night"                     → 1200
//	"$120 per night, 2 nights minimum" → 120
//	"89.99"                            → 89
//	"-10"                              → -10
func Price(raw string) (float64, bool) {
	cleaned := raw
	for {
		next := thousandsRegexp.ReplaceAllString(cleaned, "$1$2")
		if next == cleaned {
			break
		}
		cleaned = next
	}

	match := priceRegexp.FindStringSubmatch(cleaned)
	if len(match) < 4 {
		return 0, false
	}
	total, err := strconv.ParseFloat(match[3], 64)
	if err != nil {
		return 0, false
	}
	if match[1] != "" || match[2] != "" {
		return -total, true
	}
	return total, true
}

// Rating extracts the first numeric run from raw text. Range checks are the
// validator's job.
func Rating(raw string) (float64, bool) {
	match := ratingRegexp.FindStringSubmatch(raw)
	if len(match) < 2 {
		return 0, false
	}
	val, err := strconv.ParseFloat(strings.TrimSuffix(match[1], "."), 64)
	if err != nil {
		return 0, false
	}
	return val, true
}

// Currency returns an upper-case currency code. An explicit code wins;
// otherwise the symbol found in the price text is mapped.
func Currency(explicit, priceRaw string) string {
	explicit = strings.TrimSpace(explicit)
	if currencyCodeRegexp.MatchString(explicit) {
		return strings.ToUpper(explicit)
	}
	if explicit != "" {
		if code := symbolCode(explicit); code != "" {
			return code
		}
	}
	return symbolCode(priceRaw)
}

func symbolCode(s string) string {
	for _, cs := range currencySymbols {
		if strings.Contains(s, cs.symbol) {
			return cs.code
		}
	}
	return ""
}

// Location collapses whitespace and falls back to UnknownLocation.
func Location(raw string) string {
	if loc := Text(raw); loc != "" {
		return loc
	}
	return UnknownLocation
}

// Text strips leading/trailing whitespace and collapses internal whitespace.
func Text(s string) string {
	fields := strings.FieldsFunc(s, unicode.IsSpace)
	return strings.Join(fields, " ")
}
