package services

import (
	"strings"
	"unicode"

	"property-finder/utils"
)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "at": {}, "by": {}, "for": {},
	"from": {}, "i": {}, "in": {}, "is": {}, "it": {}, "me": {}, "my": {},
	"near": {}, "of": {}, "on": {}, "or": {}, "some": {}, "the": {}, "to": {},
	"want": {}, "with": {}, "find": {}, "looking": {}, "show": {},
}

// Tokenize lower-cases text and splits it into unique words, dropping stop
// words and single characters.
func Tokenize(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	set := utils.NewOrderedSet()
	for _, w := range words {
		if len([]rune(w)) < 2 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		set.Add(w)
	}
	return set.Values()
}

// ResolveKeywords picks the scoring keywords: the explicit list when given,
// else words from the intent, else words from the search query.
func ResolveKeywords(explicit []string, intent, query string) []string {
	out := make([]string, 0, len(explicit))
	for _, k := range explicit {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	if len(out) > 0 {
		return out
	}
	if kw := Tokenize(intent); len(kw) > 0 {
		return kw
	}
	return Tokenize(query)
}

// SplitKeywords parses a comma-separated keyword list.
func SplitKeywords(s string) []string {
	var out []string
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}
