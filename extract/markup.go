package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"property-finder/jsonval"
)

// dataScriptSelector matches script blocks that carry embedded JSON data.
const dataScriptSelector = `script[type="application/json"], script[type="application/ld+json"]`

// noiseSelector matches elements that carry no listing content.
const noiseSelector = "head, script, style, noscript, svg, template"

// DataBlocks returns the raw text of every embedded JSON script in markup,
// in document order.
func DataBlocks(markup string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil
	}

	var blocks []string
	doc.Find(dataScriptSelector).Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			blocks = append(blocks, text)
		}
	})
	return blocks
}

// CleanMarkup strips head, script, style, svg and comment nodes, then
// truncates the result to maxChars characters (0 means no limit).
func CleanMarkup(markup string, maxChars int) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return truncate(markup, maxChars)
	}

	doc.Find(noiseSelector).Remove()
	doc.Find("*").AddSelection(doc.Selection).Contents().FilterFunction(func(_ int, s *goquery.Selection) bool {
		n := s.Get(0)
		return n != nil && n.Type == html.CommentNode
	}).Remove()

	out, err := doc.Html()
	if err != nil {
		return truncate(markup, maxChars)
	}
	return truncate(collapseBlankLines(out), maxChars)
}

// Description mines a listing description from a detail page: the first
// og:description meta content, else the first "description" string of an
// embedded ld+json object.
func Description(markup string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return ""
	}

	var desc string
	doc.Find(`meta[property="og:description"], meta[name="og:description"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if content, ok := s.Attr("content"); ok && strings.TrimSpace(content) != "" {
			desc = strings.TrimSpace(content)
			return false
		}
		return true
	})
	if desc != "" {
		return desc
	}

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		v, err := jsonval.Parse(s.Text())
		if err != nil || v.Kind() != jsonval.Object {
			return true
		}
		if d, ok := v.Get("description"); ok && d.Kind() == jsonval.String && d.Str() != "" {
			desc = d.Str()
			return false
		}
		return true
	})
	return desc
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			out = append(out, strings.TrimRight(l, " \t"))
		}
	}
	return strings.Join(out, "\n")
}

func truncate(s string, maxChars int) string {
	if maxChars <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == maxChars {
			return s[:i]
		}
		n++
	}
	return s
}
