package services

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"property-finder/observe"
	"property-finder/storage"
	"property-finder/utils"
)

// DefaultHistoryLimit is the number of hits a history query returns.
const DefaultHistoryLimit = 10

// historyScan is how many recent records a query looks through.
const historyScan = 1000

// HistoryHit is a stored event matched by a history query.
type HistoryHit struct {
	storage.EventRecord
	Relevance float64
}

// History answers questions about past runs from stored events.
type History struct {
	source storage.EventSource
	logger *utils.Logger
}

// NewHistory creates a History over source.
func NewHistory(source storage.EventSource, logger *utils.Logger) *History {
	if logger == nil {
		logger = utils.NewDiscardLogger()
	}
	return &History{source: source, logger: logger}
}

// Search finds steps whose output mentions the query terms.
func (h *History) Search(ctx context.Context, query string, limit int) ([]HistoryHit, error) {
	return h.match(ctx, query, limit, func(r storage.EventRecord) string {
		return r.Event + " " + r.Output
	})
}

// Similar finds steps whose input resembles text.
func (h *History) Similar(ctx context.Context, text string, limit int) ([]HistoryHit, error) {
	return h.match(ctx, text, limit, func(r storage.EventRecord) string {
		return r.Input
	})
}

// Issues lists negative signals and failed steps, newest first.
func (h *History) Issues(ctx context.Context, limit int) ([]HistoryHit, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	signals, err := h.source.RecentSignals(ctx, observe.Negative, limit)
	if err != nil {
		return nil, fmt.Errorf("load signals: %w", err)
	}
	steps, err := h.source.RecentSteps(ctx, historyScan)
	if err != nil {
		return nil, fmt.Errorf("load steps: %w", err)
	}

	hits := make([]HistoryHit, 0, len(signals))
	for _, s := range signals {
		hits = append(hits, HistoryHit{EventRecord: s, Relevance: 1})
	}
	for _, s := range steps {
		if strings.HasSuffix(s.Event, "_failure") || strings.HasSuffix(s.Event, "_failed") {
			hits = append(hits, HistoryHit{EventRecord: s, Relevance: 1})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].At.After(hits[j].At)
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (h *History) match(ctx context.Context, query string, limit int, field func(storage.EventRecord) string) ([]HistoryHit, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	terms := Tokenize(query)
	if len(terms) == 0 {
		return nil, nil
	}

	steps, err := h.source.RecentSteps(ctx, historyScan)
	if err != nil {
		return nil, fmt.Errorf("load steps: %w", err)
	}

	var hits []HistoryHit
	for _, s := range steps {
		if rel := relevance(terms, field(s)); rel > 0 {
			hits = append(hits, HistoryHit{EventRecord: s, Relevance: rel})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Relevance > hits[j].Relevance
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	h.logger.Debug("[history] %q matched %d of %d steps", query, len(hits), len(steps))
	return hits, nil
}

// relevance is the fraction of terms found in text.
func relevance(terms []string, text string) float64 {
	text = strings.ToLower(text)
	found := 0
	for _, t := range terms {
		if strings.Contains(text, t) {
			found++
		}
	}
	return float64(found) / float64(len(terms))
}

// PrintHistory prints history hits under title.
func PrintHistory(w io.Writer, title string, hits []HistoryHit) {
	sep := strings.Repeat("=", 65)
	fmt.Fprintf(w, "\n%s\n%s\n%s\n", sep, title, sep)

	if len(hits) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}

	for i, hit := range hits {
		name := hit.Event
		if hit.Signal != "" {
			name = hit.Signal + " on " + hit.Event
		}
		fmt.Fprintf(w, "\n%d. [%s] %s\n", i+1, name, hit.At.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(w, "   Session: %s\n", hit.SessionID)
		fmt.Fprintf(w, "   Input: %s\n", truncate(hit.Input, 80))
		fmt.Fprintf(w, "   Output: %s\n", truncate(hit.Output, 80))
		if len(hit.Properties) > 0 {
			fmt.Fprintf(w, "   Props: %s\n", observe.FormatProps(hit.Properties))
		}
		fmt.Fprintf(w, "   Relevance: %.2f\n", hit.Relevance)
	}

	fmt.Fprintf(w, "\n%s\n", sep)
}
