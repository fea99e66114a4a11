package storage

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"sync"

	"property-finder/models"
)

// CSVWriter exports the ranked listings of a run as CSV.
// It is safe for concurrent use.
type CSVWriter struct {
	mu   sync.Mutex
	path string
}

// NewCSVWriter creates a writer for path. The file is created (or
// truncated) on Write; intermediate directories are created automatically.
func NewCSVWriter(path string) *CSVWriter {
	return &CSVWriter{path: path}
}

func (c *CSVWriter) Path() string {
	return c.path
}

// Write replaces the file with one row per ranked listing, best first.
func (c *CSVWriter) Write(_ context.Context, doc *models.ResultDocument) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{
		"session_id", "rank", "name", "location", "price_per_night", "currency", "rating", "url", "match_score",
	}); err != nil {
		return fmt.Errorf("csv: write header: %w", err)
	}

	for i, l := range doc.Results {
		row := []string{
			doc.SessionID,
			strconv.Itoa(i + 1),
			l.Name,
			l.Location,
			formatOptional(l.Price),
			l.Currency,
			formatOptional(l.Rating),
			l.URL,
			strconv.FormatFloat(l.Score, 'f', 1, 64),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("csv: flush: %w", err)
	}
	if err := writeAtomic(c.path, buf.Bytes()); err != nil {
		return fmt.Errorf("csv: %w", err)
	}
	return nil
}

func formatOptional(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}
