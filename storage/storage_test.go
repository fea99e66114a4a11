package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"property-finder/models"
	"property-finder/observe"
)

func ptr(f float64) *float64 { return &f }

func sampleDoc() *models.ResultDocument {
	at := time.Date(2025, 3, 1, 14, 30, 0, 0, time.UTC)
	return models.NewResultDocument("search_20250301_143000", at, []string{"cabin", "lake"}, []models.ScoredListing{
		{Listing: models.Listing{Name: "Lake Cabin", Location: "Shreveport, LA", Price: ptr(89), Currency: "USD", Rating: ptr(4.8)}, Score: 8},
		{Listing: models.Listing{Name: "airbnb.com/rooms/1", Location: "Unknown", URL: "airbnb.com/rooms/1", Description: "Quiet, cozy"}, Score: 6.5},
	})
}

func TestJSONWriterDocumentShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "results.json")
	require.NoError(t, NewJSONWriter(path).Write(context.Background(), sampleDoc()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "search_20250301_143000", got["session_id"])
	assert.Equal(t, "2025-03-01T14:30:00.000000", got["search_date"])
	assert.Equal(t, float64(2), got["total"])

	results := got["results"].([]any)
	first := results[0].(map[string]any)
	assert.Equal(t, 89.0, first["price_per_night"])
	assert.Equal(t, 8.0, first["match_score"])
	assert.NotContains(t, first, "description")

	second := results[1].(map[string]any)
	assert.Nil(t, second["price_per_night"])
	assert.Equal(t, "Quiet, cozy", second["description"])

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestYAMLWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.yaml")
	require.NoError(t, NewYAMLWriter(path).Write(context.Background(), sampleDoc()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "session_id: search_20250301_143000")
	assert.Contains(t, string(data), "match_score: 8")
	assert.Contains(t, string(data), "name: Lake Cabin")
}

func TestCSVWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")
	require.NoError(t, NewCSVWriter(path).Write(context.Background(), sampleDoc()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "session_id,rank,name,location,price_per_night,currency,rating,url,match_score", lines[0])
	assert.Equal(t, `search_20250301_143000,1,Lake Cabin,"Shreveport, LA",89,USD,4.8,,8.0`, lines[1])
	assert.Equal(t, "search_20250301_143000,2,airbnb.com/rooms/1,Unknown,,,,airbnb.com/rooms/1,6.5", lines[2])
}

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := NewSQLStore(context.Background(), DriverSQLite, filepath.Join(t.TempDir(), "db", "finder.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLStoreRoundTripsRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	doc := sampleDoc()

	require.NoError(t, s.Write(ctx, doc))
	require.NoError(t, s.Write(ctx, doc), "rewriting a run replaces it")

	got, err := s.LoadRun(ctx, doc.SessionID)
	require.NoError(t, err)
	assert.Equal(t, doc.Keywords, got.Keywords)
	assert.Equal(t, doc.SearchDate, got.SearchDate)
	require.Len(t, got.Results, 2)
	assert.Equal(t, "Lake Cabin", got.Results[0].Name)
	require.NotNil(t, got.Results[0].Price)
	assert.Equal(t, 89.0, *got.Results[0].Price)
	assert.Nil(t, got.Results[1].Price)
	assert.Equal(t, 6.5, got.Results[1].Score)

	_, err = s.LoadRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestSQLStoreEvents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.RecordStep(ctx, observe.Step{
		ID: "step-1", SessionID: "s1", Event: "page_scrape", Input: "Scrape URL: x",
		Output: "Scraped 100 chars", Properties: map[string]any{"url": "x"}, At: base,
	}))
	require.NoError(t, s.RecordStep(ctx, observe.Step{
		ID: "step-2", SessionID: "s1", Event: "property_finder_run", Input: "Find properties",
		Output: "Found 3 results", At: base.Add(time.Second),
	}))
	require.NoError(t, s.RecordSignal(ctx, observe.Signal{
		ID: "sig-1", StepID: "step-1", SessionID: "s1", Name: "thin_content",
		Sentiment: observe.Negative, Properties: map[string]any{"content_length": 100}, At: base,
	}))
	require.NoError(t, s.RecordSignal(ctx, observe.Signal{
		ID: "sig-2", StepID: "step-2", SessionID: "s1", Name: "task_success",
		Sentiment: observe.Positive, At: base.Add(time.Second),
	}))

	steps, err := s.RecentSteps(ctx, 10)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, "property_finder_run", steps[0].Event, "newest first")
	assert.Equal(t, "x", steps[1].Properties["url"])
	assert.True(t, steps[1].At.Equal(base))

	neg, err := s.RecentSignals(ctx, observe.Negative, 10)
	require.NoError(t, err)
	require.Len(t, neg, 1)
	assert.Equal(t, "thin_content", neg[0].Signal)
	assert.Equal(t, "page_scrape", neg[0].Event)
	assert.Equal(t, float64(100), neg[0].Properties["content_length"])
}

func TestSQLStoreRejectsUnknownDriver(t *testing.T) {
	_, err := NewSQLStore(context.Background(), "mysql", "dsn", nil)
	assert.ErrorIs(t, err, ErrUnsupportedDriver)
}

func TestRebind(t *testing.T) {
	pg := &SQLStore{driver: DriverPostgres}
	assert.Equal(t, "SELECT $1, $2", pg.rebind("SELECT ?, ?"))

	lite := &SQLStore{driver: DriverSQLite}
	assert.Equal(t, "SELECT ?, ?", lite.rebind("SELECT ?, ?"))
}
