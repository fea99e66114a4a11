package services

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"property-finder/models"
	"property-finder/observe"
	"property-finder/scraper"
	"property-finder/storage"
	"property-finder/utils"
)

// Thresholds for the scrape-quality signals.
const (
	DefaultSlowScrape  = 8 * time.Second
	DefaultThinContent = 500
)

// SearchRequest describes one search run.
type SearchRequest struct {
	// URLTemplate may contain {query} and {location} placeholders.
	URLTemplate string
	Query       string
	Location    string
	Intent      string
	Keywords    []string
}

// FinderOptions tune a Finder. Zero values select the defaults.
type FinderOptions struct {
	SlowScrape   time.Duration
	ThinContent  int
	ShowInsights bool
	Output       io.Writer
}

// Finder runs a whole search: open the browser session, fetch the page,
// rank its listings, save and print them.
type Finder struct {
	session  scraper.Session
	pipeline *Pipeline
	writers  []storage.ResultWriter
	sinks    []observe.Sink
	insights *InsightService
	logger   *utils.Logger
	opts     FinderOptions
	now      func() time.Time
}

// NewFinder wires a Finder. Writers run in order and the first failure
// stops the run, so callers put the JSON contract file last.
func NewFinder(session scraper.Session, pipeline *Pipeline, writers []storage.ResultWriter, sinks []observe.Sink, logger *utils.Logger, opts FinderOptions) *Finder {
	if logger == nil {
		logger = utils.NewDiscardLogger()
	}
	if opts.SlowScrape <= 0 {
		opts.SlowScrape = DefaultSlowScrape
	}
	if opts.ThinContent <= 0 {
		opts.ThinContent = DefaultThinContent
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	return &Finder{
		session:  session,
		pipeline: pipeline,
		writers:  writers,
		sinks:    sinks,
		insights: NewInsightService(logger).WithOutput(opts.Output),
		logger:   logger,
		opts:     opts,
		now:      time.Now,
	}
}

// NewSessionID names a run after its start time.
func NewSessionID(t time.Time) string {
	return "search_" + t.Format("20060102_150405")
}

// BuildURL fills the {query} and {location} placeholders of template.
// A template without placeholders is used as is.
func BuildURL(template, query, location string) string {
	return strings.NewReplacer(
		"{query}", url.PathEscape(query),
		"{location}", url.PathEscape(location),
	).Replace(template)
}

// Run executes one search and returns the saved result document.
func (f *Finder) Run(ctx context.Context, req SearchRequest) (doc *models.ResultDocument, err error) {
	sessionID := NewSessionID(f.now())
	keywords := ResolveKeywords(req.Keywords, req.Intent, req.Query)
	target := BuildURL(req.URLTemplate, req.Query, req.Location)
	tracker := observe.NewTracker(sessionID, f.logger, f.sinks...)
	out := f.opts.Output

	sep := strings.Repeat("=", 65)
	fmt.Fprintf(out, "\n%s\nPROPERTY FINDER\n%s\n", sep, sep)
	fmt.Fprintf(out, "URL      : %s\n", target)
	fmt.Fprintf(out, "Query    : %s\n", req.Query)
	fmt.Fprintf(out, "Keywords : %v\n", keywords)
	fmt.Fprintf(out, "Session  : %s\n%s\n", sessionID, sep)

	run := tracker.Begin(ctx, "property_finder_run", "Find properties at "+target, map[string]any{
		"url":      target,
		"query":    req.Query,
		"keywords": strings.Join(keywords, ","),
	})

	started := false
	defer func() {
		if started {
			f.release(ctx, tracker)
		}
		fmt.Fprintf(out, "\nSession: %s\n", sessionID)
	}()
	defer func() {
		if err == nil {
			return
		}
		// Record the failure even when ctx was cancelled.
		fctx := context.WithoutCancel(ctx)
		run.Finish(fctx, "Failed: "+err.Error(), nil)
		tracker.Signal(fctx, run.ID(), "task_failure", observe.Negative, map[string]any{"error": err.Error()})
		fmt.Fprintf(out, "\nFailed: %v\n", err)
	}()

	if err := f.start(ctx, tracker); err != nil {
		return nil, err
	}
	started = true

	markup, err := f.scrape(ctx, tracker, target)
	if err != nil {
		return nil, err
	}

	result := f.pipeline.WithTracker(tracker).Run(ctx, markup, req.Intent, keywords)
	parsed := tracker.Track(ctx, "listings_parsed", fmt.Sprintf("Parse %d chars", len(markup)),
		fmt.Sprintf("%d listings via %s", len(result.Listings), result.Strategy), map[string]any{
			"strategy":   string(result.Strategy),
			"candidates": result.Candidates,
			"count":      len(result.Listings),
		})
	if len(result.Listings) > 0 {
		tracker.Signal(ctx, parsed, "results_found", observe.Positive, map[string]any{"count": len(result.Listings)})
	} else {
		tracker.Signal(ctx, parsed, "no_results", observe.Negative, map[string]any{"strategy": string(result.Strategy)})
	}

	doc = models.NewResultDocument(sessionID, f.now(), keywords, result.Listings)
	if err := f.save(ctx, tracker, doc); err != nil {
		return nil, err
	}

	top := "none"
	if len(doc.Results) > 0 {
		top = doc.Results[0].Name
	}
	run.Finish(ctx, fmt.Sprintf("Found %d results. Top: %s", doc.Total, top), map[string]any{"results_found": doc.Total})
	tracker.Signal(ctx, run.ID(), "task_success", observe.Positive, map[string]any{"results_found": doc.Total})

	f.insights.PrintRanked(doc.Results)
	if f.opts.ShowInsights {
		f.insights.Print(f.insights.Generate(doc.Results))
	}
	return doc, nil
}

func (f *Finder) start(ctx context.Context, tracker *observe.Tracker) error {
	t0 := time.Now()
	info, err := f.session.Start(ctx)
	duration := time.Since(t0)
	if err != nil {
		tracker.Track(ctx, "session_failed", "Create browser session", err.Error(), nil)
		return fmt.Errorf("start session: %w", err)
	}

	tracker.Track(ctx, "session_started", "Create browser session",
		fmt.Sprintf("Session %s ready in %.2fs", info.ID, duration.Seconds()), map[string]any{
			"browser_session_id": info.ID,
			"viewer_url":         info.ViewerURL,
			"duration_seconds":   duration.Seconds(),
		})
	f.logger.Info("[finder] Browser session %s ready", info.ID)
	if info.ViewerURL != "" {
		fmt.Fprintf(f.opts.Output, "Watch live: %s\n", info.ViewerURL)
	}
	return nil
}

func (f *Finder) scrape(ctx context.Context, tracker *observe.Tracker, target string) (string, error) {
	in := tracker.Begin(ctx, "page_scrape", "Scrape URL: "+target, map[string]any{"url": target})

	fmt.Fprintf(f.opts.Output, "Scraping: %s\n", target)
	t0 := time.Now()
	markup, err := f.session.Fetch(ctx, target)
	duration := time.Since(t0)

	if err != nil {
		in.Finish(ctx, "Scrape failed: "+err.Error(), map[string]any{"error": err.Error()})
		tracker.Signal(ctx, in.ID(), "scrape_failure", observe.Negative, map[string]any{"error": err.Error()})
		return "", fmt.Errorf("scrape %s: %w", target, err)
	}

	fmt.Fprintf(f.opts.Output, "Scraped %d chars in %.2fs\n", len(markup), duration.Seconds())
	if duration > f.opts.SlowScrape {
		tracker.Signal(ctx, in.ID(), "slow_scrape", observe.Negative, map[string]any{"duration_seconds": duration.Seconds()})
	}
	if len(markup) < f.opts.ThinContent {
		tracker.Signal(ctx, in.ID(), "thin_content", observe.Negative, map[string]any{"content_length": len(markup)})
	}

	in.Finish(ctx, fmt.Sprintf("Scraped %d chars in %.2fs", len(markup), duration.Seconds()), map[string]any{
		"duration_seconds": duration.Seconds(),
		"content_length":   len(markup),
	})
	return markup, nil
}

func (f *Finder) save(ctx context.Context, tracker *observe.Tracker, doc *models.ResultDocument) error {
	for _, w := range f.writers {
		if err := w.Write(ctx, doc); err != nil {
			return fmt.Errorf("save results: %w", err)
		}
		dest := fmt.Sprintf("%T", w)
		if p, ok := w.(interface{ Path() string }); ok {
			dest = p.Path()
			fmt.Fprintf(f.opts.Output, "Saved to %s\n", dest)
		}
		tracker.Track(ctx, "results_saved", fmt.Sprintf("Save %d listings", doc.Total), "Written to "+dest,
			map[string]any{"destination": dest, "count": doc.Total})
	}
	return nil
}

func (f *Finder) release(ctx context.Context, tracker *observe.Tracker) {
	rctx := context.WithoutCancel(ctx)
	if err := f.session.Release(rctx); err != nil {
		f.logger.Warn("[finder] Session release failed: %v", err)
		return
	}
	tracker.Track(rctx, "session_released", "Release browser session", "Session released", nil)
}
