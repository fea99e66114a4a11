package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/viper"

	"property-finder/config"
	"property-finder/extract"
	"property-finder/llm"
	"property-finder/observe"
	"property-finder/scraper"
	"property-finder/scraper/browser"
	"property-finder/scraper/static"
	"property-finder/services"
	"property-finder/storage"
	"property-finder/utils"
)

// app holds the clients built once per command.
type app struct {
	cfg    *config.Config
	logger *utils.Logger
	store  storage.RunStore
}

// newApp loads configuration and opens the store. When requireStore is
// false a store that cannot be opened is logged and skipped.
func newApp(ctx context.Context, requireStore bool) (*app, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}
	logger := utils.NewLoggerWithOptions(utils.LogOptions{
		Debug: cfg.Debug,
		Quiet: cfg.Quiet,
		JSON:  cfg.JSONLogs,
	})
	a := &app{cfg: cfg, logger: logger}

	if !cfg.Store.Enabled && !requireStore {
		return a, nil
	}
	store, err := storage.NewSQLStore(ctx, cfg.Store.Driver, cfg.DSN(), logger)
	if err != nil {
		if requireStore {
			return nil, fmt.Errorf("open store: %w", err)
		}
		logger.Warn("[store] Unavailable, results go to files only: %v", err)
		return a, nil
	}
	a.store = store
	return a, nil
}

func (a *app) close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("[store] Close failed: %v", err)
	}
}

// completer returns the configured model client, or nil when none is set.
func (a *app) completer() (llm.Completer, error) {
	m := a.cfg.Model
	pc := llm.DefaultProviderConfig()
	pc.Provider = m.Provider
	pc.APIKey = m.APIKey
	pc.BaseURL = m.BaseURL
	pc.Model = m.Name
	pc.MaxTokens = m.MaxTokens
	pc.Timeout = m.Timeout

	c, err := llm.New(pc)
	if errors.Is(err, llm.ErrNoProvider) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.logger.Info("[wire] Model extraction enabled via %s", c.Name())
	return c, nil
}

// enrichFetcher returns the static fetcher used for description lookups, or
// nil when enrichment is off.
func (a *app) enrichFetcher() scraper.Fetcher {
	f := a.cfg.Fetch
	if !f.Enrich {
		return nil
	}
	return static.New(static.Config{
		UserAgent:         f.UserAgent,
		Timeout:           f.Timeout,
		MaxAttempts:       f.MaxAttempts,
		RequestsPerSecond: f.RequestsPerSecond,
	}, a.logger)
}

// buildPipeline wires extraction, cleaning and scoring for profileName. The
// returned factory builds scorers for other built-in profiles with the same
// fetcher.
func (a *app) buildPipeline(profileName string, noBounds bool) (*services.Pipeline, func(string) (*services.Scorer, error), error) {
	completer, err := a.completer()
	if err != nil {
		return nil, nil, err
	}
	var model *extract.ModelBased
	if completer != nil {
		model = extract.NewModelBased(completer, a.cfg.Model.MaxChars)
	}
	cascade := extract.DefaultCascade(nil, a.logger, model)

	var cleanerOpts []services.CleanerOption
	if noBounds || !a.cfg.Scoring.PriceBounds {
		cleanerOpts = append(cleanerOpts, services.WithoutPriceBounds())
	} else {
		cleanerOpts = append(cleanerOpts, services.WithPriceBounds(services.PriceBounds{
			Min: a.cfg.Scoring.MinPrice,
			Max: a.cfg.Scoring.MaxPrice,
		}))
	}
	cleaner := services.NewCleaner(a.logger, cleanerOpts...)

	fetcher := a.enrichFetcher()
	var enrich services.EnrichPredicate
	if hosts := a.cfg.Fetch.EnrichHosts; len(hosts) > 0 {
		enrich = services.CanonicalHostPredicate(hosts...)
	}
	profile, err := services.LoadProfile(profileName)
	if err != nil {
		return nil, nil, err
	}
	scorer := services.NewScorer(profile, fetcher, enrich, a.logger)

	// Per-request profiles come from remote callers and are limited to the
	// embedded set; file paths stay a local CLI feature.
	scorerFor := func(name string) (*services.Scorer, error) {
		p, err := services.LoadBuiltinProfile(name)
		if err != nil {
			return nil, err
		}
		return services.NewScorer(p, fetcher, enrich, a.logger), nil
	}
	return services.NewPipeline(cascade, cleaner, scorer, a.logger), scorerFor, nil
}

func (a *app) browserSession() *browser.Session {
	b := a.cfg.Browser
	return browser.New(browser.Config{
		RemoteURL:         b.RemoteURL,
		ChromePath:        b.ChromePath,
		Headless:          b.Headless,
		UserAgent:         b.UserAgent,
		PageTimeout:       b.PageTimeout,
		RenderDelay:       b.RenderDelay,
		MaxAttempts:       b.MaxAttempts,
		RequestsPerSecond: b.RequestsPerSecond,
	}, a.logger)
}

// writers lists the result destinations. The JSON contract file goes last
// so a failed store or export leaves no results.json behind.
func (a *app) writers() []storage.ResultWriter {
	out := a.cfg.Output
	var ws []storage.ResultWriter
	if a.store != nil {
		ws = append(ws, a.store)
	}
	if out.CSVPath != "" {
		ws = append(ws, storage.NewCSVWriter(out.CSVPath))
	}
	if out.YAMLPath != "" {
		ws = append(ws, storage.NewYAMLWriter(out.YAMLPath))
	}
	return append(ws, storage.NewJSONWriter(out.JSONPath))
}

func (a *app) sinks() []observe.Sink {
	sinks := []observe.Sink{observe.NewLogSink(a.logger)}
	if a.store != nil {
		sinks = append(sinks, a.store)
	}
	return sinks
}
