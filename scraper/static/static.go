// Package static fetches pages over plain HTTP with colly. It serves
// listing detail pages, which carry their description in server-rendered
// meta tags and need no browser.
package static

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"golang.org/x/time/rate"

	"property-finder/scraper"
	"property-finder/utils"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Config holds configuration for the static fetcher.
type Config struct {
	UserAgent         string
	Timeout           time.Duration
	MaxAttempts       int
	RequestsPerSecond float64
	Headers           map[string]string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		UserAgent:         defaultUserAgent,
		Timeout:           30 * time.Second,
		MaxAttempts:       2,
		RequestsPerSecond: 2,
	}
}

// Fetcher is a rate-limited colly fetcher.
type Fetcher struct {
	cfg     Config
	logger  *utils.Logger
	limiter *rate.Limiter
	retry   *utils.RetryConfig
}

var _ scraper.Fetcher = (*Fetcher)(nil)

// New creates a static Fetcher.
func New(cfg Config, logger *utils.Logger) *Fetcher {
	def := DefaultConfig()
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if logger == nil {
		logger = utils.NewDiscardLogger()
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Fetcher{
		cfg:     cfg,
		logger:  logger,
		limiter: rate.NewLimiter(limit, 1),
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxAttempts,
			BaseDelay:   time.Second,
			MaxDelay:    8 * time.Second,
			Logger:      logger,
		},
	}
}

// Fetch returns the body of url. Non-2xx responses are errors.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit: %w", err)
	}

	var body string
	err := f.retry.Do(ctx, "static fetch", func(ctx context.Context) error {
		var err error
		body, err = f.visit(ctx, url)
		return err
	})
	return body, err
}

func (f *Fetcher) visit(ctx context.Context, url string) (string, error) {
	c := colly.NewCollector(
		colly.UserAgent(f.cfg.UserAgent),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(f.cfg.Timeout)

	if len(f.cfg.Headers) > 0 {
		c.OnRequest(func(r *colly.Request) {
			for k, v := range f.cfg.Headers {
				r.Headers.Set(k, v)
			}
		})
	}

	var body string
	var fetchErr error
	c.OnResponse(func(r *colly.Response) {
		body = string(r.Body)
	})
	c.OnError(func(r *colly.Response, err error) {
		status := 0
		if r != nil {
			status = r.StatusCode
		}
		fetchErr = fmt.Errorf("fetch %s (status %d): %w", url, status, err)
		if status >= 400 && status < 500 && status != http.StatusTooManyRequests {
			fetchErr = utils.Permanent(fetchErr)
		}
	})

	if err := c.Visit(url); err != nil {
		return "", fmt.Errorf("visit %s: %w", url, err)
	}
	if fetchErr != nil {
		return "", fetchErr
	}

	f.logger.Debug("[static] Fetched %s (%d bytes)", url, len(body))
	return body, nil
}
