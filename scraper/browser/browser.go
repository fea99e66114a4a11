// Package browser renders pages in Chrome through chromedp. A Session owns
// one browser, either launched locally or attached over a remote debugging
// websocket, and renders each fetched URL in a fresh tab.
package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"golang.org/x/time/rate"

	"property-finder/scraper"
	"property-finder/utils"
)

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// ErrNotStarted is returned by Fetch before Start succeeds.
var ErrNotStarted = errors.New("browser session not started")

// Config controls how the browser is obtained and how pages are rendered.
type Config struct {
	// RemoteURL attaches to an existing browser's devtools websocket instead
	// of launching Chrome locally.
	RemoteURL  string
	ChromePath string
	Headless   bool
	UserAgent  string

	PageTimeout time.Duration
	// RenderDelay is how long to wait after navigation for scripts to run.
	RenderDelay time.Duration
	MaxAttempts int
	// RequestsPerSecond limits page loads; 0 disables the limit.
	RequestsPerSecond float64
}

// DefaultConfig mirrors what the scraper has always used.
func DefaultConfig() Config {
	return Config{
		Headless:          true,
		UserAgent:         defaultUserAgent,
		PageTimeout:       90 * time.Second,
		RenderDelay:       3 * time.Second,
		MaxAttempts:       3,
		RequestsPerSecond: 1,
	}
}

// Session is a browser-backed scraper.Session.
type Session struct {
	cfg     Config
	logger  *utils.Logger
	retry   *utils.RetryConfig
	limiter *rate.Limiter

	mu            sync.Mutex
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
}

var _ scraper.Session = (*Session)(nil)

// New creates a Session. Nothing is launched until Start.
func New(cfg Config, logger *utils.Logger) *Session {
	def := DefaultConfig()
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = def.PageTimeout
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if logger == nil {
		logger = utils.NewDiscardLogger()
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Session{
		cfg:    cfg,
		logger: logger,
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxAttempts,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Start launches or attaches to the browser.
func (s *Session) Start(ctx context.Context) (scraper.SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.browserCtx != nil {
		return s.info(), nil
	}

	var allocCtx context.Context
	var cancelAlloc context.CancelFunc
	if s.cfg.RemoteURL != "" {
		s.logger.Info("[browser] Attaching to remote browser at %s", s.cfg.RemoteURL)
		allocCtx, cancelAlloc = chromedp.NewRemoteAllocator(context.Background(), s.cfg.RemoteURL)
	} else {
		chromeBin := s.cfg.ChromePath
		if chromeBin == "" {
			chromeBin = findChromeBinary()
		}
		s.logger.Info("[browser] Using browser binary: %s", chromeBin)
		allocCtx, cancelAlloc = chromedp.NewExecAllocator(context.Background(), s.allocatorOptions(chromeBin)...)
	}

	// Suppress chromedp log noise
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...any) {}))

	started := make(chan error, 1)
	go func() { started <- chromedp.Run(browserCtx) }()
	select {
	case err := <-started:
		if err != nil {
			cancelBrowser()
			cancelAlloc()
			return scraper.SessionInfo{}, fmt.Errorf("start browser: %w", err)
		}
	case <-ctx.Done():
		cancelBrowser()
		cancelAlloc()
		return scraper.SessionInfo{}, fmt.Errorf("start browser: %w", ctx.Err())
	}

	s.browserCtx = browserCtx
	s.cancelBrowser = cancelBrowser
	s.cancelAlloc = cancelAlloc
	return s.info(), nil
}

func (s *Session) info() scraper.SessionInfo {
	info := scraper.SessionInfo{ViewerURL: s.cfg.RemoteURL}
	if c := chromedp.FromContext(s.browserCtx); c != nil && c.Browser != nil && c.Target != nil {
		info.ID = string(c.Target.TargetID)
	}
	return info
}

func (s *Session) allocatorOptions(chromeBin string) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", s.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(s.cfg.UserAgent),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}
	return opts
}

// Fetch renders url in a new tab and returns the page's outer HTML.
func (s *Session) Fetch(ctx context.Context, url string) (string, error) {
	s.mu.Lock()
	browserCtx := s.browserCtx
	s.mu.Unlock()
	if browserCtx == nil {
		return "", ErrNotStarted
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit: %w", err)
	}

	var html string
	err := s.retry.Do(ctx, "page fetch", func(ctx context.Context) error {
		tabCtx, cancel := chromedp.NewContext(browserCtx)
		defer cancel()
		stop := context.AfterFunc(ctx, cancel)
		defer stop()

		tabCtx, cancelTimeout := context.WithTimeout(tabCtx, s.cfg.PageTimeout)
		defer cancelTimeout()

		err := chromedp.Run(tabCtx,
			chromedp.Navigate(url),
			chromedp.Sleep(s.cfg.RenderDelay),

			// Scroll to load lazy cards
			chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight / 2)`, nil),
			chromedp.Sleep(s.cfg.RenderDelay/2),
			chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
			chromedp.Sleep(s.cfg.RenderDelay/2),

			chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		)
		if err != nil {
			return fmt.Errorf("chromedp render: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	s.logger.Debug("[browser] Rendered %s (%d chars)", url, len(html))
	return html, nil
}

// Release closes the browser. It is safe to call more than once and
// before Start.
func (s *Session) Release(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.browserCtx == nil {
		return nil
	}
	if err := chromedp.Cancel(s.browserCtx); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Debug("[browser] Cancel: %v", err)
	}
	s.cancelBrowser()
	s.cancelAlloc()
	s.browserCtx = nil
	return nil
}

// findChromeBinary locates Chrome/Chromium binary.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
