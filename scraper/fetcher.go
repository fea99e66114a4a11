// Package scraper fetches page markup. The browser package renders pages
// in a real Chrome; the static package does plain HTTP for detail pages.
package scraper

import "context"

// Fetcher returns the markup of the page at url.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Session is a Fetcher with an explicit lifecycle, such as a browser.
// Release must be safe to call even if Start failed.
type Session interface {
	Fetcher
	Start(ctx context.Context) (SessionInfo, error)
	Release(ctx context.Context) error
}

// SessionInfo describes a started session.
type SessionInfo struct {
	ID string
	// ViewerURL points at a live view of the session, when the backend has one.
	ViewerURL string
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, url string) (string, error)

func (f FetcherFunc) Fetch(ctx context.Context, url string) (string, error) {
	return f(ctx, url)
}
