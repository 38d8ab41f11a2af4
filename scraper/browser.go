package scraper

import (
	"context"
	"errors"
	"time"

	"github.com/ysmood/gson"
)

// ErrSelectorNotFound is returned by Page.WaitForSelector when the selector
// did not appear before the timeout.
var ErrSelectorNotFound = errors.New("selector not found")

// LaunchOptions configures a browser session.
type LaunchOptions struct {
	Headless bool
	// Proxy is the session-wide proxy; empty means direct.
	Proxy string
}

// Provider launches browser sessions.
type Provider interface {
	Launch(ctx context.Context, opts LaunchOptions) (Session, error)
}

// Session is one running browser, shared by all tasks of a run.
type Session interface {
	// NewContext creates an isolated context (cookies, cache, proxy).
	// An empty proxy inherits the session's.
	NewContext(ctx context.Context, proxy string) (BrowserContext, error)
	Close() error
}

// BrowserContext is the per-task isolation unit.
type BrowserContext interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is a single tab. All methods honor ctx cancellation.
type Page interface {
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error
	Evaluate(ctx context.Context, js string, args ...any) (gson.JSON, error)
	Has(ctx context.Context, selector string) (bool, error)
	Click(ctx context.Context, selector string) error
	HTML(ctx context.Context) (string, error)
	Close() error
}
