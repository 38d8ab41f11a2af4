package scraper

import (
	"context"
	"log/slog"
	"time"

	"github.com/avast/retry-go"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/sellerwatch/config"
	"github.com/use-agent/sellerwatch/models"
)

// RodProvider launches local Chromium instances through go-rod.
type RodProvider struct {
	cfg config.BrowserConfig
}

// NewRodProvider creates a provider from the browser configuration.
func NewRodProvider(cfg config.BrowserConfig) *RodProvider {
	return &RodProvider{cfg: cfg}
}

// Launch starts a browser and connects to it. Launch failures are retried
// up to LaunchAttempts times.
func (p *RodProvider) Launch(ctx context.Context, opts LaunchOptions) (Session, error) {
	attempts := p.cfg.LaunchAttempts
	if attempts < 1 {
		attempts = 1
	}

	var browser *rod.Browser
	err := retry.Do(
		func() error {
			b, err := p.launchOnce(opts)
			if err != nil {
				return err
			}
			browser = b
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(attempts)),
		retry.Delay(time.Second),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			slog.Warn("browser launch failed, retrying", "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return nil, models.NewCrawlError(models.ErrCodeBrowser, "failed to launch browser", err)
	}

	return &rodSession{
		browser: browser,
		blocked: blockedSet(p.cfg.BlockedResourceTypes),
		cfg:     p.cfg,
	}, nil
}

func (p *RodProvider) launchOnce(opts LaunchOptions) (*rod.Browser, error) {
	l := launcher.New().
		Headless(opts.Headless).
		NoSandbox(p.cfg.NoSandbox)

	if p.cfg.BrowserBin != "" {
		l = l.Bin(p.cfg.BrowserBin)
	}
	if opts.Proxy != "" {
		l = l.Proxy(opts.Proxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-setuid-sandbox"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, err
	}
	slog.Info("browser launched", "controlURL", controlURL, "headless", opts.Headless)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, err
	}
	return browser, nil
}

type rodSession struct {
	browser *rod.Browser
	blocked map[proto.NetworkResourceType]struct{}
	cfg     config.BrowserConfig
}

// NewContext creates a CDP browser context. Rod's Incognito does not take a
// proxy, so the target call is issued directly.
func (s *rodSession) NewContext(ctx context.Context, proxy string) (BrowserContext, error) {
	res, err := proto.TargetCreateBrowserContext{
		DisposeOnDetach: true,
		ProxyServer:     proxy,
	}.Call(s.browser.Context(ctx))
	if err != nil {
		return nil, categorizeError(err, models.ErrCodeBrowser, "failed to create browser context")
	}

	scoped := *s.browser
	scoped.BrowserContextID = res.BrowserContextID
	return &rodContext{session: s, browser: &scoped, id: res.BrowserContextID}, nil
}

func (s *rodSession) Close() error {
	slog.Info("closing browser")
	return s.browser.Close()
}

type rodContext struct {
	session *rodSession
	browser *rod.Browser
	id      proto.BrowserBrowserContextID
}

// NewPage opens a tab inside the context with stealth, resource blocking
// and the configured Accept-Language applied before any navigation.
func (c *rodContext) NewPage(ctx context.Context) (Page, error) {
	page, err := c.browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, categorizeError(err, models.ErrCodeBrowser, "failed to open page")
	}
	// Drop the creation ctx; each operation binds its own.
	page = page.Context(context.Background())

	cfg := c.session.cfg
	if cfg.Stealth {
		if err := injectStealth(page); err != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
		}
	}
	if cfg.AcceptLanguage != "" {
		setAcceptLanguage(page, cfg.AcceptLanguage)
	}

	return &rodPage{
		page:   page,
		router: setupHijack(page, c.session.blocked),
	}, nil
}

func (c *rodContext) Close() error {
	return proto.TargetDisposeBrowserContext{BrowserContextID: c.id}.Call(c.session.browser)
}
