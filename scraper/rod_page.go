package scraper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/sellerwatch/models"
	"github.com/ysmood/gson"
)

// actionTimeout bounds a single click.
const actionTimeout = 10 * time.Second

type rodPage struct {
	page   *rod.Page
	router *rod.HijackRouter
}

func (r *rodPage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	p := r.page.Context(ctx)
	if timeout > 0 {
		p = p.Timeout(timeout)
	}
	if err := p.Navigate(url); err != nil {
		return categorizeError(err, models.ErrCodeNavigationTimeout, "navigation failed")
	}
	if err := p.WaitLoad(); err != nil {
		return categorizeError(err, models.ErrCodeNavigationTimeout, "page load did not complete")
	}
	return nil
}

// WaitForSelector returns ErrSelectorNotFound when only the local timeout
// expired, and the context error when ctx itself ended.
func (r *rodPage) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	p := r.page.Context(ctx)
	if timeout > 0 {
		p = p.Timeout(timeout)
	}
	_, err := p.Element(selector)
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, context.DeadlineExceeded):
		return ErrSelectorNotFound
	default:
		return categorizeError(err, models.ErrCodeSelectorNotFound, "wait for "+selector)
	}
}

func (r *rodPage) Evaluate(ctx context.Context, js string, args ...any) (gson.JSON, error) {
	res, err := r.page.Context(ctx).Eval(js, args...)
	if err != nil {
		return gson.New(nil), categorizeError(err, models.ErrCodeExtraction, "script evaluation failed")
	}
	return res.Value, nil
}

func (r *rodPage) Has(ctx context.Context, selector string) (bool, error) {
	found, _, err := r.page.Context(ctx).Has(selector)
	if err != nil {
		return false, categorizeError(err, models.ErrCodeSelectorNotFound, "query "+selector)
	}
	return found, nil
}

func (r *rodPage) Click(ctx context.Context, selector string) error {
	p := r.page.Context(ctx).Timeout(actionTimeout)
	el, err := p.Element(selector)
	if err != nil {
		return categorizeError(err, models.ErrCodeSelectorNotFound, "element "+selector+" not found")
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return categorizeError(err, models.ErrCodeExtraction, "click "+selector)
	}
	return nil
}

func (r *rodPage) HTML(ctx context.Context) (string, error) {
	html, err := r.page.Context(ctx).HTML()
	if err != nil {
		return "", categorizeError(err, models.ErrCodeExtraction, "failed to extract page HTML")
	}
	return html, nil
}

func (r *rodPage) Close() error {
	if r.router != nil {
		_ = r.router.Stop()
	}
	return r.page.Close()
}

// injectStealth masks navigator.webdriver and friends. It must run before
// the first navigation.
func injectStealth(page *rod.Page) error {
	_, err := page.EvalOnNewDocument(stealth.JS)
	return err
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
// setAcceptLanguage pins the Accept-Language header for every request the
// page issues. The crawl proceeds with browser defaults when it fails.
func setAcceptLanguage(page proto.Client, lang string) {
	err := proto.NetworkSetExtraHTTPHeaders{
		Headers: toHeadersMap(map[string]string{"Accept-Language": lang}),
	}.Call(page)
	if err != nil {
		slog.Debug("set Accept-Language failed", "lang", lang, "error", err)
	}
}

func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// categorizeError wraps raw errors into coded CrawlErrors. Deadline and
// cancellation take precedence over the caller's code.
func categorizeError(err error, code, msg string) *models.CrawlError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewCrawlError(models.ErrCodeNavigationTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewCrawlError(models.ErrCodeCanceled, msg, err)
	default:
		return models.NewCrawlError(code, msg, err)
	}
}
