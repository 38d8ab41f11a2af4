// Package scraper drives a browser through a seller's catalog and hands
// engagement observations to a Recorder.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"sync/atomic"
	"time"

	"github.com/use-agent/sellerwatch/config"
	"github.com/use-agent/sellerwatch/models"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Recorder persists one observation.
type Recorder interface {
	Record(ctx context.Context, obs models.Observation) (*models.Snapshot, error)
}

// CrawlStats counts what happened to one task's catalog.
type CrawlStats struct {
	Listed       int `json:"listed"`
	Kept         int `json:"kept"`
	Visited      int `json:"visited"`
	Recorded     int `json:"recorded"`
	NoEngagement int `json:"no_engagement"`
	Skipped      int `json:"skipped"`
}

// Pipeline is the per-task extraction routine. It is safe for concurrent
// use by several tasks.
type Pipeline struct {
	cfg       config.CrawlConfig
	recorder  Recorder
	productID *regexp.Regexp
	now       func() time.Time
}

// NewPipeline validates the crawl configuration and builds a Pipeline.
func NewPipeline(cfg config.CrawlConfig, recorder Recorder) (*Pipeline, error) {
	re, err := regexp.Compile(cfg.ProductIDPattern)
	if err != nil {
		return nil, fmt.Errorf("product id pattern: %w", err)
	}
	if re.NumSubexp() < 1 {
		return nil, fmt.Errorf("product id pattern %q has no capture group", cfg.ProductIDPattern)
	}
	if cfg.ItemConcurrency < 1 {
		cfg.ItemConcurrency = 1
	}
	return &Pipeline{
		cfg:       cfg,
		recorder:  recorder,
		productID: re,
		now:       time.Now,
	}, nil
}

// ListingURL returns the catalog address of a merchant.
func (p *Pipeline) ListingURL(merchantID string) string {
	return fmt.Sprintf(p.cfg.ListingURLTemplate, url.PathEscape(merchantID))
}

// Crawl loads the merchant's full catalog, filters it by the task's price
// range and records every item showing engagement. Navigation failure of
// the listing and persistence failures abort the task; per-item problems
// only skip the item. An empty catalog is not an error.
func (p *Pipeline) Crawl(ctx context.Context, bctx BrowserContext, task models.Task) (CrawlStats, error) {
	log := slog.With("task_id", task.ID, "merchant_id", task.MerchantID)
	var stats CrawlStats

	items, listed, err := p.listing(ctx, bctx, task, log)
	stats.Listed = listed
	stats.Kept = len(items)
	if err != nil || len(items) == 0 {
		return stats, err
	}
	log.Info("catalog loaded", "listed", listed, "kept", len(items))

	limit := rate.Inf
	if p.cfg.ItemDelay > 0 {
		limit = rate.Every(p.cfg.ItemDelay)
	}
	limiter := rate.NewLimiter(limit, 1)

	var visited, recorded, idle, skipped atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.ItemConcurrency)
	for _, item := range items {
		g.Go(func() error {
			if err := limiter.Wait(gctx); err != nil {
				return err
			}
			res, err := p.visit(gctx, bctx, task, item, log)
			switch res {
			case visitRecorded:
				visited.Add(1)
				recorded.Add(1)
			case visitNoEngagement:
				visited.Add(1)
				idle.Add(1)
			case visitSkipped:
				skipped.Add(1)
			}
			return err
		})
	}
	err = g.Wait()

	stats.Visited = int(visited.Load())
	stats.Recorded = int(recorded.Load())
	stats.NoEngagement = int(idle.Load())
	stats.Skipped = int(skipped.Load())
	if err != nil {
		return stats, err
	}
	log.Info("catalog crawled",
		"recorded", stats.Recorded,
		"no_engagement", stats.NoEngagement,
		"skipped", stats.Skipped,
	)
	return stats, nil
}

// listing opens the catalog page, paginates it to the end and returns the
// items within the price range together with the number of cells seen.
func (p *Pipeline) listing(ctx context.Context, bctx BrowserContext, task models.Task, log *slog.Logger) ([]ListingItem, int, error) {
	page, err := bctx.NewPage(ctx)
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		if err := page.Close(); err != nil {
			log.Debug("close listing page", "error", err)
		}
	}()

	listingURL := p.ListingURL(task.MerchantID)
	if err := page.Navigate(ctx, listingURL, p.cfg.NavigationTimeout); err != nil {
		return nil, 0, asCrawlError(err, models.ErrCodeNavigationTimeout, "open catalog "+listingURL)
	}

	err = page.WaitForSelector(ctx, p.cfg.ItemSelector, p.cfg.ListingWaitTimeout)
	if errors.Is(err, ErrSelectorNotFound) {
		log.Warn("no item cells on catalog page", "url", listingURL)
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}

	pg := paginator{
		selector:  p.cfg.LoadMoreSelector,
		delay:     p.cfg.ClickDelay,
		loadWait:  p.cfg.LoadWait,
		maxClicks: p.cfg.MaxLoadMore,
	}
	clicks, err := pg.loadAll(ctx, page, log)
	if err != nil {
		return nil, 0, err
	}
	log.Debug("pagination finished", "clicks", clicks)

	html, err := page.HTML(ctx)
	if err != nil {
		return nil, 0, err
	}
	base, _ := url.Parse(listingURL)
	items, listed, err := ParseListing(html, base, ListingSelectors{
		Item:  p.cfg.ItemSelector,
		Price: p.cfg.PriceSelector,
		Link:  p.cfg.LinkSelector,
	}, task.MinPrice, task.MaxPrice)
	if err != nil {
		return nil, 0, models.NewCrawlError(models.ErrCodeExtraction, "parse catalog", err)
	}
	return items, listed, nil
}

type visitResult int

const (
	visitSkipped visitResult = iota
	visitNoEngagement
	visitRecorded
)

// visit scrapes one item page. A non-nil error aborts the whole task: it
// is returned only for persistence failures and cancellation.
func (p *Pipeline) visit(ctx context.Context, bctx BrowserContext, task models.Task, item ListingItem, log *slog.Logger) (visitResult, error) {
	log = log.With("url", item.URL)

	productID, err := ProductIDFromURL(p.productID, item.URL)
	if err != nil {
		log.Warn("item skipped", "code", models.ErrCodeExtraction, "error", err)
		return visitSkipped, nil
	}
	log = log.With("product_id", productID)

	page, err := bctx.NewPage(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return visitSkipped, ctx.Err()
		}
		log.Warn("item skipped", "code", models.CodeOf(err), "error", err)
		return visitSkipped, nil
	}
	defer func() {
		if err := page.Close(); err != nil {
			log.Debug("close item page", "error", err)
		}
	}()

	if err := page.Navigate(ctx, item.URL, p.cfg.NavigationTimeout); err != nil {
		if ctx.Err() != nil {
			return visitSkipped, ctx.Err()
		}
		log.Warn("item skipped", "code", models.CodeOf(err), "error", err)
		return visitSkipped, nil
	}

	err = page.WaitForSelector(ctx, p.cfg.LikeWaitSelector, p.cfg.DetailWaitTimeout)
	if errors.Is(err, ErrSelectorNotFound) {
		log.Info("like control not found")
	} else if err != nil {
		if ctx.Err() != nil {
			return visitSkipped, ctx.Err()
		}
		log.Debug("waiting for like control failed", "error", err)
	}

	html, err := page.HTML(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return visitSkipped, ctx.Err()
		}
		log.Warn("item skipped", "code", models.CodeOf(err), "error", err)
		return visitSkipped, nil
	}
	likes, comments, err := ParseDetail(html, DetailSelectors{
		Like:    p.cfg.LikeSelector,
		Comment: p.cfg.CommentSelector,
	})
	if err != nil {
		log.Warn("item skipped", "code", models.ErrCodeExtraction, "error", err)
		return visitSkipped, nil
	}
	if likes <= 0 && comments <= 0 {
		log.Debug("no likes or comments, not recorded")
		return visitNoEngagement, nil
	}

	_, err = p.recorder.Record(ctx, models.Observation{
		TaskID:     task.ID,
		MerchantID: task.MerchantID,
		ProductID:  productID,
		Price:      item.Price,
		Favorites:  likes,
		Rating:     comments,
		ObservedAt: p.now(),
	})
	if err != nil {
		return visitSkipped, asCrawlError(err, models.ErrCodePersistence, "record "+productID)
	}
	return visitRecorded, nil
}

// asCrawlError keeps an existing code and assigns code otherwise.
func asCrawlError(err error, code, msg string) error {
	var ce *models.CrawlError
	if errors.As(err, &ce) {
		return err
	}
	return models.NewCrawlError(code, msg, err)
}
