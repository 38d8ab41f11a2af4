package scraper

import (
	"context"
	"log/slog"
	"time"
)

// scrollJS scrolls to `offset` pixels above the bottom of the document.
const scrollJS = `(offset) => { window.scrollTo(0, document.body.scrollHeight - offset) }`

// scrollBottomOffset keeps the load-more control inside the viewport.
const scrollBottomOffset = 100

// paginator drives the "load more" control of a listing page.
type paginator struct {
	selector  string
	delay     time.Duration
	loadWait  time.Duration
	maxClicks int
}

// loadAll clicks the load-more control until it disappears, a click fails,
// or maxClicks is reached. Only ctx cancellation is returned as an error;
// the caller continues with whatever was loaded otherwise.
func (pg paginator) loadAll(ctx context.Context, page Page, log *slog.Logger) (int, error) {
	if _, err := page.Evaluate(ctx, scrollJS, scrollBottomOffset); err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		log.Debug("scroll to bottom failed", "error", err)
	}

	clicks := 0
	for {
		if clicks >= pg.maxClicks {
			log.Warn("load-more ceiling reached, continuing with loaded items", "clicks", clicks)
			return clicks, nil
		}

		present, err := page.Has(ctx, pg.selector)
		if err != nil {
			if ctx.Err() != nil {
				return clicks, ctx.Err()
			}
			log.Debug("load-more lookup failed", "error", err)
			return clicks, nil
		}
		if !present {
			return clicks, nil
		}

		if err := sleepCtx(ctx, pg.delay); err != nil {
			return clicks, err
		}
		if err := page.Click(ctx, pg.selector); err != nil {
			if ctx.Err() != nil {
				return clicks, ctx.Err()
			}
			log.Info("load-more click failed, stopping pagination", "clicks", clicks, "error", err)
			return clicks, nil
		}
		clicks++
		if err := sleepCtx(ctx, pg.loadWait); err != nil {
			return clicks, err
		}
	}
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
