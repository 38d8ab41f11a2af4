package engine

import (
	"context"
	"log/slog"

	"github.com/use-agent/sellerwatch/events"
	"github.com/use-agent/sellerwatch/models"
	"github.com/use-agent/sellerwatch/scraper"
)

// runTask drives one task through RUNNING to WAITING or DONE. Errors are
// logged and reported in the outcome; the task then stays RUNNING until
// its cooldown expires.
func (o *Orchestrator) runTask(ctx context.Context, session scraper.Session, task models.Task, log *slog.Logger) models.TaskOutcome {
	log = log.With("task_id", task.ID, "task_name", task.TaskName, "merchant_id", task.MerchantID)
	outcome := models.TaskOutcome{TaskID: task.ID, Status: task.Status}

	o.metrics.TaskStarted()
	var stats scraper.CrawlStats
	defer func() {
		o.metrics.TaskFinished(outcome.ErrorCode, stats.Listed, stats.Kept, stats.Recorded, stats.Skipped)
	}()

	fail := func(err error) models.TaskOutcome {
		outcome.ErrorCode = models.CodeOf(err)
		outcome.Error = err.Error()
		log.Error("task failed", "code", outcome.ErrorCode, "error", err)
		return outcome
	}

	bctx, err := session.NewContext(ctx, task.ProxyURL)
	if err != nil {
		return fail(err)
	}
	defer func() {
		if err := bctx.Close(); err != nil {
			log.Debug("failed to close browser context", "error", err)
		}
	}()

	if err := o.store.MarkRunning(ctx, task.ID, o.now()); err != nil {
		return fail(models.NewCrawlError(models.ErrCodePersistence, "mark task running", err))
	}
	outcome.Status = models.StatusRunning
	log.Info("task started")

	taskCtx := ctx
	if o.opts.TaskTimeout > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(ctx, o.opts.TaskTimeout)
		defer cancel()
	}

	stats, err = o.crawler.Crawl(taskCtx, bctx, task)
	outcome.Listed = stats.Listed
	outcome.Kept = stats.Kept
	outcome.Recorded = stats.Recorded
	if err != nil {
		return fail(err)
	}

	next, ok := nextStatus(task)
	if !ok {
		log.Info("task finished")
		return outcome
	}
	if err := o.store.SetStatus(ctx, task.ID, next); err != nil {
		return fail(models.NewCrawlError(models.ErrCodePersistence, "update task status", err))
	}
	outcome.Status = next
	if o.notifier != nil {
		o.notifier.Emit(events.TaskRefresh, map[string]any{
			"task_id": task.ID,
			"status":  next.String(),
		})
	}
	log.Info("task finished", "status", next.String(), "recorded", stats.Recorded)
	return outcome
}

// nextStatus is the transition after a successful crawl. Status is the
// value the task had when selected.
func nextStatus(task models.Task) (models.TaskStatus, bool) {
	switch {
	case task.Frequency == models.FrequencyRecurring:
		return models.StatusWaiting, true
	case task.Frequency == models.FrequencyOnce && task.Status != models.StatusDone:
		return models.StatusDone, true
	default:
		return 0, false
	}
}
