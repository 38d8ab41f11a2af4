// Package engine selects eligible tasks and runs them through the
// extraction pipeline inside one shared browser session.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/use-agent/sellerwatch/metrics"
	"github.com/use-agent/sellerwatch/models"
	"github.com/use-agent/sellerwatch/scraper"
	"golang.org/x/sync/errgroup"
)

// Store is the persistence surface the orchestrator needs.
type Store interface {
	ListRunnable(ctx context.Context) ([]models.Task, error)
	SetStatus(ctx context.Context, id uint, status models.TaskStatus) error
	MarkRunning(ctx context.Context, id uint, at time.Time) error
	ActiveProxy(ctx context.Context) (*models.ProxyConfig, error)
}

// Crawler extracts one task's catalog inside a browser context.
type Crawler interface {
	Crawl(ctx context.Context, bctx scraper.BrowserContext, task models.Task) (scraper.CrawlStats, error)
}

// Notifier receives task-refresh signals.
type Notifier interface {
	Emit(name string, data any)
}

// Options tunes the orchestrator.
type Options struct {
	TaskConcurrency int
	Cooldown        time.Duration
	TaskTimeout     time.Duration
	EnforceGuard    bool
	RequireProxy    bool
	Headless        bool
}

// Orchestrator owns the run guard and every dependency of a run. It is
// safe for concurrent use.
type Orchestrator struct {
	store    Store
	provider scraper.Provider
	crawler  Crawler
	notifier Notifier
	metrics  *metrics.Metrics
	opts     Options
	now      func() time.Time

	running atomic.Bool
	active  atomic.Int32

	mu   sync.RWMutex
	last *models.RunSummary
}

// New creates an Orchestrator. notifier and m may be nil.
func New(st Store, provider scraper.Provider, crawler Crawler, notifier Notifier, m *metrics.Metrics, opts Options) *Orchestrator {
	if opts.TaskConcurrency < 1 {
		opts.TaskConcurrency = 1
	}
	return &Orchestrator{
		store:    st,
		provider: provider,
		crawler:  crawler,
		notifier: notifier,
		metrics:  m,
		opts:     opts,
		now:      time.Now,
	}
}

// Running reports whether a run is in progress.
func (o *Orchestrator) Running() bool {
	return o.active.Load() > 0
}

// LastRun returns the summary of the most recent run that was not skipped.
func (o *Orchestrator) LastRun() *models.RunSummary {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.last
}

// ExecuteTasks is the trigger entry point. It performs one full cycle:
// guard, proxy lookup, eligibility, browser launch, bounded task fan-out.
// Individual task failures are reported in the summary, not as an error.
// A call arriving while another run holds the guard returns a skipped
// summary and a nil error.
func (o *Orchestrator) ExecuteTasks(ctx context.Context) (*models.RunSummary, error) {
	summary := &models.RunSummary{
		RunID:     uuid.NewString(),
		StartedAt: o.now().UTC(),
	}
	log := slog.With("run_id", summary.RunID)

	if o.opts.EnforceGuard {
		if !o.running.CompareAndSwap(false, true) {
			log.Info("previous run still in progress, skipping")
			summary.Skipped = true
			o.metrics.RunSkipped()
			return summary, nil
		}
		// Registered first so it runs after the session is closed.
		defer o.running.Store(false)
	}

	o.active.Add(1)
	defer o.active.Add(-1)
	o.metrics.RunStarted()

	var runErr error
	defer func() {
		summary.Duration = o.now().UTC().Sub(summary.StartedAt)
		if runErr != nil {
			summary.Error = runErr.Error()
		}
		o.metrics.RunFinished(summary.Duration, runErr != nil)
		o.mu.Lock()
		o.last = summary
		o.mu.Unlock()
		log.Info("run finished",
			"duration", summary.Duration,
			"eligible", summary.Eligible,
			"succeeded", summary.Succeeded,
			"failed", summary.Failed,
		)
	}()

	runErr = o.run(ctx, summary, log)
	return summary, runErr
}

func (o *Orchestrator) run(ctx context.Context, summary *models.RunSummary, log *slog.Logger) error {
	proxy, err := o.store.ActiveProxy(ctx)
	if err != nil {
		return models.NewCrawlError(models.ErrCodePersistence, "load proxy", err)
	}
	var proxyURL string
	if proxy != nil {
		proxyURL = proxy.ProxyURL
	} else if o.opts.RequireProxy {
		log.Warn("no active proxy configured, run aborted")
		return models.NewCrawlError(models.ErrCodeNoProxy, "no active proxy configured", nil)
	}

	candidates, err := o.store.ListRunnable(ctx)
	if err != nil {
		return models.NewCrawlError(models.ErrCodePersistence, "list tasks", err)
	}
	summary.Candidates = len(candidates)

	eligible := o.selectEligible(ctx, candidates, o.now(), log)
	summary.Eligible = len(eligible)
	if len(eligible) == 0 {
		log.Debug("no eligible tasks", "candidates", len(candidates))
		return nil
	}
	log.Info("starting run", "candidates", len(candidates), "eligible", len(eligible))

	session, err := o.provider.Launch(ctx, scraper.LaunchOptions{
		Headless: o.opts.Headless,
		Proxy:    proxyURL,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Warn("failed to close browser", "error", err)
		}
	}()

	outcomes := make([]models.TaskOutcome, len(eligible))
	var g errgroup.Group
	g.SetLimit(o.opts.TaskConcurrency)
	for i, task := range eligible {
		g.Go(func() error {
			outcomes[i] = o.runTask(ctx, session, task, log)
			return nil
		})
	}
	_ = g.Wait()

	summary.Outcomes = outcomes
	for _, oc := range outcomes {
		if oc.ErrorCode == "" {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}
	return nil
}
