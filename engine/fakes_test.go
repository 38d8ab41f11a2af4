package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/use-agent/sellerwatch/models"
	"github.com/use-agent/sellerwatch/scraper"
)

// memStore is an in-memory Store that records status writes.
type memStore struct {
	mu        sync.Mutex
	tasks     []models.Task
	proxy     *models.ProxyConfig
	statusLog map[uint][]models.TaskStatus
	resetErr  map[uint]error
	listCalls int
}

func newMemStore(tasks ...models.Task) *memStore {
	return &memStore{tasks: tasks, statusLog: map[uint][]models.TaskStatus{}}
}

func (s *memStore) ListRunnable(context.Context) ([]models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	out := make([]models.Task, len(s.tasks))
	copy(out, s.tasks)
	return out, nil
}

func (s *memStore) SetStatus(_ context.Context, id uint, status models.TaskStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == models.StatusPending && s.resetErr[id] != nil {
		return s.resetErr[id]
	}
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			s.tasks[i].Status = status
			s.statusLog[id] = append(s.statusLog[id], status)
			return nil
		}
	}
	return errors.New("record not found")
}

func (s *memStore) MarkRunning(_ context.Context, id uint, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			s.tasks[i].Status = models.StatusRunning
			s.tasks[i].LastExecution = &at
			s.statusLog[id] = append(s.statusLog[id], models.StatusRunning)
			return nil
		}
	}
	return errors.New("record not found")
}

func (s *memStore) ActiveProxy(context.Context) (*models.ProxyConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proxy, nil
}

func (s *memStore) task(id uint) models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.ID == id {
			return t
		}
	}
	return models.Task{}
}

func (s *memStore) history(id uint) []models.TaskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.TaskStatus(nil), s.statusLog[id]...)
}

// fakeProvider hands out sessions that count their contexts.
type fakeProvider struct {
	mu        sync.Mutex
	launchErr error
	launches  []scraper.LaunchOptions
	sessions  []*fakeSession
}

func (p *fakeProvider) Launch(_ context.Context, opts scraper.LaunchOptions) (scraper.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.launches = append(p.launches, opts)
	if p.launchErr != nil {
		return nil, p.launchErr
	}
	s := &fakeSession{}
	p.sessions = append(p.sessions, s)
	return s, nil
}

func (p *fakeProvider) launchCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.launches)
}

type fakeSession struct {
	opened  atomic.Int32
	closedN atomic.Int32
	closed  atomic.Bool
	mu      sync.Mutex
	proxies []string
}

func (s *fakeSession) NewContext(_ context.Context, proxy string) (scraper.BrowserContext, error) {
	s.opened.Add(1)
	s.mu.Lock()
	s.proxies = append(s.proxies, proxy)
	s.mu.Unlock()
	return &fakeBrowserContext{session: s}, nil
}

func (s *fakeSession) Close() error {
	s.closed.Store(true)
	return nil
}

type fakeBrowserContext struct{ session *fakeSession }

func (c *fakeBrowserContext) NewPage(context.Context) (scraper.Page, error) {
	return nil, errors.New("pages are not served by this fake")
}

func (c *fakeBrowserContext) Close() error {
	c.session.closedN.Add(1)
	return nil
}

// fakeCrawler records which tasks it ran and how many ran at once.
type fakeCrawler struct {
	mu      sync.Mutex
	crawled []uint
	errs    map[uint]error
	delay   time.Duration
	block   chan struct{}
	started chan uint

	active    atomic.Int32
	maxActive atomic.Int32
}

func (c *fakeCrawler) Crawl(ctx context.Context, _ scraper.BrowserContext, task models.Task) (scraper.CrawlStats, error) {
	n := c.active.Add(1)
	defer c.active.Add(-1)
	for {
		cur := c.maxActive.Load()
		if n <= cur || c.maxActive.CompareAndSwap(cur, n) {
			break
		}
	}

	c.mu.Lock()
	c.crawled = append(c.crawled, task.ID)
	c.mu.Unlock()

	if c.started != nil {
		c.started <- task.ID
	}
	if c.block != nil {
		select {
		case <-c.block:
		case <-ctx.Done():
			return scraper.CrawlStats{}, ctx.Err()
		}
	}
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return scraper.CrawlStats{}, ctx.Err()
		}
	}
	if err := c.errs[task.ID]; err != nil {
		return scraper.CrawlStats{Listed: 1}, err
	}
	return scraper.CrawlStats{Listed: 3, Kept: 2, Recorded: 1}, nil
}

func (c *fakeCrawler) ids() []uint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]uint(nil), c.crawled...)
}

type recordedEvents struct {
	mu    sync.Mutex
	names []string
}

func (r *recordedEvents) Emit(name string, _ any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, name)
}

func (r *recordedEvents) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.names)
}
