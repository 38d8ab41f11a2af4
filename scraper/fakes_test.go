package scraper

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/use-agent/sellerwatch/models"
	"github.com/ysmood/gson"
)

const testListingPrefix = "https://shop.test/profile/"

// fakeSite is an in-memory marketplace served through the Page interface.
type fakeSite struct {
	mu sync.Mutex

	listingHTML   string
	emptyCatalog  bool
	loadMoreTimes int // -1 keeps the control present forever
	clickErr      error
	navErr        map[string]error
	details       map[string]string
	detailDelay   time.Duration

	clicks        int
	opened        int
	closed        int
	activeDetail  int
	maxDetail     int
	navigatedURLs []string
}

func (s *fakeSite) Close() error { return nil }

func (s *fakeSite) NewPage(context.Context) (Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opened++
	return &fakePage{site: s}, nil
}

func (s *fakeSite) stats() (opened, closed, maxDetail, clicks int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened, s.closed, s.maxDetail, s.clicks
}

type fakePage struct {
	site   *fakeSite
	url    string
	detail bool
}

func (p *fakePage) Navigate(_ context.Context, url string, _ time.Duration) error {
	s := p.site
	s.mu.Lock()
	defer s.mu.Unlock()
	s.navigatedURLs = append(s.navigatedURLs, url)
	if err := s.navErr[url]; err != nil {
		return err
	}
	p.url = url
	if !strings.HasPrefix(url, testListingPrefix) {
		p.detail = true
		s.activeDetail++
		if s.activeDetail > s.maxDetail {
			s.maxDetail = s.activeDetail
		}
	}
	return nil
}

func (p *fakePage) WaitForSelector(_ context.Context, _ string, _ time.Duration) error {
	if !p.detail && p.site.emptyCatalog {
		return ErrSelectorNotFound
	}
	return nil
}

func (p *fakePage) Evaluate(context.Context, string, ...any) (gson.JSON, error) {
	return gson.New(nil), nil
}

func (p *fakePage) Has(_ context.Context, _ string) (bool, error) {
	s := p.site
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadMoreTimes < 0 || s.clicks < s.loadMoreTimes, nil
}

func (p *fakePage) Click(context.Context, string) error {
	s := p.site
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clickErr != nil {
		return s.clickErr
	}
	s.clicks++
	return nil
}

func (p *fakePage) HTML(ctx context.Context) (string, error) {
	if !p.detail {
		return p.site.listingHTML, nil
	}
	if err := sleepCtx(ctx, p.site.detailDelay); err != nil {
		return "", err
	}
	p.site.mu.Lock()
	defer p.site.mu.Unlock()
	return p.site.details[p.url], nil
}

func (p *fakePage) Close() error {
	s := p.site
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	if p.detail {
		s.activeDetail--
	}
	return nil
}

type listingCell struct {
	id    string
	price string
}

func listingPage(cells ...listingCell) string {
	var sb strings.Builder
	sb.WriteString("<html><body><ul>")
	for _, c := range cells {
		fmt.Fprintf(&sb,
			`<li data-testid="item-cell"><a href="/item/%s"><div class="merPrice"><span>¥</span><span>%s</span></div></a></li>`,
			c.id, c.price)
	}
	sb.WriteString("</ul><section class=\"no-border\"><button>more</button></section></body></html>")
	return sb.String()
}

func detailPage(likes, comments string) string {
	var sb strings.Builder
	sb.WriteString("<html><body>")
	if likes != "" {
		fmt.Fprintf(&sb, `<div data-testid="icon-heart-button"><span class="merText">%s</span></div>`, likes)
	}
	if comments != "" {
		fmt.Fprintf(&sb, `<div data-location="item_details:item_info:comment_icon_button"><span class="merText">%s</span></div>`, comments)
	}
	sb.WriteString("</body></html>")
	return sb.String()
}

// fakeRecorder keeps observations in memory.
type fakeRecorder struct {
	mu   sync.Mutex
	obs  []models.Observation
	err  error
	hold time.Duration
}

func (r *fakeRecorder) Record(ctx context.Context, obs models.Observation) (*models.Snapshot, error) {
	if err := sleepCtx(ctx, r.hold); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	r.obs = append(r.obs, obs)
	return &models.Snapshot{TaskID: obs.TaskID, ProductID: obs.ProductID}, nil
}

func (r *fakeRecorder) byProduct() map[string]models.Observation {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]models.Observation, len(r.obs))
	for _, o := range r.obs {
		out[o.ProductID] = o
	}
	return out
}
